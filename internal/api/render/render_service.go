package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-book/internal/types"
)

//go:embed templates/travelbook.html
var templateFS embed.FS

// DocumentRenderer turns rendered HTML into a PDF artifact at outputPath.
// It runs out-of-process so a renderer crash never takes down the pipeline.
type DocumentRenderer interface {
	RenderPDF(ctx context.Context, html, outputPath string) error
}

// Service builds the travel book HTML and drives the document renderer.
type Service interface {
	BuildHTML(ctx context.Context, trip *types.Trip, data *types.EnrichedData) (string, error)
	RenderPDF(ctx context.Context, html, outputPath string) error
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger   *slog.Logger
	tmpl     *template.Template
	renderer DocumentRenderer
}

func NewServiceImpl(renderer DocumentRenderer, logger *slog.Logger) (*ServiceImpl, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/travelbook.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse travel book template: %w", err)
	}
	return &ServiceImpl{
		logger:   logger,
		tmpl:     tmpl,
		renderer: renderer,
	}, nil
}

// Template view models. Kept separate from the storage types so the template
// never reaches into raw pipeline structures.

type bookData struct {
	Title     string
	DateRange string
	Days      []bookDay
}

type bookDay struct {
	Number        int
	StartLocation string
	EndLocation   string
	Route         *bookRoute
	Places        []bookPlace
}

type bookRoute struct {
	DistanceKm  string
	DurationMin string
}

type bookPlace struct {
	Name             string
	Category         string
	Description      string
	NativeName       string
	ImageURL         string
	ImageAttribution string
	ArticleURL       string
}

// BuildHTML renders the full travel book document from the trip and its
// accumulated enrichment record.
func (s *ServiceImpl) BuildHTML(ctx context.Context, trip *types.Trip, data *types.EnrichedData) (string, error) {
	_, span := otel.Tracer("RenderService").Start(ctx, "BuildHTML", trace.WithAttributes(
		attribute.String("trip.id", trip.ID.String()),
	))
	defer span.End()

	if data == nil {
		data = &types.EnrichedData{}
	}

	book := bookData{
		Title:     trip.Title,
		DateRange: formatDateRange(trip.StartDate, trip.EndDate),
		Days:      make([]bookDay, 0, len(trip.Days)),
	}
	for _, day := range trip.Days {
		bd := bookDay{
			Number: day.DayNumber,
			Places: make([]bookPlace, 0, len(day.Places)),
		}
		if day.StartLocation != nil {
			bd.StartLocation = *day.StartLocation
		}
		if day.EndLocation != nil {
			bd.EndLocation = *day.EndLocation
		}
		if route := data.Routes[strconv.Itoa(day.DayNumber)]; route != nil {
			bd.Route = &bookRoute{
				DistanceKm:  strconv.FormatFloat(route.DistanceMeters/1000, 'f', 1, 64),
				DurationMin: strconv.FormatFloat(route.DurationSeconds/60, 'f', 0, 64),
			}
		}
		for _, place := range day.Places {
			bp := bookPlace{
				Name:        place.Name,
				Category:    string(place.Category),
				Description: types.PlaceholderDescription,
			}
			if record, ok := data.Places[place.Name]; ok {
				bp.Description = record.Description
				if record.NativeName != nil {
					bp.NativeName = *record.NativeName
				}
				if record.ImageURL != nil {
					bp.ImageURL = *record.ImageURL
				}
				if record.ImageAttribution != nil {
					bp.ImageAttribution = *record.ImageAttribution
				}
				if record.ArticleURL != nil {
					bp.ArticleURL = *record.ArticleURL
				}
			}
			bd.Places = append(bd.Places, bp)
		}
		book.Days = append(book.Days, bd)
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, book); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "template execution failed")
		return "", fmt.Errorf("failed to render travel book template: %w", err)
	}

	span.SetStatus(codes.Ok, "html rendered")
	return buf.String(), nil
}

func (s *ServiceImpl) RenderPDF(ctx context.Context, html, outputPath string) error {
	ctx, span := otel.Tracer("RenderService").Start(ctx, "RenderPDF", trace.WithAttributes(
		attribute.String("output.path", outputPath),
	))
	defer span.End()

	if err := s.renderer.RenderPDF(ctx, html, outputPath); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pdf rendering failed")
		return fmt.Errorf("failed to render PDF: %w", err)
	}
	span.SetStatus(codes.Ok, "pdf rendered")
	return nil
}

func formatDateRange(start, end *string) string {
	switch {
	case start != nil && end != nil:
		return *start + " – " + *end
	case start != nil:
		return *start
	case end != nil:
		return *end
	default:
		return ""
	}
}
