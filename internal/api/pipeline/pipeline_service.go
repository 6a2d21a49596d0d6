package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-book/app/observability/metrics"
	"github.com/FACorreiaa/go-travel-book/config"
	"github.com/FACorreiaa/go-travel-book/internal/api/enrichment"
	"github.com/FACorreiaa/go-travel-book/internal/api/geocoding"
	"github.com/FACorreiaa/go-travel-book/internal/api/render"
	"github.com/FACorreiaa/go-travel-book/internal/api/routing"
	"github.com/FACorreiaa/go-travel-book/internal/api/trip"
	"github.com/FACorreiaa/go-travel-book/internal/types"
)

// Service drives one trip through the enrichment stages:
// pending → geocoding → routing → enriching → rendering → preview_ready,
// then preview_ready → rendering → complete after user confirmation (or
// straight to complete when confirmation is disabled). Any stage failure
// parks the trip at the terminal error status with the failure message.
type Service interface {
	trip.PipelineTrigger
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger   *slog.Logger
	repo     trip.Repository
	resolver geocoding.Service
	routes   routing.Service
	enricher enrichment.Service
	renderer render.Service

	requireConfirmation bool
	outputDir           string

	// One in-flight run per trip. A second trigger while a run is active is
	// dropped, which also serializes Finalize against Start.
	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

func NewServiceImpl(
	repo trip.Repository,
	resolver geocoding.Service,
	routes routing.Service,
	enricher enrichment.Service,
	renderer render.Service,
	cfg *config.Config,
	logger *slog.Logger,
) *ServiceImpl {
	return &ServiceImpl{
		logger:              logger,
		repo:                repo,
		resolver:            resolver,
		routes:              routes,
		enricher:            enricher,
		renderer:            renderer,
		requireConfirmation: cfg.Pipeline.RequireConfirmation,
		outputDir:           cfg.Pipeline.OutputDir,
		inFlight:            make(map[uuid.UUID]struct{}),
	}
}

// Start runs the full pipeline for a trip in the background. The call
// returns immediately; progress is observed by polling the trip record.
func (s *ServiceImpl) Start(tripID uuid.UUID) {
	s.launch(tripID, "pipeline", s.run)
}

// Finalize renders the confirmed preview into the final PDF in the
// background.
func (s *ServiceImpl) Finalize(tripID uuid.UUID) {
	s.launch(tripID, "finalize", s.finalize)
}

func (s *ServiceImpl) launch(tripID uuid.UUID, kind string, work func(context.Context, uuid.UUID) error) {
	s.mu.Lock()
	if _, running := s.inFlight[tripID]; running {
		s.mu.Unlock()
		s.logger.Warn("Pipeline already running for trip, ignoring trigger",
			slog.String("trip_id", tripID.String()), slog.String("kind", kind))
		return
	}
	s.inFlight[tripID] = struct{}{}
	s.mu.Unlock()

	metrics.Get().PipelineRunsTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", kind)))

	go func() {
		ctx := context.Background()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Pipeline panicked",
					slog.String("trip_id", tripID.String()), slog.Any("panic", r))
				s.markError(ctx, tripID, fmt.Errorf("internal pipeline failure: %v", r))
			}
			s.mu.Lock()
			delete(s.inFlight, tripID)
			s.mu.Unlock()
		}()

		if err := work(ctx, tripID); err != nil {
			s.logger.Error("Pipeline failed",
				slog.String("trip_id", tripID.String()), slog.Any("error", err))
			s.markError(ctx, tripID, err)
		}
	}()
}

func (s *ServiceImpl) run(ctx context.Context, tripID uuid.UUID) error {
	ctx, span := otel.Tracer("PipelineService").Start(ctx, "run", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
	))
	defer span.End()

	t, err := s.repo.GetTrip(ctx, tripID)
	if err != nil {
		return fmt.Errorf("failed to load trip: %w", err)
	}
	if t == nil {
		return fmt.Errorf("trip %s does not exist", tripID)
	}

	if err := s.stage(ctx, tripID, types.TripStatusGeocoding, s.geocodeStage); err != nil {
		return err
	}
	if err := s.stage(ctx, tripID, types.TripStatusRouting, s.routingStage); err != nil {
		return err
	}
	if err := s.stage(ctx, tripID, types.TripStatusEnriching, s.enrichingStage); err != nil {
		return err
	}
	if err := s.stage(ctx, tripID, types.TripStatusRendering, s.renderingStage); err != nil {
		return err
	}

	span.SetStatus(codes.Ok, "pipeline finished")
	return nil
}

// stage persists the status transition before doing any work, so polling
// clients observe progress, then runs the stage body and records its
// duration.
func (s *ServiceImpl) stage(ctx context.Context, tripID uuid.UUID, status types.TripStatus, body func(context.Context, uuid.UUID) error) error {
	ctx, span := otel.Tracer("PipelineService").Start(ctx, string(status))
	defer span.End()

	if err := s.repo.UpdateStatus(ctx, tripID, status, nil); err != nil {
		return fmt.Errorf("failed to enter %s stage: %w", status, err)
	}

	s.logger.Info("Pipeline stage started",
		slog.String("trip_id", tripID.String()), slog.String("stage", string(status)))
	started := time.Now()
	err := body(ctx, tripID)
	metrics.Get().PipelineStageDuration.Record(ctx, time.Since(started).Seconds(),
		metric.WithAttributes(attribute.String("stage", string(status))))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stage failed")
		return fmt.Errorf("%s stage failed: %w", status, err)
	}
	span.SetStatus(codes.Ok, "stage finished")
	return nil
}

// geocodeStage resolves every place and every day start/end location,
// persisting coordinates onto places and snapshotting day endpoints into the
// enriched-data record for the rendering stage.
func (s *ServiceImpl) geocodeStage(ctx context.Context, tripID uuid.UUID) error {
	t, err := s.repo.GetTrip(ctx, tripID)
	if err != nil {
		return fmt.Errorf("failed to reload trip: %w", err)
	}
	if t == nil {
		return fmt.Errorf("trip %s disappeared mid-pipeline", tripID)
	}
	data, err := s.repo.GetEnrichedData(ctx, tripID)
	if err != nil {
		return fmt.Errorf("failed to load enriched data: %w", err)
	}
	var hints map[string]types.GeocodingHint
	if data != nil {
		hints = data.GeocodingHints
	}

	endpoints := make(map[string]types.DayEndpoints, len(t.Days))
	for _, day := range t.Days {
		dayCity, dayCountry := dayHints(hints, day)

		for _, place := range day.Places {
			city, country := placeHints(hints, day.DayNumber, place.Name, dayCity, dayCountry)
			loc, err := s.resolver.Resolve(ctx, place.Name, city, country)
			if err != nil {
				return fmt.Errorf("resolver failed for %q: %w", place.Name, err)
			}
			if loc == nil {
				s.logger.Warn("Place left without coordinates",
					slog.String("trip_id", tripID.String()), slog.String("place", place.Name))
				continue
			}
			if err := s.repo.UpdatePlaceCoordinates(ctx, place.ID, loc.Latitude, loc.Longitude); err != nil {
				return fmt.Errorf("failed to store coordinates for %q: %w", place.Name, err)
			}
		}

		dayEndpoints := types.DayEndpoints{}
		if day.StartLocation != nil && *day.StartLocation != "" {
			if loc, err := s.resolver.ResolveLodging(ctx, *day.StartLocation, dayCity, dayCountry); err != nil {
				return fmt.Errorf("resolver failed for start location %q: %w", *day.StartLocation, err)
			} else if loc != nil {
				dayEndpoints.Start = &types.GeoPoint{Lat: loc.Latitude, Lon: loc.Longitude}
			}
		}
		if day.EndLocation != nil && *day.EndLocation != "" {
			if loc, err := s.resolver.ResolveLodging(ctx, *day.EndLocation, dayCity, dayCountry); err != nil {
				return fmt.Errorf("resolver failed for end location %q: %w", *day.EndLocation, err)
			} else if loc != nil {
				dayEndpoints.End = &types.GeoPoint{Lat: loc.Latitude, Lon: loc.Longitude}
			}
		}
		endpoints[strconv.Itoa(day.DayNumber)] = dayEndpoints
	}

	return s.repo.MergeEnrichedData(ctx, tripID, types.EnrichedData{StartEndCoords: endpoints})
}

// routingStage builds each day's waypoint list (start → places in visit
// order → end, skipping anything unresolved) and stores one route or an
// explicit null per day.
func (s *ServiceImpl) routingStage(ctx context.Context, tripID uuid.UUID) error {
	t, err := s.repo.GetTrip(ctx, tripID)
	if err != nil {
		return fmt.Errorf("failed to reload trip: %w", err)
	}
	if t == nil {
		return fmt.Errorf("trip %s disappeared mid-pipeline", tripID)
	}
	data, err := s.repo.GetEnrichedData(ctx, tripID)
	if err != nil {
		return fmt.Errorf("failed to load enriched data: %w", err)
	}

	routes := make(map[string]*types.RouteResult, len(t.Days))
	for _, day := range t.Days {
		dayKey := strconv.Itoa(day.DayNumber)
		waypoints := buildWaypoints(day, data)

		route, err := s.routes.ComputeDayRoute(ctx, waypoints)
		if err != nil {
			return fmt.Errorf("route computation failed for day %d: %w", day.DayNumber, err)
		}
		routes[dayKey] = route
	}

	return s.repo.MergeEnrichedData(ctx, tripID, types.EnrichedData{Routes: routes})
}

// enrichingStage fetches a knowledge record for every place, keyed by place
// name. The same name appearing on two days shares one entry.
func (s *ServiceImpl) enrichingStage(ctx context.Context, tripID uuid.UUID) error {
	t, err := s.repo.GetTrip(ctx, tripID)
	if err != nil {
		return fmt.Errorf("failed to reload trip: %w", err)
	}
	if t == nil {
		return fmt.Errorf("trip %s disappeared mid-pipeline", tripID)
	}

	places := make(map[string]types.KnowledgeRecord)
	for _, day := range t.Days {
		for _, place := range day.Places {
			var coord *types.GeoPoint
			if place.Latitude != nil && place.Longitude != nil {
				coord = &types.GeoPoint{Lat: *place.Latitude, Lon: *place.Longitude}
			}
			record, err := s.enricher.EnrichPlace(ctx, place.Name, coord)
			if err != nil {
				return fmt.Errorf("enrichment failed for %q: %w", place.Name, err)
			}
			places[place.Name] = record
		}
	}

	return s.repo.MergeEnrichedData(ctx, tripID, types.EnrichedData{Places: places})
}

// renderingStage produces the travel book HTML. With confirmation enabled
// the trip parks at preview_ready holding the HTML; otherwise the PDF is
// produced immediately and the trip completes.
func (s *ServiceImpl) renderingStage(ctx context.Context, tripID uuid.UUID) error {
	t, err := s.repo.GetTrip(ctx, tripID)
	if err != nil {
		return fmt.Errorf("failed to reload trip: %w", err)
	}
	if t == nil {
		return fmt.Errorf("trip %s disappeared mid-pipeline", tripID)
	}

	html, err := s.renderer.BuildHTML(ctx, t, t.EnrichedData)
	if err != nil {
		return err
	}

	if s.requireConfirmation {
		if err := s.repo.MergeEnrichedData(ctx, tripID, types.EnrichedData{HTMLPreview: html}); err != nil {
			return fmt.Errorf("failed to store html preview: %w", err)
		}
		return s.repo.UpdateStatus(ctx, tripID, types.TripStatusPreviewReady, nil)
	}

	if err := s.writeDocument(ctx, tripID, html); err != nil {
		return err
	}
	return s.repo.UpdateStatus(ctx, tripID, types.TripStatusComplete, nil)
}

// finalize is the post-confirmation tail of the pipeline: re-enter
// rendering, print the stored preview (rebuilding it if absent) and
// complete.
func (s *ServiceImpl) finalize(ctx context.Context, tripID uuid.UUID) error {
	return s.stage(ctx, tripID, types.TripStatusRendering, func(ctx context.Context, tripID uuid.UUID) error {
		t, err := s.repo.GetTrip(ctx, tripID)
		if err != nil || t == nil {
			return fmt.Errorf("failed to reload trip: %w", err)
		}

		html := ""
		if t.EnrichedData != nil {
			html = t.EnrichedData.HTMLPreview
		}
		if html == "" {
			if html, err = s.renderer.BuildHTML(ctx, t, t.EnrichedData); err != nil {
				return err
			}
		}

		if err := s.writeDocument(ctx, tripID, html); err != nil {
			return err
		}
		return s.repo.UpdateStatus(ctx, tripID, types.TripStatusComplete, nil)
	})
}

func (s *ServiceImpl) writeDocument(ctx context.Context, tripID uuid.UUID, html string) error {
	outputPath := filepath.Join(s.outputDir, tripID.String()+".pdf")
	if err := s.renderer.RenderPDF(ctx, html, outputPath); err != nil {
		return err
	}
	return s.repo.SetDocumentPath(ctx, tripID, outputPath)
}

func (s *ServiceImpl) markError(ctx context.Context, tripID uuid.UUID, cause error) {
	msg := cause.Error()
	if err := s.repo.UpdateStatus(ctx, tripID, types.TripStatusError, &msg); err != nil {
		s.logger.Error("Failed to record pipeline error status",
			slog.String("trip_id", tripID.String()), slog.Any("error", err))
	}
}

// buildWaypoints assembles a day's route input: resolved start location,
// each place with coordinates in visit order, resolved end location.
// Unresolved points are skipped silently.
func buildWaypoints(day types.Day, data *types.EnrichedData) []types.GeoPoint {
	waypoints := make([]types.GeoPoint, 0, len(day.Places)+2)

	var endpoints types.DayEndpoints
	if data != nil && data.StartEndCoords != nil {
		endpoints = data.StartEndCoords[strconv.Itoa(day.DayNumber)]
	}
	if endpoints.Start != nil {
		waypoints = append(waypoints, *endpoints.Start)
	}
	for _, place := range day.Places {
		if place.Latitude != nil && place.Longitude != nil {
			waypoints = append(waypoints, types.GeoPoint{Lat: *place.Latitude, Lon: *place.Longitude})
		}
	}
	if endpoints.End != nil {
		waypoints = append(waypoints, *endpoints.End)
	}
	return waypoints
}

// dayHints infers a day-level city/country from the first place hint of that
// day; used to resolve vague lodging descriptions.
func dayHints(hints map[string]types.GeocodingHint, day types.Day) (string, string) {
	for _, place := range day.Places {
		if hint, ok := hints[hintKey(day.DayNumber, place.Name)]; ok {
			return hint.City, hint.Country
		}
	}
	return "", ""
}

func placeHints(hints map[string]types.GeocodingHint, dayNumber int, placeName, fallbackCity, fallbackCountry string) (string, string) {
	if hint, ok := hints[hintKey(dayNumber, placeName)]; ok {
		return hint.City, hint.Country
	}
	return fallbackCity, fallbackCountry
}

func hintKey(dayNumber int, placeName string) string {
	return strconv.Itoa(dayNumber) + ":" + placeName
}
