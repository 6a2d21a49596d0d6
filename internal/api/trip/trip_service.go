package trip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-book/internal/types"
)

var (
	ErrNotFound   = errors.New("trip not found")
	ErrValidation = errors.New("invalid itinerary")
	// ErrNotReady marks operations attempted before the pipeline reached the
	// required status (confirming before preview, downloading before complete).
	ErrNotReady = errors.New("trip is not ready for this operation")
)

// PipelineTrigger is the fire-and-forget surface of the pipeline
// orchestrator. Both calls return immediately; progress is observed by
// polling the trip record.
type PipelineTrigger interface {
	Start(tripID uuid.UUID)
	Finalize(tripID uuid.UUID)
}

type Service interface {
	CreateTrip(ctx context.Context, req types.TripCreateRequest) (*types.TripCreateResponse, error)
	GetTrip(ctx context.Context, id uuid.UUID) (*types.TripResponse, error)
	ConfirmTrip(ctx context.Context, id uuid.UUID) (*types.TripCreateResponse, error)
	GetDocumentPath(ctx context.Context, id uuid.UUID) (string, error)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger   *slog.Logger
	repo     Repository
	pipeline PipelineTrigger
}

func NewServiceImpl(repo Repository, pipeline PipelineTrigger, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		repo:     repo,
		pipeline: pipeline,
	}
}

// CreateTrip validates and stores a new itinerary, then kicks off the
// enrichment pipeline in the background.
func (s *ServiceImpl) CreateTrip(ctx context.Context, req types.TripCreateRequest) (*types.TripCreateResponse, error) {
	ctx, span := otel.Tracer("TripService").Start(ctx, "CreateTrip")
	defer span.End()

	if err := ValidateTripInput(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	trip, err := s.repo.CreateTrip(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, fmt.Errorf("failed to create trip: %w", err)
	}

	// Per-place city/country hints ride along in the enriched-data record so
	// the resolver stage can disambiguate short names.
	if hints := collectHints(req); len(hints) > 0 {
		if err := s.repo.MergeEnrichedData(ctx, trip.ID, types.EnrichedData{GeocodingHints: hints}); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to store geocoding hints: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "Trip created, starting pipeline",
		slog.String("trip_id", trip.ID.String()), slog.Int("days", len(trip.Days)))
	s.pipeline.Start(trip.ID)

	span.SetAttributes(attribute.String("trip.id", trip.ID.String()))
	span.SetStatus(codes.Ok, "trip created")
	return &types.TripCreateResponse{ID: trip.ID, Status: trip.Status}, nil
}

func (s *ServiceImpl) GetTrip(ctx context.Context, id uuid.UUID) (*types.TripResponse, error) {
	ctx, span := otel.Tracer("TripService").Start(ctx, "GetTrip", trace.WithAttributes(
		attribute.String("trip.id", id.String()),
	))
	defer span.End()

	trip, err := s.repo.GetTrip(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch trip: %w", err)
	}
	if trip == nil {
		span.SetStatus(codes.Ok, "not found")
		return nil, ErrNotFound
	}

	resp := &types.TripResponse{
		ID:           trip.ID,
		Title:        trip.Title,
		StartDate:    trip.StartDate,
		EndDate:      trip.EndDate,
		Status:       trip.Status,
		ErrorMessage: trip.ErrorMessage,
		Days:         make([]types.DayResponse, 0, len(trip.Days)),
	}
	for _, day := range trip.Days {
		dayResp := types.DayResponse{
			DayNumber:     day.DayNumber,
			StartLocation: day.StartLocation,
			EndLocation:   day.EndLocation,
			Places:        make([]types.PlaceResponse, 0, len(day.Places)),
		}
		for _, place := range day.Places {
			dayResp.Places = append(dayResp.Places, types.PlaceResponse{
				Name:      place.Name,
				Category:  place.Category,
				Latitude:  place.Latitude,
				Longitude: place.Longitude,
			})
		}
		if trip.EnrichedData != nil && trip.EnrichedData.Routes != nil {
			dayResp.Route = trip.EnrichedData.Routes[strconv.Itoa(day.DayNumber)]
		}
		resp.Days = append(resp.Days, dayResp)
	}

	span.SetStatus(codes.Ok, "trip fetched")
	return resp, nil
}

// ConfirmTrip moves a previewed trip into final document rendering. Only
// valid while the trip sits at preview_ready.
func (s *ServiceImpl) ConfirmTrip(ctx context.Context, id uuid.UUID) (*types.TripCreateResponse, error) {
	ctx, span := otel.Tracer("TripService").Start(ctx, "ConfirmTrip", trace.WithAttributes(
		attribute.String("trip.id", id.String()),
	))
	defer span.End()

	trip, err := s.repo.GetTrip(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch trip: %w", err)
	}
	if trip == nil {
		return nil, ErrNotFound
	}
	if trip.Status != types.TripStatusPreviewReady {
		span.SetStatus(codes.Ok, "wrong status")
		return nil, fmt.Errorf("%w: status is %q, expected %q", ErrNotReady, trip.Status, types.TripStatusPreviewReady)
	}

	s.logger.InfoContext(ctx, "Trip confirmed, finalizing document", slog.String("trip_id", id.String()))
	s.pipeline.Finalize(id)

	span.SetStatus(codes.Ok, "finalization started")
	return &types.TripCreateResponse{ID: id, Status: types.TripStatusRendering}, nil
}

// GetDocumentPath returns the rendered document path; only complete trips
// have one.
func (s *ServiceImpl) GetDocumentPath(ctx context.Context, id uuid.UUID) (string, error) {
	trip, err := s.repo.GetTrip(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to fetch trip: %w", err)
	}
	if trip == nil {
		return "", ErrNotFound
	}
	if trip.Status != types.TripStatusComplete || trip.DocumentPath == nil {
		return "", fmt.Errorf("%w: document not generated yet (status %q)", ErrNotReady, trip.Status)
	}
	return *trip.DocumentPath, nil
}

// collectHints gathers the "<day>:<place>" hint map from the request.
func collectHints(req types.TripCreateRequest) map[string]types.GeocodingHint {
	hints := make(map[string]types.GeocodingHint)
	for _, day := range req.Days {
		for _, place := range day.Places {
			if place.City == "" && place.Country == "" {
				continue
			}
			key := strconv.Itoa(day.DayNumber) + ":" + place.Name
			hints[key] = types.GeocodingHint{City: place.City, Country: place.Country}
		}
	}
	return hints
}

// ValidateTripInput enforces the itinerary input rules shared by the manual
// trips endpoint and the chat finalize flow.
func ValidateTripInput(req types.TripCreateRequest) error {
	if req.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(req.Days) == 0 {
		return fmt.Errorf("%w: at least one day is required", ErrValidation)
	}

	seenDays := make(map[int]bool, len(req.Days))
	for _, day := range req.Days {
		if day.DayNumber < 1 {
			return fmt.Errorf("%w: day numbers start at 1", ErrValidation)
		}
		if seenDays[day.DayNumber] {
			return fmt.Errorf("%w: duplicate day number %d", ErrValidation, day.DayNumber)
		}
		seenDays[day.DayNumber] = true

		if len(day.Places) > types.MaxPlacesPerDay {
			return fmt.Errorf("%w: day %d has %d places, maximum is %d",
				ErrValidation, day.DayNumber, len(day.Places), types.MaxPlacesPerDay)
		}
		for _, place := range day.Places {
			if place.Name == "" {
				return fmt.Errorf("%w: day %d contains a place without a name", ErrValidation, day.DayNumber)
			}
			switch place.Category {
			case types.CategoryLodging, types.CategoryAttraction, types.CategoryDining:
			default:
				return fmt.Errorf("%w: unknown category %q for place %q",
					ErrValidation, place.Category, place.Name)
			}
		}
	}
	return nil
}
