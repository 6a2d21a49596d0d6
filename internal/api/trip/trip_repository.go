package trip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-book/internal/types"
)

type Repository interface {
	CreateTrip(ctx context.Context, req types.TripCreateRequest) (*types.Trip, error)
	GetTrip(ctx context.Context, id uuid.UUID) (*types.Trip, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status types.TripStatus, errorMessage *string) error
	UpdatePlaceCoordinates(ctx context.Context, placeID int64, lat, lon float64) error
	GetEnrichedData(ctx context.Context, id uuid.UUID) (*types.EnrichedData, error)
	MergeEnrichedData(ctx context.Context, id uuid.UUID, patch types.EnrichedData) error
	SetDocumentPath(ctx context.Context, id uuid.UUID, path string) error
	ResetTrip(ctx context.Context, id uuid.UUID, req types.TripCreateRequest) error
}

var _ Repository = (*PostgresTripRepository)(nil)

type PostgresTripRepository struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresTripRepository(pgxpool *pgxpool.Pool, logger *slog.Logger) *PostgresTripRepository {
	return &PostgresTripRepository{
		logger: logger,
		pgpool: pgxpool,
	}
}

func (r *PostgresTripRepository) CreateTrip(ctx context.Context, req types.TripCreateRequest) (*types.Trip, error) {
	ctx, span := otel.Tracer("TripRepository").Start(ctx, "CreateTrip")
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	trip := &types.Trip{
		Title:     req.Title,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Status:    types.TripStatusPending,
	}
	err = tx.QueryRow(ctx, `
        INSERT INTO trips (title, start_date, end_date, status)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`,
		req.Title, req.StartDate, req.EndDate, types.TripStatusPending,
	).Scan(&trip.ID, &trip.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to insert trip: %w", err)
	}

	for _, dayInput := range req.Days {
		day := types.Day{
			TripID:        trip.ID,
			DayNumber:     dayInput.DayNumber,
			StartLocation: dayInput.StartLocation,
			EndLocation:   dayInput.EndLocation,
		}
		err = tx.QueryRow(ctx, `
            INSERT INTO days (trip_id, day_number, start_location, end_location)
            VALUES ($1, $2, $3, $4)
            RETURNING id`,
			trip.ID, dayInput.DayNumber, dayInput.StartLocation, dayInput.EndLocation,
		).Scan(&day.ID)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to insert day %d: %w", dayInput.DayNumber, err)
		}

		for pos, placeInput := range dayInput.Places {
			place := types.Place{
				DayID:    day.ID,
				Name:     placeInput.Name,
				Category: placeInput.Category,
				Position: pos,
			}
			err = tx.QueryRow(ctx, `
                INSERT INTO places (day_id, name, category, position)
                VALUES ($1, $2, $3, $4)
                RETURNING id`,
				day.ID, placeInput.Name, placeInput.Category, pos,
			).Scan(&place.ID)
			if err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("failed to insert place %q: %w", placeInput.Name, err)
			}
			day.Places = append(day.Places, place)
		}
		trip.Days = append(trip.Days, day)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to commit trip: %w", err)
	}
	span.SetAttributes(attribute.String("trip.id", trip.ID.String()))
	span.SetStatus(codes.Ok, "trip created")
	return trip, nil
}

func (r *PostgresTripRepository) GetTrip(ctx context.Context, id uuid.UUID) (*types.Trip, error) {
	ctx, span := otel.Tracer("TripRepository").Start(ctx, "GetTrip", trace.WithAttributes(
		attribute.String("trip.id", id.String()),
	))
	defer span.End()

	var trip types.Trip
	var enriched []byte
	err := r.pgpool.QueryRow(ctx, `
        SELECT id, title, start_date, end_date, status, error_message, enriched_data, document_path, created_at
        FROM trips WHERE id = $1`, id,
	).Scan(&trip.ID, &trip.Title, &trip.StartDate, &trip.EndDate, &trip.Status,
		&trip.ErrorMessage, &enriched, &trip.DocumentPath, &trip.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "not found")
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query trip: %w", err)
	}
	if len(enriched) > 0 {
		trip.EnrichedData = &types.EnrichedData{}
		if err := json.Unmarshal(enriched, trip.EnrichedData); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to decode enriched data: %w", err)
		}
	}

	dayRows, err := r.pgpool.Query(ctx, `
        SELECT id, trip_id, day_number, start_location, end_location
        FROM days WHERE trip_id = $1 ORDER BY day_number`, id)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query days: %w", err)
	}
	days, err := pgx.CollectRows(dayRows, func(row pgx.CollectableRow) (types.Day, error) {
		var d types.Day
		err := row.Scan(&d.ID, &d.TripID, &d.DayNumber, &d.StartLocation, &d.EndLocation)
		return d, err
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to scan days: %w", err)
	}

	for i := range days {
		placeRows, err := r.pgpool.Query(ctx, `
            SELECT id, day_id, name, category, position, latitude, longitude
            FROM places WHERE day_id = $1 ORDER BY position`, days[i].ID)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to query places: %w", err)
		}
		places, err := pgx.CollectRows(placeRows, func(row pgx.CollectableRow) (types.Place, error) {
			var p types.Place
			err := row.Scan(&p.ID, &p.DayID, &p.Name, &p.Category, &p.Position, &p.Latitude, &p.Longitude)
			return p, err
		})
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan places: %w", err)
		}
		days[i].Places = places
	}
	trip.Days = days

	span.SetStatus(codes.Ok, "trip fetched")
	return &trip, nil
}

func (r *PostgresTripRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status types.TripStatus, errorMessage *string) error {
	ctx, span := otel.Tracer("TripRepository").Start(ctx, "UpdateStatus", trace.WithAttributes(
		attribute.String("trip.id", id.String()),
		attribute.String("trip.status", string(status)),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx,
		`UPDATE trips SET status = $1, error_message = $2 WHERE id = $3`,
		status, errorMessage, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update trip status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("trip %s not found", id)
	}
	span.SetStatus(codes.Ok, "status updated")
	return nil
}

func (r *PostgresTripRepository) UpdatePlaceCoordinates(ctx context.Context, placeID int64, lat, lon float64) error {
	ctx, span := otel.Tracer("TripRepository").Start(ctx, "UpdatePlaceCoordinates")
	defer span.End()

	if _, err := r.pgpool.Exec(ctx,
		`UPDATE places SET latitude = $1, longitude = $2 WHERE id = $3`,
		lat, lon, placeID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update place coordinates: %w", err)
	}
	span.SetStatus(codes.Ok, "coordinates updated")
	return nil
}

func (r *PostgresTripRepository) GetEnrichedData(ctx context.Context, id uuid.UUID) (*types.EnrichedData, error) {
	ctx, span := otel.Tracer("TripRepository").Start(ctx, "GetEnrichedData")
	defer span.End()

	var raw []byte
	err := r.pgpool.QueryRow(ctx, `SELECT enriched_data FROM trips WHERE id = $1`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query enriched data: %w", err)
	}

	data := &types.EnrichedData{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, data); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to decode enriched data: %w", err)
		}
	}
	span.SetStatus(codes.Ok, "")
	return data, nil
}

// MergeEnrichedData folds one stage's output into the stored record under a
// row lock. Sections the patch leaves unset survive untouched; the whole
// record is never replaced wholesale.
func (r *PostgresTripRepository) MergeEnrichedData(ctx context.Context, id uuid.UUID, patch types.EnrichedData) error {
	ctx, span := otel.Tracer("TripRepository").Start(ctx, "MergeEnrichedData", trace.WithAttributes(
		attribute.String("trip.id", id.String()),
	))
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	if err := tx.QueryRow(ctx,
		`SELECT enriched_data FROM trips WHERE id = $1 FOR UPDATE`, id).Scan(&raw); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to lock enriched data row: %w", err)
	}

	current := types.EnrichedData{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &current); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to decode enriched data: %w", err)
		}
	}
	current.Merge(patch)

	merged, err := json.Marshal(current)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to encode enriched data: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE trips SET enriched_data = $1 WHERE id = $2`, merged, id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to store enriched data: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit enriched data merge: %w", err)
	}
	span.SetStatus(codes.Ok, "merged")
	return nil
}

func (r *PostgresTripRepository) SetDocumentPath(ctx context.Context, id uuid.UUID, path string) error {
	ctx, span := otel.Tracer("TripRepository").Start(ctx, "SetDocumentPath")
	defer span.End()

	if _, err := r.pgpool.Exec(ctx,
		`UPDATE trips SET document_path = $1 WHERE id = $2`, path, id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set document path: %w", err)
	}
	span.SetStatus(codes.Ok, "document path set")
	return nil
}

// ResetTrip rewrites a trip from a fresh itinerary: title, dates and the
// whole day/place structure are replaced, enrichment state and any generated
// document are discarded and the status returns to pending. Used when a chat
// session re-finalizes an itinerary for an existing trip.
func (r *PostgresTripRepository) ResetTrip(ctx context.Context, id uuid.UUID, req types.TripCreateRequest) error {
	ctx, span := otel.Tracer("TripRepository").Start(ctx, "ResetTrip", trace.WithAttributes(
		attribute.String("trip.id", id.String()),
	))
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
        UPDATE trips
        SET title = $1, start_date = $2, end_date = $3, status = $4,
            error_message = NULL, enriched_data = NULL, document_path = NULL
        WHERE id = $5`,
		req.Title, req.StartDate, req.EndDate, types.TripStatusPending, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to reset trip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("trip %s not found", id)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM days WHERE trip_id = $1`, id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete existing days: %w", err)
	}

	for _, dayInput := range req.Days {
		var dayID int64
		err = tx.QueryRow(ctx, `
            INSERT INTO days (trip_id, day_number, start_location, end_location)
            VALUES ($1, $2, $3, $4)
            RETURNING id`,
			id, dayInput.DayNumber, dayInput.StartLocation, dayInput.EndLocation,
		).Scan(&dayID)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to insert day %d: %w", dayInput.DayNumber, err)
		}
		for pos, placeInput := range dayInput.Places {
			if _, err := tx.Exec(ctx, `
                INSERT INTO places (day_id, name, category, position)
                VALUES ($1, $2, $3, $4)`,
				dayID, placeInput.Name, placeInput.Category, pos); err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to insert place %q: %w", placeInput.Name, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit trip reset: %w", err)
	}
	span.SetStatus(codes.Ok, "trip reset")
	return nil
}
