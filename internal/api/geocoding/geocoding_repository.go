package geocoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-book/internal/types"
)

// Repository is the persistent geocoding cache. Entries are append-only: a
// resolved place identity is never updated, so concurrent writers for the same
// identity are harmless.
type Repository interface {
	GetByIdentity(ctx context.Context, identity string) (*types.GeocodedLocation, error)
	Save(ctx context.Context, identity string, loc types.GeocodedLocation) error
}

// PGXPool is the subset of pgxpool.Pool this repository touches; pgxmock
// satisfies it in tests.
type PGXPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ Repository = (*PostgresGeocodingRepository)(nil)

type PostgresGeocodingRepository struct {
	logger *slog.Logger
	pgpool PGXPool
	// memCache fronts Postgres so repeated lookups within one pipeline run
	// never touch the database.
	memCache *cache.Cache
}

func NewPostgresGeocodingRepository(pgxpool PGXPool, logger *slog.Logger) *PostgresGeocodingRepository {
	return &PostgresGeocodingRepository{
		logger:   logger,
		pgpool:   pgxpool,
		memCache: cache.New(24*time.Hour, 1*time.Hour),
	}
}

func (r *PostgresGeocodingRepository) GetByIdentity(ctx context.Context, identity string) (*types.GeocodedLocation, error) {
	ctx, span := otel.Tracer("GeocodingRepository").Start(ctx, "GetByIdentity", trace.WithAttributes(
		attribute.String("geocode.identity", identity),
	))
	defer span.End()

	if cached, found := r.memCache.Get(identity); found {
		loc := cached.(types.GeocodedLocation)
		span.SetStatus(codes.Ok, "memory cache hit")
		return &loc, nil
	}

	var loc types.GeocodedLocation
	query := `SELECT latitude, longitude, display_name FROM geocoding_cache WHERE place_identity = $1`
	err := r.pgpool.QueryRow(ctx, query, identity).Scan(&loc.Latitude, &loc.Longitude, &loc.Label)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "cache miss")
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		return nil, fmt.Errorf("failed to query geocoding cache: %w", err)
	}

	r.memCache.Set(identity, loc, cache.DefaultExpiration)
	span.SetStatus(codes.Ok, "cache hit")
	return &loc, nil
}

func (r *PostgresGeocodingRepository) Save(ctx context.Context, identity string, loc types.GeocodedLocation) error {
	ctx, span := otel.Tracer("GeocodingRepository").Start(ctx, "Save", trace.WithAttributes(
		attribute.String("geocode.identity", identity),
	))
	defer span.End()

	query := `
        INSERT INTO geocoding_cache (place_identity, latitude, longitude, display_name)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (place_identity) DO NOTHING`
	if _, err := r.pgpool.Exec(ctx, query, identity, loc.Latitude, loc.Longitude, loc.Label); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return fmt.Errorf("failed to save geocoding cache entry: %w", err)
	}

	r.memCache.Set(identity, loc, cache.DefaultExpiration)
	span.SetStatus(codes.Ok, "saved")
	return nil
}
