package routing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-book/internal/types"
)

// RouteProvider is the routing engine surface.
type RouteProvider interface {
	Route(ctx context.Context, waypoints []types.GeoPoint) (*types.RouteResult, error)
}

// Service computes per-day walking/driving routes between resolved waypoints.
type Service interface {
	ComputeDayRoute(ctx context.Context, waypoints []types.GeoPoint) (*types.RouteResult, error)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger   *slog.Logger
	provider RouteProvider
}

func NewServiceImpl(provider RouteProvider, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{logger: logger, provider: provider}
}

// ComputeDayRoute returns the route through the day's waypoints in itinerary
// order. Days with fewer than two resolvable waypoints have no route and
// never reach the routing engine. A provider failure degrades to a nil route:
// the trip still renders, just without route lines for that day.
func (s *ServiceImpl) ComputeDayRoute(ctx context.Context, waypoints []types.GeoPoint) (*types.RouteResult, error) {
	ctx, span := otel.Tracer("RoutingService").Start(ctx, "ComputeDayRoute", trace.WithAttributes(
		attribute.Int("route.waypoints", len(waypoints)),
	))
	defer span.End()

	if len(waypoints) < 2 {
		span.SetStatus(codes.Ok, "not enough waypoints")
		return nil, nil
	}

	result, err := s.provider.Route(ctx, waypoints)
	if err != nil {
		s.logger.WarnContext(ctx, "Route computation failed, continuing without route",
			slog.Int("waypoints", len(waypoints)), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Ok, "provider failure degraded to nil route")
		return nil, nil
	}
	if result == nil {
		span.SetStatus(codes.Ok, "no routable path")
		return nil, nil
	}

	span.SetAttributes(
		attribute.Float64("route.distance_m", result.DistanceMeters),
		attribute.Float64("route.duration_s", result.DurationSeconds),
	)
	span.SetStatus(codes.Ok, "route computed")
	return result, nil
}
