package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-travel-book/app/observability/metrics"
	"github.com/FACorreiaa/go-travel-book/config"
	"github.com/FACorreiaa/go-travel-book/internal/types"
)

var _ RouteProvider = (*OSRMClient)(nil)

// OSRMClient queries the OSRM routing engine over HTTP. The circuit breaker
// keeps a flapping routing backend from stalling pipeline runs: while open,
// calls fail fast and days simply render without a route.
type OSRMClient struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker[*types.RouteResult]
}

func NewOSRMClient(cfg *config.Config, logger *slog.Logger) *OSRMClient {
	settings := gobreaker.Settings{
		Name:    "osrm",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("OSRM circuit breaker state change",
				slog.String("from", from.String()), slog.String("to", to.String()))
		},
	}
	return &OSRMClient{
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Providers.OSRM.Timeout},
		baseURL:    strings.TrimRight(cfg.Providers.OSRM.BaseURL, "/"),
		breaker:    gobreaker.NewCircuitBreaker[*types.RouteResult](settings),
	}
}

// osrmResponse mirrors the subset of the OSRM /route response we consume.
type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64         `json:"distance"`
		Duration float64         `json:"duration"`
		Geometry json.RawMessage `json:"geometry"`
		Legs     []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

// Route computes a driving route through the waypoints in order. Returns
// (nil, nil) when the engine reports it cannot route between the points;
// errors are transport-level failures only.
func (c *OSRMClient) Route(ctx context.Context, waypoints []types.GeoPoint) (*types.RouteResult, error) {
	return c.breaker.Execute(func() (*types.RouteResult, error) {
		return c.route(ctx, waypoints)
	})
}

func (c *OSRMClient) route(ctx context.Context, waypoints []types.GeoPoint) (*types.RouteResult, error) {
	coords := make([]string, len(waypoints))
	for i, p := range waypoints {
		// OSRM wants longitude first.
		coords[i] = strconv.FormatFloat(p.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
	}
	url := fmt.Sprintf("%s/route/v1/driving/%s?overview=full&geometries=geojson&steps=false",
		c.baseURL, strings.Join(coords, ";"))

	metrics.Get().ProviderRequestsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", "osrm")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build osrm request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.countError(ctx)
		return nil, fmt.Errorf("osrm request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.countError(ctx)
		return nil, fmt.Errorf("failed to read osrm response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		// OSRM reports "no route" errors with a 400 and a code field; anything
		// else is a backend failure.
		c.countError(ctx)
		return nil, fmt.Errorf("osrm returned status %d", resp.StatusCode)
	}

	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.countError(ctx)
		return nil, fmt.Errorf("failed to decode osrm response: %w", err)
	}
	if parsed.Code != "Ok" || len(parsed.Routes) == 0 {
		c.logger.WarnContext(ctx, "OSRM could not route between waypoints",
			slog.String("code", parsed.Code), slog.Int("waypoints", len(waypoints)))
		return nil, nil
	}

	route := parsed.Routes[0]
	result := &types.RouteResult{
		DistanceMeters:  route.Distance,
		DurationSeconds: route.Duration,
		Geometry:        route.Geometry,
		Legs:            make([]types.RouteLeg, 0, len(route.Legs)),
	}
	for i, leg := range route.Legs {
		result.Legs = append(result.Legs, types.RouteLeg{
			FromIndex:       i,
			ToIndex:         i + 1,
			DistanceMeters:  leg.Distance,
			DurationSeconds: leg.Duration,
		})
	}
	return result, nil
}

func (c *OSRMClient) countError(ctx context.Context) {
	metrics.Get().ProviderErrorsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", "osrm")))
}
