package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/go-travel-book/app/observability/metrics"
	"github.com/FACorreiaa/go-travel-book/config"
	"github.com/FACorreiaa/go-travel-book/internal/types"
)

const (
	defaultContactEmail = "travelbook@localhost.local"
	searchMaxRetries    = 3
)

var _ SearchProvider = (*NominatimClient)(nil)

// NominatimClient talks to the Nominatim search API. All calls share one
// token-bucket limiter: the usage policy forbids more than one request per
// minimum interval across the whole process.
type NominatimClient struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	maxRetries int
	retryBase  time.Duration
}

func NewNominatimClient(cfg *config.Config, logger *slog.Logger) *NominatimClient {
	email := os.Getenv("CONTACT_EMAIL")
	if email == "" {
		email = defaultContactEmail
	}
	return &NominatimClient{
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Providers.Nominatim.Timeout},
		baseURL:    strings.TrimRight(cfg.Providers.Nominatim.BaseURL, "/"),
		userAgent:  fmt.Sprintf("TravelBookGenerator/1.0 (%s)", email),
		limiter:    rate.NewLimiter(rate.Every(cfg.Providers.Nominatim.MinInterval), 1),
		maxRetries: searchMaxRetries,
		retryBase:  2 * time.Second,
	}
}

type nominatimResult struct {
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	DisplayName string            `json:"display_name"`
	Importance  float64           `json:"importance"`
	Class       string            `json:"class"`
	Type        string            `json:"type"`
	ExtraTags   map[string]string `json:"extratags"`
}

// Search returns up to limit ranked candidates for a free-text query.
// Transient failures are retried with exponential backoff; exhausting the
// retries returns an error that callers treat as "no match", never as fatal.
func (c *NominatimClient) Search(ctx context.Context, query string, limit int) ([]types.SearchCandidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/search", params)
	if err != nil {
		return nil, err
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to decode nominatim response for %q: %w", query, err)
	}

	candidates := make([]types.SearchCandidate, 0, len(results))
	for _, res := range results {
		lat, latErr := strconv.ParseFloat(res.Lat, 64)
		lon, lonErr := strconv.ParseFloat(res.Lon, 64)
		if latErr != nil || lonErr != nil {
			c.logger.WarnContext(ctx, "Skipping nominatim result with bad coordinates",
				slog.String("query", query), slog.String("lat", res.Lat), slog.String("lon", res.Lon))
			continue
		}
		relevance := res.Importance
		if relevance < 0 {
			relevance = 0
		} else if relevance > 1 {
			relevance = 1
		}
		candidates = append(candidates, types.SearchCandidate{
			Label:     res.DisplayName,
			Latitude:  lat,
			Longitude: lon,
			Relevance: relevance,
			Type:      res.Type,
		})
	}
	return candidates, nil
}

// Facts looks up structured metadata for a place name: its feature type, a
// cuisine tag when present, and the display address. Used as the degraded
// description source when no encyclopedic article can be found.
func (c *NominatimClient) Facts(ctx context.Context, name string) (*types.PlaceFacts, error) {
	params := url.Values{}
	params.Set("q", name)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("addressdetails", "1")
	params.Set("extratags", "1")

	body, err := c.get(ctx, "/search", params)
	if err != nil {
		return nil, err
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to decode nominatim details for %q: %w", name, err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	res := results[0]
	facts := &types.PlaceFacts{
		Category: strings.ReplaceAll(res.Type, "_", " "),
		Address:  res.DisplayName,
	}
	if res.ExtraTags != nil {
		facts.Cuisine = res.ExtraTags["cuisine"]
	}
	return facts, nil
}

func (c *NominatimClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait interrupted: %w", err)
		}
		metrics.Get().ProviderRequestsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("provider", "nominatim")))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build nominatim request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err == nil {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr == nil && resp.StatusCode == http.StatusOK {
				return body, nil
			}
			if resp.StatusCode == http.StatusForbidden {
				// Almost always a blocked User-Agent; retrying will not help much
				// but stays within the bounded policy.
				c.logger.ErrorContext(ctx, "Nominatim returned 403 Forbidden; check CONTACT_EMAIL",
					slog.String("user_agent", c.userAgent))
			}
			lastErr = fmt.Errorf("nominatim returned status %d", resp.StatusCode)
			if readErr != nil {
				lastErr = fmt.Errorf("failed to read nominatim response: %w", readErr)
			}
		} else {
			lastErr = err
		}

		wait := c.retryBase * (1 << attempt)
		c.logger.WarnContext(ctx, "Nominatim request failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.maxRetries),
			slog.Duration("wait", wait),
			slog.Any("error", lastErr),
		)
		if attempt < c.maxRetries {
			time.Sleep(wait)
		}
	}

	metrics.Get().ProviderErrorsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", "nominatim")))
	return nil, fmt.Errorf("nominatim request failed after %d attempts: %w", c.maxRetries, lastErr)
}
