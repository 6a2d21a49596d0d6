package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/go-travel-book/app/observability/metrics"
	"github.com/FACorreiaa/go-travel-book/config"
)

const wikiMaxRetries = 3

// GeoArticle is one article returned by a coordinate-radius search.
type GeoArticle struct {
	Title          string
	Latitude       float64
	Longitude      float64
	DistanceMeters float64
}

// PageSummary is the intro content of one article.
type PageSummary struct {
	Title        string
	Extract      string
	Latitude     *float64
	Longitude    *float64
	ThumbnailURL string
	FullURL      string
}

var _ KnowledgeSource = (*WikipediaClient)(nil)

// WikipediaClient wraps the MediaWiki action API. Like the geocoding client
// it throttles globally and retries 429s with backoff.
type WikipediaClient struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	maxRetries int
	retryBase  time.Duration
}

func NewWikipediaClient(cfg *config.Config, logger *slog.Logger) *WikipediaClient {
	return &WikipediaClient{
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Providers.Wikipedia.Timeout},
		baseURL:    strings.TrimRight(cfg.Providers.Wikipedia.BaseURL, "/"),
		limiter:    rate.NewLimiter(rate.Every(cfg.Providers.Wikipedia.MinInterval), 1),
		maxRetries: wikiMaxRetries,
		retryBase:  time.Second,
	}
}

// NearbyArticles lists articles with coordinates within radiusMeters of the
// given point, nearest first.
func (c *WikipediaClient) NearbyArticles(ctx context.Context, lat, lon float64, radiusMeters, limit int) ([]GeoArticle, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "geosearch")
	params.Set("gscoord", fmt.Sprintf("%f|%f", lat, lon))
	params.Set("gsradius", strconv.Itoa(radiusMeters))
	params.Set("gslimit", strconv.Itoa(limit))
	params.Set("format", "json")

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Query struct {
			GeoSearch []struct {
				Title string  `json:"title"`
				Lat   float64 `json:"lat"`
				Lon   float64 `json:"lon"`
				Dist  float64 `json:"dist"`
			} `json:"geosearch"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode geosearch response: %w", err)
	}

	articles := make([]GeoArticle, 0, len(parsed.Query.GeoSearch))
	for _, g := range parsed.Query.GeoSearch {
		articles = append(articles, GeoArticle{
			Title:          g.Title,
			Latitude:       g.Lat,
			Longitude:      g.Lon,
			DistanceMeters: g.Dist,
		})
	}
	return articles, nil
}

// SearchArticles returns article titles matching a free-text query.
func (c *WikipediaClient) SearchArticles(ctx context.Context, query string, limit int) ([]string, error) {
	params := url.Values{}
	params.Set("action", "opensearch")
	params.Set("search", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("format", "json")

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	// The opensearch payload is a positional array:
	// [query, [titles...], [descriptions...], [urls...]]
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return nil, fmt.Errorf("failed to decode opensearch response: %w", err)
	}
	if len(parts) < 2 {
		return nil, nil
	}
	var titles []string
	if err := json.Unmarshal(parts[1], &titles); err != nil {
		return nil, fmt.Errorf("failed to decode opensearch titles: %w", err)
	}
	return titles, nil
}

// PageSummary fetches the intro extract, coordinates, lead image and
// canonical URL of one article. Returns (nil, nil) when the title does not
// exist.
func (c *WikipediaClient) PageSummary(ctx context.Context, title string) (*PageSummary, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts|coordinates|pageimages|info")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("inprop", "url")
	params.Set("pithumbsize", "800")
	params.Set("redirects", "1")
	params.Set("titles", title)
	params.Set("format", "json")

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Query struct {
			Pages map[string]struct {
				PageID      int64  `json:"pageid"`
				Title       string `json:"title"`
				Extract     string `json:"extract"`
				FullURL     string `json:"fullurl"`
				Coordinates []struct {
					Lat float64 `json:"lat"`
					Lon float64 `json:"lon"`
				} `json:"coordinates"`
				Thumbnail struct {
					Source string `json:"source"`
				} `json:"thumbnail"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode page summary response: %w", err)
	}

	for key, page := range parsed.Query.Pages {
		if key == "-1" || page.PageID == 0 {
			continue
		}
		summary := &PageSummary{
			Title:        page.Title,
			Extract:      page.Extract,
			ThumbnailURL: page.Thumbnail.Source,
			FullURL:      page.FullURL,
		}
		if len(page.Coordinates) > 0 {
			lat, lon := page.Coordinates[0].Lat, page.Coordinates[0].Lon
			summary.Latitude = &lat
			summary.Longitude = &lon
		}
		return summary, nil
	}
	return nil, nil
}

func (c *WikipediaClient) get(ctx context.Context, params url.Values) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait interrupted: %w", err)
		}
		metrics.Get().ProviderRequestsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("provider", "wikipedia")))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build wikipedia request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err == nil {
			body, readErr := resp2body(resp)
			if readErr == nil && resp.StatusCode == http.StatusOK {
				return body, nil
			}
			lastErr = fmt.Errorf("wikipedia returned status %d", resp.StatusCode)
			if readErr != nil {
				lastErr = fmt.Errorf("failed to read wikipedia response: %w", readErr)
			}
			if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
				break
			}
		} else {
			lastErr = err
		}

		wait := c.retryBase * (1 << attempt)
		c.logger.WarnContext(ctx, "Wikipedia request failed, retrying",
			slog.Int("attempt", attempt), slog.Duration("wait", wait), slog.Any("error", lastErr))
		if attempt < c.maxRetries {
			time.Sleep(wait)
		}
	}

	metrics.Get().ProviderErrorsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", "wikipedia")))
	return nil, fmt.Errorf("wikipedia request failed: %w", lastErr)
}

func resp2body(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
