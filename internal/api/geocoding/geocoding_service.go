package geocoding

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-book/app/observability/metrics"
	"github.com/FACorreiaa/go-travel-book/internal/types"
)

// Confidence tiers and score contributions. A candidate's score is the sum of
// the name/city/country bonuses plus the provider relevance scaled by
// relevanceWeight.
const (
	highConfidenceScore   = 60.0
	mediumConfidenceScore = 40.0
	lowConfidenceScore    = 20.0

	nameExactBonus   = 50.0
	namePartialBonus = 25.0
	cityHintBonus    = 20.0
	countryHintBonus = 20.0
	relevanceWeight  = 10.0

	// partialWordMinLen is the shortest name word that counts toward a
	// partial match; anything shorter is too noisy ("the", "de", "of").
	partialWordMinLen = 3

	maxSearchResults = 5
	maxNameVariants  = 3
)

// localityPattern captures the trailing locality of phrases like
// "hotel near Shibuya Station" or "guesthouse in Alfama".
var localityPattern = regexp.MustCompile(`(?i)\b(?:near|in|at|by)\s+(.+)$`)

// SearchProvider is the forward-geocoding search surface the resolver scores
// against.
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]types.SearchCandidate, error)
}

// VariantSuggester proposes alternate names for a place that failed to
// geocode (official names, local-language names, common aliases).
type VariantSuggester interface {
	SuggestNameVariants(ctx context.Context, place, city, country string) ([]string, error)
}

// Service resolves place names to coordinates through the cache, the search
// provider and the scoring tiers.
type Service interface {
	Resolve(ctx context.Context, name, cityHint, countryHint string) (*types.GeocodedLocation, error)
	ResolveLodging(ctx context.Context, name, cityHint, countryHint string) (*types.GeocodedLocation, error)
	Preview(ctx context.Context, query string, limit int) ([]types.SearchCandidate, error)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger   *slog.Logger
	repo     Repository
	search   SearchProvider
	variants VariantSuggester
}

// NewServiceImpl creates the resolver. variants may be nil when no language
// model is configured; the variant retry step is then skipped.
func NewServiceImpl(repo Repository, search SearchProvider, variants VariantSuggester, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		repo:     repo,
		search:   search,
		variants: variants,
	}
}

// PlaceIdentity builds the composite cache key for a place: the name joined
// with whichever hints are present, in "name, city, country" order.
func PlaceIdentity(name, city, country string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{name, city, country} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, ", ")
}

// Resolve maps one place name (plus optional city/country hints) to
// coordinates. Returns (nil, nil) when no candidate clears the lowest
// confidence tier; errors are reserved for infrastructure failures.
func (s *ServiceImpl) Resolve(ctx context.Context, name, cityHint, countryHint string) (*types.GeocodedLocation, error) {
	ctx, span := otel.Tracer("GeocodingService").Start(ctx, "Resolve", trace.WithAttributes(
		attribute.String("geocode.name", name),
		attribute.String("geocode.city", cityHint),
		attribute.String("geocode.country", countryHint),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Resolve"), slog.String("place", name))

	identity := PlaceIdentity(name, cityHint, countryHint)
	hasHints := cityHint != "" || countryHint != ""

	// Exact composite-key cache hit.
	if loc, err := s.repo.GetByIdentity(ctx, identity); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cache lookup failed")
		return nil, err
	} else if loc != nil {
		metrics.Get().GeocodeCacheHitsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("key", "composite")))
		span.SetStatus(codes.Ok, "cache hit")
		return loc, nil
	}

	// A bare-name entry may have been cached by an earlier hint-less run. It
	// is only trustworthy under hints when its label confirms both of them.
	if identity != name {
		bare, err := s.repo.GetByIdentity(ctx, name)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cache lookup failed")
			return nil, err
		}
		if bare != nil && (!hasHints || labelConfirmsHints(bare.Label, cityHint, countryHint)) {
			metrics.Get().GeocodeCacheHitsTotal.Add(ctx, 1,
				metric.WithAttributes(attribute.String("key", "bare_name")))
			span.SetStatus(codes.Ok, "bare-name cache hit")
			return bare, nil
		}
	}

	best, bestScore := s.searchAndScore(ctx, identity, name, cityHint, countryHint)

	if bestScore >= highConfidenceScore {
		return s.accept(ctx, span, identity, best, bestScore, "high")
	}

	// Hinted queries sometimes over-constrain the search; retry on the bare
	// name and keep the new result only when it strictly improves the score.
	if hasHints && identity != name {
		if cand, score := s.searchAndScore(ctx, name, name, cityHint, countryHint); score > bestScore {
			best, bestScore = cand, score
		}
		if bestScore >= highConfidenceScore {
			return s.accept(ctx, span, identity, best, bestScore, "high")
		}
	}

	if bestScore >= mediumConfidenceScore {
		return s.accept(ctx, span, identity, best, bestScore, "medium")
	}

	// Below the medium tier with hints available: ask for alternate names and
	// re-run the search for each, stopping at the first high-confidence hit.
	if hasHints && s.variants != nil {
		variants, err := s.variants.SuggestNameVariants(ctx, name, cityHint, countryHint)
		if err != nil {
			l.WarnContext(ctx, "Name variant suggestion failed, continuing without variants", slog.Any("error", err))
		}
		if len(variants) > maxNameVariants {
			variants = variants[:maxNameVariants]
		}
		for _, variant := range variants {
			variant = strings.TrimSpace(variant)
			if variant == "" || strings.EqualFold(variant, name) {
				continue
			}
			cand, score := s.searchAndScore(ctx, PlaceIdentity(variant, cityHint, countryHint), variant, cityHint, countryHint)
			if score >= highConfidenceScore {
				return s.accept(ctx, span, identity, cand, score, "variant")
			}
			if score > bestScore {
				best, bestScore = cand, score
			}
		}
	}

	if bestScore >= lowConfidenceScore {
		metrics.Get().GeocodeLowConfidenceHits.Add(ctx, 1)
		l.WarnContext(ctx, "Accepting low-confidence geocoding match",
			slog.Float64("score", bestScore), slog.String("label", best.Label))
		return s.accept(ctx, span, identity, best, bestScore, "low")
	}

	l.WarnContext(ctx, "Place could not be geocoded", slog.Float64("best_score", bestScore))
	span.SetStatus(codes.Ok, "not found")
	return nil, nil
}

// ResolveLodging resolves a lodging name like Resolve does, but falls back to
// an approximate neighborhood coordinate when the full name cannot be found:
// a trailing "near/in/at/by <locality>" phrase, or the day city. The fallback
// is cached under the original key so later runs skip the whole dance.
func (s *ServiceImpl) ResolveLodging(ctx context.Context, name, cityHint, countryHint string) (*types.GeocodedLocation, error) {
	loc, err := s.Resolve(ctx, name, cityHint, countryHint)
	if err != nil || loc != nil {
		return loc, err
	}

	ctx, span := otel.Tracer("GeocodingService").Start(ctx, "ResolveLodging.fallback")
	defer span.End()

	fallbackQuery := ""
	if m := localityPattern.FindStringSubmatch(name); m != nil {
		fallbackQuery = PlaceIdentity(strings.TrimSpace(m[1]), cityHint, countryHint)
	} else if cityHint != "" {
		fallbackQuery = PlaceIdentity(cityHint, "", countryHint)
	}
	if fallbackQuery == "" {
		span.SetStatus(codes.Ok, "no fallback available")
		return nil, nil
	}

	candidates, err := s.search.Search(ctx, fallbackQuery, 1)
	if err != nil {
		s.logger.WarnContext(ctx, "Approximate lodging search failed",
			slog.String("query", fallbackQuery), slog.Any("error", err))
		span.SetStatus(codes.Ok, "fallback search failed")
		return nil, nil
	}
	if len(candidates) == 0 {
		span.SetStatus(codes.Ok, "no fallback candidates")
		return nil, nil
	}

	approx := types.GeocodedLocation{
		Latitude:  candidates[0].Latitude,
		Longitude: candidates[0].Longitude,
		Label:     candidates[0].Label + " (approximate)",
	}
	identity := PlaceIdentity(name, cityHint, countryHint)
	if err := s.repo.Save(ctx, identity, approx); err != nil {
		s.logger.WarnContext(ctx, "Failed to cache approximate lodging location", slog.Any("error", err))
	}
	s.logger.InfoContext(ctx, "Resolved lodging to approximate area coordinates",
		slog.String("place", name), slog.String("label", approx.Label))
	span.SetStatus(codes.Ok, "approximate match")
	return &approx, nil
}

// Preview runs a raw provider search without caching or scoring; it backs the
// interactive geocode preview endpoint.
func (s *ServiceImpl) Preview(ctx context.Context, query string, limit int) ([]types.SearchCandidate, error) {
	ctx, span := otel.Tracer("GeocodingService").Start(ctx, "Preview")
	defer span.End()

	if limit <= 0 || limit > 10 {
		limit = maxSearchResults
	}
	candidates, err := s.search.Search(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, fmt.Errorf("geocode preview search failed: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return candidates, nil
}

// searchAndScore runs one provider search and returns the best
// country-validated candidate with its score. Provider failures degrade to a
// zero score; the resolver's contract is "not found", never "crashed".
func (s *ServiceImpl) searchAndScore(ctx context.Context, query, name, cityHint, countryHint string) (types.SearchCandidate, float64) {
	candidates, err := s.search.Search(ctx, query, maxSearchResults)
	if err != nil {
		s.logger.WarnContext(ctx, "Geocoding search failed",
			slog.String("query", query), slog.Any("error", err))
		return types.SearchCandidate{}, 0
	}

	var best types.SearchCandidate
	bestScore := 0.0
	for _, cand := range candidates {
		if !countryMatches(cand.Label, countryHint) {
			continue
		}
		if score := scoreCandidate(cand, name, cityHint, countryHint); score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best, bestScore
}

func (s *ServiceImpl) accept(ctx context.Context, span trace.Span, identity string, cand types.SearchCandidate, score float64, tier string) (*types.GeocodedLocation, error) {
	loc := types.GeocodedLocation{
		Latitude:  cand.Latitude,
		Longitude: cand.Longitude,
		Label:     cand.Label,
	}
	if err := s.repo.Save(ctx, identity, loc); err != nil {
		// A cache write failure must not lose a resolved coordinate.
		s.logger.WarnContext(ctx, "Failed to cache geocoded location",
			slog.String("identity", identity), slog.Any("error", err))
	}
	span.SetAttributes(
		attribute.Float64("geocode.score", score),
		attribute.String("geocode.tier", tier),
	)
	span.SetStatus(codes.Ok, "resolved")
	return &loc, nil
}

// scoreCandidate computes the match score of one candidate against the place
// name and hints.
func scoreCandidate(cand types.SearchCandidate, name, cityHint, countryHint string) float64 {
	label := strings.ToLower(cand.Label)
	score := 0.0

	loweredName := strings.ToLower(strings.TrimSpace(name))
	if loweredName != "" && strings.Contains(label, loweredName) {
		score += nameExactBonus
	} else {
		for _, word := range strings.Fields(loweredName) {
			if len(word) > partialWordMinLen && strings.Contains(label, word) {
				score += namePartialBonus
				break
			}
		}
	}

	if cityHint != "" && strings.Contains(label, strings.ToLower(cityHint)) {
		score += cityHintBonus
	}
	if countryHint != "" && strings.Contains(label, strings.ToLower(countryHint)) {
		score += countryHintBonus
	}

	relevance := cand.Relevance
	if relevance < 0 {
		relevance = 0
	} else if relevance > 1 {
		relevance = 1
	}
	return score + relevance*relevanceWeight
}

// countryMatches guards against a same-named place in the wrong country: with
// a country hint set, the candidate label must mention it.
func countryMatches(label, countryHint string) bool {
	if countryHint == "" {
		return true
	}
	return strings.Contains(strings.ToLower(label), strings.ToLower(countryHint))
}

func labelConfirmsHints(label, cityHint, countryHint string) bool {
	lowered := strings.ToLower(label)
	if cityHint != "" && !strings.Contains(lowered, strings.ToLower(cityHint)) {
		return false
	}
	if countryHint != "" && !strings.Contains(lowered, strings.ToLower(countryHint)) {
		return false
	}
	return true
}
