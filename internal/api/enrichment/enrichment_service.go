package enrichment

import (
	"context"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-book/internal/types"
)

const (
	// Article selection distances. A candidate within confidentRadiusMeters of
	// the target point is trusted; the tie-break margin decides between a
	// text-search hit and a merely-nearby coordinate hit.
	confidentRadiusMeters = 2000.0
	tieBreakMarginMeters  = 100.0

	geoSearchRadiusMeters = 1000
	geoSearchLimit        = 10
	textSearchLimit       = 5

	earthRadiusMeters = 6371000.0

	// Description shaping.
	descriptionWordBudget = 50
	partialSentenceRatio  = 0.7

	imageAttribution = "CC BY-SA 3.0, Wikimedia Commons"
)

// KnowledgeSource is the encyclopedic backend: coordinate-radius search,
// fuzzy title search and per-article summaries.
type KnowledgeSource interface {
	NearbyArticles(ctx context.Context, lat, lon float64, radiusMeters, limit int) ([]GeoArticle, error)
	SearchArticles(ctx context.Context, query string, limit int) ([]string, error)
	PageSummary(ctx context.Context, title string) (*PageSummary, error)
}

// FactsProvider is the secondary metadata source used when no article can be
// resolved at all.
type FactsProvider interface {
	Facts(ctx context.Context, name string) (*types.PlaceFacts, error)
}

// Service enriches places with descriptions, native names and images.
type Service interface {
	EnrichPlace(ctx context.Context, name string, coord *types.GeoPoint) (types.KnowledgeRecord, error)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger *slog.Logger
	source KnowledgeSource
	facts  FactsProvider
}

// NewServiceImpl creates the enricher. facts may be nil; the degraded
// metadata path is then skipped and the placeholder used directly.
func NewServiceImpl(source KnowledgeSource, facts FactsProvider, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		source: source,
		facts:  facts,
	}
}

// scoredArticle is one candidate under consideration, with its distance to
// the target point when both sides have coordinates.
type scoredArticle struct {
	summary  *PageSummary
	distance float64 // meters; math.Inf(1) when unknown
	fromText bool
}

// EnrichPlace never fails: every error path degrades to a weaker source and
// ultimately to the placeholder description.
func (s *ServiceImpl) EnrichPlace(ctx context.Context, name string, coord *types.GeoPoint) (types.KnowledgeRecord, error) {
	ctx, span := otel.Tracer("EnrichmentService").Start(ctx, "EnrichPlace", trace.WithAttributes(
		attribute.String("place.name", name),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "EnrichPlace"), slog.String("place", name))

	var chosen *scoredArticle
	if coord != nil {
		chosen = s.selectByCoordinates(ctx, name, *coord)
	}
	if chosen == nil {
		if summary := s.plainLookup(ctx, name); summary != nil {
			chosen = &scoredArticle{summary: summary, distance: math.Inf(1)}
		}
	}

	if chosen == nil {
		l.InfoContext(ctx, "No article found, degrading to metadata description")
		span.SetStatus(codes.Ok, "degraded")
		return s.degradedRecord(ctx, name), nil
	}

	record := buildRecord(chosen.summary)
	if !math.IsInf(chosen.distance, 1) {
		d := chosen.distance
		record.DistanceMeters = &d
	}

	// The lead image is looked up against the canonical title, falling back
	// to a normalized-name search; distance logic does not apply to images.
	if record.ImageURL == nil {
		if imageURL := s.findImage(ctx, chosen.summary.Title, name); imageURL != "" {
			record.ImageURL = &imageURL
			attr := imageAttribution
			record.ImageAttribution = &attr
		}
	}

	span.SetAttributes(attribute.String("article.title", chosen.summary.Title))
	span.SetStatus(codes.Ok, "enriched")
	return record, nil
}

// selectByCoordinates runs the coordinate-radius search and the fuzzy text
// search, scores every candidate by distance to the target, and applies the
// confident-radius and tie-break rules.
func (s *ServiceImpl) selectByCoordinates(ctx context.Context, name string, coord types.GeoPoint) *scoredArticle {
	candidates := make([]scoredArticle, 0, geoSearchLimit+textSearchLimit)

	nearby, err := s.source.NearbyArticles(ctx, coord.Lat, coord.Lon, geoSearchRadiusMeters, geoSearchLimit)
	if err != nil {
		s.logger.WarnContext(ctx, "Coordinate-radius article search failed", slog.Any("error", err))
	}
	for _, article := range nearby {
		summary, err := s.source.PageSummary(ctx, article.Title)
		if err != nil || summary == nil || isDisambiguation(summary.Extract) {
			continue
		}
		candidates = append(candidates, scoredArticle{
			summary:  summary,
			distance: articleDistance(summary, article.DistanceMeters, coord),
			fromText: false,
		})
	}

	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		seen[c.summary.Title] = true
	}
	for _, query := range searchQueries(name) {
		titles, err := s.source.SearchArticles(ctx, query, textSearchLimit)
		if err != nil {
			s.logger.WarnContext(ctx, "Text article search failed",
				slog.String("query", query), slog.Any("error", err))
			continue
		}
		for _, title := range titles {
			if seen[title] {
				continue
			}
			seen[title] = true
			summary, err := s.source.PageSummary(ctx, title)
			if err != nil || summary == nil || isDisambiguation(summary.Extract) {
				continue
			}
			candidates = append(candidates, scoredArticle{
				summary:  summary,
				distance: articleDistance(summary, math.Inf(1), coord),
				fromText: true,
			})
		}
	}

	var closest, confidentGeo, confidentText *scoredArticle
	for i := range candidates {
		c := &candidates[i]
		if closest == nil || c.distance < closest.distance {
			closest = c
		}
		if c.distance >= confidentRadiusMeters {
			continue
		}
		if c.fromText {
			if confidentText == nil || c.distance < confidentText.distance {
				confidentText = c
			}
		} else if confidentGeo == nil || c.distance < confidentGeo.distance {
			confidentGeo = c
		}
	}

	switch {
	case confidentText != nil && (confidentGeo == nil || confidentText.distance <= confidentGeo.distance+tieBreakMarginMeters):
		return confidentText
	case confidentGeo != nil:
		return confidentGeo
	case closest != nil && !math.IsInf(closest.distance, 1):
		// Large-area entities (whole cities) rarely have a sub-2km article;
		// keep the closest thing found and preserve its distance.
		return closest
	default:
		return nil
	}
}

// plainLookup is the no-coordinate fallback: exact title first, then the
// first non-disambiguation search hit.
func (s *ServiceImpl) plainLookup(ctx context.Context, name string) *PageSummary {
	if summary, err := s.source.PageSummary(ctx, name); err == nil && summary != nil &&
		summary.Extract != "" && !isDisambiguation(summary.Extract) {
		return summary
	}

	for _, query := range searchQueries(name) {
		titles, err := s.source.SearchArticles(ctx, query, textSearchLimit)
		if err != nil {
			continue
		}
		for _, title := range titles {
			summary, err := s.source.PageSummary(ctx, title)
			if err == nil && summary != nil && summary.Extract != "" && !isDisambiguation(summary.Extract) {
				return summary
			}
		}
	}
	return nil
}

// searchQueries is the original name plus its normalized variant when they
// differ.
func searchQueries(name string) []string {
	if normalized := normalizeName(name); normalized != name {
		return []string{name, normalized}
	}
	return []string{name}
}

// findImage returns a thumbnail URL for the canonical title, trying the
// normalized name search when the article itself has no lead image.
func (s *ServiceImpl) findImage(ctx context.Context, canonicalTitle, originalName string) string {
	if summary, err := s.source.PageSummary(ctx, canonicalTitle); err == nil && summary != nil && summary.ThumbnailURL != "" {
		return summary.ThumbnailURL
	}
	titles, err := s.source.SearchArticles(ctx, normalizeName(originalName), textSearchLimit)
	if err != nil {
		return ""
	}
	for _, title := range titles {
		if summary, err := s.source.PageSummary(ctx, title); err == nil && summary != nil && summary.ThumbnailURL != "" {
			return summary.ThumbnailURL
		}
	}
	return ""
}

// degradedRecord synthesizes a short description from structured place
// metadata; this path never has an image.
func (s *ServiceImpl) degradedRecord(ctx context.Context, name string) types.KnowledgeRecord {
	record := types.KnowledgeRecord{Description: types.PlaceholderDescription}
	if s.facts == nil {
		return record
	}
	facts, err := s.facts.Facts(ctx, name)
	if err != nil || facts == nil {
		return record
	}
	parts := make([]string, 0, 3)
	if facts.Category != "" {
		parts = append(parts, capitalize(facts.Category))
	}
	if facts.Cuisine != "" {
		parts = append(parts, facts.Cuisine+" cuisine")
	}
	if facts.Address != "" {
		parts = append(parts, facts.Address)
	}
	if len(parts) > 0 {
		record.Description = strings.Join(parts, " • ")
	}
	return record
}

func buildRecord(summary *PageSummary) types.KnowledgeRecord {
	text, nativeName := shapeExtract(summary.Extract)
	record := types.KnowledgeRecord{Description: text}
	if record.Description == "" {
		record.Description = types.PlaceholderDescription
	}
	if nativeName != "" {
		record.NativeName = &nativeName
	}
	if summary.ThumbnailURL != "" {
		url := summary.ThumbnailURL
		attr := imageAttribution
		record.ImageURL = &url
		record.ImageAttribution = &attr
	}
	if summary.FullURL != "" {
		articleURL := summary.FullURL
		record.ArticleURL = &articleURL
	}
	title := summary.Title
	record.ArticleTitle = &title
	return record
}

var (
	citationPattern      = regexp.MustCompile(`\[\d+\]|\[citation needed\]`)
	parentheticalPattern = regexp.MustCompile(`\s*\([^)]*\)`)
	// nativeNamePattern matches "Language: native text" either inside
	// parentheses or comma-joined, e.g. "(French: Tour Eiffel)".
	nativeNamePattern  = regexp.MustCompile(`[(,]\s*([A-Z][a-z]+:\s*[^(),;]+)`)
	sentenceEndPattern = regexp.MustCompile(`([.!?])\s+`)
)

// shapeExtract turns a raw article extract into the final description plus an
// optional native-language name pulled from the opening text.
func shapeExtract(extract string) (description, nativeName string) {
	text := citationPattern.ReplaceAllString(extract, "")

	head := text
	if len(head) > 200 {
		head = head[:200]
	}
	if m := nativeNamePattern.FindStringSubmatch(head); m != nil {
		nativeName = strings.TrimSpace(m[1])
	}

	text = parentheticalPattern.ReplaceAllString(text, "")
	if nativeName != "" {
		// Comma-joined native names survive the parenthetical strip.
		text = strings.Replace(text, nativeName, "", 1)
		text = strings.ReplaceAll(text, ", ,", ",")
	}
	text = strings.Join(strings.Fields(text), " ")

	return limitSentences(text, descriptionWordBudget), nativeName
}

// limitSentences takes complete leading sentences up to the word budget. A
// partial trailing sentence (ellipsis-marked) is appended only when the
// complete sentences already cover at least 70% of the budget; a first
// sentence longer than the whole budget is hard-truncated.
func limitSentences(text string, budget int) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}

	var kept []string
	used := 0
	next := -1
	for i, sentence := range sentences {
		words := len(strings.Fields(sentence))
		if used+words > budget {
			next = i
			break
		}
		kept = append(kept, sentence)
		used += words
	}

	if len(kept) == 0 {
		words := strings.Fields(sentences[0])
		if len(words) <= budget {
			return sentences[0]
		}
		return strings.Join(words[:budget], " ") + "..."
	}
	if next == -1 {
		return strings.Join(kept, " ")
	}

	if float64(used) >= partialSentenceRatio*float64(budget) {
		remaining := budget - used
		words := strings.Fields(sentences[next])
		if remaining > 0 && remaining < len(words) {
			kept = append(kept, strings.Join(words[:remaining], " ")+"...")
		}
	}
	return strings.Join(kept, " ")
}

func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	marked := sentenceEndPattern.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// isDisambiguation detects disambiguation index pages by their boilerplate
// phrasing within the first 200 characters.
func isDisambiguation(extract string) bool {
	head := strings.ToLower(extract)
	if len(head) > 200 {
		head = head[:200]
	}
	return strings.Contains(head, "may refer to:") || strings.Contains(head, "can refer to:")
}

// normalizeName strips a leading article and trailing generic feature words
// so text search matches the canonical article title.
func normalizeName(name string) string {
	n := strings.TrimSpace(name)
	lowered := strings.ToLower(n)
	if strings.HasPrefix(lowered, "the ") {
		n = n[4:]
		lowered = lowered[4:]
	}
	for _, suffix := range []string{" museum", " tower"} {
		if strings.HasSuffix(lowered, suffix) {
			n = strings.TrimSpace(n[:len(n)-len(suffix)])
			break
		}
	}
	return n
}

// articleDistance prefers the article's own published coordinates; the
// geosearch-reported distance is the fallback when the summary has none.
func articleDistance(summary *PageSummary, reported float64, target types.GeoPoint) float64 {
	if summary.Latitude != nil && summary.Longitude != nil {
		return haversineMeters(target.Lat, target.Lon, *summary.Latitude, *summary.Longitude)
	}
	return reported
}

// haversineMeters is the great-circle distance between two points.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
