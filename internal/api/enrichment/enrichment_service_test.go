package enrichment

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-travel-book/app/observability/metrics"
	"github.com/FACorreiaa/go-travel-book/internal/types"
)

func TestMain(m *testing.M) {
	metrics.InitAppMetrics()
	os.Exit(m.Run())
}

type MockKnowledgeSource struct {
	mock.Mock
}

func (m *MockKnowledgeSource) NearbyArticles(ctx context.Context, lat, lon float64, radiusMeters, limit int) ([]GeoArticle, error) {
	args := m.Called(ctx, lat, lon, radiusMeters, limit)
	articles, _ := args.Get(0).([]GeoArticle)
	return articles, args.Error(1)
}

func (m *MockKnowledgeSource) SearchArticles(ctx context.Context, query string, limit int) ([]string, error) {
	args := m.Called(ctx, query, limit)
	titles, _ := args.Get(0).([]string)
	return titles, args.Error(1)
}

func (m *MockKnowledgeSource) PageSummary(ctx context.Context, title string) (*PageSummary, error) {
	args := m.Called(ctx, title)
	summary, _ := args.Get(0).(*PageSummary)
	return summary, args.Error(1)
}

type MockFactsProvider struct {
	mock.Mock
}

func (m *MockFactsProvider) Facts(ctx context.Context, name string) (*types.PlaceFacts, error) {
	args := m.Called(ctx, name)
	facts, _ := args.Get(0).(*types.PlaceFacts)
	return facts, args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func floatPtr(f float64) *float64 { return &f }

func TestEnrichPlace_DisambiguationPagesAreNeverSelected(t *testing.T) {
	source := new(MockKnowledgeSource)
	svc := NewServiceImpl(source, nil, testLogger())

	source.On("NearbyArticles", mock.Anything, 48.85, 2.29, geoSearchRadiusMeters, geoSearchLimit).
		Return([]GeoArticle{{Title: "Mercury", DistanceMeters: 120}}, nil)
	source.On("PageSummary", mock.Anything, "Mercury").
		Return(&PageSummary{Title: "Mercury", Extract: "Mercury may refer to: the planet, the element, the Roman god."}, nil)
	source.On("SearchArticles", mock.Anything, mock.Anything, textSearchLimit).Return([]string{}, nil)

	record, err := svc.EnrichPlace(context.Background(), "Mercury", &types.GeoPoint{Lat: 48.85, Lon: 2.29})
	require.NoError(t, err)
	assert.Equal(t, types.PlaceholderDescription, record.Description)
	assert.NotContains(t, record.Description, "may refer to")
	assert.Nil(t, record.ImageURL)
}

func TestEnrichPlace_TextCandidateWinsTieBreak(t *testing.T) {
	source := new(MockKnowledgeSource)
	svc := NewServiceImpl(source, nil, testLogger())

	target := types.GeoPoint{Lat: 0, Lon: 0}
	// ~450 m north of the target.
	textLat := 450.0 / (math.Pi * earthRadiusMeters / 180)

	// Coordinate search finds something 500 m away with no published coords.
	source.On("NearbyArticles", mock.Anything, 0.0, 0.0, geoSearchRadiusMeters, geoSearchLimit).
		Return([]GeoArticle{{Title: "Nearby Thing", DistanceMeters: 500}}, nil)
	source.On("PageSummary", mock.Anything, "Nearby Thing").
		Return(&PageSummary{Title: "Nearby Thing", Extract: "Some nearby landmark."}, nil)

	source.On("SearchArticles", mock.Anything, "Old Fort", textSearchLimit).
		Return([]string{"Old Fort"}, nil)
	source.On("PageSummary", mock.Anything, "Old Fort").
		Return(&PageSummary{
			Title:        "Old Fort",
			Extract:      "Old Fort is a historic fortification.",
			Latitude:     floatPtr(textLat),
			Longitude:    floatPtr(0),
			ThumbnailURL: "https://img.example/fort.jpg",
			FullURL:      "https://en.wikipedia.org/wiki/Old_Fort",
		}, nil)

	record, err := svc.EnrichPlace(context.Background(), "Old Fort", &target)
	require.NoError(t, err)
	require.NotNil(t, record.ArticleTitle)
	assert.Equal(t, "Old Fort", *record.ArticleTitle)
	require.NotNil(t, record.DistanceMeters)
	assert.InDelta(t, 450, *record.DistanceMeters, 1)
	require.NotNil(t, record.ImageAttribution)
	assert.Equal(t, imageAttribution, *record.ImageAttribution)
}

func TestEnrichPlace_ClosestFallbackBeyondConfidentRadius(t *testing.T) {
	source := new(MockKnowledgeSource)
	svc := NewServiceImpl(source, nil, testLogger())

	// Whole-city article 5 km out; nothing within 2 km.
	source.On("NearbyArticles", mock.Anything, 35.0, 135.0, geoSearchRadiusMeters, geoSearchLimit).
		Return([]GeoArticle{{Title: "Kyoto", DistanceMeters: 5000}}, nil)
	source.On("PageSummary", mock.Anything, "Kyoto").
		Return(&PageSummary{Title: "Kyoto", Extract: "Kyoto is a city in Japan.", FullURL: "https://en.wikipedia.org/wiki/Kyoto"}, nil)
	source.On("SearchArticles", mock.Anything, mock.Anything, textSearchLimit).Return([]string{}, nil)

	record, err := svc.EnrichPlace(context.Background(), "Kyoto", &types.GeoPoint{Lat: 35.0, Lon: 135.0})
	require.NoError(t, err)
	require.NotNil(t, record.ArticleTitle)
	assert.Equal(t, "Kyoto", *record.ArticleTitle)
	require.NotNil(t, record.DistanceMeters)
	assert.InDelta(t, 5000, *record.DistanceMeters, 1)
}

func TestEnrichPlace_NoCoordinatesNoCandidatesYieldsPlaceholder(t *testing.T) {
	source := new(MockKnowledgeSource)
	svc := NewServiceImpl(source, nil, testLogger())

	source.On("PageSummary", mock.Anything, mock.Anything).Return(nil, nil)
	source.On("SearchArticles", mock.Anything, mock.Anything, textSearchLimit).Return([]string{}, nil)

	record, err := svc.EnrichPlace(context.Background(), "Totally Unknown Cafe", nil)
	require.NoError(t, err)
	assert.Equal(t, types.PlaceholderDescription, record.Description)
	assert.Nil(t, record.ImageURL)
	assert.Nil(t, record.NativeName)
}

func TestEnrichPlace_DegradedMetadataDescription(t *testing.T) {
	source := new(MockKnowledgeSource)
	facts := new(MockFactsProvider)
	svc := NewServiceImpl(source, facts, testLogger())

	source.On("PageSummary", mock.Anything, mock.Anything).Return(nil, nil)
	source.On("SearchArticles", mock.Anything, mock.Anything, textSearchLimit).Return([]string{}, nil)
	facts.On("Facts", mock.Anything, "Bar do Chico").
		Return(&types.PlaceFacts{Category: "restaurant", Cuisine: "brazilian", Address: "Rua Augusta 12, Lisbon"}, nil)

	record, err := svc.EnrichPlace(context.Background(), "Bar do Chico", nil)
	require.NoError(t, err)
	assert.Equal(t, "Restaurant • brazilian cuisine • Rua Augusta 12, Lisbon", record.Description)
	assert.Nil(t, record.ImageURL)
}

func TestShapeExtract_NativeNamePulledOut(t *testing.T) {
	extract := "The Eiffel Tower (French: Tour Eiffel) is a wrought-iron lattice tower in Paris. It was built in 1889."
	description, nativeName := shapeExtract(extract)
	assert.Equal(t, "French: Tour Eiffel", nativeName)
	assert.NotContains(t, description, "Tour Eiffel")
	assert.Contains(t, description, "wrought-iron lattice tower")
}

func TestLimitSentences(t *testing.T) {
	t.Run("complete sentences under budget", func(t *testing.T) {
		text := "One two three. Four five six."
		assert.Equal(t, text, limitSentences(text, 50))
	})

	t.Run("partial sentence appended above seventy percent", func(t *testing.T) {
		// 8 complete words against a budget of 10 (80% >= 70%); the next
		// sentence is truncated to the 2 remaining words.
		text := "Alpha beta gamma delta epsilon zeta eta theta. Iota kappa lambda mu nu."
		got := limitSentences(text, 10)
		assert.Equal(t, "Alpha beta gamma delta epsilon zeta eta theta. Iota kappa...", got)
	})

	t.Run("no partial below seventy percent", func(t *testing.T) {
		// 5 complete words against a budget of 10 (50% < 70%).
		text := "Alpha beta gamma delta epsilon. Zeta eta theta iota kappa lambda mu."
		got := limitSentences(text, 10)
		assert.Equal(t, "Alpha beta gamma delta epsilon.", got)
	})

	t.Run("oversized first sentence hard-truncated", func(t *testing.T) {
		words := make([]string, 60)
		for i := range words {
			words[i] = "word"
		}
		got := limitSentences(strings.Join(words, " ")+".", 50)
		assert.Equal(t, 50, len(strings.Fields(got)))
		assert.True(t, strings.HasSuffix(got, "..."))
	})
}

func TestIsDisambiguation(t *testing.T) {
	assert.True(t, isDisambiguation("Foo may refer to: several things."))
	assert.True(t, isDisambiguation("Bar can refer to: other things."))
	assert.False(t, isDisambiguation("A perfectly normal article about a place."))
	// The phrase only counts within the first 200 characters.
	padding := strings.Repeat("x", 250)
	assert.False(t, isDisambiguation(padding+" may refer to: something"))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "British", normalizeName("The British Museum"))
	assert.Equal(t, "Eiffel", normalizeName("Eiffel Tower"))
	assert.Equal(t, "Louvre", normalizeName("Louvre"))
}

func TestHaversineMeters(t *testing.T) {
	// Paris to London is roughly 344 km.
	d := haversineMeters(48.8566, 2.3522, 51.5074, -0.1278)
	assert.InDelta(t, 344000, d, 5000)
	assert.Zero(t, haversineMeters(10, 20, 10, 20))
}
