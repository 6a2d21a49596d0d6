package container

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/go-travel-book/app/db"
	"github.com/FACorreiaa/go-travel-book/config"
	"github.com/FACorreiaa/go-travel-book/internal/api/chat"
	"github.com/FACorreiaa/go-travel-book/internal/api/enrichment"
	generativeAI "github.com/FACorreiaa/go-travel-book/internal/api/generative_ai"
	"github.com/FACorreiaa/go-travel-book/internal/api/geocoding"
	"github.com/FACorreiaa/go-travel-book/internal/api/pipeline"
	"github.com/FACorreiaa/go-travel-book/internal/api/render"
	"github.com/FACorreiaa/go-travel-book/internal/api/routing"
	"github.com/FACorreiaa/go-travel-book/internal/api/trip"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool

	TripHandler      *trip.HandlerImpl
	ChatHandler      *chat.HandlerImpl
	GeocodingHandler *geocoding.HandlerImpl
}

// NewContainer initializes the database pool, external provider clients and
// the full service graph. Set MOCK_GEOCODING=true to serve deterministic fake
// coordinates instead of calling the live geocoding provider.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	aiClient, err := generativeAI.NewAIClient(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}

	nominatim := geocoding.NewNominatimClient(cfg, logger)
	osrm := routing.NewOSRMClient(cfg, logger)
	wikipedia := enrichment.NewWikipediaClient(cfg, logger)

	var searchProvider geocoding.SearchProvider = nominatim
	var factsProvider enrichment.FactsProvider = nominatim
	if os.Getenv("MOCK_GEOCODING") == "true" {
		logger.Warn("MOCK_GEOCODING enabled, serving deterministic fake coordinates")
		searchProvider = geocoding.NewMockSearchProvider(logger)
		factsProvider = nil
	}

	geocodingRepo := geocoding.NewPostgresGeocodingRepository(pool, logger)
	variantSuggester := geocoding.NewLLMVariantSuggester(aiClient, logger)
	geocodingService := geocoding.NewServiceImpl(geocodingRepo, searchProvider, variantSuggester, logger)

	routingService := routing.NewServiceImpl(osrm, logger)
	enrichmentService := enrichment.NewServiceImpl(wikipedia, factsProvider, logger)

	chromium := render.NewChromiumRenderer(cfg, logger)
	renderService, err := render.NewServiceImpl(chromium, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	tripRepo := trip.NewPostgresTripRepository(pool, logger)
	pipelineService := pipeline.NewServiceImpl(
		tripRepo, geocodingService, routingService, enrichmentService, renderService, cfg, logger)
	tripService := trip.NewServiceImpl(tripRepo, pipelineService, logger)

	chatRepo := chat.NewPostgresChatRepository(pool, logger)
	chatService := chat.NewServiceImpl(chatRepo, tripRepo, aiClient, pipelineService, logger)

	return &Container{
		Config:           cfg,
		Logger:           logger,
		Pool:             pool,
		TripHandler:      trip.NewHandlerImpl(tripService, logger),
		ChatHandler:      chat.NewHandlerImpl(chatService, logger),
		GeocodingHandler: geocoding.NewHandlerImpl(geocodingService, logger),
	}, nil
}

// Close releases all resources held by the container.
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready.
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}
