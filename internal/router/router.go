package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/FACorreiaa/go-travel-book/internal/api/chat"
	"github.com/FACorreiaa/go-travel-book/internal/api/geocoding"
	"github.com/FACorreiaa/go-travel-book/internal/api/trip"
)

// Config contains the handlers the router wires up. Server-wide middleware
// (request id, logger, recoverer) is applied in main before mounting.
type Config struct {
	TripHandler      *trip.HandlerImpl
	ChatHandler      *chat.HandlerImpl
	GeocodingHandler *geocoding.HandlerImpl
}

// SetupRouter builds the API route tree.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/trips", func(r chi.Router) {
			r.Post("/", cfg.TripHandler.CreateTrip)
			r.Get("/{tripID}", cfg.TripHandler.GetTrip)
			r.Post("/{tripID}/confirm", cfg.TripHandler.ConfirmTrip)
			r.Get("/{tripID}/download", cfg.TripHandler.DownloadDocument)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Post("/", cfg.ChatHandler.SendMessage)
			r.Get("/{sessionID}", cfg.ChatHandler.GetSession)
			r.Post("/{sessionID}/finalize", cfg.ChatHandler.Finalize)
		})

		r.Get("/geocode/preview", cfg.GeocodingHandler.Preview)
	})

	return r
}
