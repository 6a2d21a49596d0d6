package geocoding

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/FACorreiaa/go-travel-book/internal/api"
	"github.com/FACorreiaa/go-travel-book/internal/types"
)

type HandlerImpl struct {
	geocodingService Service
	logger           *slog.Logger
}

func NewHandlerImpl(geocodingService Service, logger *slog.Logger) *HandlerImpl {
	instanceLogger := logger.With(slog.String("correlationID", "HANDLER"), slog.String("handler", "geocoding"))
	return &HandlerImpl{
		geocodingService: geocodingService,
		logger:           instanceLogger,
	}
}

// Preview handles GET /geocode/preview?q=...&limit=... and returns raw
// ranked search candidates so a client can let the user pick before a trip
// is created.
func (h *HandlerImpl) Preview(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("method", "Preview"))

	query := r.URL.Query().Get("q")
	if query == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := 0
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 1 {
			api.ErrorResponse(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	results, err := h.geocodingService.Preview(r.Context(), query, limit)
	if err != nil {
		l.ErrorContext(r.Context(), "Geocode preview failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadGateway, "search provider unavailable")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.GeocodePreviewResponse{
		Query:   query,
		Results: results,
		Total:   len(results),
	})
}
