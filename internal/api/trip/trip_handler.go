package trip

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/go-travel-book/internal/api"
	"github.com/FACorreiaa/go-travel-book/internal/types"
)

type HandlerImpl struct {
	tripService Service
	logger      *slog.Logger
}

func NewHandlerImpl(tripService Service, logger *slog.Logger) *HandlerImpl {
	instanceLogger := logger.With(slog.String("correlationID", "HANDLER"), slog.String("handler", "trip"))
	return &HandlerImpl{
		tripService: tripService,
		logger:      instanceLogger,
	}
}

// CreateTrip handles POST /trips: validates the itinerary, stores it and
// returns 202 with the new trip id while the pipeline runs in the background.
func (h *HandlerImpl) CreateTrip(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("method", "CreateTrip"))

	var req types.TripCreateRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.tripService.CreateTrip(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			api.ErrorResponse(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		l.ErrorContext(r.Context(), "Failed to create trip", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to create trip")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusAccepted, resp)
}

// GetTrip handles GET /trips/{tripID}: the polling surface for pipeline
// progress, returning status, error message, coordinates and routes.
func (h *HandlerImpl) GetTrip(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("method", "GetTrip"))

	id, ok := h.parseTripID(w, r)
	if !ok {
		return
	}

	resp, err := h.tripService.GetTrip(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "trip not found")
			return
		}
		l.ErrorContext(r.Context(), "Failed to fetch trip", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to fetch trip")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// ConfirmTrip handles POST /trips/{tripID}/confirm: the user approves the
// preview and the final document is rendered.
func (h *HandlerImpl) ConfirmTrip(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("method", "ConfirmTrip"))

	id, ok := h.parseTripID(w, r)
	if !ok {
		return
	}

	resp, err := h.tripService.ConfirmTrip(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "trip not found")
		case errors.Is(err, ErrNotReady):
			api.ErrorResponse(w, r, http.StatusConflict, err.Error())
		default:
			l.ErrorContext(r.Context(), "Failed to confirm trip", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to confirm trip")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusAccepted, resp)
}

// DownloadDocument handles GET /trips/{tripID}/download, serving the
// generated PDF once the trip is complete.
func (h *HandlerImpl) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("method", "DownloadDocument"))

	id, ok := h.parseTripID(w, r)
	if !ok {
		return
	}

	path, err := h.tripService.GetDocumentPath(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "trip not found")
		case errors.Is(err, ErrNotReady):
			api.ErrorResponse(w, r, http.StatusConflict, err.Error())
		default:
			l.ErrorContext(r.Context(), "Failed to resolve document path", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to fetch document")
		}
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="travel-book.pdf"`)
	http.ServeFile(w, r, path)
}

func (h *HandlerImpl) parseTripID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid trip ID format")
		return uuid.Nil, false
	}
	return id, true
}
