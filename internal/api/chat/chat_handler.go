package chat

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/go-travel-book/internal/api"
	"github.com/FACorreiaa/go-travel-book/internal/api/trip"
	"github.com/FACorreiaa/go-travel-book/internal/types"
)

type HandlerImpl struct {
	chatService Service
	logger      *slog.Logger
}

func NewHandlerImpl(chatService Service, logger *slog.Logger) *HandlerImpl {
	instanceLogger := logger.With(slog.String("correlationID", "HANDLER"), slog.String("handler", "chat"))
	return &HandlerImpl{
		chatService: chatService,
		logger:      instanceLogger,
	}
}

// SendMessage handles POST /chat: one conversational turn. Omitting
// session_id starts a new planning session.
func (h *HandlerImpl) SendMessage(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("method", "SendMessage"))

	var req types.ChatMessageRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.chatService.SendMessage(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, trip.ErrValidation):
			api.ErrorResponse(w, r, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, ErrSessionNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "chat session not found")
		default:
			l.ErrorContext(r.Context(), "Failed to process chat message", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to process message")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// Finalize handles POST /chat/{sessionID}/finalize: converts the conversation
// into a trip and starts the generation pipeline.
func (h *HandlerImpl) Finalize(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("method", "Finalize"))

	id, ok := h.parseSessionID(w, r)
	if !ok {
		return
	}

	resp, err := h.chatService.Finalize(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "chat session not found")
		case errors.Is(err, trip.ErrValidation):
			api.ErrorResponse(w, r, http.StatusUnprocessableEntity, err.Error())
		default:
			l.ErrorContext(r.Context(), "Failed to finalize session", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to finalize session")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusAccepted, resp)
}

// GetSession handles GET /chat/{sessionID}: returns the conversation history.
func (h *HandlerImpl) GetSession(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("method", "GetSession"))

	id, ok := h.parseSessionID(w, r)
	if !ok {
		return
	}

	resp, err := h.chatService.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "chat session not found")
			return
		}
		l.ErrorContext(r.Context(), "Failed to fetch session", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to fetch session")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *HandlerImpl) parseSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid session ID format")
		return uuid.Nil, false
	}
	return id, true
}
