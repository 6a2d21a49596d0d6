package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-travel-book/app/observability/metrics"
	"github.com/FACorreiaa/go-travel-book/internal/api/trip"
	"github.com/FACorreiaa/go-travel-book/internal/types"
)

var ErrSessionNotFound = errors.New("chat session not found")

// AIProvider is the slice of the text-generation client the chat service
// uses. Satisfied by *generativeAI.AIClient.
type AIProvider interface {
	GenerateResponse(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error)
	GenerateJSON(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error)
}

type Service interface {
	SendMessage(ctx context.Context, req types.ChatMessageRequest) (*types.ChatMessageResponse, error)
	Finalize(ctx context.Context, sessionID uuid.UUID) (*types.FinalizeResponse, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*types.ChatSessionResponse, error)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger   *slog.Logger
	repo     Repository
	trips    trip.Repository
	ai       AIProvider
	pipeline trip.PipelineTrigger
}

func NewServiceImpl(repo Repository, trips trip.Repository, ai AIProvider, pipeline trip.PipelineTrigger, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		repo:     repo,
		trips:    trips,
		ai:       ai,
		pipeline: pipeline,
	}
}

// SendMessage appends the user's message to the session (creating one when no
// session id is given), asks the model for a reply and persists both turns.
func (s *ServiceImpl) SendMessage(ctx context.Context, req types.ChatMessageRequest) (*types.ChatMessageResponse, error) {
	ctx, span := otel.Tracer("ChatService").Start(ctx, "SendMessage")
	defer span.End()

	if req.Message == "" {
		return nil, fmt.Errorf("%w: message is required", trip.ErrValidation)
	}

	var session *types.ChatSession
	var err error
	if req.SessionID == nil {
		session, err = s.repo.CreateSession(ctx)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
	} else {
		session, err = s.repo.GetSession(ctx, *req.SessionID)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
		if session == nil {
			return nil, ErrSessionNotFound
		}
	}
	span.SetAttributes(attribute.String("session.id", session.ID.String()))

	messages := append(session.Messages, types.ConversationMessage{
		Role: types.RoleUser, Content: req.Message,
	})

	reply, err := s.ai.GenerateResponse(ctx, buildConversationPrompt(chatSystemPrompt, messages), nil)
	if err != nil {
		metrics.Get().LLMErrorsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("kind", "chat")))
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, fmt.Errorf("failed to generate chat reply: %w", err)
	}
	metrics.Get().LLMRequestsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", "chat")))

	messages = append(messages, types.ConversationMessage{
		Role: types.RoleAssistant, Content: reply,
	})
	if err := s.repo.UpdateMessages(ctx, session.ID, messages); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to persist conversation: %w", err)
	}

	span.SetStatus(codes.Ok, "reply generated")
	return &types.ChatMessageResponse{SessionID: session.ID, Reply: reply}, nil
}

// Finalize extracts a structured itinerary from the conversation and turns it
// into a trip. A session that was already finalized has its trip reset and
// regenerated instead of getting a second one.
func (s *ServiceImpl) Finalize(ctx context.Context, sessionID uuid.UUID) (*types.FinalizeResponse, error) {
	ctx, span := otel.Tracer("ChatService").Start(ctx, "Finalize", trace.WithAttributes(
		attribute.String("session.id", sessionID.String()),
	))
	defer span.End()

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if len(session.Messages) == 0 {
		return nil, fmt.Errorf("%w: session has no conversation to finalize", trip.ErrValidation)
	}

	req, err := s.extractItinerary(ctx, session.Messages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return nil, err
	}
	if err := trip.ValidateTripInput(*req); err != nil {
		span.SetStatus(codes.Error, "extracted itinerary invalid")
		return nil, err
	}

	var tripID uuid.UUID
	if session.TripID != nil {
		tripID = *session.TripID
		if err := s.trips.ResetTrip(ctx, tripID, *req); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to reset trip: %w", err)
		}
		s.logger.InfoContext(ctx, "Session re-finalized, regenerating trip",
			slog.String("session_id", sessionID.String()), slog.String("trip_id", tripID.String()))
	} else {
		created, err := s.trips.CreateTrip(ctx, *req)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to create trip: %w", err)
		}
		tripID = created.ID
		if err := s.repo.LinkTrip(ctx, sessionID, tripID); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to link trip to session: %w", err)
		}
	}

	if hints := collectHints(*req); len(hints) > 0 {
		if err := s.trips.MergeEnrichedData(ctx, tripID, types.EnrichedData{GeocodingHints: hints}); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to store geocoding hints: %w", err)
		}
	}

	s.pipeline.Start(tripID)

	span.SetAttributes(attribute.String("trip.id", tripID.String()))
	span.SetStatus(codes.Ok, "trip finalized")
	return &types.FinalizeResponse{TripID: tripID, Title: req.Title, Status: types.TripStatusPending}, nil
}

func (s *ServiceImpl) GetSession(ctx context.Context, sessionID uuid.UUID) (*types.ChatSessionResponse, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return &types.ChatSessionResponse{SessionID: session.ID, Messages: session.Messages}, nil
}

// extractItinerary runs the conversation through the model in JSON mode and
// decodes the result into a trip request.
func (s *ServiceImpl) extractItinerary(ctx context.Context, messages []types.ConversationMessage) (*types.TripCreateRequest, error) {
	raw, err := s.ai.GenerateJSON(ctx, buildExtractionPrompt(messages), nil)
	if err != nil {
		metrics.Get().LLMErrorsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("kind", "extraction")))
		return nil, fmt.Errorf("failed to extract itinerary: %w", err)
	}
	metrics.Get().LLMRequestsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", "extraction")))

	var req types.TripCreateRequest
	if err := json.Unmarshal([]byte(cleanJSONResponse(raw)), &req); err != nil {
		s.logger.WarnContext(ctx, "Itinerary extraction returned malformed JSON", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not extract an itinerary from the conversation", trip.ErrValidation)
	}
	return &req, nil
}

// collectHints mirrors the manual trip flow: per-place city/country hints are
// keyed "<day>:<place>" for the resolver stage.
func collectHints(req types.TripCreateRequest) map[string]types.GeocodingHint {
	hints := make(map[string]types.GeocodingHint)
	for _, day := range req.Days {
		for _, place := range day.Places {
			if place.City == "" && place.Country == "" {
				continue
			}
			hints[strconv.Itoa(day.DayNumber)+":"+place.Name] = types.GeocodingHint{
				City: place.City, Country: place.Country,
			}
		}
	}
	return hints
}
