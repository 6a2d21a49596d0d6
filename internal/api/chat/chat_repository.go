package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-book/internal/types"
)

type Repository interface {
	CreateSession(ctx context.Context) (*types.ChatSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*types.ChatSession, error)
	UpdateMessages(ctx context.Context, id uuid.UUID, messages []types.ConversationMessage) error
	LinkTrip(ctx context.Context, sessionID, tripID uuid.UUID) error
}

var _ Repository = (*PostgresChatRepository)(nil)

type PostgresChatRepository struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresChatRepository(pgxpool *pgxpool.Pool, logger *slog.Logger) *PostgresChatRepository {
	return &PostgresChatRepository{
		logger: logger,
		pgpool: pgxpool,
	}
}

func (r *PostgresChatRepository) CreateSession(ctx context.Context) (*types.ChatSession, error) {
	ctx, span := otel.Tracer("ChatRepository").Start(ctx, "CreateSession")
	defer span.End()

	session := &types.ChatSession{Messages: []types.ConversationMessage{}}
	err := r.pgpool.QueryRow(ctx,
		`INSERT INTO chat_sessions (messages) VALUES ('[]'::jsonb) RETURNING id, created_at`,
	).Scan(&session.ID, &session.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}
	span.SetStatus(codes.Ok, "session created")
	return session, nil
}

func (r *PostgresChatRepository) GetSession(ctx context.Context, id uuid.UUID) (*types.ChatSession, error) {
	ctx, span := otel.Tracer("ChatRepository").Start(ctx, "GetSession", trace.WithAttributes(
		attribute.String("session.id", id.String()),
	))
	defer span.End()

	var session types.ChatSession
	var raw []byte
	err := r.pgpool.QueryRow(ctx,
		`SELECT id, messages, trip_id, created_at FROM chat_sessions WHERE id = $1`, id,
	).Scan(&session.ID, &raw, &session.TripID, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "not found")
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query chat session: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &session.Messages); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to decode session messages: %w", err)
		}
	}
	span.SetStatus(codes.Ok, "session fetched")
	return &session, nil
}

func (r *PostgresChatRepository) UpdateMessages(ctx context.Context, id uuid.UUID, messages []types.ConversationMessage) error {
	ctx, span := otel.Tracer("ChatRepository").Start(ctx, "UpdateMessages")
	defer span.End()

	encoded, err := json.Marshal(messages)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to encode session messages: %w", err)
	}
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE chat_sessions SET messages = $1 WHERE id = $2`, encoded, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update session messages: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chat session %s not found", id)
	}
	span.SetStatus(codes.Ok, "messages updated")
	return nil
}

func (r *PostgresChatRepository) LinkTrip(ctx context.Context, sessionID, tripID uuid.UUID) error {
	ctx, span := otel.Tracer("ChatRepository").Start(ctx, "LinkTrip", trace.WithAttributes(
		attribute.String("session.id", sessionID.String()),
		attribute.String("trip.id", tripID.String()),
	))
	defer span.End()

	if _, err := r.pgpool.Exec(ctx,
		`UPDATE chat_sessions SET trip_id = $1 WHERE id = $2`, tripID, sessionID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to link trip to session: %w", err)
	}
	span.SetStatus(codes.Ok, "trip linked")
	return nil
}
