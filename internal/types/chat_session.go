package types

import (
	"time"

	"github.com/google/uuid"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type ConversationMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// ChatSession holds one itinerary-planning conversation. TripID is set once
// the session has been finalized into a trip; re-finalizing the same session
// replaces that trip's days instead of creating a new trip.
type ChatSession struct {
	ID        uuid.UUID             `json:"id"`
	Messages  []ConversationMessage `json:"messages"`
	TripID    *uuid.UUID            `json:"trip_id,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

// Request/Response types for the chat API

type ChatMessageRequest struct {
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	Message   string     `json:"message"`
}

type ChatMessageResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Reply     string    `json:"reply"`
}

type FinalizeResponse struct {
	TripID uuid.UUID  `json:"trip_id"`
	Title  string     `json:"title"`
	Status TripStatus `json:"status"`
}

type ChatSessionResponse struct {
	SessionID uuid.UUID             `json:"session_id"`
	Messages  []ConversationMessage `json:"messages"`
}
