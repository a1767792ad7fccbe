package api

import (
	"time"

	"github.com/satriahrh/mirrorvoice/domain/entities"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

// StatusSource exposes the current pipeline state
type StatusSource interface {
	Snapshot() entities.SessionSnapshot
}

// HistorySource exposes the in-memory conversation
type HistorySource interface {
	Turns() []entities.ConversationTurn
	Capacity() int
}

// HealthResponse represents the health check payload
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
}

// HistoryResponse represents the in-memory conversation
type HistoryResponse struct {
	Turns    []entities.ConversationTurn `json:"turns"`
	Capacity int                         `json:"capacity"`
}

// ConversationsResponse represents archived round-trips
type ConversationsResponse struct {
	Conversations []repositories.TurnRecord `json:"conversations"`
	Archived      bool                      `json:"archived"`
}

// TokenResponse represents a freshly issued display token
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
