package repositories

import (
	"context"
	"time"

	"github.com/satriahrh/mirrorvoice/domain/entities"
)

// TurnRecord is an archived request/response round-trip
type TurnRecord struct {
	SessionID     string    `json:"session_id" bson:"session_id"`
	UserText      string    `json:"user_text" bson:"user_text"`
	AssistantText string    `json:"assistant_text" bson:"assistant_text"`
	ToolName      string    `json:"tool_name,omitempty" bson:"tool_name,omitempty"`
	StartedAt     time.Time `json:"started_at" bson:"started_at"`
	CompletedAt   time.Time `json:"completed_at" bson:"completed_at"`
	DurationMs    int64     `json:"duration_ms" bson:"duration_ms"`
}

// TurnArchive stores completed round-trips
type TurnArchive interface {
	Record(ctx context.Context, record TurnRecord) error
	Recent(ctx context.Context, limit int) ([]TurnRecord, error)
}

// HistoryStore persists the in-memory conversation between runs
type HistoryStore interface {
	Load() ([]entities.ConversationTurn, error)
	Save(turns []entities.ConversationTurn) error
}
