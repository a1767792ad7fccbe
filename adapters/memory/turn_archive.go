package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

// TurnArchive is an in-memory TurnArchive keeping the newest records up to
// its capacity. It serves the API when no database is configured.
type TurnArchive struct {
	mu       sync.RWMutex
	records  []repositories.TurnRecord
	capacity int
}

var _ repositories.TurnArchive = (*TurnArchive)(nil)

func NewTurnArchive(capacity int) *TurnArchive {
	if capacity < 1 {
		capacity = 1
	}
	return &TurnArchive{capacity: capacity}
}

// Record implements repositories.TurnArchive
func (a *TurnArchive) Record(ctx context.Context, record repositories.TurnRecord) error {
	if record.SessionID == "" {
		return errors.New("session ID cannot be empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.records = append(a.records, record)
	if over := len(a.records) - a.capacity; over > 0 {
		a.records = append(a.records[:0:0], a.records[over:]...)
	}
	return nil
}

// Recent implements repositories.TurnArchive
func (a *TurnArchive) Recent(ctx context.Context, limit int) ([]repositories.TurnRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit > len(a.records) {
		limit = len(a.records)
	}
	if limit < 0 {
		limit = 0
	}
	out := make([]repositories.TurnRecord, 0, limit)
	for i := len(a.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, a.records[i])
	}
	return out, nil
}
