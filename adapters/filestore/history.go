package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain/entities"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

// HistorySnapshot is the on-disk shape of the conversation
type HistorySnapshot struct {
	SavedAt time.Time                   `json:"saved_at"`
	Turns   []entities.ConversationTurn `json:"turns"`
}

// HistoryStore keeps the conversation in a JSON file
type HistoryStore struct {
	path   string
	logger *zap.Logger
}

var _ repositories.HistoryStore = (*HistoryStore)(nil)

func NewHistoryStore(path string, logger *zap.Logger) (*HistoryStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history file path is required")
	}
	return &HistoryStore{path: path, logger: logger}, nil
}

// Load returns the saved turns. A missing file is an empty history.
func (s *HistoryStore) Load() ([]entities.ConversationTurn, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("No history snapshot found", zap.String("path", s.path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history snapshot: %w", err)
	}

	var snapshot HistorySnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode history snapshot %s: %w", s.path, err)
	}

	s.logger.Info("History snapshot loaded",
		zap.String("path", s.path),
		zap.Int("turns", len(snapshot.Turns)),
		zap.Time("savedAt", snapshot.SavedAt))
	return snapshot.Turns, nil
}

// Save replaces the snapshot atomically
func (s *HistoryStore) Save(turns []entities.ConversationTurn) error {
	if turns == nil {
		turns = []entities.ConversationTurn{}
	}
	data, err := json.MarshalIndent(HistorySnapshot{SavedAt: time.Now(), Turns: turns}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write history snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write history snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace history snapshot: %w", err)
	}

	s.logger.Info("History snapshot saved", zap.String("path", s.path), zap.Int("turns", len(turns)))
	return nil
}
