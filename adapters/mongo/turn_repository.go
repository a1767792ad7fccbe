package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

const turnsCollection = "turns"

// TurnRepository archives completed round-trips
type TurnRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.TurnArchive = (*TurnRepository)(nil)

// NewTurnRepository creates the repository and ensures its indexes
func NewTurnRepository(ctx context.Context, db *mongo.Database, logger *zap.Logger) (*TurnRepository, error) {
	collection := db.Collection(turnsCollection)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "completed_at", Value: -1}}},
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create turn indexes: %w", err)
	}
	logger.Info("Turn indexes created successfully")

	return &TurnRepository{
		collection: collection,
		logger:     logger,
	}, nil
}

// Record implements repositories.TurnArchive
func (r *TurnRepository) Record(ctx context.Context, record repositories.TurnRecord) error {
	if record.SessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if record.CompletedAt.IsZero() {
		record.CompletedAt = time.Now()
	}

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to record turn: %w", err)
	}
	return nil
}

// Recent implements repositories.TurnArchive. Records are newest first.
func (r *TurnRepository) Recent(ctx context.Context, limit int) ([]repositories.TurnRecord, error) {
	if limit <= 0 {
		return []repositories.TurnRecord{}, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "completed_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer cursor.Close(ctx)

	records := []repositories.TurnRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode turns: %w", err)
	}
	return records, nil
}
