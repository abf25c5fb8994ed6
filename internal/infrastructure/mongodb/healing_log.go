package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
)

// HealingLog implements domain.HealingLog using MongoDB. Insert-only; the
// recovery history of an order is never rewritten.
type HealingLog struct {
	collection *mongo.Collection
}

// NewHealingLog creates a new HealingLog
func NewHealingLog(db *mongo.Database) *HealingLog {
	log := &HealingLog{
		collection: db.Collection("healing_actions"),
	}
	log.ensureIndexes(context.Background())
	return log
}

func (l *HealingLog) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "actionId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "orderId", Value: 1}, {Key: "executedAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "tickId", Value: 1}},
		},
	}

	l.collection.Indexes().CreateMany(ctx, indexes)
}

// Record appends a healing action
func (l *HealingLog) Record(ctx context.Context, action *domain.HealingAction) error {
	if _, err := l.collection.InsertOne(ctx, action); err != nil {
		return fmt.Errorf("failed to record healing action: %w", err)
	}
	return nil
}

// GetByOrderID retrieves all healing actions for an order, newest first
func (l *HealingLog) GetByOrderID(ctx context.Context, orderID string) ([]*domain.HealingAction, error) {
	return l.find(ctx, orderID, 0)
}

// GetRecentByOrderID retrieves the newest healing actions for an order
func (l *HealingLog) GetRecentByOrderID(ctx context.Context, orderID string, limit int) ([]*domain.HealingAction, error) {
	return l.find(ctx, orderID, int64(limit))
}

func (l *HealingLog) find(ctx context.Context, orderID string, limit int64) ([]*domain.HealingAction, error) {
	filter := bson.M{"orderId": orderID}
	opts := options.Find().SetSort(bson.D{{Key: "executedAt", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}

	cursor, err := l.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var actions []*domain.HealingAction
	if err := cursor.All(ctx, &actions); err != nil {
		return nil, err
	}

	return actions, nil
}
