package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
)

// DecisionLog implements domain.DecisionLog using MongoDB. The collection is
// insert-only; decisions are never updated or deleted.
type DecisionLog struct {
	collection *mongo.Collection
}

// NewDecisionLog creates a new DecisionLog
func NewDecisionLog(db *mongo.Database) *DecisionLog {
	log := &DecisionLog{
		collection: db.Collection("routing_decisions"),
	}
	log.ensureIndexes(context.Background())
	return log
}

func (l *DecisionLog) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "decisionId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "orderId", Value: 1}, {Key: "decidedAt", Value: -1}},
		},
	}

	l.collection.Indexes().CreateMany(ctx, indexes)
}

// Record appends a routing decision
func (l *DecisionLog) Record(ctx context.Context, decision *domain.RoutingDecision) error {
	if _, err := l.collection.InsertOne(ctx, decision); err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

// GetByOrderID retrieves all decisions for an order, newest first
func (l *DecisionLog) GetByOrderID(ctx context.Context, orderID string) ([]*domain.RoutingDecision, error) {
	filter := bson.M{"orderId": orderID}
	opts := options.Find().SetSort(bson.D{{Key: "decidedAt", Value: -1}})

	cursor, err := l.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var decisions []*domain.RoutingDecision
	if err := cursor.All(ctx, &decisions); err != nil {
		return nil, err
	}

	return decisions, nil
}

// GetLatestByOrderID retrieves the most recent decision for an order
func (l *DecisionLog) GetLatestByOrderID(ctx context.Context, orderID string) (*domain.RoutingDecision, error) {
	filter := bson.M{"orderId": orderID}
	opts := options.FindOne().SetSort(bson.D{{Key: "decidedAt", Value: -1}})

	var decision domain.RoutingDecision
	err := l.collection.FindOne(ctx, filter, opts).Decode(&decision)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	return &decision, nil
}
