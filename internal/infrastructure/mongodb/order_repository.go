package mongodb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/cloudevents"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/kafka"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/outbox"
	outboxMongo "github.com/newbihanigroup-creator/khaacho-sub004/pkg/outbox/mongodb"
)

// OrderRepository implements domain.OrderRepository using MongoDB
type OrderRepository struct {
	collection   *mongo.Collection
	db           *mongo.Database
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *mongo.Database, eventFactory *cloudevents.EventFactory) *OrderRepository {
	collection := db.Collection("orders")
	outboxRepo := outboxMongo.NewOutboxRepository(db)

	repo := &OrderRepository{
		collection:   collection,
		db:           db,
		outboxRepo:   outboxRepo,
		eventFactory: eventFactory,
	}
	repo.ensureIndexes(context.Background())
	_ = outboxRepo.EnsureIndexes(context.Background())

	return repo
}

func (r *OrderRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "orderId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "updatedAt", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "retailerId", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "createdAt", Value: -1}},
		},
	}

	r.collection.Indexes().CreateMany(ctx, indexes)
}

// Save persists an order with its domain events in a single transaction
func (r *OrderRepository) Save(ctx context.Context, order *domain.Order) error {
	return r.persist(ctx, order, true)
}

// Update persists changes to an existing order, outboxing its pending events
func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	return r.persist(ctx, order, false)
}

func (r *OrderRepository) persist(ctx context.Context, order *domain.Order, upsert bool) error {
	order.UpdatedAt = time.Now()

	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		opts := options.Update().SetUpsert(upsert)
		filter := bson.M{"orderId": order.OrderID}
		update := bson.M{"$set": order}

		result, err := r.collection.UpdateOne(sessCtx, filter, update, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to save order: %w", err)
		}
		if !upsert && result.MatchedCount == 0 {
			return nil, domain.ErrOrderNotFound
		}

		if err := r.outboxEvents(sessCtx, order); err != nil {
			return nil, err
		}

		order.ClearDomainEvents()
		return nil, nil
	})

	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// outboxEvents converts the aggregate's pending domain events to CloudEvents
// and stores them in the outbox within the caller's transaction
func (r *OrderRepository) outboxEvents(sessCtx mongo.SessionContext, order *domain.Order) error {
	domainEvents := order.GetDomainEvents()
	if len(domainEvents) == 0 {
		return nil
	}

	outboxEvents := make([]*outbox.OutboxEvent, 0, len(domainEvents))
	for _, event := range domainEvents {
		cloudEvent := r.eventFactory.CreateEvent(sessCtx, event.EventType(), "order/"+order.OrderID, event)
		cloudEvent.OrderID = order.OrderID

		outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(
			order.OrderID,
			"Order",
			topicForEventType(event.EventType()),
			cloudEvent,
		)
		if err != nil {
			return fmt.Errorf("failed to create outbox event: %w", err)
		}

		outboxEvents = append(outboxEvents, outboxEvent)
	}

	if err := r.outboxRepo.SaveAll(sessCtx, outboxEvents); err != nil {
		return fmt.Errorf("failed to save outbox events: %w", err)
	}

	return nil
}

// topicForEventType routes recovery events and routing events to their topics
func topicForEventType(eventType string) string {
	if strings.HasPrefix(eventType, "khaacho.recovery.") {
		return kafka.Topics.RecoveryEvents
	}
	return kafka.Topics.RoutingEvents
}

// GetByID retrieves an order by its ID
func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	err := r.collection.FindOne(ctx, bson.M{"orderId": orderID}).Decode(&order)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	return &order, nil
}

// FindByStatus retrieves orders in a given status, oldest update first
func (r *OrderRepository) FindByStatus(ctx context.Context, status domain.OrderStatus, limit int) ([]*domain.Order, error) {
	filter := bson.M{"status": status}
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []*domain.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// FindStuckCandidates retrieves non-healing orders in a status that have not
// been touched since the cutoff
func (r *OrderRepository) FindStuckCandidates(ctx context.Context, status domain.OrderStatus, cutoff time.Time, limit int) ([]*domain.Order, error) {
	filter := bson.M{
		"status":        status,
		"updatedAt":     bson.M{"$lt": cutoff},
		"healingActive": false,
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []*domain.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// SetHealingActive flips the healing marker only when its current value
// differs. The conditional update makes the claim atomic: of two concurrent
// sweeps, exactly one sees MatchedCount 1.
func (r *OrderRepository) SetHealingActive(ctx context.Context, orderID string, active bool) (bool, error) {
	filter := bson.M{
		"orderId":       orderID,
		"healingActive": !active,
	}
	update := bson.M{"$set": bson.M{
		"healingActive": active,
		"updatedAt":     time.Now(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to set healing marker: %w", err)
	}

	return result.MatchedCount == 1, nil
}

// GetOutboxRepository returns the outbox repository for this service
func (r *OrderRepository) GetOutboxRepository() outbox.Repository {
	return r.outboxRepo
}
