package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
)

// NotificationRepository implements domain.NotificationRepository using MongoDB
type NotificationRepository struct {
	collection *mongo.Collection
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	repo := &NotificationRepository{
		collection: db.Collection("admin_notifications"),
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *NotificationRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "notificationId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "acknowledged", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "orderId", Value: 1}},
		},
	}

	r.collection.Indexes().CreateMany(ctx, indexes)
}

// Save inserts a notification
func (r *NotificationRepository) Save(ctx context.Context, notification *domain.AdminNotification) error {
	if _, err := r.collection.InsertOne(ctx, notification); err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

// GetByID retrieves a notification by its ID
func (r *NotificationRepository) GetByID(ctx context.Context, notificationID string) (*domain.AdminNotification, error) {
	var notification domain.AdminNotification
	err := r.collection.FindOne(ctx, bson.M{"notificationId": notificationID}).Decode(&notification)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	return &notification, nil
}

// FindUnacknowledged retrieves pending notifications, newest first
func (r *NotificationRepository) FindUnacknowledged(ctx context.Context, limit int) ([]*domain.AdminNotification, error) {
	filter := bson.M{"acknowledged": false}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var notifications []*domain.AdminNotification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}

	return notifications, nil
}

// Acknowledge marks a notification as handled. Acknowledging twice is a
// no-op rather than an error.
func (r *NotificationRepository) Acknowledge(ctx context.Context, notificationID, adminID string) error {
	filter := bson.M{
		"notificationId": notificationID,
		"acknowledged":   false,
	}
	update := bson.M{"$set": bson.M{
		"acknowledged":   true,
		"acknowledgedBy": adminID,
		"acknowledgedAt": time.Now(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to acknowledge notification: %w", err)
	}
	if result.MatchedCount == 0 {
		// Either unknown or already acknowledged; distinguish for the caller
		existing, err := r.GetByID(ctx, notificationID)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("notification not found: %s", notificationID)
		}
	}

	return nil
}
