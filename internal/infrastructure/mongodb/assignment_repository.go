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

// AssignmentRepository implements domain.AssignmentRepository using MongoDB
type AssignmentRepository struct {
	collection *mongo.Collection
}

// NewAssignmentRepository creates a new AssignmentRepository
func NewAssignmentRepository(db *mongo.Database) *AssignmentRepository {
	repo := &AssignmentRepository{
		collection: db.Collection("supplier_assignments"),
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *AssignmentRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "assignmentId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "orderId", Value: 1}, {Key: "attempt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "window.active", Value: 1}, {Key: "window.deadline", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "supplierId", Value: 1}, {Key: "status", Value: 1}},
		},
	}

	r.collection.Indexes().CreateMany(ctx, indexes)
}

// Save inserts a new assignment
func (r *AssignmentRepository) Save(ctx context.Context, assignment *domain.SupplierAssignment) error {
	assignment.UpdatedAt = time.Now()

	if _, err := r.collection.InsertOne(ctx, assignment); err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	return nil
}

// Update persists changes to an existing assignment
func (r *AssignmentRepository) Update(ctx context.Context, assignment *domain.SupplierAssignment) error {
	assignment.UpdatedAt = time.Now()

	filter := bson.M{"assignmentId": assignment.AssignmentID}
	update := bson.M{"$set": assignment}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrAssignmentNotFound
	}
	return nil
}

// GetByID retrieves an assignment by its ID
func (r *AssignmentRepository) GetByID(ctx context.Context, assignmentID string) (*domain.SupplierAssignment, error) {
	var assignment domain.SupplierAssignment
	err := r.collection.FindOne(ctx, bson.M{"assignmentId": assignmentID}).Decode(&assignment)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	return &assignment, nil
}

// FindByOrderID retrieves all assignments for an order, oldest attempt first
func (r *AssignmentRepository) FindByOrderID(ctx context.Context, orderID string) ([]*domain.SupplierAssignment, error) {
	filter := bson.M{"orderId": orderID}
	opts := options.Find().SetSort(bson.D{{Key: "attempt", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var assignments []*domain.SupplierAssignment
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}

	return assignments, nil
}

// FindLatestByOrderID retrieves the highest-attempt assignment for an order
func (r *AssignmentRepository) FindLatestByOrderID(ctx context.Context, orderID string) (*domain.SupplierAssignment, error) {
	filter := bson.M{"orderId": orderID}
	opts := options.FindOne().SetSort(bson.D{{Key: "attempt", Value: -1}})

	var assignment domain.SupplierAssignment
	err := r.collection.FindOne(ctx, filter, opts).Decode(&assignment)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	return &assignment, nil
}

// FindExpired retrieves assignments whose active response window deadline
// has passed
func (r *AssignmentRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.SupplierAssignment, error) {
	filter := bson.M{
		"window.active":   true,
		"window.deadline": bson.M{"$lt": now},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "window.deadline", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var assignments []*domain.SupplierAssignment
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}

	return assignments, nil
}

// CancelWindow deactivates an assignment's window only when it is still
// active. The conditional update means concurrent cancellations resolve to
// exactly one winner.
func (r *AssignmentRepository) CancelWindow(ctx context.Context, assignmentID string) (bool, error) {
	filter := bson.M{
		"assignmentId":  assignmentID,
		"window.active": true,
	}
	update := bson.M{"$set": bson.M{
		"window.active": false,
		"updatedAt":     time.Now(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to cancel window: %w", err)
	}

	return result.MatchedCount == 1, nil
}
