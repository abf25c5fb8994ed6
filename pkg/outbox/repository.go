package outbox

import "context"

// Repository is the persistence contract the publisher drains events from.
// SaveAll must run inside the caller's transaction so events commit atomically
// with the aggregate write.
type Repository interface {
	// Save stores a single outbox event
	Save(ctx context.Context, event *OutboxEvent) error

	// SaveAll stores multiple outbox events in one operation
	SaveAll(ctx context.Context, events []*OutboxEvent) error

	// FindUnpublished returns events not yet delivered, oldest first
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	// MarkPublished records successful delivery
	MarkPublished(ctx context.Context, eventID string) error

	// IncrementRetry bumps the retry count and records the failure
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error

	// DeletePublished prunes delivered events older than the given age in seconds
	DeletePublished(ctx context.Context, olderThan int64) error

	// GetByID retrieves an outbox event by ID
	GetByID(ctx context.Context, eventID string) (*OutboxEvent, error)

	// FindByAggregateID returns every event recorded for one aggregate
	FindByAggregateID(ctx context.Context, aggregateID string) ([]*OutboxEvent, error)
}
