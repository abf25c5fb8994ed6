package domain

import (
	"context"
	"time"
)

// OrderRepository handles order aggregate persistence
type OrderRepository interface {
	Save(ctx context.Context, order *Order) error
	Update(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, orderID string) (*Order, error)
	FindByStatus(ctx context.Context, status OrderStatus, limit int) ([]*Order, error)
	// FindStuckCandidates returns non-healing orders in the given status whose
	// updatedAt is older than the cutoff
	FindStuckCandidates(ctx context.Context, status OrderStatus, cutoff time.Time, limit int) ([]*Order, error)
	// SetHealingActive flips the healing marker only when its current value
	// differs, so concurrent sweeps cannot both claim an order
	SetHealingActive(ctx context.Context, orderID string, active bool) (bool, error)
}

// AssignmentRepository handles supplier assignment persistence
type AssignmentRepository interface {
	Save(ctx context.Context, assignment *SupplierAssignment) error
	Update(ctx context.Context, assignment *SupplierAssignment) error
	GetByID(ctx context.Context, assignmentID string) (*SupplierAssignment, error)
	FindByOrderID(ctx context.Context, orderID string) ([]*SupplierAssignment, error)
	// FindLatestByOrderID returns the assignment with the highest attempt for
	// the order, or nil when none exist
	FindLatestByOrderID(ctx context.Context, orderID string) (*SupplierAssignment, error)
	// FindExpired returns assignments whose active window deadline has passed
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*SupplierAssignment, error)
	// CancelWindow atomically deactivates an assignment's window. It returns
	// false when the window was already inactive, making cancellation idempotent.
	CancelWindow(ctx context.Context, assignmentID string) (bool, error)
}

// DecisionLog is the append-only store of routing decisions
type DecisionLog interface {
	Record(ctx context.Context, decision *RoutingDecision) error
	GetByOrderID(ctx context.Context, orderID string) ([]*RoutingDecision, error)
	GetLatestByOrderID(ctx context.Context, orderID string) (*RoutingDecision, error)
}

// HealingLog is the append-only store of executed healing actions
type HealingLog interface {
	Record(ctx context.Context, action *HealingAction) error
	GetByOrderID(ctx context.Context, orderID string) ([]*HealingAction, error)
	// GetRecentByOrderID returns the newest actions first, bounded by limit
	GetRecentByOrderID(ctx context.Context, orderID string, limit int) ([]*HealingAction, error)
}

// NotificationRepository stores admin notifications
type NotificationRepository interface {
	Save(ctx context.Context, notification *AdminNotification) error
	GetByID(ctx context.Context, notificationID string) (*AdminNotification, error)
	FindUnacknowledged(ctx context.Context, limit int) ([]*AdminNotification, error)
	Acknowledge(ctx context.Context, notificationID, adminID string) error
}

// SupplierCatalog exposes the supplier service's standing offers
type SupplierCatalog interface {
	GetOffers(ctx context.Context, productCode string) ([]SupplierOffer, error)
}

// NotificationGateway delivers admin notifications to the outside world
type NotificationGateway interface {
	NotifyAdmins(ctx context.Context, notification *AdminNotification) error
}
