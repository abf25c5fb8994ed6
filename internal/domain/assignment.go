package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Errors
var (
	ErrAssignmentNotFound  = errors.New("assignment not found")
	ErrWindowNotActive     = errors.New("timeout window is not active")
	ErrMaxAttemptsExceeded = errors.New("maximum assignment attempts exceeded")
)

// DefaultMaxAttempts bounds the reassignment loop before escalation
const DefaultMaxAttempts = 3

// DefaultResponseTimeout is the supplier response window
const DefaultResponseTimeout = 30 * time.Minute

// AssignmentStatus tracks the supplier-side state of an assignment
type AssignmentStatus string

const (
	AssignmentStatusAssigned  AssignmentStatus = "assigned"  // Awaiting supplier response
	AssignmentStatusAccepted  AssignmentStatus = "accepted"  // Supplier confirmed
	AssignmentStatusRejected  AssignmentStatus = "rejected"  // Supplier declined
	AssignmentStatusTimedOut  AssignmentStatus = "timed_out" // Response window expired
	AssignmentStatusEscalated AssignmentStatus = "escalated" // Order escalated while pending
	AssignmentStatusCancelled AssignmentStatus = "cancelled" // Order cancelled while pending
)

// TimeoutWindow tracks the supplier response deadline for an assignment.
// At most one window per assignment is active at a time; starting a new
// window supersedes the previous one.
type TimeoutWindow struct {
	Deadline  time.Time     `bson:"deadline"`
	Duration  time.Duration `bson:"duration"`
	StartedAt time.Time     `bson:"startedAt"`
	Active    bool          `bson:"active"`
}

// Expired reports whether the window deadline has passed
func (w TimeoutWindow) Expired(now time.Time) bool {
	return w.Active && now.After(w.Deadline)
}

// SupplierAssignment is one attempt to place part of an order with a supplier
type SupplierAssignment struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	AssignmentID      string             `bson:"assignmentId"`
	OrderID           string             `bson:"orderId"`
	SupplierID        string             `bson:"supplierId"`
	Items             []LineItem         `bson:"items"`
	Attempt           int                `bson:"attempt"` // Starts at 1
	ExcludedSuppliers []string           `bson:"excludedSuppliers,omitempty"`
	Status            AssignmentStatus   `bson:"status"`
	Window            TimeoutWindow      `bson:"window"`
	CreatedAt         time.Time          `bson:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt"`
	RespondedAt       *time.Time         `bson:"respondedAt,omitempty"`
}

// NewSupplierAssignment creates an assignment for one supplier attempt with
// an open response window
func NewSupplierAssignment(
	assignmentID, orderID, supplierID string,
	items []LineItem,
	attempt int,
	excluded []string,
	responseTimeout time.Duration,
) *SupplierAssignment {
	now := time.Now()
	return &SupplierAssignment{
		AssignmentID:      assignmentID,
		OrderID:           orderID,
		SupplierID:        supplierID,
		Items:             items,
		Attempt:           attempt,
		ExcludedSuppliers: excluded,
		Status:            AssignmentStatusAssigned,
		Window: TimeoutWindow{
			Deadline:  now.Add(responseTimeout),
			Duration:  responseTimeout,
			StartedAt: now,
			Active:    true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Accept records the supplier's confirmation and closes the window
func (a *SupplierAssignment) Accept() error {
	if a.Status != AssignmentStatusAssigned {
		return ErrWindowNotActive
	}

	now := time.Now()
	a.Status = AssignmentStatusAccepted
	a.RespondedAt = &now
	a.Window.Active = false
	a.UpdatedAt = now
	return nil
}

// Reject records the supplier's refusal and closes the window
func (a *SupplierAssignment) Reject() error {
	if a.Status != AssignmentStatusAssigned {
		return ErrWindowNotActive
	}

	now := time.Now()
	a.Status = AssignmentStatusRejected
	a.RespondedAt = &now
	a.Window.Active = false
	a.UpdatedAt = now
	return nil
}

// MarkTimedOut records window expiry
func (a *SupplierAssignment) MarkTimedOut() error {
	if a.Status != AssignmentStatusAssigned {
		return ErrWindowNotActive
	}

	a.Status = AssignmentStatusTimedOut
	a.Window.Active = false
	a.UpdatedAt = time.Now()
	return nil
}

// TotalQuantity returns the summed quantity across the assignment's items
func (a *SupplierAssignment) TotalQuantity() int {
	total := 0
	for _, item := range a.Items {
		total += item.Quantity
	}
	return total
}
