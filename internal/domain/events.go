package domain

import "time"

// DomainEvent is implemented by all events emitted from aggregates
type DomainEvent interface {
	EventType() string
}

// OrderRoutedEvent is emitted when routing completes for an order
type OrderRoutedEvent struct {
	OrderID         string    `json:"orderId"`
	DecisionID      string    `json:"decisionId"`
	AssignmentCount int       `json:"assignmentCount"`
	Unallocated     int       `json:"unallocated"`
	RoutedAt        time.Time `json:"routedAt"`
}

func (e *OrderRoutedEvent) EventType() string { return "khaacho.routing.order-routed" }

// OrderAssignedEvent is emitted when the order moves to a supplier attempt
type OrderAssignedEvent struct {
	OrderID    string    `json:"orderId"`
	SupplierID string    `json:"supplierId"`
	Attempt    int       `json:"attempt"`
	AssignedAt time.Time `json:"assignedAt"`
}

func (e *OrderAssignedEvent) EventType() string { return "khaacho.routing.order-assigned" }

// OrderAcceptedEvent is emitted when a supplier confirms the order
type OrderAcceptedEvent struct {
	OrderID    string    `json:"orderId"`
	SupplierID string    `json:"supplierId"`
	AcceptedAt time.Time `json:"acceptedAt"`
}

func (e *OrderAcceptedEvent) EventType() string { return "khaacho.routing.order-accepted" }

// OrderCompletedEvent is emitted when fulfilment finishes
type OrderCompletedEvent struct {
	OrderID     string    `json:"orderId"`
	CompletedAt time.Time `json:"completedAt"`
}

func (e *OrderCompletedEvent) EventType() string { return "khaacho.routing.order-completed" }

// OrderTimedOutEvent is emitted when a supplier response window expires
type OrderTimedOutEvent struct {
	OrderID    string    `json:"orderId"`
	SupplierID string    `json:"supplierId"`
	Attempt    int       `json:"attempt"`
	TimedOutAt time.Time `json:"timedOutAt"`
}

func (e *OrderTimedOutEvent) EventType() string { return "khaacho.routing.assignment-timed-out" }

// OrderEscalatedEvent is emitted when automated recovery gives up
type OrderEscalatedEvent struct {
	OrderID     string    `json:"orderId"`
	Reason      string    `json:"reason"`
	Attempts    int       `json:"attempts"`
	EscalatedAt time.Time `json:"escalatedAt"`
}

func (e *OrderEscalatedEvent) EventType() string { return "khaacho.recovery.order-escalated" }

// OrderCancelledEvent is emitted when an order is cancelled and refunded
type OrderCancelledEvent struct {
	OrderID     string    `json:"orderId"`
	RetailerID  string    `json:"retailerId"`
	Reason      string    `json:"reason"`
	Refund      float64   `json:"refund"`
	CancelledAt time.Time `json:"cancelledAt"`
}

func (e *OrderCancelledEvent) EventType() string { return "khaacho.recovery.order-cancelled" }

// AssignmentReassignedEvent is emitted when a timed out assignment moves to
// the next ranked supplier
type AssignmentReassignedEvent struct {
	OrderID          string    `json:"orderId"`
	FromSupplierID   string    `json:"fromSupplierId"`
	ToSupplierID     string    `json:"toSupplierId"`
	Attempt          int       `json:"attempt"`
	ExcludedSuppliers []string `json:"excludedSuppliers"`
	ReassignedAt     time.Time `json:"reassignedAt"`
}

func (e *AssignmentReassignedEvent) EventType() string {
	return "khaacho.routing.assignment-reassigned"
}
