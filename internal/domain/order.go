package domain

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Errors
var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidTransition    = errors.New("invalid order status transition")
	ErrOrderAlreadyTerminal = errors.New("order is in a terminal status")
	ErrNoLineItems          = errors.New("order must contain at least one line item")
	ErrHealingInProgress    = errors.New("order is already under recovery")
)

// OrderStatus represents the lifecycle status of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"     // Created, awaiting routing
	OrderStatusAssigned   OrderStatus = "ASSIGNED"    // Routed to a supplier, awaiting response
	OrderStatusAccepted   OrderStatus = "ACCEPTED"    // Supplier confirmed
	OrderStatusInProgress OrderStatus = "IN_PROGRESS" // Fulfilment underway
	OrderStatusCompleted  OrderStatus = "COMPLETED"   // Delivered and settled
	OrderStatusTimedOut   OrderStatus = "TIMED_OUT"   // Supplier response window expired
	OrderStatusEscalated  OrderStatus = "ESCALATED"   // Handed to admins for manual handling
	OrderStatusCancelled  OrderStatus = "CANCELLED"   // Cancelled with refund
)

// OrderEvent names a lifecycle transition trigger
type OrderEvent string

const (
	EventAssignSupplier  OrderEvent = "assign_supplier"
	EventSupplierAccept  OrderEvent = "supplier_accept"
	EventStartProcessing OrderEvent = "start_processing"
	EventCompleteOrder   OrderEvent = "complete_order"
	EventResponseTimeout OrderEvent = "response_timeout"
	EventEscalate        OrderEvent = "escalate"
	EventCancel          OrderEvent = "cancel"
)

type transitionKey struct {
	from  OrderStatus
	event OrderEvent
}

// orderTransitions is the single source of truth for allowed status changes.
// A (status, event) pair absent from this table is rejected.
var orderTransitions = map[transitionKey]OrderStatus{
	{OrderStatusPending, EventAssignSupplier}:    OrderStatusAssigned,
	{OrderStatusAssigned, EventSupplierAccept}:   OrderStatusAccepted,
	{OrderStatusAssigned, EventResponseTimeout}:  OrderStatusTimedOut,
	{OrderStatusAccepted, EventResponseTimeout}:  OrderStatusTimedOut,
	{OrderStatusAccepted, EventStartProcessing}:  OrderStatusInProgress,
	{OrderStatusInProgress, EventCompleteOrder}:  OrderStatusCompleted,
	{OrderStatusTimedOut, EventAssignSupplier}:   OrderStatusAssigned,
	{OrderStatusTimedOut, EventEscalate}:         OrderStatusEscalated,
	{OrderStatusPending, EventEscalate}:          OrderStatusEscalated,
	{OrderStatusAssigned, EventEscalate}:         OrderStatusEscalated,
	{OrderStatusAccepted, EventEscalate}:         OrderStatusEscalated,
	{OrderStatusInProgress, EventEscalate}:       OrderStatusEscalated,
	{OrderStatusPending, EventCancel}:            OrderStatusCancelled,
	{OrderStatusAssigned, EventCancel}:           OrderStatusCancelled,
	{OrderStatusAccepted, EventCancel}:           OrderStatusCancelled,
	{OrderStatusInProgress, EventCancel}:         OrderStatusCancelled,
	{OrderStatusTimedOut, EventCancel}:           OrderStatusCancelled,
	{OrderStatusEscalated, EventCancel}:          OrderStatusCancelled,
	{OrderStatusEscalated, EventAssignSupplier}:  OrderStatusAssigned,
}

// IsTerminal reports whether the status admits no further transitions except cancel
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// LineItem represents a product line within an order
type LineItem struct {
	ProductCode string  `bson:"productCode"`
	Quantity    int     `bson:"quantity"`
	UnitPrice   float64 `bson:"unitPrice"`
}

// Order is the aggregate root for the routing bounded context
type Order struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	OrderID          string             `bson:"orderId"`
	RetailerID       string             `bson:"retailerId"`
	Status           OrderStatus        `bson:"status"`
	LineItems        []LineItem         `bson:"lineItems"`
	TotalValue       float64            `bson:"totalValue"`
	HealingActive    bool               `bson:"healingActive"`
	AssignmentCount  int                `bson:"assignmentCount"`
	EscalationReason string             `bson:"escalationReason,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
	CompletedAt      *time.Time         `bson:"completedAt,omitempty"`
	CancelledAt      *time.Time         `bson:"cancelledAt,omitempty"`
	DomainEvents     []DomainEvent      `bson:"-"` // Transient
}

// NewOrder creates a new Order aggregate in PENDING status
func NewOrder(orderID, retailerID string, items []LineItem) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoLineItems
	}

	total := 0.0
	for _, item := range items {
		total += float64(item.Quantity) * item.UnitPrice
	}

	now := time.Now()
	return &Order{
		OrderID:      orderID,
		RetailerID:   retailerID,
		Status:       OrderStatusPending,
		LineItems:    items,
		TotalValue:   total,
		CreatedAt:    now,
		UpdatedAt:    now,
		DomainEvents: make([]DomainEvent, 0),
	}, nil
}

// applyTransition is the only place the status field changes
func (o *Order) applyTransition(event OrderEvent) error {
	next, ok := orderTransitions[transitionKey{o.Status, event}]
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, o.Status)
	}

	o.Status = next
	o.UpdatedAt = time.Now()
	return nil
}

// CanApply reports whether an event is currently allowed
func (o *Order) CanApply(event OrderEvent) bool {
	_, ok := orderTransitions[transitionKey{o.Status, event}]
	return ok
}

// AssignSupplier transitions the order to ASSIGNED for a new supplier attempt
func (o *Order) AssignSupplier(supplierID string, attempt int) error {
	if err := o.applyTransition(EventAssignSupplier); err != nil {
		return err
	}

	o.AssignmentCount = attempt

	o.AddDomainEvent(&OrderAssignedEvent{
		OrderID:    o.OrderID,
		SupplierID: supplierID,
		Attempt:    attempt,
		AssignedAt: o.UpdatedAt,
	})

	return nil
}

// AcceptBySupplier transitions the order to ACCEPTED
func (o *Order) AcceptBySupplier(supplierID string) error {
	if err := o.applyTransition(EventSupplierAccept); err != nil {
		return err
	}

	o.AddDomainEvent(&OrderAcceptedEvent{
		OrderID:    o.OrderID,
		SupplierID: supplierID,
		AcceptedAt: o.UpdatedAt,
	})

	return nil
}

// StartProcessing transitions the order to IN_PROGRESS
func (o *Order) StartProcessing() error {
	return o.applyTransition(EventStartProcessing)
}

// Complete transitions the order to COMPLETED
func (o *Order) Complete() error {
	if err := o.applyTransition(EventCompleteOrder); err != nil {
		return err
	}

	now := time.Now()
	o.CompletedAt = &now

	o.AddDomainEvent(&OrderCompletedEvent{
		OrderID:     o.OrderID,
		CompletedAt: now,
	})

	return nil
}

// MarkTimedOut records a supplier response timeout
func (o *Order) MarkTimedOut(supplierID string, attempt int) error {
	if err := o.applyTransition(EventResponseTimeout); err != nil {
		return err
	}

	o.AddDomainEvent(&OrderTimedOutEvent{
		OrderID:    o.OrderID,
		SupplierID: supplierID,
		Attempt:    attempt,
		TimedOutAt: o.UpdatedAt,
	})

	return nil
}

// Escalate hands the order to admins for manual handling
func (o *Order) Escalate(reason string) error {
	if err := o.applyTransition(EventEscalate); err != nil {
		return err
	}

	o.EscalationReason = reason
	o.HealingActive = false

	o.AddDomainEvent(&OrderEscalatedEvent{
		OrderID:     o.OrderID,
		Reason:      reason,
		Attempts:    o.AssignmentCount,
		EscalatedAt: o.UpdatedAt,
	})

	return nil
}

// Cancel cancels the order, releasing reserved credit and stock downstream
func (o *Order) Cancel(reason string) error {
	if err := o.applyTransition(EventCancel); err != nil {
		return err
	}

	now := time.Now()
	o.CancelledAt = &now
	o.HealingActive = false

	o.AddDomainEvent(&OrderCancelledEvent{
		OrderID:     o.OrderID,
		RetailerID:  o.RetailerID,
		Reason:      reason,
		Refund:      o.TotalValue,
		CancelledAt: now,
	})

	return nil
}

// BeginHealing marks the order as under recovery so concurrent sweeps skip it
func (o *Order) BeginHealing() error {
	if o.HealingActive {
		return ErrHealingInProgress
	}
	o.HealingActive = true
	o.UpdatedAt = time.Now()
	return nil
}

// EndHealing clears the recovery marker
func (o *Order) EndHealing() {
	o.HealingActive = false
	o.UpdatedAt = time.Now()
}

// Age returns how long the order has been in its current status
func (o *Order) Age(now time.Time) time.Duration {
	return now.Sub(o.UpdatedAt)
}

// TotalQuantity returns the summed quantity across line items
func (o *Order) TotalQuantity() int {
	total := 0
	for _, item := range o.LineItems {
		total += item.Quantity
	}
	return total
}

// AddDomainEvent adds a domain event
func (o *Order) AddDomainEvent(event DomainEvent) {
	o.DomainEvents = append(o.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (o *Order) ClearDomainEvents() {
	o.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (o *Order) GetDomainEvents() []DomainEvent {
	return o.DomainEvents
}
