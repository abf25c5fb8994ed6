package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventFactory creates CloudEvents for routing domain events
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent creates a new CloudEvent with the given parameters
func (f *EventFactory) CreateEvent(
	ctx context.Context,
	eventType string,
	subject string,
	data interface{},
) *CloudEvent {
	return &CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}

// CreateEventWithCorrelation creates an event with correlation tracking
func (f *EventFactory) CreateEventWithCorrelation(
	ctx context.Context,
	eventType string,
	subject string,
	data interface{},
	correlationID string,
	orderID string,
) *CloudEvent {
	event := f.CreateEvent(ctx, eventType, subject, data)
	event.CorrelationID = correlationID
	event.OrderID = orderID
	return event
}

// CreateOrderRoutedEvent creates an OrderRouted event
func (f *EventFactory) CreateOrderRoutedEvent(ctx context.Context, data OrderRoutedData) *CloudEvent {
	event := f.CreateEvent(ctx, OrderRouted, "order/"+data.OrderID, data)
	event.OrderID = data.OrderID
	return event
}

// CreateAssignmentCreatedEvent creates an AssignmentCreated event
func (f *EventFactory) CreateAssignmentCreatedEvent(ctx context.Context, data AssignmentCreatedData) *CloudEvent {
	event := f.CreateEvent(ctx, AssignmentCreated, "assignment/"+data.AssignmentID, data)
	event.OrderID = data.OrderID
	event.Attempt = data.Attempt
	return event
}

// CreateAssignmentTimedOutEvent creates an AssignmentTimedOut event
func (f *EventFactory) CreateAssignmentTimedOutEvent(ctx context.Context, data AssignmentTimedOutData) *CloudEvent {
	event := f.CreateEvent(ctx, AssignmentTimedOut, "assignment/"+data.AssignmentID, data)
	event.OrderID = data.OrderID
	event.Attempt = data.Attempt
	return event
}

// CreateAssignmentReassignedEvent creates an AssignmentReassigned event
func (f *EventFactory) CreateAssignmentReassignedEvent(ctx context.Context, data AssignmentReassignedData) *CloudEvent {
	event := f.CreateEvent(ctx, AssignmentReassigned, "order/"+data.OrderID, data)
	event.OrderID = data.OrderID
	event.Attempt = data.Attempt
	return event
}

// CreateOrderEscalatedEvent creates an OrderEscalated event
func (f *EventFactory) CreateOrderEscalatedEvent(ctx context.Context, data OrderEscalatedData) *CloudEvent {
	event := f.CreateEvent(ctx, OrderEscalated, "order/"+data.OrderID, data)
	event.OrderID = data.OrderID
	return event
}

// CreateOrderCancelledEvent creates an OrderCancelled event
func (f *EventFactory) CreateOrderCancelledEvent(ctx context.Context, data OrderCancelledData) *CloudEvent {
	event := f.CreateEvent(ctx, OrderCancelled, "order/"+data.OrderID, data)
	event.OrderID = data.OrderID
	return event
}

// CreateHealingActionExecutedEvent creates a HealingActionExecuted event
func (f *EventFactory) CreateHealingActionExecutedEvent(ctx context.Context, data HealingActionExecutedData) *CloudEvent {
	event := f.CreateEvent(ctx, HealingActionExecuted, "healing-action/"+data.ActionID, data)
	event.OrderID = data.OrderID
	return event
}

// CreateAdminNotificationEvent creates an AdminNotificationRaised event
func (f *EventFactory) CreateAdminNotificationEvent(ctx context.Context, data AdminNotificationData) *CloudEvent {
	event := f.CreateEvent(ctx, AdminNotificationRaised, "notification/"+data.NotificationID, data)
	event.OrderID = data.OrderID
	return event
}
