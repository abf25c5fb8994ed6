package kafka

import (
	"context"
	"fmt"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/cloudevents"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/kafka"
)

// NotificationGateway implements domain.NotificationGateway by publishing
// admin notifications to the notifications topic, where the notification
// service fans them out to Slack and email.
type NotificationGateway struct {
	producer     *kafka.InstrumentedProducer
	eventFactory *cloudevents.EventFactory
	topic        string
}

// NewNotificationGateway creates a new Kafka-based notification gateway
func NewNotificationGateway(
	producer *kafka.InstrumentedProducer,
	eventFactory *cloudevents.EventFactory,
) *NotificationGateway {
	return &NotificationGateway{
		producer:     producer,
		eventFactory: eventFactory,
		topic:        kafka.Topics.AdminNotifications,
	}
}

// NotifyAdmins publishes an AdminNotificationRaised event
func (g *NotificationGateway) NotifyAdmins(ctx context.Context, notification *domain.AdminNotification) error {
	tried := make([]string, 0, len(notification.Attempts))
	for _, attempt := range notification.Attempts {
		tried = append(tried, attempt.SupplierID)
	}

	event := g.eventFactory.CreateAdminNotificationEvent(ctx, cloudevents.AdminNotificationData{
		NotificationID: notification.NotificationID,
		OrderID:        notification.OrderID,
		Severity:       string(notification.Severity),
		Reason:         notification.Reason,
		TriedSuppliers: tried,
	})

	if err := g.producer.PublishEvent(ctx, g.topic, event); err != nil {
		return fmt.Errorf("failed to publish admin notification: %w", err)
	}

	return nil
}
