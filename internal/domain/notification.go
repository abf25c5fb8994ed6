package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationSeverity grades an admin notification
type NotificationSeverity string

const (
	SeverityInfo     NotificationSeverity = "info"
	SeverityWarning  NotificationSeverity = "warning"
	SeverityCritical NotificationSeverity = "critical"
)

// HighValueOrderThreshold is the blocked order value above which an
// escalation is always critical
const HighValueOrderThreshold = 50000.0

// EscalationSeverity grades an escalation by how many supplier attempts were
// burned and how much order value is blocked
func EscalationSeverity(attempts int, orderValue float64) NotificationSeverity {
	if attempts >= DefaultMaxAttempts || orderValue >= HighValueOrderThreshold {
		return SeverityCritical
	}
	return SeverityWarning
}

// AttemptRecord summarises one supplier attempt for the notification payload
type AttemptRecord struct {
	Attempt    int        `bson:"attempt" json:"attempt"`
	SupplierID string     `bson:"supplierId" json:"supplierId"`
	Status     string     `bson:"status" json:"status"`
	AssignedAt time.Time  `bson:"assignedAt" json:"assignedAt"`
	RespondedAt *time.Time `bson:"respondedAt,omitempty" json:"respondedAt,omitempty"`
}

// AdminNotification asks a human to intervene on an order the automated
// loop could not recover
type AdminNotification struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty"`
	NotificationID string               `bson:"notificationId"`
	OrderID        string               `bson:"orderId"`
	Severity       NotificationSeverity `bson:"severity"`
	Reason         string               `bson:"reason"`
	Attempts       []AttemptRecord      `bson:"attempts,omitempty"`
	Acknowledged   bool                 `bson:"acknowledged"`
	AcknowledgedBy string               `bson:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time           `bson:"acknowledgedAt,omitempty"`
	CreatedAt      time.Time            `bson:"createdAt"`
}

// NewAdminNotification creates an unacknowledged notification
func NewAdminNotification(
	notificationID, orderID string,
	severity NotificationSeverity,
	reason string,
	attempts []AttemptRecord,
) *AdminNotification {
	return &AdminNotification{
		NotificationID: notificationID,
		OrderID:        orderID,
		Severity:       severity,
		Reason:         reason,
		Attempts:       attempts,
		CreatedAt:      time.Now(),
	}
}

// Acknowledge marks the notification as handled by an admin
func (n *AdminNotification) Acknowledge(adminID string) {
	if n.Acknowledged {
		return
	}
	now := time.Now()
	n.Acknowledged = true
	n.AcknowledgedBy = adminID
	n.AcknowledgedAt = &now
}
