package cloudevents

import (
	"time"
)

// EventType constants for routing domain events
const (
	// Routing events
	OrderRouted         = "khaacho.routing.order-routed"
	AssignmentCreated   = "khaacho.routing.assignment-created"
	AssignmentTimedOut  = "khaacho.routing.assignment-timed-out"
	AssignmentReassigned = "khaacho.routing.assignment-reassigned"
	WeightsUpdated      = "khaacho.routing.weights-updated"

	// Recovery events
	OrderEscalated        = "khaacho.recovery.order-escalated"
	OrderCancelled        = "khaacho.recovery.order-cancelled"
	HealingActionExecuted = "khaacho.recovery.healing-action-executed"
	ProcessingRetried     = "khaacho.recovery.processing-retried"
	FundsReleased         = "khaacho.recovery.funds-released"

	// Notification events
	AdminNotificationRaised = "khaacho.notification.admin-raised"
)

// Source constants for event sources
const (
	SourceRouting  = "/khaacho/routing-service"
	SourceRecovery = "/khaacho/routing-service/recovery"
)

// CloudEvent represents a CloudEvents v1.0 compliant event
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	// Routing-specific extensions
	CorrelationID string `json:"khaachocorrelationid,omitempty"`
	OrderID       string `json:"khaachoorderid,omitempty"`
	Attempt       int    `json:"khaachoattempt,omitempty"`
}

// OrderRoutedData is the payload for OrderRouted events
type OrderRoutedData struct {
	OrderID       string   `json:"orderId"`
	DecisionID    string   `json:"decisionId"`
	SupplierIDs   []string `json:"supplierIds"`
	AssignmentIDs []string `json:"assignmentIds"`
	Unallocated   int      `json:"unallocatedItems"`
	Automatic     bool     `json:"automatic"`
}

// AssignmentCreatedData is the payload for AssignmentCreated events
type AssignmentCreatedData struct {
	AssignmentID string    `json:"assignmentId"`
	OrderID      string    `json:"orderId"`
	SupplierID   string    `json:"supplierId"`
	Attempt      int       `json:"attempt"`
	Deadline     time.Time `json:"responseDeadline"`
}

// AssignmentTimedOutData is the payload for AssignmentTimedOut events
type AssignmentTimedOutData struct {
	AssignmentID string `json:"assignmentId"`
	OrderID      string `json:"orderId"`
	SupplierID   string `json:"supplierId"`
	Attempt      int    `json:"attempt"`
}

// AssignmentReassignedData is the payload for AssignmentReassigned events
type AssignmentReassignedData struct {
	OrderID            string `json:"orderId"`
	PreviousSupplierID string `json:"previousSupplierId"`
	NewSupplierID      string `json:"newSupplierId"`
	NewAssignmentID    string `json:"newAssignmentId"`
	Attempt            int    `json:"attempt"`
}

// OrderEscalatedData is the payload for OrderEscalated events
type OrderEscalatedData struct {
	OrderID        string   `json:"orderId"`
	Reason         string   `json:"reason"`
	TriedSuppliers []string `json:"triedSuppliers,omitempty"`
	Attempts       int      `json:"attempts"`
	NotificationID string   `json:"notificationId,omitempty"`
}

// OrderCancelledData is the payload for OrderCancelled events
type OrderCancelledData struct {
	OrderID string  `json:"orderId"`
	Reason  string  `json:"reason"`
	Refund  float64 `json:"refundAmount"`
}

// HealingActionExecutedData is the payload for HealingActionExecuted events
type HealingActionExecutedData struct {
	ActionID  string `json:"actionId"`
	OrderID   string `json:"orderId"`
	IssueType string `json:"issueType"`
	Action    string `json:"action"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
}

// ProcessingRetriedData is the payload for ProcessingRetried events
type ProcessingRetriedData struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Step    string `json:"step"`
}

// FundsReleasedData is the payload for FundsReleased events
type FundsReleasedData struct {
	OrderID    string  `json:"orderId"`
	RetailerID string  `json:"retailerId"`
	Amount     float64 `json:"amount"`
}

// AdminNotificationData is the payload for AdminNotificationRaised events
type AdminNotificationData struct {
	NotificationID string   `json:"notificationId"`
	OrderID        string   `json:"orderId"`
	Severity       string   `json:"severity"`
	Reason         string   `json:"reason"`
	TriedSuppliers []string `json:"triedSuppliers,omitempty"`
}
