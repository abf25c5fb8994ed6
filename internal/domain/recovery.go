package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Errors
var (
	ErrUnknownRecoveryAction = errors.New("unknown recovery action")
)

// RecoveryAction is the closed set of automated remediations
type RecoveryAction string

const (
	ActionReassignSupplier RecoveryAction = "reassign_supplier" // Route to next ranked candidate
	ActionRetryStep        RecoveryAction = "retry_step"        // Nudge a stalled processing step
	ActionCancelAndRefund  RecoveryAction = "cancel_and_refund" // Cancel the order and release funds
	ActionEscalate         RecoveryAction = "escalate"          // Hand to admins
)

// Valid reports whether the action is a known variant
func (a RecoveryAction) Valid() bool {
	switch a {
	case ActionReassignSupplier, ActionRetryStep, ActionCancelAndRefund, ActionEscalate:
		return true
	}
	return false
}

// IssueType classifies why an order was flagged as stuck
type IssueType string

const (
	IssueSupplierTimeout IssueType = "supplier_timeout" // No live response window and no reassignment landed
	IssueProcessStall    IssueType = "process_stall"    // ACCEPTED or IN_PROGRESS past threshold
	IssuePendingStall    IssueType = "pending_stall"    // PENDING never picked up by routing
)

// Default stuck thresholds per order status. An order sitting in a status
// longer than its threshold is flagged by the detector.
const (
	StuckThresholdPending    = 30 * time.Minute
	StuckThresholdAssigned   = 45 * time.Minute
	StuckThresholdTimedOut   = 5 * time.Minute
	StuckThresholdAccepted   = 60 * time.Minute
	StuckThresholdInProgress = 180 * time.Minute
)

// StuckThresholds holds the per-status cutoffs the detector sweeps with.
// Assigned must exceed the response window: live windows belong to the
// expiry sweep, and only an assignment whose window was claimed without a
// follow-up reassignment counts as stuck.
type StuckThresholds struct {
	Pending    time.Duration
	Assigned   time.Duration
	TimedOut   time.Duration
	Accepted   time.Duration
	InProgress time.Duration
}

// DefaultStuckThresholds returns the default per-status cutoffs
func DefaultStuckThresholds() StuckThresholds {
	return StuckThresholds{
		Pending:    StuckThresholdPending,
		Assigned:   StuckThresholdAssigned,
		TimedOut:   StuckThresholdTimedOut,
		Accepted:   StuckThresholdAccepted,
		InProgress: StuckThresholdInProgress,
	}
}

// For returns the cutoff and issue classification for a status, or false for
// statuses the detector does not watch
func (t StuckThresholds) For(status OrderStatus) (time.Duration, IssueType, bool) {
	switch status {
	case OrderStatusPending:
		return t.Pending, IssuePendingStall, true
	case OrderStatusAssigned:
		return t.Assigned, IssueSupplierTimeout, true
	case OrderStatusTimedOut:
		return t.TimedOut, IssueSupplierTimeout, true
	case OrderStatusAccepted:
		return t.Accepted, IssueProcessStall, true
	case OrderStatusInProgress:
		return t.InProgress, IssueProcessStall, true
	}
	return 0, "", false
}

// maxConsecutiveFailures is the healing failure streak that forces escalation
const maxConsecutiveFailures = 3

// StuckOrder is a detector finding: an order that has sat in one status
// beyond its threshold
type StuckOrder struct {
	OrderID      string
	Status       OrderStatus
	IssueType    IssueType
	StuckFor     time.Duration
	Attempt      int
	LastSupplier string
	DetectedAt   time.Time
}

// RecommendedAction maps a stuck order's issue to the remediation the
// executor should attempt first
func (s StuckOrder) RecommendedAction() RecoveryAction {
	switch s.IssueType {
	case IssueSupplierTimeout:
		return ActionReassignSupplier
	case IssueProcessStall:
		return ActionRetryStep
	case IssuePendingStall:
		return ActionReassignSupplier
	default:
		return ActionEscalate
	}
}

// ClassifyStuckOrder flags an order whose time in status exceeds the
// threshold for that status. Orders under active healing and orders in
// statuses without a threshold return false.
func ClassifyStuckOrder(order *Order, now time.Time, thresholds StuckThresholds) (StuckOrder, bool) {
	if order.HealingActive {
		return StuckOrder{}, false
	}

	threshold, issue, watched := thresholds.For(order.Status)
	if !watched {
		return StuckOrder{}, false
	}

	age := order.Age(now)
	if age <= threshold {
		return StuckOrder{}, false
	}

	return StuckOrder{
		OrderID:    order.OrderID,
		Status:     order.Status,
		IssueType:  issue,
		StuckFor:   age,
		Attempt:    order.AssignmentCount,
		DetectedAt: now,
	}, true
}

// HealingOutcome records whether an executed action succeeded
type HealingOutcome string

const (
	OutcomeSucceeded HealingOutcome = "succeeded"
	OutcomeFailed    HealingOutcome = "failed"
)

// HealingAction is the immutable audit record of one recovery attempt.
// Actions are inserted once and never updated.
type HealingAction struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	ActionID   string             `bson:"actionId"`
	OrderID    string             `bson:"orderId"`
	Action     RecoveryAction     `bson:"action"`
	IssueType  IssueType          `bson:"issueType"`
	Outcome    HealingOutcome     `bson:"outcome"`
	Detail     string             `bson:"detail,omitempty"` // Failure reason or action context
	TickID     string             `bson:"tickId,omitempty"` // Recovery cycle that ran this action
	ExecutedAt time.Time          `bson:"executedAt"`
}

// NewHealingAction records the outcome of one recovery attempt
func NewHealingAction(
	actionID, orderID string,
	action RecoveryAction,
	issueType IssueType,
	outcome HealingOutcome,
	detail, tickID string,
) *HealingAction {
	return &HealingAction{
		ActionID:   actionID,
		OrderID:    orderID,
		Action:     action,
		IssueType:  issueType,
		Outcome:    outcome,
		Detail:     detail,
		TickID:     tickID,
		ExecutedAt: time.Now(),
	}
}

// Succeeded reports whether the action achieved its remediation
func (h *HealingAction) Succeeded() bool {
	return h.Outcome == OutcomeSucceeded
}

// ShouldForceEscalate reports whether a run of recent healing outcomes for
// one order shows enough consecutive failures to stop retrying and escalate.
// The slice is expected newest first.
func ShouldForceEscalate(recent []*HealingAction) bool {
	streak := 0
	for _, action := range recent {
		if action.Succeeded() {
			break
		}
		streak++
		if streak >= maxConsecutiveFailures {
			return true
		}
	}
	return false
}
