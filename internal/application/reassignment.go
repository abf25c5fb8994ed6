package application

import (
	"context"
	"fmt"
	"time"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/logging"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/metrics"
)

// ReassignmentOutcome reports what the controller did with a timed out assignment
type ReassignmentOutcome string

const (
	OutcomeReassigned ReassignmentOutcome = "reassigned"
	OutcomeEscalated  ReassignmentOutcome = "escalated"
	OutcomeSkipped    ReassignmentOutcome = "skipped"
)

// ReassignmentController moves timed out assignments to the next ranked
// supplier, bounded by the attempt limit. Exhausting the limit or the
// candidate pool escalates the order to admins.
type ReassignmentController struct {
	orderRepo        domain.OrderRepository
	assignmentRepo   domain.AssignmentRepository
	decisionLog      domain.DecisionLog
	notificationRepo domain.NotificationRepository
	catalog          domain.SupplierCatalog
	rankingEngine    *domain.VendorRankingEngine
	splitter         *domain.OrderSplitter
	gateway          domain.NotificationGateway
	logger           *logging.Logger
	metrics          *metrics.Metrics
	maxAttempts      int
	responseTimeout  time.Duration
}

// NewReassignmentController creates a new ReassignmentController
func NewReassignmentController(
	orderRepo domain.OrderRepository,
	assignmentRepo domain.AssignmentRepository,
	decisionLog domain.DecisionLog,
	notificationRepo domain.NotificationRepository,
	catalog domain.SupplierCatalog,
	rankingEngine *domain.VendorRankingEngine,
	splitter *domain.OrderSplitter,
	gateway domain.NotificationGateway,
	logger *logging.Logger,
	m *metrics.Metrics,
	maxAttempts int,
	responseTimeout time.Duration,
) *ReassignmentController {
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	if responseTimeout <= 0 {
		responseTimeout = domain.DefaultResponseTimeout
	}
	return &ReassignmentController{
		orderRepo:        orderRepo,
		assignmentRepo:   assignmentRepo,
		decisionLog:      decisionLog,
		notificationRepo: notificationRepo,
		catalog:          catalog,
		rankingEngine:    rankingEngine,
		splitter:         splitter,
		gateway:          gateway,
		logger:           logger,
		metrics:          m,
		maxAttempts:      maxAttempts,
		responseTimeout:  responseTimeout,
	}
}

// HandleTimeout processes one assignment whose response window the sweep has
// already claimed. The assignment moves to TIMED_OUT; the order either moves
// to the next ranked supplier or escalates.
func (c *ReassignmentController) HandleTimeout(ctx context.Context, assignment *domain.SupplierAssignment) (ReassignmentOutcome, error) {
	if err := assignment.MarkTimedOut(); err != nil {
		// Already responded; nothing to reassign
		return OutcomeSkipped, nil
	}
	if err := c.assignmentRepo.Update(ctx, assignment); err != nil {
		return OutcomeSkipped, fmt.Errorf("failed to update timed out assignment: %w", err)
	}

	order, err := c.orderRepo.GetByID(ctx, assignment.OrderID)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return OutcomeSkipped, domain.ErrOrderNotFound
	}
	if order.Status.IsTerminal() || order.Status == domain.OrderStatusEscalated {
		return OutcomeSkipped, nil
	}

	if err := order.MarkTimedOut(assignment.SupplierID, assignment.Attempt); err != nil {
		c.logger.WithError(err).Warn("Order not in a timeout-eligible status",
			"orderId", order.OrderID, "status", string(order.Status))
		return OutcomeSkipped, nil
	}

	return c.advance(ctx, order, assignment)
}

// Reassign moves an order whose current assignment is already closed to the
// next ranked supplier. This is the recovery path for rejected assignments
// and for reassignments that aborted after the window was claimed.
func (c *ReassignmentController) Reassign(ctx context.Context, order *domain.Order, last *domain.SupplierAssignment) (ReassignmentOutcome, error) {
	if order.Status.IsTerminal() || order.Status == domain.OrderStatusEscalated {
		return OutcomeSkipped, nil
	}

	if order.Status == domain.OrderStatusAssigned {
		// The window was claimed but the order never moved on
		if err := order.MarkTimedOut(last.SupplierID, last.Attempt); err != nil {
			return OutcomeSkipped, fmt.Errorf("failed to mark stranded order timed out: %w", err)
		}
	}
	if order.Status != domain.OrderStatusTimedOut {
		return OutcomeSkipped, nil
	}

	return c.advance(ctx, order, last)
}

// advance retries with the next supplier or escalates at the attempt limit
func (c *ReassignmentController) advance(
	ctx context.Context,
	order *domain.Order,
	failed *domain.SupplierAssignment,
) (ReassignmentOutcome, error) {
	if failed.Attempt >= c.maxAttempts {
		return c.escalate(ctx, order, failed,
			fmt.Sprintf("no accepting supplier after %d attempts", failed.Attempt), "max_attempts")
	}

	return c.reassign(ctx, order, failed)
}

// reassign routes the timed out assignment's items to the next ranked
// supplier, excluding every supplier already tried
func (c *ReassignmentController) reassign(
	ctx context.Context,
	order *domain.Order,
	failed *domain.SupplierAssignment,
) (ReassignmentOutcome, error) {
	excluded := append(append([]string{}, failed.ExcludedSuppliers...), failed.SupplierID)

	rankings := make(map[string][]domain.RankedSupplier, len(failed.Items))
	itemDecisions := make([]domain.ItemDecision, 0, len(failed.Items))
	for _, item := range failed.Items {
		offers, err := c.catalog.GetOffers(ctx, item.ProductCode)
		if err != nil {
			c.logger.WithError(err).Error("Failed to fetch offers for reassignment",
				"orderId", order.OrderID, "productCode", item.ProductCode)
			return OutcomeSkipped, fmt.Errorf("failed to fetch offers: %w", err)
		}

		ranked := c.rankingEngine.Rank(item.ProductCode, item.Quantity, excluded, offers)
		rankings[item.ProductCode] = ranked

		chosen := ""
		if len(ranked) > 0 {
			chosen = ranked[0].SupplierID
		}
		itemDecisions = append(itemDecisions, domain.ItemDecision{
			ProductCode:      item.ProductCode,
			Quantity:         item.Quantity,
			RankedCandidates: ranked,
			ChosenSupplierID: chosen,
		})
	}

	split := c.splitter.Split(failed.Items, rankings)
	if len(split.Assignments) == 0 {
		return c.escalate(ctx, order, failed, "no remaining candidate suppliers", "candidates_exhausted")
	}

	attempt := failed.Attempt + 1
	next := split.Assignments[0]

	if err := order.AssignSupplier(next.SupplierID, attempt); err != nil {
		return OutcomeSkipped, fmt.Errorf("failed to assign next supplier: %w", err)
	}

	replacement := domain.NewSupplierAssignment(
		generateAssignmentID(), order.OrderID, next.SupplierID,
		next.Items, attempt, excluded, c.responseTimeout,
	)

	order.AddDomainEvent(&domain.AssignmentReassignedEvent{
		OrderID:           order.OrderID,
		FromSupplierID:    failed.SupplierID,
		ToSupplierID:      next.SupplierID,
		Attempt:           attempt,
		ExcludedSuppliers: excluded,
		ReassignedAt:      time.Now(),
	})

	if err := c.orderRepo.Update(ctx, order); err != nil {
		return OutcomeSkipped, fmt.Errorf("failed to update order: %w", err)
	}
	if err := c.assignmentRepo.Save(ctx, replacement); err != nil {
		return OutcomeSkipped, fmt.Errorf("failed to save replacement assignment: %w", err)
	}

	decision := domain.NewRoutingDecision(
		generateDecisionID(), order.OrderID, itemDecisions, c.rankingEngine.Weights(), true, "",
	)
	if err := c.decisionLog.Record(ctx, decision); err != nil {
		c.logger.WithError(err).Warn("Failed to record reassignment decision", "orderId", order.OrderID)
	}

	c.metrics.RecordReassignment(attempt)
	c.metrics.RecordAssignmentCreated(attempt)

	c.logger.Event(ctx, "assignment_reassigned", map[string]any{
		"orderId":      order.OrderID,
		"fromSupplier": failed.SupplierID,
		"toSupplier":   next.SupplierID,
		"attempt":      attempt,
	})

	return OutcomeReassigned, nil
}

// escalate hands the order to admins with the full attempt history
func (c *ReassignmentController) escalate(
	ctx context.Context,
	order *domain.Order,
	failed *domain.SupplierAssignment,
	reason, metricReason string,
) (ReassignmentOutcome, error) {
	if err := order.Escalate(reason); err != nil {
		return OutcomeSkipped, fmt.Errorf("failed to escalate order: %w", err)
	}

	if err := c.orderRepo.Update(ctx, order); err != nil {
		return OutcomeSkipped, fmt.Errorf("failed to update escalated order: %w", err)
	}

	attempts := c.attemptHistory(ctx, order.OrderID)
	severity := domain.EscalationSeverity(order.AssignmentCount, order.TotalValue)
	notification := domain.NewAdminNotification(
		generateNotificationID(), order.OrderID, severity, reason, attempts,
	)

	if err := c.notificationRepo.Save(ctx, notification); err != nil {
		c.logger.WithError(err).Error("Failed to save escalation notification", "orderId", order.OrderID)
	}
	if err := c.gateway.NotifyAdmins(ctx, notification); err != nil {
		c.logger.WithError(err).Warn("Failed to deliver escalation notification", "orderId", order.OrderID)
	}

	c.metrics.RecordEscalation(metricReason)

	c.logger.Event(ctx, "order_escalated", map[string]any{
		"orderId":      order.OrderID,
		"reason":       reason,
		"attempts":     order.AssignmentCount,
		"lastSupplier": failed.SupplierID,
	})

	return OutcomeEscalated, nil
}

// attemptHistory summarises every supplier attempt for the notification payload
func (c *ReassignmentController) attemptHistory(ctx context.Context, orderID string) []domain.AttemptRecord {
	assignments, err := c.assignmentRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to load attempt history", "orderId", orderID)
		return nil
	}

	records := make([]domain.AttemptRecord, 0, len(assignments))
	for _, a := range assignments {
		records = append(records, domain.AttemptRecord{
			Attempt:     a.Attempt,
			SupplierID:  a.SupplierID,
			Status:      string(a.Status),
			AssignedAt:  a.CreatedAt,
			RespondedAt: a.RespondedAt,
		})
	}
	return records
}
