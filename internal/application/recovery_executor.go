package application

import (
	"context"
	"fmt"
	"time"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/cloudevents"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/kafka"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/logging"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/metrics"
)

// recentActionsWindow bounds how much healing history the failure streak check reads
const recentActionsWindow = 5

// RecoveryExecutor runs exactly one healing action per stuck order per
// invocation. An order whose recent healing attempts keep failing is
// escalated instead of retried forever.
type RecoveryExecutor struct {
	orderRepo        domain.OrderRepository
	assignmentRepo   domain.AssignmentRepository
	healingLog       domain.HealingLog
	notificationRepo domain.NotificationRepository
	catalog          domain.SupplierCatalog
	rankingEngine    *domain.VendorRankingEngine
	splitter         *domain.OrderSplitter
	reassigner       *ReassignmentController
	gateway          domain.NotificationGateway
	producer         EventProducer
	eventFactory     *cloudevents.EventFactory
	logger           *logging.Logger
	metrics          *metrics.Metrics
	responseTimeout  time.Duration
}

// NewRecoveryExecutor creates a new RecoveryExecutor
func NewRecoveryExecutor(
	orderRepo domain.OrderRepository,
	assignmentRepo domain.AssignmentRepository,
	healingLog domain.HealingLog,
	notificationRepo domain.NotificationRepository,
	catalog domain.SupplierCatalog,
	rankingEngine *domain.VendorRankingEngine,
	splitter *domain.OrderSplitter,
	reassigner *ReassignmentController,
	gateway domain.NotificationGateway,
	producer EventProducer,
	eventFactory *cloudevents.EventFactory,
	logger *logging.Logger,
	m *metrics.Metrics,
	responseTimeout time.Duration,
) *RecoveryExecutor {
	if responseTimeout <= 0 {
		responseTimeout = domain.DefaultResponseTimeout
	}
	return &RecoveryExecutor{
		orderRepo:        orderRepo,
		assignmentRepo:   assignmentRepo,
		healingLog:       healingLog,
		notificationRepo: notificationRepo,
		catalog:          catalog,
		rankingEngine:    rankingEngine,
		splitter:         splitter,
		reassigner:       reassigner,
		gateway:          gateway,
		producer:         producer,
		eventFactory:     eventFactory,
		logger:           logger,
		metrics:          m,
		responseTimeout:  responseTimeout,
	}
}

// ExecuteRecovery claims a stuck order, runs one healing action, and records
// the outcome. A nil action with nil error means another worker claimed the
// order first.
func (e *RecoveryExecutor) ExecuteRecovery(ctx context.Context, stuck domain.StuckOrder, tickID string) (*domain.HealingAction, error) {
	claimed, err := e.orderRepo.SetHealingActive(ctx, stuck.OrderID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to claim order for healing: %w", err)
	}
	if !claimed {
		return nil, nil
	}
	defer func() {
		if _, err := e.orderRepo.SetHealingActive(ctx, stuck.OrderID, false); err != nil {
			e.logger.WithError(err).Error("Failed to release healing claim", "orderId", stuck.OrderID)
		}
	}()

	action := stuck.RecommendedAction()

	recent, err := e.healingLog.GetRecentByOrderID(ctx, stuck.OrderID, recentActionsWindow)
	if err != nil {
		e.logger.WithError(err).Warn("Failed to read healing history", "orderId", stuck.OrderID)
	} else if domain.ShouldForceEscalate(recent) {
		e.logger.Warn("Healing failure streak reached, forcing escalation",
			"orderId", stuck.OrderID, "recommended", string(action))
		action = domain.ActionEscalate
	}

	outcome, detail := e.execute(ctx, stuck, action)

	record := domain.NewHealingAction(
		generateActionID(), stuck.OrderID, action, stuck.IssueType, outcome, detail, tickID,
	)
	if err := e.healingLog.Record(ctx, record); err != nil {
		e.logger.WithError(err).Error("Failed to record healing action", "orderId", stuck.OrderID)
	}

	e.metrics.RecordHealingAction(string(action), string(outcome))

	data := cloudevents.HealingActionExecutedData{
		ActionID:  record.ActionID,
		OrderID:   stuck.OrderID,
		IssueType: string(stuck.IssueType),
		Action:    string(action),
		Outcome:   string(outcome),
	}
	if outcome == domain.OutcomeFailed {
		data.Error = detail
	}
	event := e.eventFactory.CreateHealingActionExecutedEvent(ctx, data)
	if err := e.producer.PublishEvent(ctx, kafka.Topics.RecoveryEvents, event); err != nil {
		e.logger.WithError(err).Warn("Failed to publish healing event", "orderId", stuck.OrderID)
	}

	return record, nil
}

// execute dispatches one recovery action and reports its outcome
func (e *RecoveryExecutor) execute(ctx context.Context, stuck domain.StuckOrder, action domain.RecoveryAction) (domain.HealingOutcome, string) {
	order, err := e.orderRepo.GetByID(ctx, stuck.OrderID)
	if err != nil || order == nil {
		return domain.OutcomeFailed, "order not found"
	}
	if order.Status.IsTerminal() {
		return domain.OutcomeFailed, "order already terminal"
	}

	switch action {
	case domain.ActionReassignSupplier:
		return e.reassignSupplier(ctx, order)
	case domain.ActionRetryStep:
		return e.retryStep(ctx, order)
	case domain.ActionCancelAndRefund:
		return e.cancelAndRefund(ctx, order)
	case domain.ActionEscalate:
		return e.escalate(ctx, order, stuck)
	default:
		return domain.OutcomeFailed, domain.ErrUnknownRecoveryAction.Error()
	}
}

// reassignSupplier routes a stalled PENDING order, or pushes an order whose
// assignment was rejected, timed out, or stranded mid-reassignment to the
// next ranked supplier
func (e *RecoveryExecutor) reassignSupplier(ctx context.Context, order *domain.Order) (domain.HealingOutcome, string) {
	if order.Status == domain.OrderStatusPending {
		return e.routePendingOrder(ctx, order)
	}

	latest, err := e.assignmentRepo.FindLatestByOrderID(ctx, order.OrderID)
	if err != nil {
		return domain.OutcomeFailed, fmt.Sprintf("failed to load latest assignment: %v", err)
	}
	if latest == nil {
		return e.routePendingOrder(ctx, order)
	}

	if latest.Window.Active {
		if !latest.Window.Expired(time.Now()) {
			// Live windows belong to the expiry sweep
			return domain.OutcomeFailed, "response window still open"
		}
		won, err := e.assignmentRepo.CancelWindow(ctx, latest.AssignmentID)
		if err != nil {
			return domain.OutcomeFailed, fmt.Sprintf("failed to claim window: %v", err)
		}
		if !won {
			return domain.OutcomeFailed, "response window claimed by a concurrent sweep"
		}

		outcome, err := e.reassigner.HandleTimeout(ctx, latest)
		if err != nil {
			return domain.OutcomeFailed, err.Error()
		}
		if outcome == OutcomeSkipped {
			return domain.OutcomeFailed, "assignment no longer eligible for reassignment"
		}
		return domain.OutcomeSucceeded, fmt.Sprintf("handled as %s", outcome)
	}

	outcome, err := e.reassigner.Reassign(ctx, order, latest)
	if err != nil {
		return domain.OutcomeFailed, err.Error()
	}
	if outcome == OutcomeSkipped {
		return domain.OutcomeFailed, "order no longer eligible for reassignment"
	}
	return domain.OutcomeSucceeded, fmt.Sprintf("handled as %s", outcome)
}

// routePendingOrder ranks and assigns a PENDING order routing never picked up
func (e *RecoveryExecutor) routePendingOrder(ctx context.Context, order *domain.Order) (domain.HealingOutcome, string) {
	rankings := make(map[string][]domain.RankedSupplier, len(order.LineItems))
	for _, item := range order.LineItems {
		offers, err := e.catalog.GetOffers(ctx, item.ProductCode)
		if err != nil {
			return domain.OutcomeFailed, fmt.Sprintf("catalog unavailable: %v", err)
		}
		rankings[item.ProductCode] = e.rankingEngine.Rank(item.ProductCode, item.Quantity, nil, offers)
	}

	split := e.splitter.Split(order.LineItems, rankings)
	if len(split.Assignments) == 0 {
		return domain.OutcomeFailed, "no eligible suppliers"
	}

	attempt := order.AssignmentCount + 1
	if err := order.AssignSupplier(split.Assignments[0].SupplierID, attempt); err != nil {
		return domain.OutcomeFailed, err.Error()
	}
	if err := e.orderRepo.Update(ctx, order); err != nil {
		return domain.OutcomeFailed, fmt.Sprintf("failed to update order: %v", err)
	}

	for _, draft := range split.Assignments {
		assignment := domain.NewSupplierAssignment(
			generateAssignmentID(), order.OrderID, draft.SupplierID,
			draft.Items, attempt, nil, e.responseTimeout,
		)
		if err := e.assignmentRepo.Save(ctx, assignment); err != nil {
			return domain.OutcomeFailed, fmt.Sprintf("failed to save assignment: %v", err)
		}
		e.metrics.RecordAssignmentCreated(attempt)
	}

	return domain.OutcomeSucceeded, fmt.Sprintf("routed to %s", split.Assignments[0].SupplierID)
}

// retryStep nudges the supplier side of a stalled ACCEPTED or IN_PROGRESS
// order by publishing a retry command
func (e *RecoveryExecutor) retryStep(ctx context.Context, order *domain.Order) (domain.HealingOutcome, string) {
	latest, err := e.assignmentRepo.FindLatestByOrderID(ctx, order.OrderID)
	if err != nil || latest == nil {
		return domain.OutcomeFailed, "no assignment to retry"
	}

	event := e.eventFactory.CreateEvent(ctx, cloudevents.ProcessingRetried, "order/"+order.OrderID, cloudevents.ProcessingRetriedData{
		OrderID: order.OrderID,
		Status:  string(order.Status),
		Step:    "supplier_fulfilment",
	})
	event.OrderID = order.OrderID

	if err := e.producer.PublishEvent(ctx, kafka.Topics.SupplierCommands, event); err != nil {
		return domain.OutcomeFailed, fmt.Sprintf("failed to publish retry command: %v", err)
	}

	return domain.OutcomeSucceeded, fmt.Sprintf("retry command sent to %s", latest.SupplierID)
}

// cancelAndRefund cancels the order and tells the billing side to release the
// retailer's reserved credit
func (e *RecoveryExecutor) cancelAndRefund(ctx context.Context, order *domain.Order) (domain.HealingOutcome, string) {
	if err := order.Cancel("automated recovery: order unrecoverable"); err != nil {
		return domain.OutcomeFailed, err.Error()
	}
	if err := e.orderRepo.Update(ctx, order); err != nil {
		return domain.OutcomeFailed, fmt.Sprintf("failed to update order: %v", err)
	}

	release := e.eventFactory.CreateEvent(ctx, cloudevents.FundsReleased, "order/"+order.OrderID, cloudevents.FundsReleasedData{
		OrderID:    order.OrderID,
		RetailerID: order.RetailerID,
		Amount:     order.TotalValue,
	})
	release.OrderID = order.OrderID

	if err := e.producer.PublishEvent(ctx, kafka.Topics.RecoveryEvents, release); err != nil {
		e.logger.WithError(err).Warn("Failed to publish funds release",
			"orderId", order.OrderID,
		)
	}

	return domain.OutcomeSucceeded, fmt.Sprintf("cancelled with refund %.2f", order.TotalValue)
}

// escalate hands the stuck order to admins
func (e *RecoveryExecutor) escalate(ctx context.Context, order *domain.Order, stuck domain.StuckOrder) (domain.HealingOutcome, string) {
	reason := fmt.Sprintf("stuck in %s for %s (%s)", stuck.Status, stuck.StuckFor.Round(time.Minute), stuck.IssueType)

	if err := order.Escalate(reason); err != nil {
		return domain.OutcomeFailed, err.Error()
	}
	if err := e.orderRepo.Update(ctx, order); err != nil {
		return domain.OutcomeFailed, fmt.Sprintf("failed to update order: %v", err)
	}

	notification := domain.NewAdminNotification(
		generateNotificationID(), order.OrderID,
		domain.EscalationSeverity(order.AssignmentCount, order.TotalValue), reason, nil,
	)
	if err := e.notificationRepo.Save(ctx, notification); err != nil {
		e.logger.WithError(err).Error("Failed to save escalation notification", "orderId", order.OrderID)
	}
	if err := e.gateway.NotifyAdmins(ctx, notification); err != nil {
		e.logger.WithError(err).Warn("Failed to deliver escalation notification", "orderId", order.OrderID)
	}

	e.metrics.RecordEscalation("healing_exhausted")
	return domain.OutcomeSucceeded, reason
}
