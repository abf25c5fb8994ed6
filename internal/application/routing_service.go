package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/cloudevents"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/errors"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/kafka"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/logging"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/metrics"
)

// EventProducer publishes CloudEvents to a topic. Satisfied by
// kafka.InstrumentedProducer.
type EventProducer interface {
	PublishEvent(ctx context.Context, topic string, event *cloudevents.CloudEvent) error
}

// RoutingApplicationService handles order routing use cases
type RoutingApplicationService struct {
	orderRepo        domain.OrderRepository
	assignmentRepo   domain.AssignmentRepository
	decisionLog      domain.DecisionLog
	healingLog       domain.HealingLog
	notificationRepo domain.NotificationRepository
	catalog          domain.SupplierCatalog
	rankingEngine    *domain.VendorRankingEngine
	splitter         *domain.OrderSplitter
	timeoutTracker   *TimeoutTracker
	gateway          domain.NotificationGateway
	producer         EventProducer
	eventFactory     *cloudevents.EventFactory
	logger           *logging.Logger
	metrics          *metrics.Metrics
	responseTimeout  time.Duration
}

// NewRoutingApplicationService creates a new RoutingApplicationService
func NewRoutingApplicationService(
	orderRepo domain.OrderRepository,
	assignmentRepo domain.AssignmentRepository,
	decisionLog domain.DecisionLog,
	healingLog domain.HealingLog,
	notificationRepo domain.NotificationRepository,
	catalog domain.SupplierCatalog,
	rankingEngine *domain.VendorRankingEngine,
	splitter *domain.OrderSplitter,
	timeoutTracker *TimeoutTracker,
	gateway domain.NotificationGateway,
	producer EventProducer,
	eventFactory *cloudevents.EventFactory,
	logger *logging.Logger,
	m *metrics.Metrics,
	responseTimeout time.Duration,
) *RoutingApplicationService {
	if responseTimeout <= 0 {
		responseTimeout = domain.DefaultResponseTimeout
	}
	return &RoutingApplicationService{
		orderRepo:        orderRepo,
		assignmentRepo:   assignmentRepo,
		decisionLog:      decisionLog,
		healingLog:       healingLog,
		notificationRepo: notificationRepo,
		catalog:          catalog,
		rankingEngine:    rankingEngine,
		splitter:         splitter,
		timeoutTracker:   timeoutTracker,
		gateway:          gateway,
		producer:         producer,
		eventFactory:     eventFactory,
		logger:           logger,
		metrics:          m,
		responseTimeout:  responseTimeout,
	}
}

// RouteOrder ranks suppliers for each line item, splits the order, and opens
// the supplier response windows. The routing decision is recorded for audit;
// a failure to record it never fails the routing itself.
func (s *RoutingApplicationService) RouteOrder(ctx context.Context, cmd RouteOrderCommand) (*RouteResultDTO, error) {
	order, err := domain.NewOrder(cmd.OrderID, cmd.RetailerID, cmd.Items)
	if err != nil {
		return nil, errors.ErrValidation(err.Error())
	}

	rankings, itemDecisions, err := s.rankItems(ctx, cmd.Items, nil)
	if err != nil {
		return nil, err
	}

	split := s.splitter.Split(cmd.Items, rankings)

	decision := domain.NewRoutingDecision(
		generateDecisionID(), cmd.OrderID, itemDecisions, s.rankingEngine.Weights(), true, "",
	)
	order.AddDomainEvent(&domain.OrderRoutedEvent{
		OrderID:         cmd.OrderID,
		DecisionID:      decision.DecisionID,
		AssignmentCount: len(split.Assignments),
		Unallocated:     len(split.Unallocated),
		RoutedAt:        time.Now(),
	})

	result := &RouteResultDTO{
		OrderID:     cmd.OrderID,
		Unallocated: toLineItemDTOs(split.Unallocated),
	}

	if len(split.Assignments) == 0 {
		// Nothing routable. Escalate immediately so admins can source manually.
		if err := order.Escalate("no eligible suppliers for any line item"); err != nil {
			return nil, fmt.Errorf("failed to escalate unroutable order: %w", err)
		}
		if err := s.orderRepo.Save(ctx, order); err != nil {
			s.logger.WithError(err).Error("Failed to save escalated order", "orderId", cmd.OrderID)
			return nil, fmt.Errorf("failed to save order: %w", err)
		}

		s.metrics.RecordOrderRouted("unroutable")
		s.metrics.RecordEscalation("no_eligible_suppliers")
		s.raiseNotification(ctx, order, domain.SeverityCritical, "no eligible suppliers for any line item", nil)

		result.Status = string(order.Status)
		result.DecisionID = s.recordDecision(ctx, decision)
		return result, nil
	}

	primary := split.Assignments[0].SupplierID
	if err := order.AssignSupplier(primary, 1); err != nil {
		return nil, fmt.Errorf("failed to assign order: %w", err)
	}

	if err := s.orderRepo.Save(ctx, order); err != nil {
		s.logger.WithError(err).Error("Failed to save routed order", "orderId", cmd.OrderID)
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	for _, draft := range split.Assignments {
		assignment := domain.NewSupplierAssignment(
			generateAssignmentID(), cmd.OrderID, draft.SupplierID,
			draft.Items, 1, nil, s.responseTimeout,
		)

		if err := s.assignmentRepo.Save(ctx, assignment); err != nil {
			s.logger.WithError(err).Error("Failed to save assignment",
				"orderId", cmd.OrderID, "supplierId", draft.SupplierID)
			return nil, fmt.Errorf("failed to save assignment: %w", err)
		}

		s.metrics.RecordAssignmentCreated(1)
		result.Assignments = append(result.Assignments, *ToAssignmentDTO(assignment))
	}

	result.Status = string(order.Status)
	result.DecisionID = s.recordDecision(ctx, decision)

	outcome := "routed"
	if len(split.Unallocated) > 0 {
		outcome = "partially_routed"
	}
	s.metrics.RecordOrderRouted(outcome)

	s.logger.Event(ctx, "order_routed", map[string]any{
		"orderId":     cmd.OrderID,
		"assignments": len(result.Assignments),
		"unallocated": len(split.Unallocated),
	})

	return result, nil
}

// rankItems fetches offers and ranks candidates for each distinct product
func (s *RoutingApplicationService) rankItems(
	ctx context.Context,
	items []domain.LineItem,
	excluded []string,
) (map[string][]domain.RankedSupplier, []domain.ItemDecision, error) {
	rankings := make(map[string][]domain.RankedSupplier, len(items))
	decisions := make([]domain.ItemDecision, 0, len(items))

	for _, item := range items {
		if _, done := rankings[item.ProductCode]; done {
			continue
		}

		offers, err := s.catalog.GetOffers(ctx, item.ProductCode)
		if err != nil {
			s.logger.WithError(err).Error("Failed to fetch supplier offers", "productCode", item.ProductCode)
			return nil, nil, errors.ErrServiceUnavailable("supplier catalog")
		}

		ranked := s.rankingEngine.Rank(item.ProductCode, item.Quantity, excluded, offers)
		rankings[item.ProductCode] = ranked

		chosen := ""
		if len(ranked) > 0 {
			chosen = ranked[0].SupplierID
		}
		decisions = append(decisions, domain.ItemDecision{
			ProductCode:      item.ProductCode,
			Quantity:         item.Quantity,
			RankedCandidates: ranked,
			ChosenSupplierID: chosen,
		})
	}

	return rankings, decisions, nil
}

// recordDecision writes the audit record. Recording is best effort: the
// routing outcome stands even when the log write fails.
func (s *RoutingApplicationService) recordDecision(ctx context.Context, decision *domain.RoutingDecision) string {
	if err := s.decisionLog.Record(ctx, decision); err != nil {
		s.logger.WithError(err).Warn("Failed to record routing decision", "orderId", decision.OrderID)
		return ""
	}

	return decision.DecisionID
}

// AcceptAssignment handles a supplier confirming an assignment. The atomic
// window claim decides the race against the expiry sweep: a response landing
// after the sweep closed the window is a conflict, never a second transition.
func (s *RoutingApplicationService) AcceptAssignment(ctx context.Context, cmd SupplierResponseCommand) (*AssignmentDTO, error) {
	assignment, order, err := s.loadAssignmentAndOrder(ctx, cmd.AssignmentID, cmd.SupplierID)
	if err != nil {
		return nil, err
	}

	won, err := s.timeoutTracker.CancelWindow(ctx, cmd.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to close response window: %w", err)
	}
	if !won {
		return nil, errors.ErrConflict("response window already closed")
	}

	if err := assignment.Accept(); err != nil {
		return nil, errors.ErrConflict(err.Error())
	}

	if err := order.AcceptBySupplier(cmd.SupplierID); err != nil {
		return nil, errors.MapDomainError(err)
	}

	if err := s.assignmentRepo.Update(ctx, assignment); err != nil {
		return nil, fmt.Errorf("failed to update assignment: %w", err)
	}
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	s.logger.Event(ctx, "assignment_accepted", map[string]any{
		"assignmentId": cmd.AssignmentID,
		"supplierId":   cmd.SupplierID,
		"orderId":      order.OrderID,
	})

	return ToAssignmentDTO(assignment), nil
}

// RejectAssignment handles a supplier declining an assignment. Rejection is
// treated like a timeout: the order moves to TIMED_OUT and the stuck sweep
// reassigns it on the next cycle.
func (s *RoutingApplicationService) RejectAssignment(ctx context.Context, cmd SupplierResponseCommand) (*AssignmentDTO, error) {
	assignment, order, err := s.loadAssignmentAndOrder(ctx, cmd.AssignmentID, cmd.SupplierID)
	if err != nil {
		return nil, err
	}

	won, err := s.timeoutTracker.CancelWindow(ctx, cmd.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to close response window: %w", err)
	}
	if !won {
		return nil, errors.ErrConflict("response window already closed")
	}

	if err := assignment.Reject(); err != nil {
		return nil, errors.ErrConflict(err.Error())
	}

	if err := order.MarkTimedOut(cmd.SupplierID, assignment.Attempt); err != nil {
		return nil, errors.MapDomainError(err)
	}

	if err := s.assignmentRepo.Update(ctx, assignment); err != nil {
		return nil, fmt.Errorf("failed to update assignment: %w", err)
	}
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	s.logger.Event(ctx, "assignment_rejected", map[string]any{
		"assignmentId": cmd.AssignmentID,
		"supplierId":   cmd.SupplierID,
		"orderId":      order.OrderID,
	})

	return ToAssignmentDTO(assignment), nil
}

func (s *RoutingApplicationService) loadAssignmentAndOrder(
	ctx context.Context,
	assignmentID, supplierID string,
) (*domain.SupplierAssignment, *domain.Order, error) {
	assignment, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	if assignment == nil {
		return nil, nil, errors.ErrNotFoundWithID("assignment", assignmentID)
	}
	if assignment.SupplierID != supplierID {
		return nil, nil, errors.ErrConflict("assignment belongs to a different supplier")
	}

	order, err := s.orderRepo.GetByID(ctx, assignment.OrderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, nil, errors.ErrNotFoundWithID("order", assignment.OrderID)
	}

	return assignment, order, nil
}

// StartProcessing marks fulfilment underway for an accepted order
func (s *RoutingApplicationService) StartProcessing(ctx context.Context, cmd StartProcessingCommand) (*OrderDTO, error) {
	order, err := s.getOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	if err := order.StartProcessing(); err != nil {
		return nil, errors.MapDomainError(err)
	}

	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	return ToOrderDTO(order), nil
}

// CompleteOrder marks an order as delivered and settled
func (s *RoutingApplicationService) CompleteOrder(ctx context.Context, cmd CompleteOrderCommand) (*OrderDTO, error) {
	order, err := s.getOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	if err := order.Complete(); err != nil {
		return nil, errors.MapDomainError(err)
	}

	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	s.logger.Event(ctx, "order_completed", map[string]any{"orderId": cmd.OrderID})
	return ToOrderDTO(order), nil
}

// CancelOrder cancels an order and releases reserved funds downstream.
// Any active response window is closed so the timeout sweep skips it.
func (s *RoutingApplicationService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (*OrderDTO, error) {
	order, err := s.getOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	if err := order.Cancel(cmd.Reason); err != nil {
		return nil, errors.MapDomainError(err)
	}

	if latest, err := s.assignmentRepo.FindLatestByOrderID(ctx, cmd.OrderID); err == nil && latest != nil {
		if _, err := s.timeoutTracker.CancelWindow(ctx, latest.AssignmentID); err != nil {
			s.logger.WithError(err).Warn("Failed to cancel response window", "orderId", cmd.OrderID)
		}
	}

	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	s.logger.Event(ctx, "order_cancelled", map[string]any{
		"orderId": cmd.OrderID,
		"reason":  cmd.Reason,
	})
	return ToOrderDTO(order), nil
}

// GetOrder retrieves an order by ID
func (s *RoutingApplicationService) GetOrder(ctx context.Context, query GetOrderQuery) (*OrderDTO, error) {
	order, err := s.getOrder(ctx, query.OrderID)
	if err != nil {
		return nil, err
	}
	return ToOrderDTO(order), nil
}

func (s *RoutingApplicationService) getOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, errors.ErrNotFoundWithID("order", orderID)
	}
	return order, nil
}

// GetRoutingDecisions returns the routing audit trail for an order
func (s *RoutingApplicationService) GetRoutingDecisions(ctx context.Context, query GetRoutingDecisionQuery) ([]RoutingDecisionDTO, error) {
	decisions, err := s.decisionLog.GetByOrderID(ctx, query.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get routing decisions: %w", err)
	}

	dtos := make([]RoutingDecisionDTO, 0, len(decisions))
	for _, decision := range decisions {
		dtos = append(dtos, *ToRoutingDecisionDTO(decision))
	}
	return dtos, nil
}

// GetHealingHistory returns the recovery audit trail for an order
func (s *RoutingApplicationService) GetHealingHistory(ctx context.Context, query GetHealingHistoryQuery) ([]HealingActionDTO, error) {
	actions, err := s.healingLog.GetByOrderID(ctx, query.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get healing history: %w", err)
	}
	return ToHealingActionDTOs(actions), nil
}

// UpdateRankingWeights replaces the weight profile used for future routing runs
func (s *RoutingApplicationService) UpdateRankingWeights(ctx context.Context, cmd UpdateWeightsCommand) (*WeightsDTO, error) {
	weights := domain.RankingWeights{
		Reliability: cmd.Reliability,
		Delivery:    cmd.Delivery,
		Response:    cmd.Response,
		Price:       cmd.Price,
		UpdatedAt:   time.Now(),
	}

	if err := s.rankingEngine.SetWeights(weights); err != nil {
		return nil, errors.ErrValidation(err.Error())
	}

	event := s.eventFactory.CreateEvent(ctx, cloudevents.WeightsUpdated, "weights", map[string]interface{}{
		"reliability": weights.Reliability,
		"delivery":    weights.Delivery,
		"response":    weights.Response,
		"price":       weights.Price,
		"updatedBy":   cmd.UpdatedBy,
	})
	if err := s.producer.PublishEvent(ctx, kafka.Topics.RoutingEvents, event); err != nil {
		s.logger.WithError(err).Warn("Failed to publish weights update event")
	}

	s.logger.Audit(ctx, "ranking_weights_updated", "weights", "default", map[string]any{
		"updatedBy":   cmd.UpdatedBy,
		"reliability": weights.Reliability,
		"delivery":    weights.Delivery,
		"response":    weights.Response,
		"price":       weights.Price,
	})

	return &WeightsDTO{
		Reliability: weights.Reliability,
		Delivery:    weights.Delivery,
		Response:    weights.Response,
		Price:       weights.Price,
		UpdatedAt:   weights.UpdatedAt,
	}, nil
}

// GetRankingWeights returns the weight profile currently in force
func (s *RoutingApplicationService) GetRankingWeights(_ context.Context) *WeightsDTO {
	weights := s.rankingEngine.Weights()
	return &WeightsDTO{
		Reliability: weights.Reliability,
		Delivery:    weights.Delivery,
		Response:    weights.Response,
		Price:       weights.Price,
		UpdatedAt:   weights.UpdatedAt,
	}
}

// ListNotifications returns unacknowledged admin notifications
func (s *RoutingApplicationService) ListNotifications(ctx context.Context, limit int) ([]NotificationDTO, error) {
	if limit <= 0 {
		limit = 50
	}
	notifications, err := s.notificationRepo.FindUnacknowledged(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return ToNotificationDTOs(notifications), nil
}

// AcknowledgeNotification marks an admin notification as handled
func (s *RoutingApplicationService) AcknowledgeNotification(ctx context.Context, cmd AcknowledgeNotificationCommand) error {
	if err := s.notificationRepo.Acknowledge(ctx, cmd.NotificationID, cmd.AdminID); err != nil {
		return errors.MapDomainError(err)
	}

	s.logger.Audit(ctx, "notification_acknowledged", "notification", cmd.NotificationID, map[string]any{
		"adminId": cmd.AdminID,
	})
	return nil
}

// raiseNotification persists and delivers an admin notification best effort
func (s *RoutingApplicationService) raiseNotification(
	ctx context.Context,
	order *domain.Order,
	severity domain.NotificationSeverity,
	reason string,
	attempts []domain.AttemptRecord,
) {
	notification := domain.NewAdminNotification(
		generateNotificationID(), order.OrderID, severity, reason, attempts,
	)

	if err := s.notificationRepo.Save(ctx, notification); err != nil {
		s.logger.WithError(err).Error("Failed to save admin notification", "orderId", order.OrderID)
	}
	if err := s.gateway.NotifyAdmins(ctx, notification); err != nil {
		s.logger.WithError(err).Warn("Failed to deliver admin notification", "orderId", order.OrderID)
	}
}

func generateAssignmentID() string {
	return fmt.Sprintf("ASG-%s", uuid.New().String()[:8])
}

func generateDecisionID() string {
	return fmt.Sprintf("DEC-%s", uuid.New().String()[:8])
}

func generateNotificationID() string {
	return fmt.Sprintf("NTF-%s", uuid.New().String()[:8])
}

func generateActionID() string {
	return fmt.Sprintf("ACT-%s", uuid.New().String()[:8])
}

func generateTickID() string {
	return fmt.Sprintf("TCK-%s", uuid.New().String()[:8])
}
