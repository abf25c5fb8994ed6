package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/cloudevents"
	apperrors "github.com/newbihanigroup-creator/khaacho-sub004/pkg/errors"
)

type routingFixture struct {
	orderRepo        *MockOrderRepo
	assignmentRepo   *MockAssignmentRepo
	decisionLog      *MockDecisionLog
	healingLog       *MockHealingLog
	notificationRepo *MockNotificationRepo
	catalog          *MockSupplierCatalog
	gateway          *MockNotificationGateway
	producer         *MockEventProducer
	service          *RoutingApplicationService
}

func newRoutingFixture(t *testing.T) *routingFixture {
	t.Helper()

	f := &routingFixture{
		orderRepo:        &MockOrderRepo{},
		assignmentRepo:   &MockAssignmentRepo{},
		decisionLog:      &MockDecisionLog{},
		healingLog:       &MockHealingLog{},
		notificationRepo: &MockNotificationRepo{},
		catalog:          &MockSupplierCatalog{},
		gateway:          &MockNotificationGateway{},
		producer:         &MockEventProducer{},
	}

	engine, err := domain.NewVendorRankingEngine(domain.DefaultRankingWeights())
	require.NoError(t, err)

	logger := testLogger()
	m := testMetrics()
	tracker := NewTimeoutTracker(f.assignmentRepo, logger, m, 100)

	f.service = NewRoutingApplicationService(
		f.orderRepo, f.assignmentRepo, f.decisionLog, f.healingLog, f.notificationRepo,
		f.catalog, engine, domain.NewOrderSplitter(domain.DefaultFanOut), tracker,
		f.gateway, f.producer, cloudevents.NewEventFactory(cloudevents.SourceRouting),
		logger, m, domain.DefaultResponseTimeout,
	)

	return f
}

func routeCmd() RouteOrderCommand {
	return RouteOrderCommand{
		OrderID:    "ORD-240001",
		RetailerID: "RET-1001",
		Items: []domain.LineItem{
			{ProductCode: "RICE-25KG", Quantity: 10, UnitPrice: 100},
			{ProductCode: "OIL-5L", Quantity: 4, UnitPrice: 50},
		},
	}
}

// offersFor builds identical offers except for price: each supplier is
// slightly cheaper than the next, so the first listed always ranks best.
func offersFor(supplierIDs ...string) []domain.SupplierOffer {
	offers := make([]domain.SupplierOffer, 0, len(supplierIDs))
	for i, id := range supplierIDs {
		offers = append(offers, domain.SupplierOffer{
			SupplierID:          id,
			UnitPrice:           float64(100 + i),
			AvailableStock:      1000,
			ReliabilityScore:    0.9,
			DeliverySuccessRate: 0.9,
			AvgResponseMinutes:  20,
			Active:              true,
		})
	}
	return offers
}

func TestRoutingService_RouteOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("routes all items and records the decision", func(t *testing.T) {
		f := newRoutingFixture(t)

		f.catalog.On("GetOffers", mock.Anything, "RICE-25KG").Return(offersFor("SUP-ALPHA", "SUP-BETA"), nil)
		f.catalog.On("GetOffers", mock.Anything, "OIL-5L").Return(offersFor("SUP-ALPHA"), nil)
		f.orderRepo.On("Save", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
			for _, e := range o.GetDomainEvents() {
				if _, ok := e.(*domain.OrderRoutedEvent); ok {
					return true
				}
			}
			return false
		})).Return(nil)
		f.assignmentRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.SupplierAssignment")).Return(nil)
		f.decisionLog.On("Record", mock.Anything, mock.AnythingOfType("*domain.RoutingDecision")).Return(nil)

		result, err := f.service.RouteOrder(ctx, routeCmd())
		require.NoError(t, err)

		assert.Equal(t, string(domain.OrderStatusAssigned), result.Status)
		assert.NotEmpty(t, result.DecisionID)
		require.Len(t, result.Assignments, 1)
		assert.Equal(t, "SUP-ALPHA", result.Assignments[0].SupplierID)
		assert.Equal(t, 1, result.Assignments[0].Attempt)
		assert.True(t, result.Assignments[0].WindowActive)
		assert.Empty(t, result.Unallocated)

		f.decisionLog.AssertNumberOfCalls(t, "Record", 1)
	})

	t.Run("decision log failure does not fail routing", func(t *testing.T) {
		f := newRoutingFixture(t)

		f.catalog.On("GetOffers", mock.Anything, mock.Anything).Return(offersFor("SUP-ALPHA"), nil)
		f.orderRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.assignmentRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.decisionLog.On("Record", mock.Anything, mock.Anything).Return(errors.New("mongo down"))

		result, err := f.service.RouteOrder(ctx, routeCmd())
		require.NoError(t, err)
		assert.Equal(t, string(domain.OrderStatusAssigned), result.Status)
		assert.Empty(t, result.DecisionID)
	})

	t.Run("escalates when no supplier is eligible", func(t *testing.T) {
		f := newRoutingFixture(t)

		f.catalog.On("GetOffers", mock.Anything, mock.Anything).Return([]domain.SupplierOffer{}, nil)
		f.orderRepo.On("Save", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Status == domain.OrderStatusEscalated
		})).Return(nil)
		f.decisionLog.On("Record", mock.Anything, mock.Anything).Return(nil)
		f.notificationRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.gateway.On("NotifyAdmins", mock.Anything, mock.MatchedBy(func(n *domain.AdminNotification) bool {
			return n.Severity == domain.SeverityCritical
		})).Return(nil)

		result, err := f.service.RouteOrder(ctx, routeCmd())
		require.NoError(t, err)

		assert.Equal(t, string(domain.OrderStatusEscalated), result.Status)
		assert.Empty(t, result.Assignments)
		f.gateway.AssertExpectations(t)
	})

	t.Run("splits items across suppliers when winners differ", func(t *testing.T) {
		f := newRoutingFixture(t)

		riceOffers := offersFor("SUP-ALPHA")
		oilOffers := []domain.SupplierOffer{{
			SupplierID: "SUP-BETA", UnitPrice: 50, AvailableStock: 1000,
			ReliabilityScore: 0.9, DeliverySuccessRate: 0.9, AvgResponseMinutes: 20, Active: true,
		}}
		f.catalog.On("GetOffers", mock.Anything, "RICE-25KG").Return(riceOffers, nil)
		f.catalog.On("GetOffers", mock.Anything, "OIL-5L").Return(oilOffers, nil)
		f.orderRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.assignmentRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.decisionLog.On("Record", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.RouteOrder(ctx, routeCmd())
		require.NoError(t, err)
		assert.Len(t, result.Assignments, 2)
	})

	t.Run("catalog outage maps to service unavailable", func(t *testing.T) {
		f := newRoutingFixture(t)

		f.catalog.On("GetOffers", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

		_, err := f.service.RouteOrder(ctx, routeCmd())
		require.Error(t, err)

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeServiceUnavailable, appErr.Code)
	})

	t.Run("rejects orders without line items", func(t *testing.T) {
		f := newRoutingFixture(t)

		cmd := routeCmd()
		cmd.Items = nil

		_, err := f.service.RouteOrder(ctx, cmd)
		require.Error(t, err)

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeValidationError, appErr.Code)
	})
}

func TestRoutingService_SupplierResponses(t *testing.T) {
	ctx := context.Background()

	assignedOrder := func(t *testing.T) *domain.Order {
		order := mustOrder(t)
		require.NoError(t, order.AssignSupplier("SUP-ALPHA", 1))
		return order
	}

	t.Run("accept moves order and assignment forward", func(t *testing.T) {
		f := newRoutingFixture(t)

		assignment := domain.NewSupplierAssignment("ASG-1", "ORD-240001", "SUP-ALPHA",
			routeCmd().Items, 1, nil, domain.DefaultResponseTimeout)

		f.assignmentRepo.On("GetByID", mock.Anything, "ASG-1").Return(assignment, nil)
		f.orderRepo.On("GetByID", mock.Anything, "ORD-240001").Return(assignedOrder(t), nil)
		f.assignmentRepo.On("CancelWindow", mock.Anything, "ASG-1").Return(true, nil)
		f.assignmentRepo.On("Update", mock.Anything, assignment).Return(nil)
		f.orderRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Status == domain.OrderStatusAccepted
		})).Return(nil)

		dto, err := f.service.AcceptAssignment(ctx, SupplierResponseCommand{AssignmentID: "ASG-1", SupplierID: "SUP-ALPHA"})
		require.NoError(t, err)
		assert.Equal(t, string(domain.AssignmentStatusAccepted), dto.Status)
		assert.False(t, dto.WindowActive)
	})

	t.Run("accept racing a finished expiry sweep is a conflict", func(t *testing.T) {
		f := newRoutingFixture(t)

		assignment := domain.NewSupplierAssignment("ASG-1", "ORD-240001", "SUP-ALPHA",
			routeCmd().Items, 1, nil, domain.DefaultResponseTimeout)

		f.assignmentRepo.On("GetByID", mock.Anything, "ASG-1").Return(assignment, nil)
		f.orderRepo.On("GetByID", mock.Anything, "ORD-240001").Return(assignedOrder(t), nil)
		// The sweep already claimed the window
		f.assignmentRepo.On("CancelWindow", mock.Anything, "ASG-1").Return(false, nil)

		_, err := f.service.AcceptAssignment(ctx, SupplierResponseCommand{AssignmentID: "ASG-1", SupplierID: "SUP-ALPHA"})
		require.Error(t, err)

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeConflict, appErr.Code)

		// The late response must not overwrite the sweep's claim
		f.assignmentRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		f.orderRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("accept by the wrong supplier is rejected", func(t *testing.T) {
		f := newRoutingFixture(t)

		assignment := domain.NewSupplierAssignment("ASG-1", "ORD-240001", "SUP-ALPHA",
			routeCmd().Items, 1, nil, domain.DefaultResponseTimeout)
		f.assignmentRepo.On("GetByID", mock.Anything, "ASG-1").Return(assignment, nil)

		_, err := f.service.AcceptAssignment(ctx, SupplierResponseCommand{AssignmentID: "ASG-1", SupplierID: "SUP-OTHER"})
		require.Error(t, err)

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeConflict, appErr.Code)
	})

	t.Run("unknown assignment returns not found", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.assignmentRepo.On("GetByID", mock.Anything, "ASG-MISSING").Return(nil, nil)

		_, err := f.service.AcceptAssignment(ctx, SupplierResponseCommand{AssignmentID: "ASG-MISSING", SupplierID: "SUP-ALPHA"})
		require.Error(t, err)

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
	})

	t.Run("reject closes the window and marks the order timed out", func(t *testing.T) {
		f := newRoutingFixture(t)

		assignment := domain.NewSupplierAssignment("ASG-1", "ORD-240001", "SUP-ALPHA",
			routeCmd().Items, 1, nil, domain.DefaultResponseTimeout)
		f.assignmentRepo.On("GetByID", mock.Anything, "ASG-1").Return(assignment, nil)
		f.orderRepo.On("GetByID", mock.Anything, "ORD-240001").Return(assignedOrder(t), nil)
		f.assignmentRepo.On("CancelWindow", mock.Anything, "ASG-1").Return(true, nil)
		f.assignmentRepo.On("Update", mock.Anything, assignment).Return(nil)
		f.orderRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Status == domain.OrderStatusTimedOut
		})).Return(nil)

		dto, err := f.service.RejectAssignment(ctx, SupplierResponseCommand{AssignmentID: "ASG-1", SupplierID: "SUP-ALPHA"})
		require.NoError(t, err)
		assert.Equal(t, string(domain.AssignmentStatusRejected), dto.Status)
	})
}

func TestRoutingService_UpdateRankingWeights(t *testing.T) {
	ctx := context.Background()

	t.Run("valid weights are applied and announced", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.producer.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		dto, err := f.service.UpdateRankingWeights(ctx, UpdateWeightsCommand{
			Reliability: 0.40, Delivery: 0.30, Response: 0.15, Price: 0.15, UpdatedBy: "admin-7",
		})
		require.NoError(t, err)
		assert.InDelta(t, 0.40, dto.Reliability, 0.0001)

		current := f.service.GetRankingWeights(ctx)
		assert.InDelta(t, 0.40, current.Reliability, 0.0001)
		f.producer.AssertExpectations(t)
	})

	t.Run("invalid weights are rejected without side effects", func(t *testing.T) {
		f := newRoutingFixture(t)

		_, err := f.service.UpdateRankingWeights(ctx, UpdateWeightsCommand{
			Reliability: 0.50, Delivery: 0.20, Response: 0.10, Price: 0.05,
		})
		require.Error(t, err)

		current := f.service.GetRankingWeights(ctx)
		assert.InDelta(t, 0.35, current.Reliability, 0.0001)
		f.producer.AssertNotCalled(t, "PublishEvent", mock.Anything, mock.Anything, mock.Anything)
	})
}

func mustOrder(t *testing.T) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder("ORD-240001", "RET-1001", routeCmd().Items)
	require.NoError(t, err)
	return order
}
