package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/cloudevents"
)

type executorFixture struct {
	orderRepo        *MockOrderRepo
	assignmentRepo   *MockAssignmentRepo
	healingLog       *MockHealingLog
	notificationRepo *MockNotificationRepo
	catalog          *MockSupplierCatalog
	gateway          *MockNotificationGateway
	producer         *MockEventProducer
	executor         *RecoveryExecutor
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()

	f := &executorFixture{
		orderRepo:        &MockOrderRepo{},
		assignmentRepo:   &MockAssignmentRepo{},
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
	splitter := domain.NewOrderSplitter(domain.DefaultFanOut)
	decisionLog := &MockDecisionLog{}
	decisionLog.On("Record", mock.Anything, mock.Anything).Return(nil).Maybe()

	reassigner := NewReassignmentController(
		f.orderRepo, f.assignmentRepo, decisionLog, f.notificationRepo,
		f.catalog, engine, splitter, f.gateway, logger, m,
		domain.DefaultMaxAttempts, domain.DefaultResponseTimeout,
	)

	f.executor = NewRecoveryExecutor(
		f.orderRepo, f.assignmentRepo, f.healingLog, f.notificationRepo,
		f.catalog, engine, splitter, reassigner, f.gateway,
		f.producer, cloudevents.NewEventFactory(cloudevents.SourceRecovery),
		logger, m, domain.DefaultResponseTimeout,
	)

	return f
}

func stuckPending(orderID string) domain.StuckOrder {
	return domain.StuckOrder{
		OrderID:    orderID,
		Status:     domain.OrderStatusPending,
		IssueType:  domain.IssuePendingStall,
		StuckFor:   45 * time.Minute,
		DetectedAt: time.Now(),
	}
}

func stuckInProgress(orderID string) domain.StuckOrder {
	return domain.StuckOrder{
		OrderID:    orderID,
		Status:     domain.OrderStatusInProgress,
		IssueType:  domain.IssueProcessStall,
		StuckFor:   4 * time.Hour,
		DetectedAt: time.Now(),
	}
}

func stuckTimedOut(orderID string) domain.StuckOrder {
	return domain.StuckOrder{
		OrderID:    orderID,
		Status:     domain.OrderStatusTimedOut,
		IssueType:  domain.IssueSupplierTimeout,
		StuckFor:   10 * time.Minute,
		Attempt:    1,
		DetectedAt: time.Now(),
	}
}

func TestRecoveryExecutor_ExecuteRecovery(t *testing.T) {
	ctx := context.Background()

	t.Run("skips orders claimed by another worker", func(t *testing.T) {
		f := newExecutorFixture(t)
		f.orderRepo.On("SetHealingActive", mock.Anything, "ORD-240001", true).Return(false, nil)

		action, err := f.executor.ExecuteRecovery(ctx, stuckPending("ORD-240001"), "TCK-1")
		require.NoError(t, err)
		assert.Nil(t, action)
		f.healingLog.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	})

	t.Run("routes a stalled pending order and releases the claim", func(t *testing.T) {
		f := newExecutorFixture(t)

		order := mustOrder(t)

		f.orderRepo.On("SetHealingActive", mock.Anything, "ORD-240001", true).Return(true, nil)
		f.orderRepo.On("SetHealingActive", mock.Anything, "ORD-240001", false).Return(true, nil)
		f.healingLog.On("GetRecentByOrderID", mock.Anything, "ORD-240001", recentActionsWindow).Return([]*domain.HealingAction{}, nil)
		f.orderRepo.On("GetByID", mock.Anything, "ORD-240001").Return(order, nil)
		f.catalog.On("GetOffers", mock.Anything, mock.Anything).Return(offersFor("SUP-ALPHA"), nil)
		f.orderRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Status == domain.OrderStatusAssigned
		})).Return(nil)
		f.assignmentRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.healingLog.On("Record", mock.Anything, mock.MatchedBy(func(a *domain.HealingAction) bool {
			return a.Action == domain.ActionReassignSupplier && a.Outcome == domain.OutcomeSucceeded && a.TickID == "TCK-1"
		})).Return(nil)
		f.producer.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		action, err := f.executor.ExecuteRecovery(ctx, stuckPending("ORD-240001"), "TCK-1")
		require.NoError(t, err)
		require.NotNil(t, action)
		assert.True(t, action.Succeeded())

		f.orderRepo.AssertCalled(t, "SetHealingActive", mock.Anything, "ORD-240001", false)
		f.healingLog.AssertExpectations(t)
	})

	t.Run("reassigns a rejected order to the next ranked supplier", func(t *testing.T) {
		f := newExecutorFixture(t)

		// Rejection leaves the order TIMED_OUT with the window already closed
		order := mustOrder(t)
		require.NoError(t, order.AssignSupplier("SUP-ALPHA", 1))
		require.NoError(t, order.MarkTimedOut("SUP-ALPHA", 1))

		rejected := domain.NewSupplierAssignment("ASG-1", "ORD-240001", "SUP-ALPHA",
			order.LineItems, 1, nil, domain.DefaultResponseTimeout)
		require.NoError(t, rejected.Reject())

		f.orderRepo.On("SetHealingActive", mock.Anything, "ORD-240001", true).Return(true, nil)
		f.orderRepo.On("SetHealingActive", mock.Anything, "ORD-240001", false).Return(true, nil)
		f.healingLog.On("GetRecentByOrderID", mock.Anything, "ORD-240001", recentActionsWindow).Return([]*domain.HealingAction{}, nil)
		f.orderRepo.On("GetByID", mock.Anything, "ORD-240001").Return(order, nil)
		f.assignmentRepo.On("FindLatestByOrderID", mock.Anything, "ORD-240001").Return(rejected, nil)
		f.catalog.On("GetOffers", mock.Anything, mock.Anything).Return(offersFor("SUP-ALPHA", "SUP-BETA"), nil)
		f.orderRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Status == domain.OrderStatusAssigned && o.AssignmentCount == 2
		})).Return(nil)
		f.assignmentRepo.On("Save", mock.Anything, mock.MatchedBy(func(a *domain.SupplierAssignment) bool {
			return a.SupplierID == "SUP-BETA" && a.Attempt == 2
		})).Return(nil)
		f.healingLog.On("Record", mock.Anything, mock.MatchedBy(func(a *domain.HealingAction) bool {
			return a.Action == domain.ActionReassignSupplier && a.Outcome == domain.OutcomeSucceeded
		})).Return(nil)
		f.producer.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		action, err := f.executor.ExecuteRecovery(ctx, stuckTimedOut("ORD-240001"), "TCK-5")
		require.NoError(t, err)
		require.NotNil(t, action)
		assert.True(t, action.Succeeded())
		f.assignmentRepo.AssertExpectations(t)
	})

	t.Run("retry step publishes a supplier command", func(t *testing.T) {
		f := newExecutorFixture(t)

		order := mustOrder(t)
		require.NoError(t, order.AssignSupplier("SUP-ALPHA", 1))
		require.NoError(t, order.AcceptBySupplier("SUP-ALPHA"))
		require.NoError(t, order.StartProcessing())

		assignment := domain.NewSupplierAssignment("ASG-1", "ORD-240001", "SUP-ALPHA",
			order.LineItems, 1, nil, domain.DefaultResponseTimeout)

		f.orderRepo.On("SetHealingActive", mock.Anything, "ORD-240001", true).Return(true, nil)
		f.orderRepo.On("SetHealingActive", mock.Anything, "ORD-240001", false).Return(true, nil)
		f.healingLog.On("GetRecentByOrderID", mock.Anything, "ORD-240001", recentActionsWindow).Return([]*domain.HealingAction{}, nil)
		f.orderRepo.On("GetByID", mock.Anything, "ORD-240001").Return(order, nil)
		f.assignmentRepo.On("FindLatestByOrderID", mock.Anything, "ORD-240001").Return(assignment, nil)
		f.healingLog.On("Record", mock.Anything, mock.MatchedBy(func(a *domain.HealingAction) bool {
			return a.Action == domain.ActionRetryStep && a.Outcome == domain.OutcomeSucceeded
		})).Return(nil)
		f.producer.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		action, err := f.executor.ExecuteRecovery(ctx, stuckInProgress("ORD-240001"), "TCK-2")
		require.NoError(t, err)
		require.NotNil(t, action)
		assert.Equal(t, domain.ActionRetryStep, action.Action)
		// Retry command plus the healing audit event
		f.producer.AssertNumberOfCalls(t, "PublishEvent", 2)
	})

	t.Run("three failed healing attempts force escalation", func(t *testing.T) {
		f := newExecutorFixture(t)

		order := mustOrder(t)
		require.NoError(t, order.AssignSupplier("SUP-ALPHA", 1))
		require.NoError(t, order.AcceptBySupplier("SUP-ALPHA"))
		require.NoError(t, order.StartProcessing())

		failures := []*domain.HealingAction{
			domain.NewHealingAction("ACT-3", "ORD-240001", domain.ActionRetryStep, domain.IssueProcessStall, domain.OutcomeFailed, "x", ""),
			domain.NewHealingAction("ACT-2", "ORD-240001", domain.ActionRetryStep, domain.IssueProcessStall, domain.OutcomeFailed, "x", ""),
			domain.NewHealingAction("ACT-1", "ORD-240001", domain.ActionRetryStep, domain.IssueProcessStall, domain.OutcomeFailed, "x", ""),
		}

		f.orderRepo.On("SetHealingActive", mock.Anything, "ORD-240001", true).Return(true, nil)
		f.orderRepo.On("SetHealingActive", mock.Anything, "ORD-240001", false).Return(true, nil)
		f.healingLog.On("GetRecentByOrderID", mock.Anything, "ORD-240001", recentActionsWindow).Return(failures, nil)
		f.orderRepo.On("GetByID", mock.Anything, "ORD-240001").Return(order, nil)
		f.orderRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Status == domain.OrderStatusEscalated
		})).Return(nil)
		f.notificationRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.gateway.On("NotifyAdmins", mock.Anything, mock.Anything).Return(nil)
		f.healingLog.On("Record", mock.Anything, mock.MatchedBy(func(a *domain.HealingAction) bool {
			return a.Action == domain.ActionEscalate
		})).Return(nil)
		f.producer.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		action, err := f.executor.ExecuteRecovery(ctx, stuckInProgress("ORD-240001"), "TCK-3")
		require.NoError(t, err)
		require.NotNil(t, action)
		assert.Equal(t, domain.ActionEscalate, action.Action)
		assert.True(t, action.Succeeded())
		f.gateway.AssertExpectations(t)
	})

	t.Run("failed action is still recorded", func(t *testing.T) {
		f := newExecutorFixture(t)

		order := mustOrder(t)

		f.orderRepo.On("SetHealingActive", mock.Anything, "ORD-240001", true).Return(true, nil)
		f.orderRepo.On("SetHealingActive", mock.Anything, "ORD-240001", false).Return(true, nil)
		f.healingLog.On("GetRecentByOrderID", mock.Anything, "ORD-240001", recentActionsWindow).Return([]*domain.HealingAction{}, nil)
		f.orderRepo.On("GetByID", mock.Anything, "ORD-240001").Return(order, nil)
		// No suppliers at all: routing the pending order cannot succeed
		f.catalog.On("GetOffers", mock.Anything, mock.Anything).Return([]domain.SupplierOffer{}, nil)
		f.healingLog.On("Record", mock.Anything, mock.MatchedBy(func(a *domain.HealingAction) bool {
			return a.Outcome == domain.OutcomeFailed && a.Detail == "no eligible suppliers"
		})).Return(nil)
		f.producer.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		action, err := f.executor.ExecuteRecovery(ctx, stuckPending("ORD-240001"), "TCK-4")
		require.NoError(t, err)
		require.NotNil(t, action)
		assert.False(t, action.Succeeded())
		f.healingLog.AssertExpectations(t)
	})
}

func TestStuckOrderDetector_Detect(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("collects candidates across all watched statuses", func(t *testing.T) {
		repo := &MockOrderRepo{}
		detector := NewStuckOrderDetector(repo, testLogger(), testMetrics(), 100, domain.DefaultStuckThresholds())

		pending := mustOrder(t)
		pending.UpdatedAt = now.Add(-45 * time.Minute)

		// Rejected and left behind: no active window, no reassignment yet
		timedOut := mustOrder(t)
		timedOut.OrderID = "ORD-240003"
		timedOut.Status = domain.OrderStatusTimedOut
		timedOut.UpdatedAt = now.Add(-10 * time.Minute)

		accepted := mustOrder(t)
		accepted.OrderID = "ORD-240002"
		accepted.Status = domain.OrderStatusAccepted
		accepted.UpdatedAt = now.Add(-2 * time.Hour)

		repo.On("FindStuckCandidates", mock.Anything, domain.OrderStatusPending, mock.Anything, 100).
			Return([]*domain.Order{pending}, nil)
		repo.On("FindStuckCandidates", mock.Anything, domain.OrderStatusAssigned, mock.Anything, 100).
			Return([]*domain.Order{}, nil)
		repo.On("FindStuckCandidates", mock.Anything, domain.OrderStatusTimedOut, mock.Anything, 100).
			Return([]*domain.Order{timedOut}, nil)
		repo.On("FindStuckCandidates", mock.Anything, domain.OrderStatusAccepted, mock.Anything, 100).
			Return([]*domain.Order{accepted}, nil)
		repo.On("FindStuckCandidates", mock.Anything, domain.OrderStatusInProgress, mock.Anything, 100).
			Return([]*domain.Order{}, nil)

		stuck, err := detector.Detect(ctx, now)
		require.NoError(t, err)
		require.Len(t, stuck, 3)
		assert.Equal(t, domain.IssuePendingStall, stuck[0].IssueType)
		assert.Equal(t, domain.IssueSupplierTimeout, stuck[1].IssueType)
		assert.Equal(t, domain.IssueProcessStall, stuck[2].IssueType)
	})

	t.Run("healing orders returned by the query are still filtered", func(t *testing.T) {
		repo := &MockOrderRepo{}
		detector := NewStuckOrderDetector(repo, testLogger(), testMetrics(), 100, domain.DefaultStuckThresholds())

		healing := mustOrder(t)
		healing.UpdatedAt = now.Add(-2 * time.Hour)
		healing.HealingActive = true

		repo.On("FindStuckCandidates", mock.Anything, mock.Anything, mock.Anything, 100).
			Return([]*domain.Order{healing}, nil)

		stuck, err := detector.Detect(ctx, now)
		require.NoError(t, err)
		assert.Empty(t, stuck)
	})
}
