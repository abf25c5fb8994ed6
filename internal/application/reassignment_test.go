package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
)

type reassignFixture struct {
	orderRepo        *MockOrderRepo
	assignmentRepo   *MockAssignmentRepo
	decisionLog      *MockDecisionLog
	notificationRepo *MockNotificationRepo
	catalog          *MockSupplierCatalog
	gateway          *MockNotificationGateway
	controller       *ReassignmentController
}

func newReassignFixture(t *testing.T) *reassignFixture {
	t.Helper()

	f := &reassignFixture{
		orderRepo:        &MockOrderRepo{},
		assignmentRepo:   &MockAssignmentRepo{},
		decisionLog:      &MockDecisionLog{},
		notificationRepo: &MockNotificationRepo{},
		catalog:          &MockSupplierCatalog{},
		gateway:          &MockNotificationGateway{},
	}

	engine, err := domain.NewVendorRankingEngine(domain.DefaultRankingWeights())
	require.NoError(t, err)

	f.controller = NewReassignmentController(
		f.orderRepo, f.assignmentRepo, f.decisionLog, f.notificationRepo,
		f.catalog, engine, domain.NewOrderSplitter(domain.DefaultFanOut),
		f.gateway, testLogger(), testMetrics(),
		domain.DefaultMaxAttempts, domain.DefaultResponseTimeout,
	)

	return f
}

func timedOutAssignment(attempt int, excluded []string) *domain.SupplierAssignment {
	return domain.NewSupplierAssignment("ASG-OLD", "ORD-240001", "SUP-ALPHA",
		[]domain.LineItem{{ProductCode: "RICE-25KG", Quantity: 10, UnitPrice: 100}},
		attempt, excluded, domain.DefaultResponseTimeout)
}

func TestReassignmentController_HandleTimeout(t *testing.T) {
	ctx := context.Background()

	t.Run("reassigns to the next ranked supplier with exclusions", func(t *testing.T) {
		f := newReassignFixture(t)

		order := mustOrder(t)
		require.NoError(t, order.AssignSupplier("SUP-ALPHA", 1))

		assignment := timedOutAssignment(1, nil)

		f.orderRepo.On("GetByID", mock.Anything, "ORD-240001").Return(order, nil)
		f.catalog.On("GetOffers", mock.Anything, "RICE-25KG").Return(offersFor("SUP-ALPHA", "SUP-BETA"), nil)
		f.assignmentRepo.On("Update", mock.Anything, assignment).Return(nil)
		f.orderRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Status == domain.OrderStatusAssigned && o.AssignmentCount == 2
		})).Return(nil)
		f.assignmentRepo.On("Save", mock.Anything, mock.MatchedBy(func(a *domain.SupplierAssignment) bool {
			// The failed supplier must be excluded from the retry
			return a.SupplierID == "SUP-BETA" && a.Attempt == 2 &&
				len(a.ExcludedSuppliers) == 1 && a.ExcludedSuppliers[0] == "SUP-ALPHA"
		})).Return(nil)
		f.decisionLog.On("Record", mock.Anything, mock.Anything).Return(nil)

		outcome, err := f.controller.HandleTimeout(ctx, assignment)
		require.NoError(t, err)
		assert.Equal(t, OutcomeReassigned, outcome)
		f.assignmentRepo.AssertExpectations(t)
	})

	t.Run("escalates at the attempt limit", func(t *testing.T) {
		f := newReassignFixture(t)

		order := mustOrder(t)
		require.NoError(t, order.AssignSupplier("SUP-ALPHA", 1))
		require.NoError(t, order.MarkTimedOut("SUP-ALPHA", 1))
		require.NoError(t, order.AssignSupplier("SUP-BETA", 2))
		require.NoError(t, order.MarkTimedOut("SUP-BETA", 2))
		require.NoError(t, order.AssignSupplier("SUP-GAMMA", 3))

		assignment := timedOutAssignment(3, []string{"SUP-ALPHA", "SUP-BETA"})

		f.orderRepo.On("GetByID", mock.Anything, "ORD-240001").Return(order, nil)
		f.assignmentRepo.On("Update", mock.Anything, assignment).Return(nil)
		f.orderRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Status == domain.OrderStatusEscalated
		})).Return(nil)
		f.assignmentRepo.On("FindByOrderID", mock.Anything, "ORD-240001").Return([]*domain.SupplierAssignment{assignment}, nil)
		f.notificationRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.gateway.On("NotifyAdmins", mock.Anything, mock.MatchedBy(func(n *domain.AdminNotification) bool {
			return n.Severity == domain.SeverityCritical && len(n.Attempts) == 1
		})).Return(nil)

		outcome, err := f.controller.HandleTimeout(ctx, assignment)
		require.NoError(t, err)
		assert.Equal(t, OutcomeEscalated, outcome)
		f.catalog.AssertNotCalled(t, "GetOffers", mock.Anything, mock.Anything)
		f.gateway.AssertExpectations(t)
	})

	t.Run("escalates when the candidate pool is exhausted", func(t *testing.T) {
		f := newReassignFixture(t)

		order := mustOrder(t)
		require.NoError(t, order.AssignSupplier("SUP-ALPHA", 1))

		assignment := timedOutAssignment(1, nil)

		f.orderRepo.On("GetByID", mock.Anything, "ORD-240001").Return(order, nil)
		f.assignmentRepo.On("Update", mock.Anything, assignment).Return(nil)
		// Only the already-failed supplier offers the product
		f.catalog.On("GetOffers", mock.Anything, "RICE-25KG").Return(offersFor("SUP-ALPHA"), nil)
		f.orderRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Status == domain.OrderStatusEscalated
		})).Return(nil)
		f.assignmentRepo.On("FindByOrderID", mock.Anything, "ORD-240001").Return([]*domain.SupplierAssignment{assignment}, nil)
		f.notificationRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		// First attempt on a small order: worth a look, not a page
		f.gateway.On("NotifyAdmins", mock.Anything, mock.MatchedBy(func(n *domain.AdminNotification) bool {
			return n.Severity == domain.SeverityWarning
		})).Return(nil)

		outcome, err := f.controller.HandleTimeout(ctx, assignment)
		require.NoError(t, err)
		assert.Equal(t, OutcomeEscalated, outcome)
		f.gateway.AssertExpectations(t)
	})

	t.Run("skips assignments that already got a response", func(t *testing.T) {
		f := newReassignFixture(t)

		assignment := timedOutAssignment(1, nil)
		require.NoError(t, assignment.Accept())

		outcome, err := f.controller.HandleTimeout(ctx, assignment)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkipped, outcome)
		f.orderRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("skips cancelled orders", func(t *testing.T) {
		f := newReassignFixture(t)

		order := mustOrder(t)
		require.NoError(t, order.Cancel("retailer request"))

		assignment := timedOutAssignment(1, nil)
		f.assignmentRepo.On("Update", mock.Anything, assignment).Return(nil)
		f.orderRepo.On("GetByID", mock.Anything, "ORD-240001").Return(order, nil)

		outcome, err := f.controller.HandleTimeout(ctx, assignment)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkipped, outcome)
	})
}

func TestReassignmentController_Reassign(t *testing.T) {
	ctx := context.Background()

	t.Run("moves a rejected order to the next ranked supplier", func(t *testing.T) {
		f := newReassignFixture(t)

		order := mustOrder(t)
		require.NoError(t, order.AssignSupplier("SUP-ALPHA", 1))
		require.NoError(t, order.MarkTimedOut("SUP-ALPHA", 1))

		rejected := timedOutAssignment(1, nil)
		require.NoError(t, rejected.Reject())

		f.catalog.On("GetOffers", mock.Anything, "RICE-25KG").Return(offersFor("SUP-ALPHA", "SUP-BETA"), nil)
		f.orderRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Status == domain.OrderStatusAssigned && o.AssignmentCount == 2
		})).Return(nil)
		f.assignmentRepo.On("Save", mock.Anything, mock.MatchedBy(func(a *domain.SupplierAssignment) bool {
			return a.SupplierID == "SUP-BETA" && a.Attempt == 2 &&
				len(a.ExcludedSuppliers) == 1 && a.ExcludedSuppliers[0] == "SUP-ALPHA"
		})).Return(nil)
		f.decisionLog.On("Record", mock.Anything, mock.Anything).Return(nil)

		outcome, err := f.controller.Reassign(ctx, order, rejected)
		require.NoError(t, err)
		assert.Equal(t, OutcomeReassigned, outcome)
		// The closed assignment is not touched again
		f.assignmentRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		f.assignmentRepo.AssertExpectations(t)
	})

	t.Run("resumes an order stranded after a claimed window", func(t *testing.T) {
		f := newReassignFixture(t)

		// A prior reassignment aborted after closing the window, leaving the
		// order ASSIGNED with nothing to answer for it
		order := mustOrder(t)
		require.NoError(t, order.AssignSupplier("SUP-ALPHA", 1))

		stranded := timedOutAssignment(1, nil)
		require.NoError(t, stranded.MarkTimedOut())

		f.catalog.On("GetOffers", mock.Anything, "RICE-25KG").Return(offersFor("SUP-ALPHA", "SUP-BETA"), nil)
		f.orderRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Status == domain.OrderStatusAssigned && o.AssignmentCount == 2
		})).Return(nil)
		f.assignmentRepo.On("Save", mock.Anything, mock.MatchedBy(func(a *domain.SupplierAssignment) bool {
			return a.SupplierID == "SUP-BETA" && a.Attempt == 2
		})).Return(nil)
		f.decisionLog.On("Record", mock.Anything, mock.Anything).Return(nil)

		outcome, err := f.controller.Reassign(ctx, order, stranded)
		require.NoError(t, err)
		assert.Equal(t, OutcomeReassigned, outcome)
		f.assignmentRepo.AssertExpectations(t)
	})

	t.Run("escalates a rejected order at the attempt limit", func(t *testing.T) {
		f := newReassignFixture(t)

		order := mustOrder(t)
		require.NoError(t, order.AssignSupplier("SUP-ALPHA", 1))
		require.NoError(t, order.MarkTimedOut("SUP-ALPHA", 1))
		require.NoError(t, order.AssignSupplier("SUP-BETA", 2))
		require.NoError(t, order.MarkTimedOut("SUP-BETA", 2))
		require.NoError(t, order.AssignSupplier("SUP-GAMMA", 3))
		require.NoError(t, order.MarkTimedOut("SUP-GAMMA", 3))

		rejected := timedOutAssignment(3, []string{"SUP-ALPHA", "SUP-BETA"})
		require.NoError(t, rejected.Reject())

		f.orderRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Status == domain.OrderStatusEscalated
		})).Return(nil)
		f.assignmentRepo.On("FindByOrderID", mock.Anything, "ORD-240001").Return([]*domain.SupplierAssignment{rejected}, nil)
		f.notificationRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.gateway.On("NotifyAdmins", mock.Anything, mock.MatchedBy(func(n *domain.AdminNotification) bool {
			return n.Severity == domain.SeverityCritical
		})).Return(nil)

		outcome, err := f.controller.Reassign(ctx, order, rejected)
		require.NoError(t, err)
		assert.Equal(t, OutcomeEscalated, outcome)
		f.gateway.AssertExpectations(t)
	})

	t.Run("skips terminal orders", func(t *testing.T) {
		f := newReassignFixture(t)

		order := mustOrder(t)
		require.NoError(t, order.Cancel("retailer request"))

		outcome, err := f.controller.Reassign(ctx, order, timedOutAssignment(1, nil))
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkipped, outcome)
		f.orderRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestTimeoutTracker_ClaimExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("claims only windows it actually closed", func(t *testing.T) {
		repo := &MockAssignmentRepo{}
		tracker := NewTimeoutTracker(repo, testLogger(), testMetrics(), 100)

		a1 := timedOutAssignment(1, nil)
		a2 := domain.NewSupplierAssignment("ASG-2", "ORD-240002", "SUP-BETA",
			[]domain.LineItem{{ProductCode: "OIL-5L", Quantity: 2, UnitPrice: 50}},
			1, nil, domain.DefaultResponseTimeout)

		repo.On("FindExpired", mock.Anything, mock.Anything, 100).Return([]*domain.SupplierAssignment{a1, a2}, nil)
		repo.On("CancelWindow", mock.Anything, "ASG-OLD").Return(true, nil)
		// Someone else closed this one first
		repo.On("CancelWindow", mock.Anything, "ASG-2").Return(false, nil)

		claimed, err := tracker.ClaimExpired(ctx, a1.Window.Deadline.Add(1))
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, "ASG-OLD", claimed[0].AssignmentID)
	})

	t.Run("cancel window is idempotent", func(t *testing.T) {
		repo := &MockAssignmentRepo{}
		tracker := NewTimeoutTracker(repo, testLogger(), testMetrics(), 100)

		repo.On("CancelWindow", mock.Anything, "ASG-1").Return(true, nil).Once()
		repo.On("CancelWindow", mock.Anything, "ASG-1").Return(false, nil)

		first, err := tracker.CancelWindow(ctx, "ASG-1")
		require.NoError(t, err)
		assert.True(t, first)

		second, err := tracker.CancelWindow(ctx, "ASG-1")
		require.NoError(t, err)
		assert.False(t, second)
	})
}
