package application

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/cloudevents"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/logging"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/metrics"
)

func testLogger() *logging.Logger {
	return logging.New(logging.DefaultConfig("routing-service-test"))
}

func testMetrics() *metrics.Metrics {
	return metrics.New(metrics.DefaultConfig("routing_test"))
}

type MockOrderRepo struct {
	mock.Mock
}

func (m *MockOrderRepo) Save(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepo) Update(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepo) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepo) FindByStatus(ctx context.Context, status domain.OrderStatus, limit int) ([]*domain.Order, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

func (m *MockOrderRepo) FindStuckCandidates(ctx context.Context, status domain.OrderStatus, cutoff time.Time, limit int) ([]*domain.Order, error) {
	args := m.Called(ctx, status, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

func (m *MockOrderRepo) SetHealingActive(ctx context.Context, orderID string, active bool) (bool, error) {
	args := m.Called(ctx, orderID, active)
	return args.Bool(0), args.Error(1)
}

type MockAssignmentRepo struct {
	mock.Mock
}

func (m *MockAssignmentRepo) Save(ctx context.Context, assignment *domain.SupplierAssignment) error {
	args := m.Called(ctx, assignment)
	return args.Error(0)
}

func (m *MockAssignmentRepo) Update(ctx context.Context, assignment *domain.SupplierAssignment) error {
	args := m.Called(ctx, assignment)
	return args.Error(0)
}

func (m *MockAssignmentRepo) GetByID(ctx context.Context, assignmentID string) (*domain.SupplierAssignment, error) {
	args := m.Called(ctx, assignmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SupplierAssignment), args.Error(1)
}

func (m *MockAssignmentRepo) FindByOrderID(ctx context.Context, orderID string) ([]*domain.SupplierAssignment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SupplierAssignment), args.Error(1)
}

func (m *MockAssignmentRepo) FindLatestByOrderID(ctx context.Context, orderID string) (*domain.SupplierAssignment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SupplierAssignment), args.Error(1)
}

func (m *MockAssignmentRepo) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.SupplierAssignment, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SupplierAssignment), args.Error(1)
}

func (m *MockAssignmentRepo) CancelWindow(ctx context.Context, assignmentID string) (bool, error) {
	args := m.Called(ctx, assignmentID)
	return args.Bool(0), args.Error(1)
}

type MockDecisionLog struct {
	mock.Mock
}

func (m *MockDecisionLog) Record(ctx context.Context, decision *domain.RoutingDecision) error {
	args := m.Called(ctx, decision)
	return args.Error(0)
}

func (m *MockDecisionLog) GetByOrderID(ctx context.Context, orderID string) ([]*domain.RoutingDecision, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RoutingDecision), args.Error(1)
}

func (m *MockDecisionLog) GetLatestByOrderID(ctx context.Context, orderID string) (*domain.RoutingDecision, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RoutingDecision), args.Error(1)
}

type MockHealingLog struct {
	mock.Mock
}

func (m *MockHealingLog) Record(ctx context.Context, action *domain.HealingAction) error {
	args := m.Called(ctx, action)
	return args.Error(0)
}

func (m *MockHealingLog) GetByOrderID(ctx context.Context, orderID string) ([]*domain.HealingAction, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.HealingAction), args.Error(1)
}

func (m *MockHealingLog) GetRecentByOrderID(ctx context.Context, orderID string, limit int) ([]*domain.HealingAction, error) {
	args := m.Called(ctx, orderID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.HealingAction), args.Error(1)
}

type MockNotificationRepo struct {
	mock.Mock
}

func (m *MockNotificationRepo) Save(ctx context.Context, notification *domain.AdminNotification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

func (m *MockNotificationRepo) GetByID(ctx context.Context, notificationID string) (*domain.AdminNotification, error) {
	args := m.Called(ctx, notificationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AdminNotification), args.Error(1)
}

func (m *MockNotificationRepo) FindUnacknowledged(ctx context.Context, limit int) ([]*domain.AdminNotification, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AdminNotification), args.Error(1)
}

func (m *MockNotificationRepo) Acknowledge(ctx context.Context, notificationID, adminID string) error {
	args := m.Called(ctx, notificationID, adminID)
	return args.Error(0)
}

type MockSupplierCatalog struct {
	mock.Mock
}

func (m *MockSupplierCatalog) GetOffers(ctx context.Context, productCode string) ([]domain.SupplierOffer, error) {
	args := m.Called(ctx, productCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SupplierOffer), args.Error(1)
}

type MockNotificationGateway struct {
	mock.Mock
}

func (m *MockNotificationGateway) NotifyAdmins(ctx context.Context, notification *domain.AdminNotification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

type MockEventProducer struct {
	mock.Mock
}

func (m *MockEventProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.CloudEvent) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}
