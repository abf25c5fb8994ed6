package application

import (
	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
)

// RouteOrderCommand represents the command to route a new order to suppliers
type RouteOrderCommand struct {
	OrderID    string
	RetailerID string
	Items      []domain.LineItem
}

// SupplierResponseCommand represents a supplier accepting or rejecting an assignment
type SupplierResponseCommand struct {
	AssignmentID string
	SupplierID   string
}

// StartProcessingCommand represents the command to mark fulfilment underway
type StartProcessingCommand struct {
	OrderID string
}

// CompleteOrderCommand represents the command to complete an order
type CompleteOrderCommand struct {
	OrderID string
}

// CancelOrderCommand represents the command to cancel an order with refund
type CancelOrderCommand struct {
	OrderID string
	Reason  string
}

// UpdateWeightsCommand represents the command to replace the ranking weights
type UpdateWeightsCommand struct {
	Reliability float64
	Delivery    float64
	Response    float64
	Price       float64
	UpdatedBy   string
}

// AcknowledgeNotificationCommand marks an admin notification as handled
type AcknowledgeNotificationCommand struct {
	NotificationID string
	AdminID        string
}

// GetOrderQuery represents the query to get an order by ID
type GetOrderQuery struct {
	OrderID string
}

// GetRoutingDecisionQuery represents the query for an order's routing history
type GetRoutingDecisionQuery struct {
	OrderID string
}

// GetHealingHistoryQuery represents the query for an order's recovery history
type GetHealingHistoryQuery struct {
	OrderID string
}
