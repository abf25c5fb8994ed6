package application

import (
	"time"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
)

// OrderDTO represents an order in responses
type OrderDTO struct {
	OrderID          string        `json:"orderId"`
	RetailerID       string        `json:"retailerId"`
	Status           string        `json:"status"`
	LineItems        []LineItemDTO `json:"lineItems"`
	TotalValue       float64       `json:"totalValue"`
	AssignmentCount  int           `json:"assignmentCount"`
	HealingActive    bool          `json:"healingActive"`
	EscalationReason string        `json:"escalationReason,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
	CompletedAt      *time.Time    `json:"completedAt,omitempty"`
	CancelledAt      *time.Time    `json:"cancelledAt,omitempty"`
}

// LineItemDTO represents a product line in responses
type LineItemDTO struct {
	ProductCode string  `json:"productCode"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

// AssignmentDTO represents a supplier assignment in responses
type AssignmentDTO struct {
	AssignmentID      string        `json:"assignmentId"`
	OrderID           string        `json:"orderId"`
	SupplierID        string        `json:"supplierId"`
	Items             []LineItemDTO `json:"items"`
	Attempt           int           `json:"attempt"`
	ExcludedSuppliers []string      `json:"excludedSuppliers,omitempty"`
	Status            string        `json:"status"`
	ResponseDeadline  time.Time     `json:"responseDeadline"`
	WindowActive      bool          `json:"windowActive"`
	CreatedAt         time.Time     `json:"createdAt"`
	RespondedAt       *time.Time    `json:"respondedAt,omitempty"`
}

// RouteResultDTO represents the outcome of routing an order
type RouteResultDTO struct {
	OrderID     string          `json:"orderId"`
	DecisionID  string          `json:"decisionId"`
	Status      string          `json:"status"`
	Assignments []AssignmentDTO `json:"assignments"`
	Unallocated []LineItemDTO   `json:"unallocated,omitempty"`
}

// RoutingDecisionDTO represents an audit record of a routing run
type RoutingDecisionDTO struct {
	DecisionID  string            `json:"decisionId"`
	OrderID     string            `json:"orderId"`
	Items       []ItemDecisionDTO `json:"items"`
	Weights     WeightsDTO        `json:"weights"`
	Automatic   bool              `json:"automatic"`
	TriggeredBy string            `json:"triggeredBy,omitempty"`
	DecidedAt   time.Time         `json:"decidedAt"`
}

// ItemDecisionDTO represents how one line item was routed
type ItemDecisionDTO struct {
	ProductCode      string              `json:"productCode"`
	Quantity         int                 `json:"quantity"`
	RankedCandidates []RankedSupplierDTO `json:"rankedCandidates"`
	ChosenSupplierID string              `json:"chosenSupplierId,omitempty"`
}

// RankedSupplierDTO represents a scored candidate supplier
type RankedSupplierDTO struct {
	SupplierID string             `json:"supplierId"`
	Rank       int                `json:"rank"`
	Score      float64            `json:"score"`
	SubScores  map[string]float64 `json:"subScores"`
	UnitPrice  float64            `json:"unitPrice"`
}

// WeightsDTO represents the ranking weight profile
type WeightsDTO struct {
	Reliability float64   `json:"reliability"`
	Delivery    float64   `json:"delivery"`
	Response    float64   `json:"response"`
	Price       float64   `json:"price"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// HealingActionDTO represents one recovery attempt in responses
type HealingActionDTO struct {
	ActionID   string    `json:"actionId"`
	OrderID    string    `json:"orderId"`
	Action     string    `json:"action"`
	IssueType  string    `json:"issueType"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	TickID     string    `json:"tickId,omitempty"`
	ExecutedAt time.Time `json:"executedAt"`
}

// NotificationDTO represents an admin notification in responses
type NotificationDTO struct {
	NotificationID string     `json:"notificationId"`
	OrderID        string     `json:"orderId"`
	Severity       string     `json:"severity"`
	Reason         string     `json:"reason"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// RecoveryCycleDTO represents the outcome of one recovery sweep
type RecoveryCycleDTO struct {
	TickID     string        `json:"tickId"`
	Processed  int           `json:"processed"`
	Reassigned int           `json:"reassigned"`
	Escalated  int           `json:"escalated"`
	Duration   time.Duration `json:"-"`
	DurationMs int64         `json:"durationMs"`
	StartedAt  time.Time     `json:"startedAt"`
}

// ToOrderDTO maps an order aggregate to its DTO
func ToOrderDTO(order *domain.Order) *OrderDTO {
	return &OrderDTO{
		OrderID:          order.OrderID,
		RetailerID:       order.RetailerID,
		Status:           string(order.Status),
		LineItems:        toLineItemDTOs(order.LineItems),
		TotalValue:       order.TotalValue,
		AssignmentCount:  order.AssignmentCount,
		HealingActive:    order.HealingActive,
		EscalationReason: order.EscalationReason,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
		CompletedAt:      order.CompletedAt,
		CancelledAt:      order.CancelledAt,
	}
}

// ToAssignmentDTO maps a supplier assignment to its DTO
func ToAssignmentDTO(assignment *domain.SupplierAssignment) *AssignmentDTO {
	return &AssignmentDTO{
		AssignmentID:      assignment.AssignmentID,
		OrderID:           assignment.OrderID,
		SupplierID:        assignment.SupplierID,
		Items:             toLineItemDTOs(assignment.Items),
		Attempt:           assignment.Attempt,
		ExcludedSuppliers: assignment.ExcludedSuppliers,
		Status:            string(assignment.Status),
		ResponseDeadline:  assignment.Window.Deadline,
		WindowActive:      assignment.Window.Active,
		CreatedAt:         assignment.CreatedAt,
		RespondedAt:       assignment.RespondedAt,
	}
}

// ToRoutingDecisionDTO maps a routing decision to its DTO
func ToRoutingDecisionDTO(decision *domain.RoutingDecision) *RoutingDecisionDTO {
	items := make([]ItemDecisionDTO, 0, len(decision.Items))
	for _, item := range decision.Items {
		candidates := make([]RankedSupplierDTO, 0, len(item.RankedCandidates))
		for _, c := range item.RankedCandidates {
			candidates = append(candidates, RankedSupplierDTO{
				SupplierID: c.SupplierID,
				Rank:       c.Rank,
				Score:      c.Score,
				SubScores:  c.SubScores,
				UnitPrice:  c.UnitPrice,
			})
		}
		items = append(items, ItemDecisionDTO{
			ProductCode:      item.ProductCode,
			Quantity:         item.Quantity,
			RankedCandidates: candidates,
			ChosenSupplierID: item.ChosenSupplierID,
		})
	}

	return &RoutingDecisionDTO{
		DecisionID: decision.DecisionID,
		OrderID:    decision.OrderID,
		Items:      items,
		Weights: WeightsDTO{
			Reliability: decision.Weights.Reliability,
			Delivery:    decision.Weights.Delivery,
			Response:    decision.Weights.Response,
			Price:       decision.Weights.Price,
			UpdatedAt:   decision.Weights.UpdatedAt,
		},
		Automatic:   decision.Automatic,
		TriggeredBy: decision.TriggeredBy,
		DecidedAt:   decision.DecidedAt,
	}
}

// ToHealingActionDTOs maps healing actions to their DTOs
func ToHealingActionDTOs(actions []*domain.HealingAction) []HealingActionDTO {
	dtos := make([]HealingActionDTO, 0, len(actions))
	for _, action := range actions {
		dtos = append(dtos, HealingActionDTO{
			ActionID:   action.ActionID,
			OrderID:    action.OrderID,
			Action:     string(action.Action),
			IssueType:  string(action.IssueType),
			Outcome:    string(action.Outcome),
			Detail:     action.Detail,
			TickID:     action.TickID,
			ExecutedAt: action.ExecutedAt,
		})
	}
	return dtos
}

// ToNotificationDTOs maps admin notifications to their DTOs
func ToNotificationDTOs(notifications []*domain.AdminNotification) []NotificationDTO {
	dtos := make([]NotificationDTO, 0, len(notifications))
	for _, n := range notifications {
		dtos = append(dtos, NotificationDTO{
			NotificationID: n.NotificationID,
			OrderID:        n.OrderID,
			Severity:       string(n.Severity),
			Reason:         n.Reason,
			Acknowledged:   n.Acknowledged,
			AcknowledgedBy: n.AcknowledgedBy,
			AcknowledgedAt: n.AcknowledgedAt,
			CreatedAt:      n.CreatedAt,
		})
	}
	return dtos
}

func toLineItemDTOs(items []domain.LineItem) []LineItemDTO {
	dtos := make([]LineItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, LineItemDTO{
			ProductCode: item.ProductCode,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return dtos
}
