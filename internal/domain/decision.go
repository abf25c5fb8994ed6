package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ItemDecision captures how one line item was routed
type ItemDecision struct {
	ProductCode      string           `bson:"productCode"`
	Quantity         int              `bson:"quantity"`
	RankedCandidates []RankedSupplier `bson:"rankedCandidates"`
	ChosenSupplierID string           `bson:"chosenSupplierId,omitempty"` // Empty when unallocated
}

// RoutingDecision is the immutable audit record of one routing run.
// Decisions are written once and never updated; corrections are expressed
// as new decisions.
type RoutingDecision struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	DecisionID  string             `bson:"decisionId"`
	OrderID     string             `bson:"orderId"`
	Items       []ItemDecision     `bson:"items"`
	Weights     RankingWeights     `bson:"weights"`
	Automatic   bool               `bson:"automatic"`
	TriggeredBy string             `bson:"triggeredBy,omitempty"` // Actor for manual decisions
	DecidedAt   time.Time          `bson:"decidedAt"`
}

// NewRoutingDecision creates an audit record for a routing run
func NewRoutingDecision(
	decisionID, orderID string,
	items []ItemDecision,
	weights RankingWeights,
	automatic bool,
	triggeredBy string,
) *RoutingDecision {
	return &RoutingDecision{
		DecisionID:  decisionID,
		OrderID:     orderID,
		Items:       items,
		Weights:     weights,
		Automatic:   automatic,
		TriggeredBy: triggeredBy,
		DecidedAt:   time.Now(),
	}
}

// ChosenSuppliers returns the distinct suppliers selected in this decision
func (d *RoutingDecision) ChosenSuppliers() []string {
	seen := make(map[string]bool)
	suppliers := make([]string, 0)
	for _, item := range d.Items {
		if item.ChosenSupplierID == "" || seen[item.ChosenSupplierID] {
			continue
		}
		seen[item.ChosenSupplierID] = true
		suppliers = append(suppliers, item.ChosenSupplierID)
	}
	return suppliers
}
