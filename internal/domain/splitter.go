package domain

import "sort"

// DefaultFanOut is the number of ranked candidates captured per item for
// later reassignment
const DefaultFanOut = 3

// AssignmentDraft groups the line items destined for one supplier before
// the SupplierAssignment aggregate is created
type AssignmentDraft struct {
	SupplierID string
	Items      []LineItem
}

// SplitResult is the outcome of splitting an order across suppliers
type SplitResult struct {
	// Assignments holds one draft per distinct winning supplier
	Assignments []AssignmentDraft
	// Unallocated holds items no eligible supplier could cover
	Unallocated []LineItem
	// CandidatePools maps product code to the ordered fallback supplier
	// IDs captured for reassignment
	CandidatePools map[string][]string
}

// OrderSplitter allocates order line items to their best-ranked suppliers
type OrderSplitter struct {
	fanOut int
}

// NewOrderSplitter creates a splitter capturing fanOut candidates per item
func NewOrderSplitter(fanOut int) *OrderSplitter {
	if fanOut <= 0 {
		fanOut = DefaultFanOut
	}
	return &OrderSplitter{fanOut: fanOut}
}

// Split assigns each line item to its top-ranked supplier. Items won by the
// same supplier merge into a single draft. Items whose ranking list is empty
// land in Unallocated. Every input item appears in exactly one output bucket
// with its quantity unchanged.
func (s *OrderSplitter) Split(items []LineItem, rankings map[string][]RankedSupplier) SplitResult {
	result := SplitResult{
		Assignments:    make([]AssignmentDraft, 0),
		Unallocated:    make([]LineItem, 0),
		CandidatePools: make(map[string][]string),
	}

	bySupplier := make(map[string][]LineItem)

	for _, item := range items {
		ranked := rankings[item.ProductCode]
		if len(ranked) == 0 {
			result.Unallocated = append(result.Unallocated, item)
			continue
		}

		winner := ranked[0].SupplierID
		bySupplier[winner] = append(bySupplier[winner], item)

		pool := make([]string, 0, s.fanOut)
		for i := 0; i < len(ranked) && i < s.fanOut; i++ {
			pool = append(pool, ranked[i].SupplierID)
		}
		result.CandidatePools[item.ProductCode] = pool
	}

	// Deterministic draft ordering for stable persistence and tests
	supplierIDs := make([]string, 0, len(bySupplier))
	for id := range bySupplier {
		supplierIDs = append(supplierIDs, id)
	}
	sort.Strings(supplierIDs)

	for _, id := range supplierIDs {
		result.Assignments = append(result.Assignments, AssignmentDraft{
			SupplierID: id,
			Items:      bySupplier[id],
		})
	}

	return result
}
