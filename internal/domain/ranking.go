package domain

import (
	"errors"
	"math"
	"sort"
	"time"
)

// Errors
var (
	ErrInvalidWeights = errors.New("invalid ranking weights: components must be non-negative and sum to 1.0")
)

// weightSumTolerance bounds floating point drift when validating weight sums
const weightSumTolerance = 0.001

// responseTimeCap is the average response time at which the response
// sub-score bottoms out at zero
const responseTimeCap = 120 * time.Minute

// RankingWeights holds the relative importance of each ranking factor
type RankingWeights struct {
	Reliability float64 `bson:"reliability" json:"reliability"`
	Delivery    float64 `bson:"delivery" json:"delivery"`
	Response    float64 `bson:"response" json:"response"`
	Price       float64 `bson:"price" json:"price"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

// DefaultRankingWeights returns the standard weight profile
func DefaultRankingWeights() RankingWeights {
	return RankingWeights{
		Reliability: 0.35, // 35% weight on historical fulfilment reliability
		Delivery:    0.25, // 25% weight on on-time delivery success
		Response:    0.20, // 20% weight on response speed
		Price:       0.20, // 20% weight on unit price competitiveness
	}
}

// Validate checks that all components are non-negative and sum to 1.0
func (w RankingWeights) Validate() error {
	if w.Reliability < 0 || w.Delivery < 0 || w.Response < 0 || w.Price < 0 {
		return ErrInvalidWeights
	}

	sum := w.Reliability + w.Delivery + w.Response + w.Price
	if math.Abs(sum-1.0) > weightSumTolerance {
		return ErrInvalidWeights
	}

	return nil
}

// SupplierOffer is a supplier's standing offer for a product, as reported
// by the catalog service
type SupplierOffer struct {
	SupplierID          string  `json:"supplierId"`
	ProductCode         string  `json:"productCode"`
	UnitPrice           float64 `json:"unitPrice"`
	AvailableStock      int     `json:"availableStock"`
	ReliabilityScore    float64 `json:"reliabilityScore"`    // 0.0 to 1.0
	DeliverySuccessRate float64 `json:"deliverySuccessRate"` // 0.0 to 1.0
	AvgResponseMinutes  float64 `json:"avgResponseMinutes"`
	Active              bool    `json:"active"`
}

// RankedSupplier is a supplier with its computed ranking for one product
type RankedSupplier struct {
	SupplierID string             `bson:"supplierId" json:"supplierId"`
	Rank       int                `bson:"rank" json:"rank"`
	Score      float64            `bson:"score" json:"score"`
	SubScores  map[string]float64 `bson:"subScores" json:"subScores"` // Factor -> weighted contribution
	UnitPrice  float64            `bson:"unitPrice" json:"unitPrice"`
	Stock      int                `bson:"stock" json:"stock"`
}

// VendorRankingEngine scores and orders candidate suppliers for a product
type VendorRankingEngine struct {
	weights RankingWeights
}

// NewVendorRankingEngine creates a ranking engine with the given weights
func NewVendorRankingEngine(weights RankingWeights) (*VendorRankingEngine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &VendorRankingEngine{weights: weights}, nil
}

// Weights returns the weights currently in force
func (e *VendorRankingEngine) Weights() RankingWeights {
	return e.weights
}

// SetWeights replaces the weight profile after validating it
func (e *VendorRankingEngine) SetWeights(weights RankingWeights) error {
	if err := weights.Validate(); err != nil {
		return err
	}
	e.weights = weights
	return nil
}

// Rank scores the eligible suppliers for a product and returns them best
// first. Suppliers that are inactive, excluded, or lack stock for the
// requested quantity are filtered out. An empty result is a normal outcome,
// not an error.
func (e *VendorRankingEngine) Rank(
	productCode string,
	quantity int,
	excluded []string,
	offers []SupplierOffer,
) []RankedSupplier {
	excludedSet := make(map[string]bool, len(excluded))
	for _, id := range excluded {
		excludedSet[id] = true
	}

	eligible := make([]SupplierOffer, 0, len(offers))
	for _, offer := range offers {
		if !offer.Active {
			continue
		}
		if excludedSet[offer.SupplierID] {
			continue
		}
		if offer.AvailableStock < quantity {
			continue
		}
		if offer.UnitPrice <= 0 {
			continue
		}
		eligible = append(eligible, offer)
	}

	if len(eligible) == 0 {
		return []RankedSupplier{}
	}

	cheapest := eligible[0].UnitPrice
	for _, offer := range eligible[1:] {
		if offer.UnitPrice < cheapest {
			cheapest = offer.UnitPrice
		}
	}

	ranked := make([]RankedSupplier, 0, len(eligible))
	for _, offer := range eligible {
		score, subScores := e.score(offer, cheapest)
		ranked = append(ranked, RankedSupplier{
			SupplierID: offer.SupplierID,
			Score:      score,
			SubScores:  subScores,
			UnitPrice:  offer.UnitPrice,
			Stock:      offer.AvailableStock,
		})
	}

	// Highest score first; ties broken by lower price, then supplier ID,
	// so identical inputs always produce identical orderings.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].UnitPrice != ranked[j].UnitPrice {
			return ranked[i].UnitPrice < ranked[j].UnitPrice
		}
		return ranked[i].SupplierID < ranked[j].SupplierID
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	return ranked
}

// score calculates the weighted score and per-factor contributions for an offer
func (e *VendorRankingEngine) score(offer SupplierOffer, cheapest float64) (float64, map[string]float64) {
	subScores := make(map[string]float64)

	reliabilityScore := clamp01(offer.ReliabilityScore)
	subScores["reliability"] = reliabilityScore * e.weights.Reliability

	deliveryScore := clamp01(offer.DeliverySuccessRate)
	subScores["delivery"] = deliveryScore * e.weights.Delivery

	capMinutes := responseTimeCap.Minutes()
	responseScore := 1.0 - math.Min(offer.AvgResponseMinutes, capMinutes)/capMinutes
	subScores["response"] = clamp01(responseScore) * e.weights.Response

	priceScore := cheapest / offer.UnitPrice
	subScores["price"] = clamp01(priceScore) * e.weights.Price

	total := subScores["reliability"] +
		subScores["delivery"] +
		subScores["response"] +
		subScores["price"]

	return total, subScores
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
