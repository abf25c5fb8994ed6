package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOffers() []SupplierOffer {
	return []SupplierOffer{
		{
			SupplierID:          "SUP-ALPHA",
			ProductCode:         "RICE-25KG",
			UnitPrice:           100,
			AvailableStock:      500,
			ReliabilityScore:    0.95,
			DeliverySuccessRate: 0.90,
			AvgResponseMinutes:  15,
			Active:              true,
		},
		{
			SupplierID:          "SUP-BETA",
			ProductCode:         "RICE-25KG",
			UnitPrice:           95,
			AvailableStock:      200,
			ReliabilityScore:    0.80,
			DeliverySuccessRate: 0.85,
			AvgResponseMinutes:  45,
			Active:              true,
		},
		{
			SupplierID:          "SUP-GAMMA",
			ProductCode:         "RICE-25KG",
			UnitPrice:           110,
			AvailableStock:      50,
			ReliabilityScore:    0.99,
			DeliverySuccessRate: 0.98,
			AvgResponseMinutes:  5,
			Active:              true,
		},
	}
}

func TestRankingWeights_Validate(t *testing.T) {
	t.Run("default weights are valid", func(t *testing.T) {
		assert.NoError(t, DefaultRankingWeights().Validate())
	})

	t.Run("rejects weights summing below one", func(t *testing.T) {
		weights := RankingWeights{Reliability: 0.35, Delivery: 0.25, Response: 0.20, Price: 0.05}
		assert.ErrorIs(t, weights.Validate(), ErrInvalidWeights)
	})

	t.Run("rejects negative components", func(t *testing.T) {
		weights := RankingWeights{Reliability: 1.2, Delivery: -0.2, Response: 0.0, Price: 0.0}
		assert.ErrorIs(t, weights.Validate(), ErrInvalidWeights)
	})

	t.Run("accepts sums within tolerance", func(t *testing.T) {
		weights := RankingWeights{Reliability: 0.3501, Delivery: 0.25, Response: 0.20, Price: 0.20}
		assert.NoError(t, weights.Validate())
	})
}

func TestNewVendorRankingEngine(t *testing.T) {
	t.Run("rejects invalid weights", func(t *testing.T) {
		_, err := NewVendorRankingEngine(RankingWeights{Reliability: 0.85})
		assert.ErrorIs(t, err, ErrInvalidWeights)
	})

	t.Run("SetWeights rejects invalid profile and keeps old one", func(t *testing.T) {
		engine, err := NewVendorRankingEngine(DefaultRankingWeights())
		require.NoError(t, err)

		err = engine.SetWeights(RankingWeights{Reliability: 0.5, Delivery: 0.5, Response: 0.5, Price: 0.5})
		assert.ErrorIs(t, err, ErrInvalidWeights)
		assert.InDelta(t, 0.35, engine.Weights().Reliability, 0.0001)
	})
}

func TestVendorRankingEngine_Rank(t *testing.T) {
	engine, err := NewVendorRankingEngine(DefaultRankingWeights())
	require.NoError(t, err)

	t.Run("orders suppliers by weighted score", func(t *testing.T) {
		ranked := engine.Rank("RICE-25KG", 10, nil, validOffers())
		require.Len(t, ranked, 3)

		assert.Equal(t, "SUP-GAMMA", ranked[0].SupplierID)
		assert.Equal(t, 1, ranked[0].Rank)
		assert.Equal(t, 2, ranked[1].Rank)
		assert.Equal(t, 3, ranked[2].Rank)
		assert.GreaterOrEqual(t, ranked[0].Score, ranked[1].Score)
		assert.GreaterOrEqual(t, ranked[1].Score, ranked[2].Score)
	})

	t.Run("is deterministic for identical inputs", func(t *testing.T) {
		first := engine.Rank("RICE-25KG", 10, nil, validOffers())
		for i := 0; i < 10; i++ {
			again := engine.Rank("RICE-25KG", 10, nil, validOffers())
			assert.Equal(t, first, again)
		}
	})

	t.Run("breaks score ties by price then supplier id", func(t *testing.T) {
		offers := []SupplierOffer{
			{SupplierID: "SUP-ZZZZ", UnitPrice: 100, AvailableStock: 100, ReliabilityScore: 0.9, DeliverySuccessRate: 0.9, AvgResponseMinutes: 30, Active: true},
			{SupplierID: "SUP-AAAA", UnitPrice: 100, AvailableStock: 100, ReliabilityScore: 0.9, DeliverySuccessRate: 0.9, AvgResponseMinutes: 30, Active: true},
		}

		ranked := engine.Rank("RICE-25KG", 10, nil, offers)
		require.Len(t, ranked, 2)
		assert.Equal(t, "SUP-AAAA", ranked[0].SupplierID)
		assert.Equal(t, "SUP-ZZZZ", ranked[1].SupplierID)
	})

	t.Run("filters inactive suppliers", func(t *testing.T) {
		offers := validOffers()
		offers[0].Active = false

		ranked := engine.Rank("RICE-25KG", 10, nil, offers)
		for _, r := range ranked {
			assert.NotEqual(t, "SUP-ALPHA", r.SupplierID)
		}
	})

	t.Run("filters excluded suppliers", func(t *testing.T) {
		ranked := engine.Rank("RICE-25KG", 10, []string{"SUP-BETA", "SUP-GAMMA"}, validOffers())
		require.Len(t, ranked, 1)
		assert.Equal(t, "SUP-ALPHA", ranked[0].SupplierID)
	})

	t.Run("filters suppliers with insufficient stock", func(t *testing.T) {
		ranked := engine.Rank("RICE-25KG", 300, nil, validOffers())
		require.Len(t, ranked, 1)
		assert.Equal(t, "SUP-ALPHA", ranked[0].SupplierID)
	})

	t.Run("returns empty slice when nothing is eligible", func(t *testing.T) {
		ranked := engine.Rank("RICE-25KG", 10000, nil, validOffers())
		assert.NotNil(t, ranked)
		assert.Empty(t, ranked)
	})

	t.Run("response sub-score bottoms out at the cap", func(t *testing.T) {
		offers := []SupplierOffer{
			{SupplierID: "SUP-SLOW", UnitPrice: 100, AvailableStock: 100, ReliabilityScore: 1, DeliverySuccessRate: 1, AvgResponseMinutes: 600, Active: true},
		}

		ranked := engine.Rank("RICE-25KG", 10, nil, offers)
		require.Len(t, ranked, 1)
		assert.InDelta(t, 0.0, ranked[0].SubScores["response"], 0.0001)
	})

	t.Run("cheapest supplier gets the full price sub-score", func(t *testing.T) {
		ranked := engine.Rank("RICE-25KG", 10, nil, validOffers())

		for _, r := range ranked {
			if r.SupplierID == "SUP-BETA" {
				assert.InDelta(t, 0.20, r.SubScores["price"], 0.0001)
			}
		}
	})
}
