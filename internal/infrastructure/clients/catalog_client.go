package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/logging"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/resilience"
)

// SupplierOfferDTO represents offer data fetched from the supplier service
type SupplierOfferDTO struct {
	SupplierID          string  `json:"supplierId"`
	ProductCode         string  `json:"productCode"`
	UnitPrice           float64 `json:"unitPrice"`
	AvailableStock      int     `json:"availableStock"`
	ReliabilityScore    float64 `json:"reliabilityScore"`
	DeliverySuccessRate float64 `json:"deliverySuccessRate"`
	AvgResponseMinutes  float64 `json:"avgResponseMinutes"`
	Active              bool    `json:"active"`
}

// OffersResponse represents the supplier service's offers payload
type OffersResponse struct {
	Data []SupplierOfferDTO `json:"data"`
}

// CatalogClient handles communication with the supplier catalog service.
// Implements domain.SupplierCatalog. Calls go through a circuit breaker so a
// catalog outage fails fast instead of stalling every routing request.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
}

// NewCatalogClient creates a new CatalogClient
func NewCatalogClient(baseURL string, logger *logging.Logger) *CatalogClient {
	cbConfig := resilience.DefaultCircuitBreakerConfig("supplier-catalog")

	return &CatalogClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: resilience.NewCircuitBreaker(cbConfig, logger.Logger),
	}
}

// GetOffers fetches the standing offers for a product
func (c *CatalogClient) GetOffers(ctx context.Context, productCode string) ([]domain.SupplierOffer, error) {
	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return c.fetchOffers(ctx, productCode)
	})
	if err != nil {
		return nil, err
	}

	return result.([]domain.SupplierOffer), nil
}

func (c *CatalogClient) fetchOffers(ctx context.Context, productCode string) ([]domain.SupplierOffer, error) {
	url := fmt.Sprintf("%s/api/v1/products/%s/offers", c.baseURL, productCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch offers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Unknown product means no offers, not an outage
		return []domain.SupplierOffer{}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("supplier catalog returned status %d", resp.StatusCode)
	}

	var payload OffersResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode offers response: %w", err)
	}

	offers := make([]domain.SupplierOffer, 0, len(payload.Data))
	for _, dto := range payload.Data {
		offers = append(offers, domain.SupplierOffer{
			SupplierID:          dto.SupplierID,
			ProductCode:         dto.ProductCode,
			UnitPrice:           dto.UnitPrice,
			AvailableStock:      dto.AvailableStock,
			ReliabilityScore:    dto.ReliabilityScore,
			DeliverySuccessRate: dto.DeliverySuccessRate,
			AvgResponseMinutes:  dto.AvgResponseMinutes,
			Active:              dto.Active,
		})
	}

	return offers, nil
}

// BreakerStatus exposes the circuit breaker state for the readiness endpoint
func (c *CatalogClient) BreakerStatus() resilience.CircuitBreakerStatus {
	return c.breaker.Status()
}
