package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/logging"
)

func testClientLogger() *logging.Logger {
	return logging.New(logging.DefaultConfig("catalog-client-test"))
}

func TestCatalogClient_GetOffers(t *testing.T) {
	tests := []struct {
		name        string
		setupServer func() *httptest.Server
		wantOffers  int
		wantErr     bool
		errContains string
	}{
		{
			name: "Successfully get offers",
			setupServer: func() *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					assert.Equal(t, http.MethodGet, r.Method)
					assert.Equal(t, "/api/v1/products/RICE-25KG/offers", r.URL.Path)
					assert.Equal(t, "application/json", r.Header.Get("Accept"))
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusOK)
					w.Write([]byte(`{
						"data": [
							{
								"supplierId": "SUP-ALPHA",
								"productCode": "RICE-25KG",
								"unitPrice": 100.0,
								"availableStock": 500,
								"reliabilityScore": 0.95,
								"deliverySuccessRate": 0.9,
								"avgResponseMinutes": 15,
								"active": true
							},
							{
								"supplierId": "SUP-BETA",
								"productCode": "RICE-25KG",
								"unitPrice": 95.0,
								"availableStock": 200,
								"reliabilityScore": 0.8,
								"deliverySuccessRate": 0.85,
								"avgResponseMinutes": 45,
								"active": true
							}
						]
					}`))
				}))
			},
			wantOffers: 2,
			wantErr:    false,
		},
		{
			name: "Unknown product yields empty offers",
			setupServer: func() *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusNotFound)
				}))
			},
			wantOffers: 0,
			wantErr:    false,
		},
		{
			name: "Service returns error status",
			setupServer: func() *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusInternalServerError)
				}))
			},
			wantErr:     true,
			errContains: "returned status",
		},
		{
			name: "Malformed payload",
			setupServer: func() *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
					w.Write([]byte(`not json`))
				}))
			},
			wantErr:     true,
			errContains: "decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := tt.setupServer()
			defer server.Close()

			client := NewCatalogClient(server.URL, testClientLogger())
			offers, err := client.GetOffers(context.Background(), "RICE-25KG")

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}

			require.NoError(t, err)
			assert.Len(t, offers, tt.wantOffers)
			if tt.wantOffers > 0 {
				assert.Equal(t, "SUP-ALPHA", offers[0].SupplierID)
				assert.InDelta(t, 100.0, offers[0].UnitPrice, 0.001)
			}
		})
	}
}

func TestCatalogClient_CircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewCatalogClient(server.URL, testClientLogger())

	// Five consecutive failures trip the breaker
	for i := 0; i < 5; i++ {
		_, err := client.GetOffers(context.Background(), "RICE-25KG")
		require.Error(t, err)
	}

	before := calls.Load()
	_, err := client.GetOffers(context.Background(), "RICE-25KG")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, before, calls.Load(), "open breaker must fail fast without calling the service")

	assert.Equal(t, "open", client.BreakerStatus().State)
}
