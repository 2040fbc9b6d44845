package processor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberthread/storefront/internal/circuitbreaker"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:        "processor",
		MaxFailures: 3,
		Timeout:     time.Minute,
	}, logger)

	return NewClient(srv.URL, "merchant-1", "test-key", breaker, logger)
}

func TestCreateCheckout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkouts", r.URL.Path)
		assert.Equal(t, "merchant-1", r.Header.Get("X-Merchant-ID"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req CheckoutRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(28000), req.Amount)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(CheckoutSession{
			CheckoutID:  "chk_123",
			RedirectURL: "https://processor.example/pay/chk_123",
		})
	})

	session, err := client.CreateCheckout(context.Background(), CheckoutRequest{
		OrderID:  "order-1",
		Amount:   28000,
		Currency: "ZAR",
		ItemName: "Pink Ruffle Hat",
	})
	require.NoError(t, err)
	assert.Equal(t, "chk_123", session.CheckoutID)
	assert.NotEmpty(t, session.RedirectURL)
}

func TestVerifyPayment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkouts/chk_123/verify", r.URL.Path)
		json.NewEncoder(w).Encode(VerifyResult{
			CheckoutID: "chk_123",
			Status:     "completed",
			Amount:     28000,
			Currency:   "ZAR",
			Paid:       true,
		})
	})

	result, err := client.VerifyPayment(context.Background(), "chk_123")
	require.NoError(t, err)
	assert.True(t, result.Paid)
	assert.Equal(t, int64(28000), result.Amount)
}

func TestProcessorErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.CreateCheckout(context.Background(), CheckoutRequest{OrderID: "order-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 3; i++ {
		_, err := client.VerifyPayment(context.Background(), "chk_123")
		require.Error(t, err)
	}

	_, err := client.VerifyPayment(context.Background(), "chk_123")
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitBreakerOpen)
}
