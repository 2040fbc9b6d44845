package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emberthread/storefront/internal/circuitbreaker"
)

// Client talks to the hosted-checkout payment processor. It is the single
// integration point: session creation and server-side verification both go
// through here, behind one circuit breaker, so every payment method shares
// the same error behavior.
type Client struct {
	baseURL    string
	merchantID string
	apiKey     string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *logrus.Logger
}

type CheckoutRequest struct {
	OrderID   string `json:"order_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	ItemName  string `json:"item_name"`
	ReturnURL string `json:"return_url,omitempty"`
	CancelURL string `json:"cancel_url,omitempty"`
}

type CheckoutSession struct {
	CheckoutID  string `json:"checkout_id"`
	RedirectURL string `json:"redirect_url"`
}

type VerifyResult struct {
	CheckoutID string `json:"checkout_id"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Paid       bool   `json:"paid"`
}

func NewClient(baseURL, merchantID, apiKey string, breaker *circuitbreaker.CircuitBreaker, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		merchantID: merchantID,
		apiKey:     apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		breaker: breaker,
		logger:  logger,
	}
}

// CreateCheckout opens a processor-hosted payment session for the amount.
// The returned checkout id is handed to the client-side widget; no card
// details ever touch the storefront.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	c.logger.WithFields(logrus.Fields{
		"order_id": req.OrderID,
		"amount":   req.Amount,
		"currency": req.Currency,
	}).Info("Creating processor checkout session")

	var session CheckoutSession
	err := c.breaker.Execute(func() error {
		return c.post(ctx, "/v1/checkouts", req, &session)
	})
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"order_id":    req.OrderID,
		"checkout_id": session.CheckoutID,
	}).Info("Processor checkout session created")

	return &session, nil
}

// VerifyPayment asks the processor, server to server, whether the checkout
// was actually paid. This is the only authority for marking an order paid;
// the widget's client-side result is never trusted on its own.
func (c *Client) VerifyPayment(ctx context.Context, checkoutID string) (*VerifyResult, error) {
	c.logger.WithField("checkout_id", checkoutID).Info("Verifying payment with processor")

	var result VerifyResult
	err := c.breaker.Execute(func() error {
		return c.post(ctx, "/v1/checkouts/"+checkoutID+"/verify", struct{}{}, &result)
	})
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"checkout_id": checkoutID,
		"status":      result.Status,
		"paid":        result.Paid,
	}).Info("Received verification from processor")

	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Merchant-ID", c.merchantID)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach payment processor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("payment processor returned error status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode processor response: %w", err)
	}

	return nil
}
