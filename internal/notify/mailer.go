package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emberthread/storefront/internal/circuitbreaker"
	"github.com/emberthread/storefront/internal/events"
)

// Mailer sends the two post-payment emails. Implementations are best-effort:
// a failure here never touches order or payment state.
type Mailer interface {
	SendOrderReceipt(event events.OrderPaidEvent) error
	SendOperatorAlert(event events.OrderPaidEvent) error
}

// APIMailer talks to a transactional mail HTTP API. Calls go through a
// circuit breaker so a provider outage fails fast into the retry/DLQ path
// instead of tying up consumer goroutines on timeouts.
type APIMailer struct {
	baseURL       string
	apiKey        string
	fromAddress   string
	operatorEmail string
	httpClient    *http.Client
	breaker       *circuitbreaker.CircuitBreaker
	logger        *logrus.Logger
}

type mailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func NewAPIMailer(baseURL, apiKey, fromAddress, operatorEmail string, breaker *circuitbreaker.CircuitBreaker, logger *logrus.Logger) *APIMailer {
	return &APIMailer{
		baseURL:       baseURL,
		apiKey:        apiKey,
		fromAddress:   fromAddress,
		operatorEmail: operatorEmail,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		breaker: breaker,
		logger:  logger,
	}
}

func (m *APIMailer) SendOrderReceipt(event events.OrderPaidEvent) error {
	subject := fmt.Sprintf("Order confirmed: %s", event.ConfirmationNumber)
	body := fmt.Sprintf(
		"Hi %s,\n\nThank you for your order!\n\n"+
			"Confirmation number: %s\n"+
			"Item: %s\nQuantity: %d\nSize: %s\n",
		event.CustomerName, event.ConfirmationNumber, event.Item, event.Quantity, event.Size)
	if event.Color != "" {
		body += fmt.Sprintf("Color: %s\n", event.Color)
	}
	if event.SpecialInstructions != "" {
		body += fmt.Sprintf("Special instructions: %s\n", event.SpecialInstructions)
	}
	body += fmt.Sprintf("Amount paid: %s\nEstimated delivery: %s\n",
		formatAmount(event.Amount, event.Currency),
		event.EstimatedDelivery.Format("2 January 2006"))

	return m.send(mailRequest{
		From:    m.fromAddress,
		To:      event.CustomerEmail,
		Subject: subject,
		Body:    body,
	}, event.OrderID, "receipt")
}

func (m *APIMailer) SendOperatorAlert(event events.OrderPaidEvent) error {
	subject := fmt.Sprintf("New paid order %s: %s x%d", event.ConfirmationNumber, event.Item, event.Quantity)
	body := fmt.Sprintf(
		"Order %s has been paid.\n\n"+
			"Customer: %s <%s>\nItem: %s\nQuantity: %d\nSize: %s\nColor: %s\n"+
			"Instructions: %s\nAmount: %s\nEstimated delivery: %s\n",
		event.OrderID, event.CustomerName, event.CustomerEmail, event.Item, event.Quantity,
		event.Size, event.Color, event.SpecialInstructions,
		formatAmount(event.Amount, event.Currency),
		event.EstimatedDelivery.Format("2 January 2006"))

	return m.send(mailRequest{
		From:    m.fromAddress,
		To:      m.operatorEmail,
		Subject: subject,
		Body:    body,
	}, event.OrderID, "operator_alert")
}

func (m *APIMailer) send(req mailRequest, orderID, kind string) error {
	if m.breaker != nil {
		return m.breaker.Execute(func() error {
			return m.doSend(req, orderID, kind)
		})
	}
	return m.doSend(req, orderID, kind)
}

func (m *APIMailer) doSend(req mailRequest, orderID, kind string) error {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal mail request: %w", err)
	}

	httpReq, err := http.NewRequest("POST", m.baseURL+"/v1/send", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create mail request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to reach mail API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("mail API returned error status: %d", resp.StatusCode)
	}

	m.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"kind":     kind,
		"to":       req.To,
	}).Info("Email dispatched")

	return nil
}

func formatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, cents/100, cents%100)
}
