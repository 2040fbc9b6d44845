package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/emberthread/storefront/internal/checkout"
)

// processor-mock stands in for the hosted payment processor in local
// development: it issues checkout sessions, answers verification calls, and
// fires signed webhooks at the storefront when a session is settled through
// the simulation endpoint.

type session struct {
	CheckoutID string `json:"checkout_id"`
	OrderID    string `json:"order_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	ItemName   string `json:"item_name"`
	Status     string `json:"status"` // created, paid, failed
}

type sessionStore struct {
	sessions map[string]*session
	mutex    sync.RWMutex
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session)}
}

type mockProcessor struct {
	store         *sessionStore
	logger        *logrus.Logger
	webhookURL    string
	webhookSecret string
	httpClient    *http.Client
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	port := getEnv("PROCESSOR_MOCK_PORT", "8090")
	webhookURL := getEnv("STOREFRONT_WEBHOOK_URL", "http://localhost:8080/webhooks/payment")
	webhookSecret := getEnv("PROCESSOR_WEBHOOK_SECRET", "dev-webhook-secret")

	proc := &mockProcessor{
		store:         newSessionStore(),
		logger:        logger,
		webhookURL:    webhookURL,
		webhookSecret: webhookSecret,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", proc.healthCheck).Methods("GET")
	router.HandleFunc("/v1/checkouts", proc.createCheckout).Methods("POST")
	router.HandleFunc("/v1/checkouts/{id}/verify", proc.verifyCheckout).Methods("POST")
	router.HandleFunc("/v1/checkouts/{id}/settle", proc.settleCheckout).Methods("POST")

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", port).Info("Starting payment processor mock")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down processor mock...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server forced to shutdown")
	}

	logger.Info("Processor mock gracefully stopped")
}

func (p *mockProcessor) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "processor-mock",
	})
}

func (p *mockProcessor) createCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID  string `json:"order_id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		ItemName string `json:"item_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.OrderID == "" || req.Amount <= 0 {
		respondWithError(w, http.StatusBadRequest, "order_id and a positive amount are required")
		return
	}

	// Simulate processor latency.
	time.Sleep(time.Duration(rand.Intn(300)+100) * time.Millisecond)

	s := &session{
		CheckoutID: "chk_" + uuid.New().String(),
		OrderID:    req.OrderID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		ItemName:   req.ItemName,
		Status:     "created",
	}

	p.store.mutex.Lock()
	p.store.sessions[s.CheckoutID] = s
	p.store.mutex.Unlock()

	p.logger.WithFields(logrus.Fields{
		"checkout_id": s.CheckoutID,
		"order_id":    s.OrderID,
		"amount":      s.Amount,
	}).Info("Checkout session created")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"checkout_id":  s.CheckoutID,
		"redirect_url": fmt.Sprintf("http://localhost:%s/pay/%s", getEnv("PROCESSOR_MOCK_PORT", "8090"), s.CheckoutID),
	})
}

func (p *mockProcessor) verifyCheckout(w http.ResponseWriter, r *http.Request) {
	checkoutID := mux.Vars(r)["id"]

	p.store.mutex.RLock()
	s, exists := p.store.sessions[checkoutID]
	p.store.mutex.RUnlock()

	if !exists {
		respondWithError(w, http.StatusNotFound, "Checkout session not found")
		return
	}

	p.logger.WithFields(logrus.Fields{
		"checkout_id": checkoutID,
		"status":      s.Status,
	}).Info("Verification requested")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"checkout_id": s.CheckoutID,
		"status":      s.Status,
		"amount":      s.Amount,
		"currency":    s.Currency,
		"paid":        s.Status == "paid",
	})
}

// settleCheckout simulates the customer finishing (or abandoning) the hosted
// payment page: it flips the session state and fires the signed webhook.
func (p *mockProcessor) settleCheckout(w http.ResponseWriter, r *http.Request) {
	checkoutID := mux.Vars(r)["id"]

	var req struct {
		Outcome string `json:"outcome"` // paid or failed
		Reason  string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Outcome != "paid" && req.Outcome != "failed" {
		respondWithError(w, http.StatusBadRequest, "outcome must be paid or failed")
		return
	}

	p.store.mutex.Lock()
	s, exists := p.store.sessions[checkoutID]
	if exists {
		s.Status = req.Outcome
	}
	p.store.mutex.Unlock()

	if !exists {
		respondWithError(w, http.StatusNotFound, "Checkout session not found")
		return
	}

	go p.sendWebhook(s, req.Reason)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"checkout_id": s.CheckoutID,
		"status":      s.Status,
	})
}

func (p *mockProcessor) sendWebhook(s *session, reason string) {
	eventType := checkout.EventPaymentSucceeded
	if s.Status == "failed" {
		eventType = checkout.EventPaymentFailed
	}

	event := checkout.WebhookEvent{
		ID:        "evt_" + uuid.New().String(),
		Type:      eventType,
		OrderID:   s.OrderID,
		PaymentID: s.CheckoutID,
		Amount:    s.Amount,
		Currency:  s.Currency,
		Reason:    reason,
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).Error("Failed to marshal webhook event")
		return
	}

	req, err := http.NewRequest("POST", p.webhookURL, bytes.NewReader(body))
	if err != nil {
		p.logger.WithError(err).Error("Failed to create webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(checkout.SignatureHeader, checkout.Sign(body, p.webhookSecret))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.WithError(err).WithField("order_id", s.OrderID).Error("Failed to deliver webhook")
		return
	}
	defer resp.Body.Close()

	p.logger.WithFields(logrus.Fields{
		"order_id":   s.OrderID,
		"event_type": eventType,
		"status":     resp.StatusCode,
	}).Info("Webhook delivered")
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
