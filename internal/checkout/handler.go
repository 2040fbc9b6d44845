package checkout

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/emberthread/storefront/internal/cart"
	"github.com/emberthread/storefront/internal/pricing"
	"github.com/emberthread/storefront/pkg/models"
)

type WebSocketHub interface {
	Broadcast(messageType string, data interface{}, source string)
}

type CartStore interface {
	AddCartItem(ctx context.Context, item *models.CartItem) error
	ListCartItems(ctx context.Context, userID string) ([]models.CartItem, error)
	RemoveCartItem(ctx context.Context, userID, itemID string) error
	ReplaceCart(ctx context.Context, userID string, items []models.CartItem) error
	ClearCart(ctx context.Context, userID string) error
}

// Handler is the HTTP surface of the checkout flow.
type Handler struct {
	initiator     *Initiator
	confirmations *ConfirmationHandler
	store         OrderStore
	carts         CartStore
	webhookSecret string
	logger        *logrus.Logger
	wsHub         WebSocketHub
}

func NewHandler(initiator *Initiator, confirmations *ConfirmationHandler, store OrderStore, carts CartStore, webhookSecret string, logger *logrus.Logger) *Handler {
	return &Handler{
		initiator:     initiator,
		confirmations: confirmations,
		store:         store,
		carts:         carts,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

func (h *Handler) SetWebSocketHub(hub WebSocketHub) {
	h.wsHub = hub
}

func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/checkout", h.Checkout).Methods("POST")
	router.HandleFunc("/payments/verify", h.VerifyPayment).Methods("POST")
	router.HandleFunc("/webhooks/payment", h.PaymentWebhook).Methods("POST")
	router.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET")
	router.HandleFunc("/quote", h.Quote).Methods("GET")
	router.HandleFunc("/cart/{userID}", h.GetCart).Methods("GET")
	router.HandleFunc("/cart/{userID}/items", h.AddCartItem).Methods("POST")
	router.HandleFunc("/cart/{userID}/items/{itemID}", h.RemoveCartItem).Methods("DELETE")
	router.HandleFunc("/cart/{userID}", h.ClearCart).Methods("DELETE")
	router.HandleFunc("/cart/{userID}/merge", h.MergeCart).Methods("POST")
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Failed to decode checkout request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	outcome, err := h.initiator.Start(r.Context(), req)
	if err != nil {
		var vErr *ValidationError
		switch {
		case errors.As(err, &vErr):
			h.respondWithJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"success": false,
				"message": "Please correct the highlighted fields",
				"errors":  vErr.Fields,
			})
		case errors.Is(err, ErrPriceUnresolved):
			h.respondWithJSON(w, http.StatusConflict, map[string]interface{}{
				"success":    false,
				"unresolved": true,
				"message":    "We don't have a price for this item yet. Please contact us for a quote.",
			})
		case errors.Is(err, ErrProcessorUnavailable):
			h.logger.WithError(err).Error("Processor unavailable during checkout")
			var savedOrder *models.Order
			if outcome != nil {
				savedOrder = outcome.Order
			}
			h.respondWithJSON(w, http.StatusBadGateway, map[string]interface{}{
				"success": false,
				"message": "We couldn't reach the payment provider. Your order is saved; please try paying again.",
				"order":   savedOrder,
			})
		default:
			h.logger.WithError(err).Error("Checkout failed")
			h.respondWithError(w, http.StatusInternalServerError, "Failed to process order")
		}
		return
	}

	if h.wsHub != nil {
		h.wsHub.Broadcast("order_created", outcome.Order, "storefront")
	}

	h.respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success":      true,
		"order":        outcome.Order,
		"payment":      outcome.Payment,
		"redirect_url": outcome.RedirectURL,
	})
}

type verifyRequest struct {
	OrderID       string `json:"order_id"`
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

// VerifyPayment consumes the widget's client-side result and performs the
// server-side capture/verification before any state changes. The outcome is
// persisted before responding.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Failed to decode verify request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.OrderID == "" {
		h.respondWithError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	result := models.PaymentResult{
		Success:       req.Success,
		TransactionID: req.TransactionID,
		Reason:        req.Reason,
	}

	err := h.confirmations.HandleCallback(r.Context(), req.OrderID, result)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotVerified):
			h.respondWithJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"message": "Payment could not be verified. You have not been charged twice; please try again.",
			})
		case errors.Is(err, ErrProcessorUnavailable):
			h.logger.WithError(err).Error("Processor unavailable during verification")
			h.respondWithError(w, http.StatusBadGateway, "We couldn't reach the payment provider. Please try again.")
		default:
			h.logger.WithError(err).Error("Payment verification failed")
			h.respondWithError(w, http.StatusInternalServerError, "Failed to verify payment")
		}
		return
	}

	order, loadErr := h.store.GetOrder(r.Context(), req.OrderID)
	if loadErr != nil {
		h.logger.WithError(loadErr).Error("Failed to load order after verification")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to load order")
		return
	}

	if h.wsHub != nil {
		if order.Status == models.OrderStatusPaid {
			h.wsHub.Broadcast("order_paid", order, "storefront")
		} else if order.Status == models.OrderStatusPaymentFailed {
			h.wsHub.Broadcast("payment_failed", order, "storefront")
		}
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": order.Status == models.OrderStatusPaid,
		"status":  order.Status,
		"amount":  order.TotalAmount,
	})
}

// PaymentWebhook handles the processor's asynchronous notification. The body
// is read raw and the HMAC is checked over those exact bytes before any
// parsing; unauthenticated payloads are rejected with no side effects.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read webhook body")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to read request body")
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if !VerifySignature(body, signature, h.webhookSecret) {
		h.logger.WithField("remote", r.RemoteAddr).Warn("Rejected webhook with missing or invalid signature")
		h.respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.WithError(err).Error("Failed to parse webhook payload")
		h.respondWithError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	if err := h.confirmations.HandleWebhook(r.Context(), event); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Error("Failed to process webhook")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to process event")
		return
	}

	if h.wsHub != nil && event.Type == EventPaymentSucceeded {
		h.wsHub.Broadcast("order_paid", map[string]string{"order_id": event.OrderID}, "webhook")
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orderID := vars["id"]

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.respondWithError(w, http.StatusNotFound, "Order not found")
			return
		}
		h.logger.WithError(err).Error("Failed to get order")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get order")
		return
	}

	payment, err := h.store.GetPaymentByOrderID(r.Context(), orderID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		h.logger.WithError(err).Error("Failed to get payment")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get order")
		return
	}

	confirmation, err := h.store.GetConfirmationByOrderID(r.Context(), orderID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		h.logger.WithError(err).Error("Failed to get confirmation")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get order")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"order":        order,
		"payment":      payment,
		"confirmation": confirmation,
	})
}

// Quote exposes the pricing resolver so the client can price a line before
// submission. An unresolved item is a normal response, not an error.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	size := models.Size(r.URL.Query().Get("size"))

	amount, ok := pricing.Resolve(item, size)
	if !ok {
		h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"unresolved": true,
			"message":    "No price available; contact us for a quote.",
		})
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"unresolved": false,
		"amount":     amount,
		"currency":   Currency,
	})
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	items, err := h.carts.ListCartItems(r.Context(), userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list cart items")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to load cart")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var item models.CartItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if item.ProductID == "" || item.ProductTitle == "" {
		h.respondWithError(w, http.StatusBadRequest, "product_id and product_title are required")
		return
	}

	item.ID = uuid.New().String()
	item.UserID = userID
	item.Quantity = clampCartQuantity(item.Quantity)
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := h.carts.AddCartItem(r.Context(), &item); err != nil {
		h.logger.WithError(err).Error("Failed to add cart item")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to add item")
		return
	}

	h.respondWithJSON(w, http.StatusCreated, item)
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.carts.RemoveCartItem(r.Context(), vars["userID"], vars["itemID"]); err != nil {
		h.logger.WithError(err).Error("Failed to remove cart item")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to remove item")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ClearCart empties the persisted cart, typically after a completed checkout.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	if err := h.carts.ClearCart(r.Context(), userID); err != nil {
		h.logger.WithError(err).Error("Failed to clear cart")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to clear cart")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type mergeCartRequest struct {
	LocalItems []models.CartItem `json:"local_items"`
}

// MergeCart folds a client-local cart snapshot into the persisted cart after
// sign-in.
func (h *Handler) MergeCart(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req mergeCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	remote, err := h.carts.ListCartItems(r.Context(), userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load persisted cart")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to merge cart")
		return
	}

	now := time.Now()
	for i := range req.LocalItems {
		if req.LocalItems[i].ID == "" {
			req.LocalItems[i].ID = uuid.New().String()
		}
		req.LocalItems[i].UserID = userID
		req.LocalItems[i].Quantity = clampCartQuantity(req.LocalItems[i].Quantity)
		if req.LocalItems[i].CreatedAt.IsZero() {
			req.LocalItems[i].CreatedAt = now
		}
		req.LocalItems[i].UpdatedAt = now
	}

	merged := cart.Merge(req.LocalItems, remote)

	if err := h.carts.ReplaceCart(r.Context(), userID, merged); err != nil {
		h.logger.WithError(err).Error("Failed to persist merged cart")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to merge cart")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user_id":     userID,
		"local_count": len(req.LocalItems),
		"merged":      len(merged),
	}).Info("Cart merged")

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"items": merged,
		"count": len(merged),
	})
}

func clampCartQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]interface{}{
		"success": false,
		"message": message,
	})
}
