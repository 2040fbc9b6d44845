package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/emberthread/storefront/pkg/models"
)

// ErrNotVerified means the processor did not confirm the payment the client
// claimed succeeded. No paid transition happens in that case.
var ErrNotVerified = errors.New("payment could not be verified with processor")

// ConfirmationHandler consumes both confirmation triggers: the widget's
// synchronous client-side result and the processor's asynchronous webhook.
// Both funnel into the same monotonic transitions, so they can arrive in any
// order, twice, or simultaneously: paid is applied at most once and is never
// overwritten by a later failure.
type ConfirmationHandler struct {
	store     OrderStore
	processor ProcessorClient
	notifier  *Notifier
	logger    *logrus.Logger
}

func NewConfirmationHandler(store OrderStore, proc ProcessorClient, notifier *Notifier, logger *logrus.Logger) *ConfirmationHandler {
	return &ConfirmationHandler{
		store:     store,
		processor: proc,
		notifier:  notifier,
		logger:    logger,
	}
}

// HandleCallback processes the widget's client-side result. A reported
// success is only a hint: the paid transition happens after, and only after,
// the server-side verification call confirms it.
func (h *ConfirmationHandler) HandleCallback(ctx context.Context, orderID string, result models.PaymentResult) error {
	if !result.Success {
		transitioned, err := h.store.MarkFailed(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to record payment failure: %w", err)
		}
		h.logger.WithFields(logrus.Fields{
			"order_id":     orderID,
			"reason":       result.Reason,
			"transitioned": transitioned,
		}).Info("Client reported payment failure")
		return nil
	}

	order, err := h.store.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}

	// The transaction must be the session opened for this order. Without this
	// binding, a transaction id from any paid session could be replayed
	// against a different pending order.
	if result.TransactionID == "" || order.ProcessorPaymentID == "" ||
		result.TransactionID != order.ProcessorPaymentID {
		h.logger.WithFields(logrus.Fields{
			"order_id":       orderID,
			"transaction_id": result.TransactionID,
		}).Warn("Callback transaction does not match the order's payment session")
		return ErrNotVerified
	}

	verify, err := h.processor.VerifyPayment(ctx, result.TransactionID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProcessorUnavailable, err)
	}

	if !verify.Paid {
		h.logger.WithFields(logrus.Fields{
			"order_id":       orderID,
			"transaction_id": result.TransactionID,
			"status":         verify.Status,
		}).Warn("Client reported success but processor did not confirm payment")
		if _, err := h.store.MarkFailed(ctx, orderID); err != nil {
			return fmt.Errorf("failed to record unverified payment: %w", err)
		}
		return ErrNotVerified
	}

	if verify.Amount != order.TotalAmount {
		h.logger.WithFields(logrus.Fields{
			"order_id":        orderID,
			"order_amount":    order.TotalAmount,
			"verified_amount": verify.Amount,
		}).Warn("Verified amount does not match order total")
		return ErrNotVerified
	}

	return h.applyPaid(ctx, orderID, result.TransactionID)
}

// HandleWebhook processes an already-authenticated webhook event. Signature
// verification happens at the HTTP layer over the raw body; nothing here
// runs for an unauthenticated payload.
func (h *ConfirmationHandler) HandleWebhook(ctx context.Context, event WebhookEvent) error {
	switch event.Type {
	case EventPaymentSucceeded:
		return h.applyPaid(ctx, event.OrderID, event.PaymentID)

	case EventPaymentFailed:
		transitioned, err := h.store.MarkFailed(ctx, event.OrderID)
		if err != nil {
			return fmt.Errorf("failed to record payment failure: %w", err)
		}
		h.logger.WithFields(logrus.Fields{
			"order_id":     event.OrderID,
			"reason":       event.Reason,
			"transitioned": transitioned,
		}).Info("Webhook reported payment failure")
		return nil

	default:
		// Forward-compatible no-op.
		h.logger.WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Warn("Unknown webhook event type, ignoring")
		return nil
	}
}

func (h *ConfirmationHandler) applyPaid(ctx context.Context, orderID, processorID string) error {
	transitioned, err := h.store.MarkPaid(ctx, orderID, processorID)
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"order_id":     orderID,
		"transitioned": transitioned,
	}).Info("Payment confirmed")

	// The notifier is idempotent per order, so it runs on every confirmed
	// success. If a previous attempt died between the paid transition and
	// the confirmation insert, a duplicate trigger repairs it.
	return h.notifier.OrderPaid(ctx, orderID)
}
