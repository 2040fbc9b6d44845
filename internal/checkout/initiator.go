package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/emberthread/storefront/internal/events"
	"github.com/emberthread/storefront/internal/intake"
	"github.com/emberthread/storefront/internal/pricing"
	"github.com/emberthread/storefront/internal/processor"
	"github.com/emberthread/storefront/pkg/models"
)

// Currency is the store's single settlement currency.
const Currency = "ZAR"

var (
	// ErrPriceUnresolved means the item has no resolvable price. This is a
	// terminal state for the submission, not a fault: checkout is blocked
	// and the customer is directed to request a quote.
	ErrPriceUnresolved = errors.New("no price available for this item")

	// ErrProcessorUnavailable wraps processor failures. The order stays
	// pending and the customer may retry.
	ErrProcessorUnavailable = errors.New("payment processor unavailable")
)

// ValidationError carries field-scoped messages from intake.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order validation failed (%d fields)", len(e.Fields))
}

// OrderStore is what the orchestrator needs from persistence.
type OrderStore interface {
	CreateOrderWithPayment(ctx context.Context, order *models.Order, payment *models.Payment) error
	FindOrderBySubmission(ctx context.Context, submissionID string) (*models.Order, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	AttachProcessorID(ctx context.Context, orderID, processorID string) error
	MarkPaid(ctx context.Context, orderID, processorID string) (bool, error)
	MarkFailed(ctx context.Context, orderID string) (bool, error)
	CreateConfirmation(ctx context.Context, conf *models.OrderConfirmation) (bool, error)
	GetConfirmationByOrderID(ctx context.Context, orderID string) (*models.OrderConfirmation, error)
}

type ProcessorClient interface {
	CreateCheckout(ctx context.Context, req processor.CheckoutRequest) (*processor.CheckoutSession, error)
	VerifyPayment(ctx context.Context, checkoutID string) (*processor.VerifyResult, error)
}

type EventPublisher interface {
	PublishOrderCreated(event events.OrderCreatedEvent) error
	PublishOrderPaid(event events.OrderPaidEvent) error
}

// Request is a checkout submission: the raw form plus the chosen payment
// method. SubmissionID keys the pending order so a retried submit after a
// transient error resumes the same order instead of creating a second one.
type Request struct {
	intake.Form
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	SubmissionID  string               `json:"submission_id"`
	EFTReference  string               `json:"eft_reference"`
}

type StartOutcome struct {
	Order       *models.Order   `json:"order"`
	Payment     *models.Payment `json:"payment"`
	RedirectURL string          `json:"redirect_url,omitempty"`
}

// Initiator turns a validated submission into a pending order, a pending
// payment and, for hosted methods, a processor session. One code path serves
// every payment method.
type Initiator struct {
	store     OrderStore
	processor ProcessorClient
	publisher EventPublisher
	logger    *logrus.Logger
}

func NewInitiator(store OrderStore, proc ProcessorClient, publisher EventPublisher, logger *logrus.Logger) *Initiator {
	return &Initiator{
		store:     store,
		processor: proc,
		publisher: publisher,
		logger:    logger,
	}
}

func (i *Initiator) Start(ctx context.Context, req Request) (*StartOutcome, error) {
	draft, fieldErrs := intake.Validate(req.Form)
	if fieldErrs != nil {
		return nil, &ValidationError{Fields: fieldErrs}
	}

	method := req.PaymentMethod
	if method == "" {
		method = models.PaymentMethodCard
	}
	if method != models.PaymentMethodCard && method != models.PaymentMethodEFT {
		return nil, &ValidationError{Fields: map[string]string{
			"payment_method": "payment method must be card or eft",
		}}
	}

	amount, ok := pricing.Quote(draft.Item, draft.Size, draft.Quantity)
	if !ok {
		i.logger.WithFields(logrus.Fields{
			"item": draft.Item,
			"size": draft.Size,
		}).Info("Checkout blocked: item has no resolvable price")
		return nil, ErrPriceUnresolved
	}

	if req.SubmissionID != "" {
		existing, err := i.store.FindOrderBySubmission(ctx, req.SubmissionID)
		if err == nil {
			i.logger.WithFields(logrus.Fields{
				"order_id":      existing.ID,
				"submission_id": req.SubmissionID,
			}).Info("Submission already has an order, resuming")
			return i.resume(ctx, existing, method)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to look up submission: %w", err)
		}
	}

	now := time.Now()
	order := &models.Order{
		ID:                  uuid.New().String(),
		CustomerName:        draft.Name,
		CustomerEmail:       draft.Email,
		CustomerPhone:       draft.Phone,
		Item:                draft.Item,
		Quantity:            draft.Quantity,
		Color:               draft.Color,
		Size:                draft.Size,
		SpecialInstructions: draft.SpecialInstructions,
		TotalAmount:         amount,
		Currency:            Currency,
		Status:              models.OrderStatusPending,
		SubmissionID:        req.SubmissionID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	payment := &models.Payment{
		ID:        uuid.New().String(),
		OrderID:   order.ID,
		Amount:    amount,
		Currency:  Currency,
		Method:    method,
		Status:    models.PaymentStatusPending,
		Reference: req.EFTReference,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Persist before any processor call: never open a payment session for an
	// order that isn't recorded.
	if err := i.store.CreateOrderWithPayment(ctx, order, payment); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	i.logger.WithFields(logrus.Fields{
		"order_id":       order.ID,
		"total_amount":   order.TotalAmount,
		"payment_method": method,
	}).Info("Pending order created")

	if i.publisher != nil {
		err := i.publisher.PublishOrderCreated(events.OrderCreatedEvent{
			OrderID:       order.ID,
			CustomerEmail: order.CustomerEmail,
			Item:          order.Item,
			Quantity:      order.Quantity,
			TotalAmount:   order.TotalAmount,
			Currency:      order.Currency,
			PaymentMethod: string(method),
			CreatedAt:     order.CreatedAt,
		})
		if err != nil {
			// Don't fail the request, just log the error
			i.logger.WithError(err).Error("Failed to publish order created event")
		}
	}

	return i.startPayment(ctx, order, payment, method)
}

// resume re-enters the flow for an order that already exists for this
// submission. A pending card order gets a fresh processor session; anything
// already past pending is returned as-is.
func (i *Initiator) resume(ctx context.Context, order *models.Order, method models.PaymentMethod) (*StartOutcome, error) {
	payment, err := i.store.GetPaymentByOrderID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment for order %s: %w", order.ID, err)
	}

	if order.Status != models.OrderStatusPending {
		return &StartOutcome{Order: order, Payment: payment}, nil
	}

	return i.startPayment(ctx, order, payment, method)
}

func (i *Initiator) startPayment(ctx context.Context, order *models.Order, payment *models.Payment, method models.PaymentMethod) (*StartOutcome, error) {
	outcome := &StartOutcome{Order: order, Payment: payment}

	if method == models.PaymentMethodEFT {
		// No external session: the order stays pending until an operator
		// confirms the transfer out of band.
		i.logger.WithFields(logrus.Fields{
			"order_id":  order.ID,
			"reference": payment.Reference,
		}).Info("EFT order awaiting manual confirmation")
		return outcome, nil
	}

	session, err := i.processor.CreateCheckout(ctx, processor.CheckoutRequest{
		OrderID:  order.ID,
		Amount:   order.TotalAmount,
		Currency: order.Currency,
		ItemName: order.Item,
	})
	if err != nil {
		i.logger.WithError(err).WithField("order_id", order.ID).Error("Failed to create processor session")
		return outcome, fmt.Errorf("%w: %v", ErrProcessorUnavailable, err)
	}

	if err := i.store.AttachProcessorID(ctx, order.ID, session.CheckoutID); err != nil {
		return outcome, fmt.Errorf("failed to record processor session: %w", err)
	}
	order.ProcessorPaymentID = session.CheckoutID
	payment.ProcessorPaymentID = session.CheckoutID

	outcome.RedirectURL = session.RedirectURL
	return outcome, nil
}
