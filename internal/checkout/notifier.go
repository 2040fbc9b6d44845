package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/emberthread/storefront/internal/events"
	"github.com/emberthread/storefront/pkg/models"
)

// DeliveryEstimateOffset is the default estimate attached to a confirmation.
const DeliveryEstimateOffset = 7 * 24 * time.Hour

const ConfirmationStatusConfirmed = "confirmed"

// Notifier runs post-payment work: it creates the order confirmation record
// (exactly once per order) and publishes the order.paid event that drives
// the notification emails. Payment state is already durable when this runs;
// nothing here can roll it back.
type Notifier struct {
	store     OrderStore
	publisher EventPublisher
	logger    *logrus.Logger
}

func NewNotifier(store OrderStore, publisher EventPublisher, logger *logrus.Logger) *Notifier {
	return &Notifier{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

func (n *Notifier) OrderPaid(ctx context.Context, orderID string) error {
	order, err := n.store.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}

	now := time.Now()
	conf := &models.OrderConfirmation{
		ID:                 uuid.New().String(),
		OrderID:            orderID,
		ConfirmationNumber: NewConfirmationNumber(),
		Status:             ConfirmationStatusConfirmed,
		EstimatedDelivery:  now.Add(DeliveryEstimateOffset),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	created, err := n.store.CreateConfirmation(ctx, conf)
	if err != nil {
		return fmt.Errorf("failed to create order confirmation: %w", err)
	}
	if !created {
		n.logger.WithField("order_id", orderID).Debug("Order already confirmed, skipping notification")
		return nil
	}

	n.logger.WithFields(logrus.Fields{
		"order_id":            orderID,
		"confirmation_number": conf.ConfirmationNumber,
		"estimated_delivery":  conf.EstimatedDelivery.Format("2006-01-02"),
	}).Info("Order confirmation created")

	if n.publisher != nil {
		err := n.publisher.PublishOrderPaid(events.OrderPaidEvent{
			OrderID:             orderID,
			ConfirmationNumber:  conf.ConfirmationNumber,
			CustomerName:        order.CustomerName,
			CustomerEmail:       order.CustomerEmail,
			Item:                order.Item,
			Quantity:            order.Quantity,
			Size:                string(order.Size),
			Color:               order.Color,
			SpecialInstructions: order.SpecialInstructions,
			Amount:              order.TotalAmount,
			Currency:            order.Currency,
			EstimatedDelivery:   conf.EstimatedDelivery,
			PaidAt:              now,
		})
		if err != nil {
			// Email is best-effort; payment success is already durable.
			n.logger.WithError(err).WithField("order_id", orderID).Error("Failed to publish order paid event")
		}
	}

	return nil
}

// NewConfirmationNumber generates the customer-facing confirmation number.
// If the random source fails it falls back to a timestamp-derived value
// rather than blocking the confirmation record.
func NewConfirmationNumber() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("CONF-%d", time.Now().UnixNano())
	}
	compact := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return "CONF-" + compact[:12]
}
