package notify

import (
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/emberthread/storefront/internal/events"
)

// Dispatcher consumes order.paid events and sends both notification emails.
// It implements events.RetryableOrderPaidHandler; errors bubble up to the
// retry consumer and, past that, the DLQ.
type Dispatcher struct {
	mailer Mailer
	logger *logrus.Logger
}

func NewDispatcher(mailer Mailer, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		mailer: mailer,
		logger: logger,
	}
}

func (d *Dispatcher) HandleOrderPaid(event events.OrderPaidEvent) error {
	var result error

	if err := d.mailer.SendOrderReceipt(event); err != nil {
		d.logger.WithError(err).WithField("order_id", event.OrderID).Error("Failed to send customer receipt")
		result = multierror.Append(result, err)
	}

	if err := d.mailer.SendOperatorAlert(event); err != nil {
		d.logger.WithError(err).WithField("order_id", event.OrderID).Error("Failed to send operator alert")
		result = multierror.Append(result, err)
	}

	return result
}

// IsRetryable treats every mail failure as retryable; a duplicate email on
// replay is acceptable, a missing receipt is not.
func (d *Dispatcher) IsRetryable(err error) bool {
	return err != nil
}
