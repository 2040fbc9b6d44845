package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/emberthread/storefront/internal/events"
)

// dlq-monitor watches the notification dead letter queue and, when enabled,
// replays dead-lettered receipts back onto order.paid once the mail provider
// has had time to recover.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	kafkaBrokers := getEnv("KAFKA_BROKERS", "localhost:9092")
	replay := getEnv("DLQ_REPLAY", "false") == "true"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if replay {
		processor, err := events.NewDLQProcessor(kafkaBrokers, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create DLQ processor")
		}
		defer processor.Close()

		go func() {
			if err := processor.ProcessDLQ(ctx); err != nil {
				logger.WithError(err).Error("DLQ processor stopped with error")
			}
		}()

		logger.Info("DLQ monitor started in replay mode")
	} else {
		config := sarama.NewConfig()
		config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
		config.Consumer.Offsets.Initial = sarama.OffsetOldest
		config.Version = sarama.V2_6_0_0

		consumer, err := sarama.NewConsumerGroup([]string{kafkaBrokers}, "notification-dlq-monitor", config)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create DLQ consumer")
		}
		defer consumer.Close()

		handler := &dlqHandler{logger: logger}

		go func() {
			for {
				if err := consumer.Consume(ctx, []string{events.NotificationDLQTopic}, handler); err != nil {
					logger.WithError(err).Error("Error consuming from DLQ")
				}
				if ctx.Err() != nil {
					return
				}
			}
		}()

		logger.WithField("topic", events.NotificationDLQTopic).Info("DLQ monitor started in watch mode")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down DLQ monitor...")
}

type dlqHandler struct {
	logger *logrus.Logger
}

func (h *dlqHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *dlqHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *dlqHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var metadata events.MessageMetadata
		for _, header := range message.Headers {
			if string(header.Key) == "metadata" {
				json.Unmarshal(header.Value, &metadata)
				break
			}
		}

		h.logger.WithFields(logrus.Fields{
			"topic":          message.Topic,
			"partition":      message.Partition,
			"offset":         message.Offset,
			"key":            string(message.Key),
			"original_topic": metadata.OriginalTopic,
			"retry_count":    metadata.RetryCount,
			"error":          metadata.ErrorMessage,
		}).Warn("Dead-lettered notification detected")

		var event events.OrderPaidEvent
		if err := json.Unmarshal(message.Value, &event); err == nil {
			h.logger.WithFields(logrus.Fields{
				"order_id":            event.OrderID,
				"confirmation_number": event.ConfirmationNumber,
				"customer_email":      event.CustomerEmail,
			}).Info("Undelivered notification details")
		}

		fmt.Printf("\n=== Dead-lettered notification ===\n")
		fmt.Printf("Time: %s\n", time.Now().Format(time.RFC3339))
		fmt.Printf("Order Key: %s\n", string(message.Key))
		fmt.Printf("Error: %s\n", metadata.ErrorMessage)
		fmt.Printf("Retry Count: %d\n", metadata.RetryCount)
		fmt.Printf("==================================\n\n")

		session.MarkMessage(message, "")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
