package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emberthread/storefront/internal/circuitbreaker"
	"github.com/emberthread/storefront/internal/events"
	"github.com/emberthread/storefront/internal/notify"
)

// The notifier is the email side of checkout: it consumes order.paid events,
// sends the customer receipt and the operator alert, and dead-letters what it
// can't deliver. It shares nothing with the request path, so a mail outage
// never slows an order down.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	kafkaBrokers := getEnv("KAFKA_BROKERS", "localhost:9092")
	groupID := getEnv("NOTIFIER_GROUP_ID", "order-notifier")

	mailURL := getEnv("MAIL_API_URL", "http://localhost:8091")
	mailKey := getEnv("MAIL_API_KEY", "dev-mail-key")
	fromAddress := getEnv("MAIL_FROM", "orders@emberthread.example")
	operatorEmail := getEnv("OPERATOR_EMAIL", "operator@emberthread.example")

	healthPort := getEnv("NOTIFIER_PORT", "8082")

	breakers := circuitbreaker.NewManager(logger)
	mailBreaker := breakers.GetOrCreate("mail-api", circuitbreaker.Config{
		MaxFailures: 5,
		Timeout:     60 * time.Second,
		MaxRequests: 1,
	})

	mailer := notify.NewAPIMailer(mailURL, mailKey, fromAddress, operatorEmail, mailBreaker, logger)
	dispatcher := notify.NewDispatcher(mailer, logger)

	// Kafka may come up after us; keep trying.
	var consumer *events.KafkaConsumerWithRetry
	var err error
	for i := 0; i < 30; i++ {
		consumer, err = events.NewKafkaConsumerWithRetry(kafkaBrokers, groupID, dispatcher, logger)
		if err == nil {
			break
		}
		logger.WithError(err).Info("Waiting for Kafka...")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka consumer")
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.WithError(err).Error("Consumer stopped with error")
		}
	}()

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"service": "notifier",
		})
	})
	http.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(consumer.GetMetrics())
	})

	go func() {
		logger.WithField("port", healthPort).Info("Notifier started")
		if err := http.ListenAndServe(":"+healthPort, nil); err != nil {
			logger.WithError(err).Error("Health server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down notifier...")
	cancel()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
