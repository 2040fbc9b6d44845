package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/emberthread/storefront/internal/checkout"
	"github.com/emberthread/storefront/internal/circuitbreaker"
	"github.com/emberthread/storefront/internal/events"
	"github.com/emberthread/storefront/internal/processor"
	"github.com/emberthread/storefront/internal/store"
	"github.com/emberthread/storefront/internal/websocket"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	// Database configuration
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "storefront")
	dbPassword := getEnv("DB_PASSWORD", "storefront")
	dbName := getEnv("DB_NAME", "storefront")

	// Kafka configuration
	kafkaBrokers := getEnv("KAFKA_BROKERS", "localhost:9092")

	// Payment processor configuration
	processorURL := getEnv("PROCESSOR_URL", "http://localhost:8090")
	merchantID := getEnv("PROCESSOR_MERCHANT_ID", "emberthread-dev")
	processorKey := getEnv("PROCESSOR_API_KEY", "dev-api-key")
	webhookSecret := getEnv("PROCESSOR_WEBHOOK_SECRET", "dev-webhook-secret")

	// Service configuration
	port := getEnv("STOREFRONT_PORT", "8080")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Wait for database to be ready
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			logger.Info("Database connection established")
			break
		}
		logger.Info("Waiting for database...")
		time.Sleep(2 * time.Second)
	}

	orderStore := store.New(db, logger)
	if err := orderStore.CreateTables(); err != nil {
		logger.WithError(err).Fatal("Failed to create tables")
	}

	producer, err := events.NewKafkaProducer(kafkaBrokers, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka producer")
	}
	defer producer.Close()

	breakers := circuitbreaker.NewManager(logger)
	processorBreaker := breakers.GetOrCreate("payment-processor", circuitbreaker.Config{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		MaxRequests: 2,
	})

	processorClient := processor.NewClient(processorURL, merchantID, processorKey, processorBreaker, logger)

	notifier := checkout.NewNotifier(orderStore, producer, logger)
	initiator := checkout.NewInitiator(orderStore, processorClient, producer, logger)
	confirmations := checkout.NewConfirmationHandler(orderStore, processorClient, notifier, logger)
	handler := checkout.NewHandler(initiator, confirmations, orderStore, orderStore, webhookSecret, logger)

	hub := websocket.NewHub(logger)
	go hub.Run()
	handler.SetWebSocketHub(hub)

	router := mux.NewRouter()
	handler.Register(router)
	router.HandleFunc("/ws", hub.HandleWebSocket)
	router.HandleFunc("/health", healthCheck(orderStore)).Methods("GET")
	router.HandleFunc("/metrics/circuit-breakers", breakerMetrics(breakers)).Methods("GET")

	router.Use(loggingMiddleware(logger))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", port).Info("Starting storefront service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}

func healthCheck(orderStore *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := orderStore.Ping(); err != nil {
			respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "storefront",
				"error":   "database connection failed",
			})
			return
		}

		respondWithJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "storefront",
		})
	}
}

func breakerMetrics(breakers *circuitbreaker.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, breakers.GetAllMetrics())
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			logger.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			}).Info("Request received")

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).Milliseconds(),
			}).Info("Request completed")
		})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
