package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/tair/shopify-sync/docs"
	catalogrepo "github.com/tair/shopify-sync/internal/catalog/repository"
	"github.com/tair/shopify-sync/internal/webhook"
	httpDelivery "github.com/tair/shopify-sync/internal/webhook/delivery/http"
	"github.com/tair/shopify-sync/internal/webhook/repository"
	"github.com/tair/shopify-sync/internal/webhook/retention"
	"github.com/tair/shopify-sync/internal/webhook/verifier"
	"github.com/tair/shopify-sync/kafka"
	"github.com/tair/shopify-sync/pkg/database"
	"github.com/tair/shopify-sync/pkg/logger"
	"github.com/tair/shopify-sync/pkg/tracing"
)

func main() {
	// Initialize logger
	serviceName := getEnv("OTEL_SERVICE_NAME", "webhook-service")
	isDevelopment := getEnv("ENVIRONMENT", "development") == "development"
	logger.Init(serviceName, isDevelopment)

	logLevel := getEnv("LOG_LEVEL", "info")
	logger.SetLevel(logLevel)

	logger.Logger.Info().
		Str("service", serviceName).
		Str("environment", getEnv("ENVIRONMENT", "development")).
		Str("log_level", logLevel).
		Msg("Starting webhook service")

	// Initialize tracing
	tp, err := tracing.InitTracer(serviceName)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize tracer")
	}
	defer func() {
		if err := tracing.Shutdown(context.Background(), tp); err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to shut down tracer")
		}
	}()

	// Load database configuration
	dbConfig := database.Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "shopifydb"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Connect to database
	db, err := database.NewGormConnection(dbConfig)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to get database instance")
	}
	defer sqlDB.Close()

	// Run migrations
	if err := catalogrepo.NewGormProductRepository(db).AutoMigrate(); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run catalog migrations")
	}
	if err := repository.NewGormEventRepository(db).AutoMigrate(); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run webhook migrations")
	}
	logger.Logger.Info().Msg("Database initialized successfully")

	// Kafka work queue
	brokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	publisher, err := kafka.NewPublisher(brokers)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to create Kafka publisher")
	}
	defer publisher.Close()

	// Redis cache for the events list endpoint (optional)
	var redisClient *redis.Client
	if redisAddr := getEnv("REDIS_ADDR", ""); redisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Logger.Warn().Err(err).Msg("Redis unavailable, response caching disabled")
			redisClient = nil
		}
	}

	// Webhook signature verification; empty secret disables it
	webhookSecret := getEnv("SHOPIFY_WEBHOOK_SECRET", "")
	sigVerifier := verifier.New(webhookSecret)
	if !sigVerifier.Enabled() {
		logger.Logger.Warn().Msg("SHOPIFY_WEBHOOK_SECRET not set, signature verification disabled")
	}

	// Initialize handler and dispatcher with Wire DI
	handler, err := webhook.InitializeHTTPHandler(db, publisher, sigVerifier, redisClient)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize handler")
	}
	dispatcher, err := webhook.InitializeDispatcher(db, publisher)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize dispatcher")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background workers pulling from the Kafka work queue
	groupID := getEnv("KAFKA_GROUP_ID", "webhook-workers")
	consumer, err := kafka.NewConsumer(brokers, groupID, []string{kafka.TopicWebhookEvents})
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to create Kafka consumer")
	}
	defer consumer.Close()

	dispatcher.Register(consumer)
	if err := consumer.Start(ctx); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to start Kafka consumer")
	}

	// Retention cleanup and stuck-processing reaper
	sweeper := retention.NewSweeper(
		repository.NewGormEventRepository(db),
		catalogrepo.NewGormProductRepository(db),
		publisher,
	)
	sweeper.Start(ctx)

	// Start HTTP server
	httpPort := getEnv("HTTP_PORT", "8083")
	go startHTTPServer(handler, sqlDB, httpPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down server...")
}

func startHTTPServer(handler *httpDelivery.WebhookHandler, db *sql.DB, port string) {
	// Setup router
	router := mux.NewRouter()

	// Register routes
	handler.RegisterRoutes(router)

	// Health check endpoint
	handler.RegisterHealthCheck(router, db)

	// Swagger documentation
	httpDelivery.RegisterSwaggerDocs(router, httpSwagger.Handler())

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Request logging
	router.Use(httpDelivery.LoggingMiddleware)

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	logger.Logger.Info().
		Str("port", port).
		Str("metrics_endpoint", "/metrics").
		Msg("HTTP server started")

	server := httpDelivery.TracingMiddleware("webhook-service", c.Handler(router))
	if err := http.ListenAndServe(":"+port, server); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to start HTTP server")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
