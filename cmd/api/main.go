package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	httpAPI "github.com/newbihanigroup-creator/khaacho-sub004/internal/api/http"
	"github.com/newbihanigroup-creator/khaacho-sub004/internal/application"
	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
	"github.com/newbihanigroup-creator/khaacho-sub004/internal/infrastructure/clients"
	kafkaAdapter "github.com/newbihanigroup-creator/khaacho-sub004/internal/infrastructure/kafka"
	mongoRepo "github.com/newbihanigroup-creator/khaacho-sub004/internal/infrastructure/mongodb"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/cloudevents"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/kafka"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/logging"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/metrics"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/middleware"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/mongodb"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/outbox"
)

const serviceName = "routing-service"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting routing-service API")

	config := loadConfig()
	ctx := context.Background()

	// Initialize Prometheus metrics
	metricsConfig := metrics.DefaultConfig(serviceName)
	m := metrics.New(metricsConfig)
	logger.Info("Metrics initialized")

	// Initialize MongoDB
	mongoClient, err := mongodb.NewClient(ctx, config.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	// Initialize Kafka producer with instrumentation
	kafkaProducer := kafka.NewProducer(config.Kafka)
	instrumentedProducer := kafka.NewInstrumentedProducer(kafkaProducer, m, logger)
	defer instrumentedProducer.Close()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	// Initialize CloudEvents factory
	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceRouting)

	// Initialize repositories
	orderRepo := mongoRepo.NewOrderRepository(mongoClient.Database(), eventFactory)
	assignmentRepo := mongoRepo.NewAssignmentRepository(mongoClient.Database())
	decisionLog := mongoRepo.NewDecisionLog(mongoClient.Database())
	healingLog := mongoRepo.NewHealingLog(mongoClient.Database())
	notificationRepo := mongoRepo.NewNotificationRepository(mongoClient.Database())

	// Initialize and start outbox publisher
	outboxPublisher := outbox.NewPublisher(
		orderRepo.GetOutboxRepository(),
		instrumentedProducer,
		logger,
		m,
		&outbox.PublisherConfig{
			PollInterval: 1 * time.Second,
			BatchSize:    100,
		},
	)
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer outboxPublisher.Stop()
	logger.Info("Outbox publisher started")

	// Initialize supplier catalog client (implements domain.SupplierCatalog)
	catalogClient := clients.NewCatalogClient(config.CatalogServiceURL, logger)
	logger.Info("Supplier catalog client initialized", "url", config.CatalogServiceURL)

	// Initialize notification gateway (implements domain.NotificationGateway)
	notificationGateway := kafkaAdapter.NewNotificationGateway(instrumentedProducer, eventFactory)

	// Initialize domain engines
	rankingEngine, err := domain.NewVendorRankingEngine(domain.DefaultRankingWeights())
	if err != nil {
		logger.WithError(err).Error("Failed to initialize ranking engine")
		os.Exit(1)
	}
	splitter := domain.NewOrderSplitter(config.Routing.FanOut)

	// Initialize application services
	timeoutTracker := application.NewTimeoutTracker(assignmentRepo, logger, m, config.Recovery.BatchSize)

	reassigner := application.NewReassignmentController(
		orderRepo,
		assignmentRepo,
		decisionLog,
		notificationRepo,
		catalogClient,
		rankingEngine,
		splitter,
		notificationGateway,
		logger,
		m,
		config.Routing.MaxAttempts,
		config.Routing.ResponseTimeout,
	)

	stuckDetector := application.NewStuckOrderDetector(orderRepo, logger, m, config.Recovery.BatchSize, config.Recovery.Stuck)

	recoveryExecutor := application.NewRecoveryExecutor(
		orderRepo,
		assignmentRepo,
		healingLog,
		notificationRepo,
		catalogClient,
		rankingEngine,
		splitter,
		reassigner,
		notificationGateway,
		instrumentedProducer,
		eventFactory,
		logger,
		m,
		config.Routing.ResponseTimeout,
	)

	routingService := application.NewRoutingApplicationService(
		orderRepo,
		assignmentRepo,
		decisionLog,
		healingLog,
		notificationRepo,
		catalogClient,
		rankingEngine,
		splitter,
		timeoutTracker,
		notificationGateway,
		instrumentedProducer,
		eventFactory,
		logger,
		m,
		config.Routing.ResponseTimeout,
	)

	// Initialize and start the recovery scheduler
	scheduler := application.NewRecoveryScheduler(
		timeoutTracker,
		reassigner,
		stuckDetector,
		recoveryExecutor,
		logger,
		m,
		application.RecoverySchedulerConfig{
			SweepInterval: config.Recovery.SweepInterval,
		},
	)
	if config.Recovery.Enabled {
		if err := scheduler.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start recovery scheduler")
		} else {
			logger.Info("Recovery scheduler started", "interval", config.Recovery.SweepInterval)
		}
	} else {
		logger.Info("Recovery scheduler disabled")
	}

	// Setup Gin router with middleware
	router := gin.New()

	// Add CORS middleware for the admin dashboard
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "X-Correlation-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "X-Correlation-ID"},
		AllowCredentials: true,
	}))

	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	middleware.Setup(router, middlewareConfig)
	router.Use(middleware.MetricsMiddleware(m))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	// Health check endpoints
	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		if err := mongoClient.HealthCheck(ctx); err != nil {
			return err
		}
		if status := catalogClient.BreakerStatus(); status.State == "open" {
			return fmt.Errorf("supplier catalog circuit breaker open")
		}
		return nil
	}))

	// Metrics endpoint
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	// API routes
	handlers := httpAPI.NewHandlers(routingService, scheduler, logger)
	httpAPI.RegisterRoutes(router, handlers)

	// Start server
	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	if scheduler.IsRunning() {
		scheduler.Stop()
		logger.Info("Recovery scheduler stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}

// Config holds application configuration
type Config struct {
	ServerAddr        string
	MongoDB           *mongodb.Config
	Kafka             *kafka.Config
	CatalogServiceURL string
	Routing           RoutingConfig
	Recovery          RecoveryConfig
}

// RoutingConfig holds routing behaviour configuration
type RoutingConfig struct {
	FanOut          int
	MaxAttempts     int
	ResponseTimeout time.Duration
}

// RecoveryConfig holds recovery scheduler configuration
type RecoveryConfig struct {
	Enabled       bool
	SweepInterval time.Duration
	BatchSize     int
	Stuck         domain.StuckThresholds
}

func loadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8004"),
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "khaacho_routing"),
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
			MinPoolSize:    10,
		},
		Kafka: &kafka.Config{
			Brokers:      []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			ClientID:     serviceName,
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: -1,
		},
		CatalogServiceURL: getEnv("CATALOG_SERVICE_URL", "http://localhost:8003"),
		Routing: RoutingConfig{
			FanOut:          parseInt(getEnv("ROUTING_FAN_OUT", "3")),
			MaxAttempts:     parseInt(getEnv("ROUTING_MAX_ATTEMPTS", "3")),
			ResponseTimeout: parseDuration(getEnv("ROUTING_RESPONSE_TIMEOUT", "30m")),
		},
		Recovery: RecoveryConfig{
			Enabled:       getEnv("RECOVERY_ENABLED", "true") == "true",
			SweepInterval: parseDuration(getEnv("RECOVERY_SWEEP_INTERVAL", "60s")),
			BatchSize:     parseInt(getEnv("RECOVERY_BATCH_SIZE", "100")),
			Stuck: domain.StuckThresholds{
				Pending:    parseDuration(getEnv("STUCK_PENDING_AFTER", "30m")),
				Assigned:   parseDuration(getEnv("STUCK_ASSIGNED_AFTER", "45m")),
				TimedOut:   parseDuration(getEnv("STUCK_TIMED_OUT_AFTER", "5m")),
				Accepted:   parseDuration(getEnv("STUCK_ACCEPTED_AFTER", "60m")),
				InProgress: parseDuration(getEnv("STUCK_IN_PROGRESS_AFTER", "180m")),
			},
		},
	}
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Minute
	}
	return d
}

func parseInt(s string) int {
	var i int
	fmt.Sscanf(s, "%d", &i)
	return i
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
