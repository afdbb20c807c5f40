package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fabworks/lasercut/internal/adapter/logger"
	"github.com/fabworks/lasercut/internal/adapter/postgres"
	"github.com/fabworks/lasercut/internal/adapter/rabbitmq"
	"github.com/fabworks/lasercut/internal/adapter/storage"
	"github.com/fabworks/lasercut/internal/app/auth"
	"github.com/fabworks/lasercut/internal/app/catalog"
	"github.com/fabworks/lasercut/internal/app/orders"
	"github.com/fabworks/lasercut/internal/app/workflow"
	"github.com/fabworks/lasercut/internal/config"

	amqpAdapter "github.com/fabworks/lasercut/internal/adapter/amqp"
	httpAdapter "github.com/fabworks/lasercut/internal/adapter/http"
)

func main() {
	// Parse command-line flags
	mode := flag.String("mode", "", "Service mode: api-service, notification-subscriber, migrate")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	prefetch := flag.Int("prefetch", 1, "RabbitMQ prefetch count")
	flag.Parse()

	if *mode == "" {
		log.Fatal("--mode flag is required")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port == 0 {
		*port = cfg.HTTP.Port
	}

	ctx := context.Background()

	// Initialize logger
	lgr := logger.New(*mode)

	// Route to appropriate service
	switch *mode {
	case "migrate":
		if err := postgres.Migrate(cfg.Database); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		lgr.Info("migrations_applied", "Database schema is up to date", "startup", map[string]interface{}{
			"db": cfg.Database.Database,
		})

	case "api-service":
		runAPIService(ctx, cfg, lgr, *port)

	case "notification-subscriber":
		runNotificationSubscriber(ctx, cfg, lgr, *prefetch)

	default:
		log.Fatalf("Invalid mode: %s", *mode)
	}
}

func runAPIService(ctx context.Context, cfg *config.Config, lgr logger.Logger, port int) {
	// Connect to PostgreSQL
	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	lgr.Info("db_connected", "Connected to PostgreSQL database", "startup", map[string]interface{}{
		"host": cfg.Database.Host,
		"db":   cfg.Database.Database,
	})

	// Connect to RabbitMQ
	mqConn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mqConn.Close()

	lgr.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
		"host": cfg.RabbitMQ.Host,
	})

	// Initialize repositories
	orderRepo := postgres.NewOrderRepository(db)
	userRepo := postgres.NewUserRepository(db)
	materialRepo := postgres.NewMaterialRepository(db)

	// Initialize blob storage
	fileStore, err := storage.NewLocalStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize file storage: %v", err)
	}

	// Initialize messaging
	publisher := rabbitmq.NewPublisher(mqConn)

	// Initialize services
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLHours)
	cache := auth.NewIdentityCache(userRepo, time.Duration(cfg.Auth.CacheTTLSeconds)*time.Second, time.Now)
	authService := auth.NewService(userRepo, tokens, cache, lgr)
	orderService := orders.NewService(orderRepo, materialRepo, fileStore, publisher, lgr, cfg.Pricing.TaxRate, cfg.Pricing.FlatShipping)
	workflowService := workflow.NewService(orderRepo, userRepo, fileStore, publisher, lgr)
	catalogService := catalog.NewService(materialRepo)

	// Setup HTTP server
	handler := httpAdapter.NewRouter(httpAdapter.RouterDeps{
		Auth:     httpAdapter.NewAuthHandler(authService, lgr),
		Orders:   httpAdapter.NewOrderHandler(orderService, lgr),
		Admin:    httpAdapter.NewAdminHandler(workflowService, lgr),
		Operator: httpAdapter.NewOperatorHandler(workflowService, lgr),
		Catalog:  httpAdapter.NewCatalogHandler(catalogService),
		Files:    httpAdapter.NewFileHandler(fileStore, lgr),
		AuthN:    authService,
		Logger:   lgr,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lgr.Info("service_started", fmt.Sprintf("API Service started on port %d", port), "startup", map[string]interface{}{
		"port": port,
	})

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		lgr.Info("shutdown_initiated", "Shutting down API Service", "shutdown", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			lgr.Error("shutdown_error", "Error during shutdown", "shutdown", nil, err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		lgr.Error("server_error", "Server error", "runtime", nil, err)
	}
}

func runNotificationSubscriber(ctx context.Context, cfg *config.Config, lgr logger.Logger, prefetch int) {
	// Connect to RabbitMQ
	mqConn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mqConn.Close()

	lgr.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
		"host": cfg.RabbitMQ.Host,
	})

	// Initialize consumer
	consumer := rabbitmq.NewConsumer(mqConn, prefetch)

	// Initialize handler
	notificationHandler := amqpAdapter.NewNotificationHandler(lgr)

	lgr.Info("service_started", "Notification Subscriber started", "startup", nil)

	// Start consuming status updates
	go func() {
		if err := consumer.ConsumeStatusUpdates(ctx, notificationHandler.HandleStatusUpdate); err != nil {
			lgr.Error("consumer_error", "Error consuming status updates", "runtime", nil, err)
		}
	}()

	// Wait for shutdown signal
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	<-sigint

	lgr.Info("shutdown_initiated", "Shutting down Notification Subscriber", "shutdown", nil)
}
