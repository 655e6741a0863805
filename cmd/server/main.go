package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"corridor/internal/app"
	"corridor/internal/config"
	"corridor/internal/domain"
	"corridor/internal/handler"
	"corridor/internal/logging"
	"corridor/internal/outbox"
	"corridor/internal/provider"
	internalRedis "corridor/internal/redis"
	"corridor/internal/repository/postgres"
	"corridor/internal/service"
	"corridor/internal/worker"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	logger := logging.New(slog.LevelInfo)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies.
	server, relay, scheduler := wireServer(db, redisClient, nrApp, cfg, logger)

	// Background workers get their own lifecycle, cancelled on shutdown.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	go relay.Run(workerCtx)
	go scheduler.Run(workerCtx)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	stopWorkers()
	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server plus the
// background workers that drive orders and drain the outbox.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, logger *slog.Logger) (*http.Server, *outbox.Relay, *worker.Scheduler) {
	// Initialize Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)
	streamPublisher := internalRedis.NewStreamPublisher(redisClient, cfg.Redis.EventStream)

	// Initialize repositories.
	uow := postgres.NewUnitOfWork(db)
	orderRepo := postgres.NewOrderRepository(db)
	legRepo := postgres.NewLegAttemptRepository(db)
	eventRepo := postgres.NewEventRepository(db)
	caseRepo := postgres.NewInterventionRepository(db)
	ledgerStore := postgres.NewLedgerStore(db)

	// Initialize provider gateways.
	collection := provider.NewSandboxGateway(provider.SandboxConfig{
		ID:            cfg.Providers.Collection.ID,
		BaseURL:       cfg.Providers.Collection.BaseURL,
		WebhookSecret: cfg.Providers.Collection.WebhookSecret,
		Timeout:       cfg.Saga.ProviderTimeout,
	})
	payout := provider.NewSandboxGateway(provider.SandboxConfig{
		ID:            cfg.Providers.Payout.ID,
		BaseURL:       cfg.Providers.Payout.BaseURL,
		WebhookSecret: cfg.Providers.Payout.WebhookSecret,
		Timeout:       cfg.Saga.ProviderTimeout,
	})
	registry := provider.NewRegistry(collection, payout)

	routing := domain.NewRoutingTable(sandboxRoutes(cfg))
	rateSource := service.NewFixedRateSource("sandbox-fixed", sandboxRates())

	// Initialize services.
	rateService := service.NewRateService(rateSource, cacheStore)
	orchestrator := service.NewOrchestrator(
		uow, orderRepo, legRepo, caseRepo, ledgerStore,
		registry, routing, rateService, lockStore, cfg.Saga, logger,
	)
	orderService := service.NewOrderService(uow, orderRepo, eventRepo, routing, orchestrator, logger)
	interventionService := service.NewInterventionService(orchestrator, caseRepo, logger)

	// Initialize handlers.
	orderHandler := handler.NewOrderHandler(orderService, orchestrator)
	webhookHandler := handler.NewWebhookHandler(orchestrator)
	interventionHandler := handler.NewInterventionHandler(interventionService)

	router := app.NewRouter(app.RouterDeps{
		OrderHandler:        orderHandler,
		WebhookHandler:      webhookHandler,
		InterventionHandler: interventionHandler,
		RedisClient:         redisClient,
		NewRelicApp:         nrApp,
	})

	relay := outbox.NewRelay(eventRepo, streamPublisher, logger)
	scheduler := worker.NewScheduler(orderRepo, orchestrator, logger, cfg.Saga.SchedulerInterval, cfg.Saga.WorkerCount)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return server, relay, scheduler
}

// sandboxRoutes declares the corridors served in the sandbox environment.
// Both legs of every corridor run through the two configured providers.
func sandboxRoutes(cfg *config.Config) []domain.Route {
	fees := domain.FeeSchedule{
		PlatformPct: 0.015,
		ProviderPct: 0.005,
		NetworkFlat: 1.50,
		MinimumFee:  2.00,
	}

	corridors := []domain.Corridor{
		{SourceCurrency: "USD", DestCurrency: "PHP"},
		{SourceCurrency: "USD", DestCurrency: "MXN"},
		{SourceCurrency: "EUR", DestCurrency: "NGN"},
		{SourceCurrency: "GBP", DestCurrency: "INR"},
	}

	routes := make([]domain.Route, 0, len(corridors))
	for _, c := range corridors {
		routes = append(routes, domain.Route{
			Corridor:           c,
			CollectionProvider: cfg.Providers.Collection.ID,
			PayoutProvider:     cfg.Providers.Payout.ID,
			Fees:               fees,
		})
	}
	return routes
}

// sandboxRates is the static quote table backing the sandbox corridors.
func sandboxRates() map[domain.Corridor]float64 {
	return map[domain.Corridor]float64{
		{SourceCurrency: "USD", DestCurrency: "PHP"}: 56.20,
		{SourceCurrency: "USD", DestCurrency: "MXN"}: 17.05,
		{SourceCurrency: "EUR", DestCurrency: "NGN"}: 1650.00,
		{SourceCurrency: "GBP", DestCurrency: "INR"}: 105.40,
	}
}
