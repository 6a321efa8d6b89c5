package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"consentd/internal/audit"
	consenthandler "consentd/internal/consent/handler"
	consentmetrics "consentd/internal/consent/metrics"
	"consentd/internal/consent/receipt"
	consentservice "consentd/internal/consent/service"
	consentstore "consentd/internal/consent/store"
	"consentd/internal/expiry"
	"consentd/internal/platform/config"
	"consentd/internal/platform/database"
	"consentd/internal/platform/httpserver"
	"consentd/internal/platform/logger"
	purposehandler "consentd/internal/purpose/handler"
	purposeservice "consentd/internal/purpose/service"
	purposestore "consentd/internal/purpose/store"
	httptransport "consentd/internal/transport/http"
	"consentd/internal/webhook/dispatcher"
	webhookhandler "consentd/internal/webhook/handler"
	webhookmetrics "consentd/internal/webhook/metrics"
	"consentd/internal/webhook/queue"
	webhookservice "consentd/internal/webhook/service"
	webhookstore "consentd/internal/webhook/store"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing consentd", "addr", cfg.Addr)

	pool, err := database.New(database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	var db *sql.DB
	if pool != nil {
		db = pool.DB()
		defer pool.Close()
	} else {
		log.Warn("no database configured, using in-memory stores")
	}

	// Stores
	var (
		consents      consentstore.Store
		purposes      purposestore.Store
		registrations webhookstore.RegistrationStore
		deliveries    webhookstore.DeliveryLog
		auditStore    audit.Store
	)
	if db != nil {
		consents = consentstore.NewPostgres(db)
		purposes = purposestore.NewPostgres(db)
		registrations = webhookstore.NewPostgresRegistrationStore(db)
		deliveries = webhookstore.NewPostgresDeliveryLog(db)
		auditStore = audit.NewPostgres(db)
	} else {
		consents = consentstore.New()
		purposes = purposestore.New()
		registrations = webhookstore.NewRegistrationStore()
		deliveries = webhookstore.NewDeliveryLog()
		auditStore = audit.NewInMemoryStore()
	}

	auditor := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
	)
	defer auditor.Close()

	// Webhook delivery pipeline
	whMetrics := webhookmetrics.New()
	poster := dispatcher.NewHTTPPoster(cfg.WebhookTimeout)
	disp := dispatcher.New(registrations, deliveries, poster, log,
		dispatcher.WithMetrics(whMetrics),
	)
	events := queue.New(disp, log,
		queue.WithSize(cfg.WebhookQueueSize),
		queue.WithWorkers(cfg.WebhookWorkers),
		queue.WithMetrics(whMetrics),
	)
	events.Start(context.Background())
	defer events.Close()

	// Domain services
	ledger := consentservice.NewService(
		consents,
		purposes,
		receipt.NewSigner(),
		auditor,
		events,
		log,
		consentservice.WithMetrics(consentmetrics.New()),
	)
	purposeSvc := purposeservice.NewService(purposes, auditor, log)
	webhookSvc := webhookservice.NewService(registrations, deliveries, disp, auditor, log)

	// Background expiry sweep
	sweeper := expiry.NewSweeper(ledger, log,
		expiry.WithInterval(cfg.ExpirySweepInterval),
	)
	sweeper.Start(context.Background())
	defer sweeper.Stop()

	router := httptransport.NewRouter(httptransport.Config{
		JWTSigningKey: cfg.JWTSigningKey,
		Handlers: []httptransport.Registrar{
			consenthandler.New(ledger, log),
			purposehandler.New(purposeSvc, log),
			webhookhandler.New(webhookSvc, log),
			audit.NewHandler(auditor, log),
		},
	}, log)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down gracefully")

	if err := httpserver.Shutdown(srv, 10*time.Second); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
