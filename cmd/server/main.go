// Command server wires stores, services, and HTTP transport for the
// lodger rental platform. Business logic lives in the internal service
// packages; main stays assembly and lifecycle.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lodger/internal/platform/config"
	"lodger/internal/platform/database"
	"lodger/internal/platform/health"
	"lodger/internal/platform/logger"
	"lodger/internal/platform/middleware"
	platformredis "lodger/internal/platform/redis"

	billinghandler "lodger/internal/billing/handler"
	billingmetrics "lodger/internal/billing/metrics"
	"lodger/internal/billing/processor"
	billingservice "lodger/internal/billing/service"
	invoicestore "lodger/internal/billing/store/invoice"
	paymentstore "lodger/internal/billing/store/payment"
	leasehandler "lodger/internal/lease/handler"
	leasemetrics "lodger/internal/lease/metrics"
	leaseservice "lodger/internal/lease/service"
	leasestore "lodger/internal/lease/store/lease"
	occupancystore "lodger/internal/lease/store/occupancy"
	"lodger/internal/lease/workers/expiry"
	"lodger/internal/property"
	webhookhandler "lodger/internal/webhook/handler"
	webhookmetrics "lodger/internal/webhook/metrics"
	webhookservice "lodger/internal/webhook/service"
	eventstore "lodger/internal/webhook/store/event"
)

func main() {
	_ = godotenv.Load() //nolint:errcheck // optional .env for local development

	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing lodger",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
	)

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.New(dbCfg)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}

	// Stores fall back to in-memory when no database is configured so
	// the server runs standalone in development. The lease and payment
	// stores serve two consumers each, hence the combined contracts.
	var (
		leases interface {
			leaseservice.LeaseStore
			billingservice.LeaseDirectory
		}
		payments interface {
			billingservice.PaymentStore
			webhookservice.PaymentStore
		}
		occupancies occupancystore.Store
		properties  property.Store
		invoices    billingservice.InvoiceStore
		events      webhookservice.EventStore

		leaseOpts   []leaseservice.Option
		billingOpts []billingservice.Option
		webhookOpts []webhookservice.Option
	)
	if pool != nil {
		log.Info("using postgres stores")
		tx := newPostgresTx(pool.DB())
		leases = leasestore.NewPostgres(pool.DB())
		occupancies = occupancystore.NewPostgres(pool.DB())
		properties = property.NewPostgres(pool.DB())
		invoices = invoicestore.NewPostgres(pool.DB())
		payments = paymentstore.NewPostgres(pool.DB())
		events = eventstore.NewPostgres(pool.DB())
		leaseOpts = append(leaseOpts, leaseservice.WithTx(tx))
		billingOpts = append(billingOpts, billingservice.WithTx(tx))
		webhookOpts = append(webhookOpts, webhookservice.WithTx(tx))
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		leases = leasestore.NewInMemory()
		occupancies = occupancystore.NewInMemory()
		properties = property.NewInMemory()
		invoices = invoicestore.NewInMemory()
		payments = paymentstore.NewInMemory()
		events = eventstore.NewInMemory()
	}
	cachedOccupancies := occupancystore.NewCached(occupancies, redisClient, log)

	leaseOpts = append(leaseOpts,
		leaseservice.WithMetrics(leasemetrics.New()),
		leaseservice.WithRenewalHorizon(cfg.RenewalHorizon),
	)
	billingOpts = append(billingOpts, billingservice.WithMetrics(billingmetrics.New()))
	webhookMetrics := webhookmetrics.New()
	webhookOpts = append(webhookOpts, webhookservice.WithMetrics(webhookMetrics))

	var proc processor.Processor
	if cfg.ProcessorBaseURL != "" {
		proc = processor.NewStripeClient(cfg.ProcessorBaseURL, cfg.ProcessorAPIKey, log,
			processor.WithHTTPClient(&http.Client{Timeout: cfg.ProcessorTimeout}))
	} else {
		log.Warn("PAYMENT_PROCESSOR_URL not set, using fake processor")
		proc = processor.NewFake()
	}

	propertyDir := property.NewDirectory(properties)
	leaseSvc := leaseservice.New(leases, cachedOccupancies, propertyDir, leaseOpts...)
	invoiceSvc := billingservice.NewInvoiceService(invoices, payments, cachedOccupancies, leases, billingOpts...)
	paymentSvc := billingservice.NewPaymentService(invoices, payments, proc, log, billingOpts...)
	reconciler := webhookservice.New(events, payments, invoices, log, webhookOpts...)

	if cfg.WebhookSecret == "" {
		log.Warn("PAYMENT_WEBHOOK_SECRET not set, webhook deliveries will be rejected")
	}

	leaseH := leasehandler.New(leaseSvc, log)
	billingH := billinghandler.New(invoiceSvc, paymentSvc, log)
	webhookH := webhookhandler.New([]byte(cfg.WebhookSecret), reconciler, log,
		webhookhandler.WithMetrics(webhookMetrics))

	healthH := health.New(cfg.Environment)
	if pool != nil {
		healthH.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
	}
	if redisClient != nil {
		healthH.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(ctx)
		})
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.BodyLimit(1 << 20))

	healthH.Register(router)
	router.Handle("/metrics", promhttp.Handler())

	// Webhook deliveries are signature-verified, not token-authenticated.
	webhookH.Register(router)

	router.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(cfg.JWTSigningKey, log))
		leaseH.Register(r)
		billingH.Register(r)
	})

	jobCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	if cfg.ExpirySweepInterval > 0 {
		sweeper, err := expiry.New(leaseSvc,
			expiry.WithInterval(cfg.ExpirySweepInterval),
			expiry.WithLogger(log))
		if err != nil {
			log.Error("expiry sweeper init failed", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := sweeper.Start(jobCtx); err != nil && err != context.Canceled {
				log.Error("expiry sweeper stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

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

	log.Info("shutting down server gracefully")
	stopJobs()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	if pool != nil {
		_ = pool.Close() //nolint:errcheck // shutdown path
	}
	if redisClient != nil {
		_ = redisClient.Close() //nolint:errcheck // shutdown path
	}

	log.Info("server stopped")
}
