package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leadcrm/internal/artifact"
	"leadcrm/internal/audit"
	consenthandler "leadcrm/internal/consent/handler"
	consentmetrics "leadcrm/internal/consent/metrics"
	consentservice "leadcrm/internal/consent/service"
	"leadcrm/internal/lifecycle/anonymize"
	"leadcrm/internal/lifecycle/collector"
	"leadcrm/internal/lifecycle/deletion"
	lifecyclehandler "leadcrm/internal/lifecycle/handler"
	lifecyclemetrics "leadcrm/internal/lifecycle/metrics"
	lifecycleservice "leadcrm/internal/lifecycle/service"
	"leadcrm/internal/lifecycle/tracer"
	"leadcrm/internal/lifecycle/worker"
	"leadcrm/internal/platform/config"
	"leadcrm/internal/platform/database"
	"leadcrm/internal/platform/health"
	"leadcrm/internal/platform/kafka"
	"leadcrm/internal/platform/kafka/producer"
	"leadcrm/internal/platform/logger"
	platformredis "leadcrm/internal/platform/redis"
	"leadcrm/internal/subject/registry"
	"leadcrm/pkg/platform/middleware/request"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing leadcrm privacy engine",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"workers", cfg.WorkerCount,
	)

	pool, err := database.New(database.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    database.DefaultConfig().MaxOpenConns,
		MaxIdleConns:    database.DefaultConfig().MaxIdleConns,
		ConnMaxLifetime: database.DefaultConfig().ConnMaxLifetime,
	})
	if err != nil {
		log.Error("database initialization failed", "error", err)
		os.Exit(1)
	}
	if pool == nil {
		log.Warn("no DATABASE_URL configured, using in-memory stores with demo data")
	}

	rdb, err := platformredis.New(platformredis.Config{URL: cfg.RedisURL})
	if err != nil {
		log.Error("redis initialization failed", "error", err)
		os.Exit(1)
	}

	var prod *producer.Producer
	if cfg.KafkaBrokers != "" {
		prod, err = producer.New(producer.Config{
			Brokers:         cfg.KafkaBrokers,
			Acks:            "all",
			Retries:         3,
			DeliveryTimeout: 10 * time.Second,
		}, log)
		if err != nil {
			log.Error("kafka producer initialization failed", "error", err)
			os.Exit(1)
		}
	}

	b := buildBackends(pool, rdb, log)

	auditStore := buildAuditStore(cfg, b.audits, prod, log)
	auditor := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
	)

	consentSvc := consentservice.NewService(b.consents, auditor, log,
		consentservice.WithMetrics(consentmetrics.New()),
	)

	graph := registry.New(b.subjectsReader, b.consents, log)
	coll := collector.New(graph, auditStore, log)
	coordinator := deletion.NewCoordinator(graph, b.uow, anonymize.NewEngine(), cfg.RetentionPeriod, log)
	signer := artifact.NewURLSigner(cfg.ArtifactSigningKey, cfg.PublicBaseURL)

	executor := &executorProxy{}
	workerPool := worker.NewPool(executor, cfg.WorkerCount, cfg.QueueSize, log)

	lifecycleSvc := lifecycleservice.NewService(
		b.requests,
		coll,
		coordinator,
		b.artifacts,
		signer,
		auditor,
		cfg.ExportTTL,
		log,
		lifecycleservice.WithScheduler(workerPool),
		lifecycleservice.WithMetrics(lifecyclemetrics.New()),
		lifecycleservice.WithTracer(tracer.NewOtel()),
	)
	executor.target = lifecycleSvc

	sweeper := worker.NewSweeper(b.holds, b.artifactSweeper, log,
		worker.WithSweeperAuditor(auditor),
	)

	healthHandler := health.New(cfg.Environment)
	if pool != nil {
		healthHandler.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
	}
	if rdb != nil {
		healthHandler.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return rdb.Health(ctx)
		})
	}
	if cfg.KafkaBrokers != "" {
		kafkaCheck := kafka.NewHealthChecker(cfg.KafkaBrokers)
		healthHandler.RegisterCheck("kafka", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return kafkaCheck.Check(ctx)
		})
	}

	router := chi.NewRouter()
	router.Use(request.Recovery(log))
	router.Use(request.RequestID)
	router.Use(request.Logger(log))
	router.Use(request.BodyLimit(1 << 20))
	router.Use(request.ContentTypeJSON)
	router.Use(request.LatencyMiddleware(request.NewMetrics()))

	healthHandler.Register(router)
	lifecyclehandler.New(lifecycleSvc, log).Register(router)
	consenthandler.New(consentSvc, log).Register(router)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	workerPool.Start(workerCtx)
	go func() {
		if err := sweeper.Start(workerCtx); err != nil && err != context.Canceled {
			log.Error("retention sweeper stopped", "error", err)
		}
	}()

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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	// Drain the pool before cancelling the worker context so in-flight
	// requests finish instead of failing on a cancelled context. The
	// cancel only has to stop the retention sweeper.
	workerPool.Stop()
	stopWorkers()
	auditor.Close()
	if prod != nil {
		prod.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if pool != nil {
		_ = pool.Close()
	}

	log.Info("server stopped")
}
