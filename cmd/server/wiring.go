package main

import (
	"context"
	"log/slog"

	"leadcrm/internal/audit"
	consentstore "leadcrm/internal/consent/store"
	"leadcrm/internal/lifecycle/deletion"
	lifecyclestore "leadcrm/internal/lifecycle/store"
	"leadcrm/internal/lifecycle/worker"
	"leadcrm/internal/platform/config"
	"leadcrm/internal/platform/database"
	"leadcrm/internal/platform/kafka/producer"
	platformredis "leadcrm/internal/platform/redis"
	"leadcrm/internal/seeder"
	subjectstore "leadcrm/internal/subject/store"

	"leadcrm/internal/artifact"
)

// executorProxy breaks the construction cycle between the lifecycle service
// and the worker pool: the pool needs an executor at construction, the
// service needs the pool as its scheduler. The target is set once during
// wiring, before the pool starts.
type executorProxy struct {
	target worker.Executor
}

func (e *executorProxy) Execute(ctx context.Context, requestID string) error {
	return e.target.Execute(ctx, requestID)
}

// backends groups the storage implementations selected for this process.
// With a database configured everything persists; without one the process
// runs on seeded in-memory stores, which is the local development mode.
type backends struct {
	subjectsReader  subjectstore.Reader
	consents        consentstore.Store
	requests        lifecyclestore.Store
	artifacts       artifact.Store
	audits          audit.Store
	uow             deletion.UnitOfWork
	holds           worker.HoldReleaser
	artifactSweeper worker.ArtifactSweeper
}

func buildBackends(pool *database.Pool, rdb *platformredis.Client, log *slog.Logger) backends {
	if pool != nil {
		subjects := subjectstore.NewPostgres(pool.DB())
		b := backends{
			subjectsReader: subjects,
			consents:       consentstore.NewPostgres(pool.DB()),
			requests:       lifecyclestore.NewPostgres(pool.DB()),
			audits:         audit.NewPostgres(pool.DB()),
			uow:            deletion.NewPostgresUnitOfWork(pool.DB()),
			holds:          subjects,
		}
		if rdb != nil {
			b.artifacts = artifact.NewRedis(rdb.Client)
			b.artifactSweeper = worker.NoopArtifactSweeper{}
		} else {
			mem := artifact.NewMemory()
			b.artifacts = mem
			b.artifactSweeper = mem
		}
		return b
	}

	subjects := subjectstore.New()
	consents := consentstore.New()
	artifacts := artifact.NewMemory()

	if err := seeder.New(subjects, consents, log).SeedAll(context.Background()); err != nil {
		log.Warn("demo data seeding failed", "error", err)
	}

	return backends{
		subjectsReader:  subjects,
		consents:        consents,
		requests:        lifecyclestore.New(),
		artifacts:       artifacts,
		audits:          audit.NewInMemoryStore(),
		uow:             deletion.NewMemoryUnitOfWork(subjects, consents),
		holds:           subjects,
		artifactSweeper: artifacts,
	}
}

// buildAuditStore decorates the persistent audit store with Kafka fan-out
// when a broker is configured.
func buildAuditStore(cfg config.Server, base audit.Store, prod *producer.Producer, log *slog.Logger) audit.Store {
	if prod == nil {
		return base
	}
	return audit.NewKafkaStore(base, prod, cfg.AuditTopic, log)
}
