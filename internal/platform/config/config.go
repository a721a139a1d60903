package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults applied when the environment does not override them.
const (
	defaultAddr            = ":8080"
	defaultExportTTL       = 7 * 24 * time.Hour
	defaultRetentionPeriod = 90 * 24 * time.Hour
	defaultWorkerCount     = 4
	defaultQueueSize       = 64
)

// Server captures process level configuration.
type Server struct {
	Addr               string
	Environment        string
	DatabaseURL        string
	RedisURL           string
	KafkaBrokers       string
	AuditTopic         string
	PublicBaseURL      string
	ArtifactSigningKey string
	ExportTTL          time.Duration
	RetentionPeriod    time.Duration
	WorkerCount        int
	QueueSize          int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:            envOr("LEADCRM_ADDR", defaultAddr),
		Environment:     envOr("LEADCRM_ENV", "development"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		AuditTopic:      envOr("AUDIT_TOPIC", "leadcrm.audit.events"),
		PublicBaseURL:   envOr("PUBLIC_BASE_URL", "http://localhost:8080"),
		ExportTTL:       defaultExportTTL,
		RetentionPeriod: defaultRetentionPeriod,
		WorkerCount:     defaultWorkerCount,
		QueueSize:       defaultQueueSize,
	}

	if ttl := os.Getenv("EXPORT_TTL"); ttl != "" {
		if duration, err := time.ParseDuration(ttl); err == nil && duration > 0 {
			cfg.ExportTTL = duration
		}
	}
	if retention := os.Getenv("RETENTION_PERIOD"); retention != "" {
		if duration, err := time.ParseDuration(retention); err == nil && duration > 0 {
			cfg.RetentionPeriod = duration
		}
	}
	if workers := os.Getenv("LIFECYCLE_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			cfg.WorkerCount = n
		}
	}
	if queue := os.Getenv("LIFECYCLE_QUEUE"); queue != "" {
		if n, err := strconv.Atoi(queue); err == nil && n > 0 {
			cfg.QueueSize = n
		}
	}

	cfg.ArtifactSigningKey = os.Getenv("ARTIFACT_SIGNING_KEY")
	if cfg.ArtifactSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.ArtifactSigningKey = "dev-secret-key-change-in-production"
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
