package worker

import (
	"context"
	"log/slog"
	"time"

	"leadcrm/internal/audit"
)

// HoldReleaser releases retention holds whose retain-until date has passed.
type HoldReleaser interface {
	ReleaseExpiredHolds(ctx context.Context, now time.Time) (int, error)
}

// ArtifactSweeper removes expired export artifacts. Stores whose backend
// expires keys natively can supply a no-op.
type ArtifactSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// NoopArtifactSweeper is used when the artifact backend handles expiry
// itself, as the redis store does with key TTLs.
type NoopArtifactSweeper struct{}

func (NoopArtifactSweeper) Sweep(context.Context) (int, error) { return 0, nil }

// SweeperResult contains the results of one sweep run.
type SweeperResult struct {
	HoldsReleased    int
	ArtifactsRemoved int
	Duration         time.Duration
}

// SweeperOption configures the Sweeper.
type SweeperOption func(*Sweeper)

func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithSweeperAuditor(auditor *audit.Publisher) SweeperOption {
	return func(s *Sweeper) {
		s.auditor = auditor
	}
}

// Sweeper periodically releases expired retention holds and clears expired
// export artifacts.
type Sweeper struct {
	holds     HoldReleaser
	artifacts ArtifactSweeper
	auditor   *audit.Publisher
	logger    *slog.Logger
	interval  time.Duration
	now       func() time.Time
}

func NewSweeper(holds HoldReleaser, artifacts ArtifactSweeper, logger *slog.Logger, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		holds:     holds,
		artifacts: artifacts,
		logger:    logger,
		interval:  time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetClock overrides the sweep clock. Test hook.
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			started := time.Now()
			res, err := s.RunOnce(ctx)
			duration := time.Since(started)

			if err != nil {
				s.logger.Error("retention_sweep_failed",
					"error", err,
					"duration_ms", duration.Milliseconds(),
				)
				continue
			}
			res.Duration = duration
			s.logger.Info("retention_sweep_completed",
				"holds_released", res.HoldsReleased,
				"artifacts_removed", res.ArtifactsRemoved,
				"duration_ms", duration.Milliseconds(),
			)
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce executes a single sweep. Logging is handled by the caller (Start).
func (s *Sweeper) RunOnce(ctx context.Context) (*SweeperResult, error) {
	released, err := s.holds.ReleaseExpiredHolds(ctx, s.now())
	if err != nil {
		return nil, err
	}
	removed, err := s.artifacts.Sweep(ctx)
	if err != nil {
		return nil, err
	}

	if released > 0 && s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Event{
			Action: audit.ActionRetentionReleased,
			Detail: "expired retention holds released by sweeper",
		}); err != nil {
			s.logger.Warn("audit emit failed", "action", audit.ActionRetentionReleased, "error", err)
		}
	}
	return &SweeperResult{HoldsReleased: released, ArtifactsRemoved: removed}, nil
}
