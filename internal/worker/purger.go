package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cdn-server/services/cdn-worker/internal/domain/file"
	"cdn-server/services/cdn-worker/internal/infrastructure/metrics"
)

// PurgerConfig controls retention sweeps.
type PurgerConfig struct {
	// Retention is how long soft-deleted files are kept before the record
	// is removed for good.
	Retention time.Duration
	// StuckUploadTimeout is how long a file may sit in pending_upload
	// before it is considered abandoned.
	StuckUploadTimeout time.Duration
	PurgeInterval      time.Duration
	StuckSweepInterval time.Duration
	BatchSize          int
}

// Purger periodically hard-deletes expired soft-deleted file records and
// clears abandoned pending uploads. Sweeps are best-effort: a failed sweep
// is logged and retried on the next tick.
type Purger struct {
	files file.Ledger
	cfg   PurgerConfig
	log   zerolog.Logger
	now   func() time.Time
}

func NewPurger(files file.Ledger, cfg PurgerConfig, log zerolog.Logger) *Purger {
	return &Purger{
		files: files,
		cfg:   cfg,
		log:   log.With().Str("component", "purger").Logger(),
		now:   time.Now,
	}
}

// Run sweeps once at startup, then on the configured intervals until ctx
// is cancelled.
func (p *Purger) Run(ctx context.Context) error {
	p.log.Info().
		Dur("retention", p.cfg.Retention).
		Dur("stuck_upload_timeout", p.cfg.StuckUploadTimeout).
		Msg("purger started")

	p.purgeExpired(ctx)
	p.clearStuck(ctx)

	purgeTicker := time.NewTicker(p.cfg.PurgeInterval)
	defer purgeTicker.Stop()
	stuckTicker := time.NewTicker(p.cfg.StuckSweepInterval)
	defer stuckTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("purger stopped")
			return ctx.Err()
		case <-purgeTicker.C:
			p.purgeExpired(ctx)
		case <-stuckTicker.C:
			p.clearStuck(ctx)
		}
	}
}

// purgeExpired removes soft-deleted records whose retention window has
// elapsed, in batches until the backlog is drained.
func (p *Purger) purgeExpired(ctx context.Context) {
	cutoff := p.now().Add(-p.cfg.Retention)
	for {
		ids, err := p.files.ListPurgeable(ctx, cutoff, p.cfg.BatchSize)
		if err != nil {
			p.log.Error().Err(err).Msg("list purgeable files")
			return
		}
		if len(ids) == 0 {
			return
		}
		if err := p.files.HardDelete(ctx, ids); err != nil {
			p.log.Error().Err(err).Msg("purge expired files")
			return
		}
		p.log.Info().Int("count", len(ids)).Time("cutoff", cutoff).Msg("purged expired files")
		metrics.RecordPurged("expired", len(ids))
		if len(ids) < p.cfg.BatchSize {
			return
		}
	}
}

// clearStuck removes pending_upload records that never received their
// object and are past the abandonment window.
func (p *Purger) clearStuck(ctx context.Context) {
	cutoff := p.now().Add(-p.cfg.StuckUploadTimeout)
	for {
		ids, err := p.files.ListStuck(ctx, cutoff, p.cfg.BatchSize)
		if err != nil {
			p.log.Error().Err(err).Msg("list stuck uploads")
			return
		}
		if len(ids) == 0 {
			return
		}
		if err := p.files.HardDelete(ctx, ids); err != nil {
			p.log.Error().Err(err).Msg("clear stuck uploads")
			return
		}
		p.log.Info().Int("count", len(ids)).Time("cutoff", cutoff).Msg("cleared stuck uploads")
		metrics.RecordPurged("stuck_upload", len(ids))
		if len(ids) < p.cfg.BatchSize {
			return
		}
	}
}
