package actions

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/chorushq/chorus/internal/metrics"
	"github.com/chorushq/chorus/internal/store"
)

// defaultReapInterval is how often the background reaper sweeps expired
// rows. Lazy reaping on acquire keeps correctness independent of this.
const defaultReapInterval = 60 * time.Second

// Reaper periodically deletes expired lock leases and idempotency records.
// Each cycle runs in its own transaction; a failed cycle is logged and the
// next tick tries again.
type Reaper struct {
	db       *sql.DB
	interval time.Duration
	log      zerolog.Logger
}

// NewReaper builds a reaper with the default 60s sweep interval.
func NewReaper(db *sql.DB, log zerolog.Logger) *Reaper {
	return &Reaper{db: db, interval: defaultReapInterval, log: log}
}

// NewReaperWithInterval builds a reaper with a custom sweep interval.
func NewReaperWithInterval(db *sql.DB, log zerolog.Logger, interval time.Duration) *Reaper {
	return &Reaper{db: db, interval: interval, log: log}
}

// Run blocks, sweeping on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", r.interval).Msg("reaper started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("reaper stopped")
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep runs one reap cycle. Exported so tests and the serve command can
// trigger a cycle without waiting for the ticker.
func (r *Reaper) Sweep() {
	var locks, records int64
	err := store.Transact(r.db, func(tx *sql.Tx) error {
		var err error
		if locks, err = store.DeleteExpiredLocksTx(tx); err != nil {
			return err
		}
		records, err = store.DeleteExpiredIdempotencyTx(tx)
		return err
	})
	if err != nil {
		r.log.Error().Err(err).Msg("reaper cycle failed")
		return
	}

	metrics.ReapedLocks.Add(float64(locks))
	metrics.ReapedIdempotencyRecords.Add(float64(records))
	if locks > 0 || records > 0 {
		r.log.Info().
			Int64("expired_locks", locks).
			Int64("expired_idempotency_records", records).
			Msg("reaper cycle")
	}
}
