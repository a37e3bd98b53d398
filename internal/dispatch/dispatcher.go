// Package dispatch drives the fire-and-rearm cycle: a single polling loop
// claims due reminders and fans notification work out across a bounded pool.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"remindd/internal/model"
)

const (
	DefaultInterval    = 30 * time.Second
	DefaultConcurrency = 3
)

// Store is the slice of the repository contract the dispatcher needs.
type Store interface {
	ListDueActive(ctx context.Context, now time.Time) ([]model.Reminder, error)
	TryClaim(ctx context.Context, id string, now time.Time) (bool, error)
	ReleaseClaim(ctx context.Context, id string) error
	Rearm(ctx context.Context, id string, next time.Time) error
	Deactivate(ctx context.Context, id string) error
}

// Notifier delivers the user-visible alert. Failures are reported, never
// retried within the same pass.
type Notifier interface {
	Notify(ctx context.Context, r model.Reminder) error
}

type Config struct {
	Interval    time.Duration
	Concurrency int64
	Location    *time.Location
	Health      *Health
}

type Dispatcher struct {
	store    Store
	notifier Notifier
	clk      clock.Clock
	log      *zap.Logger
	loc      *time.Location
	interval time.Duration
	sem      *semaphore.Weighted
	health   *Health
}

func New(store Store, notifier Notifier, clk clock.Clock, log *zap.Logger, cfg Config) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Health == nil {
		cfg.Health = NewHealth(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		store:    store,
		notifier: notifier,
		clk:      clk,
		log:      log,
		loc:      cfg.Location,
		interval: cfg.Interval,
		sem:      semaphore.NewWeighted(cfg.Concurrency),
		health:   cfg.Health,
	}
}

// Run polls until ctx is cancelled. The first pass happens immediately so
// reminders that matured while the process was down fire on startup. The
// in-flight batch is allowed to finish before Run returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("dispatcher started", zap.Duration("interval", d.interval))
	d.runPass(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatcher stopped")
			return nil
		case <-ticker.C:
			d.runPass(ctx)
		}
	}
}

// runPass claims every due reminder and notifies under the concurrency
// limit. The pass is a barrier: it returns only after all spawned
// notifications have reached a terminal transition.
func (d *Dispatcher) runPass(ctx context.Context) {
	now := d.clk.Now().In(d.loc)
	due, err := d.store.ListDueActive(ctx, now)
	if err != nil {
		d.health.MarkFailure()
		d.log.Error("listing due reminders failed", zap.Error(err))
		return
	}
	d.health.MarkSuccess()
	if len(due) == 0 {
		return
	}
	d.log.Info("due reminders found", zap.Int("count", len(due)))

	var wg sync.WaitGroup
	for _, rem := range due {
		claimed, err := d.store.TryClaim(ctx, rem.ID, now)
		if err != nil {
			d.health.MarkFailure()
			d.log.Error("claim failed", zap.String("id", rem.ID), zap.Error(err))
			continue
		}
		if !claimed {
			// Another pass owns it, or it went inactive since listing.
			continue
		}

		if err := d.sem.Acquire(ctx, 1); err != nil {
			// Shutting down mid-pass: hand the claim back so the reminder
			// stays due for the next process.
			d.releaseClaim(rem.ID)
			break
		}
		wg.Add(1)
		go func(rem model.Reminder) {
			defer wg.Done()
			defer d.sem.Release(1)
			d.fire(ctx, rem)
		}(rem)
	}
	wg.Wait()
}

func (d *Dispatcher) fire(ctx context.Context, rem model.Reminder) {
	if err := d.notifier.Notify(ctx, rem); err != nil {
		d.log.Warn("notify failed; will retry next pass",
			zap.String("id", rem.ID), zap.Error(err))
		d.releaseClaim(rem.ID)
		return
	}
	d.log.Info("reminder sent",
		zap.String("id", rem.ID),
		zap.String("owner", rem.OwnerID))
	d.settle(ctx, rem)
}

// settle persists the terminal transition after a successful notification.
// Claim and persistence form one unit: the post-notify writes run on a
// detached context so shutdown cannot leave a notified reminder due.
func (d *Dispatcher) settle(ctx context.Context, rem model.Reminder) {
	ctx = context.WithoutCancel(ctx)

	if rem.Recurrence.IsNone() {
		if err := d.store.Deactivate(ctx, rem.ID); err != nil {
			d.health.MarkFailure()
			d.log.Error("deactivating one-shot reminder failed; claim left for reconciliation",
				zap.String("id", rem.ID), zap.Error(err))
		}
		return
	}

	next, err := rem.Recurrence.NextOccurrence(rem.TriggerAt.In(d.loc))
	if err != nil {
		// Invariant violation in the stored spec. Contain it to this
		// reminder: log with full context and tombstone the row.
		d.log.Error("next occurrence computation failed; deactivating",
			zap.String("id", rem.ID),
			zap.String("recurrence", string(rem.Recurrence.Kind)),
			zap.Time("last_fired", rem.TriggerAt),
			zap.Error(err))
		d.deactivateQuiet(ctx, rem.ID)
		return
	}

	if err := d.store.Rearm(ctx, rem.ID, next); err != nil {
		// Lossy-but-safe: a missed future recurrence beats a duplicate
		// immediate re-notification.
		d.health.MarkFailure()
		d.log.Error("rearm failed; deactivating to prevent double notification",
			zap.String("id", rem.ID), zap.Error(err))
		d.deactivateQuiet(ctx, rem.ID)
		return
	}
	d.log.Info("reminder rearmed",
		zap.String("id", rem.ID),
		zap.Time("next", next))
}

func (d *Dispatcher) releaseClaim(id string) {
	if err := d.store.ReleaseClaim(context.Background(), id); err != nil {
		d.log.Error("releasing claim failed; stale-claim window will recover it",
			zap.String("id", id), zap.Error(err))
	}
}

func (d *Dispatcher) deactivateQuiet(ctx context.Context, id string) {
	if err := d.store.Deactivate(ctx, id); err != nil {
		d.log.Error("deactivate failed; claim left for reconciliation",
			zap.String("id", id), zap.Error(err))
	}
}
