package storage

import (
	"context"
	"errors"
	"time"

	"remindd/internal/model"
)

var ErrNotFound = errors.New("storage: not found")

// Repository is the store gateway contract the core depends on. TryClaim is
// the single synchronization point of the dispatch path: concurrent callers
// must observe linearizable claim semantics, so exactly one of them wins a
// given due-and-active reminder.
type Repository interface {
	Insert(ctx context.Context, in model.Reminder) error
	Get(ctx context.Context, id string) (model.Reminder, error)
	ListByOwner(ctx context.Context, ownerID string, includeInactive bool) ([]model.Reminder, error)

	// ListDueActive returns active reminders with trigger_at <= now that are
	// not currently claimed (or whose claim has gone stale).
	ListDueActive(ctx context.Context, now time.Time) ([]model.Reminder, error)

	// TryClaim atomically marks the reminder as being handled by this pass.
	// It returns false when the row is inactive, missing, or already claimed
	// by a pass that has not yet gone stale.
	TryClaim(ctx context.Context, id string, now time.Time) (bool, error)

	// ReleaseClaim undoes a claim whose notification failed, leaving the
	// reminder due for the next pass.
	ReleaseClaim(ctx context.Context, id string) error

	// Rearm moves a recurring reminder to its next occurrence and clears the
	// claim, leaving it active.
	Rearm(ctx context.Context, id string, next time.Time) error

	// Deactivate tombstones the reminder. Records are never physically
	// deleted by the core.
	Deactivate(ctx context.Context, id string) error

	// DeactivateOwned is Deactivate with an ownership check, for the
	// user-facing deletion path.
	DeactivateOwned(ctx context.Context, id, ownerID string) error

	// Snooze re-arms the reminder at the given instant and re-activates it.
	Snooze(ctx context.Context, id string, until time.Time) error
}
