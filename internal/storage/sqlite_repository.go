package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"remindd/internal/model"
)

// Second precision keeps the stored form fixed-width in UTC so SQL string
// comparison on trigger_at/claimed_at orders chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05Z07:00"

// DefaultStaleClaimAfter is how long a claim may sit without a terminal
// transition before a later pass may reclaim the row.
const DefaultStaleClaimAfter = 5 * time.Minute

type SQLiteRepository struct {
	db              *sql.DB
	staleClaimAfter time.Duration
}

func NewSQLiteRepository(db *sql.DB, staleClaimAfter time.Duration) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if staleClaimAfter <= 0 {
		staleClaimAfter = DefaultStaleClaimAfter
	}
	// One connection serializes writes on the backing file, same as a shared
	// session behind a lock. WAL keeps due-listing reads concurrent with the
	// claim transaction.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return &SQLiteRepository{db: db, staleClaimAfter: staleClaimAfter}, nil
}

func OpenSQLite(path string, staleClaimAfter time.Duration) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo, err := NewSQLiteRepository(db, staleClaimAfter)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Migrate() error {
	return MigrateUp(r.db)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Insert(ctx context.Context, in model.Reminder) error {
	if err := in.Validate(); err != nil {
		return err
	}
	repeatType, repeatValue := in.Recurrence.EncodeRepeat()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reminders (id, owner_id, channel_id, message, trigger_at, repeat_type, repeat_value, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.OwnerID, in.ChannelID, in.Message, mustTime(in.TriggerAt),
		repeatType, repeatValue, boolInt(in.Active), mustTime(in.CreatedAt),
	)
	return err
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (model.Reminder, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, channel_id, message, trigger_at, repeat_type, repeat_value, active, created_at
		FROM reminders WHERE id = ?`, id)
	item, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reminder{}, ErrNotFound
		}
		return model.Reminder{}, err
	}
	return item, nil
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string, includeInactive bool) ([]model.Reminder, error) {
	query := `
		SELECT id, owner_id, channel_id, message, trigger_at, repeat_type, repeat_value, active, created_at
		FROM reminders WHERE owner_id = ?`
	if !includeInactive {
		query += ` AND active = 1`
	}
	query += ` ORDER BY trigger_at ASC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

func (r *SQLiteRepository) ListDueActive(ctx context.Context, now time.Time) ([]model.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, channel_id, message, trigger_at, repeat_type, repeat_value, active, created_at
		FROM reminders
		WHERE active = 1 AND trigger_at <= ? AND (claimed_at IS NULL OR claimed_at <= ?)
		ORDER BY trigger_at ASC`,
		mustTime(now), mustTime(now.Add(-r.staleClaimAfter)),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

func (r *SQLiteRepository) TryClaim(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reminders SET claimed_at = ?
		WHERE id = ? AND active = 1 AND (claimed_at IS NULL OR claimed_at <= ?)`,
		mustTime(now), id, mustTime(now.Add(-r.staleClaimAfter)),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *SQLiteRepository) ReleaseClaim(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reminders SET claimed_at = NULL WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) Rearm(ctx context.Context, id string, next time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reminders SET trigger_at = ?, claimed_at = NULL WHERE id = ? AND active = 1`,
		mustTime(next), id,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reminders SET active = 0, claimed_at = NULL WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) DeactivateOwned(ctx context.Context, id, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reminders SET active = 0, claimed_at = NULL WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) Snooze(ctx context.Context, id string, until time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reminders SET trigger_at = ?, active = 1, claimed_at = NULL WHERE id = ?`,
		mustTime(until), id,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func mustTime(v time.Time) string {
	return v.UTC().Truncate(time.Second).Format(sqliteTimeLayout)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReminder(s scanner) (model.Reminder, error) {
	var out model.Reminder
	var trigger, created, repeatType, repeatValue string
	var active int
	if err := s.Scan(&out.ID, &out.OwnerID, &out.ChannelID, &out.Message,
		&trigger, &repeatType, &repeatValue, &active, &created); err != nil {
		return model.Reminder{}, err
	}
	triggerAt, err := time.Parse(sqliteTimeLayout, trigger)
	if err != nil {
		return model.Reminder{}, fmt.Errorf("parse trigger_at: %w", err)
	}
	createdAt, err := time.Parse(sqliteTimeLayout, created)
	if err != nil {
		return model.Reminder{}, fmt.Errorf("parse created_at: %w", err)
	}
	spec, err := model.ParseRepeat(repeatType, repeatValue)
	if err != nil {
		return model.Reminder{}, err
	}
	out.TriggerAt = triggerAt
	out.CreatedAt = createdAt
	out.Recurrence = spec
	out.Active = active == 1
	return out, nil
}

func collectReminders(rows *sql.Rows) ([]model.Reminder, error) {
	out := make([]model.Reminder, 0)
	for rows.Next() {
		item, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
