package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PGStore persists usage in the usage table. Rows are locked with
// SELECT ... FOR UPDATE so concurrent consumers cannot overspend.
type PGStore struct {
	DB *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{DB: db}
}

func (s *PGStore) EnsurePeriod(ctx context.Context, userID string, limit int, now time.Time) (Usage, error) {
	var out Usage
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		u, err := lockAndEnsure(ctx, tx, userID, limit, now)
		out = u
		return err
	})
	return out, err
}

func (s *PGStore) Consume(ctx context.Context, userID string, n, limit int, now time.Time) (Usage, error) {
	var out Usage
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		u, err := lockAndEnsure(ctx, tx, userID, limit, now)
		if err != nil {
			return err
		}
		out = u
		if n <= 0 {
			return nil
		}
		if u.Used+n > u.Limit {
			return ErrLimitReached
		}
		u.Used += n
		if _, err := tx.ExecContext(ctx, `UPDATE usage SET used = $1 WHERE user_id = $2`, u.Used, userID); err != nil {
			return fmt.Errorf("usage: update used: %w", err)
		}
		out = u
		return nil
	})
	return out, err
}

func (s *PGStore) Reset(ctx context.Context, userID string, limit int, now time.Time) (Usage, error) {
	u := freshUsage(limit, now)
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO usage (user_id, limit_amount, used, resets_at)
VALUES ($1, $2, 0, $3)
ON CONFLICT (user_id) DO UPDATE SET limit_amount = EXCLUDED.limit_amount, used = 0, resets_at = EXCLUDED.resets_at`,
		userID, u.Limit, u.ResetsAt)
	if err != nil {
		return Usage{}, fmt.Errorf("usage: reset: %w", err)
	}
	return u, nil
}

func (s *PGStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("usage: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func lockAndEnsure(ctx context.Context, tx *sql.Tx, userID string, limit int, now time.Time) (Usage, error) {
	var u Usage
	err := tx.QueryRowContext(ctx, `
SELECT limit_amount, used, resets_at FROM usage WHERE user_id = $1 FOR UPDATE`, userID).
		Scan(&u.Limit, &u.Used, &u.ResetsAt)
	if errors.Is(err, sql.ErrNoRows) {
		u = freshUsage(limit, now)
		if _, err := tx.ExecContext(ctx, `
INSERT INTO usage (user_id, limit_amount, used, resets_at) VALUES ($1, $2, $3, $4)`,
			userID, u.Limit, u.Used, u.ResetsAt); err != nil {
			return Usage{}, fmt.Errorf("usage: insert: %w", err)
		}
		return u, nil
	}
	if err != nil {
		return Usage{}, fmt.Errorf("usage: select: %w", err)
	}

	if u.expired(now) {
		u = freshUsage(limit, now)
		if _, err := tx.ExecContext(ctx, `UPDATE usage SET limit_amount = $1, used = 0, resets_at = $2 WHERE user_id = $3`,
			u.Limit, u.ResetsAt, userID); err != nil {
			return Usage{}, fmt.Errorf("usage: roll window: %w", err)
		}
	}
	u.Limit = limit
	return u, nil
}
