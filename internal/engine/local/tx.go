package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 50 * time.Millisecond
)

// transaction runs fn inside a transaction, retrying when sqlite reports the
// database busy.
func (e *Engine) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	return withRetry(ctx, defaultRetryAttempts, defaultRetryBackoff, func() error {
		tx, err := e.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

func withRetry(ctx context.Context, maxAttempts int, baseBackoff time.Duration, fn func() error) error {
	attempt := 0
	backoff := baseBackoff

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := fn()
		if err == nil {
			return nil
		}

		attempt++
		if !isBusyError(err) || attempt >= maxAttempts {
			return err
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	message := strings.ToLower(err.Error())
	return strings.Contains(message, "database is locked") ||
		strings.Contains(message, "database is busy") ||
		strings.Contains(message, "sqlite_busy")
}

// nextID allocates the next per-account id in table, never lower than floor.
func nextID(ctx context.Context, tx *sql.Tx, table string, acc, floor int) (int, error) {
	var last sql.NullInt64
	query := fmt.Sprintf("SELECT MAX(id) FROM %s WHERE account_id = ?", table)
	if err := tx.QueryRowContext(ctx, query, acc).Scan(&last); err != nil {
		return 0, fmt.Errorf("allocate %s id: %w", table, err)
	}
	if !last.Valid || int(last.Int64) < floor {
		return floor + 1, nil
	}
	return int(last.Int64) + 1, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
