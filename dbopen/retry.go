package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Busy retries: attempts in total, and the wait before the first retry,
// doubled on each retry after it.
const (
	busyAttempts = 3
	busyBackoff  = 100 * time.Millisecond
)

var busyMarkers = []string{
	"SQLITE_BUSY",
	"database is locked",
	"database table is locked",
}

// IsBusy reports whether err means another connection holds the lock.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range busyMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// RunTx runs fn in a transaction, retrying the whole transaction while the
// database is busy. fn must be safe to run more than once.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	_, err := onBusy(ctx, "tx", func() (struct{}, error) {
		return struct{}{}, runOnce(ctx, db, fn)
	})
	return err
}

func runOnce(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}

// Exec runs a single statement, retrying while the database is busy.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	return onBusy(ctx, "exec", func() (sql.Result, error) {
		return db.ExecContext(ctx, query, args...)
	})
}

// onBusy calls fn until it succeeds, fails with a non-busy error, or runs
// out of attempts.
func onBusy[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	wait := busyBackoff
	for attempt := 1; ; attempt++ {
		v, err := fn()
		if err == nil || !IsBusy(err) {
			return v, err
		}
		if attempt == busyAttempts {
			return v, fmt.Errorf("dbopen: %s: still busy after %d attempts: %w", op, attempt, err)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return v, fmt.Errorf("dbopen: %s: cancelled while busy: %w", op, ctx.Err())
		case <-t.C:
		}
		wait *= 2
	}
}
