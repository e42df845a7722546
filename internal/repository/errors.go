package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrStoreUnavailable marks transient store failures: connectivity loss,
// connection-acquisition timeout, pool exhaustion. Safe for the caller to
// retry with backoff; the server itself never retries a request.
var ErrStoreUnavailable = errors.New("store unavailable")

// ValidationError reports a malformed save submission. The store is never
// touched when one is returned.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// StoreIntegrityError reports an unexpected constraint or shape violation,
// anything other than the run_id conflict the merge-upsert handles.
// Surfaced as a 500 and logged with full context; not retried.
type StoreIntegrityError struct {
	Constraint string
	Err        error
}

func (e *StoreIntegrityError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("store integrity violation on %s: %v", e.Constraint, e.Err)
	}
	return fmt.Sprintf("store integrity violation: %v", e.Err)
}

func (e *StoreIntegrityError) Unwrap() error { return e.Err }

// classifyPostgres maps lib/pq failures onto the error taxonomy.
// Class 08 is connection exceptions, 53 insufficient resources, 57 operator
// intervention (e.g. admin shutdown); all three are transient. Class 23 is
// integrity constraint violations.
func classifyPostgres(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		case "23":
			return &StoreIntegrityError{Constraint: pqErr.Constraint, Err: err}
		}
		return err
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

// classifySQLite maps modernc.org/sqlite failures onto the error taxonomy.
func classifySQLite(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN:
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return &StoreIntegrityError{Err: err}
		}
		return err
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

// isTransient catches driver-agnostic connectivity failures: dead
// connections, network faults, and deadline/cancellation from the pool's
// acquisition wait.
func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
