package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/blackdoglabs/pulse/internal/core/storage"
)

// Ledger implements storage.IdempotencyLedger on the same database as the
// event store. The unique constraint on (org_id, key) makes the reserve a
// single atomic compare-and-set under concurrent ingestion.
type Ledger struct {
	stmtReserve *sql.Stmt
	stmtRelease *sql.Stmt
}

// NewLedger prepares the ledger statements against an existing connection,
// normally Adapter.DB().
func NewLedger(db *sql.DB) (*Ledger, error) {
	stmtReserve, err := db.Prepare(queryReserveKey)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare reserveKey statement: %w", err)
	}

	stmtRelease, err := db.Prepare(queryReleaseKey)
	if err != nil {
		stmtReserve.Close()
		return nil, fmt.Errorf("failed to prepare releaseKey statement: %w", err)
	}

	return &Ledger{
		stmtReserve: stmtReserve,
		stmtRelease: stmtRelease,
	}, nil
}

// CheckAndReserve claims the key for this tenant. ON CONFLICT DO NOTHING
// returns no rows for an already-reserved key, which maps to
// storage.ErrDuplicateKey.
func (l *Ledger) CheckAndReserve(ctx context.Context, orgID, key, outcome string) error {
	var one int
	err := l.stmtReserve.QueryRowContext(ctx, orgID, key, outcome, time.Now().UTC()).Scan(&one)
	if err == sql.ErrNoRows {
		slog.Info("Duplicate idempotency key rejected", "org_id", orgID, "key", key)
		return storage.ErrDuplicateKey
	}
	if err != nil {
		return unavailable("reserve idempotency key", err)
	}
	return nil
}

// Release drops a reservation after its guarded append failed, so the
// client retry is not falsely rejected as a duplicate.
func (l *Ledger) Release(ctx context.Context, orgID, key string) error {
	if _, err := l.stmtRelease.ExecContext(ctx, orgID, key); err != nil {
		return unavailable("release idempotency key", err)
	}
	return nil
}

// Close releases the prepared statements. The shared *sql.DB is owned and
// closed by the event store adapter.
func (l *Ledger) Close() error {
	var firstErr error
	if err := l.stmtReserve.Close(); err != nil {
		firstErr = fmt.Errorf("failed to close reserveKey statement: %w", err)
	}
	if err := l.stmtRelease.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close releaseKey statement: %w", err)
	}
	return firstErr
}
