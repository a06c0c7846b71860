package storage

import (
	"context"
	"errors"
	"time"

	v1 "github.com/blackdoglabs/pulse/internal/api/v1"
	"github.com/blackdoglabs/pulse/internal/core/cursor"
)

// ErrDuplicateKey is returned by CheckAndReserve when the (tenant,
// idempotency key) pair has already guarded a batch.
var ErrDuplicateKey = errors.New("idempotency key already used")

// ErrUnavailable wraps transient backend failures. Requests mapping to it
// are safe to retry wholesale: appends are all-or-nothing and key-guarded.
var ErrUnavailable = errors.New("store unavailable")

// ScanFilter narrows a range scan. Zero values mean "no constraint".
// Start/End bound the event timestamp; Start is inclusive, End exclusive,
// matching half-open window conventions.
type ScanFilter struct {
	UserID    string
	EventType string
	Start     *time.Time
	End       *time.Time
}

// EventStore is the ordered, append-only event collection, keyed by tenant.
//
// Every method takes the tenant explicitly; implementations must never
// return another tenant's rows regardless of filter or cursor content.
type EventStore interface {
	// AppendBatch persists fully-materialized events atomically. Either
	// every event in the slice becomes visible or none do, including on
	// context cancellation.
	AppendBatch(ctx context.Context, orgID string, events []*v1.Event) error

	// ScanRange returns up to limit events matching the filter in
	// (timestamp ASC, event_id ASC) order, strictly after the cursor
	// position when one is given. The second return reports whether at
	// least one more matching event exists past the page; implementations
	// must probe for it rather than infer it from a full page.
	ScanRange(ctx context.Context, orgID string, filter ScanFilter, after *cursor.Position, limit int) ([]*v1.Event, bool, error)
}

// IdempotencyLedger maps (tenant, idempotency key) to a prior outcome and
// enforces at-most-once ingestion per key.
type IdempotencyLedger interface {
	// CheckAndReserve atomically claims the key. Exactly one of any set of
	// concurrent callers gets nil (Fresh); the rest get ErrDuplicateKey.
	// The outcome summary is recorded alongside the reservation.
	CheckAndReserve(ctx context.Context, orgID, key, outcome string) error

	// Release undoes a reservation whose guarded append failed, so the
	// client's retry is not rejected as a duplicate.
	Release(ctx context.Context, orgID, key string) error
}
