// Package memory provides in-memory implementations of the storage
// interfaces. Useful for testing and development; production deployments
// use the postgres adapter.
package memory

import (
	"context"
	"sort"
	"sync"

	v1 "github.com/blackdoglabs/pulse/internal/api/v1"
	"github.com/blackdoglabs/pulse/internal/core/cursor"
	"github.com/blackdoglabs/pulse/internal/core/storage"
)

// Store is an in-memory storage.EventStore. Events are partitioned by
// tenant under a single RWMutex; reads copy events out so callers can
// never mutate stored state.
type Store struct {
	mu     sync.RWMutex
	events map[string][]*v1.Event // orgID -> events in insertion order
}

// NewStore creates an empty in-memory event store.
func NewStore() *Store {
	return &Store{
		events: make(map[string][]*v1.Event),
	}
}

func (s *Store) AppendBatch(ctx context.Context, orgID string, events []*v1.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Copy before taking the lock so the whole batch lands at once.
	batch := make([]*v1.Event, len(events))
	for i, evt := range events {
		cp := *evt
		batch[i] = &cp
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[orgID] = append(s.events[orgID], batch...)
	return nil
}

func (s *Store) ScanRange(ctx context.Context, orgID string, filter storage.ScanFilter, after *cursor.Position, limit int) ([]*v1.Event, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	var matched []*v1.Event
	for _, evt := range s.events[orgID] {
		if !matches(evt, filter) {
			continue
		}
		if after != nil && !sortsAfter(evt, after) {
			continue
		}
		cp := *evt
		matched = append(matched, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.Before(matched[j].Timestamp)
		}
		return matched[i].EventID < matched[j].EventID
	})

	hasMore := len(matched) > limit
	if hasMore {
		matched = matched[:limit]
	}
	return matched, hasMore, nil
}

func matches(evt *v1.Event, f storage.ScanFilter) bool {
	if f.UserID != "" && evt.UserID != f.UserID {
		return false
	}
	if f.EventType != "" && evt.EventType != f.EventType {
		return false
	}
	if f.Start != nil && evt.Timestamp.Before(*f.Start) {
		return false
	}
	if f.End != nil && !evt.Timestamp.Before(*f.End) {
		return false
	}
	return true
}

// sortsAfter reports whether evt is strictly after the cursor position in
// (timestamp, event_id) order.
func sortsAfter(evt *v1.Event, pos *cursor.Position) bool {
	if evt.Timestamp.After(pos.Timestamp) {
		return true
	}
	if evt.Timestamp.Equal(pos.Timestamp) {
		return evt.EventID > pos.EventID
	}
	return false
}

// Ledger is an in-memory storage.IdempotencyLedger. The mutex makes
// CheckAndReserve a true compare-and-set: exactly one concurrent caller
// per (org, key) observes a fresh reservation.
type Ledger struct {
	mu       sync.Mutex
	reserved map[ledgerKey]string // -> outcome summary
}

type ledgerKey struct {
	orgID string
	key   string
}

// NewLedger creates an empty in-memory idempotency ledger.
func NewLedger() *Ledger {
	return &Ledger{
		reserved: make(map[ledgerKey]string),
	}
}

func (l *Ledger) CheckAndReserve(ctx context.Context, orgID, key, outcome string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := ledgerKey{orgID: orgID, key: key}
	if _, exists := l.reserved[k]; exists {
		return storage.ErrDuplicateKey
	}
	l.reserved[k] = outcome
	return nil
}

func (l *Ledger) Release(ctx context.Context, orgID, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.reserved, ledgerKey{orgID: orgID, key: key})
	return nil
}
