// Package redis provides a Redis-backed idempotency ledger. It trades the
// postgres ledger's shared-transaction locality for cheap TTL-based
// expiry: reservations age out on their own after the retention window
// instead of needing out-of-band garbage collection.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blackdoglabs/pulse/internal/core/storage"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL keeps reservations well past typical client retry windows.
const DefaultTTL = 48 * time.Hour

// Ledger implements storage.IdempotencyLedger using SET NX, which is an
// atomic compare-and-set on the Redis side: exactly one concurrent caller
// per key wins the reservation.
type Ledger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLedger connects to Redis and verifies the connection. A ttl of zero
// falls back to DefaultTTL; the retention window must outlive client
// retries, so very short TTLs are rejected.
func NewLedger(addr string, db int, ttl time.Duration) (*Ledger, error) {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if ttl < 24*time.Hour {
		return nil, fmt.Errorf("idempotency ttl %s is below the 24h retention floor", ttl)
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	slog.Info("[Redis] Idempotency ledger initialized", "addr", addr, "ttl", ttl)
	return &Ledger{client: client, ttl: ttl}, nil
}

func ledgerKey(orgID, key string) string {
	return fmt.Sprintf("pulse:idem:%s:%s", orgID, key)
}

// CheckAndReserve claims the key with SET NX. The stored value is the
// outcome summary of the guarded batch.
func (l *Ledger) CheckAndReserve(ctx context.Context, orgID, key, outcome string) error {
	ok, err := l.client.SetNX(ctx, ledgerKey(orgID, key), outcome, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("reserve idempotency key: %w", storage.ErrUnavailable)
	}
	if !ok {
		slog.Info("Duplicate idempotency key rejected", "org_id", orgID, "key", key)
		return storage.ErrDuplicateKey
	}
	return nil
}

// Release drops a reservation whose guarded append failed.
func (l *Ledger) Release(ctx context.Context, orgID, key string) error {
	if err := l.client.Del(ctx, ledgerKey(orgID, key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", storage.ErrUnavailable)
	}
	return nil
}

// Close shuts down the Redis client.
func (l *Ledger) Close() error {
	return l.client.Close()
}
