package postgres

import (
	"fmt"
	"strings"

	"github.com/blackdoglabs/pulse/internal/core/cursor"
	"github.com/blackdoglabs/pulse/internal/core/storage"
)

// SQL for event storage and the idempotency ledger.

const (
	// queryInsertEvent persists one event of a batch. Executed inside a
	// transaction so the batch is all-or-nothing.
	queryInsertEvent = `
		INSERT INTO events (
			event_id, org_id, user_id, event_type,
			properties, occurred_at, ingested_at, idempotency_key
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	// queryReserveKey claims an idempotency key. ON CONFLICT DO NOTHING
	// returns no rows (sql.ErrNoRows) when the key is already reserved,
	// which the ledger maps to storage.ErrDuplicateKey. The database
	// unique constraint makes this a true compare-and-set under
	// concurrent ingestion.
	queryReserveKey = `
		INSERT INTO idempotency_keys (org_id, key, outcome, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (org_id, key) DO NOTHING
		RETURNING 1
	`

	// queryReleaseKey drops a reservation whose guarded append failed.
	queryReleaseKey = `
		DELETE FROM idempotency_keys WHERE org_id = $1 AND key = $2
	`
)

const scanColumns = `event_id, org_id, user_id, event_type, properties, occurred_at, ingested_at, idempotency_key`

// buildScanQuery assembles the range-scan SQL for one tenant. The tenant
// predicate is always first and always bound from the authenticated
// context, never from the cursor. The keyset predicate uses a row
// comparison on (occurred_at, event_id), the same total order the result
// is sorted by, so resumed scans are gap-free and duplicate-free.
//
// The limit passed in should already include the one-row has_more probe.
func buildScanQuery(orgID string, filter storage.ScanFilter, after *cursor.Position, limit int) (string, []interface{}) {
	var sb strings.Builder
	args := make([]interface{}, 0, 8)

	sb.WriteString("SELECT ")
	sb.WriteString(scanColumns)
	sb.WriteString(" FROM events WHERE org_id = $1")
	args = append(args, orgID)

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		fmt.Fprintf(&sb, " AND user_id = $%d", len(args))
	}
	if filter.EventType != "" {
		args = append(args, filter.EventType)
		fmt.Fprintf(&sb, " AND event_type = $%d", len(args))
	}
	if filter.Start != nil {
		args = append(args, *filter.Start)
		fmt.Fprintf(&sb, " AND occurred_at >= $%d", len(args))
	}
	if filter.End != nil {
		args = append(args, *filter.End)
		fmt.Fprintf(&sb, " AND occurred_at < $%d", len(args))
	}
	if after != nil {
		args = append(args, after.Timestamp, after.EventID)
		fmt.Fprintf(&sb, " AND (occurred_at, event_id) > ($%d, $%d)", len(args)-1, len(args))
	}

	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY occurred_at ASC, event_id ASC LIMIT $%d", len(args))

	return sb.String(), args
}
