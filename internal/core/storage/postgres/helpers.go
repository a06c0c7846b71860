package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	v1 "github.com/blackdoglabs/pulse/internal/api/v1"
)

// marshalProperties serializes an event's property map for the JSONB
// column. Nil maps produce an empty object rather than SQL NULL so the
// column stays non-nullable.
func marshalProperties(evt *v1.Event) ([]byte, error) {
	props := evt.Properties
	if props == nil {
		props = map[string]interface{}{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}
	return raw, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanEventRow scans a database row into an Event struct.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanEventRow(row scanner) (*v1.Event, error) {
	var evt v1.Event
	var propsJSON []byte
	var idemKey sql.NullString

	err := row.Scan(
		&evt.EventID,
		&evt.OrgID,
		&evt.UserID,
		&evt.EventType,
		&propsJSON,
		&evt.Timestamp,
		&evt.IngestedAt,
		&idemKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}

	if len(propsJSON) > 0 {
		if err := json.Unmarshal(propsJSON, &evt.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
		}
	}
	if idemKey.Valid {
		evt.IdempotencyKey = idemKey.String
	}

	evt.Timestamp = evt.Timestamp.UTC()
	evt.IngestedAt = evt.IngestedAt.UTC()
	return &evt, nil
}
