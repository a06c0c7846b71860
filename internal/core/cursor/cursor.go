// Package cursor encodes and decodes opaque pagination tokens.
//
// A cursor captures the (timestamp, event_id) position of the last event
// returned in a page. Scans resume strictly after that position, so pages
// never duplicate or skip events even when new events land mid-pagination.
// Tokens are structurally checked on decode but not signed: the tenant
// filter is re-applied server-side on every scan, so a forged cursor can
// only move a caller around their own data.
package cursor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidCursor is returned for any token that does not decode to a
// well-formed position. Callers must restart pagination from the beginning;
// decoding never silently yields a wrong position.
var ErrInvalidCursor = errors.New("invalid cursor")

const version = "v1"

// Position is the resume point of an ordered scan.
type Position struct {
	Timestamp time.Time
	EventID   string
}

// payload is the serialized token body. The version tag lets the format
// evolve without misreading old tokens as garbage positions.
type payload struct {
	V  string `json:"v"`
	TS string `json:"ts"`
	ID string `json:"id"`
}

// Encode builds an opaque token for the given position.
func Encode(p Position) string {
	raw, _ := json.Marshal(payload{
		V:  version,
		TS: p.Timestamp.UTC().Format(time.RFC3339Nano),
		ID: p.EventID,
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode parses a token back into a position. Any structural defect
// (bad base64, unknown fields, missing fields, unparseable timestamp,
// unknown version) fails with ErrInvalidCursor.
func Decode(token string) (Position, error) {
	if token == "" {
		return Position{}, ErrInvalidCursor
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Position{}, ErrInvalidCursor
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var p payload
	if err := dec.Decode(&p); err != nil {
		return Position{}, ErrInvalidCursor
	}
	if dec.More() {
		return Position{}, ErrInvalidCursor
	}
	if p.V != version || p.ID == "" || p.TS == "" {
		return Position{}, ErrInvalidCursor
	}

	ts, err := time.Parse(time.RFC3339Nano, p.TS)
	if err != nil {
		return Position{}, ErrInvalidCursor
	}

	return Position{Timestamp: ts.UTC(), EventID: p.ID}, nil
}
