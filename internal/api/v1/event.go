package v1

import (
	"fmt"
	"time"
)

// Batch size bounds enforced on every ingest request.
const (
	MinBatchSize = 1
	MaxBatchSize = 100
)

// Event is the atomic unit of the system. It is immutable once created:
// the ingestion path is the only writer, and the query and metrics paths
// only ever read it.
type Event struct {
	// EventID is assigned by the server on ingestion and is unique within
	// the owning tenant.
	EventID string `json:"event_id"`

	// OrgID is the owning tenant, taken from the authenticated credential.
	// It is never read from the request payload.
	OrgID string `json:"org_id"`

	// UserID identifies the end user that triggered the event.
	UserID string `json:"user_id"`

	// EventType is the domain-specific event name (e.g. "page_view").
	// It keys both metric counters and the optional property-shape lookup.
	EventType string `json:"event_type"`

	// Properties is the open-ended payload. Known event types are checked
	// against a declared shape; unknown types pass through opaque.
	Properties map[string]interface{} `json:"properties"`

	// Timestamp is when the event happened (client clock). Defaults to
	// IngestedAt when the draft carries none.
	Timestamp time.Time `json:"timestamp"`

	// IngestedAt is when the server accepted the event (server clock).
	IngestedAt time.Time `json:"ingested_at"`

	// IdempotencyKey records the key that guarded the batch this event
	// arrived in, if any. Not exposed in query responses.
	IdempotencyKey string `json:"-"`
}

// EventDraft is a single not-yet-persisted event inside an ingest batch.
type EventDraft struct {
	EventType  string                 `json:"event_type"`
	UserID     string                 `json:"user_id"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Timestamp  *time.Time             `json:"timestamp,omitempty"`
}

// Validate ensures the draft carries the required envelope fields.
func (d *EventDraft) Validate() error {
	if d.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if d.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	return nil
}

// IngestRequest is the POST /api/v1/events body.
type IngestRequest struct {
	Events []EventDraft `json:"events"`
}

// Validate enforces the batch size bounds and per-draft envelope rules.
// Errors name the offending draft index so clients can fix the batch.
func (r *IngestRequest) Validate() error {
	if len(r.Events) < MinBatchSize || len(r.Events) > MaxBatchSize {
		return fmt.Errorf("batch must contain %d-%d events, got %d", MinBatchSize, MaxBatchSize, len(r.Events))
	}
	for i := range r.Events {
		if err := r.Events[i].Validate(); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
	}
	return nil
}

// IngestResponse is returned after a whole batch is accepted.
// There is no partial-success shape: either every event in the batch was
// persisted or none were.
type IngestResponse struct {
	Accepted int    `json:"accepted"`
	OrgID    string `json:"org_id"`
}

// QueryResponse is one page of a cursor-paginated event scan.
// Cursor is null exactly when HasMore is false.
type QueryResponse struct {
	Data    []*Event `json:"data"`
	Cursor  *string  `json:"cursor"`
	HasMore bool     `json:"has_more"`
}

// DailyMetrics holds the counters for a single calendar day.
type DailyMetrics struct {
	Date    string           `json:"date"`
	Metrics map[string]int64 `json:"metrics"`
}

// MetricsSummaryResponse is the per-day breakdown plus range-wide totals.
type MetricsSummaryResponse struct {
	Data   []DailyMetrics   `json:"data"`
	Totals map[string]int64 `json:"totals"`
}
