// Package metrics computes per-day and range-total counters over a
// tenant's events at read time. There is no pre-aggregate store: every
// summary is derived from the event store, which keeps ingestion simple
// and the numbers trivially consistent with the raw events.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	v1 "github.com/blackdoglabs/pulse/internal/api/v1"
	"github.com/blackdoglabs/pulse/internal/core/cursor"
	"github.com/blackdoglabs/pulse/internal/core/storage"
)

// UniqueUsersMetric is the distinguished distinct-user counter; every
// other counter is "{event_type}_count".
const UniqueUsersMetric = "unique_users"

// scanPageSize is the internal page size used when walking the range.
const scanPageSize = 1000

// Aggregator derives metric summaries from the event store.
type Aggregator struct {
	store storage.EventStore
}

func NewAggregator(store storage.EventStore) *Aggregator {
	if store == nil {
		panic("metrics: store must not be nil")
	}
	return &Aggregator{store: store}
}

// CounterName returns the metric name derived from an event type.
func CounterName(eventType string) string {
	return eventType + "_count"
}

// Summarize walks every event of the tenant whose timestamp falls in
// [start, end) and folds it into daily counters plus range totals.
//
// unique_users in totals is the cardinality of the distinct user set over
// the whole range — never the sum of the per-day distinct counts, which
// would double-count users returning on multiple days.
//
// metricNames, when non-empty, selects which counters appear in the
// output; names that match no observed counter yield zero rather than an
// error. Days with no events are omitted from the daily breakdown.
func (a *Aggregator) Summarize(ctx context.Context, orgID string, start, end time.Time, metricNames []string) (*v1.MetricsSummaryResponse, error) {
	filter := storage.ScanFilter{Start: &start, End: &end}

	dayTypeCounts := make(map[string]map[string]int64)      // day -> event_type -> count
	dayUsers := make(map[string]map[string]struct{})        // day -> distinct user_ids
	totalTypeCounts := make(map[string]int64)               // event_type -> count
	totalUsers := make(map[string]struct{})                 // distinct user_ids, whole range

	var after *cursor.Position
	for {
		events, hasMore, err := a.store.ScanRange(ctx, orgID, filter, after, scanPageSize)
		if err != nil {
			return nil, fmt.Errorf("summarize scan: %w", err)
		}

		for _, evt := range events {
			day := evt.Timestamp.UTC().Format(v1.DateOnly)

			if dayTypeCounts[day] == nil {
				dayTypeCounts[day] = make(map[string]int64)
				dayUsers[day] = make(map[string]struct{})
			}
			dayTypeCounts[day][evt.EventType]++
			dayUsers[day][evt.UserID] = struct{}{}

			totalTypeCounts[evt.EventType]++
			totalUsers[evt.UserID] = struct{}{}
		}

		if !hasMore || len(events) == 0 {
			break
		}
		last := events[len(events)-1]
		after = &cursor.Position{Timestamp: last.Timestamp, EventID: last.EventID}
	}

	include := newNameFilter(metricNames)

	days := make([]string, 0, len(dayTypeCounts))
	for day := range dayTypeCounts {
		days = append(days, day)
	}
	sort.Strings(days)

	daily := make([]v1.DailyMetrics, 0, len(days))
	for _, day := range days {
		m := make(map[string]int64)
		for eventType, count := range dayTypeCounts[day] {
			include.put(m, CounterName(eventType), count)
		}
		include.put(m, UniqueUsersMetric, int64(len(dayUsers[day])))
		include.fillZeroes(m)
		daily = append(daily, v1.DailyMetrics{Date: day, Metrics: m})
	}

	totals := make(map[string]int64)
	for eventType, count := range totalTypeCounts {
		include.put(totals, CounterName(eventType), count)
	}
	include.put(totals, UniqueUsersMetric, int64(len(totalUsers)))
	include.fillZeroes(totals)

	return &v1.MetricsSummaryResponse{Data: daily, Totals: totals}, nil
}

// nameFilter applies the optional metric_names selection. With no names
// everything passes; with names, only the named counters appear, and
// requested names nobody emitted are zero-filled.
type nameFilter struct {
	names map[string]bool // nil means "all"
}

func newNameFilter(names []string) nameFilter {
	if len(names) == 0 {
		return nameFilter{}
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		if n != "" {
			set[n] = true
		}
	}
	return nameFilter{names: set}
}

func (f nameFilter) put(dst map[string]int64, name string, value int64) {
	if f.names == nil || f.names[name] {
		dst[name] = value
	}
}

func (f nameFilter) fillZeroes(dst map[string]int64) {
	for name := range f.names {
		if _, ok := dst[name]; !ok {
			dst[name] = 0
		}
	}
}
