package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	v1 "github.com/blackdoglabs/pulse/internal/api/v1"
	"github.com/blackdoglabs/pulse/internal/core/storage/memory"
	"github.com/stretchr/testify/require"
)

func day(d int, hour int) time.Time {
	return time.Date(2026, 3, d, hour, 0, 0, 0, time.UTC)
}

func seedEvent(id, userID, eventType string, ts time.Time) *v1.Event {
	return &v1.Event{
		EventID:    id,
		OrgID:      "org1",
		UserID:     userID,
		EventType:  eventType,
		Timestamp:  ts,
		IngestedAt: ts,
	}
}

func summaryRange() (time.Time, time.Time) {
	return day(1, 0), day(8, 0)
}

func TestSummarize_DailyCountsAndTotals(t *testing.T) {
	store := memory.NewStore()
	events := []*v1.Event{
		seedEvent("e1", "u1", "page_view", day(1, 9)),
		seedEvent("e2", "u1", "page_view", day(1, 10)),
		seedEvent("e3", "u2", "click", day(1, 11)),
		seedEvent("e4", "u1", "page_view", day(2, 9)),
	}
	require.NoError(t, store.AppendBatch(context.Background(), "org1", events))

	start, end := summaryRange()
	summary, err := NewAggregator(store).Summarize(context.Background(), "org1", start, end, nil)
	require.NoError(t, err)

	require.Len(t, summary.Data, 2)
	require.Equal(t, "2026-03-01", summary.Data[0].Date)
	require.Equal(t, map[string]int64{
		"page_view_count": 2,
		"click_count":     1,
		"unique_users":    2,
	}, summary.Data[0].Metrics)

	require.Equal(t, "2026-03-02", summary.Data[1].Date)
	require.Equal(t, map[string]int64{
		"page_view_count": 1,
		"unique_users":    1,
	}, summary.Data[1].Metrics)

	require.Equal(t, map[string]int64{
		"page_view_count": 3,
		"click_count":     1,
		"unique_users":    2,
	}, summary.Totals)
}

func TestSummarize_TotalUniqueUsersIsNotSumOfDailies(t *testing.T) {
	store := memory.NewStore()
	// The same user active on three separate days.
	events := []*v1.Event{
		seedEvent("e1", "u1", "login", day(1, 9)),
		seedEvent("e2", "u1", "login", day(2, 9)),
		seedEvent("e3", "u1", "login", day(3, 9)),
	}
	require.NoError(t, store.AppendBatch(context.Background(), "org1", events))

	start, end := summaryRange()
	summary, err := NewAggregator(store).Summarize(context.Background(), "org1", start, end, nil)
	require.NoError(t, err)

	require.Len(t, summary.Data, 3)
	for _, d := range summary.Data {
		require.EqualValues(t, 1, d.Metrics["unique_users"])
	}
	require.EqualValues(t, 1, summary.Totals["unique_users"])
}

func TestSummarize_OmitsEmptyDays(t *testing.T) {
	store := memory.NewStore()
	events := []*v1.Event{
		seedEvent("e1", "u1", "page_view", day(1, 9)),
		seedEvent("e2", "u1", "page_view", day(5, 9)),
	}
	require.NoError(t, store.AppendBatch(context.Background(), "org1", events))

	start, end := summaryRange()
	summary, err := NewAggregator(store).Summarize(context.Background(), "org1", start, end, nil)
	require.NoError(t, err)

	require.Len(t, summary.Data, 2)
	require.Equal(t, "2026-03-01", summary.Data[0].Date)
	require.Equal(t, "2026-03-05", summary.Data[1].Date)
}

func TestSummarize_MetricNameSelection(t *testing.T) {
	store := memory.NewStore()
	events := []*v1.Event{
		seedEvent("e1", "u1", "page_view", day(1, 9)),
		seedEvent("e2", "u2", "click", day(1, 10)),
	}
	require.NoError(t, store.AppendBatch(context.Background(), "org1", events))

	start, end := summaryRange()
	names := []string{"click_count", "signup_count"}
	summary, err := NewAggregator(store).Summarize(context.Background(), "org1", start, end, names)
	require.NoError(t, err)

	// Only the requested counters appear; the never-observed one is zero.
	require.Equal(t, map[string]int64{
		"click_count":  1,
		"signup_count": 0,
	}, summary.Totals)
	require.NotContains(t, summary.Totals, "page_view_count")
	require.NotContains(t, summary.Totals, UniqueUsersMetric)
}

func TestSummarize_RangeBoundsAreRespected(t *testing.T) {
	store := memory.NewStore()
	events := []*v1.Event{
		seedEvent("before", "u1", "page_view", day(1, 0).Add(-time.Second)),
		seedEvent("inside", "u1", "page_view", day(3, 12)),
		seedEvent("at-end", "u1", "page_view", day(8, 0)),
	}
	require.NoError(t, store.AppendBatch(context.Background(), "org1", events))

	start, end := summaryRange()
	summary, err := NewAggregator(store).Summarize(context.Background(), "org1", start, end, nil)
	require.NoError(t, err)

	require.EqualValues(t, 1, summary.Totals["page_view_count"])
	require.Len(t, summary.Data, 1)
	require.Equal(t, "2026-03-03", summary.Data[0].Date)
}

func TestSummarize_EmptyRange(t *testing.T) {
	store := memory.NewStore()
	start, end := summaryRange()

	summary, err := NewAggregator(store).Summarize(context.Background(), "org1", start, end, nil)
	require.NoError(t, err)
	require.Empty(t, summary.Data)
	require.Equal(t, map[string]int64{UniqueUsersMetric: 0}, summary.Totals)
}

func TestSummarize_WalksPastInternalPageSize(t *testing.T) {
	store := memory.NewStore()
	base := day(1, 0)

	n := scanPageSize + 50
	events := make([]*v1.Event, n)
	for i := range events {
		events[i] = seedEvent(
			fmt.Sprintf("evt-%05d", i),
			fmt.Sprintf("u%d", i%7),
			"page_view",
			base.Add(time.Duration(i)*time.Second),
		)
	}
	require.NoError(t, store.AppendBatch(context.Background(), "org1", events))

	start, end := summaryRange()
	summary, err := NewAggregator(store).Summarize(context.Background(), "org1", start, end, nil)
	require.NoError(t, err)

	require.EqualValues(t, n, summary.Totals["page_view_count"])
	require.EqualValues(t, 7, summary.Totals["unique_users"])
}

func TestSummarize_TenantIsolation(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.AppendBatch(context.Background(), "org1",
		[]*v1.Event{seedEvent("e1", "u1", "page_view", day(1, 9))}))

	other := seedEvent("e2", "u2", "page_view", day(1, 9))
	other.OrgID = "org2"
	require.NoError(t, store.AppendBatch(context.Background(), "org2", []*v1.Event{other}))

	start, end := summaryRange()
	summary, err := NewAggregator(store).Summarize(context.Background(), "org2", start, end, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, summary.Totals["page_view_count"])
	require.EqualValues(t, 1, summary.Totals["unique_users"])
}
