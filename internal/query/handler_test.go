package query

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	v1 "github.com/blackdoglabs/pulse/internal/api/v1"
	"github.com/blackdoglabs/pulse/internal/auth"
	httperr "github.com/blackdoglabs/pulse/internal/core/errors"
	"github.com/blackdoglabs/pulse/internal/core/storage/memory"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, store *memory.Store, orgID string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		id := auth.Identity{TenantID: orgID, UserID: "svc"}
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	})
	NewService(store).RegisterRoutes(router)
	return router
}

func seedStore(t *testing.T, store *memory.Store, orgID string, n int) {
	t.Helper()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	events := make([]*v1.Event, n)
	for i := range events {
		events[i] = &v1.Event{
			EventID:    fmt.Sprintf("evt-%03d", i),
			OrgID:      orgID,
			UserID:     fmt.Sprintf("u%d", i%2),
			EventType:  "page_view",
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
			IngestedAt: base,
		}
	}
	require.NoError(t, store.AppendBatch(context.Background(), orgID, events))
}

func getEvents(router *gin.Engine, params url.Values) *httptest.ResponseRecorder {
	target := "/api/v1/events"
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodePage(t *testing.T, rec *httptest.ResponseRecorder) v1.QueryResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page v1.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	return page
}

func TestQueryHandler_PaginatesWithCursor(t *testing.T) {
	store := memory.NewStore()
	seedStore(t, store, "org1", 5)
	router := newTestRouter(t, store, "org1")

	var (
		got    []*v1.Event
		cursor string
		pages  int
	)
	for {
		params := url.Values{"limit": {"2"}}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		page := decodePage(t, getEvents(router, params))
		got = append(got, page.Data...)
		pages++

		if !page.HasMore {
			require.Nil(t, page.Cursor)
			break
		}
		require.NotNil(t, page.Cursor)
		cursor = *page.Cursor
	}

	require.Equal(t, 3, pages)
	require.Len(t, got, 5)
	for i, evt := range got {
		require.Equal(t, fmt.Sprintf("evt-%03d", i), evt.EventID)
	}
}

func TestQueryHandler_TamperedCursorIsRejected(t *testing.T) {
	store := memory.NewStore()
	seedStore(t, store, "org1", 3)
	router := newTestRouter(t, store, "org1")

	rec := getEvents(router, url.Values{"cursor": {"not-a-real-cursor"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, httperr.HttpInvalidCursor, body.ErrorType)
}

func TestQueryHandler_TenantIsolation(t *testing.T) {
	store := memory.NewStore()
	seedStore(t, store, "org1", 3)
	seedStore(t, store, "org2", 4)

	page := decodePage(t, getEvents(newTestRouter(t, store, "org2"), nil))
	require.Len(t, page.Data, 4)
	for _, evt := range page.Data {
		require.Equal(t, "org2", evt.OrgID)
	}
}

func TestQueryHandler_CursorFromAnotherTenantYieldsThatTenantNothing(t *testing.T) {
	store := memory.NewStore()
	seedStore(t, store, "org1", 5)
	router1 := newTestRouter(t, store, "org1")

	page := decodePage(t, getEvents(router1, url.Values{"limit": {"2"}}))
	require.NotNil(t, page.Cursor)

	// Replaying org1's cursor as org2 scans org2's (empty) partition; it
	// never exposes org1 events.
	router2 := newTestRouter(t, store, "org2")
	stolen := decodePage(t, getEvents(router2, url.Values{"cursor": {*page.Cursor}}))
	require.Empty(t, stolen.Data)
	require.False(t, stolen.HasMore)
}

func TestQueryHandler_Filters(t *testing.T) {
	store := memory.NewStore()
	seedStore(t, store, "org1", 4)
	router := newTestRouter(t, store, "org1")

	t.Run("by user", func(t *testing.T) {
		page := decodePage(t, getEvents(router, url.Values{"user_id": {"u0"}}))
		require.Len(t, page.Data, 2)
	})

	t.Run("by date window", func(t *testing.T) {
		page := decodePage(t, getEvents(router, url.Values{
			"start_date": {"2026-03-01"},
			"end_date":   {"2026-03-01"},
		}))
		require.Len(t, page.Data, 4)
	})

	t.Run("window excludes everything", func(t *testing.T) {
		page := decodePage(t, getEvents(router, url.Values{
			"start_date": {"2026-04-01"},
			"end_date":   {"2026-04-02"},
		}))
		require.NotNil(t, page.Data)
		require.Empty(t, page.Data)
		require.False(t, page.HasMore)
	})
}

func TestQueryHandler_ParamValidation(t *testing.T) {
	router := newTestRouter(t, memory.NewStore(), "org1")

	tests := []struct {
		name   string
		params url.Values
	}{
		{name: "limit zero", params: url.Values{"limit": {"0"}}},
		{name: "limit too large", params: url.Values{"limit": {"101"}}},
		{name: "limit not a number", params: url.Values{"limit": {"many"}}},
		{name: "bad start_date", params: url.Values{"start_date": {"yesterday"}}},
		{name: "bad end_date", params: url.Values{"end_date": {"tomorrow"}}},
		{name: "inverted range", params: url.Values{"start_date": {"2026-03-02"}, "end_date": {"2026-03-01"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := getEvents(router, tc.params)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var body httperr.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, httperr.HttpValidationError, body.ErrorType)
		})
	}
}

func TestQueryHandler_ExactLimitPageHasNoCursor(t *testing.T) {
	store := memory.NewStore()
	seedStore(t, store, "org1", 2)
	router := newTestRouter(t, store, "org1")

	page := decodePage(t, getEvents(router, url.Values{"limit": {"2"}}))
	require.Len(t, page.Data, 2)
	require.False(t, page.HasMore)
	require.Nil(t, page.Cursor)
}
