package query

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	v1 "github.com/blackdoglabs/pulse/internal/api/v1"
	"github.com/blackdoglabs/pulse/internal/auth"
	"github.com/blackdoglabs/pulse/internal/core/cursor"
	httperr "github.com/blackdoglabs/pulse/internal/core/errors"
	"github.com/blackdoglabs/pulse/internal/core/storage"
	"github.com/gin-gonic/gin"
)

// QueryHandler handles GET /api/v1/events.
//
// Results are ordered by (timestamp ASC, event_id ASC) — a total order, so
// pagination is stable even when timestamps collide. Resuming with a
// cursor returns events strictly after the recorded position: pages never
// repeat events, and late-arriving events with past timestamps are visible
// to an in-flight pagination session whenever they sort after the cursor
// position (positions already consumed are never revisited).
func (s *Service) QueryHandler(c *gin.Context) {
	identity, ok := auth.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnauthorizedError,
			Message:   "Missing authenticated tenant",
		})
		return
	}

	filter, limit, after, badReq := parseQueryParams(c)
	if badReq != nil {
		c.JSON(badReq.status, badReq.body)
		return
	}

	events, hasMore, err := s.store.ScanRange(c.Request.Context(), identity.TenantID, filter, after, limit)
	if err != nil {
		slog.Error("Range scan failed", "org_id", identity.TenantID, "error", err)
		if errors.Is(err, storage.ErrUnavailable) {
			c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
				ErrorType: httperr.HttpStoreUnavailable,
				Message:   "Event store temporarily unavailable, retry the query",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to query events",
		})
		return
	}

	resp := v1.QueryResponse{
		Data:    events,
		HasMore: hasMore,
	}
	if hasMore && len(events) > 0 {
		last := events[len(events)-1]
		token := cursor.Encode(cursor.Position{Timestamp: last.Timestamp, EventID: last.EventID})
		resp.Cursor = &token
	}
	if resp.Data == nil {
		resp.Data = []*v1.Event{}
	}

	c.JSON(http.StatusOK, resp)
}

type badRequest struct {
	status int
	body   httperr.ErrorResponse
}

func validationFailure(msg string) *badRequest {
	return &badRequest{
		status: http.StatusBadRequest,
		body: httperr.ErrorResponse{
			ErrorType: httperr.HttpValidationError,
			Message:   msg,
		},
	}
}

// parseQueryParams extracts and validates the filter, limit, and cursor.
func parseQueryParams(c *gin.Context) (storage.ScanFilter, int, *cursor.Position, *badRequest) {
	var filter storage.ScanFilter

	filter.UserID = c.Query("user_id")
	filter.EventType = c.Query("event_type")

	if raw := c.Query("start_date"); raw != "" {
		p, err := v1.ParseTimeParam(raw)
		if err != nil {
			return filter, 0, nil, validationFailure(fmt.Sprintf("start_date: %v", err))
		}
		start := p.RangeStart()
		filter.Start = &start
	}
	if raw := c.Query("end_date"); raw != "" {
		p, err := v1.ParseTimeParam(raw)
		if err != nil {
			return filter, 0, nil, validationFailure(fmt.Sprintf("end_date: %v", err))
		}
		end := p.RangeEnd()
		filter.End = &end
	}
	if filter.Start != nil && filter.End != nil && !filter.Start.Before(*filter.End) {
		return filter, 0, nil, validationFailure("start_date must not be after end_date")
	}

	limit := DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxLimit {
			return filter, 0, nil, validationFailure(fmt.Sprintf("limit must be 1-%d", MaxLimit))
		}
		limit = n
	}

	var after *cursor.Position
	if token := c.Query("cursor"); token != "" {
		pos, err := cursor.Decode(token)
		if err != nil {
			// Never resume from a guessed position; the client restarts
			// pagination from the beginning.
			return filter, 0, nil, &badRequest{
				status: http.StatusBadRequest,
				body: httperr.ErrorResponse{
					ErrorType: httperr.HttpInvalidCursor,
					Message:   "Cursor is invalid or corrupted, restart pagination",
				},
			}
		}
		after = &pos
	}

	return filter, limit, after, nil
}
