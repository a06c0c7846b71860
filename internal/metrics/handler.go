package metrics

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	v1 "github.com/blackdoglabs/pulse/internal/api/v1"
	"github.com/blackdoglabs/pulse/internal/auth"
	httperr "github.com/blackdoglabs/pulse/internal/core/errors"
	"github.com/blackdoglabs/pulse/internal/core/storage"
	"github.com/gin-gonic/gin"
)

// Service exposes the metrics summary endpoint over the aggregator.
type Service struct {
	aggregator *Aggregator
}

func NewService(aggregator *Aggregator) *Service {
	if aggregator == nil {
		panic("metrics: aggregator must not be nil")
	}
	return &Service{aggregator: aggregator}
}

// RegisterRoutes registers the metrics service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/api/v1/metrics/summary", s.SummaryHandler)
}

// SummaryHandler handles GET /api/v1/metrics/summary.
// start_date and end_date are required and inclusive; metrics optionally
// selects which counters appear.
func (s *Service) SummaryHandler(c *gin.Context) {
	identity, ok := auth.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnauthorizedError,
			Message:   "Missing authenticated tenant",
		})
		return
	}

	startRaw := c.Query("start_date")
	endRaw := c.Query("end_date")
	if startRaw == "" || endRaw == "" {
		badRequest(c, "start_date and end_date are required")
		return
	}

	start, err := v1.ParseTimeParam(startRaw)
	if err != nil {
		badRequest(c, fmt.Sprintf("start_date: %v", err))
		return
	}
	end, err := v1.ParseTimeParam(endRaw)
	if err != nil {
		badRequest(c, fmt.Sprintf("end_date: %v", err))
		return
	}

	rangeStart := start.RangeStart()
	rangeEnd := end.RangeEnd()
	if !rangeStart.Before(rangeEnd) {
		badRequest(c, "start_date must not be after end_date")
		return
	}

	summary, err := s.aggregator.Summarize(c.Request.Context(), identity.TenantID, rangeStart, rangeEnd, metricNames(c))
	if err != nil {
		slog.Error("Metrics summary failed", "org_id", identity.TenantID, "error", err)
		if errors.Is(err, storage.ErrUnavailable) {
			c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
				ErrorType: httperr.HttpStoreUnavailable,
				Message:   "Event store temporarily unavailable, retry the query",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to compute metrics summary",
		})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// metricNames reads the metrics selection from either repeated metrics=
// parameters or one comma-separated value.
func metricNames(c *gin.Context) []string {
	var names []string
	for _, raw := range c.QueryArray("metrics") {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
		ErrorType: httperr.HttpValidationError,
		Message:   msg,
	})
}
