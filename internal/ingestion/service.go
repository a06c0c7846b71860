package ingestion

import (
	"time"

	"github.com/blackdoglabs/pulse/internal/core/storage"
	"github.com/blackdoglabs/pulse/internal/schema"
	"github.com/gin-gonic/gin"
)

// Service owns the write path: batch validation, idempotency reservation,
// and the all-or-nothing append.
type Service struct {
	store            storage.EventStore
	ledger           storage.IdempotencyLedger
	validator        *schema.Validator
	maxBodySizeBytes int

	// now is the server clock for ingested_at; replaceable in tests.
	now func() time.Time
}

func NewService(store storage.EventStore, ledger storage.IdempotencyLedger, validator *schema.Validator, maxBodySizeMB int) *Service {
	if store == nil {
		panic("ingestion: store must not be nil")
	}
	if ledger == nil {
		panic("ingestion: ledger must not be nil")
	}
	if validator == nil {
		panic("ingestion: validator must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		store:            store,
		ledger:           ledger,
		validator:        validator,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/api/v1/events", s.IngestHandler)
}
