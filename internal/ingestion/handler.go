package ingestion

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	v1 "github.com/blackdoglabs/pulse/internal/api/v1"
	httperr "github.com/blackdoglabs/pulse/internal/core/errors"
	"github.com/blackdoglabs/pulse/internal/core/storage"
	"github.com/blackdoglabs/pulse/internal/schema"

	"github.com/blackdoglabs/pulse/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IdempotencyKeyHeader guards a batch against duplicate processing on
// client retry.
const IdempotencyKeyHeader = "X-Idempotency-Key"

const (
	msgReadBodyFailed  = "Failed to read request body"
	msgInvalidJSON     = "Invalid JSON body"
	msgPersistFailed   = "Failed to persist events"
	msgDuplicateBatch  = "Idempotency key already processed"
	msgStoreunavail    = "Event store temporarily unavailable, retry the batch"
	msgMissingIdentity = "Missing authenticated tenant"
)

// ingestionError carries the structured HTTP error shape from a helper back
// to the orchestrator. Helpers return this instead of writing to
// gin.Context directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// IngestHandler handles HTTP POST requests for batch event ingestion.
//
// The batch is all-or-nothing: validation failures and append failures
// leave no events behind, and a failed append releases its idempotency
// reservation so the client retry is accepted.
func (s *Service) IngestHandler(c *gin.Context) {
	identity, ok := auth.FromContext(c.Request.Context())
	if !ok {
		// The auth middleware guarantees an identity; reaching here means
		// the route was wired without it.
		writeError(c, &ingestionError{
			statusCode: http.StatusUnauthorized,
			errorType:  httperr.HttpUnauthorizedError,
			message:    msgMissingIdentity,
		})
		return
	}

	req, payloadSize, err := s.parseBatch(c)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := s.validateBatch(c.Request.Context(), req); err != nil {
		writeError(c, err)
		return
	}

	events := s.materialize(identity, req, c.GetHeader(IdempotencyKeyHeader))

	slog.Info("Received batch",
		"org_id", identity.TenantID,
		"count", len(events),
		"payload_size", payloadSize,
		"idempotent", events[0].IdempotencyKey != "")

	if err := s.persistBatch(c.Request.Context(), identity.TenantID, events); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, v1.IngestResponse{
		Accepted: len(events),
		OrgID:    identity.TenantID,
	})
}

// parseBatch reads the raw request body and binds it into an IngestRequest.
// Returns the parsed batch and the raw payload size (used for structured
// logging upstream).
func (s *Service) parseBatch(c *gin.Context) (*v1.IngestRequest, int, *ingestionError) {
	// Enforce maximum body size to prevent OOM attacks
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return nil, 0, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	var req v1.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	return &req, len(bodyBytes), nil
}

// validateBatch runs envelope validation on the whole batch, then shape
// validation per draft for event types that declare one.
func (s *Service) validateBatch(ctx context.Context, req *v1.IngestRequest) *ingestionError {
	if err := req.Validate(); err != nil {
		slog.Warn("Batch validation failed", "error", err)
		return &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			message:    err.Error(),
		}
	}

	for i := range req.Events {
		draft := &req.Events[i]
		if err := s.validator.Validate(ctx, draft.EventType, draft.Properties); err != nil {
			var verr *schema.ValidationError
			if errors.As(err, &verr) {
				slog.Warn("Shape validation failed",
					"event_type", draft.EventType, "index", i)
				return &ingestionError{
					statusCode: http.StatusBadRequest,
					errorType:  httperr.HttpValidationError,
					message:    err.Error(),
					details: map[string]interface{}{
						"index":  i,
						"fields": verr.Details(),
					},
				}
			}
			slog.Error("Shape lookup failed", "event_type", draft.EventType, "error", err)
			return &ingestionError{
				statusCode: http.StatusInternalServerError,
				errorType:  httperr.HttpInternalError,
				message:    msgPersistFailed,
			}
		}
	}

	return nil
}

// materialize turns validated drafts into persistable events: server-assigned
// event_id and ingested_at, client timestamp preserved when present.
func (s *Service) materialize(identity auth.Identity, req *v1.IngestRequest, idempotencyKey string) []*v1.Event {
	ingestedAt := s.now()

	events := make([]*v1.Event, len(req.Events))
	for i := range req.Events {
		draft := &req.Events[i]

		ts := ingestedAt
		if draft.Timestamp != nil && !draft.Timestamp.IsZero() {
			ts = draft.Timestamp.UTC()
		}

		events[i] = &v1.Event{
			EventID:        uuid.New().String(),
			OrgID:          identity.TenantID,
			UserID:         draft.UserID,
			EventType:      draft.EventType,
			Properties:     draft.Properties,
			Timestamp:      ts,
			IngestedAt:     ingestedAt,
			IdempotencyKey: idempotencyKey,
		}
	}
	return events
}

// persistBatch reserves the idempotency key (when present) and appends the
// batch. A failed append releases the reservation so the retry can land.
func (s *Service) persistBatch(ctx context.Context, orgID string, events []*v1.Event) *ingestionError {
	key := events[0].IdempotencyKey

	if key != "" {
		outcome := "accepted=" + strconv.Itoa(len(events))
		if err := s.ledger.CheckAndReserve(ctx, orgID, key, outcome); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return &ingestionError{
					statusCode: http.StatusConflict,
					errorType:  httperr.HttpDuplicateKeyError,
					message:    msgDuplicateBatch,
				}
			}
			return storeError("Failed to reserve idempotency key", err)
		}
	}

	if err := s.store.AppendBatch(ctx, orgID, events); err != nil {
		if key != "" {
			// Best effort: a failed release only means the client sees a
			// conflict on retry instead of a success.
			if relErr := s.ledger.Release(context.WithoutCancel(ctx), orgID, key); relErr != nil {
				slog.Error("Failed to release idempotency key after append failure",
					"org_id", orgID, "key", key, "error", relErr)
			}
		}
		return storeError("Failed to append batch", err)
	}

	return nil
}

func storeError(logMsg string, err error) *ingestionError {
	slog.Error(logMsg, "error", err)
	if errors.Is(err, storage.ErrUnavailable) {
		return &ingestionError{
			statusCode: http.StatusServiceUnavailable,
			errorType:  httperr.HttpStoreUnavailable,
			message:    msgStoreunavail,
		}
	}
	return &ingestionError{
		statusCode: http.StatusInternalServerError,
		errorType:  httperr.HttpInternalError,
		message:    msgPersistFailed,
	}
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
