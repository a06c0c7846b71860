// Package client is the Go SDK for the event API. It queues drafts
// locally and ships them in idempotency-key-guarded batches, flushing on
// whichever fires first: the queue reaching the batch size or the flush
// interval elapsing.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	v1 "github.com/blackdoglabs/pulse/internal/api/v1"
	"github.com/google/uuid"
)

const idempotencyKeyHeader = "X-Idempotency-Key"

// Config configures a Client.
type Config struct {
	// Endpoint is the base URL of the service, e.g. "https://api.example.com".
	Endpoint string
	// Token is sent as the bearer credential on every request.
	Token string
	// BatchSize triggers a flush when the queue reaches it. Capped at the
	// server-side batch maximum. Default 50.
	BatchSize int
	// FlushInterval triggers a time-based flush. Default 5s.
	FlushInterval time.Duration
	// MaxRetries bounds delivery attempts per batch for retryable
	// failures. Default 3.
	MaxRetries int
	// HTTPClient optionally overrides the transport.
	HTTPClient *http.Client
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.BatchSize <= 0 || cfg.BatchSize > v1.MaxBatchSize {
		if cfg.BatchSize > v1.MaxBatchSize {
			cfg.BatchSize = v1.MaxBatchSize
		} else {
			cfg.BatchSize = 50
		}
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return cfg
}

// IngestError is returned when the server rejects a batch outright.
type IngestError struct {
	StatusCode int
	Body       string
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest rejected with status %d: %s", e.StatusCode, e.Body)
}

// Client posts batches to the ingest endpoint. See Batcher for the
// queueing layer most applications want.
type Client struct {
	cfg Config
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}
	return &Client{cfg: cfg.withDefaults()}, nil
}

// Ingest delivers one batch guarded by a fresh idempotency key. Transient
// failures (network errors, 5xx) are retried with the same key, so a batch
// that was actually accepted on a lost response is not duplicated; the
// server answers the retry with a conflict, which Ingest reports as
// success.
func (c *Client) Ingest(ctx context.Context, drafts []v1.EventDraft) (*v1.IngestResponse, error) {
	if len(drafts) == 0 {
		return &v1.IngestResponse{}, nil
	}

	body, err := json.Marshal(v1.IngestRequest{Events: drafts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}

	key := uuid.New().String()

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		resp, retryable, err := c.post(ctx, body, key)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return nil, lastErr
}

func (c *Client) post(ctx context.Context, body []byte, key string) (*v1.IngestResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/api/v1/events", bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set(idempotencyKeyHeader, key)

	httpResp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("ingest request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))

	switch {
	case httpResp.StatusCode == http.StatusCreated:
		var out v1.IngestResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return nil, false, fmt.Errorf("failed to decode ingest response: %w", err)
		}
		return &out, false, nil
	case httpResp.StatusCode == http.StatusConflict:
		// A previous attempt with this key already landed.
		return &v1.IngestResponse{}, false, nil
	case httpResp.StatusCode >= 500:
		return nil, true, &IngestError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
	default:
		return nil, false, &IngestError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * 250 * time.Millisecond
}
