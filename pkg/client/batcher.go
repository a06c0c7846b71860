package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	v1 "github.com/blackdoglabs/pulse/internal/api/v1"
)

// Batcher queues drafts and flushes them through a Client. Two triggers
// share one queue: a size threshold checked on Enqueue and a periodic
// timer. Draining swaps the queue out under the mutex, so a timer tick
// racing a size-triggered flush can never ship the same drafts twice —
// whichever trigger drains first gets them, the other sees an empty
// queue.
type Batcher struct {
	client   *Client
	size     int
	interval time.Duration

	mu    sync.Mutex
	queue []v1.EventDraft

	flushCh chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewBatcher creates a batcher over the client and starts its flush loop.
// Call Close to flush the tail and stop the loop.
func NewBatcher(client *Client) *Batcher {
	b := &Batcher{
		client:   client,
		size:     client.cfg.BatchSize,
		interval: client.cfg.FlushInterval,
		flushCh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	b.wg.Add(1)
	go b.loop()
	return b
}

// Enqueue adds a draft to the queue, kicking an asynchronous flush when
// the size threshold is reached.
func (b *Batcher) Enqueue(draft v1.EventDraft) {
	b.mu.Lock()
	b.queue = append(b.queue, draft)
	full := len(b.queue) >= b.size
	b.mu.Unlock()

	if full {
		// Non-blocking: a pending kick already covers this batch.
		select {
		case b.flushCh <- struct{}{}:
		default:
		}
	}
}

// Flush synchronously drains and delivers everything queued so far.
// Failed batches are re-queued at the front so ordering survives a
// transient outage.
func (b *Batcher) Flush(ctx context.Context) error {
	drafts := b.drain()
	if len(drafts) == 0 {
		return nil
	}

	for start := 0; start < len(drafts); start += b.size {
		end := start + b.size
		if end > len(drafts) {
			end = len(drafts)
		}
		if _, err := b.client.Ingest(ctx, drafts[start:end]); err != nil {
			b.requeue(drafts[start:])
			return err
		}
	}
	return nil
}

// Close flushes remaining drafts and stops the background loop.
func (b *Batcher) Close(ctx context.Context) error {
	b.once.Do(func() { close(b.done) })
	b.wg.Wait()
	return b.Flush(ctx)
}

// drain atomically takes ownership of the queued drafts.
func (b *Batcher) drain() []v1.EventDraft {
	b.mu.Lock()
	defer b.mu.Unlock()
	drafts := b.queue
	b.queue = nil
	return drafts
}

func (b *Batcher) requeue(drafts []v1.EventDraft) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(append([]v1.EventDraft{}, drafts...), b.queue...)
}

func (b *Batcher) loop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.backgroundFlush()
		case <-b.flushCh:
			b.backgroundFlush()
		case <-b.done:
			return
		}
	}
}

func (b *Batcher) backgroundFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), b.interval)
	defer cancel()
	if err := b.Flush(ctx); err != nil {
		slog.Warn("Batch flush failed, drafts re-queued", "error", err)
	}
}
