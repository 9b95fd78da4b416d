// Package queue buffers enriched events between the ingestion handlers and
// the columnar store, flushing them in small batches.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/openpulse/openpulse-go/internal/domain/analytics"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/logging"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/metrics"
)

// EventWriter sinks a flushed batch. Satisfied by the columnar store.
type EventWriter interface {
	WriteBatch(ctx context.Context, events []*analytics.Event) error
}

// EventQueue accepts enriched events for asynchronous persistence.
type EventQueue interface {
	Add(event *analytics.Event) bool
	Start()
	Stop()
}

// Options tune an in-memory queue. Zero values fall back to safe minimums.
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	MaxDepth      int
	MaxRetries    int
	RetryBaseWait time.Duration
}

func (o *Options) normalize() {
	if o.BatchSize <= 0 {
		o.BatchSize = 1
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = time.Second
	}
	if o.MaxDepth < o.BatchSize {
		o.MaxDepth = o.BatchSize
	}
	if o.RetryBaseWait <= 0 {
		o.RetryBaseWait = 100 * time.Millisecond
	}
}

// InMemoryEventQueue is a bounded FIFO buffer with two flush triggers: the
// buffer reaching the batch size, and a periodic ticker. Only one flush runs
// at a time; a trigger that finds a flush in progress is skipped, the next
// trigger picks the events up.
type InMemoryEventQueue struct {
	writer EventWriter
	logger *logging.ChanneledLogger
	opts   Options

	mu     sync.Mutex
	buffer []*analytics.Event

	processing atomic.Bool
	started    atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewInMemoryEventQueue creates a queue that flushes into the given writer.
func NewInMemoryEventQueue(writer EventWriter, logger *logging.ChanneledLogger, opts Options) *InMemoryEventQueue {
	opts.normalize()
	ctx, cancel := context.WithCancel(context.Background())
	return &InMemoryEventQueue{
		writer: writer,
		logger: logger,
		opts:   opts,
		buffer: make([]*analytics.Event, 0, opts.BatchSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Add enqueues an event. It returns false when the buffer is at capacity; the
// event is dropped and counted rather than blocking the ingestion path.
func (q *InMemoryEventQueue) Add(event *analytics.Event) bool {
	q.mu.Lock()
	if len(q.buffer) >= q.opts.MaxDepth {
		q.mu.Unlock()
		metrics.EventsDroppedTotal.Inc()
		q.logger.Queue().Warn("Event dropped, queue at capacity",
			"maxDepth", q.opts.MaxDepth, "siteId", event.SiteID)
		return false
	}
	q.buffer = append(q.buffer, event)
	depth := len(q.buffer)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(depth))
	if depth >= q.opts.BatchSize {
		go q.flush()
	}
	return true
}

// Start launches the periodic flush loop. Calling Start twice is a no-op.
func (q *InMemoryEventQueue) Start() {
	if !q.started.CompareAndSwap(false, true) {
		return
	}

	q.logger.Queue().Info("Event queue started",
		"batchSize", q.opts.BatchSize, "flushInterval", q.opts.FlushInterval, "maxDepth", q.opts.MaxDepth)

	go func() {
		defer close(q.done)
		ticker := time.NewTicker(q.opts.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				q.flush()
			case <-q.ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the flush loop and drains whatever the buffer still holds.
func (q *InMemoryEventQueue) Stop() {
	if !q.started.Load() {
		return
	}
	q.cancel()
	<-q.done

	for q.pending() > 0 {
		if !q.flushBlocking() {
			break
		}
	}
	q.logger.Queue().Info("Event queue stopped", "remaining", q.pending())
}

func (q *InMemoryEventQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffer)
}

// flush writes one batch unless another flush is already running.
func (q *InMemoryEventQueue) flush() {
	if !q.processing.CompareAndSwap(false, true) {
		return
	}
	defer q.processing.Store(false)
	q.flushLocked()
}

// flushBlocking waits for an in-flight flush instead of skipping. Used only
// during shutdown drain. Returns false when there was nothing to write.
func (q *InMemoryEventQueue) flushBlocking() bool {
	for !q.processing.CompareAndSwap(false, true) {
		time.Sleep(time.Millisecond)
	}
	defer q.processing.Store(false)
	return q.flushLocked()
}

func (q *InMemoryEventQueue) flushLocked() bool {
	q.mu.Lock()
	if len(q.buffer) == 0 {
		q.mu.Unlock()
		return false
	}
	n := q.opts.BatchSize
	if n > len(q.buffer) {
		n = len(q.buffer)
	}
	batch := make([]*analytics.Event, n)
	copy(batch, q.buffer[:n])
	q.buffer = append(q.buffer[:0], q.buffer[n:]...)
	depth := len(q.buffer)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(depth))

	start := time.Now()
	err := q.writeWithRetry(batch)
	duration := time.Since(start)

	metrics.FlushDuration.Observe(duration.Seconds())
	metrics.FlushBatchSize.Observe(float64(len(batch)))

	if err != nil {
		// The batch is dropped: requeueing a poison batch would wedge the
		// pipeline behind it.
		metrics.FlushTotal.WithLabelValues("failure").Inc()
		metrics.EventsDroppedTotal.Add(float64(len(batch)))
		q.logger.Queue().Error("Flush failed, dropping batch",
			"error", err.Error(), "events", len(batch), "duration", duration)
		return true
	}

	metrics.FlushTotal.WithLabelValues("success").Inc()
	q.logger.Queue().Debug("Flush complete", "events", len(batch), "duration", duration, "depth", depth)
	return true
}

func (q *InMemoryEventQueue) writeWithRetry(batch []*analytics.Event) error {
	policy := backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(backoff.WithInitialInterval(q.opts.RetryBaseWait)),
		uint64(q.opts.MaxRetries),
	)

	// Writes run against the background context so the shutdown drain can
	// still reach the store after the flush loop's context is cancelled.
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := q.writer.WriteBatch(context.Background(), batch)
		if err != nil && attempt <= q.opts.MaxRetries {
			q.logger.Queue().Warn("Flush attempt failed, retrying",
				"error", err.Error(), "attempt", attempt, "events", len(batch))
		}
		return err
	}, policy)
}
