package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpulse/openpulse-go/internal/domain/analytics"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/logging"
)

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]*analytics.Event
	fail    int
}

func (w *fakeWriter) WriteBatch(_ context.Context, events []*analytics.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail > 0 {
		w.fail--
		return errors.New("store unavailable")
	}
	batch := make([]*analytics.Event, len(events))
	copy(batch, events)
	w.batches = append(w.batches, batch)
	return nil
}

func (w *fakeWriter) batchCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.batches)
}

func (w *fakeWriter) allEvents() []*analytics.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []*analytics.Event
	for _, b := range w.batches {
		out = append(out, b...)
	}
	return out
}

func newTestLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	logger, err := logging.NewChanneledLogger(nil)
	require.NoError(t, err)
	return logger
}

func event(siteID string) *analytics.Event {
	return &analytics.Event{SiteID: siteID, SessionID: "se_test", Type: "pageview"}
}

func TestAddTriggersFlushAtBatchSize(t *testing.T) {
	writer := &fakeWriter{}
	q := NewInMemoryEventQueue(writer, newTestLogger(t), Options{
		BatchSize:     5,
		FlushInterval: time.Hour,
		MaxDepth:      100,
	})

	for i := 0; i < 4; i++ {
		require.True(t, q.Add(event("site_123")))
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, writer.batchCount(), "below batch size nothing flushes")

	require.True(t, q.Add(event("site_123")))
	require.Eventually(t, func() bool { return writer.batchCount() == 1 },
		time.Second, 10*time.Millisecond)
	assert.Len(t, writer.allEvents(), 5)
	assert.Equal(t, 0, q.pending())
}

func TestFlushPreservesOrder(t *testing.T) {
	writer := &fakeWriter{}
	q := NewInMemoryEventQueue(writer, newTestLogger(t), Options{
		BatchSize:     3,
		FlushInterval: time.Hour,
		MaxDepth:      100,
	})

	sites := []string{"a", "b", "c"}
	for _, s := range sites {
		q.Add(event(s))
	}
	require.Eventually(t, func() bool { return writer.batchCount() == 1 },
		time.Second, 10*time.Millisecond)

	got := writer.allEvents()
	require.Len(t, got, 3)
	for i, s := range sites {
		assert.Equal(t, s, got[i].SiteID)
	}
}

func TestFlushRetriesTransientFailure(t *testing.T) {
	writer := &fakeWriter{fail: 2}
	q := NewInMemoryEventQueue(writer, newTestLogger(t), Options{
		BatchSize:     2,
		FlushInterval: time.Hour,
		MaxDepth:      100,
		MaxRetries:    3,
		RetryBaseWait: time.Millisecond,
	})

	q.Add(event("site_123"))
	q.Add(event("site_123"))

	require.Eventually(t, func() bool { return writer.batchCount() == 1 },
		time.Second, 10*time.Millisecond)
	assert.Len(t, writer.allEvents(), 2)
}

func TestFlushDropsBatchAfterExhaustedRetries(t *testing.T) {
	writer := &fakeWriter{fail: 100}
	q := NewInMemoryEventQueue(writer, newTestLogger(t), Options{
		BatchSize:     2,
		FlushInterval: time.Hour,
		MaxDepth:      100,
		MaxRetries:    2,
		RetryBaseWait: time.Millisecond,
	})

	q.Add(event("site_123"))
	q.Add(event("site_123"))

	// The batch leaves the buffer and never reaches the writer.
	require.Eventually(t, func() bool { return q.pending() == 0 },
		time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, writer.batchCount())
}

type blockingWriter struct {
	release chan struct{}
}

func (w *blockingWriter) WriteBatch(_ context.Context, _ []*analytics.Event) error {
	<-w.release
	return nil
}

func TestAddRejectsWhenFull(t *testing.T) {
	writer := &blockingWriter{release: make(chan struct{})}
	t.Cleanup(func() { close(writer.release) })

	q := NewInMemoryEventQueue(writer, newTestLogger(t), Options{
		BatchSize:     5,
		FlushInterval: time.Hour,
		MaxDepth:      10,
	})

	// First batch leaves the buffer and parks inside the blocked writer.
	for i := 0; i < 5; i++ {
		require.True(t, q.Add(event("site_123")))
	}
	require.Eventually(t, func() bool { return q.pending() == 0 },
		time.Second, time.Millisecond)

	// With the writer stuck, the buffer fills to its cap and then rejects.
	for i := 0; i < 10; i++ {
		require.True(t, q.Add(event("site_123")))
	}
	assert.False(t, q.Add(event("site_123")))
	assert.Equal(t, 10, q.pending())
}

func TestTickerFlushesPartialBatch(t *testing.T) {
	writer := &fakeWriter{}
	q := NewInMemoryEventQueue(writer, newTestLogger(t), Options{
		BatchSize:     10,
		FlushInterval: 20 * time.Millisecond,
		MaxDepth:      100,
	})
	q.Start()
	defer q.Stop()

	q.Add(event("site_123"))
	require.Eventually(t, func() bool { return writer.batchCount() == 1 },
		time.Second, 10*time.Millisecond)
	assert.Len(t, writer.allEvents(), 1)
}

func TestStartIsIdempotent(t *testing.T) {
	writer := &fakeWriter{}
	q := NewInMemoryEventQueue(writer, newTestLogger(t), Options{
		BatchSize:     10,
		FlushInterval: time.Hour,
		MaxDepth:      100,
	})
	q.Start()
	q.Start()
	q.Stop()
}

func TestStopDrainsBuffer(t *testing.T) {
	writer := &fakeWriter{}
	q := NewInMemoryEventQueue(writer, newTestLogger(t), Options{
		BatchSize:     4,
		FlushInterval: time.Hour,
		MaxDepth:      100,
	})
	q.Start()

	for i := 0; i < 3; i++ {
		q.Add(event("site_123"))
	}
	q.Stop()

	assert.Equal(t, 0, q.pending())
	assert.Len(t, writer.allEvents(), 3)
}
