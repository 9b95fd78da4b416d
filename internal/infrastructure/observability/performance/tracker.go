// Package performance provides lightweight operation timing for the
// ingestion pipeline.
package performance

import (
	"fmt"
	"sync"
	"time"
)

// Marker represents a single performance measurement for an operation
type Marker struct {
	Operation string         `json:"operation"` // e.g., "track:ingest", "queue:flush"
	SiteID    string         `json:"siteId"`
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime"`
	Duration  time.Duration  `json:"duration"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Completed bool           `json:"completed"`
}

// Complete marks the operation as finished
func (m *Marker) Complete() {
	if m.Completed {
		return
	}
	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	m.Completed = true
}

// SetSuccess marks the operation as successful or failed
func (m *Marker) SetSuccess(success bool) {
	m.Success = success
}

// SetError sets an error message and marks the operation as failed
func (m *Marker) SetError(err error) {
	if err != nil {
		m.Error = err.Error()
		m.Success = false
	}
}

// AddMetadata adds key-value metadata to the marker
func (m *Marker) AddMetadata(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// Tracker manages performance markers with a bounded retention window
type Tracker struct {
	markers map[string]*Marker
	mu      sync.RWMutex
	started time.Time
	max     int
}

// NewTracker creates a new performance tracker retaining at most max markers
func NewTracker(max int) *Tracker {
	if max <= 0 {
		max = 10000
	}
	return &Tracker{
		markers: make(map[string]*Marker),
		started: time.Now(),
		max:     max,
	}
}

// StartOperation creates and tracks a new performance marker for an operation
func (t *Tracker) StartOperation(operation, siteID string) *Marker {
	marker := &Marker{
		Operation: operation,
		SiteID:    siteID,
		StartTime: time.Now(),
		Success:   true, // Assume success until proven otherwise
	}

	markerID := fmt.Sprintf("%s_%s_%d", siteID, operation, time.Now().UnixNano())

	t.mu.Lock()
	if len(t.markers) >= t.max {
		t.evictOldestLocked()
	}
	t.markers[markerID] = marker
	t.mu.Unlock()

	return marker
}

// GetRecentMetrics returns completed markers within the given window
func (t *Tracker) GetRecentMetrics(within time.Duration) []Marker {
	cutoff := time.Now().Add(-within)

	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Marker
	for _, m := range t.markers {
		if m.Completed && m.EndTime.After(cutoff) {
			out = append(out, *m)
		}
	}
	return out
}

// Cleanup drops completed markers older than one hour
func (t *Tracker) Cleanup() {
	cutoff := time.Now().Add(-time.Hour)

	t.mu.Lock()
	defer t.mu.Unlock()

	for id, m := range t.markers {
		if m.Completed && m.EndTime.Before(cutoff) {
			delete(t.markers, id)
		}
	}
}

func (t *Tracker) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, m := range t.markers {
		if oldestID == "" || m.StartTime.Before(oldest) {
			oldestID = id
			oldest = m.StartTime
		}
	}
	if oldestID != "" {
		delete(t.markers, oldestID)
	}
}
