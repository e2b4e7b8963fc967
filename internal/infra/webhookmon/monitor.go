package webhookmon

import (
	"sync"
	"time"

	"marmite-orders/internal/pkg/clock"
)

// EventStatus is the processing outcome recorded for a webhook event.
type EventStatus string

const (
	StatusProcessed EventStatus = "processed"
	StatusFailed    EventStatus = "failed"
	StatusUnmatched EventStatus = "unmatched"
)

// maxRecentFailures bounds the failure list; the oldest entry is evicted
// first.
const maxRecentFailures = 100

type EventRecord struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	ObjectID   string      `json:"object_id"`
	Status     EventStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	RetryCount int         `json:"retry_count"`
}

type FailedEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	ObjectID   string    `json:"object_id"`
	Error      string    `json:"error"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retry_count"`
}

type Stats struct {
	TotalEvents     int           `json:"total_events"`
	ProcessedEvents int           `json:"processed_events"`
	FailedEvents    int           `json:"failed_events"`
	UnmatchedEvents int           `json:"unmatched_events"`
	RecentFailures  []FailedEvent `json:"recent_failures"`
}

// Monitor is the process-lifetime ledger of webhook processing outcomes.
// It is a diagnostic aid, not a system of record: a restart resets it to
// empty. Constructed once at startup and injected; never accessed through
// package-level state.
type Monitor struct {
	mu       sync.RWMutex
	events   map[string]*EventRecord
	failures []FailedEvent
	clock    clock.Clock
}

func NewMonitor(clk clock.Clock) *Monitor {
	return &Monitor{
		events: make(map[string]*EventRecord),
		clock:  clk,
	}
}

// Track records an event as processed on first sighting.
func (m *Monitor) Track(eventID, eventType, objectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[eventID] = &EventRecord{
		ID:        eventID,
		Type:      eventType,
		ObjectID:  objectID,
		Status:    StatusProcessed,
		Timestamp: m.clock.Now(),
	}
}

// MarkFailed mutates the record in place and appends to the bounded
// failure list.
func (m *Monitor) MarkFailed(eventID string, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	eventType := "unknown"
	objectID := "unknown"
	retryCount := 1

	if ev, ok := m.events[eventID]; ok {
		ev.Status = StatusFailed
		ev.Error = errMsg
		ev.RetryCount++
		eventType = ev.Type
		objectID = ev.ObjectID
		retryCount = ev.RetryCount
	}

	m.failures = append(m.failures, FailedEvent{
		EventID:    eventID,
		EventType:  eventType,
		ObjectID:   objectID,
		Error:      errMsg,
		Timestamp:  m.clock.Now(),
		RetryCount: retryCount,
	})

	if len(m.failures) > maxRecentFailures {
		m.failures = m.failures[len(m.failures)-maxRecentFailures:]
	}
}

func (m *Monitor) MarkUnmatched(eventID, eventType, objectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[eventID] = &EventRecord{
		ID:        eventID,
		Type:      eventType,
		ObjectID:  objectID,
		Status:    StatusUnmatched,
		Timestamp: m.clock.Now(),
	}
}

// WasProcessed is the idempotency gate: a replayed event id that already
// completed must not re-run reconciliation.
func (m *Monitor) WasProcessed(eventID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ev, ok := m.events[eventID]
	return ok && ev.Status == StatusProcessed
}

func (m *Monitor) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{TotalEvents: len(m.events)}
	for _, ev := range m.events {
		switch ev.Status {
		case StatusProcessed:
			stats.ProcessedEvents++
		case StatusFailed:
			stats.FailedEvents++
		case StatusUnmatched:
			stats.UnmatchedEvents++
		}
	}

	// Last 10 failures, newest last
	start := len(m.failures) - 10
	if start < 0 {
		start = 0
	}
	stats.RecentFailures = append(stats.RecentFailures, m.failures[start:]...)

	return stats
}

func (m *Monitor) GetFailedEvents() []FailedEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]FailedEvent, len(m.failures))
	copy(out, m.failures)
	return out
}

// ClearOlderThan purges entries whose timestamp predates now-maxAge from
// both the event map and the failure list.
func (m *Monitor) ClearOlderThan(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.clock.Now().Add(-maxAge)
	removed := 0

	for id, ev := range m.events {
		if ev.Timestamp.Before(cutoff) {
			delete(m.events, id)
			removed++
		}
	}

	kept := m.failures[:0]
	for _, f := range m.failures {
		if !f.Timestamp.Before(cutoff) {
			kept = append(kept, f)
		}
	}
	m.failures = kept

	return removed
}

// Reset empties the ledger. Backs the admin clear-history endpoint.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = make(map[string]*EventRecord)
	m.failures = nil
}
