// Package clientmetrics counts driver-level events: connection pool activity
// and command round trips as seen by the MongoDB driver.
package clientmetrics

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/event"
)

// Counter names exposed by Snapshot.
const (
	ConnectionsCreated  = "connections_created"
	ConnectionsClosed   = "connections_closed"
	CheckoutsSucceeded  = "checkouts_succeeded"
	CheckoutsFailed     = "checkouts_failed"
	ConnectionsReturned = "connections_returned"
	PoolCleared         = "pool_cleared"
	CommandsStarted     = "commands_started"
	CommandsSucceeded   = "commands_succeeded"
	CommandsFailed      = "commands_failed"
	CommandTimeMicros   = "command_time_us"
	DocumentsReturned   = "documents_returned"
)

// ClientMetrics tracks driver statistics for one client.
type ClientMetrics struct {
	mu          sync.Mutex
	connectTime time.Time
	counters    map[string]int64
}

// New creates a new ClientMetrics instance.
func New() *ClientMetrics {
	return &ClientMetrics{counters: make(map[string]int64)}
}

// MarkConnected records the connection time.
func (m *ClientMetrics) MarkConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectTime = time.Now()
}

// ConnectionDuration returns the duration since the client connected.
// Returns 0 if not connected.
func (m *ClientMetrics) ConnectionDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectTime.IsZero() {
		return 0
	}
	return time.Since(m.connectTime)
}

func (m *ClientMetrics) add(name string, delta int64) {
	m.mu.Lock()
	m.counters[name] += delta
	m.mu.Unlock()
}

// AddDocuments counts documents read from drained cursors.
func (m *ClientMetrics) AddDocuments(n int64) {
	if n <= 0 {
		return
	}
	m.add(DocumentsReturned, n)
}

// PoolMonitor returns a driver pool monitor feeding these metrics.
func (m *ClientMetrics) PoolMonitor() *event.PoolMonitor {
	return &event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			switch evt.Type {
			case event.ConnectionCreated:
				m.add(ConnectionsCreated, 1)
			case event.ConnectionClosed:
				m.add(ConnectionsClosed, 1)
			case event.GetSucceeded:
				m.add(CheckoutsSucceeded, 1)
			case event.GetFailed:
				m.add(CheckoutsFailed, 1)
			case event.ConnectionReturned:
				m.add(ConnectionsReturned, 1)
			case event.PoolCleared:
				m.add(PoolCleared, 1)
			}
		},
	}
}

// CommandMonitor returns a driver command monitor feeding these metrics.
func (m *ClientMetrics) CommandMonitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Started: func(_ context.Context, _ *event.CommandStartedEvent) {
			m.add(CommandsStarted, 1)
		},
		Succeeded: func(_ context.Context, evt *event.CommandSucceededEvent) {
			m.mu.Lock()
			m.counters[CommandsSucceeded]++
			m.counters[CommandTimeMicros] += evt.Duration.Microseconds()
			m.mu.Unlock()
		},
		Failed: func(_ context.Context, evt *event.CommandFailedEvent) {
			m.mu.Lock()
			m.counters[CommandsFailed]++
			m.counters[CommandTimeMicros] += evt.Duration.Microseconds()
			m.mu.Unlock()
		},
	}
}

// Snapshot returns a copy of every counter.
func (m *ClientMetrics) Snapshot() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		out[k] = v
	}
	return out
}
