package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/torosent/mongo-bench/internal/clock"
)

// ErrInvariantViolation marks a timing sample whose end precedes its start.
var ErrInvariantViolation = errors.New("invariant violation")

// Span is one timed operation.
type Span struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the elapsed time of the span.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Sink accumulates counters and timing samples for a single worker.
type Sink struct {
	clock    clock.Clock
	counters map[string]uint64
	timings  map[string][]Span
}

// Snapshot is a deep copy of a sink's state.
type Snapshot struct {
	Counters map[string]uint64
	Timings  map[string][]Span
}

// NewSink creates an empty sink reading time from c. A nil clock uses the
// process clock.
func NewSink(c clock.Clock) *Sink {
	if c == nil {
		c = clock.Real()
	}
	return &Sink{
		clock:    c,
		counters: make(map[string]uint64),
		timings:  make(map[string][]Span),
	}
}

// Now returns a monotonic clock reading.
func (s *Sink) Now() time.Time {
	return s.clock.Now()
}

// RecordTiming appends (start, end) to the named series. A span that ends
// before it starts is rejected and not recorded.
func (s *Sink) RecordTiming(name string, start, end time.Time) error {
	if end.Before(start) {
		return fmt.Errorf("%w: %s sample ends %s before it starts", ErrInvariantViolation, name, start.Sub(end))
	}
	s.timings[name] = append(s.timings[name], Span{Start: start, End: end})
	return nil
}

// IncrementCounter adds delta to the named counter.
func (s *Sink) IncrementCounter(name string, delta uint64) {
	s.counters[name] += delta
}

// Counter returns the current value of the named counter.
func (s *Sink) Counter(name string) uint64 {
	return s.counters[name]
}

// Samples returns a copy of the named timing series.
func (s *Sink) Samples(name string) []Span {
	return append([]Span(nil), s.timings[name]...)
}

// Snapshot returns a deep copy of the sink.
func (s *Sink) Snapshot() Snapshot {
	snap := Snapshot{
		Counters: make(map[string]uint64, len(s.counters)),
		Timings:  make(map[string][]Span, len(s.timings)),
	}
	for k, v := range s.counters {
		snap.Counters[k] = v
	}
	for k, v := range s.timings {
		snap.Timings[k] = append([]Span(nil), v...)
	}
	return snap
}
