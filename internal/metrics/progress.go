package metrics

import (
	"sync/atomic"
	"time"
)

// Progress tracks in-flight totals for live displays. Workers update it with
// atomic adds only, so it never introduces a synchronization point between
// them.
type Progress struct {
	planned    atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
	latencySum atomic.Int64
	start      atomic.Int64
}

// ProgressSnapshot is a point-in-time view of a Progress tracker.
type ProgressSnapshot struct {
	Planned     int64
	Completed   int64
	Failed      int64
	Elapsed     time.Duration
	OpsPerSec   float64
	MeanLatency time.Duration
}

// NewProgress returns a tracker expecting planned operations in total.
func NewProgress(planned int64) *Progress {
	p := &Progress{}
	p.planned.Store(planned)
	p.start.Store(time.Now().UnixNano())
	return p
}

// Start resets the reference time used to compute throughput.
func (p *Progress) Start() {
	if p == nil {
		return
	}
	p.start.Store(time.Now().UnixNano())
}

// Observe records one finished operation.
func (p *Progress) Observe(latency time.Duration, err error) {
	if p == nil {
		return
	}
	if err != nil {
		p.failed.Add(1)
		return
	}
	p.completed.Add(1)
	p.latencySum.Add(int64(latency))
}

// Snapshot returns the current totals.
func (p *Progress) Snapshot() ProgressSnapshot {
	if p == nil {
		return ProgressSnapshot{}
	}
	snap := ProgressSnapshot{
		Planned:   p.planned.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Elapsed:   time.Since(time.Unix(0, p.start.Load())),
	}
	if snap.Completed > 0 {
		snap.MeanLatency = time.Duration(p.latencySum.Load() / snap.Completed)
	}
	if secs := snap.Elapsed.Seconds(); secs > 0 {
		snap.OpsPerSec = float64(snap.Completed+snap.Failed) / secs
	}
	return snap
}

// Done returns the number of finished operations, successful or not.
func (s ProgressSnapshot) Done() int64 {
	return s.Completed + s.Failed
}

// Percent returns completion in the range [0, 100].
func (s ProgressSnapshot) Percent() int {
	if s.Planned <= 0 {
		return 0
	}
	pct := int(s.Done() * 100 / s.Planned)
	if pct > 100 {
		pct = 100
	}
	return pct
}
