package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/mongo-bench/internal/metrics"
)

// ProgressReporter displays real-time progress updates on a single line.
type ProgressReporter struct {
	progress *metrics.Progress
	interval time.Duration
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(progress *metrics.Progress, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		progress: progress,
		interval: interval,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return
	}
	go p.run()
}

// Stop halts progress updates after printing a final line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fmt.Fprint(p.writer, FormatProgress(p.progress.Snapshot()))
		case <-p.done:
			fmt.Fprint(p.writer, FormatProgress(p.progress.Snapshot()))
			return
		}
	}
}

// FormatProgress renders one carriage-return prefixed status line.
func FormatProgress(s metrics.ProgressSnapshot) string {
	line := fmt.Sprintf("\rQueries: %d/%d (%d%%) | Failures: %d | QPS: %.1f",
		s.Done(), s.Planned, s.Percent(), s.Failed, s.OpsPerSec)
	if s.Completed > 0 {
		line += fmt.Sprintf(" | Mean: %.2fms", float64(s.MeanLatency)/float64(time.Millisecond))
	}
	return line
}
