package runner_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/torosent/mongo-bench/internal/clock"
	"github.com/torosent/mongo-bench/internal/metrics"
	"github.com/torosent/mongo-bench/internal/runner"
	"github.com/torosent/mongo-bench/internal/workload"
)

// fakeBackend advances a fake clock by latency on every call and fails the
// queries listed in failOn.
type fakeBackend struct {
	clock   *clock.Fake
	latency time.Duration
	failOn  map[int]bool
	calls   atomic.Int64
}

func (f *fakeBackend) Execute(ctx context.Context, q workload.Query) error {
	f.calls.Add(1)
	if f.clock != nil {
		f.clock.Advance(f.latency)
	}
	if f.failOn[q.Index] {
		return errors.New("server selection error")
	}
	return nil
}

func mustSpec(t *testing.T, queries []string, opts ...workload.Option) *workload.Spec {
	t.Helper()
	spec, err := workload.Build(queries, opts...)
	if err != nil {
		t.Fatalf("workload.Build() error = %v", err)
	}
	return spec
}

func newFakeClock() *clock.Fake {
	return clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestRunExactCounts(t *testing.T) {
	tests := []struct {
		name       string
		workers    int
		iterations int
		queries    []string
	}{
		{"single", 1, 1, []string{`{"a":1}`}},
		{"three by two", 3, 2, []string{`{"a":1}`, `{"b":2}`}},
		{"wide", 8, 5, []string{`{"a":1}`, `{"b":2}`, `{"c":3}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := newFakeClock()
			backend := &fakeBackend{clock: fc, latency: time.Millisecond}
			r := runner.New(runner.Options{
				Workers:    tt.workers,
				Iterations: tt.iterations,
				Workload:   mustSpec(t, tt.queries),
				Backend:    backend,
				Clock:      fc,
			})
			report, err := r.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			want := uint64(tt.workers * tt.iterations * len(tt.queries))
			if got := report.Counter(runner.CounterQueries); got != want {
				t.Errorf("query_count = %d, want %d", got, want)
			}
			q, ok := report.Timing(runner.SeriesQuery)
			if !ok || uint64(q.Count) != want {
				t.Errorf("query samples = %d, want %d", q.Count, want)
			}
			if report.Counter(runner.CounterErrors) != 0 {
				t.Errorf("unexpected errors: %d", report.Counter(runner.CounterErrors))
			}
			if q.Min < time.Millisecond {
				t.Errorf("min sample = %s, want >= 1ms", q.Min)
			}
			if uint64(backend.calls.Load()) != want {
				t.Errorf("backend calls = %d, want %d", backend.calls.Load(), want)
			}
			if report.Workers != tt.workers || report.IterationsPerWorker != tt.iterations || report.QueriesPerIteration != len(tt.queries) {
				t.Errorf("report metadata = %d/%d/%d", report.Workers, report.IterationsPerWorker, report.QueriesPerIteration)
			}
			if len(report.PerWorker) != tt.workers {
				t.Errorf("per-worker rows = %d, want %d", len(report.PerWorker), tt.workers)
			}
			if report.RunID == "" {
				t.Error("run id not set")
			}
			if report.Interrupted {
				t.Error("report flagged interrupted")
			}
		})
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	fc := newFakeClock()
	backend := &fakeBackend{clock: fc, latency: time.Millisecond, failOn: map[int]bool{1: true}}
	core, logs := observer.New(zapcore.ErrorLevel)

	r := runner.New(runner.Options{
		Workers:    3,
		Iterations: 2,
		Workload:   mustSpec(t, []string{`{"name":"A"}`, `{"name":"B"}`}),
		Backend:    backend,
		Clock:      fc,
		Logger:     zap.New(core),
	})
	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := report.Counter(runner.CounterQueries); got != 6 {
		t.Errorf("query_count = %d, want 6", got)
	}
	if got := report.Counter(runner.CounterErrors); got != 6 {
		t.Errorf("query_error_count = %d, want 6", got)
	}
	if got := report.Counter(runner.CounterErrorPrefix + runner.ClassOther); got != 6 {
		t.Errorf("query_error.other = %d, want 6", got)
	}
	if q, _ := report.Timing(runner.SeriesQuery); q.Count != 6 {
		t.Errorf("query samples = %d, want 6", q.Count)
	}
	for _, ws := range report.PerWorker {
		if ws.Queries != 2 || ws.Errors != 2 {
			t.Errorf("worker %d = %d ok / %d failed, want 2/2", ws.ID, ws.Queries, ws.Errors)
		}
	}

	failures := logs.FilterMessage("Query failed").All()
	if len(failures) != 6 {
		t.Fatalf("logged failures = %d, want 6", len(failures))
	}
	fields := failures[0].ContextMap()
	if fields["query"] != int64(1) || fields["class"] != runner.ClassOther {
		t.Errorf("failure fields = %v", fields)
	}
}

func TestRunConversionFailureCounted(t *testing.T) {
	fc := newFakeClock()
	backend := &fakeBackend{clock: fc, latency: time.Millisecond}
	r := runner.New(runner.Options{
		Workers:    2,
		Iterations: 3,
		Workload:   mustSpec(t, []string{`{"ok":true}`, `{"_id":{"$oid":"zz"}}`}),
		Backend:    backend,
		Clock:      fc,
	})
	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := report.Counter(runner.CounterErrorPrefix + runner.ClassConversion); got != 6 {
		t.Errorf("conversion failures = %d, want 6", got)
	}
	if got := report.Counter(runner.CounterQueries); got != 6 {
		t.Errorf("query_count = %d, want 6", got)
	}
	if backend.calls.Load() != 6 {
		t.Errorf("backend called %d times, unconvertible queries must not reach it", backend.calls.Load())
	}
}

func TestRunPacingLowerBound(t *testing.T) {
	const pause = 5 * time.Millisecond
	fc := newFakeClock()
	backend := &fakeBackend{clock: fc, latency: time.Millisecond}
	r := runner.New(runner.Options{
		Workers:    1,
		Iterations: 3,
		Workload:   mustSpec(t, []string{`{"a":1}`, `{"b":1}`}, workload.WithPauseMillis(5)),
		Backend:    backend,
		Clock:      fc,
	})
	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	slept, sleeps := fc.Slept()
	if sleeps != 5 || slept != 5*pause {
		t.Errorf("slept %s over %d calls, want %s over 5", slept, sleeps, 5*pause)
	}
	if report.Duration < 5*pause {
		t.Errorf("run duration = %s, want >= %s", report.Duration, 5*pause)
	}
}

func TestRunPausesAfterConversionFailures(t *testing.T) {
	fc := newFakeClock()
	r := runner.New(runner.Options{
		Workers:    1,
		Iterations: 2,
		Workload:   mustSpec(t, []string{`{"_id":{"$oid":"zz"}}`, `{"b":1}`}, workload.WithPauseMillis(5)),
		Backend:    &fakeBackend{clock: fc, latency: time.Millisecond},
		Clock:      fc,
	})
	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := report.Counter(runner.CounterErrorPrefix + runner.ClassConversion); got != 2 {
		t.Fatalf("conversion failures = %d, want 2", got)
	}
	// Attempts are paced the same whether they failed or not.
	if _, sleeps := fc.Slept(); sleeps != 3 {
		t.Errorf("sleeps = %d, want 3", sleeps)
	}
}

func TestRunRecordsClockSkew(t *testing.T) {
	fc := newFakeClock()
	backend := runner.BackendFunc(func(ctx context.Context, q workload.Query) error {
		fc.Set(fc.Now().Add(-time.Second))
		return nil
	})
	core, logs := observer.New(zapcore.WarnLevel)
	r := runner.New(runner.Options{
		Workers:    1,
		Iterations: 2,
		Workload:   mustSpec(t, []string{`{}`}),
		Backend:    backend,
		Clock:      fc,
		Logger:     zap.New(core),
	})
	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := report.Counter(runner.CounterClockSkew); got != 2 {
		t.Errorf("clock skew count = %d, want 2", got)
	}
	if got := report.Counter(runner.CounterQueries); got != 0 {
		t.Errorf("query_count = %d, want 0", got)
	}
	if n := logs.FilterMessage("Dropped timing sample").Len(); n != 2 {
		t.Errorf("warnings = %d, want 2", n)
	}
}

func TestRunWorkerPanicIsFatal(t *testing.T) {
	var calls atomic.Int64
	backend := runner.BackendFunc(func(ctx context.Context, q workload.Query) error {
		if calls.Add(1) == 3 {
			panic("driver exploded")
		}
		return nil
	})
	r := runner.New(runner.Options{
		Workers:    4,
		Iterations: 1000,
		Workload:   mustSpec(t, []string{`{}`}),
		Backend:    backend,
	})
	_, err := r.Run(context.Background())

	var fatal *runner.WorkerFatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected WorkerFatalError, got %v", err)
	}
	if fatal.Value != "driver exploded" || len(fatal.Stack) == 0 {
		t.Errorf("fatal = %+v", fatal)
	}
	if calls.Load() >= 4000 {
		t.Errorf("remaining workers were not stopped: %d calls", calls.Load())
	}
}

func TestRunInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int64
	backend := runner.BackendFunc(func(ctx context.Context, q workload.Query) error {
		if calls.Add(1) == 10 {
			cancel()
		}
		return nil
	})
	r := runner.New(runner.Options{
		Workers:    2,
		Iterations: 1000,
		Workload:   mustSpec(t, []string{`{}`}),
		Backend:    backend,
	})
	report, err := r.Run(ctx)

	if !errors.Is(err, runner.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected cause context.Canceled, got %v", err)
	}
	if !report.Interrupted {
		t.Error("report not flagged interrupted")
	}
	got := report.Counter(runner.CounterQueries)
	if got == 0 || got >= 2000 {
		t.Errorf("query_count = %d, want a partial count", got)
	}
	if q, _ := report.Timing(runner.SeriesQuery); uint64(q.Count) != got {
		t.Errorf("samples = %d, query_count = %d", q.Count, got)
	}
}

func TestRunWorkerPanicAfterCancelIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int64
	backend := runner.BackendFunc(func(ctx context.Context, q workload.Query) error {
		if calls.Add(1) == 1 {
			// Panic only after the other worker has stopped on cancellation.
			<-ctx.Done()
			time.Sleep(50 * time.Millisecond)
			panic("cursor drain exploded")
		}
		cancel()
		return nil
	})
	r := runner.New(runner.Options{
		Workers:    2,
		Iterations: 10,
		Workload:   mustSpec(t, []string{`{}`}),
		Backend:    backend,
	})
	_, err := r.Run(ctx)

	var fatal *runner.WorkerFatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected WorkerFatalError, got %v", err)
	}
	if fatal.Value != "cursor drain exploded" {
		t.Errorf("fatal = %+v", fatal)
	}
}

// cancelingDriver cancels the run context when the report asks for driver
// counters, which happens after every worker has returned.
type cancelingDriver struct{ cancel context.CancelFunc }

func (d cancelingDriver) Snapshot() map[string]int64 {
	d.cancel()
	return nil
}

func TestRunCancelAfterCompletionIsNotInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := runner.New(runner.Options{
		Workers:    2,
		Iterations: 3,
		Workload:   mustSpec(t, []string{`{"a":1}`, `{"b":2}`}),
		Backend:    &fakeBackend{},
		Driver:     cancelingDriver{cancel: cancel},
	})
	report, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ctx.Err() == nil {
		t.Fatal("driver snapshot was not taken")
	}
	if report.Interrupted {
		t.Error("complete run flagged interrupted")
	}
	if got := report.Counter(runner.CounterQueries); got != 12 {
		t.Errorf("query_count = %d, want 12", got)
	}
}

func TestRunInterruptedDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := runner.BackendFunc(func(context.Context, workload.Query) error {
		cancel()
		return nil
	})
	r := runner.New(runner.Options{
		Workers:    1,
		Iterations: 5,
		Workload:   mustSpec(t, []string{`{}`}, workload.WithPauseMillis(60_000)),
		Backend:    backend,
	})

	start := time.Now()
	report, err := r.Run(ctx)
	if !errors.Is(err, runner.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("pause was not interrupted")
	}
	if report.Counter(runner.CounterQueries) != 1 {
		t.Errorf("query_count = %d, want 1", report.Counter(runner.CounterQueries))
	}
}

func TestRunLogsWorkerCreation(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := runner.New(runner.Options{
		Workers:    4,
		Iterations: 1,
		Workload:   mustSpec(t, []string{`{}`}),
		Backend:    &fakeBackend{},
		Logger:     zap.New(core),
	})
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n := logs.FilterMessage("Creating thread").Len(); n != 4 {
		t.Errorf("creation logs = %d, want 4", n)
	}
	if n := logs.FilterMessage("Completed query attempt").Len(); n != 0 {
		t.Errorf("debug logs leaked at info level: %d", n)
	}
}

func TestRunDebugLogsCompletedQueries(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := runner.New(runner.Options{
		Workers:    2,
		Iterations: 2,
		Workload:   mustSpec(t, []string{`{}`, `{}`}),
		Backend:    &fakeBackend{},
		Logger:     zap.New(core),
	})
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n := logs.FilterMessage("Completed query attempt").Len(); n != 8 {
		t.Errorf("completed logs = %d, want 8", n)
	}
}

func TestRunRequiresWorkloadAndBackend(t *testing.T) {
	if _, err := runner.New(runner.Options{Workers: 1}).Run(context.Background()); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRunUsesLimiterFactory(t *testing.T) {
	var gotRPS int
	r := runner.New(runner.Options{
		Workers:       2,
		Iterations:    3,
		Workload:      mustSpec(t, []string{`{}`}),
		Backend:       &fakeBackend{},
		RatePerSecond: 250,
		LimiterFactory: func(rps int) *rate.Limiter {
			gotRPS = rps
			return rate.NewLimiter(rate.Inf, 1)
		},
	})
	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if gotRPS != 250 {
		t.Errorf("limiter factory rps = %d, want 250", gotRPS)
	}
	if report.Counter(runner.CounterQueries) != 6 {
		t.Errorf("query_count = %d, want 6", report.Counter(runner.CounterQueries))
	}
}

type staticDriver map[string]int64

func (s staticDriver) Snapshot() map[string]int64 { return s }

func TestRunReportsProgressAndDriverStats(t *testing.T) {
	progress := metrics.NewProgress(6)
	r := runner.New(runner.Options{
		Workers:    2,
		Iterations: 3,
		Workload:   mustSpec(t, []string{`{}`}),
		Backend:    &fakeBackend{},
		Progress:   progress,
		Driver:     staticDriver{"commands_started": 6},
	})
	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	snap := progress.Snapshot()
	if snap.Completed != 6 || snap.Percent() != 100 {
		t.Errorf("progress = %+v", snap)
	}
	if report.Driver["commands_started"] != 6 {
		t.Errorf("driver stats = %v", report.Driver)
	}
}
