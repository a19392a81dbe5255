package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/mongo-bench/internal/metrics"
)

// Runner fans the workload out to a fixed pool of workers and merges their
// measurements once all of them have returned.
type Runner struct {
	opt Options
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt}
}

// Run executes Workers × Iterations × len(queries) operations.
//
// Failed queries never make Run fail. A panicking worker cancels the others
// and Run returns a *WorkerFatalError with an empty report, even when ctx was
// canceled as well. If cancellation stopped any worker before it finished,
// Run returns the partial report, flagged Interrupted, together with an
// error wrapping ErrInterrupted.
func (r *Runner) Run(ctx context.Context) (metrics.Report, error) {
	if err := r.opt.validate(); err != nil {
		return metrics.Report{}, fmt.Errorf("runner: %w", err)
	}
	log := r.opt.Logger
	limiter := r.opt.LimiterFactory(r.opt.RatePerSecond)

	sinks := make([]*metrics.Sink, r.opt.Workers)
	fatals := make([]*WorkerFatalError, r.opt.Workers)
	g, gctx := errgroup.WithContext(ctx)

	r.opt.Progress.Start()
	start := r.opt.Clock.Now()

	for id := 0; id < r.opt.Workers; id++ {
		sink := metrics.NewSink(r.opt.Clock)
		sinks[id] = sink
		w := &worker{
			wc:       WorkerContext{ID: id, Iterations: r.opt.Iterations, Sink: sink},
			spec:     r.opt.Workload.Clone(),
			backend:  r.opt.Backend,
			limiter:  limiter,
			clock:    r.opt.Clock,
			progress: r.opt.Progress,
			log:      log,
		}
		log.Info("Creating thread", zap.Int("worker", id))
		g.Go(func() (err error) {
			defer func() {
				if v := recover(); v != nil {
					fatals[w.wc.ID] = &WorkerFatalError{Worker: w.wc.ID, Value: v, Stack: debug.Stack()}
					err = fatals[w.wc.ID]
				}
			}()
			return w.run(gctx)
		})
	}

	log.Debug("Waiting for workers", zap.Int("workers", r.opt.Workers))
	err := g.Wait()
	elapsed := r.opt.Clock.Now().Sub(start)
	log.Debug("Workers joined", zap.Duration("elapsed", elapsed))

	// errgroup keeps only the first error, which may be a cancellation that
	// raced ahead of a panic.
	if fatal := firstFatal(fatals); fatal != nil {
		log.Error("Worker crashed",
			zap.Int("worker", fatal.Worker),
			zap.Any("panic", fatal.Value),
			zap.ByteString("stack", fatal.Stack),
		)
		return metrics.Report{}, fatal
	}

	report := r.buildReport(sinks, elapsed)
	if err != nil {
		// Workers only return early on cancellation.
		cause := context.Cause(ctx)
		if cause == nil {
			cause = err
		}
		report.Interrupted = true
		return report, fmt.Errorf("%w: %w", ErrInterrupted, cause)
	}
	return report, nil
}

func firstFatal(fatals []*WorkerFatalError) *WorkerFatalError {
	for _, f := range fatals {
		if f != nil {
			return f
		}
	}
	return nil
}

func (r *Runner) buildReport(sinks []*metrics.Sink, elapsed time.Duration) metrics.Report {
	report := metrics.Aggregate(sinks...)
	report.RunID = ulid.Make().String()
	report.Workers = r.opt.Workers
	report.IterationsPerWorker = r.opt.Iterations
	report.QueriesPerIteration = r.opt.Workload.Len()
	report.SetDuration(elapsed, SeriesQuery)

	report.PerWorker = make([]metrics.WorkerSummary, 0, len(sinks))
	for id, sink := range sinks {
		ws := metrics.WorkerSummary{
			ID:      id,
			Queries: sink.Counter(CounterQueries),
			Errors:  sink.Counter(CounterErrors),
		}
		if samples := sink.Samples(SeriesQuery); len(samples) > 0 {
			var sum time.Duration
			for _, s := range samples {
				sum += s.Duration()
			}
			ws.MeanMs = float64(sum/time.Duration(len(samples))) / float64(time.Millisecond)
		}
		report.PerWorker = append(report.PerWorker, ws)
	}

	if r.opt.Driver != nil {
		report.Driver = r.opt.Driver.Snapshot()
	}
	return report
}
