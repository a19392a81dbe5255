package runner

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torosent/mongo-bench/internal/clock"
	"github.com/torosent/mongo-bench/internal/metrics"
	"github.com/torosent/mongo-bench/internal/workload"
)

// Metric names written by workers.
const (
	SeriesQuery        = "query"
	CounterQueries     = "query_count"
	CounterErrors      = "query_error_count"
	CounterErrorPrefix = "query_error."
	CounterClockSkew   = "query_clock_skew_count"
)

// WorkerContext is the per-worker state created by the orchestrator.
type WorkerContext struct {
	ID         int
	Iterations int
	Sink       *metrics.Sink
}

type worker struct {
	wc       WorkerContext
	spec     *workload.Spec
	backend  Backend
	limiter  *rate.Limiter
	clock    clock.Clock
	progress *metrics.Progress
	log      *zap.Logger
}

// run executes Iterations passes over the workload. It returns early only
// when ctx is canceled; query failures are recorded and skipped.
func (w *worker) run(ctx context.Context) error {
	total := w.wc.Iterations * w.spec.Len()
	pause := w.spec.Pause()
	done := 0

	for i := 0; i < w.wc.Iterations; i++ {
		for q := 0; q < w.spec.Len(); q++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := w.execute(ctx, i, q); err != nil {
				return err
			}
			done++
			if pause > 0 && done < total {
				if err := w.clock.Sleep(ctx, pause); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// execute runs one query and records its outcome. The returned error is
// non-nil only when ctx was canceled; the abandoned query is not counted.
func (w *worker) execute(ctx context.Context, iteration, index int) error {
	sink := w.wc.Sink

	query, err := w.spec.Query(index)
	if err != nil {
		w.fail(iteration, index, err)
		return nil
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}

	start := sink.Now()
	err = w.backend.Execute(ctx, query)
	end := sink.Now()

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.fail(iteration, index, err)
		return nil
	}

	// A rejected sample is counted apart so samples and query_count agree.
	if rerr := sink.RecordTiming(SeriesQuery, start, end); rerr != nil {
		w.log.Warn("Dropped timing sample",
			zap.Int("worker", w.wc.ID),
			zap.Int("iteration", iteration),
			zap.Int("query", index),
			zap.Error(rerr),
		)
		sink.IncrementCounter(CounterClockSkew, 1)
		return nil
	}
	sink.IncrementCounter(CounterQueries, 1)

	elapsed := end.Sub(start)
	w.progress.Observe(elapsed, nil)
	if ce := w.log.Check(zap.DebugLevel, "Completed query attempt"); ce != nil {
		ce.Write(
			zap.Int("worker", w.wc.ID),
			zap.Int("iteration", iteration),
			zap.Int("query", index),
			zap.Float64("elapsed_ms", float64(elapsed.Microseconds())/1000),
		)
	}
	return nil
}

func (w *worker) fail(iteration, index int, err error) {
	opErr := &OperationError{
		Worker:    w.wc.ID,
		Iteration: iteration,
		Query:     index,
		Class:     Classify(err),
		Err:       err,
	}
	w.log.Error("Query failed",
		zap.Int("worker", opErr.Worker),
		zap.Int("iteration", opErr.Iteration),
		zap.Int("query", opErr.Query),
		zap.String("class", opErr.Class),
		zap.Error(opErr.Err),
	)
	w.wc.Sink.IncrementCounter(CounterErrors, 1)
	w.wc.Sink.IncrementCounter(CounterErrorPrefix+opErr.Class, 1)
	w.progress.Observe(0, opErr)
}
