package runner

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torosent/mongo-bench/internal/clock"
	"github.com/torosent/mongo-bench/internal/metrics"
	"github.com/torosent/mongo-bench/internal/workload"
)

// Backend executes a single query. Implementations must be safe for
// concurrent use; every worker shares the same Backend.
type Backend interface {
	Execute(ctx context.Context, q workload.Query) error
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, q workload.Query) error

func (f BackendFunc) Execute(ctx context.Context, q workload.Query) error {
	return f(ctx, q)
}

// DriverStats exposes client-side counters attached to the final report.
type DriverStats interface {
	Snapshot() map[string]int64
}

// Options configure the Runner.
type Options struct {
	Workers        int            // number of worker goroutines
	Iterations     int            // passes over the workload per worker
	Workload       *workload.Spec // queries to execute (required)
	Backend        Backend        // query executor (required)
	RatePerSecond  int            // global operations per second cap (0 means unlimited)
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
	Logger         *zap.Logger
	Clock          clock.Clock
	Progress       *metrics.Progress
	Driver         DriverStats
}

func (o *Options) normalize() {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Iterations <= 0 {
		o.Iterations = 1
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return nil
			}
			// Burst of one keeps the cap strict across workers.
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func (o Options) validate() error {
	var errs []error
	if o.Workload == nil || o.Workload.Len() == 0 {
		errs = append(errs, errors.New("workload is required"))
	}
	if o.Backend == nil {
		errs = append(errs, errors.New("backend is required"))
	}
	return errors.Join(errs...)
}
