package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/mongo-bench/internal/config"
	"github.com/torosent/mongo-bench/internal/dashboard"
	"github.com/torosent/mongo-bench/internal/logging"
	"github.com/torosent/mongo-bench/internal/metrics"
	"github.com/torosent/mongo-bench/internal/mongoclient"
	"github.com/torosent/mongo-bench/internal/output"
	"github.com/torosent/mongo-bench/internal/runner"
	"github.com/torosent/mongo-bench/internal/threshold"
	"github.com/torosent/mongo-bench/internal/tracing"
	"github.com/torosent/mongo-bench/internal/workload"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

// ErrThresholdsFailed is returned when at least one threshold did not pass.
var ErrThresholdsFailed = errors.New("thresholds failed")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}
	spec, err := buildWorkload(cfg)
	if err != nil {
		return err
	}

	// The dashboard owns the terminal, so only the log file (if any) sees logs.
	logOut := stderr
	if cfg.Dashboard {
		logOut = io.Discard
	}
	logger, closeLog, err := logging.New(cfg.Log, logOut)
	if err != nil {
		return err
	}
	defer closeLog()

	provider, err := tracing.Init(ctx, cfg.Tracing, tracing.WithStdoutWriter(stderr))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracing shutdown failed", zap.Error(err))
		}
	}()

	client, err := mongoclient.Connect(ctx, mongoclient.Options{
		URI:            cfg.URL,
		Database:       cfg.Database,
		Collection:     cfg.Collection,
		AppName:        cfg.AppName,
		ConnectTimeout: cfg.ConnectTimeout,
		DrainCursor:    cfg.DrainCursor,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Warn("Disconnect failed", zap.Error(err))
		}
	}()

	var backend runner.Backend = runner.WithTimeout(client, cfg.OperationTimeout)
	if provider.Enabled() {
		backend = runner.WithTracing(backend, provider.Tracer(), cfg.Collection)
	}

	planned := int64(cfg.Threads) * int64(cfg.Iterations) * int64(spec.Len())
	progress := metrics.NewProgress(planned)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	stopViews, err := startLiveViews(cfg, spec, progress, client.Metrics(), cancelRun, stderr)
	if err != nil {
		return err
	}

	r := runner.New(runner.Options{
		Workers:       cfg.Threads,
		Iterations:    cfg.Iterations,
		Workload:      spec,
		Backend:       backend,
		RatePerSecond: cfg.Rate,
		Logger:        logger,
		Progress:      progress,
		Driver:        client.Metrics(),
	})
	report, runErr := r.Run(runCtx)
	stopViews()

	var fatal *runner.WorkerFatalError
	if errors.As(runErr, &fatal) {
		return runErr
	}

	results := threshold.NewEvaluator(thresholds).Evaluate(report)
	if err := output.Render(stdout, cfg.OutputFormat, report, results); err != nil {
		return err
	}
	if cfg.ReportFile != "" {
		if err := output.WriteReportFile(context.Background(), cfg.ReportFile, cfg.OutputFormat, report, results); err != nil {
			return err
		}
	}
	if cfg.HTMLOutput != "" {
		if err := output.WriteHTMLFile(cfg.HTMLOutput, report, results, reportMetadata(cfg, spec)); err != nil {
			return err
		}
		logger.Info("HTML report written", zap.String("path", cfg.HTMLOutput))
	}

	if runErr != nil {
		return runErr
	}
	if threshold.AnyFailed(results) {
		return fmt.Errorf("%w: %d of %d", ErrThresholdsFailed, countFailed(results), len(results))
	}
	return nil
}

func buildWorkload(cfg *config.Config) (*workload.Spec, error) {
	var (
		queries []string
		err     error
	)
	if cfg.QueryFile != "" {
		queries, err = workload.LoadFile(cfg.QueryFile)
	} else {
		queries, err = workload.ParseQueries(cfg.Query)
	}
	if err != nil {
		return nil, err
	}
	return workload.Build(queries,
		workload.WithSort(cfg.Sort),
		workload.WithCollation(cfg.Collation),
		workload.WithLimit(cfg.Limit),
		workload.WithPauseMillis(cfg.PauseMillis),
	)
}

// startLiveViews starts the dashboard or the progress line and returns the
// function that stops whichever was started.
func startLiveViews(cfg *config.Config, spec *workload.Spec, progress *metrics.Progress, driver dashboard.DriverStats, cancel context.CancelFunc, stderr io.Writer) (func(), error) {
	switch {
	case cfg.Dashboard:
		dash, err := dashboard.New(progress, driver, dashboard.RunConfig{
			Namespace:  cfg.Database + "." + cfg.Collection,
			Threads:    cfg.Threads,
			Iterations: cfg.Iterations,
			Queries:    spec.Len(),
			PauseMs:    cfg.PauseMillis,
			Rate:       cfg.Rate,
			Limit:      cfg.Limit,
			ConfigFile: cfg.ConfigFile,
		}, cancel)
		if err != nil {
			return nil, err
		}
		dash.Start()
		return dash.Stop, nil
	case cfg.Progress:
		reporter := output.NewProgressReporter(progress, progressInterval, stderr)
		reporter.Start()
		return func() {
			reporter.Stop()
			fmt.Fprintln(stderr)
		}, nil
	default:
		return func() {}, nil
	}
}

func reportMetadata(cfg *config.Config, spec *workload.Spec) output.ReportMetadata {
	queries := make([]string, spec.Len())
	for i := range queries {
		queries[i] = spec.Raw(i)
	}
	return output.ReportMetadata{
		Database:   cfg.Database,
		Collection: cfg.Collection,
		Queries:    queries,
	}
}

func countFailed(results []threshold.Result) int {
	n := 0
	for _, r := range results {
		if !r.Pass {
			n++
		}
	}
	return n
}
