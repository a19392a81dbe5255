package output

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/torosent/mongo-bench/internal/config"
	"github.com/torosent/mongo-bench/internal/metrics"
	"github.com/torosent/mongo-bench/internal/threshold"
)

const lockRetryDelay = 50 * time.Millisecond

// WriteReportFile renders the report to path while holding an exclusive lock
// on path+".lock", so concurrent runs sharing a report path never interleave.
// Text format falls back to JSON since the file is meant for machines.
func WriteReportFile(ctx context.Context, path string, format config.OutputFormat, report metrics.Report, results []threshold.Result) error {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock report file: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock report file: %s is held by another process", path)
	}
	defer lock.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}

	if format != config.OutputYAML {
		format = config.OutputJSON
	}
	if err := Render(f, format, report, results); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report file: %w", err)
	}
	return f.Close()
}

// WriteHTMLFile renders the HTML report to path.
func WriteHTMLFile(path string, report metrics.Report, results []threshold.Result, metadata ReportMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create html report: %w", err)
	}
	if err := GenerateHTMLReport(f, report, results, metadata); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
