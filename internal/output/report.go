package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/torosent/mongo-bench/internal/config"
	"github.com/torosent/mongo-bench/internal/metrics"
	"github.com/torosent/mongo-bench/internal/runner"
	"github.com/torosent/mongo-bench/internal/threshold"
)

// Summary is the structured document written for json and yaml output.
type Summary struct {
	metrics.Report `yaml:",inline"`
	Thresholds     []threshold.Result `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// Render writes the report in the requested format.
func Render(w io.Writer, format config.OutputFormat, report metrics.Report, results []threshold.Result) error {
	switch format {
	case config.OutputJSON:
		return PrintJSONReport(w, report, results)
	case config.OutputYAML:
		return PrintYAMLReport(w, report, results)
	case config.OutputText, "":
		PrintReport(w, report, results)
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, report metrics.Report, results []threshold.Result) {
	queries := report.Counter(runner.CounterQueries)
	failures := report.Counter(runner.CounterErrors)

	fmt.Fprintln(w, "\n--- Benchmark Results ---")
	if report.RunID != "" {
		fmt.Fprintf(w, "Run ID:            %s\n", report.RunID)
	}
	fmt.Fprintf(w, "Threads:           %d\n", report.Workers)
	fmt.Fprintf(w, "Iterations:        %d\n", report.IterationsPerWorker)
	fmt.Fprintf(w, "Queries/iteration: %d\n", report.QueriesPerIteration)
	fmt.Fprintf(w, "Completed:         %d\n", queries)
	fmt.Fprintf(w, "Failed:            %d\n", failures)
	if skew := report.Counter(runner.CounterClockSkew); skew > 0 {
		fmt.Fprintf(w, "Dropped samples:   %d\n", skew)
	}
	fmt.Fprintf(w, "Duration:          %s\n", report.Duration)
	fmt.Fprintf(w, "Queries/sec:       %.2f\n", report.OpsPerSec)
	if report.Interrupted {
		fmt.Fprintln(w, "Interrupted:       yes (partial results)")
	}

	if timing, ok := report.Timing(runner.SeriesQuery); ok && timing.Count > 0 {
		fmt.Fprintln(w, "\nLatency:")
		fmt.Fprintf(w, "  Min:             %s\n", timing.Min)
		fmt.Fprintf(w, "  Max:             %s\n", timing.Max)
		fmt.Fprintf(w, "  Mean:            %s\n", timing.Mean)
		fmt.Fprintf(w, "  StdDev:          %s\n", timing.StdDev)
		fmt.Fprintf(w, "  P50:             %s\n", timing.P50)
		fmt.Fprintf(w, "  P90:             %s\n", timing.P90)
		fmt.Fprintf(w, "  P95:             %s\n", timing.P95)
		fmt.Fprintf(w, "  P99:             %s\n", timing.P99)
	}

	if rows := metrics.FlattenErrorCounters(report.Counters, runner.CounterErrorPrefix); len(rows) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, row := range rows {
			fmt.Fprintf(w, "  %s: %d\n", metrics.FriendlyErrorClass(row.Class), row.Count)
		}
	}

	if len(report.PerWorker) > 0 {
		fmt.Fprintln(w, "\nPer Thread:")
		for _, ws := range report.PerWorker {
			fmt.Fprintf(w, "  - thread %d: queries=%d, errors=%d, mean=%.2fms\n",
				ws.ID, ws.Queries, ws.Errors, ws.MeanMs)
		}
	}

	if len(report.Driver) > 0 {
		fmt.Fprintln(w, "\nDriver:")
		for _, key := range sortedKeys(report.Driver) {
			fmt.Fprintf(w, "  %s: %d\n", key, report.Driver[key])
		}
	}

	if len(results) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, r := range results {
			fmt.Fprintf(w, "  %s\n", r.Message)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, report metrics.Report, results []threshold.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Summary{Report: report, Thresholds: results})
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, report metrics.Report, results []threshold.Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Summary{Report: report, Thresholds: results}); err != nil {
		return err
	}
	return enc.Close()
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
