// Package threshold evaluates pass/fail assertions against a finished run.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/torosent/mongo-bench/internal/metrics"
	"github.com/torosent/mongo-bench/internal/runner"
)

const (
	MetricDuration = "query_duration"
	MetricFailed   = "query_failed"
	MetricQueries  = "queries"
)

var thresholdPattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // query_duration, query_failed or queries
	Aggregate string  // p50, p90, p95, p99, avg, mean, min, max, rate, count
	Operator  string  // <, <=, >, >=, ==
	Value     float64 // milliseconds for query_duration
	Raw       string
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold `json:"-" yaml:"-"`
	Expr      string    `json:"threshold" yaml:"threshold"`
	Actual    float64   `json:"actual" yaml:"actual"`
	Pass      bool      `json:"pass" yaml:"pass"`
	Message   string    `json:"message" yaml:"message"`
}

// Evaluator evaluates thresholds against a run report.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the report.
func (e *Evaluator) Evaluate(report metrics.Report) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, evaluateOne(t, report))
	}
	return results
}

// AnyFailed reports whether at least one result did not pass.
func AnyFailed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return true
		}
	}
	return false
}

func evaluateOne(t Threshold, report metrics.Report) Result {
	actual, err := extractMetricValue(t, report)
	if err != nil {
		return Result{
			Threshold: t,
			Expr:      t.Raw,
			Message:   fmt.Sprintf("error: %v", err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	return Result{
		Threshold: t,
		Expr:      t.Raw,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value),
	}
}

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "query_duration:p95 < 50"   (latency percentile in ms)
// - "query_duration:avg < 20"   (mean latency in ms)
// - "query_failed:rate < 0.01"  (failed share of attempted queries)
// - "query_failed:count < 10"
// - "queries:rate > 100"        (completed queries per second)
// - "queries:count >= 1000"
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected metric:aggregate operator value, e.g. 'query_duration:p95 < 50')", s)
	}

	metric, aggregate, operator, valueStr := matches[1], matches[2], matches[3], matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %w", valueStr, err)
	}
	if !contains(metric, MetricDuration, MetricFailed, MetricQueries) {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: query_duration, query_failed, queries)", metric)
	}
	if !contains(aggregate, "p50", "p90", "p95", "p99", "avg", "mean", "min", "max", "rate", "count") {
		return Threshold{}, fmt.Errorf("unsupported aggregate: %q (supported: p50, p90, p95, p99, avg, mean, min, max, rate, count)", aggregate)
	}
	if !contains(operator, "<", "<=", ">", ">=", "==") {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var problems []string
	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			problems = append(problems, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(problems, "; "))
	}
	return result, nil
}

func contains(v string, valid ...string) bool {
	for _, candidate := range valid {
		if v == candidate {
			return true
		}
	}
	return false
}

func extractMetricValue(t Threshold, report metrics.Report) (float64, error) {
	switch t.Metric {
	case MetricDuration:
		return extractLatencyMetric(t.Aggregate, report)
	case MetricFailed:
		return extractFailureMetric(t.Aggregate, report)
	case MetricQueries:
		return extractQueryMetric(t.Aggregate, report)
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func extractLatencyMetric(aggregate string, report metrics.Report) (float64, error) {
	timing, ok := report.Timing(runner.SeriesQuery)
	if !ok || timing.Count == 0 {
		return 0, fmt.Errorf("no successful queries to measure %s", MetricDuration)
	}
	switch aggregate {
	case "p50":
		return timing.P50Ms, nil
	case "p90":
		return timing.P90Ms, nil
	case "p95":
		return timing.P95Ms, nil
	case "p99":
		return timing.P99Ms, nil
	case "avg", "mean":
		return timing.MeanMs, nil
	case "min":
		return timing.MinMs, nil
	case "max":
		return timing.MaxMs, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s", aggregate, MetricDuration)
	}
}

func extractFailureMetric(aggregate string, report metrics.Report) (float64, error) {
	failures := report.Counter(runner.CounterErrors)
	switch aggregate {
	case "count":
		return float64(failures), nil
	case "rate":
		attempted := failures + report.Counter(runner.CounterQueries)
		if attempted == 0 {
			return 0, nil
		}
		return float64(failures) / float64(attempted), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s (use 'count' or 'rate')", aggregate, MetricFailed)
	}
}

func extractQueryMetric(aggregate string, report metrics.Report) (float64, error) {
	switch aggregate {
	case "count":
		return float64(report.Counter(runner.CounterQueries)), nil
	case "rate":
		return report.OpsPerSec, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s (use 'count' or 'rate')", aggregate, MetricQueries)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	const epsilon = 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
