package threshold

import (
	"strings"
	"testing"

	"github.com/torosent/mongo-bench/internal/metrics"
)

func sampleReport() metrics.Report {
	return metrics.Report{
		Counters: map[string]uint64{
			"query_count":       950,
			"query_error_count": 50,
		},
		Timings: map[string]metrics.TimingSummary{
			"query": {
				Count:  950,
				MinMs:  10.5,
				MaxMs:  500.25,
				MeanMs: 100.75,
				P50Ms:  80.5,
				P90Ms:  200.25,
				P95Ms:  300.5,
				P99Ms:  400.5,
			},
		},
		OpsPerSec: 123.45,
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Threshold
		wantError bool
	}{
		{
			name:  "p95 latency",
			input: "query_duration:p95 < 50",
			want:  Threshold{Metric: "query_duration", Aggregate: "p95", Operator: "<", Value: 50, Raw: "query_duration:p95 < 50"},
		},
		{
			name:  "failure rate",
			input: "query_failed:rate < 0.01",
			want:  Threshold{Metric: "query_failed", Aggregate: "rate", Operator: "<", Value: 0.01, Raw: "query_failed:rate < 0.01"},
		},
		{
			name:  "throughput without spaces",
			input: "  queries:rate>100 ",
			want:  Threshold{Metric: "queries", Aggregate: "rate", Operator: ">", Value: 100, Raw: "queries:rate>100"},
		},
		{
			name:  "mean alias",
			input: "query_duration:mean <= 20",
			want:  Threshold{Metric: "query_duration", Aggregate: "mean", Operator: "<=", Value: 20, Raw: "query_duration:mean <= 20"},
		},
		{name: "empty string", input: "", wantError: true},
		{name: "missing operator", input: "query_duration:p95 50", wantError: true},
		{name: "unknown metric", input: "http_req_duration:p95 < 500", wantError: true},
		{name: "unknown aggregate", input: "query_duration:p85 < 500", wantError: true},
		{name: "unknown operator", input: "query_duration:p95 << 500", wantError: true},
		{name: "value not a number", input: "query_duration:p95 < abc", wantError: true},
		{name: "value with two dots", input: "query_duration:p95 < 1.2.3", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantError {
				t.Fatalf("Parse() error = %v, wantError %v", err, tt.wantError)
			}
			if !tt.wantError && got != tt.want {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseMultiple(t *testing.T) {
	got, err := ParseMultiple([]string{
		"query_duration:p95 < 50",
		"query_failed:rate < 0.01",
		"queries:rate > 100",
	})
	if err != nil {
		t.Fatalf("ParseMultiple() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}

	if got, err := ParseMultiple(nil); err != nil || got != nil {
		t.Errorf("ParseMultiple(nil) = %v, %v", got, err)
	}

	if _, err := ParseMultiple([]string{"query_duration:p95 < 50", "nonsense"}); err == nil {
		t.Error("expected error for invalid entry")
	}
}

func TestEvaluator(t *testing.T) {
	report := sampleReport()

	tests := []struct {
		name       string
		thresholds []string
		wantPass   []bool
	}{
		{
			name:       "all pass",
			thresholds: []string{"query_duration:p99 < 500", "query_failed:rate < 0.06", "queries:rate > 50"},
			wantPass:   []bool{true, true, true},
		},
		{
			name:       "some fail",
			thresholds: []string{"query_duration:p99 < 300", "query_failed:rate < 0.01", "queries:rate > 50"},
			wantPass:   []bool{false, false, true},
		},
		{
			name:       "percentiles",
			thresholds: []string{"query_duration:p50 < 100", "query_duration:p90 < 250", "query_duration:p95 <= 300.5"},
			wantPass:   []bool{true, true, true},
		},
		{
			name:       "mean min max",
			thresholds: []string{"query_duration:avg < 150", "query_duration:max < 600", "query_duration:min > 5"},
			wantPass:   []bool{true, true, true},
		},
		{
			name:       "counts",
			thresholds: []string{"query_failed:count == 50", "queries:count >= 950"},
			wantPass:   []bool{true, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thresholds, err := ParseMultiple(tt.thresholds)
			if err != nil {
				t.Fatalf("ParseMultiple() error = %v", err)
			}
			results := NewEvaluator(thresholds).Evaluate(report)
			if len(results) != len(tt.wantPass) {
				t.Fatalf("got %d results, want %d", len(results), len(tt.wantPass))
			}
			for i, result := range results {
				if result.Pass != tt.wantPass[i] {
					t.Errorf("threshold[%d] %q: pass=%v, want %v (actual=%.4f)",
						i, result.Expr, result.Pass, tt.wantPass[i], result.Actual)
				}
			}
			wantFailed := false
			for _, p := range tt.wantPass {
				wantFailed = wantFailed || !p
			}
			if AnyFailed(results) != wantFailed {
				t.Errorf("AnyFailed() = %v, want %v", AnyFailed(results), wantFailed)
			}
		})
	}
}

func TestEvaluatorEmpty(t *testing.T) {
	if got := NewEvaluator(nil).Evaluate(sampleReport()); got != nil {
		t.Errorf("Evaluate() = %v, want nil", got)
	}
	if AnyFailed(nil) {
		t.Error("AnyFailed(nil) = true")
	}
}

func TestFailureRateWithNoQueries(t *testing.T) {
	got, err := extractMetricValue(Threshold{Metric: MetricFailed, Aggregate: "rate"}, metrics.Report{})
	if err != nil {
		t.Fatalf("extractMetricValue() error = %v", err)
	}
	if got != 0 {
		t.Errorf("rate = %v, want 0", got)
	}
}

func TestLatencyThresholdFailsWithoutSamples(t *testing.T) {
	report := metrics.Report{
		Counters: map[string]uint64{"query_error_count": 12},
		Timings:  map[string]metrics.TimingSummary{},
	}
	thresholds, err := ParseMultiple([]string{"query_duration:p95 < 50", "query_duration:max <= 1000", "query_failed:count >= 12"})
	if err != nil {
		t.Fatalf("ParseMultiple() error = %v", err)
	}
	results := NewEvaluator(thresholds).Evaluate(report)
	if results[0].Pass || results[1].Pass {
		t.Errorf("latency thresholds passed with no samples: %+v", results[:2])
	}
	if !strings.Contains(results[0].Message, "no successful queries") {
		t.Errorf("message = %q", results[0].Message)
	}
	if !results[2].Pass {
		t.Errorf("failure count threshold = %+v, want pass", results[2])
	}
	if !AnyFailed(results) {
		t.Error("AnyFailed() = false")
	}
}

func TestExtractMetricValue(t *testing.T) {
	report := sampleReport()

	tests := []struct {
		name      string
		threshold Threshold
		want      float64
		wantError bool
	}{
		{"p50", Threshold{Metric: MetricDuration, Aggregate: "p50"}, 80.5, false},
		{"p90", Threshold{Metric: MetricDuration, Aggregate: "p90"}, 200.25, false},
		{"p95", Threshold{Metric: MetricDuration, Aggregate: "p95"}, 300.5, false},
		{"p99", Threshold{Metric: MetricDuration, Aggregate: "p99"}, 400.5, false},
		{"avg", Threshold{Metric: MetricDuration, Aggregate: "avg"}, 100.75, false},
		{"min", Threshold{Metric: MetricDuration, Aggregate: "min"}, 10.5, false},
		{"max", Threshold{Metric: MetricDuration, Aggregate: "max"}, 500.25, false},
		{"failed rate", Threshold{Metric: MetricFailed, Aggregate: "rate"}, 0.05, false},
		{"failed count", Threshold{Metric: MetricFailed, Aggregate: "count"}, 50, false},
		{"queries rate", Threshold{Metric: MetricQueries, Aggregate: "rate"}, 123.45, false},
		{"queries count", Threshold{Metric: MetricQueries, Aggregate: "count"}, 950, false},
		{"unknown metric", Threshold{Metric: "bogus", Aggregate: "p95"}, 0, true},
		{"bad aggregate", Threshold{Metric: MetricFailed, Aggregate: "p95"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractMetricValue(tt.threshold, report)
			if (err != nil) != tt.wantError {
				t.Fatalf("extractMetricValue() error = %v, wantError %v", err, tt.wantError)
			}
			if !tt.wantError && got != tt.want {
				t.Errorf("extractMetricValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateReportsExtractionError(t *testing.T) {
	results := NewEvaluator([]Threshold{{Metric: MetricQueries, Aggregate: "p99", Operator: "<", Raw: "queries:p99 < 1"}}).Evaluate(sampleReport())
	if len(results) != 1 || results[0].Pass {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Message == "" {
		t.Error("expected error message")
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name     string
		actual   float64
		operator string
		expected float64
		want     bool
	}{
		{"less than true", 50, "<", 100, true},
		{"less than equal", 100, "<", 100, false},
		{"less or equal equal", 100, "<=", 100, true},
		{"less or equal false", 150, "<=", 100, false},
		{"greater than true", 150, ">", 100, true},
		{"greater than equal", 100, ">", 100, false},
		{"greater or equal equal", 100, ">=", 100, true},
		{"greater or equal false", 50, ">=", 100, false},
		{"equal true", 100, "==", 100, true},
		{"equal false", 100, "==", 101, false},
		{"equal within epsilon", 100.0000000001, "==", 100, true},
		{"unknown operator", 1, "!=", 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := compareValues(tt.actual, tt.operator, tt.expected); got != tt.want {
				t.Errorf("compareValues(%v, %s, %v) = %v, want %v", tt.actual, tt.operator, tt.expected, got, tt.want)
			}
		})
	}
}
