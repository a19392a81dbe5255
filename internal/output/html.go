package output

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/torosent/mongo-bench/internal/metrics"
	"github.com/torosent/mongo-bench/internal/runner"
	"github.com/torosent/mongo-bench/internal/threshold"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt      string
	Report           metrics.Report
	Queries          uint64
	Failures         uint64
	Latency          metrics.TimingSummary
	Errors           []ErrorRow
	DriverKeys       []string
	ThresholdSummary *ThresholdSummary
	Metadata         ReportMetadata
}

// ErrorRow is one rendered error class.
type ErrorRow struct {
	Class string
	Label string
	Count uint64
}

// ThresholdSummary counts passed and failed thresholds for the report header.
type ThresholdSummary struct {
	Total   int
	Passed  int
	Failed  int
	Results []threshold.Result
}

// ReportMetadata describes the benchmarked namespace and workload.
type ReportMetadata struct {
	Database   string
	Collection string
	Queries    []string
}

// GenerateHTMLReport writes a standalone HTML report.
func GenerateHTMLReport(w io.Writer, report metrics.Report, results []threshold.Result, metadata ReportMetadata) error {
	var summary *ThresholdSummary
	if len(results) > 0 {
		summary = &ThresholdSummary{Total: len(results), Results: results}
		for _, r := range results {
			if r.Pass {
				summary.Passed++
			} else {
				summary.Failed++
			}
		}
	}

	var errorRows []ErrorRow
	for _, row := range metrics.FlattenErrorCounters(report.Counters, runner.CounterErrorPrefix) {
		errorRows = append(errorRows, ErrorRow{
			Class: row.Class,
			Label: metrics.FriendlyErrorClass(row.Class),
			Count: row.Count,
		})
	}

	latency, _ := report.Timing(runner.SeriesQuery)
	data := HTMLReportData{
		GeneratedAt:      time.Now().Format(time.RFC3339),
		Report:           report,
		Queries:          report.Counter(runner.CounterQueries),
		Failures:         report.Counter(runner.CounterErrors),
		Latency:          latency,
		Errors:           errorRows,
		DriverKeys:       sortedKeys(report.Driver),
		ThresholdSummary: summary,
		Metadata:         metadata,
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.String()
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatPercent": func(part, total uint64) string {
			if total == 0 {
				return "0.0"
			}
			return fmt.Sprintf("%.1f", (float64(part)/float64(total))*100)
		},
		"add": func(a, b uint64) uint64 {
			return a + b
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>mongo-bench Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #13aa52 0%, #0b6b34 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 { font-size: 2rem; margin-bottom: 10px; }
        header .meta { opacity: 0.9; font-size: 0.9rem; }
        .content { padding: 40px; }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #13aa52;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value { font-size: 2rem; font-weight: bold; }
        .card .subvalue { font-size: 0.85rem; color: #6c757d; margin-top: 5px; }
        .card.error { border-left-color: #ef4444; }
        .card.warning { border-left-color: #f59e0b; }
        .section { margin-bottom: 40px; }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 12px; border-bottom: 1px solid #e5e7eb; }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            text-transform: uppercase;
        }
        code { font-size: 0.85rem; }
        .badge { display: inline-block; padding: 4px 12px; border-radius: 12px; font-size: 0.85rem; font-weight: 600; }
        .badge-success { background: #d1fae5; color: #065f46; }
        .badge-error { background: #fee2e2; color: #991b1b; }
        .latency-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
            gap: 15px;
        }
        .latency-item { background: #f8f9fa; padding: 15px; border-radius: 6px; text-align: center; }
        .latency-item .label { font-size: 0.85rem; color: #6c757d; }
        .latency-item .value { font-size: 1.3rem; font-weight: bold; }
        .no-data { text-align: center; padding: 40px; color: #6c757d; font-style: italic; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>mongo-bench Report</h1>
            {{if .Metadata.Collection}}
            <div class="meta">Namespace: {{.Metadata.Database}}.{{.Metadata.Collection}}</div>
            {{end}}
            <div class="meta">Generated: {{.GeneratedAt}} | Duration: {{formatDuration .Report.Duration}}{{if .Report.RunID}} | Run: {{.Report.RunID}}{{end}}</div>
            {{if .Report.Interrupted}}<div class="meta"><strong>Interrupted: partial results</strong></div>{{end}}
        </header>

        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Completed Queries</h3>
                    <div class="value">{{.Queries}}</div>
                    <div class="subvalue">{{.Report.Workers}} threads × {{.Report.IterationsPerWorker}} iterations × {{.Report.QueriesPerIteration}} queries</div>
                </div>
                <div class="card error">
                    <h3>Failed</h3>
                    <div class="value">{{.Failures}}</div>
                    <div class="subvalue">{{formatPercent .Failures (add .Queries .Failures)}}%</div>
                </div>
                <div class="card">
                    <h3>Queries/sec</h3>
                    <div class="value">{{formatFloat .Report.OpsPerSec}}</div>
                </div>
            </div>

            <div class="section">
                <h2>Latency Statistics</h2>
                {{if .Latency.Count}}
                <div class="latency-grid">
                    <div class="latency-item"><div class="label">Min</div><div class="value">{{formatDuration .Latency.Min}}</div></div>
                    <div class="latency-item"><div class="label">Max</div><div class="value">{{formatDuration .Latency.Max}}</div></div>
                    <div class="latency-item"><div class="label">Mean</div><div class="value">{{formatDuration .Latency.Mean}}</div></div>
                    <div class="latency-item"><div class="label">StdDev</div><div class="value">{{formatDuration .Latency.StdDev}}</div></div>
                    <div class="latency-item"><div class="label">P50</div><div class="value">{{formatDuration .Latency.P50}}</div></div>
                    <div class="latency-item"><div class="label">P90</div><div class="value">{{formatDuration .Latency.P90}}</div></div>
                    <div class="latency-item"><div class="label">P95</div><div class="value">{{formatDuration .Latency.P95}}</div></div>
                    <div class="latency-item"><div class="label">P99</div><div class="value">{{formatDuration .Latency.P99}}</div></div>
                </div>
                {{else}}
                <div class="no-data">No completed queries</div>
                {{end}}
            </div>

            {{if .ThresholdSummary}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdSummary.Passed}}/{{.ThresholdSummary.Total}} Passed)</h2>
                <table>
                    <thead><tr><th>Threshold</th><th>Expected</th><th>Actual</th><th>Status</th></tr></thead>
                    <tbody>
                        {{range .ThresholdSummary.Results}}
                        <tr>
                            <td>{{.Expr}}</td>
                            <td>{{.Threshold.Operator}} {{formatFloat .Threshold.Value}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>{{if .Pass}}<span class="badge badge-success">✓ PASS</span>{{else}}<span class="badge badge-error">✗ FAIL</span>{{end}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .Errors}}
            <div class="section">
                <h2>Errors</h2>
                <table>
                    <thead><tr><th>Class</th><th>Description</th><th>Count</th></tr></thead>
                    <tbody>
                        {{range .Errors}}
                        <tr><td><code>{{.Class}}</code></td><td>{{.Label}}</td><td>{{.Count}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .Report.PerWorker}}
            <div class="section">
                <h2>Per Thread</h2>
                <table>
                    <thead><tr><th>Thread</th><th>Queries</th><th>Errors</th><th>Mean (ms)</th></tr></thead>
                    <tbody>
                        {{range .Report.PerWorker}}
                        <tr><td>{{.ID}}</td><td>{{.Queries}}</td><td>{{.Errors}}</td><td>{{formatFloat .MeanMs}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .DriverKeys}}
            <div class="section">
                <h2>Driver</h2>
                <table>
                    <thead><tr><th>Counter</th><th>Value</th></tr></thead>
                    <tbody>
                        {{range .DriverKeys}}
                        <tr><td>{{.}}</td><td>{{index $.Report.Driver .}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .Metadata.Queries}}
            <div class="section">
                <h2>Workload</h2>
                <table>
                    <thead><tr><th>#</th><th>Filter</th></tr></thead>
                    <tbody>
                        {{range $i, $q := .Metadata.Queries}}
                        <tr><td>{{$i}}</td><td><code>{{$q}}</code></td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>
</body>
</html>
`
