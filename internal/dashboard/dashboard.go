// Package dashboard renders a live terminal view of a running benchmark.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/mongo-bench/internal/metrics"
)

const historyLen = 100

// RunConfig holds benchmark parameters for display.
type RunConfig struct {
	Namespace  string // database.collection
	Threads    int
	Iterations int
	Queries    int
	PauseMs    int64
	Rate       int
	Limit      int64
	ConfigFile string
}

// DriverStats exposes live driver counters.
type DriverStats interface {
	Snapshot() map[string]int64
}

// Dashboard renders a live terminal UI fed by a metrics.Progress tracker.
type Dashboard struct {
	progress     *metrics.Progress
	driver       DriverStats
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	grid           *ui.Grid
	latencySparkle *widgets.SparklineGroup
	progressGauge  *widgets.Gauge
	summaryPara    *widgets.Paragraph
	metricsPara    *widgets.Paragraph
	driverList     *widgets.List

	history latencyHistory
	cfg     RunConfig
}

// New initialises the terminal and builds the widgets. shutdownFunc is called
// when the user presses q or Ctrl-C.
func New(progress *metrics.Progress, driver DriverStats, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		progress:     progress,
		driver:       driver,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		cfg:          cfg,
	}
	d.initWidgets()
	d.setupGrid()
	return d, nil
}

func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "Mean latency per tick (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Real-time Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Progress"
	d.progressGauge.BarColor = ui.ColorGreen
	d.progressGauge.BorderStyle.Fg = ui.ColorCyan
	d.progressGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Benchmark"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Queries"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan

	d.driverList = widgets.NewList()
	d.driverList.Title = "Driver"
	d.driverList.Rows = []string{"Awaiting data"}
	d.driverList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.driverList.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)
	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.progressGauge),
		),
		ui.NewRow(0.35,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.metricsPara),
		),
		ui.NewRow(0.35,
			ui.NewCol(1.0, d.driverList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the update loop and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give the terminal time to restore.
	time.Sleep(100 * time.Millisecond)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()
	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the context once the run has wound down.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := d.progress.Snapshot()

	if tick, ok := d.history.push(snap); ok {
		d.latencySparkle.Sparklines[0].Data = d.history.values
		d.latencySparkle.Title = fmt.Sprintf("Real-time Latency | Current: %.2fms | Overall mean: %.2fms",
			tick, toMs(snap.MeanLatency))
	}

	d.progressGauge.Percent = snap.Percent()
	d.progressGauge.Label = fmt.Sprintf("%d/%d queries (%d%%)", snap.Done(), snap.Planned, snap.Percent())
	if snap.Failed > 0 {
		d.progressGauge.BarColor = ui.ColorYellow
	}

	d.summaryPara.Text = formatSummary(d.cfg, snap)
	d.metricsPara.Text = formatMetrics(snap)

	var counters map[string]int64
	if d.driver != nil {
		counters = d.driver.Snapshot()
	}
	d.driverList.Rows = formatDriverRows(counters)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

// latencyHistory derives per-tick mean latency from cumulative snapshots.
type latencyHistory struct {
	values        []float64
	lastCompleted int64
	lastTotal     time.Duration
}

// push records the mean latency of the queries completed since the previous
// snapshot. It reports false when nothing completed in between.
func (h *latencyHistory) push(snap metrics.ProgressSnapshot) (float64, bool) {
	total := snap.MeanLatency * time.Duration(snap.Completed)
	delta := snap.Completed - h.lastCompleted
	if delta <= 0 {
		return 0, false
	}
	tick := toMs((total - h.lastTotal) / time.Duration(delta))
	h.lastCompleted = snap.Completed
	h.lastTotal = total

	h.values = append(h.values, tick)
	if len(h.values) > historyLen {
		h.values = h.values[1:]
	}
	return tick, true
}

func formatSummary(cfg RunConfig, snap metrics.ProgressSnapshot) string {
	return fmt.Sprintf("Namespace: %s\n%s\nElapsed: %s | Planned: %d",
		cfg.Namespace,
		formatRunParams(cfg),
		snap.Elapsed.Round(time.Second),
		snap.Planned,
	)
}

func formatMetrics(snap metrics.ProgressSnapshot) string {
	return fmt.Sprintf(
		"Completed:    %d\nFailed:       %d\nQueries/sec:  %.2f\nMean latency: %.2fms",
		snap.Completed,
		snap.Failed,
		snap.OpsPerSec,
		toMs(snap.MeanLatency),
	)
}

func formatRunParams(cfg RunConfig) string {
	var parts []string
	if cfg.Threads > 0 {
		parts = append(parts, fmt.Sprintf("Threads: %d", cfg.Threads))
	}
	if cfg.Iterations > 0 {
		parts = append(parts, fmt.Sprintf("Iterations: %d", cfg.Iterations))
	}
	if cfg.Queries > 0 {
		parts = append(parts, fmt.Sprintf("Queries: %d", cfg.Queries))
	}
	if cfg.PauseMs > 0 {
		parts = append(parts, fmt.Sprintf("Pause: %dms", cfg.PauseMs))
	}
	if cfg.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", cfg.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}
	if cfg.Limit > 0 {
		parts = append(parts, fmt.Sprintf("Limit: %d", cfg.Limit))
	}
	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}
	return strings.Join(parts, " | ")
}

func formatDriverRows(counters map[string]int64) []string {
	if len(counters) == 0 {
		return []string{"[No driver data](fg:green)"}
	}
	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]string, 0, len(keys))
	for _, k := range keys {
		color := "white"
		if strings.Contains(k, "failed") && counters[k] > 0 {
			color = "red"
		}
		rows = append(rows, fmt.Sprintf("[%s:](fg:cyan) [%d](fg:%s)", k, counters[k], color))
	}
	return rows
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
