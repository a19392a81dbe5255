package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

// Config is the complete mongo-bench run configuration.
type Config struct {
	URL              string        `mapstructure:"url"`
	Database         string        `mapstructure:"database"`
	Collection       string        `mapstructure:"collection"`
	Query            string        `mapstructure:"query"`
	QueryFile        string        `mapstructure:"query_file"`
	Sort             string        `mapstructure:"sort"`
	Collation        string        `mapstructure:"collation"`
	Limit            int64         `mapstructure:"limit"`
	Iterations       int           `mapstructure:"iterations"`
	Threads          int           `mapstructure:"threads"`
	PauseMillis      int64         `mapstructure:"pause"`
	Rate             int           `mapstructure:"rate"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	AppName          string        `mapstructure:"app_name"`
	DrainCursor      bool          `mapstructure:"drain_cursor"`
	OutputFormat     OutputFormat  `mapstructure:"output_format"`
	ReportFile       string        `mapstructure:"report_file"`
	HTMLOutput       string        `mapstructure:"html_output"`
	Dashboard        bool          `mapstructure:"dashboard"`
	Progress         bool          `mapstructure:"progress"`
	Thresholds       []string      `mapstructure:"thresholds"`
	Log              LogConfig     `mapstructure:"log"`
	Tracing          TracingConfig `mapstructure:"tracing"`
	ConfigFile       string        `mapstructure:"-"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json or console
	File       string `mapstructure:"file"`   // optional rotating log file
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// TracingConfig controls OpenTelemetry export of per-query spans.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`     // OTLP collector address
	Protocol    string  `mapstructure:"protocol"`     // grpc, http or stdout
	Insecure    bool    `mapstructure:"insecure"`     // plaintext OTLP
	ServiceName string  `mapstructure:"service_name"` // defaults to OTEL_SERVICE_NAME, then mongo-bench
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Enabled reports whether spans should be exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || strings.EqualFold(t.Protocol, "stdout")
}

// ValidationError collects every configuration problem found by Validate.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "invalid configuration"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.URL) == "" {
		issues = append(issues, "url is required (use --help for usage information)")
	}
	if strings.TrimSpace(c.Database) == "" {
		issues = append(issues, "database is required")
	}
	if strings.TrimSpace(c.Collection) == "" {
		issues = append(issues, "collection is required")
	}
	hasQuery := strings.TrimSpace(c.Query) != ""
	hasQueryFile := strings.TrimSpace(c.QueryFile) != ""
	switch {
	case !hasQuery && !hasQueryFile:
		issues = append(issues, "query or query-file is required")
	case hasQuery && hasQueryFile:
		issues = append(issues, "query and query-file are mutually exclusive")
	}
	if c.Limit < 0 {
		issues = append(issues, "limit must be >= 0")
	}
	if c.Iterations < 1 {
		issues = append(issues, "iterations must be >= 1")
	}
	if c.Threads < 1 {
		issues = append(issues, "threads must be >= 1")
	}
	if c.PauseMillis < 0 {
		issues = append(issues, "pause must be >= 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.OperationTimeout < 0 {
		issues = append(issues, "operation-timeout must be >= 0")
	}
	if c.ConnectTimeout < 0 {
		issues = append(issues, "connect-timeout must be >= 0")
	}
	switch c.OutputFormat {
	case OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output must be one of text, json or yaml, got %q", c.OutputFormat))
	}
	if c.Dashboard && c.OutputFormat != OutputText {
		issues = append(issues, "dashboard and structured output are mutually exclusive")
	}
	issues = append(issues, c.Log.validate()...)
	issues = append(issues, c.Tracing.validate()...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func (l LogConfig) validate() []string {
	var issues []string
	if l.Level != "" {
		if _, err := zapcore.ParseLevel(l.Level); err != nil {
			issues = append(issues, fmt.Sprintf("log.level: %v", err))
		}
	}
	switch strings.ToLower(l.Format) {
	case "", "json", "console":
	default:
		issues = append(issues, fmt.Sprintf("log.format must be json or console, got %q", l.Format))
	}
	if l.MaxSizeMB < 0 || l.MaxBackups < 0 || l.MaxAgeDays < 0 {
		issues = append(issues, "log rotation settings must be >= 0")
	}
	return issues
}

func (t TracingConfig) validate() []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http", "stdout":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol must be grpc, http or stdout, got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing.sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
