package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mongo-bench",
		Short:         "Benchmark MongoDB find queries with concurrent workers",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

func configureFlags(flags *pflag.FlagSet) {
	// Target
	flags.StringP("url", "u", "", "MongoDB connection string")
	flags.StringP("database", "d", "", "Database to execute queries against")
	flags.StringP("collection", "c", "", "Collection to execute queries against")
	flags.Duration("connect-timeout", 10*time.Second, "Timeout for connecting to and pinging the deployment")
	flags.String("app-name", "mongo-bench", "Application name reported to the server")

	// Workload
	flags.StringP("query", "q", "", "JSON array of filter documents to execute in order")
	flags.String("query-file", "", "Path to a file containing the JSON array of filter documents")
	flags.StringP("sort", "s", "", "Sort document applied to every query (extended JSON)")
	flags.String("collation", "", "Collation document applied to every query (JSON)")
	flags.Int64P("limit", "l", 10, "Number of documents to limit each response to (0 means no limit)")
	flags.Bool("drain-cursor", false, "Iterate every returned document before closing the cursor")

	// Load control
	flags.IntP("iterations", "i", 10, "Iterations of the query sequence per thread")
	flags.IntP("threads", "t", 5, "Number of concurrent workers")
	flags.Int64P("pause", "p", 0, "Pause between queries in milliseconds")
	flags.IntP("rate", "r", 0, "Global queries per second cap (0 means unlimited)")
	flags.Duration("operation-timeout", 0, "Per-query timeout (0 means none)")

	// Output
	flags.StringP("output", "o", string(OutputText), "Report format: text, json or yaml")
	flags.Bool("json-output", false, "Emit the report as JSON (same as --output json)")
	flags.String("report-file", "", "Write the report to this file instead of stdout")
	flags.String("html-output", "", "Also write a standalone HTML report to this file")
	flags.Bool("dashboard", false, "Show a live terminal dashboard")
	flags.Bool("progress", false, "Show a live progress line on stderr")
	flags.StringSlice("threshold", nil, "Pass/fail thresholds (repeatable, e.g. 'query_duration:p95 < 50')")

	// Logging
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "json", "Log format: json or console")
	flags.String("log-file", "", "Also write logs to this rotating file")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "Span exporter: grpc, http or stdout")
	flags.Bool("tracing-insecure", false, "Use plaintext for the OTLP exporter")
	flags.String("tracing-service-name", "", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of queries to trace (0.0-1.0)")

	flags.String("config", "", "Path to a JSON, YAML or TOML config file")
}

func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides copies every flag the user set onto cfg, overriding
// values from the config file and environment.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	strs := map[string]*string{
		"url":                  &cfg.URL,
		"database":             &cfg.Database,
		"collection":           &cfg.Collection,
		"app-name":             &cfg.AppName,
		"sort":                 &cfg.Sort,
		"collation":            &cfg.Collation,
		"report-file":          &cfg.ReportFile,
		"html-output":          &cfg.HTMLOutput,
		"log-level":            &cfg.Log.Level,
		"log-format":           &cfg.Log.Format,
		"log-file":             &cfg.Log.File,
		"tracing-endpoint":     &cfg.Tracing.Endpoint,
		"tracing-protocol":     &cfg.Tracing.Protocol,
		"tracing-service-name": &cfg.Tracing.ServiceName,
	}
	for name, dst := range strs {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(val)
	}

	ints := map[string]*int{
		"iterations": &cfg.Iterations,
		"threads":    &cfg.Threads,
		"rate":       &cfg.Rate,
	}
	for name, dst := range ints {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetInt(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	int64s := map[string]*int64{
		"limit": &cfg.Limit,
		"pause": &cfg.PauseMillis,
	}
	for name, dst := range int64s {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetInt64(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	bools := map[string]*bool{
		"drain-cursor":     &cfg.DrainCursor,
		"dashboard":        &cfg.Dashboard,
		"progress":         &cfg.Progress,
		"tracing-insecure": &cfg.Tracing.Insecure,
	}
	for name, dst := range bools {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	durations := map[string]*time.Duration{
		"connect-timeout":   &cfg.ConnectTimeout,
		"operation-timeout": &cfg.OperationTimeout,
	}
	for name, dst := range durations {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	// --query and --query-file replace each other, whichever source set the other.
	if fs.Changed("query") {
		val, err := fs.GetString("query")
		if err != nil {
			return err
		}
		cfg.Query = val
		cfg.QueryFile = ""
	}
	if fs.Changed("query-file") {
		val, err := fs.GetString("query-file")
		if err != nil {
			return err
		}
		cfg.QueryFile = strings.TrimSpace(val)
		if !fs.Changed("query") {
			cfg.Query = ""
		}
	}

	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.OutputFormat = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		if val {
			cfg.OutputFormat = OutputJSON
		}
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	return nil
}
