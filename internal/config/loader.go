package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the Loader, e.g.
// MONGO_BENCH_URL or MONGO_BENCH_LOG_LEVEL.
const EnvPrefix = "MONGO_BENCH"

// Loader handles loading configuration from files, environment and
// command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

var envKeys = []string{
	"url", "database", "collection", "query", "query_file", "sort", "collation",
	"limit", "iterations", "threads", "pause", "rate", "operation_timeout",
	"connect_timeout", "app_name", "drain_cursor", "output_format", "json_output",
	"report_file", "html_output", "dashboard", "progress", "thresholds",
	"log.level", "log.format", "log.file", "log.max_size_mb", "log.max_backups", "log.max_age_days",
	"tracing.endpoint", "tracing.protocol", "tracing.insecure", "tracing.service_name", "tracing.sample_rate",
}

// Load parses command-line arguments and configuration sources to produce a
// Config. Precedence, lowest first: defaults, config file, environment, flags.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfgViper := viper.New()
	cfgViper.SetEnvPrefix(EnvPrefix)
	cfgViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := cfgViper.BindEnv(key); err != nil {
			return nil, err
		}
	}
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.OutputFormat = OutputFormat(strings.ToLower(string(cfg.OutputFormat)))
	return cfg, nil
}

// Defaults returns the configuration used before any source is applied.
func Defaults() *Config {
	return &Config{
		Limit:          10,
		Iterations:     10,
		Threads:        5,
		ConnectTimeout: 10 * time.Second,
		AppName:        "mongo-bench",
		OutputFormat:   OutputText,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
	}
}

// applyConfigSettings applies settings from a config file or the environment.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	strs := []struct {
		dst  *string
		keys []string
	}{
		{&cfg.URL, []string{"url", "uri"}},
		{&cfg.Database, []string{"database", "db"}},
		{&cfg.Collection, []string{"collection"}},
		{&cfg.Query, []string{"query"}},
		{&cfg.QueryFile, []string{"query_file", "queryfile", "query-file"}},
		{&cfg.Sort, []string{"sort"}},
		{&cfg.Collation, []string{"collation"}},
		{&cfg.AppName, []string{"app_name", "appname", "app-name"}},
		{&cfg.ReportFile, []string{"report_file", "reportfile", "report-file"}},
		{&cfg.HTMLOutput, []string{"html_output", "htmloutput", "html-output"}},
	}
	for _, s := range strs {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asDocumentString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = strings.TrimSpace(val)
	}

	ints := []struct {
		dst *int
		key string
	}{
		{&cfg.Iterations, "iterations"},
		{&cfg.Threads, "threads"},
		{&cfg.Rate, "rate"},
	}
	for _, i := range ints {
		raw, ok := lookupSetting(settings, i.key)
		if !ok {
			continue
		}
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", i.key, err)
		}
		*i.dst = val
	}

	if raw, ok := lookupSetting(settings, "limit"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("limit: %w", err)
		}
		cfg.Limit = int64(val)
	}
	if raw, ok := lookupSetting(settings, "pause"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("pause: %w", err)
		}
		cfg.PauseMillis = int64(val)
	}

	if raw, ok := lookupSetting(settings, "operation_timeout", "operationtimeout"); ok {
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("operation_timeout: %w", err)
		}
		cfg.OperationTimeout = val
	}
	if raw, ok := lookupSetting(settings, "connect_timeout", "connecttimeout"); ok {
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("connect_timeout: %w", err)
		}
		cfg.ConnectTimeout = val
	}

	bools := []struct {
		dst  *bool
		keys []string
	}{
		{&cfg.DrainCursor, []string{"drain_cursor", "draincursor"}},
		{&cfg.Dashboard, []string{"dashboard"}},
		{&cfg.Progress, []string{"progress"}},
	}
	for _, b := range bools {
		raw, ok := lookupSetting(settings, b.keys...)
		if !ok {
			continue
		}
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", b.keys[0], err)
		}
		*b.dst = val
	}

	if raw, ok := lookupSetting(settings, "output_format", "outputformat", "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output_format: %w", err)
		}
		if val != "" {
			cfg.OutputFormat = OutputFormat(strings.TrimSpace(val))
		}
	}
	if raw, ok := lookupSetting(settings, "json_output", "jsonoutput"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("json_output: %w", err)
		}
		if val {
			cfg.OutputFormat = OutputJSON
		}
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = val
	}

	if raw, ok := lookupSetting(settings, "log"); ok {
		if err := applyLogSettings(&cfg.Log, raw); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}
	return nil
}

func applyLogSettings(lc *LogConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("level: %w", err)
		}
		lc.Level = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("format: %w", err)
		}
		lc.Format = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("file: %w", err)
		}
		lc.File = strings.TrimSpace(val)
	}
	rotation := []struct {
		dst *int
		key string
	}{
		{&lc.MaxSizeMB, "max_size_mb"},
		{&lc.MaxBackups, "max_backups"},
		{&lc.MaxAgeDays, "max_age_days"},
	}
	for _, r := range rotation {
		raw, ok := lookupSetting(settings, r.key)
		if !ok {
			continue
		}
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", r.key, err)
		}
		*r.dst = val
	}
	return nil
}

func applyTracingSettings(tc *TracingConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		tc.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		tc.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		tc.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "service_name", "servicename"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		tc.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "sample_rate", "samplerate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		tc.SampleRate = val
	}
	return nil
}
