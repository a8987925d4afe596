package config

import (
	"flag"
	"time"
)

// Flags holds the command line options of the run command. Only flags the
// user actually set override the file and environment.
type Flags struct {
	ConfigPath string

	Workbook string
	Report   string
	Date     string
	BaseURL  string
	Timeout  time.Duration
	Proxy    string

	MetricsFile  string
	OTLPEndpoint string
	OTLPInsecure bool

	LogFormat string
	LogLevel  string
	Verbose   bool
	NoColor   bool
	Silent    bool

	set map[string]bool
}

// Register binds every run flag to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	// === INPUT ===
	fs.StringVar(&f.ConfigPath, "config", "", "YAML config file")
	fs.StringVar(&f.ConfigPath, "c", "", "Config file (alias)")
	fs.StringVar(&f.Workbook, "workbook", "", "Tracking workbook (.xlsx)")
	fs.StringVar(&f.Workbook, "w", "", "Workbook (alias)")
	fs.StringVar(&f.Report, "report", "", "Exact title of the saved Qualys report")
	fs.StringVar(&f.Report, "r", "", "Report title (alias)")
	fs.StringVar(&f.Date, "date", "", "Run date override (e.g. 2026-10-15, 10/15/26)")

	// === NETWORK ===
	fs.StringVar(&f.BaseURL, "base-url", "", "Qualys API gateway URL")
	fs.DurationVar(&f.Timeout, "timeout", 0, "Per-request HTTP timeout")
	fs.StringVar(&f.Proxy, "proxy", "", "HTTP proxy URL")
	fs.StringVar(&f.Proxy, "x", "", "Proxy (alias)")

	// === TELEMETRY ===
	fs.StringVar(&f.MetricsFile, "metrics-file", "", "Write Prometheus textfile metrics here")
	fs.StringVar(&f.OTLPEndpoint, "otlp-endpoint", "", "OTLP gRPC endpoint for traces (host:port)")
	fs.BoolVar(&f.OTLPInsecure, "otlp-insecure", false, "Plaintext OTLP connection")

	// === OUTPUT ===
	fs.StringVar(&f.LogFormat, "log-format", "", "Log format: text, json")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&f.Verbose, "verbose", false, "Debug logging")
	fs.BoolVar(&f.Verbose, "v", false, "Verbose (alias)")
	fs.BoolVar(&f.NoColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&f.NoColor, "nc", false, "No color (alias)")
	fs.BoolVar(&f.Silent, "silent", false, "Silent mode - no banner or summary")
	fs.BoolVar(&f.Silent, "s", false, "Silent (alias)")
}

// Parse parses args with fs and records which flags were set.
func (f *Flags) Parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	f.set = map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return nil
}

// IsSet reports whether any of the named flags appeared on the command line.
func (f *Flags) IsSet(names ...string) bool {
	for _, n := range names {
		if f.set[n] {
			return true
		}
	}
	return false
}

// Apply copies the flags that were set onto cfg.
func (f *Flags) Apply(cfg *Config) {
	if f.IsSet("workbook", "w") {
		cfg.Workbook.Path = f.Workbook
	}
	if f.IsSet("report", "r") {
		cfg.Qualys.ReportTitle = f.Report
	}
	if f.IsSet("date") {
		cfg.RunDate = f.Date
	}
	if f.IsSet("base-url") {
		cfg.Qualys.BaseURL = f.BaseURL
	}
	if f.IsSet("timeout") {
		cfg.Qualys.Timeout = f.Timeout
	}
	if f.IsSet("proxy", "x") {
		cfg.Qualys.Proxy = f.Proxy
	}
	if f.IsSet("metrics-file") {
		cfg.Telemetry.MetricsFile = f.MetricsFile
	}
	if f.IsSet("otlp-endpoint") {
		cfg.Telemetry.OTLPEndpoint = f.OTLPEndpoint
	}
	if f.IsSet("otlp-insecure") {
		cfg.Telemetry.OTLPInsecure = f.OTLPInsecure
	}
	if f.IsSet("log-format") {
		cfg.Log.Format = f.LogFormat
	}
	if f.IsSet("log-level") {
		cfg.Log.Level = f.LogLevel
	}
	if f.Verbose {
		cfg.Log.Level = "debug"
	}
}

// Resolve parses args and layers defaults, the config file, the
// environment and the flags into one validated Config.
func Resolve(fs *flag.FlagSet, args []string, lookup func(string) (string, bool)) (*Config, *Flags, error) {
	f := &Flags{}
	f.Register(fs)
	if err := f.Parse(fs, args); err != nil {
		return nil, f, err
	}
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return nil, f, err
	}
	cfg.ApplyEnv(lookup)
	f.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, f, err
	}
	return cfg, f, nil
}
