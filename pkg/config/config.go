// Package config loads vulntracker settings. Sources are layered in order:
// built-in defaults, a YAML file, environment variables, then command line
// flags that were explicitly set.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/waftester/vulntracker/pkg/defaults"
	"github.com/waftester/vulntracker/pkg/duration"
	"github.com/waftester/vulntracker/pkg/iohelper"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvBaseURL     = "QUALYS_BASE_URL"
	EnvUsername    = "QUALYS_USERNAME"
	EnvPassword    = "QUALYS_PASSWORD"
	EnvReportTitle = "QUALYS_REPORT_TITLE"
	EnvWorkbook    = "VULNTRACKER_WORKBOOK"
	EnvMetricsFile = "VULNTRACKER_METRICS_FILE"
)

// Config holds every runtime setting
type Config struct {
	Qualys    QualysConfig    `yaml:"qualys"`
	Workbook  WorkbookConfig  `yaml:"workbook"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`

	// RunDate overrides the run date (any format dateparse understands)
	RunDate string `yaml:"-"`
}

// QualysConfig holds API connection settings
type QualysConfig struct {
	BaseURL     string `yaml:"base_url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	ReportTitle string `yaml:"report_title"`

	Timeout            time.Duration `yaml:"timeout"`
	Proxy              string        `yaml:"proxy"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	RequestsPerMinute  int           `yaml:"requests_per_minute"` // 0 = unpaced
	MaxReportSize      int64         `yaml:"max_report_size"`     // bytes
}

// WorkbookConfig holds the tracking workbook location and layout
type WorkbookConfig struct {
	Path string `yaml:"path"`

	DetailSheetIndex int     `yaml:"detail_sheet_index"` // 0-based tab position
	TitleFormat      string  `yaml:"title_format"`
	DateLayout       string  `yaml:"date_layout"` // Go time layout
	HeaderSentinel   string  `yaml:"header_sentinel"`
	RowHeight        float64 `yaml:"row_height"`

	OverviewSheets []string `yaml:"overview_sheets"`
	LeadingOffset  int      `yaml:"leading_offset"`
	VisibleWindow  int      `yaml:"visible_window"`
	FirstDataRow   int      `yaml:"first_data_row"`
}

// TelemetryConfig holds optional run outputs
type TelemetryConfig struct {
	MetricsFile  string            `yaml:"metrics_file"`
	OTLPEndpoint string            `yaml:"otlp_endpoint"`
	OTLPInsecure bool              `yaml:"otlp_insecure"`
	OTLPHeaders  map[string]string `yaml:"otlp_headers"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Format string `yaml:"format"` // text or json
	Level  string `yaml:"level"`  // debug, info, warn, error
}

// Default returns a Config populated from pkg/defaults.
func Default() *Config {
	return &Config{
		Qualys: QualysConfig{
			BaseURL:       defaults.QualysBaseURL,
			Timeout:       duration.HTTPAPI,
			MaxReportSize: iohelper.LargeMaxBodySize,
		},
		Workbook: WorkbookConfig{
			DetailSheetIndex: defaults.DetailSheetIndex,
			TitleFormat:      defaults.DetailSheetTitle,
			DateLayout:       defaults.DateLayout,
			HeaderSentinel:   defaults.HeaderSentinel,
			RowHeight:        defaults.RowHeight,
			OverviewSheets:   append([]string(nil), defaults.OverviewSheets...),
			LeadingOffset:    defaults.LeadingOffset,
			VisibleWindow:    defaults.VisibleWindow,
			FirstDataRow:     defaults.FirstDataRow,
		},
		Log: LogConfig{Format: "text", Level: "info"},
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Qualys.BaseURL, EnvBaseURL)
	set(&c.Qualys.Username, EnvUsername)
	set(&c.Qualys.Password, EnvPassword)
	set(&c.Qualys.ReportTitle, EnvReportTitle)
	set(&c.Workbook.Path, EnvWorkbook)
	set(&c.Telemetry.MetricsFile, EnvMetricsFile)
}

// Validate checks required fields first, then value ranges.
func (c *Config) Validate() error {
	var missing []string
	if c.Qualys.Username == "" {
		missing = append(missing, "qualys.username ("+EnvUsername+")")
	}
	if c.Qualys.Password == "" {
		missing = append(missing, "qualys.password ("+EnvPassword+")")
	}
	if c.Qualys.ReportTitle == "" {
		missing = append(missing, "qualys.report_title (-report)")
	}
	if c.Workbook.Path == "" {
		missing = append(missing, "workbook.path (-workbook)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missing, ", "))
	}

	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}
	if u, err := url.Parse(c.Qualys.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		invalid("qualys.base_url %q is not an absolute URL", c.Qualys.BaseURL)
	}
	if c.Qualys.Proxy != "" {
		if u, err := url.Parse(c.Qualys.Proxy); err != nil || u.Host == "" {
			invalid("qualys.proxy %q is not a URL", c.Qualys.Proxy)
		}
	}
	if c.Qualys.Timeout <= 0 {
		invalid("qualys.timeout must be positive")
	}
	if c.Qualys.RequestsPerMinute < 0 {
		invalid("qualys.requests_per_minute must not be negative")
	}
	if c.Qualys.MaxReportSize <= 0 {
		invalid("qualys.max_report_size must be positive")
	}
	w := c.Workbook
	if w.DetailSheetIndex < 0 {
		invalid("workbook.detail_sheet_index must not be negative")
	}
	if strings.Count(w.TitleFormat, "%s") != 1 {
		invalid("workbook.title_format %q needs exactly one %%s", w.TitleFormat)
	}
	if w.DateLayout == "" {
		invalid("workbook.date_layout is empty")
	}
	if w.HeaderSentinel == "" {
		invalid("workbook.header_sentinel is empty")
	}
	if w.RowHeight <= 0 || w.RowHeight > 409 {
		invalid("workbook.row_height %v out of range (0, 409]", w.RowHeight)
	}
	for _, s := range w.OverviewSheets {
		if strings.TrimSpace(s) == "" {
			invalid("workbook.overview_sheets contains an empty name")
		}
	}
	if w.LeadingOffset < 1 || w.VisibleWindow < 1 || w.FirstDataRow < 1 {
		invalid("workbook.leading_offset, visible_window and first_data_row must be at least 1")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		invalid("log.format %q (want text or json)", c.Log.Format)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.RunDate != "" {
		if _, err := c.Date(time.Now()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Date returns the run date: the RunDate override when set, otherwise now.
func (c *Config) Date(now time.Time) (time.Time, error) {
	if c.RunDate == "" {
		return now, nil
	}
	t, err := dateparse.ParseIn(c.RunDate, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %w", ErrInvalidConfig, c.RunDate, err)
	}
	return t, nil
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	r := *c
	if r.Qualys.Password != "" {
		r.Qualys.Password = "[redacted]"
	}
	if len(r.Telemetry.OTLPHeaders) > 0 {
		r.Telemetry.OTLPHeaders = map[string]string{"[redacted]": strconv.Itoa(len(c.Telemetry.OTLPHeaders))}
	}
	return r
}
