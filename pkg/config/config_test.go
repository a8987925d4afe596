package config

import (
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vulntracker.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestDefaults verifies default values are set correctly
func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Qualys.BaseURL != "https://qualysapi.qg2.apps.qualys.eu" {
		t.Errorf("BaseURL default: got %q", cfg.Qualys.BaseURL)
	}
	if cfg.Qualys.Timeout != 60*time.Second {
		t.Errorf("Timeout default: got %v, want 60s", cfg.Qualys.Timeout)
	}
	if cfg.Workbook.DetailSheetIndex != 3 {
		t.Errorf("DetailSheetIndex default: got %d, want 3", cfg.Workbook.DetailSheetIndex)
	}
	if len(cfg.Workbook.OverviewSheets) != 3 {
		t.Errorf("OverviewSheets default: got %v", cfg.Workbook.OverviewSheets)
	}
	if cfg.Log.Format != "text" || cfg.Log.Level != "info" {
		t.Errorf("Log default: got %+v", cfg.Log)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
qualys:
  username: apiuser
  report_title: Weekly Linux/Windows Vulns
  timeout: 2m
  requests_per_minute: 30
workbook:
  path: /srv/tracker.xlsx
  overview_sheets: [Linux Overview, Remediated]
  row_height: 18
telemetry:
  metrics_file: /var/lib/node_exporter/vulntracker.prom
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Qualys.Timeout != 2*time.Minute {
		t.Errorf("Timeout: got %v, want 2m", cfg.Qualys.Timeout)
	}
	if cfg.Qualys.RequestsPerMinute != 30 {
		t.Errorf("RequestsPerMinute: got %d", cfg.Qualys.RequestsPerMinute)
	}
	if got := strings.Join(cfg.Workbook.OverviewSheets, ","); got != "Linux Overview,Remediated" {
		t.Errorf("OverviewSheets: got %q", got)
	}
	if cfg.Workbook.RowHeight != 18 {
		t.Errorf("RowHeight: got %v", cfg.Workbook.RowHeight)
	}
	// untouched keys keep their defaults
	if cfg.Workbook.HeaderSentinel != "IP" {
		t.Errorf("HeaderSentinel: got %q", cfg.Workbook.HeaderSentinel)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("missing file: expected ErrInvalidConfig, got %v", err)
	}
	path := writeConfig(t, "qualys:\n  usrname: typo\n")
	if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("unknown key: expected ErrInvalidConfig, got %v", err)
	}
	if cfg, err := Load(writeConfig(t, "")); err != nil || cfg == nil {
		t.Errorf("empty file: got %v", err)
	}
}

func TestResolve_Precedence(t *testing.T) {
	path := writeConfig(t, `
qualys:
  username: fromfile
  password: filepass
  report_title: File Title
workbook:
  path: file.xlsx
log:
  format: json
`)
	env := envMap(map[string]string{
		EnvUsername:    "fromenv",
		EnvReportTitle: "Env Title",
		EnvWorkbook:    "",
	})
	cfg, flags, err := Resolve(newFlagSet(), []string{"-config", path, "-r", "Flag Title", "-v"}, env)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cfg.Qualys.Username != "fromenv" {
		t.Errorf("env should override file: got %q", cfg.Qualys.Username)
	}
	if cfg.Qualys.Password != "filepass" {
		t.Errorf("file value lost: got %q", cfg.Qualys.Password)
	}
	if cfg.Qualys.ReportTitle != "Flag Title" {
		t.Errorf("flag should override env: got %q", cfg.Qualys.ReportTitle)
	}
	if cfg.Workbook.Path != "file.xlsx" {
		t.Errorf("empty env must not clear file value: got %q", cfg.Workbook.Path)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log: got %+v", cfg.Log)
	}
	if !flags.Verbose {
		t.Error("expected Verbose flag")
	}
}

func TestResolve_UnsetFlagsKeepEnv(t *testing.T) {
	env := envMap(map[string]string{
		EnvBaseURL:     "https://qualysapi.qualys.com",
		EnvUsername:    "u",
		EnvPassword:    "p",
		EnvReportTitle: "t",
		EnvWorkbook:    "w.xlsx",
	})
	cfg, _, err := Resolve(newFlagSet(), []string{"-timeout", "5s"}, env)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cfg.Qualys.BaseURL != "https://qualysapi.qualys.com" {
		t.Errorf("BaseURL: got %q", cfg.Qualys.BaseURL)
	}
	if cfg.Qualys.Timeout != 5*time.Second {
		t.Errorf("Timeout: got %v", cfg.Qualys.Timeout)
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	err := Default().Validate()
	if !errors.Is(err, ErrMissingRequired) {
		t.Fatalf("expected ErrMissingRequired, got %v", err)
	}
	for _, want := range []string{"qualys.username", "qualys.password", "qualys.report_title", "workbook.path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestValidate_Invalid(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.Qualys.Username, c.Qualys.Password, c.Qualys.ReportTitle = "u", "p", "t"
		c.Workbook.Path = "w.xlsx"
		return c
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative base url", func(c *Config) { c.Qualys.BaseURL = "qualys.example" }},
		{"zero timeout", func(c *Config) { c.Qualys.Timeout = 0 }},
		{"negative pacing", func(c *Config) { c.Qualys.RequestsPerMinute = -1 }},
		{"bad proxy", func(c *Config) { c.Qualys.Proxy = "::" }},
		{"title without verb", func(c *Config) { c.Workbook.TitleFormat = "Details" }},
		{"row height", func(c *Config) { c.Workbook.RowHeight = 0 }},
		{"empty overview", func(c *Config) { c.Workbook.OverviewSheets = []string{"Linux Overview", " "} }},
		{"offset", func(c *Config) { c.Workbook.LeadingOffset = 0 }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"date", func(c *Config) { c.RunDate = "not a date" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestDate(t *testing.T) {
	now := time.Date(2026, time.October, 15, 7, 30, 0, 0, time.UTC)
	c := Default()

	got, err := c.Date(now)
	if err != nil || !got.Equal(now) {
		t.Errorf("no override: got %v %v", got, err)
	}

	for _, in := range []string{"2026-10-08", "10/8/2026", "Oct 8, 2026"} {
		c.RunDate = in
		got, err := c.Date(now)
		if err != nil {
			t.Errorf("%q: %v", in, err)
			continue
		}
		if got.Year() != 2026 || got.Month() != time.October || got.Day() != 8 {
			t.Errorf("%q: got %v", in, got)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "warn": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
}

func TestRedacted(t *testing.T) {
	c := Default()
	c.Qualys.Password = "hunter2"
	c.Telemetry.OTLPHeaders = map[string]string{"api-key": "secret"}

	r := c.Redacted()
	if r.Qualys.Password == "hunter2" {
		t.Error("password not redacted")
	}
	if _, ok := r.Telemetry.OTLPHeaders["api-key"]; ok {
		t.Error("headers not redacted")
	}
	if c.Qualys.Password != "hunter2" {
		t.Error("original modified")
	}
}
