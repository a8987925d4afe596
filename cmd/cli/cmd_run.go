package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waftester/vulntracker/pkg/checkpoint"
	"github.com/waftester/vulntracker/pkg/config"
	"github.com/waftester/vulntracker/pkg/defaults"
	"github.com/waftester/vulntracker/pkg/duration"
	"github.com/waftester/vulntracker/pkg/httpclient"
	"github.com/waftester/vulntracker/pkg/metrics"
	"github.com/waftester/vulntracker/pkg/pipeline"
	"github.com/waftester/vulntracker/pkg/publish"
	"github.com/waftester/vulntracker/pkg/qualys"
	"github.com/waftester/vulntracker/pkg/tracing"
	"github.com/waftester/vulntracker/pkg/ui"
	"github.com/waftester/vulntracker/pkg/workbook"
)

func runPipeline(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfg, flags, err := config.Resolve(fs, args, os.LookupEnv)
	if errors.Is(err, flag.ErrHelp) {
		return defaults.ExitSuccess
	}
	if flags != nil {
		ui.SetNoColor(flags.NoColor)
		ui.SetSilent(flags.Silent)
	}
	if err != nil {
		ui.PrintError(stderr, err.Error())
		return defaults.ExitUserError
	}

	logger, err := newLogger(stderr, cfg.Log)
	if err != nil {
		ui.PrintError(stderr, err.Error())
		return defaults.ExitUserError
	}
	slog.SetDefault(logger)

	date, err := cfg.Date(time.Now())
	if err != nil {
		ui.PrintError(stderr, err.Error())
		return defaults.ExitUserError
	}
	label := publish.DateLabel(date, cfg.Workbook.DateLayout)

	ui.PrintBanner(stderr)
	ui.PrintSection(stderr, "Configuration")
	ui.PrintConfigLine(stderr, "Workbook", cfg.Workbook.Path)
	ui.PrintConfigLine(stderr, "Report", cfg.Qualys.ReportTitle)
	ui.PrintConfigLine(stderr, "Run date", label)
	ui.PrintConfigLine(stderr, "API", cfg.Qualys.BaseURL)
	logger.Debug("configuration resolved", slog.Any("config", cfg.Redacted()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, duration.RunTimeout)
	defer cancel()

	rec, err := metrics.New()
	if err != nil {
		ui.PrintError(stderr, err.Error())
		return defaults.ExitInternalError
	}

	tp, err := tracing.Setup(tracing.Options{
		Endpoint: cfg.Telemetry.OTLPEndpoint,
		Insecure: cfg.Telemetry.OTLPInsecure,
		Headers:  cfg.Telemetry.OTLPHeaders,
	})
	if err != nil {
		logger.Warn("tracing disabled", slog.String("error", err.Error()))
		tp, _ = tracing.Setup(tracing.Options{})
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("trace flush failed", slog.String("error", err.Error()))
		}
	}()

	client, err := qualys.New(qualys.Options{
		BaseURL:  cfg.Qualys.BaseURL,
		Username: cfg.Qualys.Username,
		Password: cfg.Qualys.Password,
		HTTPClient: httpclient.New(httpclient.Config{
			Timeout:            cfg.Qualys.Timeout,
			Proxy:              cfg.Qualys.Proxy,
			InsecureSkipVerify: cfg.Qualys.InsecureSkipVerify,
			UserAgent:          defaults.UserAgent(""),
		}),
		RequestsPerMinute: cfg.Qualys.RequestsPerMinute,
		MaxReportSize:     cfg.Qualys.MaxReportSize,
		Logger:            logger,
		Observer:          rec,
	})
	if err != nil {
		ui.PrintError(stderr, err.Error())
		return defaults.ExitUserError
	}

	wb, err := workbook.OpenXLSX(cfg.Workbook.Path)
	if err != nil {
		ui.PrintError(stderr, err.Error())
		return exitCode(err)
	}
	defer func() {
		if err := wb.Close(); err != nil {
			logger.Warn("workbook close failed", slog.String("error", err.Error()))
		}
	}()

	runner, err := pipeline.NewRunner(client, wb, pipeline.Options{
		ReportTitle:    cfg.Qualys.ReportTitle,
		Label:          label,
		OverviewSheets: cfg.Workbook.OverviewSheets,
		Publish: publish.Options{
			SheetIndex:     cfg.Workbook.DetailSheetIndex,
			TitleFormat:    cfg.Workbook.TitleFormat,
			HeaderSentinel: cfg.Workbook.HeaderSentinel,
			RowHeight:      cfg.Workbook.RowHeight,
		},
		Checkpoint: checkpoint.Options{
			LeadingOffset: cfg.Workbook.LeadingOffset,
			VisibleWindow: cfg.Workbook.VisibleWindow,
			FirstDataRow:  cfg.Workbook.FirstDataRow,
		},
		Tracer:  tp.Tracer(),
		Metrics: rec,
		Logger:  logger,
	})
	if err != nil {
		ui.PrintError(stderr, err.Error())
		return exitCode(err)
	}

	started := time.Now()
	sum, runErr := runner.Run(ctx)
	rec.ObserveRun(time.Since(started), time.Now(), runErr == nil)

	if path := cfg.Telemetry.MetricsFile; path != "" {
		if err := rec.WriteTextfile(path); err != nil {
			logger.Warn("metrics not written", slog.String("error", err.Error()))
		}
	}

	ui.PrintSummary(stderr, sum, runErr)
	if runErr != nil {
		logger.Error("run failed",
			slog.String("kind", pipeline.ErrorKind(runErr)),
			slog.String("error", runErr.Error()))
		if pipeline.ErrorKind(runErr) == pipeline.KindPartial {
			ui.PrintWarning(stderr, fmt.Sprintf("%d overview sheet(s) not rotated", len(sum.Failures)))
		} else {
			ui.PrintError(stderr, runErr.Error())
		}
		return exitCode(runErr)
	}
	ui.PrintSuccess(stderr, fmt.Sprintf("published %s", sum.DetailSheet))
	return defaults.ExitSuccess
}
