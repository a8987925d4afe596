// Package pipeline runs one vulntracker job end to end: download the saved
// Qualys report, publish it as a dated detail sheet and rotate the overview
// checkpoint columns.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/waftester/vulntracker/pkg/checkpoint"
	"github.com/waftester/vulntracker/pkg/defaults"
	"github.com/waftester/vulntracker/pkg/duration"
	"github.com/waftester/vulntracker/pkg/publish"
	"github.com/waftester/vulntracker/pkg/qualys"
	"github.com/waftester/vulntracker/pkg/workbook"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// API is the part of the Qualys client the pipeline drives.
type API interface {
	StartSession(ctx context.Context) (qualys.SessionToken, error)
	KillSession(ctx context.Context, token qualys.SessionToken) error
	LocateReport(ctx context.Context, token qualys.SessionToken, title string) (qualys.Report, error)
	FetchReport(ctx context.Context, token qualys.SessionToken, id string) ([]byte, error)
}

// Recorder receives run telemetry (optional).
type Recorder interface {
	ObserveReport(rows int)
	ObserveRotation(sheet string, err error)
}

// Options configures a Runner.
type Options struct {
	// ReportTitle is the exact title of the saved report to download
	ReportTitle string

	// Label is the run date label used in sheet titles and column headers
	Label string

	// OverviewSheets are rotated in order (default: defaults.OverviewSheets)
	OverviewSheets []string

	// Publish controls the detail sheet (zero value: publish.DefaultOptions())
	Publish    publish.Options
	Checkpoint checkpoint.Options

	// Tracer creates one span per step (default: the global tracer)
	Tracer trace.Tracer

	// Metrics is notified of report size and rotation outcomes (optional)
	Metrics Recorder

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger
}

// SheetFailure is one overview sheet that could not be rotated.
type SheetFailure struct {
	Sheet string
	Err   error
}

// Summary describes what a run did. Run returns it even on failure.
type Summary struct {
	RunID       string
	Label       string
	ReportTitle string
	ReportID    string

	// DetailSheet is the name the workbook gave the imported sheet
	DetailSheet string
	Rows        int
	Cols        int

	// PreambleRows is how many rows above the header Format removed
	PreambleRows int

	Rotations []*checkpoint.Result
	Failures  []SheetFailure

	LoggedOut bool
	Saved     bool

	StartedAt time.Time
	Duration  time.Duration
}

// Partial reports whether some overview sheets failed to rotate.
func (s *Summary) Partial() bool { return len(s.Failures) > 0 }

// Runner executes the pipeline against one API client and one workbook.
type Runner struct {
	api       API
	wb        workbook.Workbook
	opts      Options
	logger    *slog.Logger
	tracer    trace.Tracer
	publisher *publish.Publisher
	rotator   *checkpoint.Rotator
}

// NewRunner validates opts and returns a Runner.
func NewRunner(api API, wb workbook.Workbook, opts Options) (*Runner, error) {
	if api == nil || wb == nil {
		return nil, fmt.Errorf("%w: api client and workbook are required", ErrInvalidOptions)
	}
	if opts.ReportTitle == "" {
		return nil, fmt.Errorf("%w: report title is required", ErrInvalidOptions)
	}
	if opts.Label == "" {
		return nil, fmt.Errorf("%w: date label is required", ErrInvalidOptions)
	}
	if opts.Publish == (publish.Options{}) {
		opts.Publish = publish.DefaultOptions()
	}
	if opts.OverviewSheets == nil {
		opts.OverviewSheets = defaults.OverviewSheets
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(defaults.ToolName)
	}
	logger := opts.Logger.With(slog.String("component", "pipeline"))
	return &Runner{
		api:       api,
		wb:        wb,
		opts:      opts,
		logger:    logger,
		tracer:    opts.Tracer,
		publisher: publish.New(wb, opts.Publish, logger),
		rotator:   checkpoint.NewRotator(opts.Checkpoint, logger),
	}, nil
}

// Run executes login, locate, fetch, import, logout, format, rotation and
// save in that order. Failures before the import leave the workbook
// untouched. Once the import succeeded the workbook is saved even if a later
// step fails. A failed logout is logged and ignored. Rotation failures are
// collected per sheet and reported as ErrPartial.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{
		RunID:       uuid.NewString(),
		Label:       r.opts.Label,
		ReportTitle: r.opts.ReportTitle,
		DetailSheet: r.publisher.Title(r.opts.Label),
		StartedAt:   time.Now(),
	}
	defer func() { sum.Duration = time.Since(sum.StartedAt) }()

	ctx, span := r.tracer.Start(ctx, "vulntracker.run", trace.WithAttributes(
		attribute.String("run.id", sum.RunID),
		attribute.String("report.title", r.opts.ReportTitle),
		attribute.String("run.label", r.opts.Label),
	))
	defer span.End()
	logger := r.logger.With(slog.String("run_id", sum.RunID))

	err := r.run(ctx, logger, sum)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
	}
	return sum, err
}

func (r *Runner) run(ctx context.Context, logger *slog.Logger, sum *Summary) error {
	var token qualys.SessionToken
	err := r.step(ctx, "login", func(ctx context.Context) error {
		var err error
		token, err = r.api.StartSession(ctx)
		return err
	})

	sessionOpen := token != ""
	logout := func() {
		if !sessionOpen {
			return
		}
		sessionOpen = false
		// still log out when the run context was canceled
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), duration.HTTPSession)
		defer cancel()
		lerr := r.step(lctx, "logout", func(ctx context.Context) error {
			return r.api.KillSession(ctx, token)
		})
		if lerr != nil {
			logger.Warn("logout failed, continuing", slog.String("error", lerr.Error()))
			return
		}
		sum.LoggedOut = true
	}
	defer logout()

	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	logger.Info("session started")

	var report qualys.Report
	err = r.step(ctx, "locate", func(ctx context.Context) error {
		var err error
		report, err = r.api.LocateReport(ctx, token, r.opts.ReportTitle)
		return err
	})
	if err != nil {
		return fmt.Errorf("locate report: %w", err)
	}
	sum.ReportID = report.ID

	var grid publish.Grid
	err = r.step(ctx, "fetch", func(ctx context.Context) error {
		body, err := r.api.FetchReport(ctx, token, report.ID)
		if err != nil {
			return err
		}
		grid, err = publish.ParseGrid(bytes.NewReader(body))
		return err
	})
	if err != nil {
		return fmt.Errorf("fetch report %s: %w", report.ID, err)
	}

	err = r.step(ctx, "import", func(ctx context.Context) error {
		sheet, err := r.publisher.Import(ctx, r.opts.Label, grid)
		if err != nil {
			return err
		}
		sum.DetailSheet = sheet.Name()
		return nil
	})
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	sum.Rows, sum.Cols = grid.Rows(), grid.Cols()
	if r.opts.Metrics != nil {
		r.opts.Metrics.ObserveReport(grid.Rows())
	}

	logout()

	// From here on the workbook holds the new sheet and must be saved.
	err = r.step(ctx, "format", func(ctx context.Context) error {
		n, err := r.publisher.Format(ctx, r.opts.Label)
		sum.PreambleRows = n
		return err
	})
	if err != nil {
		return errors.Join(fmt.Errorf("format: %w", err), r.save(ctx, sum))
	}

	for _, name := range r.opts.OverviewSheets {
		res, err := r.rotate(ctx, name, sum)
		if r.opts.Metrics != nil {
			r.opts.Metrics.ObserveRotation(name, err)
		}
		if err != nil {
			logger.Error("overview rotation failed",
				slog.String("sheet", name),
				slog.String("error", err.Error()))
			sum.Failures = append(sum.Failures, SheetFailure{Sheet: name, Err: err})
			continue
		}
		sum.Rotations = append(sum.Rotations, res)
	}

	if err := r.save(ctx, sum); err != nil {
		return err
	}

	if sum.Partial() {
		errs := make([]error, len(sum.Failures))
		for i, f := range sum.Failures {
			errs[i] = fmt.Errorf("%s: %w", f.Sheet, f.Err)
		}
		return fmt.Errorf("%w: %w", ErrPartial, errors.Join(errs...))
	}
	logger.Info("run complete",
		slog.String("sheet", sum.DetailSheet),
		slog.Int("rows", sum.Rows),
		slog.Int("rotated", len(sum.Rotations)))
	return nil
}

func (r *Runner) rotate(ctx context.Context, name string, sum *Summary) (*checkpoint.Result, error) {
	var res *checkpoint.Result
	err := r.step(ctx, "rotate", func(ctx context.Context) error {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("sheet", name))
		sheet, err := r.wb.Sheet(name)
		if err != nil {
			return err
		}
		res, err = r.rotator.Rotate(ctx, sheet, sum.DetailSheet, r.opts.Label)
		return err
	})
	return res, err
}

func (r *Runner) save(ctx context.Context, sum *Summary) error {
	err := r.step(ctx, "save", func(context.Context) error {
		return r.wb.Save()
	})
	if err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	sum.Saved = true
	return nil
}

// step runs fn inside a child span named after the step.
func (r *Runner) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, name)
	defer span.End()
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
