// Package checkpoint rotates the per-date checkpoint columns of the overview
// sheets: the leading column is frozen into a value snapshot, a fresh leading
// column takes over with trend highlighting, and the oldest visible column
// ages out of view.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/waftester/vulntracker/pkg/defaults"
	"github.com/waftester/vulntracker/pkg/workbook"
)

// ErrSheetTooNarrow indicates the sheet has no column at the leading offset.
var ErrSheetTooNarrow = errors.New("checkpoint: sheet too narrow to rotate")

// Options controls the overview sheet layout
type Options struct {
	// LeadingOffset is the distance from the last column to the leading column
	LeadingOffset int

	// VisibleWindow is how many checkpoint columns stay visible
	VisibleWindow int

	// FirstDataRow is the first row covered by trend rules
	FirstDataRow int
}

// DefaultOptions returns the standard overview layout
func DefaultOptions() Options {
	return Options{
		LeadingOffset: defaults.LeadingOffset,
		VisibleWindow: defaults.VisibleWindow,
		FirstDataRow:  defaults.FirstDataRow,
	}
}

// Result describes one completed rotation
type Result struct {
	// Sheet is the rotated sheet name
	Sheet string

	// LeadingColumn holds the live formulas after rotation
	LeadingColumn int

	// SnapshotColumn holds the frozen values of the previous checkpoint
	SnapshotColumn int

	// HiddenColumn is the column aged out of view, 0 when none
	HiddenColumn int

	// Rules are the trend rules now on the sheet
	Rules []workbook.ConditionalFormatRule
}

// Rotator applies checkpoint rotation to overview sheets
type Rotator struct {
	opts   Options
	logger *slog.Logger
}

// NewRotator creates a Rotator. Zero option fields take their defaults.
func NewRotator(opts Options, logger *slog.Logger) *Rotator {
	d := DefaultOptions()
	if opts.LeadingOffset <= 0 {
		opts.LeadingOffset = d.LeadingOffset
	}
	if opts.VisibleWindow <= 0 {
		opts.VisibleWindow = d.VisibleWindow
	}
	if opts.FirstDataRow <= 0 {
		opts.FirstDataRow = d.FirstDataRow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rotator{opts: opts, logger: logger}
}

// Rotate adds a checkpoint column for label to sheet and points A1 at
// detailSheet, the name of the detail sheet the overview formulas read. A
// failure part way through leaves the steps already applied in place.
func (r *Rotator) Rotate(ctx context.Context, sheet workbook.Sheet, detailSheet, label string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := sheet.Name()

	lastCol, err := sheet.LastColumn()
	if err != nil {
		return nil, fmt.Errorf("rotate %q: %w", name, err)
	}
	if lastCol <= r.opts.LeadingOffset {
		return nil, fmt.Errorf("rotate %q: %w: last column %d, offset %d",
			name, ErrSheetTooNarrow, lastCol, r.opts.LeadingOffset)
	}
	lastRow, err := sheet.LastRow()
	if err != nil {
		return nil, fmt.Errorf("rotate %q: %w", name, err)
	}

	lead := lastCol - r.opts.LeadingOffset
	if err := sheet.InsertColumnBefore(lead); err != nil {
		return nil, fmt.Errorf("rotate %q: insert column: %w", name, err)
	}
	newLead := lead + 1
	res := &Result{Sheet: name, LeadingColumn: newLead, SnapshotColumn: newLead - 1}

	if err := sheet.CopyValues(workbook.Column(newLead, 1, lastRow), 1, res.SnapshotColumn); err != nil {
		return res, fmt.Errorf("rotate %q: snapshot: %w", name, err)
	}

	if err := sheet.ClearConditionalFormatRules(); err != nil {
		return res, fmt.Errorf("rotate %q: clear rules: %w", name, err)
	}
	rules := TrendRules(newLead, r.opts.FirstDataRow, lastRow)
	if err := sheet.SetConditionalFormatRules(rules); err != nil {
		return res, fmt.Errorf("rotate %q: set rules: %w", name, err)
	}
	res.Rules = rules

	if hide := newLead - r.opts.VisibleWindow; hide >= 1 {
		if err := sheet.HideColumn(hide); err != nil {
			return res, fmt.Errorf("rotate %q: hide column: %w", name, err)
		}
		res.HiddenColumn = hide
	}

	if err := sheet.SetValue(1, 1, detailSheet); err != nil {
		return res, fmt.Errorf("rotate %q: title: %w", name, err)
	}
	if err := sheet.SetValue(2, newLead, label); err != nil {
		return res, fmt.Errorf("rotate %q: label: %w", name, err)
	}

	r.logger.Info("checkpoint rotated",
		slog.String("sheet", name),
		slog.String("leading", workbook.ColumnName(newLead)),
		slog.String("snapshot", workbook.ColumnName(res.SnapshotColumn)),
		slog.Int("hidden", res.HiddenColumn))
	return res, nil
}
