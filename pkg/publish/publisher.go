// Package publish writes a downloaded report into the tracking workbook as a
// dated detail sheet and tidies that sheet for reading.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/waftester/vulntracker/pkg/defaults"
	"github.com/waftester/vulntracker/pkg/workbook"
)

// Options controls where and how the detail sheet is written.
type Options struct {
	// SheetIndex is the 0-based tab position of the new sheet.
	SheetIndex int

	// TitleFormat is a fmt format taking the date label.
	TitleFormat string

	// HeaderSentinel is the first cell of the column header row.
	HeaderSentinel string

	// RowHeight is applied to every row by Format.
	RowHeight float64
}

// DefaultOptions returns the standard detail sheet layout.
func DefaultOptions() Options {
	return Options{
		SheetIndex:     defaults.DetailSheetIndex,
		TitleFormat:    defaults.DetailSheetTitle,
		HeaderSentinel: defaults.HeaderSentinel,
		RowHeight:      defaults.RowHeight,
	}
}

// Publisher imports and formats detail sheets in one workbook.
type Publisher struct {
	wb     workbook.Workbook
	opts   Options
	logger *slog.Logger
}

// New creates a Publisher. Empty strings and non-positive heights take their
// defaults. SheetIndex 0 is a valid tab position, so only a negative index
// falls back to the default; start from DefaultOptions for the standard
// layout.
func New(wb workbook.Workbook, opts Options, logger *slog.Logger) *Publisher {
	d := DefaultOptions()
	if opts.TitleFormat == "" {
		opts.TitleFormat = d.TitleFormat
	}
	if opts.HeaderSentinel == "" {
		opts.HeaderSentinel = d.HeaderSentinel
	}
	if opts.RowHeight <= 0 {
		opts.RowHeight = d.RowHeight
	}
	if opts.SheetIndex < 0 {
		opts.SheetIndex = d.SheetIndex
	}
	return &Publisher{wb: wb, opts: opts, logger: orDefault(logger)}
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// Title returns the detail sheet title for label.
func (p *Publisher) Title(label string) string {
	return Title(p.opts.TitleFormat, label)
}

// Import creates the dated detail sheet and writes grid at A1. An existing
// sheet with the same title is never overwritten: the workbook is left
// untouched and the error wraps workbook.ErrSheetExists.
func (p *Publisher) Import(ctx context.Context, label string, grid Grid) (workbook.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if grid.Rows() == 0 {
		return nil, ErrEmptyReport
	}
	title := p.Title(label)

	_, err := p.wb.Sheet(title)
	switch {
	case err == nil:
		return nil, fmt.Errorf("import %q: %w", title, workbook.ErrSheetExists)
	case !errors.Is(err, workbook.ErrSheetNotFound):
		return nil, fmt.Errorf("import %q: %w", title, err)
	}

	sheet, err := p.wb.InsertSheet(p.opts.SheetIndex)
	if err != nil {
		return nil, fmt.Errorf("import %q: %w", title, err)
	}
	if err := sheet.Rename(title); err != nil {
		return nil, fmt.Errorf("import %q: %w", title, err)
	}
	if err := sheet.WriteRange(1, 1, grid); err != nil {
		return nil, fmt.Errorf("import %q: %w", title, err)
	}

	p.logger.Info("report imported",
		slog.String("sheet", title),
		slog.Int("rows", grid.Rows()),
		slog.Int("cols", grid.Cols()))
	return sheet, nil
}

// Format strips the report preamble above the header row, installs an
// auto-filter over the remaining data and forces a uniform row height. It
// returns the number of preamble rows deleted. When no row starts with the
// header sentinel nothing is changed and ErrHeaderNotFound is returned.
func (p *Publisher) Format(ctx context.Context, label string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	title := p.Title(label)
	sheet, err := p.wb.Sheet(title)
	if err != nil {
		return 0, fmt.Errorf("format %q: %w", title, err)
	}

	data, err := sheet.DataRange()
	if err != nil {
		return 0, fmt.Errorf("format %q: %w", title, err)
	}
	header := -1
	for i, row := range data {
		if len(row) > 0 && row[0] == p.opts.HeaderSentinel {
			header = i + 1
			break
		}
	}
	if header < 0 {
		return 0, fmt.Errorf("format %q: %w: no row starting with %q",
			title, ErrHeaderNotFound, p.opts.HeaderSentinel)
	}

	// bottom-up so earlier row numbers stay valid
	for row := header - 1; row >= 1; row-- {
		if err := sheet.DeleteRow(row); err != nil {
			return 0, fmt.Errorf("format %q: delete row %d: %w", title, row, err)
		}
	}
	deleted := header - 1

	lastRow, err := sheet.LastRow()
	if err != nil {
		return deleted, fmt.Errorf("format %q: %w", title, err)
	}
	lastCol, err := sheet.LastColumn()
	if err != nil {
		return deleted, fmt.Errorf("format %q: %w", title, err)
	}
	if err := sheet.CreateFilter(workbook.Range{Row: 1, Col: 1, Rows: lastRow, Cols: lastCol}); err != nil {
		return deleted, fmt.Errorf("format %q: filter: %w", title, err)
	}
	if err := sheet.SetRowHeights(1, lastRow, p.opts.RowHeight); err != nil {
		return deleted, fmt.Errorf("format %q: row heights: %w", title, err)
	}

	p.logger.Info("detail sheet formatted",
		slog.String("sheet", title),
		slog.Int("preamble_rows", deleted),
		slog.Int("rows", lastRow))
	return deleted, nil
}
