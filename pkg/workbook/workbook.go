// Package workbook abstracts the spreadsheet operations vulntracker needs
// behind two small interfaces, so the pipeline can run against an .xlsx
// file or an in-memory fake.
//
// Rows and columns are 1-based everywhere, like spreadsheet coordinates.
package workbook

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sentinel errors for workbook failure modes.
var (
	// ErrSheetNotFound indicates no sheet has the requested name.
	ErrSheetNotFound = errors.New("workbook: sheet not found")

	// ErrSheetExists indicates a sheet with the requested name already exists.
	ErrSheetExists = errors.New("workbook: sheet already exists")

	// ErrOutOfRange indicates a row or column index below 1 or past the sheet.
	ErrOutOfRange = errors.New("workbook: index out of range")

	// ErrBackend wraps failures reported by the storage backend.
	ErrBackend = errors.New("workbook: backend error")
)

// Workbook is an open spreadsheet document.
type Workbook interface {
	// Sheet returns the sheet with the given name or ErrSheetNotFound.
	Sheet(name string) (Sheet, error)

	// SheetNames lists sheet names in tab order.
	SheetNames() []string

	// InsertSheet adds an empty sheet at tab position index (0-based,
	// clamped to the sheet count) with a generated placeholder name.
	InsertSheet(index int) (Sheet, error)

	// Save persists every change made so far.
	Save() error

	Close() error
}

// Sheet is one tab of a Workbook.
type Sheet interface {
	Name() string
	Rename(name string) error

	// LastRow and LastColumn are the extent of non-empty cells (0 when empty).
	LastRow() (int, error)
	LastColumn() (int, error)

	// DataRange returns the rectangle from A1 to (LastRow, LastColumn).
	DataRange() ([][]string, error)

	// WriteRange writes values with its top-left cell at (row, col).
	WriteRange(row, col int, values [][]string) error
	SetValue(row, col int, value string) error

	// DeleteRow removes a row, shifting the rows below it up.
	DeleteRow(row int) error

	// CreateFilter installs the sheet's single auto-filter over r.
	CreateFilter(r Range) error

	SetRowHeights(startRow, count int, height float64) error

	// InsertColumnBefore inserts an empty column at col, shifting col and
	// everything right of it one position right.
	InsertColumnBefore(col int) error

	// CopyValues copies cell values (never formatting or formulas) from src
	// to the same-sized rectangle whose top-left cell is (dstRow, dstCol).
	CopyValues(src Range, dstRow, dstCol int) error

	ConditionalFormatRules() ([]ConditionalFormatRule, error)

	// SetConditionalFormatRules replaces every rule on the sheet.
	SetConditionalFormatRules(rules []ConditionalFormatRule) error
	ClearConditionalFormatRules() error

	HideColumn(col int) error
}

// Range is a rectangle of cells.
type Range struct {
	Row, Col   int
	Rows, Cols int
}

// Column returns the range covering rows [fromRow, toRow] of one column.
func Column(col, fromRow, toRow int) Range {
	return Range{Row: fromRow, Col: col, Rows: toRow - fromRow + 1, Cols: 1}
}

// Valid reports whether the range has a positive size inside the sheet grid.
func (r Range) Valid() bool {
	return r.Row >= 1 && r.Col >= 1 && r.Rows >= 1 && r.Cols >= 1
}

// Contains reports whether (row, col) is inside r.
func (r Range) Contains(row, col int) bool {
	return row >= r.Row && row < r.Row+r.Rows && col >= r.Col && col < r.Col+r.Cols
}

// String renders r in A1 notation ("C3:C40").
func (r Range) String() string {
	if !r.Valid() {
		return fmt.Sprintf("invalid(%d,%d,%d,%d)", r.Row, r.Col, r.Rows, r.Cols)
	}
	start := CellName(r.Col, r.Row)
	if r.Rows == 1 && r.Cols == 1 {
		return start
	}
	return start + ":" + CellName(r.Col+r.Cols-1, r.Row+r.Rows-1)
}

// ColumnName converts a 1-based column number to its letters (1 -> "A").
func ColumnName(col int) string {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return ""
	}
	return name
}

// CellName converts 1-based coordinates to an A1 reference.
func CellName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return ""
	}
	return name
}

// ConditionalFormatRule colors the cells of Ranges whose Formula is true.
// Formula is written without a leading '=' and is relative to the top-left
// cell of the first range.
type ConditionalFormatRule struct {
	Formula    string
	Background string
	Ranges     []Range

	// styleID keeps an existing xlsx differential style when a rule read
	// from a file is written back unchanged.
	styleID *int
}

func checkCell(row, col int) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("%w: row %d col %d", ErrOutOfRange, row, col)
	}
	return nil
}

// pad returns grid as a rows x cols rectangle, filling gaps with "".
func pad(grid [][]string, rows, cols int) [][]string {
	out := make([][]string, rows)
	for i := range out {
		out[i] = make([]string, cols)
		if i < len(grid) {
			copy(out[i], grid[i])
		}
	}
	return out
}
