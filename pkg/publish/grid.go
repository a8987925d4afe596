package publish

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/waftester/vulntracker/pkg/defaults"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// ErrEmptyReport indicates the downloaded report had no records.
	ErrEmptyReport = errors.New("publish: empty report")

	// ErrMalformedReport indicates the report body is not readable CSV.
	ErrMalformedReport = errors.New("publish: malformed report")

	// ErrHeaderNotFound indicates no row starts with the header sentinel.
	ErrHeaderNotFound = errors.New("publish: header row not found")
)

// Grid is a rectangular block of report cells, row-major.
type Grid [][]string

// Rows returns the number of rows.
func (g Grid) Rows() int { return len(g) }

// Cols returns the width of the grid.
func (g Grid) Cols() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// ParseGrid reads a CSV report. Qualys prefixes the column header with a
// preamble whose records are narrower than the data, so field counts may
// vary; short records are right-padded to the widest one.
func ParseGrid(r io.Reader) (Grid, error) {
	// BOMOverride drops a leading UTF-8 byte order mark
	tr := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(tr)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedReport, err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyReport
	}

	width := 0
	for _, rec := range records {
		width = max(width, len(rec))
	}
	grid := make(Grid, len(records))
	for i, rec := range records {
		if len(rec) == width {
			grid[i] = rec
			continue
		}
		row := make([]string, width)
		copy(row, rec)
		grid[i] = row
	}
	return grid, nil
}

// DateLabel formats the run date for sheet titles and checkpoint headers.
func DateLabel(t time.Time, layout string) string {
	if layout == "" {
		layout = defaults.DateLayout
	}
	return t.Format(layout)
}

// Title returns the detail sheet title for label.
func Title(format, label string) string {
	if format == "" {
		format = defaults.DetailSheetTitle
	}
	return fmt.Sprintf(format, label)
}
