package pipeline

import (
	"context"
	"errors"

	"github.com/waftester/vulntracker/pkg/checkpoint"
	"github.com/waftester/vulntracker/pkg/publish"
	"github.com/waftester/vulntracker/pkg/qualys"
	"github.com/waftester/vulntracker/pkg/workbook"
)

var (
	// ErrPartial indicates the report was published but at least one
	// overview sheet could not be rotated.
	ErrPartial = errors.New("pipeline: some overview sheets were not rotated")

	// ErrInvalidOptions indicates the Runner was built with missing inputs.
	ErrInvalidOptions = errors.New("pipeline: invalid options")
)

// Error kinds reported by ErrorKind.
const (
	KindAuth     = "auth"
	KindNotFound = "not_found"
	KindParse    = "parse"
	KindBackend  = "backend"
	KindNetwork  = "network"
	KindPartial  = "partial"
	KindUnknown  = "unknown"
)

// ErrorKind classifies a Run error. Partial results take precedence because
// their wrapped per-sheet causes are usually backend errors.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPartial):
		return KindPartial
	case errors.Is(err, qualys.ErrAuth):
		return KindAuth
	case errors.Is(err, qualys.ErrReportNotFound):
		return KindNotFound
	case errors.Is(err, qualys.ErrParse),
		errors.Is(err, publish.ErrEmptyReport),
		errors.Is(err, publish.ErrMalformedReport),
		errors.Is(err, publish.ErrHeaderNotFound):
		return KindParse
	case errors.Is(err, workbook.ErrBackend),
		errors.Is(err, workbook.ErrSheetExists),
		errors.Is(err, workbook.ErrSheetNotFound),
		errors.Is(err, workbook.ErrOutOfRange),
		errors.Is(err, checkpoint.ErrSheetTooNarrow):
		return KindBackend
	case errors.Is(err, qualys.ErrNetwork),
		errors.Is(err, qualys.ErrAPI),
		errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	default:
		return KindUnknown
	}
}
