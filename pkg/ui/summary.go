package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/waftester/vulntracker/pkg/pipeline"
	"github.com/waftester/vulntracker/pkg/workbook"
)

// PrintSummary writes the end-of-run report for sum. runErr is the error
// Run returned, nil on success.
func PrintSummary(w io.Writer, sum *pipeline.Summary, runErr error) {
	if IsSilent() || sum == nil {
		return
	}
	kind := pipeline.ErrorKind(runErr)
	status := "SUCCESS"
	if kind != "" {
		status = fmt.Sprintf("FAILED (%s)", kind)
		if kind == pipeline.KindPartial {
			status = "PARTIAL"
		}
	}

	PrintSection(w, "Run summary")
	stat := func(label, value string) {
		fmt.Fprintf(w, "  %s %s\n", StatLabelStyle.Render(label), StatValueStyle.Render(value))
	}
	stat("Status", KindStyle(kind).Render(status))
	stat("Run ID", sum.RunID)
	stat("Report", orDash(sum.ReportTitle))
	stat("Report ID", orDash(sum.ReportID))
	if sum.Rows > 0 {
		stat("Detail sheet", SheetStyle.Render(sum.DetailSheet))
		stat("Imported", fmt.Sprintf("%s rows x %d columns", humanize.Comma(int64(sum.Rows)), sum.Cols))
		stat("Preamble rows", fmt.Sprintf("%d removed", sum.PreambleRows))
	}
	for _, r := range sum.Rotations {
		hidden := "none"
		if r.HiddenColumn > 0 {
			hidden = workbook.ColumnName(r.HiddenColumn)
		}
		stat("Rotated", fmt.Sprintf("%s  lead %s, snapshot %s, hid %s",
			SheetStyle.Render(r.Sheet),
			workbook.ColumnName(r.LeadingColumn),
			workbook.ColumnName(r.SnapshotColumn),
			hidden))
	}
	for _, f := range sum.Failures {
		stat("Not rotated", fmt.Sprintf("%s  %s", SheetStyle.Render(f.Sheet), ErrorStyle.Render(f.Err.Error())))
	}
	stat("Logged out", yesNo(sum.LoggedOut))
	stat("Saved", yesNo(sum.Saved))
	stat("Duration", sum.Duration.Round(time.Millisecond).String())
	fmt.Fprintln(w)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
