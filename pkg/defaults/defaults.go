// Package defaults provides canonical default values for vulntracker.
// This is the SINGLE SOURCE OF TRUTH for runtime configuration defaults.
//
// Usage:
//
//	cfg.Workbook.HeaderSentinel = defaults.HeaderSentinel
//	req.Header.Set("Content-Type", defaults.ContentTypeForm)
//
// DO NOT hardcode sheet names, offsets or colors anywhere else.
// Reference the appropriate constant from this package instead.
package defaults

import "fmt"

// Version is the current vulntracker version
const Version = "1.2.0"

// ToolName is used for the User-Agent, X-Requested-With and telemetry service name
const ToolName = "vulntracker"

// ============================================================================
// QUALYS API
// ============================================================================

const (
	// QualysBaseURL is the EU2 platform API gateway
	QualysBaseURL = "https://qualysapi.qg2.apps.qualys.eu"

	// SessionPath is the session resource (login/logout)
	SessionPath = "/api/2.0/fo/session/"

	// ReportPath is the report resource (list/fetch)
	ReportPath = "/api/2.0/fo/report/"

	// SessionCookie is the cookie that carries the session token
	SessionCookie = "QualysSession"
)

// ============================================================================
// CONTENT TYPES
// ============================================================================

const (
	// ContentTypeForm is application/x-www-form-urlencoded
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// ============================================================================
// WORKBOOK LAYOUT
// ============================================================================
//
// Indices are 1-based like spreadsheet rows and columns, except
// DetailSheetIndex which is a 0-based tab position.
// ============================================================================

const (
	// DetailSheetIndex is the tab position of the new dated detail sheet
	DetailSheetIndex = 3

	// DetailSheetTitle is the fmt format for the detail sheet name and the overview title cell
	DetailSheetTitle = "Vulnerability Details (%s)"

	// DateLayout is the Go layout for run date labels (10/15/26)
	DateLayout = "1/2/06"

	// HeaderSentinel is the first cell of the report's column header row
	HeaderSentinel = "IP"

	// RowHeight is the forced height for every detail sheet row
	RowHeight = 21.0

	// LeadingOffset is how far the leading checkpoint column sits from the last column
	LeadingOffset = 3

	// VisibleWindow is how many checkpoint columns stay visible
	VisibleWindow = 3

	// FirstDataRow is the first overview row covered by trend formatting.
	// Rows above it hold the title and date labels.
	FirstDataRow = 3
)

// OverviewSheets are the long-lived sheets rotated on every run
var OverviewSheets = []string{"Linux Overview", "Windows Overview", "Remediated"}

// Trend colors for the checkpoint conditional formatting rules
const (
	// ColorImproved marks a count that went down since the previous checkpoint
	ColorImproved = "#D9EAD3"

	// ColorRegressed marks a count that went up
	ColorRegressed = "#F4CCCC"

	// ColorCleared marks a count that stayed at zero
	ColorCleared = "#93C47D"
)

// ============================================================================
// USER AGENTS
// ============================================================================

// UserAgent returns the vulntracker user agent, optionally with context
func UserAgent(context string) string {
	if context == "" {
		return fmt.Sprintf("%s/%s", ToolName, Version)
	}
	return fmt.Sprintf("%s/%s (%s)", ToolName, Version, context)
}
