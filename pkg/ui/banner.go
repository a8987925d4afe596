package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/waftester/vulntracker/pkg/defaults"
)

// Build information - these can be overridden at build time via ldflags:
// go build -ldflags "-X github.com/waftester/vulntracker/pkg/ui.Commit=abc123"
var (
	Version   = defaults.Version
	BuildDate = "unknown"
	Commit    = "dev"
)

// Global UI state
var (
	silentMode  bool
	noColorMode bool
	uiMu        sync.RWMutex
)

// SetSilent enables or disables silent mode (suppresses banner and summary)
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

const bannerArt = `
             __      __                  __
 _   ____ __/ /___  / /__________ ______/ /_____  _____
| | / / / / / / __ \/ __/ ___/ __ '/ ___/ //_/ _ \/ ___/
| |/ / /_/ / / / / / /_/ /  / /_/ / /__/ ,< /  __/ /
|___/\__,_/_/_/ /_/\__/_/   \__,_/\___/_/|_|\___/_/
`

// PrintBanner writes the application banner with version info
func PrintBanner(w io.Writer) {
	if IsSilent() {
		return
	}
	for _, line := range strings.Split(bannerArt, "\n") {
		if line != "" {
			fmt.Fprintln(w, BannerStyle.Render(line))
		}
	}
	fmt.Fprintf(w, "                     v%s\n\n", VersionStyle.Render(Version))
}

// VersionString returns the one-line version report
func VersionString() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", defaults.ToolName, Version, Commit, BuildDate)
}

// PrintSection writes a section header
func PrintSection(w io.Writer, title string) {
	if IsSilent() {
		return
	}
	fmt.Fprintln(w, SectionStyle.Render(title))
	fmt.Fprintln(w, DividerStyle.Render(strings.Repeat("─", min(48, TerminalWidth(48)))))
}

// PrintConfigLine writes an aligned "label  value" line
func PrintConfigLine(w io.Writer, label, value string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(w, "  %s %s\n", ConfigLabelStyle.Render(label), ConfigValueStyle.Render(value))
}

// PrintSuccess writes a success line
func PrintSuccess(w io.Writer, msg string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render(Icon("✔", "[+]")), msg)
}

// PrintWarning writes a warning line
func PrintWarning(w io.Writer, msg string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(w, "%s %s\n", WarningStyle.Render(Icon("!", "[!]")), msg)
}

// PrintError writes an error line. Errors are shown even in silent mode.
func PrintError(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render(Icon("✘", "[x]")), msg)
}
