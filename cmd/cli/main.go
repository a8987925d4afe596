package main

import (
	"fmt"
	"io"
	"os"

	"github.com/waftester/vulntracker/pkg/defaults"
	"github.com/waftester/vulntracker/pkg/ui"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return defaults.ExitUserError
	}

	switch args[0] {
	case "run":
		return runPipeline(args[1:], stderr)
	case "-h", "--help", "help":
		printUsage(stdout)
		return defaults.ExitSuccess
	case "-version", "--version", "version":
		fmt.Fprintln(stdout, ui.VersionString())
		return defaults.ExitSuccess
	default:
		ui.PrintError(stderr, fmt.Sprintf("unknown command %q", args[0]))
		printUsage(stderr)
		return defaults.ExitUserError
	}
}

func printUsage(w io.Writer) {
	ui.PrintBanner(w)

	fmt.Fprintln(w, ui.SectionStyle.Render("USAGE"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", ui.ConfigValueStyle.Render(defaults.ToolName+" run -report \"Weekly Vulns\" -workbook tracker.xlsx"))
	fmt.Fprintf(w, "  %s\n", ui.ConfigValueStyle.Render(defaults.ToolName+" run -config vulntracker.yaml -date 2026-10-15"))
	fmt.Fprintln(w)

	fmt.Fprintln(w, ui.SectionStyle.Render("COMMANDS"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s  %s\n", ui.StatValueStyle.Render("run    "), "Download the saved report, publish it and rotate the overview sheets")
	fmt.Fprintf(w, "  %s  %s\n", ui.StatValueStyle.Render("version"), "Print version information")
	fmt.Fprintf(w, "  %s  %s\n", ui.StatValueStyle.Render("help   "), "Show this help")
	fmt.Fprintln(w)

	fmt.Fprintln(w, ui.SectionStyle.Render("ENVIRONMENT"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  QUALYS_BASE_URL, QUALYS_USERNAME, QUALYS_PASSWORD, QUALYS_REPORT_TITLE,")
	fmt.Fprintln(w, "  VULNTRACKER_WORKBOOK, VULNTRACKER_METRICS_FILE")
	fmt.Fprintln(w)

	fmt.Fprintln(w, ui.SectionStyle.Render("EXIT CODES"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  0 success   1 partial   2 usage/config   3 network/auth/API   4 workbook/internal")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run '%s run -h' for all flags.\n", defaults.ToolName)
}
