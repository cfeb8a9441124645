package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rodaine/table"

	"github.com/shonenark/ark-gateway/internal/domain"
)

// OutputFormat selects how results are printed.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
)

func parseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("invalid format: %s (must be table or json)", s)
	}
}

var (
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleFail   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleHeader = lipgloss.NewStyle().Bold(true).Underline(true)
)

func newTable(w io.Writer, headers ...any) table.Table {
	return table.New(headers...).
		WithWriter(w).
		WithHeaderFormatter(func(format string, vals ...any) string {
			return styleHeader.Render(fmt.Sprintf(format, vals...))
		}).
		WithWidthFunc(lipgloss.Width)
}

func statusCell(ok bool) string {
	if ok {
		return styleOK.Render("ok")
	}
	return styleFail.Render("FAILED")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSummary prints the per-workflow table followed by the totals and,
// for each failure, the captured error.
func printSummary(w io.Writer, s *domain.Summary) {
	if s.Total == 0 {
		fmt.Fprintln(w, "No workflow files found.")
		return
	}

	tbl := newTable(w, "Workflow", "File", "Status", "Action", "ID", "Active")
	for _, r := range s.Results {
		active := ""
		if r.Activated {
			active = "yes"
		}
		tbl.AddRow(r.WorkflowName, r.File, statusCell(r.Success), string(r.Action), r.RemoteID, active)
	}
	tbl.Print()

	fmt.Fprintln(w)
	for _, r := range s.Results {
		for _, warning := range r.Warnings {
			fmt.Fprintf(w, "%s %s: %s\n", styleWarn.Render("warning"), r.WorkflowName, warning)
		}
	}

	mode := ""
	if s.DryRun {
		mode = styleDim.Render(" (dry run, nothing was changed)")
	}
	fmt.Fprintf(w, "Deployed %d/%d workflows in %s%s\n",
		s.Succeeded, s.Total, s.Duration.Round(time.Millisecond), mode)

	if failures := s.Failures(); len(failures) > 0 {
		fmt.Fprintf(w, "%s\n", styleFail.Render(fmt.Sprintf("%d failed:", len(failures))))
		for _, r := range failures {
			fmt.Fprintf(w, "  - %s: %s\n", r.WorkflowName, r.Error)
		}
	}
}

func printRuns(w io.Writer, runs []*domain.Summary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No deployments recorded.")
		return
	}

	tbl := newTable(w, "Run", "Started", "Total", "OK", "Failed", "Duration")
	for _, r := range runs {
		tbl.AddRow(r.RunID, r.StartedAt.Local().Format(time.DateTime), r.Total,
			r.Succeeded, failedCell(r.Failed), r.Duration.Round(time.Millisecond))
	}
	tbl.Print()
}

func failedCell(n int) string {
	if n == 0 {
		return "0"
	}
	return styleFail.Render(fmt.Sprint(n))
}

// mask hides all but the last four characters of a secret.
func mask(s string) string {
	switch {
	case s == "":
		return styleDim.Render("(not set)")
	case len(s) <= 4:
		return "****"
	default:
		return "****" + s[len(s)-4:]
	}
}
