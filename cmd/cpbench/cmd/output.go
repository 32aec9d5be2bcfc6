package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/corey/cpbench/internal/adapters/socket"
	"github.com/corey/cpbench/internal/domain/testcase"
	"github.com/corey/cpbench/internal/ports"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(10)
	pathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

func field(label, value string) string {
	return "  " + labelStyle.Render(label) + value + "\n"
}

// formatHealth renders daemon status.
func formatHealth(h *socket.HealthResult) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("⚡ cpbench daemon") + "\n")
	sb.WriteString(field("Status", passStyle.Render(h.Status)))
	sb.WriteString(field("Uptime", h.Uptime))
	project := mutedStyle.Render("none")
	if h.ProjectRoot != "" {
		project = pathStyle.Render(h.ProjectRoot)
	}
	sb.WriteString(field("Project", project))
	listener := mutedStyle.Render("off")
	if h.ListenerPort != 0 {
		listener = fmt.Sprintf("127.0.0.1:%d", h.ListenerPort)
	}
	sb.WriteString(field("Listener", listener))
	sb.WriteString(field("Compiler", h.Compiler))
	sb.WriteString(field("Imports", fmt.Sprintf("%d pending", h.PendingImports)))
	sb.WriteString(field("Watchers", fmt.Sprintf("%d", h.Subscribers)))
	return sb.String()
}

// formatSession renders the open project and focus.
func formatSession(s *socket.SessionResult) string {
	var sb strings.Builder
	sb.WriteString(field("Project", pathStyle.Render(s.ProjectRoot)))
	active := mutedStyle.Render("(project root)")
	if s.ActiveFolder != "" {
		active = pathStyle.Render(s.ActiveFolder)
	}
	sb.WriteString(field("Focus", active))
	return sb.String()
}

// formatReport renders a judge report. A build failure shows the
// diagnostics instead of per-case verdicts.
func formatReport(r *testcase.Report, verbose bool) string {
	var sb strings.Builder
	if r.BuildFailed() {
		sb.WriteString(failStyle.Render("✗ build failed") + "  " + pathStyle.Render(r.Source) + "\n")
		sb.WriteString(boxStyle.Render(strings.TrimRight(r.Diagnostics, "\n")) + "\n")
		return sb.String()
	}

	for _, res := range r.Results {
		sb.WriteString(formatResult(res, verbose))
	}

	summary := fmt.Sprintf("%d/%d passed", r.Passed, r.Total)
	switch {
	case r.Total == 0:
		summary = warnStyle.Render("no tests")
	case r.AllPassed():
		summary = passStyle.Render("✓ " + summary)
	default:
		summary = failStyle.Render("✗ " + summary)
	}
	sb.WriteString(fmt.Sprintf("%s  %s\n", summary, mutedStyle.Render(fmt.Sprintf("%dms · %s", r.DurationMs, r.RunID))))
	return sb.String()
}

func formatResult(res testcase.Result, verbose bool) string {
	var sb strings.Builder
	verdict := passStyle.Render("PASS")
	switch {
	case res.TimedOut():
		verdict = warnStyle.Render("TLE ")
	case !res.Passed:
		verdict = failStyle.Render("FAIL")
	}
	sb.WriteString(fmt.Sprintf("  %s %s %s\n", verdict, res.Name, mutedStyle.Render(fmt.Sprintf("(%dms, exit %d)", res.DurationMs, res.ExitCode))))

	if res.Passed && !verbose {
		return sb.String()
	}
	if !res.TimedOut() {
		sb.WriteString(indent("expected", res.Expected))
		sb.WriteString(indent("got", res.Output))
	}
	if text := res.ErrorText(); text != "" && !res.TimedOut() {
		sb.WriteString(indent("stderr", text))
	}
	return sb.String()
}

func indent(label, body string) string {
	body = strings.TrimRight(body, "\n")
	if body == "" {
		body = mutedStyle.Render("(empty)")
	}
	var sb strings.Builder
	sb.WriteString("      " + mutedStyle.Render(label+":") + "\n")
	for _, line := range strings.Split(body, "\n") {
		sb.WriteString("        " + line + "\n")
	}
	return sb.String()
}

// formatTests renders the cases attached to a source.
func formatTests(t *socket.TestsResult) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%d tests", len(t.Cases))) + "  " + pathStyle.Render(t.Sidecar) + "\n")
	for _, c := range t.Cases {
		sb.WriteString(fmt.Sprintf("  %s  %s\n", mutedStyle.Render(c.ID), c.Name))
		sb.WriteString(indent("input", c.Input))
		sb.WriteString(indent("expected", c.Expected))
	}
	return sb.String()
}

// formatTree renders project nodes with box-drawing connectors.
// depth <= 0 means unlimited.
func formatTree(t *socket.TreeResult, depth int) string {
	var sb strings.Builder
	sb.WriteString(pathStyle.Render(t.Root) + "\n")
	writeNodes(&sb, t.Nodes, "", 1, depth)
	return sb.String()
}

func writeNodes(sb *strings.Builder, nodes []socket.TreeNode, prefix string, level, depth int) {
	for i, n := range nodes {
		last := i == len(nodes)-1
		connector := "├── "
		next := prefix + "│   "
		if last {
			connector = "└── "
			next = prefix + "    "
		}
		name := n.Name
		if n.IsDir {
			name = pathStyle.Render(name + "/")
		}
		sb.WriteString(prefix + connector + name + "\n")
		if n.IsDir && (depth <= 0 || level < depth) {
			writeNodes(sb, n.Children, next, level+1, depth)
		}
	}
}

// formatImports renders staged imports.
func formatImports(l *socket.ImportListResult, now time.Time) string {
	if len(l.Imports) == 0 {
		return mutedStyle.Render("no staged imports") + "\n"
	}
	var sb strings.Builder
	for _, im := range l.Imports {
		left := im.ExpiresAt.Sub(now).Round(time.Second)
		if left < 0 {
			left = 0
		}
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			mutedStyle.Render(im.ID),
			titleStyle.Render(im.Title),
			mutedStyle.Render(fmt.Sprintf("%s · %d samples · expires in %s", im.State, im.Samples, left)),
		))
	}
	return sb.String()
}

// formatHistory renders run summaries and import decisions.
func formatHistory(h *socket.HistoryResult) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Runs") + "\n")
	if len(h.Runs) == 0 {
		sb.WriteString("  " + mutedStyle.Render("none") + "\n")
	}
	for _, r := range h.Runs {
		verdict := failStyle.Render(fmt.Sprintf("%d/%d", r.Passed, r.Total))
		switch {
		case r.Status == string(testcase.StatusBuildFailed):
			verdict = failStyle.Render("build failed")
		case r.Passed == r.Total:
			verdict = passStyle.Render(fmt.Sprintf("%d/%d", r.Passed, r.Total))
		}
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			mutedStyle.Render(r.StartedAt.Local().Format("2006-01-02 15:04:05")),
			verdict,
			pathStyle.Render(r.Source),
		))
	}

	sb.WriteString(titleStyle.Render("Imports") + "\n")
	if len(h.Imports) == 0 {
		sb.WriteString("  " + mutedStyle.Render("none") + "\n")
	}
	for _, im := range h.Imports {
		line := fmt.Sprintf("  %s  %-14s %s",
			mutedStyle.Render(im.DecidedAt.Local().Format("2006-01-02 15:04:05")),
			im.Outcome,
			im.Title,
		)
		if im.SourcePath != "" {
			line += "  " + pathStyle.Render(im.SourcePath)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// formatEvent renders one streamed event as a single line.
func formatEvent(ev ports.Event) string {
	data, _ := json.Marshal(ev.Data)
	return fmt.Sprintf("%s  %s  %s",
		mutedStyle.Render(ev.Time.Local().Format("15:04:05")),
		titleStyle.Render(ev.Type),
		data,
	)
}
