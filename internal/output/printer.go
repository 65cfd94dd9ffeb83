// Package output renders user-facing terminal output with lipgloss styles.
//
// The [Printer] is the only place that writes display text. Engine and
// executor code call its methods in the order the user should see them;
// styling degrades to plain text when the writer is not a terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"beacon/internal/store"
)

// timestampLayout is used for run and log listings.
const timestampLayout = "2006-01-02 15:04:05"

type styles struct {
	start   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	warn    lipgloss.Style
	bold    lipgloss.Style
	heading lipgloss.Style
	stage   lipgloss.Style
	id      lipgloss.Style
	dim     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		start:   r.NewStyle().Foreground(lipgloss.Color("12")),
		success: r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		failure: r.NewStyle().Foreground(lipgloss.Color("9")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("11")),
		bold:    r.NewStyle().Bold(true),
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		stage:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		id:      r.NewStyle().Foreground(lipgloss.Color("14")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Printer writes styled output to a single writer.
type Printer struct {
	out    io.Writer
	styles styles
}

// NewPrinter creates a [Printer] that writes to standard output.
func NewPrinter() *Printer {
	return NewPrinterWithWriter(os.Stdout)
}

// NewPrinterWithWriter creates a [Printer] that writes to w. Color support is
// detected from w, so buffers receive plain text.
func NewPrinterWithWriter(w io.Writer) *Printer {
	return &Printer{
		out:    w,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

// SetColor forces colors off when enabled is false.
func (p *Printer) SetColor(enabled bool) {
	if enabled {
		return
	}
	r := lipgloss.NewRenderer(p.out)
	r.SetColorProfile(termenv.Ascii)
	p.styles = newStyles(r)
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.out
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// StageStart prints the indicator shown before a stage runs.
func (p *Printer) StageStart(title string) {
	p.printf("%s Stage: %s\n", p.styles.start.Render("▶"), title)
}

// OutputStart separates the stage indicator from the first streamed output.
func (p *Printer) OutputStart() {
	p.printf("\n")
}

// Token writes streamed text exactly as received.
func (p *Printer) Token(text string) {
	io.WriteString(p.out, text)
}

// StageSuccess prints the completion indicator followed by a blank line.
// hadOutput closes the streamed content block first.
func (p *Printer) StageSuccess(title string, hadOutput bool) {
	if hadOutput {
		p.printf("\n\n")
	}
	p.printf("%s Stage: %s\n\n", p.styles.success.Render("✔"), title)
}

// StageFailure prints the failure indicator. hadOutput closes the streamed
// content block first.
func (p *Printer) StageFailure(title string, hadOutput bool) {
	if hadOutput {
		p.printf("\n\n")
	}
	p.printf("%s Stage: %s\n", p.styles.failure.Render("✖"), title)
}

// RunSummary prints the final line of a completed run.
func (p *Printer) RunSummary(workflow string, runID int64, stages int, duration time.Duration) {
	p.printf("%s Workflow %s completed (run #%d, %d stage(s), %s)\n",
		p.styles.success.Render("✓"),
		p.styles.bold.Render(workflow),
		runID, stages, duration.Round(time.Millisecond))
}

// WorkflowNotFound reports a workflow name with no definition file.
func (p *Printer) WorkflowNotFound(name, dir string) {
	p.printf("%s Workflow %q not found in %s\n", p.styles.failure.Render("✖"), name, dir)
}

// ValidationErrors lists every problem found in a workflow definition.
func (p *Printer) ValidationErrors(name string, errs []string) {
	p.printf("%s Workflow %q is invalid:\n", p.styles.failure.Render("✖"), name)
	for _, e := range errs {
		p.printf("  - %s\n", e)
	}
}

// WorkflowList prints available workflow names, one per line.
func (p *Printer) WorkflowList(names []string) {
	if len(names) == 0 {
		p.printf("No workflows found. Create .beacon/workflows/ to get started.\n")
		return
	}
	for _, n := range names {
		p.printf("%s\n", n)
	}
}

// FormatStatus renders a run status with its symbol.
func (p *Printer) FormatStatus(s store.RunStatus) string {
	switch s {
	case store.StatusCompleted:
		return p.styles.success.UnsetBold().Render("✓ completed")
	case store.StatusFailed:
		return p.styles.failure.Render("✗ failed")
	case store.StatusRunning:
		return p.styles.warn.Render("⋯ running")
	default:
		return string(s)
	}
}

// RunList prints recent workflow runs.
func (p *Printer) RunList(runs []store.WorkflowRun) {
	if len(runs) == 0 {
		p.printf("No workflow runs found.\n")
		return
	}

	p.printf("\n%s\n\n", p.styles.bold.Render("Recent workflow runs:"))
	for _, r := range runs {
		p.printf("  %s - %s %s (%s)\n",
			p.styles.id.Render(fmt.Sprint(r.ID)),
			r.WorkflowName,
			p.FormatStatus(r.Status),
			r.StartedAt.UTC().Format(timestampLayout))
	}
	p.printf("\n")
}

// RunNotFound reports an unknown run id.
func (p *Printer) RunNotFound(id int64) {
	p.printf("Run #%d not found.\n", id)
}

// NoRuns reports an empty run history.
func (p *Printer) NoRuns() {
	p.printf("No workflow runs found.\n")
}

// RunNotes prints a run header and every stage's notes with indented bodies.
func (p *Printer) RunNotes(d *store.RunDetails) {
	run := d.Run
	p.printf("\n%s\n", p.styles.heading.Render("Workflow: "+run.WorkflowName))
	p.printf("%s\n\n", p.styles.dim.Render(fmt.Sprintf("Run ID: %d | Status: %s | %s",
		run.ID, p.FormatStatus(run.Status), run.StartedAt.UTC().Format(time.RFC3339))))

	for _, sn := range d.Stages {
		if len(sn.Notes) == 0 {
			continue
		}
		p.printf("%s\n", p.styles.stage.Render("Stage: "+sn.Stage.StageTitle))
		for i, n := range sn.Notes {
			p.printf("%s\n", p.styles.dim.Render(fmt.Sprintf("  Note %d:", i+1)))
			p.printf("%s\n\n", indent(n.Content, "    "))
		}
	}

	if d.NoteCount() == 0 {
		p.printf("%s\n", p.styles.dim.Render("No notes found in this workflow run."))
	}
	p.printf("\n")
}

// CommandLogs prints audit entries, most recent first.
func (p *Printer) CommandLogs(logs []store.CommandLog) {
	if len(logs) == 0 {
		p.printf("No logs found.\n")
		return
	}

	p.printf("\nRecent command logs:\n\n")
	for _, l := range logs {
		args, err := json.Marshal(l.Args)
		if err != nil {
			args = []byte("{}")
		}
		p.printf("[%s] %s %s\n", l.Timestamp.UTC().Format(timestampLayout), l.Command, args)
	}
}

// LogsCleared reports how many audit entries were deleted.
func (p *Printer) LogsCleared(n int64) {
	if n == 0 {
		p.printf("No logs to clear.\n")
		return
	}
	p.printf("Cleared %d log(s).\n", n)
}

// Greeting prints the hello command output.
func (p *Printer) Greeting(text string) {
	p.printf("%s\n", text)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
