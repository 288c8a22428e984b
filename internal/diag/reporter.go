package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/segmentio/ksuid"
)

// AssignID stamps d with a fresh, sortable ksuid if it doesn't already
// have one. ksuids sort lexicographically by creation time, which keeps
// a report's diagnostic ids in emission order without the aggregator
// needing its own counter.
func AssignID(d *Diagnostic) {
	if d.ID == "" {
		d.ID = ksuid.New().String()
	}
}

// Reporter renders diagnostics against one file's source the way the
// teacher's ErrorReporter renders compiler errors: `severity[RuleId]:
// message`, a `--> file:line:col` pointer, and a caret under the
// offending column.
type Reporter struct {
	filename string
	lines    []string
}

func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Format renders one diagnostic.
func (r *Reporter) Format(d Diagnostic) string {
	var out strings.Builder

	levelColor := severityColor(d.Severity)
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	out.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(string(d.Severity)), d.RuleID, d.Message))

	width := lineNumberWidth(d.Location.Line)
	indent := strings.Repeat(" ", width)
	out.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n", indent, dim("-->"), r.filename, d.Location.Line, d.Location.Column))
	out.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))

	if d.Location.Line >= 1 && d.Location.Line <= len(r.lines) {
		line := r.lines[d.Location.Line-1]
		out.WriteString(fmt.Sprintf("%s %s %s\n", bold(pad(d.Location.Line, width)), dim("│"), line))
		marker := strings.Repeat(" ", max0(d.Location.Column-1)) + levelColor(strings.Repeat("^", 1))
		out.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("│"), marker))
	}

	if len(d.AliasPath) > 0 {
		help := color.New(color.FgCyan).SprintFunc()
		out.WriteString(fmt.Sprintf("%s %s %s %s\n", indent, dim("│"), help("alias:"), strings.Join(d.AliasPath, " -> ")))
	}

	out.WriteString("\n")
	return out.String()
}

func severityColor(s Severity) func(...interface{}) string {
	switch s {
	case Error:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	default:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	}
}

func lineNumberWidth(line int) int {
	w := len(fmt.Sprintf("%d", line))
	if w < 3 {
		w = 3
	}
	return w
}

func pad(n, width int) string {
	return fmt.Sprintf("%*d", width, n)
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
