// Package textdiff renders line diffs between two versions of rendered
// output.
package textdiff

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op says whether a line is unchanged, added or removed.
type Op int

const (
	OpEqual Op = iota
	OpInsert
	OpDelete
)

// Line is one line of a diff, without its trailing newline.
type Line struct {
	Op   Op
	Text string
}

// Lines computes a line-level diff from old to new.
func Lines(old, new string) []Line {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(old, new)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var out []Line
	for _, d := range diffs {
		op := OpEqual
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		}
		for _, text := range splitLines(d.Text) {
			out = append(out, Line{Op: op, Text: text})
		}
	}
	return out
}

// splitLines splits on newlines, dropping the empty tail after a final
// newline.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// Stats counts inserted and deleted lines.
func Stats(lines []Line) (added, removed int) {
	for _, l := range lines {
		switch l.Op {
		case OpInsert:
			added++
		case OpDelete:
			removed++
		}
	}
	return added, removed
}

// Printer formats diffs with colours suited to the destination writer.
type Printer struct {
	added   lipgloss.Style
	removed lipgloss.Style
	equal   lipgloss.Style
	gap     lipgloss.Style
}

// NewPrinter creates a printer for w. Colour is only emitted when w is a
// terminal that supports it.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		added:   r.NewStyle().Foreground(lipgloss.Color("2")),
		removed: r.NewStyle().Foreground(lipgloss.Color("1")),
		equal:   r.NewStyle().Faint(true),
		gap:     r.NewStyle().Foreground(lipgloss.Color("6")),
	}
}

// Render formats lines as a unified diff body, keeping up to context
// unchanged lines around each change. Skipped runs are shown as "...".
// A negative context keeps every line.
func (p *Printer) Render(lines []Line, context int) string {
	keep := visible(lines, context)

	var sb strings.Builder
	skipping := false
	for i, l := range lines {
		if !keep[i] {
			if !skipping {
				sb.WriteString(p.gap.Render("..."))
				sb.WriteByte('\n')
				skipping = true
			}
			continue
		}
		skipping = false

		switch l.Op {
		case OpInsert:
			sb.WriteString(p.added.Render("+ " + l.Text))
		case OpDelete:
			sb.WriteString(p.removed.Render("- " + l.Text))
		default:
			sb.WriteString(p.equal.Render("  " + l.Text))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// visible marks the lines within context of a change.
func visible(lines []Line, context int) []bool {
	keep := make([]bool, len(lines))
	for i, l := range lines {
		if context < 0 {
			keep[i] = true
			continue
		}
		if l.Op == OpEqual {
			continue
		}
		lo, hi := max(0, i-context), min(len(lines)-1, i+context)
		for j := lo; j <= hi; j++ {
			keep[j] = true
		}
	}
	return keep
}
