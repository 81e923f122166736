// Package output renders CLI results: status lines, key/value panels and
// ranked retrieval results. Colors are used only when writing to a
// terminal and NO_COLOR is unset.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette, as ANSI 256 color codes.
const (
	ColorLime     = "154"
	ColorLimeDim  = "106"
	ColorWhite    = "255"
	ColorGray     = "245"
	ColorDarkGray = "238"
	ColorRed      = "196"
	ColorYellow   = "220"
)

// Styles holds the lipgloss styles the Writer renders with.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Label   lipgloss.Style
	Score   lipgloss.Style
	Tag     lipgloss.Style
	Panel   lipgloss.Style
}

// DefaultStyles returns the colored theme.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Score:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Tag:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLimeDim)),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorDarkGray)).
			Padding(0, 1),
	}
}

// NoColorStyles returns unstyled components for plain output.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header:  plain,
		Success: plain,
		Warning: plain,
		Error:   plain,
		Dim:     plain,
		Label:   plain,
		Score:   plain,
		Tag:     plain,
		Panel:   plain,
	}
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NoColor reports whether the NO_COLOR convention is in effect.
func NoColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}

// Writer prints formatted CLI output. Write errors are ignored; there is
// nothing useful to do when the terminal goes away.
type Writer struct {
	out    io.Writer
	color  bool
	styles Styles
}

// New returns a Writer that colors output only for terminals.
func New(out io.Writer) *Writer {
	color := IsTTY(out) && !NoColor()
	styles := NoColorStyles()
	if color {
		styles = DefaultStyles()
	}
	return &Writer{out: out, color: color, styles: styles}
}

// Colored reports whether styles are applied.
func (w *Writer) Colored() bool { return w.color }

// Status prints a message with an icon, or indented when icon is empty.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
}

func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

func (w *Writer) Success(msg string) {
	w.Status("✅", w.styles.Success.Render(msg))
}

func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", w.styles.Warning.Render(msg))
}

func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

func (w *Writer) Error(msg string) {
	w.Status("❌", w.styles.Error.Render(msg))
}

func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Header prints a bold title line.
func (w *Writer) Header(title string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(title))
}

// KV is one row of a key/value listing.
type KV struct {
	Key   string
	Value string
}

// KeyValues prints rows with keys padded to a common width.
func (w *Writer) KeyValues(rows []KV) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r.Key))
	}
	for _, r := range rows {
		pad := strings.Repeat(" ", width-len(r.Key))
		_, _ = fmt.Fprintf(w.out, "  %s%s  %s\n", w.styles.Label.Render(r.Key), pad, r.Value)
	}
}

// Panel prints content inside a rounded border when colored, and as is
// otherwise.
func (w *Writer) Panel(content string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Panel.Render(content))
}

// Result is one ranked item as the CLI shows it.
type Result struct {
	ID    string
	Score float64
	// Rank is the ordering score, shown when it differs from Score.
	Rank float64
	Tags []string
	Text string
}

// Results prints a numbered list with a snippet of each result's text.
func (w *Writer) Results(title string, results []Result, snippetLines int) {
	w.Header(title)
	w.Newline()
	for i, r := range results {
		score := fmt.Sprintf("score %.3f", r.Score)
		if r.Rank != r.Score {
			score += fmt.Sprintf(", rank %.3f", r.Rank)
		}
		line := fmt.Sprintf("%d. %s (%s)", i+1, r.ID, w.styles.Score.Render(score))
		if len(r.Tags) > 0 {
			line += " " + w.styles.Tag.Render("["+strings.Join(r.Tags, ", ")+"]")
		}
		_, _ = fmt.Fprintln(w.out, line)
		for _, l := range Snippet(r.Text, snippetLines) {
			w.Status("", w.styles.Dim.Render(l))
		}
		w.Newline()
	}
}

// Code prints an indented block.
func (w *Writer) Code(content string) {
	w.Newline()
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	w.Newline()
}

func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Snippet returns the first n non-trailing-blank lines of content.
func Snippet(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if n > 0 && len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
