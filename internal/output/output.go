// Package output formats CLI messages and search results.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/pagesearch/internal/search"
)

// Writer provides formatted output for the CLI.
type Writer struct {
	out      io.Writer
	useColor bool

	title lipgloss.Style
	dim   lipgloss.Style
	hit   lipgloss.Style
}

// New creates a Writer without colors.
func New(out io.Writer) *Writer {
	return NewWithColor(out, false)
}

// NewWithColor creates a Writer, styling result titles when useColor is set.
func NewWithColor(out io.Writer, useColor bool) *Writer {
	w := &Writer{out: out, useColor: useColor}
	if useColor {
		w.title = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
		w.dim = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
		w.hit = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	}
	return w
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Results prints one page of search results followed by a paging footer.
func (w *Writer) Results(resp *search.Response) {
	if resp == nil || len(resp.Results) == 0 {
		w.Statusf("🔍", "No pages match %q", queryOf(resp))
		return
	}

	first := (resp.Page-1)*resp.PageSize + 1
	for i, r := range resp.Results {
		w.result(first+i, r)
	}

	footer := fmt.Sprintf("Page %d of %d (%d results, %s)", resp.Page, resp.PageCount, resp.Total, resp.Took)
	_, _ = fmt.Fprintln(w.out, w.render(w.dim, footer))
}

func (w *Writer) result(n int, r *search.Result) {
	name := r.Name
	if name == "" {
		name = r.Path
	}
	_, _ = fmt.Fprintf(w.out, "%2d. %s  %s\n", n, w.render(w.title, name), w.render(w.hit, r.Path))
	if r.Description != "" {
		_, _ = fmt.Fprintf(w.out, "    %s\n", r.Description)
	}
	if r.Snippet != "" {
		_, _ = fmt.Fprintf(w.out, "    %s\n", w.render(w.dim, oneLine(r.Snippet)))
	}
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func (w *Writer) render(style lipgloss.Style, s string) string {
	if !w.useColor {
		return s
	}
	return style.Render(s)
}

func queryOf(resp *search.Response) string {
	if resp == nil {
		return ""
	}
	return resp.Query
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
