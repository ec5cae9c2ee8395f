// Package style renders ozy's human-facing terminal output with lipgloss.
// Styling is dropped when the stream is not a terminal or NO_COLOR is set,
// so piped output (makefile-config, list) stays plain.
package style

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Printer holds styles bound to one output stream
type Printer struct {
	renderer *lipgloss.Renderer

	Error   lipgloss.Style
	Warning lipgloss.Style
	Heading lipgloss.Style
	Path    lipgloss.Style
	Muted   lipgloss.Style
	Code    lipgloss.Style
}

// NewPrinter builds a Printer for w. noColor forces plain output.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	r := lipgloss.NewRenderer(w)
	if noColor || os.Getenv("NO_COLOR") != "" || !IsTerminal(w) {
		r.SetColorProfile(termenv.Ascii)
	}

	return &Printer{
		renderer: r,
		Error:    r.NewStyle().Foreground(ErrorColor).Bold(true),
		Warning:  r.NewStyle().Foreground(WarningColor).Bold(true),
		Heading:  r.NewStyle().Foreground(HeadingColor).Bold(true),
		Path:     r.NewStyle().Foreground(PrimaryColor).Italic(true),
		Muted:    r.NewStyle().Foreground(MutedColor),
		Code:     r.NewStyle().Foreground(PrimaryColor),
	}
}

// Plain reports whether the printer emits no escape sequences
func (p *Printer) Plain() bool {
	return p.renderer.ColorProfile() == termenv.Ascii
}

// Rule is a horizontal separator of the given width
func (p *Printer) Rule(width int) string {
	return p.Muted.Render(strings.Repeat("-", width))
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
