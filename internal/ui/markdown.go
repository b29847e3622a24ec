package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
)

// MarkdownRenderer turns assistant markdown into terminal output.
type MarkdownRenderer interface {
	Render(markdown string) (string, error)
}

// NewGlamourRenderer returns a renderer that word-wraps at width and picks
// a light or dark theme from the terminal background.
func NewGlamourRenderer(width int) (MarkdownRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
}

// RenderMarkdown renders text with r, falling back to the raw text when r is
// nil or fails.
func RenderMarkdown(text string, r MarkdownRenderer) string {
	if r == nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n") + "\n"
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
