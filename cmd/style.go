package cmd

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	styleAccent = lipgloss.NewStyle().Foreground(lipgloss.Color("#3498DB")).Bold(true)
	styleMuted  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	styleMarked = lipgloss.NewStyle().Foreground(lipgloss.Color("#27AE60")).Bold(true)
)

// painter applies styles only when the output is a colour terminal.
type painter struct {
	color bool
}

func newPainter(w io.Writer) painter {
	switch flagColor {
	case "always":
		return painter{color: true}
	case "never":
		return painter{}
	}
	if f, ok := w.(*os.File); ok {
		return painter{color: isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())}
	}
	return painter{}
}

func (p painter) paint(style lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return style.Render(text)
}
