package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"solidcore/internal/core"
)

// palette styles output for one writer. The renderer probes the writer, so
// pipes and buffers get plain text.
type palette struct {
	title lipgloss.Style
	warn  lipgloss.Style
	block lipgloss.Style
	muted lipgloss.Style
}

func newPalette(w io.Writer) palette {
	r := lipgloss.NewRenderer(w)
	return palette{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#20B9B4")),
		warn:  r.NewStyle().Foreground(lipgloss.Color("#F4D03F")),
		block: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#E74C3C")),
		muted: r.NewStyle().Foreground(lipgloss.Color("#2C4A54")),
	}
}

func (p palette) severity(s core.Severity) string {
	switch s {
	case core.SeverityBlock:
		return p.block.Render(string(s))
	case core.SeverityWarn:
		return p.warn.Render(string(s))
	default:
		return p.muted.Render(string(s))
	}
}

func (p palette) violation(prefix string, v core.Violation) string {
	line := p.severity(v.Severity) + " " + v.Rule + ": " + v.Message
	if prefix != "" {
		line = prefix + ": " + line
	}
	return line
}
