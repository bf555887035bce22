package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorTeal    = lipgloss.Color("#20B9B4")
	colorWarning = lipgloss.Color("#F4D03F")
	colorMuted   = lipgloss.Color("#2C4A54")
)

type styles struct {
	Title   lipgloss.Style
	Heading lipgloss.Style
	Value   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
}

// newStyles binds the styles to w's renderer, so colour is dropped
// automatically when w is not a terminal. color=false drops it always.
func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	if !color {
		plain := r.NewStyle()
		return styles{Title: plain, Heading: plain, Value: plain, Warning: plain, Muted: plain}
	}
	return styles{
		Title:   r.NewStyle().Bold(true).Foreground(colorTeal),
		Heading: r.NewStyle().Bold(true),
		Value:   r.NewStyle().Foreground(colorTeal),
		Warning: r.NewStyle().Foreground(colorWarning),
		Muted:   r.NewStyle().Foreground(colorMuted),
	}
}
