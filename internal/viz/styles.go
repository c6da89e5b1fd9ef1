package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	canvas   lipgloss.Style
	panel    lipgloss.Style
	header   lipgloss.Style
	label    lipgloss.Style
	value    lipgloss.Style
	graph    lipgloss.Style
	help     lipgloss.Style
	running  lipgloss.Style
	paused   lipgloss.Style
	failed   lipgloss.Style
	barFull  lipgloss.Style
	barEmpty lipgloss.Style
}

func newStyles(th Theme) styles {
	return styles{
		canvas: lipgloss.NewStyle().Padding(1, 2).Foreground(th.Text),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(th.Muted).
			Padding(1, 2).
			Width(44),
		header:   lipgloss.NewStyle().Bold(true).Foreground(th.Primary).MarginBottom(1),
		label:    lipgloss.NewStyle().Foreground(th.Muted).Width(12),
		value:    lipgloss.NewStyle().Foreground(th.Text),
		graph:    lipgloss.NewStyle().Foreground(th.Accent).Padding(1, 0),
		help:     lipgloss.NewStyle().Foreground(th.Muted).Italic(true).MarginTop(1),
		running:  lipgloss.NewStyle().Bold(true).Foreground(th.Success),
		paused:   lipgloss.NewStyle().Bold(true).Foreground(th.Warning),
		failed:   lipgloss.NewStyle().Bold(true).Foreground(th.Error),
		barFull:  lipgloss.NewStyle().Foreground(th.Primary),
		barEmpty: lipgloss.NewStyle().Foreground(th.Muted),
	}
}

// progressBar renders fraction in [0, 1] as a bar width cells wide.
func (s styles) progressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return s.barFull.Render(strings.Repeat("█", filled)) + s.barEmpty.Render(strings.Repeat("░", width-filled))
}

var sparkRunes = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// sparkline samples the last width values.
func sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	var b strings.Builder
	for _, v := range values {
		idx := int((v - lo) / span * float64(len(sparkRunes)-1))
		b.WriteRune(sparkRunes[max(0, min(idx, len(sparkRunes)-1))])
	}
	return b.String()
}
