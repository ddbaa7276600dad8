package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/anamnesis/internal/ui/theme"
)

// ScoreBar renders value out of max as a horizontal bar.
type ScoreBar struct {
	Label      string
	LabelWidth int
	Value      int
	Max        int
	Width      int
}

// NewScoreBar creates a score bar. Width is the total rendered width
// including the label and the numeric suffix.
func NewScoreBar(label string, value, max, width int) ScoreBar {
	return ScoreBar{Label: label, Value: value, Max: max, Width: width}
}

// Fraction returns Value/Max clamped to [0, 1].
func (p ScoreBar) Fraction() float64 {
	if p.Max <= 0 {
		return 0
	}
	f := float64(p.Value) / float64(p.Max)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// View renders the bar.
func (p ScoreBar) View() string {
	var result string

	if p.Label != "" {
		label := p.Label
		if pad := p.LabelWidth - lipgloss.Width(label); pad > 0 {
			label += strings.Repeat(" ", pad)
		}
		result += lipgloss.NewStyle().Foreground(theme.Text).Render(label) + "  "
	}

	suffix := fmt.Sprintf("  %d/%d", p.Value, p.Max)
	barWidth := p.Width - lipgloss.Width(result) - len(suffix)
	if barWidth < 4 {
		barWidth = 4
	}

	filled := int(float64(barWidth) * p.Fraction())
	empty := barWidth - filled

	color := theme.Success
	switch f := p.Fraction(); {
	case f < 0.4:
		color = theme.Error
	case f < 0.7:
		color = theme.Accent
	}

	result += lipgloss.NewStyle().Background(color).Render(strings.Repeat(" ", filled))
	result += lipgloss.NewStyle().Background(theme.Border).Render(strings.Repeat(" ", empty))
	result += lipgloss.NewStyle().Foreground(theme.TextDim).Render(suffix)
	return result
}
