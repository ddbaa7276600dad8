package layout

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/anamnesis/internal/ui/theme"
)

// Smallest terminal the game screen can draw a patient card and transcript in.
const (
	MinWidth  = 80
	MinHeight = 24
)

// KeyHint represents a key binding hint shown in the footer.
type KeyHint struct {
	Key         string
	Description string
}

// IsTooSmall returns true if the terminal is below minimum size.
func IsTooSmall(width, height int) bool {
	return width < MinWidth || height < MinHeight
}

// RenderMinSizeMessage renders the "terminal too small" message.
func RenderMinSizeMessage(width, height int) string {
	return lipgloss.NewStyle().
		Align(lipgloss.Center).
		Foreground(theme.Text).
		Width(width).
		Height(height).
		Render(fmt.Sprintf(
			"Terminal too small\n\nAnamnesis needs at least %d x %d\n(current %d x %d)",
			MinWidth, MinHeight, width, height,
		))
}

// Header is the top bar: brand, screen title and the signed-in doctor's
// standing. Username is empty before login.
type Header struct {
	Title    string
	Username string
	Points   int
	Rank     *int
}

// Standing formats points and rank, e.g. "4200 pts  #3".
func (h Header) Standing() string {
	s := fmt.Sprintf("%d pts", h.Points)
	if h.Rank != nil {
		s += fmt.Sprintf("  #%d", *h.Rank)
	}
	return s
}

// Render draws the header at the given width. When the bar is too narrow the
// doctor's name is dropped before the standing.
func (h Header) Render(width int) string {
	brand := lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render("  Anamnesis")
	title := lipgloss.NewStyle().Foreground(theme.Text).Render(h.Title)

	inner := max(width-4, 0)
	var right string
	if h.Username != "" {
		standing := lipgloss.NewStyle().Foreground(theme.Accent).Render(h.Standing())
		right = lipgloss.NewStyle().Foreground(theme.TextDim).Render("Dr. "+h.Username+"   ") + standing
		if lipgloss.Width(brand)+lipgloss.Width(title)+lipgloss.Width(right)+2 > inner {
			right = standing
		}
	}

	// Title centred on the bar, not on the space left over.
	leftGap := max((inner-lipgloss.Width(title))/2-lipgloss.Width(brand), 1)
	rightGap := max(inner-lipgloss.Width(brand)-leftGap-lipgloss.Width(title)-lipgloss.Width(right), 1)

	return bar(width).Render(brand + strings.Repeat(" ", leftGap) + title + strings.Repeat(" ", rightGap) + right)
}

// RenderFooter renders the footer with key hints.
func RenderFooter(hints []KeyHint, width int) string {
	key := lipgloss.NewStyle().Foreground(theme.Text).Bold(true)
	desc := lipgloss.NewStyle().Foreground(theme.TextDim)

	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = key.Render(h.Key) + " " + desc.Render(h.Description)
	}
	return bar(width).Render("  " + strings.Join(parts, "   "))
}

// Frame stacks header, body and footer. body is called with the height left
// between the two bars so screens can size transcripts and lists to fit.
func Frame(header, footer string, width, height int, body func(width, height int) string) string {
	h := max(height-lipgloss.Height(header)-lipgloss.Height(footer), 0)
	content := lipgloss.NewStyle().Width(width).Height(h).Render(body(width, h))
	return header + "\n" + content + "\n" + footer
}

func bar(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Background(theme.BgCard).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border)
}
