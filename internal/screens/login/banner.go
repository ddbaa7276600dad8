package login

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/anamnesis/internal/ui/theme"
)

const bannerArt = `
  ▄▀█ █▄ █ ▄▀█ █▀▄▀█ █▄ █ █▀▀ █▀ █ █▀
  █▀█ █ ▀█ █▀█ █ ▀ █ █ ▀█ ██▄ ▄█ █ ▄█`

const bannerCompact = "A N A M N E S I S"

// RenderBanner returns the banner styled in the primary color. Uses a
// compact fallback for terminals narrower than 44 columns.
func RenderBanner(width int) string {
	style := lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	if width < 44 {
		return style.Render(bannerCompact)
	}
	return style.Render(bannerArt)
}
