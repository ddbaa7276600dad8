package game

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/anamnesis/internal/client"
	"github.com/abhisek/anamnesis/internal/ui/theme"
)

var spinnerFrames = []string{"·  ", "·· ", "···", " ··", "  ·", "   "}

func (g *GameScreen) View(width, height int) string {
	if g.errMsg != "" {
		return renderError(width, g.errMsg)
	}
	if g.chat == nil {
		return renderLoading(width, g.chatID != 0, g.spinner)
	}

	card := g.renderPatientCard(width)
	inputArea := g.renderInput(width)

	transcriptHeight := height - lipgloss.Height(card) - lipgloss.Height(inputArea) - 2
	transcript := g.renderTranscript(width, transcriptHeight)

	return card + "\n" + transcript + "\n" + inputArea
}

// renderPatientCard renders the intake summary shown above the interview.
func (g *GameScreen) renderPatientCard(width int) string {
	p := g.chat.Patient

	name := lipgloss.NewStyle().
		Foreground(theme.Secondary).
		Bold(true).
		Render(fmt.Sprintf("  %s, %d, %s", p.Name, p.Age, p.Sex))
	tier := lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Render(strings.ToUpper(g.chat.Difficulty))

	header := name
	if pad := width - lipgloss.Width(name) - lipgloss.Width(tier) - 4; pad > 0 {
		header += strings.Repeat(" ", pad) + tier
	}

	complaint := lipgloss.NewStyle().
		Width(width-4).
		Foreground(theme.Text).
		Render("  Presenting complaint: " + p.Complaints)

	lines := []string{header, complaint}
	if p.History != "" {
		lines = append(lines, lipgloss.NewStyle().
			Width(width-4).
			Foreground(theme.TextDim).
			Render("  History: "+p.History))
	}
	lines = append(lines, lipgloss.NewStyle().
		Foreground(theme.Border).
		Render(strings.Repeat("─", max(width-4, 0))))

	return strings.Join(lines, "\n")
}

// renderTranscript renders the conversation, keeping the newest lines
// that fit in height.
func (g *GameScreen) renderTranscript(width, height int) string {
	if height <= 0 {
		return ""
	}

	var rendered []string
	if len(g.messages) == 0 {
		rendered = append(rendered, lipgloss.NewStyle().
			Foreground(theme.TextDim).
			Italic(true).
			Render("  The patient is waiting. Start by asking what brings them in."))
	}
	for _, m := range g.messages {
		rendered = append(rendered, renderMessage(m, width-4))
	}
	if g.waiting {
		rendered = append(rendered, lipgloss.NewStyle().
			Foreground(theme.TextDim).
			Render("  "+g.waitingLabel()+" "+spinnerFrames[g.spinner%len(spinnerFrames)]))
	}

	lines := strings.Split(strings.Join(rendered, "\n"), "\n")
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (g *GameScreen) waitingLabel() string {
	if g.diagnosing {
		return "The attending is reviewing your case"
	}
	return g.chat.Patient.Name + " is answering"
}

func renderMessage(m client.Message, width int) string {
	speaker, style := "You", theme.Doctor
	if m.Sender == "patient" {
		speaker, style = "Patient", theme.Patient
	}
	label := style.Render(fmt.Sprintf("  %-8s", speaker))
	body := lipgloss.NewStyle().
		Width(max(width-lipgloss.Width(label), 10)).
		Foreground(theme.Text).
		Render(m.Content)
	return lipgloss.JoinHorizontal(lipgloss.Top, label, body)
}

func (g *GameScreen) renderInput(width int) string {
	g.input.SetWidth(max(width-10, 10))

	var b strings.Builder
	if g.notice != "" {
		b.WriteString(theme.ErrorText.Render("  " + g.notice))
		b.WriteString("\n")
	}
	border := theme.Border
	if g.diagnosing {
		border = theme.Accent
	}
	b.WriteString(lipgloss.NewStyle().
		Width(width-2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Render(g.input.View()))
	return b.String()
}

func renderLoading(width int, resuming bool, frame int) string {
	text := "Admitting a new patient"
	if resuming {
		text = "Pulling the chart"
	}
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.TextDim).
		Render("\n\n\n  " + text + " " + spinnerFrames[frame%len(spinnerFrames)])
}

func renderError(width int, errMsg string) string {
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.Error).
		Render(fmt.Sprintf("\n\n\n  Error: %s\n\n  Press any key to go back.", errMsg))
}
