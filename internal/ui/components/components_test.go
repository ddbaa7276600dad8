package components

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"
)

func TestScoreBarFraction(t *testing.T) {
	tests := []struct {
		value, max int
		want       float64
	}{
		{2500, 5000, 0.5},
		{0, 5000, 0},
		{6000, 5000, 1},
		{-10, 5000, 0},
		{10, 0, 0},
	}
	for _, tt := range tests {
		got := NewScoreBar("", tt.value, tt.max, 40).Fraction()
		if got != tt.want {
			t.Errorf("Fraction(%d/%d) = %v, want %v", tt.value, tt.max, got, tt.want)
		}
	}
}

func TestScoreBarViewShowsValue(t *testing.T) {
	view := ScoreBar{Label: "Overall", LabelWidth: 12, Value: 700, Max: 1000, Width: 50}.View()
	if !strings.Contains(view, "700/1000") || !strings.Contains(view, "Overall") {
		t.Errorf("unexpected view %q", view)
	}
}

func TestMenuSkipsDisabled(t *testing.T) {
	fired := ""
	m := NewMenu([]MenuItem{
		{Label: "A", Disabled: true},
		{Label: "B", Action: func() tea.Cmd { fired = "B"; return nil }},
		{Label: "C", Disabled: true},
		{Label: "D", Action: func() tea.Cmd { fired = "D"; return nil }},
	})
	if m.Selected != 1 {
		t.Fatalf("initial selection = %d, want first enabled item", m.Selected)
	}

	m, _ = m.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	if m.Selected != 3 {
		t.Errorf("down should skip disabled items, got %d", m.Selected)
	}
	m, _ = m.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if fired != "D" {
		t.Errorf("fired %q, want D", fired)
	}

	m, _ = m.Update(tea.KeyPressMsg{Code: tea.KeyUp})
	item, ok := m.SelectedItem()
	if !ok || item.Label != "B" {
		t.Errorf("selected %q after up, want B", item.Label)
	}
}

func TestTextInputErrorClearsOnTyping(t *testing.T) {
	in := NewTextInput("Name", "", 10)
	in.Focus()
	in.SetError("required")
	if !strings.Contains(in.View(), "required") {
		t.Fatal("error should render")
	}

	in, _ = in.Update(tea.KeyPressMsg{Code: 'x', Text: "x"})
	if strings.Contains(in.View(), "required") {
		t.Error("typing should clear the error")
	}
	if in.Value() != "x" {
		t.Errorf("Value = %q", in.Value())
	}

	in.Reset()
	if in.Value() != "" {
		t.Error("Reset should clear the value")
	}
}

func TestPasswordInputMasks(t *testing.T) {
	in := NewPasswordInput("Password")
	in.Focus()
	for _, r := range "secret" {
		in, _ = in.Update(tea.KeyPressMsg{Code: r, Text: string(r)})
	}
	if in.Model.Value() != "secret" {
		t.Fatalf("value = %q", in.Model.Value())
	}
	if strings.Contains(in.View(), "secret") {
		t.Error("password should not be echoed")
	}
}
