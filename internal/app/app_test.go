package app

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/anamnesis/internal/router"
	"github.com/abhisek/anamnesis/internal/screen"
	"github.com/abhisek/anamnesis/internal/screen/screentest"
	"github.com/abhisek/anamnesis/internal/screens/game"
	"github.com/abhisek/anamnesis/internal/screens/login"
)

func testModel() AppModel {
	m := newAppModel(Options{Backend: screentest.New()})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(AppModel)
}

func TestStartsAtLogin(t *testing.T) {
	m := testModel()
	if _, ok := m.router.Active().(*login.LoginScreen); !ok {
		t.Fatalf("active screen is %T, want login", m.router.Active())
	}
}

func TestProfileMsgUpdatesHeader(t *testing.T) {
	m := testModel()
	rank := 3
	updated, _ := m.Update(screen.ProfileMsg{Username: "house", Points: 4200, Rank: &rank})
	m = updated.(AppModel)

	content := m.render()
	if !strings.Contains(content, "4200 pts") || !strings.Contains(content, "Dr. house") {
		t.Error("header should show the doctor's standing")
	}
}

func TestCtrlCQuits(t *testing.T) {
	m := testModel()
	_, cmd := m.Update(tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should quit")
	}
}

func TestEscPopsAboveRoot(t *testing.T) {
	m := testModel()
	_, cmd := m.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	if cmd != nil {
		t.Error("esc at the root should do nothing")
	}

	m.Update(router.PushScreenMsg{Screen: game.New(screentest.New(), "easy")})
	_, cmd = m.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	if cmd == nil {
		t.Fatal("esc above the root should pop")
	}
	if _, ok := cmd().(router.PopScreenMsg); !ok {
		t.Error("expected PopScreenMsg")
	}
}

func TestTooSmallTerminal(t *testing.T) {
	m := testModel()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 40, Height: 10})
	if !strings.Contains(updated.(AppModel).render(), "Terminal too small") {
		t.Error("expected the minimum size message")
	}
}
