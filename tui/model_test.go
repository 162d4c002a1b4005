package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hochfrequenz/agent-orchestrator/internal/domain"
	"github.com/hochfrequenz/agent-orchestrator/internal/registry"
)

func newTestModel(t *testing.T) (Model, *registry.Registry) {
	t.Helper()
	reg := registry.New(nil)
	m := NewModel(reg)
	m.width = 120
	m.height = 40
	return m, reg
}

func keyMsg(s string) tea.KeyMsg {
	if s == "tab" {
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestView_EmptyRegistry(t *testing.T) {
	m, _ := newTestModel(t)
	out := m.View()
	if !strings.Contains(out, "no runs") {
		t.Errorf("view = %q, want 'no runs'", out)
	}
}

func TestView_ShowsActiveRuns(t *testing.T) {
	m, reg := newTestModel(t)
	reg.StartRun(&domain.Run{ID: "r1", Label: "issue 42"})
	reg.AppendActivity("r1", domain.ActivityEntry{Kind: domain.ActivityStatus, Summary: "Agent started"})
	m.refresh()

	out := m.View()
	if !strings.Contains(out, "issue 42") {
		t.Errorf("view missing run label:\n%s", out)
	}
	if !strings.Contains(out, "Agent started") {
		t.Errorf("view missing activity tail:\n%s", out)
	}
}

func TestView_PausedBanner(t *testing.T) {
	m, reg := newTestModel(t)
	reg.SetPaused(true)
	m.refresh()

	if !strings.Contains(m.View(), "PAUSED") {
		t.Error("paused banner not shown")
	}
}

func TestUpdate_TabSwitchesToHistory(t *testing.T) {
	m, reg := newTestModel(t)
	reg.StartRun(&domain.Run{ID: "r1", Label: "finished run"})
	reg.FinishRun("r1", domain.RunComplete, nil, "")
	m.refresh()

	next, _ := m.Update(keyMsg("tab"))
	m = next.(Model)
	if m.activeTab != TabHistory {
		t.Fatalf("tab = %v, want history", m.activeTab)
	}
	if !strings.Contains(m.View(), "finished run") {
		t.Error("history run not shown after tab switch")
	}
}

func TestUpdate_SelectionMoves(t *testing.T) {
	m, reg := newTestModel(t)
	reg.StartRun(&domain.Run{ID: "r1", Label: "one"})
	reg.StartRun(&domain.Run{ID: "r2", Label: "two"})
	m.refresh()

	next, _ := m.Update(keyMsg("j"))
	m = next.(Model)
	if m.selectedRow != 1 {
		t.Errorf("selectedRow = %d, want 1", m.selectedRow)
	}

	// Does not run past the end
	next, _ = m.Update(keyMsg("j"))
	m = next.(Model)
	if m.selectedRow != 1 {
		t.Errorf("selectedRow = %d, want 1 (clamped)", m.selectedRow)
	}

	next, _ = m.Update(keyMsg("k"))
	m = next.(Model)
	if m.selectedRow != 0 {
		t.Errorf("selectedRow = %d, want 0", m.selectedRow)
	}
}

func TestUpdate_PauseToggle(t *testing.T) {
	m, reg := newTestModel(t)

	next, _ := m.Update(keyMsg("p"))
	m = next.(Model)
	if !reg.Paused() {
		t.Error("registry not paused after p")
	}

	next, _ = m.Update(keyMsg("p"))
	m = next.(Model)
	if reg.Paused() {
		t.Error("registry still paused after second p")
	}
}

func TestUpdate_QuitKeys(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("q did not produce a command")
	}
	if msg := cmd(); msg == nil {
		t.Fatal("quit command produced nil message")
	}
}

func TestUpdate_WindowSize(t *testing.T) {
	m, _ := newTestModel(t)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)
	if m.width != 80 || m.height != 24 {
		t.Errorf("size = %dx%d", m.width, m.height)
	}
}
