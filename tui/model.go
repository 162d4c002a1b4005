// Package tui is a terminal dashboard over the run registry. It only reads
// snapshots; every mutation goes through the runner or the HTTP API.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hochfrequenz/agent-orchestrator/internal/domain"
	"github.com/hochfrequenz/agent-orchestrator/internal/registry"
)

const refreshInterval = time.Second

// Tab selects which run list is shown
type Tab int

const (
	TabActive Tab = iota
	TabHistory
	tabCount
)

// Model is the TUI application model
type Model struct {
	registry *registry.Registry

	snapshot registry.Snapshot
	activity []domain.ActivityEntry

	width       int
	height      int
	activeTab   Tab
	selectedRow int

	lastRefresh time.Time
}

// NewModel creates a model bound to the registry
func NewModel(reg *registry.Registry) Model {
	m := Model{registry: reg}
	m.refresh()
	return m
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// TickMsg triggers a snapshot refresh
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// rows returns the run list for the active tab
func (m Model) rows() []*domain.Run {
	if m.activeTab == TabHistory {
		return m.snapshot.History
	}
	return m.snapshot.Agents
}

// selectedRun returns the run under the cursor, nil when the list is empty
func (m Model) selectedRun() *domain.Run {
	rows := m.rows()
	if len(rows) == 0 || m.selectedRow >= len(rows) {
		return nil
	}
	return rows[m.selectedRow]
}

func (m *Model) refresh() {
	m.snapshot = m.registry.Snapshot()
	m.lastRefresh = time.Now()

	if run := m.selectedRun(); run != nil {
		entries, _ := m.registry.Activities(run.ID)
		m.activity = entries
	} else {
		m.activity = nil
	}
}
