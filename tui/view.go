package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/hochfrequenz/agent-orchestrator/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255")).
		Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	tabActiveStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Underline(true)

	tabInactiveStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	runningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	timedOutStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimmedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	pausedStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

// View renders the dashboard
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	header := fmt.Sprintf(" Agent Orchestrator │ Active: %d │ Queued: %d │ History: %d ",
		len(m.snapshot.Agents), len(m.snapshot.Queue), len(m.snapshot.History))
	if m.snapshot.Paused {
		header += pausedStyle.Render("│ PAUSED ")
	}
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderRuns()))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderActivity()))
	b.WriteString("\n")

	b.WriteString(dimmedStyle.Render(" q quit │ tab switch │ j/k select │ p pause │ r refresh"))

	return b.String()
}

func (m Model) renderTabs() string {
	tabs := []string{"Active", "History"}
	parts := make([]string, len(tabs))
	for i, name := range tabs {
		if Tab(i) == m.activeTab {
			parts[i] = tabActiveStyle.Render(name)
		} else {
			parts[i] = tabInactiveStyle.Render(name)
		}
	}
	return " " + strings.Join(parts, "  ")
}

func (m Model) renderRuns() string {
	rows := m.rows()
	if len(rows) == 0 {
		return dimmedStyle.Render("no runs")
	}

	var b strings.Builder
	for i, run := range rows {
		line := fmt.Sprintf("%-30s %-10s %s", truncateLabel(run.Label, 30), run.Status, runTiming(run))
		if run.PullRequest != nil {
			line += "  " + run.PullRequest.String()
		}
		if i == m.selectedRow {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + statusStyle(run.Status).Render(line)
		}
		b.WriteString(line)
		if i < len(rows)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderActivity() string {
	run := m.selectedRun()
	if run == nil {
		return dimmedStyle.Render("no run selected")
	}
	if len(m.activity) == 0 {
		return dimmedStyle.Render("no activity yet")
	}

	// Tail of the log, newest last
	tail := m.activity
	maxLines := m.height - 12
	if maxLines < 3 {
		maxLines = 3
	}
	if len(tail) > maxLines {
		tail = tail[len(tail)-maxLines:]
	}

	var b strings.Builder
	for i, entry := range tail {
		prefix := entry.Timestamp.Format("15:04:05")
		summary := entry.Summary
		if entry.Subagent {
			summary = "↳ " + summary
		}
		line := fmt.Sprintf("%s %s", dimmedStyle.Render(prefix), summary)
		if entry.Kind == domain.ActivityError {
			line = failedStyle.Render(line)
		}
		b.WriteString(line)
		if i < len(tail)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func statusStyle(status domain.RunStatus) lipgloss.Style {
	switch status {
	case domain.RunRunning:
		return runningStyle
	case domain.RunFailed:
		return failedStyle
	case domain.RunTimedOut:
		return timedOutStyle
	default:
		return dimmedStyle
	}
}

func runTiming(run *domain.Run) string {
	if run.FinishedAt != nil {
		return humanize.Time(*run.FinishedAt)
	}
	return "for " + time.Since(run.StartedAt).Round(time.Second).String()
}

func truncateLabel(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
