package tui

import (
  "github.com/charmbracelet/bubbles/table"
  tea "github.com/charmbracelet/bubbletea"
  "github.com/charmbracelet/lipgloss"

  "netmon_dashboard/internal/event"
)

// SnapshotMsg carries a new recomputation result into the program.
type SnapshotMsg event.Snapshot

type feedClosedMsg struct{}

type DashboardModel struct {
  snap          event.Snapshot
  updates       <-chan event.Snapshot
  table         table.Model
  benignPath    string
  maliciousPath string
  received      int
  feedClosed    bool
}

func NewDashboardModel(updates <-chan event.Snapshot, benignPath, maliciousPath string) DashboardModel {
  columns := []table.Column{
    {Title: "Minute", Width: 8},
    {Title: "All", Width: 8},
    {Title: "Benign", Width: 8},
    {Title: "Malicious", Width: 10},
  }

  t := table.New(
    table.WithColumns(columns),
    table.WithFocused(false),
    table.WithHeight(12),
  )

  s := table.DefaultStyles()
  s.Header = s.Header.
    BorderStyle(lipgloss.NormalBorder()).
    BorderForeground(lipgloss.Color("240")).
    BorderBottom(true).
    Bold(true)
  s.Selected = s.Selected.
    Foreground(lipgloss.Color("229")).
    Bold(false)
  t.SetStyles(s)

  return DashboardModel{
    snap:          event.EmptySnapshot(),
    updates:       updates,
    table:         t,
    benignPath:    benignPath,
    maliciousPath: maliciousPath,
  }
}

func (m DashboardModel) Init() tea.Cmd {
  return waitForSnapshot(m.updates)
}

func waitForSnapshot(updates <-chan event.Snapshot) tea.Cmd {
  if updates == nil {
    return nil
  }
  return func() tea.Msg {
    snap, ok := <-updates
    if !ok {
      return feedClosedMsg{}
    }
    return SnapshotMsg(snap)
  }
}
