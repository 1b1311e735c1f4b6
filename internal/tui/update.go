package tui

import (
  "sort"
  "strconv"

  "github.com/charmbracelet/bubbles/table"
  tea "github.com/charmbracelet/bubbletea"

  "netmon_dashboard/internal/event"
)

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
  var cmd tea.Cmd

  switch msg := msg.(type) {
  case tea.KeyMsg:
    switch msg.String() {
    case "q", "ctrl+c":
      return m, tea.Quit
    }

  case SnapshotMsg:
    m.snap = event.Snapshot(msg)
    m.received++
    m.table.SetRows(bucketRows(m.snap))
    return m, waitForSnapshot(m.updates)

  case feedClosedMsg:
    m.feedClosed = true
    return m, tea.Quit
  }

  m.table, cmd = m.table.Update(msg)
  return m, cmd
}

// bucketRows lines the three series up by minute, newest first.
func bucketRows(snap event.Snapshot) []table.Row {
  type counts struct {
    label                  string
    all, benign, malicious int
  }
  byMinute := make(map[int64]*counts)
  add := func(s event.Series, set func(*counts, int)) {
    for _, b := range s {
      key := b.Start.UnixNano()
      c := byMinute[key]
      if c == nil {
        c = &counts{label: b.Label}
        byMinute[key] = c
      }
      set(c, b.Count)
    }
  }
  add(snap.All, func(c *counts, n int) { c.all = n })
  add(snap.Benign, func(c *counts, n int) { c.benign = n })
  add(snap.Malicious, func(c *counts, n int) { c.malicious = n })

  keys := make([]int64, 0, len(byMinute))
  for k := range byMinute {
    keys = append(keys, k)
  }
  sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })

  rows := make([]table.Row, 0, len(keys))
  for _, k := range keys {
    c := byMinute[k]
    rows = append(rows, table.Row{c.label, strconv.Itoa(c.all), strconv.Itoa(c.benign), strconv.Itoa(c.malicious)})
  }
  return rows
}

// Run blocks until the user quits or updates is closed.
func Run(updates <-chan event.Snapshot, benignPath, maliciousPath string) error {
  p := tea.NewProgram(NewDashboardModel(updates, benignPath, maliciousPath), tea.WithAltScreen())
  _, err := p.Run()
  return err
}
