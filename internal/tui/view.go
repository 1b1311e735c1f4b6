package tui

import (
  "fmt"
  "strings"

  "github.com/charmbracelet/lipgloss"

  "netmon_dashboard/internal/event"
)

var (
  titleStyle = lipgloss.NewStyle().
      Bold(true).
      Foreground(lipgloss.Color("#FAFAFA")).
      Background(lipgloss.Color("#7D56F4")).
      Padding(0, 1)

  cardStyle = lipgloss.NewStyle().
      Border(lipgloss.RoundedBorder()).
      Padding(0, 1).
      Margin(0, 1)

  threatStyle = lipgloss.NewStyle().
      Bold(true).
      Foreground(lipgloss.Color("#FF4757"))

  warningStyle = lipgloss.NewStyle().
      Foreground(lipgloss.Color("#666666")).
      Border(lipgloss.NormalBorder()).
      BorderForeground(lipgloss.Color("#FFB400")).
      Padding(0, 1).
      Margin(0, 1)
)

func (m DashboardModel) View() string {
  title := titleStyle.Render(fmt.Sprintf("netmon dashboard - %s | %s", m.benignPath, m.maliciousPath))

  sum := m.snap.Summary
  cards := lipgloss.JoinHorizontal(lipgloss.Top,
    card("Total Packets Scanned", fmt.Sprintf("%d", sum.TotalPackets)),
    card("Types of Packets", fmt.Sprintf("%d", sum.PacketTypes)),
    card("Time Taken", sum.TimeTaken),
    card("Threats Detected", threatStyle.Render(fmt.Sprintf("%d", sum.ThreatsDetected))),
  )

  banner := warningStyle.Render("! " + m.snap.Suggestion.Message())

  var body string
  if m.received == 0 {
    body = cardStyle.Render("Waiting for data...")
  } else {
    body = cardStyle.Render("Packets per minute\n" + m.table.View() + "\n" + seriesLine(m.snap))
  }

  out := lipgloss.JoinVertical(lipgloss.Left, title, cards, banner, body)
  return out + "\nPress q to quit."
}

func card(label, value string) string {
  return cardStyle.Render(label + "\n" + value)
}

func seriesLine(snap event.Snapshot) string {
  parts := make([]string, 0, 3)
  for _, v := range []event.View{event.ViewAll, event.ViewBenign, event.ViewMalicious} {
    s, _ := snap.Series(v)
    parts = append(parts, fmt.Sprintf("%s: %d in %d buckets", v, s.Total(), len(s)))
  }
  return strings.Join(parts, "  ")
}
