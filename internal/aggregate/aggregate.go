package aggregate

import (
  "fmt"
  "sort"
  "time"

  "netmon_dashboard/internal/event"
)

// DefaultLabelLayout renders a bucket as two-digit hour and minute.
const DefaultLabelLayout = "15:04"

// Engine turns the current event lists into a Snapshot. Every call works from
// scratch; nothing is carried between calls.
type Engine struct {
  LabelLayout string
  // Location is the zone bucket starts and labels are rendered in. Nil
  // keeps each event's own zone.
  Location *time.Location
}

func New() *Engine {
  return &Engine{LabelLayout: DefaultLabelLayout}
}

// Compute aggregates all, which must be the concatenation of benign and
// malicious.
func (e *Engine) Compute(all, benign, malicious []event.PacketEvent) event.Snapshot {
  layout := e.LabelLayout
  if layout == "" {
    layout = DefaultLabelLayout
  }
  return event.Snapshot{
    Summary:    Summarize(all, malicious),
    All:        BuildSeries(all, layout, e.Location),
    Benign:     BuildSeries(benign, layout, e.Location),
    Malicious:  BuildSeries(malicious, layout, e.Location),
    Suggestion: SuggestBlock(malicious),
  }
}

func Summarize(all, malicious []event.PacketEvent) event.Summary {
  protocols := make(map[string]struct{})
  for _, ev := range all {
    protocols[ev.Protocol] = struct{}{}
  }
  return event.Summary{
    TotalPackets:    len(all),
    PacketTypes:     len(protocols),
    TimeTaken:       timeTaken(all),
    ThreatsDetected: len(malicious),
  }
}

func timeTaken(all []event.PacketEvent) string {
  if len(all) < 2 {
    return FormatElapsed(0)
  }
  first, last := all[0].TS, all[0].TS
  for _, ev := range all[1:] {
    if ev.TS.Before(first) {
      first = ev.TS
    }
    if ev.TS.After(last) {
      last = ev.TS
    }
  }
  return FormatElapsed(last.Sub(first))
}

// FormatElapsed floors d to whole hours and the whole minutes left over.
func FormatElapsed(d time.Duration) string {
  if d < 0 {
    d = -d
  }
  h := int64(d / time.Hour)
  m := int64((d % time.Hour) / time.Minute)
  return fmt.Sprintf("%dh %dm", h, m)
}

// MinuteOf drops the seconds and sub-second part of t. It works on the
// absolute instant, so the repeated hour at a DST fall-back stays two
// separate minutes.
func MinuteOf(t time.Time) time.Time {
  return t.Truncate(time.Minute)
}

// BuildSeries counts events per minute, ascending by minute. Starts and
// labels are rendered in loc, or in the first event's zone when loc is nil.
func BuildSeries(events []event.PacketEvent, layout string, loc *time.Location) event.Series {
  counts := make(map[int64]int)
  starts := make(map[int64]time.Time)
  for _, ev := range events {
    start := MinuteOf(ev.TS)
    if loc != nil {
      start = start.In(loc)
    }
    key := start.UnixNano()
    if _, ok := starts[key]; !ok {
      starts[key] = start
    }
    counts[key]++
  }

  keys := make([]int64, 0, len(counts))
  for k := range counts {
    keys = append(keys, k)
  }
  sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

  out := make(event.Series, 0, len(keys))
  for _, k := range keys {
    start := starts[k]
    out = append(out, event.Bucket{Start: start, Label: start.Format(layout), Count: counts[k]})
  }
  return out
}

// SuggestBlock picks the most frequent source address among malicious
// events. On a tie the address seen first in the list wins.
func SuggestBlock(malicious []event.PacketEvent) event.Suggestion {
  counts := make(map[string]int)
  order := make([]string, 0)
  for _, ev := range malicious {
    addr := ev.SourceAddress
    if addr == "" {
      continue
    }
    if _, ok := counts[addr]; !ok {
      order = append(order, addr)
    }
    counts[addr]++
  }

  var best event.Suggestion
  for _, addr := range order {
    if counts[addr] > best.Hits {
      best = event.Suggestion{Address: addr, Hits: counts[addr]}
    }
  }
  return best
}
