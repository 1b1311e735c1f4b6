package ingest

import (
  "context"
  "os"
  "path/filepath"
  "testing"
  "time"

  "netmon_dashboard/internal/aggregate"
  "netmon_dashboard/internal/decode"
  "netmon_dashboard/internal/event"
  "netmon_dashboard/internal/metrics"
  "netmon_dashboard/internal/watcher"
)

const (
  benignLines = "2024-01-01 10:00:00 - Benign packet: {'Source IP': '10.0.0.5', 'Protocol': 'TCP'}\n" +
    "2024-01-01 10:00:45 - Benign packet: {'Source IP': '10.0.0.6', 'Protocol': 'TCP'}\n"
  maliciousLines = "2024-01-01 10:01:10 - Malicious packet: {'Source IP': '1.2.3.4', 'Protocol': 'TCP'}\n" +
    "2024-01-01 10:01:40 - Malicious packet: {'Source IP': '1.2.3.4', 'Protocol': 'TCP'}\n"
)

type fixture struct {
  benignPath    string
  maliciousPath string
  coord         *Coordinator
  snaps         chan event.Snapshot
}

func newFixture(t *testing.T) *fixture {
  t.Helper()
  dir := t.TempDir()
  f := &fixture{
    benignPath:    filepath.Join(dir, "benign_packets.log"),
    maliciousPath: filepath.Join(dir, "malicious_packets.log"),
    snaps:         make(chan event.Snapshot, 128),
  }
  if err := os.WriteFile(f.benignPath, []byte(benignLines), 0o644); err != nil {
    t.Fatalf("write failed: %v", err)
  }
  if err := os.WriteFile(f.maliciousPath, []byte(maliciousLines), 0o644); err != nil {
    t.Fatalf("write failed: %v", err)
  }

  m := metrics.New(nil)
  dec := decode.New("Protocol", "Source IP", time.UTC, m)
  benign := watcher.New(f.benignPath, event.Benign, 10*time.Millisecond, dec, watcher.OS, m)
  malicious := watcher.New(f.maliciousPath, event.Malicious, 10*time.Millisecond, dec, watcher.OS, m)

  coord, err := New(benign, malicious, aggregate.New(), m, 4, 8)
  if err != nil {
    t.Fatalf("New failed: %v", err)
  }
  coord.AddSink("test", SinkFunc(func(s event.Snapshot) error {
    f.snaps <- s
    return nil
  }))
  f.coord = coord
  return f
}

func (f *fixture) waitFor(t *testing.T, pred func(event.Snapshot) bool) event.Snapshot {
  t.Helper()
  deadline := time.After(3 * time.Second)
  for {
    select {
    case s := <-f.snaps:
      if pred(s) {
        return s
      }
    case <-deadline:
      t.Fatalf("timed out waiting for snapshot")
    }
  }
}

func TestCoordinatorMergesBothStreams(t *testing.T) {
  f := newFixture(t)
  ctx, cancel := context.WithCancel(context.Background())
  defer cancel()
  go f.coord.Run(ctx)

  snap := f.waitFor(t, func(s event.Snapshot) bool { return s.Summary.TotalPackets == 4 })
  want := event.Summary{TotalPackets: 4, PacketTypes: 1, TimeTaken: "0h 1m", ThreatsDetected: 2}
  if snap.Summary != want {
    t.Errorf("expected %+v, got %+v", want, snap.Summary)
  }
  if snap.Suggestion.Address != "1.2.3.4" {
    t.Errorf("expected suggestion 1.2.3.4, got %q", snap.Suggestion.String())
  }

  unified := f.coord.Unified()
  if len(unified) != 4 {
    t.Fatalf("expected 4 unified events, got %d", len(unified))
  }
  if unified[0].Stream != event.Benign || unified[1].Stream != event.Benign ||
    unified[2].Stream != event.Malicious || unified[3].Stream != event.Malicious {
    t.Errorf("expected benign events before malicious ones")
  }
}

func TestCoordinatorRecomputesOnAppend(t *testing.T) {
  f := newFixture(t)
  ctx, cancel := context.WithCancel(context.Background())
  defer cancel()
  go f.coord.Run(ctx)
  f.waitFor(t, func(s event.Snapshot) bool { return s.Summary.TotalPackets == 4 })

  extra := "2024-01-01 11:30:00 - Malicious packet: {'Source IP': '5.6.7.8', 'Protocol': 'UDP'}\n"
  file, err := os.OpenFile(f.maliciousPath, os.O_APPEND|os.O_WRONLY, 0o644)
  if err != nil {
    t.Fatalf("open failed: %v", err)
  }
  if _, err := file.WriteString(extra); err != nil {
    t.Fatalf("append failed: %v", err)
  }
  file.Close()

  snap := f.waitFor(t, func(s event.Snapshot) bool { return s.Summary.ThreatsDetected == 3 })
  if snap.Summary.PacketTypes != 2 {
    t.Errorf("expected 2 packet types, got %d", snap.Summary.PacketTypes)
  }
  if snap.Summary.TimeTaken != "1h 30m" {
    t.Errorf("expected 1h 30m, got %q", snap.Summary.TimeTaken)
  }
  if snap.Suggestion.Address != "1.2.3.4" {
    t.Errorf("expected suggestion to stay 1.2.3.4, got %q", snap.Suggestion.String())
  }
  if got := f.coord.Snapshot().Summary.TotalPackets; got != 5 {
    t.Errorf("expected stored snapshot with 5 packets, got %d", got)
  }
  if len(f.coord.History()) < 2 {
    t.Errorf("expected history to hold several summaries, got %d", len(f.coord.History()))
  }
}

func TestCoordinatorKeepsStaleSideOnReadFailure(t *testing.T) {
  f := newFixture(t)
  ctx, cancel := context.WithCancel(context.Background())
  defer cancel()
  go f.coord.Run(ctx)
  f.waitFor(t, func(s event.Snapshot) bool { return s.Summary.TotalPackets == 4 })

  if err := os.Remove(f.maliciousPath); err != nil {
    t.Fatalf("remove failed: %v", err)
  }
  more := benignLines + "2024-01-01 10:02:00 - Benign packet: {'Source IP': '10.0.0.7', 'Protocol': 'TCP'}\n"
  if err := os.WriteFile(f.benignPath, []byte(more), 0o644); err != nil {
    t.Fatalf("write failed: %v", err)
  }

  snap := f.waitFor(t, func(s event.Snapshot) bool { return s.Summary.TotalPackets == 5 })
  if snap.Summary.ThreatsDetected != 2 {
    t.Errorf("expected malicious events to be kept, got %d threats", snap.Summary.ThreatsDetected)
  }
}

func TestApplyDropsStaleUpdates(t *testing.T) {
  f := newFixture(t)
  c := f.coord

  newer := watcher.Update{Stream: event.Malicious, Seq: 5, Events: []event.PacketEvent{{Stream: event.Malicious}}}
  older := watcher.Update{Stream: event.Malicious, Seq: 4}
  if !c.apply(newer) {
    t.Fatalf("expected newer update to apply")
  }
  if c.apply(older) {
    t.Errorf("expected older update to be dropped")
  }
  if c.apply(newer) {
    t.Errorf("expected repeated update to be dropped")
  }
  if len(c.lists[event.Malicious]) != 1 {
    t.Errorf("stale update replaced the list")
  }
  if !c.apply(watcher.Update{Stream: event.Benign, Seq: 2}) {
    t.Errorf("benign sequence is independent of malicious")
  }
}

func TestStartupPublishesOnce(t *testing.T) {
  f := newFixture(t)
  ctx, cancel := context.WithCancel(context.Background())
  defer cancel()
  go f.coord.Run(ctx)

  f.waitFor(t, func(s event.Snapshot) bool { return s.Summary.TotalPackets == 4 })
  time.Sleep(100 * time.Millisecond)
  select {
  case s := <-f.snaps:
    t.Errorf("unexpected second snapshot without a file change: %+v", s.Summary)
  default:
  }
  if got := len(f.coord.History()); got != 1 {
    t.Errorf("expected 1 history entry at startup, got %d", got)
  }
}

func TestInitialReadsAreAlreadyApplied(t *testing.T) {
  f := newFixture(t)
  c := f.coord
  if c.apply(watcher.Update{Stream: event.Benign, Seq: 1}) {
    t.Errorf("initial benign read applied twice")
  }
  if c.apply(watcher.Update{Stream: event.Malicious, Seq: 1}) {
    t.Errorf("initial malicious read applied twice")
  }
  if len(c.lists[event.Benign]) != 2 || len(c.lists[event.Malicious]) != 2 {
    t.Errorf("expected initial lists from construction, got %d and %d",
      len(c.lists[event.Benign]), len(c.lists[event.Malicious]))
  }
}

func TestSubscribeClosedOnShutdown(t *testing.T) {
  f := newFixture(t)
  sub := f.coord.Subscribe(1)

  ctx, cancel := context.WithCancel(context.Background())
  done := make(chan struct{})
  go func() {
    f.coord.Run(ctx)
    close(done)
  }()
  f.waitFor(t, func(s event.Snapshot) bool { return s.Summary.TotalPackets == 4 })
  cancel()

  select {
  case <-done:
  case <-time.After(2 * time.Second):
    t.Fatalf("Run did not return")
  }

  deadline := time.After(2 * time.Second)
  for {
    select {
    case _, ok := <-sub:
      if !ok {
        late := f.coord.Subscribe(1)
        if _, ok := <-late; ok {
          t.Errorf("subscription after shutdown should be closed")
        }
        return
      }
    case <-deadline:
      t.Fatalf("subscription not closed")
    }
  }
}

func TestNewRejectsSwappedWatchers(t *testing.T) {
  dec := decode.New("Protocol", "Source IP", time.UTC, nil)
  dir := t.TempDir()
  b := watcher.New(filepath.Join(dir, "b.log"), event.Benign, time.Second, dec, watcher.OS, nil)
  m := watcher.New(filepath.Join(dir, "m.log"), event.Malicious, time.Second, dec, watcher.OS, nil)

  if _, err := New(m, b, nil, nil, 1, 1); err == nil {
    t.Errorf("expected error for swapped watchers")
  }
  if _, err := New(b, nil, nil, nil, 1, 1); err == nil {
    t.Errorf("expected error for missing watcher")
  }
  if _, err := New(b, m, nil, nil, 1, 1); err != nil {
    t.Errorf("unexpected error: %v", err)
  }
}
