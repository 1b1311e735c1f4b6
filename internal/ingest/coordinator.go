package ingest

import (
  "context"
  "errors"
  "fmt"
  "sync"
  "time"

  log "github.com/sirupsen/logrus"

  "netmon_dashboard/internal/aggregate"
  "netmon_dashboard/internal/event"
  "netmon_dashboard/internal/metrics"
  "netmon_dashboard/internal/util"
  "netmon_dashboard/internal/watcher"
)

// Sink receives every snapshot, in order, from the coordinator loop.
type Sink interface {
  Publish(snap event.Snapshot) error
}

type SinkFunc func(event.Snapshot) error

func (f SinkFunc) Publish(snap event.Snapshot) error { return f(snap) }

type HistoryEntry struct {
  At      time.Time     `json:"at"`
  Summary event.Summary `json:"summary"`
}

type namedSink struct {
  name string
  sink Sink
}

// Coordinator merges the benign and malicious watchers into one event set and
// recomputes the aggregates every time either side reloads. All state below
// the mutex is written only by the Run loop.
type Coordinator struct {
  benign    *watcher.Watcher
  malicious *watcher.Watcher
  engine    *aggregate.Engine
  metrics   *metrics.Metrics
  updates   chan watcher.Update
  sinks     []namedSink
  applied   map[event.Stream]uint64
  lists     map[event.Stream][]event.PacketEvent
  now       func() time.Time

  mu       sync.RWMutex
  unified  []event.PacketEvent
  snapshot event.Snapshot
  history  *util.Ring[HistoryEntry]
  subs     []chan event.Snapshot
  closed   bool
}

func New(benign, malicious *watcher.Watcher, engine *aggregate.Engine, m *metrics.Metrics, queueDepth, historySize int) (*Coordinator, error) {
  if benign == nil || malicious == nil {
    return nil, errors.New("both watchers are required")
  }
  if benign.Stream() != event.Benign {
    return nil, fmt.Errorf("benign watcher reads stream %q", benign.Stream())
  }
  if malicious.Stream() != event.Malicious {
    return nil, fmt.Errorf("malicious watcher reads stream %q", malicious.Stream())
  }
  if engine == nil {
    engine = aggregate.New()
  }
  if queueDepth < 0 {
    queueDepth = 0
  }
  // The initial reads are already in hand, so the watchers' first sends
  // repeat them and are dropped by apply.
  b, mal := benign.Current(), malicious.Current()
  return &Coordinator{
    benign:    benign,
    malicious: malicious,
    engine:    engine,
    metrics:   m,
    updates:   make(chan watcher.Update, queueDepth),
    applied: map[event.Stream]uint64{
      event.Benign:    b.Seq,
      event.Malicious: mal.Seq,
    },
    lists: map[event.Stream][]event.PacketEvent{
      event.Benign:    b.Events,
      event.Malicious: mal.Events,
    },
    now:      time.Now,
    unified:  []event.PacketEvent{},
    snapshot: event.EmptySnapshot(),
    history:  util.NewRing[HistoryEntry](historySize),
  }, nil
}

// AddSink registers s before Run starts.
func (c *Coordinator) AddSink(name string, s Sink) {
  c.sinks = append(c.sinks, namedSink{name: name, sink: s})
}

// Subscribe returns a channel that receives each new snapshot. A slow reader
// misses snapshots rather than stalling the loop. The channel is closed when
// Run returns.
func (c *Coordinator) Subscribe(buf int) <-chan event.Snapshot {
  if buf < 1 {
    buf = 1
  }
  ch := make(chan event.Snapshot, buf)
  c.mu.Lock()
  defer c.mu.Unlock()
  if c.closed {
    close(ch)
    return ch
  }
  c.subs = append(c.subs, ch)
  return ch
}

func (c *Coordinator) Snapshot() event.Snapshot {
  c.mu.RLock()
  defer c.mu.RUnlock()
  return c.snapshot
}

// Unified is the benign events followed by the malicious events as of the
// last recomputation.
func (c *Coordinator) Unified() []event.PacketEvent {
  c.mu.RLock()
  defer c.mu.RUnlock()
  return c.unified
}

func (c *Coordinator) History() []HistoryEntry {
  c.mu.RLock()
  defer c.mu.RUnlock()
  return c.history.Values()
}

// Run starts both watchers and processes their updates until ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
  var wg sync.WaitGroup
  for _, w := range []*watcher.Watcher{c.benign, c.malicious} {
    wg.Add(1)
    go func(w *watcher.Watcher) {
      defer wg.Done()
      w.Run(ctx, c.updates)
    }(w)
  }

  c.recompute()

  for {
    select {
    case <-ctx.Done():
      wg.Wait()
      c.shutdown()
      return
    case up := <-c.updates:
      if ctx.Err() != nil {
        continue
      }
      if c.apply(up) {
        c.recompute()
      }
    }
  }
}

func (c *Coordinator) apply(up watcher.Update) bool {
  if up.Seq <= c.applied[up.Stream] {
    if c.metrics != nil {
      c.metrics.StaleUpdates.WithLabelValues(string(up.Stream)).Inc()
    }
    log.WithFields(log.Fields{"stream": up.Stream, "seq": up.Seq, "applied": c.applied[up.Stream]}).Debug("dropping stale update")
    return false
  }
  c.applied[up.Stream] = up.Seq
  c.lists[up.Stream] = up.Events
  return true
}

func (c *Coordinator) recompute() {
  benign := c.lists[event.Benign]
  malicious := c.lists[event.Malicious]
  all := make([]event.PacketEvent, 0, len(benign)+len(malicious))
  all = append(all, benign...)
  all = append(all, malicious...)

  snap := c.engine.Compute(all, benign, malicious)

  c.mu.Lock()
  c.unified = all
  c.snapshot = snap
  c.history.Add(HistoryEntry{At: c.now(), Summary: snap.Summary})
  subs := c.subs
  c.mu.Unlock()

  if c.metrics != nil {
    c.metrics.Recomputations.Inc()
    c.metrics.PacketsTotal.Set(float64(snap.Summary.TotalPackets))
    c.metrics.ThreatsDetected.Set(float64(snap.Summary.ThreatsDetected))
  }
  log.WithFields(log.Fields{
    "total_packets":    snap.Summary.TotalPackets,
    "packet_types":     snap.Summary.PacketTypes,
    "time_taken":       snap.Summary.TimeTaken,
    "threats_detected": snap.Summary.ThreatsDetected,
    "suggested_ip":     snap.Suggestion.String(),
  }).Info("statistics updated")

  for _, s := range c.sinks {
    if err := s.sink.Publish(snap); err != nil {
      if c.metrics != nil {
        c.metrics.PublishErrors.WithLabelValues(s.name).Inc()
      }
      log.WithField("sink", s.name).WithError(err).Warn("snapshot publish failed")
    }
  }
  for _, ch := range subs {
    util.TrySend[event.Snapshot](ch, c.metrics, "subscriber", snap)
  }
}

func (c *Coordinator) shutdown() {
  c.mu.Lock()
  defer c.mu.Unlock()
  c.closed = true
  for _, ch := range c.subs {
    close(ch)
  }
  c.subs = nil
}
