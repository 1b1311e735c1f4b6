package watcher

import (
  "context"
  "io/fs"
  "os"
  "sync"
  "time"

  log "github.com/sirupsen/logrus"

  "netmon_dashboard/internal/decode"
  "netmon_dashboard/internal/event"
  "netmon_dashboard/internal/metrics"
)

// FS is the part of the file system a Watcher needs.
type FS interface {
  Stat(name string) (fs.FileInfo, error)
  ReadFile(name string) ([]byte, error)
}

type osFS struct{}

func (osFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }
func (osFS) ReadFile(name string) ([]byte, error)  { return os.ReadFile(name) }

// OS reads from the real file system.
var OS FS = osFS{}

// Update carries the full decoded content of one log after a reload. Seq
// increases with every successful reload of the same Watcher.
type Update struct {
  Stream event.Stream
  Seq    uint64
  Events []event.PacketEvent
}

type marker struct {
  mod  time.Time
  size int64
}

type loaded struct {
  mark   marker
  events []event.PacketEvent
}

// Watcher polls one append-only log and re-decodes the whole file each time
// it changes. A failed read keeps the previous events.
type Watcher struct {
  path     string
  stream   event.Stream
  interval time.Duration
  decoder  *decode.Decoder
  fs       FS
  metrics  *metrics.Metrics

  mu      sync.RWMutex
  events  []event.PacketEvent
  seq     uint64
  mark    marker
  hasMark bool
  failing bool
}

// New builds a Watcher and performs the initial read. A missing or
// unreadable file is logged and retried by Run.
func New(path string, stream event.Stream, interval time.Duration, dec *decode.Decoder, fsys FS, m *metrics.Metrics) *Watcher {
  if fsys == nil {
    fsys = OS
  }
  if interval <= 0 {
    interval = time.Second
  }
  w := &Watcher{
    path:     path,
    stream:   stream,
    interval: interval,
    decoder:  dec,
    fs:       fsys,
    metrics:  m,
    events:   []event.PacketEvent{},
  }
  _, _ = w.Reload()
  return w
}

func (w *Watcher) Stream() event.Stream { return w.stream }
func (w *Watcher) Path() string         { return w.path }

// Events returns the last successfully decoded list. The slice is replaced,
// never modified, on reload.
func (w *Watcher) Events() []event.PacketEvent {
  w.mu.RLock()
  defer w.mu.RUnlock()
  return w.events
}

// Current is the state of the last successful reload. Seq is 0 when no read
// has succeeded yet.
func (w *Watcher) Current() Update {
  w.mu.RLock()
  defer w.mu.RUnlock()
  return Update{Stream: w.stream, Seq: w.seq, Events: w.events}
}

// Reload reads and decodes the whole file now.
func (w *Watcher) Reload() (Update, error) {
  l, err := w.load()
  if err != nil {
    return Update{}, err
  }
  return w.commit(l), nil
}

// Run polls at the configured interval and sends an Update on out after
// every successful reload, starting with the initial read if it succeeded.
// Nothing is sent or stored once ctx is done.
func (w *Watcher) Run(ctx context.Context, out chan<- Update) {
  ticker := time.NewTicker(w.interval)
  defer ticker.Stop()

  if up := w.Current(); up.Seq > 0 {
    if !w.send(ctx, out, up) {
      return
    }
  }

  for {
    select {
    case <-ctx.Done():
      return
    case <-ticker.C:
      changed, err := w.changed()
      if err != nil || !changed {
        continue
      }
      l, err := w.load()
      if err != nil {
        continue
      }
      if ctx.Err() != nil {
        return
      }
      if !w.send(ctx, out, w.commit(l)) {
        return
      }
    }
  }
}

func (w *Watcher) send(ctx context.Context, out chan<- Update, up Update) bool {
  select {
  case out <- up:
    return true
  case <-ctx.Done():
    return false
  }
}

func (w *Watcher) changed() (bool, error) {
  info, err := w.fs.Stat(w.path)
  if err != nil {
    w.readFailed(err)
    return false, err
  }
  w.mu.RLock()
  defer w.mu.RUnlock()
  if !w.hasMark {
    return true, nil
  }
  return !info.ModTime().Equal(w.mark.mod) || info.Size() != w.mark.size, nil
}

func (w *Watcher) load() (loaded, error) {
  info, err := w.fs.Stat(w.path)
  if err != nil {
    w.readFailed(err)
    return loaded{}, err
  }
  data, err := w.fs.ReadFile(w.path)
  if err != nil {
    w.readFailed(err)
    return loaded{}, err
  }
  return loaded{
    mark:   marker{mod: info.ModTime(), size: info.Size()},
    events: w.decoder.DecodeAll(data, w.stream),
  }, nil
}

func (w *Watcher) commit(l loaded) Update {
  w.mu.Lock()
  defer w.mu.Unlock()
  if w.failing {
    log.WithFields(log.Fields{"stream": w.stream, "path": w.path}).Info("log readable again")
  }
  w.failing = false
  w.events = l.events
  w.mark = l.mark
  w.hasMark = true
  w.seq++
  if w.metrics != nil {
    w.metrics.ReloadsTotal.WithLabelValues(string(w.stream)).Inc()
    w.metrics.EventsCurrent.WithLabelValues(string(w.stream)).Set(float64(len(l.events)))
  }
  log.WithFields(log.Fields{"stream": w.stream, "events": len(l.events), "seq": w.seq}).Debug("log reloaded")
  return Update{Stream: w.stream, Seq: w.seq, Events: w.events}
}

// readFailed warns on the first failure in a row; repeats go to debug.
func (w *Watcher) readFailed(err error) {
  if w.metrics != nil {
    w.metrics.ReadErrors.WithLabelValues(string(w.stream)).Inc()
  }
  w.mu.Lock()
  first := !w.failing
  w.failing = true
  w.mu.Unlock()
  entry := log.WithFields(log.Fields{"stream": w.stream, "path": w.path}).WithError(err)
  if first {
    entry.Warn("log read failed, keeping previous events")
    return
  }
  entry.Debug("log read failed")
}
