package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
  LinesTotal        *prometheus.CounterVec
  LineRejects       *prometheus.CounterVec
  ReloadsTotal      *prometheus.CounterVec
  ReadErrors        *prometheus.CounterVec
  EventsCurrent     *prometheus.GaugeVec
  StaleUpdates      *prometheus.CounterVec
  Recomputations    prometheus.Counter
  PacketsTotal      prometheus.Gauge
  ThreatsDetected   prometheus.Gauge
  DroppedLocalTotal *prometheus.CounterVec
  PublishErrors     *prometheus.CounterVec
}

// New builds the metric set and registers it on reg. A nil reg skips
// registration, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
  m := &Metrics{
    LinesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
      Name: "log_lines_total",
      Help: "Log lines read",
    }, []string{"stream"}),
    LineRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
      Name: "line_rejects_total",
      Help: "Log lines skipped by the decoder",
    }, []string{"stream", "reason"}),
    ReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
      Name: "log_reloads_total",
      Help: "Full log reloads",
    }, []string{"stream"}),
    ReadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
      Name: "log_read_errors_total",
      Help: "Failed log stat or read attempts",
    }, []string{"stream"}),
    EventsCurrent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
      Name: "events_current",
      Help: "Decoded events currently held per stream",
    }, []string{"stream"}),
    StaleUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
      Name: "stale_updates_total",
      Help: "Watcher updates discarded because a newer one was applied",
    }, []string{"stream"}),
    Recomputations: prometheus.NewCounter(prometheus.CounterOpts{
      Name: "recomputations_total",
      Help: "Aggregation passes",
    }),
    PacketsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
      Name: "packets_total",
      Help: "Events in the unified set",
    }),
    ThreatsDetected: prometheus.NewGauge(prometheus.GaugeOpts{
      Name: "threats_detected",
      Help: "Malicious events in the unified set",
    }),
    DroppedLocalTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
      Name: "events_dropped_local_total",
      Help: "Snapshots dropped locally due to backpressure",
    }, []string{"stream"}),
    PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
      Name: "publish_errors_total",
      Help: "Snapshot publish failures by sink",
    }, []string{"sink"}),
  }

  if reg != nil {
    reg.MustRegister(
      m.LinesTotal,
      m.LineRejects,
      m.ReloadsTotal,
      m.ReadErrors,
      m.EventsCurrent,
      m.StaleUpdates,
      m.Recomputations,
      m.PacketsTotal,
      m.ThreatsDetected,
      m.DroppedLocalTotal,
      m.PublishErrors,
    )
  }

  return m
}
