package main

import (
  "context"
  "flag"
  "net/http"
  "os"
  "os/signal"
  "sync"
  "syscall"

  "github.com/prometheus/client_golang/prometheus"
  "github.com/prometheus/client_golang/prometheus/collectors"
  "github.com/prometheus/client_golang/prometheus/promhttp"
  log "github.com/sirupsen/logrus"

  "netmon_dashboard/internal/aggregate"
  "netmon_dashboard/internal/config"
  "netmon_dashboard/internal/dashboard"
  "netmon_dashboard/internal/decode"
  "netmon_dashboard/internal/event"
  "netmon_dashboard/internal/ingest"
  "netmon_dashboard/internal/logging"
  "netmon_dashboard/internal/metrics"
  "netmon_dashboard/internal/notify"
  "netmon_dashboard/internal/tui"
  "netmon_dashboard/internal/watcher"
)

func main() {
  var cfgPath string
  var withTUI bool
  flag.StringVar(&cfgPath, "config", "", "config path (defaults are used when empty)")
  flag.BoolVar(&withTUI, "tui", false, "show the terminal dashboard")
  flag.Parse()

  cfg := config.Default()
  if cfgPath != "" {
    loaded, err := config.Load(cfgPath)
    if err != nil {
      log.Fatalf("config load failed: %v", err)
    }
    cfg = loaded
  }

  if err := logging.Setup(cfg.LogLevel); err != nil {
    log.Fatalf("log level: %v", err)
  }
  if withTUI {
    // The terminal owns stdout/stderr while the program runs.
    logFile, err := os.OpenFile("netmon_dashboard.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
    if err != nil {
      log.Fatalf("open log file: %v", err)
    }
    defer logFile.Close()
    log.SetOutput(logFile)
  }

  ctx, cancel := context.WithCancel(context.Background())
  defer cancel()

  sigCh := make(chan os.Signal, 2)
  signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
  go func() {
    <-sigCh
    cancel()
  }()

  reg := prometheus.NewRegistry()
  reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
  m := metrics.New(reg)

  dec := decode.New(cfg.ProtocolField, cfg.SourceField, cfg.Location(), m)
  benign := watcher.New(cfg.BenignLogPath, event.Benign, cfg.PollInterval, dec, watcher.OS, m)
  malicious := watcher.New(cfg.MaliciousLogPath, event.Malicious, cfg.PollInterval, dec, watcher.OS, m)

  engine := aggregate.New()
  engine.Location = cfg.Location()
  coord, err := ingest.New(benign, malicious, engine, m, cfg.QueueDepth, cfg.HistorySize)
  if err != nil {
    log.Fatalf("coordinator init failed: %v", err)
  }

  if cfg.NATSURL != "" {
    pub, err := notify.Connect(cfg.NATSURL, cfg.NATSSubject)
    if err != nil {
      log.Fatalf("nats connect failed: %v", err)
    }
    defer pub.Close()
    coord.AddSink("nats", pub)
  }

  var tuiUpdates <-chan event.Snapshot
  if withTUI {
    tuiUpdates = coord.Subscribe(cfg.QueueDepth)
  }

  var wg sync.WaitGroup

  router := dashboard.NewRouter(coord, reg)
  wg.Add(1)
  go func() {
    defer wg.Done()
    if err := dashboard.Serve(ctx, &http.Server{Addr: cfg.HTTPBind, Handler: router}); err != nil {
      log.WithError(err).Error("http server error")
      cancel()
    }
  }()

  if cfg.MetricsBind != "" && cfg.MetricsBind != cfg.HTTPBind {
    mux := http.NewServeMux()
    mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
    wg.Add(1)
    go func() {
      defer wg.Done()
      if err := dashboard.Serve(ctx, &http.Server{Addr: cfg.MetricsBind, Handler: mux}); err != nil {
        log.WithError(err).Error("metrics server error")
      }
    }()
  }

  wg.Add(1)
  go func() {
    defer wg.Done()
    coord.Run(ctx)
  }()

  log.WithFields(log.Fields{
    "benign":    cfg.BenignLogPath,
    "malicious": cfg.MaliciousLogPath,
    "poll":      cfg.PollInterval,
  }).Info("watching logs")

  if withTUI {
    if err := tui.Run(tuiUpdates, cfg.BenignLogPath, cfg.MaliciousLogPath); err != nil {
      log.WithError(err).Error("terminal dashboard error")
    }
    cancel()
  } else {
    <-ctx.Done()
  }

  wg.Wait()
  log.Info("shut down")
}
