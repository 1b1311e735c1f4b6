package dashboard

import (
  "context"
  "encoding/json"
  "net/http"
  "time"

  "github.com/gorilla/mux"
  "github.com/prometheus/client_golang/prometheus"
  "github.com/prometheus/client_golang/prometheus/promhttp"
  log "github.com/sirupsen/logrus"

  "netmon_dashboard/internal/event"
  "netmon_dashboard/internal/ingest"
)

// Source is what the API reads from; *ingest.Coordinator satisfies it.
type Source interface {
  Snapshot() event.Snapshot
  History() []ingest.HistoryEntry
}

type suggestionResponse struct {
  Address string `json:"address,omitempty"`
  Hits    int    `json:"hits"`
  None    bool   `json:"none"`
  Message string `json:"message"`
}

// Handler serves the aggregates as JSON for the presentation layer.
type Handler struct {
  src Source
}

// NewRouter wires the API routes. When gatherer is non-nil its metrics are
// served on /metrics.
func NewRouter(src Source, gatherer prometheus.Gatherer) *mux.Router {
  h := &Handler{src: src}
  r := mux.NewRouter()
  api := r.PathPrefix("/api/v1").Subrouter()
  api.HandleFunc("/snapshot", h.snapshotHandler).Methods(http.MethodGet)
  api.HandleFunc("/summary", h.summaryHandler).Methods(http.MethodGet)
  api.HandleFunc("/series/{view}", h.seriesHandler).Methods(http.MethodGet)
  api.HandleFunc("/suggestion", h.suggestionHandler).Methods(http.MethodGet)
  api.HandleFunc("/history", h.historyHandler).Methods(http.MethodGet)
  r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
    w.Header().Set("Content-Type", "text/plain; charset=utf-8")
    _, _ = w.Write([]byte("ok"))
  }).Methods(http.MethodGet)
  if gatherer != nil {
    r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
  }
  return r
}

func (h *Handler) snapshotHandler(w http.ResponseWriter, r *http.Request) {
  writeJSON(w, http.StatusOK, h.src.Snapshot())
}

func (h *Handler) summaryHandler(w http.ResponseWriter, r *http.Request) {
  writeJSON(w, http.StatusOK, h.src.Snapshot().Summary)
}

func (h *Handler) seriesHandler(w http.ResponseWriter, r *http.Request) {
  view := event.View(mux.Vars(r)["view"])
  series, ok := h.src.Snapshot().Series(view)
  if !ok {
    http.Error(w, "unknown view "+string(view), http.StatusNotFound)
    return
  }
  if series == nil {
    series = event.Series{}
  }
  writeJSON(w, http.StatusOK, series)
}

func (h *Handler) suggestionHandler(w http.ResponseWriter, r *http.Request) {
  s := h.src.Snapshot().Suggestion
  writeJSON(w, http.StatusOK, suggestionResponse{
    Address: s.Address,
    Hits:    s.Hits,
    None:    s.None(),
    Message: s.Message(),
  })
}

func (h *Handler) historyHandler(w http.ResponseWriter, r *http.Request) {
  history := h.src.History()
  if history == nil {
    history = []ingest.HistoryEntry{}
  }
  writeJSON(w, http.StatusOK, history)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
  body, err := json.Marshal(v)
  if err != nil {
    http.Error(w, "failed to marshal response: "+err.Error(), http.StatusInternalServerError)
    return
  }
  w.Header().Set("Content-Type", "application/json")
  w.WriteHeader(status)
  _, _ = w.Write(body)
}

// Serve runs srv until ctx is done, then shuts it down.
func Serve(ctx context.Context, srv *http.Server) error {
  errCh := make(chan error, 1)
  go func() {
    log.WithField("addr", srv.Addr).Info("http server starting")
    if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
      errCh <- err
    }
    close(errCh)
  }()

  select {
  case err := <-errCh:
    return err
  case <-ctx.Done():
  }

  shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
  defer cancel()
  return srv.Shutdown(shutdownCtx)
}
