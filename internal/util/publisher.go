package util

import (
  "netmon_dashboard/internal/metrics"
)

// TrySend delivers v without blocking. When out is full the value is dropped
// and counted against stream.
func TrySend[T any](out chan<- T, m *metrics.Metrics, stream string, v T) bool {
  select {
  case out <- v:
    return true
  default:
    if m != nil {
      m.DroppedLocalTotal.WithLabelValues(stream).Inc()
    }
    return false
  }
}
