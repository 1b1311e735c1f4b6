package decode

import (
  "encoding/json"
  "errors"
  "fmt"
  "io"
  "strings"
  "time"

  log "github.com/sirupsen/logrus"

  "netmon_dashboard/internal/event"
  "netmon_dashboard/internal/metrics"
)

// Example log lines:
// 2024-01-01 10:00:00 - Benign packet detected by ML model (confidence: 0.00): {'Source IP': '10.0.0.5', 'Destination IP': '10.0.0.1', 'Protocol': 6, 'Packet Length': 60}
// 2024-01-01 10:01:10 - Malicious packet detected by ML model (confidence: 0.42): {'Source IP': '1.2.3.4', 'Destination IP': '10.0.0.1', 'Protocol': 6, 'Packet Length': 60}

const separator = " - "

var (
  ErrNoSeparator = errors.New("no separator")
  ErrTimestamp   = errors.New("invalid timestamp")
  ErrNoPayload   = errors.New("no payload")
  ErrPayload     = errors.New("malformed payload")
)

var layouts = []string{
  time.RFC3339Nano,
  time.RFC3339,
  "2006-01-02 15:04:05.999999999",
  "2006-01-02T15:04:05.999999999",
  "2006-01-02 15:04",
  "2006-01-02T15:04",
  "2006-01-02",
}

type Decoder struct {
  ProtocolField string
  SourceField   string
  Location      *time.Location
  Metrics       *metrics.Metrics
}

func New(protocolField, sourceField string, loc *time.Location, m *metrics.Metrics) *Decoder {
  return &Decoder{ProtocolField: protocolField, SourceField: sourceField, Location: loc, Metrics: m}
}

// Decode turns one log line into an event tagged with stream. A rejected
// line yields one of the Err* values, wrapped with detail.
func (d *Decoder) Decode(line string, stream event.Stream) (event.PacketEvent, error) {
  parts := strings.SplitN(line, separator, 2)
  if len(parts) < 2 {
    return d.reject(stream, ErrNoSeparator, line)
  }

  tsRaw := strings.TrimSpace(parts[0])
  ts, err := d.parseTS(tsRaw)
  if err != nil {
    return d.reject(stream, fmt.Errorf("%w: %q", ErrTimestamp, tsRaw), line)
  }

  start := strings.IndexByte(parts[1], '{')
  if start == -1 {
    return d.reject(stream, ErrNoPayload, line)
  }
  // Single quotes become double quotes wholesale. Values containing an
  // apostrophe will not survive this.
  payload := strings.ReplaceAll(parts[1][start:], "'", `"`)

  fields, err := parsePayload(payload)
  if err != nil {
    return d.reject(stream, fmt.Errorf("%w: %v", ErrPayload, err), line)
  }

  return event.PacketEvent{
    TS:            ts,
    Stream:        stream,
    Protocol:      stringField(fields, d.protocolField()),
    SourceAddress: stringField(fields, d.sourceField()),
    Fields:        fields,
  }, nil
}

// DecodeAll decodes every line of a full log file, skipping rejects.
func (d *Decoder) DecodeAll(data []byte, stream event.Stream) []event.PacketEvent {
  text := strings.TrimSpace(string(data))
  if text == "" {
    return []event.PacketEvent{}
  }
  lines := strings.Split(text, "\n")
  out := make([]event.PacketEvent, 0, len(lines))
  for _, line := range lines {
    line = strings.TrimRight(line, "\r")
    if strings.TrimSpace(line) == "" {
      continue
    }
    if d.Metrics != nil {
      d.Metrics.LinesTotal.WithLabelValues(string(stream)).Inc()
    }
    ev, err := d.Decode(line, stream)
    if err != nil {
      continue
    }
    out = append(out, ev)
  }
  return out
}

func (d *Decoder) reject(stream event.Stream, err error, line string) (event.PacketEvent, error) {
  reason := Reason(err)
  if d.Metrics != nil {
    d.Metrics.LineRejects.WithLabelValues(string(stream), reason).Inc()
  }
  entry := log.WithFields(log.Fields{"stream": stream, "reason": reason})
  switch reason {
  case "timestamp", "payload":
    entry.WithError(err).Warn("skipping log line")
  default:
    entry.WithField("line", line).Debug("skipping log line")
  }
  return event.PacketEvent{}, err
}

// Reason is the short label used for a rejection in metrics and logs.
func Reason(err error) string {
  switch {
  case errors.Is(err, ErrNoSeparator):
    return "separator"
  case errors.Is(err, ErrTimestamp):
    return "timestamp"
  case errors.Is(err, ErrNoPayload):
    return "no_payload"
  case errors.Is(err, ErrPayload):
    return "payload"
  }
  return "unknown"
}

func (d *Decoder) parseTS(s string) (time.Time, error) {
  loc := d.Location
  if loc == nil {
    loc = time.Local
  }
  for _, layout := range layouts {
    if t, err := time.ParseInLocation(layout, s, loc); err == nil {
      return t, nil
    }
  }
  return time.Time{}, errors.New("no matching layout")
}

func (d *Decoder) protocolField() string {
  if d.ProtocolField == "" {
    return "Protocol"
  }
  return d.ProtocolField
}

func (d *Decoder) sourceField() string {
  if d.SourceField == "" {
    return "Source IP"
  }
  return d.SourceField
}

func parsePayload(s string) (map[string]interface{}, error) {
  dec := json.NewDecoder(strings.NewReader(s))
  dec.UseNumber()
  var fields map[string]interface{}
  if err := dec.Decode(&fields); err != nil {
    return nil, err
  }
  if fields == nil {
    return nil, errors.New("not an object")
  }
  // Only whitespace may follow the object.
  if _, err := dec.Token(); err != io.EOF {
    return nil, errors.New("trailing data after object")
  }
  return fields, nil
}

func stringField(fields map[string]interface{}, key string) string {
  v, ok := fields[key]
  if !ok || v == nil {
    return ""
  }
  switch t := v.(type) {
  case string:
    return t
  case json.Number:
    return t.String()
  case bool:
    if t {
      return "true"
    }
    return "false"
  }
  return fmt.Sprint(v)
}
