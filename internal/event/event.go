package event

import (
  "encoding/json"
  "strconv"
  "strings"
  "time"

  "github.com/google/gopacket/layers"
)

// Stream names which log an event was read from.
type Stream string

const (
  Benign    Stream = "benign"
  Malicious Stream = "malicious"
)

// PacketEvent is one decoded log line. Fields holds the whole decoded
// payload; Protocol and SourceAddress are copies taken out of it.
// Events are never modified after decoding.
type PacketEvent struct {
  TS            time.Time              `json:"ts"`
  Stream        Stream                 `json:"stream"`
  Protocol      string                 `json:"protocol"`
  SourceAddress string                 `json:"source_address,omitempty"`
  Fields        map[string]interface{} `json:"fields"`
}

// ProtocolName maps a numeric IP protocol to its IANA name. Anything that is
// not a known protocol number is returned unchanged.
func (e PacketEvent) ProtocolName() string {
  n, err := strconv.ParseUint(e.Protocol, 10, 8)
  if err != nil {
    return e.Protocol
  }
  name := layers.IPProtocol(n).String()
  if name == "" || strings.HasPrefix(name, "Unknown") {
    return e.Protocol
  }
  return name
}

// Payload renders Fields back into the single-quoted form the log writer uses.
func (e PacketEvent) Payload() string {
  b, err := json.Marshal(e.Fields)
  if err != nil {
    return ""
  }
  return strings.ReplaceAll(string(b), `"`, `'`)
}

type Summary struct {
  TotalPackets    int    `json:"total_packets"`
  PacketTypes     int    `json:"packet_types"`
  TimeTaken       string `json:"time_taken"`
  ThreatsDetected int    `json:"threats_detected"`
}

// Bucket counts the events whose timestamp falls in the minute starting at Start.
type Bucket struct {
  Start time.Time `json:"start"`
  Label string    `json:"label"`
  Count int       `json:"count"`
}

// Series is ordered by Bucket.Start ascending.
type Series []Bucket

func (s Series) Labels() []string {
  out := make([]string, 0, len(s))
  for _, b := range s {
    out = append(out, b.Label)
  }
  return out
}

func (s Series) Counts() []int {
  out := make([]int, 0, len(s))
  for _, b := range s {
    out = append(out, b.Count)
  }
  return out
}

func (s Series) Total() int {
  total := 0
  for _, b := range s {
    total += b.Count
  }
  return total
}

// Suggestion is the source address to block next. An empty Address means
// there is nothing to suggest.
type Suggestion struct {
  Address string `json:"address,omitempty"`
  Hits    int    `json:"hits"`
}

func (s Suggestion) None() bool {
  return s.Address == ""
}

func (s Suggestion) String() string {
  if s.None() {
    return "none"
  }
  return s.Address
}

func (s Suggestion) Message() string {
  if s.None() {
    return "No suggestions at this time."
  }
  return "Suggestion: Consider blocking " + s.Address + " IP address."
}

type View string

const (
  ViewAll       View = "all"
  ViewBenign    View = "benign"
  ViewMalicious View = "malicious"
)

// Snapshot is everything one recomputation pass produces.
type Snapshot struct {
  Summary    Summary    `json:"summary"`
  All        Series     `json:"all"`
  Benign     Series     `json:"benign"`
  Malicious  Series     `json:"malicious"`
  Suggestion Suggestion `json:"suggestion"`
}

// EmptySnapshot is what an empty event set aggregates to.
func EmptySnapshot() Snapshot {
  return Snapshot{
    Summary:   Summary{TimeTaken: "0h 0m"},
    All:       Series{},
    Benign:    Series{},
    Malicious: Series{},
  }
}

func (s Snapshot) Series(v View) (Series, bool) {
  switch v {
  case ViewAll:
    return s.All, true
  case ViewBenign:
    return s.Benign, true
  case ViewMalicious:
    return s.Malicious, true
  }
  return nil, false
}
