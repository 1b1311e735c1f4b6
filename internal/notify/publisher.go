package notify

import (
  "encoding/json"
  "time"

  "github.com/google/uuid"
  "github.com/nats-io/nats.go"
  log "github.com/sirupsen/logrus"

  "netmon_dashboard/internal/event"
)

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
  PublishMsg(m *nats.Msg) error
  Drain() error
}

type message struct {
  ID       string         `json:"id"`
  SentAt   time.Time      `json:"sent_at"`
  Snapshot event.Snapshot `json:"snapshot"`
}

type suggestionMessage struct {
  ID      string    `json:"id"`
  SentAt  time.Time `json:"sent_at"`
  Address string    `json:"address,omitempty"`
  Hits    int       `json:"hits"`
  Message string    `json:"message"`
}

// Publisher sends each snapshot to a NATS subject as JSON, and the block
// suggestion to <subject>.suggestion whenever the suggested address changes.
type Publisher struct {
  nc      Conn
  subject string
  now     func() time.Time
  newID   func() string

  last    event.Suggestion
  started bool
}

// Connect dials the NATS server at url.
func Connect(url, subject string) (*Publisher, error) {
  nc, err := nats.Connect(url, nats.Name("netmon_dashboard"))
  if err != nil {
    return nil, err
  }
  log.WithField("url", url).Info("connected to NATS")
  return NewPublisher(nc, subject), nil
}

func NewPublisher(nc Conn, subject string) *Publisher {
  return &Publisher{
    nc:      nc,
    subject: subject,
    now:     time.Now,
    newID:   func() string { return uuid.NewString() },
  }
}

func (p *Publisher) SuggestionSubject() string {
  return p.subject + ".suggestion"
}

// Publish implements ingest.Sink.
func (p *Publisher) Publish(snap event.Snapshot) error {
  now := p.now().UTC()
  id := p.newID()
  data, err := json.Marshal(message{ID: id, SentAt: now, Snapshot: snap})
  if err != nil {
    return err
  }
  if err := p.send(p.subject, id, data); err != nil {
    return err
  }

  if p.started && snap.Suggestion.Address == p.last.Address {
    return nil
  }
  sid := p.newID()
  data, err = json.Marshal(suggestionMessage{
    ID:      sid,
    SentAt:  now,
    Address: snap.Suggestion.Address,
    Hits:    snap.Suggestion.Hits,
    Message: snap.Suggestion.Message(),
  })
  if err != nil {
    return err
  }
  if err := p.send(p.SuggestionSubject(), sid, data); err != nil {
    return err
  }
  p.last = snap.Suggestion
  p.started = true
  return nil
}

func (p *Publisher) send(subject, id string, data []byte) error {
  msg := nats.NewMsg(subject)
  msg.Header.Set(nats.MsgIdHdr, id)
  msg.Header.Set("Content-Type", "application/json")
  msg.Data = data
  return p.nc.PublishMsg(msg)
}

// Close drains the connection.
func (p *Publisher) Close() {
  if p.nc == nil {
    return
  }
  if err := p.nc.Drain(); err != nil {
    log.WithError(err).Warn("NATS drain failed")
    return
  }
  log.Info("NATS connection drained and closed")
}
