package notify

import (
  "encoding/json"
  "errors"
  "fmt"
  "testing"
  "time"

  "github.com/nats-io/nats.go"

  "netmon_dashboard/internal/event"
)

type fakeConn struct {
  msgs    []*nats.Msg
  err     error
  drained bool
}

func (c *fakeConn) PublishMsg(m *nats.Msg) error {
  if c.err != nil {
    return c.err
  }
  c.msgs = append(c.msgs, m)
  return nil
}

func (c *fakeConn) Drain() error {
  c.drained = true
  return nil
}

func newTestPublisher(conn *fakeConn) *Publisher {
  p := NewPublisher(conn, "netmon.dashboard")
  p.now = func() time.Time { return time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC) }
  n := 0
  p.newID = func() string {
    n++
    return fmt.Sprintf("id-%d", n)
  }
  return p
}

func withSuggestion(addr string, hits int) event.Snapshot {
  s := event.EmptySnapshot()
  s.Suggestion = event.Suggestion{Address: addr, Hits: hits}
  return s
}

func TestPublishSendsSnapshotAndFirstSuggestion(t *testing.T) {
  conn := &fakeConn{}
  p := newTestPublisher(conn)

  if err := p.Publish(withSuggestion("", 0)); err != nil {
    t.Fatalf("Publish failed: %v", err)
  }
  if len(conn.msgs) != 2 {
    t.Fatalf("expected snapshot and suggestion messages, got %d", len(conn.msgs))
  }

  snapMsg := conn.msgs[0]
  if snapMsg.Subject != "netmon.dashboard" {
    t.Errorf("unexpected subject %q", snapMsg.Subject)
  }
  if got := snapMsg.Header.Get(nats.MsgIdHdr); got != "id-1" {
    t.Errorf("expected msg id id-1, got %q", got)
  }
  var decoded message
  if err := json.Unmarshal(snapMsg.Data, &decoded); err != nil {
    t.Fatalf("bad json: %v", err)
  }
  if decoded.Snapshot.Summary.TimeTaken != "0h 0m" {
    t.Errorf("unexpected snapshot %+v", decoded.Snapshot)
  }

  sugMsg := conn.msgs[1]
  if sugMsg.Subject != "netmon.dashboard.suggestion" {
    t.Errorf("unexpected subject %q", sugMsg.Subject)
  }
  var sug suggestionMessage
  if err := json.Unmarshal(sugMsg.Data, &sug); err != nil {
    t.Fatalf("bad json: %v", err)
  }
  if sug.Message != "No suggestions at this time." {
    t.Errorf("unexpected message %q", sug.Message)
  }
}

func TestPublishSuggestionOnlyOnChange(t *testing.T) {
  conn := &fakeConn{}
  p := newTestPublisher(conn)

  _ = p.Publish(withSuggestion("1.2.3.4", 2))
  _ = p.Publish(withSuggestion("1.2.3.4", 3))
  if len(conn.msgs) != 3 {
    t.Fatalf("expected 3 messages, got %d", len(conn.msgs))
  }

  _ = p.Publish(withSuggestion("5.6.7.8", 4))
  if len(conn.msgs) != 5 {
    t.Fatalf("expected 5 messages, got %d", len(conn.msgs))
  }
  var sug suggestionMessage
  if err := json.Unmarshal(conn.msgs[4].Data, &sug); err != nil {
    t.Fatalf("bad json: %v", err)
  }
  if sug.Address != "5.6.7.8" || sug.Hits != 4 {
    t.Errorf("unexpected suggestion %+v", sug)
  }
}

func TestPublishError(t *testing.T) {
  conn := &fakeConn{err: errors.New("no responders")}
  p := newTestPublisher(conn)
  if err := p.Publish(withSuggestion("1.2.3.4", 1)); err == nil {
    t.Fatalf("expected publish error")
  }

  // The suggestion was never delivered, so it goes out once the link is back.
  conn.err = nil
  if err := p.Publish(withSuggestion("1.2.3.4", 1)); err != nil {
    t.Fatalf("Publish failed: %v", err)
  }
  if len(conn.msgs) != 2 {
    t.Errorf("expected snapshot and suggestion, got %d", len(conn.msgs))
  }

  p.Close()
  if !conn.drained {
    t.Errorf("expected Close to drain")
  }
}
