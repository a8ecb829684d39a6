package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/tspsctl/internal/registry"
	"github.com/danmuck/tspsctl/internal/testutil/testlog"
	"github.com/danmuck/tspsctl/internal/wire"
	"github.com/gorilla/websocket"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return env
}

func waitClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count stuck at %d, want %d", h.ClientCount(), want)
}

func TestHubSendsSnapshotThenEvents(t *testing.T) {
	testlog.Start(t)
	h := NewHub(8)
	obs := h.Observer()
	obs.OnEntered(registry.Person{ID: 2})
	obs.OnEntered(registry.Person{ID: 1})
	obs.OnEntered(registry.Person{ID: 4})
	obs.OnWillLeave(registry.Person{ID: 4})

	srv := httptest.NewServer(h)
	defer srv.Close()
	conn := dial(t, srv)

	snap := readEnvelope(t, conn)
	if snap.Event != EventSnapshot || len(snap.People) != 2 || snap.People[0].ID != 1 || snap.People[1].ID != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	obs.OnMoved(registry.Person{ID: 1, Centroid: wire.Vec2{X: 0.5, Y: 0.25}})
	env := readEnvelope(t, conn)
	if env.Event != string(registry.EventMoved) || env.Person == nil || env.Person.Centroid.X != 0.5 {
		t.Fatalf("unexpected event: %+v", env)
	}
	if env.Seq <= snap.Seq {
		t.Fatalf("sequence did not advance: %d after %d", env.Seq, snap.Seq)
	}
}

func TestHubDetachesOnClientClose(t *testing.T) {
	testlog.Start(t)
	h := NewHub(0)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	readEnvelope(t, conn)
	waitClients(t, h, 1)

	_ = conn.Close()
	waitClients(t, h, 0)
}

func TestHubCloseRejectsClients(t *testing.T) {
	testlog.Start(t)
	h := NewHub(4)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	readEnvelope(t, conn)
	waitClients(t, h, 1)

	h.Close()
	if h.ClientCount() != 0 {
		t.Fatalf("clients remain after close: %d", h.ClientCount())
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected closed connection")
	}

	late := dial(t, srv)
	_ = late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Fatalf("closed hub accepted a new client")
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	testlog.Start(t)
	h := NewHub(1)
	c := &client{send: make(chan []byte, 1)}
	if !h.attach(c) {
		t.Fatalf("attach failed")
	}

	// the snapshot frame already fills the buffer
	h.Publish(registry.EventEntered, registry.Person{ID: 9})
	h.Publish(registry.EventUpdated, registry.Person{ID: 9})
	if got := c.dropped.Load(); got != 2 {
		t.Fatalf("dropped = %d, want 2", got)
	}
	if len(c.send) != 1 {
		t.Fatalf("buffer length %d", len(c.send))
	}

	// state is still tracked for later joiners
	late := &client{send: make(chan []byte, 1)}
	h.attach(late)
	var env Envelope
	if err := json.Unmarshal(<-late.send, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(env.People) != 1 || env.People[0].ID != 9 {
		t.Fatalf("late snapshot missing person: %+v", env)
	}
}
