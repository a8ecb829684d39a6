// Package stream forwards registry lifecycle events to websocket clients.
//
// The hub is a registry observer, so Publish runs on the dispatch goroutine.
// It never blocks there: each client has a bounded buffer and events that do
// not fit are dropped for that client only. A client joining mid-session is
// first sent the hub's own copy of the live set.
package stream

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/tspsctl/internal/observability"
	"github.com/danmuck/tspsctl/internal/registry"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	EventSnapshot = "snapshot"

	defaultBuffer = 256
	writeWait     = 5 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
)

// Envelope is one JSON frame on the stream.
type Envelope struct {
	Seq         uint64            `json:"seq"`
	Event       string            `json:"event"`
	TimestampMS int64             `json:"timestamp_ms"`
	Person      *registry.Person  `json:"person,omitempty"`
	People      []registry.Person `json:"people,omitempty"`
}

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	dropped atomic.Uint64
}

// Hub tracks attached clients and its own view of live people.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	people  map[int]registry.Person
	closed  bool

	seq      atomic.Uint64
	buffer   int
	upgrader websocket.Upgrader
}

// NewHub creates a hub with per-client buffers of size buffer (default 256).
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		people:  make(map[int]registry.Person),
		buffer:  buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Observer returns the registry hook that feeds the hub.
func (h *Hub) Observer() registry.Observer {
	pub := func(ev registry.Event) func(registry.Person) {
		return func(p registry.Person) { h.Publish(ev, p) }
	}
	return registry.Observer{
		Name:        "stream",
		OnEntered:   pub(registry.EventEntered),
		OnUpdated:   pub(registry.EventUpdated),
		OnMoved:     pub(registry.EventMoved),
		OnWillLeave: pub(registry.EventWillLeave),
	}
}

// Publish records ev and offers it to every client without blocking.
func (h *Hub) Publish(ev registry.Event, p registry.Person) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ev == registry.EventWillLeave {
		delete(h.people, p.ID)
	} else {
		h.people[p.ID] = p
	}
	if len(h.clients) == 0 {
		return
	}
	payload, err := h.encode(Envelope{Event: string(ev), Person: &p})
	if err != nil {
		log.Error().Err(err).Msg("stream.Hub.Publish encode failed")
		return
	}
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			c.dropped.Add(1)
			observability.RecordStreamDrop()
		}
	}
}

// ClientCount reports attached clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("stream.Hub upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, h.buffer)}
	if !h.attach(c) {
		_ = conn.Close()
		return
	}
	log.Info().Str("remote", r.RemoteAddr).Int("clients", h.ClientCount()).Msg("stream.Hub client attached")

	go h.writeLoop(c)
	h.readLoop(c)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.detach(c)
	}
}

// attach registers c and queues the current live set as its first frame.
func (h *Hub) attach(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	people := make([]registry.Person, 0, len(h.people))
	for _, p := range h.people {
		people = append(people, p)
	}
	sort.Slice(people, func(i, j int) bool { return people[i].ID < people[j].ID })
	payload, err := h.encode(Envelope{Event: EventSnapshot, People: people})
	if err != nil {
		log.Error().Err(err).Msg("stream.Hub.attach encode failed")
		return false
	}
	c.send <- payload
	h.clients[c] = struct{}{}
	observability.SetStreamClients(len(h.clients))
	return true
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	observability.SetStreamClients(n)
	_ = c.conn.Close()
	log.Info().
		Str("remote", c.conn.RemoteAddr().String()).
		Uint64("dropped", c.dropped.Load()).
		Int("clients", n).
		Msg("stream.Hub client detached")
}

func (h *Hub) encode(env Envelope) ([]byte, error) {
	env.Seq = h.seq.Add(1)
	env.TimestampMS = time.Now().UnixMilli()
	return json.Marshal(env)
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.detach(c)
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards client frames; it exists to observe close and pong.
func (h *Hub) readLoop(c *client) {
	defer h.detach(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
