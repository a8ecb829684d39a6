// Package receiver owns the UDP socket and the background receive loop that
// feeds decoded TSPS messages into the hand-off queue.
package receiver

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/tspsctl/internal/observability"
	"github.com/danmuck/tspsctl/internal/pump"
	"github.com/danmuck/tspsctl/internal/wire"
	"github.com/google/uuid"
	"github.com/hypebeast/go-osc/osc"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidPort   = errors.New("receiver: invalid port")
	ErrNotConfigured = errors.New("receiver: port not configured")
	ErrBind          = errors.New("receiver: bind failed")
)

const (
	// maxDatagram covers the largest UDP payload.
	maxDatagram = 65535

	defaultStopTimeout = 2 * time.Second
)

// Status is a point-in-time view of the receiver.
type Status struct {
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Connected bool      `json:"connected"`
	SessionID string    `json:"session_id,omitempty"`
	LocalAddr string    `json:"local_addr,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Packets   uint64    `json:"packets"`
	Errors    uint64    `json:"errors"`
}

// Receiver binds a UDP port and decodes OSC packets on its own goroutine.
type Receiver struct {
	queue *pump.Queue

	mu          sync.Mutex
	host        string
	port        int
	conn        net.PacketConn
	done        chan struct{}
	sessionID   string
	startedAt   time.Time
	packets     uint64
	errors      uint64
	stopTimeout time.Duration
}

// New creates a disconnected receiver that feeds q.
func New(q *pump.Queue) *Receiver {
	return &Receiver{queue: q, stopTimeout: defaultStopTimeout}
}

// Configure sets the listening port. It takes effect on the next Start.
func (r *Receiver) Configure(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.port = port
	return nil
}

// ConfigureHost sets the bind host; empty binds all interfaces.
func (r *Receiver) ConfigureHost(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.host = strings.TrimSpace(host)
}

// SetStopTimeout bounds how long Stop waits for the receive goroutine.
func (r *Receiver) SetStopTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTimeout = d
}

// Start binds the configured port and spawns the receive loop. A bind
// failure leaves the receiver disconnected; the caller may retry. Start on a
// connected receiver is a no-op.
func (r *Receiver) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		return nil
	}
	if r.port == 0 {
		return ErrNotConfigured
	}

	addr := net.JoinHostPort(r.host, strconv.Itoa(r.port))
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		log.Error().Str("addr", addr).Err(err).Msg("receiver.Start bind failed")
		return fmt.Errorf("%w: %s: %w", ErrBind, addr, err)
	}

	r.conn = conn
	r.done = make(chan struct{})
	r.sessionID = uuid.NewString()
	r.startedAt = time.Now()
	r.packets = 0
	r.errors = 0

	go r.listen(conn, r.done, r.sessionID)

	log.Info().
		Str("addr", conn.LocalAddr().String()).
		Str("session_id", r.sessionID).
		Msg("receiver.Start listening")
	return nil
}

// Stop closes the socket, which unblocks a pending read, and waits up to the
// stop timeout for the loop to exit. Safe to call repeatedly or before Start.
func (r *Receiver) Stop() {
	r.mu.Lock()
	conn := r.conn
	done := r.done
	session := r.sessionID
	timeout := r.stopTimeout
	r.conn = nil
	r.done = nil
	r.mu.Unlock()

	if conn == nil {
		return
	}
	_ = conn.Close()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		log.Info().Str("session_id", session).Msg("receiver.Stop closed")
	case <-timer.C:
		log.Warn().
			Str("session_id", session).
			Dur("timeout", timeout).
			Msg("receiver.Stop loop did not exit in time")
	}
}

// IsConnected reports whether Start succeeded and Stop has not run since.
func (r *Receiver) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil
}

// Port returns the configured port.
func (r *Receiver) Port() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.port
}

// LocalAddr returns the bound address, or nil when disconnected.
func (r *Receiver) LocalAddr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

func (r *Receiver) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{
		Host:      r.host,
		Port:      r.port,
		Connected: r.conn != nil,
		Packets:   r.packets,
		Errors:    r.errors,
	}
	if r.conn != nil {
		st.SessionID = r.sessionID
		st.LocalAddr = r.conn.LocalAddr().String()
		st.StartedAt = r.startedAt
	}
	return st
}

func (r *Receiver) listen(conn net.PacketConn, done chan struct{}, session string) {
	defer close(done)
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.Debug().Str("session_id", session).Msg("receiver.listen socket closed")
				return
			}
			r.countError(session, "receive")
			log.Warn().Str("session_id", session).Err(err).Msg("receiver.listen receive failed")
			continue
		}
		r.handleDatagram(buf[:n], from, session)
	}
}

func (r *Receiver) handleDatagram(data []byte, from net.Addr, session string) {
	if len(data) == 0 {
		log.Debug().Str("session_id", session).Msg("receiver.listen empty datagram")
		return
	}
	packet, err := parsePacket(data)
	if err != nil {
		r.countError(session, "decode")
		log.Warn().
			Str("session_id", session).
			Str("from", addrString(from)).
			Int("bytes", len(data)).
			Err(err).
			Msg("receiver.listen decode failed")
		return
	}
	msgs := wire.Flatten(packet, time.Now())
	if len(msgs) == 0 {
		log.Debug().
			Str("session_id", session).
			Str("from", addrString(from)).
			Msg("receiver.listen null packet")
		return
	}
	r.queue.Enqueue(msgs...)
	observability.RecordPacket(len(msgs))

	r.mu.Lock()
	if r.sessionID == session {
		r.packets++
	}
	r.mu.Unlock()
}

// parsePacket decodes one datagram, accepting message addresses without a
// leading slash. The codec indexes into the payload without bounds checks on
// some truncated inputs, so a panic is reported as a decode error instead of
// killing the loop.
func parsePacket(data []byte) (packet osc.Packet, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			packet = nil
			err = fmt.Errorf("osc decode panic: %v", rec)
		}
	}()
	return osc.ParsePacket(string(wire.SlashAddresses(data)))
}

func (r *Receiver) countError(session, kind string) {
	observability.RecordReceiverError(kind)
	r.mu.Lock()
	if r.sessionID == session {
		r.errors++
	}
	r.mu.Unlock()
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
