package tsps

import (
	"context"
	"math/rand"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/tspsctl/internal/pump"
	"github.com/danmuck/tspsctl/internal/receiver"
	"github.com/danmuck/tspsctl/internal/registry"
	"github.com/rs/zerolog/log"
)

// Snapshot is an immutable copy of registry state published after each
// non-empty drain. Readers on any goroutine may hold it.
type Snapshot struct {
	People    []registry.Person `json:"people"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Status summarizes the runtime for heartbeats and the admin API.
type Status struct {
	Name        string          `json:"name"`
	Receiver    receiver.Status `json:"receiver"`
	People      int             `json:"people"`
	LastUpdated time.Time       `json:"last_updated"`
	Messages    uint64          `json:"messages"`
	Ticks       uint64          `json:"ticks"`
	Pending     int             `json:"pending"`
}

// Sidecar runs alongside the tick loop until ctx is done. A non-nil return
// while ctx is live stops the service.
type Sidecar func(ctx context.Context) error

// Service owns the receiver, hand-off queue and registry, and drives the
// dispatch tick. The registry is only touched from the goroutine running
// Serve.
type Service struct {
	cfg      ServiceConfig
	queue    *pump.Queue
	receiver *receiver.Receiver
	registry *registry.Registry

	snapshot    atomic.Pointer[Snapshot]
	lastUpdated atomic.Int64
	messages    atomic.Uint64
	ticks       atomic.Uint64

	reconnectMu sync.Mutex
}

// NewService builds a service from cfg. Observers must be added before Serve.
func NewService(cfg ServiceConfig) (*Service, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	q := pump.NewQueue()
	rcv := receiver.New(q)
	rcv.ConfigureHost(cfg.Receiver.Host)
	if err := rcv.Configure(cfg.Receiver.Port); err != nil {
		return nil, err
	}
	s := &Service{
		cfg:      cfg,
		queue:    q,
		receiver: rcv,
		registry: registry.New(),
	}
	s.snapshot.Store(&Snapshot{People: []registry.Person{}})
	if cfg.LogEvents {
		s.registry.AddObserver(LogObserver())
	}
	return s, nil
}

// AddObserver registers obs on the registry. Call before Serve.
func (s *Service) AddObserver(obs registry.Observer) registry.ObserverID {
	return s.registry.AddObserver(obs)
}

// Receiver exposes the packet receiver for status and tests.
func (s *Service) Receiver() *receiver.Receiver {
	return s.receiver
}

// Run blocks until SIGINT/SIGTERM.
func (s *Service) Run(sidecars ...Sidecar) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx, sidecars...)
}

// Serve starts the receiver supervisor and sidecars, then ticks until ctx
// is done. The calling goroutine becomes the dispatch goroutine.
func (s *Service) Serve(ctx context.Context, sidecars ...Sidecar) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		s.receiver.Stop()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.superviseReceiver(ctx)
	}()

	sidecarErr := make(chan error, len(sidecars))
	for _, run := range sidecars {
		wg.Add(1)
		go func(run Sidecar) {
			defer wg.Done()
			if err := run(ctx); err != nil && ctx.Err() == nil {
				sidecarErr <- err
			}
		}(run)
	}

	tick := time.NewTicker(s.cfg.TickInterval)
	defer tick.Stop()
	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	log.Info().
		Str("name", s.cfg.Name).
		Int("port", s.cfg.Receiver.Port).
		Dur("tick", s.cfg.TickInterval).
		Msg("tsps.Service.serve ready")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("tsps.Service.serve shutdown")
			return nil
		case err := <-sidecarErr:
			log.Error().Err(err).Msg("tsps.Service.serve sidecar failed")
			return err
		case <-tick.C:
			s.Tick()
		case <-heartbeat.C:
			st := s.Status()
			log.Info().
				Str("name", st.Name).
				Bool("connected", st.Receiver.Connected).
				Int("people", st.People).
				Uint64("messages", st.Messages).
				Uint64("packets", st.Receiver.Packets).
				Uint64("errors", st.Receiver.Errors).
				Time("last_updated", st.LastUpdated).
				Msg("tsps.Service.heartbeat")
		}
	}
}

// Tick drains the hand-off queue into the registry and publishes a fresh
// snapshot when anything was applied. Only call from the dispatch goroutine.
func (s *Service) Tick() int {
	s.ticks.Add(1)
	n := pump.DrainAndDispatch(s.queue, s.registry)
	if n == 0 {
		return 0
	}
	now := time.Now()
	s.messages.Add(uint64(n))
	s.lastUpdated.Store(now.UnixNano())
	s.snapshot.Store(&Snapshot{People: s.registry.Snapshot(), UpdatedAt: now})
	return n
}

// Snapshot returns the latest published registry copy. Safe from any goroutine.
func (s *Service) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Person looks up one id in the latest snapshot.
func (s *Service) Person(id int) (registry.Person, bool) {
	for _, p := range s.Snapshot().People {
		if p.ID == id {
			return p, true
		}
	}
	return registry.Person{}, false
}

// LastUpdated is the time of the last non-empty drain, zero if none yet.
func (s *Service) LastUpdated() time.Time {
	ns := s.lastUpdated.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (s *Service) IsConnected() bool {
	return s.receiver.IsConnected()
}

func (s *Service) Status() Status {
	return Status{
		Name:        s.cfg.Name,
		Receiver:    s.receiver.Status(),
		People:      len(s.Snapshot().People),
		LastUpdated: s.LastUpdated(),
		Messages:    s.messages.Load(),
		Ticks:       s.ticks.Load(),
		Pending:     s.queue.Len(),
	}
}

// Reconnect stops the receiver, waits ReconnectDelay, and binds again.
// Registry state is kept; a tracker that kept sending resumes updating it.
func (s *Service) Reconnect(ctx context.Context) error {
	s.reconnectMu.Lock()
	defer s.reconnectMu.Unlock()

	s.receiver.Stop()
	timer := time.NewTimer(s.cfg.ReconnectDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	if err := s.receiver.Start(); err != nil {
		log.Warn().Err(err).Msg("tsps.Service.Reconnect start failed")
		return err
	}
	log.Info().Int("port", s.receiver.Port()).Msg("tsps.Service.Reconnect ok")
	return nil
}

// superviseReceiver keeps the receiver bound, retrying bind failures with
// backoff until ctx is done.
func (s *Service) superviseReceiver(ctx context.Context) {
	retry := newBindRetry(s.cfg.Backoff, rand.New(rand.NewSource(time.Now().UnixNano())))
	for {
		wait := s.cfg.SupervisorInterval
		if !s.receiver.IsConnected() {
			s.reconnectMu.Lock()
			err := s.receiver.Start()
			s.reconnectMu.Unlock()
			if err != nil {
				wait = retry.fail()
				log.Warn().
					Int("attempt", retry.failures).
					Dur("retry_in", wait).
					Err(err).
					Msg("tsps.Service.superviseReceiver bind failed")
			} else {
				retry.reset()
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
