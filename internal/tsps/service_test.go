package tsps

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/tspsctl/internal/registry"
	"github.com/danmuck/tspsctl/internal/testutil/testlog"
	"github.com/danmuck/tspsctl/internal/wire"
	"github.com/hypebeast/go-osc/osc"
)

func freePort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	_ = conn.Close()
	return port
}

func testConfig(port int) ServiceConfig {
	cfg := DefaultServiceConfig()
	cfg.Receiver = ReceiverConfig{Host: "127.0.0.1", Port: port}
	cfg.TickInterval = 2 * time.Millisecond
	cfg.SupervisorInterval = 10 * time.Millisecond
	cfg.ReconnectDelay = 5 * time.Millisecond
	cfg.Backoff = BackoffConfig{InitialDelay: 10 * time.Millisecond, Multiplier: 2, MaxDelay: 40 * time.Millisecond}
	cfg.LogEvents = false
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func runService(t *testing.T, svc *Service, sidecars ...Sidecar) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ctx, sidecars...)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Errorf("service did not stop")
		}
	})
	return cancel, done
}

func enteredArgs(id int, x float64) []any {
	return wire.PersonArgs(wire.Person{ID: id, Age: 1, Centroid: wire.Vec2{X: x, Y: 0.5}})
}

func TestNewServiceRequiresPort(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultServiceConfig()
	if _, err := NewService(cfg); !errors.Is(err, ErrInvalidPort) {
		t.Fatalf("expected ErrInvalidPort, got %v", err)
	}
	cfg.Receiver.Port = 70000
	if _, err := NewService(cfg); !errors.Is(err, ErrInvalidPort) {
		t.Fatalf("expected ErrInvalidPort for out-of-range port, got %v", err)
	}
}

func TestValidateRejectsNegativeIntervals(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig(3333)
	cfg.TickInterval = -time.Millisecond
	if err := cfg.WithDefaults().Validate(); !errors.Is(err, ErrInvalidTickInterval) {
		t.Fatalf("expected ErrInvalidTickInterval, got %v", err)
	}
	cfg = testConfig(3333)
	cfg.HeartbeatInterval = -time.Second
	if err := cfg.WithDefaults().Validate(); !errors.Is(err, ErrInvalidHeartbeatInterval) {
		t.Fatalf("expected ErrInvalidHeartbeatInterval, got %v", err)
	}
}

func TestWithDefaultsFillsZeroValues(t *testing.T) {
	testlog.Start(t)
	cfg := ServiceConfig{Receiver: ReceiverConfig{Port: 12000}}.WithDefaults()
	def := DefaultServiceConfig()
	if cfg.Name != def.Name || cfg.TickInterval != def.TickInterval || cfg.HeartbeatInterval != def.HeartbeatInterval {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Backoff != def.Backoff {
		t.Fatalf("backoff defaults not applied: %+v", cfg.Backoff)
	}
	if cfg.Receiver.Port != 12000 {
		t.Fatalf("port overwritten: %d", cfg.Receiver.Port)
	}
}

func TestBindRetryDelays(t *testing.T) {
	testlog.Start(t)
	r := newBindRetry(BackoffConfig{InitialDelay: 250 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second}, nil)
	want := []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, time.Second, time.Second}
	for i, w := range want {
		if got := r.fail(); got != w {
			t.Fatalf("attempt %d: got %v want %v", i+1, got, w)
		}
	}
	r.reset()
	if got := r.fail(); got != 250*time.Millisecond {
		t.Fatalf("reset did not restart schedule: %v", got)
	}

	zero := newBindRetry(BackoffConfig{}, nil)
	if got := zero.fail(); got != 0 {
		t.Fatalf("zero config should not wait, got %v", got)
	}
}

func TestTickPublishesSnapshot(t *testing.T) {
	testlog.Start(t)
	svc, err := NewService(testConfig(freePort(t)))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	var entered []int
	svc.AddObserver(registry.Observer{OnEntered: func(p registry.Person) { entered = append(entered, p.ID) }})

	if n := svc.Tick(); n != 0 {
		t.Fatalf("empty tick applied %d", n)
	}
	if !svc.LastUpdated().IsZero() {
		t.Fatalf("last updated set without messages")
	}

	svc.queue.Enqueue(
		wire.NewMessage(wire.AddressEntered, enteredArgs(3, 0.25)...),
		wire.NewMessage(wire.AddressEntered, enteredArgs(1, 0.75)...),
	)
	if n := svc.Tick(); n != 2 {
		t.Fatalf("expected 2 applied, got %d", n)
	}
	snap := svc.Snapshot()
	if len(snap.People) != 2 || snap.People[0].ID != 1 || snap.People[1].ID != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap.People)
	}
	if p, ok := svc.Person(3); !ok || p.Centroid.X != 0.25 {
		t.Fatalf("person lookup failed: ok=%v p=%+v", ok, p)
	}
	if svc.LastUpdated().IsZero() {
		t.Fatalf("last updated not recorded")
	}
	st := svc.Status()
	if st.People != 2 || st.Messages != 2 || st.Ticks != 2 || st.Pending != 0 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if len(entered) != 2 || entered[0] != 3 || entered[1] != 1 {
		t.Fatalf("observer saw %v, want enqueue order [3 1]", entered)
	}
}

func TestServeEndToEnd(t *testing.T) {
	testlog.Start(t)
	port := freePort(t)
	svc, err := NewService(testConfig(port))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	runService(t, svc)

	waitFor(t, "receiver connected", svc.IsConnected)

	client := osc.NewClient("127.0.0.1", port)
	if err := client.Send(osc.NewMessage("/"+wire.PathEntered, enteredArgs(5, 0.5)...)); err != nil {
		t.Fatalf("send entered: %v", err)
	}
	waitFor(t, "person entered", func() bool { return len(svc.Snapshot().People) == 1 })

	if err := client.Send(osc.NewMessage(wire.AddressMoved.OSCAddress(), enteredArgs(5, 0.625)...)); err != nil {
		t.Fatalf("send moved: %v", err)
	}
	waitFor(t, "person moved", func() bool {
		p, ok := svc.Person(5)
		return ok && p.Centroid.X == 0.625
	})

	if err := client.Send(osc.NewMessage(wire.AddressWillLeave.OSCAddress(), int32(5))); err != nil {
		t.Fatalf("send will-leave: %v", err)
	}
	waitFor(t, "person left", func() bool { return len(svc.Snapshot().People) == 0 })
	if svc.Status().Messages != 3 {
		t.Fatalf("unexpected message count: %d", svc.Status().Messages)
	}
}

func TestServeRetriesBindUntilPortFree(t *testing.T) {
	testlog.Start(t)
	blocker, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen blocker: %v", err)
	}
	port := blocker.LocalAddr().(*net.UDPAddr).Port

	svc, err := NewService(testConfig(port))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	runService(t, svc)

	time.Sleep(50 * time.Millisecond)
	if svc.IsConnected() {
		t.Fatalf("connected while port was held")
	}
	_ = blocker.Close()
	waitFor(t, "bind after release", svc.IsConnected)
}

func TestReconnectIssuesNewSession(t *testing.T) {
	testlog.Start(t)
	svc, err := NewService(testConfig(freePort(t)))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	runService(t, svc)
	waitFor(t, "receiver connected", svc.IsConnected)

	before := svc.Status().Receiver.SessionID
	if err := svc.Reconnect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	after := svc.Status().Receiver.SessionID
	if !svc.IsConnected() || before == after {
		t.Fatalf("reconnect did not rebind: connected=%v before=%q after=%q", svc.IsConnected(), before, after)
	}
}

func TestSidecarErrorStopsServe(t *testing.T) {
	testlog.Start(t)
	svc, err := NewService(testConfig(freePort(t)))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	boom := errors.New("admin bind failed")
	_, done := runService(t, svc, func(context.Context) error { return boom })

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Fatalf("expected sidecar error, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("serve did not stop on sidecar error")
	}
	if svc.IsConnected() {
		t.Fatalf("receiver left running after serve returned")
	}
}
