package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/tspsctl/internal/testutil/testlog"
	"github.com/danmuck/tspsctl/internal/tsps"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tspsctl.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestListenerTemplateLoads(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "tspsctl.toml")
	if err := WriteTemplate(path, "listener", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := LoadListenerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 12000 || cfg.AdminAddr != "127.0.0.1:9400" || len(cfg.CorsOrigins) != 1 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	svc, err := cfg.ServiceConfig()
	if err != nil {
		t.Fatalf("service config: %v", err)
	}
	if svc.TickInterval != 16*time.Millisecond || svc.Backoff.MaxDelay != 5*time.Second || !svc.Backoff.Jitter {
		t.Fatalf("unexpected service config: %+v", svc)
	}

	if err := WriteTemplate(path, "listener", false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, "listener", true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
port = 12001
tick = "5ms"
log_events = false

[backoff]
multiplier = 3.0
jitter = false
`)
	cfg, err := LoadListenerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != DefaultName || cfg.AdminAddr != DefaultAdminAddr {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	svc, err := cfg.ServiceConfig()
	if err != nil {
		t.Fatalf("service config: %v", err)
	}
	def := tsps.DefaultServiceConfig()
	if svc.Receiver.Port != 12001 || svc.TickInterval != 5*time.Millisecond {
		t.Fatalf("overrides lost: %+v", svc)
	}
	if svc.HeartbeatInterval != def.HeartbeatInterval || svc.Backoff.InitialDelay != def.Backoff.InitialDelay {
		t.Fatalf("unset fields should keep defaults: %+v", svc)
	}
	if svc.LogEvents || svc.Backoff.Jitter || svc.Backoff.Multiplier != 3 {
		t.Fatalf("bool/float overrides lost: %+v", svc)
	}
}

func TestValidateListenerConfig(t *testing.T) {
	testlog.Start(t)
	if _, err := LoadListenerConfig(writeConfig(t, `name = "x"`)); !errors.Is(err, ErrMissingPort) {
		t.Fatalf("expected ErrMissingPort, got %v", err)
	}
	if _, err := LoadListenerConfig(writeConfig(t, `port = 99999`)); !errors.Is(err, tsps.ErrInvalidPort) {
		t.Fatalf("expected ErrInvalidPort, got %v", err)
	}
	_, err := LoadListenerConfig(writeConfig(t, "port = 12000\ntick = \"soon\""))
	if err == nil || !strings.Contains(err.Error(), "parse tick") {
		t.Fatalf("expected tick parse error, got %v", err)
	}
	if _, err := LoadListenerConfig(writeConfig(t, "port = 12000\nheartbeat = \"-1s\"")); err == nil {
		t.Fatalf("expected negative heartbeat rejected")
	}
	if _, err := LoadListenerConfig(writeConfig(t, "port = 12000\nstream_buffer = -1")); err == nil {
		t.Fatalf("expected negative stream_buffer rejected")
	}
	if _, err := LoadListenerConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected missing file error")
	}
	if _, err := LoadListenerConfig(writeConfig(t, "port = [")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestTemplateKinds(t *testing.T) {
	testlog.Start(t)
	for _, kind := range []string{"listener", "tspsctl", "sender", " Sender "} {
		if _, err := Template(kind); err != nil {
			t.Fatalf("template %q: %v", kind, err)
		}
	}
	if _, err := Template("ghost"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
