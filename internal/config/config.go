package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/tspsctl/internal/tsps"
	"github.com/pelletier/go-toml/v2"
)

var ErrMissingPort = errors.New("listener config missing port")

const (
	DefaultName      = "tspsctl"
	DefaultAdminAddr = "127.0.0.1:9400"
)

// ListenerConfig is the on-disk shape of tspsctl.toml. Durations are Go
// duration strings ("16ms", "10s"); empty means the service default.
type ListenerConfig struct {
	Name               string        `toml:"name"`
	Host               string        `toml:"host"`
	Port               int           `toml:"port"`
	AdminAddr          string        `toml:"admin_addr"`
	AdminToken         string        `toml:"admin_token"`
	CorsOrigins        []string      `toml:"cors_origins"`
	TrustedProxies     []string      `toml:"trusted_proxies"`
	Tick               string        `toml:"tick"`
	Heartbeat          string        `toml:"heartbeat"`
	ReconnectDelay     string        `toml:"reconnect_delay"`
	SupervisorInterval string        `toml:"supervisor_interval"`
	LogEvents          *bool         `toml:"log_events"`
	StreamBuffer       int           `toml:"stream_buffer"`
	Backoff            BackoffConfig `toml:"backoff"`
}

type BackoffConfig struct {
	Initial    string  `toml:"initial"`
	Multiplier float64 `toml:"multiplier"`
	Max        string  `toml:"max"`
	Jitter     *bool   `toml:"jitter"`
}

func LoadListenerConfig(path string) (ListenerConfig, error) {
	var cfg ListenerConfig
	if err := loadToml(path, &cfg); err != nil {
		return ListenerConfig{}, err
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = DefaultName
	}
	if strings.TrimSpace(cfg.AdminAddr) == "" {
		cfg.AdminAddr = DefaultAdminAddr
	}
	if err := ValidateListenerConfig(cfg); err != nil {
		return ListenerConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateListenerConfig(cfg ListenerConfig) error {
	if cfg.Port == 0 {
		return ErrMissingPort
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("%w: %d", tsps.ErrInvalidPort, cfg.Port)
	}
	if cfg.StreamBuffer < 0 {
		return fmt.Errorf("stream_buffer must be >= 0, got %d", cfg.StreamBuffer)
	}
	_, err := cfg.ServiceConfig()
	return err
}

// ServiceConfig overlays the file onto tsps.DefaultServiceConfig.
func (c ListenerConfig) ServiceConfig() (tsps.ServiceConfig, error) {
	out := tsps.DefaultServiceConfig()
	if name := strings.TrimSpace(c.Name); name != "" {
		out.Name = name
	}
	out.Receiver = tsps.ReceiverConfig{Host: strings.TrimSpace(c.Host), Port: c.Port}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"tick", c.Tick, &out.TickInterval},
		{"heartbeat", c.Heartbeat, &out.HeartbeatInterval},
		{"reconnect_delay", c.ReconnectDelay, &out.ReconnectDelay},
		{"supervisor_interval", c.SupervisorInterval, &out.SupervisorInterval},
		{"backoff.initial", c.Backoff.Initial, &out.Backoff.InitialDelay},
		{"backoff.max", c.Backoff.Max, &out.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if err := parseDuration(d.key, d.raw, d.dst); err != nil {
			return tsps.ServiceConfig{}, err
		}
	}
	if c.Backoff.Multiplier != 0 {
		out.Backoff.Multiplier = c.Backoff.Multiplier
	}
	if c.Backoff.Jitter != nil {
		out.Backoff.Jitter = *c.Backoff.Jitter
	}
	if c.LogEvents != nil {
		out.LogEvents = *c.LogEvents
	}
	if err := out.Validate(); err != nil {
		return tsps.ServiceConfig{}, err
	}
	return out, nil
}

func parseDuration(key, raw string, dst *time.Duration) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	*dst = d
	return nil
}
