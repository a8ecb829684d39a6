package tsps

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidPort              = errors.New("tsps: receiver port must be 1-65535")
	ErrInvalidTickInterval      = errors.New("tsps: invalid tick interval")
	ErrInvalidHeartbeatInterval = errors.New("tsps: invalid heartbeat interval")
)

// BackoffConfig defines bind retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// ReceiverConfig selects the UDP endpoint. Port has no default.
type ReceiverConfig struct {
	Host string
	Port int
}

// ServiceConfig configures the listener runtime.
type ServiceConfig struct {
	Name              string
	Receiver          ReceiverConfig
	TickInterval      time.Duration
	HeartbeatInterval time.Duration
	// ReconnectDelay separates Stop and Start during a reconnect so the old
	// receive goroutine can drain out.
	ReconnectDelay time.Duration
	// SupervisorInterval is how often a connected receiver is rechecked.
	SupervisorInterval time.Duration
	Backoff            BackoffConfig
	LogEvents          bool
}

// DefaultServiceConfig returns runtime defaults. Receiver.Port is left zero
// and must be set by the caller.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:               "tspsctl",
		TickInterval:       16 * time.Millisecond,
		HeartbeatInterval:  10 * time.Second,
		ReconnectDelay:     100 * time.Millisecond,
		SupervisorInterval: time.Second,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
		LogEvents: true,
	}
}

// WithDefaults fills zero durations from DefaultServiceConfig.
func (c ServiceConfig) WithDefaults() ServiceConfig {
	def := DefaultServiceConfig()
	if strings.TrimSpace(c.Name) == "" {
		c.Name = def.Name
	}
	if c.TickInterval == 0 {
		c.TickInterval = def.TickInterval
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = def.ReconnectDelay
	}
	if c.SupervisorInterval <= 0 {
		c.SupervisorInterval = def.SupervisorInterval
	}
	if c.Backoff.InitialDelay == 0 && c.Backoff.MaxDelay == 0 {
		c.Backoff = def.Backoff
	}
	return c
}

// Validate rejects configs the runtime cannot start with.
func (c ServiceConfig) Validate() error {
	if c.Receiver.Port <= 0 || c.Receiver.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Receiver.Port)
	}
	if c.TickInterval <= 0 {
		return ErrInvalidTickInterval
	}
	if c.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeatInterval
	}
	return nil
}
