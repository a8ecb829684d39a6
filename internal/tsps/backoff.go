package tsps

import (
	"math"
	"math/rand"
	"time"
)

// bindRetry tracks consecutive receiver bind failures and yields the wait
// before the next Start attempt.
type bindRetry struct {
	cfg      BackoffConfig
	rng      *rand.Rand
	failures int
}

func newBindRetry(cfg BackoffConfig, rng *rand.Rand) *bindRetry {
	return &bindRetry{cfg: cfg, rng: rng}
}

// fail records one failed bind and returns how long to wait.
func (b *bindRetry) fail() time.Duration {
	b.failures++
	return b.delay(b.failures)
}

func (b *bindRetry) reset() {
	b.failures = 0
}

// delay grows InitialDelay by Multiplier per failure, capped at MaxDelay.
// Jitter scales the result into [0.5, 1.5).
func (b *bindRetry) delay(attempt int) time.Duration {
	cfg := b.cfg
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	if attempt < 1 {
		attempt = 1
	}
	d := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && d > float64(cfg.MaxDelay) {
		d = float64(cfg.MaxDelay)
	}
	if cfg.Jitter && b.rng != nil {
		d *= 0.5 + b.rng.Float64()
	}
	return time.Duration(d)
}
