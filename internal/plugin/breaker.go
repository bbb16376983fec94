package plugin

import (
	"sync"
	"time"
)

type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		OpenTimeout:      30 * time.Second,
	}
}

// breaker stops calls to a plugin that keeps failing. After OpenTimeout a
// single trial call is let through; its outcome closes or reopens the breaker.
type breaker struct {
	config      BreakerConfig
	state       BreakerState
	failures    int
	lastFailure time.Time
	probing     bool
	now         func() time.Time
	mu          sync.Mutex
}

func newBreaker(config BreakerConfig) *breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	return &breaker{config: config, state: BreakerClosed, now: time.Now}
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.now().Sub(b.lastFailure) < b.config.OpenTimeout {
			return false
		}
		b.state = BreakerHalfOpen
		b.probing = false
	}

	if b.probing {
		return false
	}
	b.probing = true
	return true
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.probing = false
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	b.probing = false
	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		return
	}
	b.failures++
	if b.failures >= b.config.FailureThreshold {
		b.state = BreakerOpen
	}
}

func (b *breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
