package gateway

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is the current state of a circuit breaker
type BreakerState int

const (
	// StateClosed - calls flow normally
	StateClosed BreakerState = iota
	// StateOpen - calls fail immediately without reaching the gateway
	StateOpen
	// StateHalfOpen - a limited number of probe calls are let through
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned when the breaker refuses a call
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyProbes is returned when the half-open probe budget is exhausted
	ErrTooManyProbes = errors.New("too many probe calls in half-open state")
)

// BreakerConfig configures circuit breaker behavior
type BreakerConfig struct {
	// MaxFailures is the number of consecutive transport failures before opening
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing
	OpenTimeout time.Duration
	// MaxProbes is the number of concurrent calls allowed while half-open
	MaxProbes uint32
}

// DefaultBreakerConfig returns the production defaults
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
		MaxProbes:   1,
	}
}

// Breaker stops sending charges to a gateway that keeps failing at the transport level.
// A refused call never reaches the gateway, so no money moves.
type Breaker struct {
	mu        sync.Mutex
	state     BreakerState
	failures  uint32
	probes    uint32
	changedAt time.Time
	config    BreakerConfig
	isFailure func(error) bool
	now       func() time.Time
	onChange  func(from, to BreakerState)
}

// NewBreaker creates a breaker. isFailure decides which call errors count against the
// gateway; a nil isFailure counts every error.
func NewBreaker(config BreakerConfig, isFailure func(error) bool) *Breaker {
	if isFailure == nil {
		isFailure = func(err error) bool { return err != nil }
	}
	return &Breaker{
		state:     StateClosed,
		changedAt: time.Now(),
		config:    config,
		isFailure: isFailure,
		now:       time.Now,
	}
}

// OnStateChange registers a hook called on every transition
func (b *Breaker) OnStateChange(fn func(from, to BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// Call runs fn if the breaker allows it and records the result
func (b *Breaker) Call(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.changedAt) < b.config.OpenTimeout {
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		b.probes++
		return nil
	case StateHalfOpen:
		if b.probes >= b.config.MaxProbes {
			return ErrTooManyProbes
		}
		b.probes++
		return nil
	default:
		return ErrCircuitOpen
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil && b.isFailure(err) {
		b.failures++
		switch b.state {
		case StateClosed:
			if b.failures >= b.config.MaxFailures {
				b.transition(StateOpen)
			}
		case StateHalfOpen:
			b.transition(StateOpen)
		}
		return
	}

	// Declines and successes both prove the gateway is reachable.
	switch b.state {
	case StateHalfOpen:
		b.transition(StateClosed)
	case StateClosed:
		b.failures = 0
	}
}

func (b *Breaker) transition(to BreakerState) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.changedAt = b.now()
	b.failures = 0
	b.probes = 0
	if b.onChange != nil {
		b.onChange(from, to)
	}
}

// State returns the current breaker state
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive failure count
func (b *Breaker) Failures() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
