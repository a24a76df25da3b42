package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines timeout values for the charge processor's timeout hierarchy
//
// Timeout Hierarchy (from outermost to innermost):
//
//	Charge Attempt (60s)
//	  ↓
//	Gateway Call (30s)      Identity Lock Wait (10s)
//	  ↓
//	Ledger Persistence (20s, detached from caller cancellation)
//
// Persistence starts only after money has moved, so it runs on a context that
// ignores the caller's cancellation and is bounded by its own timeout instead.
type TimeoutConfig struct {
	Attempt     time.Duration // One ProcessCharge/CheckValid/CheckRepeat call (default: 60s)
	Gateway     time.Duration // The single automated charge call (default: 30s)
	LockWait    time.Duration // Waiting for the payer identity lock (default: 10s)
	Persistence time.Duration // Writing transaction, batch, attributes and history (default: 20s)
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		Attempt:     60 * time.Second,
		Gateway:     30 * time.Second,
		LockWait:    10 * time.Second,
		Persistence: 20 * time.Second,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		Attempt:     5 * time.Second,
		Gateway:     2 * time.Second,
		LockWait:    2 * time.Second,
		Persistence: 2 * time.Second,
	}
}

// AttemptContext creates a context with timeout for one processor call
func (tc *TimeoutConfig) AttemptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Attempt)
}

// GatewayContext creates a context for the outbound charge call
func (tc *TimeoutConfig) GatewayContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Gateway)
}

// LockContext bounds how long an attempt waits for the identity lock
func (tc *TimeoutConfig) LockContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.LockWait)
}

// PersistenceContext detaches from parent cancellation and applies the persistence timeout.
// Values such as trace spans are kept.
func (tc *TimeoutConfig) PersistenceContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), tc.Persistence)
}
