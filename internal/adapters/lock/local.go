package lock

import (
	"context"
	"sync"

	"github.com/kevin07696/automated-charge/internal/domain/ports"
	"github.com/kevin07696/automated-charge/pkg/resilience"
)

// LocalLocker is an in-process ports.IdentityLocker for single-instance deployments
type LocalLocker struct {
	mu       sync.Mutex
	slots    map[string]*slot
	timeouts *resilience.TimeoutConfig
}

type slot struct {
	ch      chan struct{}
	waiters int
}

var _ ports.IdentityLocker = (*LocalLocker)(nil)

// NewLocalLocker creates a locker whose callers wait at most timeouts.LockWait for a held key
func NewLocalLocker(timeouts *resilience.TimeoutConfig) *LocalLocker {
	return &LocalLocker{
		slots:    make(map[string]*slot),
		timeouts: timeouts,
	}
}

// WithLock runs fn while holding the lock for key. fn's error is returned unchanged.
func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := checkArgs(key, fn); err != nil {
		return err
	}

	s := l.acquireSlot(key)
	defer l.releaseSlot(key, s)

	waitCtx, cancel := l.timeouts.LockContext(ctx)
	defer cancel()

	select {
	case s.ch <- struct{}{}:
	case <-waitCtx.Done():
		return busy(key, waitCtx.Err())
	}
	defer func() { <-s.ch }()

	return fn(ctx)
}

func (l *LocalLocker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.waiters++
	return s
}

func (l *LocalLocker) releaseSlot(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.waiters--
	if s.waiters == 0 {
		delete(l.slots, key)
	}
}
