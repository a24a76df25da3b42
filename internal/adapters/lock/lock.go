// Package lock serializes charge attempts for one giving identity.
package lock

import (
	"context"
	"errors"
	"strings"

	"github.com/kevin07696/automated-charge/internal/domain"
)

var (
	// ErrEmptyLockKey is returned when an empty lock key is provided
	ErrEmptyLockKey = errors.New("lock key cannot be empty")
	// ErrNilLockFn is returned when a nil function is passed to WithLock
	ErrNilLockFn = errors.New("lock function is nil")
)

func checkArgs(key string, fn func(context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyLockKey
	}
	if fn == nil {
		return ErrNilLockFn
	}
	return nil
}

// busy reports that another attempt for the same identity holds the lock
func busy(key string, err error) error {
	return domain.WrapError(domain.ErrorCodeChargeInProgress,
		"another charge for this payer is in progress, try again shortly", err).
		WithDetail("lock_key", key)
}
