package ports

import "context"

// IdentityLocker serializes charge attempts that share a payer giving identity
type IdentityLocker interface {
	// WithLock runs fn while holding the lock for key
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
