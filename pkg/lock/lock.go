// Package lock provides the lease that keeps concurrent replicas from running
// the same sweep in the same tick.
package lock

import (
	"context"
	"time"
)

// Release gives the lease back early. It is safe to call after expiry.
type Release func(ctx context.Context) error

type Locker interface {
	// Acquire returns ok=false without error when another holder owns key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, bool, error)
}

// Noop always grants the lease. Used when no Redis is configured.
type Noop struct{}

func (Noop) Acquire(context.Context, string, time.Duration) (Release, bool, error) {
	return func(context.Context) error { return nil }, true, nil
}
