package domain

import (
	"context"
	"time"
)

// BarCache keeps the latest bar per instrument.
type BarCache interface {
	SetLatest(ctx context.Context, bar MarketDataBar) error
	// GetLatest returns ErrNotFound on a cache miss.
	GetLatest(ctx context.Context, instrumentID int64) (MarketDataBar, error)
}

// InstrumentCache provides fast instrument lookups.
type InstrumentCache interface {
	Set(ctx context.Context, inst Instrument) error
	// Get returns ErrNotFound on a cache miss.
	Get(ctx context.Context, id int64) (Instrument, error)
	Invalidate(ctx context.Context, id int64) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub messaging.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
