package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

// InstrumentCache implements domain.InstrumentCache by storing each
// instrument as a JSON string at "instrument:{id}".
type InstrumentCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewInstrumentCache creates an InstrumentCache backed by the given Client.
func NewInstrumentCache(c *Client, ttl time.Duration) *InstrumentCache {
	return &InstrumentCache{rdb: c.Underlying(), ttl: ttl}
}

func instrumentKey(id int64) string {
	return "instrument:" + strconv.FormatInt(id, 10)
}

// cachedInstrument is the wire shape kept in Redis.
type cachedInstrument struct {
	ID     int64  `json:"id"`
	Kind   string `json:"type"`
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

// Set stores inst with the configured TTL.
func (ic *InstrumentCache) Set(ctx context.Context, inst domain.Instrument) error {
	data, err := json.Marshal(cachedInstrument(inst))
	if err != nil {
		return fmt.Errorf("redis: marshal instrument %d: %w", inst.ID, err)
	}
	if err := ic.rdb.Set(ctx, instrumentKey(inst.ID), data, ic.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set instrument %d: %w", inst.ID, err)
	}
	return nil
}

// Get returns the cached instrument or domain.ErrNotFound.
func (ic *InstrumentCache) Get(ctx context.Context, id int64) (domain.Instrument, error) {
	data, err := ic.rdb.Get(ctx, instrumentKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Instrument{}, domain.ErrNotFound
		}
		return domain.Instrument{}, fmt.Errorf("redis: get instrument %d: %w", id, err)
	}

	var ci cachedInstrument
	if err := json.Unmarshal(data, &ci); err != nil {
		return domain.Instrument{}, fmt.Errorf("redis: unmarshal instrument %d: %w", id, err)
	}
	return domain.Instrument(ci), nil
}

// Invalidate drops the cached entry.
func (ic *InstrumentCache) Invalidate(ctx context.Context, id int64) error {
	if err := ic.rdb.Del(ctx, instrumentKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate instrument %d: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.InstrumentCache = (*InstrumentCache)(nil)
