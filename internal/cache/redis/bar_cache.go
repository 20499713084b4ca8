package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

// BarCache implements domain.BarCache using Redis hashes. The latest bar per
// instrument lives at "bar:{instrumentID}" with one field per price and the
// bar date as a Unix timestamp.
type BarCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBarCache creates a BarCache backed by the given Client. A zero ttl keeps
// entries until they are overwritten.
func NewBarCache(c *Client, ttl time.Duration) *BarCache {
	return &BarCache{rdb: c.Underlying(), ttl: ttl}
}

func barKey(instrumentID int64) string {
	return "bar:" + strconv.FormatInt(instrumentID, 10)
}

func encodeBar(bar domain.MarketDataBar) map[string]any {
	return map[string]any{
		"open":  bar.Open.String(),
		"high":  bar.High.String(),
		"low":   bar.Low.String(),
		"close": bar.Close.String(),
		"prev":  bar.PreviousClose.String(),
		"date":  strconv.FormatInt(bar.Date.Unix(), 10),
	}
}

func decodeBar(instrumentID int64, vals map[string]string) (domain.MarketDataBar, error) {
	bar := domain.MarketDataBar{InstrumentID: instrumentID}

	prices := []struct {
		field string
		dst   *decimal.Decimal
	}{
		{"open", &bar.Open},
		{"high", &bar.High},
		{"low", &bar.Low},
		{"close", &bar.Close},
		{"prev", &bar.PreviousClose},
	}
	for _, p := range prices {
		raw, ok := vals[p.field]
		if !ok {
			return domain.MarketDataBar{}, domain.ErrNotFound
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.MarketDataBar{}, fmt.Errorf("redis: parse bar %s: %w", p.field, err)
		}
		*p.dst = d
	}

	raw, ok := vals["date"]
	if !ok {
		return domain.MarketDataBar{}, domain.ErrNotFound
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return domain.MarketDataBar{}, fmt.Errorf("redis: parse bar date: %w", err)
	}
	bar.Date = time.Unix(secs, 0).UTC()

	return bar, nil
}

// SetLatest stores bar as the latest for its instrument.
func (bc *BarCache) SetLatest(ctx context.Context, bar domain.MarketDataBar) error {
	key := barKey(bar.InstrumentID)

	pipe := bc.rdb.TxPipeline()
	pipe.HSet(ctx, key, encodeBar(bar))
	if bc.ttl > 0 {
		pipe.Expire(ctx, key, bc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set bar %d: %w", bar.InstrumentID, err)
	}
	return nil
}

// GetLatest returns the cached bar, or domain.ErrNotFound on a miss.
func (bc *BarCache) GetLatest(ctx context.Context, instrumentID int64) (domain.MarketDataBar, error) {
	vals, err := bc.rdb.HGetAll(ctx, barKey(instrumentID)).Result()
	if err != nil {
		return domain.MarketDataBar{}, fmt.Errorf("redis: get bar %d: %w", instrumentID, err)
	}
	if len(vals) == 0 {
		return domain.MarketDataBar{}, domain.ErrNotFound
	}
	return decodeBar(instrumentID, vals)
}

// Compile-time interface check.
var _ domain.BarCache = (*BarCache)(nil)
