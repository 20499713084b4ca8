package redis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "bar:7", barKey(7))
	assert.Equal(t, "instrument:12", instrumentKey(12))
	assert.Equal(t, "lock:orders:user:3", lockKey("orders:user:3"))
	assert.Equal(t, "ratelimit:203.0.113.9", rateLimitKey("203.0.113.9"))
}

func TestBarEncodeDecode(t *testing.T) {
	bar := domain.MarketDataBar{
		InstrumentID:  7,
		Open:          decimal.RequireFromString("10.50"),
		High:          decimal.RequireFromString("11.00"),
		Low:           decimal.RequireFromString("10.10"),
		Close:         decimal.RequireFromString("10.90"),
		PreviousClose: decimal.RequireFromString("10.40"),
		Date:          time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	raw := map[string]string{}
	for k, v := range encodeBar(bar) {
		raw[k] = v.(string)
	}

	got, err := decodeBar(7, raw)
	require.NoError(t, err)
	assert.True(t, bar.Close.Equal(got.Close))
	assert.True(t, bar.PreviousClose.Equal(got.PreviousClose))
	assert.True(t, bar.Date.Equal(got.Date))
}

func TestDecodeBar_PartialHashIsMiss(t *testing.T) {
	_, err := decodeBar(7, map[string]string{"close": "10"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDecodeBar_Corrupt(t *testing.T) {
	_, err := decodeBar(7, map[string]string{
		"open": "x", "high": "1", "low": "1", "close": "1", "prev": "1", "date": "0",
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestHasPattern(t *testing.T) {
	assert.False(t, hasPattern("orders"))
	assert.True(t, hasPattern("orders:*"))
}
