package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

// MarketDataStore implements domain.MarketDataFeed over the marketdata table.
type MarketDataStore struct {
	pool *pgxpool.Pool
}

// NewMarketDataStore creates a new MarketDataStore backed by the given connection pool.
func NewMarketDataStore(pool *pgxpool.Pool) *MarketDataStore {
	return &MarketDataStore{pool: pool}
}

const barSelectCols = `instrumentid, open, high, low, close, previousclose, date`

// scanBar reads one bar. NULL prices scan as zero, which makes the bar unusable.
func scanBar(scanner interface{ Scan(dest ...any) error }) (domain.MarketDataBar, error) {
	var b domain.MarketDataBar
	var open, high, low, closePx, prev decimal.NullDecimal

	if err := scanner.Scan(&b.InstrumentID, &open, &high, &low, &closePx, &prev, &b.Date); err != nil {
		return domain.MarketDataBar{}, err
	}

	b.Open = open.Decimal
	b.High = high.Decimal
	b.Low = low.Decimal
	b.Close = closePx.Decimal
	b.PreviousClose = prev.Decimal
	return b, nil
}

// Latest returns the most recent bar for an instrument.
func (s *MarketDataStore) Latest(ctx context.Context, instrumentID int64) (domain.MarketDataBar, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+barSelectCols+` FROM marketdata
		 WHERE instrumentid = $1
		 ORDER BY date DESC, id DESC
		 LIMIT 1`, instrumentID)

	b, err := scanBar(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MarketDataBar{}, domain.ErrNotFound
		}
		return domain.MarketDataBar{}, fmt.Errorf("postgres: latest bar %d: %w", instrumentID, err)
	}
	return b, nil
}

// LatestForMany returns the newest bar of each requested instrument, most
// recent first.
func (s *MarketDataStore) LatestForMany(ctx context.Context, instrumentIDs []int64) ([]domain.MarketDataBar, error) {
	if len(instrumentIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+barSelectCols+` FROM (
			SELECT DISTINCT ON (instrumentid) id, `+barSelectCols+`
			FROM marketdata
			WHERE instrumentid = ANY($1)
			ORDER BY instrumentid, date DESC, id DESC
		 ) latest
		 ORDER BY date DESC, instrumentid`, instrumentIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres: latest bars: %w", err)
	}
	defer rows.Close()

	var bars []domain.MarketDataBar
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: latest bars rows: %w", err)
	}
	return bars, nil
}
