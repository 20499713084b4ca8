package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

// InstrumentStore implements domain.InstrumentCatalog and
// domain.InstrumentSearcher using PostgreSQL.
type InstrumentStore struct {
	pool *pgxpool.Pool
}

// NewInstrumentStore creates a new InstrumentStore backed by the given connection pool.
func NewInstrumentStore(pool *pgxpool.Pool) *InstrumentStore {
	return &InstrumentStore{pool: pool}
}

const instrumentSelectCols = `id, type, ticker, name`

func scanInstrument(scanner interface{ Scan(dest ...any) error }) (domain.Instrument, error) {
	var inst domain.Instrument
	err := scanner.Scan(&inst.ID, &inst.Kind, &inst.Ticker, &inst.Name)
	return inst, err
}

// GetByID retrieves a single instrument by ID.
func (s *InstrumentStore) GetByID(ctx context.Context, id int64) (domain.Instrument, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+instrumentSelectCols+` FROM instruments WHERE id = $1`, id)

	inst, err := scanInstrument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Instrument{}, domain.ErrNotFound
		}
		return domain.Instrument{}, fmt.Errorf("postgres: get instrument %d: %w", id, err)
	}
	return inst, nil
}

// FindCurrency returns the cash instrument. If the table holds several, the
// oldest wins.
func (s *InstrumentStore) FindCurrency(ctx context.Context) (domain.Instrument, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+instrumentSelectCols+` FROM instruments WHERE type = $1 ORDER BY id LIMIT 1`,
		domain.InstrumentKindCurrency)

	inst, err := scanInstrument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Instrument{}, domain.ErrNotFound
		}
		return domain.Instrument{}, fmt.Errorf("postgres: find currency instrument: %w", err)
	}
	return inst, nil
}

// Search runs a trigram similarity match of query against the upper-cased
// ticker and name, best match first. total counts every match, ignoring
// limit and offset.
func (s *InstrumentStore) Search(ctx context.Context, query string, limit, offset int) ([]domain.Instrument, int64, error) {
	const where = `WHERE UPPER(ticker) % $1 OR UPPER(name) % $1`

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM instruments `+where, query).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count instrument search: %w", err)
	}
	if total == 0 {
		return []domain.Instrument{}, 0, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+instrumentSelectCols+` FROM instruments `+where+`
		 ORDER BY GREATEST(similarity(UPPER(ticker), $1), similarity(UPPER(name), $1)) DESC, id
		 LIMIT $2 OFFSET $3`,
		query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: search instruments: %w", err)
	}
	defer rows.Close()

	items := []domain.Instrument{}
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres: scan instrument: %w", err)
		}
		items = append(items, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres: search instruments rows: %w", err)
	}
	return items, total, nil
}
