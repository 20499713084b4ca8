package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderSelectCols = `id, instrumentid, userid, side, type, size, price,
	status, rejection_reason, datetime`

func scanOrderFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Order, error) {
	var o domain.Order
	var side, orderType, status string

	err := scanner.Scan(
		&o.ID, &o.InstrumentID, &o.UserID,
		&side, &orderType,
		&o.Size, &o.Price,
		&status, &o.RejectionReason, &o.CreatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	o.Side = domain.OrderSide(side)
	o.Type = domain.OrderType(orderType)
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func scanOrderRows(rows pgx.Rows) ([]domain.Order, error) {
	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrderFromRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Save inserts a new order when o.ID is zero and otherwise updates the
// mutable columns of an existing one.
func (s *OrderStore) Save(ctx context.Context, o domain.Order) (domain.Order, error) {
	if o.ID == 0 {
		return s.insert(ctx, o)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET status = $1, rejection_reason = $2 WHERE id = $3`,
		string(o.Status), o.RejectionReason, o.ID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("postgres: update order %d: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *OrderStore) insert(ctx context.Context, o domain.Order) (domain.Order, error) {
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO orders (
			instrumentid, userid, side, type, size, price,
			status, rejection_reason, datetime
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, datetime`

	err := s.pool.QueryRow(ctx, query,
		o.InstrumentID, o.UserID,
		string(o.Side), string(o.Type),
		o.Size, o.Price,
		string(o.Status), o.RejectionReason, createdAt,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("postgres: insert order for user %d: %w", o.UserID, err)
	}
	return o, nil
}

// FindByID retrieves an order by ID, scoped to its owner.
func (s *OrderStore) FindByID(ctx context.Context, id, userID int64) (domain.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE id = $1 AND userid = $2`, id, userID)

	o, err := scanOrderFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %d: %w", id, err)
	}
	return o, nil
}

// FindByUser returns a user's orders newest first, optionally filtered by status.
func (s *OrderStore) FindByUser(ctx context.Context, userID int64, status *domain.OrderStatus) ([]domain.Order, error) {
	query := `SELECT ` + orderSelectCols + ` FROM orders WHERE userid = $1`
	args := []any{userID}

	if status != nil {
		query += ` AND status = $2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY datetime DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders for user %d: %w", userID, err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan orders for user %d: %w", userID, err)
	}
	return orders, nil
}

// ListFilled returns a user's FILLED orders in creation order.
func (s *OrderStore) ListFilled(ctx context.Context, userID int64) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE userid = $1 AND status = $2
		 ORDER BY datetime, id`, userID, string(domain.OrderStatusFilled))
	if err != nil {
		return nil, fmt.Errorf("postgres: list filled orders for user %d: %w", userID, err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan filled orders for user %d: %w", userID, err)
	}
	return orders, nil
}

// ListTerminalBefore returns every order in a terminal status created
// strictly before the cutoff, oldest first.
func (s *OrderStore) ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE datetime < $1 AND status <> $2
		 ORDER BY datetime, id`, before, string(domain.OrderStatusNew))
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal orders before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan terminal orders: %w", err)
	}
	return orders, nil
}
