package domain

import (
	"context"
	"time"
)

// InstrumentCatalog resolves instrument reference data.
type InstrumentCatalog interface {
	// GetByID returns ErrNotFound when no instrument has the given id.
	GetByID(ctx context.Context, id int64) (Instrument, error)
	// FindCurrency returns the single cash instrument, or ErrNotFound.
	FindCurrency(ctx context.Context) (Instrument, error)
}

// InstrumentSearcher runs fuzzy ticker/name searches over the catalog.
type InstrumentSearcher interface {
	Search(ctx context.Context, query string, limit, offset int) ([]Instrument, int64, error)
}

// MarketDataFeed provides the latest price bars.
type MarketDataFeed interface {
	// Latest returns the most recent bar, or ErrNotFound when none exists.
	Latest(ctx context.Context, instrumentID int64) (MarketDataBar, error)
	// LatestForMany returns bars for the given instruments, most recent first.
	// An instrument may appear more than once.
	LatestForMany(ctx context.Context, instrumentIDs []int64) ([]MarketDataBar, error)
}

// OrderStore persists orders keyed by integer id.
type OrderStore interface {
	// Save inserts the order when ID is zero and updates it otherwise. The
	// returned order carries the assigned id and creation time.
	Save(ctx context.Context, order Order) (Order, error)
	// FindByID returns ErrNotFound unless the order exists and belongs to userID.
	FindByID(ctx context.Context, id, userID int64) (Order, error)
	// FindByUser returns the user's orders newest first, optionally filtered by status.
	FindByUser(ctx context.Context, userID int64, status *OrderStatus) ([]Order, error)
	// ListFilled returns the user's FILLED orders in creation order.
	ListFilled(ctx context.Context, userID int64) ([]Order, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// ListOpts provides pagination and filtering for list queries. Event, when
// set, matches audit events by prefix.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
	Event  string
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
