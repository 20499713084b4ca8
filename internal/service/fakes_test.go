package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

const (
	cashID = int64(1)
	aaplID = int64(2)
	meliID = int64(3)
	userID = int64(42)
)

type fakeCatalog struct {
	instruments map[int64]domain.Instrument
	err         error
	calls       int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{instruments: map[int64]domain.Instrument{
		cashID: {ID: cashID, Kind: domain.InstrumentKindCurrency, Ticker: "ARS", Name: "PESOS"},
		aaplID: {ID: aaplID, Kind: "ACCIONES", Ticker: "AAPL", Name: "Apple Inc."},
		meliID: {ID: meliID, Kind: "ACCIONES", Ticker: "MELI", Name: "Mercado Libre"},
	}}
}

func (f *fakeCatalog) GetByID(_ context.Context, id int64) (domain.Instrument, error) {
	f.calls++
	if f.err != nil {
		return domain.Instrument{}, f.err
	}
	inst, ok := f.instruments[id]
	if !ok {
		return domain.Instrument{}, domain.ErrNotFound
	}
	return inst, nil
}

func (f *fakeCatalog) FindCurrency(_ context.Context) (domain.Instrument, error) {
	f.calls++
	for _, inst := range f.instruments {
		if inst.IsCurrency() {
			return inst, nil
		}
	}
	return domain.Instrument{}, domain.ErrNotFound
}

// fakeFeed holds bars per instrument, most recent first.
type fakeFeed struct {
	bars  map[int64][]domain.MarketDataBar
	err   error
	calls int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{bars: map[int64][]domain.MarketDataBar{}}
}

func (f *fakeFeed) add(id int64, closePx, prevClose string) {
	f.bars[id] = append(f.bars[id], domain.MarketDataBar{
		InstrumentID:  id,
		Close:         dec(closePx),
		PreviousClose: dec(prevClose),
		Date:          time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	})
}

func (f *fakeFeed) Latest(_ context.Context, id int64) (domain.MarketDataBar, error) {
	f.calls++
	if f.err != nil {
		return domain.MarketDataBar{}, f.err
	}
	bars := f.bars[id]
	if len(bars) == 0 {
		return domain.MarketDataBar{}, domain.ErrNotFound
	}
	return bars[0], nil
}

func (f *fakeFeed) LatestForMany(_ context.Context, ids []int64) ([]domain.MarketDataBar, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.MarketDataBar
	for _, id := range ids {
		out = append(out, f.bars[id]...)
	}
	return out, nil
}

type fakeOrderStore struct {
	mu      sync.Mutex
	orders  []domain.Order
	nextID  int64
	saveErr error
	saves   int
}

func (f *fakeOrderStore) Save(_ context.Context, o domain.Order) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return domain.Order{}, f.saveErr
	}
	if o.ID == 0 {
		f.nextID++
		o.ID = f.nextID
		f.orders = append(f.orders, o)
		return o, nil
	}
	for i := range f.orders {
		if f.orders[i].ID == o.ID {
			f.orders[i] = o
			return o, nil
		}
	}
	return domain.Order{}, domain.ErrNotFound
}

func (f *fakeOrderStore) FindByID(_ context.Context, id, uid int64) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ID == id && o.UserID == uid {
			return o, nil
		}
	}
	return domain.Order{}, domain.ErrNotFound
}

func (f *fakeOrderStore) FindByUser(_ context.Context, uid int64, status *domain.OrderStatus) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if o.UserID == uid && (status == nil || o.Status == *status) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeOrderStore) ListFilled(ctx context.Context, uid int64) ([]domain.Order, error) {
	filled := domain.OrderStatusFilled
	orders, err := f.FindByUser(ctx, uid, &filled)
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, err
}

// fill appends an already-FILLED order to the store.
func (f *fakeOrderStore) fill(instrumentID int64, side domain.OrderSide, size int64, price string) {
	o := domain.Order{
		InstrumentID: instrumentID,
		UserID:       userID,
		Side:         side,
		Type:         domain.OrderTypeMarket,
		Size:         size,
		Price:        decimal.NewNullDecimal(dec(price)),
		Status:       domain.OrderStatusFilled,
	}
	_, _ = f.Save(context.Background(), o)
}

type fakeLocks struct {
	held     map[string]bool
	acquired []string
	err      error
}

func (f *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[key] {
		return nil, domain.ErrLockHeld
	}
	f.held[key] = true
	f.acquired = append(f.acquired, key)
	return func() { delete(f.held, key) }, nil
}

type fakeBus struct {
	published map[string][][]byte
	err       error
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	if f.published == nil {
		f.published = map[string][][]byte{}
	}
	f.published[channel] = append(f.published[channel], payload)
	return nil
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

type fakeAudit struct {
	events []string
	err    error
}

func (f *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}
