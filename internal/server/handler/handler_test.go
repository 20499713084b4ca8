package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubOrders struct {
	created    domain.OrderRequest
	createErr  error
	cancelled  [2]int64
	listStatus *domain.OrderStatus
	order      domain.Order
	list       []domain.Order
	err        error
}

func (s *stubOrders) Create(_ context.Context, req domain.OrderRequest) (domain.Order, error) {
	s.created = req
	if s.createErr != nil {
		return domain.Order{}, s.createErr
	}
	return s.order, nil
}

func (s *stubOrders) Cancel(_ context.Context, orderID, userID int64) (domain.Order, error) {
	s.cancelled = [2]int64{orderID, userID}
	return s.order, s.err
}

func (s *stubOrders) ListByUser(_ context.Context, _ int64, status *domain.OrderStatus) ([]domain.Order, error) {
	s.listStatus = status
	return s.list, s.err
}

type stubPortfolios struct {
	p   domain.Portfolio
	err error
}

func (s stubPortfolios) Valuate(context.Context, int64) (domain.Portfolio, error) {
	return s.p, s.err
}

type stubInstruments struct {
	query       string
	page, limit int
	res         domain.SearchResult
	inst        domain.Instrument
	err         error
}

func (s *stubInstruments) Get(context.Context, int64) (domain.Instrument, error) {
	return s.inst, s.err
}

func (s *stubInstruments) Search(_ context.Context, query string, page, limit int) (domain.SearchResult, error) {
	s.query, s.page, s.limit = query, page, limit
	return s.res, s.err
}

func serve(t *testing.T, pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func filledOrder() domain.Order {
	return domain.Order{
		ID:           10,
		InstrumentID: 2,
		UserID:       42,
		Side:         domain.OrderSideBuy,
		Type:         domain.OrderTypeMarket,
		Size:         3,
		Price:        decimal.NewNullDecimal(decimal.RequireFromString("150.5")),
		Status:       domain.OrderStatusFilled,
		CreatedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCreateOrder(t *testing.T) {
	orders := &stubOrders{order: filledOrder()}
	h := NewOrderHandler(orders, discardLogger())

	body := `{"userId":42,"instrumentId":2,"side":"BUY","type":"MARKET","size":3}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	rec := serve(t, "POST /api/orders", h.CreateOrder, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{
		"id":10,"instrumentId":2,"userId":42,"side":"BUY","type":"MARKET",
		"size":3,"price":150.50,"status":"FILLED","rejectionReason":null,
		"datetime":"2024-05-01T12:00:00Z"
	}`, rec.Body.String())

	assert.Equal(t, domain.OrderSideBuy, orders.created.Side)
	require.NotNil(t, orders.created.Size)
	assert.True(t, orders.created.Size.Equal(decimal.NewFromInt(3)))
	assert.Nil(t, orders.created.TotalAmount)
}

func TestCreateOrderRejectsMalformedBody(t *testing.T) {
	h := NewOrderHandler(&stubOrders{}, discardLogger())

	for name, body := range map[string]string{
		"not json":      `{`,
		"unknown field": `{"userId":1,"quantity":5}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
			rec := serve(t, "POST /api/orders", h.CreateOrder, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateOrderErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"missing field", domain.MissingField("side", "side is required"), http.StatusBadRequest, "MISSING_FIELD"},
		{"insufficient amount", domain.InsufficientAmount(decimal.NewFromInt(5), decimal.NewFromInt(10)), http.StatusBadRequest, "INSUFFICIENT_AMOUNT"},
		{"no market data", domain.NoMarketData(2), http.StatusBadRequest, "NO_MARKET_DATA"},
		{"unknown instrument", domain.NotFound("instrument"), http.StatusNotFound, "NOT_FOUND"},
		{"lock held", domain.ErrLockHeld, http.StatusConflict, ""},
		{"store failure", errors.New("connection reset"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOrderHandler(&stubOrders{createErr: tt.err}, discardLogger())
			req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"userId":1}`))
			rec := serve(t, "POST /api/orders", h.CreateOrder, req)

			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			if tt.code != "" {
				assert.Equal(t, tt.code, body["code"])
			}
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", body["error"])
			}
		})
	}
}

func TestCancelOrder(t *testing.T) {
	o := filledOrder()
	o.Status = domain.OrderStatusCancelled
	orders := &stubOrders{order: o}
	h := NewOrderHandler(orders, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/orders/10/cancel", strings.NewReader(`{"userId":42}`))
	rec := serve(t, "POST /api/orders/{id}/cancel", h.CancelOrder, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [2]int64{10, 42}, orders.cancelled)
	assert.Equal(t, "CANCELLED", decodeBody(t, rec)["status"])
}

func TestCancelOrderConflict(t *testing.T) {
	orders := &stubOrders{err: domain.InvalidState("only NEW orders can be cancelled")}
	h := NewOrderHandler(orders, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/orders/10/cancel", strings.NewReader(`{"userId":42}`))
	rec := serve(t, "POST /api/orders/{id}/cancel", h.CancelOrder, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_STATE", decodeBody(t, rec)["code"])
}

func TestCancelOrderBadInput(t *testing.T) {
	h := NewOrderHandler(&stubOrders{}, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/orders/abc/cancel", strings.NewReader(`{"userId":42}`))
	rec := serve(t, "POST /api/orders/{id}/cancel", h.CancelOrder, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/orders/10/cancel", strings.NewReader(`{}`))
	rec = serve(t, "POST /api/orders/{id}/cancel", h.CancelOrder, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOrders(t *testing.T) {
	orders := &stubOrders{list: []domain.Order{filledOrder()}}
	h := NewOrderHandler(orders, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/orders?userId=42&status=filled", nil)
	rec := serve(t, "GET /api/orders", h.ListOrders, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, orders.listStatus)
	assert.Equal(t, domain.OrderStatusFilled, *orders.listStatus)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 1)
}

func TestListOrdersEmptyIsArray(t *testing.T) {
	h := NewOrderHandler(&stubOrders{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/orders?userId=42", nil)
	rec := serve(t, "GET /api/orders", h.ListOrders, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListOrdersRequiresUser(t *testing.T) {
	h := NewOrderHandler(&stubOrders{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	rec := serve(t, "GET /api/orders", h.ListOrders, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPortfolio(t *testing.T) {
	p := domain.Portfolio{
		AvailableCash: decimal.RequireFromString("700"),
		TotalValue:    decimal.RequireFromString("1030"),
		Positions: []domain.Position{{
			InstrumentID:     2,
			Ticker:           "AAPL",
			Name:             "Apple",
			Quantity:         3,
			AveragePrice:     decimal.RequireFromString("100"),
			MarketValue:      decimal.RequireFromString("330"),
			DailyReturn:      decimal.RequireFromString("4.7619"),
			ReturnPercentage: decimal.RequireFromString("10"),
		}},
	}
	h := NewPortfolioHandler(stubPortfolios{p: p}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio/42", nil)
	rec := serve(t, "GET /api/portfolio/{userId}", h.GetPortfolio, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"totalValue":1030.00,"availableCash":700.00,
		"positions":[{"instrumentId":2,"ticker":"AAPL","name":"Apple","quantity":3,
			"marketValue":330.00,"averagePrice":100.00,"dailyReturn":4.76,"returnPercentage":10.00}]
	}`, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"dailyReturn":4.76`)
}

func TestGetPortfolioBadUser(t *testing.T) {
	h := NewPortfolioHandler(stubPortfolios{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio/abc", nil)
	rec := serve(t, "GET /api/portfolio/{userId}", h.GetPortfolio, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchInstruments(t *testing.T) {
	inst := &stubInstruments{res: domain.SearchResult{
		Items: []domain.Instrument{{ID: 2, Ticker: "AAPL", Name: "Apple", Kind: "ACCIONES"}},
		Total: 1, Page: 2, Limit: 5,
	}}
	h := NewInstrumentHandler(inst, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/instruments/search?query=aap&page=2&limit=5", nil)
	rec := serve(t, "GET /api/instruments/search", h.Search, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "aap", inst.query)
	assert.Equal(t, 2, inst.page)
	assert.Equal(t, 5, inst.limit)
	assert.JSONEq(t, `{"data":[{"id":2,"ticker":"AAPL","name":"Apple","type":"ACCIONES"}],"total":1,"page":2,"limit":5}`, rec.Body.String())
}

func TestSearchInstrumentsInvalidQuery(t *testing.T) {
	inst := &stubInstruments{err: domain.InvalidValue("query", "query contains invalid characters")}
	h := NewInstrumentHandler(inst, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/instruments/search?query=%3Bdrop", nil)
	rec := serve(t, "GET /api/instruments/search", h.Search, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ";drop", inst.query)
}

func TestGetInstrumentNotFound(t *testing.T) {
	h := NewInstrumentHandler(&stubInstruments{err: domain.NotFound("instrument")}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/instruments/99", nil)
	rec := serve(t, "GET /api/instruments/{id}", h.GetInstrument, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "instrument not found", decodeBody(t, rec)["error"])
}

type checkFunc func(context.Context) error

func (f checkFunc) Health(ctx context.Context) error { return f(ctx) }

func TestHealthCheck(t *testing.T) {
	up := checkFunc(func(context.Context) error { return nil })
	down := checkFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	h := NewHealthHandler(map[string]Checker{"postgres": up}, discardLogger())
	rec := serve(t, "GET /api/health", h.HealthCheck, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	h = NewHealthHandler(map[string]Checker{"postgres": up, "redis": down}, discardLogger())
	rec = serve(t, "GET /api/health", h.HealthCheck, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]any{"postgres": "up", "redis": "down"}, body["dependencies"])
}

type stubArchiver struct {
	before time.Time
	n      int64
}

func (s *stubArchiver) ArchiveOrders(_ context.Context, before time.Time) (int64, error) {
	s.before = before
	return s.n, nil
}

type memBlobs map[string][]byte

func (m memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := m[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m memBlobs) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	for p, b := range m {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(b))})
		}
	}
	return out, nil
}

type stubAudit struct {
	opts domain.ListOpts
}

func (s *stubAudit) Log(context.Context, string, map[string]any) error { return nil }

func (s *stubAudit) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.opts = opts
	return []domain.AuditEntry{{ID: 1, Event: "order_created", Detail: map[string]any{"order_id": 10}}}, nil
}

func TestArchiveOrders(t *testing.T) {
	arch := &stubArchiver{n: 4}
	h := NewAdminHandler(arch, memBlobs{}, &stubAudit{}, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/archive?before=2024-01-01", nil)
	rec := serve(t, "POST /api/admin/archive", h.ArchiveOrders, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), arch.before)
	assert.Equal(t, float64(4), decodeBody(t, rec)["archived"])

	req = httptest.NewRequest(http.MethodPost, "/api/admin/archive?before=yesterday", nil)
	rec = serve(t, "POST /api/admin/archive", h.ArchiveOrders, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArchiveWithoutStorage(t *testing.T) {
	h := NewAdminHandler(nil, nil, &stubAudit{}, discardLogger())

	rec := serve(t, "POST /api/admin/archive", h.ArchiveOrders, httptest.NewRequest(http.MethodPost, "/api/admin/archive", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(t, "GET /api/admin/archives", h.ListArchives, httptest.NewRequest(http.MethodGet, "/api/admin/archives", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetArchive(t *testing.T) {
	blobs := memBlobs{"archive/orders/2024-01.jsonl": []byte("{\"id\":1}\n")}
	h := NewAdminHandler(&stubArchiver{}, blobs, &stubAudit{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/admin/archives/orders/2024-01.jsonl", nil)
	rec := serve(t, "GET /api/admin/archives/{path...}", h.GetArchive, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Equal(t, "{\"id\":1}\n", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/admin/archives/orders/1999-01.jsonl", nil)
	rec = serve(t, "GET /api/admin/archives/{path...}", h.GetArchive, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAudit(t *testing.T) {
	audit := &stubAudit{}
	h := NewAdminHandler(nil, nil, audit, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/admin/audit?event=order_&limit=900&offset=5", nil)
	rec := serve(t, "GET /api/admin/audit", h.ListAudit, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ListOpts{Limit: 500, Offset: 5, Event: "order_"}, audit.opts)
}
