package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

type memWriter struct {
	objects map[string][]byte
	err     error
}

func (m *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if m.err != nil {
		return m.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[path] = b
	return nil
}

type stubOrders struct {
	orders []domain.Order
	before time.Time
}

func (s *stubOrders) ListTerminalBefore(_ context.Context, before time.Time) ([]domain.Order, error) {
	s.before = before
	return s.orders, nil
}

type recordingAudit struct {
	events  []string
	details []map[string]any
}

func (r *recordingAudit) Log(_ context.Context, event string, detail map[string]any) error {
	r.events = append(r.events, event)
	r.details = append(r.details, detail)
	return nil
}

func (r *recordingAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestArchiveOrders(t *testing.T) {
	reason := "insufficient funds"
	created := time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)
	orders := &stubOrders{orders: []domain.Order{
		{ID: 1, InstrumentID: 2, UserID: 9, Side: domain.OrderSideBuy, Type: domain.OrderTypeMarket,
			Size: 5, Price: decimal.NewNullDecimal(decimal.RequireFromString("180.5")),
			Status: domain.OrderStatusFilled, CreatedAt: created},
		{ID: 2, InstrumentID: 2, UserID: 9, Side: domain.OrderSideBuy, Type: domain.OrderTypeMarket,
			Size: 50, Price: decimal.NewNullDecimal(decimal.RequireFromString("180")),
			Status: domain.OrderStatusRejected, RejectionReason: &reason, CreatedAt: created},
	}}
	writer := &memWriter{}
	audit := &recordingAudit{}
	before := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	n, err := NewOrderArchiver(writer, orders, audit).ArchiveOrders(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, before, orders.before)

	data, ok := writer.objects["archive/orders/2024-03.jsonl"]
	require.True(t, ok)

	var lines []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		lines = append(lines, rec)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "180.50", lines[0]["price"])
	assert.NotContains(t, lines[0], "rejection_reason")
	assert.Equal(t, "insufficient funds", lines[1]["rejection_reason"])

	require.Equal(t, []string{"archive.orders"}, audit.events)
	assert.Equal(t, int64(2), audit.details[0]["count"])
}

func TestArchiveOrders_NothingToArchive(t *testing.T) {
	writer := &memWriter{}
	audit := &recordingAudit{}

	n, err := NewOrderArchiver(writer, &stubOrders{}, audit).ArchiveOrders(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, writer.objects)
	assert.Empty(t, audit.events)
}

func TestArchiveOrders_UploadFailure(t *testing.T) {
	writer := &memWriter{err: errors.New("bucket gone")}
	audit := &recordingAudit{}
	orders := &stubOrders{orders: []domain.Order{{ID: 1, Status: domain.OrderStatusCancelled}}}

	_, err := NewOrderArchiver(writer, orders, audit).ArchiveOrders(context.Background(), time.Now())
	require.Error(t, err)
	assert.Empty(t, audit.events)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("s3.example.com", true))
	assert.Equal(t, "http://s3.example.com", normaliseEndpoint("s3.example.com", false))
	assert.Equal(t, "http://already", normaliseEndpoint("http://already", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
}
