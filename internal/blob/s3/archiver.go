package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

// ArchivePrefix is the key prefix every archive file lives under.
const ArchivePrefix = "archive/"

// OrderArchiveStore provides read access to orders for archival.
type OrderArchiveStore interface {
	// ListTerminalBefore returns every non-NEW order created strictly before
	// the cutoff.
	ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Order, error)
}

// OrderArchiver implements domain.Archiver by exporting terminal orders as
// JSONL to object storage. Archived rows stay in the database; pruning them
// is a separate, explicit step.
type OrderArchiver struct {
	writer domain.BlobWriter
	orders OrderArchiveStore
	audit  domain.AuditStore
}

// NewOrderArchiver creates an OrderArchiver.
func NewOrderArchiver(writer domain.BlobWriter, orders OrderArchiveStore, audit domain.AuditStore) *OrderArchiver {
	return &OrderArchiver{
		writer: writer,
		orders: orders,
		audit:  audit,
	}
}

// archivedOrder is one JSONL line. Prices keep two decimals.
type archivedOrder struct {
	ID              int64   `json:"id"`
	InstrumentID    int64   `json:"instrument_id"`
	UserID          int64   `json:"user_id"`
	Side            string  `json:"side"`
	Type            string  `json:"type"`
	Size            int64   `json:"size"`
	Price           *string `json:"price"`
	Status          string  `json:"status"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

func toArchived(o domain.Order) archivedOrder {
	rec := archivedOrder{
		ID:              o.ID,
		InstrumentID:    o.InstrumentID,
		UserID:          o.UserID,
		Side:            string(o.Side),
		Type:            string(o.Type),
		Size:            o.Size,
		Status:          string(o.Status),
		RejectionReason: o.RejectionReason,
		CreatedAt:       o.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if o.Price.Valid {
		p := o.Price.Decimal.StringFixed(2)
		rec.Price = &p
	}
	return rec
}

// ArchiveOrders uploads every terminal order created before the cutoff to
// archive/orders/YYYY-MM.jsonl, records the run in the audit log, and
// returns the number of orders archived.
func (a *OrderArchiver) ArchiveOrders(ctx context.Context, before time.Time) (int64, error) {
	orders, err := a.orders.ListTerminalBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders query: %w", err)
	}
	if len(orders) == 0 {
		return 0, nil
	}

	records := make([]archivedOrder, len(orders))
	for i, o := range orders {
		records[i] = toArchived(o)
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders marshal: %w", err)
	}

	path := archivePath("orders", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive orders upload: %w", err)
	}

	count := int64(len(orders))
	if err := a.audit.Log(ctx, "archive.orders", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive orders audit log: %w", err)
	}

	return count, nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff.
//
//	archive/orders/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("%s%s/%s.jsonl", ArchivePrefix, kind, before.UTC().Format("2006-01"))
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*OrderArchiver)(nil)
