package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

// archivePrefix scopes every blob the admin routes may read.
const archivePrefix = "archive/"

// AdminHandler serves operator endpoints: on-demand archiving, archive
// browsing and the audit log. Archive routes need blob storage configured.
type AdminHandler struct {
	archiver domain.Archiver
	blobs    domain.BlobReader
	audit    domain.AuditStore
	now      func() time.Time
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler. archiver and blobs may be nil.
func NewAdminHandler(archiver domain.Archiver, blobs domain.BlobReader, audit domain.AuditStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		archiver: archiver,
		blobs:    blobs,
		audit:    audit,
		now:      time.Now,
		logger:   logger,
	}
}

// ArchiveOrders exports terminal orders created before the cutoff.
// POST /api/admin/archive?before=2024-01-01
func (h *AdminHandler) ArchiveOrders(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		writeError(w, http.StatusServiceUnavailable, "archive storage is not configured")
		return
	}

	before := h.now().UTC()
	if v := r.URL.Query().Get("before"); v != "" {
		t, err := parseCutoff(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "before must be a date (2006-01-02) or RFC3339 timestamp")
			return
		}
		before = t
	}

	n, err := h.archiver.ArchiveOrders(r.Context(), before)
	if err != nil {
		writeServiceError(w, r, h.logger, "archive orders", err)
		return
	}

	h.logger.InfoContext(r.Context(), "handler: orders archived",
		slog.Int64("count", n),
		slog.Time("before", before),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"archived": n,
		"before":   before.Format(time.RFC3339),
	})
}

// ListArchives lists archive files.
// GET /api/admin/archives
func (h *AdminHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "archive storage is not configured")
		return
	}

	infos, err := h.blobs.List(r.Context(), archivePrefix)
	if err != nil {
		writeServiceError(w, r, h.logger, "list archives", err)
		return
	}

	type item struct {
		Path         string `json:"path"`
		Size         int64  `json:"size"`
		LastModified string `json:"lastModified"`
	}
	out := make([]item, len(infos))
	for i, info := range infos {
		out[i] = item{Path: info.Path, Size: info.Size, LastModified: info.LastModified.UTC().Format(time.RFC3339)}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetArchive streams one archive file as JSONL.
// GET /api/admin/archives/{path...}
func (h *AdminHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "archive storage is not configured")
		return
	}

	path := archivePrefix + strings.TrimPrefix(r.PathValue("path"), "/")
	if strings.Contains(path, "..") {
		writeError(w, http.StatusBadRequest, "invalid archive path")
		return
	}

	body, err := h.blobs.Get(r.Context(), path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "archive not found")
			return
		}
		writeServiceError(w, r, h.logger, "get archive", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "handler: archive stream interrupted",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// ListAudit returns audit entries, newest first.
// GET /api/admin/audit?event=order_&limit=50&offset=0
func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	opts.Event = r.URL.Query().Get("event")

	entries, err := h.audit.List(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "list audit", err)
		return
	}

	type item struct {
		ID        int64          `json:"id"`
		Event     string         `json:"event"`
		Detail    map[string]any `json:"detail"`
		CreatedAt string         `json:"createdAt"`
	}
	out := make([]item, len(entries))
	for i, e := range entries {
		out[i] = item{ID: e.ID, Event: e.Event, Detail: e.Detail, CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339)}
	}
	writeJSON(w, http.StatusOK, out)
}

func parseCutoff(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}
