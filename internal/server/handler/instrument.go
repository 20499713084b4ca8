package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

// InstrumentService defines what the instrument handler needs.
type InstrumentService interface {
	Get(ctx context.Context, id int64) (domain.Instrument, error)
	Search(ctx context.Context, query string, page, limit int) (domain.SearchResult, error)
}

// InstrumentHandler serves instrument lookup and search.
type InstrumentHandler struct {
	instruments InstrumentService
	logger      *slog.Logger
}

// NewInstrumentHandler creates an InstrumentHandler.
func NewInstrumentHandler(instruments InstrumentService, logger *slog.Logger) *InstrumentHandler {
	return &InstrumentHandler{instruments: instruments, logger: logger}
}

// Search matches instruments by ticker or name.
// GET /api/instruments/search?query=AAPL&page=1&limit=10
func (h *InstrumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	res, err := h.instruments.Search(r.Context(), q.Get("query"), page, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, "search instruments", err)
		return
	}

	data := make([]instrumentResponse, len(res.Items))
	for i, inst := range res.Items {
		data[i] = newInstrumentResponse(inst)
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Data:  data,
		Total: res.Total,
		Page:  res.Page,
		Limit: res.Limit,
	})
}

// GetInstrument returns one instrument.
// GET /api/instruments/{id}
func (h *InstrumentHandler) GetInstrument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid instrument id")
		return
	}

	inst, err := h.instruments.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get instrument", err)
		return
	}

	writeJSON(w, http.StatusOK, newInstrumentResponse(inst))
}
