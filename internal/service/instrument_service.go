package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

const (
	maxSearchQueryLen  = 50
	defaultSearchLimit = 10
	maxSearchLimit     = 100
	maxSearchPage      = 100_000
)

var searchQueryPattern = regexp.MustCompile(`^[a-zA-Z0-9\s.]+$`)

// InstrumentStore is the persistent side of the instrument catalog.
type InstrumentStore interface {
	domain.InstrumentCatalog
	domain.InstrumentSearcher
}

// InstrumentService serves instrument lookups with a read-through cache and
// paginated fuzzy search.
type InstrumentService struct {
	store  InstrumentStore
	cache  domain.InstrumentCache
	logger *slog.Logger
}

// NewInstrumentService creates an InstrumentService. cache may be nil.
func NewInstrumentService(store InstrumentStore, cache domain.InstrumentCache, logger *slog.Logger) *InstrumentService {
	return &InstrumentService{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// GetByID retrieves an instrument, checking the cache first and falling back
// to the store on a miss.
func (s *InstrumentService) GetByID(ctx context.Context, id int64) (domain.Instrument, error) {
	if s.cache != nil {
		if inst, err := s.cache.Get(ctx, id); err == nil {
			return inst, nil
		}
	}

	inst, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.Instrument{}, fmt.Errorf("instrument_service: get by id %d: %w", id, err)
	}

	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, inst); cacheErr != nil {
			s.logger.WarnContext(ctx, "instrument_service: cache set failed",
				slog.Int64("instrument_id", id),
				slog.String("error", cacheErr.Error()),
			)
		}
	}

	return inst, nil
}

// FindCurrency returns the cash instrument.
func (s *InstrumentService) FindCurrency(ctx context.Context) (domain.Instrument, error) {
	inst, err := s.store.FindCurrency(ctx)
	if err != nil {
		return domain.Instrument{}, fmt.Errorf("instrument_service: find currency: %w", err)
	}
	return inst, nil
}

// Search matches query against tickers and names. An empty query yields an
// empty page; limit is capped and page is clamped to at least 1. Pages past
// maxSearchPage are rejected.
func (s *InstrumentService) Search(ctx context.Context, query string, page, limit int) (domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)
	page = max(1, page)
	if page > maxSearchPage {
		return domain.SearchResult{}, domain.InvalidValue("page",
			fmt.Sprintf("page must be at most %d", maxSearchPage))
	}

	result := domain.SearchResult{Items: []domain.Instrument{}, Page: page, Limit: limit}
	if query == "" {
		return result, nil
	}
	if len(query) > maxSearchQueryLen {
		return domain.SearchResult{}, domain.InvalidValue("query",
			fmt.Sprintf("search query must be at most %d characters", maxSearchQueryLen))
	}
	if !searchQueryPattern.MatchString(query) {
		return domain.SearchResult{}, domain.InvalidValue("query",
			"search query may only contain letters, digits, spaces and dots")
	}

	items, total, err := s.store.Search(ctx, strings.ToUpper(query), limit, (page-1)*limit)
	if err != nil {
		return domain.SearchResult{}, fmt.Errorf("instrument_service: search %q: %w", query, err)
	}
	if items != nil {
		result.Items = items
	}
	result.Total = total
	return result, nil
}

// Get is GetByID with not-found surfaced as a caller-visible error.
func (s *InstrumentService) Get(ctx context.Context, id int64) (domain.Instrument, error) {
	inst, err := s.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Instrument{}, domain.NotFound("instrument")
	}
	return inst, err
}
