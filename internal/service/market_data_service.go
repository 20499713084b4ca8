package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

// MarketDataService reads price bars from the store, keeping the latest bar
// per instrument in an optional cache.
type MarketDataService struct {
	store  domain.MarketDataFeed
	cache  domain.BarCache
	logger *slog.Logger
}

// NewMarketDataService creates a MarketDataService. cache may be nil.
func NewMarketDataService(store domain.MarketDataFeed, cache domain.BarCache, logger *slog.Logger) *MarketDataService {
	return &MarketDataService{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Latest returns the most recent bar for an instrument.
func (s *MarketDataService) Latest(ctx context.Context, instrumentID int64) (domain.MarketDataBar, error) {
	if s.cache != nil {
		if bar, err := s.cache.GetLatest(ctx, instrumentID); err == nil {
			return bar, nil
		}
	}

	bar, err := s.store.Latest(ctx, instrumentID)
	if err != nil {
		return domain.MarketDataBar{}, fmt.Errorf("market_data_service: latest %d: %w", instrumentID, err)
	}

	if s.cache != nil {
		if cacheErr := s.cache.SetLatest(ctx, bar); cacheErr != nil {
			s.logger.WarnContext(ctx, "market_data_service: cache set failed",
				slog.Int64("instrument_id", instrumentID),
				slog.String("error", cacheErr.Error()),
			)
		}
	}

	return bar, nil
}

// LatestForMany always reads the store so a valuation sees one consistent
// snapshot.
func (s *MarketDataService) LatestForMany(ctx context.Context, instrumentIDs []int64) ([]domain.MarketDataBar, error) {
	if len(instrumentIDs) == 0 {
		return nil, nil
	}
	bars, err := s.store.LatestForMany(ctx, instrumentIDs)
	if err != nil {
		return nil, fmt.Errorf("market_data_service: latest for %d instruments: %w", len(instrumentIDs), err)
	}
	return bars, nil
}
