package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// PortfolioService rebuilds a user's portfolio from their filled orders and
// the latest market data. Nothing it computes is stored.
type PortfolioService struct {
	orders      domain.OrderStore
	instruments domain.InstrumentCatalog
	prices      domain.MarketDataFeed
	logger      *slog.Logger
}

// NewPortfolioService creates a PortfolioService with all required dependencies.
func NewPortfolioService(
	orders domain.OrderStore,
	instruments domain.InstrumentCatalog,
	prices domain.MarketDataFeed,
	logger *slog.Logger,
) *PortfolioService {
	return &PortfolioService{
		orders:      orders,
		instruments: instruments,
		prices:      prices,
		logger:      logger,
	}
}

// holding accumulates one instrument's quantity and average cost while the
// order history is replayed.
type holding struct {
	instrumentID int64
	quantity     int64
	averagePrice decimal.Decimal
}

// Valuate returns the current portfolio for userID. A user with no filled
// orders gets an empty portfolio without touching any other collaborator.
func (s *PortfolioService) Valuate(ctx context.Context, userID int64) (domain.Portfolio, error) {
	filled, err := s.orders.ListFilled(ctx, userID)
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("portfolio_service: list filled orders: %w", err)
	}
	if len(filled) == 0 {
		s.logger.WarnContext(ctx, "portfolio_service: no filled orders",
			slog.Int64("user_id", userID),
		)
		return emptyPortfolio(), nil
	}

	currency, err := s.instruments.FindCurrency(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Portfolio{}, domain.NotFound("currency instrument")
		}
		return domain.Portfolio{}, fmt.Errorf("portfolio_service: find currency: %w", err)
	}

	cash := availableCash(filled, currency.ID)
	holdings := aggregateHoldings(filled, currency.ID)

	portfolio := domain.Portfolio{
		AvailableCash: cash,
		TotalValue:    cash,
		Positions:     []domain.Position{},
	}
	if len(holdings) == 0 {
		return portfolio, nil
	}

	ids := make([]int64, len(holdings))
	for i, h := range holdings {
		ids[i] = h.instrumentID
	}

	bars, err := s.prices.LatestForMany(ctx, ids)
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("portfolio_service: latest market data: %w", err)
	}
	if len(bars) == 0 {
		s.logger.WarnContext(ctx, "portfolio_service: no market data for held instruments",
			slog.Int64("user_id", userID),
			slog.Int("positions", len(holdings)),
		)
		return portfolio, nil
	}

	// Bars arrive most recent first; the first one seen per instrument wins.
	latest := make(map[int64]domain.MarketDataBar, len(ids))
	for _, b := range bars {
		if _, ok := latest[b.InstrumentID]; !ok {
			latest[b.InstrumentID] = b
		}
	}

	for _, h := range holdings {
		bar, ok := latest[h.instrumentID]
		if !ok || !bar.Usable() {
			s.logger.WarnContext(ctx, "portfolio_service: unusable market data, skipping position",
				slog.Int64("user_id", userID),
				slog.Int64("instrument_id", h.instrumentID),
				slog.Bool("missing", !ok),
			)
			continue
		}

		inst, err := s.instruments.GetByID(ctx, h.instrumentID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return domain.Portfolio{}, fmt.Errorf("portfolio_service: get instrument %d: %w", h.instrumentID, err)
			}
			s.logger.WarnContext(ctx, "portfolio_service: held instrument missing from catalog",
				slog.Int64("instrument_id", h.instrumentID),
			)
			inst = domain.Instrument{ID: h.instrumentID}
		}

		pos := valuePosition(h, bar)
		pos.Ticker = inst.Ticker
		pos.Name = inst.Name

		portfolio.Positions = append(portfolio.Positions, pos)
		portfolio.TotalValue = portfolio.TotalValue.Add(pos.MarketValue)
	}

	return portfolio, nil
}

func emptyPortfolio() domain.Portfolio {
	return domain.Portfolio{
		AvailableCash: decimal.Zero,
		TotalValue:    decimal.Zero,
		Positions:     []domain.Position{},
	}
}

// availableCash replays the cash ledger. Cash movements are booked against
// the currency instrument with the order size as the amount; trades on any
// other instrument move size * price.
func availableCash(orders []domain.Order, currencyID int64) decimal.Decimal {
	cash := decimal.Zero
	for _, o := range orders {
		if o.InstrumentID == currencyID {
			switch o.Side {
			case domain.OrderSideCashIn:
				cash = cash.Add(decimal.NewFromInt(o.Size))
			case domain.OrderSideCashOut:
				cash = cash.Sub(decimal.NewFromInt(o.Size))
			}
			continue
		}
		switch o.Side {
		case domain.OrderSideBuy:
			cash = cash.Sub(o.Value())
		case domain.OrderSideSell:
			cash = cash.Add(o.Value())
		}
	}
	return cash
}

// aggregateHoldings folds non-currency orders into per-instrument holdings in
// first-seen order. BUY moves the weighted average cost; SELL only reduces
// quantity. Holdings that end at or below zero are dropped.
func aggregateHoldings(orders []domain.Order, currencyID int64) []*holding {
	var ordered []*holding
	byID := make(map[int64]*holding)

	for _, o := range orders {
		if o.InstrumentID == currencyID {
			continue
		}
		if o.Side != domain.OrderSideBuy && o.Side != domain.OrderSideSell {
			continue
		}

		h, ok := byID[o.InstrumentID]
		if !ok {
			h = &holding{instrumentID: o.InstrumentID, averagePrice: o.Price.Decimal}
			byID[o.InstrumentID] = h
			ordered = append(ordered, h)
		}

		switch o.Side {
		case domain.OrderSideBuy:
			newQty := h.quantity + o.Size
			if newQty > 0 {
				cost := h.averagePrice.Mul(decimal.NewFromInt(h.quantity)).Add(o.Value())
				h.averagePrice = cost.Div(decimal.NewFromInt(newQty))
			}
			h.quantity = newQty
		case domain.OrderSideSell:
			h.quantity -= o.Size
		}
	}

	kept := ordered[:0]
	for _, h := range ordered {
		if h.quantity > 0 {
			kept = append(kept, h)
		}
	}
	return kept
}

// valuePosition prices a holding against a usable bar.
func valuePosition(h *holding, bar domain.MarketDataBar) domain.Position {
	pos := domain.Position{
		InstrumentID: h.instrumentID,
		Quantity:     h.quantity,
		AveragePrice: h.averagePrice,
		MarketValue:  bar.Close.Mul(decimal.NewFromInt(h.quantity)),
		DailyReturn:  bar.Close.Sub(bar.PreviousClose).Div(bar.PreviousClose).Mul(hundred),
	}
	if h.averagePrice.IsPositive() {
		pos.ReturnPercentage = bar.Close.Sub(h.averagePrice).Div(h.averagePrice).Mul(hundred)
	}
	return pos
}
