package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

var (
	// maxSize is the largest quantity the orders.size BIGINT column holds.
	maxSize = decimal.NewFromInt(math.MaxInt64)
	// maxPrice is the largest value a NUMERIC(10, 2) price column holds.
	maxPrice = decimal.RequireFromString("99999999.99")
)

// OrderValidator checks an order request for structural and business
// validity before it is priced. It never mutates state and never checks
// affordability; that belongs to OrderService.
type OrderValidator struct {
	instruments domain.InstrumentCatalog
	prices      domain.MarketDataFeed
}

// NewOrderValidator creates an OrderValidator.
func NewOrderValidator(instruments domain.InstrumentCatalog, prices domain.MarketDataFeed) *OrderValidator {
	return &OrderValidator{
		instruments: instruments,
		prices:      prices,
	}
}

// Validate runs every check in order and returns the first failure as a
// *domain.OrderError. Collaborator failures are returned wrapped.
func (v *OrderValidator) Validate(ctx context.Context, req domain.OrderRequest) (domain.ValidatedOrder, error) {
	if req.UserID == 0 {
		return domain.ValidatedOrder{}, domain.MissingField("userId", "userId is required")
	}
	if req.UserID < 0 {
		return domain.ValidatedOrder{}, domain.InvalidValue("userId", "userId must be a positive integer")
	}
	if req.InstrumentID == 0 {
		return domain.ValidatedOrder{}, domain.MissingField("instrumentId", "instrumentId is required")
	}
	if req.InstrumentID < 0 {
		return domain.ValidatedOrder{}, domain.InvalidValue("instrumentId", "instrumentId must be a positive integer")
	}

	inst, err := v.instruments.GetByID(ctx, req.InstrumentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ValidatedOrder{}, domain.NotFound("instrument")
		}
		return domain.ValidatedOrder{}, fmt.Errorf("order_validator: get instrument %d: %w", req.InstrumentID, err)
	}

	if req.Type == "" {
		return domain.ValidatedOrder{}, domain.MissingField("type", "order type is required")
	}
	if !req.Type.Valid() {
		return domain.ValidatedOrder{}, domain.InvalidValue("type", "invalid order type")
	}
	if req.Side == "" {
		return domain.ValidatedOrder{}, domain.MissingField("side", "order side is required")
	}
	if !req.Side.Valid() {
		return domain.ValidatedOrder{}, domain.InvalidValue("side", "invalid order side")
	}

	if req.Type == domain.OrderTypeLimit {
		// A zero price is indistinguishable from a missing one.
		if !isSet(req.Price) {
			return domain.ValidatedOrder{}, domain.InvalidValue("price", "LIMIT orders require a price")
		}
		if !req.Price.IsPositive() {
			return domain.ValidatedOrder{}, domain.InvalidValue("price", "price must be greater than 0")
		}
		if req.Price.GreaterThan(maxPrice) {
			return domain.ValidatedOrder{}, domain.InvalidValue("price", "price must be at most "+maxPrice.String())
		}
	}

	// Zero counts as absent for the either-or rule only.
	sizeSet, amountSet := isSet(req.Size), isSet(req.TotalAmount)
	if sizeSet && amountSet {
		return domain.ValidatedOrder{}, domain.ConflictingFields("size", "totalAmount",
			"size and totalAmount cannot both be specified; choose one")
	}
	if !sizeSet && !amountSet {
		return domain.ValidatedOrder{}, domain.MissingField("size|totalAmount", "either size or totalAmount must be specified")
	}

	if sizeSet {
		if !req.Size.IsInteger() {
			return domain.ValidatedOrder{}, domain.InvalidValue("size", "size must be an integer")
		}
		if !req.Size.IsPositive() {
			return domain.ValidatedOrder{}, domain.InvalidValue("size", "size must be greater than 0")
		}
		if req.Size.GreaterThan(maxSize) {
			return domain.ValidatedOrder{}, domain.InvalidValue("size", "size must be at most "+maxSize.String())
		}
	}

	if req.TotalAmount != nil {
		if !req.TotalAmount.IsPositive() {
			return domain.ValidatedOrder{}, domain.InvalidValue("totalAmount", "total amount must be greater than 0")
		}

		bar, err := v.prices.Latest(ctx, req.InstrumentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ValidatedOrder{}, domain.NoMarketData(req.InstrumentID)
			}
			return domain.ValidatedOrder{}, fmt.Errorf("order_validator: latest price %d: %w", req.InstrumentID, err)
		}
		units, ok := unitsFor(*req.TotalAmount, bar.Close)
		if !ok {
			return domain.ValidatedOrder{}, amountTooLarge()
		}
		if units < 1 {
			return domain.ValidatedOrder{}, domain.InsufficientAmount(*req.TotalAmount, bar.Close)
		}
	}

	return domain.ValidatedOrder{Request: req, Instrument: inst}, nil
}

// isSet reports whether an optional numeric field was supplied with a
// non-zero value.
func isSet(d *decimal.Decimal) bool {
	return d != nil && !d.IsZero()
}

// unitsFor returns floor(amount / price). A non-positive price buys nothing.
// ok is false when the quantity does not fit in an order size.
func unitsFor(amount, price decimal.Decimal) (units int64, ok bool) {
	if !price.IsPositive() {
		return 0, true
	}
	q := amount.Div(price).Floor()
	if q.GreaterThan(maxSize) {
		return 0, false
	}
	return q.IntPart(), true
}

func amountTooLarge() *domain.OrderError {
	return domain.InvalidValue("totalAmount", "total amount buys more units than an order can hold")
}
