package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

// OrderEventsChannel is the bus channel order lifecycle events go to.
const OrderEventsChannel = "orders"

// Rejection reasons recorded on REJECTED orders.
const (
	ReasonInsufficientFunds    = "insufficient funds"
	ReasonInsufficientHoldings = "insufficient holdings"
)

const lockPollInterval = 25 * time.Millisecond

// PortfolioValuator computes a user's current portfolio.
type PortfolioValuator interface {
	Valuate(ctx context.Context, userID int64) (domain.Portfolio, error)
}

// OrderService prices, risk-checks and persists orders, and cancels them.
type OrderService struct {
	validator  *OrderValidator
	orders     domain.OrderStore
	prices     domain.MarketDataFeed
	portfolios PortfolioValuator
	locks      domain.LockManager
	bus        domain.SignalBus
	audit      domain.AuditStore
	lockTTL    time.Duration
	lockWait   time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewOrderService creates an OrderService with all required dependencies.
func NewOrderService(
	validator *OrderValidator,
	orders domain.OrderStore,
	prices domain.MarketDataFeed,
	portfolios PortfolioValuator,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		validator:  validator,
		orders:     orders,
		prices:     prices,
		portfolios: portfolios,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// WithLocks serialises Create per user. Without a lock manager, concurrent
// orders from the same user may both pass the funds check.
func (s *OrderService) WithLocks(locks domain.LockManager, ttl, wait time.Duration) *OrderService {
	s.locks = locks
	s.lockTTL = ttl
	s.lockWait = wait
	return s
}

// WithEvents publishes order lifecycle events on the bus.
func (s *OrderService) WithEvents(bus domain.SignalBus) *OrderService {
	s.bus = bus
	return s
}

// WithAudit records created and cancelled orders in the audit log.
func (s *OrderService) WithAudit(audit domain.AuditStore) *OrderService {
	s.audit = audit
	return s
}

// Create validates, prices and risk-checks an order, then persists it. Orders
// that fail the funds or holdings check are persisted as REJECTED and
// returned without an error.
func (s *OrderService) Create(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	if _, err := s.validator.Validate(ctx, req); err != nil {
		return domain.Order{}, err
	}

	unlock, err := s.lockUser(ctx, req.UserID)
	if err != nil {
		return domain.Order{}, err
	}
	defer unlock()

	bar, err := s.prices.Latest(ctx, req.InstrumentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Order{}, domain.NoMarketData(req.InstrumentID)
		}
		return domain.Order{}, fmt.Errorf("order_service: latest price %d: %w", req.InstrumentID, err)
	}

	price := bar.Close
	if req.Type == domain.OrderTypeLimit {
		price = *req.Price
	}

	size, err := resolveSize(req, price)
	if err != nil {
		return domain.Order{}, err
	}

	portfolio, err := s.portfolios.Valuate(ctx, req.UserID)
	if err != nil {
		if _, ok := domain.AsOrderError(err); ok {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("order_service: valuate portfolio: %w", err)
	}

	order := domain.Order{
		InstrumentID: req.InstrumentID,
		UserID:       req.UserID,
		Side:         req.Side,
		Type:         req.Type,
		Size:         size,
		Price:        decimal.NewNullDecimal(price),
		Status:       domain.OrderStatusFilled,
		CreatedAt:    s.now(),
	}
	if req.Type == domain.OrderTypeLimit {
		order.Status = domain.OrderStatusNew
	}

	switch req.Side {
	case domain.OrderSideBuy:
		if portfolio.AvailableCash.LessThan(order.Value()) {
			reject(&order, ReasonInsufficientFunds)
		}
	case domain.OrderSideSell:
		pos, held := portfolio.Position(req.InstrumentID)
		if !held || pos.Quantity < size {
			reject(&order, ReasonInsufficientHoldings)
		}
	}

	saved, err := s.orders.Save(ctx, order)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order_service: save order: %w", err)
	}

	s.publish(ctx, "order_created", saved)
	s.auditLog(ctx, "order_created", saved)

	s.logger.InfoContext(ctx, "order_service: order created",
		slog.Int64("order_id", saved.ID),
		slog.Int64("user_id", saved.UserID),
		slog.Int64("instrument_id", saved.InstrumentID),
		slog.String("side", string(saved.Side)),
		slog.String("type", string(saved.Type)),
		slog.Int64("size", saved.Size),
		slog.String("price", price.StringFixed(2)),
		slog.String("status", string(saved.Status)),
	)

	return saved, nil
}

// Cancel moves a NEW order owned by userID to CANCELLED.
func (s *OrderService) Cancel(ctx context.Context, orderID, userID int64) (domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Order{}, domain.NotFound("order")
		}
		return domain.Order{}, fmt.Errorf("order_service: find order %d: %w", orderID, err)
	}

	if order.Status != domain.OrderStatusNew {
		return domain.Order{}, domain.InvalidState(
			fmt.Sprintf("only NEW orders can be cancelled; order %d is %s", order.ID, order.Status))
	}

	order.Status = domain.OrderStatusCancelled
	saved, err := s.orders.Save(ctx, order)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order_service: save order %d: %w", orderID, err)
	}

	s.publish(ctx, "order_cancelled", saved)
	s.auditLog(ctx, "order_cancelled", saved)

	s.logger.InfoContext(ctx, "order_service: order cancelled",
		slog.Int64("order_id", saved.ID),
		slog.Int64("user_id", saved.UserID),
	)

	return saved, nil
}

// ListByUser returns the user's orders newest first, optionally filtered by status.
func (s *OrderService) ListByUser(ctx context.Context, userID int64, status *domain.OrderStatus) ([]domain.Order, error) {
	if userID == 0 {
		return nil, domain.MissingField("userId", "userId is required")
	}
	if status != nil && !status.Valid() {
		return nil, domain.InvalidValue("status", "invalid order status")
	}

	orders, err := s.orders.FindByUser(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("order_service: list orders for user %d: %w", userID, err)
	}
	return orders, nil
}

// resolveSize returns the explicit size, or the whole number of units the
// total amount buys at price.
func resolveSize(req domain.OrderRequest, price decimal.Decimal) (int64, error) {
	if isSet(req.Size) {
		return req.Size.IntPart(), nil
	}
	units, ok := unitsFor(*req.TotalAmount, price)
	if !ok {
		return 0, amountTooLarge()
	}
	if units < 1 {
		// A LIMIT price above the latest close can shrink the quantity
		// below one even after validation passed.
		return 0, domain.InsufficientAmount(*req.TotalAmount, price)
	}
	return units, nil
}

func reject(order *domain.Order, reason string) {
	order.Status = domain.OrderStatusRejected
	order.RejectionReason = &reason
}

// lockUser takes the per-user order lock, polling until lockWait elapses.
func (s *OrderService) lockUser(ctx context.Context, userID int64) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}

	key := fmt.Sprintf("orders:user:%d", userID)
	deadline := time.Now().Add(s.lockWait)
	for {
		unlock, err := s.locks.Acquire(ctx, key, s.lockTTL)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, fmt.Errorf("order_service: acquire lock %s: %w", key, err)
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("order_service: lock %s: %w", key, domain.ErrLockHeld)
		}

		timer := time.NewTimer(lockPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *OrderService) publish(ctx context.Context, event string, order domain.Order) {
	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(map[string]any{
		"event":         event,
		"order_id":      order.ID,
		"user_id":       order.UserID,
		"instrument_id": order.InstrumentID,
		"side":          string(order.Side),
		"type":          string(order.Type),
		"status":        string(order.Status),
	})
	if err := s.bus.Publish(ctx, OrderEventsChannel, evt); err != nil {
		s.logger.WarnContext(ctx, "order_service: publish event failed",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *OrderService) auditLog(ctx context.Context, event string, order domain.Order) {
	if s.audit == nil {
		return
	}
	detail := map[string]any{
		"order_id":      order.ID,
		"user_id":       order.UserID,
		"instrument_id": order.InstrumentID,
		"side":          string(order.Side),
		"type":          string(order.Type),
		"size":          order.Size,
		"status":        string(order.Status),
	}
	if order.Price.Valid {
		detail["price"] = order.Price.Decimal.StringFixed(2)
	}
	if order.RejectionReason != nil {
		detail["rejection_reason"] = *order.RejectionReason
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "order_service: audit log failed",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
}
