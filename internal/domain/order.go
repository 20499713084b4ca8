package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates the direction of an order.
type OrderSide string

const (
	OrderSideBuy     OrderSide = "BUY"
	OrderSideSell    OrderSide = "SELL"
	OrderSideCashIn  OrderSide = "CASH_IN"
	OrderSideCashOut OrderSide = "CASH_OUT"
)

// Valid reports whether s is one of the recognized sides.
func (s OrderSide) Valid() bool {
	switch s {
	case OrderSideBuy, OrderSideSell, OrderSideCashIn, OrderSideCashOut:
		return true
	}
	return false
}

// OrderType is the pricing mode of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET" // executes at the latest close
	OrderTypeLimit  OrderType = "LIMIT"  // rests at a caller-specified price
)

// Valid reports whether t is one of the recognized order types.
func (t OrderType) Valid() bool {
	return t == OrderTypeMarket || t == OrderTypeLimit
}

// OrderStatus tracks the order lifecycle. NEW is the only non-terminal status
// and may move once, to CANCELLED.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "NEW"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Valid reports whether s is one of the recognized statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusFilled, OrderStatusRejected, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s OrderStatus) Terminal() bool {
	return s != OrderStatusNew
}

// Order is a persisted order record. Price is null only for records created
// before execution price resolution; everything this service creates carries one.
type Order struct {
	ID              int64
	InstrumentID    int64
	UserID          int64
	Side            OrderSide
	Type            OrderType
	Size            int64
	Price           decimal.NullDecimal
	Status          OrderStatus
	RejectionReason *string
	CreatedAt       time.Time
}

// Value returns size * price, or zero when the price is unresolved.
func (o Order) Value() decimal.Decimal {
	if !o.Price.Valid {
		return decimal.Zero
	}
	return o.Price.Decimal.Mul(decimal.NewFromInt(o.Size))
}

// OrderRequest is the raw, unvalidated input for creating an order. Zero
// identifiers and empty enums mean "absent"; nil pointers mean "not supplied".
type OrderRequest struct {
	InstrumentID int64
	UserID       int64
	Side         OrderSide
	Type         OrderType
	Price        *decimal.Decimal
	Size         *decimal.Decimal
	TotalAmount  *decimal.Decimal
}

// ValidatedOrder is an OrderRequest that passed validation, together with the
// resolved instrument.
type ValidatedOrder struct {
	Request    OrderRequest
	Instrument Instrument
}
