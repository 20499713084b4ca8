package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("invalid state")
	ErrNoMarketData = errors.New("no market data")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrLockHeld     = errors.New("lock already held")
)

// ErrorKind enumerates the closed set of order failures.
type ErrorKind string

const (
	KindMissingField       ErrorKind = "MISSING_FIELD"
	KindInvalidValue       ErrorKind = "INVALID_VALUE"
	KindConflictingFields  ErrorKind = "CONFLICTING_FIELDS"
	KindInsufficientAmount ErrorKind = "INSUFFICIENT_AMOUNT"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindNoMarketData       ErrorKind = "NO_MARKET_DATA"
	KindInvalidState       ErrorKind = "INVALID_STATE"
)

// OrderError is a caller-visible, non-retriable failure of an order or
// portfolio operation. Callers switch on Kind, or match the category with
// errors.Is against ErrValidation, ErrNotFound, ErrNoMarketData or
// ErrInvalidState.
type OrderError struct {
	Kind    ErrorKind
	Fields  []string
	Message string

	// Set only for KindInsufficientAmount.
	Amount decimal.Decimal
	Price  decimal.Decimal
}

func (e *OrderError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(e.Fields, ","))
}

// Unwrap maps the variant onto its category sentinel.
func (e *OrderError) Unwrap() error {
	switch e.Kind {
	case KindNotFound:
		return ErrNotFound
	case KindNoMarketData:
		return ErrNoMarketData
	case KindInvalidState:
		return ErrInvalidState
	default:
		return ErrValidation
	}
}

// MissingField reports a required field that was not supplied.
func MissingField(field, msg string) *OrderError {
	return &OrderError{Kind: KindMissingField, Fields: []string{field}, Message: msg}
}

// InvalidValue reports a supplied field whose value is not acceptable.
func InvalidValue(field, msg string) *OrderError {
	return &OrderError{Kind: KindInvalidValue, Fields: []string{field}, Message: msg}
}

// ConflictingFields reports mutually exclusive fields supplied together.
func ConflictingFields(a, b, msg string) *OrderError {
	return &OrderError{Kind: KindConflictingFields, Fields: []string{a, b}, Message: msg}
}

// InsufficientAmount reports a totalAmount too small to buy a single unit.
func InsufficientAmount(amount, price decimal.Decimal) *OrderError {
	return &OrderError{
		Kind:    KindInsufficientAmount,
		Fields:  []string{"totalAmount"},
		Message: fmt.Sprintf("total amount %s is insufficient to buy one unit at the current price of %s", amount.StringFixed(2), price.StringFixed(2)),
		Amount:  amount,
		Price:   price,
	}
}

// NotFound reports a referenced entity that does not exist.
func NotFound(entity string) *OrderError {
	return &OrderError{Kind: KindNotFound, Fields: []string{entity}, Message: entity + " not found"}
}

// NoMarketData reports an instrument without any price bar.
func NoMarketData(instrumentID int64) *OrderError {
	return &OrderError{
		Kind:    KindNoMarketData,
		Fields:  []string{"instrumentId"},
		Message: fmt.Sprintf("no market data available for instrument %d", instrumentID),
	}
}

// InvalidState reports an operation not permitted in the entity's current status.
func InvalidState(msg string) *OrderError {
	return &OrderError{Kind: KindInvalidState, Message: msg}
}

// AsOrderError extracts an *OrderError from err's chain.
func AsOrderError(err error) (*OrderError, bool) {
	var oe *OrderError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}
