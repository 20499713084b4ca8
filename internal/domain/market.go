package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketDataBar is one price bar for an instrument. Prices carry two decimals.
type MarketDataBar struct {
	InstrumentID  int64
	Open          decimal.Decimal
	High          decimal.Decimal
	Low           decimal.Decimal
	Close         decimal.Decimal
	PreviousClose decimal.Decimal
	Date          time.Time
}

// Usable reports whether the bar can price a position: both close and
// previous close must be strictly positive.
func (b MarketDataBar) Usable() bool {
	return b.Close.IsPositive() && b.PreviousClose.IsPositive()
}
