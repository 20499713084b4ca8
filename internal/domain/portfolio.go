package domain

import "github.com/shopspring/decimal"

// Position is a derived holding, rebuilt on every valuation and never stored.
// DailyReturn and ReturnPercentage are percentages.
type Position struct {
	InstrumentID     int64
	Ticker           string
	Name             string
	Quantity         int64
	AveragePrice     decimal.Decimal
	MarketValue      decimal.Decimal
	DailyReturn      decimal.Decimal
	ReturnPercentage decimal.Decimal
}

// Portfolio is the derived state of an account.
// TotalValue == AvailableCash + sum(Positions[i].MarketValue).
type Portfolio struct {
	AvailableCash decimal.Decimal
	TotalValue    decimal.Decimal
	Positions     []Position
}

// Position returns the position for instrumentID, if held.
func (p Portfolio) Position(instrumentID int64) (Position, bool) {
	for _, pos := range p.Positions {
		if pos.InstrumentID == instrumentID {
			return pos, true
		}
	}
	return Position{}, false
}
