package domain

// InstrumentKindCurrency tags the single synthetic instrument that represents
// cash. It is the value the reference data has always used for ARS.
const InstrumentKindCurrency = "MONEDA"

// Instrument is immutable reference data for a tradable (or cash) instrument.
// Kind is a descriptive tag; only InstrumentKindCurrency carries meaning.
type Instrument struct {
	ID     int64
	Kind   string
	Ticker string
	Name   string
}

// IsCurrency reports whether the instrument is the cash instrument.
func (i Instrument) IsCurrency() bool {
	return i.Kind == InstrumentKindCurrency
}

// SearchResult is one page of an instrument search.
type SearchResult struct {
	Items []Instrument
	Total int64
	Page  int
	Limit int
}
