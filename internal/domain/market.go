package domain

import "time"

// Side identifies which side of a position gets liquidated at a level.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// PriceSnapshot is the latest observed price for a symbol.
// Replaced wholesale on every refresh.
type PriceSnapshot struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// OISnapshot is an aggregate open-interest reading for a symbol,
// split into long and short notional by the order-book bias estimate.
type OISnapshot struct {
	Symbol    string    `json:"symbol"`
	TotalOI   float64   `json:"total_oi"`
	LongOI    float64   `json:"long_oi"`
	ShortOI   float64   `json:"short_oi"`
	Timestamp time.Time `json:"timestamp"`
}

// RawLiquidationEvent is a single forced-closure event from the live stream.
// Immutable once recorded.
type RawLiquidationEvent struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Side      Side      `json:"side"`
	Notional  float64   `json:"notional"`
	Timestamp time.Time `json:"timestamp"`
}
