package domain

import "time"

// LevelSource tags where a liquidation level came from.
type LevelSource string

const (
	SourcePredictive LevelSource = "predictive" // allocated from aggregate OI across leverage tiers
	SourceReactive   LevelSource = "reactive"   // one recorded liquidation event
)

// LiquidationLevel is a single weighted price point where positions would be
// (or were) liquidated. Derived each cycle; never stored.
type LiquidationLevel struct {
	Symbol       string
	Price        float64
	Side         Side
	Source       LevelSource
	LeverageTier float64   // predictive only
	EventTime    time.Time // reactive only
	Weight       float64   // notional at risk, decayed for reactive levels
}
