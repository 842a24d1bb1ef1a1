package domain

import "time"

// Direction of a trade signal.
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// Signal is a directional trade suggestion derived from one cluster.
// Entry/StopLoss/TakeProfit/RiskReward are nil when Direction is NEUTRAL.
type Signal struct {
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Entry      *float64  `json:"entry"`
	StopLoss   *float64  `json:"stop_loss"`
	TakeProfit *float64  `json:"take_profit"`
	Confidence float64   `json:"confidence"` // source cluster strength, unmodified
	RiskReward *float64  `json:"risk_reward"`
	Cluster    *Cluster  `json:"cluster,omitempty"` // originating cluster, for audit
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Neutral builds the no-trade signal for a symbol.
func Neutral(symbol, reason string, at time.Time) *Signal {
	return &Signal{
		Symbol:    symbol,
		Direction: DirectionNeutral,
		Reason:    reason,
		CreatedAt: at,
	}
}
