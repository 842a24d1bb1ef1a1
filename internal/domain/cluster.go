package domain

import "time"

// Cluster is an aggregated price zone where liquidation levels concentrate.
type Cluster struct {
	Symbol      string    `json:"symbol"`
	Price       float64   `json:"price_level"` // weight-weighted centroid
	Side        Side      `json:"side"`        // dominant liquidated side
	Strength    float64   `json:"strength"`    // 0..1, saturating share of total weight
	TotalWeight float64   `json:"total_notional"`
	MemberCount int       `json:"member_count"`
	DistancePct float64   `json:"distance_from_price"` // % from the price used as entry
	LastUpdated time.Time `json:"last_updated"`
	Active      bool      `json:"active"` // false once price has crossed the centroid
}

// Generation is one wholesale Cluster Builder pass for a symbol.
// The store keeps only the latest generation; clusters are never mutated
// across generations, only the Active flag moves within one.
type Generation struct {
	Symbol   string
	Price    float64 // price the pass was computed against
	Clusters []*Cluster
	BuiltAt  time.Time
}
