package usecase

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/vitos/liquidation_hunter/internal/config"
	"github.com/vitos/liquidation_hunter/internal/domain"
)

// SignalGenerator selects the best qualifying opposing-side cluster and
// derives an actionable signal from it.
type SignalGenerator struct {
	minStrength    float64
	maxDistancePct float64
	minTPPct       float64
	stopLossPct    float64
	tpOffsetPct    float64
	timeNow        func() time.Time // for testing
}

func NewSignalGenerator(cfg config.EngineConfig) *SignalGenerator {
	return &SignalGenerator{
		minStrength:    cfg.MinStrength,
		maxDistancePct: cfg.MaxDistancePct,
		minTPPct:       cfg.MinTakeProfitPct,
		stopLossPct:    cfg.StopLossPct,
		tpOffsetPct:    cfg.TakeProfitOffsetPct,
		timeNow:        time.Now,
	}
}

// Generate derives one signal for a symbol from its current cluster set.
// A missing price is a hard precondition failure, never defaulted.
//
// Short-side clusters above price are LONG targets (triggered short
// liquidations push price up), long-side clusters below are SHORT targets.
// LONG is evaluated before SHORT as a deliberate rule: when both sides
// qualify independently, LONG wins.
func (g *SignalGenerator) Generate(symbol string, price float64, clusters []*domain.Cluster) (*domain.Signal, error) {
	if price <= 0 {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrNoPrice)
	}
	now := g.timeNow()

	longCandidates := g.candidates(clusters, domain.SideShort, price, func(c *domain.Cluster) bool {
		return c.Price > price
	})
	for _, c := range longCandidates {
		entry := price
		stopLoss := entry * (1 - g.stopLossPct/100)
		takeProfit := c.Price * (1 + g.tpOffsetPct/100)
		if (takeProfit-entry)/entry*100 < g.minTPPct {
			continue // degenerate target, fall through to the next candidate
		}
		return g.signal(symbol, domain.DirectionLong, entry, stopLoss, takeProfit, c, now), nil
	}

	shortCandidates := g.candidates(clusters, domain.SideLong, price, func(c *domain.Cluster) bool {
		return c.Price < price
	})
	for _, c := range shortCandidates {
		entry := price
		stopLoss := entry * (1 + g.stopLossPct/100)
		takeProfit := c.Price * (1 - g.tpOffsetPct/100)
		if (entry-takeProfit)/entry*100 < g.minTPPct {
			continue
		}
		return g.signal(symbol, domain.DirectionShort, entry, stopLoss, takeProfit, c, now), nil
	}

	return domain.Neutral(symbol, "no qualifying cluster on either side", now), nil
}

// candidates filters active clusters of one side passing the strength and
// distance thresholds, ordered by strength descending with ties broken by
// smaller distance, then lower price, for full determinism.
//
// Distance is re-derived from the entry price rather than trusted from the
// rebuild pass: the price slot can refresh inside a still-fresh generation,
// and the distance used for filtering and tie-breaks must match the price
// used as entry. The returned clusters are copies carrying that distance.
func (g *SignalGenerator) candidates(clusters []*domain.Cluster, side domain.Side, price float64, inReach func(*domain.Cluster) bool) []*domain.Cluster {
	var out []*domain.Cluster
	for _, c := range clusters {
		if c.Side != side || !c.Active {
			continue
		}
		if c.Strength < g.minStrength || !inReach(c) {
			continue
		}
		distance := math.Abs(c.Price-price) / price * 100
		if distance > g.maxDistancePct {
			continue
		}
		cc := *c
		cc.DistancePct = distance
		out = append(out, &cc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		if out[i].DistancePct != out[j].DistancePct {
			return out[i].DistancePct < out[j].DistancePct
		}
		return out[i].Price < out[j].Price
	})
	return out
}

func (g *SignalGenerator) signal(symbol string, dir domain.Direction, entry, stopLoss, takeProfit float64, c *domain.Cluster, now time.Time) *domain.Signal {
	risk := entry - stopLoss
	reward := takeProfit - entry
	if dir == domain.DirectionShort {
		risk = stopLoss - entry
		reward = entry - takeProfit
	}
	var rr *float64
	if risk > 0 {
		v := reward / risk
		rr = &v
	}
	return &domain.Signal{
		Symbol:     symbol,
		Direction:  dir,
		Entry:      &entry,
		StopLoss:   &stopLoss,
		TakeProfit: &takeProfit,
		Confidence: c.Strength,
		RiskReward: rr,
		Cluster:    c,
		Reason: fmt.Sprintf("%s liquidation cluster at %.4f (strength %.2f, weight %.0f)",
			c.Side, c.Price, c.Strength, c.TotalWeight),
		CreatedAt: now,
	}
}
