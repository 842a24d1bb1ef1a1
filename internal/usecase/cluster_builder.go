package usecase

import (
	"math"
	"sort"
	"time"

	"github.com/vitos/liquidation_hunter/internal/config"
	"github.com/vitos/liquidation_hunter/internal/domain"
)

// ClusterBuilder groups weighted liquidation levels into price buckets.
// It is agnostic to where the levels came from; predictive and reactive
// modes share this output contract.
type ClusterBuilder struct {
	windowPct      float64 // merge window vs the running centroid, fraction
	strengthK      float64
	minMembers     int
	minWeight      float64
	maxDistancePct float64 // raw levels beyond this % of price are noise
}

func NewClusterBuilder(cfg config.EngineConfig) *ClusterBuilder {
	return &ClusterBuilder{
		windowPct:      cfg.BucketWindowPct,
		strengthK:      cfg.StrengthK,
		minMembers:     cfg.MinClusterMembers,
		minWeight:      cfg.MinClusterWeight,
		maxDistancePct: cfg.MaxLevelDistancePct,
	}
}

type bucket struct {
	weightedSum float64 // sum(price * weight), for the running centroid
	weight      float64
	longWeight  float64
	shortWeight float64
	members     int
}

func (b *bucket) centroid() float64 {
	if b.weight <= 0 {
		return 0
	}
	return b.weightedSum / b.weight
}

func (b *bucket) add(l domain.LiquidationLevel) {
	b.weightedSum += l.Price * l.Weight
	b.weight += l.Weight
	if l.Side == domain.SideLong {
		b.longWeight += l.Weight
	} else {
		b.shortWeight += l.Weight
	}
	b.members++
}

// Build runs one clustering pass for a symbol. Levels are sorted by price and
// merged greedily: a level joins the current bucket while it stays within the
// window of the bucket's running weighted centroid, otherwise a new bucket
// starts. Fully deterministic for fixed inputs.
func (cb *ClusterBuilder) Build(symbol string, levels []domain.LiquidationLevel, price float64, now time.Time) *domain.Generation {
	gen := &domain.Generation{Symbol: symbol, Price: price, BuiltAt: now}

	usable := make([]domain.LiquidationLevel, 0, len(levels))
	var totalWeight float64
	for _, l := range levels {
		if l.Weight <= 0 || l.Price <= 0 {
			continue
		}
		if price > 0 {
			distance := math.Abs(l.Price-price) / price * 100
			if distance > cb.maxDistancePct {
				continue
			}
		}
		usable = append(usable, l)
		totalWeight += l.Weight
	}
	if len(usable) == 0 {
		return gen
	}

	// Stable so equal-price levels keep their input order and the weighted
	// sums accumulate identically run to run.
	sort.SliceStable(usable, func(i, j int) bool { return usable[i].Price < usable[j].Price })

	var buckets []*bucket
	current := &bucket{}
	current.add(usable[0])
	for _, l := range usable[1:] {
		centroid := current.centroid()
		if math.Abs(l.Price-centroid) <= centroid*cb.windowPct {
			current.add(l)
			continue
		}
		buckets = append(buckets, current)
		current = &bucket{}
		current.add(l)
	}
	buckets = append(buckets, current)

	for _, b := range buckets {
		if b.members < cb.minMembers || b.weight < cb.minWeight {
			continue
		}
		centroid := b.centroid()
		side := domain.SideLong
		if b.shortWeight > b.longWeight {
			side = domain.SideShort
		}
		var distance float64
		if price > 0 {
			distance = math.Abs(centroid-price) / price * 100
		}
		gen.Clusters = append(gen.Clusters, &domain.Cluster{
			Symbol:      symbol,
			Price:       centroid,
			Side:        side,
			Strength:    cb.strength(b.weight, totalWeight),
			TotalWeight: b.weight,
			MemberCount: b.members,
			DistancePct: distance,
			LastUpdated: now,
			Active:      true,
		})
	}
	return gen
}

// strength saturates the bucket's share of total weight: moderate
// concentration already reads as strong. With k=3, a third of the total
// weight maps to 1.0 and 12% to 0.6.
func (cb *ClusterBuilder) strength(weight, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Min(1, math.Sqrt(weight/total*cb.strengthK))
}
