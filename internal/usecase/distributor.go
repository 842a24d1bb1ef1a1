package usecase

import (
	"math"
	"time"

	"github.com/vitos/liquidation_hunter/internal/config"
	"github.com/vitos/liquidation_hunter/internal/domain"
)

// LevelDistributor turns raw market data into weighted liquidation levels.
// Predictive mode allocates aggregate OI across leverage tiers; reactive mode
// treats each recorded liquidation event as its own level with a
// recency-decayed weight.
type LevelDistributor struct {
	calc    *LeverageCalculator
	tiers   []float64
	weights []float64 // normalized per-tier allocation, parallel to tiers
	decay   time.Duration
}

func NewLevelDistributor(cfg config.EngineConfig) *LevelDistributor {
	// Lower leverage gets more weight: most traders sit in the safer tiers.
	// Square-root decay, normalized so the weights sum to 1.
	weights := make([]float64, len(cfg.LeverageTiers))
	var total float64
	for i, tier := range cfg.LeverageTiers {
		weights[i] = 1 / math.Sqrt(tier)
		total += weights[i]
	}
	for i := range weights {
		weights[i] /= total
	}

	return &LevelDistributor{
		calc:    NewLeverageCalculator(),
		tiers:   cfg.LeverageTiers,
		weights: weights,
		decay:   time.Duration(cfg.DecayMinutes * float64(time.Minute)),
	}
}

// FromOpenInterest emits one level per (tier x side). Long liquidation levels
// sit below the current price, short levels above, each carrying the tier's
// share of that side's open interest.
func (d *LevelDistributor) FromOpenInterest(price *domain.PriceSnapshot, oi *domain.OISnapshot) []domain.LiquidationLevel {
	levels := make([]domain.LiquidationLevel, 0, 2*len(d.tiers))
	for i, tier := range d.tiers {
		levels = append(levels, domain.LiquidationLevel{
			Symbol:       price.Symbol,
			Price:        d.calc.LiquidationPrice(domain.SideLong, price.Price, tier),
			Side:         domain.SideLong,
			Source:       domain.SourcePredictive,
			LeverageTier: tier,
			Weight:       oi.LongOI * d.weights[i],
		})
		levels = append(levels, domain.LiquidationLevel{
			Symbol:       price.Symbol,
			Price:        d.calc.LiquidationPrice(domain.SideShort, price.Price, tier),
			Side:         domain.SideShort,
			Source:       domain.SourcePredictive,
			LeverageTier: tier,
			Weight:       oi.ShortOI * d.weights[i],
		})
	}
	return levels
}

// FromEvents emits one level per event with weight = notional * exp(-age/decay).
// An event one decay constant old retains about 37% of its original weight.
// Events from the future (clock skew on the feed) are treated as age zero.
func (d *LevelDistributor) FromEvents(events []domain.RawLiquidationEvent, now time.Time) []domain.LiquidationLevel {
	levels := make([]domain.LiquidationLevel, 0, len(events))
	for _, ev := range events {
		age := now.Sub(ev.Timestamp)
		if age < 0 {
			age = 0
		}
		weight := ev.Notional * math.Exp(-age.Seconds()/d.decay.Seconds())
		levels = append(levels, domain.LiquidationLevel{
			Symbol:    ev.Symbol,
			Price:     ev.Price,
			Side:      ev.Side,
			Source:    domain.SourceReactive,
			EventTime: ev.Timestamp,
			Weight:    weight,
		})
	}
	return levels
}
