package usecase

import "github.com/vitos/liquidation_hunter/internal/domain"

// LeverageCalculator maps a price and leverage tier to the liquidation price
// of a position opened at that tier. Pure and stateless; tier validity
// (leverage > 1) is enforced at config load.
type LeverageCalculator struct{}

func NewLeverageCalculator() *LeverageCalculator {
	return &LeverageCalculator{}
}

// LiquidationPrice returns where a position at the given leverage gets
// liquidated. Longs liquidate below price, shorts above:
//
//	long:  P * (1 - 1/L)
//	short: P * (1 + 1/L)
func (c *LeverageCalculator) LiquidationPrice(side domain.Side, price, leverage float64) float64 {
	if side == domain.SideLong {
		return price * (1 - 1/leverage)
	}
	return price * (1 + 1/leverage)
}
