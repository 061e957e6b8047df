package engine

import "fmt"

// Limits are the engine's immutable safety bounds, fixed at construction.
// The trading-mode budget from the risk profile can only tighten these,
// never loosen them.
type Limits struct {
	MinLeverage int
	MaxLeverage int

	MinTradeNotional      float64 // smallest admissible amount x price
	FreeCashReserveFrac   float64 // free cash kept after the margin debit, fraction of equity
	MaxMarginFrac         float64 // single-position margin concentration, fraction of equity
	DailyLossLimitFrac    float64 // realized-loss floor over the rolling day, fraction of equity
	WeeklyLossLimitFrac   float64 // realized-loss floor over the rolling week, fraction of equity
	MaxPortfolioLeverage  float64 // post-trade total notional / equity ceiling
	MinRewardRiskRatio    float64
	LiquidationBufferFrac float64 // required fractional distance from entry to liquidation
	MaintenanceMarginRate float64 // used by the liquidation-price approximation
}

// DefaultLimits returns the production safety bounds.
func DefaultLimits() Limits {
	return Limits{
		MinLeverage:           1,
		MaxLeverage:           20,
		MinTradeNotional:      20,
		FreeCashReserveFrac:   0.10,
		MaxMarginFrac:         0.50,
		DailyLossLimitFrac:    0.05,
		WeeklyLossLimitFrac:   0.10,
		MaxPortfolioLeverage:  10,
		MinRewardRiskRatio:    1.5,
		LiquidationBufferFrac: 0.05,
		MaintenanceMarginRate: 0.005,
	}
}

// Validate checks the limits for internal consistency.
func (l Limits) Validate() error {
	if l.MinLeverage < 1 || l.MaxLeverage < l.MinLeverage {
		return fmt.Errorf("leverage bounds [%d,%d] are invalid", l.MinLeverage, l.MaxLeverage)
	}
	if l.MinTradeNotional <= 0 {
		return fmt.Errorf("minimum trade notional must be positive")
	}
	if l.FreeCashReserveFrac < 0 || l.FreeCashReserveFrac >= 1 {
		return fmt.Errorf("free cash reserve fraction %f out of range", l.FreeCashReserveFrac)
	}
	if l.MaxMarginFrac <= 0 || l.MaxMarginFrac > 1 {
		return fmt.Errorf("margin concentration fraction %f out of range", l.MaxMarginFrac)
	}
	if l.MaxPortfolioLeverage <= 0 {
		return fmt.Errorf("portfolio leverage ceiling must be positive")
	}
	if l.MaintenanceMarginRate < 0 || l.MaintenanceMarginRate >= 1 {
		return fmt.Errorf("maintenance margin rate %f out of range", l.MaintenanceMarginRate)
	}
	return nil
}
