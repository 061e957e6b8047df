package riskprofile

import (
	"math"

	"leverbot/internal/domain"
)

// ModeBudget is one row of the trading-mode table: the risk budget granted
// while the account return since inception stays below the upper bound.
type ModeBudget struct {
	Mode             domain.TradingMode
	ReturnUpperBound float64 // exclusive upper bound on return fraction
	MaxRiskPct       float64 // max risk per trade, fraction of equity
	MaxLeverage      int
	MaxPositions     int
}

// Config holds the profiler's policy values. The mode table is ordered from
// most defensive to least and the first matching row wins; the last row must
// be a catch-all with an infinite upper bound.
type Config struct {
	InitialCapital       float64 // capital at inception, basis for return
	MarginAsset          string
	RiskFreeRatePerTrade float64
	MinClosedForSharpe   int
	ModeTable            []ModeBudget

	// Liquidation-risk tiers.
	PortfolioLeverageMedium float64 // portfolio leverage above this is medium risk
	PortfolioLeverageHigh   float64 // and above this, high
	LiqDistanceMedium       float64 // a position closer to liquidation than this fraction is medium risk
	LiqDistanceHigh         float64 // and closer than this, high
}

// DefaultModeTable returns the production trading-mode thresholds.
func DefaultModeTable() []ModeBudget {
	return []ModeBudget{
		{Mode: domain.ModeSurvival, ReturnUpperBound: -0.10, MaxRiskPct: 0.005, MaxLeverage: 2, MaxPositions: 1},
		{Mode: domain.ModeDefensive, ReturnUpperBound: -0.05, MaxRiskPct: 0.015, MaxLeverage: 3, MaxPositions: 2},
		{Mode: domain.ModeNormal, ReturnUpperBound: 0.10, MaxRiskPct: 0.02, MaxLeverage: 5, MaxPositions: 3},
		{Mode: domain.ModeOffensive, ReturnUpperBound: 0.20, MaxRiskPct: 0.025, MaxLeverage: 7, MaxPositions: 4},
		{Mode: domain.ModeAggressive, ReturnUpperBound: math.Inf(1), MaxRiskPct: 0.03, MaxLeverage: 10, MaxPositions: 5},
	}
}

// DefaultConfig returns the production profiler policy.
func DefaultConfig(initialCapital float64) Config {
	return Config{
		InitialCapital:       initialCapital,
		MarginAsset:          "USDT",
		RiskFreeRatePerTrade: 0.0001,
		MinClosedForSharpe:   5,
		ModeTable:            DefaultModeTable(),

		PortfolioLeverageMedium: 3.0,
		PortfolioLeverageHigh:   5.0,
		LiqDistanceMedium:       0.20,
		LiqDistanceHigh:         0.10,
	}
}
