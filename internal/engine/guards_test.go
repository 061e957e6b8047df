package engine

import (
	"testing"

	"leverbot/internal/advisor"
	"leverbot/internal/riskprofile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalProfile() *riskprofile.AccountRiskProfile {
	return &riskprofile.AccountRiskProfile{
		TradingMode:  "NORMAL",
		MaxRiskPct:   0.02,
		MaxLeverage:  5,
		MaxPositions: 3,
	}
}

// admissibleContext returns a context that passes every guard: $500 equity,
// NORMAL budget, a 5x buy of 0.002 at 100000 with the stop 1000 below.
func admissibleContext() *buyContext {
	return &buyContext{
		symbol:   "BTCUSDT",
		buy:      &advisor.BuyParams{Pricing: 100000, Amount: 0.002, Leverage: 5},
		stopLoss: 99000,
		price:    100000,
		equity:   500,
		freeCash: 500,
		profile:  normalProfile(),
		limits:   DefaultLimits(),
	}
}

func TestGuardsAdmitBoundaryRisk(t *testing.T) {
	// Risk = 1000 * 0.002 * 5 = $10, exactly 2% of the $500 equity: the
	// risk-per-trade guard passes at its boundary and the buy is admitted.
	bc := admissibleContext()
	rej := runGuards(buyGuards(), bc)
	assert.Nil(t, rej, "expected admission, got %v", rej)
}

func TestGuardsRejectRiskAboveBudget(t *testing.T) {
	bc := admissibleContext()
	bc.buy.Amount = 0.0021 // risk $10.50, above the $10 budget
	rej := runGuards(buyGuards(), bc)
	require.NotNil(t, rej)
	assert.Equal(t, "risk_per_trade", rej.Guard)
}

func TestGuardOrderShortCircuits(t *testing.T) {
	// Violates both the leverage bound and the minimum notional; the
	// rejection must name the earlier guard.
	bc := admissibleContext()
	bc.buy.Leverage = 50
	bc.buy.Amount = 0.0001
	rej := runGuards(buyGuards(), bc)
	require.NotNil(t, rej)
	assert.Equal(t, "leverage_bounds", rej.Guard)
}

func TestGuardRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(bc *buyContext)
		guard  string
	}{
		{
			"existing open position",
			func(bc *buyContext) { bc.existing = openPosition("BTCUSDT", 100000, 0.002, 5) },
			"open_position",
		},
		{
			"leverage above hard cap",
			func(bc *buyContext) { bc.buy.Leverage = 50; bc.profile.MaxLeverage = 100 },
			"leverage_bounds",
		},
		{
			"leverage above mode budget",
			func(bc *buyContext) { bc.buy.Leverage = 7 }, // hard cap 20, NORMAL budget 5
			"leverage_bounds",
		},
		{
			"leverage below minimum",
			func(bc *buyContext) { bc.buy.Leverage = 0 },
			"leverage_bounds",
		},
		{
			"notional below minimum trade size",
			func(bc *buyContext) { bc.buy.Amount = 0.0001; bc.stopLoss = 0 },
			"min_notional",
		},
		{
			"margin would break the cash reserve",
			func(bc *buyContext) { bc.freeCash = 60 }, // margin 40 leaves 20, reserve is 50
			"cash_reserve",
		},
		{
			"margin concentration",
			func(bc *buyContext) {
				bc.buy.Amount = 0.02
				bc.buy.Leverage = 5
				bc.stopLoss = 0
				bc.freeCash = 5000
				bc.equity = 700 // margin 400 > 350 cap, but reserve 70 still held
			},
			"margin_concentration",
		},
		{
			"stop-loss above entry",
			func(bc *buyContext) { bc.stopLoss = 100001 },
			"protection_sides",
		},
		{
			"take-profit below entry",
			func(bc *buyContext) { bc.takeProfit = 99999 },
			"protection_sides",
		},
		{
			"daily loss floor breached",
			func(bc *buyContext) { bc.dailyRealized = -25 }, // floor is 5% of 500
			"loss_floors",
		},
		{
			"weekly loss floor breached",
			func(bc *buyContext) { bc.weeklyRealized = -50 },
			"loss_floors",
		},
		{
			"portfolio leverage ceiling",
			func(bc *buyContext) { bc.totalNotional = 4900 }, // +200 notional over 500 equity
			"portfolio_leverage",
		},
		{
			"reward:risk below minimum",
			func(bc *buyContext) { bc.takeProfit = 100500 }, // reward 500 vs risk 1000
			"reward_risk",
		},
		{
			"stop-loss below estimated liquidation",
			func(bc *buyContext) {
				bc.buy.Leverage = 2
				bc.stopLoss = 40000 // below the ~50500 estimated liquidation
				bc.profile.MaxRiskPct = 1
			},
			"liquidation_buffer",
		},
		{
			"position-count budget exhausted",
			func(bc *buyContext) { bc.profile.Risk.OpenPositions = 3 }, // NORMAL budget is 3
			"position_count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc := admissibleContext()
			tt.mutate(bc)
			rej := runGuards(buyGuards(), bc)
			require.NotNil(t, rej, "expected rejection")
			assert.Equal(t, tt.guard, rej.Guard)
		})
	}
}

func TestGuardsWithoutProtectionLevels(t *testing.T) {
	// Absent stop/take-profit, the risk, reward:risk and stop-vs-liquidation
	// checks do not apply; the liquidation buffer itself still does.
	bc := admissibleContext()
	bc.stopLoss = 0
	bc.takeProfit = 0
	assert.Nil(t, runGuards(buyGuards(), bc))

	bc.buy.Leverage = 100 // would leave no liquidation buffer
	bc.limits.MaxLeverage = 200
	bc.profile.MaxLeverage = 200
	rej := runGuards(buyGuards(), bc)
	require.NotNil(t, rej)
	assert.Equal(t, "liquidation_buffer", rej.Guard)
}

func TestEstimateLiquidationPrice(t *testing.T) {
	// entry * (1 - 1/leverage + mmr)
	got := estimateLiquidationPrice(100, 5, 0.005)
	assert.InDelta(t, 80.5, got, 0.0001)

	got = estimateLiquidationPrice(2000, 10, 0.005)
	assert.InDelta(t, 1810, got, 0.0001)
}
