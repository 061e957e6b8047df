package engine

import (
	"fmt"
	"math"

	"leverbot/internal/advisor"
	"leverbot/internal/domain"
	"leverbot/internal/riskprofile"
)

// buyContext is the consistent snapshot one Buy admission is evaluated
// against: the proposed order, the live account state, and the cycle's
// risk-profile budget. Built once, read by every guard.
type buyContext struct {
	symbol     domain.Symbol
	buy        *advisor.BuyParams
	stopLoss   float64 // 0 = absent
	takeProfit float64 // 0 = absent

	price    float64 // current market price
	equity   float64
	freeCash float64

	existing       *domain.Position // open position for this symbol, nil if none
	totalNotional  float64          // live notional across all open positions
	dailyRealized  float64          // realized P&L over the rolling day
	weeklyRealized float64          // realized P&L over the rolling week

	profile *riskprofile.AccountRiskProfile
	limits  Limits
}

func (bc *buyContext) notional() float64 {
	return bc.buy.Amount * bc.price
}

func (bc *buyContext) margin() float64 {
	return bc.notional() / float64(bc.buy.Leverage)
}

// guard is one admission predicate. Check returns nil on pass or the
// human-readable rejection reason.
type guard struct {
	name  string
	check func(bc *buyContext) error
}

// rejection is the structured outcome of a failed admission.
type rejection struct {
	Guard  string
	Reason string
}

func (r *rejection) String() string {
	return fmt.Sprintf("%s: %s", r.Guard, r.Reason)
}

// runGuards evaluates the guards strictly in order and stops at the first
// failure. Returns nil when every guard passes.
func runGuards(guards []guard, bc *buyContext) *rejection {
	for _, g := range guards {
		if err := g.check(bc); err != nil {
			return &rejection{Guard: g.name, Reason: err.Error()}
		}
	}
	return nil
}

// estimateLiquidationPrice approximates the long-position liquidation
// price. It ignores funding accrual and exchange maintenance-margin tiers;
// a conservative heuristic, not the exchange's exact computation.
func estimateLiquidationPrice(entry float64, leverage int, maintenanceMarginRate float64) float64 {
	return entry * (1 - 1/float64(leverage) + maintenanceMarginRate)
}

// buyGuards returns the Buy admission pipeline. Order is part of the
// contract: rejections report the first failing guard, and nothing past it
// runs.
func buyGuards() []guard {
	return []guard{
		{name: "open_position", check: checkNoOpenPosition},
		{name: "leverage_bounds", check: checkLeverageBounds},
		{name: "min_notional", check: checkMinNotional},
		{name: "cash_reserve", check: checkCashReserve},
		{name: "margin_concentration", check: checkMarginConcentration},
		{name: "protection_sides", check: checkProtectionSides},
		{name: "loss_floors", check: checkLossFloors},
		{name: "portfolio_leverage", check: checkPortfolioLeverage},
		{name: "risk_per_trade", check: checkRiskPerTrade},
		{name: "reward_risk", check: checkRewardRisk},
		{name: "liquidation_buffer", check: checkLiquidationBuffer},
		{name: "position_count", check: checkPositionCount},
	}
}

func checkNoOpenPosition(bc *buyContext) error {
	if bc.existing != nil {
		return fmt.Errorf("position %d already open for %s", bc.existing.ID, bc.symbol)
	}
	return nil
}

func checkLeverageBounds(bc *buyContext) error {
	maxLev := bc.limits.MaxLeverage
	if bc.profile != nil && bc.profile.MaxLeverage < maxLev {
		maxLev = bc.profile.MaxLeverage
	}
	if bc.buy.Leverage < bc.limits.MinLeverage || bc.buy.Leverage > maxLev {
		return fmt.Errorf("leverage %dx outside allowed [%d,%d]", bc.buy.Leverage, bc.limits.MinLeverage, maxLev)
	}
	return nil
}

func checkMinNotional(bc *buyContext) error {
	if n := bc.notional(); n < bc.limits.MinTradeNotional {
		return fmt.Errorf("notional %.2f below minimum trade size %.2f", n, bc.limits.MinTradeNotional)
	}
	return nil
}

func checkCashReserve(bc *buyContext) error {
	reserve := bc.limits.FreeCashReserveFrac * bc.equity
	if remaining := bc.freeCash - bc.margin(); remaining < reserve {
		return fmt.Errorf("margin %.2f would leave %.2f free cash, below the %.2f reserve", bc.margin(), remaining, reserve)
	}
	return nil
}

func checkMarginConcentration(bc *buyContext) error {
	limit := bc.limits.MaxMarginFrac * bc.equity
	if m := bc.margin(); m > limit {
		return fmt.Errorf("margin %.2f exceeds the %.2f single-position limit", m, limit)
	}
	return nil
}

func checkProtectionSides(bc *buyContext) error {
	if bc.stopLoss > 0 && bc.stopLoss >= bc.price {
		return fmt.Errorf("stop-loss %.2f must be below entry %.2f", bc.stopLoss, bc.price)
	}
	if bc.takeProfit > 0 && bc.takeProfit <= bc.price {
		return fmt.Errorf("take-profit %.2f must be above entry %.2f", bc.takeProfit, bc.price)
	}
	return nil
}

func checkLossFloors(bc *buyContext) error {
	if dailyLimit := bc.limits.DailyLossLimitFrac * bc.equity; bc.dailyRealized <= -dailyLimit {
		return fmt.Errorf("daily realized loss %.2f breaches the %.2f floor", bc.dailyRealized, -dailyLimit)
	}
	if weeklyLimit := bc.limits.WeeklyLossLimitFrac * bc.equity; bc.weeklyRealized <= -weeklyLimit {
		return fmt.Errorf("weekly realized loss %.2f breaches the %.2f floor", bc.weeklyRealized, -weeklyLimit)
	}
	return nil
}

func checkPortfolioLeverage(bc *buyContext) error {
	if bc.equity <= 0 {
		return fmt.Errorf("equity %.2f is not positive", bc.equity)
	}
	postLev := (bc.totalNotional + bc.notional()) / bc.equity
	if postLev > bc.limits.MaxPortfolioLeverage {
		return fmt.Errorf("post-trade portfolio leverage %.2fx exceeds the %.2fx ceiling", postLev, bc.limits.MaxPortfolioLeverage)
	}
	return nil
}

func checkRiskPerTrade(bc *buyContext) error {
	if bc.stopLoss <= 0 {
		return nil
	}
	maxRisk := bc.profile.MaxRiskPct
	risk := math.Abs(bc.price-bc.stopLoss) * bc.buy.Amount * float64(bc.buy.Leverage)
	if risk/bc.equity > maxRisk {
		return fmt.Errorf("risk %.2f is %.2f%% of equity, above the %.2f%% budget", risk, 100*risk/bc.equity, 100*maxRisk)
	}
	return nil
}

func checkRewardRisk(bc *buyContext) error {
	if bc.stopLoss <= 0 || bc.takeProfit <= 0 {
		return nil
	}
	risk := bc.price - bc.stopLoss
	reward := bc.takeProfit - bc.price
	if risk <= 0 {
		return fmt.Errorf("non-positive risk distance")
	}
	if ratio := reward / risk; ratio < bc.limits.MinRewardRiskRatio {
		return fmt.Errorf("reward:risk %.2f below the %.2f minimum", ratio, bc.limits.MinRewardRiskRatio)
	}
	return nil
}

// checkPositionCount enforces the trading mode's concurrent-position budget
// against the cycle's live open-position count.
func checkPositionCount(bc *buyContext) error {
	if bc.profile.MaxPositions <= 0 {
		return nil
	}
	if open := bc.profile.Risk.OpenPositions; open >= bc.profile.MaxPositions {
		return fmt.Errorf("%d positions already open at the %s-mode budget of %d", open, bc.profile.TradingMode, bc.profile.MaxPositions)
	}
	return nil
}

func checkLiquidationBuffer(bc *buyContext) error {
	liq := estimateLiquidationPrice(bc.price, bc.buy.Leverage, bc.limits.MaintenanceMarginRate)
	if bc.stopLoss > 0 && liq >= bc.stopLoss {
		return fmt.Errorf("estimated liquidation %.2f is not below the stop-loss %.2f", liq, bc.stopLoss)
	}
	if buffer := (bc.price - liq) / bc.price; buffer <= bc.limits.LiquidationBufferFrac {
		return fmt.Errorf("liquidation buffer %.2f%% below the required %.2f%%", 100*buffer, 100*bc.limits.LiquidationBufferFrac)
	}
	return nil
}
