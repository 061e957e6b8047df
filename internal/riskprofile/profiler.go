package riskprofile

import (
	"context"
	"fmt"
	"math"

	"leverbot/internal/domain"
	"leverbot/internal/ports"
)

// sharpeAnnualization scales the per-trade Sharpe ratio assuming roughly
// 100 trades per year (sqrt of 100). This is a fixed policy value, not an
// inference from actual trade frequency.
const sharpeAnnualization = 10.0

// LiquidationRisk is the three-tier liquidation-risk classification.
type LiquidationRisk string

const (
	RiskLow    LiquidationRisk = "LOW"
	RiskMedium LiquidationRisk = "MEDIUM"
	RiskHigh   LiquidationRisk = "HIGH"
)

// PerformanceMetrics summarizes the account's closed-position history.
type PerformanceMetrics struct {
	TotalPositions int
	Wins           int
	Losses         int
	WinRate        float64 // fraction of positions closed with positive P&L
	GrossProfit    float64
	GrossLoss      float64 // absolute value of summed losses
	NetProfit      float64
	ProfitFactor   float64 // gross profit / gross loss, 0 when no losses
	AverageWin     float64
	AverageLoss    float64 // negative
	LargestWin     float64
	LargestLoss    float64 // negative

	LongestWinStreak  int
	LongestLossStreak int

	// Drawdowns are fractions of the running equity peak.
	MaxDrawdown     float64
	CurrentDrawdown float64
}

// RiskMetrics is the live exposure snapshot.
type RiskMetrics struct {
	TotalEquity       float64
	FreeCash          float64
	TotalNotional     float64
	PortfolioLeverage float64 // total notional / total equity
	MarginUsedPct     float64 // percent of equity committed as margin
	OpenPositions     int
	LiquidationRisk   LiquidationRisk
}

// AccountRiskProfile is the read-only snapshot the execution engine consumes:
// the selected trading mode with its budget, plus the metrics it was derived
// from. Recomputed each cycle, never persisted.
type AccountRiskProfile struct {
	TradingMode  domain.TradingMode
	MaxRiskPct   float64
	MaxLeverage  int
	MaxPositions int

	ReturnPct   float64 // realized return since inception, fraction of initial capital
	SharpeRatio float64
	Performance PerformanceMetrics
	Risk        RiskMetrics
}

// Profiler computes account risk profiles from the position ledger and the
// live exchange state.
type Profiler struct {
	cfg       Config
	gateway   ports.ExchangeGateway
	positions ports.PositionRepository
	logger    ports.Logger
}

// NewProfiler creates an account risk profiler.
func NewProfiler(cfg Config, gateway ports.ExchangeGateway, positions ports.PositionRepository, logger ports.Logger) (*Profiler, error) {
	if gateway == nil || positions == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Profiler")
	}
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive, got %f", cfg.InitialCapital)
	}
	if len(cfg.ModeTable) == 0 || !math.IsInf(cfg.ModeTable[len(cfg.ModeTable)-1].ReturnUpperBound, 1) {
		return nil, fmt.Errorf("mode table must end with a catch-all row")
	}
	return &Profiler{cfg: cfg, gateway: gateway, positions: positions, logger: logger}, nil
}

// Build computes a fresh profile: closed-position history from the ledger,
// live balance and exposures from the gateway, then the mode selection.
func (p *Profiler) Build(ctx context.Context) (*AccountRiskProfile, error) {
	closed, err := p.positions.FindClosed(ctx)
	if err != nil {
		return nil, fmt.Errorf("load closed positions: %w", err)
	}
	open, err := p.positions.FindOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("load open positions: %w", err)
	}
	balance, err := p.gateway.GetBalance(ctx, p.cfg.MarginAsset)
	if err != nil {
		return nil, fmt.Errorf("fetch balance: %w", err)
	}

	var live []*ports.PositionRisk
	if len(open) > 0 {
		symbols := make([]domain.Symbol, 0, len(open))
		for _, pos := range open {
			symbols = append(symbols, pos.Symbol)
		}
		if live, err = p.gateway.GetPositions(ctx, symbols); err != nil {
			return nil, fmt.Errorf("fetch live positions: %w", err)
		}
	}

	perf := AnalyzePerformance(closed, p.cfg.InitialCapital)
	returnPct := perf.NetProfit / p.cfg.InitialCapital
	budget := SelectMode(returnPct, p.cfg.ModeTable)

	profile := &AccountRiskProfile{
		TradingMode:  budget.Mode,
		MaxRiskPct:   budget.MaxRiskPct,
		MaxLeverage:  budget.MaxLeverage,
		MaxPositions: budget.MaxPositions,
		ReturnPct:    returnPct,
		SharpeRatio:  p.sharpeRatio(closed),
		Performance:  perf,
		Risk:         p.assessRisk(balance, live),
	}

	p.logger.Info(ctx, "Account risk profile computed", map[string]interface{}{
		"mode":             profile.TradingMode,
		"returnPct":        profile.ReturnPct,
		"sharpe":           profile.SharpeRatio,
		"closedPositions":  perf.TotalPositions,
		"openPositions":    profile.Risk.OpenPositions,
		"portfolioLev":     profile.Risk.PortfolioLeverage,
		"liquidationRisk":  profile.Risk.LiquidationRisk,
	})
	return profile, nil
}

// SelectMode picks the first mode-table row whose upper bound the return
// fraction stays below. The table is evaluated in order, most defensive
// first; the final catch-all row always matches.
func SelectMode(returnFrac float64, table []ModeBudget) ModeBudget {
	for _, row := range table {
		if returnFrac < row.ReturnUpperBound {
			return row
		}
	}
	return table[len(table)-1]
}

// AnalyzePerformance walks closed positions in close order and accumulates
// the performance summary. Drawdowns come from a running equity curve
// seeded with the initial capital.
func AnalyzePerformance(closed []*domain.Position, initialCapital float64) PerformanceMetrics {
	var m PerformanceMetrics
	equity := initialCapital
	peak := initialCapital
	var winStreak, lossStreak int

	for _, pos := range closed {
		pnl := pos.RealizedPnL
		m.TotalPositions++
		m.NetProfit += pnl

		if pnl > 0 {
			m.Wins++
			m.GrossProfit += pnl
			if pnl > m.LargestWin {
				m.LargestWin = pnl
			}
			winStreak++
			lossStreak = 0
			if winStreak > m.LongestWinStreak {
				m.LongestWinStreak = winStreak
			}
		} else {
			m.Losses++
			m.GrossLoss += -pnl
			if pnl < m.LargestLoss {
				m.LargestLoss = pnl
			}
			lossStreak++
			winStreak = 0
			if lossStreak > m.LongestLossStreak {
				m.LongestLossStreak = lossStreak
			}
		}

		equity += pnl
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			m.CurrentDrawdown = (peak - equity) / peak
			if m.CurrentDrawdown > m.MaxDrawdown {
				m.MaxDrawdown = m.CurrentDrawdown
			}
		}
	}

	if m.TotalPositions > 0 {
		m.WinRate = float64(m.Wins) / float64(m.TotalPositions)
	}
	if m.Wins > 0 {
		m.AverageWin = m.GrossProfit / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AverageLoss = -m.GrossLoss / float64(m.Losses)
	}
	if m.GrossLoss > 0 {
		m.ProfitFactor = m.GrossProfit / m.GrossLoss
	}
	return m
}

// sharpeRatio computes the annualized Sharpe ratio over per-trade returns,
// each taken against the running capital before that trade. Reports 0 until
// the minimum closed-position count is reached.
func (p *Profiler) sharpeRatio(closed []*domain.Position) float64 {
	if len(closed) < p.cfg.MinClosedForSharpe {
		return 0
	}

	capital := p.cfg.InitialCapital
	returns := make([]float64, 0, len(closed))
	for _, pos := range closed {
		if capital <= 0 {
			return 0
		}
		returns = append(returns, pos.RealizedPnL/capital-p.cfg.RiskFreeRatePerTrade)
		capital += pos.RealizedPnL
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * sharpeAnnualization
}

// assessRisk classifies the live exposure snapshot. The tier escalates with
// portfolio leverage and with any single position's proximity to its
// liquidation price.
func (p *Profiler) assessRisk(balance *ports.Balance, live []*ports.PositionRisk) RiskMetrics {
	m := RiskMetrics{
		TotalEquity:     balance.Total,
		FreeCash:        balance.Free,
		OpenPositions:   len(live),
		LiquidationRisk: RiskLow,
	}

	for _, pr := range live {
		m.TotalNotional += math.Abs(pr.Notional)
	}
	if m.TotalEquity > 0 {
		m.PortfolioLeverage = m.TotalNotional / m.TotalEquity
		m.MarginUsedPct = 100 * (m.TotalEquity - m.FreeCash) / m.TotalEquity
	}

	switch {
	case m.PortfolioLeverage > p.cfg.PortfolioLeverageHigh:
		m.LiquidationRisk = RiskHigh
	case m.PortfolioLeverage > p.cfg.PortfolioLeverageMedium:
		m.LiquidationRisk = RiskMedium
	}

	for _, pr := range live {
		if pr.LiquidationPrice <= 0 || pr.MarkPrice <= 0 {
			continue
		}
		dist := math.Abs(pr.MarkPrice-pr.LiquidationPrice) / pr.MarkPrice
		if dist < p.cfg.LiqDistanceHigh {
			m.LiquidationRisk = RiskHigh
		} else if dist < p.cfg.LiqDistanceMedium && m.LiquidationRisk == RiskLow {
			m.LiquidationRisk = RiskMedium
		}
	}
	return m
}
