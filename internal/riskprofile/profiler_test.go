package riskprofile

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"leverbot/internal/domain"
	"leverbot/internal/ports"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.0001
}

func closedPositions(pnls ...float64) []*domain.Position {
	out := make([]*domain.Position, len(pnls))
	for i, pnl := range pnls {
		out[i] = &domain.Position{
			Symbol:      "ETHUSDT",
			Status:      domain.StatusClosed,
			RealizedPnL: pnl,
		}
	}
	return out
}

func TestSelectMode(t *testing.T) {
	table := DefaultModeTable()
	tests := []struct {
		returnFrac float64
		expected   domain.TradingMode
	}{
		{-0.50, domain.ModeSurvival},
		{-0.11, domain.ModeSurvival},
		{-0.10, domain.ModeDefensive}, // boundary is exclusive
		{-0.06, domain.ModeDefensive},
		{-0.05, domain.ModeNormal},
		{0, domain.ModeNormal},
		{0.0999, domain.ModeNormal},
		{0.10, domain.ModeOffensive},
		{0.1999, domain.ModeOffensive},
		{0.20, domain.ModeAggressive},
		{5.0, domain.ModeAggressive},
	}

	for _, tt := range tests {
		budget := SelectMode(tt.returnFrac, table)
		if budget.Mode != tt.expected {
			t.Errorf("SelectMode(%f) = %s, want %s", tt.returnFrac, budget.Mode, tt.expected)
		}
	}
}

func TestNormalModeBudget(t *testing.T) {
	budget := SelectMode(0.02, DefaultModeTable())
	if budget.Mode != domain.ModeNormal {
		t.Fatalf("Expected NORMAL, got %s", budget.Mode)
	}
	if budget.MaxRiskPct != 0.02 || budget.MaxLeverage != 5 || budget.MaxPositions != 3 {
		t.Errorf("Unexpected NORMAL budget: risk=%f leverage=%d positions=%d",
			budget.MaxRiskPct, budget.MaxLeverage, budget.MaxPositions)
	}
}

func TestAnalyzePerformance(t *testing.T) {
	closed := closedPositions(100, -50, 100, 100, -50)
	m := AnalyzePerformance(closed, 1000)

	if m.TotalPositions != 5 || m.Wins != 3 || m.Losses != 2 {
		t.Errorf("counts = %d/%d/%d, want 5/3/2", m.TotalPositions, m.Wins, m.Losses)
	}
	if !almostEqual(m.WinRate, 0.6) {
		t.Errorf("WinRate = %f, want 0.6", m.WinRate)
	}
	if m.GrossProfit != 300 || m.GrossLoss != 100 || m.NetProfit != 200 {
		t.Errorf("gross = %f/%f net = %f, want 300/100/200", m.GrossProfit, m.GrossLoss, m.NetProfit)
	}
	if !almostEqual(m.ProfitFactor, 3) {
		t.Errorf("ProfitFactor = %f, want 3", m.ProfitFactor)
	}
	if m.AverageWin != 100 || m.AverageLoss != -50 {
		t.Errorf("averages = %f/%f, want 100/-50", m.AverageWin, m.AverageLoss)
	}
	if m.LargestWin != 100 || m.LargestLoss != -50 {
		t.Errorf("largest = %f/%f, want 100/-50", m.LargestWin, m.LargestLoss)
	}
	if m.LongestWinStreak != 2 || m.LongestLossStreak != 1 {
		t.Errorf("streaks = %d/%d, want 2/1", m.LongestWinStreak, m.LongestLossStreak)
	}
	// Equity dips to 1050 off a 1100 peak, then to 1200 off a 1250 peak.
	if !almostEqual(m.MaxDrawdown, 50.0/1100.0) {
		t.Errorf("MaxDrawdown = %f, want %f", m.MaxDrawdown, 50.0/1100.0)
	}
	if !almostEqual(m.CurrentDrawdown, 50.0/1250.0) {
		t.Errorf("CurrentDrawdown = %f, want %f", m.CurrentDrawdown, 50.0/1250.0)
	}
}

func TestAnalyzePerformanceNoLosses(t *testing.T) {
	m := AnalyzePerformance(closedPositions(10, 20), 1000)
	if m.ProfitFactor != 0 {
		t.Errorf("ProfitFactor = %f, want 0 when there are no losses", m.ProfitFactor)
	}
	if m.MaxDrawdown != 0 || m.CurrentDrawdown != 0 {
		t.Errorf("Expected zero drawdowns, got max=%f current=%f", m.MaxDrawdown, m.CurrentDrawdown)
	}
}

func TestAnalyzePerformanceEmpty(t *testing.T) {
	m := AnalyzePerformance(nil, 1000)
	if m.TotalPositions != 0 || m.WinRate != 0 || m.ProfitFactor != 0 {
		t.Errorf("Expected zero-valued metrics for empty history, got %+v", m)
	}
}

func TestSharpeRequiresMinimumHistory(t *testing.T) {
	p := &Profiler{cfg: DefaultConfig(1000)}
	// Four closed positions: one short of the minimum.
	if got := p.sharpeRatio(closedPositions(10, 20, -5, 15)); got != 0 {
		t.Errorf("sharpeRatio = %f, want 0 below the minimum history", got)
	}
	if got := p.sharpeRatio(nil); got != 0 {
		t.Errorf("sharpeRatio = %f, want 0 for empty history", got)
	}
}

func TestSharpeComputation(t *testing.T) {
	cfg := DefaultConfig(1000)
	cfg.RiskFreeRatePerTrade = 0
	p := &Profiler{cfg: cfg}

	// Per-trade returns: 0.1, -100/1100, 0.1, -100/1100, 0.1 against the
	// running capital. Mean/stddev * 10 works out to about 2.5273.
	got := p.sharpeRatio(closedPositions(100, -100, 100, -100, 100))
	if !almostEqual(got, 2.5273) {
		t.Errorf("sharpeRatio = %f, want 2.5273", got)
	}
}

func TestAssessRisk(t *testing.T) {
	p := &Profiler{cfg: DefaultConfig(1000)}
	balance := &ports.Balance{Asset: "USDT", Free: 800, Total: 1000}

	tests := []struct {
		name     string
		live     []*ports.PositionRisk
		lev      float64
		expected LiquidationRisk
	}{
		{
			"moderate leverage is low risk",
			[]*ports.PositionRisk{{Notional: 2000, MarkPrice: 100, LiquidationPrice: 50}},
			2, RiskLow,
		},
		{
			"portfolio leverage above 3x is medium",
			[]*ports.PositionRisk{{Notional: 4000, MarkPrice: 100, LiquidationPrice: 50}},
			4, RiskMedium,
		},
		{
			"portfolio leverage above 5x is high",
			[]*ports.PositionRisk{{Notional: 6000, MarkPrice: 100, LiquidationPrice: 50}},
			6, RiskHigh,
		},
		{
			"position within 20% of liquidation is medium",
			[]*ports.PositionRisk{{Notional: 1000, MarkPrice: 100, LiquidationPrice: 85}},
			1, RiskMedium,
		},
		{
			"position within 10% of liquidation is high",
			[]*ports.PositionRisk{{Notional: 1000, MarkPrice: 100, LiquidationPrice: 95}},
			1, RiskHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := p.assessRisk(balance, tt.live)
			if !almostEqual(m.PortfolioLeverage, tt.lev) {
				t.Errorf("PortfolioLeverage = %f, want %f", m.PortfolioLeverage, tt.lev)
			}
			if m.LiquidationRisk != tt.expected {
				t.Errorf("LiquidationRisk = %s, want %s", m.LiquidationRisk, tt.expected)
			}
		})
	}

	m := p.assessRisk(balance, nil)
	if m.LiquidationRisk != RiskLow || m.PortfolioLeverage != 0 {
		t.Errorf("Expected flat book to be low risk, got %+v", m)
	}
	if !almostEqual(m.MarginUsedPct, 20) {
		t.Errorf("MarginUsedPct = %f, want 20", m.MarginUsedPct)
	}
}

// stubRepo implements ports.PositionRepository over fixed slices.
type stubRepo struct {
	closed []*domain.Position
	open   []*domain.Position
}

func (s *stubRepo) CreatePosition(ctx context.Context, pos *domain.Position) (int64, error) {
	return 0, errors.New("not implemented")
}
func (s *stubRepo) UpdatePosition(ctx context.Context, pos *domain.Position) error {
	return errors.New("not implemented")
}
func (s *stubRepo) FindOpenBySymbol(ctx context.Context, symbol domain.Symbol) (*domain.Position, error) {
	return nil, nil
}
func (s *stubRepo) FindOpen(ctx context.Context) ([]*domain.Position, error) { return s.open, nil }
func (s *stubRepo) FindClosed(ctx context.Context) ([]*domain.Position, error) {
	return s.closed, nil
}
func (s *stubRepo) FindClosedSince(ctx context.Context, since time.Time) ([]*domain.Position, error) {
	return nil, nil
}

// stubGateway implements ports.ExchangeGateway with fixed balance data.
type stubGateway struct {
	balance *ports.Balance
	live    []*ports.PositionRisk
}

func (s *stubGateway) GetBalance(ctx context.Context, asset string) (*ports.Balance, error) {
	return s.balance, nil
}
func (s *stubGateway) GetPositions(ctx context.Context, symbols []domain.Symbol) ([]*ports.PositionRisk, error) {
	return s.live, nil
}
func (s *stubGateway) GetTickerPrice(ctx context.Context, symbol domain.Symbol) (float64, error) {
	return 0, errors.New("not implemented")
}
func (s *stubGateway) GetKlines(ctx context.Context, symbol domain.Symbol, interval domain.Timeframe, limit int) ([]*domain.Kline, error) {
	return nil, errors.New("not implemented")
}
func (s *stubGateway) GetOpenInterest(ctx context.Context, symbol domain.Symbol) (float64, error) {
	return 0, errors.New("not implemented")
}
func (s *stubGateway) GetFundingRate(ctx context.Context, symbol domain.Symbol) (float64, error) {
	return 0, errors.New("not implemented")
}
func (s *stubGateway) SetLeverage(ctx context.Context, symbol domain.Symbol, leverage int) error {
	return nil
}
func (s *stubGateway) PlaceMarketOrder(ctx context.Context, symbol domain.Symbol, side domain.OrderSide, quantity string, reduceOnly bool) (*ports.OrderResponse, error) {
	return nil, errors.New("not implemented")
}
func (s *stubGateway) PlaceStopMarketOrder(ctx context.Context, symbol domain.Symbol, side domain.OrderSide, quantity string, stopPrice string) (*ports.OrderResponse, error) {
	return nil, errors.New("not implemented")
}
func (s *stubGateway) PlaceTakeProfitMarketOrder(ctx context.Context, symbol domain.Symbol, side domain.OrderSide, quantity string, stopPrice string) (*ports.OrderResponse, error) {
	return nil, errors.New("not implemented")
}
func (s *stubGateway) GetOpenOrders(ctx context.Context, symbol domain.Symbol) ([]*ports.OpenOrder, error) {
	return nil, nil
}
func (s *stubGateway) CancelOrder(ctx context.Context, symbol domain.Symbol, orderID string) error {
	return nil
}

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func TestBuild(t *testing.T) {
	repo := &stubRepo{
		// Net +20 on 500 initial capital: +4% return, NORMAL mode.
		closed: closedPositions(30, -10),
	}
	gw := &stubGateway{balance: &ports.Balance{Asset: "USDT", Free: 520, Total: 520}}

	p, err := NewProfiler(DefaultConfig(500), gw, repo, noopLogger{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	profile, err := p.Build(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if profile.TradingMode != domain.ModeNormal {
		t.Errorf("TradingMode = %s, want NORMAL", profile.TradingMode)
	}
	if profile.MaxRiskPct != 0.02 || profile.MaxLeverage != 5 || profile.MaxPositions != 3 {
		t.Errorf("Unexpected budget: %+v", profile)
	}
	if !almostEqual(profile.ReturnPct, 0.04) {
		t.Errorf("ReturnPct = %f, want 0.04", profile.ReturnPct)
	}
	if profile.SharpeRatio != 0 {
		t.Errorf("SharpeRatio = %f, want 0 with only two closed positions", profile.SharpeRatio)
	}
	if profile.Performance.TotalPositions != 2 {
		t.Errorf("TotalPositions = %d, want 2", profile.Performance.TotalPositions)
	}
}

func TestNewProfilerValidation(t *testing.T) {
	gw := &stubGateway{}
	repo := &stubRepo{}

	if _, err := NewProfiler(DefaultConfig(1000), nil, repo, noopLogger{}); err == nil {
		t.Error("Expected error for nil gateway")
	}
	if _, err := NewProfiler(DefaultConfig(0), gw, repo, noopLogger{}); err == nil {
		t.Error("Expected error for non-positive initial capital")
	}

	cfg := DefaultConfig(1000)
	cfg.ModeTable = cfg.ModeTable[:4] // drops the catch-all row
	if _, err := NewProfiler(cfg, gw, repo, noopLogger{}); err == nil {
		t.Error("Expected error for mode table without catch-all")
	}
}
