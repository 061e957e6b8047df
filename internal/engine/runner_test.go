package engine

import (
	"context"
	"testing"
	"time"

	"leverbot/internal/advisor"
	"leverbot/internal/domain"
	"leverbot/internal/ports"
	"leverbot/internal/riskprofile"
	"leverbot/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cycleGateway serves synthetic klines on top of the recording gateway so
// the aggregator can evaluate.
type cycleGateway struct {
	recordingGateway
	klines []*domain.Kline
}

func (g *cycleGateway) GetKlines(ctx context.Context, symbol domain.Symbol, interval domain.Timeframe, limit int) ([]*domain.Kline, error) {
	return g.klines, nil
}

func rampKlines(n int) []*domain.Kline {
	out := make([]*domain.Kline, n)
	for i := range out {
		c := 2000 + float64(i)
		out[i] = &domain.Kline{High: c + 1, Low: c - 1, Open: c, Close: c, Volume: 100}
	}
	return out
}

func TestRunCycleIsolatesSymbolFailures(t *testing.T) {
	logger := &mockLogger{}
	ledger := &memLedger{}
	gw := &cycleGateway{
		recordingGateway: recordingGateway{price: 2059, balance: &ports.Balance{Asset: "USDT", Free: 500, Total: 500}},
		klines:           rampKlines(60),
	}

	eng, err := New(DefaultLimits(), "USDT", true, gw, ledger, ledger, logger)
	require.NoError(t, err)
	aggregator, err := signal.NewAggregator(signal.DefaultConfig(), gw, logger)
	require.NoError(t, err)
	profiler, err := riskprofile.NewProfiler(riskprofile.DefaultConfig(500), gw, ledger, logger)
	require.NoError(t, err)
	runner, err := NewRunner(eng, aggregator, profiler, logger, time.Minute)
	require.NoError(t, err)

	results, err := runner.RunCycle(context.Background(), []SymbolDecision{
		{Symbol: "ETHUSDT", Decision: &advisor.Decision{Operation: domain.OpHold}},
		// Fails: no open position to sell.
		{Symbol: "BTCUSDT", Decision: sellDecision(50)},
		{Symbol: "SOLUSDT", Decision: &advisor.Decision{Operation: domain.OpHold}},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results["ETHUSDT"].Success)
	assert.False(t, results["BTCUSDT"].Success)
	assert.Contains(t, results["BTCUSDT"].Error, "no open position")
	assert.True(t, results["SOLUSDT"].Success, "a failed symbol must not abort later symbols")
}

func TestNewRunnerValidation(t *testing.T) {
	if _, err := NewRunner(nil, nil, nil, &mockLogger{}, time.Minute); err == nil {
		t.Error("Expected error for missing dependencies")
	}
}
