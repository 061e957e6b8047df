package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"leverbot/internal/domain"
	"leverbot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "leverbot-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}

	return repo, cleanup
}

func strPtr(s string) *string { return &s }

func openPosition(symbol domain.Symbol) *domain.Position {
	return &domain.Position{
		Symbol:            symbol,
		Status:            domain.StatusOpen,
		EntryPrice:        2000.0,
		EntryAmount:       1.0,
		Leverage:          5,
		CurrentStopLoss:   1900.0,
		CurrentTakeProfit: 2200.0,
		OpenedAt:          time.Now().UTC(),
		EntryOrderID:      strPtr("100"),
		StopLossOrderID:   strPtr("101"),
		TakeProfitOrderID: strPtr("102"),
	}
}

func TestRepository_CreateAndFindPosition(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	pos := openPosition("ETHUSDT")
	id, err := repo.CreatePosition(ctx, pos)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))
	assert.Equal(t, id, pos.ID)

	found, err := repo.FindOpenBySymbol(ctx, "ETHUSDT")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, id, found.ID)
	assert.Equal(t, domain.StatusOpen, found.Status)
	assert.Equal(t, 2000.0, found.EntryPrice)
	assert.Equal(t, 1.0, found.EntryAmount)
	assert.Equal(t, 5, found.Leverage)
	assert.Equal(t, 1900.0, found.CurrentStopLoss)
	require.NotNil(t, found.StopLossOrderID)
	assert.Equal(t, "101", *found.StopLossOrderID)
	assert.Empty(t, found.ExitReason)

	missing, err := repo.FindOpenBySymbol(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, missing, "no open position must return nil, nil")
}

func TestRepository_RejectsSecondOpenPosition(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := repo.CreatePosition(ctx, openPosition("ETHUSDT"))
	require.NoError(t, err)

	// The partial unique index allows at most one OPEN row per symbol.
	_, err = repo.CreatePosition(ctx, openPosition("ETHUSDT"))
	assert.Error(t, err)

	// A different symbol is unaffected.
	_, err = repo.CreatePosition(ctx, openPosition("BTCUSDT"))
	assert.NoError(t, err)
}

func TestRepository_PositionLifecycle(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	pos := openPosition("ETHUSDT")
	_, err := repo.CreatePosition(ctx, pos)
	require.NoError(t, err)

	// Partial exit: size shrinks, realized P&L accumulates, stays OPEN.
	pos.EntryAmount = 0.6
	pos.RealizedPnL = 400.0
	require.NoError(t, repo.UpdatePosition(ctx, pos))

	found, err := repo.FindOpenBySymbol(ctx, "ETHUSDT")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 0.6, found.EntryAmount)
	assert.Equal(t, 400.0, found.RealizedPnL)

	// Full close.
	pos.Status = domain.StatusClosed
	pos.EntryAmount = 0
	pos.RealizedPnL = 1000.0
	pos.ExitPrice = 2200.0
	pos.ExitAmount = 0.6
	pos.ExitReason = domain.ExitReasonSignal
	pos.ClosedAt = time.Now().UTC()
	pos.StopLossOrderID = nil
	pos.TakeProfitOrderID = nil
	require.NoError(t, repo.UpdatePosition(ctx, pos))

	found, err = repo.FindOpenBySymbol(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Nil(t, found, "closed position must not be returned as open")

	closed, err := repo.FindClosed(ctx)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, domain.StatusClosed, closed[0].Status)
	assert.Equal(t, 2200.0, closed[0].ExitPrice)
	assert.Equal(t, 0.6, closed[0].ExitAmount)
	assert.Equal(t, domain.ExitReasonSignal, closed[0].ExitReason)
	assert.False(t, closed[0].ClosedAt.IsZero())
	assert.Nil(t, closed[0].StopLossOrderID)
}

func TestRepository_FindClosedOrderingAndSince(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC()
	closeTimes := []time.Time{
		now.Add(-48 * time.Hour),
		now.Add(-2 * time.Hour),
		now.Add(-30 * time.Minute),
	}
	// Insert out of order to prove the query sorts by close time.
	for _, i := range []int{1, 0, 2} {
		pos := openPosition(domain.Symbol("ETHUSDT"))
		pos.Status = domain.StatusClosed
		pos.RealizedPnL = float64(i * 10)
		pos.ClosedAt = closeTimes[i]
		_, err := repo.CreatePosition(ctx, pos)
		require.NoError(t, err)
		require.NoError(t, repo.UpdatePosition(ctx, pos))
	}

	closed, err := repo.FindClosed(ctx)
	require.NoError(t, err)
	require.Len(t, closed, 3)
	for i := 1; i < len(closed); i++ {
		assert.False(t, closed[i].ClosedAt.Before(closed[i-1].ClosedAt), "closed positions must be ordered by close time ascending")
	}

	recent, err := repo.FindClosedSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, recent, 2, "the 48h-old close must be filtered out")
}

func TestRepository_TradeLifecycle(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	trade := &domain.Trade{
		Symbol:        "ETHUSDT",
		Operation:     domain.OpBuy,
		Status:        domain.TradePending,
		ReqAmount:     1.0,
		ReqLeverage:   5,
		ReqStopLoss:   1900.0,
		ReqTakeProfit: 2200.0,
		CreatedAt:     time.Now().UTC(),
	}
	id, err := repo.CreateTrade(ctx, trade)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	trade.Status = domain.TradeFilled
	trade.ExecutedPrice = 2001.5
	trade.ExecutedAmount = 1.0
	trade.ExecutedAt = time.Now().UTC()
	trade.PositionID = 7
	require.NoError(t, repo.UpdateTrade(ctx, trade))

	trades, err := repo.FindTradesBySymbol(ctx, "ETHUSDT", 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.TradeFilled, trades[0].Status)
	assert.Equal(t, 2001.5, trades[0].ExecutedPrice)
	assert.Equal(t, int64(7), trades[0].PositionID)
	assert.False(t, trades[0].ExecutedAt.IsZero())
	assert.Equal(t, 5, trades[0].ReqLeverage)
}

func TestRepository_FindTradesRespectsLimitAndOrder(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		trade := &domain.Trade{
			Symbol:    "ETHUSDT",
			Operation: domain.OpHold,
			Status:    domain.TradeFilled,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		_, err := repo.CreateTrade(ctx, trade)
		require.NoError(t, err)
	}

	trades, err := repo.FindTradesBySymbol(ctx, "ETHUSDT", 3)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	for i := 1; i < len(trades); i++ {
		assert.True(t, trades[i].CreatedAt.Before(trades[i-1].CreatedAt), "trades must be newest first")
	}
}

func TestRepository_UpdateMissingRows(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	pos := openPosition("ETHUSDT")
	pos.ID = 999
	err := repo.UpdatePosition(ctx, pos)
	assert.True(t, errors.Is(err, ports.ErrNotFound))

	trade := &domain.Trade{ID: 999, Symbol: "ETHUSDT", Operation: domain.OpBuy, Status: domain.TradeFailed, CreatedAt: time.Now()}
	err = repo.UpdateTrade(ctx, trade)
	assert.True(t, errors.Is(err, ports.ErrNotFound))
}
