package ports

import (
	"context"
	"time"

	"leverbot/internal/domain"
)

// Balance holds the account's cash state for the configured margin asset.
type Balance struct {
	Asset string  // Margin asset (e.g., "USDT")
	Free  float64 // Cash available for new margin
	Total float64 // Wallet balance including margin in use
}

// OrderResponse represents the essential details returned after placing an order.
type OrderResponse struct {
	OrderID       string    // Exchange's order ID
	Symbol        domain.Symbol
	ClientOrderID string    // User-defined order ID
	AvgPrice      float64   // Average filled price
	OrigQuantity  float64   // Original quantity requested
	ExecutedQty   float64   // Quantity filled
	Status        string    // Order status (e.g., NEW, FILLED, CANCELED)
	Type          string    // Order type (e.g., MARKET, STOP_MARKET)
	Side          domain.OrderSide
	ReduceOnly    bool
	Timestamp     time.Time // Time the order response was generated
}

// PositionRisk represents the live exchange-side view of an open position.
type PositionRisk struct {
	Symbol           domain.Symbol
	PositionAmt      float64 // Positive for long, negative for short
	EntryPrice       float64
	MarkPrice        float64
	UnRealizedProfit float64
	LiquidationPrice float64
	Leverage         int
	Notional         float64
	IsolatedMargin   float64
}

// OpenOrder is a resting order on the exchange (protection orders included).
type OpenOrder struct {
	OrderID   string
	Symbol    domain.Symbol
	Type      string // MARKET, STOP_MARKET, TAKE_PROFIT_MARKET, ...
	Side      domain.OrderSide
	StopPrice float64
	Quantity  float64
}

// ExchangeGateway defines the narrow client-side contract the core depends
// on. All calls are blocking I/O bounded only by the ctx deadline; failures
// propagate as errors wrapping the sentinels in errors.go, never as silent
// defaults.
type ExchangeGateway interface {
	// GetBalance retrieves free and total cash for the margin asset.
	GetBalance(ctx context.Context, asset string) (*Balance, error)

	// GetPositions retrieves live exposures for the given symbols.
	// Symbols with zero position amount are omitted.
	GetPositions(ctx context.Context, symbols []domain.Symbol) ([]*PositionRisk, error)

	// GetTickerPrice retrieves the last traded price for a symbol.
	GetTickerPrice(ctx context.Context, symbol domain.Symbol) (float64, error)

	// GetKlines retrieves up to limit historical klines, oldest first.
	GetKlines(ctx context.Context, symbol domain.Symbol, interval domain.Timeframe, limit int) ([]*domain.Kline, error)

	// GetOpenInterest retrieves the current open interest for a symbol.
	GetOpenInterest(ctx context.Context, symbol domain.Symbol) (float64, error)

	// GetFundingRate retrieves the current funding rate for a symbol.
	GetFundingRate(ctx context.Context, symbol domain.Symbol) (float64, error)

	// SetLeverage sets the leverage for a symbol.
	SetLeverage(ctx context.Context, symbol domain.Symbol, leverage int) error

	// PlaceMarketOrder places a market order. reduceOnly orders may only
	// decrease an existing position.
	PlaceMarketOrder(ctx context.Context, symbol domain.Symbol, side domain.OrderSide, quantity string, reduceOnly bool) (*OrderResponse, error)

	// PlaceStopMarketOrder places a STOP_MARKET protection order.
	PlaceStopMarketOrder(ctx context.Context, symbol domain.Symbol, side domain.OrderSide, quantity string, stopPrice string) (*OrderResponse, error)

	// PlaceTakeProfitMarketOrder places a TAKE_PROFIT_MARKET protection order.
	PlaceTakeProfitMarketOrder(ctx context.Context, symbol domain.Symbol, side domain.OrderSide, quantity string, stopPrice string) (*OrderResponse, error)

	// GetOpenOrders lists resting orders for a symbol.
	GetOpenOrders(ctx context.Context, symbol domain.Symbol) ([]*OpenOrder, error)

	// CancelOrder cancels an existing open order by its ID.
	CancelOrder(ctx context.Context, symbol domain.Symbol, orderID string) error
}
