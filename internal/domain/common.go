package domain

// Operation is the action proposed by the external advisor.
type Operation string

const (
	OpBuy  Operation = "BUY"
	OpSell Operation = "SELL"
	OpHold Operation = "HOLD"
)

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen       PositionStatus = "OPEN"
	StatusClosed     PositionStatus = "CLOSED"
	StatusLiquidated PositionStatus = "LIQUIDATED"
)

// TradeStatus tracks the lifecycle of one attempted action.
// Transitions are owned exclusively by the execution engine:
// PENDING -> EXECUTING -> {FILLED | PARTIAL | FAILED | CANCELED}.
type TradeStatus string

const (
	TradePending   TradeStatus = "PENDING"
	TradeExecuting TradeStatus = "EXECUTING"
	TradeFilled    TradeStatus = "FILLED"
	TradePartial   TradeStatus = "PARTIAL"
	TradeFailed    TradeStatus = "FAILED"
	TradeCanceled  TradeStatus = "CANCELED"
)

// ExitReason indicates why a position was closed.
type ExitReason string

const (
	ExitReasonSignal      ExitReason = "SIGNAL"
	ExitReasonStopLoss    ExitReason = "SL"
	ExitReasonTakeProfit  ExitReason = "TP"
	ExitReasonLiquidation ExitReason = "LIQUIDATION"
	ExitReasonManual      ExitReason = "MANUAL"
	ExitReasonUnknown     ExitReason = "UNKNOWN"
)

// Timeframe is a kline interval understood by the exchange gateway.
type Timeframe string

const (
	TimeframeM15 Timeframe = "15m"
	TimeframeH4  Timeframe = "4h"
	TimeframeD1  Timeframe = "1d"
)

// Recommendation is the discrete bucket a confluence score maps to.
type Recommendation string

const (
	StrongBuy  Recommendation = "STRONG_BUY"
	RecBuy     Recommendation = "BUY"
	Neutral    Recommendation = "NEUTRAL"
	RecSell    Recommendation = "SELL"
	StrongSell Recommendation = "STRONG_SELL"
)

// TradingMode is the discrete risk budget selected by trailing account return.
type TradingMode string

const (
	ModeSurvival   TradingMode = "SURVIVAL"
	ModeDefensive  TradingMode = "DEFENSIVE"
	ModeNormal     TradingMode = "NORMAL"
	ModeOffensive  TradingMode = "OFFENSIVE"
	ModeAggressive TradingMode = "AGGRESSIVE"
)
