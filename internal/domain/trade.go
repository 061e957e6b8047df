package domain

import "time"

// Trade records one attempted action for one symbol within one evaluation
// cycle. It is created PENDING before the guard pipeline runs and is
// immutable once it reaches a terminal status.
type Trade struct {
	ID        int64
	Symbol    Symbol
	Operation Operation
	Status    TradeStatus

	// Requested parameters, by operation.
	ReqAmount     float64 // BUY: base-asset amount
	ReqLeverage   int     // BUY
	ReqStopLoss   float64 // BUY / HOLD adjustment (0 = absent)
	ReqTakeProfit float64 // BUY / HOLD adjustment (0 = absent)
	ReqPercentage float64 // SELL: percentage of the open position, (0,100]

	// Execution outcome.
	ExecutedPrice  float64
	ExecutedAmount float64
	ExecutedAt     time.Time
	Error          string // Guard rejection or gateway fault, human readable

	// Back-reference to the position this trade created or affected.
	PositionID int64

	CreatedAt time.Time
}

// IsTerminal reports whether the trade has reached a final status.
func (t *Trade) IsTerminal() bool {
	switch t.Status {
	case TradeFilled, TradePartial, TradeFailed, TradeCanceled:
		return true
	}
	return false
}
