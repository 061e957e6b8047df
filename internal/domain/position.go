package domain

import "time"

// Position is the authoritative record of one open or closed market
// exposure. Invariant: at most one OPEN position per symbol. Created by a
// successful Buy; mutated by partial Sells and Hold adjustments; closed by
// a 100%-percentage Sell.
type Position struct {
	ID          int64
	Symbol      Symbol
	Status      PositionStatus
	EntryPrice  float64 // Average fill price at entry
	EntryAmount float64 // Remaining size; decreases on partial exits
	Leverage    int     // Leverage used at entry

	// Trailing protection levels; adjusted by Hold operations.
	CurrentStopLoss   float64
	CurrentTakeProfit float64

	// Running realized P&L, accumulated across partial exits.
	RealizedPnL float64

	// Set on full close.
	ExitPrice  float64
	ExitAmount float64
	ExitReason ExitReason

	OpenedAt time.Time
	ClosedAt time.Time

	// Exchange order bookkeeping (nullable in DB).
	EntryOrderID      *string
	StopLossOrderID   *string
	TakeProfitOrderID *string
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// Notional returns the current notional exposure at the given mark price.
func (p *Position) Notional(markPrice float64) float64 {
	return p.EntryAmount * markPrice
}
