package ports

import (
	"context"
	"time"

	"leverbot/internal/domain"
)

// PositionRepository defines the interface for the position side of the
// ledger. The ledger is the only cross-cycle shared mutable resource and
// must be read fresh each cycle.
type PositionRepository interface {
	// CreatePosition saves a new position and returns its assigned ID.
	CreatePosition(ctx context.Context, pos *domain.Position) (int64, error)
	// UpdatePosition modifies an existing position.
	UpdatePosition(ctx context.Context, pos *domain.Position) error
	// FindOpenBySymbol retrieves the currently open position for a symbol.
	// Returns nil, nil if no open position is found.
	FindOpenBySymbol(ctx context.Context, symbol domain.Symbol) (*domain.Position, error)
	// FindOpen retrieves all open positions.
	FindOpen(ctx context.Context) ([]*domain.Position, error)
	// FindClosed retrieves all closed and liquidated positions ordered by
	// close time ascending (for performance and Sharpe computation).
	FindClosed(ctx context.Context) ([]*domain.Position, error)
	// FindClosedSince retrieves positions closed at or after the given time,
	// for the rolling daily/weekly realized-loss guards.
	FindClosedSince(ctx context.Context, since time.Time) ([]*domain.Position, error)
}

// TradeRepository defines the interface for the trade side of the ledger.
type TradeRepository interface {
	// CreateTrade saves a new trade record and returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error)
	// UpdateTrade modifies an existing trade (status transitions, fills).
	UpdateTrade(ctx context.Context, trade *domain.Trade) error
	// FindTradesBySymbol retrieves the most recent trades for a symbol.
	FindTradesBySymbol(ctx context.Context, symbol domain.Symbol, limit int) ([]*domain.Trade, error)
}
