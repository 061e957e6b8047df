// Package sqlite persists the position/trade ledger. The ledger is the
// system of record for open exposure, realized P&L and trade outcomes; it
// is read fresh every cycle rather than cached.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"leverbot/internal/domain"
	"leverbot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.PositionRepository and ports.TradeRepository interfaces using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/leverbot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between the cycle writer and any reader.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite ledger ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist. The partial unique
// index enforces the one-open-position-per-symbol invariant at the storage
// layer as well as in the engine.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		status TEXT NOT NULL,
		entry_price REAL NOT NULL,
		entry_amount REAL NOT NULL,
		leverage INTEGER NOT NULL,
		current_stop_loss REAL NOT NULL DEFAULT 0,
		current_take_profit REAL NOT NULL DEFAULT 0,
		realized_pnl REAL NOT NULL DEFAULT 0,
		exit_price REAL DEFAULT NULL,
		exit_amount REAL DEFAULT NULL,
		exit_reason TEXT DEFAULT NULL,
		opened_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP DEFAULT NULL,
		entry_order_id TEXT DEFAULT NULL,
		stop_loss_order_id TEXT DEFAULT NULL,
		take_profit_order_id TEXT DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		operation TEXT NOT NULL,
		status TEXT NOT NULL,
		req_amount REAL NOT NULL DEFAULT 0,
		req_leverage INTEGER NOT NULL DEFAULT 0,
		req_stop_loss REAL NOT NULL DEFAULT 0,
		req_take_profit REAL NOT NULL DEFAULT 0,
		req_percentage REAL NOT NULL DEFAULT 0,
		executed_price REAL NOT NULL DEFAULT 0,
		executed_amount REAL NOT NULL DEFAULT 0,
		executed_at TIMESTAMP DEFAULT NULL,
		error TEXT NOT NULL DEFAULT '',
		position_id INTEGER NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_one_open_per_symbol
		ON positions (symbol) WHERE status = 'OPEN';
	CREATE INDEX IF NOT EXISTS idx_positions_status_closed_at ON positions (status, closed_at);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol_created_at ON trades (symbol, created_at);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- PositionRepository Implementation ---

const positionColumns = `
	id, symbol, status, entry_price, entry_amount, leverage,
	current_stop_loss, current_take_profit, realized_pnl,
	COALESCE(exit_price, 0), COALESCE(exit_amount, 0), exit_reason,
	opened_at, closed_at, entry_order_id, stop_loss_order_id, take_profit_order_id`

// CreatePosition saves a new position and returns its assigned ID.
func (r *Repository) CreatePosition(ctx context.Context, pos *domain.Position) (int64, error) {
	const query = `
	INSERT INTO positions (symbol, status, entry_price, entry_amount, leverage,
	                       current_stop_loss, current_take_profit, realized_pnl,
	                       opened_at, entry_order_id, stop_loss_order_id, take_profit_order_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		pos.Symbol, pos.Status, pos.EntryPrice, pos.EntryAmount, pos.Leverage,
		pos.CurrentStopLoss, pos.CurrentTakeProfit, pos.RealizedPnL,
		pos.OpenedAt, nullString(pos.EntryOrderID), nullString(pos.StopLossOrderID), nullString(pos.TakeProfitOrderID))
	if err != nil {
		return 0, fmt.Errorf("failed to insert position for symbol %s: %w", pos.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for position %s: %w", pos.Symbol, err)
	}
	pos.ID = id
	r.logger.Debug(ctx, "Position created", map[string]interface{}{"positionID": id, "symbol": pos.Symbol})
	return id, nil
}

// UpdatePosition modifies an existing position based on its ID.
func (r *Repository) UpdatePosition(ctx context.Context, pos *domain.Position) error {
	const query = `
	UPDATE positions
	SET status = ?, entry_price = ?, entry_amount = ?, leverage = ?,
	    current_stop_loss = ?, current_take_profit = ?, realized_pnl = ?,
	    exit_price = ?, exit_amount = ?, exit_reason = ?, closed_at = ?,
	    entry_order_id = ?, stop_loss_order_id = ?, take_profit_order_id = ?
	WHERE id = ?`

	var closedAt sql.NullTime
	if !pos.ClosedAt.IsZero() {
		closedAt = sql.NullTime{Time: pos.ClosedAt, Valid: true}
	}
	var exitReason sql.NullString
	if pos.ExitReason != "" {
		exitReason = sql.NullString{String: string(pos.ExitReason), Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		pos.Status, pos.EntryPrice, pos.EntryAmount, pos.Leverage,
		pos.CurrentStopLoss, pos.CurrentTakeProfit, pos.RealizedPnL,
		pos.ExitPrice, pos.ExitAmount, exitReason, closedAt,
		nullString(pos.EntryOrderID), nullString(pos.StopLossOrderID), nullString(pos.TakeProfitOrderID),
		pos.ID)
	if err != nil {
		return fmt.Errorf("failed to update position ID %d: %w", pos.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update position ID %d: %w", pos.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("position ID %d not found for update: %w", pos.ID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Position updated", map[string]interface{}{"positionID": pos.ID, "symbol": pos.Symbol, "status": pos.Status})
	return nil
}

// FindOpenBySymbol retrieves the currently open position for a given symbol, if any.
func (r *Repository) FindOpenBySymbol(ctx context.Context, symbol domain.Symbol) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE symbol = ? AND status = ?`

	row := r.db.QueryRowContext(ctx, query, symbol, domain.StatusOpen)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query open position for symbol %s: %w", symbol, err)
	}
	return pos, nil
}

// FindOpen retrieves all open positions.
func (r *Repository) FindOpen(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE status = ? ORDER BY opened_at ASC`
	return r.queryPositions(ctx, query, domain.StatusOpen)
}

// FindClosed retrieves all closed and liquidated positions ordered by close
// time ascending, the order the Sharpe computation consumes them in.
func (r *Repository) FindClosed(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE status != ? ORDER BY closed_at ASC`
	return r.queryPositions(ctx, query, domain.StatusOpen)
}

// FindClosedSince retrieves positions closed at or after the given time.
func (r *Repository) FindClosedSince(ctx context.Context, since time.Time) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE status != ? AND closed_at >= ? ORDER BY closed_at ASC`
	return r.queryPositions(ctx, query, domain.StatusOpen, since)
}

func (r *Repository) queryPositions(ctx context.Context, query string, args ...interface{}) ([]*domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// --- TradeRepository Implementation ---

// CreateTrade saves a new trade record and returns its assigned ID.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	const query = `
	INSERT INTO trades (symbol, operation, status, req_amount, req_leverage,
	                    req_stop_loss, req_take_profit, req_percentage,
	                    executed_price, executed_amount, executed_at, error,
	                    position_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var positionID sql.NullInt64
	if trade.PositionID != 0 {
		positionID = sql.NullInt64{Int64: trade.PositionID, Valid: true}
	}
	var executedAt sql.NullTime
	if !trade.ExecutedAt.IsZero() {
		executedAt = sql.NullTime{Time: trade.ExecutedAt, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		trade.Symbol, trade.Operation, trade.Status, trade.ReqAmount, trade.ReqLeverage,
		trade.ReqStopLoss, trade.ReqTakeProfit, trade.ReqPercentage,
		trade.ExecutedPrice, trade.ExecutedAmount, executedAt, trade.Error,
		positionID, trade.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade for symbol %s: %w", trade.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade %s: %w", trade.Symbol, err)
	}
	trade.ID = id
	r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": id, "symbol": trade.Symbol, "operation": trade.Operation})
	return id, nil
}

// UpdateTrade modifies an existing trade based on its ID.
func (r *Repository) UpdateTrade(ctx context.Context, trade *domain.Trade) error {
	const query = `
	UPDATE trades
	SET status = ?, executed_price = ?, executed_amount = ?, executed_at = ?,
	    error = ?, position_id = ?
	WHERE id = ?`

	var positionID sql.NullInt64
	if trade.PositionID != 0 {
		positionID = sql.NullInt64{Int64: trade.PositionID, Valid: true}
	}
	var executedAt sql.NullTime
	if !trade.ExecutedAt.IsZero() {
		executedAt = sql.NullTime{Time: trade.ExecutedAt, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		trade.Status, trade.ExecutedPrice, trade.ExecutedAmount, executedAt,
		trade.Error, positionID,
		trade.ID)
	if err != nil {
		return fmt.Errorf("failed to update trade ID %d: %w", trade.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update trade ID %d: %w", trade.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade ID %d not found for update: %w", trade.ID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Trade updated", map[string]interface{}{"tradeID": trade.ID, "status": trade.Status})
	return nil
}

// FindTradesBySymbol retrieves the most recent trades for a given symbol, up to a limit.
func (r *Repository) FindTradesBySymbol(ctx context.Context, symbol domain.Symbol, limit int) ([]*domain.Trade, error) {
	const query = `
	SELECT id, symbol, operation, status, req_amount, req_leverage,
	       req_stop_loss, req_take_profit, req_percentage,
	       executed_price, executed_amount, executed_at, error,
	       position_id, created_at
	FROM trades
	WHERE symbol = ? ORDER BY created_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for symbol %s: %w", symbol, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// scanPosition scans a row into a domain.Position struct.
func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var status string
	var exitReason sql.NullString
	var closedAt sql.NullTime
	var entryOrderID, stopLossOrderID, takeProfitOrderID sql.NullString
	err := s.Scan(
		&p.ID, &p.Symbol, &status, &p.EntryPrice, &p.EntryAmount, &p.Leverage,
		&p.CurrentStopLoss, &p.CurrentTakeProfit, &p.RealizedPnL,
		&p.ExitPrice, &p.ExitAmount, &exitReason,
		&p.OpenedAt, &closedAt, &entryOrderID, &stopLossOrderID, &takeProfitOrderID)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	p.Status = domain.PositionStatus(status)
	if exitReason.Valid {
		p.ExitReason = domain.ExitReason(exitReason.String)
	}
	if closedAt.Valid {
		p.ClosedAt = closedAt.Time
	}
	p.EntryOrderID = stringPtr(entryOrderID)
	p.StopLossOrderID = stringPtr(stopLossOrderID)
	p.TakeProfitOrderID = stringPtr(takeProfitOrderID)
	return p, nil
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var operation, status string
	var positionID sql.NullInt64
	var executedAt sql.NullTime
	err := s.Scan(
		&t.ID, &t.Symbol, &operation, &status, &t.ReqAmount, &t.ReqLeverage,
		&t.ReqStopLoss, &t.ReqTakeProfit, &t.ReqPercentage,
		&t.ExecutedPrice, &t.ExecutedAmount, &executedAt, &t.Error,
		&positionID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Operation = domain.Operation(operation)
	t.Status = domain.TradeStatus(status)
	if executedAt.Valid {
		t.ExecutedAt = executedAt.Time
	}
	if positionID.Valid {
		t.PositionID = positionID.Int64
	}
	return t, nil
}
