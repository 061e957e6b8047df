// Package engine executes advisor decisions against the exchange through an
// ordered, short-circuiting admission pipeline, and owns all Position and
// Trade mutation. Nothing here is fatal to the process: every failure is
// scoped to one symbol's one cycle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"leverbot/internal/advisor"
	"leverbot/internal/domain"
	"leverbot/internal/monitoring"
	"leverbot/internal/ports"
	"leverbot/internal/riskprofile"
	"leverbot/internal/signal"

	"github.com/google/uuid"
)

// Engine runs the admission pipeline and performs admitted actions.
type Engine struct {
	limits      Limits
	gateway     ports.ExchangeGateway
	positions   ports.PositionRepository
	trades      ports.TradeRepository
	logger      ports.Logger
	marginAsset string
	dryRun      bool

	// Serializes guard evaluation and gateway/ledger mutation across
	// symbols within a cycle, so concurrent admissions cannot jointly
	// exceed the account-level ceilings.
	mu sync.Mutex
}

// New creates an execution engine. With dryRun set, every order call is
// replaced by a simulated fill at the current market price with a synthetic
// order id; guards, state transitions and ledger mutation run identically.
func New(limits Limits, marginAsset string, dryRun bool, gateway ports.ExchangeGateway, positions ports.PositionRepository, trades ports.TradeRepository, logger ports.Logger) (*Engine, error) {
	if gateway == nil || positions == nil || trades == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Engine")
	}
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid limits: %w", err)
	}
	if marginAsset == "" {
		return nil, fmt.Errorf("margin asset is required")
	}
	return &Engine{
		limits:      limits,
		gateway:     gateway,
		positions:   positions,
		trades:      trades,
		logger:      logger,
		marginAsset: marginAsset,
		dryRun:      dryRun,
	}, nil
}

// Execute runs one decision for one symbol through its pipeline. The
// returned result reports guard rejections and gateway faults as recorded
// reasons, not errors; the error return is reserved for ledger failures.
func (e *Engine) Execute(ctx context.Context, symbol domain.Symbol, decision *advisor.Decision, score *signal.Score, profile *riskprofile.AccountRiskProfile) (*ExecutionResult, error) {
	if profile == nil {
		return nil, fmt.Errorf("risk profile is required")
	}
	if err := advisor.Validate(decision); err != nil {
		e.logger.Warn(ctx, "Rejected malformed decision", map[string]interface{}{"symbol": symbol, "error": err.Error()})
		return failure(err.Error()), nil
	}

	stopLoss, takeProfit := e.resolveProtection(decision, score)

	trade := &domain.Trade{
		Symbol:    symbol,
		Operation: decision.Operation,
		Status:    domain.TradePending,
		CreatedAt: time.Now(),
	}
	switch decision.Operation {
	case domain.OpBuy:
		trade.ReqAmount = decision.Buy.Amount
		trade.ReqLeverage = decision.Buy.Leverage
		trade.ReqStopLoss = stopLoss
		trade.ReqTakeProfit = takeProfit
	case domain.OpSell:
		trade.ReqPercentage = decision.Sell.Percentage
	case domain.OpHold:
		trade.ReqStopLoss = stopLoss
		trade.ReqTakeProfit = takeProfit
	}

	id, err := e.trades.CreateTrade(ctx, trade)
	if err != nil {
		return nil, fmt.Errorf("create trade: %w", err)
	}
	trade.ID = id

	trade.Status = domain.TradeExecuting
	if err := e.trades.UpdateTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("update trade: %w", err)
	}

	result, err := e.dispatch(ctx, trade, decision, stopLoss, takeProfit, profile)
	if err != nil {
		// A trade must never strand in EXECUTING: record the failure on the
		// ledger before reporting it, so the next cycle sees a terminal row.
		e.abortTrade(ctx, trade, err)
		return nil, err
	}
	return result, nil
}

// dispatch runs the operation-specific pipeline with panic containment, so
// a panicking gateway or repository surfaces like any other fault.
func (e *Engine) dispatch(ctx context.Context, trade *domain.Trade, decision *advisor.Decision, stopLoss, takeProfit float64, profile *riskprofile.AccountRiskProfile) (result *ExecutionResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in execution pipeline: %v", rec)
		}
	}()

	switch decision.Operation {
	case domain.OpBuy:
		return e.executeBuy(ctx, trade, decision.Buy, stopLoss, takeProfit, profile)
	case domain.OpSell:
		return e.executeSell(ctx, trade, decision.Sell.Percentage)
	default:
		return e.executeHold(ctx, trade, decision)
	}
}

// abortTrade best-effort marks an in-flight trade terminal after an
// unexpected failure. A trade cut off by the cycle deadline is CANCELED;
// anything else is FAILED. Uses a cancellation-free context so the record
// is written even when the cause is the deadline itself.
func (e *Engine) abortTrade(ctx context.Context, trade *domain.Trade, cause error) {
	trade.Status = domain.TradeFailed
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		trade.Status = domain.TradeCanceled
	}
	trade.Error = cause.Error()
	if err := e.trades.UpdateTrade(context.WithoutCancel(ctx), trade); err != nil {
		e.logger.Error(ctx, err, "Failed to record aborted trade", map[string]interface{}{"tradeID": trade.ID, "cause": cause.Error()})
		return
	}
	monitoring.RecordTrade(string(trade.Symbol), string(trade.Operation), string(trade.Status))
	e.logger.Error(ctx, cause, "Trade aborted", map[string]interface{}{
		"symbol":    trade.Symbol,
		"operation": trade.Operation,
		"status":    trade.Status,
	})
}

// resolveProtection picks the stop-loss/take-profit for the action: explicit
// adjustments from the decision win, otherwise the aggregator's suggested
// levels apply to a Buy.
func (e *Engine) resolveProtection(decision *advisor.Decision, score *signal.Score) (stopLoss, takeProfit float64) {
	if decision.AdjustProfit != nil {
		if decision.AdjustProfit.StopLoss != nil {
			stopLoss = *decision.AdjustProfit.StopLoss
		}
		if decision.AdjustProfit.TakeProfit != nil {
			takeProfit = *decision.AdjustProfit.TakeProfit
		}
	}
	if decision.Operation == domain.OpBuy && score != nil {
		if stopLoss == 0 {
			stopLoss = score.SuggestedStopLoss
		}
		if takeProfit == 0 {
			takeProfit = score.SuggestedTakeProfit
		}
	}
	return stopLoss, takeProfit
}

func (e *Engine) executeBuy(ctx context.Context, trade *domain.Trade, buy *advisor.BuyParams, stopLoss, takeProfit float64, profile *riskprofile.AccountRiskProfile) (*ExecutionResult, error) {
	price, err := e.gateway.GetTickerPrice(ctx, trade.Symbol)
	if err != nil {
		monitoring.RecordGatewayFault("ticker")
		return e.failTrade(ctx, trade, fmt.Sprintf("fetch ticker: %v", err))
	}
	balance, err := e.gateway.GetBalance(ctx, e.marginAsset)
	if err != nil {
		monitoring.RecordGatewayFault("balance")
		return e.failTrade(ctx, trade, fmt.Sprintf("fetch balance: %v", err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.positions.FindOpenBySymbol(ctx, trade.Symbol)
	if err != nil {
		return nil, fmt.Errorf("find open position: %w", err)
	}
	daily, err := e.realizedSince(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	weekly, err := e.realizedSince(ctx, time.Now().Add(-7*24*time.Hour))
	if err != nil {
		return nil, err
	}

	bc := &buyContext{
		symbol:         trade.Symbol,
		buy:            buy,
		stopLoss:       stopLoss,
		takeProfit:     takeProfit,
		price:          price,
		equity:         balance.Total,
		freeCash:       balance.Free,
		existing:       existing,
		totalNotional:  profile.Risk.TotalNotional,
		dailyRealized:  daily,
		weeklyRealized: weekly,
		profile:        profile,
		limits:         e.limits,
	}

	if rej := runGuards(buyGuards(), bc); rej != nil {
		monitoring.RecordGuardRejection(rej.Guard)
		return e.failTrade(ctx, trade, rej.String())
	}

	if err := e.setLeverage(ctx, trade.Symbol, buy.Leverage); err != nil {
		monitoring.RecordGatewayFault("set_leverage")
		return e.failTrade(ctx, trade, fmt.Sprintf("set leverage: %v", err))
	}

	resp, err := e.marketOrder(ctx, trade.Symbol, domain.Buy, buy.Amount, false, price)
	if err != nil {
		monitoring.RecordGatewayFault("market_order")
		return e.failTrade(ctx, trade, fmt.Sprintf("place market buy: %v", err))
	}

	pos := &domain.Position{
		Symbol:            trade.Symbol,
		Status:            domain.StatusOpen,
		EntryPrice:        resp.AvgPrice,
		EntryAmount:       resp.ExecutedQty,
		Leverage:          buy.Leverage,
		CurrentStopLoss:   stopLoss,
		CurrentTakeProfit: takeProfit,
		OpenedAt:          resp.Timestamp,
		EntryOrderID:      &resp.OrderID,
	}
	posID, err := e.positions.CreatePosition(ctx, pos)
	if err != nil {
		return nil, fmt.Errorf("create position: %w", err)
	}
	pos.ID = posID

	result := e.fillTrade(ctx, trade, resp, posID)

	// Protection orders after the fill. A failure here leaves the position
	// unprotected, so it is logged loudly, but the fill itself stands.
	if stopLoss > 0 {
		if err := e.replaceStopLoss(ctx, pos, stopLoss); err != nil {
			monitoring.RecordGatewayFault("stop_order")
			e.logger.Error(ctx, err, "Position is open without a stop-loss order", map[string]interface{}{"symbol": pos.Symbol, "positionID": pos.ID})
		}
	}
	if takeProfit > 0 {
		if err := e.replaceTakeProfit(ctx, pos, takeProfit); err != nil {
			monitoring.RecordGatewayFault("take_profit_order")
			e.logger.Error(ctx, err, "Position is open without a take-profit order", map[string]interface{}{"symbol": pos.Symbol, "positionID": pos.ID})
		}
	}
	if err := e.positions.UpdatePosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("update position: %w", err)
	}

	e.logger.Info(ctx, "Buy admitted and filled", map[string]interface{}{
		"symbol":   pos.Symbol,
		"price":    resp.AvgPrice,
		"amount":   resp.ExecutedQty,
		"leverage": pos.Leverage,
		"orderID":  resp.OrderID,
		"dryRun":   e.dryRun,
	})
	return result, nil
}

func (e *Engine) executeSell(ctx context.Context, trade *domain.Trade, percentage float64) (*ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, err := e.positions.FindOpenBySymbol(ctx, trade.Symbol)
	if err != nil {
		return nil, fmt.Errorf("find open position: %w", err)
	}
	if pos == nil {
		return e.failTrade(ctx, trade, fmt.Sprintf("no open position for %s to sell", trade.Symbol))
	}

	price, err := e.gateway.GetTickerPrice(ctx, trade.Symbol)
	if err != nil {
		monitoring.RecordGatewayFault("ticker")
		return e.failTrade(ctx, trade, fmt.Sprintf("fetch ticker: %v", err))
	}

	remaining := pos.EntryAmount
	sellAmount := remaining * percentage / 100

	resp, err := e.marketOrder(ctx, trade.Symbol, domain.Sell, sellAmount, true, price)
	if err != nil {
		monitoring.RecordGatewayFault("market_order")
		return e.failTrade(ctx, trade, fmt.Sprintf("place reduce-only sell: %v", err))
	}

	filled := resp.ExecutedQty
	pnl := (resp.AvgPrice - pos.EntryPrice) * filled * float64(pos.Leverage)
	pos.RealizedPnL += pnl

	if percentage < 100 {
		pos.EntryAmount -= filled
	} else {
		pos.Status = domain.StatusClosed
		pos.ExitPrice = resp.AvgPrice
		pos.ExitAmount = remaining
		pos.ExitReason = domain.ExitReasonSignal
		pos.ClosedAt = resp.Timestamp
		pos.EntryAmount = 0
		e.cancelProtectionOrders(ctx, pos)
	}
	if err := e.positions.UpdatePosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("update position: %w", err)
	}

	result := e.fillTrade(ctx, trade, resp, pos.ID)
	e.logger.Info(ctx, "Sell filled", map[string]interface{}{
		"symbol":     pos.Symbol,
		"percentage": percentage,
		"amount":     filled,
		"price":      resp.AvgPrice,
		"realized":   pnl,
		"status":     pos.Status,
		"dryRun":     e.dryRun,
	})
	return result, nil
}

func (e *Engine) executeHold(ctx context.Context, trade *domain.Trade, decision *advisor.Decision) (*ExecutionResult, error) {
	if !decision.HasAdjustments() {
		return e.fillNoop(ctx, trade, "")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos, err := e.positions.FindOpenBySymbol(ctx, trade.Symbol)
	if err != nil {
		return nil, fmt.Errorf("find open position: %w", err)
	}
	if pos == nil {
		// Benign: an adjustment with nothing to adjust is a wait, not an error.
		return e.fillNoop(ctx, trade, "no open position; protection adjustment skipped")
	}

	if decision.AdjustProfit.StopLoss != nil {
		if err := e.replaceStopLoss(ctx, pos, *decision.AdjustProfit.StopLoss); err != nil {
			monitoring.RecordGatewayFault("stop_order")
			return e.failTrade(ctx, trade, fmt.Sprintf("adjust stop-loss: %v", err))
		}
	}
	if decision.AdjustProfit.TakeProfit != nil {
		if err := e.replaceTakeProfit(ctx, pos, *decision.AdjustProfit.TakeProfit); err != nil {
			monitoring.RecordGatewayFault("take_profit_order")
			return e.failTrade(ctx, trade, fmt.Sprintf("adjust take-profit: %v", err))
		}
	}
	if err := e.positions.UpdatePosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("update position: %w", err)
	}

	e.logger.Info(ctx, "Protection levels adjusted", map[string]interface{}{
		"symbol":     pos.Symbol,
		"stopLoss":   pos.CurrentStopLoss,
		"takeProfit": pos.CurrentTakeProfit,
		"dryRun":     e.dryRun,
	})
	return e.fillNoop(ctx, trade, "")
}

// realizedSince sums realized P&L over positions closed at or after the
// given time, for the rolling loss-floor guards.
func (e *Engine) realizedSince(ctx context.Context, since time.Time) (float64, error) {
	closed, err := e.positions.FindClosedSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("find closed positions since %s: %w", since.Format(time.RFC3339), err)
	}
	var sum float64
	for _, pos := range closed {
		sum += pos.RealizedPnL
	}
	return sum, nil
}

// marketOrder places a market order, or simulates the fill at the given
// price under dry run.
func (e *Engine) marketOrder(ctx context.Context, symbol domain.Symbol, side domain.OrderSide, amount float64, reduceOnly bool, price float64) (*ports.OrderResponse, error) {
	if e.dryRun {
		return e.simulatedFill(symbol, side, "MARKET", amount, price, reduceOnly), nil
	}
	return e.gateway.PlaceMarketOrder(ctx, symbol, side, formatQty(amount), reduceOnly)
}

// replaceStopLoss cancels any resting stop order and places a fresh one at
// the new level, then updates the position's bookkeeping. Never additive.
func (e *Engine) replaceStopLoss(ctx context.Context, pos *domain.Position, stop float64) error {
	if pos.StopLossOrderID != nil && !e.dryRun {
		if err := e.gateway.CancelOrder(ctx, pos.Symbol, *pos.StopLossOrderID); err != nil {
			return fmt.Errorf("cancel stop order %s: %w", *pos.StopLossOrderID, err)
		}
	}
	var resp *ports.OrderResponse
	var err error
	if e.dryRun {
		resp = e.simulatedFill(pos.Symbol, domain.Sell, "STOP_MARKET", pos.EntryAmount, stop, true)
	} else {
		resp, err = e.gateway.PlaceStopMarketOrder(ctx, pos.Symbol, domain.Sell, formatQty(pos.EntryAmount), formatQty(stop))
		if err != nil {
			return fmt.Errorf("place stop order: %w", err)
		}
	}
	pos.CurrentStopLoss = stop
	pos.StopLossOrderID = &resp.OrderID
	return nil
}

// replaceTakeProfit mirrors replaceStopLoss for the take-profit side.
func (e *Engine) replaceTakeProfit(ctx context.Context, pos *domain.Position, target float64) error {
	if pos.TakeProfitOrderID != nil && !e.dryRun {
		if err := e.gateway.CancelOrder(ctx, pos.Symbol, *pos.TakeProfitOrderID); err != nil {
			return fmt.Errorf("cancel take-profit order %s: %w", *pos.TakeProfitOrderID, err)
		}
	}
	var resp *ports.OrderResponse
	var err error
	if e.dryRun {
		resp = e.simulatedFill(pos.Symbol, domain.Sell, "TAKE_PROFIT_MARKET", pos.EntryAmount, target, true)
	} else {
		resp, err = e.gateway.PlaceTakeProfitMarketOrder(ctx, pos.Symbol, domain.Sell, formatQty(pos.EntryAmount), formatQty(target))
		if err != nil {
			return fmt.Errorf("place take-profit order: %w", err)
		}
	}
	pos.CurrentTakeProfit = target
	pos.TakeProfitOrderID = &resp.OrderID
	return nil
}

// cancelProtectionOrders best-effort cancels the position's resting SL/TP
// orders on close. Cancellation failures are logged, not propagated: the
// position is already flat.
func (e *Engine) cancelProtectionOrders(ctx context.Context, pos *domain.Position) {
	for _, orderID := range []*string{pos.StopLossOrderID, pos.TakeProfitOrderID} {
		if orderID == nil {
			continue
		}
		if !e.dryRun {
			if err := e.gateway.CancelOrder(ctx, pos.Symbol, *orderID); err != nil {
				monitoring.RecordGatewayFault("cancel_order")
				e.logger.Warn(ctx, "Failed to cancel protection order on close", map[string]interface{}{"symbol": pos.Symbol, "orderID": *orderID, "error": err.Error()})
			}
		}
	}
	pos.StopLossOrderID = nil
	pos.TakeProfitOrderID = nil
}

func (e *Engine) setLeverage(ctx context.Context, symbol domain.Symbol, leverage int) error {
	if e.dryRun {
		return nil
	}
	return e.gateway.SetLeverage(ctx, symbol, leverage)
}

// simulatedFill fabricates the order response a dry-run action would have
// received: the full amount at the given price under a synthetic order id.
func (e *Engine) simulatedFill(symbol domain.Symbol, side domain.OrderSide, orderType string, amount, price float64, reduceOnly bool) *ports.OrderResponse {
	return &ports.OrderResponse{
		OrderID:      "dryrun-" + uuid.NewString(),
		Symbol:       symbol,
		AvgPrice:     price,
		OrigQuantity: amount,
		ExecutedQty:  amount,
		Status:       "FILLED",
		Type:         orderType,
		Side:         side,
		ReduceOnly:   reduceOnly,
		Timestamp:    time.Now(),
	}
}

// fillTrade records the execution outcome on the trade and returns the
// caller-facing result.
func (e *Engine) fillTrade(ctx context.Context, trade *domain.Trade, resp *ports.OrderResponse, positionID int64) *ExecutionResult {
	trade.Status = domain.TradeFilled
	if resp.OrigQuantity > 0 && resp.ExecutedQty < resp.OrigQuantity {
		trade.Status = domain.TradePartial
	}
	trade.ExecutedPrice = resp.AvgPrice
	trade.ExecutedAmount = resp.ExecutedQty
	trade.ExecutedAt = resp.Timestamp
	trade.PositionID = positionID
	if err := e.trades.UpdateTrade(ctx, trade); err != nil {
		e.logger.Error(ctx, err, "Failed to record trade fill", map[string]interface{}{"tradeID": trade.ID})
	}
	monitoring.RecordTrade(string(trade.Symbol), string(trade.Operation), string(trade.Status))
	return &ExecutionResult{
		Success:        true,
		OrderID:        resp.OrderID,
		ExecutedPrice:  resp.AvgPrice,
		ExecutedAmount: resp.ExecutedQty,
	}
}

// fillNoop marks a trade FILLED with no execution, optionally carrying an
// explanatory note.
func (e *Engine) fillNoop(ctx context.Context, trade *domain.Trade, note string) (*ExecutionResult, error) {
	trade.Status = domain.TradeFilled
	trade.ExecutedAt = time.Now()
	trade.Error = note
	if err := e.trades.UpdateTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("update trade: %w", err)
	}
	monitoring.RecordTrade(string(trade.Symbol), string(trade.Operation), string(trade.Status))
	return &ExecutionResult{Success: true}, nil
}

// failTrade records a rejection or fault on the trade and halts the
// pipeline for this symbol.
func (e *Engine) failTrade(ctx context.Context, trade *domain.Trade, reason string) (*ExecutionResult, error) {
	trade.Status = domain.TradeFailed
	trade.Error = reason
	if err := e.trades.UpdateTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("update trade: %w", err)
	}
	monitoring.RecordTrade(string(trade.Symbol), string(trade.Operation), string(trade.Status))
	e.logger.Warn(ctx, "Trade failed", map[string]interface{}{
		"symbol":    trade.Symbol,
		"operation": trade.Operation,
		"reason":    reason,
	})
	return failure(reason), nil
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
