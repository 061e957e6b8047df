package engine

import (
	"context"
	"fmt"
	"time"

	"leverbot/internal/advisor"
	"leverbot/internal/domain"
	"leverbot/internal/monitoring"
	"leverbot/internal/ports"
	"leverbot/internal/riskprofile"
	"leverbot/internal/signal"
)

// SymbolDecision pairs one instrument with the advisor's proposed action
// for this cycle.
type SymbolDecision struct {
	Symbol   domain.Symbol
	Decision *advisor.Decision
}

// Runner drives one evaluation cycle: a single risk-profile snapshot,
// then per-symbol market evaluation and execution. It holds no state
// between invocations; the ledger is read fresh each cycle.
type Runner struct {
	engine      *Engine
	aggregator  *signal.Aggregator
	profiler    *riskprofile.Profiler
	logger      ports.Logger
	cycleBudget time.Duration
}

// NewRunner creates a cycle runner. cycleBudget bounds the whole cycle's
// wall clock; it is the only cancellation boundary.
func NewRunner(eng *Engine, aggregator *signal.Aggregator, profiler *riskprofile.Profiler, logger ports.Logger, cycleBudget time.Duration) (*Runner, error) {
	if eng == nil || aggregator == nil || profiler == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Runner")
	}
	if cycleBudget <= 0 {
		return nil, fmt.Errorf("cycle budget must be positive")
	}
	return &Runner{
		engine:      eng,
		aggregator:  aggregator,
		profiler:    profiler,
		logger:      logger,
		cycleBudget: cycleBudget,
	}, nil
}

// RunCycle processes the given decisions. The risk profile is computed once
// and treated as a consistent input across all symbols. A symbol whose
// pipeline fails (or panics) gets a failed result and the cycle continues;
// one symbol's failure never aborts the cycle. Only a profile failure,
// which leaves every symbol without its admission inputs, fails the cycle
// as a whole.
func (r *Runner) RunCycle(ctx context.Context, decisions []SymbolDecision) (map[domain.Symbol]*ExecutionResult, error) {
	start := time.Now()
	defer func() {
		monitoring.RecordCycle(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, r.cycleBudget)
	defer cancel()

	profile, err := r.profiler.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build risk profile: %w", err)
	}
	monitoring.UpdateAccount(profile.Risk.TotalEquity, profile.Risk.OpenPositions)

	results := make(map[domain.Symbol]*ExecutionResult, len(decisions))
	for _, sd := range decisions {
		results[sd.Symbol] = r.runSymbol(ctx, sd, profile)
	}

	r.logger.Info(ctx, "Cycle complete", map[string]interface{}{
		"symbols":  len(decisions),
		"duration": time.Since(start).String(),
		"mode":     profile.TradingMode,
	})
	return results, nil
}

// runSymbol executes one symbol's pipeline with panic isolation.
func (r *Runner) runSymbol(ctx context.Context, sd SymbolDecision, profile *riskprofile.AccountRiskProfile) (result *ExecutionResult) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic in symbol pipeline: %v", rec)
			r.logger.Error(ctx, err, "Symbol pipeline panicked", map[string]interface{}{"symbol": sd.Symbol})
			result = failure(err.Error())
		}
	}()

	score, err := r.evaluateSignal(ctx, sd.Symbol)
	if err != nil {
		r.logger.Error(ctx, err, "Market evaluation failed", map[string]interface{}{"symbol": sd.Symbol})
		return failure(fmt.Sprintf("market evaluation: %v", err))
	}

	result, err = r.engine.Execute(ctx, sd.Symbol, sd.Decision, score, profile)
	if err != nil {
		r.logger.Error(ctx, err, "Execution failed", map[string]interface{}{"symbol": sd.Symbol})
		return failure(err.Error())
	}
	return result
}

func (r *Runner) evaluateSignal(ctx context.Context, symbol domain.Symbol) (*signal.Score, error) {
	md, err := r.aggregator.Fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return r.aggregator.Evaluate(ctx, symbol, md)
}
