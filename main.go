package main

import (
	"context"
	"encoding/json"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"leverbot/config"
	"leverbot/internal/adapters/binanceclient"
	"leverbot/internal/adapters/logger"
	"leverbot/internal/adapters/sqlite"
	"leverbot/internal/advisor"
	"leverbot/internal/domain"
	"leverbot/internal/engine"
	"leverbot/internal/monitoring"
	"leverbot/internal/ports"
	"leverbot/internal/riskprofile"
	"leverbot/internal/signal"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger, err := logger.NewZapLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()

	// 4. Initialize Exchange Gateway (Binance Adapter)
	gateway, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	// 5. Initialize Signal Aggregator
	aggregator, err := signal.NewAggregator(signal.DefaultConfig(), gateway, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize signal aggregator")
		log.Fatalf("FATAL: Failed to initialize signal aggregator: %v", err)
	}

	// 6. Initialize Risk Profiler
	profilerCfg := riskprofile.DefaultConfig(cfg.InitialCapital)
	profilerCfg.MarginAsset = cfg.MarginAsset
	profiler, err := riskprofile.NewProfiler(profilerCfg, gateway, repo, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize risk profiler")
		log.Fatalf("FATAL: Failed to initialize risk profiler: %v", err)
	}

	// 7. Initialize Execution Engine and Runner
	limits := engine.DefaultLimits()
	limits.MaxLeverage = cfg.MaxLeverage
	limits.MinTradeNotional = cfg.MinTradeNotional
	limits.FreeCashReserveFrac = cfg.FreeCashReserveFrac
	limits.MaxMarginFrac = cfg.MaxMarginFrac
	limits.DailyLossLimitFrac = cfg.DailyLossLimitFrac
	limits.WeeklyLossLimitFrac = cfg.WeeklyLossLimitFrac
	limits.MaxPortfolioLeverage = cfg.MaxPortfolioLeverage
	limits.MinRewardRiskRatio = cfg.MinRewardRiskRatio
	limits.LiquidationBufferFrac = cfg.LiquidationBufferFrac

	eng, err := engine.New(limits, cfg.MarginAsset, cfg.DryRun, gateway, repo, repo, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize execution engine")
		log.Fatalf("FATAL: Failed to initialize execution engine: %v", err)
	}
	runner, err := engine.NewRunner(eng, aggregator, profiler, appLogger, cfg.CycleBudget)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize cycle runner")
		log.Fatalf("FATAL: Failed to initialize cycle runner: %v", err)
	}

	// 8. Metrics endpoint (optional)
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", monitoring.Handler())
			appLogger.Info(ctx, "Metrics endpoint listening", map[string]interface{}{"addr": cfg.MetricsAddr})
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLogger.Error(ctx, err, "Metrics endpoint failed")
			}
		}()
	}

	appLogger.Info(ctx, "Starting trading agent", map[string]interface{}{
		"symbols":  cfg.Symbols,
		"dryRun":   cfg.DryRun,
		"testnet":  cfg.IsTestnet,
		"interval": cfg.CycleInterval.String(),
	})

	// 9. Cycle loop until interrupted
	runCtx, stop := ossignal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.CycleInterval)
	defer ticker.Stop()

	for {
		runOnce(runCtx, runner, cfg, appLogger)

		select {
		case <-runCtx.Done():
			appLogger.Info(ctx, "Shutdown signal received, stopping")
			return
		case <-ticker.C:
		}
	}
}

// runOnce loads the current advisor decisions and executes one cycle.
func runOnce(ctx context.Context, runner *engine.Runner, cfg *config.Config, appLogger ports.Logger) {
	decisions := loadDecisions(ctx, cfg, appLogger)

	results, err := runner.RunCycle(ctx, decisions)
	if err != nil {
		appLogger.Error(ctx, err, "Cycle failed")
		return
	}
	for symbol, res := range results {
		if !res.Success {
			appLogger.Warn(ctx, "Symbol not executed", map[string]interface{}{"symbol": symbol, "reason": res.Error})
		}
	}
}

// loadDecisions reads the advisor decisions file, a JSON object mapping
// symbol to decision. Symbols without a decision, and all symbols when the
// file is absent, default to a plain HOLD. A malformed decision is logged
// and replaced by HOLD so the remaining symbols still execute.
func loadDecisions(ctx context.Context, cfg *config.Config, appLogger ports.Logger) []engine.SymbolDecision {
	hold := &advisor.Decision{Operation: domain.OpHold}

	raw, err := os.ReadFile(cfg.DecisionsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			appLogger.Error(ctx, err, "Failed to read decisions file", map[string]interface{}{"path": cfg.DecisionsPath})
		}
		out := make([]engine.SymbolDecision, 0, len(cfg.Symbols))
		for _, s := range cfg.Symbols {
			out = append(out, engine.SymbolDecision{Symbol: s, Decision: hold})
		}
		return out
	}

	var bySymbol map[string]json.RawMessage
	if err := json.Unmarshal(raw, &bySymbol); err != nil {
		appLogger.Error(ctx, err, "Decisions file is not a symbol map, holding all symbols", map[string]interface{}{"path": cfg.DecisionsPath})
		bySymbol = nil
	}

	out := make([]engine.SymbolDecision, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		decision := hold
		if rawDecision, ok := bySymbol[string(s)]; ok {
			parsed, err := advisor.Parse(rawDecision)
			if err != nil {
				appLogger.Error(ctx, err, "Rejected advisor decision", map[string]interface{}{"symbol": s})
			} else {
				decision = parsed
			}
		}
		out = append(out, engine.SymbolDecision{Symbol: s, Decision: decision})
	}
	return out
}
