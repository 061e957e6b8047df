package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"leverbot/internal/adapters/logger"
	"leverbot/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Execution mode. When DryRun is set no exchange mutation is performed;
	// fills are simulated and the ledger is written as in live mode.
	DryRun bool

	// Trading universe
	Symbols     []domain.Symbol
	MarginAsset string

	// Risk profiling
	InitialCapital float64

	// Admission limits, overridable per deployment.
	MaxLeverage           int
	MinTradeNotional      float64
	FreeCashReserveFrac   float64
	MaxMarginFrac         float64
	DailyLossLimitFrac    float64
	WeeklyLossLimitFrac   float64
	MaxPortfolioLeverage  float64
	MinRewardRiskRatio    float64
	LiquidationBufferFrac float64

	// Cycle
	CycleBudget   time.Duration
	CycleInterval time.Duration

	// Advisor decisions: a JSON file mapping symbol to decision object,
	// re-read at the start of every cycle. Missing file means HOLD for all
	// symbols.
	DecisionsPath string

	// Database
	DBPath string

	// Logging
	LogLevel zapcore.Level

	// Metrics HTTP endpoint; empty disables it.
	MetricsAddr string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety
	cfg.DryRun = getEnvAsBool("DRY_RUN", true)       // Default to simulated execution

	// Live trading against production requires credentials; DRY_RUN still
	// needs them for market-data reads.
	if cfg.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}

	// Trading universe
	symbolsStr := getEnv("SYMBOLS", "ETHUSDT")
	for _, raw := range strings.Split(symbolsStr, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		sym, err := domain.ParseSymbol(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid symbol in SYMBOLS: %v", err))
			continue
		}
		cfg.Symbols = append(cfg.Symbols, sym)
	}
	if len(cfg.Symbols) == 0 {
		errs = append(errs, "SYMBOLS must name at least one symbol")
	}

	cfg.MarginAsset = getEnv("MARGIN_ASSET", "USDT")
	if cfg.MarginAsset == "" {
		errs = append(errs, "MARGIN_ASSET must be set")
	}

	cfg.InitialCapital, err = getEnvAsFloatRequired("INITIAL_CAPITAL", 1000.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INITIAL_CAPITAL: %v", err))
	} else if cfg.InitialCapital <= 0 {
		errs = append(errs, "INITIAL_CAPITAL must be positive")
	}

	// Admission limits
	cfg.MaxLeverage, err = getEnvAsIntRequired("MAX_LEVERAGE", 20)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_LEVERAGE: %v", err))
	} else if cfg.MaxLeverage < 1 {
		errs = append(errs, "MAX_LEVERAGE must be at least 1")
	}

	cfg.MinTradeNotional, err = getEnvAsFloatRequired("MIN_TRADE_NOTIONAL", 20.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_TRADE_NOTIONAL: %v", err))
	} else if cfg.MinTradeNotional < 0 {
		errs = append(errs, "MIN_TRADE_NOTIONAL cannot be negative")
	}

	cfg.FreeCashReserveFrac = getEnvAsFloat("FREE_CASH_RESERVE_FRAC", 0.10)
	cfg.MaxMarginFrac = getEnvAsFloat("MAX_MARGIN_FRAC", 0.50)
	cfg.DailyLossLimitFrac = getEnvAsFloat("DAILY_LOSS_LIMIT_FRAC", 0.05)
	cfg.WeeklyLossLimitFrac = getEnvAsFloat("WEEKLY_LOSS_LIMIT_FRAC", 0.10)
	cfg.MaxPortfolioLeverage = getEnvAsFloat("MAX_PORTFOLIO_LEVERAGE", 10.0)
	cfg.MinRewardRiskRatio = getEnvAsFloat("MIN_REWARD_RISK_RATIO", 1.5)
	cfg.LiquidationBufferFrac = getEnvAsFloat("LIQUIDATION_BUFFER_FRAC", 0.05)

	for name, frac := range map[string]float64{
		"FREE_CASH_RESERVE_FRAC":  cfg.FreeCashReserveFrac,
		"MAX_MARGIN_FRAC":         cfg.MaxMarginFrac,
		"DAILY_LOSS_LIMIT_FRAC":   cfg.DailyLossLimitFrac,
		"WEEKLY_LOSS_LIMIT_FRAC":  cfg.WeeklyLossLimitFrac,
		"LIQUIDATION_BUFFER_FRAC": cfg.LiquidationBufferFrac,
	} {
		if frac < 0 || frac >= 1.0 {
			errs = append(errs, fmt.Sprintf("%s must be in [0.0, 1.0)", name))
		}
	}
	if cfg.MaxPortfolioLeverage <= 0 {
		errs = append(errs, "MAX_PORTFOLIO_LEVERAGE must be positive")
	}
	if cfg.MinRewardRiskRatio <= 0 {
		errs = append(errs, "MIN_REWARD_RISK_RATIO must be positive")
	}

	// Cycle
	cycleBudgetSeconds := getEnvAsInt("CYCLE_BUDGET_SECONDS", 60)
	if cycleBudgetSeconds <= 0 {
		errs = append(errs, "CYCLE_BUDGET_SECONDS must be positive")
	}
	cfg.CycleBudget = time.Duration(cycleBudgetSeconds) * time.Second

	cycleIntervalSeconds := getEnvAsInt("CYCLE_INTERVAL_SECONDS", 300)
	if cycleIntervalSeconds <= 0 {
		errs = append(errs, "CYCLE_INTERVAL_SECONDS must be positive")
	}
	cfg.CycleInterval = time.Duration(cycleIntervalSeconds) * time.Second

	// Advisor decisions
	cfg.DecisionsPath = getEnv("DECISIONS_PATH", "./data/decisions.json")

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/leverbot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	// Metrics
	cfg.MetricsAddr = getEnv("METRICS_ADDR", "")

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
