package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is built once at startup and passed into each component's
// constructor. There is no ambient global configuration.
type Config struct {
	Environment string
	LogLevel    string
	DryRun      bool

	Trading  TradingConfig
	Risk     RiskConfig
	Exchanges ExchangesConfig

	Monitoring struct {
		MetricsPort int
		HealthPort  int
	}

	Notifications struct {
		TelegramToken  string
		TelegramChatID string
	}

	State struct {
		Dir          string
		SaveInterval time.Duration
	}

	Reports struct {
		Dir string
	}
}

// TradingConfig controls the pairs traded and the cadence of analysis.
type TradingConfig struct {
	Pairs            []string
	StartingCapital  float64
	AnalysisInterval time.Duration
	CandleInterval   string
	CandleLimit      int
	ArbMinSpreadPct  float64
	FuturesLeverage  int
}

// RiskConfig holds the limits enforced by the risk manager.
type RiskConfig struct {
	MaxPositionPct      float64 // max % of exchange capital per trade
	MaxTotalExposurePct float64 // cap on total capital at risk
	MaxConcurrent       int     // max open positions across all pairs
	DailyLossLimitPct   float64 // circuit breaker: pause at this daily loss
	MinWinRatePct       float64 // circuit breaker: pause below this win rate
	WinRateWindow       int     // trades considered by the win-rate breaker
	SizeTolerancePct    float64 // slack on the per-trade size cap
}

// ExchangesConfig describes the connected venues. The spot venue holds
// the spot capital pool, the futures venue the leveraged pool.
type ExchangesConfig struct {
	Spot    ExchangeConfig
	Futures ExchangeConfig
}

type ExchangeConfig struct {
	ID        string
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool
}

// Load builds the configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DryRun:      getEnvBool("DRY_RUN", false),

		Trading: TradingConfig{
			Pairs:            splitPairs(getEnv("TRADING_PAIRS", "BTCUSDT,ETHUSDT")),
			StartingCapital:  getEnvFloat("STARTING_CAPITAL", 1000.0),
			AnalysisInterval: getEnvDuration("ANALYSIS_INTERVAL", 5*time.Minute),
			CandleInterval:   getEnv("CANDLE_INTERVAL", "5"),
			CandleLimit:      getEnvInt("CANDLE_LIMIT", 100),
			ArbMinSpreadPct:  getEnvFloat("ARB_MIN_SPREAD_PCT", 0.5),
			FuturesLeverage:  getEnvInt("FUTURES_LEVERAGE", 5),
		},

		Risk: RiskConfig{
			MaxPositionPct:      getEnvFloat("MAX_POSITION_PCT", 30.0),
			MaxTotalExposurePct: getEnvFloat("MAX_TOTAL_EXPOSURE_PCT", 60.0),
			MaxConcurrent:       getEnvInt("MAX_CONCURRENT_POSITIONS", 2),
			DailyLossLimitPct:   getEnvFloat("DAILY_LOSS_LIMIT_PCT", 5.0),
			MinWinRatePct:       getEnvFloat("MIN_WIN_RATE_PCT", 40.0),
			WinRateWindow:       getEnvInt("WIN_RATE_WINDOW", 20),
			SizeTolerancePct:    getEnvFloat("SIZE_TOLERANCE_PCT", 5.0),
		},

		Exchanges: ExchangesConfig{
			Spot: ExchangeConfig{
				ID:        getEnv("SPOT_EXCHANGE_ID", "bybit"),
				APIKey:    getEnv("SPOT_API_KEY", ""),
				APISecret: getEnv("SPOT_API_SECRET", ""),
				Testnet:   getEnvBool("SPOT_TESTNET", true),
				Demo:      getEnvBool("SPOT_DEMO", false),
			},
			Futures: ExchangeConfig{
				ID:        getEnv("FUTURES_EXCHANGE_ID", "bybit_futures"),
				APIKey:    getEnv("FUTURES_API_KEY", ""),
				APISecret: getEnv("FUTURES_API_SECRET", ""),
				Testnet:   getEnvBool("FUTURES_TESTNET", true),
				Demo:      getEnvBool("FUTURES_DEMO", false),
			},
		},
	}

	cfg.Monitoring.MetricsPort = getEnvInt("METRICS_PORT", 8080)
	cfg.Monitoring.HealthPort = getEnvInt("HEALTH_PORT", 8081)
	cfg.Notifications.TelegramToken = getEnv("TELEGRAM_TOKEN", "")
	cfg.Notifications.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")
	cfg.State.Dir = getEnv("STATE_DIR", "state")
	cfg.State.SaveInterval = getEnvDuration("STATE_SAVE_INTERVAL", 5*time.Minute)
	cfg.Reports.Dir = getEnv("REPORTS_DIR", "reports")

	return cfg
}

// Validate rejects configurations that would make the risk limits vacuous.
func (c *Config) Validate() error {
	if len(c.Trading.Pairs) == 0 {
		return fmt.Errorf("no trading pairs configured")
	}
	if c.Trading.StartingCapital < 0 {
		return fmt.Errorf("starting capital cannot be negative")
	}
	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 100 {
		return fmt.Errorf("MAX_POSITION_PCT must be in (0, 100], got %.1f", c.Risk.MaxPositionPct)
	}
	if c.Risk.MaxTotalExposurePct <= 0 || c.Risk.MaxTotalExposurePct > 100 {
		return fmt.Errorf("MAX_TOTAL_EXPOSURE_PCT must be in (0, 100], got %.1f", c.Risk.MaxTotalExposurePct)
	}
	if c.Risk.MaxConcurrent < 1 {
		return fmt.Errorf("MAX_CONCURRENT_POSITIONS must be >= 1, got %d", c.Risk.MaxConcurrent)
	}
	if c.Risk.WinRateWindow < 1 {
		return fmt.Errorf("WIN_RATE_WINDOW must be >= 1, got %d", c.Risk.WinRateWindow)
	}
	if c.Trading.FuturesLeverage < 1 || c.Trading.FuturesLeverage > 20 {
		return fmt.Errorf("FUTURES_LEVERAGE must be in [1, 20], got %d", c.Trading.FuturesLeverage)
	}
	return nil
}

func splitPairs(raw string) []string {
	parts := strings.Split(raw, ",")
	pairs := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			pairs = append(pairs, trimmed)
		}
	}
	return pairs
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
