package exchange

import (
	"context"
	"fmt"
	"strings"

	"github.com/alphabot/alpha-bot/internal/config"
	"github.com/alphabot/alpha-bot/internal/exchange/bybit"
)

// Build creates an exchange from its configuration. Venues without API
// credentials fall back to a paper venue so unfunded legs still run in
// dry mode. The futures flag selects the linear market data category.
func Build(cfg config.ExchangeConfig, futures, dryRun bool) (Exchange, error) {
	if dryRun || cfg.APIKey == "" {
		return NewPaperExchange(cfg.ID), nil
	}

	switch {
	case strings.HasPrefix(cfg.ID, "bybit"):
		category := "spot"
		if futures {
			category = "linear"
		}
		return NewBybitExchange(cfg.ID, category, bybit.Config{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			Testnet:   cfg.Testnet,
			Demo:      cfg.Demo,
		}), nil
	case cfg.ID == "paper":
		return NewPaperExchange(cfg.ID), nil
	default:
		return nil, fmt.Errorf("unsupported exchange %q", cfg.ID)
	}
}

// Connect dials an exchange with a bounded startup check.
func Connect(ctx context.Context, ex Exchange) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return ex.Connect(ctx)
}
