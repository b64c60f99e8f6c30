package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/alphabot/alpha-bot/internal/bot"
	"github.com/alphabot/alpha-bot/internal/config"
	"github.com/alphabot/alpha-bot/internal/exchange"
	"github.com/alphabot/alpha-bot/internal/executor"
	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/internal/monitoring"
	"github.com/alphabot/alpha-bot/internal/notifications"
	"github.com/alphabot/alpha-bot/internal/risk"
	"github.com/alphabot/alpha-bot/internal/state"
	"github.com/alphabot/alpha-bot/pkg/types"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLogger, err := logger.NewLogger("alpha-bot")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rm := risk.NewManager(cfg.Risk, cfg.Trading.StartingCapital, appLogger)

	spot, err := exchange.Build(cfg.Exchanges.Spot, false, cfg.DryRun)
	if err != nil {
		appLogger.Error("Spot exchange setup failed: %v", err)
		os.Exit(1)
	}
	if err := exchange.Connect(ctx, spot); err != nil {
		appLogger.Error("Spot exchange connect failed: %v", err)
		os.Exit(1)
	}
	defer spot.Close()

	var futures exchange.Exchange
	if cfg.Exchanges.Futures.ID != "" {
		futures, err = exchange.Build(cfg.Exchanges.Futures, true, cfg.DryRun)
		if err != nil {
			appLogger.Error("Futures exchange setup failed: %v", err)
			os.Exit(1)
		}
		if err := exchange.Connect(ctx, futures); err != nil {
			appLogger.Error("Futures exchange connect failed: %v", err)
			os.Exit(1)
		}
		defer futures.Close()
	}

	venues := map[string]exchange.Exchange{spot.ID(): spot}
	if futures != nil {
		venues[futures.ID()] = futures
	}

	persist := state.NewPersistence(cfg.State.Dir, appLogger)
	if snap, err := persist.Load(); err != nil {
		appLogger.Warning("Could not load saved state: %v", err)
	} else if snap != nil {
		persist.Restore(snap, rm)
	}

	var notifier notifications.Notifier = notifications.Nop{}
	if cfg.Notifications.TelegramToken != "" && cfg.Notifications.TelegramChatID != "" {
		notifier = notifications.NewTelegramNotifier(cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChatID)
		appLogger.Info("Telegram notifications enabled")
	}

	health := monitoring.NewHealthChecker()
	health.SetConnected(true)

	exec := executor.New(rm, venues, appLogger, notifier)
	b := bot.New(cfg, rm, spot, futures, exec, persist, notifier, health, appLogger)

	// Live tick prices feed the price gauges between analysis cycles.
	if !cfg.DryRun && cfg.Exchanges.Spot.APIKey != "" {
		stream := exchange.NewTickerStream(exchange.BybitSpotStreamURL, appLogger)
		if err := stream.Connect(); err != nil {
			appLogger.Warning("Ticker stream unavailable: %v", err)
		} else {
			defer stream.Close()
			for _, pair := range cfg.Trading.Pairs {
				p := pair
				err := stream.Subscribe(p, func(ticker types.Ticker) {
					monitoring.UpdatePrice(p, ticker.Price)
				})
				if err != nil {
					appLogger.Warning("Ticker subscription failed for %s: %v", p, err)
				}
			}
		}
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", monitoring.Handler())
	startServer(fmt.Sprintf(":%d", cfg.Monitoring.MetricsPort), metricsMux, appLogger)

	healthMux := http.NewServeMux()
	healthMux.Handle("/health", health)
	healthMux.Handle("/commands/", http.StripPrefix("/commands", b.Commands()))
	startServer(fmt.Sprintf(":%d", cfg.Monitoring.HealthPort), healthMux, appLogger)

	appLogger.Status("Starting alpha bot (%s)", cfg.Environment)
	if err := b.Run(ctx); err != nil {
		appLogger.Error("Bot exited with error: %v", err)
		os.Exit(1)
	}
	appLogger.Status("Shutdown complete")
}

func startServer(addr string, handler http.Handler, appLogger *logger.Logger) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server on %s failed: %v", addr, err)
		}
	}()
	appLogger.Info("Listening on %s", addr)
}
