package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/alphabot/alpha-bot/internal/config"
	"github.com/alphabot/alpha-bot/internal/exchange"
	"github.com/alphabot/alpha-bot/internal/executor"
	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/internal/market"
	"github.com/alphabot/alpha-bot/internal/monitoring"
	"github.com/alphabot/alpha-bot/internal/notifications"
	"github.com/alphabot/alpha-bot/internal/risk"
	"github.com/alphabot/alpha-bot/internal/state"
	"github.com/alphabot/alpha-bot/internal/strategy"
	"github.com/alphabot/alpha-bot/pkg/reporting"
	"github.com/alphabot/alpha-bot/pkg/types"
)

// strongSignalStrength upgrades a pair to the leveraged variant of its
// selected strategy when the futures venue is available.
const strongSignalStrength = 70.0

// Bot runs the analyze-select-trade loop across all configured pairs.
// One strategy is active per pair at a time; the selector decides which.
type Bot struct {
	cfg      *config.Config
	log      *logger.Logger
	rm       *risk.Manager
	spot     exchange.Exchange
	futures  exchange.Exchange
	analyzer *market.Analyzer
	selector *strategy.Selector
	exec     *executor.Executor
	persist  *state.Persistence
	notifier notifications.Notifier
	health   *monitoring.HealthChecker

	active  map[string]*runner
	lastDay string

	// overrides is the only state touched from outside the cycle
	// goroutine (operator HTTP commands).
	mu        sync.Mutex
	overrides map[string]types.StrategyName
}

// runner pairs an active strategy with the venue its candles come from.
type runner struct {
	strat strategy.Strategy
	venue exchange.Exchange
	tight bool
}

func New(cfg *config.Config, rm *risk.Manager, spot, futures exchange.Exchange,
	exec *executor.Executor, persist *state.Persistence,
	notifier notifications.Notifier, health *monitoring.HealthChecker,
	log *logger.Logger) *Bot {

	if notifier == nil {
		notifier = notifications.Nop{}
	}
	arbEnabled := futures != nil && cfg.Trading.ArbMinSpreadPct > 0
	return &Bot{
		cfg:       cfg,
		log:       log,
		rm:        rm,
		spot:      spot,
		futures:   futures,
		analyzer:  market.NewAnalyzer(spot, cfg.Trading.CandleInterval, cfg.Trading.CandleLimit),
		selector:  strategy.NewSelector(log, arbEnabled),
		exec:      exec,
		persist:   persist,
		notifier:  notifier,
		health:    health,
		active:    make(map[string]*runner),
		lastDay:   time.Now().UTC().Format("2006-01-02"),
		overrides: make(map[string]types.StrategyName),
	}
}

// Run drives the bot until ctx is cancelled, then saves state and
// writes the session report.
func (b *Bot) Run(ctx context.Context) error {
	futuresID := "disabled"
	if b.futures != nil {
		futuresID = b.futures.ID()
	}
	reporting.PrintStartupInfo(b.cfg.Trading.Pairs, b.spot.ID(), futuresID,
		b.cfg.Environment, b.rm.GetCapital())
	b.alert("info", fmt.Sprintf("Bot started: %d pairs, capital $%.2f",
		len(b.cfg.Trading.Pairs), b.rm.GetCapital()))

	b.cycle(ctx)

	analysisTicker := time.NewTicker(b.cfg.Trading.AnalysisInterval)
	defer analysisTicker.Stop()
	saveTicker := time.NewTicker(b.cfg.State.SaveInterval)
	defer saveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.shutdown()
			return nil
		case <-analysisTicker.C:
			b.cycle(ctx)
		case <-saveTicker.C:
			if err := b.persist.Save(b.rm); err != nil {
				b.log.Error("State save failed: %v", err)
				monitoring.RecordError("state")
			}
		}
	}
}

// cycle is one full pass: daily reset, balance sync, analysis, strategy
// selection, signal execution, liquidation checks, metrics.
func (b *Bot) cycle(ctx context.Context) {
	b.checkDailyReset()
	b.refreshBalances(ctx)

	analyses := make([]*market.Analysis, 0, len(b.cfg.Trading.Pairs))
	for _, pair := range b.cfg.Trading.Pairs {
		analysis, err := b.analyzer.Analyze(ctx, pair)
		if err != nil {
			b.log.Error("[%s] Analysis failed: %v", pair, err)
			monitoring.RecordError("analysis")
			b.health.RecordError(fmt.Sprintf("analysis %s: %v", pair, err))
			continue
		}
		analyses = append(analyses, analysis)
	}

	// Strongest setups trade first so they get the concurrency slots.
	sort.Slice(analyses, func(i, j int) bool {
		return analyses[i].SignalStrength > analyses[j].SignalStrength
	})

	var lastPrice float64
	for _, analysis := range analyses {
		price := b.tradePair(ctx, analysis)
		if price > 0 {
			lastPrice = price
		}
	}

	b.checkLiquidation(ctx)
	b.publishStatus(lastPrice)
}

// tradePair runs selection and the active strategy for one pair. It
// returns the last observed price for health reporting.
func (b *Bot) tradePair(ctx context.Context, analysis *market.Analysis) float64 {
	pair := analysis.Pair

	tickers := make(map[string]types.Ticker)
	spotTicker, err := b.spot.GetTicker(ctx, pair)
	if err != nil {
		b.log.Error("[%s] Spot ticker failed: %v", pair, err)
		monitoring.RecordError("ticker")
		return 0
	}
	tickers[b.spot.ID()] = *spotTicker
	monitoring.UpdatePrice(pair, spotTicker.Price)

	arbOpportunity := false
	if b.futures != nil {
		if futTicker, err := b.futures.GetTicker(ctx, pair); err != nil {
			b.log.Warning("[%s] Futures ticker failed: %v", pair, err)
		} else {
			tickers[b.futures.ID()] = *futTicker
			spread := (futTicker.Price - spotTicker.Price) / spotTicker.Price * 100
			arbOpportunity = spread >= b.cfg.Trading.ArbMinSpreadPct
		}
	}

	sel := b.selector.Select(analysis, arbOpportunity)
	run := b.applySelection(pair, sel, analysis)
	if run == nil {
		return spotTicker.Price
	}

	candles, err := run.venue.GetCandles(ctx, pair, b.cfg.Trading.CandleInterval, b.cfg.Trading.CandleLimit)
	if err != nil {
		b.log.Error("[%s] Candle fetch failed: %v", pair, err)
		monitoring.RecordError("candles")
		return spotTicker.Price
	}

	// Single-venue strategies see only their home ticker; arbitrage
	// needs both legs.
	viewTickers := tickers
	if run.strat.Name() != types.StrategyArbitrage {
		viewTickers = make(map[string]types.Ticker, 1)
		if t, ok := tickers[run.venue.ID()]; ok {
			viewTickers[run.venue.ID()] = t
		}
	}

	view := strategy.View{Pair: pair, Candles: candles, Tickers: viewTickers}
	signals, err := run.strat.Check(ctx, view)
	if err != nil {
		b.log.Error("[%s] Strategy check failed: %v", pair, err)
		monitoring.RecordError("strategy")
		return spotTicker.Price
	}
	// Arbitrage emits its legs as a pair; they execute as a unit so a
	// venue failure cannot leave directional exposure.
	if run.strat.Name() == types.StrategyArbitrage && len(signals) == 2 {
		b.executeHedged(ctx, run.strat, signals[0], signals[1])
	} else {
		for _, sig := range signals {
			b.execute(ctx, run.strat, sig)
		}
	}
	return spotTicker.Price
}

// applySelection swaps the active strategy when the selector's choice
// changed, and clears it when the pair is paused.
func (b *Bot) applySelection(pair string, sel strategy.Selection, analysis *market.Analysis) *runner {
	// An operator override beats the selector, including its pauses.
	if forced, ok := b.override(pair); ok {
		sel.Strategy = forced
		sel.Tight = false
		if run, active := b.active[pair]; active && run.strat.Name() == forced {
			return run
		}
		if run, active := b.active[pair]; active {
			run.strat.OnStop()
		}
		run := b.buildRunner(pair, forced, false)
		if run == nil {
			delete(b.active, pair)
			return nil
		}
		run.strat.OnStart()
		b.active[pair] = run
		b.log.Info("[%s] Forced strategy active: %s", pair, forced)
		return run
	}

	if sel.Strategy == "" {
		if run, ok := b.active[pair]; ok {
			run.strat.OnStop()
			delete(b.active, pair)
		}
		return nil
	}

	name := b.resolveStrategy(sel, analysis)
	if run, ok := b.active[pair]; ok && run.strat.Name() == name && run.tight == sel.Tight {
		return run
	}

	// A strategy holding its own open position keeps the pair until it
	// exits; switching now would orphan the position.
	if run, ok := b.active[pair]; ok {
		if pos, open := b.rm.OpenPosition(pair); open && pos.Strategy == run.strat.Name() {
			return run
		}
	}

	if run, ok := b.active[pair]; ok {
		run.strat.OnStop()
	}
	run := b.buildRunner(pair, name, sel.Tight)
	if run == nil {
		delete(b.active, pair)
		return nil
	}
	run.strat.OnStart()
	b.active[pair] = run
	b.log.Info("[%s] Active strategy: %s (strength %.0f)", pair, name, analysis.SignalStrength)
	return run
}

// resolveStrategy upgrades a strong setup to its leveraged variant when
// a futures venue is wired in.
func (b *Bot) resolveStrategy(sel strategy.Selection, analysis *market.Analysis) types.StrategyName {
	if b.futures == nil || analysis.SignalStrength < strongSignalStrength {
		return sel.Strategy
	}
	switch {
	case sel.Strategy == types.StrategyMomentum:
		return types.StrategyFuturesMomentum
	case sel.Strategy == types.StrategyGrid && sel.Tight:
		return types.StrategyScalp
	}
	return sel.Strategy
}

func (b *Bot) buildRunner(pair string, name types.StrategyName, tight bool) *runner {
	leverage := b.cfg.Trading.FuturesLeverage
	switch name {
	case types.StrategyGrid:
		cfg := strategy.DefaultGridConfig(b.spot.ID())
		cfg.Tight = tight
		return &runner{strat: strategy.NewGrid(pair, cfg, b.rm, b.log), venue: b.spot, tight: tight}
	case types.StrategyMomentum:
		cfg := strategy.DefaultMomentumConfig(b.spot.ID())
		return &runner{strat: strategy.NewMomentum(pair, cfg, b.rm, b.log), venue: b.spot}
	case types.StrategyArbitrage:
		if b.futures == nil {
			return nil
		}
		cfg := strategy.DefaultArbitrageConfig(b.spot.ID(), b.futures.ID(), b.cfg.Trading.ArbMinSpreadPct)
		return &runner{strat: strategy.NewArbitrage(pair, cfg, b.rm, b.log), venue: b.spot}
	case types.StrategyScalp:
		if b.futures == nil {
			return nil
		}
		cfg := strategy.DefaultScalpConfig(b.futures.ID(), leverage)
		return &runner{strat: strategy.NewScalp(pair, cfg, b.rm, b.log), venue: b.futures, tight: tight}
	case types.StrategyFuturesMomentum:
		if b.futures == nil {
			return nil
		}
		cfg := strategy.DefaultFuturesMomentumConfig(b.futures.ID(), leverage)
		return &runner{strat: strategy.NewFuturesMomentum(pair, cfg, b.rm, b.log), venue: b.futures}
	default:
		b.log.Error("[%s] Unknown strategy %q", pair, name)
		return nil
	}
}

// execute routes one signal through the executor and reports the
// outcome back to the strategy.
func (b *Bot) execute(ctx context.Context, strat strategy.Strategy, sig types.Signal) {
	order, err := b.exec.Execute(ctx, sig)
	switch {
	case err == nil:
		strat.OnFill(sig, order.FillPrice)
	case errors.Is(err, executor.ErrRejected):
		strat.OnRejected(sig)
	case errors.Is(err, risk.ErrNoPosition):
		b.log.Warning("[%s] Close signal with no tracked position", sig.Pair)
		strat.OnRejected(sig)
	default:
		b.log.Error("[%s] Execution failed: %v", sig.Pair, err)
		b.health.RecordError(fmt.Sprintf("execute %s: %v", sig.Pair, err))
		strat.OnRejected(sig)
	}
}

// executeHedged runs a two-leg basis trade and reports both legs back.
func (b *Bot) executeHedged(ctx context.Context, strat strategy.Strategy, primary, hedge types.Signal) {
	primaryOrder, hedgeOrder, err := b.exec.ExecuteHedged(ctx, primary, hedge)
	switch {
	case err == nil:
		strat.OnFill(primary, primaryOrder.FillPrice)
		if hedgeOrder != nil {
			strat.OnFill(hedge, hedgeOrder.FillPrice)
		}
	case errors.Is(err, executor.ErrRejected):
		strat.OnRejected(primary)
	case errors.Is(err, risk.ErrNoPosition):
		// The book has no position for this pair, so the strategy's leg
		// tracking is stale. Restart it rather than let it retry forever.
		b.log.Warning("[%s] Hedged close with no tracked position, resetting strategy", primary.Pair)
		strat.OnStop()
		strat.OnStart()
	default:
		b.log.Error("[%s] Hedged execution failed: %v", primary.Pair, err)
		b.health.RecordError(fmt.Sprintf("execute %s: %v", primary.Pair, err))
		strat.OnRejected(primary)
	}
}

// refreshBalances pulls wallet balances from each venue and feeds the
// per-exchange capital pools. Venues that fail keep their last figure.
func (b *Bot) refreshBalances(ctx context.Context) {
	balances := make(map[string]float64)
	venues := []exchange.Exchange{b.spot}
	if b.futures != nil {
		venues = append(venues, b.futures)
	}
	for _, venue := range venues {
		assets, err := venue.GetBalances(ctx)
		if err != nil {
			b.log.Warning("[%s] Balance refresh failed: %v", venue.ID(), err)
			monitoring.RecordError("balance")
			continue
		}
		var total float64
		for _, bal := range assets {
			if bal.Asset == "USDT" || bal.Asset == "USD" {
				total += bal.Free + bal.Locked
			}
		}
		balances[venue.ID()] = total
	}
	if len(balances) > 0 {
		b.rm.UpdateExchangeBalances(balances)
	}
}

// checkDailyReset clears the daily loss tracking at the UTC day change.
func (b *Bot) checkDailyReset() {
	today := time.Now().UTC().Format("2006-01-02")
	if today == b.lastDay {
		return
	}
	previousPnL := b.rm.DailyPnL()
	b.lastDay = today
	b.rm.ResetDaily()
	b.log.Status("Daily reset for %s", today)
	b.alert("info", fmt.Sprintf("Daily reset: previous day PnL $%+.2f, capital $%.2f",
		previousPnL, b.rm.GetCapital()))
}

// checkLiquidation warns on any leveraged position drifting toward its
// liquidation price.
func (b *Bot) checkLiquidation(ctx context.Context) {
	if b.futures == nil {
		return
	}
	for _, pos := range b.rm.OpenPositions() {
		if !pos.PositionType.IsFutures() {
			continue
		}
		ticker, err := b.futures.GetTicker(ctx, pos.Pair)
		if err != nil {
			continue
		}
		distance, atRisk := b.rm.CheckLiquidationRisk(pos.Pair, ticker.Price)
		if atRisk {
			msg := fmt.Sprintf("[%s] %.2f%% from liquidation at $%.2f", pos.Pair, distance, ticker.Price)
			b.log.Warning("LIQUIDATION RISK %s", msg)
			b.alert("warning", "Liquidation risk "+msg)
		}
	}
}

// publishStatus pushes the risk snapshot to metrics, health, the log
// file, and the console.
func (b *Bot) publishStatus(lastPrice float64) {
	status := b.rm.GetStatus()

	pauseReason := ""
	if status.IsPaused {
		pauseReason = status.PauseReasonCode
	}
	monitoring.UpdateRiskStatus(status.Capital, status.TotalExposure, status.WinRate,
		status.OpenPositions, pauseReason)
	b.health.CycleCompleted(lastPrice)
	b.health.SetPaused(status.IsPaused)

	b.log.LogRiskSnapshot(status.Capital, status.DailyPnL, status.TotalExposurePct,
		status.WinRate, status.OpenPositions, status.IsPaused, status.PauseReason)
	reporting.PrintRiskStatus(status)
	reporting.PrintOpenPositions(b.rm.OpenPositions())
}

// shutdown stops every strategy, persists state, and writes the
// session report.
func (b *Bot) shutdown() {
	b.log.Status("Shutting down")
	for pair, run := range b.active {
		run.strat.OnStop()
		delete(b.active, pair)
	}

	if err := b.persist.Save(b.rm); err != nil {
		b.log.Error("Final state save failed: %v", err)
	}

	trades := b.rm.ClosedTrades()
	status := b.rm.GetStatus()
	stamp := time.Now().Format("20060102_150405")
	xlsxPath := filepath.Join(b.cfg.Reports.Dir, fmt.Sprintf("session_%s.xlsx", stamp))
	if err := reporting.NewExcelReporter().WriteSession(trades, status, xlsxPath); err != nil {
		b.log.Error("Excel report failed: %v", err)
	} else {
		b.log.Info("Session report written to %s", xlsxPath)
	}
	csvPath := filepath.Join(b.cfg.Reports.Dir, fmt.Sprintf("trades_%s.csv", stamp))
	if err := reporting.NewCSVReporter().WriteTrades(trades, csvPath); err != nil {
		b.log.Error("CSV export failed: %v", err)
	}

	b.alert("info", fmt.Sprintf("Bot stopped: capital $%.2f, %d trades this session",
		status.Capital, len(trades)))
}

func (b *Bot) alert(level, message string) {
	if err := b.notifier.SendAlert(level, message); err != nil {
		b.log.Warning("Notification failed: %v", err)
	}
}
