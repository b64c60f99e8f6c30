package executor

import (
	"context"
	"fmt"
	"sync"

	boterrors "github.com/alphabot/alpha-bot/internal/errors"
	"github.com/alphabot/alpha-bot/internal/exchange"
	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/internal/monitoring"
	"github.com/alphabot/alpha-bot/internal/notifications"
	"github.com/alphabot/alpha-bot/internal/risk"
	"github.com/alphabot/alpha-bot/pkg/types"
)

// ErrRejected is returned when the risk manager refuses a signal.
var ErrRejected = fmt.Errorf("signal rejected by risk manager")

// Executor runs the approve, place, record pipeline for each signal.
// A per-pair mutex spans the whole pipeline so approval and recording
// stay atomic with respect to other signals on the same pair; signals
// for different pairs execute concurrently.
type Executor struct {
	rm       *risk.Manager
	venues   map[string]exchange.Exchange
	log      *logger.Logger
	notifier notifications.Notifier

	mu        sync.Mutex
	pairLocks map[string]*sync.Mutex
}

func New(rm *risk.Manager, venues map[string]exchange.Exchange, log *logger.Logger, notifier notifications.Notifier) *Executor {
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	return &Executor{
		rm:        rm,
		venues:    venues,
		log:       log,
		notifier:  notifier,
		pairLocks: make(map[string]*sync.Mutex),
	}
}

func (e *Executor) pairLock(pair string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.pairLocks[pair]
	if !ok {
		lock = &sync.Mutex{}
		e.pairLocks[pair] = lock
	}
	return lock
}

// Execute runs one signal through the pipeline. ErrRejected means the
// risk manager said no; any other error is a venue or recording
// failure.
func (e *Executor) Execute(ctx context.Context, sig types.Signal) (*exchange.Order, error) {
	if err := sig.Validate(); err != nil {
		return nil, boterrors.WrapError(err, boterrors.ErrorCategoryValidation, "executor", "execute")
	}

	venue, ok := e.venues[sig.ExchangeID]
	if !ok {
		return nil, boterrors.NewBotError(boterrors.ErrorCategoryConfiguration, "executor", "execute",
			fmt.Sprintf("no venue configured for exchange %q", sig.ExchangeID))
	}

	lock := e.pairLock(sig.Pair)
	lock.Lock()
	defer lock.Unlock()

	if sig.IsOpening() {
		return e.open(ctx, venue, sig)
	}
	return e.close(ctx, venue, sig)
}

func (e *Executor) open(ctx context.Context, venue exchange.Exchange, sig types.Signal) (*exchange.Order, error) {
	if !e.rm.ApproveSignal(sig) {
		monitoring.RecordRejection(sig.Pair, string(sig.Strategy))
		return nil, ErrRejected
	}

	if sig.PositionType.IsFutures() && sig.Leverage > 1 {
		if err := venue.SetLeverage(ctx, sig.Pair, sig.Leverage); err != nil {
			e.log.Warning("[%s] Could not set leverage %dx: %v", sig.Pair, sig.Leverage, err)
		}
	}

	order, err := e.placeOrder(ctx, venue, sig)
	if err != nil {
		return nil, err
	}

	// Record at the actual fill so exposure reflects what was paid.
	recorded := sig
	if order.FillPrice > 0 {
		recorded.Price = order.FillPrice
	}
	if err := e.rm.RecordOpen(recorded); err != nil {
		// The order is live but untracked. Loud failure; the operator
		// has to reconcile manually.
		e.log.Error("[%s] Order %s filled but position not recorded: %v", sig.Pair, order.ID, err)
		e.alert("error", fmt.Sprintf("UNTRACKED FILL %s %s on %s: %v", sig.Side, sig.Pair, sig.ExchangeID, err))
		return order, err
	}

	monitoring.RecordTrade(sig.Pair, string(sig.Side), string(sig.Strategy))
	e.alert("trade", fmt.Sprintf("Opened %s %s %.6f @ $%.2f (%s)",
		sig.PositionType, sig.Pair, sig.Amount, recorded.Price, sig.Strategy))
	return order, nil
}

func (e *Executor) close(ctx context.Context, venue exchange.Exchange, sig types.Signal) (*exchange.Order, error) {
	pos, ok := e.rm.OpenPosition(sig.Pair)
	if !ok {
		return nil, risk.ErrNoPosition
	}

	order, err := e.placeOrder(ctx, venue, sig)
	if err != nil {
		return nil, err
	}

	exitPrice := order.FillPrice
	if exitPrice <= 0 {
		exitPrice = sig.Price
	}
	pnl := realizedPnL(pos, exitPrice)

	if err := e.rm.RecordClose(sig.Pair, pnl); err != nil {
		e.log.Error("[%s] Close order %s filled but not recorded: %v", sig.Pair, order.ID, err)
		return order, err
	}

	monitoring.RecordTrade(sig.Pair, string(sig.Side), string(sig.Strategy))
	monitoring.RecordClosedTrade(sig.Pair, pnl)
	e.alert("trade", fmt.Sprintf("Closed %s %s: PnL $%+.2f (%s)", pos.PositionType, sig.Pair, pnl, sig.Strategy))
	return order, nil
}

// ExecuteHedged places a two-leg basis trade as a unit. The primary
// leg is the tracked position; the hedge leg rides on its own venue
// and is never recorded separately, so the one-position-per-pair rule
// holds for the pair. Hedge PnL settles on the venue and flows back in
// through the balance sync.
func (e *Executor) ExecuteHedged(ctx context.Context, primary, hedge types.Signal) (*exchange.Order, *exchange.Order, error) {
	if err := primary.Validate(); err != nil {
		return nil, nil, boterrors.WrapError(err, boterrors.ErrorCategoryValidation, "executor", "execute_hedged")
	}
	if err := hedge.Validate(); err != nil {
		return nil, nil, boterrors.WrapError(err, boterrors.ErrorCategoryValidation, "executor", "execute_hedged")
	}
	primaryVenue, ok := e.venues[primary.ExchangeID]
	if !ok {
		return nil, nil, boterrors.NewBotError(boterrors.ErrorCategoryConfiguration, "executor", "execute_hedged",
			fmt.Sprintf("no venue configured for exchange %q", primary.ExchangeID))
	}
	hedgeVenue, ok := e.venues[hedge.ExchangeID]
	if !ok {
		return nil, nil, boterrors.NewBotError(boterrors.ErrorCategoryConfiguration, "executor", "execute_hedged",
			fmt.Sprintf("no venue configured for exchange %q", hedge.ExchangeID))
	}

	lock := e.pairLock(primary.Pair)
	lock.Lock()
	defer lock.Unlock()

	if primary.IsOpening() {
		return e.openHedged(ctx, primaryVenue, hedgeVenue, primary, hedge)
	}
	return e.closeHedged(ctx, primaryVenue, hedgeVenue, primary, hedge)
}

func (e *Executor) openHedged(ctx context.Context, primaryVenue, hedgeVenue exchange.Exchange, primary, hedge types.Signal) (*exchange.Order, *exchange.Order, error) {
	if !e.rm.ApproveSignal(primary) {
		monitoring.RecordRejection(primary.Pair, string(primary.Strategy))
		return nil, nil, ErrRejected
	}

	if hedge.PositionType.IsFutures() && hedge.Leverage > 1 {
		if err := hedgeVenue.SetLeverage(ctx, hedge.Pair, hedge.Leverage); err != nil {
			e.log.Warning("[%s] Could not set hedge leverage %dx: %v", hedge.Pair, hedge.Leverage, err)
		}
	}

	primaryOrder, err := e.placeOrder(ctx, primaryVenue, primary)
	if err != nil {
		return nil, nil, err
	}

	hedgeOrder, err := e.placeOrder(ctx, hedgeVenue, hedge)
	if err != nil {
		// A naked primary leg is directional exposure the strategy never
		// asked for. Flatten it immediately.
		unwind := primary
		unwind.Side = types.SideSell
		if primaryOrder.FillPrice > 0 {
			unwind.Price = primaryOrder.FillPrice
		}
		if _, uerr := e.placeOrder(ctx, primaryVenue, unwind); uerr != nil {
			e.log.Error("[%s] Hedge failed and unwind failed: %v", primary.Pair, uerr)
			e.alert("error", fmt.Sprintf("UNHEDGED LEG %s %s on %s: %v", primary.Side, primary.Pair, primary.ExchangeID, uerr))
		} else {
			e.log.Warning("[%s] Hedge leg failed, primary leg flattened: %v", primary.Pair, err)
		}
		return nil, nil, err
	}

	recorded := primary
	if primaryOrder.FillPrice > 0 {
		recorded.Price = primaryOrder.FillPrice
	}
	if err := e.rm.RecordOpen(recorded); err != nil {
		e.log.Error("[%s] Hedged order %s filled but position not recorded: %v", primary.Pair, primaryOrder.ID, err)
		e.alert("error", fmt.Sprintf("UNTRACKED FILL %s %s on %s: %v", primary.Side, primary.Pair, primary.ExchangeID, err))
		return primaryOrder, hedgeOrder, err
	}

	monitoring.RecordTrade(primary.Pair, string(primary.Side), string(primary.Strategy))
	e.alert("trade", fmt.Sprintf("Opened hedged %s %.6f @ $%.2f, hedge %s on %s (%s)",
		primary.Pair, primary.Amount, recorded.Price, hedge.Side, hedge.ExchangeID, primary.Strategy))
	return primaryOrder, hedgeOrder, nil
}

func (e *Executor) closeHedged(ctx context.Context, primaryVenue, hedgeVenue exchange.Exchange, primary, hedge types.Signal) (*exchange.Order, *exchange.Order, error) {
	pos, ok := e.rm.OpenPosition(primary.Pair)
	if !ok {
		return nil, nil, risk.ErrNoPosition
	}

	primaryOrder, err := e.placeOrder(ctx, primaryVenue, primary)
	if err != nil {
		return nil, nil, err
	}

	hedgeOrder, err := e.placeOrder(ctx, hedgeVenue, hedge)
	if err != nil {
		// The tracked leg is flat, the hedge is now naked short. The
		// operator has to close it on the venue.
		e.log.Error("[%s] Hedge unwind failed, leg still open on %s: %v", hedge.Pair, hedge.ExchangeID, err)
		e.alert("error", fmt.Sprintf("NAKED HEDGE %s on %s: %v", hedge.Pair, hedge.ExchangeID, err))
	}

	exitPrice := primaryOrder.FillPrice
	if exitPrice <= 0 {
		exitPrice = primary.Price
	}
	pnl := realizedPnL(pos, exitPrice)

	if rerr := e.rm.RecordClose(primary.Pair, pnl); rerr != nil {
		e.log.Error("[%s] Hedged close %s filled but not recorded: %v", primary.Pair, primaryOrder.ID, rerr)
		return primaryOrder, hedgeOrder, rerr
	}

	monitoring.RecordTrade(primary.Pair, string(primary.Side), string(primary.Strategy))
	monitoring.RecordClosedTrade(primary.Pair, pnl)
	e.alert("trade", fmt.Sprintf("Closed hedged %s: PnL $%+.2f (%s)", primary.Pair, pnl, primary.Strategy))
	// The tracked position is closed and recorded; a failed hedge leg
	// was already alerted and is the operator's to reconcile.
	return primaryOrder, hedgeOrder, nil
}

func (e *Executor) placeOrder(ctx context.Context, venue exchange.Exchange, sig types.Signal) (*exchange.Order, error) {
	order, err := venue.PlaceOrder(ctx, exchange.OrderRequest{
		Pair:       sig.Pair,
		Side:       sig.Side,
		Amount:     sig.Amount,
		Price:      sig.Price,
		Futures:    sig.PositionType.IsFutures(),
		Leverage:   sig.Leverage,
		ReduceOnly: sig.ReduceOnly,
	})
	if err != nil {
		categorized := boterrors.CategorizeError(err, "executor", "place_order")
		monitoring.RecordError(string(categorized.Category))
		return nil, categorized
	}
	if order.Status == exchange.OrderStatusRejected {
		return nil, boterrors.NewBotError(boterrors.ErrorCategoryOrder, "executor", "place_order",
			fmt.Sprintf("venue rejected %s %s", sig.Side, sig.Pair))
	}
	return order, nil
}

func (e *Executor) alert(level, message string) {
	if err := e.notifier.SendAlert(level, message); err != nil {
		e.log.Warning("Notification failed: %v", err)
	}
}

// realizedPnL computes the PnL of closing the position at exitPrice.
// Amount is collateral-scaled for futures, so the price move works on
// the leveraged quantity.
func realizedPnL(pos types.Position, exitPrice float64) float64 {
	move := exitPrice - pos.EntryPrice
	if pos.PositionType == types.PositionShort {
		move = -move
	}
	qty := pos.Amount
	if pos.PositionType.IsFutures() {
		qty *= float64(pos.Leverage)
	}
	return move * qty
}
