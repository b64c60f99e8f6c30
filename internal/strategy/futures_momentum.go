package strategy

import (
	"context"
	"fmt"

	"github.com/alphabot/alpha-bot/internal/indicators"
	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/internal/risk"
	"github.com/alphabot/alpha-bot/pkg/types"
)

// FuturesMomentumConfig tunes the bidirectional RSI + MACD strategy.
type FuturesMomentumConfig struct {
	RSILongEntry  float64 // 35
	RSIShortEntry float64 // 65
	RSILongExit   float64 // 70
	RSIShortExit  float64 // 30
	TrailPct      float64 // 1.5
	TakeProfitPct float64 // 2.5
	SizeFraction  float64
	ExchangeID    string
	Leverage      int
}

func DefaultFuturesMomentumConfig(exchangeID string, leverage int) FuturesMomentumConfig {
	if leverage > 20 {
		leverage = 20
	}
	return FuturesMomentumConfig{
		RSILongEntry:  35,
		RSIShortEntry: 65,
		RSILongExit:   70,
		RSIShortExit:  30,
		TrailPct:      1.5,
		TakeProfitPct: 2.5,
		SizeFraction:  0.10,
		ExchangeID:    exchangeID,
		Leverage:      leverage,
	}
}

// FuturesMomentum trades both directions on leverage: oversold RSI
// with a MACD cross up opens a long, overbought RSI with a cross down
// opens a short. Exits are take profit, trailing stop or the opposite
// RSI extreme.
type FuturesMomentum struct {
	base
	cfg  FuturesMomentumConfig
	rsi  *indicators.RSI
	macd *indicators.MACD
}

func NewFuturesMomentum(pair string, cfg FuturesMomentumConfig, rm *risk.Manager, log *logger.Logger) *FuturesMomentum {
	return &FuturesMomentum{
		base: base{pair: pair, rm: rm, log: log},
		cfg:  cfg,
		rsi:  indicators.NewRSI(14),
		macd: indicators.NewMACD(12, 26, 9),
	}
}

func (f *FuturesMomentum) Name() types.StrategyName { return types.StrategyFuturesMomentum }

func (f *FuturesMomentum) OnStart() {
	f.resetPosition()
	f.log.Info("[%s] Futures momentum active (%dx, TP %.1f%%, trail %.1f%%)",
		f.pair, f.cfg.Leverage, f.cfg.TakeProfitPct, f.cfg.TrailPct)
}

func (f *FuturesMomentum) OnStop() {
	f.log.Info("[%s] Futures momentum stopped", f.pair)
}

func (f *FuturesMomentum) Check(_ context.Context, view View) ([]types.Signal, error) {
	price := view.Price()
	if price <= 0 {
		return nil, fmt.Errorf("no price for %s", f.pair)
	}
	closes := view.Closes()
	if len(closes) < 40 {
		return nil, nil
	}

	rsiNow, err := f.rsi.Calculate(closes)
	if err != nil {
		return nil, nil
	}

	if f.inPosition {
		return f.checkExit(price, rsiNow), nil
	}

	var side types.Side
	var posType types.PositionType
	var reason string
	switch {
	case rsiNow < f.cfg.RSILongEntry && f.macd.CrossedAbove(closes):
		side, posType = types.SideBuy, types.PositionLong
		reason = fmt.Sprintf("RSI %.1f oversold + MACD cross up", rsiNow)
	case rsiNow > f.cfg.RSIShortEntry && f.macd.CrossedBelow(closes):
		side, posType = types.SideSell, types.PositionShort
		reason = fmt.Sprintf("RSI %.1f overbought + MACD cross down", rsiNow)
	default:
		return nil, nil
	}

	amount := f.positionSize(f.cfg.ExchangeID, price, f.cfg.SizeFraction)
	if amount <= 0 {
		return nil, nil
	}
	f.log.Info("[%s] Futures momentum entry: %s", f.pair, reason)
	return []types.Signal{{
		Pair:         f.pair,
		Side:         side,
		Price:        price,
		Amount:       amount,
		PositionType: posType,
		Leverage:     f.cfg.Leverage,
		ExchangeID:   f.cfg.ExchangeID,
		Strategy:     types.StrategyFuturesMomentum,
	}}, nil
}

func (f *FuturesMomentum) checkExit(price, rsiNow float64) []types.Signal {
	if price > f.highestSince {
		f.highestSince = price
	}
	if price < f.lowestSince {
		f.lowestSince = price
	}
	pnl := f.pnlPct(price)

	long := f.positionSide == types.SideBuy
	var reason string
	switch {
	case pnl >= f.cfg.TakeProfitPct:
		reason = fmt.Sprintf("take profit +%.2f%%", pnl)
	case long && price <= f.highestSince*(1-f.cfg.TrailPct/100):
		reason = "trailing stop"
	case !long && price >= f.lowestSince*(1+f.cfg.TrailPct/100):
		reason = "trailing stop"
	case long && rsiNow > f.cfg.RSILongExit:
		reason = fmt.Sprintf("overbought RSI %.1f", rsiNow)
	case !long && rsiNow < f.cfg.RSIShortExit:
		reason = fmt.Sprintf("oversold RSI %.1f", rsiNow)
	default:
		return nil
	}

	f.log.Info("[%s] Futures momentum exit: %s", f.pair, reason)
	side := types.SideSell
	posType := types.PositionLong
	if !long {
		side = types.SideBuy
		posType = types.PositionShort
	}
	return []types.Signal{{
		Pair:         f.pair,
		Side:         side,
		Price:        price,
		Amount:       f.entryAmount,
		PositionType: posType,
		Leverage:     f.cfg.Leverage,
		ExchangeID:   f.cfg.ExchangeID,
		ReduceOnly:   true,
		Strategy:     types.StrategyFuturesMomentum,
	}}
}

func (f *FuturesMomentum) OnFill(sig types.Signal, fillPrice float64) {
	f.trackFill(sig, fillPrice)
}

func (f *FuturesMomentum) OnRejected(sig types.Signal) {
	f.log.Warning("[%s] Futures momentum %s rejected at $%.2f", f.pair, sig.Side, sig.Price)
}
