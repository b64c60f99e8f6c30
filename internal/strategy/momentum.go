package strategy

import (
	"context"
	"fmt"

	"github.com/alphabot/alpha-bot/internal/indicators"
	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/internal/risk"
	"github.com/alphabot/alpha-bot/pkg/types"
)

// MomentumConfig tunes the spot trend follower.
type MomentumConfig struct {
	RSIEntry     float64 // enter when RSI pulls back below this in an uptrend
	RSIExit      float64 // exit when overbought
	TrailPct     float64
	TakeProfit   float64
	SizeFraction float64
	ExchangeID   string
}

func DefaultMomentumConfig(exchangeID string) MomentumConfig {
	return MomentumConfig{
		RSIEntry:     55,
		RSIExit:      75,
		TrailPct:     1.5,
		TakeProfit:   3.0,
		SizeFraction: 0.15,
		ExchangeID:   exchangeID,
	}
}

// Momentum rides spot uptrends: it enters on a pullback while the fast
// EMA sits above the slow one, and exits on take profit, trailing stop
// or an overbought RSI.
type Momentum struct {
	base
	cfg MomentumConfig
	rsi *indicators.RSI
}

func NewMomentum(pair string, cfg MomentumConfig, rm *risk.Manager, log *logger.Logger) *Momentum {
	return &Momentum{
		base: base{pair: pair, rm: rm, log: log},
		cfg:  cfg,
		rsi:  indicators.NewRSI(14),
	}
}

func (m *Momentum) Name() types.StrategyName { return types.StrategyMomentum }

func (m *Momentum) OnStart() {
	m.resetPosition()
	m.log.Info("[%s] Momentum active (TP %.1f%%, trail %.1f%%)", m.pair, m.cfg.TakeProfit, m.cfg.TrailPct)
}

func (m *Momentum) OnStop() {
	m.log.Info("[%s] Momentum stopped", m.pair)
}

func (m *Momentum) Check(_ context.Context, view View) ([]types.Signal, error) {
	price := view.Price()
	if price <= 0 {
		return nil, fmt.Errorf("no price for %s", m.pair)
	}
	closes := view.Closes()
	if len(closes) < 30 {
		return nil, nil
	}

	rsiNow, err := m.rsi.Calculate(closes)
	if err != nil {
		return nil, nil
	}

	if m.inPosition {
		return m.checkExit(price, rsiNow), nil
	}

	fast := indicators.EMA(closes, 9)
	slow := indicators.EMA(closes, 21)
	if len(fast) == 0 || len(slow) == 0 {
		return nil, nil
	}
	uptrend := fast[len(fast)-1] > slow[len(slow)-1]

	if uptrend && rsiNow < m.cfg.RSIEntry {
		amount := m.positionSize(m.cfg.ExchangeID, price, m.cfg.SizeFraction)
		if amount <= 0 {
			return nil, nil
		}
		m.log.Info("[%s] Momentum entry: uptrend pullback, RSI %.1f", m.pair, rsiNow)
		return []types.Signal{{
			Pair:         m.pair,
			Side:         types.SideBuy,
			Price:        price,
			Amount:       amount,
			PositionType: types.PositionSpot,
			Leverage:     1,
			ExchangeID:   m.cfg.ExchangeID,
			Strategy:     types.StrategyMomentum,
		}}, nil
	}
	return nil, nil
}

func (m *Momentum) checkExit(price, rsiNow float64) []types.Signal {
	if price > m.highestSince {
		m.highestSince = price
	}
	pnl := m.pnlPct(price)
	trailingStop := m.highestSince * (1 - m.cfg.TrailPct/100)

	var reason string
	switch {
	case pnl >= m.cfg.TakeProfit:
		reason = fmt.Sprintf("take profit +%.2f%%", pnl)
	case price <= trailingStop:
		reason = fmt.Sprintf("trailing stop (%.2f%% from high)", m.cfg.TrailPct)
	case rsiNow > m.cfg.RSIExit:
		reason = fmt.Sprintf("overbought RSI %.1f", rsiNow)
	default:
		return nil
	}

	m.log.Info("[%s] Momentum exit: %s", m.pair, reason)
	return []types.Signal{{
		Pair:         m.pair,
		Side:         types.SideSell,
		Price:        price,
		Amount:       m.entryAmount,
		PositionType: types.PositionSpot,
		Leverage:     1,
		ExchangeID:   m.cfg.ExchangeID,
		Strategy:     types.StrategyMomentum,
	}}
}

func (m *Momentum) OnFill(sig types.Signal, fillPrice float64) {
	m.trackFill(sig, fillPrice)
}

func (m *Momentum) OnRejected(sig types.Signal) {
	m.log.Warning("[%s] Momentum %s rejected at $%.2f", m.pair, sig.Side, sig.Price)
}
