package strategy

import (
	"context"
	"fmt"

	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/internal/risk"
	"github.com/alphabot/alpha-bot/pkg/types"
)

// ArbitrageConfig names the two legs and the spread worth acting on.
type ArbitrageConfig struct {
	SpotExchangeID    string
	FuturesExchangeID string
	MinSpreadPct      float64 // net of fees
	CloseSpreadPct    float64 // unwind once the spread compresses to this
	SizeFraction      float64
	Leverage          int
}

func DefaultArbitrageConfig(spotID, futuresID string, minSpread float64) ArbitrageConfig {
	return ArbitrageConfig{
		SpotExchangeID:    spotID,
		FuturesExchangeID: futuresID,
		MinSpreadPct:      minSpread,
		CloseSpreadPct:    minSpread / 4,
		SizeFraction:      0.10,
		Leverage:          2,
	}
}

// Arbitrage captures the spot/futures basis: when futures trade rich
// it buys spot and shorts the perp, unwinding both legs once the
// spread compresses. Only the positive basis is traded; shorting spot
// is not possible.
type Arbitrage struct {
	base
	cfg    ArbitrageConfig
	active bool
	legs   int // filled legs of the open arb (2 when fully on)
}

func NewArbitrage(pair string, cfg ArbitrageConfig, rm *risk.Manager, log *logger.Logger) *Arbitrage {
	return &Arbitrage{
		base: base{pair: pair, rm: rm, log: log},
		cfg:  cfg,
	}
}

func (a *Arbitrage) Name() types.StrategyName { return types.StrategyArbitrage }

func (a *Arbitrage) OnStart() {
	a.active = false
	a.legs = 0
	a.resetPosition()
	a.log.Info("[%s] Arbitrage active (min spread %.2f%%)", a.pair, a.cfg.MinSpreadPct)
}

func (a *Arbitrage) OnStop() {
	a.log.Info("[%s] Arbitrage stopped", a.pair)
}

// Spread computes the futures premium over spot in percent.
func (a *Arbitrage) Spread(view View) (float64, bool) {
	spot, okS := view.Tickers[a.cfg.SpotExchangeID]
	fut, okF := view.Tickers[a.cfg.FuturesExchangeID]
	if !okS || !okF || spot.Price <= 0 || fut.Price <= 0 {
		return 0, false
	}
	return (fut.Price - spot.Price) / spot.Price * 100, true
}

func (a *Arbitrage) Check(_ context.Context, view View) ([]types.Signal, error) {
	spread, ok := a.Spread(view)
	if !ok {
		return nil, fmt.Errorf("missing leg tickers for %s", a.pair)
	}
	spot := view.Tickers[a.cfg.SpotExchangeID]
	fut := view.Tickers[a.cfg.FuturesExchangeID]

	if !a.active {
		if spread < a.cfg.MinSpreadPct {
			return nil, nil
		}
		amount := a.positionSize(a.cfg.SpotExchangeID, spot.Price, a.cfg.SizeFraction)
		if amount <= 0 {
			return nil, nil
		}
		a.log.Info("[%s] Arb entry: futures %.2f%% over spot", a.pair, spread)
		return []types.Signal{
			{
				Pair:         a.pair,
				Side:         types.SideBuy,
				Price:        spot.Price,
				Amount:       amount,
				PositionType: types.PositionSpot,
				Leverage:     1,
				ExchangeID:   a.cfg.SpotExchangeID,
				Strategy:     types.StrategyArbitrage,
			},
			{
				Pair:         a.pair,
				Side:         types.SideSell,
				Price:        fut.Price,
				Amount:       amount / float64(a.cfg.Leverage),
				PositionType: types.PositionShort,
				Leverage:     a.cfg.Leverage,
				ExchangeID:   a.cfg.FuturesExchangeID,
				Strategy:     types.StrategyArbitrage,
			},
		}, nil
	}

	if spread > a.cfg.CloseSpreadPct {
		return nil, nil
	}
	a.log.Info("[%s] Arb unwind: spread compressed to %.2f%%", a.pair, spread)
	return []types.Signal{
		{
			Pair:         a.pair,
			Side:         types.SideSell,
			Price:        spot.Price,
			Amount:       a.entryAmount,
			PositionType: types.PositionSpot,
			Leverage:     1,
			ExchangeID:   a.cfg.SpotExchangeID,
			Strategy:     types.StrategyArbitrage,
		},
		{
			Pair:         a.pair,
			Side:         types.SideBuy,
			Price:        fut.Price,
			Amount:       a.entryAmount / float64(a.cfg.Leverage),
			PositionType: types.PositionShort,
			Leverage:     a.cfg.Leverage,
			ExchangeID:   a.cfg.FuturesExchangeID,
			ReduceOnly:   true,
			Strategy:     types.StrategyArbitrage,
		},
	}, nil
}

func (a *Arbitrage) OnFill(sig types.Signal, fillPrice float64) {
	if sig.IsOpening() {
		a.legs++
		if sig.PositionType == types.PositionSpot {
			a.entryAmount = sig.Amount
			a.entryPrice = fillPrice
		}
		if a.legs >= 2 {
			a.active = true
		}
		return
	}
	a.legs--
	if a.legs <= 0 {
		a.active = false
		a.legs = 0
		a.resetPosition()
	}
}

func (a *Arbitrage) OnRejected(sig types.Signal) {
	// A one-legged arb is directional exposure, not an arb. The caller
	// unwinds the filled leg; here we just drop the attempt.
	a.log.Warning("[%s] Arb leg rejected (%s on %s)", a.pair, sig.Side, sig.ExchangeID)
	if sig.IsOpening() && a.legs > 0 {
		a.legs = 0
		a.active = false
	}
}
