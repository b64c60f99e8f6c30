package strategy

import (
	"context"
	"fmt"
	"sort"

	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/internal/risk"
	"github.com/alphabot/alpha-bot/pkg/types"
)

// GridConfig tunes the level layout. Tight mode halves the spacing for
// moderately volatile markets.
type GridConfig struct {
	Levels       int     // levels on each side of the anchor
	SpacingPct   float64 // distance between adjacent levels
	SizeFraction float64 // fraction of the pool committed per level
	ExchangeID   string
	Tight        bool
}

func DefaultGridConfig(exchangeID string) GridConfig {
	return GridConfig{
		Levels:       4,
		SpacingPct:   0.8,
		SizeFraction: 0.05,
		ExchangeID:   exchangeID,
	}
}

type gridLevel struct {
	price    float64
	held     float64 // base amount bought at this level, 0 when open
	buyPrice float64
}

// Grid places spot buys as price steps down through levels and sells
// each lot one spacing above its buy. Levels anchor to the first price
// seen after OnStart.
type Grid struct {
	base
	cfg    GridConfig
	anchor float64
	levels []gridLevel
}

func NewGrid(pair string, cfg GridConfig, rm *risk.Manager, log *logger.Logger) *Grid {
	if cfg.Tight {
		cfg.SpacingPct /= 2
	}
	return &Grid{
		base: base{pair: pair, rm: rm, log: log},
		cfg:  cfg,
	}
}

func (g *Grid) Name() types.StrategyName { return types.StrategyGrid }

func (g *Grid) OnStart() {
	g.anchor = 0
	g.levels = nil
	mode := "standard"
	if g.cfg.Tight {
		mode = "tight"
	}
	g.log.Info("[%s] Grid active (%s, %d levels, %.2f%% spacing)",
		g.pair, mode, g.cfg.Levels, g.cfg.SpacingPct)
}

func (g *Grid) OnStop() {
	g.log.Info("[%s] Grid stopped", g.pair)
}

func (g *Grid) Check(_ context.Context, view View) ([]types.Signal, error) {
	price := view.Price()
	if price <= 0 {
		return nil, fmt.Errorf("no price for %s", g.pair)
	}

	if g.anchor == 0 {
		g.initLevels(price)
		return nil, nil
	}

	var signals []types.Signal

	// Sells first so freed levels can re-buy on a later tick.
	for i := range g.levels {
		lvl := &g.levels[i]
		if lvl.held > 0 && price >= lvl.buyPrice*(1+g.cfg.SpacingPct/100) {
			signals = append(signals, types.Signal{
				Pair:         g.pair,
				Side:         types.SideSell,
				Price:        price,
				Amount:       lvl.held,
				PositionType: types.PositionSpot,
				Leverage:     1,
				ExchangeID:   g.cfg.ExchangeID,
				Strategy:     types.StrategyGrid,
			})
		}
	}

	// One buy per tick: the deepest open level above the current price
	// band keeps ladder entries orderly.
	for i := range g.levels {
		lvl := &g.levels[i]
		if lvl.held == 0 && price <= lvl.price && lvl.price < g.anchor {
			amount := g.positionSize(g.cfg.ExchangeID, price, g.cfg.SizeFraction)
			if amount <= 0 {
				break
			}
			signals = append(signals, types.Signal{
				Pair:         g.pair,
				Side:         types.SideBuy,
				Price:        price,
				Amount:       amount,
				PositionType: types.PositionSpot,
				Leverage:     1,
				ExchangeID:   g.cfg.ExchangeID,
				Strategy:     types.StrategyGrid,
			})
			break
		}
	}

	return signals, nil
}

func (g *Grid) OnFill(sig types.Signal, fillPrice float64) {
	if sig.Side == types.SideBuy {
		// Attach the lot to the nearest open level at or above the fill.
		for i := range g.levels {
			lvl := &g.levels[i]
			if lvl.held == 0 && lvl.price >= fillPrice && lvl.price < g.anchor {
				lvl.held = sig.Amount
				lvl.buyPrice = fillPrice
				g.log.Trade("[%s] Grid buy filled at level $%.2f (%.6f)", g.pair, lvl.price, sig.Amount)
				return
			}
		}
		// Price gapped below all levels; hold it on the deepest one.
		if len(g.levels) > 0 {
			g.levels[0].held = sig.Amount
			g.levels[0].buyPrice = fillPrice
		}
		return
	}

	for i := range g.levels {
		lvl := &g.levels[i]
		if lvl.held == sig.Amount {
			g.log.Trade("[%s] Grid sell filled, level $%.2f freed", g.pair, lvl.price)
			lvl.held = 0
			lvl.buyPrice = 0
			return
		}
	}
}

func (g *Grid) OnRejected(sig types.Signal) {
	g.log.Warning("[%s] Grid %s rejected at $%.2f", g.pair, sig.Side, sig.Price)
}

func (g *Grid) initLevels(price float64) {
	g.anchor = price
	spacing := g.cfg.SpacingPct / 100
	g.levels = make([]gridLevel, 0, g.cfg.Levels*2)
	for i := -g.cfg.Levels; i <= g.cfg.Levels; i++ {
		if i == 0 {
			continue
		}
		g.levels = append(g.levels, gridLevel{price: price * (1 + float64(i)*spacing)})
	}
	sort.Slice(g.levels, func(i, j int) bool { return g.levels[i].price < g.levels[j].price })
	g.log.Info("[%s] Grid anchored at $%.2f, %d levels", g.pair, price, len(g.levels))
}
