package strategy

import (
	"context"

	"github.com/alphabot/alpha-bot/pkg/types"
)

// View is the market snapshot handed to a strategy on each check.
// Tickers are keyed by exchange ID; Candles come from the venue the
// strategy trades on, oldest first.
type View struct {
	Pair    string
	Candles []types.OHLCV
	Tickers map[string]types.Ticker
}

// Price returns the freshest price in the view: the first ticker if
// any, otherwise the last close.
func (v View) Price() float64 {
	for _, t := range v.Tickers {
		if t.Price > 0 {
			return t.Price
		}
	}
	if len(v.Candles) > 0 {
		return v.Candles[len(v.Candles)-1].Close
	}
	return 0
}

// Closes extracts the close series from the candles.
func (v View) Closes() []float64 {
	out := make([]float64, len(v.Candles))
	for i, c := range v.Candles {
		out[i] = c.Close
	}
	return out
}

// Strategy produces trade intents for a single pair. Strategies never
// place orders or mutate risk state: they emit signals and learn the
// outcome through OnFill and OnRejected.
type Strategy interface {
	Name() types.StrategyName
	Pair() string

	// OnStart resets state when the strategy is (re)activated for its pair.
	OnStart()
	// OnStop is called when the selector switches the pair away.
	OnStop()

	// Check inspects the market view and returns zero or more signals.
	Check(ctx context.Context, view View) ([]types.Signal, error)

	// OnFill confirms a signal executed at the given price.
	OnFill(sig types.Signal, fillPrice float64)
	// OnRejected tells the strategy its signal was refused.
	OnRejected(sig types.Signal)
}
