package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/alphabot/alpha-bot/internal/config"
	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/internal/risk"
	"github.com/alphabot/alpha-bot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRiskManager(t *testing.T) *risk.Manager {
	t.Helper()
	cfg := config.RiskConfig{
		MaxPositionPct:      30,
		MaxTotalExposurePct: 60,
		MaxConcurrent:       2,
		DailyLossLimitPct:   5,
		MinWinRatePct:       40,
		WinRateWindow:       20,
		SizeTolerancePct:    5,
	}
	return risk.NewManager(cfg, 1000, logger.Discard())
}

func viewWithCandles(pair string, candles []types.OHLCV, price float64) View {
	return View{
		Pair:    pair,
		Candles: candles,
		Tickers: map[string]types.Ticker{
			"bybit": {Symbol: pair, Price: price, Timestamp: time.Now()},
		},
	}
}

func steadyCandles(n int, price float64) []types.OHLCV {
	out := make([]types.OHLCV, n)
	for i := range out {
		offset := price * 0.0005
		if i%2 == 0 {
			offset = -offset
		}
		out[i] = types.OHLCV{
			Open: price + offset, High: price + price*0.001,
			Low: price - price*0.001, Close: price + offset,
			Volume: 1000,
		}
	}
	return out
}

func TestScalp_TakeProfitExit(t *testing.T) {
	rm := testRiskManager(t)
	scalp := NewScalp("BTCUSDT", DefaultScalpConfig("bybit", 20), rm, logger.Discard())
	scalp.OnStart()

	entry := types.Signal{
		Pair: "BTCUSDT", Side: types.SideBuy, Price: 50000, Amount: 0.001,
		PositionType: types.PositionLong, Leverage: 20, ExchangeID: "bybit",
		Strategy: types.StrategyScalp,
	}
	scalp.OnFill(entry, 50000)

	// +1.2% clears the 1.0% take profit.
	view := viewWithCandles("BTCUSDT", steadyCandles(40, 50600), 50600)
	signals, err := scalp.Check(context.Background(), view)
	require.NoError(t, err)
	require.Len(t, signals, 1)

	exit := signals[0]
	assert.Equal(t, types.SideSell, exit.Side)
	assert.True(t, exit.ReduceOnly)
	assert.Equal(t, entry.Amount, exit.Amount)
	assert.False(t, exit.IsOpening())
}

func TestScalp_StopLossExit(t *testing.T) {
	rm := testRiskManager(t)
	scalp := NewScalp("BTCUSDT", DefaultScalpConfig("bybit", 20), rm, logger.Discard())
	scalp.OnStart()

	scalp.OnFill(types.Signal{
		Pair: "BTCUSDT", Side: types.SideBuy, Price: 50000, Amount: 0.001,
		PositionType: types.PositionLong, Leverage: 20, ExchangeID: "bybit",
	}, 50000)

	// -0.6% breaches the 0.5% stop.
	view := viewWithCandles("BTCUSDT", steadyCandles(40, 49700), 49700)
	signals, err := scalp.Check(context.Background(), view)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.True(t, signals[0].ReduceOnly)
}

func TestScalp_OversoldEntry(t *testing.T) {
	rm := testRiskManager(t)
	scalp := NewScalp("BTCUSDT", DefaultScalpConfig("bybit", 20), rm, logger.Discard())
	scalp.OnStart()

	// Steady decline drives RSI to the floor; momentum trigger fires
	// short before RSI is even consulted.
	candles := make([]types.OHLCV, 40)
	price := 50000.0
	for i := range candles {
		candles[i] = types.OHLCV{Open: price, High: price + 10, Low: price - 260, Close: price - 250, Volume: 1000}
		price -= 250
	}
	view := viewWithCandles("BTCUSDT", candles, price)
	signals, err := scalp.Check(context.Background(), view)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, types.SideSell, signals[0].Side)
	assert.Equal(t, types.PositionShort, signals[0].PositionType)
	assert.True(t, signals[0].IsOpening())
}

func TestFuturesMomentum_RequiresBothTriggers(t *testing.T) {
	rm := testRiskManager(t)
	fm := NewFuturesMomentum("ETHUSDT", DefaultFuturesMomentumConfig("bybit", 5), rm, logger.Discard())
	fm.OnStart()

	// Flat market: RSI neutral, no MACD cross, no entry.
	view := viewWithCandles("ETHUSDT", steadyCandles(60, 3000), 3000)
	signals, err := fm.Check(context.Background(), view)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestFuturesMomentum_LeverageCap(t *testing.T) {
	cfg := DefaultFuturesMomentumConfig("bybit", 50)
	assert.Equal(t, 20, cfg.Leverage)
}

func TestGrid_BuysBelowAnchorSellsAbove(t *testing.T) {
	rm := testRiskManager(t)
	grid := NewGrid("BTCUSDT", DefaultGridConfig("bybit"), rm, logger.Discard())
	grid.OnStart()

	ctx := context.Background()

	// First tick anchors the grid, no signals.
	signals, err := grid.Check(ctx, viewWithCandles("BTCUSDT", steadyCandles(40, 50000), 50000))
	require.NoError(t, err)
	assert.Empty(t, signals)

	// Price drops one spacing: expect a buy.
	signals, err = grid.Check(ctx, viewWithCandles("BTCUSDT", steadyCandles(40, 49500), 49500))
	require.NoError(t, err)
	require.Len(t, signals, 1)
	buy := signals[0]
	assert.Equal(t, types.SideBuy, buy.Side)
	assert.Equal(t, types.PositionSpot, buy.PositionType)
	grid.OnFill(buy, 49500)

	// Price recovers past the spacing above the fill: expect the sell.
	signals, err = grid.Check(ctx, viewWithCandles("BTCUSDT", steadyCandles(40, 50000), 50000))
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, types.SideSell, signals[0].Side)
	assert.Equal(t, buy.Amount, signals[0].Amount)
}

func TestGrid_TightModeHalvesSpacing(t *testing.T) {
	cfg := DefaultGridConfig("bybit")
	cfg.Tight = true
	grid := NewGrid("BTCUSDT", cfg, testRiskManager(t), logger.Discard())
	assert.InDelta(t, 0.4, grid.cfg.SpacingPct, 1e-9)
}

func TestArbitrage_EntryAndUnwind(t *testing.T) {
	rm := testRiskManager(t)
	cfg := DefaultArbitrageConfig("bybit", "bybit_futures", 0.5)
	arb := NewArbitrage("BTCUSDT", cfg, rm, logger.Discard())
	arb.OnStart()

	ctx := context.Background()
	wide := View{
		Pair: "BTCUSDT",
		Tickers: map[string]types.Ticker{
			"bybit":         {Symbol: "BTCUSDT", Price: 50000},
			"bybit_futures": {Symbol: "BTCUSDT", Price: 50400}, // +0.8%
		},
	}

	signals, err := arb.Check(ctx, wide)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, types.SideBuy, signals[0].Side)
	assert.Equal(t, types.PositionSpot, signals[0].PositionType)
	assert.Equal(t, types.SideSell, signals[1].Side)
	assert.Equal(t, types.PositionShort, signals[1].PositionType)

	arb.OnFill(signals[0], 50000)
	arb.OnFill(signals[1], 50400)

	// Spread still wide: hold.
	signals, err = arb.Check(ctx, wide)
	require.NoError(t, err)
	assert.Empty(t, signals)

	// Spread compressed below the close threshold: unwind both legs.
	tight := View{
		Pair: "BTCUSDT",
		Tickers: map[string]types.Ticker{
			"bybit":         {Symbol: "BTCUSDT", Price: 50000},
			"bybit_futures": {Symbol: "BTCUSDT", Price: 50040}, // +0.08%
		},
	}
	signals, err = arb.Check(ctx, tight)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.True(t, signals[1].ReduceOnly)
}

func TestMomentum_ExitsOnOverboughtRSI(t *testing.T) {
	rm := testRiskManager(t)
	mom := NewMomentum("BTCUSDT", DefaultMomentumConfig("bybit"), rm, logger.Discard())
	mom.OnStart()

	mom.OnFill(types.Signal{
		Pair: "BTCUSDT", Side: types.SideBuy, Price: 50000, Amount: 0.002,
		PositionType: types.PositionSpot, Leverage: 1, ExchangeID: "bybit",
	}, 50000)

	// Straight climb saturates RSI well past the 75 exit.
	candles := make([]types.OHLCV, 40)
	price := 50000.0
	for i := range candles {
		candles[i] = types.OHLCV{Open: price, High: price + 120, Low: price - 10, Close: price + 100, Volume: 1000}
		price += 100
	}
	view := viewWithCandles("BTCUSDT", candles, 50500)
	signals, err := mom.Check(context.Background(), view)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, types.SideSell, signals[0].Side)
}
