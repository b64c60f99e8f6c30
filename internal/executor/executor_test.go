package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/alphabot/alpha-bot/internal/config"
	"github.com/alphabot/alpha-bot/internal/exchange"
	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/internal/risk"
	"github.com/alphabot/alpha-bot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSetup(t *testing.T) (*Executor, *risk.Manager, *exchange.PaperExchange) {
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
	rm := risk.NewManager(cfg, 1000, logger.Discard())
	venue := exchange.NewPaperExchange("bybit")
	exec := New(rm, map[string]exchange.Exchange{"bybit": venue}, logger.Discard(), nil)
	return exec, rm, venue
}

func spotBuySignal(pair string, price, amount float64) types.Signal {
	return types.Signal{
		Pair:         pair,
		Side:         types.SideBuy,
		Price:        price,
		Amount:       amount,
		PositionType: types.PositionSpot,
		Leverage:     1,
		ExchangeID:   "bybit",
		Strategy:     types.StrategyGrid,
	}
}

func TestExecute_OpenRecordsPosition(t *testing.T) {
	exec, rm, venue := testSetup(t)
	venue.SetTicker("BTCUSDT", 50000)

	order, err := exec.Execute(context.Background(), spotBuySignal("BTCUSDT", 50000, 0.004))
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, exchange.OrderStatusFilled, order.Status)

	pos, ok := rm.OpenPosition("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 50000.0, pos.EntryPrice)
	assert.Len(t, venue.Orders(), 1)
}

func TestExecute_RejectedSignalPlacesNoOrder(t *testing.T) {
	exec, rm, venue := testSetup(t)
	venue.SetTicker("BTCUSDT", 50000)

	// 400 on 1000 capital breaches the 30% per-trade cap.
	_, err := exec.Execute(context.Background(), spotBuySignal("BTCUSDT", 50000, 0.008))
	assert.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, venue.Orders())
	assert.False(t, rm.HasPosition("BTCUSDT"))
}

func TestExecute_CloseRealizesPnL(t *testing.T) {
	exec, rm, venue := testSetup(t)
	venue.SetTicker("BTCUSDT", 50000)

	_, err := exec.Execute(context.Background(), spotBuySignal("BTCUSDT", 50000, 0.004))
	require.NoError(t, err)

	// Price moves up 2.5%: closing the 0.004 lot nets $5.
	venue.SetTicker("BTCUSDT", 51250)
	sell := spotBuySignal("BTCUSDT", 51250, 0.004)
	sell.Side = types.SideSell

	_, err = exec.Execute(context.Background(), sell)
	require.NoError(t, err)

	assert.False(t, rm.HasPosition("BTCUSDT"))
	assert.InDelta(t, 1005.0, rm.GetCapital(), 1e-9)
	assert.InDelta(t, 5.0, rm.DailyPnL(), 1e-9)
}

func TestExecute_FuturesPnLScalesByLeverage(t *testing.T) {
	exec, rm, venue := testSetup(t)
	venue.SetTicker("ETHUSDT", 3000)

	long := types.Signal{
		Pair: "ETHUSDT", Side: types.SideBuy, Price: 3000, Amount: 0.05,
		PositionType: types.PositionLong, Leverage: 5, ExchangeID: "bybit",
		Strategy: types.StrategyFuturesMomentum,
	}
	_, err := exec.Execute(context.Background(), long)
	require.NoError(t, err)
	assert.Equal(t, 5, venue.Leverage("ETHUSDT"))

	// +1% on 5x: move 30 * qty 0.05 * 5 = $7.50.
	venue.SetTicker("ETHUSDT", 3030)
	closeSig := long
	closeSig.Side = types.SideSell
	closeSig.Price = 3030
	closeSig.ReduceOnly = true

	_, err = exec.Execute(context.Background(), closeSig)
	require.NoError(t, err)
	assert.InDelta(t, 1007.5, rm.GetCapital(), 1e-9)
}

func TestExecute_CloseWithoutPositionFails(t *testing.T) {
	exec, _, venue := testSetup(t)
	venue.SetTicker("BTCUSDT", 50000)

	sell := spotBuySignal("BTCUSDT", 50000, 0.004)
	sell.Side = types.SideSell
	_, err := exec.Execute(context.Background(), sell)
	assert.ErrorIs(t, err, risk.ErrNoPosition)
	assert.Empty(t, venue.Orders())
}

func TestExecute_VenueErrorLeavesStateClean(t *testing.T) {
	exec, rm, venue := testSetup(t)
	venue.SetTicker("BTCUSDT", 50000)
	venue.FailNextOrder(errors.New("connection reset"))

	_, err := exec.Execute(context.Background(), spotBuySignal("BTCUSDT", 50000, 0.004))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)

	// Approval consumed no exposure: the same signal goes through once
	// the venue recovers.
	_, err = exec.Execute(context.Background(), spotBuySignal("BTCUSDT", 50000, 0.004))
	require.NoError(t, err)
	assert.True(t, rm.HasPosition("BTCUSDT"))
}

func TestExecute_InvalidSignal(t *testing.T) {
	exec, _, _ := testSetup(t)
	bad := spotBuySignal("BTCUSDT", -1, 0.004)
	_, err := exec.Execute(context.Background(), bad)
	assert.Error(t, err)
}

func TestExecute_UnknownVenue(t *testing.T) {
	exec, _, _ := testSetup(t)
	sig := spotBuySignal("BTCUSDT", 50000, 0.004)
	sig.ExchangeID = "kraken"
	_, err := exec.Execute(context.Background(), sig)
	assert.Error(t, err)
}

func hedgedSetup(t *testing.T) (*Executor, *risk.Manager, *exchange.PaperExchange, *exchange.PaperExchange) {
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
	rm := risk.NewManager(cfg, 1000, logger.Discard())
	spot := exchange.NewPaperExchange("bybit")
	futures := exchange.NewPaperExchange("bybit_futures")
	exec := New(rm, map[string]exchange.Exchange{"bybit": spot, "bybit_futures": futures}, logger.Discard(), nil)
	return exec, rm, spot, futures
}

func arbLegs(pair string, spotPrice, futPrice, amount float64) (types.Signal, types.Signal) {
	primary := types.Signal{
		Pair: pair, Side: types.SideBuy, Price: spotPrice, Amount: amount,
		PositionType: types.PositionSpot, Leverage: 1, ExchangeID: "bybit",
		Strategy: types.StrategyArbitrage,
	}
	hedge := types.Signal{
		Pair: pair, Side: types.SideSell, Price: futPrice, Amount: amount / 2,
		PositionType: types.PositionShort, Leverage: 2, ExchangeID: "bybit_futures",
		Strategy: types.StrategyArbitrage,
	}
	return primary, hedge
}

func TestExecuteHedged_OpenRecordsOnePosition(t *testing.T) {
	exec, rm, spot, futures := hedgedSetup(t)
	spot.SetTicker("BTCUSDT", 50000)
	futures.SetTicker("BTCUSDT", 50500)

	primary, hedge := arbLegs("BTCUSDT", 50000, 50500, 0.004)
	primaryOrder, hedgeOrder, err := exec.ExecuteHedged(context.Background(), primary, hedge)
	require.NoError(t, err)
	require.NotNil(t, primaryOrder)
	require.NotNil(t, hedgeOrder)

	// One tracked position for the pair: the spot leg.
	pos, ok := rm.OpenPosition("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, types.PositionSpot, pos.PositionType)
	assert.Len(t, spot.Orders(), 1)
	assert.Len(t, futures.Orders(), 1)
	assert.Equal(t, 2, futures.Leverage("BTCUSDT"))
}

func TestExecuteHedged_HedgeFailureFlattensPrimary(t *testing.T) {
	exec, rm, spot, futures := hedgedSetup(t)
	spot.SetTicker("BTCUSDT", 50000)
	futures.SetTicker("BTCUSDT", 50500)
	futures.FailNextOrder(errors.New("margin check failed"))

	primary, hedge := arbLegs("BTCUSDT", 50000, 50500, 0.004)
	_, _, err := exec.ExecuteHedged(context.Background(), primary, hedge)
	require.Error(t, err)

	// The naked spot buy was immediately sold back and nothing tracked.
	assert.False(t, rm.HasPosition("BTCUSDT"))
	orders := spot.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, types.SideBuy, orders[0].Side)
	assert.Equal(t, types.SideSell, orders[1].Side)
	assert.Empty(t, futures.Orders())
}

func TestExecuteHedged_CloseUnwindsBothLegs(t *testing.T) {
	exec, rm, spot, futures := hedgedSetup(t)
	spot.SetTicker("BTCUSDT", 50000)
	futures.SetTicker("BTCUSDT", 50500)

	primary, hedge := arbLegs("BTCUSDT", 50000, 50500, 0.004)
	_, _, err := exec.ExecuteHedged(context.Background(), primary, hedge)
	require.NoError(t, err)

	// Spread converged: spot rose to meet futures.
	spot.SetTicker("BTCUSDT", 50400)
	futures.SetTicker("BTCUSDT", 50450)
	closePrimary := primary
	closePrimary.Side = types.SideSell
	closePrimary.Price = 50400
	closeHedge := hedge
	closeHedge.Side = types.SideBuy
	closeHedge.Price = 50450
	closeHedge.ReduceOnly = true

	_, _, err = exec.ExecuteHedged(context.Background(), closePrimary, closeHedge)
	require.NoError(t, err)

	assert.False(t, rm.HasPosition("BTCUSDT"))
	// Spot leg gained 400 * 0.004 = $1.60; the hedge leg settles on its
	// own venue and shows up at the next balance sync.
	assert.InDelta(t, 1001.6, rm.GetCapital(), 1e-9)
	assert.Len(t, futures.Orders(), 2)
}

func TestExecuteHedged_RejectedPlacesNothing(t *testing.T) {
	exec, rm, spot, futures := hedgedSetup(t)
	spot.SetTicker("BTCUSDT", 50000)
	futures.SetTicker("BTCUSDT", 50500)

	// 0.008 BTC at $50k is $400 against the $315 per-trade cap.
	primary, hedge := arbLegs("BTCUSDT", 50000, 50500, 0.008)
	_, _, err := exec.ExecuteHedged(context.Background(), primary, hedge)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, spot.Orders())
	assert.Empty(t, futures.Orders())
	assert.False(t, rm.HasPosition("BTCUSDT"))
}

func TestExecute_FillPriceOverridesSignalPrice(t *testing.T) {
	exec, rm, venue := testSetup(t)
	// Paper venue fills at the seeded ticker, not the signal price.
	venue.SetTicker("BTCUSDT", 50100)

	_, err := exec.Execute(context.Background(), spotBuySignal("BTCUSDT", 50000, 0.004))
	require.NoError(t, err)

	pos, ok := rm.OpenPosition("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 50100.0, pos.EntryPrice)
}
