package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot/alpha-bot/internal/config"
	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/pkg/types"
)

func defaultRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxPositionPct:      30.0,
		MaxTotalExposurePct: 60.0,
		MaxConcurrent:       2,
		DailyLossLimitPct:   5.0,
		MinWinRatePct:       40.0,
		WinRateWindow:       20,
		SizeTolerancePct:    5.0,
	}
}

func newTestManager(capital float64) *Manager {
	return NewManager(defaultRiskConfig(), capital, logger.Discard())
}

func spotBuy(pair string, price, amount float64) types.Signal {
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

func futuresLong(pair string, price, amount float64, leverage int) types.Signal {
	return types.Signal{
		Pair:         pair,
		Side:         types.SideBuy,
		Price:        price,
		Amount:       amount,
		PositionType: types.PositionLong,
		Leverage:     leverage,
		ExchangeID:   "delta",
		Strategy:     types.StrategyFuturesMomentum,
	}
}

func TestApproveSignal_HappyPath(t *testing.T) {
	m := newTestManager(1000)

	approved := m.ApproveSignal(spotBuy("BTCUSDT", 10, 25)) // $250 <= 30%*1.05
	assert.True(t, approved)
}

func TestApproveSignal_PositionSizeLimit(t *testing.T) {
	// capital=$1000, max_position_pct=30 -> cap $300, tolerance +5% -> $315
	m := newTestManager(1000)

	assert.True(t, m.ApproveSignal(spotBuy("BTCUSDT", 10, 25)), "$250 within $315 cap")
	assert.False(t, m.ApproveSignal(spotBuy("BTCUSDT", 10, 35)), "$350 exceeds $315 cap")
}

func TestApproveSignal_SizeLimitUsesExchangePool(t *testing.T) {
	m := newTestManager(0)
	m.UpdateExchangeBalances(map[string]float64{"bybit": 900, "delta": 100})

	// delta pool is $100 -> cap $30*1.05 = $31.50
	sig := futuresLong("BTCUSDT", 10, 5, 5) // $50 collateral
	assert.False(t, m.ApproveSignal(sig), "collateral sized off delta pool, not total")

	small := futuresLong("BTCUSDT", 10, 3, 5) // $30 collateral
	assert.True(t, m.ApproveSignal(small))
}

func TestApproveSignal_SizeLimitFallsBackToTotalCapital(t *testing.T) {
	m := newTestManager(1000)

	// exchange pool never reported: cap comes from total capital
	sig := spotBuy("BTCUSDT", 10, 25)
	sig.ExchangeID = "unknown"
	assert.True(t, m.ApproveSignal(sig))
}

func TestApproveSignal_MaxConcurrentPositions(t *testing.T) {
	m := newTestManager(10000)

	require.NoError(t, m.RecordOpen(spotBuy("BTCUSDT", 10, 10)))
	require.NoError(t, m.RecordOpen(spotBuy("ETHUSDT", 10, 10)))

	// at the cap: any opening signal is rejected regardless of other fields
	assert.False(t, m.ApproveSignal(spotBuy("SOLUSDT", 10, 1)))
	assert.False(t, m.ApproveSignal(futuresLong("XRPUSDT", 10, 1, 5)))

	// reduce-only futures signals do not open exposure and pass the cap
	reduce := futuresLong("BTCUSDT", 10, 1, 5)
	reduce.Side = types.SideSell
	reduce.ReduceOnly = true
	assert.True(t, m.ApproveSignal(reduce))

	// spot sells close exposure and pass too
	sell := spotBuy("BTCUSDT", 10, 10)
	sell.Side = types.SideSell
	assert.True(t, m.ApproveSignal(sell))
}

func TestApproveSignal_OnePositionPerPair(t *testing.T) {
	m := newTestManager(10000)

	require.NoError(t, m.RecordOpen(spotBuy("BTCUSDT", 10, 10)))

	assert.False(t, m.ApproveSignal(spotBuy("BTCUSDT", 10, 1)),
		"second opening signal for the same pair is always rejected")
	assert.True(t, m.ApproveSignal(spotBuy("ETHUSDT", 10, 1)))
}

func TestApproveSignal_TotalExposureCap(t *testing.T) {
	// capital=$1000, cap=60%; open $500 spot (50%); +$150 -> 65% -> reject
	m := newTestManager(1000)
	require.NoError(t, m.RecordOpen(spotBuy("BTCUSDT", 10, 50)))

	assert.False(t, m.ApproveSignal(spotBuy("ETHUSDT", 10, 15)), "65% exceeds 60% cap")
	assert.True(t, m.ApproveSignal(spotBuy("ETHUSDT", 10, 9)), "59% within cap")
}

func TestApproveSignal_PauseGate(t *testing.T) {
	m := newTestManager(1000)
	m.Pause("maintenance")

	assert.False(t, m.ApproveSignal(spotBuy("BTCUSDT", 10, 1)))

	m.Unpause()
	assert.True(t, m.ApproveSignal(spotBuy("BTCUSDT", 10, 1)))
}

func TestDailyLossCircuitBreaker(t *testing.T) {
	m := newTestManager(1000)

	require.NoError(t, m.RecordOpen(spotBuy("BTCUSDT", 10, 10)))
	require.NoError(t, m.RecordClose("BTCUSDT", -60)) // 6% loss on ~$1000

	assert.False(t, m.ApproveSignal(spotBuy("ETHUSDT", 10, 1)))
	paused, reason := m.IsPaused()
	assert.True(t, paused)
	assert.Contains(t, reason, "daily loss")
}

func TestDailyLossPct_MonotoneAndResets(t *testing.T) {
	m := newTestManager(1000)

	assert.Equal(t, 0.0, m.DailyLossPct())

	require.NoError(t, m.RecordOpen(spotBuy("BTCUSDT", 10, 5)))
	require.NoError(t, m.RecordClose("BTCUSDT", -10))
	first := m.DailyLossPct()
	assert.Greater(t, first, 0.0)

	require.NoError(t, m.RecordOpen(spotBuy("BTCUSDT", 10, 5)))
	require.NoError(t, m.RecordClose("BTCUSDT", -10))
	assert.GreaterOrEqual(t, m.DailyLossPct(), first, "losses only accrue within a day")

	// profit does not reduce the loss metric below zero
	require.NoError(t, m.RecordOpen(spotBuy("BTCUSDT", 10, 5)))
	require.NoError(t, m.RecordClose("BTCUSDT", 100))

	m.ResetDaily()
	assert.Equal(t, 0.0, m.DailyLossPct())
	assert.Equal(t, 0.0, m.DailyPnL())
	assert.Empty(t, m.DailyPnLByPair())
}

func TestWinRateCircuitBreaker(t *testing.T) {
	m := newTestManager(100000)

	// exactly 20 results, 7 wins (35% < 40%)
	for i := 0; i < 20; i++ {
		require.NoError(t, m.RecordOpen(spotBuy("BTCUSDT", 10, 1)))
		pnl := -0.01
		if i < 7 {
			pnl = 0.01
		}
		require.NoError(t, m.RecordClose("BTCUSDT", pnl))
	}

	assert.InDelta(t, 35.0, m.WinRate(), 0.001)

	// the 21st approval call trips the breaker
	assert.False(t, m.ApproveSignal(spotBuy("ETHUSDT", 10, 1)))
	paused, reason := m.IsPaused()
	assert.True(t, paused)
	assert.Contains(t, reason, "win rate")

	// win-rate pause persists across the daily boundary
	m.ResetDaily()
	paused, _ = m.IsPaused()
	assert.True(t, paused, "win-rate pause requires manual unpause")

	m.Unpause()
	paused, _ = m.IsPaused()
	assert.False(t, paused)
}

func TestWinRate_OptimisticDefault(t *testing.T) {
	m := newTestManager(1000)
	assert.Equal(t, 100.0, m.WinRate(), "no trades yet: fresh bot is not blocked")
}

func TestWinRate_RollingWindow(t *testing.T) {
	m := newTestManager(100000)

	// 20 losses, then 20 wins: window only sees the wins
	for i := 0; i < 20; i++ {
		require.NoError(t, m.RecordOpen(spotBuy("BTCUSDT", 10, 1)))
		require.NoError(t, m.RecordClose("BTCUSDT", -0.01))
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, m.RecordOpen(spotBuy("BTCUSDT", 10, 1)))
		require.NoError(t, m.RecordClose("BTCUSDT", 0.01))
	}

	assert.Equal(t, 100.0, m.WinRate())
	assert.Len(t, m.ClosedTrades(), 40, "full history retained for reporting")
}

func TestRecordOpenClose_RoundTrip(t *testing.T) {
	m := newTestManager(1000)

	before := m.OpenPositions()
	require.NoError(t, m.RecordOpen(spotBuy("BTCUSDT", 100, 1)))
	require.True(t, m.HasPosition("BTCUSDT"))

	require.NoError(t, m.RecordClose("BTCUSDT", 12.5))

	assert.Equal(t, len(before), len(m.OpenPositions()))
	assert.False(t, m.HasPosition("BTCUSDT"))
	assert.Equal(t, 1012.5, m.GetCapital(), "capital updated by exactly pnl")
}

func TestRecordOpen_DuplicatePairRejected(t *testing.T) {
	m := newTestManager(1000)

	require.NoError(t, m.RecordOpen(spotBuy("BTCUSDT", 10, 1)))
	err := m.RecordOpen(spotBuy("BTCUSDT", 11, 1))
	assert.ErrorIs(t, err, ErrPositionExists)
	assert.Len(t, m.OpenPositions(), 1, "ledger not corrupted")
}

func TestRecordClose_NoPosition(t *testing.T) {
	m := newTestManager(1000)

	err := m.RecordClose("BTCUSDT", 5)
	assert.ErrorIs(t, err, ErrNoPosition)
	assert.Equal(t, 1000.0, m.GetCapital(), "capital untouched on invariant violation")
}

func TestCollateralAccounting(t *testing.T) {
	// futures: price=100, amount=0.05, leverage=5
	// exposure contribution = 100*0.05 = $5 (collateral), notional = $25
	m := newTestManager(1000)

	require.NoError(t, m.RecordOpen(futuresLong("BTCUSDT", 100, 0.05, 5)))

	assert.InDelta(t, 5.0, m.TotalExposure(), 1e-9)
	assert.InDelta(t, 5.0, m.FuturesExposure(), 1e-9)
	assert.InDelta(t, 25.0, m.FuturesNotional(), 1e-9)
	assert.Equal(t, 0.0, m.SpotExposure())
}

func TestExposure_ZeroCapital(t *testing.T) {
	m := newTestManager(0)
	require.NoError(t, m.RecordOpen(spotBuy("BTCUSDT", 10, 1)))

	assert.Equal(t, 0.0, m.TotalExposurePct(), "no division by zero")
	assert.Equal(t, 0.0, m.DailyLossPct())
}

func TestCheckLiquidationRisk(t *testing.T) {
	m := newTestManager(1000)

	require.NoError(t, m.RecordOpen(futuresLong("BTCUSDT", 100, 0.01, 10)))

	// liq_price = 100*(1-1/10) = 90; at 95: (95-90)/95*100 = 5.263%
	dist, ok := m.CheckLiquidationRisk("BTCUSDT", 95)
	require.True(t, ok)
	assert.InDelta(t, 5.263, dist, 0.01)
}

func TestCheckLiquidationRisk_Short(t *testing.T) {
	m := newTestManager(1000)

	short := futuresLong("ETHUSDT", 100, 0.01, 10)
	short.Side = types.SideSell
	short.PositionType = types.PositionShort
	require.NoError(t, m.RecordOpen(short))

	// liq_price = 100*(1+1/10) = 110; at 105: (110-105)/105*100 = 4.762%
	dist, ok := m.CheckLiquidationRisk("ETHUSDT", 105)
	require.True(t, ok)
	assert.InDelta(t, 4.762, dist, 0.01)
}

func TestCheckLiquidationRisk_NoFuturesPosition(t *testing.T) {
	m := newTestManager(1000)

	_, ok := m.CheckLiquidationRisk("BTCUSDT", 100)
	assert.False(t, ok, "no position at all")

	require.NoError(t, m.RecordOpen(spotBuy("BTCUSDT", 100, 1)))
	_, ok = m.CheckLiquidationRisk("BTCUSDT", 100)
	assert.False(t, ok, "spot has no liquidation concept")
}

func TestGetAvailableCapital(t *testing.T) {
	m := newTestManager(0)
	m.UpdateExchangeBalances(map[string]float64{"bybit": 1000, "delta": 200})

	require.NoError(t, m.RecordOpen(spotBuy("BTCUSDT", 10, 30))) // $300 on bybit

	assert.Equal(t, 700.0, m.GetAvailableCapital("bybit"))
	assert.Equal(t, 200.0, m.GetAvailableCapital("delta"))
	assert.Equal(t, 0.0, m.GetAvailableCapital("unknown"))
}

func TestUpdateExchangeBalances_SumsPools(t *testing.T) {
	m := newTestManager(500)
	m.UpdateExchangeBalances(map[string]float64{"bybit": 800, "delta": 150})

	assert.Equal(t, 950.0, m.GetCapital())
	assert.Equal(t, 800.0, m.GetExchangeCapital("bybit"))
	assert.Equal(t, 150.0, m.GetExchangeCapital("delta"))
}

func TestGetStatus(t *testing.T) {
	m := newTestManager(0)
	m.UpdateExchangeBalances(map[string]float64{"bybit": 900, "delta": 100})

	require.NoError(t, m.RecordOpen(spotBuy("BTCUSDT", 10, 20)))         // $200 spot
	require.NoError(t, m.RecordOpen(futuresLong("ETHUSDT", 100, 0.2, 5))) // $20 collateral

	status := m.GetStatus()
	assert.Equal(t, 1000.0, status.Capital)
	assert.Equal(t, 2, status.OpenPositions)
	assert.InDelta(t, 220.0, status.TotalExposure, 1e-9)
	assert.InDelta(t, 22.0, status.TotalExposurePct, 1e-9)
	assert.InDelta(t, 200.0, status.SpotExposure, 1e-9)
	assert.InDelta(t, 20.0, status.FuturesExposure, 1e-9)
	assert.InDelta(t, 100.0, status.FuturesNotional, 1e-9)
	assert.Equal(t, 100.0, status.WinRate)
	assert.False(t, status.IsPaused)
	assert.ElementsMatch(t, []string{"BTCUSDT", "ETHUSDT"}, status.PairsWithPositions)
}

func TestOpenPositions_SnapshotIsCopy(t *testing.T) {
	m := newTestManager(1000)
	require.NoError(t, m.RecordOpen(spotBuy("BTCUSDT", 10, 1)))

	snap := m.OpenPositions()
	snap[0].Pair = "MUTATED"

	fresh := m.OpenPositions()
	assert.Equal(t, "BTCUSDT", fresh[0].Pair)
}
