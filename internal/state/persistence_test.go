package state

import (
	"testing"
	"time"

	"github.com/alphabot/alpha-bot/internal/config"
	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/internal/risk"
	"github.com/alphabot/alpha-bot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRiskManager(capital float64) *risk.Manager {
	cfg := config.RiskConfig{
		MaxPositionPct:      30,
		MaxTotalExposurePct: 60,
		MaxConcurrent:       2,
		DailyLossLimitPct:   5,
		MinWinRatePct:       40,
		WinRateWindow:       20,
		SizeTolerancePct:    5,
	}
	return risk.NewManager(cfg, capital, logger.Discard())
}

func TestPersistence_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := NewPersistence(dir, logger.Discard())

	rm := newRiskManager(1000)
	require.NoError(t, rm.RecordOpen(types.Signal{
		Pair: "BTCUSDT", Side: types.SideBuy, Price: 50000, Amount: 0.004,
		PositionType: types.PositionSpot, Leverage: 1, ExchangeID: "bybit",
		Strategy: types.StrategyGrid,
	}))
	require.NoError(t, p.Save(rm))

	snap, err := p.Load()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 1000.0, snap.Capital)
	require.Len(t, snap.OpenPositions, 1)
	assert.Equal(t, "BTCUSDT", snap.OpenPositions[0].Pair)
	assert.WithinDuration(t, time.Now(), snap.SavedAt, time.Minute)
}

func TestPersistence_LoadMissingFile(t *testing.T) {
	p := NewPersistence(t.TempDir(), logger.Discard())
	snap, err := p.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestPersistence_RestoreCarriesPositionsAndCapital(t *testing.T) {
	dir := t.TempDir()
	p := NewPersistence(dir, logger.Discard())

	source := newRiskManager(1000)
	require.NoError(t, source.RecordOpen(types.Signal{
		Pair: "ETHUSDT", Side: types.SideBuy, Price: 3000, Amount: 0.05,
		PositionType: types.PositionLong, Leverage: 5, ExchangeID: "bybit_futures",
		Strategy: types.StrategyFuturesMomentum,
	}))
	require.NoError(t, source.RecordClose("ETHUSDT", 25))
	require.NoError(t, p.Save(source))

	snap, err := p.Load()
	require.NoError(t, err)

	fresh := newRiskManager(0)
	p.Restore(snap, fresh)

	assert.InDelta(t, 1025.0, fresh.GetCapital(), 1e-9)
	// Snapshot was written today, so the daily counter carries over.
	assert.InDelta(t, 25.0, fresh.DailyPnL(), 1e-9)
	assert.False(t, fresh.HasPosition("ETHUSDT"))
}

func TestPersistence_RestoreReappliesWinRatePause(t *testing.T) {
	dir := t.TempDir()
	p := NewPersistence(dir, logger.Discard())

	source := newRiskManager(1000)
	// 20 straight losses trips the win-rate breaker on the next approval.
	for i := 0; i < 20; i++ {
		require.NoError(t, source.RecordOpen(types.Signal{
			Pair: "BTCUSDT", Side: types.SideBuy, Price: 100, Amount: 0.1,
			PositionType: types.PositionSpot, Leverage: 1, ExchangeID: "bybit",
		}))
		require.NoError(t, source.RecordClose("BTCUSDT", -0.01))
	}
	approved := source.ApproveSignal(types.Signal{
		Pair: "BTCUSDT", Side: types.SideBuy, Price: 100, Amount: 0.1,
		PositionType: types.PositionSpot, Leverage: 1, ExchangeID: "bybit",
	})
	require.False(t, approved)
	paused, _ := source.IsPaused()
	require.True(t, paused)
	require.NoError(t, p.Save(source))

	snap, err := p.Load()
	require.NoError(t, err)

	fresh := newRiskManager(0)
	p.Restore(snap, fresh)
	paused, _ = fresh.IsPaused()
	assert.True(t, paused)
}

func TestPersistence_RestoreNilSnapshotIsNoop(t *testing.T) {
	p := NewPersistence(t.TempDir(), logger.Discard())
	rm := newRiskManager(500)
	p.Restore(nil, rm)
	assert.Equal(t, 500.0, rm.GetCapital())
}

func TestPersistence_AtomicWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	p := NewPersistence(dir, logger.Discard())
	require.NoError(t, p.Save(newRiskManager(1000)))

	_, err := p.Load()
	require.NoError(t, err)
	assert.NoFileExists(t, p.path()+".tmp")
}
