package strategy

import (
	"testing"

	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/internal/market"
	"github.com/alphabot/alpha-bot/pkg/types"
	"github.com/stretchr/testify/assert"
)

func analysisFor(condition market.Condition) *market.Analysis {
	return &market.Analysis{
		Pair:        "BTCUSDT",
		Condition:   condition,
		ATR:         100,
		VolumeRatio: 1.0,
		Reason:      "test",
	}
}

func TestSelector_ConditionMapping(t *testing.T) {
	log := logger.Discard()
	sel := NewSelector(log, true)

	t.Run("sideways selects grid", func(t *testing.T) {
		out := sel.Select(analysisFor(market.ConditionSideways), false)
		assert.Equal(t, types.StrategyGrid, out.Strategy)
		assert.False(t, out.Tight)
	})

	t.Run("trending selects momentum", func(t *testing.T) {
		out := sel.Select(analysisFor(market.ConditionTrending), false)
		assert.Equal(t, types.StrategyMomentum, out.Strategy)
		assert.True(t, out.Switched)
	})

	t.Run("arbitrage takes priority over condition", func(t *testing.T) {
		out := sel.Select(analysisFor(market.ConditionTrending), true)
		assert.Equal(t, types.StrategyArbitrage, out.Strategy)
	})

	t.Run("moderate volatility uses tight grid", func(t *testing.T) {
		a := analysisFor(market.ConditionVolatile)
		a.VolumeRatio = 1.5
		out := sel.Select(a, false)
		assert.Equal(t, types.StrategyGrid, out.Strategy)
		assert.True(t, out.Tight)
	})

	t.Run("extreme volatility pauses the pair", func(t *testing.T) {
		a := analysisFor(market.ConditionVolatile)
		a.VolumeRatio = 3.0
		out := sel.Select(a, false)
		assert.Empty(t, out.Strategy)
		assert.Empty(t, sel.Current("BTCUSDT"))
	})
}

func TestSelector_ArbDisabled(t *testing.T) {
	sel := NewSelector(logger.Discard(), false)
	out := sel.Select(analysisFor(market.ConditionSideways), true)
	assert.Equal(t, types.StrategyGrid, out.Strategy)
}

func TestSelector_SwitchTracking(t *testing.T) {
	sel := NewSelector(logger.Discard(), true)

	first := sel.Select(analysisFor(market.ConditionSideways), false)
	assert.True(t, first.Switched)

	second := sel.Select(analysisFor(market.ConditionSideways), false)
	assert.False(t, second.Switched)
	assert.Equal(t, types.StrategyGrid, sel.Current("BTCUSDT"))
}
