package strategy

import (
	"sync"

	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/internal/market"
	"github.com/alphabot/alpha-bot/pkg/types"
)

// Selector maps market conditions to the strategy that should run for
// each pair. Arbitrage takes priority when an opportunity exists;
// extreme volatility pauses the pair entirely.
type Selector struct {
	log        *logger.Logger
	arbEnabled bool

	mu      sync.Mutex
	current map[string]types.StrategyName
}

// extremeVolumeRatio marks volatility too hot to trade through.
const extremeVolumeRatio = 2.0

func NewSelector(log *logger.Logger, arbEnabled bool) *Selector {
	return &Selector{
		log:        log,
		arbEnabled: arbEnabled,
		current:    make(map[string]types.StrategyName),
	}
}

// Current returns the strategy running for a pair ("" when paused or
// never selected).
func (s *Selector) Current(pair string) types.StrategyName {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current[pair]
}

// Selection is the outcome of one selection pass for a pair.
type Selection struct {
	Strategy types.StrategyName // "" means pause the pair
	Tight    bool               // grid should use tight spacing
	Switched bool
	Reason   string
}

// Select chooses a strategy for the analyzed pair.
func (s *Selector) Select(analysis *market.Analysis, arbOpportunity bool) Selection {
	pair := analysis.Pair

	var sel Selection
	switch {
	case s.arbEnabled && arbOpportunity:
		sel.Strategy = types.StrategyArbitrage
		sel.Reason = "cross-exchange spread above threshold"

	case analysis.Condition == market.ConditionSideways:
		sel.Strategy = types.StrategyGrid
		sel.Reason = analysis.Reason

	case analysis.Condition == market.ConditionTrending:
		sel.Strategy = types.StrategyMomentum
		sel.Reason = analysis.Reason

	case analysis.Condition == market.ConditionVolatile:
		if analysis.VolumeRatio > extremeVolumeRatio && analysis.ATR > 0 {
			sel.Reason = "extreme volatility"
		} else {
			sel.Strategy = types.StrategyGrid
			sel.Tight = true
			sel.Reason = "moderate volatility, tight grid"
		}

	default:
		sel.Strategy = types.StrategyGrid
		sel.Reason = "fallback"
	}

	s.mu.Lock()
	previous := s.current[pair]
	s.current[pair] = sel.Strategy
	s.mu.Unlock()

	sel.Switched = previous != sel.Strategy
	if sel.Strategy == "" {
		s.log.Warning("[%s] Pausing pair: %s", pair, sel.Reason)
	} else if sel.Switched {
		from := string(previous)
		if from == "" {
			from = "none"
		}
		s.log.Info("[%s] Strategy switched: %s -> %s (%s)", pair, from, sel.Strategy, sel.Reason)
	}
	return sel
}
