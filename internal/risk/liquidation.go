package risk

import "github.com/alphabot/alpha-bot/pkg/types"

// CheckLiquidationRisk returns the distance to liquidation as a
// percentage of the current price for the pair's leveraged position.
// The second return is false when the pair has no position with
// leverage above 1 (spot has no liquidation concept).
//
// Long:  liq_price = entry * (1 - 1/leverage)
// Short: liq_price = entry * (1 + 1/leverage)
//
// This is a monitoring read for external alerting; it never gates trades.
func (m *Manager) CheckLiquidationRisk(pair string, currentPrice float64) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if currentPrice <= 0 {
		return 0, false
	}

	for _, pos := range m.openPositions {
		if pos.Pair != pair || pos.Leverage <= 1 {
			continue
		}
		lev := float64(pos.Leverage)
		switch pos.PositionType {
		case types.PositionLong:
			liqPrice := pos.EntryPrice * (1 - 1/lev)
			return (currentPrice - liqPrice) / currentPrice * 100, true
		case types.PositionShort:
			liqPrice := pos.EntryPrice * (1 + 1/lev)
			return (liqPrice - currentPrice) / currentPrice * 100, true
		}
	}
	return 0, false
}
