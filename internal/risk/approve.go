package risk

import (
	"fmt"

	"github.com/alphabot/alpha-bot/pkg/types"
)

// ApproveSignal runs the signal through the risk rule chain and returns
// true only if every check passes. Checks run in a fixed order: circuit
// breakers (1-3) are global safety interlocks that short-circuit before
// any per-trade arithmetic; capacity and sizing checks (4-7) are ordinary
// admission control evaluated only when the bot is healthy.
//
// The only state mutation is a breaker-triggered pause; a rejection is a
// normal control-flow outcome, never an error.
func (m *Manager) ApproveSignal(sig types.Signal) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 1. Pause gate
	if m.paused {
		m.log.Warning("Bot is paused (%s) - rejecting %s %s", m.pauseDetail, sig.Side, sig.Pair)
		return false
	}

	// 2. Daily loss circuit breaker
	if lossPct := m.dailyLossPctLocked(); lossPct >= m.cfg.DailyLossLimitPct {
		m.pauseLocked(PauseDailyLoss, fmt.Sprintf("daily loss limit reached (%.1f%%)", lossPct))
		return false
	}

	// 3. Win-rate circuit breaker
	if len(m.tradeResults) >= m.cfg.WinRateWindow {
		if rate := m.winRateLocked(); rate < m.cfg.MinWinRatePct {
			m.pauseLocked(PauseWinRate, fmt.Sprintf("win rate too low (%.1f%% over last %d trades)", rate, m.cfg.WinRateWindow))
			return false
		}
	}

	opening := sig.IsOpening()

	// 4. Max concurrent positions across all pairs/exchanges.
	// A capacity limit, not a breaker: reject without pausing.
	if opening && len(m.openPositions) >= m.cfg.MaxConcurrent {
		m.log.Info("Max concurrent positions (%d) reached - rejecting %s %s",
			m.cfg.MaxConcurrent, sig.Pair, sig.PositionType)
		return false
	}

	// 5. Max 1 position per pair
	if opening && m.hasPositionLocked(sig.Pair) {
		m.log.Info("Already have open position on %s - rejecting", sig.Pair)
		return false
	}

	// 6. Position size limit. trade_value is collateral for futures,
	// order value for spot; both are checked against the same cap,
	// sized off the signal's own exchange pool.
	tradeValue := sig.TradeValue()
	exchangeCapital := m.exchangeCapital[sig.ExchangeID]
	if exchangeCapital <= 0 {
		exchangeCapital = m.capital // pool not set, fall back to total
	}
	maxValue := exchangeCapital * (m.cfg.MaxPositionPct / 100)
	tolerance := 1 + m.cfg.SizeTolerancePct/100
	if tradeValue > maxValue*tolerance {
		label := "Order value"
		if sig.PositionType.IsFutures() && sig.Leverage > 1 {
			label = "Futures collateral"
		}
		m.log.Info("%s $%.2f exceeds max $%.2f (%.0f%% of $%.2f %s capital) - rejecting %s",
			label, tradeValue, maxValue, m.cfg.MaxPositionPct,
			exchangeCapital, sig.ExchangeID, sig.Pair)
		return false
	}

	// 7. Total exposure cap (collateral-based for futures)
	if opening {
		newExposurePct := 0.0
		if m.capital > 0 {
			newExposurePct = (m.totalExposureLocked() + tradeValue) / m.capital * 100
		}
		if newExposurePct > m.cfg.MaxTotalExposurePct {
			m.log.Info("Total exposure would be %.1f%% (cap %.1f%%) - rejecting %s",
				newExposurePct, m.cfg.MaxTotalExposurePct, sig.Pair)
			return false
		}
	}

	m.log.Info("Signal approved: %s %s %s %.6f @ $%.2f (value=$%.2f, %dx) | "+
		"%s_capital=$%.2f | positions=%d, exposure=%.1f%%, daily_pnl=$%.2f",
		sig.PositionType, sig.Side, sig.Pair, sig.Amount, sig.Price,
		tradeValue, sig.Leverage, sig.ExchangeID, exchangeCapital,
		len(m.openPositions), m.totalExposurePctLocked(), m.dailyPnL)
	return true
}
