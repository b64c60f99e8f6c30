package risk

import (
	"errors"
	"sync"
	"time"

	"github.com/alphabot/alpha-bot/internal/config"
	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/pkg/types"
)

// Ledger invariant violations. These surface caller bugs: RecordOpen is
// documented to require a prior ApproveSignal pass, and RecordClose
// requires an open position for the pair.
var (
	ErrPositionExists = errors.New("position already open for pair")
	ErrNoPosition     = errors.New("no open position for pair")
)

// PauseReason identifies why the manager transitioned to PAUSED.
// ResetDaily only clears daily-loss pauses; a win-rate pause persists
// across the daily boundary and needs a manual Unpause.
type PauseReason string

const (
	PauseNone      PauseReason = ""
	PauseDailyLoss PauseReason = "daily_loss"
	PauseWinRate   PauseReason = "win_rate"
	PauseOperator  PauseReason = "operator"
)

// Manager is the single gate every trade passes through and the single
// source of truth for capital and exposure.
//
// Rules enforced:
// - Max position per trade: collateral for futures, order value for spot
// - Max N concurrent positions across all pairs/exchanges
// - Max 1 position per pair at a time
// - Total exposure capped (collateral-based for futures)
// - Daily loss circuit breaker: pause at threshold
// - Win-rate circuit breaker: pause below threshold over recent trades
//
// All state is guarded by a single RWMutex. Strategies only read;
// mutations funnel through the approve -> record pipeline, which the
// executor serializes per pair.
type Manager struct {
	cfg config.RiskConfig
	log *logger.Logger

	mu sync.RWMutex

	capital         float64
	exchangeCapital map[string]float64

	openPositions  []types.Position
	dailyPnL       float64
	dailyPnLByPair map[string]float64

	// Win/loss outcomes, appended per closed trade. The win-rate
	// breaker reads only the most recent cfg.WinRateWindow entries;
	// the full history is retained in closedTrades for reporting.
	tradeResults []bool
	closedTrades []types.TradeResult

	paused      bool
	pauseReason PauseReason
	pauseDetail string
}

// NewManager creates a risk manager with the given starting capital.
func NewManager(cfg config.RiskConfig, startingCapital float64, log *logger.Logger) *Manager {
	return &Manager{
		cfg:             cfg,
		log:             log,
		capital:         startingCapital,
		exchangeCapital: make(map[string]float64),
		dailyPnLByPair:  make(map[string]float64),
	}
}

// UpdateExchangeBalances refreshes per-exchange capital pools from live
// balance reads. Total capital becomes the sum of all pools.
func (m *Manager) UpdateExchangeBalances(balances map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, bal := range balances {
		m.exchangeCapital[id] = bal
	}
	total := 0.0
	for _, bal := range m.exchangeCapital {
		total += bal
	}
	m.capital = total
	m.log.Info("Balances updated: %v, total=$%.2f", m.exchangeCapital, m.capital)
}

// SetCapital overrides total capital (state restore on startup).
func (m *Manager) SetCapital(capital float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capital = capital
}

// GetCapital returns total capital across all exchanges.
func (m *Manager) GetCapital() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.capital
}

// GetExchangeCapital returns the capital pool of a specific exchange,
// or 0 when that exchange has never reported a balance.
func (m *Manager) GetExchangeCapital(exchangeID string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exchangeCapital[exchangeID]
}

// GetAvailableCapital returns the exchange's capital minus the exposure
// already committed to open positions on that exchange.
func (m *Manager) GetAvailableCapital(exchangeID string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	available := m.exchangeCapital[exchangeID]
	for _, p := range m.openPositions {
		if p.Exchange == exchangeID {
			available -= p.Value()
		}
	}
	if available < 0 {
		return 0
	}
	return available
}

// -- Exposure accounting ----------------------------------------------------

// totalExposureLocked sums capital at risk across open positions.
// Spot: order value. Futures: posted collateral (entry*amount is margin,
// not notional; leveraged notional would make every cap vacuous).
func (m *Manager) totalExposureLocked() float64 {
	total := 0.0
	for _, p := range m.openPositions {
		total += p.Value()
	}
	return total
}

// TotalExposure returns capital currently at risk across all positions.
func (m *Manager) TotalExposure() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalExposureLocked()
}

// TotalExposurePct returns exposure as a percentage of capital,
// 0 when capital is 0.
func (m *Manager) TotalExposurePct() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalExposurePctLocked()
}

func (m *Manager) totalExposurePctLocked() float64 {
	if m.capital == 0 {
		return 0
	}
	return m.totalExposureLocked() / m.capital * 100
}

// SpotExposure returns the order value of open spot positions.
func (m *Manager) SpotExposure() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0.0
	for _, p := range m.openPositions {
		if p.PositionType == types.PositionSpot {
			total += p.Value()
		}
	}
	return total
}

// FuturesExposure returns futures collateral (margin), NOT notional.
func (m *Manager) FuturesExposure() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0.0
	for _, p := range m.openPositions {
		if p.PositionType.IsFutures() {
			total += p.Value()
		}
	}
	return total
}

// FuturesNotional returns the leveraged value of futures positions.
// Informational only; never used in exposure caps.
func (m *Manager) FuturesNotional() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0.0
	for _, p := range m.openPositions {
		if p.PositionType.IsFutures() {
			total += p.Notional()
		}
	}
	return total
}

// WinRate returns the percentage of wins over the most recent window.
// 100% when no trades exist yet, so a fresh bot is not blocked.
func (m *Manager) WinRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.winRateLocked()
}

func (m *Manager) winRateLocked() float64 {
	if len(m.tradeResults) == 0 {
		return 100.0
	}
	recent := m.tradeResults
	if len(recent) > m.cfg.WinRateWindow {
		recent = recent[len(recent)-m.cfg.WinRateWindow:]
	}
	wins := 0
	for _, win := range recent {
		if win {
			wins++
		}
	}
	return float64(wins) / float64(len(recent)) * 100
}

// DailyLossPct returns today's loss as a percentage of capital.
// Only losses count; profit does not reduce the metric.
func (m *Manager) DailyLossPct() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dailyLossPctLocked()
}

func (m *Manager) dailyLossPctLocked() float64 {
	if m.capital == 0 {
		return 0
	}
	loss := m.dailyPnL
	if loss > 0 {
		loss = 0
	}
	return -loss / m.capital * 100
}

// DailyPnL returns today's realized profit and loss.
func (m *Manager) DailyPnL() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dailyPnL
}

// -- Position queries -------------------------------------------------------

// HasPosition reports whether a position is open for the pair.
func (m *Manager) HasPosition(pair string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasPositionLocked(pair)
}

func (m *Manager) hasPositionLocked(pair string) bool {
	for _, p := range m.openPositions {
		if p.Pair == pair {
			return true
		}
	}
	return false
}

// PairsWithPositions returns the set of pairs with an open position.
func (m *Manager) PairsWithPositions() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pairs := make(map[string]bool, len(m.openPositions))
	for _, p := range m.openPositions {
		pairs[p.Pair] = true
	}
	return pairs
}

// OpenPositions returns a snapshot copy of the open position ledger
// in insertion (open) order.
func (m *Manager) OpenPositions() []types.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make([]types.Position, len(m.openPositions))
	copy(snapshot, m.openPositions)
	return snapshot
}

// OpenPosition returns the open position for a pair, if any.
func (m *Manager) OpenPosition(pair string) (types.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.openPositions {
		if p.Pair == pair {
			return p, true
		}
	}
	return types.Position{}, false
}

// ClosedTrades returns a copy of the full closed-trade history.
func (m *Manager) ClosedTrades() []types.TradeResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := make([]types.TradeResult, len(m.closedTrades))
	copy(history, m.closedTrades)
	return history
}

// -- Position lifecycle -----------------------------------------------------

// RecordOpen appends a new position built from the signal's fields.
// Precondition: the signal passed ApproveSignal and the order filled.
// A duplicate pair is a caller bug and returns ErrPositionExists rather
// than corrupting the one-position-per-pair invariant.
func (m *Manager) RecordOpen(sig types.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sig.IsOpening() && m.hasPositionLocked(sig.Pair) {
		m.log.Error("RecordOpen called for %s but a position is already open", sig.Pair)
		return ErrPositionExists
	}

	pos := types.NewPosition(sig)
	m.openPositions = append(m.openPositions, pos)
	m.log.Trade("Position opened [%s]: %s %s %.6f @ $%.2f (%dx, %s, collateral=$%.2f)",
		pos.ID[:8], pos.PositionType, pos.Pair, pos.Amount, pos.EntryPrice,
		pos.Leverage, pos.Exchange, pos.Value())
	return nil
}

// RestorePosition re-registers a position loaded from a state
// snapshot, keeping its original ID and open time.
func (m *Manager) RestorePosition(pos types.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasPositionLocked(pos.Pair) {
		return ErrPositionExists
	}
	m.openPositions = append(m.openPositions, pos)
	m.log.Info("Position restored [%s]: %s %s %.6f @ $%.2f",
		pos.ID[:8], pos.PositionType, pos.Pair, pos.Amount, pos.EntryPrice)
	return nil
}

// RestoreDailyPnL seeds the daily counter from a same-day snapshot so
// the daily-loss breaker keeps its memory across a restart.
func (m *Manager) RestoreDailyPnL(pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyPnL = pnl
}

// PauseForWinRate re-applies a persisted win-rate pause. Unlike the
// daily-loss breaker this one does not clear on its own.
func (m *Manager) PauseForWinRate(detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseLocked(PauseWinRate, detail)
}

// RecordClose realizes a closed trade: adds pnl to capital and to the
// daily counters, appends the win/loss outcome, and removes the first
// open position matching the pair in insertion order.
func (m *Manager) RecordClose(pair string, pnl float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, p := range m.openPositions {
		if p.Pair == pair {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.log.Error("RecordClose called for %s but no position is open", pair)
		return ErrNoPosition
	}
	closed := m.openPositions[idx]
	m.openPositions = append(m.openPositions[:idx], m.openPositions[idx+1:]...)

	m.dailyPnL += pnl
	m.dailyPnLByPair[pair] += pnl
	m.capital += pnl
	m.tradeResults = append(m.tradeResults, pnl >= 0)
	m.closedTrades = append(m.closedTrades, types.TradeResult{
		Pair:     pair,
		Strategy: closed.Strategy,
		PnL:      pnl,
		Win:      pnl >= 0,
		ClosedAt: time.Now().UTC(),
	})

	m.log.Trade("Trade closed [%s]: PnL=$%.4f | daily=$%.4f | capital=$%.2f | win_rate=%.1f%%",
		pair, pnl, m.dailyPnL, m.capital, m.winRateLocked())
	return nil
}

// -- Daily reset & pause control --------------------------------------------

// ResetDaily zeroes the daily counters at the day boundary. Trade results
// (the win-rate window is rolling, not calendar-based) and open positions
// are untouched. A daily-loss pause clears; a win-rate pause persists
// across the reset.
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Info("Daily reset - previous daily PnL: $%.4f", m.dailyPnL)
	m.dailyPnL = 0
	m.dailyPnLByPair = make(map[string]float64)

	if m.paused && m.pauseReason == PauseDailyLoss {
		m.paused = false
		m.pauseReason = PauseNone
		m.pauseDetail = ""
		m.log.Info("Bot unpaused after daily reset")
	}
}

// Unpause clears any pause state (operator action).
func (m *Manager) Unpause() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paused = false
	m.pauseReason = PauseNone
	m.pauseDetail = ""
	m.log.Info("Bot manually unpaused")
}

// Pause pauses trading with an operator-supplied reason.
func (m *Manager) Pause(detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseLocked(PauseOperator, detail)
}

func (m *Manager) pauseLocked(reason PauseReason, detail string) {
	m.paused = true
	m.pauseReason = reason
	m.pauseDetail = detail
	m.log.Warning("BOT PAUSED [%s]: %s", reason, detail)
}

// IsPaused reports the pause state and its human-readable reason.
func (m *Manager) IsPaused() (bool, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused, m.pauseDetail
}

// DailyPnLByPair returns a copy of today's per-pair realized PnL.
func (m *Manager) DailyPnLByPair() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]float64, len(m.dailyPnLByPair))
	for pair, pnl := range m.dailyPnLByPair {
		out[pair] = pnl
	}
	return out
}
