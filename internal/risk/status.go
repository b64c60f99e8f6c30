package risk

// Status is a structured snapshot of the risk state for dashboards,
// alerts, and persistence.
type Status struct {
	Capital            float64            `json:"capital"`
	ExchangeCapital    map[string]float64 `json:"exchange_capital"`
	DailyPnL           float64            `json:"daily_pnl"`
	DailyPnLByPair     map[string]float64 `json:"daily_pnl_by_pair"`
	DailyLossPct       float64            `json:"daily_loss_pct"`
	OpenPositions      int                `json:"open_positions"`
	TotalExposure      float64            `json:"total_exposure"`
	TotalExposurePct   float64            `json:"total_exposure_pct"`
	SpotExposure       float64            `json:"spot_exposure"`
	FuturesExposure    float64            `json:"futures_exposure"` // collateral/margin
	FuturesNotional    float64            `json:"futures_notional"` // leveraged value
	WinRate            float64            `json:"win_rate"`
	TotalTrades        int                `json:"total_trades"`
	IsPaused           bool               `json:"is_paused"`
	PauseReasonCode    string             `json:"pause_reason_code"`
	PauseReason        string             `json:"pause_reason"`
	PairsWithPositions []string           `json:"pairs_with_positions"`
}

// GetStatus builds a consistent snapshot under a single read lock.
func (m *Manager) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exch := make(map[string]float64, len(m.exchangeCapital))
	for id, bal := range m.exchangeCapital {
		exch[id] = bal
	}
	byPair := make(map[string]float64, len(m.dailyPnLByPair))
	for pair, pnl := range m.dailyPnLByPair {
		byPair[pair] = pnl
	}

	var spot, futures, notional float64
	pairs := make([]string, 0, len(m.openPositions))
	seen := make(map[string]bool, len(m.openPositions))
	for _, p := range m.openPositions {
		if p.PositionType.IsFutures() {
			futures += p.Value()
			notional += p.Notional()
		} else {
			spot += p.Value()
		}
		if !seen[p.Pair] {
			seen[p.Pair] = true
			pairs = append(pairs, p.Pair)
		}
	}

	return Status{
		Capital:            m.capital,
		ExchangeCapital:    exch,
		DailyPnL:           m.dailyPnL,
		DailyPnLByPair:     byPair,
		DailyLossPct:       m.dailyLossPctLocked(),
		OpenPositions:      len(m.openPositions),
		TotalExposure:      m.totalExposureLocked(),
		TotalExposurePct:   m.totalExposurePctLocked(),
		SpotExposure:       spot,
		FuturesExposure:    futures,
		FuturesNotional:    notional,
		WinRate:            m.winRateLocked(),
		TotalTrades:        len(m.tradeResults),
		IsPaused:           m.paused,
		PauseReasonCode:    string(m.pauseReason),
		PauseReason:        m.pauseDetail,
		PairsWithPositions: pairs,
	}
}
