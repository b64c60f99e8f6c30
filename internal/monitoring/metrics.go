package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpha_bot_trades_total",
			Help: "Total number of trades executed",
		},
		[]string{"pair", "side", "strategy"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpha_bot_signal_rejections_total",
			Help: "Signals rejected by the risk manager",
		},
		[]string{"pair", "strategy"},
	)

	closedTradePnL = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alpha_bot_closed_trade_pnl",
			Help:    "Distribution of realized PnL per closed trade",
			Buckets: []float64{-100, -50, -20, -10, -5, -1, 0, 1, 5, 10, 20, 50, 100},
		},
		[]string{"pair"},
	)

	// Risk metrics
	capitalGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alpha_bot_capital",
			Help: "Current total capital",
		},
	)

	exposurePct = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alpha_bot_exposure_pct",
			Help: "Committed capital as a percentage of total",
		},
	)

	winRateGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alpha_bot_win_rate",
			Help: "Rolling win rate over the breaker window",
		},
	)

	openPositionsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alpha_bot_open_positions",
			Help: "Number of open positions",
		},
	)

	pausedGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "alpha_bot_paused",
			Help: "1 when trading is paused, labeled by reason",
		},
		[]string{"reason"},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "alpha_bot_current_price",
			Help: "Latest observed price per pair",
		},
		[]string{"pair"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpha_bot_errors_total",
			Help: "Total number of errors by category",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(rejectionsTotal)
	prometheus.MustRegister(closedTradePnL)
	prometheus.MustRegister(capitalGauge)
	prometheus.MustRegister(exposurePct)
	prometheus.MustRegister(winRateGauge)
	prometheus.MustRegister(openPositionsGauge)
	prometheus.MustRegister(pausedGauge)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(errorsTotal)
}

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTrade records an executed trade.
func RecordTrade(pair, side, strategy string) {
	tradesTotal.WithLabelValues(pair, side, strategy).Inc()
}

// RecordRejection records a signal refused by the risk manager.
func RecordRejection(pair, strategy string) {
	rejectionsTotal.WithLabelValues(pair, strategy).Inc()
}

// RecordClosedTrade records the realized PnL of a closed position.
func RecordClosedTrade(pair string, pnl float64) {
	closedTradePnL.WithLabelValues(pair).Observe(pnl)
}

// UpdateRiskStatus refreshes the risk gauges from a status snapshot.
func UpdateRiskStatus(capital, exposure, winRate float64, openPositions int, pauseReason string) {
	capitalGauge.Set(capital)
	exposurePct.Set(exposure)
	winRateGauge.Set(winRate)
	openPositionsGauge.Set(float64(openPositions))

	pausedGauge.Reset()
	if pauseReason != "" {
		pausedGauge.WithLabelValues(pauseReason).Set(1)
	}
}

// UpdatePrice updates the price gauge for a pair.
func UpdatePrice(pair string, price float64) {
	currentPrice.WithLabelValues(pair).Set(price)
}

// RecordError records an error by category.
func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}
