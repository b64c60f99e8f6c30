package market

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/alphabot/alpha-bot/internal/indicators"
	"github.com/alphabot/alpha-bot/pkg/types"
)

// Condition classifies the current market state for a pair
type Condition string

const (
	ConditionTrending Condition = "trending"
	ConditionSideways Condition = "sideways"
	ConditionVolatile Condition = "volatile"
	ConditionUnknown  Condition = "unknown"
)

// Analysis is the per-pair snapshot produced by each analysis cycle
type Analysis struct {
	Pair           string    `json:"pair"`
	Condition      Condition `json:"condition"`
	Price          float64   `json:"price"`
	ADX            float64   `json:"adx"`
	ATR            float64   `json:"atr"`
	RSI            float64   `json:"rsi"`
	BBWidth        float64   `json:"bb_width"`
	VolumeRatio    float64   `json:"volume_ratio"`
	SignalStrength float64   `json:"signal_strength"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}

// CandleSource provides historical candles for analysis
type CandleSource interface {
	GetCandles(ctx context.Context, pair, interval string, limit int) ([]types.OHLCV, error)
}

// Analyzer computes indicator snapshots and classifies market conditions.
// Classification thresholds:
//   - ADX > 25 with directional EMAs  -> trending
//   - BB width < 2% of price          -> sideways
//   - ATR > 3% of price or volume 2x  -> volatile
type Analyzer struct {
	source   CandleSource
	interval string
	limit    int

	adx *indicators.ADX
	atr *indicators.ATR
	rsi *indicators.RSI
	bb  *indicators.BollingerBands

	mu   sync.RWMutex
	last map[string]*Analysis
}

const (
	adxTrendThreshold   = 25.0
	bbSidewaysThreshold = 2.0 // percent of price
	atrVolatileThreshold = 3.0 // percent of price
	volumeSpikeThreshold = 2.0
	volumeLookback       = 20
)

func NewAnalyzer(source CandleSource, interval string, limit int) *Analyzer {
	return &Analyzer{
		source:   source,
		interval: interval,
		limit:    limit,
		adx:      indicators.NewADX(14),
		atr:      indicators.NewATR(14),
		rsi:      indicators.NewRSI(14),
		bb:       indicators.NewBollingerBands(20, 2.0),
		last:     make(map[string]*Analysis),
	}
}

// Analyze fetches candles for the pair and classifies its condition.
func (a *Analyzer) Analyze(ctx context.Context, pair string) (*Analysis, error) {
	candles, err := a.source.GetCandles(ctx, pair, a.interval, a.limit)
	if err != nil {
		return nil, fmt.Errorf("fetch candles for %s: %w", pair, err)
	}

	analysis, err := a.Classify(pair, candles)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.last[pair] = analysis
	a.mu.Unlock()
	return analysis, nil
}

// Classify computes indicators over the candles and maps them to a condition.
func (a *Analyzer) Classify(pair string, candles []types.OHLCV) (*Analysis, error) {
	if len(candles) < 30 {
		return nil, fmt.Errorf("insufficient candles for %s: have %d", pair, len(candles))
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	price := closes[len(closes)-1]
	if price <= 0 {
		return nil, fmt.Errorf("invalid last price for %s", pair)
	}

	analysis := &Analysis{
		Pair:      pair,
		Condition: ConditionUnknown,
		Price:     price,
		Timestamp: time.Now().UTC(),
	}

	if v, err := a.adx.Calculate(candles); err == nil {
		analysis.ADX = v
	}
	if v, err := a.atr.Calculate(candles); err == nil {
		analysis.ATR = v
	}
	if v, err := a.rsi.Calculate(closes); err == nil {
		analysis.RSI = v
	}
	analysis.BBWidth = a.bb.Width(closes)
	analysis.VolumeRatio = volumeRatio(candles)

	atrPct := analysis.ATR / price * 100

	switch {
	case atrPct > atrVolatileThreshold || analysis.VolumeRatio > volumeSpikeThreshold:
		analysis.Condition = ConditionVolatile
		analysis.Reason = fmt.Sprintf("ATR %.2f%% of price, volume %.1fx average", atrPct, analysis.VolumeRatio)
	case analysis.ADX > adxTrendThreshold:
		analysis.Condition = ConditionTrending
		analysis.Reason = fmt.Sprintf("ADX %.1f above trend threshold", analysis.ADX)
	case analysis.BBWidth < bbSidewaysThreshold:
		analysis.Condition = ConditionSideways
		analysis.Reason = fmt.Sprintf("BB width %.2f%% indicates range", analysis.BBWidth)
	default:
		analysis.Condition = ConditionSideways
		analysis.Reason = fmt.Sprintf("weak trend (ADX %.1f), defaulting to range", analysis.ADX)
	}

	analysis.SignalStrength = signalStrength(analysis, atrPct)
	return analysis, nil
}

// LastAnalysis returns the most recent analysis for a pair, if any.
func (a *Analyzer) LastAnalysis(pair string) (*Analysis, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	analysis, ok := a.last[pair]
	return analysis, ok
}

// signalStrength ranks how actionable a pair looks right now (0-100).
// Trends score by ADX and RSI distance from neutral, ranges score by
// band tightness, volatile pairs rank low so they are tried last.
func signalStrength(analysis *Analysis, atrPct float64) float64 {
	var score float64
	switch analysis.Condition {
	case ConditionTrending:
		score = math.Min(analysis.ADX, 50) // 25..50 -> strong
		score += math.Abs(analysis.RSI-50) / 2
	case ConditionSideways:
		score = 30
		if analysis.BBWidth > 0 {
			score += math.Max(0, 20-analysis.BBWidth*5)
		}
	case ConditionVolatile:
		score = math.Max(0, 20-atrPct)
	}
	return math.Min(score, 100)
}

func volumeRatio(candles []types.OHLCV) float64 {
	if len(candles) < volumeLookback+1 {
		return 1.0
	}
	current := candles[len(candles)-1].Volume
	window := candles[len(candles)-1-volumeLookback : len(candles)-1]

	var sum float64
	for _, c := range window {
		sum += c.Volume
	}
	avg := sum / float64(len(window))
	if avg == 0 {
		return 1.0
	}
	return current / avg
}
