package indicators

import "math"

// BollingerBands represents the Bollinger Bands indicator
type BollingerBands struct {
	period         int
	stdDevMultiple float64
}

// NewBollingerBands creates a new BollingerBands instance with the given period and standard deviation multiplier
func NewBollingerBands(period int, stdDev float64) *BollingerBands {
	return &BollingerBands{
		period:         period,
		stdDevMultiple: stdDev,
	}
}

// Calculate computes the upper, middle, and lower Bollinger Bands, and the BB% (price position within the bands)
func (bb *BollingerBands) Calculate(prices []float64) (upper, middle, lower, bbPercent float64) {
	if len(prices) < bb.period {
		return 0, 0, 0, 0
	}

	recent := prices[len(prices)-bb.period:]
	middle = mean(recent)
	stdDev := standardDeviation(recent, middle)

	upper = middle + (bb.stdDevMultiple * stdDev)
	lower = middle - (bb.stdDevMultiple * stdDev)

	currentPrice := prices[len(prices)-1]
	if upper == lower {
		bbPercent = 50
	} else {
		bbPercent = ((currentPrice - lower) / (upper - lower)) * 100
	}

	return upper, middle, lower, bbPercent
}

// Width returns the band width relative to the middle band, a
// squeeze/expansion measure used for sideways-market detection.
func (bb *BollingerBands) Width(prices []float64) float64 {
	upper, middle, lower, _ := bb.Calculate(prices)
	if middle == 0 {
		return 0
	}
	return (upper - lower) / middle * 100
}

func standardDeviation(values []float64, avg float64) float64 {
	if len(values) == 0 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		diff := v - avg
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)))
}
