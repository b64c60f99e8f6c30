package indicators

import (
	"errors"
	"math"

	"github.com/alphabot/alpha-bot/pkg/types"
)

// ATR calculates the Average True Range, a volatility measure.
type ATR struct {
	period int
}

// NewATR creates a new ATR instance with the given period
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

// Calculate computes the ATR over the most recent period candles.
func (a *ATR) Calculate(data []types.OHLCV) (float64, error) {
	if len(data) < a.period+1 {
		return 0, errors.New("insufficient data for ATR calculation")
	}

	trueRanges := make([]float64, 0, a.period)
	for i := len(data) - a.period; i < len(data); i++ {
		current := data[i]
		previous := data[i-1]

		tr1 := current.High - current.Low
		tr2 := math.Abs(current.High - previous.Close)
		tr3 := math.Abs(current.Low - previous.Close)

		trueRanges = append(trueRanges, math.Max(tr1, math.Max(tr2, tr3)))
	}

	return mean(trueRanges), nil
}
