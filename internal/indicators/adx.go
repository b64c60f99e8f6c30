package indicators

import (
	"errors"
	"math"

	"github.com/alphabot/alpha-bot/pkg/types"
)

// ADX measures trend strength regardless of direction (0-100 scale).
// Values > 25 indicate a trending market, > 40 a strong trend.
type ADX struct {
	period int
}

// NewADX creates a new ADX indicator
func NewADX(period int) *ADX {
	return &ADX{period: period}
}

// Calculate computes the ADX value using Wilder's smoothing over the
// directional movement components.
func (adx *ADX) Calculate(data []types.OHLCV) (float64, error) {
	// Extra periods are needed for DX smoothing to settle
	if len(data) < adx.period*2+1 {
		return 0, errors.New("insufficient data for ADX calculation")
	}

	n := len(data)
	dxValues := make([]float64, 0, n-1)

	var trSum, plusDMSum, minusDMSum float64
	for i := 1; i < n; i++ {
		current := data[i]
		previous := data[i-1]

		tr1 := current.High - current.Low
		tr2 := math.Abs(current.High - previous.Close)
		tr3 := math.Abs(current.Low - previous.Close)
		tr := math.Max(tr1, math.Max(tr2, tr3))

		upMove := current.High - previous.High
		downMove := previous.Low - current.Low

		plusDM := 0.0
		minusDM := 0.0
		if upMove > downMove && upMove > 0 {
			plusDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM = downMove
		}

		if i <= adx.period {
			trSum += tr
			plusDMSum += plusDM
			minusDMSum += minusDM
			if i < adx.period {
				continue
			}
		} else {
			// Wilder's smoothing
			trSum = trSum - trSum/float64(adx.period) + tr
			plusDMSum = plusDMSum - plusDMSum/float64(adx.period) + plusDM
			minusDMSum = minusDMSum - minusDMSum/float64(adx.period) + minusDM
		}

		if trSum == 0 {
			dxValues = append(dxValues, 0)
			continue
		}
		plusDI := plusDMSum / trSum * 100
		minusDI := minusDMSum / trSum * 100
		if plusDI+minusDI == 0 {
			dxValues = append(dxValues, 0)
			continue
		}
		dx := math.Abs(plusDI-minusDI) / (plusDI + minusDI) * 100
		dxValues = append(dxValues, dx)
	}

	if len(dxValues) < adx.period {
		return 0, errors.New("insufficient data for ADX smoothing")
	}
	return mean(dxValues[len(dxValues)-adx.period:]), nil
}
