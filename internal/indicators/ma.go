package indicators

// SMA returns the simple moving average of the last period values.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	return mean(values[len(values)-period:])
}

// EMA returns the exponential moving average series for the given period.
// The first value is seeded with the SMA of the initial window.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	multiplier := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)

	prev := mean(values[:period])
	out = append(out, prev)

	for _, v := range values[period:] {
		prev = (v-prev)*multiplier + prev
		out = append(out, prev)
	}
	return out
}
