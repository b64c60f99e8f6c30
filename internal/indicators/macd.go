package indicators

// MACD represents the Moving Average Convergence Divergence indicator
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a MACD with the standard 12/26/9 configuration when
// zero values are passed.
func NewMACD(fast, slow, signal int) *MACD {
	if fast <= 0 {
		fast = 12
	}
	if slow <= 0 {
		slow = 26
	}
	if signal <= 0 {
		signal = 9
	}
	return &MACD{fastPeriod: fast, slowPeriod: slow, signalPeriod: signal}
}

// Calculate returns the latest MACD line, signal line and histogram values.
// ok is false when there is not enough data for a full signal line.
func (m *MACD) Calculate(prices []float64) (macdLine, signalLine, histogram float64, ok bool) {
	required := m.slowPeriod + m.signalPeriod
	if len(prices) < required {
		return 0, 0, 0, false
	}

	fastEMA := EMA(prices, m.fastPeriod)
	slowEMA := EMA(prices, m.slowPeriod)

	// Align the fast series to the slow series tail.
	offset := len(fastEMA) - len(slowEMA)
	macdSeries := make([]float64, len(slowEMA))
	for i := range slowEMA {
		macdSeries[i] = fastEMA[i+offset] - slowEMA[i]
	}

	signalSeries := EMA(macdSeries, m.signalPeriod)
	if len(signalSeries) == 0 {
		return 0, 0, 0, false
	}

	macdLine = macdSeries[len(macdSeries)-1]
	signalLine = signalSeries[len(signalSeries)-1]
	histogram = macdLine - signalLine
	return macdLine, signalLine, histogram, true
}

// CrossedAbove reports whether the MACD line crossed above the signal
// line on the most recent bar.
func (m *MACD) CrossedAbove(prices []float64) bool {
	if len(prices) < 2 {
		return false
	}
	prevMACD, prevSignal, _, okPrev := m.Calculate(prices[:len(prices)-1])
	currMACD, currSignal, _, okCurr := m.Calculate(prices)
	if !okPrev || !okCurr {
		return false
	}
	return prevMACD <= prevSignal && currMACD > currSignal
}

// CrossedBelow reports whether the MACD line crossed below the signal
// line on the most recent bar.
func (m *MACD) CrossedBelow(prices []float64) bool {
	if len(prices) < 2 {
		return false
	}
	prevMACD, prevSignal, _, okPrev := m.Calculate(prices[:len(prices)-1])
	currMACD, currSignal, _, okCurr := m.Calculate(prices)
	if !okPrev || !okCurr {
		return false
	}
	return prevMACD >= prevSignal && currMACD < currSignal
}
