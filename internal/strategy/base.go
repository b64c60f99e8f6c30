package strategy

import (
	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/internal/risk"
	"github.com/alphabot/alpha-bot/pkg/types"
)

// base carries the per-pair state shared by all strategies: the risk
// manager for sizing, position tracking fed by OnFill/OnRejected, and
// the pair's logger.
type base struct {
	pair string
	rm   *risk.Manager
	log  *logger.Logger

	inPosition   bool
	positionSide types.Side
	entryPrice   float64
	entryAmount  float64
	highestSince float64
	lowestSince  float64
}

func (b *base) Pair() string { return b.pair }

func (b *base) resetPosition() {
	b.inPosition = false
	b.positionSide = ""
	b.entryPrice = 0
	b.entryAmount = 0
	b.highestSince = 0
	b.lowestSince = 0
}

// trackFill updates position state from a confirmed fill.
func (b *base) trackFill(sig types.Signal, fillPrice float64) {
	if sig.IsOpening() {
		b.inPosition = true
		b.positionSide = sig.Side
		b.entryPrice = fillPrice
		b.entryAmount = sig.Amount
		b.highestSince = fillPrice
		b.lowestSince = fillPrice
		return
	}
	b.resetPosition()
}

// positionSize converts a fraction of the exchange's capital pool into
// a base-asset amount at the given price. Falls back to the total pool
// when the exchange has no dedicated capital.
func (b *base) positionSize(exchangeID string, price, fraction float64) float64 {
	if price <= 0 || fraction <= 0 {
		return 0
	}
	pool := b.rm.GetExchangeCapital(exchangeID)
	if pool <= 0 {
		pool = b.rm.GetCapital()
	}
	return pool * fraction / price
}

// pnlPct is the unrealized move from entry, sign-adjusted for shorts.
func (b *base) pnlPct(currentPrice float64) float64 {
	if !b.inPosition || b.entryPrice <= 0 {
		return 0
	}
	pct := (currentPrice - b.entryPrice) / b.entryPrice * 100
	if b.positionSide == types.SideSell {
		pct = -pct
	}
	return pct
}
