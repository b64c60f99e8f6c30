package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Side is the order direction of a signal.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// PositionType distinguishes spot holdings from leveraged futures positions.
type PositionType string

const (
	PositionSpot  PositionType = "spot"
	PositionLong  PositionType = "long"
	PositionShort PositionType = "short"
)

// IsFutures reports whether the position type is a leveraged futures side.
func (pt PositionType) IsFutures() bool {
	return pt == PositionLong || pt == PositionShort
}

// StrategyName identifies the strategy that produced a signal.
// The set is closed: selection dispatches over these tags.
type StrategyName string

const (
	StrategyGrid            StrategyName = "grid"
	StrategyMomentum        StrategyName = "momentum"
	StrategyArbitrage       StrategyName = "arbitrage"
	StrategyScalp           StrategyName = "scalp"
	StrategyFuturesMomentum StrategyName = "futures_momentum"
)

// Signal is an immutable trade intent produced by a strategy.
// It carries everything the risk manager needs to classify it as
// opening or reducing without consulting external state.
type Signal struct {
	Pair         string
	Side         Side
	Price        float64
	Amount       float64
	PositionType PositionType
	Leverage     int // 1 for spot
	ExchangeID   string
	ReduceOnly   bool
	Strategy     StrategyName
}

// IsOpening reports whether this signal opens new exposure.
// Spot: only a buy opens. Futures: any non-reduce-only signal opens
// (a short entry is a sell that still opens exposure).
func (s Signal) IsOpening() bool {
	if s.PositionType == PositionSpot {
		return s.Side == SideBuy
	}
	return !s.ReduceOnly
}

// Validate checks the constraints a well-formed signal must satisfy.
func (s Signal) Validate() error {
	if s.Pair == "" {
		return fmt.Errorf("signal has empty pair")
	}
	if s.Side != SideBuy && s.Side != SideSell {
		return fmt.Errorf("signal has invalid side %q", s.Side)
	}
	if s.Price <= 0 {
		return fmt.Errorf("signal price must be positive, got %.8f", s.Price)
	}
	if s.Amount <= 0 {
		return fmt.Errorf("signal amount must be positive, got %.8f", s.Amount)
	}
	if s.Leverage < 1 {
		return fmt.Errorf("signal leverage must be >= 1, got %d", s.Leverage)
	}
	if s.PositionType == PositionSpot && s.Leverage != 1 {
		return fmt.Errorf("spot signal cannot carry leverage %d", s.Leverage)
	}
	return nil
}

// TradeValue is the capital this signal commits: the order value for
// spot, the posted collateral for futures (amount is pre-scaled so
// price*amount is margin, not notional).
func (s Signal) TradeValue() float64 {
	return s.Price * s.Amount
}

// Notional is the full leveraged value. Informational only; risk caps
// bound collateral, never notional.
func (s Signal) Notional() float64 {
	return s.TradeValue() * float64(s.Leverage)
}

// Position is an open exposure tracked by the risk manager.
// Created and destroyed only through the risk manager's methods.
type Position struct {
	ID           string
	Pair         string
	Side         Side
	EntryPrice   float64
	Amount       float64
	Strategy     StrategyName
	OpenedAt     time.Time
	Exchange     string
	Leverage     int
	PositionType PositionType
}

// NewPosition builds a position from a filled signal.
func NewPosition(sig Signal) Position {
	return Position{
		ID:           uuid.NewString(),
		Pair:         sig.Pair,
		Side:         sig.Side,
		EntryPrice:   sig.Price,
		Amount:       sig.Amount,
		Strategy:     sig.Strategy,
		OpenedAt:     time.Now().UTC(),
		Exchange:     sig.ExchangeID,
		Leverage:     sig.Leverage,
		PositionType: sig.PositionType,
	}
}

// Value is the capital at risk in this position: order value for spot,
// posted collateral for leveraged futures.
func (p Position) Value() float64 {
	return p.EntryPrice * p.Amount
}

// Notional is Value scaled by leverage.
func (p Position) Notional() float64 {
	return p.Value() * float64(p.Leverage)
}

// TradeResult is one closed trade in the ledger history.
type TradeResult struct {
	Pair     string
	Strategy StrategyName
	PnL      float64
	Win      bool
	ClosedAt time.Time
}
