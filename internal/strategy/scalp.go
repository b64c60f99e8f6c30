package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/alphabot/alpha-bot/internal/indicators"
	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/internal/risk"
	"github.com/alphabot/alpha-bot/pkg/types"
)

// ScalpConfig tunes the momentum scalper. Defaults follow a 2:1
// reward/risk at high leverage.
type ScalpConfig struct {
	TakeProfitPct  float64 // 1.0
	StopLossPct    float64 // 0.5
	TrailArmPct    float64 // activate trailing at 0.6
	TrailPct       float64 // trail by 0.3
	ProfitLockPct  float64 // move stop to breakeven at 0.5
	MaxHold        time.Duration
	RSILong        float64 // oversold entry
	RSIShort       float64 // overbought entry
	VolSpikeRatio  float64 // volume vs 20-candle average
	Momentum60sPct float64 // 1-candle move treated as momentum
	SizeFraction   float64
	ExchangeID     string
	Leverage       int
}

func DefaultScalpConfig(exchangeID string, leverage int) ScalpConfig {
	return ScalpConfig{
		TakeProfitPct:  1.0,
		StopLossPct:    0.5,
		TrailArmPct:    0.6,
		TrailPct:       0.3,
		ProfitLockPct:  0.5,
		MaxHold:        15 * time.Minute,
		RSILong:        35,
		RSIShort:       65,
		VolSpikeRatio:  2.0,
		Momentum60sPct: 0.2,
		SizeFraction:   0.05,
		ExchangeID:     exchangeID,
		Leverage:       leverage,
	}
}

// Scalp is an aggressive futures scalper: one momentum trigger is
// enough to enter, exits are fast and mechanical. Triggers, in order:
// short-term momentum, RSI extremes, volume spike with candle
// direction, and Bollinger breakouts.
type Scalp struct {
	base
	cfg ScalpConfig
	rsi *indicators.RSI
	bb  *indicators.BollingerBands

	enteredAt       time.Time
	breakevenLocked bool
}

func NewScalp(pair string, cfg ScalpConfig, rm *risk.Manager, log *logger.Logger) *Scalp {
	return &Scalp{
		base: base{pair: pair, rm: rm, log: log},
		cfg:  cfg,
		rsi:  indicators.NewRSI(14),
		bb:   indicators.NewBollingerBands(20, 2.0),
	}
}

func (s *Scalp) Name() types.StrategyName { return types.StrategyScalp }

func (s *Scalp) OnStart() {
	s.resetPosition()
	s.breakevenLocked = false
	s.log.Info("[%s] Scalp active (TP %.2f%% SL %.2f%% trail %.2f/%.2f%%, %dx)",
		s.pair, s.cfg.TakeProfitPct, s.cfg.StopLossPct, s.cfg.TrailArmPct, s.cfg.TrailPct, s.cfg.Leverage)
}

func (s *Scalp) OnStop() {
	s.log.Info("[%s] Scalp stopped", s.pair)
}

func (s *Scalp) Check(_ context.Context, view View) ([]types.Signal, error) {
	price := view.Price()
	if price <= 0 {
		return nil, fmt.Errorf("no price for %s", s.pair)
	}
	closes := view.Closes()
	if len(closes) < 30 {
		return nil, nil
	}

	rsiNow, err := s.rsi.Calculate(closes)
	if err != nil {
		return nil, nil
	}

	if s.inPosition {
		return s.checkExits(price), nil
	}

	side, reason := s.detectMomentum(view, closes, price, rsiNow)
	if side == "" {
		return nil, nil
	}

	amount := s.positionSize(s.cfg.ExchangeID, price, s.cfg.SizeFraction)
	if amount <= 0 {
		return nil, nil
	}

	posType := types.PositionLong
	if side == types.SideSell {
		posType = types.PositionShort
	}
	s.log.Info("[%s] Scalp entry: %s", s.pair, reason)
	return []types.Signal{{
		Pair:         s.pair,
		Side:         side,
		Price:        price,
		Amount:       amount,
		PositionType: posType,
		Leverage:     s.cfg.Leverage,
		ExchangeID:   s.cfg.ExchangeID,
		Strategy:     types.StrategyScalp,
	}}, nil
}

// detectMomentum returns the entry side when any single trigger fires.
func (s *Scalp) detectMomentum(view View, closes []float64, price, rsiNow float64) (types.Side, string) {
	last := view.Candles[len(view.Candles)-1]
	candlePct := 0.0
	if last.Open > 0 {
		candlePct = (last.Close - last.Open) / last.Open * 100
	}
	move := 0.0
	if len(closes) >= 2 && closes[len(closes)-2] > 0 {
		move = (closes[len(closes)-1] - closes[len(closes)-2]) / closes[len(closes)-2] * 100
	}

	// 1. Short-term momentum: follow the move.
	if move >= s.cfg.Momentum60sPct {
		return types.SideBuy, fmt.Sprintf("momentum %+.3f%%", move)
	}
	if move <= -s.cfg.Momentum60sPct {
		return types.SideSell, fmt.Sprintf("momentum %+.3f%%", move)
	}

	// 2. RSI extremes: mean reversion.
	if rsiNow < s.cfg.RSILong {
		return types.SideBuy, fmt.Sprintf("oversold RSI %.1f", rsiNow)
	}
	if rsiNow > s.cfg.RSIShort {
		return types.SideSell, fmt.Sprintf("overbought RSI %.1f", rsiNow)
	}

	// 3. Volume spike: enter the candle direction.
	if ratio := volumeRatio(view.Candles); ratio > s.cfg.VolSpikeRatio {
		if candlePct > 0 {
			return types.SideBuy, fmt.Sprintf("volume %.1fx, candle %+.3f%%", ratio, candlePct)
		}
		if candlePct < 0 {
			return types.SideSell, fmt.Sprintf("volume %.1fx, candle %+.3f%%", ratio, candlePct)
		}
	}

	// 4. Bollinger breakout.
	upper, _, lower, _ := s.bb.Calculate(closes)
	if upper > 0 {
		if price > upper {
			return types.SideBuy, fmt.Sprintf("BB breakout $%.2f > $%.2f", price, upper)
		}
		if price < lower {
			return types.SideSell, fmt.Sprintf("BB breakdown $%.2f < $%.2f", price, lower)
		}
	}

	return "", ""
}

// checkExits runs the exit ladder: take profit, stop or trail, profit
// lock arming, then the hold timeout.
func (s *Scalp) checkExits(price float64) []types.Signal {
	if price > s.highestSince {
		s.highestSince = price
	}
	if price < s.lowestSince {
		s.lowestSince = price
	}
	pnl := s.pnlPct(price)

	if !s.breakevenLocked && pnl >= s.cfg.ProfitLockPct {
		s.breakevenLocked = true
		s.log.Info("[%s] Profit lock armed at +%.2f%%, stop moved to breakeven", s.pair, pnl)
	}

	var reason string
	switch {
	case pnl >= s.cfg.TakeProfitPct:
		reason = fmt.Sprintf("TP +%.2f%%", pnl)
	case s.hitStop(price, pnl):
		reason = fmt.Sprintf("stop %.2f%%", pnl)
	case !s.enteredAt.IsZero() && time.Since(s.enteredAt) > s.cfg.MaxHold:
		reason = fmt.Sprintf("timeout after %s", s.cfg.MaxHold)
	default:
		return nil
	}

	s.log.Info("[%s] Scalp exit: %s", s.pair, reason)
	side := types.SideSell
	posType := types.PositionLong
	if s.positionSide == types.SideSell {
		side = types.SideBuy
		posType = types.PositionShort
	}
	return []types.Signal{{
		Pair:         s.pair,
		Side:         side,
		Price:        price,
		Amount:       s.entryAmount,
		PositionType: posType,
		Leverage:     s.cfg.Leverage,
		ExchangeID:   s.cfg.ExchangeID,
		ReduceOnly:   true,
		Strategy:     types.StrategyScalp,
	}}
}

func (s *Scalp) hitStop(price, pnl float64) bool {
	if s.breakevenLocked && pnl <= 0 {
		return true
	}
	if s.positionSide == types.SideBuy {
		armed := (s.highestSince-s.entryPrice)/s.entryPrice*100 >= s.cfg.TrailArmPct
		if armed {
			return price <= s.highestSince*(1-s.cfg.TrailPct/100)
		}
		return pnl <= -s.cfg.StopLossPct
	}
	armed := (s.entryPrice-s.lowestSince)/s.entryPrice*100 >= s.cfg.TrailArmPct
	if armed {
		return price >= s.lowestSince*(1+s.cfg.TrailPct/100)
	}
	return pnl <= -s.cfg.StopLossPct
}

func (s *Scalp) OnFill(sig types.Signal, fillPrice float64) {
	s.trackFill(sig, fillPrice)
	if sig.IsOpening() {
		s.enteredAt = time.Now()
		s.breakevenLocked = false
	} else {
		s.enteredAt = time.Time{}
	}
}

func (s *Scalp) OnRejected(sig types.Signal) {
	s.log.Warning("[%s] Scalp %s rejected at $%.2f", s.pair, sig.Side, sig.Price)
}

func volumeRatio(candles []types.OHLCV) float64 {
	const lookback = 20
	if len(candles) < lookback+1 {
		return 1.0
	}
	current := candles[len(candles)-1].Volume
	window := candles[len(candles)-1-lookback : len(candles)-1]
	var sum float64
	for _, c := range window {
		sum += c.Volume
	}
	if sum == 0 {
		return 1.0
	}
	return current / (sum / float64(len(window)))
}
