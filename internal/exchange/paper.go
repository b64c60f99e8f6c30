package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alphabot/alpha-bot/pkg/types"
)

// PaperExchange is an in-memory venue for dry runs and tests. Orders
// fill instantly at the seeded ticker price (or the request price when
// no ticker is seeded).
type PaperExchange struct {
	id string

	mu       sync.RWMutex
	tickers  map[string]types.Ticker
	candles  map[string][]types.OHLCV
	balances map[string]types.Balance
	orders   []Order
	leverage map[string]int
	failNext error
}

func NewPaperExchange(id string) *PaperExchange {
	return &PaperExchange{
		id:       id,
		tickers:  make(map[string]types.Ticker),
		candles:  make(map[string][]types.OHLCV),
		balances: make(map[string]types.Balance),
		leverage: make(map[string]int),
	}
}

func (p *PaperExchange) ID() string                        { return p.id }
func (p *PaperExchange) Connect(_ context.Context) error   { return nil }
func (p *PaperExchange) Close() error                      { return nil }

// SetTicker seeds the current price for a pair.
func (p *PaperExchange) SetTicker(pair string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tickers[pair] = types.Ticker{
		Symbol:    pair,
		Price:     price,
		Bid:       price * 0.9995,
		Ask:       price * 1.0005,
		Timestamp: time.Now().UTC(),
	}
}

// SetCandles seeds the candle history for a pair.
func (p *PaperExchange) SetCandles(pair string, candles []types.OHLCV) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candles[pair] = candles
}

// SetBalance seeds an asset balance.
func (p *PaperExchange) SetBalance(asset string, free float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[asset] = types.Balance{Asset: asset, Free: free}
}

// FailNextOrder makes the next PlaceOrder call return err.
func (p *PaperExchange) FailNextOrder(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = err
}

func (p *PaperExchange) GetTicker(_ context.Context, pair string) (*types.Ticker, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.tickers[pair]
	if !ok {
		return nil, fmt.Errorf("no ticker seeded for %s", pair)
	}
	return &t, nil
}

func (p *PaperExchange) GetCandles(_ context.Context, pair, _ string, limit int) ([]types.OHLCV, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	candles, ok := p.candles[pair]
	if !ok {
		return nil, fmt.Errorf("no candles seeded for %s", pair)
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	out := make([]types.OHLCV, len(candles))
	copy(out, candles)
	return out, nil
}

func (p *PaperExchange) PlaceOrder(_ context.Context, req OrderRequest) (*Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failNext != nil {
		err := p.failNext
		p.failNext = nil
		return nil, err
	}

	fillPrice := req.Price
	if t, ok := p.tickers[req.Pair]; ok {
		fillPrice = t.Price
	}

	order := Order{
		ID:        uuid.NewString(),
		Pair:      req.Pair,
		Side:      req.Side,
		Amount:    req.Amount,
		FillPrice: fillPrice,
		Status:    OrderStatusFilled,
		CreatedAt: time.Now().UTC(),
	}
	p.orders = append(p.orders, order)
	return &order, nil
}

func (p *PaperExchange) GetBalances(_ context.Context) (map[string]types.Balance, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]types.Balance, len(p.balances))
	for k, v := range p.balances {
		out[k] = v
	}
	return out, nil
}

func (p *PaperExchange) SetLeverage(_ context.Context, pair string, leverage int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leverage[pair] = leverage
	return nil
}

// Orders returns a copy of all orders placed so far.
func (p *PaperExchange) Orders() []Order {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Order, len(p.orders))
	copy(out, p.orders)
	return out
}

// Leverage returns the last leverage set for a pair (0 if never set).
func (p *PaperExchange) Leverage(pair string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.leverage[pair]
}

var _ Exchange = (*PaperExchange)(nil)
