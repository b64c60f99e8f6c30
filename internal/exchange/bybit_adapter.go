package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/alphabot/alpha-bot/internal/exchange/bybit"
	"github.com/alphabot/alpha-bot/pkg/types"
)

// BybitExchange adapts the Bybit client to the Exchange interface.
// Market data follows the venue's category ("spot" or "linear");
// orders route by the request's Futures flag.
type BybitExchange struct {
	id       string
	category string
	client   *bybit.Client
}

func NewBybitExchange(id, category string, cfg bybit.Config) *BybitExchange {
	if category == "" {
		category = "spot"
	}
	return &BybitExchange{
		id:       id,
		category: category,
		client:   bybit.NewClient(cfg),
	}
}

func (b *BybitExchange) ID() string { return b.id }

// Connect verifies credentials with a wallet read.
func (b *BybitExchange) Connect(ctx context.Context) error {
	if _, err := b.client.GetBalances(ctx); err != nil {
		return fmt.Errorf("bybit %s connect check: %w", b.client.Environment(), err)
	}
	return nil
}

func (b *BybitExchange) Close() error { return nil }

func (b *BybitExchange) GetTicker(ctx context.Context, pair string) (*types.Ticker, error) {
	return b.client.GetTicker(ctx, b.category, pair)
}

func (b *BybitExchange) GetCandles(ctx context.Context, pair, interval string, limit int) ([]types.OHLCV, error) {
	return b.client.GetCandles(ctx, b.category, pair, interval, limit)
}

func (b *BybitExchange) PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	category := "spot"
	if req.Futures {
		category = "linear"
	}

	side := bybit.OrderSideBuy
	if req.Side == types.SideSell {
		side = bybit.OrderSideSell
	}

	linkID := uuid.NewString()
	result, err := b.client.PlaceMarketOrder(ctx, bybit.PlaceOrderParams{
		Category:    category,
		Symbol:      req.Pair,
		Side:        side,
		Qty:         formatQty(req.Amount),
		OrderLinkID: linkID,
		ReduceOnly:  req.ReduceOnly,
	})
	if err != nil {
		return nil, err
	}

	// Market orders fill immediately; the request price is the best
	// estimate until an execution feed supplies the true fill.
	return &Order{
		ID:        result.OrderID,
		Pair:      req.Pair,
		Side:      req.Side,
		Amount:    req.Amount,
		FillPrice: req.Price,
		Status:    OrderStatusFilled,
		CreatedAt: result.CreatedAt,
	}, nil
}

func (b *BybitExchange) GetBalances(ctx context.Context) (map[string]types.Balance, error) {
	return b.client.GetBalances(ctx)
}

func (b *BybitExchange) SetLeverage(ctx context.Context, pair string, leverage int) error {
	return b.client.SetLeverage(ctx, pair, leverage)
}

func formatQty(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

var _ Exchange = (*BybitExchange)(nil)

// connectTimeout bounds the startup credential check.
const connectTimeout = 10 * time.Second
