package exchange

import (
	"context"
	"time"

	"github.com/alphabot/alpha-bot/pkg/types"
)

// OrderStatus is the lifecycle state of an order on the venue.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// OrderRequest is a venue-agnostic order submission.
type OrderRequest struct {
	Pair       string
	Side       types.Side
	Amount     float64
	Price      float64 // hint for paper fills; market orders on live venues
	Futures    bool
	Leverage   int
	ReduceOnly bool
}

// Order is the venue's view of a submitted order.
type Order struct {
	ID        string
	Pair      string
	Side      types.Side
	Amount    float64
	FillPrice float64
	Status    OrderStatus
	CreatedAt time.Time
}

// Exchange is the venue surface the bot trades through. One value per
// configured venue; implementations must be safe for concurrent use.
type Exchange interface {
	ID() string
	Connect(ctx context.Context) error
	Close() error

	GetTicker(ctx context.Context, pair string) (*types.Ticker, error)
	GetCandles(ctx context.Context, pair, interval string, limit int) ([]types.OHLCV, error)

	PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error)
	GetBalances(ctx context.Context) (map[string]types.Balance, error)
	SetLeverage(ctx context.Context, pair string, leverage int) error
}
