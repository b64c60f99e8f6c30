package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

// PlaceOrderParams holds parameters for placing an order.
type PlaceOrderParams struct {
	Category    string // "spot" or "linear"
	Symbol      string
	Side        OrderSide
	Qty         string
	OrderLinkID string
	ReduceOnly  bool
}

// OrderResult is the acknowledgement returned when an order is accepted.
type OrderResult struct {
	OrderID     string    `json:"orderId"`
	OrderLinkID string    `json:"orderLinkId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PlaceMarketOrder submits a market order.
func (c *Client) PlaceMarketOrder(ctx context.Context, params PlaceOrderParams) (*OrderResult, error) {
	if params.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if params.Side == "" {
		return nil, fmt.Errorf("side is required")
	}
	if params.Qty == "" {
		return nil, fmt.Errorf("qty is required")
	}
	if params.Category == "" {
		params.Category = "spot"
	}

	apiParams := map[string]interface{}{
		"category":  params.Category,
		"symbol":    params.Symbol,
		"side":      string(params.Side),
		"orderType": "Market",
		"qty":       params.Qty,
	}
	if params.OrderLinkID != "" {
		apiParams["orderLinkId"] = params.OrderLinkID
	}
	if params.ReduceOnly {
		apiParams["reduceOnly"] = true
	}

	var result *OrderResult
	err := c.Retry(ctx, func() error {
		resp, err := c.httpClient.NewUtaBybitServiceWithParams(apiParams).PlaceOrder(ctx)
		if err != nil {
			return fmt.Errorf("place order: %w", err)
		}
		result, err = parseOrderResponse(resp)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetLeverage sets the leverage for a linear futures symbol. Bybit
// rejects a set to the already-active leverage; that is treated as
// success.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	lev := strconv.Itoa(leverage)
	params := map[string]interface{}{
		"category":     "linear",
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}

	resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).SetPositionLeverage(ctx)
	if err != nil {
		return fmt.Errorf("set leverage for %s: %w", symbol, err)
	}

	_, err = unwrapResult(resp)
	if apiErr, ok := err.(*APIError); ok && apiErr.Code == ErrCodeLeverageNotModified {
		return nil
	}
	return err
}

func parseOrderResponse(response interface{}) (*OrderResult, error) {
	raw, err := unwrapResult(response)
	if err != nil {
		return nil, err
	}

	var orderResult struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := json.Unmarshal(raw, &orderResult); err != nil {
		return nil, fmt.Errorf("unmarshal order result: %w", err)
	}
	if orderResult.OrderID == "" {
		return nil, fmt.Errorf("order response missing orderId")
	}

	return &OrderResult{
		OrderID:     orderResult.OrderID,
		OrderLinkID: orderResult.OrderLinkID,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
