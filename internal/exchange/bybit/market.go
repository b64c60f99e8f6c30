package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/alphabot/alpha-bot/pkg/types"
)

// GetCandles fetches kline data and returns it oldest-first.
// Bybit returns newest-first, so the slice is reversed before return.
func (c *Client) GetCandles(ctx context.Context, category, symbol, interval string, limit int) ([]types.OHLCV, error) {
	if category == "" {
		category = "spot"
	}
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}

	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
		"interval": interval,
		"limit":    limit,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err != nil {
		return nil, fmt.Errorf("get klines for %s: %w", symbol, err)
	}

	return parseKlineResponse(result)
}

// GetTicker fetches the latest ticker for a symbol.
func (c *Client) GetTicker(ctx context.Context, category, symbol string) (*types.Ticker, error) {
	if category == "" {
		category = "spot"
	}

	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("get ticker for %s: %w", symbol, err)
	}

	return parseTickerResponse(result)
}

func unwrapResult(response interface{}) (json.RawMessage, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return nil, &APIError{Code: serverResp.RetCode, Message: serverResp.RetMsg}
	}

	raw, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return raw, nil
}

func parseKlineResponse(response interface{}) ([]types.OHLCV, error) {
	raw, err := unwrapResult(response)
	if err != nil {
		return nil, err
	}

	var klineResult struct {
		Symbol string     `json:"symbol"`
		List   [][]string `json:"list"`
	}
	if err := json.Unmarshal(raw, &klineResult); err != nil {
		return nil, fmt.Errorf("unmarshal kline result: %w", err)
	}

	// Kline row: [startTime, open, high, low, close, volume, turnover]
	candles := make([]types.OHLCV, 0, len(klineResult.List))
	for i := len(klineResult.List) - 1; i >= 0; i-- {
		row := klineResult.List[i]
		if len(row) < 6 {
			continue
		}
		candles = append(candles, types.OHLCV{
			Timestamp: time.UnixMilli(parseInt64(row[0])),
			Open:      parseFloat64(row[1]),
			High:      parseFloat64(row[2]),
			Low:       parseFloat64(row[3]),
			Close:     parseFloat64(row[4]),
			Volume:    parseFloat64(row[5]),
		})
	}
	return candles, nil
}

func parseTickerResponse(response interface{}) (*types.Ticker, error) {
	raw, err := unwrapResult(response)
	if err != nil {
		return nil, err
	}

	var tickerResult struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
			Volume24h string `json:"volume24h"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &tickerResult); err != nil {
		return nil, fmt.Errorf("unmarshal ticker result: %w", err)
	}
	if len(tickerResult.List) == 0 {
		return nil, fmt.Errorf("no ticker data found")
	}

	t := tickerResult.List[0]
	return &types.Ticker{
		Symbol:    t.Symbol,
		Price:     parseFloat64(t.LastPrice),
		Bid:       parseFloat64(t.Bid1Price),
		Ask:       parseFloat64(t.Ask1Price),
		Volume:    parseFloat64(t.Volume24h),
		Timestamp: time.Now().UTC(),
	}, nil
}
