package bybit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alphabot/alpha-bot/pkg/types"
)

// GetBalances fetches coin balances from the unified trading account.
func (c *Client) GetBalances(ctx context.Context) (map[string]types.Balance, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("get account wallet: %w", err)
	}

	return parseWalletResponse(result)
}

func parseWalletResponse(response interface{}) (map[string]types.Balance, error) {
	raw, err := unwrapResult(response)
	if err != nil {
		return nil, err
	}

	var walletResult struct {
		List []struct {
			Coin []struct {
				Coin             string `json:"coin"`
				WalletBalance    string `json:"walletBalance"`
				AvailableToTrade string `json:"availableToTrade"`
				TotalOrderIM     string `json:"totalOrderIM"`
				TotalPositionIM  string `json:"totalPositionIM"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &walletResult); err != nil {
		return nil, fmt.Errorf("unmarshal wallet result: %w", err)
	}
	if len(walletResult.List) == 0 {
		return nil, fmt.Errorf("no account data found")
	}

	balances := make(map[string]types.Balance)
	for _, coin := range walletResult.List[0].Coin {
		total := parseFloat64(coin.WalletBalance)
		free := parseFloat64(coin.AvailableToTrade)
		if free == 0 {
			free = total - parseFloat64(coin.TotalOrderIM) - parseFloat64(coin.TotalPositionIM)
			if free < 0 {
				free = 0
			}
		}
		balances[coin.Coin] = types.Balance{
			Asset:  coin.Coin,
			Free:   free,
			Locked: total - free,
		}
	}
	return balances, nil
}
