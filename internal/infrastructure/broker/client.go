package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"strategy-backend/internal/domain"
)

// Client fetches account balances from the broker gateway's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type balanceResponse struct {
	AccountID string `json:"accountId"`
	Balance   string `json:"balance"`
	Currency  string `json:"currency"`
}

// FetchBalance performs the network round trip for one account.
func (c *Client) FetchBalance(ctx context.Context, account *domain.TradingAccount) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/v1/accounts/%s/balance", c.baseURL, url.PathEscape(account.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return decimal.Zero, domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("broker API error: %d", resp.StatusCode)
	}

	var body balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, err
	}

	balance, err := decimal.NewFromString(body.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("broker returned invalid balance %q: %w", body.Balance, err)
	}
	return balance, nil
}

var _ domain.BalanceProvider = (*Client)(nil)

// StaticProvider serves each account's initial balance, for dev mode when
// no broker gateway is configured.
type StaticProvider struct{}

func (StaticProvider) FetchBalance(ctx context.Context, account *domain.TradingAccount) (decimal.Decimal, error) {
	_ = ctx
	return account.InitialBalance, nil
}

var _ domain.BalanceProvider = StaticProvider{}
