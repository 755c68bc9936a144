package oracle

import (
	"context"
	"strings"
	"time"

	"github.com/DomeLiquid/margin/core"
	"github.com/DomeLiquid/margin/pkg/resthttp"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Client reads prices from a REST price feed:
//
//	GET /prices?keys=BTC/USD,ETH/USD
//	{"prices":[{"key":"BTC/USD","price":"40000.5","published_at":1700000000}]}
type Client struct {
	client *resty.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{client: resthttp.New(endpoint, timeout)}
}

type priceView struct {
	Key         string          `json:"key"`
	Price       decimal.Decimal `json:"price"`
	PublishedAt int64           `json:"published_at"`
}

type pricesResponse struct {
	Prices []priceView `json:"prices"`
}

func (c *Client) GetPrices(ctx context.Context, keys []string) (map[string]core.Price, error) {
	var resp pricesResponse
	req := resthttp.Request(ctx, c.client).SetQueryParam("keys", strings.Join(keys, ","))
	if err := resthttp.Execute(req, "GET", "/prices", nil, &resp); err != nil {
		return nil, err
	}

	prices := make(map[string]core.Price, len(resp.Prices))
	for _, p := range resp.Prices {
		prices[p.Key] = core.Price{
			Key:         p.Key,
			Price:       p.Price,
			PublishedAt: time.Unix(p.PublishedAt, 0),
		}
	}
	return prices, nil
}
