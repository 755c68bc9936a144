// Package rest talks to an order book venue over its REST API.
package rest

import (
	"context"
	"time"

	"github.com/DomeLiquid/margin/core"
	"github.com/DomeLiquid/margin/pkg/resthttp"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Client struct {
	client *resty.Client
}

func New(endpoint string, timeout time.Duration) *Client {
	return &Client{client: resthttp.New(endpoint, timeout)}
}

var _ core.Venue = (*Client)(nil)

type (
	openOrdersRequest struct {
		Market string `json:"market"`
		Owner  string `json:"owner"`
	}

	openOrdersView struct {
		Id         string          `json:"id"`
		Market     string          `json:"market"`
		Owner      string          `json:"owner"`
		BaseFree   decimal.Decimal `json:"base_free"`
		BaseTotal  decimal.Decimal `json:"base_total"`
		QuoteFree  decimal.Decimal `json:"quote_free"`
		QuoteTotal decimal.Decimal `json:"quote_total"`
		OrderIds   []string        `json:"order_ids"`
	}

	orderRequest struct {
		Market            string          `json:"market"`
		OpenOrders        string          `json:"open_orders"`
		Side              string          `json:"side"`
		Price             decimal.Decimal `json:"price"`
		Size              decimal.Decimal `json:"size"`
		Type              string          `json:"type"`
		SelfTradeBehavior string          `json:"self_trade_behavior"`
		ClientId          string          `json:"client_id,omitempty"`
	}

	orderView struct {
		Id string `json:"id"`
	}

	cancelAllView struct {
		Cancelled int `json:"cancelled"`
	}

	settleRequest struct {
		SettleId string `json:"settle_id,omitempty"`
	}

	settleView struct {
		Base  decimal.Decimal `json:"base"`
		Quote decimal.Decimal `json:"quote"`
	}
)

func (c *Client) CreateOpenOrders(ctx context.Context, market core.Market, owner string) (string, error) {
	var view openOrdersView
	req := resthttp.WithRequestID(ctx, c.client, market.Id+"|"+owner)
	if err := resthttp.Execute(req, "POST", "/open_orders", openOrdersRequest{Market: market.Id, Owner: owner}, &view); err != nil {
		return "", err
	}
	return view.Id, nil
}

func (c *Client) LoadOpenOrders(ctx context.Context, market core.Market, openOrdersId string) (*core.OpenOrders, error) {
	var view openOrdersView
	req := resthttp.Request(ctx, c.client).
		SetPathParam("id", openOrdersId).
		SetQueryParam("market", market.Id)
	if err := resthttp.Execute(req, "GET", "/open_orders/{id}", nil, &view); err != nil {
		if errors.Is(err, resthttp.ErrNotFound) {
			return nil, errors.Wrap(core.ErrInvalidOpenOrdersAccount, err.Error())
		}
		return nil, err
	}
	if view.Market != "" && view.Market != market.Id {
		return nil, errors.Wrapf(core.ErrInvalidOpenOrdersAccount, "%s is on %s", view.Id, view.Market)
	}
	return &core.OpenOrders{
		Id:         view.Id,
		Market:     view.Market,
		Owner:      view.Owner,
		BaseFree:   view.BaseFree,
		BaseTotal:  view.BaseTotal,
		QuoteFree:  view.QuoteFree,
		QuoteTotal: view.QuoteTotal,
		OrderIds:   view.OrderIds,
	}, nil
}

func (c *Client) PlaceOrder(ctx context.Context, market core.Market, openOrdersId string, r core.OrderRequest) (string, error) {
	body := orderRequest{
		Market:            market.Id,
		OpenOrders:        openOrdersId,
		Side:              r.Side.String(),
		Price:             r.Price,
		Size:              r.Size,
		Type:              r.Type.String(),
		SelfTradeBehavior: r.SelfTradeBehavior.String(),
		ClientId:          r.ClientId,
	}

	var view orderView
	req := resthttp.Request(ctx, c.client)
	if r.ClientId != "" {
		req = resthttp.WithRequestID(ctx, c.client, r.ClientId)
	}
	if err := resthttp.Execute(req, "POST", "/orders", body, &view); err != nil {
		return "", err
	}
	return view.Id, nil
}

func (c *Client) CancelOrder(ctx context.Context, market core.Market, openOrdersId, orderId string) error {
	req := resthttp.Request(ctx, c.client).
		SetPathParam("id", orderId).
		SetQueryParams(map[string]string{"market": market.Id, "open_orders": openOrdersId})
	err := resthttp.Execute(req, "DELETE", "/orders/{id}", nil, nil)
	if errors.Is(err, resthttp.ErrNotFound) {
		return nil
	}
	return err
}

func (c *Client) CancelAll(ctx context.Context, market core.Market, openOrdersId string) (int, error) {
	var view cancelAllView
	req := resthttp.Request(ctx, c.client).
		SetPathParam("id", openOrdersId).
		SetQueryParam("market", market.Id)
	if err := resthttp.Execute(req, "DELETE", "/open_orders/{id}/orders", nil, &view); err != nil {
		return 0, err
	}
	return view.Cancelled, nil
}

// SettleFunds sends settleId as the idempotency key of the settlement.
func (c *Client) SettleFunds(ctx context.Context, market core.Market, openOrdersId, settleId string) (decimal.Decimal, decimal.Decimal, error) {
	var view settleView
	req := resthttp.Request(ctx, c.client)
	if settleId != "" {
		req = resthttp.WithRequestID(ctx, c.client, settleId)
	}
	req = req.SetPathParam("id", openOrdersId).
		SetQueryParam("market", market.Id)
	if err := resthttp.Execute(req, "POST", "/open_orders/{id}/settle", settleRequest{SettleId: settleId}, &view); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return view.Base, view.Quote, nil
}
