package restvenue

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/chidi150c/spotarb/internal/adapter"
	"github.com/chidi150c/spotarb/internal/market"
	"github.com/chidi150c/spotarb/internal/order"
	"github.com/chidi150c/spotarb/internal/signer"
)

// defaultTimeout is the per-request deadline assigned to every adapter
// call (default 10s).
const defaultTimeout = 10 * time.Second

const (
	maxRetries    = 3
	retryWaitTime = 200 * time.Millisecond
	retryMaxWait  = 2 * time.Second
)

// Client is a generic HMAC-signed REST Venue Adapter. One Client
// instance serves exactly one venue, described by a Dialect.
type Client struct {
	name    string
	dialect Dialect
	signer  *signer.HMACSigner
	http    *resty.Client
}

// New builds a Client for venueName against dialect, signing every
// request with signer. The resty client is grounded on the pack's
// established HTTP-client idiom (polymarket-mm's use of resty).
// Retries are the adapter's concern only for idempotent GETs: the
// retry condition below refuses any non-GET request outright, then
// falls back to the same *adapter.Error classification "do" uses to
// decide whether the failure was retryable in the first place.
func New(venueName string, dialect Dialect, hmac *signer.HMACSigner) *Client {
	rc := resty.New().
		SetBaseURL(dialect.BaseURL()).
		SetTimeout(defaultTimeout).
		SetRetryCount(maxRetries).
		SetRetryWaitTime(retryWaitTime).
		SetRetryMaxWaitTime(retryMaxWait).
		AddRetryCondition(retryCondition)
	return &Client{name: venueName, dialect: dialect, signer: hmac, http: rc}
}

// retryCondition allows resty to retry only GET requests that failed
// in a way adapter.Error.Retryable() considers safe to retry: a
// network-level error, or a response status this client would
// classify as KindNetwork/KindRateLimit/KindTimeout.
func retryCondition(r *resty.Response, err error) bool {
	var method string
	if r != nil && r.Request != nil {
		method = r.Request.Method
	}
	if method != http.MethodGet {
		return false
	}
	if err != nil {
		return (&adapter.Error{Kind: adapter.KindNetwork}).Retryable()
	}
	if r == nil {
		return false
	}
	kind := statusKind(r.StatusCode())
	if kind == "" {
		return false
	}
	return (&adapter.Error{Kind: kind}).Retryable()
}

// statusKind classifies an HTTP status code into the adapter.Kind "do"
// would return for it, or "" for a successful status.
func statusKind(code int) adapter.Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return adapter.KindAuth
	case code == http.StatusTooManyRequests:
		return adapter.KindRateLimit
	case code >= 500:
		return adapter.KindNetwork
	case code >= 400:
		return adapter.KindVenue
	default:
		return ""
	}
}

func (c *Client) Name() string { return c.name }

// do executes one signed request and classifies any failure into an
// *adapter.Error sub-kind so nothing escapes the boundary raw.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, *adapter.Error) {
	headers, err := c.signer.Sign(method, path, body)
	if err != nil {
		return nil, adapter.New(c.name, op, adapter.KindAuth, err)
	}

	req := c.http.R().SetContext(ctx).SetHeaders(headers)
	if len(body) > 0 {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	var resp *resty.Response
	switch method {
	case http.MethodGet:
		resp, err = req.Get(path)
	case http.MethodPost:
		resp, err = req.Post(path)
	default:
		return nil, adapter.New(c.name, op, adapter.KindVenue, fmt.Errorf("unsupported method %q", method))
	}
	if err != nil {
		return nil, adapter.New(c.name, op, adapter.KindNetwork, err)
	}

	if kind := statusKind(resp.StatusCode()); kind != "" {
		return nil, adapter.New(c.name, op, kind, fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	return resp.Body(), nil
}

func (c *Client) FetchMarkets(ctx context.Context) ([]market.MarketMeta, *adapter.Error) {
	method, path := c.dialect.MarketsPath()
	body, aerr := c.do(ctx, "fetch_markets", method, path, nil)
	if aerr != nil {
		return nil, aerr
	}
	metas, err := c.dialect.ParseMarkets(body)
	if err != nil {
		return nil, adapter.New(c.name, "fetch_markets", adapter.KindVenue, err)
	}
	return metas, nil
}

func (c *Client) FetchBalance(ctx context.Context) (map[market.Asset]decimal.Decimal, *adapter.Error) {
	method, path := c.dialect.BalancePath()
	body, aerr := c.do(ctx, "fetch_balance", method, path, nil)
	if aerr != nil {
		return nil, aerr
	}
	bal, err := c.dialect.ParseBalance(body)
	if err != nil {
		return nil, adapter.New(c.name, "fetch_balance", adapter.KindVenue, err)
	}
	return bal, nil
}

func (c *Client) FetchOrderBook(ctx context.Context, symbol market.Symbol, depth int) (market.OrderBookSnapshot, *adapter.Error) {
	method, path := c.dialect.OrderBookPath(symbol, depth)
	body, aerr := c.do(ctx, "fetch_order_book", method, path, nil)
	if aerr != nil {
		return market.OrderBookSnapshot{}, aerr
	}
	snap, err := c.dialect.ParseOrderBook(symbol, c.name, body)
	if err != nil {
		return market.OrderBookSnapshot{}, adapter.New(c.name, "fetch_order_book", adapter.KindVenue, err)
	}
	if err := snap.Validate(); err != nil {
		return market.OrderBookSnapshot{}, adapter.New(c.name, "fetch_order_book", adapter.KindVenue, err)
	}
	return snap, nil
}

func (c *Client) FetchFees(ctx context.Context, symbol market.Symbol) (market.FeeSchedule, *adapter.Error) {
	method, path := c.dialect.FeesPath(symbol)
	body, aerr := c.do(ctx, "fetch_fees", method, path, nil)
	if aerr != nil {
		// A hard-coded fallback is permitted if the venue refuses;
		// the caller decides whether to use one.
		return market.FeeSchedule{}, aerr
	}
	fees, err := c.dialect.ParseFees(body)
	if err != nil {
		return market.FeeSchedule{}, adapter.New(c.name, "fetch_fees", adapter.KindVenue, err)
	}
	return fees, nil
}

func (c *Client) PlaceOrder(ctx context.Context, clientOrderID string, symbol market.Symbol, side order.Side, baseQty, price decimal.Decimal) (order.PlaceResult, *adapter.Error) {
	method, path, body := c.dialect.PlaceOrderPath(clientOrderID, symbol, side, baseQty, price)
	respBody, aerr := c.do(ctx, "place_order", method, path, body)
	if aerr != nil {
		// Venue rejection is not a crossed boundary failure here; the
		// opposite leg must still be considered at risk by the caller.
		return order.PlaceResult{Accepted: false}, aerr
	}
	res, err := c.dialect.ParsePlaceOrder(respBody)
	if err != nil {
		return order.PlaceResult{Accepted: false}, adapter.New(c.name, "place_order", adapter.KindVenue, err)
	}
	return res, nil
}

func (c *Client) CancelOrder(ctx context.Context, venueOrderID string, symbol market.Symbol) (bool, *adapter.Error) {
	method, path := c.dialect.CancelOrderPath(venueOrderID, symbol)
	body, aerr := c.do(ctx, "cancel_order", method, path, nil)
	if aerr != nil {
		return false, aerr
	}
	ok, err := c.dialect.ParseCancelOrder(body)
	if err != nil {
		return false, adapter.New(c.name, "cancel_order", adapter.KindVenue, err)
	}
	return ok, nil
}

func (c *Client) FetchOrderStatus(ctx context.Context, venueOrderID string, symbol market.Symbol) (*order.PolledStatus, *adapter.Error) {
	method, path := c.dialect.OrderStatusPath(venueOrderID, symbol)
	body, aerr := c.do(ctx, "fetch_order_status", method, path, nil)
	if aerr != nil {
		return nil, aerr
	}
	status, err := c.dialect.ParseOrderStatus(body)
	if err != nil {
		return nil, adapter.New(c.name, "fetch_order_status", adapter.KindVenue, err)
	}
	return status, nil
}
