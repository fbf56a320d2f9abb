// Package lighter is the secondary-venue client: REST order books, account
// positions and signed order submission, plus a streaming depth feed.
package lighter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ol-hedge-bot/internal/book"
	"ol-hedge-bot/internal/pricing"
	"ol-hedge-bot/internal/venue/signing"
)

type Config struct {
	BaseURL      string
	Timeout      time.Duration
	AccountIndex int
	APIKeyIndex  int
}

type Client struct {
	cfg    Config
	http   *http.Client
	signer *signing.Signer
	log    *zap.Logger
	now    func() time.Time
	live   *LiveBook

	mu      sync.Mutex
	markets map[string]Market
}

// Market is one order book's static configuration plus its latest REST
// depth snapshot.
type Market struct {
	Symbol        string
	ID            int
	SizeDecimals  int
	PriceDecimals int
	Bids          []book.Level
	Asks          []book.Level
}

func New(cfg Config, signer *signing.Signer, log *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		signer: signer,
		log:    log,
		now:    time.Now,
	}
}

// ListOrderBooks fetches every market with its embedded depth snapshot.
// A market whose depth fails strict parsing is dropped from the pass, so a
// corrupted payload surfaces as a missing symbol instead of an empty book.
func (c *Client) ListOrderBooks(ctx context.Context) ([]Market, error) {
	data, err := c.getJSON(ctx, c.cfg.BaseURL+"/api/v1/orderBooks")
	if err != nil {
		return nil, err
	}
	rows, _ := data["order_books"].([]any)
	if rows == nil {
		rows, _ = data["orderBooks"].([]any)
	}
	markets := make([]Market, 0, len(rows))
	for _, row := range rows {
		record, ok := row.(map[string]any)
		if !ok {
			continue
		}
		symbol, _ := record["symbol"].(string)
		if symbol == "" {
			continue
		}
		id, ok := intFromAny(record["market_id"])
		if !ok {
			continue
		}
		sizeDecimals, _ := intFromAny(record["supported_size_decimals"])
		priceDecimals, _ := intFromAny(record["supported_price_decimals"])
		bids, err := book.ParseLevelsStrict(record["bids"])
		if err != nil {
			c.log.Warn("order book bids unparseable", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		asks, err := book.ParseLevelsStrict(record["asks"])
		if err != nil {
			c.log.Warn("order book asks unparseable", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		markets = append(markets, Market{
			Symbol:        symbol,
			ID:            id,
			SizeDecimals:  sizeDecimals,
			PriceDecimals: priceDecimals,
			Bids:          bids,
			Asks:          asks,
		})
	}
	c.mu.Lock()
	if c.markets == nil {
		c.markets = make(map[string]Market, len(markets))
	}
	for _, market := range markets {
		c.markets[market.Symbol] = market
	}
	c.mu.Unlock()
	return markets, nil
}

// Resolve returns the market for a symbol, fetching the catalogue on first
// use. An unknown symbol is a configuration error.
func (c *Client) Resolve(ctx context.Context, symbol string) (Market, error) {
	c.mu.Lock()
	market, ok := c.markets[symbol]
	c.mu.Unlock()
	if ok {
		return market, nil
	}
	if _, err := c.ListOrderBooks(ctx); err != nil {
		return Market{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if market, ok := c.markets[symbol]; ok {
		return market, nil
	}
	return Market{}, fmt.Errorf("lighter symbol not found: %s", symbol)
}

// UseLiveBook makes Depth and Quote prefer streamed snapshots over REST.
func (c *Client) UseLiveBook(live *LiveBook) {
	c.live = live
}

// Depth returns both book sides for a symbol, from the live stream when one
// is attached and fresh, otherwise from a REST snapshot.
func (c *Client) Depth(ctx context.Context, symbol string) ([]book.Level, []book.Level, error) {
	if c.live != nil {
		if market, err := c.Resolve(ctx, symbol); err == nil {
			if bids, asks, ok := c.live.Snapshot(market.ID); ok {
				return bids, asks, nil
			}
		}
	}
	markets, err := c.ListOrderBooks(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, market := range markets {
		if market.Symbol == symbol {
			return market.Bids, market.Asks, nil
		}
	}
	return nil, nil, fmt.Errorf("lighter symbol not found: %s", symbol)
}

// Quote derives a best-bid/ask quote from the depth snapshot.
func (c *Client) Quote(ctx context.Context, symbol string) (book.Quote, error) {
	bids, asks, err := c.Depth(ctx, symbol)
	if err != nil {
		return book.Quote{}, err
	}
	if len(bids) == 0 || len(asks) == 0 {
		return book.Quote{}, fmt.Errorf("lighter order book missing bids/asks for %s", symbol)
	}
	bid := bids[0].Price
	ask := asks[0].Price
	mid := bid.Add(ask).Div(decimal.NewFromInt(2))
	return book.Quote{Symbol: symbol, Bid: bid, Ask: ask, Mid: mid}, nil
}

// Position returns the account's signed base size for a symbol.
func (c *Client) Position(ctx context.Context, symbol string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/api/v1/account?by=index&value=%s",
		c.cfg.BaseURL, url.QueryEscape(strconv.Itoa(c.cfg.AccountIndex)))
	data, err := c.getJSON(ctx, endpoint)
	if err != nil {
		return decimal.Zero, err
	}
	accounts, _ := data["accounts"].([]any)
	if len(accounts) == 0 {
		return decimal.Zero, nil
	}
	account, _ := accounts[0].(map[string]any)
	positions, _ := account["positions"].([]any)
	for _, row := range positions {
		record, ok := row.(map[string]any)
		if !ok {
			continue
		}
		if name, _ := record["symbol"].(string); name != symbol {
			continue
		}
		size, ok := decimalFromAny(record["position"])
		if !ok {
			continue
		}
		if sign, ok := intFromAny(record["sign"]); ok && sign < 0 {
			size = size.Neg()
		}
		return size, nil
	}
	return decimal.Zero, nil
}

// SubmitOrder signs and submits an immediate-or-cancel limit order priced
// through the touch. Quantities are scaled to the market's integer units.
func (c *Client) SubmitOrder(ctx context.Context, symbol string, side pricing.Side, qty, price decimal.Decimal) error {
	market, err := c.Resolve(ctx, symbol)
	if err != nil {
		return err
	}
	tx := OrderTx{
		AccountIndex:     c.cfg.AccountIndex,
		APIKeyIndex:      c.cfg.APIKeyIndex,
		MarketIndex:      market.ID,
		ClientOrderIndex: c.now().UnixMilli(),
		BaseAmount:       scale(qty, market.SizeDecimals),
		Price:            scale(price, market.PriceDecimals),
		IsAsk:            side == pricing.SideSell,
		OrderType:        "limit",
		TimeInForce:      "immediate_or_cancel",
	}
	payload, err := EncodeOrderTx(tx)
	if err != nil {
		return err
	}
	signature, err := c.signer.SignPayload(payload)
	if err != nil {
		return err
	}
	body := map[string]any{
		"tx_type":   txTypeCreateOrder,
		"tx_info":   tx,
		"signature": signature,
	}
	data, err := c.postJSON(ctx, c.cfg.BaseURL+"/api/v1/sendTx", body)
	if err != nil {
		return err
	}
	if code, ok := intFromAny(data["code"]); ok && code != 200 {
		message, _ := data["message"].(string)
		return fmt.Errorf("lighter sendTx rejected: %d %s", code, message)
	}
	txHash, _ := data["tx_hash"].(string)
	c.log.Info("lighter order submitted",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("qty", qty.String()),
		zap.String("price", price.String()),
		zap.String("tx", txHash))
	return nil
}

const txTypeCreateOrder = 14

func scale(value decimal.Decimal, decimals int) int64 {
	return value.Shift(int32(decimals)).Round(0).IntPart()
}

func (c *Client) getJSON(ctx context.Context, endpoint string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body any) (map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (map[string]any, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}
