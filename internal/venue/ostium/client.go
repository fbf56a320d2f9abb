// Package ostium is the primary-venue client: metadata-backend REST for
// prices and order entry, subgraph for pairs, open trades and funding.
package ostium

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ol-hedge-bot/internal/book"
	"ol-hedge-bot/internal/pricing"
	"ol-hedge-bot/internal/venue"
)

type Config struct {
	BaseURL     string
	SubgraphURL string
	Timeout     time.Duration
	Trader      string
	Leverage    decimal.Decimal
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger

	mu          sync.Mutex
	pairs       map[string]Pair
	pairsLoaded bool
}

type Pair struct {
	ID   int
	From string
	To   string
}

func New(cfg Config, log *zap.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// ListPairs fetches the tradable pair catalogue from the subgraph.
func (c *Client) ListPairs(ctx context.Context) ([]Pair, error) {
	data, err := c.subgraphQuery(ctx, `{ pairs { id from to } }`)
	if err != nil {
		return nil, err
	}
	rows, _ := data["pairs"].([]any)
	pairs := make([]Pair, 0, len(rows))
	for _, row := range rows {
		record, ok := row.(map[string]any)
		if !ok {
			continue
		}
		id, ok := intFromAny(record["id"])
		if !ok {
			continue
		}
		from, _ := record["from"].(string)
		to, _ := record["to"].(string)
		pairs = append(pairs, Pair{ID: id, From: from, To: to})
	}
	return pairs, nil
}

// ResolvePair maps a symbol to its trading pair. An unresolved pair is a
// configuration error, fatal at startup. The catalogue is fetched at most
// once per process, so bulk symbol discovery answers misses from the cache
// instead of querying the subgraph per unknown symbol.
func (c *Client) ResolvePair(ctx context.Context, symbol string) (Pair, error) {
	base, quote := pricing.ParseSymbol(symbol)
	c.mu.Lock()
	if pair, ok := c.pairs[base+"/"+quote]; ok {
		c.mu.Unlock()
		return pair, nil
	}
	loaded := c.pairsLoaded
	c.mu.Unlock()
	if loaded {
		return Pair{}, fmt.Errorf("ostium pair not found for %s/%s", base, quote)
	}

	pairs, err := c.ListPairs(ctx)
	if err != nil {
		return Pair{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pairs == nil {
		c.pairs = make(map[string]Pair, len(pairs))
	}
	for _, pair := range pairs {
		c.pairs[pair.From+"/"+pair.To] = pair
	}
	c.pairsLoaded = true
	if pair, ok := c.pairs[base+"/"+quote]; ok {
		return pair, nil
	}
	return Pair{}, fmt.Errorf("ostium pair not found for %s/%s", base, quote)
}

// Quote fetches the latest oracle price for a symbol. Bid/ask may be absent,
// in which case callers fall back to mid.
func (c *Client) Quote(ctx context.Context, symbol string) (book.Quote, error) {
	base, quote := pricing.ParseSymbol(symbol)
	endpoint := fmt.Sprintf("%s/price/latest?from=%s&to=%s",
		c.cfg.BaseURL, url.QueryEscape(base), url.QueryEscape(quote))
	data, err := c.getJSON(ctx, endpoint)
	if err != nil {
		return book.Quote{}, err
	}
	parsed := book.ParseQuote(symbol, data)
	if parsed.Mid.Sign() <= 0 {
		return book.Quote{}, fmt.Errorf("ostium price missing mid for %s", symbol)
	}
	return parsed, nil
}

// FundingRateBps returns the funding rate over the period in basis points.
// The subgraph reports percent, so the figure is scaled by 100.
func (c *Client) FundingRateBps(ctx context.Context, symbol string, periodHours int) (decimal.Decimal, error) {
	pair, err := c.ResolvePair(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	query := fmt.Sprintf(`{ fundingRate(pairId: %d, periodHours: %d) { percent } }`, pair.ID, periodHours)
	data, err := c.subgraphQuery(ctx, query)
	if err != nil {
		return decimal.Zero, err
	}
	record, _ := data["fundingRate"].(map[string]any)
	percent, ok := decimalFromAny(record["percent"])
	if !ok {
		return decimal.Zero, fmt.Errorf("funding rate missing for pair %d", pair.ID)
	}
	return percent.Mul(decimal.NewFromInt(100)), nil
}

// PositionSize sums the trader's open trades for the symbol into a signed
// base quantity, deriving base size from notional over open price.
func (c *Client) PositionSize(ctx context.Context, symbol string) (decimal.Decimal, error) {
	pair, err := c.ResolvePair(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	query := fmt.Sprintf(`{ trades(where: { trader: %q, isOpen: true }) { pair { id } tradeNotional openPrice isBuy } }`, c.cfg.Trader)
	data, err := c.subgraphQuery(ctx, query)
	if err != nil {
		return decimal.Zero, err
	}
	rows, _ := data["trades"].([]any)
	total := decimal.Zero
	for _, row := range rows {
		record, ok := row.(map[string]any)
		if !ok {
			continue
		}
		pairRecord, _ := record["pair"].(map[string]any)
		if id, ok := intFromAny(pairRecord["id"]); !ok || id != pair.ID {
			continue
		}
		notional, okN := decimalFromAny(record["tradeNotional"])
		openPrice, okP := decimalFromAny(record["openPrice"])
		if !okN || !okP || openPrice.Sign() <= 0 {
			continue
		}
		qty := notional.Div(openPrice)
		if isBuy, _ := record["isBuy"].(bool); isBuy {
			total = total.Add(qty)
		} else {
			total = total.Sub(qty)
		}
	}
	return total, nil
}

// PlaceLimitOrder opens a limit trade. Collateral is notional over leverage,
// matching how the venue sizes positions.
func (c *Client) PlaceLimitOrder(ctx context.Context, symbol string, side pricing.Side, qty, price decimal.Decimal) (venue.OrderRef, error) {
	pair, err := c.ResolvePair(ctx, symbol)
	if err != nil {
		return venue.OrderRef{}, err
	}
	collateral := price.Mul(qty).Div(c.cfg.Leverage)
	payload := map[string]any{
		"asset_type": pair.ID,
		"direction":  side == pricing.SideBuy,
		"order_type": "LIMIT",
		"price":      price.String(),
		"collateral": collateral.String(),
		"leverage":   c.cfg.Leverage.String(),
		"tp":         "0",
		"sl":         "0",
	}
	data, err := c.postJSON(ctx, c.cfg.BaseURL+"/trade", payload)
	if err != nil {
		return venue.OrderRef{}, err
	}
	orderID, _ := data["order_id"].(string)
	if orderID == "" {
		return venue.OrderRef{}, fmt.Errorf("ostium order id missing from receipt")
	}
	pairIndex, _ := intFromAny(data["pair_index"])
	index, _ := intFromAny(data["index"])
	c.log.Info("ostium limit order placed",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("qty", qty.String()),
		zap.String("price", price.String()),
		zap.String("order", orderID))
	return venue.OrderRef{ID: orderID, PairIndex: pairIndex, Index: index}, nil
}

// TrackOrder reads the current order/trade state once. The executor owns the
// polling cadence.
func (c *Client) TrackOrder(ctx context.Context, ref venue.OrderRef) (venue.Fill, error) {
	data, err := c.getJSON(ctx, c.cfg.BaseURL+"/order/"+url.PathEscape(ref.ID))
	if err != nil {
		return venue.Fill{}, err
	}
	if pending, _ := data["isPending"].(bool); pending {
		return venue.Fill{Status: venue.StatusPending}, nil
	}
	if cancelled, _ := data["isCancelled"].(bool); cancelled {
		return venue.Fill{Status: venue.StatusCancelled}, nil
	}
	trade, _ := data["trade"].(map[string]any)
	if trade == nil {
		return venue.Fill{Status: venue.StatusPending}, nil
	}
	notional, _ := decimalFromAny(trade["tradeNotional"])
	openPrice, _ := decimalFromAny(trade["openPrice"])
	return venue.Fill{
		Status:         venue.StatusFilled,
		FilledNotional: notional,
		OpenPrice:      openPrice,
	}, nil
}

// CancelOrder cancels a resting limit order by pair index and order index.
func (c *Client) CancelOrder(ctx context.Context, ref venue.OrderRef) error {
	payload := map[string]any{
		"pair_index": ref.PairIndex,
		"index":      ref.Index,
	}
	_, err := c.postJSON(ctx, c.cfg.BaseURL+"/trade/cancel", payload)
	return err
}

func (c *Client) subgraphQuery(ctx context.Context, query string) (map[string]any, error) {
	data, err := c.postJSON(ctx, c.cfg.SubgraphURL, map[string]any{"query": query})
	if err != nil {
		return nil, err
	}
	inner, _ := data["data"].(map[string]any)
	if inner == nil {
		return nil, fmt.Errorf("subgraph response missing data")
	}
	return inner, nil
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
