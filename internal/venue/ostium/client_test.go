package ostium

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ol-hedge-bot/internal/pricing"
	"ol-hedge-bot/internal/venue"
)

func newTestClient(t *testing.T, backend, subgraph http.Handler) *Client {
	t.Helper()
	backendSrv := httptest.NewServer(backend)
	t.Cleanup(backendSrv.Close)
	subgraphSrv := httptest.NewServer(subgraph)
	t.Cleanup(subgraphSrv.Close)
	return New(Config{
		BaseURL:     backendSrv.URL,
		SubgraphURL: subgraphSrv.URL,
		Timeout:     time.Second,
		Trader:      "0xabc",
		Leverage:    decimal.NewFromInt(5),
	}, zap.NewNop())
}

func pairsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"pairs": []map[string]any{
					{"id": "0", "from": "BTC", "to": "USD"},
					{"id": "5", "from": "EUR", "to": "USD"},
				},
			},
		})
	})
}

func TestResolvePair(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler(), pairsHandler())
	pair, err := c.ResolvePair(context.Background(), "EURUSD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.ID != 5 || pair.From != "EUR" || pair.To != "USD" {
		t.Fatalf("unexpected pair: %+v", pair)
	}
	if _, err := c.ResolvePair(context.Background(), "DOGE"); err == nil {
		t.Fatal("unknown pair must fail")
	}
}

func TestResolvePairFetchesCatalogueOnce(t *testing.T) {
	var calls int
	subgraph := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		pairsHandler().ServeHTTP(w, r)
	})
	c := newTestClient(t, http.NotFoundHandler(), subgraph)
	if _, err := c.ResolvePair(context.Background(), "DOGE"); err == nil {
		t.Fatal("unknown pair must fail")
	}
	if _, err := c.ResolvePair(context.Background(), "SHIB"); err == nil {
		t.Fatal("unknown pair must fail")
	}
	if _, err := c.ResolvePair(context.Background(), "BTC"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("catalogue must be fetched once, got %d queries", calls)
	}
}

func TestQuoteParsesAndRequiresMid(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from") == "BTC" {
			_ = json.NewEncoder(w).Encode(map[string]any{"bid": "99.9", "ask": "100.1", "mid": "100"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{})
	})
	c := newTestClient(t, backend, pairsHandler())
	quote, err := c.Quote(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Mid.String() != "100" || quote.Bid.String() != "99.9" {
		t.Fatalf("unexpected quote: %+v", quote)
	}
	if _, err := c.Quote(context.Background(), "ETH"); err == nil {
		t.Fatal("missing mid must fail")
	}
}

func TestPositionSizeSignsOpenTrades(t *testing.T) {
	subgraph := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		query, _ := body["query"].(string)
		if strings.Contains(query, "pairs") {
			pairsHandler().ServeHTTP(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"trades": []map[string]any{
					{"pair": map[string]any{"id": "0"}, "tradeNotional": "300", "openPrice": "100", "isBuy": true},
					{"pair": map[string]any{"id": "0"}, "tradeNotional": "100", "openPrice": "100", "isBuy": false},
					{"pair": map[string]any{"id": "5"}, "tradeNotional": "999", "openPrice": "1", "isBuy": true},
				},
			},
		})
	})
	c := newTestClient(t, http.NotFoundHandler(), subgraph)
	size, err := c.PositionSize(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 300/100 long minus 100/100 short, other pair ignored.
	if size.String() != "2" {
		t.Fatalf("expected signed size 2, got %s", size)
	}
}

func TestPlaceAndTrackOrder(t *testing.T) {
	var placed map[string]any
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/trade":
			_ = json.NewDecoder(r.Body).Decode(&placed)
			_ = json.NewEncoder(w).Encode(map[string]any{"order_id": "42", "pair_index": 0, "index": 7})
		case "/order/42":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"isPending": false,
				"trade":     map[string]any{"tradeNotional": "150", "openPrice": "100"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	c := newTestClient(t, backend, pairsHandler())

	ref, err := c.PlaceLimitOrder(context.Background(), "BTC", pricing.SideBuy, decimal.NewFromInt(2), decimal.RequireFromString("99.95"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.ID != "42" || ref.Index != 7 {
		t.Fatalf("unexpected ref: %+v", ref)
	}
	// collateral = 99.95 * 2 / 5
	if placed["collateral"] != "39.98" {
		t.Fatalf("expected collateral 39.98, got %v", placed["collateral"])
	}
	if placed["direction"] != true {
		t.Fatalf("expected long direction, got %v", placed["direction"])
	}

	fill, err := c.TrackOrder(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fill.Status != venue.StatusFilled {
		t.Fatalf("expected filled, got %s", fill.Status)
	}
	if fill.BaseQuantity().String() != "1.5" {
		t.Fatalf("expected derived base 1.5, got %s", fill.BaseQuantity())
	}
}

func TestTrackOrderPendingAndCancelled(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/order/p":
			_ = json.NewEncoder(w).Encode(map[string]any{"isPending": true})
		case "/order/c":
			_ = json.NewEncoder(w).Encode(map[string]any{"isCancelled": true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	c := newTestClient(t, backend, pairsHandler())
	fill, err := c.TrackOrder(context.Background(), venue.OrderRef{ID: "p"})
	if err != nil || fill.Status != venue.StatusPending {
		t.Fatalf("expected pending, got %s err=%v", fill.Status, err)
	}
	fill, err = c.TrackOrder(context.Background(), venue.OrderRef{ID: "c"})
	if err != nil || fill.Status != venue.StatusCancelled {
		t.Fatalf("expected cancelled, got %s err=%v", fill.Status, err)
	}
}
