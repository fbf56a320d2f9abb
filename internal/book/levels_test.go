package book

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseLevelsPairs(t *testing.T) {
	raw := []any{
		[]any{"100.5", "2"},
		[]any{"100.4", "1.5"},
		[]any{"0", "3"},
		[]any{"99", "0"},
	}
	levels := ParseLevels(raw)
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(levels))
	}
	if levels[0].Price.String() != "100.5" || levels[0].Size.String() != "2" {
		t.Fatalf("unexpected first level: %+v", levels[0])
	}
}

func TestParseLevelsRecords(t *testing.T) {
	raw := []any{
		map[string]any{"price": "250.1", "size": "4"},
		map[string]any{"price": 250.0, "size": 1.0},
		map[string]any{"price": "-1", "size": "4"},
	}
	levels := ParseLevels(raw)
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(levels))
	}
	if !levels[1].Price.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("unexpected second level price: %s", levels[1].Price)
	}
}

func TestParseLevelsStrictRejectsUnknownShape(t *testing.T) {
	raw := []any{"not a level"}
	if _, err := ParseLevelsStrict(raw); !errors.Is(err, ErrBadLevelShape) {
		t.Fatalf("expected ErrBadLevelShape, got %v", err)
	}
	if levels := ParseLevels(raw); len(levels) != 0 {
		t.Fatalf("lenient parse should drop unknown rows, got %d", len(levels))
	}
}

func TestParseLevelsNilAndEmpty(t *testing.T) {
	if levels := ParseLevels(nil); levels != nil {
		t.Fatalf("expected nil for nil input, got %v", levels)
	}
	if levels := ParseLevels([]any{}); len(levels) != 0 {
		t.Fatalf("expected no levels, got %d", len(levels))
	}
}

func TestBestPrice(t *testing.T) {
	price, ok := BestPrice([]any{[]any{"42.5", "1"}})
	if !ok || price.String() != "42.5" {
		t.Fatalf("expected 42.5, got %s ok=%t", price, ok)
	}
	price, ok = BestPrice([]any{map[string]any{"price": "7"}})
	if !ok || price.String() != "7" {
		t.Fatalf("expected 7, got %s ok=%t", price, ok)
	}
	if _, ok := BestPrice([]any{}); ok {
		t.Fatal("expected no best price for empty side")
	}
	if _, ok := BestPrice(nil); ok {
		t.Fatal("expected no best price for nil side")
	}
}

func TestParseQuoteFallbacks(t *testing.T) {
	q := ParseQuote("EURUSD", map[string]any{"mid": "1.1"})
	if q.Bid.Sign() != 0 || q.Ask.Sign() != 0 {
		t.Fatalf("expected absent bid/ask, got %s/%s", q.Bid, q.Ask)
	}
	if q.BidOrMid().String() != "1.1" || q.AskOrMid().String() != "1.1" {
		t.Fatalf("expected mid fallback, got %s/%s", q.BidOrMid(), q.AskOrMid())
	}
	q = ParseQuote("BTC", map[string]any{"bid": "99", "ask": "101", "mid": "100"})
	if q.BidOrMid().String() != "99" || q.AskOrMid().String() != "101" {
		t.Fatalf("expected real bid/ask, got %s/%s", q.BidOrMid(), q.AskOrMid())
	}
}
