package scan

import (
	"testing"

	"github.com/shopspring/decimal"

	"ol-hedge-bot/internal/book"
	"ol-hedge-bot/internal/pricing"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func levels(rows ...[2]string) []book.Level {
	out := make([]book.Level, 0, len(rows))
	for _, row := range rows {
		out = append(out, book.Level{Price: d(row[0]), Size: d(row[1])})
	}
	return out
}

func testParams() Params {
	return Params{
		NotionalUSD:       d("10000"),
		Leverage:          d("5"),
		DepthQuoteUSD:     d("10000"),
		MinDepthQuoteUSD:  d("10000"),
		OffsetBps:         d("5"),
		OracleFeeUSD:      d("0.10"),
		BufferBps:         d("0"),
		MinNetBps:         d("0.01"),
		SpreadWeight:      d("0.2"),
		MaxSpreadBps:      d("50"),
		MaxDislocationBps: d("500"),
	}
}

// Deep books at a single price level so the VWAP lands exactly on it.
func btcSnapshot() Snapshot {
	return Snapshot{
		Symbol: "BTC",
		Quote:  book.Quote{Symbol: "BTC", Mid: d("100")},
		Bids:   levels([2]string{"100.2", "200"}),
		Asks:   levels([2]string{"100.3", "200"}),
	}
}

func TestEvaluateBuyDirectionEndToEnd(t *testing.T) {
	s := NewScanner(testParams(), nil)
	candidates := s.Evaluate(btcSnapshot())
	if len(candidates) != 2 {
		t.Fatalf("expected both directions, got %d", len(candidates))
	}
	buy := candidates[0]
	if buy.Direction != pricing.SideBuy {
		t.Fatalf("expected buy first, got %s", buy.Direction)
	}
	// mid=100, offset 5bps: maker buys at 99.95 and offloads into the
	// secondary bids at 100.2 for (100.2-99.95)/100*10000 = 25bps gross.
	if buy.MakerPrice.String() != "99.95" {
		t.Fatalf("expected maker price 99.95, got %s", buy.MakerPrice)
	}
	if buy.GrossBps.String() != "25" {
		t.Fatalf("expected 25bps gross, got %s", buy.GrossBps)
	}
	// Crypto maker fee 3bps + oracle 0.10/10000*10000 = 0.1bps.
	if buy.CostBps.String() != "3.1" {
		t.Fatalf("expected 3.1bps cost, got %s", buy.CostBps)
	}
	if !buy.FundingBps.IsZero() {
		t.Fatalf("expected zero funding, got %s", buy.FundingBps)
	}
	if buy.NetBps.String() != "21.9" {
		t.Fatalf("expected 21.9bps net, got %s", buy.NetBps)
	}
	if !buy.Qualified() {
		t.Fatalf("25bps gross must clear threshold %s", buy.Threshold)
	}
	if buy.SuggestedQty.String() != "100" {
		t.Fatalf("expected 100 base for $10000 at mid 100, got %s", buy.SuggestedQty)
	}
}

func TestEvaluateHighLeverageChargesTakerFee(t *testing.T) {
	params := testParams()
	params.Leverage = d("25")
	s := NewScanner(params, nil)
	candidates := s.Evaluate(btcSnapshot())
	if len(candidates) != 2 {
		t.Fatalf("expected both directions, got %d", len(candidates))
	}
	buy := candidates[0]
	// Above 20x the crypto maker rebate is gone: 10bps taker + 0.1 oracle.
	if buy.CostBps.String() != "10.1" {
		t.Fatalf("expected 10.1bps cost at 25x, got %s", buy.CostBps)
	}
	if buy.NetBps.String() != "14.9" {
		t.Fatalf("expected 14.9bps net at 25x, got %s", buy.NetBps)
	}
}

func TestSizeForNotionalClamps(t *testing.T) {
	mid := d("100")
	if got := SizeForNotional(mid, d("10000"), decimal.Zero, decimal.Zero); got.String() != "100" {
		t.Fatalf("unclamped size wrong: %s", got)
	}
	if got := SizeForNotional(mid, d("10000"), decimal.Zero, d("5000")); got.String() != "50" {
		t.Fatalf("max clamp wrong: %s", got)
	}
	if got := SizeForNotional(mid, d("50"), d("200"), decimal.Zero); got.String() != "2" {
		t.Fatalf("min clamp wrong: %s", got)
	}
	if !SizeForNotional(decimal.Zero, d("10000"), decimal.Zero, decimal.Zero).IsZero() {
		t.Fatal("zero mid must yield zero size")
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	s := NewScanner(testParams(), nil)
	first := s.Evaluate(btcSnapshot())
	second := s.Evaluate(btcSnapshot())
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].NetBps.Equal(second[i].NetBps) || !first[i].GrossBps.Equal(second[i].GrossBps) {
			t.Fatalf("recomputation changed figures at %d", i)
		}
	}
}

func TestEvaluateGuards(t *testing.T) {
	s := NewScanner(testParams(), nil)

	snap := btcSnapshot()
	snap.Quote.Mid = decimal.Zero
	if got := s.Evaluate(snap); got != nil {
		t.Fatal("zero mid must skip the symbol")
	}

	snap = btcSnapshot()
	snap.Bids = levels([2]string{"100.2", "10"})
	if got := s.Evaluate(snap); got != nil {
		t.Fatal("thin bid depth must skip the symbol")
	}

	snap = btcSnapshot()
	snap.Bids = nil
	if got := s.Evaluate(snap); got != nil {
		t.Fatal("empty book side must skip the symbol")
	}

	// Bid/ask VWAP gap of ~100bps exceeds the 50bps spread guard.
	snap = btcSnapshot()
	snap.Bids = levels([2]string{"99.5", "200"})
	snap.Asks = levels([2]string{"100.5", "200"})
	if got := s.Evaluate(snap); got != nil {
		t.Fatal("wide spread must skip the symbol")
	}
}

func TestEvaluateDislocationCeiling(t *testing.T) {
	s := NewScanner(testParams(), nil)
	snap := btcSnapshot()
	// Secondary trades 6% above the primary mid: stale data, not edge.
	snap.Bids = levels([2]string{"106", "200"})
	snap.Asks = levels([2]string{"106.1", "200"})
	candidates := s.Evaluate(snap)
	for _, c := range candidates {
		if c.Direction == pricing.SideBuy {
			t.Fatal("buy direction beyond the dislocation ceiling must be discarded")
		}
	}
}

func TestRankOrdersByNetDescending(t *testing.T) {
	candidates := []Candidate{
		{Symbol: "A", NetBps: d("5"), Threshold: d("1")},
		{Symbol: "B", NetBps: d("12"), Threshold: d("1")},
		{Symbol: "C", NetBps: d("-3"), Threshold: d("1")},
	}
	ranking := Rank(candidates)
	if len(ranking.Qualified) != 2 {
		t.Fatalf("expected 2 qualified, got %d", len(ranking.Qualified))
	}
	if ranking.Qualified[0].Symbol != "B" || ranking.Qualified[1].Symbol != "A" {
		t.Fatalf("wrong order: %v", ranking.Qualified)
	}
}

func TestRankFallbackWhenNothingQualifies(t *testing.T) {
	var candidates []Candidate
	for _, net := range []string{"-10", "-2", "-7", "-1", "-20", "-4"} {
		candidates = append(candidates, Candidate{NetBps: d(net), Threshold: d("1")})
	}
	ranking := Rank(candidates)
	if len(ranking.Qualified) != 0 {
		t.Fatal("nothing should qualify")
	}
	if len(ranking.Fallback) != fallbackSize {
		t.Fatalf("expected %d fallback rows, got %d", fallbackSize, len(ranking.Fallback))
	}
	if ranking.Fallback[0].NetBps.String() != "-1" {
		t.Fatalf("fallback must lead with the least-costly candidate, got %s", ranking.Fallback[0].NetBps)
	}
}

func TestCategoryViewsCoverFullRanking(t *testing.T) {
	fees := pricing.DefaultFeeSchedule()
	candidates := []Candidate{
		{Symbol: "BTC", NetBps: d("30"), Threshold: d("1")},
		{Symbol: "ETH", NetBps: d("28"), Threshold: d("1")},
		{Symbol: "SOL", NetBps: d("26"), Threshold: d("1")},
		{Symbol: "BNB", NetBps: d("24"), Threshold: d("1")},
		{Symbol: "ADA", NetBps: d("22"), Threshold: d("1")},
		{Symbol: "TRX", NetBps: d("20"), Threshold: d("1")},
		{Symbol: "EURUSD", NetBps: d("2"), Threshold: d("1")},
	}
	ranking := Rank(candidates)
	if got := ranking.Best(0); len(got) != len(candidates) {
		t.Fatalf("uncapped Best must return every ranked row, got %d", len(got))
	}
	// EURUSD sits outside the overall top 5 but must still lead its view.
	views := Partition(fees, ranking.Best(0), 5)
	if len(views["forex"]) != 1 || views["forex"][0].Symbol != "EURUSD" {
		t.Fatalf("forex view must keep its only candidate, got %v", views["forex"])
	}
	if len(views["crypto"]) != 5 {
		t.Fatalf("crypto view must cap at 5, got %d", len(views["crypto"]))
	}
}

func TestPartitionByCategory(t *testing.T) {
	fees := pricing.DefaultFeeSchedule()
	candidates := []Candidate{
		{Symbol: "BTC"}, {Symbol: "EURUSD"}, {Symbol: "XAU"}, {Symbol: "TSLA"}, {Symbol: "ETH"},
	}
	views := Partition(fees, candidates, 5)
	if len(views["crypto"]) != 2 {
		t.Fatalf("expected 2 crypto rows, got %d", len(views["crypto"]))
	}
	if len(views["forex"]) != 1 {
		t.Fatalf("expected 1 forex row, got %d", len(views["forex"]))
	}
	if len(views["equities_commodities"]) != 2 {
		t.Fatalf("expected 2 equities/commodities rows, got %d", len(views["equities_commodities"]))
	}
}
