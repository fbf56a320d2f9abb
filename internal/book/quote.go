package book

import "github.com/shopspring/decimal"

// Quote is a one-venue price snapshot. Bid and Ask may be absent (zero); Mid
// is the authoritative fair value.
type Quote struct {
	Symbol string
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	Mid    decimal.Decimal
}

// BidOrMid falls back to mid when the venue did not publish a bid.
func (q Quote) BidOrMid() decimal.Decimal {
	if q.Bid.Sign() > 0 {
		return q.Bid
	}
	return q.Mid
}

// AskOrMid falls back to mid when the venue did not publish an ask.
func (q Quote) AskOrMid() decimal.Decimal {
	if q.Ask.Sign() > 0 {
		return q.Ask
	}
	return q.Mid
}

// ParseQuote builds a Quote from a keyed price payload. Absent bid/ask fall
// back to mid, matching the feed contract.
func ParseQuote(symbol string, raw map[string]any) Quote {
	mid := decimalFromMap(raw, "mid", "price")
	bid := decimalFromMap(raw, "bid")
	ask := decimalFromMap(raw, "ask")
	if bid.Sign() <= 0 {
		bid = decimal.Zero
	}
	if ask.Sign() <= 0 {
		ask = decimal.Zero
	}
	return Quote{Symbol: symbol, Bid: bid, Ask: ask, Mid: mid}
}
