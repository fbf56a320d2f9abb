// Package scan evaluates cross-venue dislocations into ranked arbitrage
// candidates: maker price on the primary venue against a VWAP-derived
// executable price on the secondary venue, netted for fees, oracle cost and
// funding.
package scan

import (
	"sort"

	"github.com/shopspring/decimal"

	"ol-hedge-bot/internal/book"
	"ol-hedge-bot/internal/pricing"
)

// Candidate is one direction of one symbol for one scan cycle. Recomputed
// every cycle, never mutated.
type Candidate struct {
	Symbol     string
	Direction  pricing.Side
	MakerPrice decimal.Decimal
	TakerPrice decimal.Decimal
	GrossBps   decimal.Decimal
	CostBps    decimal.Decimal
	FundingBps decimal.Decimal
	NetBps     decimal.Decimal
	DepthBid   decimal.Decimal
	DepthAsk   decimal.Decimal
	Threshold  decimal.Decimal
	// SuggestedQty is the base size for the scan notional at the primary mid,
	// clamped to the venue notional bounds.
	SuggestedQty decimal.Decimal
}

// Qualified reports whether the candidate clears its dynamic threshold.
func (c Candidate) Qualified() bool {
	return c.NetBps.GreaterThanOrEqual(c.Threshold)
}

type Params struct {
	NotionalUSD       decimal.Decimal
	Leverage          decimal.Decimal
	MinNotionalUSD    decimal.Decimal
	MaxNotionalUSD    decimal.Decimal
	DepthQuoteUSD     decimal.Decimal
	MinDepthQuoteUSD  decimal.Decimal
	OffsetBps         decimal.Decimal
	OracleFeeUSD      decimal.Decimal
	BufferBps         decimal.Decimal
	MinNetBps         decimal.Decimal
	SpreadWeight      decimal.Decimal
	MaxSpreadBps      decimal.Decimal
	MaxDislocationBps decimal.Decimal
}

// Snapshot is the market data for one symbol in one cycle: the primary
// venue's quote and the secondary venue's depth, plus the funding rate over
// the configured horizon.
type Snapshot struct {
	Symbol     string
	Quote      book.Quote
	Bids       []book.Level
	Asks       []book.Level
	FundingBps decimal.Decimal
}

type Scanner struct {
	params Params
	fees   *pricing.FeeSchedule
}

func NewScanner(params Params, fees *pricing.FeeSchedule) *Scanner {
	if fees == nil {
		fees = pricing.DefaultFeeSchedule()
	}
	return &Scanner{params: params, fees: fees}
}

// Maker pricing on the primary venue is only offered up to 20x leverage;
// above that every fill pays the taker rate.
var makerMaxLeverage = decimal.NewFromInt(20)

// Evaluate scores both directions for one symbol. A nil result means the
// symbol was skipped by a liquidity, spread or sanity guard.
func (s *Scanner) Evaluate(snap Snapshot) []Candidate {
	if snap.Quote.Mid.Sign() <= 0 {
		return nil
	}
	vwapBid := book.VWAP(snap.Bids, s.params.DepthQuoteUSD)
	vwapAsk := book.VWAP(snap.Asks, s.params.DepthQuoteUSD)
	if vwapBid.Price.Sign() <= 0 || vwapAsk.Price.Sign() <= 0 {
		return nil
	}
	if vwapBid.FilledQuote.LessThan(s.params.MinDepthQuoteUSD) ||
		vwapAsk.FilledQuote.LessThan(s.params.MinDepthQuoteUSD) {
		return nil
	}
	spread := book.SpreadBps(vwapBid.Price, vwapAsk.Price)
	if spread.GreaterThan(s.params.MaxSpreadBps) {
		return nil
	}
	threshold := s.params.MinNetBps.Add(spread.Mul(s.params.SpreadWeight))
	suggested := SizeForNotional(snap.Quote.Mid, s.params.NotionalUSD, s.params.MinNotionalUSD, s.params.MaxNotionalUSD)
	maker := !s.params.Leverage.GreaterThan(makerMaxLeverage)

	var out []Candidate
	for _, direction := range []pricing.Side{pricing.SideBuy, pricing.SideSell} {
		makerPrice := pricing.LimitPrice(direction, snap.Quote.Bid, snap.Quote.Ask, snap.Quote.Mid, s.params.OffsetBps)
		// A primary buy is offset by selling into the secondary bids, a
		// primary sell by buying from the asks.
		takerPrice := vwapBid.Price
		if direction == pricing.SideSell {
			takerPrice = vwapAsk.Price
		}
		gross := pricing.GrossBps(direction, makerPrice, takerPrice, snap.Quote.Mid)
		if gross.Abs().GreaterThan(s.params.MaxDislocationBps) {
			continue
		}
		fee := s.fees.FeeBps(snap.Symbol, maker)
		oracle := pricing.OracleFeeBps(s.params.OracleFeeUSD, s.params.NotionalUSD)
		cost := pricing.CostBps(fee, oracle, s.params.BufferBps)
		funding := pricing.SignedFundingBps(direction, snap.FundingBps)
		net := pricing.NetBps(gross, cost, funding)
		out = append(out, Candidate{
			Symbol:       snap.Symbol,
			Direction:    direction,
			MakerPrice:   makerPrice,
			TakerPrice:   takerPrice,
			GrossBps:     gross,
			CostBps:      cost,
			FundingBps:   funding,
			NetBps:       net,
			DepthBid:     vwapBid.FilledQuote,
			DepthAsk:     vwapAsk.FilledQuote,
			Threshold:    threshold,
			SuggestedQty: suggested,
		})
	}
	return out
}

// SizeForNotional converts a quote notional into a base quantity at the mid
// price, clamping the notional to the configured bounds first. Zero bounds
// leave the notional unclamped; a non-positive mid yields zero.
func SizeForNotional(mid, notionalUSD, minUSD, maxUSD decimal.Decimal) decimal.Decimal {
	if mid.Sign() <= 0 {
		return decimal.Zero
	}
	notional := notionalUSD
	if maxUSD.Sign() > 0 && notional.GreaterThan(maxUSD) {
		notional = maxUSD
	}
	if minUSD.Sign() > 0 && notional.LessThan(minUSD) {
		notional = minUSD
	}
	if notional.Sign() <= 0 {
		return decimal.Zero
	}
	return notional.Div(mid)
}

const fallbackSize = 5

// Ranking is one scan cycle's output: qualified candidates by net edge, or
// the least-costly few for visibility when nothing qualifies.
type Ranking struct {
	Qualified []Candidate
	Fallback  []Candidate
}

// Rank sorts candidates by net bps descending and splits off the qualified
// set. Dislocation and liquidity guards have already run in Evaluate.
func Rank(candidates []Candidate) Ranking {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].NetBps.GreaterThan(sorted[j].NetBps)
	})
	var qualified []Candidate
	for _, c := range sorted {
		if c.Qualified() {
			qualified = append(qualified, c)
		}
	}
	if len(qualified) > 0 {
		return Ranking{Qualified: qualified}
	}
	n := fallbackSize
	if n > len(sorted) {
		n = len(sorted)
	}
	return Ranking{Fallback: sorted[:n]}
}

// Best returns the ranked list regardless of qualification, capped at n.
// A non-positive n leaves the list uncapped.
func (r Ranking) Best(n int) []Candidate {
	list := r.Qualified
	if len(list) == 0 {
		list = r.Fallback
	}
	if n > 0 && len(list) > n {
		list = list[:n]
	}
	return list
}

// Partition groups candidates into category views: forex, equities and
// commodities, crypto. Each view keeps its net-bps ordering.
func Partition(fees *pricing.FeeSchedule, candidates []Candidate, topN int) map[string][]Candidate {
	views := map[string][]Candidate{}
	for _, c := range candidates {
		var key string
		switch fees.Category(c.Symbol) {
		case pricing.CategoryForex:
			key = "forex"
		case pricing.CategoryEquity, pricing.CategoryIndex, pricing.CategoryMetal:
			key = "equities_commodities"
		case pricing.CategoryCrypto:
			key = "crypto"
		default:
			key = "other"
		}
		if len(views[key]) < topN {
			views[key] = append(views[key], c)
		}
	}
	return views
}
