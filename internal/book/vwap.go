package book

import "github.com/shopspring/decimal"

// VWAPResult reports the average fill price reachable for a target quote
// notional. FilledQuote below the target means the book side ran out of
// depth; callers treat that as insufficient liquidity.
type VWAPResult struct {
	Price       decimal.Decimal
	FilledBase  decimal.Decimal
	FilledQuote decimal.Decimal
}

// VWAP walks levels from best price outward, accumulating size and notional,
// and stops at the level whose cumulative notional first reaches targetQuote
// (that level is consumed whole, no splitting). This mirrors how a taker
// order sized to a dollar amount would fill, not a strict size-bounded VWAP.
// Empty or all-invalid input yields a zero result.
func VWAP(levels []Level, targetQuote decimal.Decimal) VWAPResult {
	var base, quote decimal.Decimal
	for _, level := range levels {
		notional := level.Price.Mul(level.Size)
		base = base.Add(level.Size)
		quote = quote.Add(notional)
		if quote.GreaterThanOrEqual(targetQuote) {
			break
		}
	}
	if base.Sign() <= 0 {
		return VWAPResult{}
	}
	return VWAPResult{
		Price:       quote.Div(base),
		FilledBase:  base,
		FilledQuote: quote,
	}
}

// SpreadBps is the realized bid/ask VWAP spread relative to the bid side.
// Zero when either side is missing.
func SpreadBps(vwapBid, vwapAsk decimal.Decimal) decimal.Decimal {
	if vwapBid.Sign() <= 0 || vwapAsk.Sign() <= 0 {
		return decimal.Zero
	}
	return vwapAsk.Sub(vwapBid).Div(vwapBid).Mul(decimal.NewFromInt(10000))
}
