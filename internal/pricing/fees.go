// Package pricing holds the maker price model and the per-trade cost model:
// venue fees by symbol category, fixed oracle fee amortized over notional,
// and directional funding.
package pricing

import "github.com/shopspring/decimal"

type Category string

const (
	CategoryCrypto Category = "crypto"
	CategoryMetal  Category = "metal"
	CategoryForex  Category = "forex"
	CategoryIndex  Category = "index"
	CategoryEquity Category = "equity"
	CategoryOther  Category = "other"
)

// FeeSchedule maps symbols to maker/taker fees in basis points by category.
// XAG carries a higher taker fee than XAU, so the metal category is keyed per
// symbol.
type FeeSchedule struct {
	crypto map[string]struct{}
	metal  map[string]struct{}
	forex  map[string]struct{}
	index  map[string]struct{}
	equity map[string]struct{}
}

func DefaultFeeSchedule() *FeeSchedule {
	return &FeeSchedule{
		crypto: symbolSet("BTC", "ETH", "SOL", "BNB", "ADA", "TRX", "XRP", "LINK", "HYPE"),
		metal:  symbolSet("XAU", "XAG"),
		forex:  symbolSet("AUDUSD", "EURUSD", "GBPUSD", "NZDUSD", "USDCAD", "USDCHF", "USDJPY"),
		index:  symbolSet("SPX"),
		equity: symbolSet("AAPL", "AMZN", "BMNR", "COIN", "CRCL", "HOOD", "META", "MSFT", "MSTR", "NVDA", "PLTR", "TSLA"),
	}
}

func symbolSet(symbols ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return set
}

func (f *FeeSchedule) Category(symbol string) Category {
	switch {
	case contains(f.crypto, symbol):
		return CategoryCrypto
	case contains(f.metal, symbol):
		return CategoryMetal
	case contains(f.forex, symbol):
		return CategoryForex
	case contains(f.index, symbol):
		return CategoryIndex
	case contains(f.equity, symbol):
		return CategoryEquity
	default:
		return CategoryOther
	}
}

// FeeBps returns the trading fee in basis points for a symbol. Maker pricing
// is only available for crypto; every other category pays the flat rate
// regardless of side.
func (f *FeeSchedule) FeeBps(symbol string, maker bool) decimal.Decimal {
	switch f.Category(symbol) {
	case CategoryCrypto:
		if maker {
			return decimal.NewFromInt(3)
		}
		return decimal.NewFromInt(10)
	case CategoryMetal:
		if symbol == "XAU" {
			return decimal.NewFromInt(3)
		}
		return decimal.NewFromInt(15)
	case CategoryForex:
		return decimal.NewFromInt(3)
	case CategoryIndex:
		return decimal.NewFromInt(5)
	default:
		return decimal.NewFromInt(5)
	}
}

func contains(set map[string]struct{}, symbol string) bool {
	_, ok := set[symbol]
	return ok
}
