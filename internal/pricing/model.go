package pricing

import "github.com/shopspring/decimal"

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

var tenThousand = decimal.NewFromInt(10000)

// LimitPrice computes the maker limit price from an offset: buys rest below
// the reference (best bid, else mid), sells above (best ask, else mid).
func LimitPrice(side Side, bid, ask, mid decimal.Decimal, offsetBps decimal.Decimal) decimal.Decimal {
	offset := offsetBps.Div(tenThousand)
	if side == SideBuy {
		base := mid
		if bid.Sign() > 0 {
			base = bid
		}
		return base.Mul(decimal.NewFromInt(1).Sub(offset))
	}
	base := mid
	if ask.Sign() > 0 {
		base = ask
	}
	return base.Mul(decimal.NewFromInt(1).Add(offset))
}

// OracleFeeBps amortizes a fixed per-trade USD oracle fee over the trade
// notional. Non-positive notional yields zero rather than a division error.
func OracleFeeBps(fixedFeeUSD, notionalUSD decimal.Decimal) decimal.Decimal {
	if notionalUSD.Sign() <= 0 {
		return decimal.Zero
	}
	return fixedFeeUSD.Div(notionalUSD).Mul(tenThousand)
}

// SignedFundingBps applies direction to a funding rate: a long position pays
// positive funding, a short receives it.
func SignedFundingBps(side Side, fundingBps decimal.Decimal) decimal.Decimal {
	if side == SideBuy {
		return fundingBps
	}
	return fundingBps.Neg()
}

// GrossBps is the executable price gap between the maker price on the primary
// venue and the taker price on the secondary venue, normalized by mid.
func GrossBps(side Side, makerPrice, takerPrice, mid decimal.Decimal) decimal.Decimal {
	if mid.Sign() <= 0 {
		return decimal.Zero
	}
	if side == SideBuy {
		return takerPrice.Sub(makerPrice).Div(mid).Mul(tenThousand)
	}
	return makerPrice.Sub(takerPrice).Div(mid).Mul(tenThousand)
}

// CostBps is the non-funding cost stack: venue fee, amortized oracle fee and
// a configurable safety buffer.
func CostBps(feeBps, oracleFeeBps, bufferBps decimal.Decimal) decimal.Decimal {
	return feeBps.Add(oracleFeeBps).Add(bufferBps)
}

// NetBps is the expected edge after all costs and directional funding.
func NetBps(grossBps, costBps, signedFundingBps decimal.Decimal) decimal.Decimal {
	return grossBps.Sub(costBps).Sub(signedFundingBps)
}
