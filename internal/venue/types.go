// Package venue holds the order types shared by the exchange clients and the
// hedge executor.
package venue

import "github.com/shopspring/decimal"

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
)

// OrderRef identifies a resting order. Ostium addresses orders by pair index
// and per-pair order index, other venues by opaque id.
type OrderRef struct {
	ID        string
	PairIndex int
	Index     int
}

// Fill is a venue-reported order state. Venues that report notional instead
// of base size leave FilledBase zero and set OpenPrice.
type Fill struct {
	Status         OrderStatus
	FilledBase     decimal.Decimal
	FilledNotional decimal.Decimal
	OpenPrice      decimal.Decimal
}

// BaseQuantity returns the filled size in base units, deriving it from
// notional and open price when the venue omits the base figure.
func (f Fill) BaseQuantity() decimal.Decimal {
	if f.FilledBase.Sign() > 0 {
		return f.FilledBase
	}
	if f.FilledNotional.Sign() > 0 && f.OpenPrice.Sign() > 0 {
		return f.FilledNotional.Div(f.OpenPrice)
	}
	return decimal.Zero
}
