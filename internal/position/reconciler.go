// Package position fetches signed per-venue exposure and enforces the
// combined divergence bound that backs the hedge's safety stop.
package position

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Snapshot is one venue's signed base-asset exposure, long positive. Always
// fetched fresh; callers must not cache snapshots across hedge cycles.
type Snapshot struct {
	Venue  string
	Symbol string
	Signed decimal.Decimal
}

type PrimarySource interface {
	PositionSize(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type SecondarySource interface {
	Position(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type Reconciler struct {
	primary   PrimarySource
	secondary SecondarySource
}

func NewReconciler(primary PrimarySource, secondary SecondarySource) *Reconciler {
	return &Reconciler{primary: primary, secondary: secondary}
}

// Fetch reads both venues' signed positions for one symbol.
func (r *Reconciler) Fetch(ctx context.Context, symbol string) (Snapshot, Snapshot, error) {
	primarySize, err := r.primary.PositionSize(ctx, symbol)
	if err != nil {
		return Snapshot{}, Snapshot{}, fmt.Errorf("primary position: %w", err)
	}
	secondarySize, err := r.secondary.Position(ctx, symbol)
	if err != nil {
		return Snapshot{}, Snapshot{}, fmt.Errorf("secondary position: %w", err)
	}
	return Snapshot{Venue: "primary", Symbol: symbol, Signed: primarySize},
		Snapshot{Venue: "secondary", Symbol: symbol, Signed: secondarySize},
		nil
}

// Diverged reports whether combined exposure breaches the hedge bound:
// abs(posA + posB) > 2 * targetQty. A breach is a hard stop for the run.
func Diverged(posA, posB, targetQty decimal.Decimal) bool {
	bound := targetQty.Mul(decimal.NewFromInt(2))
	return posA.Add(posB).Abs().GreaterThan(bound)
}
