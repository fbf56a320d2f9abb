package hedge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ol-hedge-bot/internal/book"
	"ol-hedge-bot/internal/pricing"
	"ol-hedge-bot/internal/venue"
)

// simPrimary fills every maker order instantly and tracks the signed
// position like a real account would.
type simPrimary struct {
	mu       sync.Mutex
	quote    book.Quote
	position decimal.Decimal
	lastQty  decimal.Decimal
	lastSide pricing.Side
	cycles   int
}

func (s *simPrimary) Quote(ctx context.Context, symbol string) (book.Quote, error) {
	return s.quote, nil
}

func (s *simPrimary) PlaceLimitOrder(ctx context.Context, symbol string, side pricing.Side, qty, price decimal.Decimal) (venue.OrderRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQty = qty
	s.lastSide = side
	s.cycles++
	if side == pricing.SideBuy {
		s.position = s.position.Add(qty)
	} else {
		s.position = s.position.Sub(qty)
	}
	return venue.OrderRef{ID: "order"}, nil
}

func (s *simPrimary) TrackOrder(ctx context.Context, ref venue.OrderRef) (venue.Fill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return venue.Fill{Status: venue.StatusFilled, FilledBase: s.lastQty}, nil
}

func (s *simPrimary) CancelOrder(ctx context.Context, ref venue.OrderRef) error { return nil }

func (s *simPrimary) PositionSize(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, nil
}

func newSimLoop(t *testing.T, primary *simPrimary, secondary *fakeSecondary, maxPosition string) *Loop {
	t.Helper()
	exec := NewExecutor(testConfig(), primary, secondary, nil, zap.NewNop())
	cfg := LoopConfig{
		Symbol:      "BTC",
		OrderQty:    d("1"),
		MaxPosition: d(maxPosition),
		Iterations:  1,
		RetryPause:  time.Millisecond,
	}
	return NewLoop(cfg, exec, primary, nil, zap.NewNop())
}

func TestLoopAlternatesPhasesToPositionCap(t *testing.T) {
	quote := book.Quote{Symbol: "BTC", Bid: d("99.9"), Ask: d("100.1"), Mid: d("100")}
	primary := &simPrimary{quote: quote}
	secondary := &fakeSecondary{quote: quote, moveOnSub: true}

	loop := newSimLoop(t, primary, secondary, "2")
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Buy phase: 0 -> 2 (two cycles). Sell phase: 2 -> -2 (four cycles).
	if primary.cycles != 6 {
		t.Fatalf("expected 6 cycles, got %d", primary.cycles)
	}
	if !primary.position.Equal(d("-2")) {
		t.Fatalf("expected primary position -2 after sell phase, got %s", primary.position)
	}
	// Every maker leg was offset, so the book ends flat.
	if !primary.position.Add(secondary.position).IsZero() {
		t.Fatalf("combined exposure should be flat, got %s", primary.position.Add(secondary.position))
	}
	if loop.Stopped() {
		t.Fatal("divergence stop must not fire on a clean run")
	}
}

func TestLoopStopsOnDivergence(t *testing.T) {
	quote := book.Quote{Symbol: "BTC", Bid: d("99.9"), Ask: d("100.1"), Mid: d("100")}
	primary := &simPrimary{quote: quote}
	// Taker orders accepted but never reflected in the position, so exposure
	// accumulates until the guard fires.
	secondary := &fakeSecondary{quote: quote, moveOnSub: false}

	// Cap of 3 lets unhedged exposure build past the 2 * targetQty bound.
	loop := newSimLoop(t, primary, secondary, "3")
	err := loop.Run(context.Background())
	if !errors.Is(err, ErrDivergence) {
		t.Fatalf("expected ErrDivergence, got %v", err)
	}
	if !loop.Stopped() {
		t.Fatal("stop flag must be set after divergence")
	}
	if primary.cycles != 3 {
		t.Fatalf("guard should fire on the third unhedged cycle, got %d", primary.cycles)
	}
}

func TestLoopHonorsShutdownSignal(t *testing.T) {
	quote := book.Quote{Symbol: "BTC", Bid: d("99.9"), Ask: d("100.1"), Mid: d("100")}
	primary := &simPrimary{quote: quote}
	secondary := &fakeSecondary{quote: quote, moveOnSub: true}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop := newSimLoop(t, primary, secondary, "2")
	if err := loop.Run(ctx); err != nil {
		t.Fatalf("cancelled run should finish quietly, got %v", err)
	}
	if primary.cycles != 0 {
		t.Fatalf("no cycles should run after shutdown, got %d", primary.cycles)
	}
}
