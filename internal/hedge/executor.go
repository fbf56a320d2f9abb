package hedge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ol-hedge-bot/internal/book"
	"ol-hedge-bot/internal/metrics"
	"ol-hedge-bot/internal/position"
	"ol-hedge-bot/internal/pricing"
	"ol-hedge-bot/internal/venue"
)

// ErrDivergence is returned when combined signed exposure across both venues
// breaches the hedge bound. It is fatal for the run, not for the cycle.
var ErrDivergence = errors.New("combined exposure exceeds divergence bound")

// PrimaryVenue is the maker side. Orders rest on the book at a limit price.
type PrimaryVenue interface {
	Quote(ctx context.Context, symbol string) (book.Quote, error)
	PlaceLimitOrder(ctx context.Context, symbol string, side pricing.Side, qty, price decimal.Decimal) (venue.OrderRef, error)
	TrackOrder(ctx context.Context, ref venue.OrderRef) (venue.Fill, error)
	CancelOrder(ctx context.Context, ref venue.OrderRef) error
	PositionSize(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// SecondaryVenue is the taker side. Orders cross the spread immediately.
type SecondaryVenue interface {
	Quote(ctx context.Context, symbol string) (book.Quote, error)
	SubmitOrder(ctx context.Context, symbol string, side pricing.Side, qty, price decimal.Decimal) error
	Position(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Guard margins push the taker price slightly through the touch so the order
// executes immediately instead of resting.
var (
	guardAbove = decimal.RequireFromString("1.002")
	guardBelow = decimal.RequireFromString("0.998")
)

type ExecutorConfig struct {
	Symbol           string
	OffsetBps        decimal.Decimal
	FillAttempts     int
	PollInterval     time.Duration
	ReconcileTimeout time.Duration
	ReconcilePoll    time.Duration
}

type Executor struct {
	cfg       ExecutorConfig
	primary   PrimaryVenue
	secondary SecondaryVenue
	positions *position.Reconciler
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewExecutor(cfg ExecutorConfig, primary PrimaryVenue, secondary SecondaryVenue, m *metrics.Metrics, log *zap.Logger) *Executor {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Executor{
		cfg:       cfg,
		primary:   primary,
		secondary: secondary,
		positions: position.NewReconciler(primary, secondary),
		metrics:   m,
		log:       log,
	}
}

// RunCycle drives one hedge cycle end to end: maker leg, taker leg sized to
// the actual maker fill, then reconciliation. A maker timeout aborts the
// cycle without error; ErrDivergence aborts the whole run.
func (e *Executor) RunCycle(ctx context.Context, direction pricing.Side, targetQty decimal.Decimal) (*Cycle, error) {
	cycle := NewCycle(e.cfg.Symbol, direction)

	fill, ref, err := e.runMakerLeg(ctx, cycle, direction, targetQty)
	if err != nil {
		return cycle, err
	}
	if err := e.checkDivergence(ctx, targetQty); err != nil {
		return cycle, err
	}
	if cycle.State() == StateAborted {
		e.metrics.CyclesAborted.Inc()
		return cycle, nil
	}

	filledQty := fill.BaseQuantity()
	if filledQty.Sign() <= 0 {
		e.log.Error("maker fill reported zero quantity, aborting cycle",
			zap.String("symbol", e.cfg.Symbol), zap.String("order", ref.ID))
		cycle.Maker.Status = LegError
		cycle.Apply(EventError)
		e.metrics.CyclesAborted.Inc()
		return cycle, nil
	}
	cycle.Maker.FilledQty = filledQty
	cycle.Maker.Status = LegFilled
	cycle.Apply(EventMakerFilled)
	e.log.Info("maker leg filled",
		zap.String("symbol", e.cfg.Symbol),
		zap.String("side", string(direction)),
		zap.String("requested", targetQty.String()),
		zap.String("filled", filledQty.String()))

	if err := e.runTakerLeg(ctx, cycle, filledQty); err != nil {
		return cycle, err
	}
	if err := e.checkDivergence(ctx, targetQty); err != nil {
		return cycle, err
	}
	if cycle.State() == StateReconciled {
		e.metrics.CyclesCompleted.Inc()
	}
	return cycle, nil
}

func (e *Executor) runMakerLeg(ctx context.Context, cycle *Cycle, direction pricing.Side, qty decimal.Decimal) (venue.Fill, venue.OrderRef, error) {
	quote, err := e.primary.Quote(ctx, e.cfg.Symbol)
	if err != nil {
		cycle.Apply(EventError)
		return venue.Fill{}, venue.OrderRef{}, fmt.Errorf("primary quote: %w", err)
	}
	price := pricing.LimitPrice(direction, quote.Bid, quote.Ask, quote.Mid, e.cfg.OffsetBps)

	ref, err := e.primary.PlaceLimitOrder(ctx, e.cfg.Symbol, direction, qty, price)
	if err != nil {
		e.metrics.OrdersFailed.Inc()
		cycle.Maker.Status = LegError
		cycle.Apply(EventError)
		return venue.Fill{}, venue.OrderRef{}, fmt.Errorf("place maker order: %w", err)
	}
	e.metrics.OrdersPlaced.Inc()
	cycle.Maker = Leg{
		Venue:        "ostium",
		Side:         direction,
		RequestedQty: qty,
		Price:        price,
		Status:       LegPlaced,
	}
	e.log.Info("maker order placed",
		zap.String("symbol", e.cfg.Symbol),
		zap.String("side", string(direction)),
		zap.String("qty", qty.String()),
		zap.String("price", price.String()),
		zap.String("order", ref.ID))

	fill, err := e.pollMakerFill(ctx, ref)
	if err != nil {
		return venue.Fill{}, ref, err
	}
	switch fill.Status {
	case venue.StatusFilled:
		return fill, ref, nil
	case venue.StatusCancelled:
		cycle.Maker.Status = LegCancelled
		cycle.Apply(EventMakerCancelled)
		e.log.Warn("maker order cancelled by venue", zap.String("order", ref.ID))
		return venue.Fill{}, ref, nil
	default:
		if err := e.primary.CancelOrder(ctx, ref); err != nil {
			e.log.Warn("cancel after timeout failed", zap.String("order", ref.ID), zap.Error(err))
		}
		cycle.Maker.Status = LegTimedOut
		cycle.Apply(EventMakerTimedOut)
		e.log.Warn("maker order timed out, cycle aborted",
			zap.String("symbol", e.cfg.Symbol), zap.String("order", ref.ID))
		return venue.Fill{}, ref, nil
	}
}

func (e *Executor) pollMakerFill(ctx context.Context, ref venue.OrderRef) (venue.Fill, error) {
	var last venue.Fill
	for attempt := 0; attempt < e.cfg.FillAttempts; attempt++ {
		fill, err := e.primary.TrackOrder(ctx, ref)
		if err != nil {
			e.log.Warn("order status poll failed", zap.String("order", ref.ID), zap.Error(err))
		} else {
			last = fill
			if fill.Status != venue.StatusPending {
				return fill, nil
			}
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(e.cfg.PollInterval):
		}
	}
	return last, nil
}

func (e *Executor) runTakerLeg(ctx context.Context, cycle *Cycle, qty decimal.Decimal) error {
	side := cycle.Direction.Opposite()
	quote, err := e.secondary.Quote(ctx, e.cfg.Symbol)
	if err != nil {
		cycle.Apply(EventError)
		return fmt.Errorf("secondary quote: %w", err)
	}
	var price decimal.Decimal
	if side == pricing.SideBuy {
		price = quote.AskOrMid().Mul(guardAbove)
	} else {
		price = quote.BidOrMid().Mul(guardBelow)
	}

	before, err := e.secondary.Position(ctx, e.cfg.Symbol)
	if err != nil {
		cycle.Apply(EventError)
		return fmt.Errorf("secondary position: %w", err)
	}

	if err := e.secondary.SubmitOrder(ctx, e.cfg.Symbol, side, qty, price); err != nil {
		e.metrics.OrdersFailed.Inc()
		cycle.Taker.Status = LegError
		cycle.Apply(EventError)
		return fmt.Errorf("submit taker order: %w", err)
	}
	e.metrics.OrdersPlaced.Inc()
	cycle.Taker = Leg{
		Venue:        "lighter",
		Side:         side,
		RequestedQty: qty,
		Price:        price,
		Status:       LegPlaced,
	}
	cycle.Apply(EventTakerSubmitted)
	e.log.Info("taker order submitted",
		zap.String("symbol", e.cfg.Symbol),
		zap.String("side", string(side)),
		zap.String("qty", qty.String()),
		zap.String("price", price.String()))

	e.reconcileTaker(ctx, cycle, before, side, qty)
	return nil
}

// reconcileTaker waits for the secondary position to move by the submitted
// quantity in the expected direction. A timeout is logged but does not roll
// back; the residual is left for the divergence guard.
func (e *Executor) reconcileTaker(ctx context.Context, cycle *Cycle, before decimal.Decimal, side pricing.Side, qty decimal.Decimal) {
	deadline := time.Now().Add(e.cfg.ReconcileTimeout)
	for time.Now().Before(deadline) {
		current, err := e.secondary.Position(ctx, e.cfg.Symbol)
		if err != nil {
			e.log.Warn("reconcile position poll failed", zap.Error(err))
		} else {
			delta := current.Sub(before)
			if side == pricing.SideSell {
				delta = delta.Neg()
			}
			if delta.GreaterThanOrEqual(qty) {
				cycle.Taker.FilledQty = qty
				cycle.Taker.Status = LegFilled
				cycle.Apply(EventReconciled)
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.cfg.ReconcilePoll):
		}
	}
	e.log.Warn("taker leg not reflected in position before deadline, residual left for divergence guard",
		zap.String("symbol", e.cfg.Symbol),
		zap.String("qty", qty.String()))
	cycle.Apply(EventReconciled)
}

// checkDivergence recomputes both venues' signed exposure and fails the run
// when the combined bound is breached. An unavailable position is a warning,
// not a stop; the next check sees the same residual.
func (e *Executor) checkDivergence(ctx context.Context, targetQty decimal.Decimal) error {
	primaryPos, secondaryPos, err := e.positions.Fetch(ctx, e.cfg.Symbol)
	if err != nil {
		e.log.Warn("divergence check skipped", zap.Error(err))
		return nil
	}
	if position.Diverged(primaryPos.Signed, secondaryPos.Signed, targetQty) {
		e.metrics.DivergenceStops.Inc()
		e.log.Error("divergence bound breached",
			zap.String("symbol", e.cfg.Symbol),
			zap.String("primary", primaryPos.Signed.String()),
			zap.String("secondary", secondaryPos.Signed.String()),
			zap.String("target_qty", targetQty.String()))
		return ErrDivergence
	}
	return nil
}
