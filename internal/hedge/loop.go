package hedge

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ol-hedge-bot/internal/pricing"
)

type LoopConfig struct {
	Symbol      string
	OrderQty    decimal.Decimal
	MaxPosition decimal.Decimal
	Iterations  int
	PhasePause  time.Duration
	RetryPause  time.Duration
}

// CycleSink receives every finished cycle, successful or not. It must not
// block.
type CycleSink interface {
	RecordCycle(cycle *Cycle)
}

// Loop alternates buy and sell phases against the primary venue's position
// cap. It owns the process-wide stop flag set by the divergence guard.
type Loop struct {
	cfg      LoopConfig
	executor *Executor
	primary  PrimaryVenue
	sink     CycleSink
	log      *zap.Logger

	stopped atomic.Bool
}

func NewLoop(cfg LoopConfig, executor *Executor, primary PrimaryVenue, sink CycleSink, log *zap.Logger) *Loop {
	if cfg.RetryPause == 0 {
		cfg.RetryPause = 2 * time.Second
	}
	return &Loop{cfg: cfg, executor: executor, primary: primary, sink: sink, log: log}
}

// Stopped reports whether the divergence guard terminated the run.
func (l *Loop) Stopped() bool {
	return l.stopped.Load()
}

// Run executes the configured number of buy/sell rounds. It returns nil on
// normal completion or shutdown, ErrDivergence when the guard fired.
func (l *Loop) Run(ctx context.Context) error {
	for i := 0; l.cfg.Iterations <= 0 || i < l.cfg.Iterations; i++ {
		l.log.Info("starting rebalance round", zap.Int("round", i+1))
		if err := l.runPhase(ctx, phaseBuy); err != nil {
			return l.finish(err)
		}
		if err := l.pause(ctx); err != nil {
			return nil
		}
		if err := l.runPhase(ctx, phaseSell); err != nil {
			return l.finish(err)
		}
		if err := l.pause(ctx); err != nil {
			return nil
		}
	}
	return nil
}

type phase int

const (
	phaseBuy phase = iota
	phaseSell
)

func (l *Loop) runPhase(ctx context.Context, p phase) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pos, err := l.primary.PositionSize(ctx, l.cfg.Symbol)
		if err != nil {
			l.log.Warn("position fetch failed, retrying", zap.Error(err))
			if err := l.sleep(ctx, l.cfg.RetryPause); err != nil {
				return err
			}
			continue
		}
		if p == phaseBuy && pos.GreaterThanOrEqual(l.cfg.MaxPosition) {
			return nil
		}
		if p == phaseSell && pos.LessThanOrEqual(l.cfg.MaxPosition.Neg()) {
			return nil
		}
		direction := pricing.SideBuy
		if p == phaseSell {
			direction = pricing.SideSell
		}
		cycle, err := l.executor.RunCycle(ctx, direction, l.cfg.OrderQty)
		if l.sink != nil && cycle != nil {
			l.sink.RecordCycle(cycle)
		}
		switch {
		case errors.Is(err, ErrDivergence):
			return err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case err != nil:
			l.log.Warn("hedge cycle failed, continuing",
				zap.String("state", string(cycle.State())), zap.Error(err))
			if err := l.sleep(ctx, l.cfg.RetryPause); err != nil {
				return err
			}
		default:
			l.log.Info("hedge cycle finished", zap.String("state", string(cycle.State())))
		}
	}
}

func (l *Loop) finish(err error) error {
	if errors.Is(err, ErrDivergence) {
		l.stopped.Store(true)
		return err
	}
	return nil
}

func (l *Loop) pause(ctx context.Context) error {
	if l.cfg.PhasePause <= 0 {
		return ctx.Err()
	}
	return l.sleep(ctx, l.cfg.PhasePause)
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
