// Package hedge runs the two-leg execution state machine: a resting maker
// order on the primary venue offset by an immediate taker order on the
// secondary venue, reconciled against both venues' positions.
package hedge

import (
	"sync"

	"github.com/shopspring/decimal"

	"ol-hedge-bot/internal/pricing"
)

type LegStatus string

const (
	LegPlaced    LegStatus = "PLACED"
	LegFilled    LegStatus = "FILLED"
	LegTimedOut  LegStatus = "TIMED_OUT"
	LegCancelled LegStatus = "CANCELLED"
	LegError     LegStatus = "ERROR"
)

type CycleState string

const (
	StateAwaitingMaker  CycleState = "AWAITING_MAKER"
	StateMakerFilled    CycleState = "MAKER_FILLED"
	StateTakerSubmitted CycleState = "TAKER_SUBMITTED"
	StateReconciled     CycleState = "RECONCILED"
	StateAborted        CycleState = "ABORTED"
)

type Event string

const (
	EventMakerFilled    Event = "MAKER_FILLED"
	EventMakerTimedOut  Event = "MAKER_TIMED_OUT"
	EventMakerCancelled Event = "MAKER_CANCELLED"
	EventTakerSubmitted Event = "TAKER_SUBMITTED"
	EventReconciled     Event = "RECONCILED"
	EventError          Event = "ERROR"
)

// Leg records one side of the hedge. FilledQty is the venue-reported fill,
// never assumed equal to RequestedQty.
type Leg struct {
	Venue        string
	Side         pricing.Side
	RequestedQty decimal.Decimal
	FilledQty    decimal.Decimal
	Price        decimal.Decimal
	Status       LegStatus
}

// Cycle is the unit of work for one directional adjustment. Created per loop
// iteration and discarded once reconciled or aborted.
type Cycle struct {
	mu        sync.Mutex
	Symbol    string
	Direction pricing.Side
	Maker     Leg
	Taker     Leg
	state     CycleState
}

func NewCycle(symbol string, direction pricing.Side) *Cycle {
	return &Cycle{Symbol: symbol, Direction: direction, state: StateAwaitingMaker}
}

func (c *Cycle) State() CycleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Apply advances the cycle through a transition. Invalid events leave the
// state unchanged, mirroring the venue delivering stale notifications.
func (c *Cycle) Apply(event Event) CycleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = nextState(c.state, event)
	return c.state
}

func nextState(current CycleState, event Event) CycleState {
	switch current {
	case StateAwaitingMaker:
		switch event {
		case EventMakerFilled:
			return StateMakerFilled
		case EventMakerTimedOut, EventMakerCancelled, EventError:
			return StateAborted
		}
	case StateMakerFilled:
		switch event {
		case EventTakerSubmitted:
			return StateTakerSubmitted
		case EventError:
			return StateAborted
		}
	case StateTakerSubmitted:
		if event == EventReconciled {
			return StateReconciled
		}
	}
	return current
}

// Done reports whether the cycle reached a terminal state.
func (c *Cycle) Done() bool {
	state := c.State()
	return state == StateReconciled || state == StateAborted
}
