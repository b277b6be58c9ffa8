package engine

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/quantfold/smacross/internal/types"
)

// Session bundles everything the assembler inspects for one step: the edge
// flags, the fill prices and the lagged policy inputs.
type Session struct {
	Time      time.Time
	EntryOpen float64
	ExitSide  types.Candle
	Entry     bool
	Exit      bool
	Policy    SessionContext
}

// TradeAssembler folds time-ordered sessions into completed trades. It is
// the only stateful piece of the engine; its state is local to one run.
type TradeAssembler struct {
	direction types.Direction
	exitField types.PriceField
	policy    StopPolicy

	inPosition  bool
	entryTime   time.Time
	entryPrice  float64
	stopAtEntry optional.Option[float64]
	stop        optional.Option[float64]
	trades      []types.Trade
}

// NewTradeAssembler creates an assembler in the Flat state.
func NewTradeAssembler(direction types.Direction, exitField types.PriceField, policy StopPolicy) *TradeAssembler {
	return &TradeAssembler{
		direction:   direction,
		exitField:   exitField,
		policy:      policy,
		inPosition:  false,
		entryTime:   time.Time{},
		entryPrice:  0,
		stopAtEntry: optional.None[float64](),
		stop:        optional.None[float64](),
		trades:      nil,
	}
}

// Step advances the state machine by one session. Sessions must arrive in
// time order.
func (a *TradeAssembler) Step(session Session) {
	if !a.inPosition {
		if session.Entry {
			a.enter(session)
		}

		return
	}

	// Recompute the stop for this session before any exit test so a breach
	// is judged against the freshest level.
	a.stop = a.policy.OnSession(session.Policy, a.stop)

	// A stop-loss breach takes precedence over a simultaneous system exit.
	if level, breached := a.breachedLevel(session.ExitSide); breached {
		a.exit(session.Time, level, types.ExitReasonStopLoss)

		return
	}

	if session.Exit {
		a.exit(session.Time, a.exitField.Of(session.ExitSide), types.ExitReasonSystem)
	}
}

// Trades returns the completed round-trips in entry order. An open position
// at series end is dropped, never emitted as a partial trade.
func (a *TradeAssembler) Trades() []types.Trade {
	return a.trades
}

func (a *TradeAssembler) enter(session Session) {
	a.inPosition = true
	a.entryTime = session.Time
	a.entryPrice = session.EntryOpen
	a.stop = a.policy.OnEntry(session.Policy)
	a.stopAtEntry = a.stop
}

func (a *TradeAssembler) exit(at time.Time, price float64, reason types.ExitReason) {
	a.trades = append(a.trades, types.Trade{
		EntryTime:  a.entryTime,
		EntryPrice: a.entryPrice,
		ExitTime:   at,
		ExitPrice:  price,
		ExitReason: reason,
		StopLoss:   a.stopAtEntry,
	})

	a.inPosition = false
	a.stop = optional.None[float64]()
	a.stopAtEntry = optional.None[float64]()
}

// breachedLevel tests the exit-side extremes against the active stop. A buy
// breaches when the session low trades under the level, a sell when the high
// trades over it. No active stop means no breach.
func (a *TradeAssembler) breachedLevel(exitSide types.Candle) (float64, bool) {
	if a.stop.IsNone() {
		return 0, false
	}

	level := a.stop.Unwrap()

	if a.direction == types.DirectionSell {
		return level, exitSide.High > level
	}

	return level, exitSide.Low < level
}
