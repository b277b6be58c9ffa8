package engine

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/quantfold/smacross/internal/types"
	"github.com/quantfold/smacross/pkg/errors"
	"github.com/shopspring/decimal"
)

// SessionContext carries the lagged values a stop policy may inspect for one
// session. Every field is shifted so the policy can never read the current
// session's own close or ATR.
type SessionContext struct {
	// EntryOpen is the entry-side open of the current session, the base the
	// original system trails its ATR stop from.
	EntryOpen float64
	// PrevClose is the mid close one session back.
	PrevClose optional.Option[float64]
	// PrevClose2 is the mid close two sessions back.
	PrevClose2 optional.Option[float64]
	// PrevATR is the ATR value one session back.
	PrevATR optional.Option[float64]
}

// StopPolicy computes the active stop threshold for an open position.
// "No active stop" is the None value, never a numeric sentinel.
type StopPolicy interface {
	// Name returns the policy type.
	Name() StopPolicyType
	// OnEntry returns the level active from the session that opens a position.
	OnEntry(ctx SessionContext) optional.Option[float64]
	// OnSession returns the level for a later session of an open position,
	// carrying last forward when no new level is legitimately computed.
	OnSession(ctx SessionContext, last optional.Option[float64]) optional.Option[float64]
}

// NewStopPolicy builds the configured stop policy. The configuration must
// already be validated; unknown combinations fail before any computation.
func NewStopPolicy(config BacktestConfig) (StopPolicy, error) {
	switch config.StopPolicy {
	case StopPolicyNone:
		return nonePolicy{}, nil
	case StopPolicyFixed:
		if config.StopOffset <= 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidStopPolicy,
				"fixed stop policy requires a positive stop_offset, got %v", config.StopOffset)
		}

		return &fixedOffsetPolicy{
			offset:    signedForDirection(config.StopOffset, config.Direction),
			precision: config.Precision,
		}, nil
	case StopPolicyATR:
		if config.ATRMultiplier <= 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidMultiplier,
				"atr stop policy requires a positive atr_multiplier, got %v", config.ATRMultiplier)
		}

		return &atrTrailingPolicy{
			direction:  config.Direction,
			multiplier: signedForDirection(config.ATRMultiplier, config.Direction),
			precision:  config.Precision,
		}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidStopPolicy,
			"unknown stop policy %q", string(config.StopPolicy))
	}
}

// signedForDirection returns the magnitude signed so the stop sits on the
// protective side: below entry for buy, above entry for sell.
func signedForDirection(magnitude float64, direction types.Direction) float64 {
	if direction == types.DirectionBuy {
		return -math.Abs(magnitude)
	}

	return math.Abs(magnitude)
}

// roundLevel rounds a stop level half-even to the instrument precision,
// matching the original's banker's rounding of quote prices.
func roundLevel(level float64, precision int) float64 {
	return decimal.NewFromFloat(level).RoundBank(int32(precision)).InexactFloat64()
}

// nonePolicy never sets a stop; only system exits apply.
type nonePolicy struct{}

func (nonePolicy) Name() StopPolicyType { return StopPolicyNone }

func (nonePolicy) OnEntry(SessionContext) optional.Option[float64] {
	return optional.None[float64]()
}

func (nonePolicy) OnSession(SessionContext, optional.Option[float64]) optional.Option[float64] {
	return optional.None[float64]()
}

// fixedOffsetPolicy sets the stop a fixed signed offset from the entry-side
// open of the entry session and holds it there for the life of the position.
type fixedOffsetPolicy struct {
	offset    float64
	precision int
}

func (p *fixedOffsetPolicy) Name() StopPolicyType { return StopPolicyFixed }

func (p *fixedOffsetPolicy) OnEntry(ctx SessionContext) optional.Option[float64] {
	return optional.Some(roundLevel(ctx.EntryOpen+p.offset, p.precision))
}

func (p *fixedOffsetPolicy) OnSession(_ SessionContext, last optional.Option[float64]) optional.Option[float64] {
	return last
}

// atrTrailingPolicy recomputes a candidate level each live session from the
// current session's entry-side open and the previous session's ATR, adopting
// it only while the lagged trend filter holds; otherwise the last adopted
// level carries forward.
type atrTrailingPolicy struct {
	direction  types.Direction
	multiplier float64
	precision  int
}

func (p *atrTrailingPolicy) Name() StopPolicyType { return StopPolicyATR }

func (p *atrTrailingPolicy) OnEntry(ctx SessionContext) optional.Option[float64] {
	return p.candidate(ctx)
}

func (p *atrTrailingPolicy) OnSession(ctx SessionContext, last optional.Option[float64]) optional.Option[float64] {
	if !p.trendHolds(ctx) {
		return last
	}

	candidate := p.candidate(ctx)
	if candidate.IsNone() {
		return last
	}

	return candidate
}

func (p *atrTrailingPolicy) candidate(ctx SessionContext) optional.Option[float64] {
	if ctx.PrevATR.IsNone() {
		return optional.None[float64]()
	}

	return optional.Some(roundLevel(ctx.EntryOpen+ctx.PrevATR.Unwrap()*p.multiplier, p.precision))
}

// trendHolds reports whether the lagged closes moved towards the target:
// previous close above the one before it for buy, below for sell.
func (p *atrTrailingPolicy) trendHolds(ctx SessionContext) bool {
	if ctx.PrevClose.IsNone() || ctx.PrevClose2.IsNone() {
		return false
	}

	if p.direction == types.DirectionSell {
		return ctx.PrevClose.Unwrap() < ctx.PrevClose2.Unwrap()
	}

	return ctx.PrevClose.Unwrap() > ctx.PrevClose2.Unwrap()
}
