package engine

import (
	"github.com/moznion/go-optional"
	"github.com/quantfold/smacross/internal/types"
	"github.com/quantfold/smacross/pkg/errors"
)

// MinSessions is the shortest series edge detection can act on: two lagged
// sessions of history plus one actionable session.
const MinSessions = 3

// Edges holds the per-session entry and exit edge flags derived from the
// fast/slow cross.
type Edges struct {
	Entry []bool
	Exit  []bool
}

// DetectEdges derives lagged entry/exit edges from the fast and slow series.
//
// The system is "on" when fast > slow (operands swapped for sell). The edge
// for session t compares the on-state at t-1 against t-2, so the decision
// never uses session t's own still-forming values. The first two sessions
// have undefined edges and are always false.
func DetectEdges(fast, slow []optional.Option[float64], direction types.Direction, sessions int) (Edges, error) {
	if sessions < MinSessions {
		return Edges{}, errors.NewInsufficientHistoryErrorf(
			MinSessions, sessions, "sessions",
			"edge detection needs at least %d sessions, got %d", MinSessions, sessions)
	}

	if len(fast) != sessions {
		return Edges{}, errors.Newf(errors.ErrCodeSeriesMisaligned,
			"fast series has %d values, want %d", len(fast), sessions)
	}

	if len(slow) != sessions {
		return Edges{}, errors.Newf(errors.ErrCodeSeriesMisaligned,
			"slow series has %d values, want %d", len(slow), sessions)
	}

	on := make([]bool, sessions)
	for i := 0; i < sessions; i++ {
		on[i] = systemOn(fast[i], slow[i], direction)
	}

	edges := Edges{
		Entry: make([]bool, sessions),
		Exit:  make([]bool, sessions),
	}

	for i := 2; i < sessions; i++ {
		curr := on[i-1]
		prev := on[i-2]
		edges.Entry[i] = curr && !prev
		edges.Exit[i] = prev && !curr
	}

	return edges, nil
}

// systemOn evaluates the fast-vs-slow comparison for one session. Sessions
// where either value is absent are never on.
func systemOn(fast, slow optional.Option[float64], direction types.Direction) bool {
	if fast.IsNone() || slow.IsNone() {
		return false
	}

	f := fast.Unwrap()
	s := slow.Unwrap()

	if direction == types.DirectionSell {
		return f < s
	}

	return f > s
}
