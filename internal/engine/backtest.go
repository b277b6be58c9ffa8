// Package engine implements the crossover backtest core: lagged edge
// detection, stop-loss policies and the trade assembler that folds them into
// a non-overlapping trade list. A run is a deterministic, side-effect-free
// pass over an already-materialized session sequence.
package engine

import (
	"github.com/moznion/go-optional"
	"github.com/quantfold/smacross/internal/logger"
	"github.com/quantfold/smacross/internal/types"
	"github.com/quantfold/smacross/pkg/errors"
	"go.uber.org/zap"
)

// RunInput is the complete input of one backtest run: the three aligned
// price views plus the indicator series computed upstream, all sharing the
// session index.
type RunInput struct {
	Sessions types.SessionSet
	Fast     []optional.Option[float64]
	Slow     []optional.Option[float64]
	// ATR is required only by the atr stop policy.
	ATR []optional.Option[float64]
}

// Backtest evaluates a dual moving-average crossover system against one
// instrument's session history.
type Backtest struct {
	config BacktestConfig
	log    *logger.Logger
}

// NewBacktest validates the configuration eagerly and returns a runnable
// backtest. A configuration error surfaces here, before any computation.
func NewBacktest(config BacktestConfig, log *logger.Logger) (*Backtest, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Backtest{
		config: config,
		log:    log,
	}, nil
}

// Run executes the backtest and returns the completed trades in entry order.
// All input validation happens up front; a failed run never yields a partial
// trade list.
func (b *Backtest) Run(input RunInput) ([]types.Trade, error) {
	if err := input.Sessions.Validate(); err != nil {
		return nil, err
	}

	sessions := input.Sessions.Len()

	edges, err := DetectEdges(input.Fast, input.Slow, b.config.Direction, sessions)
	if err != nil {
		return nil, err
	}

	if b.config.StopPolicy == StopPolicyATR {
		if input.ATR == nil {
			return nil, errors.New(errors.ErrCodeMissingParameter,
				"atr stop policy requires an ATR series")
		}

		if len(input.ATR) != sessions {
			return nil, errors.Newf(errors.ErrCodeSeriesMisaligned,
				"ATR series has %d values, want %d", len(input.ATR), sessions)
		}
	}

	policy, err := NewStopPolicy(b.config)
	if err != nil {
		return nil, err
	}

	b.log.Debug("starting backtest run",
		zap.String("direction", string(b.config.Direction)),
		zap.String("stop_policy", string(b.config.StopPolicy)),
		zap.Int("sessions", sessions),
	)

	assembler := NewTradeAssembler(b.config.Direction, b.config.SystemExitPrice, policy)

	for i := 0; i < sessions; i++ {
		assembler.Step(Session{
			Time:      input.Sessions.Mid[i].Time,
			EntryOpen: input.Sessions.EntrySide[i].Open,
			ExitSide:  input.Sessions.ExitSide[i],
			Entry:     edges.Entry[i],
			Exit:      edges.Exit[i],
			Policy:    b.sessionContext(input, i),
		})
	}

	trades := assembler.Trades()

	b.log.Info("backtest run complete",
		zap.Int("sessions", sessions),
		zap.Int("trades", len(trades)),
	)

	return trades, nil
}

// sessionContext assembles the lagged values the stop policy may inspect at
// session i. Values before the dataset start are absent, never zero.
func (b *Backtest) sessionContext(input RunInput, i int) SessionContext {
	ctx := SessionContext{
		EntryOpen:  input.Sessions.EntrySide[i].Open,
		PrevClose:  optional.None[float64](),
		PrevClose2: optional.None[float64](),
		PrevATR:    optional.None[float64](),
	}

	if i >= 1 {
		ctx.PrevClose = optional.Some(input.Sessions.Mid[i-1].Close)

		if input.ATR != nil {
			ctx.PrevATR = input.ATR[i-1]
		}
	}

	if i >= 2 {
		ctx.PrevClose2 = optional.Some(input.Sessions.Mid[i-2].Close)
	}

	return ctx
}
