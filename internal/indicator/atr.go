package indicator

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/quantfold/smacross/internal/types"
	"github.com/quantfold/smacross/pkg/errors"
)

// ATR computes the Average True Range of the candles over the given period
// using Wilder's smoothing. The result is aligned with the input; the first
// period-1 sessions have no value.
func ATR(candles types.Series, period int) ([]optional.Option[float64], error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	if len(candles) < period {
		return nil, errors.NewInsufficientHistoryErrorf(
			period, len(candles), "atr",
			"ATR period %d needs at least %d sessions, got %d", period, period, len(candles))
	}

	result := make([]optional.Option[float64], len(candles))
	for i := range result {
		result[i] = optional.None[float64]()
	}

	var smoothed float64

	var seedSum float64

	for i, candle := range candles {
		tr := trueRange(candle, candles, i)

		switch {
		case i < period-1:
			seedSum += tr
		case i == period-1:
			// Seed with the plain average of the first window.
			smoothed = (seedSum + tr) / float64(period)
			result[i] = optional.Some(smoothed)
		default:
			smoothed = (smoothed*float64(period-1) + tr) / float64(period)
			result[i] = optional.Some(smoothed)
		}
	}

	return result, nil
}

// trueRange returns the session's true range. The first session has no
// previous close, so its range collapses to high minus low.
func trueRange(candle types.Candle, candles types.Series, i int) float64 {
	if i == 0 {
		return candle.High - candle.Low
	}

	prevClose := candles[i-1].Close

	return math.Max(
		math.Max(
			candle.High-candle.Low,
			math.Abs(candle.High-prevClose),
		),
		math.Abs(candle.Low-prevClose),
	)
}
