// Package indicator computes the numeric series the backtest engine
// consumes. Every function is a pure computation over time-ordered input;
// sessions where a window is not yet full carry no value.
package indicator

import (
	"github.com/moznion/go-optional"
	"github.com/quantfold/smacross/pkg/errors"
)

// SMA computes the simple moving average of values over the given period.
// The result is aligned with the input; the first period-1 sessions have no
// value.
func SMA(values []float64, period int) ([]optional.Option[float64], error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	if len(values) < period {
		return nil, errors.NewInsufficientHistoryErrorf(
			period, len(values), "sma",
			"SMA period %d needs at least %d sessions, got %d", period, period, len(values))
	}

	result := make([]optional.Option[float64], len(values))

	var windowSum float64

	for i, value := range values {
		windowSum += value
		if i >= period {
			windowSum -= values[i-period]
		}

		if i >= period-1 {
			result[i] = optional.Some(windowSum / float64(period))
		} else {
			result[i] = optional.None[float64]()
		}
	}

	return result, nil
}
