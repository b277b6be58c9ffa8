package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/quantfold/smacross/pkg/errors"
)

// Candle represents one session bar of a single price view.
type Candle struct {
	Time  time.Time `yaml:"time" json:"time" csv:"time"`
	Open  float64   `yaml:"open" json:"open" csv:"open"`
	High  float64   `yaml:"high" json:"high" csv:"high"`
	Low   float64   `yaml:"low" json:"low" csv:"low"`
	Close float64   `yaml:"close" json:"close" csv:"close"`
}

// Series is a time-ordered sequence of candles for one price view.
type Series []Candle

// Times returns the session timestamps of the series.
func (s Series) Times() []time.Time {
	times := make([]time.Time, len(s))
	for i, candle := range s {
		times[i] = candle.Time
	}

	return times
}

// Closes returns the close value of every session.
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, candle := range s {
		closes[i] = candle.Close
	}

	return closes
}

// Direction is the side a system is evaluated against.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// AllDirections lists every valid trade direction.
var AllDirections = []any{string(DirectionBuy), string(DirectionSell)}

// Validate checks that the direction is a known value.
func (d Direction) Validate() error {
	validate := validator.New()

	err := validate.Var(string(d), "required,oneof=buy sell")
	if err != nil {
		return errors.Newf(errors.ErrCodeInvalidDirection, "invalid trade direction %q", string(d))
	}

	return nil
}

// PriceField selects which session price fills a system exit.
type PriceField string

const (
	PriceFieldOpen  PriceField = "open"
	PriceFieldClose PriceField = "close"
)

// AllPriceFields lists every valid price field.
var AllPriceFields = []any{string(PriceFieldOpen), string(PriceFieldClose)}

// Of returns the candle value the field selects.
func (p PriceField) Of(candle Candle) float64 {
	if p == PriceFieldClose {
		return candle.Close
	}

	return candle.Open
}

// Validate checks that the price field is a known value.
func (p PriceField) Validate() error {
	validate := validator.New()

	err := validate.Var(string(p), "required,oneof=open close")
	if err != nil {
		return errors.Newf(errors.ErrCodeInvalidExitPrice, "invalid exit price field %q", string(p))
	}

	return nil
}

// SessionSet bundles the three aligned price views of one instrument.
// Mid feeds the indicators, EntrySide fills entries (ask for buy, bid for
// sell) and ExitSide fills exits (bid for buy, ask for sell).
type SessionSet struct {
	Mid       Series
	EntrySide Series
	ExitSide  Series
}

// Len returns the number of sessions in the set.
func (s SessionSet) Len() int {
	return len(s.Mid)
}

// Validate checks that the three views share an identical, strictly
// increasing, duplicate-free time index.
func (s SessionSet) Validate() error {
	if len(s.Mid) == 0 {
		return errors.New(errors.ErrCodeEmptySeries, "session set has no sessions")
	}

	if len(s.EntrySide) != len(s.Mid) {
		return errors.Newf(errors.ErrCodeSeriesMisaligned,
			"entry-side series has %d sessions, mid has %d", len(s.EntrySide), len(s.Mid))
	}

	if len(s.ExitSide) != len(s.Mid) {
		return errors.Newf(errors.ErrCodeSeriesMisaligned,
			"exit-side series has %d sessions, mid has %d", len(s.ExitSide), len(s.Mid))
	}

	for i := range s.Mid {
		if !s.EntrySide[i].Time.Equal(s.Mid[i].Time) || !s.ExitSide[i].Time.Equal(s.Mid[i].Time) {
			return errors.Newf(errors.ErrCodeSeriesMisaligned,
				"session %d timestamps differ between price views", i)
		}

		if i > 0 && !s.Mid[i].Time.After(s.Mid[i-1].Time) {
			return errors.Newf(errors.ErrCodeSeriesMisaligned,
				"session index not strictly increasing at %d (%s -> %s)",
				i, s.Mid[i-1].Time, s.Mid[i].Time)
		}
	}

	return nil
}
