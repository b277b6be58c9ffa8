package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// ExitReason records which rule closed a trade.
type ExitReason string

const (
	// ExitReasonSystem marks a trade closed by the system's exit edge.
	ExitReasonSystem ExitReason = "system"
	// ExitReasonStopLoss marks a trade closed by a stop-loss breach.
	ExitReasonStopLoss ExitReason = "stop_loss"
)

// Trade is one completed round-trip emitted by the assembler.
// EntryPrice is the entry-side session open; ExitPrice is either the
// exit-side session price or the breached stop level.
type Trade struct {
	EntryTime  time.Time  `yaml:"entry_time" json:"entry_time" csv:"entry_time"`
	EntryPrice float64    `yaml:"entry_price" json:"entry_price" csv:"entry_price"`
	ExitTime   time.Time  `yaml:"exit_time" json:"exit_time" csv:"exit_time"`
	ExitPrice  float64    `yaml:"exit_price" json:"exit_price" csv:"exit_price"`
	ExitReason ExitReason `yaml:"exit_reason" json:"exit_reason" csv:"exit_reason"`
	// StopLoss is the stop level active on the entry session. None when the
	// run uses no stop policy.
	StopLoss optional.Option[float64] `yaml:"stop_loss" json:"stop_loss" csv:"stop_loss"`
}

// Duration returns the time the trade was held.
func (t Trade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}
