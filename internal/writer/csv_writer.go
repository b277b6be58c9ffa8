// Package writer persists backtest results. Each run gets its own
// timestamped directory under the configured base directory.
package writer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quantfold/smacross/internal/types"
	"github.com/quantfold/smacross/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// ResultWriter writes the results of one backtest run.
type ResultWriter interface {
	// WriteTrade appends one completed trade to the trade log.
	WriteTrade(trade types.Trade) error

	// WriteSummary writes the aggregate run summary.
	WriteSummary(summary RunSummary) error

	// RunDir returns the directory this run writes into.
	RunDir() string

	// Close finalizes the writing process.
	Close() error
}

// RunSummary aggregates one run's trades.
type RunSummary struct {
	RunID       string          `yaml:"run_id"`
	Direction   types.Direction `yaml:"direction"`
	Sessions    int             `yaml:"sessions"`
	Trades      int             `yaml:"trades"`
	StopExits   int             `yaml:"stop_exits"`
	SystemExits int             `yaml:"system_exits"`
	TotalPnL    float64         `yaml:"total_pnl"`
}

// Summarize folds a trade list into a RunSummary. PnL is quoted per unit:
// exit minus entry for a buy, entry minus exit for a sell.
func Summarize(runID string, direction types.Direction, sessions int, trades []types.Trade) RunSummary {
	summary := RunSummary{
		RunID:     runID,
		Direction: direction,
		Sessions:  sessions,
		Trades:    len(trades),
	}

	for _, trade := range trades {
		pnl := trade.ExitPrice - trade.EntryPrice
		if direction == types.DirectionSell {
			pnl = -pnl
		}

		summary.TotalPnL += pnl

		if trade.ExitReason == types.ExitReasonStopLoss {
			summary.StopExits++
		} else {
			summary.SystemExits++
		}
	}

	return summary
}

// CSVWriter implements ResultWriter by writing trades.csv and summary.yaml
// into a per-run directory.
type CSVWriter struct {
	baseDir    string
	runDir     string
	tradesFile *os.File
	tradesCsv  *csv.Writer
}

// NewCSVWriter creates a CSVWriter rooted at baseDir. The run directory is
// named after the current timestamp.
func NewCSVWriter(baseDir string) (ResultWriter, error) {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	runDir := filepath.Join(baseDir, timestamp)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to create run directory", err)
	}

	writer := &CSVWriter{
		baseDir: baseDir,
		runDir:  runDir,
	}

	if err := writer.initFiles(); err != nil {
		return nil, err
	}

	return writer, nil
}

func (w *CSVWriter) initFiles() error {
	tradesFile, err := os.Create(filepath.Join(w.runDir, "trades.csv"))
	if err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to create trades file", err)
	}

	w.tradesFile = tradesFile
	w.tradesCsv = csv.NewWriter(tradesFile)

	err = w.tradesCsv.Write([]string{
		"entry_time", "entry_price", "exit_time", "exit_price", "exit_reason", "stop_loss",
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to write trades header", err)
	}

	return nil
}

// WriteTrade appends one completed trade to trades.csv.
func (w *CSVWriter) WriteTrade(trade types.Trade) error {
	stopLoss := ""
	if trade.StopLoss.IsSome() {
		stopLoss = fmt.Sprintf("%f", trade.StopLoss.Unwrap())
	}

	record := []string{
		trade.EntryTime.Format(time.RFC3339),
		fmt.Sprintf("%f", trade.EntryPrice),
		trade.ExitTime.Format(time.RFC3339),
		fmt.Sprintf("%f", trade.ExitPrice),
		string(trade.ExitReason),
		stopLoss,
	}

	if err := w.tradesCsv.Write(record); err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to write trade", err)
	}

	w.tradesCsv.Flush()

	return w.tradesCsv.Error()
}

// WriteSummary writes summary.yaml into the run directory.
func (w *CSVWriter) WriteSummary(summary RunSummary) error {
	summaryFile, err := os.Create(filepath.Join(w.runDir, "summary.yaml"))
	if err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to create summary file", err)
	}
	defer summaryFile.Close()

	data, err := yaml.Marshal(summary)
	if err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to marshal summary", err)
	}

	if _, err := summaryFile.Write(data); err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to write summary", err)
	}

	return nil
}

// RunDir returns the directory this run writes into.
func (w *CSVWriter) RunDir() string {
	return w.runDir
}

// Close finalizes the writing process.
func (w *CSVWriter) Close() error {
	if w.tradesCsv != nil {
		w.tradesCsv.Flush()
	}

	if w.tradesFile != nil {
		return w.tradesFile.Close()
	}

	return nil
}
