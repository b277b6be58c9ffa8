// Package runner executes backtest jobs concurrently. Each job is an
// independent configuration evaluated against its own session set, so jobs
// fan out over a fixed worker pool and results come back in job order.
package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/quantfold/smacross/internal/engine"
	"github.com/quantfold/smacross/internal/indicator"
	"github.com/quantfold/smacross/internal/logger"
	"github.com/quantfold/smacross/internal/types"
	"github.com/quantfold/smacross/internal/writer"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Job is one backtest to run: a configuration plus the session set it is
// evaluated against.
type Job struct {
	Name     string
	Config   engine.BacktestConfig
	Sessions types.SessionSet
}

// Result is the outcome of one job. Err is set when the job failed; the
// other fields are only meaningful when it is nil.
type Result struct {
	RunID   string
	Name    string
	Trades  []types.Trade
	Summary writer.RunSummary
	Err     error
}

// Runner executes jobs over a worker pool.
type Runner struct {
	log      *logger.Logger
	workers  int
	progress bool
}

// NewRunner creates a Runner with the given pool size. A non-positive size
// falls back to a single worker.
func NewRunner(log *logger.Logger, workers int, progress bool) *Runner {
	if workers <= 0 {
		workers = 1
	}

	return &Runner{
		log:      log,
		workers:  workers,
		progress: progress,
	}
}

// Run executes all jobs and returns one result per job, in job order. A
// failed job does not stop the others; its error lands in its Result. Run
// itself only fails when the context is cancelled.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))

	var bar *progressbar.ProgressBar
	if r.progress {
		bar = progressbar.Default(int64(len(jobs)))
		bar.Describe(fmt.Sprintf("Running %d backtests", len(jobs)))
	}

	indexes := make(chan int)

	var wg sync.WaitGroup

	for w := 0; w < r.workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range indexes {
				results[i] = r.runJob(jobs[i])

				if bar != nil {
					_ = bar.Add(1)
				}
			}
		}()
	}

	err := func() error {
		defer close(indexes)

		for i := range jobs {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case indexes <- i:
			}
		}

		return nil
	}()

	wg.Wait()

	if err != nil {
		return nil, err
	}

	return results, nil
}

func (r *Runner) runJob(job Job) Result {
	result := Result{
		RunID: uuid.New().String(),
		Name:  job.Name,
	}

	trades, err := r.execute(job)
	if err != nil {
		r.log.Error("backtest job failed",
			zap.String("job", job.Name),
			zap.String("run_id", result.RunID),
			zap.Error(err),
		)

		result.Err = err

		return result
	}

	result.Trades = trades
	result.Summary = writer.Summarize(result.RunID, job.Config.Direction, job.Sessions.Len(), trades)

	return result
}

// execute computes the indicator series for one job and runs the engine.
func (r *Runner) execute(job Job) ([]types.Trade, error) {
	closes := job.Sessions.Mid.Closes()

	fast, err := indicator.SMA(closes, job.Config.FastPeriod)
	if err != nil {
		return nil, err
	}

	slow, err := indicator.SMA(closes, job.Config.SlowPeriod)
	if err != nil {
		return nil, err
	}

	var atr []optional.Option[float64]
	if job.Config.StopPolicy == engine.StopPolicyATR {
		atr, err = indicator.ATR(job.Sessions.Mid, job.Config.ATRPeriod)
		if err != nil {
			return nil, err
		}
	}

	backtest, err := engine.NewBacktest(job.Config, r.log)
	if err != nil {
		return nil, err
	}

	return backtest.Run(engine.RunInput{
		Sessions: job.Sessions,
		Fast:     fast,
		Slow:     slow,
		ATR:      atr,
	})
}

// WriteResults persists every successful result under baseDir, one run
// directory per job keyed by its run ID.
func (r *Runner) WriteResults(baseDir string, results []Result) error {
	for _, result := range results {
		if result.Err != nil {
			continue
		}

		out, err := writer.NewCSVWriter(filepath.Join(baseDir, result.RunID))
		if err != nil {
			return err
		}

		for _, trade := range result.Trades {
			if err := out.WriteTrade(trade); err != nil {
				out.Close()

				return err
			}
		}

		if err := out.WriteSummary(result.Summary); err != nil {
			out.Close()

			return err
		}

		if err := out.Close(); err != nil {
			return err
		}

		r.log.Info("wrote backtest results",
			zap.String("job", result.Name),
			zap.String("run_id", result.RunID),
			zap.Int("trades", len(result.Trades)),
		)
	}

	return nil
}
