package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/moznion/go-optional"
	"github.com/quantfold/smacross/internal/datasource"
	"github.com/quantfold/smacross/internal/engine"
	"github.com/quantfold/smacross/internal/logger"
	"github.com/quantfold/smacross/internal/runner"
	"github.com/quantfold/smacross/internal/version"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap/zapcore"
	yaml "gopkg.in/yaml.v2"
)

// backtestAction loads the configuration and candle files, runs the backtest
// and writes the results.
func backtestAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	midPath := cmd.String("mid")
	askPath := cmd.String("ask")
	bidPath := cmd.String("bid")
	outputDir := cmd.String("output")
	workers := cmd.Int("workers")

	level := zapcore.InfoLevel
	if cmd.Bool("verbose") {
		level = zapcore.DebugLevel
	}

	appLog, err := logger.NewLoggerWithLevel(level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLog.Sync()

	config := engine.DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return err
	}

	source, err := datasource.NewDataSource("", appLog)
	if err != nil {
		return err
	}
	defer source.Close()

	if err := source.Initialize(midPath, askPath, bidPath); err != nil {
		return err
	}

	start := optional.None[time.Time]()
	if t := cmd.Timestamp("start"); !t.IsZero() {
		start = optional.Some(t)
	}

	end := optional.None[time.Time]()
	if t := cmd.Timestamp("end"); !t.IsZero() {
		end = optional.Some(t)
	}

	sessions, err := source.Sessions(config.Direction, start, end)
	if err != nil {
		return err
	}

	jobs := []runner.Job{{
		Name:     strings.TrimSuffix(filepath.Base(midPath), filepath.Ext(midPath)),
		Config:   config,
		Sessions: sessions,
	}}

	run := runner.NewRunner(appLog, int(workers), true)

	results, err := run.Run(ctx, jobs)
	if err != nil {
		return err
	}

	for _, result := range results {
		if result.Err != nil {
			return result.Err
		}
	}

	return run.WriteResults(outputDir, results)
}

func main() {
	cmd := &cli.Command{
		Name:    "backtest",
		Usage:   "Run a moving-average crossover backtest over candle CSV files",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the backtest configuration YAML",
				Required: false,
			},
			&cli.StringFlag{
				Name:     "mid",
				Aliases:  []string{"m"},
				Usage:    "Path to the mid candle CSV",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "ask",
				Aliases:  []string{"a"},
				Usage:    "Path to the ask candle CSV",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "bid",
				Aliases:  []string{"b"},
				Usage:    "Path to the bid candle CSV",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    "Path to the results output directory",
				Value:    "results",
				Required: false,
			},
			&cli.IntFlag{
				Name:     "workers",
				Aliases:  []string{"w"},
				Usage:    "Number of concurrent backtest workers",
				Value:    1,
				Required: false,
			},
			&cli.BoolFlag{
				Name:     "verbose",
				Usage:    "Enable debug logging",
				Required: false,
			},
			&cli.TimestampFlag{
				Name:    "start",
				Aliases: []string{"s"},
				Usage:   "Only evaluate sessions at or after this time (`YYYY-MM-DD`)",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02", time.RFC3339},
				},
				Required: false,
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "Only evaluate sessions at or before this time (`YYYY-MM-DD`)",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02", time.RFC3339},
				},
				Required: false,
			},
		},
		Action: backtestAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
