// Package datasource loads session candles into DuckDB and serves the
// aligned price views the backtest consumes.
package datasource

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/quantfold/smacross/internal/logger"
	"github.com/quantfold/smacross/internal/types"
	"github.com/quantfold/smacross/pkg/errors"
	"go.uber.org/zap"
)

// DataSource serves aligned session candles for one instrument. The three
// views share one session clock; Sessions fails rather than guess when they
// drift apart.
type DataSource interface {
	// Initialize loads the mid, ask and bid candle files. Each file is a CSV
	// with a header row of time, open, high, low, close.
	Initialize(midPath, askPath, bidPath string) error
	// Sessions returns the aligned session set for the given direction,
	// optionally restricted to a time range.
	Sessions(direction types.Direction, start, end optional.Option[time.Time]) (types.SessionSet, error)
	// Count returns the number of mid sessions in the optional range.
	Count(start, end optional.Option[time.Time]) (int, error)
	Close() error
}

type DuckDBDataSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDataSource opens a DuckDB database at the given path. Use an empty path
// for an in-memory database. This only opens the store; Initialize loads the
// candle files into it.
func NewDataSource(path string, logger *logger.Logger) (DataSource, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	return &DuckDBDataSource{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Initialize implements DataSource.
func (d *DuckDBDataSource) Initialize(midPath, askPath, bidPath string) error {
	d.logger.Debug("initializing duckdb data source",
		zap.String("mid", midPath),
		zap.String("ask", askPath),
		zap.String("bid", bidPath),
	)

	views := []struct {
		name string
		path string
	}{
		{"mid_candles", midPath},
		{"ask_candles", askPath},
		{"bid_candles", bidPath},
	}

	for _, view := range views {
		if _, err := d.db.Exec(fmt.Sprintf(`DROP VIEW IF EXISTS %s;`, view.name)); err != nil {
			return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to drop view %s", view.name)
		}

		// CREATE VIEW has no placeholder support in squirrel, so raw SQL it is.
		query := fmt.Sprintf(`
			CREATE VIEW %s AS
			SELECT time, open, high, low, close
			FROM read_csv('%s', header = true, columns = {
				'time': 'TIMESTAMP',
				'open': 'DOUBLE',
				'high': 'DOUBLE',
				'low': 'DOUBLE',
				'close': 'DOUBLE'
			});
		`, view.name, view.path)

		if _, err := d.db.Exec(query); err != nil {
			return errors.Wrapf(errors.ErrCodeDataParseFailed, err, "failed to load %s", view.path)
		}
	}

	return nil
}

// Count implements DataSource.
func (d *DuckDBDataSource) Count(start, end optional.Option[time.Time]) (int, error) {
	return d.viewCount("mid_candles", start, end)
}

// viewCount returns the number of sessions one view holds in the range.
func (d *DuckDBDataSource) viewCount(view string, start, end optional.Option[time.Time]) (int, error) {
	builder := d.sq.Select("COUNT(*)").From(view + " m")
	builder = applyRange(builder, start, end)

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to count sessions in %s", view)
	}

	return count, nil
}

// Sessions implements DataSource. For a buy the entry side is the ask and
// the exit side is the bid; a sell swaps them.
func (d *DuckDBDataSource) Sessions(direction types.Direction, start, end optional.Option[time.Time]) (types.SessionSet, error) {
	if err := direction.Validate(); err != nil {
		return types.SessionSet{}, err
	}

	entryView, exitView := "ask_candles", "bid_candles"
	if direction == types.DirectionSell {
		entryView, exitView = "bid_candles", "ask_candles"
	}

	builder := d.sq.Select(
		"m.time",
		"m.open", "m.high", "m.low", "m.close",
		"e.open", "e.high", "e.low", "e.close",
		"x.open", "x.high", "x.low", "x.close",
	).
		From("mid_candles m").
		Join(fmt.Sprintf("%s e ON e.time = m.time", entryView)).
		Join(fmt.Sprintf("%s x ON x.time = m.time", exitView)).
		OrderBy("m.time ASC")
	builder = applyRange(builder, start, end)

	query, args, err := builder.ToSql()
	if err != nil {
		return types.SessionSet{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build session query", err)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return types.SessionSet{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query sessions", err)
	}
	defer rows.Close()

	var set types.SessionSet

	for rows.Next() {
		var (
			ts              time.Time
			mid, entry, exi types.Candle
		)

		err := rows.Scan(
			&ts,
			&mid.Open, &mid.High, &mid.Low, &mid.Close,
			&entry.Open, &entry.High, &entry.Low, &entry.Close,
			&exi.Open, &exi.High, &exi.Low, &exi.Close,
		)
		if err != nil {
			return types.SessionSet{}, errors.Wrap(errors.ErrCodeDataParseFailed, "failed to scan session row", err)
		}

		mid.Time, entry.Time, exi.Time = ts, ts, ts
		set.Mid = append(set.Mid, mid)
		set.EntrySide = append(set.EntrySide, entry)
		set.ExitSide = append(set.ExitSide, exi)
	}

	if err := rows.Err(); err != nil {
		return types.SessionSet{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read session rows", err)
	}

	// The join only keeps timestamps present in all three views. A view with
	// a missing session must fail loudly, not shrink the set.
	for _, view := range []string{"mid_candles", entryView, exitView} {
		count, err := d.viewCount(view, start, end)
		if err != nil {
			return types.SessionSet{}, err
		}

		if count != set.Len() {
			return types.SessionSet{}, errors.Newf(errors.ErrCodeSeriesMisaligned,
				"%s has %d sessions in range but only %d align across all views", view, count, set.Len())
		}
	}

	if set.Len() == 0 {
		return types.SessionSet{}, errors.New(errors.ErrCodeDataNotFound, "no sessions in range")
	}

	d.logger.Debug("loaded sessions",
		zap.String("direction", string(direction)),
		zap.Int("sessions", set.Len()),
	)

	return set, nil
}

// Close implements DataSource.
func (d *DuckDBDataSource) Close() error {
	return d.db.Close()
}

func applyRange(builder squirrel.SelectBuilder, start, end optional.Option[time.Time]) squirrel.SelectBuilder {
	if start.IsSome() {
		builder = builder.Where(squirrel.GtOrEq{"m.time": start.Unwrap()})
	}

	if end.IsSome() {
		builder = builder.Where(squirrel.LtOrEq{"m.time": end.Unwrap()})
	}

	return builder
}
