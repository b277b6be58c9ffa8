package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/quantfold/smacross/internal/logger"
	"github.com/quantfold/smacross/internal/types"
	"github.com/quantfold/smacross/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type DuckDBTestSuite struct {
	suite.Suite
	source DataSource
	start  time.Time
}

func TestDuckDBSuite(t *testing.T) {
	suite.Run(t, new(DuckDBTestSuite))
}

func (suite *DuckDBTestSuite) SetupTest() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	source, err := NewDataSource("", log)
	suite.Require().NoError(err)
	suite.source = source

	suite.start = time.Date(2019, 8, 20, 14, 0, 0, 0, time.UTC)

	dir := suite.T().TempDir()
	mid := suite.writeCandleCSV(filepath.Join(dir, "mid.csv"), 100.0)
	ask := suite.writeCandleCSV(filepath.Join(dir, "ask.csv"), 100.1)
	bid := suite.writeCandleCSV(filepath.Join(dir, "bid.csv"), 99.9)

	suite.Require().NoError(suite.source.Initialize(mid, ask, bid))
}

func (suite *DuckDBTestSuite) TearDownTest() {
	suite.NoError(suite.source.Close())
}

// writeCandleCSV writes four 15-minute sessions whose open starts at base and
// rises by 1.0 each session.
func (suite *DuckDBTestSuite) writeCandleCSV(path string, base float64) string {
	content := "time,open,high,low,close\n"

	for i := 0; i < 4; i++ {
		ts := suite.start.Add(time.Duration(i) * 15 * time.Minute)
		open := base + float64(i)
		content += fmt.Sprintf("%s,%.3f,%.3f,%.3f,%.3f\n",
			ts.Format("2006-01-02 15:04:05"), open, open+0.5, open-0.5, open+0.1)
	}

	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o644))

	return path
}

// writeGappedCandleCSV writes the same four sessions with the session at
// skip left out.
func (suite *DuckDBTestSuite) writeGappedCandleCSV(path string, base float64, skip int) string {
	content := "time,open,high,low,close\n"

	for i := 0; i < 4; i++ {
		if i == skip {
			continue
		}

		ts := suite.start.Add(time.Duration(i) * 15 * time.Minute)
		open := base + float64(i)
		content += fmt.Sprintf("%s,%.3f,%.3f,%.3f,%.3f\n",
			ts.Format("2006-01-02 15:04:05"), open, open+0.5, open-0.5, open+0.1)
	}

	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o644))

	return path
}

func (suite *DuckDBTestSuite) TestCount() {
	count, err := suite.source.Count(optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().NoError(err)
	suite.Equal(4, count)
}

func (suite *DuckDBTestSuite) TestCountWithRange() {
	count, err := suite.source.Count(
		optional.Some(suite.start.Add(15*time.Minute)),
		optional.Some(suite.start.Add(30*time.Minute)),
	)
	suite.Require().NoError(err)
	suite.Equal(2, count)
}

func (suite *DuckDBTestSuite) TestSessionsBuyUsesAskForEntry() {
	set, err := suite.source.Sessions(types.DirectionBuy, optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().NoError(err)
	suite.Require().NoError(set.Validate())
	suite.Equal(4, set.Len())

	suite.InDelta(100.0, set.Mid[0].Open, 1e-9)
	suite.InDelta(100.1, set.EntrySide[0].Open, 1e-9)
	suite.InDelta(99.9, set.ExitSide[0].Open, 1e-9)
	suite.True(set.Mid[0].Time.Equal(suite.start))
}

func (suite *DuckDBTestSuite) TestSessionsSellSwapsSides() {
	set, err := suite.source.Sessions(types.DirectionSell, optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().NoError(err)

	suite.InDelta(99.9, set.EntrySide[0].Open, 1e-9)
	suite.InDelta(100.1, set.ExitSide[0].Open, 1e-9)
}

func (suite *DuckDBTestSuite) TestSessionsOrderedByTime() {
	set, err := suite.source.Sessions(types.DirectionBuy, optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().NoError(err)

	for i := 1; i < set.Len(); i++ {
		suite.True(set.Mid[i-1].Time.Before(set.Mid[i].Time))
	}
}

func (suite *DuckDBTestSuite) TestSessionsEmptyRange() {
	_, err := suite.source.Sessions(types.DirectionBuy,
		optional.Some(suite.start.Add(24*time.Hour)),
		optional.None[time.Time](),
	)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDataNotFound))
}

func (suite *DuckDBTestSuite) TestSessionsInvalidDirection() {
	_, err := suite.source.Sessions(types.Direction("short"),
		optional.None[time.Time](), optional.None[time.Time]())
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidDirection))
}

func (suite *DuckDBTestSuite) TestSessionsFailWhenViewMissingRow() {
	// A bid file missing an interior session must not silently shrink the
	// joined set to the common timestamps.
	dir := suite.T().TempDir()
	mid := suite.writeCandleCSV(filepath.Join(dir, "mid.csv"), 100.0)
	ask := suite.writeCandleCSV(filepath.Join(dir, "ask.csv"), 100.1)
	bid := suite.writeGappedCandleCSV(filepath.Join(dir, "bid.csv"), 99.9, 2)

	suite.Require().NoError(suite.source.Initialize(mid, ask, bid))

	_, err := suite.source.Sessions(types.DirectionBuy, optional.None[time.Time](), optional.None[time.Time]())
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeSeriesMisaligned))
}

func (suite *DuckDBTestSuite) TestSessionsFailWhenViewMissingRowInRange() {
	dir := suite.T().TempDir()
	mid := suite.writeCandleCSV(filepath.Join(dir, "mid.csv"), 100.0)
	ask := suite.writeGappedCandleCSV(filepath.Join(dir, "ask.csv"), 100.1, 1)
	bid := suite.writeCandleCSV(filepath.Join(dir, "bid.csv"), 99.9)

	suite.Require().NoError(suite.source.Initialize(mid, ask, bid))

	_, err := suite.source.Sessions(types.DirectionBuy,
		optional.Some(suite.start),
		optional.Some(suite.start.Add(30*time.Minute)),
	)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeSeriesMisaligned))
}

func (suite *DuckDBTestSuite) TestInitializeMissingFile() {
	err := suite.source.Initialize("/nonexistent/mid.csv", "/nonexistent/ask.csv", "/nonexistent/bid.csv")
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDataParseFailed))
}
