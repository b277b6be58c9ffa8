package indicator

import (
	"testing"
	"time"

	"github.com/quantfold/smacross/internal/types"
	"github.com/quantfold/smacross/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ATRTestSuite struct {
	suite.Suite
}

func TestATRSuite(t *testing.T) {
	suite.Run(t, new(ATRTestSuite))
}

func (suite *ATRTestSuite) candles(rows [][4]float64) types.Series {
	base := time.Date(2019, 8, 20, 0, 0, 0, 0, time.UTC)

	series := make(types.Series, len(rows))
	for i, row := range rows {
		series[i] = types.Candle{
			Time:  base.Add(time.Duration(i) * 15 * time.Minute),
			Open:  row[0],
			High:  row[1],
			Low:   row[2],
			Close: row[3],
		}
	}

	return series
}

func (suite *ATRTestSuite) TestSeedIsAverageTrueRange() {
	// Constant 1.0 high-low range, closes inside every session.
	candles := suite.candles([][4]float64{
		{10, 10.5, 9.5, 10.2},
		{10.2, 10.7, 9.7, 10.4},
		{10.4, 10.9, 9.9, 10.6},
	})

	result, err := ATR(candles, 3)
	suite.Require().NoError(err)
	suite.Require().Len(result, 3)

	suite.True(result[0].IsNone())
	suite.True(result[1].IsNone())
	suite.InDelta(1.0, result[2].Unwrap(), 1e-9)
}

func (suite *ATRTestSuite) TestWilderSmoothing() {
	candles := suite.candles([][4]float64{
		{10, 11, 9, 10},  // tr = 2
		{10, 11, 9, 10},  // tr = 2
		{10, 14, 10, 12}, // tr = max(4, |14-10|, |10-10|) = 4
	})

	result, err := ATR(candles, 2)
	suite.Require().NoError(err)

	// Seed: (2+2)/2 = 2. Next: (2*1 + 4)/2 = 3.
	suite.InDelta(2.0, result[1].Unwrap(), 1e-9)
	suite.InDelta(3.0, result[2].Unwrap(), 1e-9)
}

func (suite *ATRTestSuite) TestGapTrueRange() {
	// Second session gaps far above the previous close; true range must use
	// the previous close, not just high-low.
	candles := suite.candles([][4]float64{
		{10, 10.5, 9.5, 10},
		{15, 15.2, 14.8, 15},
	})

	result, err := ATR(candles, 2)
	suite.Require().NoError(err)

	// tr[0] = 1.0, tr[1] = |15.2-10| = 5.2, seed = 3.1
	suite.InDelta(3.1, result[1].Unwrap(), 1e-9)
}

func (suite *ATRTestSuite) TestInvalidPeriod() {
	candles := suite.candles([][4]float64{{10, 11, 9, 10}})

	_, err := ATR(candles, 0)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPeriod))
}

func (suite *ATRTestSuite) TestInsufficientHistory() {
	candles := suite.candles([][4]float64{{10, 11, 9, 10}})

	_, err := ATR(candles, 14)
	suite.Error(err)
	suite.True(errors.IsInsufficientHistoryError(err))
}
