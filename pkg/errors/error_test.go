package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeSeriesMisaligned, "fast series has %d values, want %d", 10, 12)
	suite.NotNil(err)
	suite.Equal(ErrCodeSeriesMisaligned, err.Code)
	suite.Equal("fast series has 10 values, want 12", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeQueryFailed, "failed to read candles", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeQueryFailed, err.Code)
	suite.Equal("failed to read candles", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodeDataNotFound, cause, "no candles for instrument: %s", "AUD_JPY")
	suite.NotNil(err)
	suite.Equal(ErrCodeDataNotFound, err.Code)
	suite.Equal("no candles for instrument: AUD_JPY", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal("[100] invalid parameter", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeSeriesMisaligned, "series misaligned", cause)
	suite.Equal("[200] series misaligned: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataNotFound, "data not found", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestUnwrapNil() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Nil(err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeInvalidDirection, "unknown trade direction")
	suite.Equal(ErrCodeInvalidDirection, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	cause := New(ErrCodeDataNotFound, "data not found")
	err := Wrap(ErrCodeIndicatorCalculation, "indicator calculation failed", cause)
	// GetCode should return the outermost error's code
	suite.Equal(ErrCodeIndicatorCalculation, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromPlainError() {
	err := errors.New("standard error")
	suite.Equal(ErrCodeUnknown, GetCode(err))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeInvalidStopPolicy, "unknown stop policy")
	suite.True(HasCode(err, ErrCodeInvalidStopPolicy))
	suite.False(HasCode(err, ErrCodeDataNotFound))
}

func (suite *ErrorTestSuite) TestIsError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataNotFound, "data not found", cause)
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestAsError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	var typedErr *Error
	suite.True(As(err, &typedErr))
	suite.Equal(ErrCodeInvalidParameter, typedErr.Code)
}

func (suite *ErrorTestSuite) TestErrorCodeValues() {
	// Verify some key error codes have expected values
	suite.Equal(ErrorCode(1), ErrCodeUnknown)
	suite.Equal(ErrorCode(100), ErrCodeInvalidParameter)
	suite.Equal(ErrorCode(200), ErrCodeSeriesMisaligned)
	suite.Equal(ErrorCode(300), ErrCodeIndicatorCalculation)
	suite.Equal(ErrorCode(400), ErrCodeDataNotFound)
	suite.Equal(ErrorCode(500), ErrCodeResultWriteFailed)
}

func (suite *ErrorTestSuite) TestInsufficientHistoryError() {
	err := &InsufficientHistoryError{
		Required: 24,
		Actual:   5,
		Series:   "close_sma_24",
		Message:  "insufficient history for calculation",
	}
	suite.Equal("insufficient history for calculation", err.Error())
	suite.Equal(24, err.Required)
	suite.Equal(5, err.Actual)
	suite.Equal("close_sma_24", err.Series)
}

func (suite *ErrorTestSuite) TestNewInsufficientHistoryError() {
	err := NewInsufficientHistoryError(14, 10, "atr", "insufficient history for ATR calculation")
	suite.NotNil(err)
	suite.Equal(14, err.Required)
	suite.Equal(10, err.Actual)
	suite.Equal("atr", err.Series)
	suite.Equal("insufficient history for ATR calculation", err.Message)
	suite.Equal("insufficient history for ATR calculation", err.Error())
}

func (suite *ErrorTestSuite) TestNewInsufficientHistoryErrorf() {
	err := NewInsufficientHistoryErrorf(3, 2, "sessions", "need %d sessions for edge detection, got %d", 3, 2)
	suite.NotNil(err)
	suite.Equal(3, err.Required)
	suite.Equal(2, err.Actual)
	suite.Equal("sessions", err.Series)
	suite.Equal("need 3 sessions for edge detection, got 2", err.Message)
}

func (suite *ErrorTestSuite) TestIsInsufficientHistoryError() {
	// Test with InsufficientHistoryError
	historyErr := NewInsufficientHistoryError(14, 10, "atr", "insufficient history")
	suite.True(IsInsufficientHistoryError(historyErr))

	// Test with standard error
	stdErr := errors.New("standard error")
	suite.False(IsInsufficientHistoryError(stdErr))

	// Test with *Error type
	codedErr := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.False(IsInsufficientHistoryError(codedErr))

	// Test with nil
	suite.False(IsInsufficientHistoryError(nil))
}

func (suite *ErrorTestSuite) TestIsInsufficientHistoryErrorWrapped() {
	historyErr := NewInsufficientHistoryError(24, 5, "", "insufficient history for period 24")
	wrapped := Wrap(ErrCodeInsufficientHistory, "validation failed", historyErr)
	suite.True(IsInsufficientHistoryError(wrapped))
}
