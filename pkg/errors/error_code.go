package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidDirection     ErrorCode = 102
	ErrCodeInvalidStopPolicy    ErrorCode = 103
	ErrCodeInvalidPeriod        ErrorCode = 104
	ErrCodeInvalidMultiplier    ErrorCode = 105
	ErrCodeMissingParameter     ErrorCode = 106
	ErrCodeInvalidPrecision     ErrorCode = 107
	ErrCodeInvalidExitPrice     ErrorCode = 108

	// Series errors (200-299)
	ErrCodeSeriesMisaligned    ErrorCode = 200
	ErrCodeInsufficientHistory ErrorCode = 201
	ErrCodeEmptySeries         ErrorCode = 202

	// Indicator errors (300-399)
	ErrCodeIndicatorCalculation ErrorCode = 300

	// Data source errors (400-499)
	ErrCodeDataNotFound          ErrorCode = 400
	ErrCodeDataSourceUnavailable ErrorCode = 401
	ErrCodeQueryFailed           ErrorCode = 402
	ErrCodeDataParseFailed       ErrorCode = 403

	// Result errors (500-599)
	ErrCodeResultWriteFailed ErrorCode = 500
)
