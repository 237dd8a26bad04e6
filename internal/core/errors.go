// internal/core/errors.go
package core

import "fmt"

// Error carries a stable machine-readable Code. Errors match under
// errors.Is by code alone, so a wrapped ErrNotFound still is ErrNotFound.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError copies base's code and message and attaches cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Codes. The API maps them to HTTP statuses in api/response.
var (
	// Market data errors
	ErrDataUnavailable      = &Error{Code: "DATA_UNAVAILABLE", Message: "market data unavailable"}
	ErrUnsupportedTimeframe = &Error{Code: "UNSUPPORTED_TIMEFRAME", Message: "unsupported timeframe"}
	ErrInvalidInstrument    = &Error{Code: "INVALID_INSTRUMENT", Message: "invalid instrument"}

	// Analysis errors
	ErrInsufficientHistory = &Error{Code: "INSUFFICIENT_HISTORY", Message: "insufficient history for analysis"}
	ErrComputationSkipped  = &Error{Code: "COMPUTATION_SKIPPED", Message: "computation skipped"}
	ErrStrategyFailed      = &Error{Code: "STRATEGY_FAILED", Message: "strategy analysis failed"}

	// Lookup errors
	ErrNotFound = &Error{Code: "NOT_FOUND", Message: "not found"}

	// Access errors
	ErrUnauthorized = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid API key"}

	// Notifier errors
	ErrNotifierFailed = &Error{Code: "NOTIFIER_FAILED", Message: "notifier failed"}

	// Ledger errors
	ErrInsufficientBalance = &Error{Code: "INSUFFICIENT_BALANCE", Message: "insufficient balance"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)

// Errorf wraps a formatted cause in base's code. %w in format is honored.
func Errorf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}
