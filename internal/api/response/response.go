// Package response writes the JSON envelopes every API handler returns.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/aitrader/internal/core"
)

// RequestIDHeader is set on the response by the logging middleware and
// echoed into Meta.
const RequestIDHeader = "X-Request-ID"

type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// SuccessResponse wraps handler data: {"data": ..., "meta": ...}.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail carries the core.Error code. Cause is only filled for
// core errors so internal failures never leak their text.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
	Meta  Meta        `json:"meta"`
}

func meta(w http.ResponseWriter) Meta {
	return Meta{Timestamp: time.Now().UTC(), RequestID: w.Header().Get(RequestIDHeader)}
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// JSON writes data in the success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, SuccessResponse{Data: data, Meta: meta(w)})
}

// Error writes err in the error envelope with the given status.
func Error(w http.ResponseWriter, status int, err error) {
	detail := ErrorDetail{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
	if ce, ok := coreError(err); ok {
		detail.Code, detail.Message = ce.Code, ce.Message
		if ce.Cause != nil {
			detail.Cause = ce.Cause.Error()
		}
	}
	write(w, status, ErrorResponse{Error: detail, Meta: meta(w)})
}

func coreError(err error) (*core.Error, bool) {
	var ce *core.Error
	if !errors.As(err, &ce) {
		return nil, false
	}
	return ce, true
}

// Fail writes err with the status Status derives from it.
func Fail(w http.ResponseWriter, err error) {
	Error(w, Status(err), err)
}

// Status maps an error to the HTTP status it is reported with.
func Status(err error) int {
	ce, ok := coreError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch ce.Code {
	case core.ErrNotFound.Code:
		return http.StatusNotFound
	case core.ErrUnauthorized.Code:
		return http.StatusUnauthorized
	case core.ErrUnsupportedTimeframe.Code, core.ErrInvalidInstrument.Code,
		core.ErrConfigInvalid.Code, core.ErrConfigMissing.Code:
		return http.StatusBadRequest
	case core.ErrInsufficientHistory.Code, core.ErrComputationSkipped.Code:
		return http.StatusUnprocessableEntity
	case core.ErrInsufficientBalance.Code:
		return http.StatusConflict
	case core.ErrDataUnavailable.Code:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
