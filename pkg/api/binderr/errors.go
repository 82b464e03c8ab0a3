// Package binderr builds echo.HTTPError with ErrorMessage bodies.
package binderr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/opst/modelfab/pkg/domain/report"
)

// ErrorMessage is the body of error responses.
type ErrorMessage struct {
	Reason string `json:"reason"`
	Advice string `json:"advice,omitempty"`
	See    string `json:"see,omitempty"`

	// Report tells which nodes made the request rejected.
	Report *report.Report `json:"report,omitempty"`

	Cause error `json:"-"`
}

// MarshalJSON is implemented so that echo writes the message as is,
// not as an error string.
func (e ErrorMessage) MarshalJSON() ([]byte, error) {
	type body ErrorMessage
	return json.Marshal(body(e))
}

func (em *ErrorMessage) UnmarshalJSON(b []byte) error {
	f := new(struct {
		Reason *string        `json:"reason"`
		Advice string         `json:"advice,omitempty"`
		See    string         `json:"see,omitempty"`
		Report *report.Report `json:"report,omitempty"`
	})
	if err := json.Unmarshal(b, f); err != nil {
		return err
	}
	if f.Reason == nil {
		return fmt.Errorf(`required field missing: "reason"`)
	}
	*em = ErrorMessage{Reason: *f.Reason, Advice: f.Advice, See: f.See, Report: f.Report}
	return nil
}

func (e ErrorMessage) String() string {
	lines := []string{e.Reason}
	if e.Advice != "" {
		lines = append(lines, e.Advice)
	}
	if e.Cause != nil {
		lines = append(lines, fmt.Sprint(" caused by:", e.Cause.Error()))
	}
	return strings.Join(lines, "\n")
}

func (e ErrorMessage) Error() string {
	return e.String()
}

func (e ErrorMessage) Unwrap() error {
	return e.Cause
}

type ErrorMessageOption func(in *ErrorMessage) *ErrorMessage

func WithAdvice(advice string) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if advice != "" {
			in.Advice = advice
		}
		return in
	}
}

func WithError(err error) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if err != nil {
			in.Cause = err
		}
		return in
	}
}

func WithSee(see string) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if see != "" {
			in.See = see
		}
		return in
	}
}

func WithReport(r *report.Report) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		in.Report = r
		return in
	}
}

func NewErrorMessage(code int, reason string, opts ...ErrorMessageOption) *echo.HTTPError {
	msg := ErrorMessage{Reason: reason}
	for _, opt := range opts {
		msg = *opt(&msg)
	}
	return echo.NewHTTPError(code, msg).SetInternal(msg)
}

func NotFound(advice string, see string, err error) *echo.HTTPError {
	return NewErrorMessage(http.StatusNotFound, "not found", WithAdvice(advice), WithSee(see), WithError(err))
}

func BadRequest(advice string, err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusBadRequest,
		"bad request",
		WithAdvice(advice),
		WithError(err),
	)
}

func Conflict(message string, options ...ErrorMessageOption) *echo.HTTPError {
	return NewErrorMessage(http.StatusConflict, message, options...)
}

// UpdateModelFailed is the rejection of an update request.
func UpdateModelFailed(r *report.Report, err error) *echo.HTTPError {
	return Conflict(
		"UpdateModelFailed",
		WithAdvice("resolve problems in the report, and retry with the latest model version."),
		WithReport(r),
		WithError(err),
	)
}

func ServiceUnavailable(advice string, err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusServiceUnavailable,
		"service unavailable temporaly",
		WithAdvice(advice),
		WithError(err),
	)
}

func InternalServerError(err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusInternalServerError,
		"unexpected error",
		WithAdvice("ask your system admin."),
		WithError(err),
	)
}
