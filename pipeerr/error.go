// Package pipeerr provides a typed error that every component boundary
// converts to before returning, so a caller never sees a raw Go error or
// panic escape the orchestrator.
package pipeerr

import (
	"errors"
	"fmt"
)

// Code identifies the taxonomy of failures the orchestrator can surface.
type Code string

const (
	CodeInputMissing       Code = "input_missing"
	CodeTemplateNotFound   Code = "template_not_found"
	CodeTemplateFileMissing Code = "template_file_missing"
	CodeJenkinsUnreachable Code = "jenkins_unreachable"
	CodeJenkinsAPIError    Code = "jenkins_api_error"
	CodeQueueTimeout       Code = "queue_timeout"
	CodeStreamingTimeout   Code = "streaming_timeout"
	CodeStoreError         Code = "store_error"
	CodeUnknownTool        Code = "unknown_tool"
	CodeInternal           Code = "internal_error"
)

// Error is a structured, wrappable error carrying the failing operation and
// enough context to diagnose without a stack trace.
type Error struct {
	Code    Code
	Op      string // the operation/stage that failed, e.g. "deploy.create_job"
	Message string
	Cause   error
}

// New constructs an Error with no underlying cause.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap constructs an Error around an existing error.
func Wrap(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Message: err.Error(), Cause: err}
}

// Wrapf constructs an Error around an existing error with a formatted message.
func Wrapf(code Code, op string, err error, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...), Cause: err}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Code, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// As reports whether err (or something it wraps) is a *Error, returning it.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
