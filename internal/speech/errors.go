package speech

import (
	"errors"
	"fmt"

	"github.com/dgnsrekt/ttsmem/internal/cache"
	"github.com/dgnsrekt/ttsmem/internal/config"
	"github.com/dgnsrekt/ttsmem/internal/stream"
	"github.com/dgnsrekt/ttsmem/internal/text"
)

// ErrorCode identifies a class of speech errors.
type ErrorCode string

const (
	// Caller errors, reported before any state is touched
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	CodeBusy            ErrorCode = "BUSY"

	// Recoverable failures
	CodeLoadFailed      ErrorCode = "LOAD_FAILED"
	CodeSynthesisFailed ErrorCode = "SYNTHESIS_FAILED"
	CodeOutputFailed    ErrorCode = "OUTPUT_FAILED"

	// Cooperative stops
	CodeCanceled ErrorCode = "CANCELED"

	CodeClosed ErrorCode = "CLOSED"
)

// Error is a speech error with a code and an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, so the exported sentinels work
// with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrBusy            = &Error{Code: CodeBusy, Message: "already speaking"}
	ErrLoadFailed      = &Error{Code: CodeLoadFailed, Message: "voice model load failed"}
	ErrSynthesisFailed = &Error{Code: CodeSynthesisFailed, Message: "synthesis failed"}
	ErrOutputFailed    = &Error{Code: CodeOutputFailed, Message: "audio output failed"}
	ErrCanceled        = &Error{Code: CodeCanceled, Message: "canceled"}
	ErrClosed          = &Error{Code: CodeClosed, Message: "manager is closed"}
)

func newError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "" when
// there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// classify wraps an error from the lower layers in an *Error.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case stream.IsCooperativeStop(err):
		return newError(CodeCanceled, "speech stopped", err)
	case errors.Is(err, stream.ErrBusy):
		return newError(CodeBusy, "synthesizer is busy", err)
	case errors.Is(err, cache.ErrLoadFailed):
		return newError(CodeLoadFailed, "could not load voice", err)
	case errors.Is(err, cache.ErrClosed):
		return newError(CodeClosed, "model cache is closed", err)
	case errors.Is(err, stream.ErrSynthesisFailed), errors.Is(err, stream.ErrModelNotReady):
		return newError(CodeSynthesisFailed, "synthesis failed", err)
	case errors.Is(err, cache.ErrInvalidArgument),
		errors.Is(err, stream.ErrInvalidArgument),
		errors.Is(err, text.ErrEmpty),
		errors.Is(err, text.ErrTooLong),
		errors.Is(err, config.ErrInvalid):
		return newError(CodeInvalidArgument, "invalid request", err)
	}
	return newError(CodeSynthesisFailed, "synthesis failed", err)
}
