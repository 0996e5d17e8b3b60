package shapeclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/broady/shapeclient/apierror"
	"github.com/broady/shapeclient/document"
	"github.com/broady/shapeclient/httpbinding"
	"github.com/broady/shapeclient/transport"
	"github.com/broady/shapeclient/wire"
)

// ErrorCode represents a machine-readable error code.
type ErrorCode string

const (
	CodeInvalidArgument   ErrorCode = "invalid_argument"
	CodeSerialization     ErrorCode = "serialization"
	CodeDeserialization   ErrorCode = "deserialization"
	CodeUnauthenticated   ErrorCode = "unauthenticated"
	CodeEndpoint          ErrorCode = "endpoint"
	CodeTransport         ErrorCode = "transport"
	CodeAPI               ErrorCode = "api_error"
	CodeResourceExhausted ErrorCode = "resource_exhausted"
	CodeCanceled          ErrorCode = "canceled"
	CodeDeadlineExceeded  ErrorCode = "deadline_exceeded"
	CodeNotFound          ErrorCode = "not_found"
	CodeInternal          ErrorCode = "internal"
)

// Error is the error type returned by every call. Err holds the cause; use
// errors.As to reach API errors such as a generated NotFoundError.
type Error struct {
	Code      ErrorCode
	Operation string
	Message   string

	// Attempts is the number of transmissions made.
	Attempts int

	Err error
}

func (e *Error) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Operation, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates an error with no cause.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates an error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrRetryQuotaExceeded is returned when the shared retry quota cannot pay
// for another attempt.
var ErrRetryQuotaExceeded = errors.New("retry quota exceeded")

// ErrMaxAttempts is returned when a retry strategy runs out of attempts.
var ErrMaxAttempts = errors.New("max attempts reached")

// stageError tags a failure with the pipeline stage that produced it.
type stageError struct {
	code ErrorCode
	err  error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func atStage(code ErrorCode, err error) error {
	if err == nil {
		return nil
	}
	var se *stageError
	if errors.As(err, &se) {
		return err
	}
	return &stageError{code: code, err: err}
}

// wrapError converts any failure into an *Error for op.
func wrapError(op string, attempts int, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Operation == "" || e.Attempts == 0 {
			c := *e
			if c.Operation == "" {
				c.Operation = op
			}
			if c.Attempts == 0 {
				c.Attempts = attempts
			}
			return &c
		}
		return e
	}
	cause := err
	var se *stageError
	if errors.As(err, &se) {
		cause = se.err
	}
	return &Error{
		Code:      classify(err),
		Operation: op,
		Message:   cause.Error(),
		Attempts:  attempts,
		Err:       cause,
	}
}

// classify maps a failure to an ErrorCode.
func classify(err error) ErrorCode {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.Is(err, ErrRetryQuotaExceeded):
		return CodeResourceExhausted
	}
	if _, ok := apierror.As(err); ok {
		return CodeAPI
	}
	var sendErr *transport.SendError
	if errors.As(err, &sendErr) {
		return CodeTransport
	}
	var labelErr *httpbinding.LabelError
	if errors.As(err, &labelErr) {
		return CodeInvalidArgument
	}
	var se *stageError
	if errors.As(err, &se) {
		return se.code
	}
	var (
		missing    *document.MissingRequiredFieldError
		union      *document.MalformedUnionError
		mismatch   *document.TypeMismatchError
		parseErr   *wire.ParseError
		validation validator.ValidationErrors
	)
	switch {
	case errors.As(err, &missing), errors.As(err, &union),
		errors.As(err, &mismatch), errors.As(err, &validation):
		return CodeInvalidArgument
	case errors.As(err, &parseErr):
		return CodeDeserialization
	}
	return CodeInternal
}

// ValidationMessage renders validator errors as "Field: message; ...".
func ValidationMessage(err error) string {
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return err.Error()
	}
	messages := make([]string, 0, len(valErrs))
	for _, ve := range valErrs {
		messages = append(messages, ve.Field()+": "+formatValidationError(ve))
	}
	return strings.Join(messages, "; ")
}

// formatValidationError describes a single failed validation tag.
func formatValidationError(ve validator.FieldError) string {
	p := ve.Param()
	switch ve.Tag() {
	case "required":
		return "required"
	case "min":
		return "must be at least " + p
	case "max":
		return "must be at most " + p
	case "oneof":
		return "must be one of: " + p
	case "url":
		return "must be a valid URL"
	case "lowercase", "uppercase":
		return "must be " + ve.Tag()
	case "alphanum":
		return "must contain only letters and digits"
	case "contains":
		return fmt.Sprintf("must contain %q", p)
	case "endswith":
		return fmt.Sprintf("must end with %q", p)
	case "excludesall":
		return fmt.Sprintf("must not contain any of %q", p)
	}
	if p != "" {
		return fmt.Sprintf("failed %s=%s validation", ve.Tag(), p)
	}
	return fmt.Sprintf("failed %s validation", ve.Tag())
}
