// Package apierror defines the errors a service returns and how they are
// classified for retries.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/broady/shapeclient/shapegen/model"
)

// Fault says which side of the exchange caused an error.
type Fault string

const (
	FaultUnknown Fault = ""
	FaultClient  Fault = "client"
	FaultServer  Fault = "server"
)

// APIError is implemented by every error decoded from a service response.
type APIError interface {
	error
	ErrorCode() string
	ErrorMessage() string
	ErrorFault() Fault
	HTTPStatusCode() int
}

// RetryInfo classifies an error for retry strategies.
type RetryInfo struct {
	Retryable  bool
	Throttling bool

	// RetryAfter is a server-provided delay hint, zero if absent.
	RetryAfter time.Duration
}

// Meta carries the data every modeled error has. Generated error types embed
// it.
type Meta struct {
	Code       string
	Message    string
	StatusCode int
	Fault      Fault

	// Retryable and Throttling come from the retryable trait.
	Retryable  bool
	Throttling bool

	RetryAfter time.Duration
}

// NewMeta builds the metadata for an error shape.
func NewMeta(s *model.Shape, message string, status int) Meta {
	m := Meta{
		Code:       s.ID.Name(),
		Message:    message,
		StatusCode: status,
		Fault:      Fault(s.Fault()),
	}
	if s.Traits.Has(model.TraitRetryable) {
		var rt model.RetryableTrait
		_ = s.Traits.Decode(model.TraitRetryable, &rt)
		m.Retryable = true
		m.Throttling = rt.Throttling
	}
	return m
}

func (m *Meta) Error() string {
	if m.Message == "" {
		return fmt.Sprintf("api error %s", m.Code)
	}
	return fmt.Sprintf("api error %s: %s", m.Code, m.Message)
}

func (m *Meta) ErrorCode() string    { return m.Code }
func (m *Meta) ErrorMessage() string { return m.Message }
func (m *Meta) ErrorFault() Fault    { return m.Fault }
func (m *Meta) HTTPStatusCode() int  { return m.StatusCode }

// SetMeta replaces the metadata. Dispatchers use it to fill in generated
// error values.
func (m *Meta) SetMeta(v Meta) { *m = v }

// RetryInfo classifies the error: server faults and 5xx statuses are
// transient, the retryable trait is honoured, and 429 means throttling.
func (m *Meta) RetryInfo() RetryInfo {
	info := RetryInfo{
		Retryable:  m.Retryable || m.Fault == FaultServer || m.StatusCode >= 500,
		Throttling: m.Throttling || m.StatusCode == http.StatusTooManyRequests,
		RetryAfter: m.RetryAfter,
	}
	if info.Throttling {
		info.Retryable = true
	}
	return info
}

// ModeledError is a modeled error without a registered Go type. Fields holds
// the decoded members.
type ModeledError struct {
	Meta
	Shape  model.ShapeID
	Fields map[string]any
}

// UnknownError is an error response that matched no modeled error.
type UnknownError struct {
	Code       string
	Message    string
	StatusCode int
	RetryAfter time.Duration
}

func (e *UnknownError) Error() string {
	code := e.Code
	if code == "" {
		code = "Unknown"
	}
	return fmt.Sprintf("api error %s (status %d): %s", code, e.StatusCode, e.Message)
}

func (e *UnknownError) ErrorCode() string    { return e.Code }
func (e *UnknownError) ErrorMessage() string { return e.Message }
func (e *UnknownError) HTTPStatusCode() int  { return e.StatusCode }

func (e *UnknownError) ErrorFault() Fault {
	switch {
	case e.StatusCode >= 500:
		return FaultServer
	case e.StatusCode >= 400:
		return FaultClient
	}
	return FaultUnknown
}

func (e *UnknownError) RetryInfo() RetryInfo {
	throttle := e.StatusCode == http.StatusTooManyRequests
	return RetryInfo{
		Retryable:  throttle || e.StatusCode >= 500,
		Throttling: throttle,
		RetryAfter: e.RetryAfter,
	}
}

// Classify returns the retry classification of err, or the zero RetryInfo
// when err carries none.
func Classify(err error) RetryInfo {
	var c interface{ RetryInfo() RetryInfo }
	if errors.As(err, &c) {
		return c.RetryInfo()
	}
	return RetryInfo{}
}

// As finds the first APIError in err's chain.
func As(err error) (APIError, bool) {
	var apiErr APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
