package model

import (
	"fmt"
	"strings"
)

type ErrorType string

const (
	ErrorAuthentication ErrorType = "authentication"
	ErrorRateLimit      ErrorType = "rate_limit"
	ErrorQuotaExceeded  ErrorType = "quota_exceeded"
	ErrorInvalidRequest ErrorType = "invalid_request"
	ErrorServer         ErrorType = "server_error"
	ErrorTimeout        ErrorType = "timeout"
	ErrorNetwork        ErrorType = "network"
	ErrorUnknown        ErrorType = "unknown"
)

var errorTypes = map[ErrorType]bool{
	ErrorAuthentication: true,
	ErrorRateLimit:      true,
	ErrorQuotaExceeded:  true,
	ErrorInvalidRequest: true,
	ErrorServer:         true,
	ErrorTimeout:        true,
	ErrorNetwork:        true,
	ErrorUnknown:        true,
}

func (t ErrorType) Valid() bool {
	return errorTypes[t]
}

// ErrorDetails is the classified form of a failed provider call.
type ErrorDetails struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Retryable  bool      `json:"retryable"`
	StatusCode int       `json:"status_code,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	ProviderID string    `json:"provider_id,omitempty"`
	Attempts   int       `json:"attempts,omitempty"`

	cause error
}

// NewErrorDetails wraps cause with a classification.
func NewErrorDetails(typ ErrorType, retryable bool, cause error) *ErrorDetails {
	d := &ErrorDetails{Type: typ, Retryable: retryable, cause: cause}
	if cause != nil {
		d.Message = cause.Error()
	}
	return d
}

func (e *ErrorDetails) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	if e.ProviderID != "" {
		fmt.Fprintf(&b, " from provider %s", e.ProviderID)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *ErrorDetails) Unwrap() error {
	return e.cause
}

// Is matches another *ErrorDetails of the same type.
func (e *ErrorDetails) Is(target error) bool {
	t, ok := target.(*ErrorDetails)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// WithProvider returns a copy annotated with the provider and attempt count.
func (e *ErrorDetails) WithProvider(providerID string, attempts int) *ErrorDetails {
	out := *e
	out.ProviderID = providerID
	out.Attempts = attempts
	return &out
}

// HTTPError is returned by provider invokers that speak HTTP.
type HTTPError struct {
	Status  int
	Request string
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider returned status %d", e.Status)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Message)
}

func (e *HTTPError) StatusCode() int   { return e.Status }
func (e *HTTPError) RequestID() string { return e.Request }
