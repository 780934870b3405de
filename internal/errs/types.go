// Package errs defines the error taxonomy shared across the sync engine.
package errs

import (
	"fmt"
)

// Kind categorizes an error for propagation and reporting decisions.
type Kind string

const (
	KindConnection       Kind = "connection"        // network/timeout reaching the wholesaler
	KindUpstream         Kind = "upstream"          // non-success HTTP status from the wholesaler
	KindMapping          Kind = "mapping"           // missing or malformed mapping configuration
	KindLookupUnresolved Kind = "lookup_unresolved" // reference token unmatched, auto-create disabled
	KindValidation       Kind = "validation"        // malformed incoming payload shape
	KindEndpointTemplate Kind = "endpoint_template" // placeholder substitution incomplete
	KindConfiguration    Kind = "configuration"     // unrecoverable wholesaler/engine configuration
	KindNotFound         Kind = "not_found"
)

// Error is the base type for all engine errors.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a diagnostic key/value to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error under a kind.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

// IsKind reports whether err (or anything it wraps) is an engine error of kind k.
func IsKind(err error, k Kind) bool {
	e := AsError(err)
	return e != nil && e.Kind == k
}

// AsError unwraps err to an *Error, or nil.
func AsError(err error) *Error {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}

// UpstreamError records a non-success response from a wholesaler API,
// retaining the raw status and a truncated body for diagnostics.
type UpstreamError struct {
	StatusCode int
	Body       string
	URL        string
}

const maxUpstreamBody = 2048

// NewUpstream builds an UpstreamError, truncating oversized bodies.
func NewUpstream(statusCode int, body, url string) *UpstreamError {
	if len(body) > maxUpstreamBody {
		body = body[:maxUpstreamBody]
	}
	return &UpstreamError{StatusCode: statusCode, Body: body, URL: url}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream: %s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}
