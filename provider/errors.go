package provider

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedProvider is returned by factories for unknown provider names.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrInvalidConfig means a required credential or setting is missing or malformed.
	ErrInvalidConfig = errors.New("invalid provider configuration")

	// ErrInvalidRequest means the request violates a provider precondition.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrTimeout means the remote call exceeded its per-request timeout.
	ErrTimeout = errors.New("provider request timed out")

	// ErrOutcomeUnknown means the caller cancelled while the request was in flight.
	// The remote system may or may not have processed it.
	ErrOutcomeUnknown = errors.New("provider outcome unknown")

	// ErrTransient covers network failures, 429 and 5xx answers.
	ErrTransient = errors.New("transient provider failure")

	// ErrRejected means the provider answered and refused the operation.
	ErrRejected = errors.New("provider rejected request")
)

// Error wraps a failure of a single provider operation and keeps its cause.
type Error struct {
	Provider string
	Op       string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("%s failed", e.Op)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a provider error, e.g. NewError("DHL", "createShipment", "failed to create DHL shipment", err).
func NewError(providerName, op, message string, err error) *Error {
	return &Error{
		Provider: providerName,
		Op:       op,
		Message:  message,
		Err:      err,
	}
}

// RemoteError carries the HTTP status and body of a non-2xx provider answer.
type RemoteError struct {
	StatusCode int
	Body       string
	kind       error
}

func (e *RemoteError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, body)
}

func (e *RemoteError) Unwrap() error {
	return e.kind
}

// Rejectedf returns an ErrRejected-wrapped error with a formatted reason.
func Rejectedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// InvalidRequestf returns an ErrInvalidRequest-wrapped error with a formatted reason.
func InvalidRequestf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether err is safe to retry with the same idempotency key.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// ClassifyCancellation reports a failure that happened after the caller cancelled
// as ErrOutcomeUnknown: the remote side may already have acted on the request.
func ClassifyCancellation(ctx context.Context, err error) error {
	if err == nil || ctx.Err() == nil || errors.Is(err, ErrOutcomeUnknown) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)
}

// ErrorCode maps an error to a stable machine readable code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedProvider):
		return "unsupported_provider"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrOutcomeUnknown):
		return "outcome_unknown"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrRejected):
		return "rejected"
	default:
		return "provider_error"
	}
}
