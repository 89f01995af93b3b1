package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrSignatureInvalid   = errors.New("signature invalid")
	ErrStateConflict      = errors.New("order state conflict")
	ErrTransient          = errors.New("transient failure, retry later")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)

// ValidationError reports malformed input. It never reaches the state machine.
type ValidationError struct {
	Field  string
	Reason string
	Err    error // ErrInvalidOrder or ErrInvalidArgument
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	if e.Err == nil {
		return ErrInvalidArgument
	}
	return e.Err
}

// NewInvalidOrder is a shorthand for an order-shape ValidationError.
func NewInvalidOrder(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason, Err: ErrInvalidOrder}
}

// NewInvalidArgument is a shorthand for a request-level ValidationError.
func NewInvalidArgument(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason, Err: ErrInvalidArgument}
}

// GatewayError is a failure talking to the remote payment gateway.
// Retryable is false once the client has given up, even if the last
// attempt itself failed with a retryable status.
type GatewayError struct {
	Op         string
	StatusCode int
	Retryable  bool
	Attempts   int
	Err        error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("gateway %s failed", e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (http %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Error kinds exposed to external callers.
const (
	KindValidation       = "validation"
	KindGateway          = "gateway"
	KindSignatureInvalid = "signature_invalid"
	KindStateConflict    = "state_conflict"
	KindNotFound         = "not_found"
	KindTransient        = "transient"
	KindUnauthorized     = "unauthorized"
	KindForbidden        = "forbidden"
	KindInternal         = "internal"
)

// Kind classifies err into one of the external error kinds.
func Kind(err error) string {
	var ve *ValidationError
	var ge *GatewayError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve), errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrInvalidOrder):
		return KindValidation
	case errors.As(err, &ge):
		return KindGateway
	case errors.Is(err, ErrSignatureInvalid):
		return KindSignatureInvalid
	case errors.Is(err, ErrStateConflict):
		return KindStateConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	default:
		return KindInternal
	}
}
