package kube

import (
	"context"
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// Error kinds used as metric labels
const (
	KindValidation   = "validation"
	KindTransientAPI = "transient_api"
	KindAPI          = "api"
	KindTimeout      = "timeout"
	KindCanceled     = "canceled"
	KindUnknown      = "unknown"
)

// TransientAPIError marks a cluster API failure that may succeed when retried
type TransientAPIError struct {
	Op  string
	Err error
}

func (e *TransientAPIError) Error() string {
	return fmt.Sprintf("transient error during %s: %v", e.Op, e.Err)
}

func (e *TransientAPIError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is, or wraps, a TransientAPIError
func IsTransient(err error) bool {
	var transient *TransientAPIError
	return errors.As(err, &transient)
}

// classify wraps err in a TransientAPIError when the API server indicated a
// temporary condition or the request never produced a status response
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case apierrors.IsServerTimeout(err),
		apierrors.IsTimeout(err),
		apierrors.IsTooManyRequests(err),
		apierrors.IsInternalError(err),
		apierrors.IsServiceUnavailable(err),
		apierrors.IsUnexpectedServerError(err):
		return &TransientAPIError{Op: op, Err: err}
	}

	var status apierrors.APIStatus
	if !errors.As(err, &status) {
		// Connection refused, resets and similar transport failures carry no status
		return &TransientAPIError{Op: op, Err: err}
	}

	return fmt.Errorf("%s: %w", op, err)
}

// ErrorKind maps an error to a short label for error-count metrics
func ErrorKind(err error) string {
	var status apierrors.APIStatus
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case IsTransient(err):
		return KindTransientAPI
	case errors.As(err, &status):
		return KindAPI
	default:
		return KindUnknown
	}
}
