package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// TransientError wraps an error that is safe to retry (rate limit, timeout,
// overloaded or failing model server).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// PermanentError wraps an error that must not be retried: bad request,
// invalid credentials or invalid parameters. It points at a caller or
// configuration bug rather than model flakiness.
type PermanentError struct {
	Err        error
	StatusCode int
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError wraps an error as permanent with an optional HTTP status code.
func NewPermanentError(err error, statusCode int) *PermanentError {
	return &PermanentError{Err: err, StatusCode: statusCode}
}

// IsPermanent reports whether err (or any error in its chain) is a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// transientMessages catch network failures that reach us as plain strings
// after the SDK has flattened them.
var transientMessages = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
	"overloaded",
}

// IsTransient reports whether a failed model or store call may succeed when
// repeated: a TransientError anywhere in the chain, a deadline, a network
// timeout, a reset or refused connection, or a known transient message.
// Cancellation and permanent errors are never transient.
func IsTransient(err error) bool {
	if err == nil || IsPermanent(err) || errors.Is(err, context.Canceled) {
		return false
	}

	var te *TransientError
	var netErr net.Error
	switch {
	case errors.As(err, &te),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED):
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientMessages {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// retryableStatus lists the API statuses worth retrying. 409 is lock
// contention on the provider side and 529 is the Anthropic overload code.
var retryableStatus = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusConflict:            true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
	529:                            true,
}

// IsTransientHTTPStatus reports whether a failed response with this status
// may be retried.
func IsTransientHTTPStatus(statusCode int) bool {
	return retryableStatus[statusCode]
}

// ClassifyHTTPStatus wraps err as transient or permanent based on the status
// code of a failed API response. Unlisted 4xx codes are permanent, unlisted
// 5xx codes are transient, anything else is returned as-is.
func ClassifyHTTPStatus(err error, statusCode int) error {
	switch {
	case err == nil:
		return nil
	case IsTransientHTTPStatus(statusCode), statusCode >= 500:
		return NewTransientError(err, statusCode)
	case statusCode >= 400:
		return NewPermanentError(err, statusCode)
	default:
		return err
	}
}
