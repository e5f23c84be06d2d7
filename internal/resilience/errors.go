package resilience

import (
	"errors"
	"net"
	"syscall"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/navigation"
)

// TransientError marks a portal failure that is safe to retry: a throttled
// or erroring endpoint (429, 5xx) or a transport-level fault.
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

// IsTransient reports whether a failed portal call may be retried. It folds
// the navigation taxonomy together with transport-level faults: timeouts and
// network errors retry, while anti-bot challenges and layout mismatches are
// systemic and fail every attempt until something outside the process changes.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if navigation.IsAntiBot(err) || navigation.IsStructureMismatch(err) {
		return false
	}
	if navigation.IsTimeout(err) || navigation.IsNetwork(err) {
		return true
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// A missing DNS record is a portal that does not exist; any other
	// resolution failure is worth another try.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return !dnsErr.IsNotFound
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED)
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
