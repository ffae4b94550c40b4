// Package resilience classifies upstream failures and retries transient ones.
//
// Every external collaborator (registry, encyclopedia, geocoder, Overpass)
// is a third-party HTTP endpoint; a timeout or 5xx from any of them degrades
// to "no candidate from this source" at the orchestrator, but the failure
// must stay distinguishable from a legitimate empty result on the way there.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// UpstreamError wraps a collaborator failure that is safe to retry
// (timeouts, 429, 5xx, connection resets).
type UpstreamError struct {
	Err        error
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError wraps an error as a transient upstream failure with an
// optional HTTP status code.
func NewUpstreamError(err error, statusCode int) *UpstreamError {
	return &UpstreamError{Err: err, StatusCode: statusCode}
}

// IsTransient reports whether the error chain contains an UpstreamError or
// matches common transient network failure patterns.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether an HTTP status code is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
