package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	// Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrUnknownCharset is returned when a forced charset name is not recognized.
	ErrUnknownCharset = errors.New("unknown charset")

	// ErrBodyTooLarge is returned when a response body exceeds the configured
	// maximum size. A cut-off results page would parse as a short page.
	ErrBodyTooLarge = errors.New("response body exceeds maximum size")

	// ErrProxyCannotConnect is returned when the proxy address does not accept connections.
	ErrProxyCannotConnect = errors.New("cannot connect to SOCKS5 proxy")

	// ErrProxyNotSOCKS5 is returned when the proxy answers but not as a
	// SOCKS5 proxy without authentication.
	ErrProxyNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy accepting unauthenticated clients")
)

// HTTPError is returned when the board answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

// Error implements error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// IsRetryable reports whether the failure is likely temporary.
// 4xx responses are not retryable; 5xx and anything else are.
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode < 400 || e.StatusCode >= 500
}
