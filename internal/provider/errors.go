package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrQuotaExceeded matches any *Error raised for a rate-limit or
// out-of-credit response.
var ErrQuotaExceeded = errors.New("provider quota exceeded")

// Error is the single failure type returned by adapters.
type Error struct {
	Provider   string
	StatusCode int
	Quota      bool
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s api error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrQuotaExceeded && e.Quota
}

// Errorf wraps a transport or decoding failure.
func Errorf(name string, format string, args ...any) *Error {
	return &Error{Provider: name, Err: fmt.Errorf(format, args...)}
}

var quotaMarkers = []string{
	"quota",
	"rate limit",
	"rate_limit",
	"insufficient credit",
	"insufficient_quota",
	"resource_exhausted",
	"credit balance",
}

// StatusError builds an Error from a non-2xx response and classifies quota
// conditions by status code or body text.
func StatusError(name string, status int, body []byte) *Error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	quota := status == http.StatusTooManyRequests || status == http.StatusPaymentRequired
	if !quota {
		lower := strings.ToLower(msg)
		for _, m := range quotaMarkers {
			if strings.Contains(lower, m) {
				quota = true
				break
			}
		}
	}
	return &Error{
		Provider:   name,
		StatusCode: status,
		Quota:      quota,
		Err:        errors.New(msg),
	}
}

// IsQuota reports whether err is a quota / rate-limit failure.
func IsQuota(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
