package playback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned by HTTPTransport for non-2xx responses.
type StatusError struct {
	StatusCode int
	Code       string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("progress sync: status %d (%s)", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("progress sync: status %d", e.StatusCode)
}

// Retriable reports whether a failed send is worth one more attempt.
// Client errors other than timeouts and rate limiting are final.
func Retriable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusRequestTimeout, se.StatusCode == http.StatusTooManyRequests:
			return true
		case se.StatusCode >= 400 && se.StatusCode < 500:
			return false
		}
	}
	return true
}
