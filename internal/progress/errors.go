package progress

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("progress: caller not authenticated")
	// ErrTransientStore wraps database failures a client may retry.
	ErrTransientStore = errors.New("progress: store unavailable")
	ErrNotFound       = errors.New("progress: record not found")
)

// ValidationError rejects a write before anything is stored.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "progress: invalid request: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err carries field-level validation detail.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
