package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/example/membership-portal/internal/platform/api"
)

const maxRequestBodyBytes = 64 << 10 // 64 KiB

// decodeJSON reads up to maxRequestBodyBytes from r.Body and decodes JSON into dst.
// On failure it writes a 400 response and returns false.
// Content-Type is not checked: beacons arrive as text/plain.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, rid string, dst *T) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(dst); err != nil {
		api.BadRequest(w, api.CodeInvalidJSON, "Invalid JSON", rid, nil)
		return false
	}
	return true
}
