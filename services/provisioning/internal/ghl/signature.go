// Package ghl verifies and decodes GoHighLevel CRM webhooks.
package ghl

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// SignatureHeader carries "t=<unix>,v1=<hex hmac>" for every delivery.
	SignatureHeader = "X-GHL-Signature"

	DefaultTolerance = 5 * time.Minute
	signingVersion   = "v1"
)

var (
	ErrInvalidHeader    = errors.New("ghl: invalid signature header")
	ErrNoValidSignature = errors.New("ghl: no valid signature found")
	ErrTimestampExpired = errors.New("ghl: timestamp outside tolerance")
)

// Verifier checks webhook signatures against a shared secret.
type Verifier struct {
	Secret    string
	Tolerance time.Duration
	Now       func() time.Time
}

func NewVerifier(secret string) Verifier {
	return Verifier{Secret: secret, Tolerance: DefaultTolerance, Now: time.Now}
}

// Verify returns nil when at least one v1 signature in header matches
// hmac-sha256(secret, "<t>.<payload>") and t is within tolerance.
// A zero tolerance skips the timestamp check.
func (v Verifier) Verify(payload []byte, header string) error {
	sh, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	if v.Tolerance > 0 {
		now := time.Now
		if v.Now != nil {
			now = v.Now
		}
		diff := now().Sub(time.Unix(sh.timestamp, 0))
		if diff < 0 {
			diff = -diff
		}
		if diff > v.Tolerance {
			return ErrTimestampExpired
		}
	}

	expected := Sign(sh.timestamp, payload, v.Secret)
	for _, sig := range sh.signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrNoValidSignature
}

type signatureHeader struct {
	timestamp  int64
	signatures []string
}

func parseSignatureHeader(header string) (signatureHeader, error) {
	var sh signatureHeader
	if strings.TrimSpace(header) == "" {
		return sh, ErrInvalidHeader
	}

	for _, pair := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return sh, ErrInvalidHeader
			}
			sh.timestamp = ts
		case signingVersion:
			sh.signatures = append(sh.signatures, val)
		}
	}

	if sh.timestamp == 0 || len(sh.signatures) == 0 {
		return sh, ErrInvalidHeader
	}
	return sh, nil
}

// Sign returns the hex v1 signature for payload sent at timestamp.
func Sign(timestamp int64, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d", timestamp)
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Header formats a complete signature header value.
func Header(timestamp int64, payload []byte, secret string) string {
	return fmt.Sprintf("t=%d,%s=%s", timestamp, signingVersion, Sign(timestamp, payload, secret))
}
