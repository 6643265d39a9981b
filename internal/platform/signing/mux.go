// Package signing issues signed playback tokens for the hosted video platform.
package signing

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Audiences accepted by the video platform.
const (
	AudienceVideo      = "v"
	AudienceThumbnail  = "t"
	AudienceStoryboard = "s"
)

var ErrMissingPlaybackID = errors.New("signing: playback id is required")

// Signer mints RS256 playback tokens for signed playback IDs.
type Signer struct {
	KeyID string
	Key   *rsa.PrivateKey
	TTL   time.Duration

	now func() time.Time
}

// Token is a signed playback grant together with the stream URL that uses it.
type Token struct {
	Token     string    `json:"token"`
	StreamURL string    `json:"streamUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// New parses a PEM private key. The key may be given raw or base64 encoded,
// which is how the video platform hands signing keys out.
func New(keyID, privateKey string, ttl time.Duration) (*Signer, error) {
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return nil, errors.New("signing: key id is required")
	}
	pemBytes := []byte(strings.TrimSpace(privateKey))
	if !strings.HasPrefix(string(pemBytes), "-----BEGIN") {
		decoded, err := base64.StdEncoding.DecodeString(string(pemBytes))
		if err != nil {
			return nil, fmt.Errorf("signing: decode key: %w", err)
		}
		pemBytes = decoded
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("signing: parse key: %w", err)
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Signer{KeyID: keyID, Key: key, TTL: ttl, now: time.Now}, nil
}

// Sign returns a token for the playback ID scoped to the given audience.
func (s *Signer) Sign(playbackID, audience string) (string, time.Time, error) {
	playbackID = strings.TrimSpace(playbackID)
	if playbackID == "" {
		return "", time.Time{}, ErrMissingPlaybackID
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	exp := now().Add(s.TTL).Truncate(time.Second)
	claims := jwt.RegisteredClaims{
		Subject:   playbackID,
		Audience:  jwt.ClaimStrings{audience},
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = s.KeyID
	signed, err := tok.SignedString(s.Key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Playback signs a video grant and builds the HLS URL for it.
func (s *Signer) Playback(streamBase, playbackID string) (Token, error) {
	signed, exp, err := s.Sign(playbackID, AudienceVideo)
	if err != nil {
		return Token{}, err
	}
	u, err := BuildStreamURL(streamBase, playbackID, signed)
	if err != nil {
		return Token{}, err
	}
	return Token{Token: signed, StreamURL: u, ExpiresAt: exp}, nil
}

// BuildStreamURL returns <base>/<playbackID>.m3u8?token=<token>.
func BuildStreamURL(base, playbackID, token string) (string, error) {
	if strings.TrimSpace(base) == "" {
		base = "https://stream.mux.com"
	}
	u, err := url.Parse(strings.TrimRight(base, "/") + "/" + url.PathEscape(playbackID) + ".m3u8")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
