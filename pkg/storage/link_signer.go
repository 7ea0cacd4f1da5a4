package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrTokenMalformed = errors.New("storage: malformed link token")
	ErrTokenSignature = errors.New("storage: link token signature mismatch")
	ErrTokenExpired   = errors.New("storage: link token expired")
)

// LinkClaims is the payload of a download token.
type LinkClaims struct {
	Ref string `json:"r"`
	Key string `json:"k"`
	Exp int64  `json:"e"`
}

// ExpiresAt returns the expiry as a UTC time.
func (c LinkClaims) ExpiresAt() time.Time {
	return time.Unix(c.Exp, 0).UTC()
}

// LinkSigner issues tokens of the form base64(claims).base64(hmac-sha256).
type LinkSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewLinkSigner returns a signer whose tokens live for ttl (24h when unset).
func NewLinkSigner(secret string, ttl time.Duration) *LinkSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &LinkSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL reports the token lifetime.
func (s *LinkSigner) TTL() time.Duration {
	return s.ttl
}

// Sign binds a stored key to ref (the timetable ID) until now+TTL.
func (s *LinkSigner) Sign(ref, key string) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("storage: signing secret missing")
	}
	if ref == "" || key == "" {
		return "", time.Time{}, errors.New("storage: ref and key are required")
	}
	claims := LinkClaims{Ref: ref, Key: key, Exp: s.now().Add(s.ttl).Unix()}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + s.mac(body), claims.ExpiresAt(), nil
}

// Verify checks the signature before decoding, then the expiry.
func (s *LinkSigner) Verify(token string) (LinkClaims, error) {
	body, sig, ok := strings.Cut(token, ".")
	if !ok || body == "" || sig == "" {
		return LinkClaims{}, ErrTokenMalformed
	}
	if !hmac.Equal([]byte(sig), []byte(s.mac(body))) {
		return LinkClaims{}, ErrTokenSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return LinkClaims{}, ErrTokenMalformed
	}
	var claims LinkClaims
	if err := json.Unmarshal(raw, &claims); err != nil || claims.Key == "" || strings.Contains(claims.Key, "..") {
		return LinkClaims{}, ErrTokenMalformed
	}
	if !s.now().Before(claims.ExpiresAt()) {
		return LinkClaims{}, ErrTokenExpired
	}
	return claims, nil
}

func (s *LinkSigner) mac(body string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
