package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// SessionToken is an opaque long-lived token exchanged for new access
// tokens.  Only its hash is stored server side.
type SessionToken struct {
	Raw string    `json:"token"`
	Exp time.Time `json:"expires"`
}

// NewSessionToken returns 32 random bytes hex encoded, valid for ttlDays.
func NewSessionToken(ttlDays int, now time.Time) (SessionToken, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Raw: hex.EncodeToString(b), Exp: now.Add(time.Duration(ttlDays) * 24 * time.Hour)}, nil
}

// HashSessionToken is the lookup key persisted for a raw session token.
func HashSessionToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
