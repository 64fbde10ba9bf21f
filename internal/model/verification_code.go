package model

import "time"

const (
	EmailCodeTTL   = 24 * time.Hour  // email verification code lifetime
	ResetCodeTTL   = time.Hour       // password reset code lifetime
	ResendCooldown = time.Minute     // minimum gap between verification emails
)

// VerificationCode mirrors the `verification_codes` table.  The same table
// holds email verification and password reset codes.
type VerificationCode struct {
	ID        uint64
	UserID    uint64
	Code      string
	ExpiresAt time.Time
	UsedAt    *time.Time
	SentAt    time.Time
}

// Used reports whether the code was already consumed.
func (v VerificationCode) Used() bool { return v.UsedAt != nil }

// Expired reports whether the code is past its expiry at now.
func (v VerificationCode) Expired(now time.Time) bool { return now.After(v.ExpiresAt) }
