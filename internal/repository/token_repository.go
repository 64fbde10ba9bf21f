package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// TokenRepo persists session (refresh) tokens by hash.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts a session token hash.
func (r *TokenRepo) Store(ctx context.Context, userID uint64, hash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO session_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)", userID, hash, exp)
	return err
}

// Validate returns the owner of a live token.  Unknown, revoked and expired
// tokens all yield ErrNotFound.
func (r *TokenRepo) Validate(ctx context.Context, hash string, now time.Time) (uint64, error) {
	var (
		userID  uint64
		expires time.Time
		revoked sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, expires_at, revoked_at FROM session_tokens WHERE token_hash = ? LIMIT 1",
		hash).Scan(&userID, &expires, &revoked)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && (revoked.Valid || now.After(expires))) {
		return 0, ErrNotFound
	}
	return userID, err
}

// Revoke marks a single token revoked.
func (r *TokenRepo) Revoke(ctx context.Context, hash string, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE session_tokens SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL", now, hash)
	return err
}

// RevokeAllForUser revokes every live token of the user.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE session_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL", now, userID)
	return err
}

// PurgeExpired deletes tokens that expired or were revoked before cutoff.
func (r *TokenRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM session_tokens WHERE expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
