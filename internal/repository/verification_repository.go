package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-ebooking/internal/model"
)

const codeSelect = "SELECT vc.id, vc.user_id, vc.code, vc.expires_at, vc.used_at, vc.sent_at FROM verification_codes vc"

// VerificationRepo stores email verification and password reset codes.
type VerificationRepo struct{ DB *sql.DB }

func NewVerificationRepo(db *sql.DB) *VerificationRepo { return &VerificationRepo{DB: db} }

func scanCode(row rowScanner) (model.VerificationCode, error) {
	var (
		vc   model.VerificationCode
		used sql.NullTime
	)
	if err := row.Scan(&vc.ID, &vc.UserID, &vc.Code, &vc.ExpiresAt, &used, &vc.SentAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return vc, ErrNotFound
		}
		return vc, err
	}
	if used.Valid {
		t := used.Time
		vc.UsedAt = &t
	}
	return vc, nil
}

func insertCode(ctx context.Context, ex execer, userID uint64, code string, expires, sent time.Time) error {
	_, err := ex.ExecContext(ctx,
		"INSERT INTO verification_codes (user_id, code, expires_at, sent_at) VALUES (?, ?, ?, ?)",
		userID, code, expires, sent)
	return err
}

// Create stores a new code for the user.
func (r *VerificationRepo) Create(ctx context.Context, userID uint64, code string, expires, sent time.Time) error {
	return insertCode(ctx, r.DB, userID, code, expires, sent)
}

// FindForEmail returns the most recently sent code with the given value that
// belongs to the user with the given email.
func (r *VerificationRepo) FindForEmail(ctx context.Context, email, code string) (model.VerificationCode, error) {
	return scanCode(r.DB.QueryRowContext(ctx,
		codeSelect+" JOIN users u ON u.id = vc.user_id WHERE u.email = ? AND vc.code = ? ORDER BY vc.sent_at DESC, vc.id DESC LIMIT 1",
		NormalizeEmail(email), code))
}

// FindByCode returns the most recently sent code with the given value.
func (r *VerificationRepo) FindByCode(ctx context.Context, code string) (model.VerificationCode, error) {
	return scanCode(r.DB.QueryRowContext(ctx,
		codeSelect+" WHERE vc.code = ? ORDER BY vc.sent_at DESC, vc.id DESC LIMIT 1", code))
}

// Latest returns the user's most recently sent code.
func (r *VerificationRepo) Latest(ctx context.Context, userID uint64) (model.VerificationCode, error) {
	return scanCode(r.DB.QueryRowContext(ctx,
		codeSelect+" WHERE vc.user_id = ? ORDER BY vc.sent_at DESC, vc.id DESC LIMIT 1", userID))
}

// ConsumeEmailCode marks the code used and the user's email verified.  The
// used_at guard makes a concurrent second consume fail with ErrCodeUsed.
func (r *VerificationRepo) ConsumeEmailCode(ctx context.Context, vc model.VerificationCode, now time.Time) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE verification_codes SET used_at = ? WHERE id = ? AND used_at IS NULL", now, vc.ID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrCodeUsed
		}
		_, err = tx.ExecContext(ctx, "UPDATE users SET email_verified_at = ? WHERE id = ?", now, vc.UserID)
		return err
	})
}

// ReplaceWithResetCode drops every code of the user and stores a fresh one.
func (r *VerificationRepo) ReplaceWithResetCode(ctx context.Context, userID uint64, code string, expires, sent time.Time) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM verification_codes WHERE user_id = ?", userID); err != nil {
			return err
		}
		return insertCode(ctx, tx, userID, code, expires, sent)
	})
}

// ResetPassword stores the new hash and deletes the consumed reset code.
func (r *VerificationRepo) ResetPassword(ctx context.Context, vc model.VerificationCode, hash []byte) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM verification_codes WHERE id = ?", vc.ID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrCodeUsed
		}
		_, err = tx.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", hash, vc.UserID)
		return err
	})
}

// PurgeStale deletes codes that expired or were used before cutoff.
func (r *VerificationRepo) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM verification_codes WHERE expires_at < ? OR (used_at IS NOT NULL AND used_at < ?)", cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
