package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-ebooking/internal/model"
)

const promotionSelect = `SELECT id, name, COALESCE(description, ''), percent_off, flat_off_cents,
       starts_at, ends_at, active FROM promotions`

// PromotionRepo manages promotions and their redemption codes.
type PromotionRepo struct{ DB *sql.DB }

func NewPromotionRepo(db *sql.DB) *PromotionRepo { return &PromotionRepo{DB: db} }

func scanPromotion(row rowScanner) (model.Promotion, error) {
	var (
		p       model.Promotion
		percent sql.NullFloat64
		flat    sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &percent, &flat, &p.StartsAt, &p.EndsAt, &p.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, ErrNotFound
		}
		return p, err
	}
	if percent.Valid {
		v := percent.Float64
		p.PercentOff = &v
	}
	p.FlatOffCents = intPtr(flat)
	return p, nil
}

func promotionArgs(p model.Promotion) []any {
	var percent sql.NullFloat64
	if p.PercentOff != nil {
		percent = sql.NullFloat64{Float64: *p.PercentOff, Valid: true}
	}
	return []any{p.Name, nullStr(p.Description), percent, nullInt(p.FlatOffCents), p.StartsAt, p.EndsAt, p.Active}
}

// List returns promotions, newest start first.
func (r *PromotionRepo) List(ctx context.Context) ([]model.Promotion, error) {
	rows, err := r.DB.QueryContext(ctx, promotionSelect+" ORDER BY starts_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Promotion{}
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetByID returns the promotion with its codes.
func (r *PromotionRepo) GetByID(ctx context.Context, id uint64) (model.Promotion, error) {
	p, err := scanPromotion(r.DB.QueryRowContext(ctx, promotionSelect+" WHERE id = ?", id))
	if err != nil {
		return p, err
	}
	p.Codes, err = r.ListCodes(ctx, id)
	return p, err
}

// Create inserts a promotion and returns its id.
func (r *PromotionRepo) Create(ctx context.Context, p model.Promotion) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO promotions (name, description, percent_off, flat_off_cents, starts_at, ends_at, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`, promotionArgs(p)...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// Update overwrites every column of the promotion.
func (r *PromotionRepo) Update(ctx context.Context, p model.Promotion) error {
	args := append(promotionArgs(p), p.ID)
	res, err := r.DB.ExecContext(ctx,
		`UPDATE promotions SET name = ?, description = ?, percent_off = ?, flat_off_cents = ?,
		        starts_at = ?, ends_at = ?, active = ? WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the promotion and its codes together.
func (r *PromotionRepo) Delete(ctx context.Context, id uint64) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM promotion_codes WHERE promotion_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM promotions WHERE id = ?", id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListCodes returns the promotion's codes in insertion order.
func (r *PromotionRepo) ListCodes(ctx context.Context, promotionID uint64) ([]model.PromotionCode, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, promotion_id, code, max_redemptions FROM promotion_codes WHERE promotion_id = ? ORDER BY id", promotionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PromotionCode{}
	for rows.Next() {
		var (
			c   model.PromotionCode
			lim sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.PromotionID, &c.Code, &lim); err != nil {
			return nil, err
		}
		c.MaxRedemptions = intPtr(lim)
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddCode attaches a redemption code to an existing promotion.
func (r *PromotionRepo) AddCode(ctx context.Context, c model.PromotionCode) (uint64, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM promotions WHERE id = ?", c.PromotionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO promotion_codes (promotion_id, code, max_redemptions) VALUES (?, ?, ?)",
		c.PromotionID, c.Code, nullInt(c.MaxRedemptions))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// DeleteCode removes a single code.
func (r *PromotionRepo) DeleteCode(ctx context.Context, codeID uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM promotion_codes WHERE id = ?", codeID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
