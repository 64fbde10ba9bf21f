package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/iliyamo/cinema-ebooking/internal/model"
	"github.com/iliyamo/cinema-ebooking/internal/utils"
)

const paymentSelect = `SELECT id, user_id, provider, provider_token, COALESCE(brand, ''),
       COALESCE(last4, ''), exp_month, exp_year, is_default,
       COALESCE(billing_address, ''), created_at, updated_at
  FROM payment_methods`

// PaymentMethodRepo stores cards.  Provider token and last4 are sealed with
// the card cipher on write and opened on read.
type PaymentMethodRepo struct {
	DB     *sql.DB
	cipher *utils.CardCipher
}

func NewPaymentMethodRepo(db *sql.DB, cipher *utils.CardCipher) *PaymentMethodRepo {
	return &PaymentMethodRepo{DB: db, cipher: cipher}
}

func (r *PaymentMethodRepo) scan(row rowScanner) (model.PaymentMethod, error) {
	var (
		pm        model.PaymentMethod
		month, yr sql.NullInt64
	)
	err := row.Scan(&pm.ID, &pm.UserID, &pm.Provider, &pm.ProviderToken, &pm.Brand,
		&pm.Last4, &month, &yr, &pm.IsDefault, &pm.BillingAddress, &pm.CreatedAt, &pm.UpdatedAt)
	if err != nil {
		return pm, err
	}
	pm.ExpMonth, pm.ExpYear = intPtr(month), intPtr(yr)
	if pm.ProviderToken, err = r.cipher.Decrypt(pm.ProviderToken); err != nil {
		return pm, fmt.Errorf("decrypt provider token of payment method %d: %w", pm.ID, err)
	}
	if pm.Last4, err = r.cipher.Decrypt(pm.Last4); err != nil {
		return pm, fmt.Errorf("decrypt last4 of payment method %d: %w", pm.ID, err)
	}
	return pm, nil
}

// ListByUser returns the user's cards, newest first.
func (r *PaymentMethodRepo) ListByUser(ctx context.Context, userID uint64) ([]model.PaymentMethod, error) {
	rows, err := r.DB.QueryContext(ctx, paymentSelect+" WHERE user_id = ? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PaymentMethod{}
	for rows.Next() {
		pm, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pm)
	}
	return out, rows.Err()
}

// GetByID returns one card or ErrNotFound.
func (r *PaymentMethodRepo) GetByID(ctx context.Context, id uint64) (model.PaymentMethod, error) {
	pm, err := r.scan(r.DB.QueryRowContext(ctx, paymentSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return pm, ErrNotFound
	}
	return pm, err
}

// GetDefault returns the user's default card or ErrNotFound.
func (r *PaymentMethodRepo) GetDefault(ctx context.Context, userID uint64) (model.PaymentMethod, error) {
	pm, err := r.scan(r.DB.QueryRowContext(ctx,
		paymentSelect+" WHERE user_id = ? AND is_default = 1 ORDER BY id LIMIT 1", userID))
	if errors.Is(err, sql.ErrNoRows) {
		return pm, ErrNotFound
	}
	return pm, err
}

// Create inserts a card unless the user already holds MaxPaymentMethods, in
// which case a *LimitError is returned.  The count and insert share a
// transaction with the count rows locked.
func (r *PaymentMethodRepo) Create(ctx context.Context, pm model.PaymentMethod) (uint64, error) {
	var id uint64
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		n, err := countPaymentMethods(ctx, tx, pm.UserID)
		if err != nil {
			return err
		}
		if n >= model.MaxPaymentMethods {
			return &LimitError{Limit: model.MaxPaymentMethods, Current: n}
		}
		id, err = insertPaymentMethod(ctx, tx, r.cipher, pm)
		return err
	})
	return id, err
}

// UpdateBillingAddress changes the only mutable column.
func (r *PaymentMethodRepo) UpdateBillingAddress(ctx context.Context, id uint64, billing string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE payment_methods SET billing_address = ? WHERE id = ?", nullStr(billing), id)
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

// Delete removes a card and returns the number of rows deleted.
func (r *PaymentMethodRepo) Delete(ctx context.Context, id uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM payment_methods WHERE id = ?", id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func countPaymentMethods(ctx context.Context, ex execer, userID uint64) (int, error) {
	var n int
	err := ex.QueryRowContext(ctx, "SELECT COUNT(*) FROM payment_methods WHERE user_id = ? FOR UPDATE", userID).Scan(&n)
	return n, err
}

func insertPaymentMethod(ctx context.Context, ex execer, cipher *utils.CardCipher, pm model.PaymentMethod) (uint64, error) {
	if pm.Provider == "" {
		pm.Provider = "dev"
	}
	token, err := cipher.Encrypt(pm.ProviderToken)
	if err != nil {
		return 0, err
	}
	last4, err := cipher.Encrypt(pm.Last4)
	if err != nil {
		return 0, err
	}
	res, err := ex.ExecContext(ctx,
		`INSERT INTO payment_methods
		   (user_id, provider, provider_token, brand, last4, exp_month, exp_year, is_default, billing_address)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pm.UserID, pm.Provider, token, nullStr(pm.Brand), nullStr(last4),
		nullInt(pm.ExpMonth), nullInt(pm.ExpYear), pm.IsDefault, nullStr(pm.BillingAddress))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// CardPatch carries optional default-card fields; nil keeps the stored value.
type CardPatch struct {
	Brand         *string
	Last4         *string
	ProviderToken *string
	ExpMonth      *int
	ExpYear       *int
}

// patchDefaultCard updates the default card, or inserts one as default when
// the user has none and is still under the card limit.
func patchDefaultCard(ctx context.Context, ex execer, cipher *utils.CardCipher, userID uint64, p CardPatch) error {
	var id uint64
	err := ex.QueryRowContext(ctx,
		"SELECT id FROM payment_methods WHERE user_id = ? AND is_default = 1 LIMIT 1", userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		n, err := countPaymentMethods(ctx, ex, userID)
		if err != nil {
			return err
		}
		if n >= model.MaxPaymentMethods {
			return &LimitError{Limit: model.MaxPaymentMethods, Current: n}
		}
		pm := model.PaymentMethod{UserID: userID, IsDefault: true, ExpMonth: p.ExpMonth, ExpYear: p.ExpYear}
		if p.Brand != nil {
			pm.Brand = *p.Brand
		}
		if p.Last4 != nil {
			pm.Last4 = *p.Last4
		}
		if p.ProviderToken != nil {
			pm.ProviderToken = *p.ProviderToken
		}
		_, err = insertPaymentMethod(ctx, ex, cipher, pm)
		return err
	}
	if err != nil {
		return err
	}

	set := map[string]any{}
	if p.Brand != nil {
		set["brand"] = *p.Brand
	}
	if p.Last4 != nil {
		enc, err := cipher.Encrypt(*p.Last4)
		if err != nil {
			return err
		}
		set["last4"] = enc
	}
	if p.ProviderToken != nil {
		enc, err := cipher.Encrypt(*p.ProviderToken)
		if err != nil {
			return err
		}
		set["provider_token"] = enc
	}
	if p.ExpMonth != nil {
		set["exp_month"] = *p.ExpMonth
	}
	if p.ExpYear != nil {
		set["exp_year"] = *p.ExpYear
	}
	if len(set) == 0 {
		return nil
	}
	query, args, err := sq.Update("payment_methods").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, query, args...)
	return err
}
