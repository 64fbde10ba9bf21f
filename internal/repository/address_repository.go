package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/iliyamo/cinema-ebooking/internal/model"
)

// AddressRepo reads addresses.  Writes happen inside UserRepo transactions.
type AddressRepo struct{ DB *sql.DB }

func NewAddressRepo(db *sql.DB) *AddressRepo { return &AddressRepo{DB: db} }

// GetByType returns the user's address of the given type or ErrNotFound.
func (r *AddressRepo) GetByType(ctx context.Context, userID uint64, typ string) (model.Address, error) {
	var (
		a                   model.Address
		city, state, postal sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, type, street, city, state, postal_code
		   FROM addresses WHERE user_id = ? AND type = ? ORDER BY id LIMIT 1`,
		userID, typ).Scan(&a.ID, &a.UserID, &a.Type, &a.Street, &city, &state, &postal)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	a.City, a.State, a.PostalCode = city.String, state.String, postal.String
	return a, err
}

func insertAddress(ctx context.Context, ex execer, a model.Address) error {
	_, err := ex.ExecContext(ctx,
		"INSERT INTO addresses (user_id, type, street, city, state, postal_code) VALUES (?, ?, ?, ?, ?, ?)",
		a.UserID, a.Type, a.Street, nullStr(a.City), nullStr(a.State), nullStr(a.PostalCode))
	return err
}

// AddressPatch carries optional address fields; nil keeps the stored value.
type AddressPatch struct {
	Street     *string
	City       *string
	State      *string
	PostalCode *string
}

// patchHomeAddress updates the HOME address in place, or inserts one when
// none exists and a street is given.
func patchHomeAddress(ctx context.Context, ex execer, userID uint64, p AddressPatch) error {
	var id uint64
	err := ex.QueryRowContext(ctx,
		"SELECT id FROM addresses WHERE user_id = ? AND type = ? LIMIT 1", userID, model.AddressHome).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		if p.Street == nil || strings.TrimSpace(*p.Street) == "" {
			return nil
		}
		a := model.Address{UserID: userID, Type: model.AddressHome, Street: *p.Street}
		if p.City != nil {
			a.City = *p.City
		}
		if p.State != nil {
			a.State = *p.State
		}
		if p.PostalCode != nil {
			a.PostalCode = *p.PostalCode
		}
		return insertAddress(ctx, ex, a)
	}
	if err != nil {
		return err
	}

	set := map[string]any{}
	if p.Street != nil {
		set["street"] = *p.Street
	}
	if p.City != nil {
		set["city"] = *p.City
	}
	if p.State != nil {
		set["state"] = *p.State
	}
	if p.PostalCode != nil {
		set["postal_code"] = *p.PostalCode
	}
	if len(set) == 0 {
		return nil
	}
	query, args, err := sq.Update("addresses").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, query, args...)
	return err
}
