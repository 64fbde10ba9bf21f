package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/iliyamo/cinema-ebooking/internal/model"
	"github.com/iliyamo/cinema-ebooking/internal/utils"
)

// userSelect joins users with user_roles; a missing role row reads as
// registered.
const userSelect = `SELECT u.id, u.email, u.password_hash, u.first_name,
       COALESCE(u.last_name, ''), COALESCE(u.phone, ''), u.is_suspended,
       u.email_verified_at, COALESCE(ur.role_id, 2), u.created_at, u.updated_at
  FROM users u LEFT JOIN user_roles ur ON ur.user_id = u.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u        model.User
		verified sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Phone, &u.IsSuspended, &verified, &u.RoleID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return u, err
	}
	if verified.Valid {
		t := verified.Time
		u.EmailVerifiedAt = &t
	}
	return u, nil
}

// UserRepo owns the users table and the rows hanging off it (roles,
// addresses, cards, codes, subscriptions) whenever they change together.
type UserRepo struct {
	DB     *sql.DB
	cipher *utils.CardCipher
}

func NewUserRepo(db *sql.DB, cipher *utils.CardCipher) *UserRepo {
	return &UserRepo{DB: db, cipher: cipher}
}

// NormalizeEmail trims and lowercases an address before lookup or insert.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, userSelect+" WHERE u.email = ? LIMIT 1", NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, userSelect+" WHERE u.id = ? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// EmailExists reports whether the normalized email is already registered.
func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE email = ?", NormalizeEmail(email)).Scan(&n)
	return n > 0, err
}

// List returns every user ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, userSelect+" ORDER BY u.id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Registration is everything written when an account is created.
type Registration struct {
	Email        string
	PasswordHash []byte
	FirstName    string
	LastName     string
	Phone        string
	Subscribe    bool
	Addresses    []model.Address
	Cards        []model.PaymentMethod // plaintext; encrypted on insert
	Code         string
	CodeExpires  time.Time
	SentAt       time.Time
}

// Register creates the user, its role row, optional subscription, addresses,
// cards and the first verification code in one transaction.  A duplicate
// email yields ErrEmailExists and nothing is written.
func (r *UserRepo) Register(ctx context.Context, reg Registration) (uint64, error) {
	if len(reg.Cards) > model.MaxPaymentMethods {
		return 0, &LimitError{Limit: model.MaxPaymentMethods, Current: len(reg.Cards)}
	}
	var id uint64
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO users (email, password_hash, first_name, last_name, phone) VALUES (?, ?, ?, ?, ?)",
			NormalizeEmail(reg.Email), reg.PasswordHash, reg.FirstName, nullStr(reg.LastName), nullStr(reg.Phone))
		if err != nil {
			if isDuplicateKey(err) {
				return ErrEmailExists
			}
			return err
		}
		lastID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		id = uint64(lastID)

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)", id, model.RoleRegistered); err != nil {
			return err
		}
		if reg.Subscribe {
			if err := setSubscription(ctx, tx, id, true); err != nil {
				return err
			}
		}
		for _, a := range reg.Addresses {
			a.UserID = id
			if err := insertAddress(ctx, tx, a); err != nil {
				return err
			}
		}
		for _, c := range reg.Cards {
			c.UserID = id
			if _, err := insertPaymentMethod(ctx, tx, r.cipher, c); err != nil {
				return err
			}
		}
		return insertCode(ctx, tx, id, reg.Code, reg.CodeExpires, reg.SentAt)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ProfileFields are the user columns a caller may overwrite.  Nil fields are
// left untouched.
type ProfileFields struct {
	FirstName    *string
	LastName     *string
	Phone        *string
	PasswordHash []byte
	IsSuspended  *bool
}

func (f ProfileFields) setMap() map[string]any {
	m := map[string]any{}
	if f.FirstName != nil {
		m["first_name"] = *f.FirstName
	}
	if f.LastName != nil {
		m["last_name"] = *f.LastName
	}
	if f.Phone != nil {
		m["phone"] = *f.Phone
	}
	if f.PasswordHash != nil {
		m["password_hash"] = f.PasswordHash
	}
	if f.IsSuspended != nil {
		m["is_suspended"] = *f.IsSuspended
	}
	return m
}

// Empty reports whether no field is set.
func (f ProfileFields) Empty() bool { return len(f.setMap()) == 0 }

// UpdateFields writes the set fields for the user with the given id, or by
// email when id is zero.  It returns the number of rows matched.
func (r *UserRepo) UpdateFields(ctx context.Context, id uint64, email string, f ProfileFields) (int64, error) {
	return updateUserFields(ctx, r.DB, id, email, f)
}

func updateUserFields(ctx context.Context, ex execer, id uint64, email string, f ProfileFields) (int64, error) {
	set := f.setMap()
	if len(set) == 0 {
		return 0, nil
	}
	q := sq.Update("users").SetMap(set)
	if id != 0 {
		q = q.Where(sq.Eq{"id": id})
	} else {
		q = q.Where(sq.Eq{"email": NormalizeEmail(email)})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SelfProfileUpdate is the self-service profile edit.  Nil parts are skipped.
type SelfProfileUpdate struct {
	Fields     ProfileFields
	Home       *AddressPatch
	Card       *CardPatch
	Promotions *bool
}

// UpdateSelfProfile applies user fields, the home address, the default card
// and the promotions flag atomically.
func (r *UserRepo) UpdateSelfProfile(ctx context.Context, userID uint64, up SelfProfileUpdate) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ? FOR UPDATE", userID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := updateUserFields(ctx, tx, userID, "", up.Fields); err != nil {
			return err
		}
		if up.Home != nil {
			if err := patchHomeAddress(ctx, tx, userID, *up.Home); err != nil {
				return err
			}
		}
		if up.Card != nil {
			if err := patchDefaultCard(ctx, tx, r.cipher, userID, *up.Card); err != nil {
				return err
			}
		}
		if up.Promotions != nil {
			return setSubscription(ctx, tx, userID, *up.Promotions)
		}
		return nil
	})
}

// DeleteCascade removes the user and every dependent row.  It returns
// ErrNotFound when the user does not exist.
func (r *UserRepo) DeleteCascade(ctx context.Context, id uint64) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ? FOR UPDATE", id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		for _, table := range []string{"promotion_subscriptions", "payment_methods", "addresses", "verification_codes", "session_tokens", "user_roles"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = ?", id); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
		return err
	})
}

// AdminUpdate applies admin edits: profile fields, suspension and role.
func (r *UserRepo) AdminUpdate(ctx context.Context, id uint64, f ProfileFields, roleID *uint8) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ? FOR UPDATE", id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := updateUserFields(ctx, tx, id, "", f); err != nil {
			return err
		}
		if roleID == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id = ?", id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)", id, *roleID)
		return err
	})
}

// CreateAdminUser inserts a pre-verified user with the given role.
func (r *UserRepo) CreateAdminUser(ctx context.Context, email string, hash []byte, first, last, phone string, roleID uint8, now time.Time) (uint64, error) {
	var id uint64
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO users (email, password_hash, first_name, last_name, phone, email_verified_at) VALUES (?, ?, ?, ?, ?, ?)",
			NormalizeEmail(email), hash, first, nullStr(last), nullStr(phone), now)
		if err != nil {
			if isDuplicateKey(err) {
				return ErrEmailExists
			}
			return err
		}
		lastID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		id = uint64(lastID)
		_, err = tx.ExecContext(ctx, "INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)", id, roleID)
		return err
	})
	return id, err
}
