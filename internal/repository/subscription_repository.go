package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-ebooking/internal/model"
)

// SubscriptionRepo reads promotion_subscriptions.
type SubscriptionRepo struct{ DB *sql.DB }

func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo { return &SubscriptionRepo{DB: db} }

// IsSubscribed reports the user's flag.  Users without a row count as
// subscribed.
func (r *SubscriptionRepo) IsSubscribed(ctx context.Context, userID uint64) (bool, error) {
	var sub bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT subscribed FROM promotion_subscriptions WHERE user_id = ?", userID).Scan(&sub)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	return sub, err
}

// Set upserts the user's flag.
func (r *SubscriptionRepo) Set(ctx context.Context, userID uint64, subscribed bool) error {
	return setSubscription(ctx, r.DB, userID, subscribed)
}

// Subscribers lists users with an explicit subscribed = 1 row.
func (r *SubscriptionRepo) Subscribers(ctx context.Context) ([]model.Subscriber, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT u.id, u.first_name, COALESCE(u.last_name, ''), u.email, ps.updated_at
		   FROM promotion_subscriptions ps JOIN users u ON u.id = ps.user_id
		  WHERE ps.subscribed = 1 ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscriber{}
	for rows.Next() {
		var s model.Subscriber
		if err := rows.Scan(&s.ID, &s.FirstName, &s.LastName, &s.Email, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func setSubscription(ctx context.Context, ex execer, userID uint64, subscribed bool) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO promotion_subscriptions (user_id, subscribed) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE subscribed = VALUES(subscribed)`, userID, subscribed)
	return err
}
