package model

import (
	"fmt"
	"time"
)

// Promotion mirrors the `promotions` table.  Exactly one of PercentOff and
// FlatOffCents is normally set.
type Promotion struct {
	ID           uint64          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	PercentOff   *float64        `json:"percent_off"`
	FlatOffCents *int            `json:"flat_off_cents"`
	StartsAt     time.Time       `json:"starts_at"`
	EndsAt       time.Time       `json:"ends_at"`
	Active       bool            `json:"active"`
	Codes        []PromotionCode `json:"codes,omitempty"`
}

// DiscountText renders the discount for customer emails.
func (p Promotion) DiscountText() string {
	switch {
	case p.PercentOff != nil:
		return fmt.Sprintf("%.0f%% off", *p.PercentOff)
	case p.FlatOffCents != nil:
		return fmt.Sprintf("$%.2f off", float64(*p.FlatOffCents)/100.0)
	}
	return "a special discount"
}

// PromotionCode mirrors the `promotion_codes` table.
type PromotionCode struct {
	ID             uint64 `json:"id"`
	PromotionID    uint64 `json:"promotion_id"`
	Code           string `json:"code"`
	MaxRedemptions *int   `json:"max_redemptions"`
}
