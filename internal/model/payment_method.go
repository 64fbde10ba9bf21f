package model

import "time"

// MaxPaymentMethods is the number of cards a user may keep on file.
const MaxPaymentMethods = 3

// PaymentMethod mirrors the `payment_methods` table.  ProviderToken and Last4
// hold plaintext in memory; the repository stores them encrypted.
type PaymentMethod struct {
	ID             uint64    `json:"id"`
	UserID         uint64    `json:"user_id"`
	Provider       string    `json:"provider"`
	ProviderToken  string    `json:"provider_token"`
	Brand          string    `json:"brand"`
	Last4          string    `json:"last4"`
	ExpMonth       *int      `json:"exp_month"`
	ExpYear        *int      `json:"exp_year"`
	IsDefault      bool      `json:"is_default"`
	BillingAddress string    `json:"billing_address"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
