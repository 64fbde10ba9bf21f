package model

import "time"

// Role identifiers stored in user_roles.role_id.
const (
	RoleAdmin      uint8 = 1
	RoleRegistered uint8 = 2
)

// RoleName maps a role id to the name carried in access tokens.
func RoleName(id uint8) string {
	switch id {
	case RoleAdmin:
		return "admin"
	case RoleRegistered:
		return "registered"
	}
	return ""
}

// User represents a row of the `users` table joined with its role.  A
// missing user_roles row reads as RoleRegistered.
//
// Fields:
//  PasswordHash    – bcrypt hash bytes (never serialized).
//  EmailVerifiedAt – nil until the email verification code is consumed.
//  IsSuspended     – suspended accounts cannot log in.
type User struct {
	ID              uint64     `json:"id"`
	Email           string     `json:"email"`
	PasswordHash    []byte     `json:"-"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Phone           string     `json:"phone"`
	IsSuspended     bool       `json:"is_suspended"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	RoleID          uint8      `json:"role_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Role returns the role name of the user.
func (u User) Role() string { return RoleName(u.RoleID) }

// Address types.  A user has at most one of each.
const (
	AddressHome     = "HOME"
	AddressShipping = "SHIPPING"
)

// Address mirrors the `addresses` table.
type Address struct {
	ID         uint64 `json:"id"`
	UserID     uint64 `json:"user_id"`
	Type       string `json:"type"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

// Subscriber is a user with promotion_subscriptions.subscribed = 1.
type Subscriber struct {
	ID        uint64    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	UpdatedAt time.Time `json:"updated_at"`
}
