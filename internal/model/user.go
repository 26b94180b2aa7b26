package model

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of actors known to the marketplace.  The zero
// value is not a valid role so an unset field never authorises anything.
type Role uint8

const (
	RoleUser Role = iota + 1
	RoleVendor
	RoleAdmin
)

// String returns the role name as stored in users.role and in JWT claims.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleVendor:
		return "vendor"
	case RoleAdmin:
		return "admin"
	}
	return "unknown"
}

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleVendor, RoleAdmin:
		return true
	}
	return false
}

// ParseRole converts a stored or transmitted role name into a Role.
// Matching is case-insensitive; unknown names are an error.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, nil
	case "vendor":
		return RoleVendor, nil
	case "admin":
		return RoleAdmin, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// MarshalText lets roles travel as their names in JSON.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", r)
	}
	return []byte(r.String()), nil
}

// UnmarshalText parses a role name.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User represents an application account as stored in the `users` table.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Name         – display name.
//  Email        – unique, lower-cased email address.
//  PhotoURL     – optional avatar URL (hosted elsewhere).
//  PasswordHash – bcrypt hashed password.
//  Role         – user, vendor or admin.
//  IsFraud      – set by an admin on vendors; hides their tickets.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsFraud      bool      `json:"is_fraud"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserStats summarises the user base for the admin dashboard.
type UserStats struct {
	Total        int `json:"total_users"`
	Users        int `json:"users"`
	Vendors      int `json:"vendors"`
	Admins       int `json:"admins"`
	FraudVendors int `json:"fraud_vendors"`
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
