package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account identity. The Hedera account id is optional and
// is used for payment and mint targeting.
type User struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Email           string    `db:"email" json:"email"`
	PasswordHash    string    `db:"password_hash" json:"-"`
	HederaAccountID *string   `db:"hedera_account_id" json:"hedera_account_id,omitempty"`
	FirstName       string    `db:"first_name" json:"first_name"`
	LastName        string    `db:"last_name" json:"last_name"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// FullName returns the display name used on leaderboards and certificates.
func (u *User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	return name
}

// RegisterRequest is the payload for POST /api/auth/register
type RegisterRequest struct {
	Email           string  `json:"email" binding:"required,email"`
	Password        string  `json:"password" binding:"required,min=8"`
	HederaAccountID *string `json:"hedera_account_id"`
	FirstName       string  `json:"first_name" binding:"max=50"`
	LastName        string  `json:"last_name" binding:"max=50"`
}

// LoginRequest is the payload for POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest is the payload for PUT /api/auth/profile
type UpdateProfileRequest struct {
	FirstName       *string `json:"first_name"`
	LastName        *string `json:"last_name"`
	HederaAccountID *string `json:"hedera_account_id"`
}

// AuthResponse carries a signed token and the sanitized user.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
