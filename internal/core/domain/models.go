// Package domain holds the data model and repository contracts shared by the
// logic and storage layers. It stays free of SQL and driver types.
package domain

import (
	"errors"
	"time"
)

// ErrDuplicateUsername is returned by UserRepository.Create when the username
// unique constraint is violated. Detection happens at insertion time, not via
// a pre-check, so concurrent creates cannot both succeed.
var ErrDuplicateUsername = errors.New("username already exists")

// User is a panel administrator. The password hash never leaves the store
// layer except for credential verification.
type User struct {
	ID        int        `json:"id"`
	Username  string     `json:"username"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Identity is the resolved caller of an authenticated request.
type Identity struct {
	UserID   int    `json:"userId"`
	Username string `json:"username"`
}

// LoginRequest is the POST /api/auth/login body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest is the POST /api/auth/password body.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// AuthResponse carries a successful login result. The token travels in the
// session cookie, never in the JSON body.
type AuthResponse struct {
	Token string `json:"-"`
	User  User   `json:"user"`
}
