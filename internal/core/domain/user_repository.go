package domain

import "context"

// UserRow represents a user record returned from the database.
// It includes the password hash so the Logic layer can verify credentials.
type UserRow struct {
	ID           int
	Username     string
	PasswordHash string
}

// UserRepository defines the data-access contract for user operations.
// Implementations live in internal/core/repository (Core layer).
// The Logic layer depends on this interface only — never on SQL or pgx directly.
type UserRepository interface {
	// Create inserts a new user and returns the stored record. Returns
	// ErrDuplicateUsername (possibly wrapped) when the username is taken;
	// uniqueness is enforced by the store itself at insertion time, not by a
	// pre-check, so concurrent creates cannot both succeed.
	Create(ctx context.Context, username, passwordHash string) (*User, error)

	// GetByUsername returns the user matching the given username
	// (case-sensitive exact match). Returns (nil, nil) when no user is found.
	GetByUsername(ctx context.Context, username string) (*UserRow, error)

	// UpdateLastLogin sets the last_login timestamp to now for the given user.
	UpdateLastLogin(ctx context.Context, userID int) error

	// UpdatePasswordHash overwrites the stored hash. No history is kept.
	UpdatePasswordHash(ctx context.Context, userID int, passwordHash string) error

	// Count returns the number of users; bootstrap tooling uses it to detect
	// a first run.
	Count(ctx context.Context) (int, error)
}
