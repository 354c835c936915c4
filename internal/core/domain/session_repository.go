package domain

import (
	"context"
	"time"
)

// SessionRow represents a live session joined with its owner user,
// returned by session lookup queries.
type SessionRow struct {
	UserID    int
	Username  string
	ExpiresAt time.Time
}

// SessionRepository defines the data-access contract for session operations.
// Implementations live in internal/core/repository (Core layer).
type SessionRepository interface {
	// Replace atomically deletes every session belonging to the user and
	// inserts a new one. This is the store-level enforcement of the
	// at-most-one-live-session-per-user invariant: two concurrent logins for
	// the same user cannot both leave a surviving session.
	Replace(ctx context.Context, userID int, token string, expiresAt time.Time) error

	// GetUserByToken looks up a live session by token and returns the
	// associated user data together with the session expiry. Expiry is
	// compared against the database clock at query time. Returns (nil, nil)
	// when the token matches no session or the session has expired.
	GetUserByToken(ctx context.Context, token string) (*SessionRow, error)

	// DeleteByToken removes the session with the given token. Deleting a
	// token that does not exist is not an error.
	DeleteByToken(ctx context.Context, token string) error

	// DeleteExpired removes every session whose expiry has strictly passed
	// and returns the number of rows removed.
	DeleteExpired(ctx context.Context) (int64, error)
}
