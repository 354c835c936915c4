package v1

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mso328/headscale-ui/internal/core/domain"
	"github.com/mso328/headscale-ui/middleware"
)

// AuthService is the session manager. It orchestrates credential
// verification, token issuance, and session lifecycle over the repository
// interfaces, and MUST NOT access the database or SQL directly.
//
// A (user, token) pair moves NONE -> ACTIVE on login and ACTIVE -> REVOKED on
// logout, supersession by a newer login, or the expiry sweep. There is no
// in-place renewal: re-login always replaces the session row with a fresh
// token.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	hasher   *PasswordHasher
	tokens   *TokenIssuer
}

// NewAuthService creates an AuthService with the given dependencies.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository, hasher *PasswordHasher, tokens *TokenIssuer) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
	}
}

// Login verifies credentials and establishes a new session.
//
// Unknown usernames and wrong passwords both fail with ErrInvalidCredentials.
// On success the user's prior sessions are revoked atomically with the new
// session's creation, so a login elsewhere immediately invalidates any token
// issued before.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.login", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("username", req.Username),
	))
	defer span.End()

	row, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user %q: %w", req.Username, err)
	}
	if row == nil {
		span.SetAttributes(attribute.Bool("auth.success", false))
		span.AddEvent("authentication.failed")
		return nil, fmt.Errorf("authenticate user %q: %w", req.Username, ErrInvalidCredentials)
	}

	if !s.hasher.Verify(req.Password, row.PasswordHash) {
		span.SetAttributes(attribute.Bool("auth.success", false))
		span.AddEvent("authentication.failed")
		return nil, fmt.Errorf("authenticate user %q: %w", req.Username, ErrInvalidCredentials)
	}

	// Best-effort: a failed timestamp update must not fail the login.
	if updateErr := s.users.UpdateLastLogin(ctx, row.ID); updateErr != nil {
		span.RecordError(fmt.Errorf("update last_login: %w", updateErr))
	}

	token, err := s.tokens.Issue(row.ID, row.Username)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("issue token: %w", err)
	}

	// The stored expiry mirrors the token's embedded one; the row is the
	// authority on liveness. Replace failure fails the login — a token the
	// store does not know about must never reach the client.
	expiresAt := time.Now().Add(s.tokens.TTL())
	if err := s.sessions.Replace(ctx, row.ID, token, expiresAt); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("replace session for user %d: %w", row.ID, err)
	}

	span.SetAttributes(
		attribute.Int("user.id", row.ID),
		attribute.Bool("auth.success", true),
	)
	span.AddEvent("user.authenticated")

	return &domain.AuthResponse{
		Token: token,
		User:  domain.User{ID: row.ID, Username: row.Username},
	}, nil
}

// Verify resolves a token to an identity. It returns (nil, nil) — never an
// error — when the token is empty, malformed, forged, expired by its own
// claims, or has no live session row; the reasons are deliberately collapsed.
// The identity comes from the session-store join, not from the token claims
// alone, so a revoked session stays revoked even while its token is still
// structurally valid. A non-nil error means the store itself failed.
func (s *AuthService) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.verify", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if token == "" {
		span.SetAttributes(attribute.Bool("session.valid", false))
		return nil, nil
	}

	if _, err := s.tokens.Verify(token); err != nil {
		span.SetAttributes(attribute.Bool("session.valid", false))
		span.AddEvent("token.rejected")
		return nil, nil
	}

	row, err := s.sessions.GetUserByToken(ctx, token)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query session: %w", err)
	}
	if row == nil {
		span.SetAttributes(attribute.Bool("session.valid", false))
		return nil, nil
	}

	span.SetAttributes(
		attribute.Int("user.id", row.UserID),
		attribute.Bool("session.valid", true),
	)

	return &domain.Identity{UserID: row.UserID, Username: row.Username}, nil
}

// Logout revokes the session for the given token. Logging out a token that
// is absent or already revoked is a no-op, so the operation is idempotent.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	ctx, span := middleware.StartSpan(ctx, "auth.logout", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if token == "" {
		return nil
	}

	if err := s.sessions.DeleteByToken(ctx, token); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CreateUser creates a new administrator account. Username is trimmed and
// must be at least 3 characters; duplicates fail with ErrUserExists.
// Password policy (length, confirmation) belongs to the bootstrap tooling,
// not here — the store only requires a hash to be present.
func (s *AuthService) CreateUser(ctx context.Context, username, password string) (*domain.User, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.create_user", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("username", username),
	))
	defer span.End()

	username = strings.TrimSpace(username)
	if len(username) < 3 {
		return nil, fmt.Errorf("create user %q: %w", username, ErrInvalidUsername)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, username, hash)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateUsername) {
			span.AddEvent("username.taken")
			return nil, fmt.Errorf("create user %q: %w", username, ErrUserExists)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("insert user: %w", err)
	}

	span.SetAttributes(attribute.Int("user.id", user.ID))
	span.AddEvent("user.created")

	return user, nil
}

// ChangePassword replaces the user's password hash after verifying the
// current password. Existing sessions stay live; only the credential changes.
func (s *AuthService) ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error {
	ctx, span := middleware.StartSpan(ctx, "auth.change_password", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("username", username),
	))
	defer span.End()

	row, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("query user %q: %w", username, err)
	}
	if row == nil || !s.hasher.Verify(currentPassword, row.PasswordHash) {
		span.AddEvent("authentication.failed")
		return fmt.Errorf("verify current password: %w", ErrInvalidCredentials)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePasswordHash(ctx, row.ID, hash); err != nil {
		span.RecordError(err)
		return fmt.Errorf("update password hash: %w", err)
	}

	span.AddEvent("password.changed")
	return nil
}

// CountUsers returns the number of accounts; the create-admin command uses
// it to detect a first run.
func (s *AuthService) CountUsers(ctx context.Context) (int, error) {
	return s.users.Count(ctx)
}

// SweepExpired deletes every session whose stored expiry has passed and
// returns the number of rows removed.
func (s *AuthService) SweepExpired(ctx context.Context) (int64, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.sweep_expired", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	span.SetAttributes(attribute.Int64("sessions.deleted", n))
	return n, nil
}
