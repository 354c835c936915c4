package v1

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mso328/headscale-ui/internal/core/domain"
)

// memStore implements domain.UserRepository and domain.SessionRepository in
// memory, mirroring the store-level guarantees the pgx implementations get
// from Postgres: unique usernames checked at insert, transactional session
// replace, expiry compared at lookup time.
type memStore struct {
	mu       sync.Mutex
	nextID   int
	users    map[string]*memUser // by username
	sessions map[string]*memSession // by token
}

type memUser struct {
	id           int
	username     string
	passwordHash string
	lastLogin    *time.Time
}

type memSession struct {
	userID    int
	token     string
	expiresAt time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*memUser),
		sessions: make(map[string]*memSession),
	}
}

func (s *memStore) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return nil, domain.ErrDuplicateUsername
	}
	s.nextID++
	s.users[username] = &memUser{id: s.nextID, username: username, passwordHash: passwordHash}
	return &domain.User{ID: s.nextID, Username: username, CreatedAt: time.Now()}, nil
}

func (s *memStore) GetByUsername(ctx context.Context, username string) (*domain.UserRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	return &domain.UserRow{ID: u.id, Username: u.username, PasswordHash: u.passwordHash}, nil
}

func (s *memStore) UpdateLastLogin(ctx context.Context, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.id == userID {
			now := time.Now()
			u.lastLogin = &now
		}
	}
	return nil
}

func (s *memStore) UpdatePasswordHash(ctx context.Context, userID int, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.id == userID {
			u.passwordHash = passwordHash
		}
	}
	return nil
}

func (s *memStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

func (s *memStore) Replace(ctx context.Context, userID int, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t, sess := range s.sessions {
		if sess.userID == userID {
			delete(s.sessions, t)
		}
	}
	s.sessions[token] = &memSession{userID: userID, token: token, expiresAt: expiresAt}
	return nil
}

func (s *memStore) GetUserByToken(ctx context.Context, token string) (*domain.SessionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok || !sess.expiresAt.After(time.Now()) {
		return nil, nil
	}
	for _, u := range s.users {
		if u.id == sess.userID {
			return &domain.SessionRow{UserID: u.id, Username: u.username, ExpiresAt: sess.expiresAt}, nil
		}
	}
	return nil, nil
}

func (s *memStore) DeleteByToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *memStore) DeleteExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now()
	for t, sess := range s.sessions {
		if sess.expiresAt.Before(now) {
			delete(s.sessions, t)
			n++
		}
	}
	return n, nil
}

func (s *memStore) sessionCount(userID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.userID == userID {
			n++
		}
	}
	return n
}

func (s *memStore) expireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[token]; ok {
		sess.expiresAt = time.Now().Add(-time.Minute)
	}
}

// minCost keeps bcrypt fast in tests.
const minCost = 4

func newTestService(t *testing.T) (*AuthService, *memStore) {
	t.Helper()
	store := newMemStore()
	issuer, err := NewTokenIssuer([]byte("test-secret"), 7*24*time.Hour)
	require.NoError(t, err)
	return NewAuthService(store, store, NewPasswordHasher(minCost), issuer), store
}

func TestCreateUserThenLoginRoundtrip(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotZero(t, user.ID)

	resp, err := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "password123"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, user.ID, resp.User.ID)

	identity, err := svc.Verify(ctx, resp.Token)
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, user.ID, identity.UserID)
	assert.Equal(t, "alice", identity.Username)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "alice", "password123")
	require.NoError(t, err)

	_, wrongPass := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "nope"})
	_, noUser := svc.Login(ctx, domain.LoginRequest{Username: "mallory", Password: "nope"})

	assert.ErrorIs(t, wrongPass, ErrInvalidCredentials)
	assert.ErrorIs(t, noUser, ErrInvalidCredentials)

	// Failed logins must not create or alter sessions.
	assert.Zero(t, store.sessionCount(1))
}

func TestReloginRevokesPreviousSession(t *testing.T) {
	t.Parallel()
	svc, store := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "alice", "password123")
	require.NoError(t, err)

	first, err := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "password123"})
	require.NoError(t, err)
	second, err := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "password123"})
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token)
	assert.Equal(t, 1, store.sessionCount(user.ID))

	stale, err := svc.Verify(ctx, first.Token)
	require.NoError(t, err)
	assert.Nil(t, stale, "superseded token must no longer verify")

	live, err := svc.Verify(ctx, second.Token)
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, "alice", live.Username)
}

func TestLogoutIsIdempotent(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "alice", "password123")
	require.NoError(t, err)
	resp, err := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, resp.Token))

	identity, err := svc.Verify(ctx, resp.Token)
	require.NoError(t, err)
	assert.Nil(t, identity)

	// Second logout of the same token, and logout of garbage, are no-ops.
	require.NoError(t, svc.Logout(ctx, resp.Token))
	require.NoError(t, svc.Logout(ctx, "never-issued"))
	require.NoError(t, svc.Logout(ctx, ""))
}

func TestExpiredSessionNeverVerifies(t *testing.T) {
	t.Parallel()
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "alice", "password123")
	require.NoError(t, err)
	resp, err := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "password123"})
	require.NoError(t, err)

	// The token's own expiry claim is still a week out; the stored row is
	// the authority.
	store.expireToken(resp.Token)

	identity, err := svc.Verify(ctx, resp.Token)
	require.NoError(t, err)
	assert.Nil(t, identity, "expired session must not verify before the sweep runs")

	n, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, store.sessionCount(1))
}

func TestConcurrentLoginsLeaveOneLiveSession(t *testing.T) {
	t.Parallel()
	svc, store := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "alice", "password123")
	require.NoError(t, err)

	const attempts = 8
	tokens := make([]string, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "password123"})
			if err == nil {
				tokens[i] = resp.Token
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, store.sessionCount(user.ID))

	live := 0
	for _, token := range tokens {
		require.NotEmpty(t, token)
		if identity, err := svc.Verify(ctx, token); err == nil && identity != nil {
			live++
		}
	}
	assert.Equal(t, 1, live, "exactly one of the concurrently issued tokens must survive")
}

func TestVerifyRejectsTamperedAndForeignTokens(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "alice", "password123")
	require.NoError(t, err)
	resp, err := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "password123"})
	require.NoError(t, err)

	tampered := resp.Token[:len(resp.Token)-2] + "xx"
	identity, err := svc.Verify(ctx, tampered)
	require.NoError(t, err)
	assert.Nil(t, identity)

	// Signed by someone else entirely.
	otherIssuer, err := NewTokenIssuer([]byte("other-secret"), time.Hour)
	require.NoError(t, err)
	foreign, err := otherIssuer.Issue(1, "alice")
	require.NoError(t, err)

	identity, err = svc.Verify(ctx, foreign)
	require.NoError(t, err)
	assert.Nil(t, identity)

	identity, err = svc.Verify(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestCreateUserValidation(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "bob", "short")
	// The store does not enforce password policy; that belongs to the
	// bootstrap tooling. Account creation itself succeeds.
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, "bob", "another-password")
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = svc.CreateUser(ctx, "ab", "password123")
	assert.ErrorIs(t, err, ErrInvalidUsername)

	_, err = svc.CreateUser(ctx, "  ab  ", "password123")
	assert.ErrorIs(t, err, ErrInvalidUsername, "username is trimmed before the length check")
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "alice", "password123")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, "alice", "wrong-current", "newpassword1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, "alice", "password123", "newpassword1"))

	_, err = svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "newpassword1"})
	require.NoError(t, err)
}

func TestLoginScenarioAlice(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "alice", "password123")
	require.NoError(t, err)

	first, err := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "password123"})
	require.NoError(t, err)

	identity, err := svc.Verify(ctx, first.Token)
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "alice", identity.Username)

	second, err := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "password123"})
	require.NoError(t, err)
	require.NotEqual(t, first.Token, second.Token)

	identity, err = svc.Verify(ctx, first.Token)
	require.NoError(t, err)
	assert.Nil(t, identity)

	identity, err = svc.Verify(ctx, second.Token)
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "alice", identity.Username)
}

func TestCountUsers(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	n, err := svc.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.CreateUser(ctx, "alice", "password123")
	require.NoError(t, err)

	n, err = svc.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
