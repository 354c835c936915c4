package v1

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the identity claims embedded in a session token.
type Claims struct {
	UserID   int    `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenIssuer creates and verifies signed session tokens (HS256).
//
// The signing secret is process-wide state set once at startup and never
// rotated mid-process; rotation invalidates all outstanding tokens and must
// be a deliberate operational action.
//
// A verified token is necessary but not sufficient for trust: the session
// store remains the authority on liveness, so callers must still look the
// token up there.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer returns an issuer signing with secret and stamping tokens
// with the given time-to-live.
func NewTokenIssuer(secret []byte, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret must not be empty")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &TokenIssuer{secret: secret, ttl: ttl}, nil
}

// TTL returns the lifetime stamped into issued tokens.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue produces a signed token for the given user. The jti claim makes
// back-to-back logins yield distinct token strings even within the same
// second.
func (t *TokenIssuer) Issue(userID int, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify checks signature integrity and the embedded expiry. It returns an
// error for malformed tokens, signature mismatches, and expired claims; it
// never panics on attacker-controlled input.
func (t *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}
