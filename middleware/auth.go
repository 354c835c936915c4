package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mso328/headscale-ui/internal/core/domain"
)

// CookieName is the session cookie carrying the token string. The cookie is
// the core's only external credential boundary.
const CookieName = "auth_token"

// identityKey is the gin context key under which the gate stores the
// resolved identity.
const identityKey = "auth_identity"

// Verifier resolves a session token to an identity. (nil, nil) means
// unauthenticated; an error means the session store failed.
type Verifier interface {
	Verify(ctx context.Context, token string) (*domain.Identity, error)
}

const (
	loginPath = "/login"
	rootPath  = "/"
)

// publicPaths need no authenticated identity. The auth API endpoints are
// public because login obviously precedes authentication, logout is
// idempotent for anonymous callers, and verify answers 401 itself instead of
// redirecting.
var publicPaths = map[string]struct{}{
	loginPath:          {},
	"/api/auth/login":  {},
	"/api/auth/logout": {},
	"/api/auth/verify": {},
	"/health":          {},
	"/ready":           {},
	"/metrics":         {},
}

var staticAssetRe = regexp.MustCompile(`\.(css|js|png|jpg|jpeg|gif|svg|ico|woff|woff2|ttf)$`)

func isPublic(path string) bool {
	if _, ok := publicPaths[path]; ok {
		return true
	}
	if strings.HasPrefix(path, "/_app/") {
		return true
	}
	return staticAssetRe.MatchString(path)
}

// AuthGate resolves the caller's identity from the session cookie on every
// request and enforces the public/protected route policy. It carries no
// business logic: identity resolution is delegated to the Verifier, and the
// gate only decides allow, deny-with-redirect, or redirect-away-from-login.
//
// Install it before any handler so downstream code can rely on Identity(c).
func AuthGate(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(CookieName)

		// Resolve on public paths too: the verify endpoint and the
		// login-page redirect below both need the answer.
		identity, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			logger := zerolog.Ctx(c.Request.Context())
			logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Identity resolution failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		if identity != nil {
			c.Set(identityKey, identity)
		}

		path := c.Request.URL.Path

		if identity == nil && !isPublic(path) {
			c.Redirect(http.StatusSeeOther, loginPath)
			c.Abort()
			return
		}

		// Already authenticated: the login page is pointless, send home.
		if identity != nil && path == loginPath {
			c.Redirect(http.StatusSeeOther, rootPath)
			c.Abort()
			return
		}

		c.Next()
	}
}

// Identity returns the identity resolved by the gate, or nil when the
// request is unauthenticated.
func Identity(c *gin.Context) *domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(*domain.Identity); ok {
			return id
		}
	}
	return nil
}
