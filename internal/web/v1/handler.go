// Package v1 exposes the authentication HTTP surface.
package v1

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mso328/headscale-ui/internal/core/domain"
	logicv1 "github.com/mso328/headscale-ui/internal/logic/v1"
	"github.com/mso328/headscale-ui/middleware"
)

// Handler groups HTTP handlers for the auth API v1.
// Dependencies are injected via the constructor — no global state.
type Handler struct {
	auth          *logicv1.AuthService
	cookieTTL     time.Duration
	secureCookies bool
}

// NewHandler creates a Handler. secureCookies should be true in production
// so the session cookie is never sent over plaintext HTTP.
func NewHandler(auth *logicv1.AuthService, cookieTTL time.Duration, secureCookies bool) *Handler {
	return &Handler{auth: auth, cookieTTL: cookieTTL, secureCookies: secureCookies}
}

// RegisterRoutes registers all auth API v1 routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/login", h.Login)
	rg.POST("/auth/logout", h.Logout)
	rg.GET("/auth/verify", h.Verify)
	rg.POST("/auth/password", h.ChangePassword)
}

// setSessionCookie writes the auth_token cookie per the contract: HTTP-only,
// SameSite=Strict, path /, Secure in production.
func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.CookieName, token, int(h.cookieTTL.Seconds()), "/", "", h.secureCookies, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.CookieName, "", -1, "/", "", h.secureCookies, true)
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.login", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	response, err := h.auth.Login(ctx, req)
	if err != nil {
		span.RecordError(err)

		switch {
		case errors.Is(err, logicv1.ErrInvalidCredentials):
			middleware.LoginAttempts.WithLabelValues("failure").Inc()
			logger.Warn().Str("username", req.Username).Msg("Login rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		default:
			logger.Error().Err(err).Msg("Login failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	middleware.LoginAttempts.WithLabelValues("success").Inc()
	h.setSessionCookie(c, response.Token)

	logger.Info().Int("user_id", response.User.ID).Msg("Login successful")
	c.JSON(http.StatusOK, gin.H{"success": true, "user": response.User})
}

// Logout handles POST /api/auth/logout. Always succeeds: logging out an
// absent or already-revoked session is a no-op.
func (h *Handler) Logout(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.logout", trace.WithAttributes(
		attribute.String("layer", "web"),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	if token, err := c.Cookie(middleware.CookieName); err == nil && token != "" {
		if err := h.auth.Logout(ctx, token); err != nil {
			// The cookie still gets cleared; the sweep collects the row later.
			span.RecordError(err)
			logger.Error().Err(err).Msg("Session delete failed during logout")
		}
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Verify handles GET /api/auth/verify. The gate has already resolved the
// identity (or not); this endpoint only reports the outcome.
func (h *Handler) Verify(c *gin.Context) {
	if identity := middleware.Identity(c); identity != nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": identity})
		return
	}
	c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
}

// ChangePassword handles POST /api/auth/password for the authenticated user.
func (h *Handler) ChangePassword(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.change_password", trace.WithAttributes(
		attribute.String("layer", "web"),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	identity := middleware.Identity(c)
	if identity == nil {
		// The gate redirects unauthenticated browsers; this guards direct calls.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req domain.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Current password and a new password of at least 8 characters are required"})
		return
	}

	if err := h.auth.ChangePassword(ctx, identity.Username, req.CurrentPassword, req.NewPassword); err != nil {
		span.RecordError(err)

		switch {
		case errors.Is(err, logicv1.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
		default:
			logger.Error().Err(err).Msg("Password change failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	logger.Info().Int("user_id", identity.UserID).Msg("Password changed")
	c.JSON(http.StatusOK, gin.H{"success": true})
}
