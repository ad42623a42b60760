// Package auth provides Gin middleware for enforcing bearer token auth.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ResolveFunc maps verified claims to an account, e.g. by provisioning a local
// user for an external identity.
type ResolveFunc func(ctx context.Context, claims *Claims) (Identity, error)

// MiddlewareConfig controls auth enforcement behavior.
type MiddlewareConfig struct {
	PublicPaths map[string]bool

	// ResolveExternal is consulted for tokens not issued by this service.
	// External tokens are rejected when it is nil.
	ResolveExternal ResolveFunc
}

// Middleware enforces bearer token auth and injects the identity into the request context.
func Middleware(verifier *Verifier, cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.PublicPaths != nil && cfg.PublicPaths[c.FullPath()] {
			c.Next()
			return
		}

		if verifier == nil {
			respondUnauthorized(c, "auth verifier not configured")
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			slog.InfoContext(c.Request.Context(), "auth failure: missing Authorization header", "path", c.Request.URL.Path)
			respondUnauthorized(c, "No token provided")
			return
		}

		token, ok := extractBearerToken(authHeader)
		if !ok {
			slog.InfoContext(c.Request.Context(), "auth failure: malformed Authorization header", "path", c.Request.URL.Path)
			respondUnauthorized(c, "Invalid token")
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			slog.InfoContext(c.Request.Context(), "auth failure: token invalid", "path", c.Request.URL.Path, "err", err)
			respondUnauthorized(c, "Invalid token")
			return
		}

		id, err := resolveIdentity(c.Request.Context(), verifier, cfg, claims)
		if err != nil {
			slog.WarnContext(c.Request.Context(), "auth failure: identity not resolved", "path", c.Request.URL.Path, "err", err)
			respondUnauthorized(c, "Invalid token")
			return
		}

		ctx := WithIdentity(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func resolveIdentity(ctx context.Context, verifier *Verifier, cfg MiddlewareConfig, claims *Claims) (Identity, error) {
	if verifier.IsFirstParty(claims) {
		userID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil || userID <= 0 {
			return Identity{}, errors.New("subject is not a user id")
		}
		return Identity{UserID: userID, Email: claims.Email}, nil
	}
	if cfg.ResolveExternal == nil {
		return Identity{}, errors.New("external identities disabled")
	}
	return cfg.ResolveExternal(ctx, claims)
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
	})
}
