// Package auth provides request context helpers for verified identities.
package auth

import (
	"context"
	"time"
)

type ctxKey int

const identityKey ctxKey = iota

// Claims contains the verified token details we care about.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	Email     string
	Name      string
	Raw       map[string]any
}

// Identity is the authenticated account a request acts on behalf of.
type Identity struct {
	UserID int64
	Email  string
}

// WithIdentity stores an identity in a context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity stored by the middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID > 0
}
