// Package app provides user persistence helpers for authenticated requests.
package app

import (
	"context"
	"errors"
	"strings"

	"github.com/TECHINNNNNNNN/syntaxvoice/auth"
)

var errMissingEmail = errors.New("external token has no email claim")

// resolveExternalUser maps an identity-provider token onto a local account,
// creating the account on first sight. Accounts are matched by email.
func (s *Server) resolveExternalUser(ctx context.Context, claims *auth.Claims) (auth.Identity, error) {
	if claims == nil {
		return auth.Identity{}, errMissingEmail
	}
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return auth.Identity{}, errMissingEmail
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		u, err = s.store.CreateUser(ctx, email, "", strings.TrimSpace(claims.Name))
		if errors.Is(err, ErrEmailTaken) {
			// Lost a race with a concurrent first request.
			u, err = s.store.GetUserByEmail(ctx, email)
		}
	}
	if err != nil {
		return auth.Identity{}, err
	}
	return auth.Identity{UserID: u.ID, Email: u.Email}, nil
}
