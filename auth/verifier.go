// Package auth issues first-party HS256 tokens and verifies them, optionally
// alongside RS256 tokens from an external identity provider published via JWKS.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultLeeway = 30 * time.Second
)

// Verifier validates bearer tokens.
type Verifier struct {
	secret []byte
	issuer string

	// external provider, nil when not configured
	jwks         keyfunc.Keyfunc
	jwksIssuer   string
	jwksAudience string

	parser *jwt.Parser
}

// NewVerifier builds a verifier for tokens signed with secret by issuer.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("signing secret must be set")
	}
	if issuer == "" {
		return nil, errors.New("issuer must be set")
	}
	return &Verifier{
		secret: []byte(secret),
		issuer: issuer,
		parser: newParser(),
	}, nil
}

// WithJWKS additionally accepts RS256/384/512 tokens from an external issuer.
func (v *Verifier) WithJWKS(issuer, audience, jwksURL string) (*Verifier, error) {
	normalizedIssuer := normalizeIssuer(issuer)
	if normalizedIssuer == "" {
		return nil, errors.New("jwks issuer must be set")
	}
	if audience == "" {
		return nil, errors.New("audience must be set")
	}
	if jwksURL == "" {
		jwksURL = normalizedIssuer + ".well-known/jwks.json"
	}

	keyProvider, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to init JWKS keyfunc: %w", err)
	}

	v.jwks = keyProvider
	v.jwksIssuer = normalizedIssuer
	v.jwksAudience = audience
	return v, nil
}

func newParser() *jwt.Parser {
	return jwt.NewParser(
		jwt.WithLeeway(defaultLeeway),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Name,
			jwt.SigningMethodRS256.Name,
			jwt.SigningMethodRS384.Name,
			jwt.SigningMethodRS512.Name,
		}),
	)
}

func (v *Verifier) keyfunc(token *jwt.Token) (any, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		return v.secret, nil
	case *jwt.SigningMethodRSA:
		if v.jwks == nil {
			return nil, errors.New("external tokens are not accepted")
		}
		return v.jwks.Keyfunc(token)
	default:
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
}

// Verify parses and validates a JWT, returning extracted claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := v.parser.Parse(tokenString, v.keyfunc)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	claims := &Claims{
		Subject:   readString(mapClaims, "sub"),
		Issuer:    readString(mapClaims, "iss"),
		Audience:  readAudience(mapClaims["aud"]),
		ExpiresAt: readExpiry(mapClaims["exp"]),
		Email:     readString(mapClaims, "email"),
		Name:      readString(mapClaims, "name"),
		Raw:       mapClaims,
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing sub")
	}

	if _, hmac := token.Method.(*jwt.SigningMethodHMAC); hmac {
		if claims.Issuer != v.issuer {
			return nil, errors.New("unexpected token issuer")
		}
		return claims, nil
	}

	if normalizeIssuer(claims.Issuer) != v.jwksIssuer {
		return nil, errors.New("unexpected token issuer")
	}
	if !slices.Contains(claims.Audience, v.jwksAudience) {
		return nil, errors.New("token audience mismatch")
	}
	return claims, nil
}

// IsFirstParty reports whether claims were issued by this service.
func (v *Verifier) IsFirstParty(claims *Claims) bool {
	return claims != nil && claims.Issuer == v.issuer
}

func normalizeIssuer(issuer string) string {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return ""
	}
	if !strings.HasSuffix(issuer, "/") {
		issuer += "/"
	}
	return issuer
}

func readString(claims jwt.MapClaims, key string) string {
	val := claims[key]
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

func readAudience(raw any) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	default:
		return nil
	}
}

func readExpiry(raw any) time.Time {
	switch v := raw.(type) {
	case float64:
		return time.Unix(int64(v), 0)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return time.Unix(i, 0)
		}
	case int64:
		return time.Unix(v, 0)
	}
	return time.Time{}
}
