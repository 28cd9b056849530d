// internal/common/auth/jwt.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("MISSING_TOKEN")
	ErrInvalidToken = errors.New("INVALID_TOKEN")
)

// Principal is the authenticated caller extracted from a bearer token.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

// IsAdmin reports whether the principal carries the configured admin role.
func (p *Principal) IsAdmin(adminRole string) bool {
	return p != nil && adminRole != "" && p.Role == adminRole
}

type VerifierConfig struct {
	Secret      string
	Issuer      string
	UserIDClaim string
	RoleClaim   string
	Leeway      time.Duration
}

// Verifier validates HS256 tokens signed with the auth provider's shared secret.
type Verifier struct {
	cfg VerifierConfig
}

func NewVerifier(cfg VerifierConfig) *Verifier {
	if cfg.UserIDClaim == "" {
		cfg.UserIDClaim = "sub"
	}
	if cfg.RoleClaim == "" {
		cfg.RoleClaim = "role"
	}
	return &Verifier{cfg: cfg}
}

// Verify parses a raw token (with or without the "Bearer " prefix).
func (v *Verifier) Verify(raw string) (*Principal, error) {
	tokenStr := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if tokenStr == "" {
		return nil, ErrMissingToken
	}
	if v.cfg.Secret == "" {
		return nil, fmt.Errorf("%w: verifier has no secret configured", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.cfg.Leeway),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(v.cfg.Secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, _ := claims[v.cfg.UserIDClaim].(string)
	if userID == "" {
		return nil, fmt.Errorf("%w: claim %q missing", ErrInvalidToken, v.cfg.UserIDClaim)
	}
	role, _ := claims[v.cfg.RoleClaim].(string)
	email, _ := claims["email"].(string)

	return &Principal{UserID: userID, Email: email, Role: role}, nil
}

// Sign issues a token for the given principal. Used by tests and local tooling.
func Sign(secret string, p Principal, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  p.UserID,
		"role": p.Role,
		"exp":  time.Now().Add(ttl).Unix(),
		"iat":  time.Now().Unix(),
	}
	if p.Email != "" {
		claims["email"] = p.Email
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal or nil for anonymous requests.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(ctxKey{}).(*Principal)
	return p
}
