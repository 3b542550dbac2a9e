// ABOUTME: Bearer token verification for Supabase-issued JWTs
// ABOUTME: Tokens are HS256 signed with the project's JWT secret
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/harperreed/taxdesk/models"
)

// Audience is the audience Supabase stamps on user sessions.
const Audience = "authenticated"

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Email  string
}

// TokenVerifier turns a bearer token into a principal.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

type supabaseClaims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens against a shared secret.
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewJWTVerifier creates a verifier for secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), now: time.Now}
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (Principal, error) {
	if err := ctx.Err(); err != nil {
		return Principal{}, err
	}
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return Principal{}, fmt.Errorf("%w: missing bearer token", models.ErrUnauthorized)
	}
	if len(v.secret) == 0 {
		return Principal{}, fmt.Errorf("%w: token verification is not configured", models.ErrUnauthorized)
	}

	var claims supabaseClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	if !claims.VerifyAudience(Audience, false) {
		return Principal{}, fmt.Errorf("%w: unexpected audience", models.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: token has no subject", models.ErrUnauthorized)
	}

	return Principal{UserID: claims.Subject, Email: claims.Email}, nil
}

// Sign issues a token for userID the way Supabase would. Used by operator
// tooling and tests.
func (v *JWTVerifier) Sign(userID, email string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("no signing secret configured")
	}
	now := v.now()
	claims := supabaseClaims{
		Email: email,
		Role:  Audience,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

type principalKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored on ctx.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
