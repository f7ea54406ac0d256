// Package identity resolves the acting user from bearer tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Token validation errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role claim")
)

// Claims are the JWT claims carried by an access token.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTValidator validates HS256 access tokens issued by the identity provider.
type JWTValidator struct {
	secretKey []byte
	issuer    string
	now       func() time.Time
}

// NewJWTValidator creates a validator. An empty issuer accepts tokens from any issuer.
func NewJWTValidator(secretKey, issuer string) *JWTValidator {
	return &JWTValidator{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		now:       time.Now,
	}
}

// ValidateToken parses the token and returns the actor it names.
func (v *JWTValidator) ValidateToken(_ context.Context, tokenString string) (domain.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return v.secretKey, nil
	}, opts...)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return domain.Actor{}, ErrInvalidToken
	}

	role := claims.Role
	if role == "" {
		role = domain.RoleViewer
	}
	if !role.IsValid() {
		return domain.Actor{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	return domain.Actor{ID: claims.Subject, Role: role}, nil
}

// IssueToken signs an access token for actor valid for ttl.
func (v *JWTValidator) IssueToken(actor domain.Actor, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
