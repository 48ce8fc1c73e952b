package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrTokenExpired signals that the provided session token has expired.
	ErrTokenExpired = errors.New("auth: session token expired")
	// ErrTokenInvalid signals that the provided session token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: session token invalid")
)

// SessionClaims is the JWT payload issued at login by the identity service.
type SessionClaims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier verifies session tokens and returns the decoded claims.
type TokenVerifier interface {
	VerifySessionToken(ctx context.Context, token string) (*SessionClaims, error)
}

// JWTVerifier validates HS256-signed session tokens against a shared secret.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier constructs a verifier for the provided signing secret.
func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &JWTVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}, nil
}

// VerifySessionToken parses and validates the token, returning its claims.
func (v *JWTVerifier) VerifySessionToken(_ context.Context, token string) (*SessionClaims, error) {
	if v == nil {
		return nil, ErrTokenInvalid
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}

	claims := &SessionClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}
