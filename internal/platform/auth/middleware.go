package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	defaultFallbackRole  = RoleUser
	defaultCookieName    = "snapedits_session"
	defaultVerifyTimeout = 5 * time.Second
)

// Authenticator wires session token verification into HTTP middleware.
type Authenticator struct {
	verifier TokenVerifier

	cookieName   string
	fallbackRole string
	timeout      time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithCookieName overrides the cookie inspected for the session token.
func WithCookieName(name string) Option {
	return func(a *Authenticator) {
		name = strings.TrimSpace(name)
		if name != "" {
			a.cookieName = name
		}
	}
}

// WithFallbackRole sets the default role when the token carries no roles claim.
func WithFallbackRole(role string) Option {
	return func(a *Authenticator) {
		role = normaliseRole(role)
		if role != "" {
			a.fallbackRole = role
		}
	}
}

// WithVerificationTimeout sets the timeout used when verifying tokens.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:     verifier,
		cookieName:   defaultCookieName,
		fallbackRole: defaultFallbackRole,
		timeout:      defaultVerifyTimeout,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// RequireAuth verifies the session token from the cookie or Authorization
// header and ensures the identity holds one of the allowed roles when any are
// provided.
func (a *Authenticator) RequireAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		role = normaliseRole(role)
		if role == "" {
			continue
		}
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := a.extractToken(r)
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "session token missing")
				return
			}
			if a == nil || a.verifier == nil {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable")
				return
			}

			ctx, cancel := a.contextWithTimeout(r.Context())
			if cancel != nil {
				defer cancel()
			}

			claims, err := a.verifier.VerifySessionToken(ctx, tokenStr)
			if err != nil {
				switch {
				case errors.Is(err, ErrTokenExpired):
					respondAuthError(w, http.StatusUnauthorized, "token_expired", "session token expired")
				default:
					respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "session token invalid")
				}
				return
			}

			identity := a.identityFromClaims(claims)
			if len(allowed) > 0 && !hasAllowedRole(identity, allowed) {
				respondAuthError(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func (a *Authenticator) extractToken(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	cookieName := defaultCookieName
	if a != nil && a.cookieName != "" {
		cookieName = a.cookieName
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value, true
		}
	}
	return extractBearerToken(r.Header.Get("Authorization"))
}

func (a *Authenticator) identityFromClaims(claims *SessionClaims) *Identity {
	identity := &Identity{
		UID:   strings.TrimSpace(claims.Subject),
		Email: strings.ToLower(strings.TrimSpace(claims.Email)),
	}
	for _, role := range claims.Roles {
		role = normaliseRole(role)
		if role == "" {
			continue
		}
		identity.Roles = append(identity.Roles, role)
	}
	if len(identity.Roles) == 0 {
		fallback := defaultFallbackRole
		if a != nil && a.fallbackRole != "" {
			fallback = a.fallbackRole
		}
		identity.Roles = []string{fallback}
	}
	return identity
}

func (a *Authenticator) contextWithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a == nil || a.timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, a.timeout)
}

func hasAllowedRole(identity *Identity, allowed map[string]struct{}) bool {
	if identity == nil {
		return false
	}
	for _, role := range identity.Roles {
		if _, ok := allowed[normaliseRole(role)]; ok {
			return true
		}
	}
	return false
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	})
}
