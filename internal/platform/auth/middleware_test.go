package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, claims SessionClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestAuthenticator(t *testing.T, opts ...Option) *Authenticator {
	t.Helper()
	verifier, err := NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}
	return NewAuthenticator(verifier, opts...)
}

func TestRequireAuthFromCookie(t *testing.T) {
	authn := newTestAuthenticator(t, WithCookieName("session"))

	token := signToken(t, SessionClaims{
		Email: "Customer@Example.com",
		Roles: []string{"User"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	var seen *Identity
	handler := authn.RequireAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if seen == nil || seen.UID != "user-1" {
		t.Fatalf("unexpected identity: %+v", seen)
	}
	if seen.Email != "customer@example.com" {
		t.Errorf("expected lowercased email, got %s", seen.Email)
	}
	if !seen.HasRole(RoleUser) {
		t.Error("expected user role")
	}
}

func TestRequireAuthFromBearerHeader(t *testing.T) {
	authn := newTestAuthenticator(t)

	token := signToken(t, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-2",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	handler := authn.RequireAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok || identity.UID != "user-2" {
			t.Errorf("unexpected identity: %+v", identity)
		}
		if !identity.HasRole(RoleUser) {
			t.Error("expected fallback user role")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	authn := newTestAuthenticator(t)

	handler := authn.RequireAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be invoked")
	}))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthRejectsExpiredToken(t *testing.T) {
	authn := newTestAuthenticator(t)

	token := signToken(t, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-3",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	handler := authn.RequireAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be invoked")
	}))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthEnforcesRoles(t *testing.T) {
	authn := newTestAuthenticator(t)

	token := signToken(t, SessionClaims{
		Roles: []string{RoleUser},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-4",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	handler := authn.RequireAuth(RoleAdmin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be invoked")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestVerifySessionTokenRejectsWrongAlgorithm(t *testing.T) {
	verifier, err := NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodNone, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-5"},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := verifier.VerifySessionToken(context.Background(), signed); err == nil {
		t.Fatal("expected verification failure for alg=none token")
	}
}
