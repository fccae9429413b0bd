package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-shop-saga/internal/httpx"
)

// TokenVerifier is what HTTP middleware and the order coordinator need from Verifier.
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// Principal is the verified caller plus the raw token, kept so it can be
// forwarded to downstream services.
type Principal struct {
	Claims
	Token string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// BearerToken returns the token of an "Authorization: Bearer <t>" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	t := strings.TrimSpace(h[len(prefix):])
	return t, t != ""
}

// Authenticate re-verifies the bearer token on every request and stores the
// principal in the context. Any failure is a bare 401.
func Authenticate(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				unauthorized(w)
				return
			}
			ctx := WithPrincipal(r.Context(), Principal{Claims: claims, Token: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles must run after Authenticate.
func RequireRoles(allowed RoleSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				unauthorized(w)
				return
			}
			if !allowed.Has(p.Role) {
				httpx.WriteError(w, http.StatusForbidden, httpx.CodeForbidden, "role not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "unauthorized")
}
