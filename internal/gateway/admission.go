package gateway

import (
	"net/http"
	"path"
	"strings"

	"github.com/ariefcatur/go-shop-saga/internal/auth"
	"github.com/ariefcatur/go-shop-saga/internal/httpx"
	"go.uber.org/zap"
)

var publicPaths = map[string]bool{
	APIPrefix + "/auth/register": true,
	APIPrefix + "/auth/login":    true,
}

const catalogPrefix = APIPrefix + "/catalog"

// IsPublic reports whether a request may pass without a token: register,
// login, and any GET under the catalog.
func IsPublic(method, p string) bool {
	if publicPaths[p] {
		return true
	}
	return method == http.MethodGet && (p == catalogPrefix || strings.HasPrefix(p, catalogPrefix+"/"))
}

// CleanPath resolves dot segments so admission and routing see the same
// path the upstream will.
func CleanPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := path.Clean("/" + r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/") && c != "/" {
			c += "/"
		}
		if c != r.URL.Path {
			r.URL.Path = c
			r.URL.RawPath = ""
		}
		next.ServeHTTP(w, r)
	})
}

// Admission rejects non-public requests without a valid bearer token.
// Upstream services verify the token again.
func Admission(v auth.TokenVerifier, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublic(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			tok, ok := auth.BearerToken(r)
			if ok {
				if _, err := v.Verify(tok); err == nil {
					next.ServeHTTP(w, r)
					return
				}
			}
			log.Debug("gateway_rejected", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Bool("has_token", ok))
			w.Header().Set("WWW-Authenticate", "Bearer")
			httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "unauthorized")
		})
	}
}
