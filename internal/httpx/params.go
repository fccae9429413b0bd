package httpx

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// URLParam returns a decoded chi path parameter. chi matches on RawPath when
// it is set, which leaves escapes such as %2F in the captured segment.
func URLParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v
	}
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}
