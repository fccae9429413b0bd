package gateway

import (
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/ariefcatur/go-shop-saga/internal/auth"
	"github.com/ariefcatur/go-shop-saga/internal/httpx"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const CodeBadGateway = "bad_gateway"

type Handler struct {
	Routes   Table
	Verifier auth.TokenVerifier
	Log      *zap.Logger
}

func (h *Handler) Register(r chi.Router) {
	proxies := make(map[string]*httputil.ReverseProxy, len(h.Routes))
	for _, rt := range h.Routes {
		proxies[rt.Prefix] = h.proxyFor(rt)
	}

	r.Group(func(r chi.Router) {
		r.Use(CleanPath, Admission(h.Verifier, h.log()))
		r.Handle(APIPrefix+"/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rt, ok := h.Routes.Match(r.URL.Path)
			if !ok {
				httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "no route for "+r.URL.Path)
				return
			}
			proxies[rt.Prefix].ServeHTTP(w, r)
		}))
	})
}

func (h *Handler) proxyFor(rt Route) *httputil.ReverseProxy {
	log := h.log().With(zap.String("upstream", rt.Upstream.Host))
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = strings.TrimPrefix(pr.Out.URL.Path, APIPrefix)
			if pr.Out.URL.RawPath != "" {
				pr.Out.URL.RawPath = strings.TrimPrefix(pr.Out.URL.RawPath, APIPrefix)
			}
			pr.SetURL(rt.Upstream)
			pr.SetXForwarded()
			otel.GetTextMapPropagator().Inject(pr.In.Context(), propagation.HeaderCarrier(pr.Out.Header))
		},
		FlushInterval: 100 * time.Millisecond,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn("upstream_failed", zap.String("path", r.URL.Path), zap.Error(err))
			httpx.WriteError(w, http.StatusBadGateway, CodeBadGateway, "upstream unavailable")
		},
	}
}

func (h *Handler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
