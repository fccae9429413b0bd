package gateway

import (
	"fmt"
	"net/url"
	"strings"
)

// APIPrefix is stripped from every proxied path.
const APIPrefix = "/api"

type Route struct {
	Prefix   string // public prefix, e.g. /api/orders
	Upstream *url.URL
}

func (rt Route) matches(p string) bool {
	return p == rt.Prefix || strings.HasPrefix(p, rt.Prefix+"/")
}

// Table maps public prefixes to upstream services.
type Table []Route

// NewTable builds the standard auth, catalog and orders routes.
func NewTable(authURL, catalogURL, ordersURL string) (Table, error) {
	targets := []struct{ prefix, raw string }{
		{APIPrefix + "/auth", authURL},
		{APIPrefix + "/catalog", catalogURL},
		{APIPrefix + "/orders", ordersURL},
	}
	t := make(Table, 0, len(targets))
	for _, tg := range targets {
		u, err := url.Parse(tg.raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("gateway: invalid upstream %q for %s", tg.raw, tg.prefix)
		}
		t = append(t, Route{Prefix: tg.prefix, Upstream: u})
	}
	return t, nil
}

// Match returns the route owning path p.
func (t Table) Match(p string) (Route, bool) {
	for _, rt := range t {
		if rt.matches(p) {
			return rt, true
		}
	}
	return Route{}, false
}
