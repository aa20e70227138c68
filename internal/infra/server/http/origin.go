package httpserver

import (
	"net/http"
	"net/url"
	"strings"
)

// originPolicy admits requests without an Origin header (CLI, scripts), same-origin browser
// requests, and browser requests from explicitly configured origins. Everything else is refused
// before it reaches a handler, so a foreign page cannot drive the API with simple requests either.
type originPolicy struct {
	allowed map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		if normalized := normalizeOrigin(origin); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}
	return originPolicy{allowed: allowed}
}

func normalizeOrigin(origin string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")
}

// check reports whether r may be served and whether it is a cross-origin request that needs
// CORS response headers.
func (p originPolicy) check(r *http.Request) (ok bool, crossOrigin bool) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true, false
	}
	if u, err := url.Parse(origin); err == nil && u.Host != "" && strings.EqualFold(u.Host, r.Host) {
		return true, false
	}
	_, listed := p.allowed[normalizeOrigin(origin)]
	return listed, listed
}

// checkOrigin is the websocket upgrader's origin hook.
func (p originPolicy) checkOrigin(r *http.Request) bool {
	ok, _ := p.check(r)
	return ok
}

func withCORS(policy originPolicy, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		ok, crossOrigin := policy.check(r)
		if !ok {
			writeError(w, http.StatusForbidden, "origin not allowed")
			return
		}
		if crossOrigin {
			w.Header().Set("Access-Control-Allow-Origin", r.Header.Get("Origin"))
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
