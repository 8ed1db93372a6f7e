package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// Methods and headers the API accepts from browsers.
var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")
	corsHeaders = strings.Join([]string{"Content-Type", "Last-Event-ID", RequestIDHeader}, ", ")
)

const preflightMaxAge = 24 * 60 * 60

// Origins is the set of browser origins allowed to call the API. The zero
// value and an empty list allow any origin.
type Origins struct {
	list     []string
	wildcard bool
}

// NewOrigins returns the policy for list. A "*" entry allows any origin
// while still echoing it back.
func NewOrigins(list []string) Origins {
	return Origins{list: slices.Clone(list), wildcard: slices.Contains(list, "*")}
}

// Allows reports whether requests from origin are accepted. Requests
// without an Origin header are not cross-origin and always pass.
func (o Origins) Allows(origin string) bool {
	return origin == "" || len(o.list) == 0 || o.wildcard || slices.Contains(o.list, origin)
}

// CheckOrigin applies the policy to WebSocket upgrades.
func (o Origins) CheckOrigin(r *http.Request) bool {
	return o.Allows(r.Header.Get("Origin"))
}

// allowOrigin is the Access-Control-Allow-Origin value for origin, or ""
// when the header must be omitted.
func (o Origins) allowOrigin(origin string) string {
	switch {
	case len(o.list) == 0:
		return "*"
	case origin != "" && o.Allows(origin):
		return origin
	default:
		return ""
	}
}

// CORS answers preflight requests and adds CORS headers for the allowed
// origins. Preflights never reach next.
func CORS(origins Origins) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if allow := origins.allowOrigin(r.Header.Get("Origin")); allow != "" {
				h.Set("Access-Control-Allow-Origin", allow)
				if allow != "*" {
					h.Add("Vary", "Origin")
				}
			}
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)

			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Max-Age", strconv.Itoa(preflightMaxAge))
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
