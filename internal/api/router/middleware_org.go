package router

import (
	"net/http"
	"strings"

	"github.com/The-Ops-King/closerMetrix-sub003/internal/tenancy"
)

const orgHeader = "X-Org-Id"

// requireOrgID enforces tenant scoping on admin requests. The org may come
// from the X-Org-Id header or, for convenience, the org_id query parameter.
func requireOrgID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := strings.TrimSpace(r.Header.Get(orgHeader))
		if orgID == "" {
			orgID = strings.TrimSpace(r.URL.Query().Get("org_id"))
		}
		if orgID == "" {
			http.Error(w, "missing X-Org-Id", http.StatusBadRequest)
			return
		}
		ctx := tenancy.WithOrgID(r.Context(), orgID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
