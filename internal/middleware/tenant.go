package middleware

import (
	"net/http"

	"github.com/velumlabs/fulfillment/internal/tenant"
)

const tenantHeader = "X-Tenant-ID"

// Tenant puts the caller's tenant id into the request context. Requests
// without the header pass through; the services reject them when they try
// to resolve the tenant.
func Tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(tenantHeader); id != "" {
			r = r.WithContext(tenant.WithContext(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
