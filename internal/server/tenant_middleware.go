package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dharmendrakumar4525/avidus-askdb/internal/routing"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/ports"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/infrastructure/persistence"
	"github.com/dharmendrakumar4525/avidus-askdb/pkg/httperr"
)

// callerHeader carries the authenticated caller id injected by the edge
// proxy. The gateway trusts it; authentication itself happens upstream.
const callerHeader = "X-Auth-User"

func withTenantAndCaller(classifier *routing.Classifier, tenants map[string]Tenant, directory ports.IdentityDirectory, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.RouteClassUI
		if classifier != nil {
			rc = classifier.Classify(path)
		}

		if path == "/health" || path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		domain := hostWithoutPort(r.Host)
		t, ok := tenants[domain]
		if !ok {
			routing.WriteError(w, r, rc, http.StatusNotFound, "tenant_not_found", "tenant not found")
			return
		}
		r = r.WithContext(withTenant(r.Context(), t))

		callerID := strings.TrimSpace(r.Header.Get(callerHeader))
		if callerID == "" {
			routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}

		user, err := directory.Resolve(r.Context(), t.ID, callerID)
		if err != nil {
			if errors.Is(err, persistence.ErrCallerNotFound) {
				routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthorized", "unauthorized")
				return
			}
			if httperr.IsBadRequest(err) {
				routing.WriteError(w, r, rc, http.StatusBadRequest, "invalid_request", "invalid request")
				return
			}
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "caller_resolve_error", "caller resolve error")
			return
		}
		r = r.WithContext(withCaller(r.Context(), user))

		next.ServeHTTP(w, r)
	})
}
