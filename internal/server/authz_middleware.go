package server

import (
	"net/http"
	"os"
	"strings"

	"github.com/dharmendrakumar4525/avidus-askdb/internal/routing"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/catalog"
	"github.com/dharmendrakumar4525/avidus-askdb/pkg/authz"
)

func loadAuthorizer() (*authz.Authorizer, error) {
	modelPath := os.Getenv("AUTHZ_MODEL_PATH")
	if modelPath == "" {
		p, err := defaultConfigPath("config/access/model.conf")
		if err != nil {
			return nil, err
		}
		modelPath = p
	}

	policyPath := os.Getenv("AUTHZ_POLICY_PATH")
	if policyPath == "" {
		p, err := defaultConfigPath("config/access/policy.csv")
		if err != nil {
			return nil, err
		}
		policyPath = p
	}

	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}

	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

type authorizer interface {
	Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error)
}

func withAuthz(classifier *routing.Classifier, a authorizer, policies *catalog.PolicyTable, next http.Handler) http.Handler {
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

		tenant, ok := currentTenant(r.Context())
		if !ok {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "tenant_missing", "tenant missing")
			return
		}

		roleSlug := authz.RoleAnonymous
		if u, ok := currentCaller(r.Context()); ok {
			roleSlug = catalog.NormalizeRole(u.Role)
			if policies != nil {
				// Unknown roles fall back to the default query policy, so the
				// route check uses the same subject the guard will.
				roleSlug = policies.PolicyFor(u.Role).Role
			}
		}

		subject := authz.SubjectFromRoleSlug(roleSlug)
		domain := authz.DomainFromTenantID(tenant.ID)

		object, action, shouldCheck := authzRequirementForRoute(r.Method, path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}

		allowed, enforced, err := a.Authorize(subject, domain, object, action)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if enforced && !allowed {
			routing.WriteError(w, r, rc, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func authzRequirementForRoute(method string, path string) (object string, action string, ok bool) {
	if pathMatchRouteTemplate(path, "/api/askdb/conversations/{conversation_id}") {
		if method == http.MethodGet {
			return authz.ObjectAskDBConversations, authz.ActionRead, true
		}
		return "", "", false
	}
	if pathMatchRouteTemplate(path, "/api/askdb/conversations/{conversation_id}/turns") {
		if method == http.MethodPost {
			return authz.ObjectAskDBAsk, authz.ActionRead, true
		}
		return "", "", false
	}

	switch path {
	case "/api/askdb/ask":
		if method == http.MethodPost {
			return authz.ObjectAskDBAsk, authz.ActionRead, true
		}
		return "", "", false
	case "/api/askdb/catalog":
		if method == http.MethodGet {
			return authz.ObjectAskDBCatalog, authz.ActionRead, true
		}
		return "", "", false
	case "/api/askdb/conversations":
		if method == http.MethodPost {
			return authz.ObjectAskDBConversations, authz.ActionRead, true
		}
		return "", "", false
	default:
		return "", "", false
	}
}

func pathMatchRouteTemplate(path string, template string) bool {
	in := splitRouteSegments(path)
	want := splitRouteSegments(template)
	if len(in) != len(want) {
		return false
	}
	for i := range want {
		w := want[i]
		g := in[i]
		if g == "" {
			return false
		}
		if routeTemplateIsParamSegment(w) {
			continue
		}
		if g != w {
			return false
		}
	}
	return true
}

func splitRouteSegments(path string) []string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func routeTemplateIsParamSegment(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && len(s) > 2
}
