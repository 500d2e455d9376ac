package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/catalog"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/ports"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/types"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/infrastructure/persistence"
)

const serverTestCatalogYAML = `
version: 1
resources:
  - key: sites
    collection: sites
    scope_field: _id
    description: Stores and warehouses.
    fields: [_id, name, code, status]
  - key: tickets
    collection: tickets
    scope_field: site_id
    description: Support tickets.
    fields: [_id, ticket_number, site_id, title, status]
`

const serverTestRolesYAML = `
version: 1
policies:
  - role: default
    use_tenant_scope: true
    grants:
      - resource: sites
  - role: store_manager
    use_tenant_scope: true
    grants:
      - resource: sites
      - resource: tickets
`

const testTenantID = "11111111-1111-1111-1111-111111111111"
const testTenantHost = "acme.test"

type staticDirectory struct {
	users map[string]types.UserContext
}

func (d staticDirectory) Resolve(_ context.Context, tenantID string, callerID string) (types.UserContext, error) {
	u, ok := d.users[callerID]
	if !ok || u.TenantID != tenantID {
		return types.UserContext{}, persistence.ErrCallerNotFound
	}
	return u, nil
}

type stubFinder struct {
	records []map[string]any
	err     error
	calls   []ports.FindRequest
}

func (f *stubFinder) Find(_ context.Context, req ports.FindRequest) ([]map[string]any, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type stubTranslator struct {
	intent types.QueryIntent
	err    error
	calls  int
}

func (s *stubTranslator) Translate(_ context.Context, _ string, _ []types.ResourceMenuItem) (types.QueryIntent, error) {
	s.calls++
	return s.intent, s.err
}

type allowAllAuthorizer struct{}

func (allowAllAuthorizer) Authorize(string, string, string, string) (bool, bool, error) {
	return true, true, nil
}

type denyAllAuthorizer struct{}

func (denyAllAuthorizer) Authorize(string, string, string, string) (bool, bool, error) {
	return false, true, nil
}

type erroringAuthorizer struct{}

func (erroringAuthorizer) Authorize(string, string, string, string) (bool, bool, error) {
	return false, false, errors.New("enforcer broken")
}

type handlerFixture struct {
	finder     *stubFinder
	translator *stubTranslator
}

func writeTestAllowlist(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "allowlist.yaml")
	content := `
version: 1
entrypoints:
  server:
    routes:
      - path: /health
        methods: [GET]
        route_class: ops
      - path: /api/askdb/ask
        methods: [POST]
        route_class: public_api
      - path: /api/askdb/catalog
        methods: [GET]
        route_class: public_api
      - path: /api/askdb/conversations
        methods: [POST]
        route_class: public_api
      - path: /api/askdb/conversations/{conversation_id}
        methods: [GET]
        route_class: public_api
      - path: /api/askdb/conversations/{conversation_id}/turns
        methods: [POST]
        route_class: public_api
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ALLOWLIST_PATH", path)
}

func newTestHandler(t *testing.T, auth authorizer) (http.Handler, *handlerFixture) {
	t.Helper()
	writeTestAllowlist(t)

	cat, err := catalog.ParseCatalogYAML([]byte(serverTestCatalogYAML))
	if err != nil {
		t.Fatalf("catalog err=%v", err)
	}
	policies, err := catalog.ParseRolesYAML([]byte(serverTestRolesYAML))
	if err != nil {
		t.Fatalf("roles err=%v", err)
	}

	fixture := &handlerFixture{
		finder:     &stubFinder{records: []map[string]any{{"name": "Central", "status": "active"}}},
		translator: &stubTranslator{intent: types.QueryIntent{ResourceKey: "sites"}},
	}

	directory := staticDirectory{users: map[string]types.UserContext{
		"user-1": {CallerID: "user-1", TenantID: testTenantID, Role: "store_manager", ScopeValues: []string{"site1"}},
		"user-2": {CallerID: "user-2", TenantID: testTenantID, Role: "Janitor"},
	}}

	h, err := NewHandlerWithOptions(HandlerOptions{
		Tenants:    map[string]Tenant{testTenantHost: {ID: testTenantID, Domain: testTenantHost, Name: "Acme"}},
		Directory:  directory,
		Store:      fixture.finder,
		Translator: fixture.translator,
		Catalog:    cat,
		Policies:   policies,
		Authorizer: auth,
	})
	if err != nil {
		t.Fatalf("handler err=%v", err)
	}
	return h, fixture
}
