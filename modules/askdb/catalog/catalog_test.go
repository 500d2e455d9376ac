package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

const testCatalogYAML = `
version: 1
resources:
  - key: sites
    collection: sites
    scope_field: _id
    description: Stores and warehouses.
    fields: [_id, name, code, status]
  - key: purchase_orders
    collection: purchase_orders
    scope_field: site_id
    description: Purchase orders.
    fields: [_id, po_number, site_id, status, total_amount]
  - key: vendors
    collection: vendors
    description: Vendors.
    fields: [_id, name, email]
`

func TestParseCatalogYAML(t *testing.T) {
	c, err := ParseCatalogYAML([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	keys := c.Keys()
	if len(keys) != 3 || keys[0] != "sites" || keys[1] != "purchase_orders" || keys[2] != "vendors" {
		t.Fatalf("keys=%v", keys)
	}

	r, ok := c.Resource("sites")
	if !ok {
		t.Fatal("sites missing")
	}
	if r.Collection != "sites" || r.ScopeField != "_id" {
		t.Fatalf("resource=%+v", r)
	}
	if !c.Has("purchase_orders") || c.Has("payroll") {
		t.Fatal("Has mismatch")
	}

	r, ok = c.Resource("vendors")
	if !ok {
		t.Fatal("vendors missing")
	}
	if r.ScopeField != "" {
		t.Fatalf("scope_field=%q", r.ScopeField)
	}
}

func TestParseCatalogYAML_KeyCaseInsensitive(t *testing.T) {
	c, err := ParseCatalogYAML([]byte(`
version: 1
resources:
  - key: " Sites "
    collection: sites
    fields: [_id, name]
`))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !c.Has("sites") {
		t.Fatal("normalized key not found")
	}
}

func TestParseCatalogYAML_Rejects(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad version", "version: 2\nresources:\n  - key: a\n    collection: a\n    fields: [x]\n"},
		{"empty", "version: 1\nresources: []\n"},
		{"missing collection", "version: 1\nresources:\n  - key: a\n    fields: [x]\n"},
		{"no fields", "version: 1\nresources:\n  - key: a\n    collection: a\n"},
		{"blank field", "version: 1\nresources:\n  - key: a\n    collection: a\n    fields: [\"\"]\n"},
		{"duplicate field", "version: 1\nresources:\n  - key: a\n    collection: a\n    fields: [x, x]\n"},
		{"duplicate key", "version: 1\nresources:\n  - key: a\n    collection: a\n    fields: [x]\n  - key: a\n    collection: b\n    fields: [y]\n"},
		{"not yaml", "{{"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseCatalogYAML([]byte(tc.yaml)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestCatalogFields_ReturnsCopy(t *testing.T) {
	c, err := ParseCatalogYAML([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	fields := c.Fields("sites")
	if len(fields) != 4 {
		t.Fatalf("fields=%v", fields)
	}
	fields[0] = "mutated"

	again := c.Fields("sites")
	if again[0] != "_id" {
		t.Fatalf("catalog mutated: %v", again)
	}

	if got := c.Fields("nope"); got != nil {
		t.Fatalf("unknown resource fields=%v", got)
	}
}

func TestLoadCatalogFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte(testCatalogYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ASKDB_CATALOG_PATH", path)
	c, err := LoadCatalogFromEnv()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !c.Has("sites") {
		t.Fatal("sites missing")
	}
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}
