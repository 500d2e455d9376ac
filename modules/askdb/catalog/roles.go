package catalog

import (
	"errors"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultRole is the policy applied to any role with no explicit entry.
const DefaultRole = "default"

// Grant allows one resource to a role. VisibilityExpr is an optional CEL
// expression over a string-map ctx (role, tenant_id, scope_count); it must
// evaluate to true for the grant to apply. Absent means visible.
type Grant struct {
	Resource       string `yaml:"resource"`
	VisibilityExpr string `yaml:"visibility_expr"`
}

type RolePolicy struct {
	Role           string  `yaml:"role"`
	Grants         []Grant `yaml:"grants"`
	UseTenantScope bool    `yaml:"use_tenant_scope"`
}

type PolicyTable struct {
	byRole map[string]RolePolicy
}

type rolesFile struct {
	Version  int          `yaml:"version"`
	Policies []RolePolicy `yaml:"policies"`
}

// NormalizeRole lower-cases, trims, and collapses internal whitespace to a
// single underscore, so "Store Manager" and "store_manager" resolve to the
// same policy.
func NormalizeRole(role string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(role)))
	return strings.Join(parts, "_")
}

func ParseRolesYAML(b []byte) (*PolicyTable, error) {
	var rf rolesFile
	if err := yaml.Unmarshal(b, &rf); err != nil {
		return nil, err
	}
	if rf.Version != 1 {
		return nil, errors.New("roles: unsupported version")
	}
	if len(rf.Policies) == 0 {
		return nil, errors.New("roles: empty")
	}

	t := &PolicyTable{byRole: make(map[string]RolePolicy, len(rf.Policies))}
	for _, p := range rf.Policies {
		p.Role = NormalizeRole(p.Role)
		if p.Role == "" {
			return nil, errors.New("roles: blank role name")
		}
		if _, dup := t.byRole[p.Role]; dup {
			return nil, errors.New("roles: duplicate role " + p.Role)
		}
		grants := make([]Grant, 0, len(p.Grants))
		for _, g := range p.Grants {
			g.Resource = strings.ToLower(strings.TrimSpace(g.Resource))
			g.VisibilityExpr = strings.TrimSpace(g.VisibilityExpr)
			if g.Resource == "" {
				return nil, errors.New("roles: blank grant resource for role " + p.Role)
			}
			grants = append(grants, g)
		}
		p.Grants = grants
		t.byRole[p.Role] = p
	}
	if _, ok := t.byRole[DefaultRole]; !ok {
		return nil, errors.New("roles: missing default policy")
	}
	return t, nil
}

func LoadRoles(path string) (*PolicyTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRolesYAML(b)
}

// LoadRolesFromEnv reads ASKDB_ROLES_PATH or falls back to the default config
// location.
func LoadRolesFromEnv() (*PolicyTable, error) {
	path := os.Getenv("ASKDB_ROLES_PATH")
	if path == "" {
		p, err := findConfigFile("config/askdb/roles.yaml")
		if err != nil {
			return nil, err
		}
		path = p
	}
	return LoadRoles(path)
}

// PolicyFor never errors on an unknown role: it falls back to the default
// policy.
func (t *PolicyTable) PolicyFor(role string) RolePolicy {
	if p, ok := t.byRole[NormalizeRole(role)]; ok {
		return p
	}
	return t.byRole[DefaultRole]
}

func (t *PolicyTable) Roles() []string {
	out := make([]string, 0, len(t.byRole))
	for r := range t.byRole {
		out = append(out, r)
	}
	return out
}
