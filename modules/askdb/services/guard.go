package services

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/catalog"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/types"
)

// Guard combines the role policy table with a caller's context into the set
// of resources, fields and scope predicates that caller may use. Pure; no
// side effects beyond the CEL program cache.
type Guard struct {
	catalog  *catalog.Catalog
	policies *catalog.PolicyTable
}

func NewGuard(cat *catalog.Catalog, policies *catalog.PolicyTable) *Guard {
	return &Guard{catalog: cat, policies: policies}
}

var newVisibilityCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("ctx", cel.MapType(cel.StringType, cel.StringType)))
}

var visibilityProgramCache sync.Map

func (g *Guard) Resolve(user types.UserContext) types.GuardResult {
	policy := g.policies.PolicyFor(user.Role)
	ctxMap := map[string]string{
		"role":        catalog.NormalizeRole(user.Role),
		"tenant_id":   user.TenantID,
		"scope_count": strconv.Itoa(len(user.ScopeValues)),
	}

	keys := make([]string, 0, len(policy.Grants))
	fields := make(map[string][]string, len(policy.Grants))
	for _, grant := range policy.Grants {
		// A grant referencing a retired resource key is dropped, not an error.
		res, ok := g.catalog.Resource(grant.Resource)
		if !ok {
			continue
		}
		if !grantVisible(grant.VisibilityExpr, ctxMap) {
			continue
		}
		if _, dup := fields[res.Key]; dup {
			continue
		}
		keys = append(keys, res.Key)
		fields[res.Key] = g.catalog.Fields(res.Key)
	}

	scopeValues := append([]string(nil), user.ScopeValues...)
	useScope := policy.UseTenantScope

	return types.GuardResult{
		AllowedResourceKeys: keys,
		AllowedFields:       fields,
		ScopeFilter: func(resourceKey string) types.Filter {
			if !useScope || len(scopeValues) == 0 {
				return nil
			}
			res, ok := g.catalog.Resource(resourceKey)
			if !ok {
				return types.MatchNone{}
			}
			if res.ScopeField == "" {
				// Scoping required but no scope field known: fail closed.
				return types.MatchNone{}
			}
			values := make([]any, len(scopeValues))
			for i, v := range scopeValues {
				values[i] = v
			}
			return types.FieldMatch{Field: res.ScopeField, Op: types.OpIn, Value: values}
		},
	}
}

// Menu builds the resource menu handed to the translator from a guard result.
func (g *Guard) Menu(guard types.GuardResult) []types.ResourceMenuItem {
	menu := make([]types.ResourceMenuItem, 0, len(guard.AllowedResourceKeys))
	for _, key := range guard.AllowedResourceKeys {
		res, ok := g.catalog.Resource(key)
		if !ok {
			continue
		}
		menu = append(menu, types.ResourceMenuItem{
			Key:         res.Key,
			Description: res.Description,
			Fields:      guard.AllowedFields[key],
		})
	}
	return menu
}

// grantVisible evaluates an optional CEL visibility expression. Any compile
// or evaluation failure drops the grant rather than widening it.
func grantVisible(expr string, ctxMap map[string]string) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true
	}
	program, err := loadOrCompileVisibilityProgram(expr)
	if err != nil {
		return false
	}
	out, _, err := program.Eval(map[string]any{"ctx": ctxMap})
	if err != nil {
		return false
	}
	v, ok := out.Value().(bool)
	return ok && v
}

func loadOrCompileVisibilityProgram(expr string) (cel.Program, error) {
	if cached, ok := visibilityProgramCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newVisibilityCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.New("visibility expression must be boolean")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	visibilityProgramCache.Store(expr, program)
	return program, nil
}
