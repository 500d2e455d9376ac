package services

import (
	"sort"
	"strings"

	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/types"
)

const (
	// MaxLimit bounds how many records a single ask may touch; over-large
	// requests are truncated to it, never rejected.
	MaxLimit     int64 = 500
	DefaultLimit int64 = 100

	// maxFilterDepth bounds recursion through nested logical operators so an
	// adversarial intent cannot stack arbitrarily deep trees.
	maxFilterDepth = 6
)

const (
	ClarifyNoAccess = "I can't answer that with the data available to your role. Try asking about something you have access to."
	ClarifyUnclear  = "I couldn't work out what to look up from that question. Could you rephrase it?"
)

// Sanitize validates and rewrites an untrusted intent against the guard's
// allowlists. It returns either a SanitizedQuery or a non-empty clarification
// string; never both, never a partial query. Every rule defaults to
// rejection or dropping, not passthrough.
func Sanitize(intent types.QueryIntent, guard types.GuardResult) (types.SanitizedQuery, string) {
	if c := strings.TrimSpace(intent.Clarification); c != "" {
		return types.SanitizedQuery{}, c
	}

	resourceKey := strings.ToLower(strings.TrimSpace(intent.ResourceKey))
	if resourceKey == "" {
		return types.SanitizedQuery{}, ClarifyUnclear
	}
	if !guard.HasResource(resourceKey) {
		return types.SanitizedQuery{}, ClarifyNoAccess
	}
	allowed := guard.FieldSet(resourceKey)

	filter := sanitizeFilterMap(intent.Filter, allowed, 0)
	projection := sanitizeProjection(intent.Projection, guard.AllowedFields[resourceKey], allowed)
	limit := clampLimit(intent.Limit)

	return types.SanitizedQuery{
		ResourceKey: resourceKey,
		Filter:      filter,
		Projection:  projection,
		Limit:       limit,
	}, ""
}

var comparisonOps = map[string]types.Op{
	"$eq":  types.OpEq,
	"$ne":  types.OpNe,
	"$gt":  types.OpGt,
	"$gte": types.OpGte,
	"$lt":  types.OpLt,
	"$lte": types.OpLte,
	"$in":  types.OpIn,
}

// sanitizeFilterMap walks a raw filter object, keeping only allowed fields
// and known operators. Returns nil when nothing survives. The walk inspects
// key shapes only; values are carried opaquely and never evaluated.
func sanitizeFilterMap(raw map[string]any, allowed map[string]struct{}, depth int) types.Filter {
	if len(raw) == 0 || depth > maxFilterDepth {
		return nil
	}

	children := make([]types.Filter, 0, len(raw))
	for _, key := range sortedKeys(raw) {
		value := raw[key]
		switch {
		case key == "$and" || key == "$or":
			branches := sanitizeLogicalBranches(value, allowed, depth+1)
			if len(branches) == 0 {
				continue
			}
			if key == "$and" {
				children = append(children, types.And{Children: branches})
			} else {
				children = append(children, types.Or{Children: branches})
			}
		case strings.HasPrefix(key, "$"):
			// Operator in field position that is not a known logical
			// operator: dropped silently.
			continue
		default:
			if fm, ok := sanitizeFieldEntry(key, value, allowed); ok {
				children = append(children, fm...)
			}
		}
	}

	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	default:
		return types.And{Children: children}
	}
}

func sanitizeLogicalBranches(value any, allowed map[string]struct{}, depth int) []types.Filter {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	branches := make([]types.Filter, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if f := sanitizeFilterMap(m, allowed, depth); f != nil {
			branches = append(branches, f)
		}
	}
	return branches
}

// sanitizeFieldEntry handles one field-path key. Only the top-level path
// segment is kept, and only when it is an allowed field; otherwise the whole
// key/value pair is dropped.
func sanitizeFieldEntry(key string, value any, allowed map[string]struct{}) ([]types.Filter, bool) {
	field := strings.TrimSpace(key)
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[:i]
	}
	if field == "" {
		return nil, false
	}
	if _, ok := allowed[field]; !ok {
		return nil, false
	}

	opMap, ok := value.(map[string]any)
	if !ok {
		// Scalar (or array) value: plain equality.
		return []types.Filter{types.FieldMatch{Field: field, Op: types.OpEq, Value: value}}, true
	}

	matches := make([]types.Filter, 0, len(opMap))
	for _, opKey := range sortedKeys(opMap) {
		op, known := comparisonOps[opKey]
		if !known {
			continue
		}
		opValue := opMap[opKey]
		if op == types.OpIn {
			values, isList := opValue.([]any)
			if !isList {
				continue
			}
			matches = append(matches, types.FieldMatch{Field: field, Op: types.OpIn, Value: values})
			continue
		}
		// A document operand could carry its own $-keys down to the store.
		// Comparisons are scalar-only; drop the pair.
		if _, isMap := opValue.(map[string]any); isMap {
			continue
		}
		matches = append(matches, types.FieldMatch{Field: field, Op: op, Value: opValue})
	}
	if len(matches) == 0 {
		return nil, false
	}
	return matches, true
}

// sanitizeProjection keeps requested fields that are allowed and marked with
// the include marker. Empty result means "all allowed fields". Ordered by the
// resource's field order so output is deterministic.
func sanitizeProjection(raw map[string]any, orderedFields []string, allowed map[string]struct{}) []string {
	if len(raw) == 0 {
		return nil
	}
	requested := make(map[string]struct{}, len(raw))
	for key, value := range raw {
		if !isIncludeMarker(value) {
			continue
		}
		field := strings.TrimSpace(key)
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[:i]
		}
		if _, ok := allowed[field]; !ok {
			continue
		}
		requested[field] = struct{}{}
	}
	if len(requested) == 0 {
		return nil
	}
	out := make([]string, 0, len(requested))
	for _, f := range orderedFields {
		if _, ok := requested[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

func isIncludeMarker(v any) bool {
	switch n := v.(type) {
	case bool:
		return n
	case float64:
		return n == 1
	case int:
		return n == 1
	case int64:
		return n == 1
	default:
		return false
	}
}

func clampLimit(raw any) int64 {
	var n int64
	switch v := raw.(type) {
	case float64:
		n = int64(v)
	case int:
		n = int64(v)
	case int64:
		n = v
	case int32:
		n = int64(v)
	default:
		return DefaultLimit
	}
	if n < 1 {
		return 1
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
