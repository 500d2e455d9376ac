package types

// UserContext identifies the caller for one request. Constructed from trusted
// authentication data, never persisted, never mutated after construction.
type UserContext struct {
	CallerID    string
	TenantID    string
	Role        string
	ScopeValues []string
}

// GuardResult is what a role is allowed to touch. Derived per request from the
// role policy table and the resource catalog.
type GuardResult struct {
	AllowedResourceKeys []string
	AllowedFields       map[string][]string
	ScopeFilter         func(resourceKey string) Filter
}

func (g GuardResult) HasResource(key string) bool {
	for _, k := range g.AllowedResourceKeys {
		if k == key {
			return true
		}
	}
	return false
}

// FieldSet returns the allowed field names of a resource as a lookup set.
func (g GuardResult) FieldSet(resourceKey string) map[string]struct{} {
	fields := g.AllowedFields[resourceKey]
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// ResourceMenuItem is one entry of the menu handed to the intent translator.
type ResourceMenuItem struct {
	Key         string   `json:"key"`
	Description string   `json:"description"`
	Fields      []string `json:"fields"`
}

// QueryIntent is the translator's output. Every field is untrusted input:
// unknown resources, fields and operators are rejected or dropped by the
// sanitizer before anything touches a store.
type QueryIntent struct {
	ResourceKey   string         `json:"resource,omitempty"`
	Filter        map[string]any `json:"filter,omitempty"`
	Projection    map[string]any `json:"projection,omitempty"`
	Limit         any            `json:"limit,omitempty"`
	Clarification string         `json:"clarification,omitempty"`
}

type Op string

const (
	OpEq  Op = "$eq"
	OpNe  Op = "$ne"
	OpGt  Op = "$gt"
	OpGte Op = "$gte"
	OpLt  Op = "$lt"
	OpLte Op = "$lte"
	OpIn  Op = "$in"
)

// Filter is a sanitized predicate tree. Only the sanitizer and the policy
// guard construct Filter values; raw translator filters never cross this
// boundary untyped.
type Filter interface {
	isFilter()
}

type FieldMatch struct {
	Field string
	Op    Op
	Value any
}

type And struct {
	Children []Filter
}

type Or struct {
	Children []Filter
}

// MatchNone is the fail-closed predicate: a resource requires scoping but has
// no known scope field, so the query must match nothing.
type MatchNone struct{}

func (FieldMatch) isFilter() {}
func (And) isFilter()        {}
func (Or) isFilter()         {}
func (MatchNone) isFilter()  {}

// SanitizedQuery is the only query shape the executor accepts. Invariant:
// every field name in Filter and Projection is an allowed field of
// ResourceKey.
type SanitizedQuery struct {
	ResourceKey string
	Filter      Filter
	Projection  []string
	Limit       int64
}

// ExecutionResult is produced fresh per call and never cached. Total counts
// the records actually returned after limiting, not all matches in the store.
type ExecutionResult struct {
	ResourceKey string
	Records     []map[string]any
	Total       int
	Err         string
}

type RenderedResponse struct {
	Text        string           `json:"text"`
	ResourceKey string           `json:"resource_key,omitempty"`
	Data        []map[string]any `json:"data"`
	Total       int              `json:"total"`
	HasData     bool             `json:"has_data"`
}
