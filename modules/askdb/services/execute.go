package services

import (
	"context"
	"errors"
	"time"

	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/catalog"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/ports"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/types"
)

const (
	ErrKindInvalidResource  = "invalid_resource"
	ErrKindExecutionTimeout = "execution_timeout"
	ErrKindExecutionFailure = "execution_failure"

	// tenantField is the tenant discriminator column every operational
	// collection carries.
	tenantField = "tenant_id"

	defaultExecTimeout = 15 * time.Second
)

// Executor runs sanitized queries against the operational store. Tenant
// isolation lives here and nowhere else: the tenant predicate is merged
// unconditionally into every fetch, whatever the upstream filter says.
type Executor struct {
	store   ports.DocumentFinder
	catalog *catalog.Catalog
	timeout time.Duration
}

func NewExecutor(store ports.DocumentFinder, cat *catalog.Catalog) *Executor {
	return &Executor{store: store, catalog: cat, timeout: defaultExecTimeout}
}

// WithTimeout overrides the execution-time budget. Zero or negative keeps the
// default.
func (e *Executor) WithTimeout(d time.Duration) *Executor {
	if d > 0 {
		e.timeout = d
	}
	return e
}

// Execute performs one bounded, read-only fetch. Failures never propagate as
// errors: they collapse into ExecutionResult.Err and surface downstream as a
// generic no-data outcome. The caller must not retry.
func (e *Executor) Execute(ctx context.Context, q types.SanitizedQuery, scope types.Filter, tenantID string) types.ExecutionResult {
	res, ok := e.catalog.Resource(q.ResourceKey)
	if !ok {
		// Unreachable when the sanitizer did its job; fail safe anyway.
		return types.ExecutionResult{ResourceKey: q.ResourceKey, Records: []map[string]any{}, Err: ErrKindInvalidResource}
	}

	parts := make([]types.Filter, 0, 3)
	parts = append(parts, types.FieldMatch{Field: tenantField, Op: types.OpEq, Value: tenantID})
	if scope != nil {
		parts = append(parts, scope)
	}
	if q.Filter != nil {
		parts = append(parts, q.Filter)
	}
	predicate := types.Filter(types.And{Children: parts})

	projection := q.Projection
	if len(projection) == 0 {
		projection = res.Fields
	}
	suppressID := true
	for _, f := range projection {
		if f == "_id" {
			suppressID = false
			break
		}
	}

	limit := q.Limit
	if limit < 1 {
		limit = DefaultLimit
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	records, err := e.store.Find(execCtx, ports.FindRequest{
		Collection: res.Collection,
		Filter:     predicate,
		Projection: projection,
		SuppressID: suppressID,
		Limit:      limit,
	})
	if err != nil {
		kind := ErrKindExecutionFailure
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			kind = ErrKindExecutionTimeout
		}
		return types.ExecutionResult{ResourceKey: res.Key, Records: []map[string]any{}, Err: kind}
	}
	if records == nil {
		records = []map[string]any{}
	}
	return types.ExecutionResult{ResourceKey: res.Key, Records: records, Total: len(records)}
}
