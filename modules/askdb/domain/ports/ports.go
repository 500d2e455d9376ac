package ports

import (
	"context"

	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/types"
)

// Translator turns a natural-language question and the caller's resource menu
// into a candidate query intent. Implementations are external reasoners
// (typically a hosted language model); their output is always treated as
// adversarial.
type Translator interface {
	Translate(ctx context.Context, question string, menu []types.ResourceMenuItem) (types.QueryIntent, error)
}

// FindRequest is the single read-only primitive the gateway needs from the
// operational store. SuppressID drops the store's document id from results
// when it is not an allowed field.
type FindRequest struct {
	Collection string
	Filter     types.Filter
	Projection []string
	SuppressID bool
	Limit      int64
}

// DocumentFinder executes a bounded read-only fetch. No write, update, delete
// or administrative capability is reachable through this interface.
type DocumentFinder interface {
	Find(ctx context.Context, req FindRequest) ([]map[string]any, error)
}

// IdentityDirectory resolves an authenticated caller to a UserContext.
type IdentityDirectory interface {
	Resolve(ctx context.Context, tenantID string, callerID string) (types.UserContext, error)
}
