package server

import (
	"context"

	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/types"
)

type callerCtxKey struct{}

func withCaller(ctx context.Context, user types.UserContext) context.Context {
	return context.WithValue(ctx, callerCtxKey{}, user)
}

func currentCaller(ctx context.Context) (types.UserContext, bool) {
	u, ok := ctx.Value(callerCtxKey{}).(types.UserContext)
	return u, ok
}
