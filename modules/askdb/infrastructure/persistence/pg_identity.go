package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/types"
	"github.com/dharmendrakumar4525/avidus-askdb/pkg/httperr"
)

var ErrCallerNotFound = errors.New("caller_not_found")

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGIdentityDirectory resolves authenticated callers against the identity
// schema: iam.users carries the role slug, iam.user_sites the assigned site
// ids (the caller's scope values).
type PGIdentityDirectory struct {
	pool pgBeginner
}

func NewPGIdentityDirectory(pool pgBeginner) *PGIdentityDirectory {
	return &PGIdentityDirectory{pool: pool}
}

func (d *PGIdentityDirectory) Resolve(ctx context.Context, tenantID string, callerID string) (types.UserContext, error) {
	tenantID = strings.TrimSpace(tenantID)
	callerID = strings.TrimSpace(callerID)
	if tenantID == "" {
		return types.UserContext{}, httperr.NewBadRequest("tenant_id is required")
	}
	if callerID == "" {
		return types.UserContext{}, httperr.NewBadRequest("caller_id is required")
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return types.UserContext{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return types.UserContext{}, err
	}

	var role string
	var status string
	err = tx.QueryRow(ctx, `
SELECT role_slug, status
FROM iam.users
WHERE tenant_id = $1::uuid
  AND user_uuid = $2::uuid
`, tenantID, callerID).Scan(&role, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.UserContext{}, ErrCallerNotFound
		}
		return types.UserContext{}, err
	}
	if !strings.EqualFold(strings.TrimSpace(status), "active") {
		return types.UserContext{}, ErrCallerNotFound
	}

	rows, err := tx.Query(ctx, `
SELECT site_id
FROM iam.user_sites
WHERE tenant_id = $1::uuid
  AND user_uuid = $2::uuid
ORDER BY site_id
`, tenantID, callerID)
	if err != nil {
		return types.UserContext{}, err
	}
	defer rows.Close()

	var scopeValues []string
	for rows.Next() {
		var siteID string
		if err := rows.Scan(&siteID); err != nil {
			return types.UserContext{}, err
		}
		siteID = strings.TrimSpace(siteID)
		if siteID != "" {
			scopeValues = append(scopeValues, siteID)
		}
	}
	if err := rows.Err(); err != nil {
		return types.UserContext{}, err
	}

	return types.UserContext{
		CallerID:    callerID,
		TenantID:    tenantID,
		Role:        strings.TrimSpace(role),
		ScopeValues: scopeValues,
	}, nil
}
