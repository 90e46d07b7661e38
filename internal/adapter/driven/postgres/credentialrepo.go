package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
	"github.com/ericfisherdev/localpulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the PostgreSQL implementation of the CredentialStore port.
type CredentialRepo struct {
	db *sql.DB
}

// NewCredentialRepo creates a new CredentialRepo.
func NewCredentialRepo(db *sql.DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

// Get returns all platform credentials stored for the tenant, ordered by platform.
func (r *CredentialRepo) Get(ctx context.Context, tenantID string) ([]model.Credential, error) {
	const query = `SELECT platform, token_blob, updated_at FROM platform_credentials
		WHERE tenant_id = $1 ORDER BY platform`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get credentials for tenant %q: %w", tenantID, err)
	}
	defer rows.Close()

	creds := []model.Credential{}
	for rows.Next() {
		var (
			platform string
			cred     model.Credential
		)
		if err := rows.Scan(&platform, &cred.Blob, &cred.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		cred.TenantID = tenantID
		cred.Platform = model.Platform(platform)
		cred.UpdatedAt = cred.UpdatedAt.UTC()
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return creds, nil
}

// Upsert stores or replaces the blob for one (tenant, platform) row.
func (r *CredentialRepo) Upsert(ctx context.Context, tenantID string, platform model.Platform, blob []byte, updatedAt time.Time) error {
	const query = `INSERT INTO platform_credentials (tenant_id, platform, token_blob, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, platform) DO UPDATE SET
			token_blob = EXCLUDED.token_blob,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, tenantID, string(platform), blob, updatedAt.UTC()); err != nil {
		return fmt.Errorf("upsert %s credential for tenant %q: %w", platform, tenantID, err)
	}
	return nil
}

// Clear removes every credential stored for the tenant.
func (r *CredentialRepo) Clear(ctx context.Context, tenantID string) error {
	const query = `DELETE FROM platform_credentials WHERE tenant_id = $1`
	if _, err := r.db.ExecContext(ctx, query, tenantID); err != nil {
		return fmt.Errorf("clear credentials for tenant %q: %w", tenantID, err)
	}
	return nil
}
