package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
	"github.com/ericfisherdev/localpulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// It stores encrypted blobs as-is and never sees plaintext tokens.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new CredentialRepo.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

// Get returns all platform credentials stored for the tenant, ordered by platform.
func (r *CredentialRepo) Get(ctx context.Context, tenantID string) ([]model.Credential, error) {
	const query = `SELECT platform, token_blob, updated_at FROM platform_credentials
		WHERE tenant_id = ? ORDER BY platform`

	rows, err := r.db.Reader.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get credentials for tenant %q: %w", tenantID, err)
	}
	defer rows.Close()

	creds := []model.Credential{}
	for rows.Next() {
		var (
			platform  string
			blob      []byte
			updatedAt string
		)
		if err := rows.Scan(&platform, &blob, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}

		ts, err := parseTime(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at for %s credential: %w", platform, err)
		}

		creds = append(creds, model.Credential{
			TenantID:  tenantID,
			Platform:  model.Platform(platform),
			Blob:      blob,
			UpdatedAt: ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return creds, nil
}

// Upsert stores or replaces the blob for one (tenant, platform) row.
func (r *CredentialRepo) Upsert(ctx context.Context, tenantID string, platform model.Platform, blob []byte, updatedAt time.Time) error {
	const query = `INSERT INTO platform_credentials (tenant_id, platform, token_blob, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant_id, platform) DO UPDATE SET
			token_blob = excluded.token_blob,
			updated_at = excluded.updated_at`

	_, err := r.db.Writer.ExecContext(ctx, query, tenantID, string(platform), blob, formatTime(updatedAt))
	if err != nil {
		return fmt.Errorf("upsert %s credential for tenant %q: %w", platform, tenantID, err)
	}
	return nil
}

// Clear removes every credential stored for the tenant.
func (r *CredentialRepo) Clear(ctx context.Context, tenantID string) error {
	const query = `DELETE FROM platform_credentials WHERE tenant_id = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, tenantID); err != nil {
		return fmt.Errorf("clear credentials for tenant %q: %w", tenantID, err)
	}
	return nil
}
