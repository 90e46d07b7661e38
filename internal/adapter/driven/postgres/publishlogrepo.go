package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
	"github.com/ericfisherdev/localpulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PublishLog = (*PublishLogRepo)(nil)

// PublishLogRepo is the PostgreSQL implementation of the PublishLog port.
type PublishLogRepo struct {
	db *sql.DB
}

// NewPublishLogRepo creates a new PublishLogRepo.
func NewPublishLogRepo(db *sql.DB) *PublishLogRepo {
	return &PublishLogRepo{db: db}
}

// Record writes one row per platform result inside a single transaction.
func (r *PublishLogRepo) Record(ctx context.Context, tenantID string, outcome model.PublishOutcome, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin publish history tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `INSERT INTO publish_history
		(id, tenant_id, post_id, platform, success, external_post_id, error_message, error_kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, res := range outcome.Results {
		_, err := tx.ExecContext(ctx, query,
			uuid.New(),
			tenantID,
			outcome.PostID,
			string(res.Platform),
			res.Success,
			res.PostID,
			res.Error,
			string(res.ErrorKind),
			at.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert %s publish history: %w", res.Platform, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit publish history: %w", err)
	}
	return nil
}

// ListRecent returns up to limit records for the tenant, newest first.
func (r *PublishLogRepo) ListRecent(ctx context.Context, tenantID string, limit int) ([]driven.PublishRecord, error) {
	const query = `SELECT id, post_id, platform, success, external_post_id, error_message, error_kind, created_at
		FROM publish_history
		WHERE tenant_id = $1
		ORDER BY created_at DESC, platform
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list publish history for tenant %q: %w", tenantID, err)
	}
	defer rows.Close()

	records := []driven.PublishRecord{}
	for rows.Next() {
		var (
			rec      driven.PublishRecord
			platform string
			kind     string
		)
		if err := rows.Scan(&rec.ID, &rec.PostID, &platform, &rec.Result.Success,
			&rec.Result.PostID, &rec.Result.Error, &kind, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan publish history: %w", err)
		}
		rec.TenantID = tenantID
		rec.Result.Platform = model.Platform(platform)
		rec.Result.ErrorKind = model.ErrorKind(kind)
		rec.CreatedAt = rec.CreatedAt.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate publish history: %w", err)
	}

	return records, nil
}
