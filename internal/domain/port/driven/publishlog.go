package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
)

// PublishRecord is one persisted per-platform publish result.
type PublishRecord struct {
	ID        string
	TenantID  string
	PostID    string
	Result    model.PublishResult
	CreatedAt time.Time
}

// PublishLog persists the history of publish attempts.
type PublishLog interface {
	// Record stores one row per result in the outcome.
	Record(ctx context.Context, tenantID string, outcome model.PublishOutcome, at time.Time) error

	// ListRecent returns the newest records for the tenant, newest first.
	ListRecent(ctx context.Context, tenantID string, limit int) ([]PublishRecord, error)
}

// PublishMetrics receives counters about publish attempts and token refreshes.
type PublishMetrics interface {
	RecordPublishResult(result model.PublishResult)
	RecordPublishOutcome(status model.PublishStatus)
	RecordTokenRefresh(platform model.Platform, success bool)
}
