package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
	"github.com/ericfisherdev/localpulse/internal/domain/port/driven"
)

// DefaultPublishTimeout bounds a single platform publish call.
const DefaultPublishTimeout = 30 * time.Second

// PublishService fans a post out to every platform it targets and
// aggregates one result per platform.
type PublishService struct {
	tokens     TokenProvider
	publishers map[model.Platform]driven.Publisher
	history    driven.PublishLog
	metrics    driven.PublishMetrics
	timeout    time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewPublishService creates a PublishService. history and metrics may be nil.
func NewPublishService(
	tokens TokenProvider,
	publishers []driven.Publisher,
	history driven.PublishLog,
	metrics driven.PublishMetrics,
	timeout time.Duration,
	logger *slog.Logger,
) *PublishService {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	byPlatform := make(map[model.Platform]driven.Publisher, len(publishers))
	for _, p := range publishers {
		byPlatform[p.Platform()] = p
	}

	return &PublishService{
		tokens:     tokens,
		publishers: byPlatform,
		history:    history,
		metrics:    metrics,
		timeout:    timeout,
		logger:     logger,
		now:        time.Now,
	}
}

// PublishPost publishes post to each of its target platforms.
//
// Every platform gets exactly one result, in the order of post.Platforms.
// A platform whose token cannot be resolved fails with kind auth and its
// publisher is never called. If no platform succeeds the outcome is
// returned together with an *model.AllFailedError. A credential that fails
// decryption aborts the publish before any platform is contacted.
//
// Once dispatched, platform calls run to completion even if ctx is canceled.
func (s *PublishService) PublishPost(ctx context.Context, tenantID string, post model.Post) (model.PublishOutcome, error) {
	if err := post.Validate(); err != nil {
		return model.PublishOutcome{PostID: post.ID}, err
	}
	if post.ID == "" {
		post.ID = uuid.NewString()
	}

	results := make([]model.PublishResult, len(post.Platforms))
	tokens, err := s.resolveTokens(ctx, tenantID, post, results)
	if err != nil {
		s.logger.Error("publish aborted: stored credential is unreadable",
			"tenant_id", tenantID,
			"post_id", post.ID,
			"error", err,
		)
		return model.PublishOutcome{PostID: post.ID}, fmt.Errorf("resolve credentials: %w", err)
	}

	dispatchCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for i, platform := range post.Platforms {
		if tokens[i] == "" {
			continue
		}
		publisher, ok := s.publishers[platform]
		if !ok {
			results[i] = model.Failed(platform, model.ErrorKindValidation, "no publisher registered for platform")
			continue
		}
		wg.Go(func() {
			results[i] = s.publishOne(dispatchCtx, publisher, post, tokens[i])
		})
	}
	wg.Wait()

	outcome := model.PublishOutcome{PostID: post.ID, Results: results}
	s.record(dispatchCtx, tenantID, outcome)

	status := outcome.Status()
	s.logger.Info("post published",
		"tenant_id", tenantID,
		"post_id", post.ID,
		"status", status,
		"succeeded", outcome.Succeeded(),
		"targeted", len(results),
	)

	if status == model.PublishStatusAllFailed {
		return outcome, &model.AllFailedError{Outcome: outcome}
	}
	return outcome, nil
}

// resolveTokens fetches a token per target platform concurrently. Failed
// lookups are written into results; only a decryption failure is returned.
func (s *PublishService) resolveTokens(ctx context.Context, tenantID string, post model.Post, results []model.PublishResult) ([]string, error) {
	tokens := make([]string, len(post.Platforms))

	g, gctx := errgroup.WithContext(ctx)
	for i, platform := range post.Platforms {
		g.Go(func() error {
			tok, err := s.tokens.Token(gctx, tenantID, platform)
			switch {
			case err == nil && tok == "":
				results[i] = model.Failed(platform, model.ErrorKindAuth, fmt.Sprintf("%s credential resolved to an empty token", platform))
			case err == nil:
				tokens[i] = tok
			case errors.Is(err, model.ErrDecryptionFailed):
				return err
			default:
				s.logger.Warn("no usable token for platform",
					"tenant_id", tenantID,
					"platform", platform,
					"error", err,
				)
				results[i] = tokenFailure(platform, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *PublishService) publishOne(ctx context.Context, publisher driven.Publisher, post model.Post, token string) (result model.PublishResult) {
	platform := publisher.Platform()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	defer func() {
		if v := recover(); v != nil {
			s.logger.Error("publisher panic recovered", "platform", platform, "panic", v)
			result = model.Failed(platform, model.ErrorKindUnknown, fmt.Sprintf("publisher panicked: %v", v))
		}
	}()

	start := time.Now()
	result = publisher.Publish(ctx, post, token)
	result.Platform = platform
	if !result.Success && result.ErrorKind == "" {
		result.ErrorKind = model.ErrorKindUnknown
	}

	if result.Success {
		s.logger.Info("platform publish succeeded",
			"platform", platform,
			"post_id", post.ID,
			"external_id", result.PostID,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	} else {
		s.logger.Warn("platform publish failed",
			"platform", platform,
			"post_id", post.ID,
			"kind", result.ErrorKind,
			"error", result.Error,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	}
	return result
}

func (s *PublishService) record(ctx context.Context, tenantID string, outcome model.PublishOutcome) {
	if s.metrics != nil {
		for _, r := range outcome.Results {
			s.metrics.RecordPublishResult(r)
		}
		s.metrics.RecordPublishOutcome(outcome.Status())
	}

	if s.history != nil {
		if err := s.history.Record(ctx, tenantID, outcome, s.now()); err != nil {
			s.logger.Error("failed to record publish history",
				"tenant_id", tenantID,
				"post_id", outcome.PostID,
				"error", err,
			)
		}
	}
}

// History returns the most recent publish records for the tenant.
func (s *PublishService) History(ctx context.Context, tenantID string, limit int) ([]driven.PublishRecord, error) {
	if s.history == nil {
		return []driven.PublishRecord{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.history.ListRecent(ctx, tenantID, limit)
}

func tokenFailure(platform model.Platform, err error) model.PublishResult {
	switch {
	case errors.Is(err, model.ErrNoCredential):
		return model.Failed(platform, model.ErrorKindAuth, fmt.Sprintf("%s account is not connected", platform))
	case errors.Is(err, model.ErrRefreshFailed):
		return model.Failed(platform, model.ErrorKindAuth, err.Error())
	default:
		return model.Failed(platform, model.ErrorKindAuth, fmt.Sprintf("credential lookup failed: %v", err))
	}
}
