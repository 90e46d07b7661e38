package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
	"github.com/ericfisherdev/localpulse/internal/domain/port/driven"
)

// DefaultRefreshThreshold is the credential age after which a token is
// refreshed before use.
const DefaultRefreshThreshold = 24 * time.Hour

// TokenProvider hands out a currently valid token for a tenant's platform.
type TokenProvider interface {
	Token(ctx context.Context, tenantID string, platform model.Platform) (string, error)
}

// TokenManagerConfig holds the refresh policy. Zero values take defaults.
type TokenManagerConfig struct {
	RefreshThreshold time.Duration
	Retry            RetryOptions
	Metrics          driven.PublishMetrics
	Now              func() time.Time
}

// TokenManager owns every read and write of platform credentials. Callers
// never see blobs; they ask for a token and get one that is either fresh
// or was just refreshed.
type TokenManager struct {
	store      driven.CredentialStore
	codec      driven.TokenCodec
	refreshers map[model.Platform]driven.TokenRefresher
	threshold  time.Duration
	retry      RetryOptions
	metrics    driven.PublishMetrics
	now        func() time.Time
	logger     *slog.Logger

	flights singleflight.Group
	locks   sync.Map // tenant/platform -> *sync.Mutex
}

// Compile-time interface satisfaction check.
var _ TokenProvider = (*TokenManager)(nil)

// NewTokenManager creates a TokenManager. refreshers maps each platform to
// its provider-side refresh call.
func NewTokenManager(
	store driven.CredentialStore,
	codec driven.TokenCodec,
	refreshers map[model.Platform]driven.TokenRefresher,
	cfg TokenManagerConfig,
	logger *slog.Logger,
) *TokenManager {
	if cfg.RefreshThreshold <= 0 {
		cfg.RefreshThreshold = DefaultRefreshThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TokenManager{
		store:      store,
		codec:      codec,
		refreshers: refreshers,
		threshold:  cfg.RefreshThreshold,
		retry:      cfg.Retry,
		metrics:    cfg.Metrics,
		now:        cfg.Now,
		logger:     logger,
	}
}

// Token returns a valid token for the tenant's platform.
//
//   - no credential stored: model.ErrNoCredential
//   - credential younger than the threshold: the decrypted token
//   - otherwise: the token is refreshed once (concurrent callers share the
//     refresh), re-stored and returned; a failed refresh yields
//     model.ErrRefreshFailed and leaves the stored credential untouched
//
// A blob that fails to decrypt yields model.ErrDecryptionFailed.
func (m *TokenManager) Token(ctx context.Context, tenantID string, platform model.Platform) (string, error) {
	cred, err := m.credential(ctx, tenantID, platform)
	if err != nil {
		return "", err
	}

	if m.fresh(cred) {
		return m.decrypt(tenantID, cred)
	}

	v, err, shared := m.flights.Do(flightKey(tenantID, platform), func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx), tenantID, platform)
	})
	if err != nil {
		return "", err
	}
	if shared {
		m.logger.Debug("joined in-flight token refresh", "tenant_id", tenantID, "platform", platform)
	}
	return v.(string), nil
}

// StoreCredentials encrypts and stores the given tokens. Each platform's
// record is written independently; platforms absent from tokens keep their
// current credential. An empty map disconnects every platform.
func (m *TokenManager) StoreCredentials(ctx context.Context, tenantID string, tokens map[model.Platform]string) error {
	if len(tokens) == 0 {
		return m.Disconnect(ctx, tenantID)
	}

	platforms := make([]model.Platform, 0, len(tokens))
	for platform, token := range tokens {
		if !platform.Valid() {
			return fmt.Errorf("store credentials: unknown platform %q", platform)
		}
		if token == "" {
			return fmt.Errorf("store credentials: empty token for %s", platform)
		}
		platforms = append(platforms, platform)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })

	for _, platform := range platforms {
		if err := m.put(ctx, tenantID, platform, tokens[platform]); err != nil {
			return err
		}
		m.logger.Info("credential stored", "tenant_id", tenantID, "platform", platform)
	}
	return nil
}

// Disconnect removes every platform credential for the tenant.
func (m *TokenManager) Disconnect(ctx context.Context, tenantID string) error {
	if err := m.store.Clear(ctx, tenantID); err != nil {
		return fmt.Errorf("disconnect tenant %q: %w", tenantID, err)
	}
	m.logger.Info("all credentials cleared", "tenant_id", tenantID)
	return nil
}

// Connections reports, for every supported platform, whether the tenant has
// a stored credential and whether the next access will refresh it.
func (m *TokenManager) Connections(ctx context.Context, tenantID string) ([]model.ConnectionStatus, error) {
	creds, err := m.store.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load credentials for tenant %q: %w", tenantID, err)
	}

	byPlatform := make(map[model.Platform]model.Credential, len(creds))
	for _, c := range creds {
		byPlatform[c.Platform] = c
	}

	statuses := make([]model.ConnectionStatus, 0, len(model.AllPlatforms()))
	for _, platform := range model.AllPlatforms() {
		status := model.ConnectionStatus{Platform: platform}
		if c, ok := byPlatform[platform]; ok && len(c.Blob) > 0 {
			status.Connected = true
			status.UpdatedAt = c.UpdatedAt
			status.NeedsRefresh = !m.fresh(&c)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// refresh runs inside the single flight for (tenant, platform).
func (m *TokenManager) refresh(ctx context.Context, tenantID string, platform model.Platform) (string, error) {
	unlock := m.lock(tenantID, platform)
	defer unlock()

	// Re-read under the lock: a flight that just finished, or a concurrent
	// StoreCredentials, may already have written a fresh credential.
	cred, err := m.credential(ctx, tenantID, platform)
	if err != nil {
		return "", err
	}
	current, err := m.decrypt(tenantID, cred)
	if err != nil {
		return "", err
	}
	if m.fresh(cred) {
		return current, nil
	}

	refresher, ok := m.refreshers[platform]
	if !ok {
		return "", fmt.Errorf("%w: no refresher configured for %s", model.ErrRefreshFailed, platform)
	}

	opts := m.retry
	opts.OnRetry = func(err error, attempt int) {
		m.logger.Warn("token refresh attempt failed",
			"tenant_id", tenantID,
			"platform", platform,
			"attempt", attempt,
			"error", err,
		)
	}

	token, err := Retry(ctx, func(ctx context.Context) (string, error) {
		return refresher.Refresh(ctx, current)
	}, opts)
	if err == nil && token == "" {
		err = errors.New("provider returned an empty token")
	}
	if err != nil {
		m.recordRefresh(platform, false)
		m.logger.Error("token refresh failed, keeping stored credential",
			"tenant_id", tenantID,
			"platform", platform,
			"error", err,
		)
		return "", fmt.Errorf("%w: %s: %w", model.ErrRefreshFailed, platform, err)
	}

	if err := m.write(ctx, tenantID, platform, token); err != nil {
		m.recordRefresh(platform, false)
		return "", err
	}

	m.recordRefresh(platform, true)
	m.logger.Info("token refreshed", "tenant_id", tenantID, "platform", platform)
	return token, nil
}

func (m *TokenManager) put(ctx context.Context, tenantID string, platform model.Platform, token string) error {
	unlock := m.lock(tenantID, platform)
	defer unlock()
	return m.write(ctx, tenantID, platform, token)
}

// write encrypts and upserts; callers hold the (tenant, platform) lock.
func (m *TokenManager) write(ctx context.Context, tenantID string, platform model.Platform, token string) error {
	blob, err := m.codec.Encrypt(token)
	if err != nil {
		return fmt.Errorf("encrypt %s credential: %w", platform, err)
	}
	if err := m.store.Upsert(ctx, tenantID, platform, blob, m.now()); err != nil {
		return fmt.Errorf("persist %s credential: %w", platform, err)
	}
	return nil
}

func (m *TokenManager) credential(ctx context.Context, tenantID string, platform model.Platform) (*model.Credential, error) {
	creds, err := m.store.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load %s credential: %w", platform, err)
	}
	for i := range creds {
		if creds[i].Platform == platform && len(creds[i].Blob) > 0 {
			return &creds[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", model.ErrNoCredential, platform)
}

func (m *TokenManager) decrypt(tenantID string, cred *model.Credential) (string, error) {
	token, err := m.codec.Decrypt(cred.Blob)
	if err == nil && token == "" {
		err = fmt.Errorf("%w: empty token", model.ErrDecryptionFailed)
	}
	if err != nil {
		m.logger.Error("stored credential failed decryption",
			"tenant_id", tenantID,
			"platform", cred.Platform,
			"error", err,
		)
		if !errors.Is(err, model.ErrDecryptionFailed) {
			err = fmt.Errorf("%w: %w", model.ErrDecryptionFailed, err)
		}
		return "", err
	}
	return token, nil
}

func (m *TokenManager) fresh(cred *model.Credential) bool {
	return m.now().Sub(cred.UpdatedAt) < m.threshold
}

func (m *TokenManager) lock(tenantID string, platform model.Platform) func() {
	v, _ := m.locks.LoadOrStore(flightKey(tenantID, platform), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (m *TokenManager) recordRefresh(platform model.Platform, success bool) {
	if m.metrics != nil {
		m.metrics.RecordTokenRefresh(platform, success)
	}
}

func flightKey(tenantID string, platform model.Platform) string {
	return tenantID + "/" + string(platform)
}
