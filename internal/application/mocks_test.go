package application_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
	"github.com/ericfisherdev/localpulse/internal/domain/port/driven"
)

// --- Credential store ---

type mockCredentialStore struct {
	mu      sync.Mutex
	creds   map[string]map[model.Platform]model.Credential
	getErr  error
	cleared []string
	upserts int
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{creds: map[string]map[model.Platform]model.Credential{}}
}

func (m *mockCredentialStore) Get(_ context.Context, tenantID string) ([]model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := []model.Credential{}
	for _, c := range m.creds[tenantID] {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCredentialStore) Upsert(_ context.Context, tenantID string, platform model.Platform, blob []byte, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds[tenantID] == nil {
		m.creds[tenantID] = map[model.Platform]model.Credential{}
	}
	m.creds[tenantID][platform] = model.Credential{TenantID: tenantID, Platform: platform, Blob: blob, UpdatedAt: updatedAt}
	m.upserts++
	return nil
}

func (m *mockCredentialStore) Clear(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, tenantID)
	m.cleared = append(m.cleared, tenantID)
	return nil
}

func (m *mockCredentialStore) seed(tenantID string, platform model.Platform, blob []byte, updatedAt time.Time) {
	_ = m.Upsert(context.Background(), tenantID, platform, blob, updatedAt)
	m.mu.Lock()
	m.upserts = 0
	m.mu.Unlock()
}

func (m *mockCredentialStore) get(tenantID string, platform model.Platform) (model.Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[tenantID][platform]
	return c, ok
}

// --- Codec ---

// mockCodec "encrypts" by prefixing; anything without the prefix fails.
type mockCodec struct{}

var _ driven.TokenCodec = mockCodec{}

func (mockCodec) Encrypt(plaintext string) ([]byte, error) { return []byte("enc:" + plaintext), nil }

func (mockCodec) Decrypt(blob []byte) (string, error) {
	s := string(blob)
	if !strings.HasPrefix(s, "enc:") {
		return "", model.ErrDecryptionFailed
	}
	return strings.TrimPrefix(s, "enc:"), nil
}

// --- Refresher ---

type mockRefresher struct {
	calls atomic.Int32
	delay time.Duration
	token string
	err   error
}

func (m *mockRefresher) Refresh(_ context.Context, current string) (string, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return "", m.err
	}
	if m.token == "" {
		return current, nil
	}
	return m.token, nil
}

// --- Token provider ---

type mockTokenProvider struct {
	tokens map[model.Platform]string
	errs   map[model.Platform]error
	calls  atomic.Int32
}

func (m *mockTokenProvider) Token(_ context.Context, _ string, platform model.Platform) (string, error) {
	m.calls.Add(1)
	if err := m.errs[platform]; err != nil {
		return "", err
	}
	if tok, ok := m.tokens[platform]; ok {
		return tok, nil
	}
	return "", model.ErrNoCredential
}

// --- Publisher ---

type mockPublisher struct {
	platform model.Platform
	result   model.PublishResult
	panicMsg string
	delay    time.Duration
	calls    atomic.Int32
	gotToken atomic.Value
	ctxErr   atomic.Value
}

func (m *mockPublisher) Platform() model.Platform { return m.platform }

func (m *mockPublisher) Publish(ctx context.Context, _ model.Post, token string) model.PublishResult {
	m.calls.Add(1)
	m.gotToken.Store(token)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if ctx.Err() != nil {
		m.ctxErr.Store(ctx.Err())
	}
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	return m.result
}

func succeeding(platform model.Platform, id string) *mockPublisher {
	return &mockPublisher{platform: platform, result: model.Succeeded(platform, id)}
}

func failing(platform model.Platform, kind model.ErrorKind, msg string) *mockPublisher {
	return &mockPublisher{platform: platform, result: model.Failed(platform, kind, msg)}
}

// --- Publish log & metrics ---

type mockPublishLog struct {
	mu        sync.Mutex
	outcomes  []model.PublishOutcome
	tenants   []string
	recordErr error
}

func (m *mockPublishLog) Record(_ context.Context, tenantID string, outcome model.PublishOutcome, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants = append(m.tenants, tenantID)
	m.outcomes = append(m.outcomes, outcome)
	return m.recordErr
}

func (m *mockPublishLog) ListRecent(_ context.Context, _ string, _ int) ([]driven.PublishRecord, error) {
	return nil, errors.New("not implemented")
}

type mockMetrics struct {
	mu       sync.Mutex
	results  []model.PublishResult
	statuses []model.PublishStatus
	refresh  map[model.Platform][]bool
}

func (m *mockMetrics) RecordPublishResult(r model.PublishResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
}

func (m *mockMetrics) RecordPublishOutcome(s model.PublishStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, s)
}

func (m *mockMetrics) RecordTokenRefresh(p model.Platform, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refresh == nil {
		m.refresh = map[model.Platform][]bool{}
	}
	m.refresh[p] = append(m.refresh[p], ok)
}
