package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
)

// CredentialStore defines the driven port for encrypted credential persistence.
// It stores opaque blobs only; encryption happens above this boundary, so
// adapters never see plaintext tokens.
type CredentialStore interface {
	// Get returns every stored platform credential for the tenant.
	// Returns an empty slice if the tenant has connected nothing.
	Get(ctx context.Context, tenantID string) ([]model.Credential, error)

	// Upsert stores or replaces the blob for a single (tenant, platform) pair.
	// Other platforms of the same tenant are not touched.
	Upsert(ctx context.Context, tenantID string, platform model.Platform, blob []byte, updatedAt time.Time) error

	// Clear removes every platform credential for the tenant.
	Clear(ctx context.Context, tenantID string) error
}

// TokenCodec encrypts tokens into self-contained blobs and back.
type TokenCodec interface {
	Encrypt(plaintext string) ([]byte, error)

	// Decrypt returns model.ErrDecryptionFailed for any blob that fails
	// authentication or is malformed.
	Decrypt(blob []byte) (string, error)
}

// TokenRefresher exchanges a stale token for a fresh one with the provider.
type TokenRefresher interface {
	Refresh(ctx context.Context, token string) (string, error)
}
