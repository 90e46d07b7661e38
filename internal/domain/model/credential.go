package model

import "time"

// Credential is the persisted, encrypted token for one (tenant, platform) pair.
// Blob is opaque to everything except the token codec.
type Credential struct {
	TenantID  string
	Platform  Platform
	Blob      []byte
	UpdatedAt time.Time
}

// ConnectionStatus describes whether a tenant has connected a platform,
// without exposing the token itself.
type ConnectionStatus struct {
	Platform     Platform
	Connected    bool
	UpdatedAt    time.Time
	NeedsRefresh bool
}
