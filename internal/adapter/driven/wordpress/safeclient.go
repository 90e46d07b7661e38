package wordpress

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// NewSafeClient returns an HTTP client that refuses to connect to private,
// loopback, link-local and metadata addresses. Site URLs come from tenant
// credentials, so the resolved address is checked at dial time.
func NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}
