package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
	"github.com/ericfisherdev/localpulse/internal/domain/port/driven"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500

	// maxRequestBody caps JSON request bodies.
	maxRequestBody = 1 << 20
)

// PostPublisher is the publishing use case served by the API.
type PostPublisher interface {
	PublishPost(ctx context.Context, tenantID string, post model.Post) (model.PublishOutcome, error)
	History(ctx context.Context, tenantID string, limit int) ([]driven.PublishRecord, error)
}

// CredentialManager is the credential use case served by the API.
type CredentialManager interface {
	StoreCredentials(ctx context.Context, tenantID string, tokens map[model.Platform]string) error
	Disconnect(ctx context.Context, tenantID string) error
	Connections(ctx context.Context, tenantID string) ([]model.ConnectionStatus, error)
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	publisher   PostPublisher
	credentials CredentialManager
	logger      *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(publisher PostPublisher, credentials CredentialManager, logger *slog.Logger) *Handler {
	return &Handler{
		publisher:   publisher,
		credentials: credentials,
		logger:      logger,
	}
}

// MuxOptions holds the optional pieces of the server wiring.
type MuxOptions struct {
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Observer receives one observation per served request when set.
	Observer RequestObserver
	// Limiter rate-limits publish requests per tenant when set.
	Limiter *RateLimiter
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger, opts MuxOptions) http.Handler {
	mux := http.NewServeMux()

	var publish http.Handler = http.HandlerFunc(h.PublishPost)
	if opts.Limiter != nil {
		publish = opts.Limiter.Middleware(logger, publish)
	}

	mux.Handle("POST /api/v1/tenants/{tenant}/posts", publish)
	mux.HandleFunc("GET /api/v1/tenants/{tenant}/posts/history", h.ListHistory)
	mux.HandleFunc("GET /api/v1/tenants/{tenant}/credentials", h.ListConnections)
	mux.HandleFunc("PUT /api/v1/tenants/{tenant}/credentials", h.StoreCredentials)
	mux.HandleFunc("DELETE /api/v1/tenants/{tenant}/credentials", h.Disconnect)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, opts.Observer, wrapped)

	return wrapped
}

// PublishPost fans a post out to its target platforms and returns the
// aggregate outcome. Partial success is a 200; total failure is a 502 that
// still carries every platform's result.
func (h *Handler) PublishPost(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromPath(w, r)
	if !ok {
		return
	}

	var req PublishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	post, err := req.toPost()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.publisher.PublishPost(r.Context(), tenantID, post)
	var allFailed *model.AllFailedError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, outcome)
	case errors.As(err, &allFailed):
		writeJSON(w, http.StatusBadGateway, allFailed.Outcome)
	case errors.Is(err, model.ErrInvalidPost):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrDecryptionFailed):
		h.logger.Error("stored credentials unreadable", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "stored credentials could not be decrypted; reconnect the affected platforms")
	default:
		h.logger.Error("failed to publish post", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// ListHistory returns the tenant's most recent per-platform publish results.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromPath(w, r)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	records, err := h.publisher.History(r.Context(), tenantID, limit)
	if err != nil {
		h.logger.Error("failed to list publish history", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]HistoryEntryResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toHistoryEntryResponse(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListConnections reports which platforms the tenant has connected.
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromPath(w, r)
	if !ok {
		return
	}

	statuses, err := h.credentials.Connections(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to list connections", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ConnectionResponse, 0, len(statuses))
	for _, s := range statuses {
		resp = append(resp, toConnectionResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// StoreCredentials encrypts and stores the submitted platform tokens.
// Platforms not named in the body keep their current credential; an empty
// token map disconnects everything.
func (h *Handler) StoreCredentials(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromPath(w, r)
	if !ok {
		return
	}

	var req StoreCredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := req.toTokens()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.credentials.StoreCredentials(r.Context(), tenantID, tokens); err != nil {
		h.logger.Error("failed to store credentials", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Disconnect removes every stored credential for the tenant.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromPath(w, r)
	if !ok {
		return
	}

	if err := h.credentials.Disconnect(r.Context(), tenantID); err != nil {
		h.logger.Error("failed to disconnect tenant", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// tenantFromPath extracts and validates the {tenant} path value, writing a
// 400 response when it is invalid.
func tenantFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := r.PathValue("tenant")
	if !isValidTenantID(tenantID) {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return "", false
	}
	return tenantID, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// isValidTenantID accepts 1-128 characters of letters, digits, hyphens,
// dots or underscores.
func isValidTenantID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, ch := range id {
		if !isValidTenantChar(ch) {
			return false
		}
	}
	return true
}

func isValidTenantChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '.' || ch == '_'
}
