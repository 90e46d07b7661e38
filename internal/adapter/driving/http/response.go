package httphandler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
	"github.com/ericfisherdev/localpulse/internal/domain/port/driven"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// MediaRequest is one media item in a publish request.
type MediaRequest struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

// LocationRequest is the business location in a publish request.
type LocationRequest struct {
	PlaceID string `json:"placeId"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// PublishRequest is the JSON body for the publish endpoint.
type PublishRequest struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Body        string          `json:"body"`
	Media       []MediaRequest  `json:"media"`
	Platforms   []string        `json:"platforms"`
	ScheduledAt string          `json:"scheduledAt"`
	Location    LocationRequest `json:"location"`
}

// toPost converts the request into a domain post. Unknown platform names
// and malformed timestamps are rejected here; the rest of the contract is
// checked by the publish service.
func (req PublishRequest) toPost() (model.Post, error) {
	post := model.Post{
		ID:    req.ID,
		Title: req.Title,
		Body:  req.Body,
		Location: model.Location{
			PlaceID: req.Location.PlaceID,
			Name:    req.Location.Name,
			Address: req.Location.Address,
		},
	}

	for _, name := range req.Platforms {
		platform, err := model.ParsePlatform(name)
		if err != nil {
			return model.Post{}, err
		}
		post.Platforms = append(post.Platforms, platform)
	}

	for _, m := range req.Media {
		post.Media = append(post.Media, model.MediaRef{URL: m.URL, Kind: model.MediaKind(m.Kind)})
	}

	if req.ScheduledAt != "" {
		at, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			return model.Post{}, fmt.Errorf("scheduledAt must be an RFC 3339 timestamp")
		}
		post.ScheduledAt = &at
	}

	return post, nil
}

// StoreCredentialsRequest is the JSON body for the store credentials endpoint.
type StoreCredentialsRequest struct {
	Tokens map[string]string `json:"tokens"`
}

func (req StoreCredentialsRequest) toTokens() (map[model.Platform]string, error) {
	tokens := make(map[model.Platform]string, len(req.Tokens))
	for name, token := range req.Tokens {
		platform, err := model.ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		if token == "" {
			return nil, fmt.Errorf("token for %s must not be empty", platform)
		}
		tokens[platform] = token
	}
	return tokens, nil
}

// ConnectionResponse is the JSON representation of one platform connection.
type ConnectionResponse struct {
	Platform     string `json:"platform"`
	Connected    bool   `json:"connected"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
	NeedsRefresh bool   `json:"needsRefresh"`
}

// HistoryEntryResponse is the JSON representation of one recorded
// per-platform publish result.
type HistoryEntryResponse struct {
	ID             string `json:"id"`
	PostID         string `json:"postId"`
	Platform       string `json:"platform"`
	Success        bool   `json:"success"`
	PlatformPostID string `json:"platformPostId,omitempty"`
	Error          string `json:"error,omitempty"`
	ErrorKind      string `json:"errorKind,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toConnectionResponse(s model.ConnectionStatus) ConnectionResponse {
	resp := ConnectionResponse{
		Platform:     string(s.Platform),
		Connected:    s.Connected,
		NeedsRefresh: s.NeedsRefresh,
	}
	if s.Connected {
		resp.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toHistoryEntryResponse(rec driven.PublishRecord) HistoryEntryResponse {
	return HistoryEntryResponse{
		ID:             rec.ID,
		PostID:         rec.PostID,
		Platform:       string(rec.Result.Platform),
		Success:        rec.Result.Success,
		PlatformPostID: rec.Result.PostID,
		Error:          rec.Result.Error,
		ErrorKind:      string(rec.Result.ErrorKind),
		CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}
