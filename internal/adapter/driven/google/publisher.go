// Package google publishes local posts to Google Business Profile locations.
//
// The credential stored for Google is an OAuth refresh token. Each publish
// mints a short-lived access token from it, so the stored value never needs
// rotating.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
	"github.com/ericfisherdev/localpulse/internal/domain/port/driven"
)

const (
	defaultAPIBaseURL = "https://mybusiness.googleapis.com"

	// maxSummary is the Business Profile limit on a local post summary.
	maxSummary = 1500

	maxErrorBody = 64 << 10
)

// Compile-time interface satisfaction checks.
var (
	_ driven.Publisher      = (*Publisher)(nil)
	_ driven.TokenRefresher = Refresher{}
)

// Config configures the Google publisher.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIBaseURL   string
	HTTPClient   *http.Client
}

// Publisher creates Business Profile local posts.
type Publisher struct {
	http       *http.Client
	oauth      *oauth2.Config
	apiBaseURL string
}

// NewPublisher creates a Google Business Profile publisher.
func NewPublisher(cfg Config) *Publisher {
	if cfg.TokenURL == "" {
		cfg.TokenURL = endpoints.Google.TokenURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Publisher{
		http: cfg.HTTPClient,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   endpoints.Google.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
	}
}

// Platform returns model.PlatformGoogle.
func (p *Publisher) Platform() model.Platform { return model.PlatformGoogle }

type localPostMedia struct {
	MediaFormat string `json:"mediaFormat"`
	SourceURL   string `json:"sourceUrl"`
}

type localPost struct {
	LanguageCode string           `json:"languageCode"`
	Summary      string           `json:"summary"`
	TopicType    string           `json:"topicType"`
	Media        []localPostMedia `json:"media,omitempty"`
}

// Publish creates a STANDARD local post on the location named by the post's
// place id, which must be a Business Profile resource name of the form
// accounts/{account}/locations/{location}.
func (p *Publisher) Publish(ctx context.Context, post model.Post, refreshToken string) model.PublishResult {
	if post.ScheduledAt != nil {
		return model.Failed(model.PlatformGoogle, model.ErrorKindValidation, "google business profile does not support scheduled posts")
	}
	if !isLocationName(post.Location.PlaceID) {
		return model.Failed(model.PlatformGoogle, model.ErrorKindValidation,
			fmt.Sprintf("location %q is not a business profile location", post.Location.PlaceID))
	}
	if utf8.RuneCountInString(post.Body) > maxSummary {
		return model.Failed(model.PlatformGoogle, model.ErrorKindValidation,
			fmt.Sprintf("post body exceeds %d characters", maxSummary))
	}

	accessToken, err := p.accessToken(ctx, refreshToken)
	if err != nil {
		return failure("mint access token", err)
	}

	body := localPost{LanguageCode: "en", Summary: post.Body, TopicType: "STANDARD"}
	if m, ok := post.PrimaryMedia(); ok {
		format := "PHOTO"
		if m.Kind == model.MediaKindVideo {
			format = "VIDEO"
		}
		body.Media = []localPostMedia{{MediaFormat: format, SourceURL: m.URL}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return model.Failed(model.PlatformGoogle, model.ErrorKindUnknown, fmt.Sprintf("encoding local post: %v", err))
	}

	endpoint := p.apiBaseURL + "/v4/" + post.Location.PlaceID + "/localPosts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return model.Failed(model.PlatformGoogle, model.ErrorKindUnknown, fmt.Sprintf("creating request: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	var created struct {
		Name      string `json:"name"`
		SearchURL string `json:"searchUrl"`
	}
	if err := p.do(req, &created); err != nil {
		return failure("create local post", err)
	}
	if created.Name == "" {
		return model.Failed(model.PlatformGoogle, model.ErrorKindUnknown, "business profile returned no post name")
	}
	return model.Succeeded(model.PlatformGoogle, path.Base(created.Name))
}

// accessToken performs the refresh_token grant.
func (p *Publisher) accessToken(ctx context.Context, refreshToken string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.http)
	tok, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", errors.New("token endpoint returned no access_token")
	}
	return tok.AccessToken, nil
}

// APIError is a non-2xx response from the Business Profile API.
type APIError struct {
	Status  int
	Reason  string // RPC status, e.g. PERMISSION_DENIED
	Message string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("google api: HTTP %d (%s): %s", e.Status, e.Reason, e.Message)
	}
	return fmt.Sprintf("google api: HTTP %d: %s", e.Status, e.Message)
}

func (p *Publisher) do(req *http.Request, out any) error {
	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return parseError(resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// parseError reads the RPC error envelope used by the API.
func parseError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Message: http.StatusText(status)}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) != nil {
		return apiErr
	}
	apiErr.Reason = envelope.Error.Status
	if envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

func classify(err error) model.ErrorKind {
	var grantErr *oauth2.RetrieveError
	if errors.As(err, &grantErr) {
		switch grantErr.ErrorCode {
		case "invalid_grant", "invalid_client", "unauthorized_client":
			return model.ErrorKindAuth
		}
		if grantErr.Response != nil {
			return model.ErrorKindFromStatus(grantErr.Response.StatusCode)
		}
		return model.ErrorKindAuth
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Reason {
		case "UNAUTHENTICATED", "PERMISSION_DENIED":
			return model.ErrorKindAuth
		case "RESOURCE_EXHAUSTED":
			return model.ErrorKindRateLimit
		case "INVALID_ARGUMENT", "FAILED_PRECONDITION", "NOT_FOUND":
			return model.ErrorKindValidation
		}
		return model.ErrorKindFromStatus(apiErr.Status)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return model.ErrorKindNetwork
	}
	return model.ErrorKindUnknown
}

func failure(step string, err error) model.PublishResult {
	pe := &model.PublishError{Platform: model.PlatformGoogle, Kind: classify(err), Message: step, Err: err}
	return pe.Result()
}

func isLocationName(name string) bool {
	parts := strings.Split(name, "/")
	return len(parts) == 4 && parts[0] == "accounts" && parts[1] != "" &&
		parts[2] == "locations" && parts[3] != ""
}

// Refresher keeps the stored refresh token as-is. Refresh tokens do not
// expire on a schedule; access tokens are minted per publish.
type Refresher struct{}

// Refresh returns token unchanged.
func (Refresher) Refresh(_ context.Context, token string) (string, error) {
	return token, nil
}
