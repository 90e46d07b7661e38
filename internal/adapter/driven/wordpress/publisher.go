// Package wordpress publishes posts to self-hosted WordPress sites through
// the REST API using application passwords.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
	"github.com/ericfisherdev/localpulse/internal/domain/port/driven"
)

const (
	postsPath    = "/wp-json/wp/v2/posts"
	dateLayout   = "2006-01-02T15:04:05"
	maxErrorBody = 64 << 10
)

// Compile-time interface satisfaction checks.
var (
	_ driven.Publisher      = (*Publisher)(nil)
	_ driven.TokenRefresher = Refresher{}
)

// ErrMalformedCredential means the stored token is not site|user|password.
var ErrMalformedCredential = errors.New("malformed wordpress credential")

// Credential is the decoded WordPress token.
type Credential struct {
	SiteURL     string
	Username    string
	AppPassword string
}

// ParseCredential decodes a token of the form "siteURL|username|appPassword".
func ParseCredential(token string) (Credential, error) {
	parts := strings.SplitN(token, "|", 3)
	if len(parts) != 3 {
		return Credential{}, ErrMalformedCredential
	}

	site := strings.TrimRight(strings.TrimSpace(parts[0]), "/")
	u, err := url.Parse(site)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Credential{}, fmt.Errorf("%w: invalid site url", ErrMalformedCredential)
	}
	if parts[1] == "" || parts[2] == "" {
		return Credential{}, fmt.Errorf("%w: missing username or application password", ErrMalformedCredential)
	}
	return Credential{SiteURL: site, Username: parts[1], AppPassword: parts[2]}, nil
}

// String encodes the credential back into its token form.
func (c Credential) String() string {
	return c.SiteURL + "|" + c.Username + "|" + c.AppPassword
}

// Publisher creates WordPress posts.
type Publisher struct {
	http *http.Client
	now  func() time.Time
}

// NewPublisher creates a WordPress publisher. A nil client gets one from
// NewSafeClient.
func NewPublisher(client *http.Client) *Publisher {
	if client == nil {
		client = NewSafeClient(30 * time.Second)
	}
	return &Publisher{http: client, now: time.Now}
}

// Platform returns model.PlatformWordPress.
func (p *Publisher) Platform() model.Platform { return model.PlatformWordPress }

type createPost struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Status  string `json:"status"`
	DateGMT string `json:"date_gmt,omitempty"`
}

// Publish creates a post on the site named by the credential. Posts with a
// future ScheduledAt are created with status "future".
func (p *Publisher) Publish(ctx context.Context, post model.Post, token string) model.PublishResult {
	cred, err := ParseCredential(token)
	if err != nil {
		return model.Failed(model.PlatformWordPress, model.ErrorKindAuth, err.Error())
	}

	body := createPost{
		Title:   post.Title,
		Content: RenderContent(post),
		Status:  "publish",
	}
	if body.Title == "" {
		body.Title = post.Location.Name
	}
	if post.ScheduledAt != nil && post.ScheduledAt.After(p.now()) {
		body.Status = "future"
		body.DateGMT = post.ScheduledAt.UTC().Format(dateLayout)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return model.Failed(model.PlatformWordPress, model.ErrorKindUnknown, fmt.Sprintf("encoding post: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cred.SiteURL+postsPath, bytes.NewReader(payload))
	if err != nil {
		return model.Failed(model.PlatformWordPress, model.ErrorKindUnknown, fmt.Sprintf("creating request: %v", err))
	}
	req.SetBasicAuth(cred.Username, cred.AppPassword)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var created struct {
		ID   int64  `json:"id"`
		Link string `json:"link"`
	}
	if err := p.do(req, &created); err != nil {
		pe := &model.PublishError{Platform: model.PlatformWordPress, Kind: classify(err), Message: "create post", Err: err}
		return pe.Result()
	}
	if created.ID == 0 {
		return model.Failed(model.PlatformWordPress, model.ErrorKindUnknown, "wordpress returned no post id")
	}
	return model.Succeeded(model.PlatformWordPress, strconv.FormatInt(created.ID, 10))
}

// APIError is a non-2xx WordPress REST response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("wordpress: HTTP %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("wordpress: HTTP %d: %s", e.Status, e.Message)
}

func (p *Publisher) do(req *http.Request, out any) error {
	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

		var wpErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &wpErr) == nil && wpErr.Message != "" {
			apiErr.Code = wpErr.Code
			apiErr.Message = wpErr.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func classify(err error) model.ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "rest_cannot_create", "incorrect_password", "invalid_username", "rest_not_logged_in":
			return model.ErrorKindAuth
		}
		return model.ErrorKindFromStatus(apiErr.Status)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return model.ErrorKindNetwork
	}
	return model.ErrorKindUnknown
}

// Refresher keeps the stored credential as-is. Application passwords do
// not expire.
type Refresher struct{}

// Refresh returns token unchanged.
func (Refresher) Refresh(_ context.Context, token string) (string, error) {
	return token, nil
}
