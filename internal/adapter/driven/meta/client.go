// Package meta implements the Facebook and Instagram publishers and the
// Facebook token refresher on top of the Graph API.
package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
)

const (
	defaultBaseURL = "https://graph.facebook.com"
	defaultVersion = "v19.0"

	// maxErrorBody caps how much of an error response is read for diagnostics.
	maxErrorBody = 64 << 10
)

// Config configures the Graph API client.
type Config struct {
	AppID      string
	AppSecret  string
	Version    string
	BaseURL    string // overridable for tests
	HTTPClient *http.Client
}

// Client is a minimal Graph API client. It carries no tokens; every call
// takes the tenant's token explicitly.
type Client struct {
	http      *http.Client
	baseURL   string
	version   string
	appID     string
	appSecret string
}

// NewClient creates a Graph API client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = defaultVersion
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		http:      cfg.HTTPClient,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		version:   cfg.Version,
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
	}
}

// APIError is a non-2xx Graph API response.
type APIError struct {
	Status  int
	Code    int
	Subcode int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("graph api: HTTP %d (code %d): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("graph api: HTTP %d: %s", e.Status, e.Message)
}

type graphErrorBody struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
	} `json:"error"`
}

// get issues a GET with params in the query string. The token travels in
// the Authorization header so it never appears in a request URL.
func (c *Client) get(ctx context.Context, path, token string, params url.Values, out any) error {
	u := c.endpoint(path) + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.do(req, out)
}

// post issues a form-encoded POST.
func (c *Client) post(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return redactURL(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

		var ge graphErrorBody
		if json.Unmarshal(body, &ge) == nil && ge.Error.Message != "" {
			apiErr.Code = ge.Error.Code
			apiErr.Subcode = ge.Error.ErrorSubcode
			apiErr.Type = ge.Error.Type
			apiErr.Message = ge.Error.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// redactURL drops the query string from a transport error so parameters
// never reach results or logs.
func redactURL(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	if u, perr := url.Parse(urlErr.URL); perr == nil {
		u.RawQuery = ""
		u.User = nil
		urlErr.URL = u.String()
	} else {
		urlErr.URL = "(redacted)"
	}
	return urlErr
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + c.version + "/" + strings.TrimLeft(path, "/")
}

// pageID resolves the Facebook Page a page access token belongs to.
func (c *Client) pageID(ctx context.Context, token string) (string, error) {
	var me struct {
		ID string `json:"id"`
	}
	if err := c.get(ctx, "me", token, url.Values{"fields": {"id"}}, &me); err != nil {
		return "", err
	}
	if me.ID == "" {
		return "", errors.New("graph api returned no page id")
	}
	return me.ID, nil
}

// classify maps a Graph API call error to a coarse error kind.
func classify(err error) model.ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 10, 102, 190:
			return model.ErrorKindAuth
		case 4, 17, 32, 613:
			return model.ErrorKindRateLimit
		case 100:
			return model.ErrorKindValidation
		}
		if apiErr.Code >= 200 && apiErr.Code <= 299 {
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

// failure converts a failed step into a PublishResult.
func failure(platform model.Platform, step string, err error) model.PublishResult {
	pe := &model.PublishError{Platform: platform, Kind: classify(err), Message: step, Err: err}
	return pe.Result()
}
