package meta

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
	"github.com/ericfisherdev/localpulse/internal/domain/port/driven"
)

// Facebook only accepts scheduled posts at least ten minutes out.
const minScheduleLead = 10 * time.Minute

// Compile-time interface satisfaction checks.
var (
	_ driven.Publisher      = (*FacebookPublisher)(nil)
	_ driven.TokenRefresher = (*FacebookRefresher)(nil)
)

// FacebookPublisher posts to the Facebook Page owning the page token.
type FacebookPublisher struct {
	client *Client
	now    func() time.Time
}

// NewFacebookPublisher creates a FacebookPublisher.
func NewFacebookPublisher(client *Client) *FacebookPublisher {
	return &FacebookPublisher{client: client, now: time.Now}
}

// Platform returns model.PlatformFacebook.
func (p *FacebookPublisher) Platform() model.Platform { return model.PlatformFacebook }

type graphIDResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

// Publish posts text to the page feed, or the primary media item to the
// page's photos or videos edge with the body as caption.
func (p *FacebookPublisher) Publish(ctx context.Context, post model.Post, token string) model.PublishResult {
	pageID, err := p.client.pageID(ctx, token)
	if err != nil {
		return failure(model.PlatformFacebook, "resolve page", err)
	}

	params := url.Values{"access_token": {token}}
	edge := "feed"

	if media, ok := post.PrimaryMedia(); ok {
		switch media.Kind {
		case model.MediaKindVideo:
			edge = "videos"
			params.Set("file_url", media.URL)
			params.Set("description", post.Body)
		default:
			edge = "photos"
			params.Set("url", media.URL)
			params.Set("caption", post.Body)
		}
	} else {
		params.Set("message", post.Body)
	}

	if post.ScheduledAt != nil && post.ScheduledAt.After(p.now()) {
		if post.ScheduledAt.Sub(p.now()) < minScheduleLead {
			return model.Failed(model.PlatformFacebook, model.ErrorKindValidation,
				fmt.Sprintf("scheduled time must be at least %s in the future", minScheduleLead))
		}
		params.Set("published", "false")
		params.Set("scheduled_publish_time", strconv.FormatInt(post.ScheduledAt.Unix(), 10))
	}

	var resp graphIDResponse
	if err := p.client.post(ctx, pageID+"/"+edge, params, &resp); err != nil {
		return failure(model.PlatformFacebook, "create "+edge+" post", err)
	}

	id := resp.PostID
	if id == "" {
		id = resp.ID
	}
	if id == "" {
		return model.Failed(model.PlatformFacebook, model.ErrorKindUnknown, "graph api returned no post id")
	}
	return model.Succeeded(model.PlatformFacebook, id)
}

// FacebookRefresher exchanges a token for a new long-lived token.
type FacebookRefresher struct {
	client *Client
}

// NewFacebookRefresher creates a FacebookRefresher. The client must carry
// the app id and secret.
func NewFacebookRefresher(client *Client) *FacebookRefresher {
	return &FacebookRefresher{client: client}
}

// Refresh performs the fb_exchange_token grant as a form POST so the app
// secret and token stay out of the request URL.
func (r *FacebookRefresher) Refresh(ctx context.Context, token string) (string, error) {
	if r.client.appID == "" || r.client.appSecret == "" {
		return "", fmt.Errorf("facebook app credentials are not configured")
	}

	params := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {r.client.appID},
		"client_secret":     {r.client.appSecret},
		"fb_exchange_token": {token},
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := r.client.post(ctx, "oauth/access_token", params, &resp); err != nil {
		return "", fmt.Errorf("exchange long-lived token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("exchange long-lived token: empty access_token")
	}
	return resp.AccessToken, nil
}
