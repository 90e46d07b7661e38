package meta

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
	"github.com/ericfisherdev/localpulse/internal/domain/port/driven"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultMaxPolls     = 20
)

// Compile-time interface satisfaction checks.
var (
	_ driven.Publisher      = (*InstagramPublisher)(nil)
	_ driven.TokenRefresher = InstagramRefresher{}
)

// InstagramPublisher publishes to the Instagram Business account linked to
// the Facebook Page owning the token, using the two-step container flow.
type InstagramPublisher struct {
	client       *Client
	pollInterval time.Duration
	maxPolls     int
}

// NewInstagramPublisher creates an InstagramPublisher.
func NewInstagramPublisher(client *Client) *InstagramPublisher {
	return &InstagramPublisher{client: client, pollInterval: defaultPollInterval, maxPolls: defaultMaxPolls}
}

// WithPolling overrides how video containers are polled until ready.
func (p *InstagramPublisher) WithPolling(interval time.Duration, maxPolls int) *InstagramPublisher {
	p.pollInterval = interval
	p.maxPolls = maxPolls
	return p
}

// Platform returns model.PlatformInstagram.
func (p *InstagramPublisher) Platform() model.Platform { return model.PlatformInstagram }

// Publish creates a media container for the primary media item, waits for
// video containers to finish processing, then publishes the container.
func (p *InstagramPublisher) Publish(ctx context.Context, post model.Post, token string) model.PublishResult {
	media, ok := post.PrimaryMedia()
	if !ok {
		return model.Failed(model.PlatformInstagram, model.ErrorKindValidation, "instagram posts require an image or video")
	}
	if post.ScheduledAt != nil {
		return model.Failed(model.PlatformInstagram, model.ErrorKindValidation, "instagram does not support scheduled publishing")
	}

	igID, err := p.businessAccount(ctx, token)
	if err != nil {
		return failure(model.PlatformInstagram, "resolve instagram account", err)
	}
	if igID == "" {
		return model.Failed(model.PlatformInstagram, model.ErrorKindValidation, "facebook page has no linked instagram business account")
	}

	params := url.Values{"access_token": {token}, "caption": {post.Body}}
	if media.Kind == model.MediaKindVideo {
		params.Set("media_type", "REELS")
		params.Set("video_url", media.URL)
	} else {
		params.Set("image_url", media.URL)
	}

	var container graphIDResponse
	if err := p.client.post(ctx, igID+"/media", params, &container); err != nil {
		return failure(model.PlatformInstagram, "create media container", err)
	}
	if container.ID == "" {
		return model.Failed(model.PlatformInstagram, model.ErrorKindUnknown, "graph api returned no container id")
	}

	if media.Kind == model.MediaKindVideo {
		if res, ok := p.awaitContainer(ctx, container.ID, token); !ok {
			return res
		}
	}

	var published graphIDResponse
	err = p.client.post(ctx, igID+"/media_publish", url.Values{
		"access_token": {token},
		"creation_id":  {container.ID},
	}, &published)
	if err != nil {
		return failure(model.PlatformInstagram, "publish media container", err)
	}
	if published.ID == "" {
		return model.Failed(model.PlatformInstagram, model.ErrorKindUnknown, "graph api returned no media id")
	}
	return model.Succeeded(model.PlatformInstagram, published.ID)
}

func (p *InstagramPublisher) businessAccount(ctx context.Context, token string) (string, error) {
	var me struct {
		InstagramBusinessAccount *struct {
			ID string `json:"id"`
		} `json:"instagram_business_account"`
	}
	params := url.Values{"fields": {"instagram_business_account"}}
	if err := p.client.get(ctx, "me", token, params, &me); err != nil {
		return "", err
	}
	if me.InstagramBusinessAccount == nil {
		return "", nil
	}
	return me.InstagramBusinessAccount.ID, nil
}

// awaitContainer polls a video container until it is FINISHED.
// The bool is false when the returned result is a terminal failure.
func (p *InstagramPublisher) awaitContainer(ctx context.Context, containerID, token string) (model.PublishResult, bool) {
	for range p.maxPolls {
		var status struct {
			StatusCode string `json:"status_code"`
		}
		params := url.Values{"fields": {"status_code"}}
		if err := p.client.get(ctx, containerID, token, params, &status); err != nil {
			return failure(model.PlatformInstagram, "check container status", err), false
		}

		switch status.StatusCode {
		case "FINISHED", "PUBLISHED":
			return model.PublishResult{}, true
		case "ERROR", "EXPIRED":
			return model.Failed(model.PlatformInstagram, model.ErrorKindValidation,
				fmt.Sprintf("media container %s: %s", containerID, status.StatusCode)), false
		}

		select {
		case <-ctx.Done():
			return model.Failed(model.PlatformInstagram, model.ErrorKindNetwork, "timed out waiting for media processing"), false
		case <-time.After(p.pollInterval):
		}
	}
	return model.Failed(model.PlatformInstagram, model.ErrorKindNetwork, "media container did not finish processing"), false
}

// InstagramRefresher returns the current token unchanged. Instagram Business
// accounts are reached through the linked Facebook Page token, which has no
// separate Instagram refresh path; the token is re-stored with a new
// timestamp without checking it upstream.
type InstagramRefresher struct{}

// Refresh returns token as-is.
func (InstagramRefresher) Refresh(_ context.Context, token string) (string, error) {
	return token, nil
}
