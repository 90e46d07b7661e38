package driven

import (
	"context"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
)

// Publisher translates a Post into one platform's wire calls.
// Publish never returns an error: every failure, including a panic inside
// the adapter, is reported as a PublishResult with Success false.
type Publisher interface {
	Platform() model.Platform
	Publish(ctx context.Context, post model.Post, token string) model.PublishResult
}
