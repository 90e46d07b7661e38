package application_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/localpulse/internal/application"
	"github.com/ericfisherdev/localpulse/internal/domain/model"
	"github.com/ericfisherdev/localpulse/internal/domain/port/driven"
)

func testPost(platforms ...model.Platform) model.Post {
	return model.Post{
		ID:        "post-1",
		Title:     "Spring menu",
		Body:      "Our spring menu is here!",
		Platforms: platforms,
		Location:  model.Location{PlaceID: "locations/42", Name: "Main St Bakery", Address: "1 Main St"},
	}
}

func allTokens() *mockTokenProvider {
	return &mockTokenProvider{tokens: map[model.Platform]string{
		model.PlatformGoogle:    "g-token",
		model.PlatformFacebook:  "fb-token",
		model.PlatformInstagram: "ig-token",
		model.PlatformWordPress: "wp-token",
	}}
}

func newService(tokens application.TokenProvider, history driven.PublishLog, metrics driven.PublishMetrics, pubs ...driven.Publisher) *application.PublishService {
	return application.NewPublishService(tokens, pubs, history, metrics, time.Second, nil)
}

func TestPublishService_GoogleSucceedsFacebookNetworkError(t *testing.T) {
	google := succeeding(model.PlatformGoogle, "g123")
	facebook := failing(model.PlatformFacebook, model.ErrorKindNetwork, "dial tcp: connection refused")
	svc := newService(allTokens(), nil, nil, google, facebook)

	outcome, err := svc.PublishPost(context.Background(), "tenant-1", testPost(model.PlatformGoogle, model.PlatformFacebook))

	require.NoError(t, err)
	assert.Equal(t, model.PublishStatusPartial, outcome.Status())
	require.Len(t, outcome.Results, 2)
	assert.Equal(t, model.PublishResult{Platform: model.PlatformGoogle, Success: true, PostID: "g123"}, outcome.Results[0])
	assert.Equal(t, model.PlatformFacebook, outcome.Results[1].Platform)
	assert.False(t, outcome.Results[1].Success)
	assert.Equal(t, model.ErrorKindNetwork, outcome.Results[1].ErrorKind)
}

func TestPublishService_OnePanickingPublisherDoesNotAbortOthers(t *testing.T) {
	a := succeeding(model.PlatformGoogle, "g1")
	b := &mockPublisher{platform: model.PlatformFacebook, panicMsg: "nil map write"}
	c := succeeding(model.PlatformWordPress, "wp1")
	svc := newService(allTokens(), nil, nil, a, b, c)

	outcome, err := svc.PublishPost(context.Background(), "tenant-1",
		testPost(model.PlatformGoogle, model.PlatformFacebook, model.PlatformWordPress))

	require.NoError(t, err)
	assert.Equal(t, model.PublishStatusPartial, outcome.Status())
	assert.True(t, outcome.Results[0].Success)
	assert.False(t, outcome.Results[1].Success)
	assert.Equal(t, model.ErrorKindUnknown, outcome.Results[1].ErrorKind)
	assert.Contains(t, outcome.Results[1].Error, "nil map write")
	assert.True(t, outcome.Results[2].Success)
}

func TestPublishService_AllFailedReturnsAggregateError(t *testing.T) {
	svc := newService(allTokens(), nil, nil,
		failing(model.PlatformGoogle, model.ErrorKindAuth, "token revoked"),
		failing(model.PlatformInstagram, model.ErrorKindValidation, "media required"),
	)

	outcome, err := svc.PublishPost(context.Background(), "tenant-1", testPost(model.PlatformGoogle, model.PlatformInstagram))

	require.Error(t, err)
	var allFailed *model.AllFailedError
	require.True(t, errors.As(err, &allFailed))
	assert.Len(t, allFailed.Outcome.Results, 2)
	assert.Equal(t, model.PublishStatusAllFailed, outcome.Status())
	assert.Contains(t, err.Error(), "token revoked")
	assert.Contains(t, err.Error(), "media required")
}

func TestPublishService_AllSucceeded(t *testing.T) {
	svc := newService(allTokens(), nil, nil,
		succeeding(model.PlatformGoogle, "g1"),
		succeeding(model.PlatformFacebook, "f1"),
		succeeding(model.PlatformInstagram, "i1"),
		succeeding(model.PlatformWordPress, "w1"),
	)

	outcome, err := svc.PublishPost(context.Background(), "tenant-1", testPost(model.AllPlatforms()...))

	require.NoError(t, err)
	assert.Equal(t, model.PublishStatusAllSucceeded, outcome.Status())
	for i, platform := range model.AllPlatforms() {
		assert.Equal(t, platform, outcome.Results[i].Platform, "results keep target order")
	}
}

func TestPublishService_TokenFailureSkipsPublisher(t *testing.T) {
	tokens := allTokens()
	tokens.errs = map[model.Platform]error{
		model.PlatformFacebook: fmt.Errorf("%w: facebook", model.ErrNoCredential),
		model.PlatformGoogle:   fmt.Errorf("%w: google: upstream 500", model.ErrRefreshFailed),
	}
	google := succeeding(model.PlatformGoogle, "g1")
	facebook := succeeding(model.PlatformFacebook, "f1")
	wordpress := succeeding(model.PlatformWordPress, "w1")
	svc := newService(tokens, nil, nil, google, facebook, wordpress)

	outcome, err := svc.PublishPost(context.Background(), "tenant-1",
		testPost(model.PlatformGoogle, model.PlatformFacebook, model.PlatformWordPress))

	require.NoError(t, err)
	assert.Equal(t, model.PublishStatusPartial, outcome.Status())
	assert.Equal(t, int32(0), google.calls.Load())
	assert.Equal(t, int32(0), facebook.calls.Load())
	assert.Equal(t, int32(1), wordpress.calls.Load())

	assert.Equal(t, model.ErrorKindAuth, outcome.Results[0].ErrorKind)
	assert.Equal(t, model.ErrorKindAuth, outcome.Results[1].ErrorKind)
	assert.Contains(t, outcome.Results[1].Error, "not connected")
	assert.Equal(t, "wp-token", wordpress.gotToken.Load())
}

func TestPublishService_EmptyTokenIsAuthFailure(t *testing.T) {
	tokens := allTokens()
	tokens.tokens[model.PlatformInstagram] = ""
	instagram := succeeding(model.PlatformInstagram, "i1")
	wordpress := succeeding(model.PlatformWordPress, "w1")
	svc := newService(tokens, nil, nil, instagram, wordpress)

	outcome, err := svc.PublishPost(context.Background(), "tenant-1",
		testPost(model.PlatformInstagram, model.PlatformWordPress))

	require.NoError(t, err)
	require.Len(t, outcome.Results, 2)
	assert.Equal(t, model.PlatformInstagram, outcome.Results[0].Platform)
	assert.False(t, outcome.Results[0].Success)
	assert.Equal(t, model.ErrorKindAuth, outcome.Results[0].ErrorKind)
	assert.Equal(t, int32(0), instagram.calls.Load())
	assert.True(t, outcome.Results[1].Success)
}

func TestPublishService_DecryptionFailureAbortsBeforeDispatch(t *testing.T) {
	tokens := allTokens()
	tokens.errs = map[model.Platform]error{model.PlatformInstagram: model.ErrDecryptionFailed}
	google := succeeding(model.PlatformGoogle, "g1")
	instagram := succeeding(model.PlatformInstagram, "i1")
	history := &mockPublishLog{}
	svc := newService(tokens, history, nil, google, instagram)

	_, err := svc.PublishPost(context.Background(), "tenant-1", testPost(model.PlatformGoogle, model.PlatformInstagram))

	assert.ErrorIs(t, err, model.ErrDecryptionFailed)
	assert.Equal(t, int32(0), google.calls.Load(), "nothing is published when a credential is unreadable")
	assert.Equal(t, int32(0), instagram.calls.Load())
	assert.Empty(t, history.outcomes)
}

func TestPublishService_InvalidPost(t *testing.T) {
	tokens := allTokens()
	svc := newService(tokens, nil, nil, succeeding(model.PlatformGoogle, "g1"))

	_, err := svc.PublishPost(context.Background(), "tenant-1", testPost())

	assert.ErrorIs(t, err, model.ErrInvalidPost)
	assert.Equal(t, int32(0), tokens.calls.Load())
}

func TestPublishService_MissingPublisherIsValidationFailure(t *testing.T) {
	svc := newService(allTokens(), nil, nil, succeeding(model.PlatformGoogle, "g1"))

	outcome, err := svc.PublishPost(context.Background(), "tenant-1", testPost(model.PlatformGoogle, model.PlatformWordPress))

	require.NoError(t, err)
	assert.Equal(t, model.ErrorKindValidation, outcome.Results[1].ErrorKind)
}

func TestPublishService_FailureWithoutKindBecomesUnknown(t *testing.T) {
	pub := &mockPublisher{platform: model.PlatformGoogle, result: model.PublishResult{Error: "weird"}}
	svc := newService(allTokens(), nil, nil, pub, succeeding(model.PlatformFacebook, "f1"))

	outcome, err := svc.PublishPost(context.Background(), "tenant-1", testPost(model.PlatformGoogle, model.PlatformFacebook))

	require.NoError(t, err)
	assert.Equal(t, model.PlatformGoogle, outcome.Results[0].Platform)
	assert.Equal(t, model.ErrorKindUnknown, outcome.Results[0].ErrorKind)
}

func TestPublishService_PlatformsRunConcurrently(t *testing.T) {
	delay := 100 * time.Millisecond
	pubs := []driven.Publisher{}
	for _, p := range model.AllPlatforms() {
		m := succeeding(p, string(p)+"-id")
		m.delay = delay
		pubs = append(pubs, m)
	}
	svc := newService(allTokens(), nil, nil, pubs...)

	start := time.Now()
	_, err := svc.PublishPost(context.Background(), "tenant-1", testPost(model.AllPlatforms()...))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 3*delay, "four platforms must not be published one after another")
}

func TestPublishService_CallerCancellationDoesNotAbortDispatchedCalls(t *testing.T) {
	pub := succeeding(model.PlatformGoogle, "g1")
	pub.delay = 50 * time.Millisecond
	svc := newService(allTokens(), nil, nil, pub)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	outcome, err := svc.PublishPost(ctx, "tenant-1", testPost(model.PlatformGoogle))

	require.NoError(t, err)
	assert.True(t, outcome.Results[0].Success)
	assert.Nil(t, pub.ctxErr.Load(), "publisher context must outlive the caller's")
}

func TestPublishService_RecordsHistoryAndMetrics(t *testing.T) {
	history := &mockPublishLog{}
	metrics := &mockMetrics{}
	svc := newService(allTokens(), history, metrics,
		succeeding(model.PlatformGoogle, "g1"),
		failing(model.PlatformFacebook, model.ErrorKindRateLimit, "slow down"),
	)

	post := testPost(model.PlatformGoogle, model.PlatformFacebook)
	post.ID = ""
	outcome, err := svc.PublishPost(context.Background(), "tenant-1", post)
	require.NoError(t, err)

	assert.NotEmpty(t, outcome.PostID, "a post id is assigned when the caller sends none")
	require.Len(t, history.outcomes, 1)
	assert.Equal(t, []string{"tenant-1"}, history.tenants)
	assert.Equal(t, outcome.PostID, history.outcomes[0].PostID)
	assert.Len(t, metrics.results, 2)
	assert.Equal(t, []model.PublishStatus{model.PublishStatusPartial}, metrics.statuses)
}

func TestPublishService_HistoryFailureDoesNotChangeOutcome(t *testing.T) {
	history := &mockPublishLog{recordErr: errors.New("disk full")}
	svc := newService(allTokens(), history, nil, succeeding(model.PlatformGoogle, "g1"))

	outcome, err := svc.PublishPost(context.Background(), "tenant-1", testPost(model.PlatformGoogle))

	require.NoError(t, err)
	assert.Equal(t, model.PublishStatusAllSucceeded, outcome.Status())
}

func TestPublishService_HistoryWithoutLog(t *testing.T) {
	svc := newService(allTokens(), nil, nil)

	records, err := svc.History(context.Background(), "tenant-1", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
