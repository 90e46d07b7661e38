package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/localpulse/internal/domain/model"
)

func validPost() model.Post {
	return model.Post{
		ID:        "post-1",
		Body:      "Fresh bagels every morning",
		Platforms: []model.Platform{model.PlatformGoogle, model.PlatformFacebook},
		Location:  model.Location{PlaceID: "locations/123", Name: "Main St Bakery"},
	}
}

func TestPost_ValidateAcceptsValidPost(t *testing.T) {
	require.NoError(t, validPost().Validate())
}

func TestPost_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *model.Post)
	}{
		{"no content", func(p *model.Post) { p.Body = "  " }},
		{"no platforms", func(p *model.Post) { p.Platforms = nil }},
		{"unknown platform", func(p *model.Post) { p.Platforms = []model.Platform{"myspace"} }},
		{"duplicate platform", func(p *model.Post) {
			p.Platforms = []model.Platform{model.PlatformGoogle, model.PlatformGoogle}
		}},
		{"media without url", func(p *model.Post) { p.Media = []model.MediaRef{{Kind: model.MediaKindImage}} }},
		{"media with unknown kind", func(p *model.Post) { p.Media = []model.MediaRef{{URL: "https://x/y.gif", Kind: "gif"}} }},
		{"no location", func(p *model.Post) { p.Location = model.Location{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPost()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), model.ErrInvalidPost)
		})
	}
}

func TestPost_MediaOnlyIsValid(t *testing.T) {
	p := validPost()
	p.Body = ""
	p.Media = []model.MediaRef{{URL: "https://cdn.example.com/a.jpg", Kind: model.MediaKindImage}}
	assert.NoError(t, p.Validate())
}

func TestPost_PrimaryMedia(t *testing.T) {
	p := validPost()
	_, ok := p.PrimaryMedia()
	assert.False(t, ok)

	p.Media = []model.MediaRef{
		{URL: "https://cdn.example.com/a.jpg", Kind: model.MediaKindImage},
		{URL: "https://cdn.example.com/b.mp4", Kind: model.MediaKindVideo},
	}
	m, ok := p.PrimaryMedia()
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/a.jpg", m.URL)
}

func TestParsePlatform(t *testing.T) {
	p, err := model.ParsePlatform("instagram")
	require.NoError(t, err)
	assert.Equal(t, model.PlatformInstagram, p)

	_, err = model.ParsePlatform("tiktok")
	assert.Error(t, err)
}
