package model

import (
	"fmt"
	"strings"
	"time"
)

// MediaRef points at a media asset already hosted somewhere the providers can fetch.
type MediaRef struct {
	URL  string    `json:"url"`
	Kind MediaKind `json:"kind"`
}

// Location is the business location a post is attributed to.
type Location struct {
	PlaceID string `json:"placeId"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Post is a single piece of content to be fanned out to one or more platforms.
// A Post must not be mutated while a publish attempt is in flight.
type Post struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Media       []MediaRef `json:"media"`
	Platforms   []Platform `json:"platforms"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	Location    Location   `json:"location"`
}

// PrimaryMedia returns the first media reference, if any. Providers here
// only attach a single media item per post.
func (p Post) PrimaryMedia() (MediaRef, bool) {
	if len(p.Media) == 0 {
		return MediaRef{}, false
	}
	return p.Media[0], true
}

// Targets reports whether the post targets the given platform.
func (p Post) Targets(platform Platform) bool {
	for _, t := range p.Platforms {
		if t == platform {
			return true
		}
	}
	return false
}

// Validate checks the caller contract for a publishable post.
func (p Post) Validate() error {
	if strings.TrimSpace(p.Body) == "" && len(p.Media) == 0 {
		return fmt.Errorf("%w: post has no content", ErrInvalidPost)
	}
	if len(p.Platforms) == 0 {
		return fmt.Errorf("%w: no target platforms", ErrInvalidPost)
	}

	seen := make(map[Platform]bool, len(p.Platforms))
	for _, platform := range p.Platforms {
		if !platform.Valid() {
			return fmt.Errorf("%w: unknown platform %q", ErrInvalidPost, platform)
		}
		if seen[platform] {
			return fmt.Errorf("%w: platform %q listed twice", ErrInvalidPost, platform)
		}
		seen[platform] = true
	}

	for i, m := range p.Media {
		if strings.TrimSpace(m.URL) == "" {
			return fmt.Errorf("%w: media %d has no url", ErrInvalidPost, i)
		}
		if m.Kind != MediaKindImage && m.Kind != MediaKindVideo {
			return fmt.Errorf("%w: media %d has unknown kind %q", ErrInvalidPost, i, m.Kind)
		}
	}

	if strings.TrimSpace(p.Location.PlaceID) == "" {
		return fmt.Errorf("%w: post is not bound to a location", ErrInvalidPost)
	}
	return nil
}
