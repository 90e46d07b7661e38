package model

import "fmt"

// Platform identifies an external publishing destination.
type Platform string

const (
	PlatformGoogle    Platform = "google"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformWordPress Platform = "wordpress"
)

// AllPlatforms returns every supported platform in display order.
func AllPlatforms() []Platform {
	return []Platform{PlatformGoogle, PlatformFacebook, PlatformInstagram, PlatformWordPress}
}

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	switch p {
	case PlatformGoogle, PlatformFacebook, PlatformInstagram, PlatformWordPress:
		return true
	}
	return false
}

// ParsePlatform converts a raw identifier into a Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}

// ErrorKind is the coarse classification of a failed platform publish.
type ErrorKind string

const (
	ErrorKindAuth       ErrorKind = "auth"
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindRateLimit  ErrorKind = "rate_limit"
	ErrorKindNetwork    ErrorKind = "network"
	ErrorKindUnknown    ErrorKind = "unknown"
)

// ErrorKindFromStatus classifies an HTTP response status from a provider.
func ErrorKindFromStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return ErrorKindAuth
	case status == 400 || status == 404 || status == 409 || status == 413 || status == 422:
		return ErrorKindValidation
	case status == 429:
		return ErrorKindRateLimit
	case status >= 500:
		return ErrorKindNetwork
	default:
		return ErrorKindUnknown
	}
}

// PublishStatus is the overall status of a publish attempt, derived from its results.
type PublishStatus string

const (
	PublishStatusAllSucceeded PublishStatus = "all_succeeded"
	PublishStatusPartial      PublishStatus = "partial"
	PublishStatusAllFailed    PublishStatus = "all_failed"
)

// MediaKind distinguishes media handled differently by providers.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)
