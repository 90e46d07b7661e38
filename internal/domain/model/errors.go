package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoCredential means the tenant never connected the platform.
	// It is not transient; the user has to reconnect.
	ErrNoCredential = errors.New("no credential stored for platform")

	// ErrRefreshFailed means a token refresh failed after all retries.
	// The stored credential is left intact.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrDecryptionFailed means a stored credential blob could not be
	// authenticated. It indicates corrupted storage or a rotated secret and
	// must never be swallowed.
	ErrDecryptionFailed = errors.New("credential decryption failed")

	// ErrInvalidPost means the post does not satisfy the publish contract.
	ErrInvalidPost = errors.New("invalid post")
)

// PublishError is a failure scoped to a single platform.
type PublishError struct {
	Platform Platform
	Kind     ErrorKind
	Message  string
	Err      error
}

func (e *PublishError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s publish failed (%s): %s: %v", e.Platform, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s publish failed (%s): %s", e.Platform, e.Kind, e.Message)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Result converts the error into a failed PublishResult.
func (e *PublishError) Result() PublishResult {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return Failed(e.Platform, e.Kind, msg)
}

// AllFailedError is returned when no targeted platform accepted the post.
// It carries the full outcome so callers can show every platform's detail.
type AllFailedError struct {
	Outcome PublishOutcome
}

func (e *AllFailedError) Error() string {
	parts := make([]string, 0, len(e.Outcome.Results))
	for _, r := range e.Outcome.Results {
		parts = append(parts, fmt.Sprintf("%s: %s (%s)", r.Platform, r.Error, r.ErrorKind))
	}
	return "publish failed on every platform: " + strings.Join(parts, "; ")
}
