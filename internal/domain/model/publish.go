package model

import "encoding/json"

// PublishResult is the outcome of publishing one post to one platform.
type PublishResult struct {
	Platform  Platform  `json:"platform"`
	Success   bool      `json:"success"`
	PostID    string    `json:"postId,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded(platform Platform, postID string) PublishResult {
	return PublishResult{Platform: platform, Success: true, PostID: postID}
}

// Failed builds a failed result.
func Failed(platform Platform, kind ErrorKind, message string) PublishResult {
	return PublishResult{Platform: platform, Success: false, Error: message, ErrorKind: kind}
}

// PublishOutcome collects the per-platform results of one publish attempt.
// The overall status is always derived from Results.
type PublishOutcome struct {
	PostID  string
	Results []PublishResult
}

// Status derives the overall status from the member results.
// An outcome without results counts as all_failed.
func (o PublishOutcome) Status() PublishStatus {
	var succeeded int
	for _, r := range o.Results {
		if r.Success {
			succeeded++
		}
	}

	switch {
	case len(o.Results) > 0 && succeeded == len(o.Results):
		return PublishStatusAllSucceeded
	case succeeded == 0:
		return PublishStatusAllFailed
	default:
		return PublishStatusPartial
	}
}

// Succeeded returns the number of platforms the post reached.
func (o PublishOutcome) Succeeded() int {
	var n int
	for _, r := range o.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// Result returns the result for the given platform, if present.
func (o PublishOutcome) Result(platform Platform) (PublishResult, bool) {
	for _, r := range o.Results {
		if r.Platform == platform {
			return r, true
		}
	}
	return PublishResult{}, false
}

// MarshalJSON emits {"status": ..., "results": [...]}.
func (o PublishOutcome) MarshalJSON() ([]byte, error) {
	results := o.Results
	if results == nil {
		results = []PublishResult{}
	}
	return json.Marshal(struct {
		PostID  string          `json:"postId,omitempty"`
		Status  PublishStatus   `json:"status"`
		Results []PublishResult `json:"results"`
	}{
		PostID:  o.PostID,
		Status:  o.Status(),
		Results: results,
	})
}
