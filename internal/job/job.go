// Package job defines the queue message payloads and their validation.
// Payloads are tagged variants: the queue topic acts as the kind
// discriminant, and each payload struct validates itself at decode time.
package job

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrValidation marks a malformed job payload. Jobs failing validation are
// terminal immediately: no retry, no redelivery.
var ErrValidation = errors.New("invalid job payload")

// Content kinds.
const (
	KindArticle = "ARTICLE"
	KindVideo   = "VIDEO"
	KindAudio   = "AUDIO"
)

// Terminal statuses. PROCESSING is set by the producer at enqueue time; the
// consumer performs the single transition into one of these.
const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// ContentEmbedJob asks the pipeline to embed one piece of user content.
type ContentEmbedJob struct {
	ContentID   string   `json:"contentId"`
	ContentKind string   `json:"contentKind"`
	RawText     string   `json:"rawText,omitempty"`
	MediaURL    string   `json:"mediaUrl,omitempty"`
	Title       string   `json:"title"`
	Tags        []string `json:"tags,omitempty"`
	OwnerID     string   `json:"ownerId"`
}

// SearchJob asks the pipeline to answer a search query.
type SearchJob struct {
	Query    string `json:"query"`
	SearchID string `json:"searchId"`
}

func (j *ContentEmbedJob) Validate() error {
	if j.ContentID == "" {
		return fmt.Errorf("%w: missing contentId", ErrValidation)
	}
	switch j.ContentKind {
	case KindArticle:
		// rawText may legitimately be empty; an empty article completes with
		// a "no content" status instead of failing.
	case KindVideo, KindAudio:
		if j.MediaURL == "" {
			return fmt.Errorf("%w: %s content requires mediaUrl", ErrValidation, j.ContentKind)
		}
		u, err := url.Parse(j.MediaURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: mediaUrl %q is not a resolvable URL", ErrValidation, j.MediaURL)
		}
	default:
		return fmt.Errorf("%w: unknown contentKind %q", ErrValidation, j.ContentKind)
	}
	return nil
}

func (j *SearchJob) Validate() error {
	if j.SearchID == "" {
		return fmt.Errorf("%w: missing searchId", ErrValidation)
	}
	if strings.TrimSpace(j.Query) == "" {
		return fmt.Errorf("%w: empty query", ErrValidation)
	}
	return nil
}
