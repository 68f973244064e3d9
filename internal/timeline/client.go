// Package timeline fetches an author's post history from the X API and
// turns the paginated, rate-limited feed into an ordered post sequence.
package timeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tweetscribe-go/internal/types"
)

// Page is one timeline page plus the quota state the API reported with it.
// Posts are in the API's native order, newest first.
type Page struct {
	Posts              []types.Post
	NextCursor         string
	RateLimitRemaining int
	RateLimitReset     time.Time
}

// Client lists one page of an author's posts. The empty cursor requests the
// first page; a returned empty NextCursor means the feed is exhausted.
type Client interface {
	ListPosts(ctx context.Context, author, cursor string) (Page, error)
}

// APIError is a non-rate-limit API failure. Auth and not-found failures are
// fatal for the whole run; everything else is retried as transient.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("timeline api: status %d: %s", e.StatusCode, e.Message)
}

// Fatal reports whether the error cannot be fixed by retrying.
func (e *APIError) Fatal() bool {
	switch e.StatusCode {
	case 401, 403, 404:
		return true
	}
	return false
}

// RateLimitError signals quota exhaustion before normal completion. The
// gateway waits until Reset and retries; it is not a failure.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("timeline api: rate limited until %s", e.Reset.Format(time.RFC3339))
}

// ExtractUsername pulls the profile handle out of an x.com or twitter.com
// profile URL.
func ExtractUsername(profileURL string) (string, error) {
	trimmed := strings.TrimRight(profileURL, "/")
	parts := strings.Split(trimmed, "/")
	for i, part := range parts {
		if (part == "x.com" || part == "twitter.com") && i+1 < len(parts) {
			return strings.TrimPrefix(parts[i+1], "@"), nil
		}
	}
	return "", fmt.Errorf("could not extract username from URL: %s", profileURL)
}
