package timeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"tweetscribe-go/internal/logger"
	"tweetscribe-go/internal/types"
)

// Clock abstracts time so the quota window can be driven by a fake in tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

func SystemClock() Clock { return systemClock{} }

// Quota is the API's rolling request budget: at most Limit page requests
// within any Window.
type Quota struct {
	Limit  int
	Window time.Duration
}

// FetchOptions bound one timeline fetch. Start and End are inclusive;
// Limit == 0 means unbounded.
type FetchOptions struct {
	Start time.Time
	End   time.Time
	Limit int
}

// Gateway paginates an author's timeline under the quota and hands posts to
// the reconstructor in chronological ascending order. The feed itself is
// newest first, so the gateway stops paginating as soon as it sees a post
// older than Start and reverses the collected run at the end. Retweets are
// dropped here, before any consumer sees them.
type Gateway struct {
	client     Client
	quota      Quota
	clock      Clock
	maxRetries uint64
	log        *logrus.Entry

	issued []time.Time
}

func NewGateway(client Client, quota Quota, clock Clock) *Gateway {
	if clock == nil {
		clock = SystemClock()
	}
	return &Gateway{
		client:     client,
		quota:      quota,
		clock:      clock,
		maxRetries: 3,
		log:        logger.New().WithField("component", "timeline.gateway"),
	}
}

// Fetch pulls every in-window post for the author. Transient page failures
// are retried a bounded number of times; auth and not-found failures abort
// the fetch; quota exhaustion blocks until the window resets and is never
// reported as an error.
func (g *Gateway) Fetch(ctx context.Context, author string, opts FetchOptions) ([]types.Post, error) {
	var collected []types.Post
	cursor := ""
	done := false

	for !done {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := g.fetchPage(ctx, author, cursor)
		var rle *RateLimitError
		if errors.As(err, &rle) {
			g.sleepUntil(rle.Reset)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch timeline for %s: %w", author, err)
		}

		for _, p := range page.Posts {
			if p.IsRetweet {
				continue
			}
			if !opts.End.IsZero() && p.CreatedAt.After(opts.End) {
				continue
			}
			if !opts.Start.IsZero() && p.CreatedAt.Before(opts.Start) {
				// Feed is chronologically descending: everything after
				// this point is older still, so stop paginating.
				done = true
				break
			}
			collected = append(collected, p)
			if opts.Limit > 0 && len(collected) >= opts.Limit {
				done = true
				break
			}
		}

		if page.NextCursor == "" {
			done = true
		}
		cursor = page.NextCursor

		if !done && page.RateLimitRemaining == 0 && !page.RateLimitReset.IsZero() {
			g.log.WithField("reset", page.RateLimitReset).Info("api quota exhausted, waiting for reset")
			g.sleepUntil(page.RateLimitReset)
		}
	}

	// newest-first to chronological ascending
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected, nil
}

func (g *Gateway) fetchPage(ctx context.Context, author, cursor string) (Page, error) {
	var page Page
	op := func() error {
		// Every attempt, including retries, spends budget.
		g.waitForBudget()
		g.recordRequest()
		p, err := g.client.ListPosts(ctx, author, cursor)
		if err != nil {
			var rle *RateLimitError
			if errors.As(err, &rle) {
				return backoff.Permanent(err)
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Fatal() {
				return backoff.Permanent(err)
			}
			g.log.WithField("cursor", cursor).WithField("error", err.Error()).Warn("page fetch failed, retrying")
			return err
		}
		page = p
		return nil
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), g.maxRetries)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return Page{}, err
	}
	return page, nil
}

// waitForBudget enforces the sliding request-rate budget: if the last
// quota.Limit requests all fall inside the window, sleep until the oldest
// one ages out.
func (g *Gateway) waitForBudget() {
	if g.quota.Limit <= 0 {
		return
	}
	now := g.clock.Now()
	kept := g.issued[:0]
	for _, ts := range g.issued {
		if now.Sub(ts) < g.quota.Window {
			kept = append(kept, ts)
		}
	}
	g.issued = kept
	if len(g.issued) < g.quota.Limit {
		return
	}
	wait := g.issued[0].Add(g.quota.Window).Sub(now)
	g.log.WithField("wait", wait.String()).Info("request budget spent, sleeping until window resets")
	g.clock.Sleep(wait)

	now = g.clock.Now()
	kept = g.issued[:0]
	for _, ts := range g.issued {
		if now.Sub(ts) < g.quota.Window {
			kept = append(kept, ts)
		}
	}
	g.issued = kept
}

func (g *Gateway) recordRequest() {
	g.issued = append(g.issued, g.clock.Now())
}

func (g *Gateway) sleepUntil(t time.Time) {
	if d := t.Sub(g.clock.Now()); d > 0 {
		g.clock.Sleep(d)
	}
}
