package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"tweetscribe-go/internal/types"
)

// APIConfig configures the X API v2 client. BearerToken is required.
type APIConfig struct {
	BearerToken string
	BaseURL     string
	PageSize    int
}

// API is the HTTP implementation of Client against the X API v2
// user-timeline endpoint.
type API struct {
	cfg     APIConfig
	client  *http.Client
	userIDs map[string]string
}

func NewAPI(cfg APIConfig) (*API, error) {
	if cfg.BearerToken == "" {
		return nil, errors.New("missing TWITTER_BEARER_TOKEN")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.x.com"
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		cfg.PageSize = 100
	}
	return &API{
		cfg:     cfg,
		client:  &http.Client{Timeout: 15 * time.Second},
		userIDs: map[string]string{},
	}, nil
}

func (a *API) ListPosts(ctx context.Context, author, cursor string) (Page, error) {
	userID, err := a.resolveUserID(ctx, author)
	if err != nil {
		return Page{}, err
	}

	q := url.Values{}
	q.Set("max_results", strconv.Itoa(a.cfg.PageSize))
	q.Set("tweet.fields", "id,text,created_at,author_id,conversation_id,in_reply_to_user_id,referenced_tweets,attachments")
	q.Set("media.fields", "type,url,preview_image_url,variants,duration_ms")
	q.Set("expansions", "attachments.media_keys")
	if cursor != "" {
		q.Set("pagination_token", cursor)
	}
	endpoint := fmt.Sprintf("%s/2/users/%s/tweets?%s", strings.TrimRight(a.cfg.BaseURL, "/"), userID, q.Encode())

	body, header, err := a.get(ctx, endpoint)
	if err != nil {
		return Page{}, err
	}

	var resp timelineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Page{}, fmt.Errorf("decode timeline page: %w", err)
	}

	media := map[string]mediaObject{}
	for _, m := range resp.Includes.Media {
		media[m.MediaKey] = m
	}

	page := Page{NextCursor: resp.Meta.NextToken}
	for _, t := range resp.Data {
		page.Posts = append(page.Posts, buildPost(t, media, author))
	}
	page.RateLimitRemaining, page.RateLimitReset = rateLimitState(header)
	return page, nil
}

func (a *API) resolveUserID(ctx context.Context, author string) (string, error) {
	author = strings.TrimPrefix(author, "@")
	if id, ok := a.userIDs[author]; ok {
		return id, nil
	}
	endpoint := fmt.Sprintf("%s/2/users/by/username/%s", strings.TrimRight(a.cfg.BaseURL, "/"), url.PathEscape(author))
	body, _, err := a.get(ctx, endpoint)
	if err != nil {
		return "", err
	}
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode user lookup: %w", err)
	}
	if resp.Data.ID == "" {
		return "", &APIError{StatusCode: 404, Message: "user not found: " + author}
	}
	a.userIDs[author] = resp.Data.ID
	return resp.Data.ID, nil
}

func (a *API) get(ctx context.Context, endpoint string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.BearerToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("timeline request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_, reset := rateLimitState(resp.Header)
		return nil, nil, &RateLimitError{Reset: reset}
	case resp.StatusCode >= 300:
		return nil, nil, &APIError{StatusCode: resp.StatusCode, Message: apiErrorMessage(body)}
	}
	return body, resp.Header, nil
}

func rateLimitState(h http.Header) (int, time.Time) {
	remaining, _ := strconv.Atoi(h.Get("x-rate-limit-remaining"))
	reset := time.Time{}
	if v := h.Get("x-rate-limit-reset"); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			reset = time.Unix(unix, 0)
		}
	}
	return remaining, reset
}

func apiErrorMessage(body []byte) string {
	var e struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Title != "" {
		if e.Detail != "" {
			return e.Title + ": " + e.Detail
		}
		return e.Title
	}
	return strings.TrimSpace(string(body))
}

type timelineResponse struct {
	Data []tweetObject `json:"data"`
	Meta struct {
		NextToken string `json:"next_token"`
	} `json:"meta"`
	Includes struct {
		Media []mediaObject `json:"media"`
	} `json:"includes"`
}

type tweetObject struct {
	ID               string    `json:"id"`
	Text             string    `json:"text"`
	CreatedAt        time.Time `json:"created_at"`
	InReplyToUserID  string    `json:"in_reply_to_user_id"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
}

type mediaObject struct {
	MediaKey string `json:"media_key"`
	Type     string `json:"type"`
	Variants []struct {
		ContentType string `json:"content_type"`
		BitRate     int64  `json:"bit_rate"`
		URL         string `json:"url"`
	} `json:"variants"`
}

func buildPost(t tweetObject, media map[string]mediaObject, author string) types.Post {
	p := types.Post{
		ID:        t.ID,
		Author:    author,
		Text:      t.Text,
		CreatedAt: t.CreatedAt,
		URL:       fmt.Sprintf("https://x.com/%s/status/%s", author, t.ID),
		IsReply:   t.InReplyToUserID != "",
	}
	for _, ref := range t.ReferencedTweets {
		switch ref.Type {
		case "replied_to":
			p.ReplyToID = ref.ID
		case "retweeted":
			p.IsRetweet = true
		}
	}
	for _, key := range t.Attachments.MediaKeys {
		m, ok := media[key]
		if !ok || m.Type != "video" {
			continue
		}
		p.VideoURL = bestVariantURL(m)
		break
	}
	return p
}

// bestVariantURL picks the highest-bitrate mp4 rendition.
func bestVariantURL(m mediaObject) string {
	variants := make([]struct {
		ContentType string `json:"content_type"`
		BitRate     int64  `json:"bit_rate"`
		URL         string `json:"url"`
	}, 0, len(m.Variants))
	for _, v := range m.Variants {
		if v.ContentType == "video/mp4" {
			variants = append(variants, v)
		}
	}
	if len(variants) == 0 {
		return ""
	}
	sort.Slice(variants, func(i, j int) bool { return variants[i].BitRate > variants[j].BitRate })
	return variants[0].URL
}
