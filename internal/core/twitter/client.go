// Package twitter wraps the X API v2 calls the backup needs: resolving
// the authenticated user and fetching one page of bookmarks with author
// and media expansions.
package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// MaxResults is the API's per-request bookmark cap.
const MaxResults = 100

// ErrorKind classifies remote failures so the caller can log a useful
// hint and degrade the run instead of crashing.
type ErrorKind string

const (
	ErrorKindAuth       ErrorKind = "auth"
	ErrorKindPermission ErrorKind = "permission"
	ErrorKindRateLimit  ErrorKind = "rate_limit"
	ErrorKindOther      ErrorKind = "other"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Kind       ErrorKind
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("x api status %d (%s): %s", e.StatusCode, e.Kind, e.Detail)
	}
	return fmt.Sprintf("x api status %d (%s)", e.StatusCode, e.Kind)
}

func classify(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized:
		return ErrorKindAuth
	case http.StatusForbidden:
		return ErrorKindPermission
	case http.StatusTooManyRequests:
		return ErrorKindRateLimit
	default:
		return ErrorKindOther
	}
}

// Variant is one encoding of a video attachment.
type Variant struct {
	ContentType string `json:"content_type"`
	BitRate     int64  `json:"bit_rate"`
	URL         string `json:"url"`
}

// Media is an expanded media object keyed by media_key.
type Media struct {
	MediaKey        string    `json:"media_key"`
	Type            string    `json:"type"`
	URL             string    `json:"url"`
	PreviewImageURL string    `json:"preview_image_url"`
	Variants        []Variant `json:"variants"`
}

// User is an expanded author object keyed by id.
type User struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
}

// PublicMetrics are the engagement counters attached to a tweet.
type PublicMetrics struct {
	LikeCount    int `json:"like_count"`
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	QuoteCount   int `json:"quote_count"`
}

// Attachments references expanded entities by key.
type Attachments struct {
	MediaKeys []string `json:"media_keys"`
}

// Tweet is a raw bookmarked post as the API returns it.
type Tweet struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	CreatedAt     time.Time     `json:"created_at"`
	AuthorID      string        `json:"author_id"`
	PublicMetrics PublicMetrics `json:"public_metrics"`
	Attachments   Attachments   `json:"attachments"`
}

// Includes are the side tables shipped alongside the tweet list.
type Includes struct {
	Users []User  `json:"users"`
	Media []Media `json:"media"`
}

// BookmarksPage is one page of the bookmarks listing.
type BookmarksPage struct {
	Tweets     []Tweet
	Includes   Includes
	NextCursor string
}

// UsersByID indexes the expanded users side table.
func (p BookmarksPage) UsersByID() map[string]User {
	out := make(map[string]User, len(p.Includes.Users))
	for _, u := range p.Includes.Users {
		out[u.ID] = u
	}
	return out
}

// MediaByKey indexes the expanded media side table.
func (p BookmarksPage) MediaByKey() map[string]Media {
	out := make(map[string]Media, len(p.Includes.Media))
	for _, m := range p.Includes.Media {
		out[m.MediaKey] = m
	}
	return out
}

// Client is a bearer-token client for the X API v2.
type Client struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
}

// NewClient creates a Client authenticated with the given bearer token.
func NewClient(bearerToken string) *Client {
	return &Client{
		baseURL:     "https://api.twitter.com/2",
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(1), 5),
		maxAttempts: 3,
		baseBackoff: 500 * time.Millisecond,
	}
}

func (c *Client) auth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Accept", "application/json")
}

// Me returns the id of the authenticated user. The bookmarks route is
// addressed by user id, not by the token itself.
func (c *Client) Me(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/me", nil)
	if err != nil {
		return "", err
	}
	c.auth(req)
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", &APIError{StatusCode: resp.StatusCode, Kind: classify(resp.StatusCode)}
	}

	var raw struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("failed to decode users/me response: %w", err)
	}
	if raw.Data.ID == "" {
		return "", errors.New("users/me returned no id")
	}
	return raw.Data.ID, nil
}

// Bookmarks fetches one page of the user's bookmarks with author and
// media expansions. An empty page is not an error. cursor may be empty
// for the first page.
func (c *Client) Bookmarks(ctx context.Context, userID, cursor string) (BookmarksPage, error) {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(MaxResults))
	q.Set("tweet.fields", "id,text,created_at,author_id,public_metrics,attachments,entities")
	q.Set("user.fields", "id,name,username,profile_image_url")
	q.Set("media.fields", "media_key,type,url,preview_image_url,variants")
	q.Set("expansions", "author_id,attachments.media_keys")
	if cursor != "" {
		q.Set("pagination_token", cursor)
	}

	u := fmt.Sprintf("%s/users/%s/bookmarks?%s", c.baseURL, url.PathEscape(userID), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return BookmarksPage{}, err
	}
	c.auth(req)
	if err := c.limiter.Wait(ctx); err != nil {
		return BookmarksPage{}, err
	}
	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return BookmarksPage{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return BookmarksPage{}, &APIError{StatusCode: resp.StatusCode, Kind: classify(resp.StatusCode)}
	}

	var raw struct {
		Data     []Tweet  `json:"data"`
		Includes Includes `json:"includes"`
		Meta     struct {
			NextToken string `json:"next_token"`
		} `json:"meta"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return BookmarksPage{}, fmt.Errorf("failed to decode bookmarks response: %w", err)
	}

	return BookmarksPage{
		Tweets:     raw.Data,
		Includes:   raw.Includes,
		NextCursor: raw.Meta.NextToken,
	}, nil
}

// doWithRetry retries 429 and 5xx responses with exponential backoff,
// honoring Retry-After when present. Other statuses are returned to the
// caller untouched.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err == nil {
			if resp.StatusCode != http.StatusTooManyRequests && (resp.StatusCode < 500 || resp.StatusCode > 599) {
				return resp, nil
			}
			lastErr = &APIError{StatusCode: resp.StatusCode, Kind: classify(resp.StatusCode)}
			wait := backoff
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, perr := strconv.Atoi(ra); perr == nil {
					wait = time.Duration(secs) * time.Second
				}
			}
			_ = resp.Body.Close()
			if attempt == c.maxAttempts {
				break
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
			continue
		}
		lastErr = err
		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxAttempts, lastErr)
}
