package source

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/elonfeng/dailyscope/pkg/httpclient"
)

const (
	redditPublicURL = "https://www.reddit.com"
	redditOAuthURL  = "https://oauth.reddit.com"
	redditLinkBase  = "https://reddit.com"
)

// RedditAuth holds optional app credentials. Without them the public JSON
// listings are used.
type RedditAuth struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	// BaseURL overrides the public endpoint; used for tests and proxies.
	BaseURL string
}

// redditToken is shared by every Reddit collector built from the same auth.
type redditToken struct {
	mu     sync.Mutex
	token  string
	expiry time.Time
}

// RedditSession is the shared state of all Reddit collectors in a run.
type RedditSession struct {
	client httpclient.Client
	auth   RedditAuth
	tok    *redditToken
}

// NewRedditSession creates a session that Reddit collectors share.
func NewRedditSession(client httpclient.Client, auth RedditAuth) *RedditSession {
	if client == nil {
		client = httpclient.NewRestyClient(30 * time.Second)
	}
	if auth.UserAgent == "" {
		auth.UserAgent = httpclient.DefaultUserAgent
	}
	auth.BaseURL = strings.TrimRight(auth.BaseURL, "/")
	return &RedditSession{client: client, auth: auth, tok: &redditToken{}}
}

func (s *RedditSession) oauth() bool {
	return s.auth.ClientID != "" && s.auth.ClientSecret != ""
}

// Reddit collects one subreddit listing with one sort.
type Reddit struct {
	session   *RedditSession
	subreddit string
	sort      Sort
	window    string
	limit     int
	now       func() time.Time
}

// NewReddit creates a collector for r/<subreddit> listed by sort. window is the
// time filter for sorts that take one ("day", "week", ...).
func (s *RedditSession) NewReddit(subreddit string, sort Sort, window string, limit int) (*Reddit, error) {
	subreddit = strings.TrimPrefix(strings.TrimSpace(subreddit), "r/")
	if subreddit == "" {
		return nil, errors.New("reddit: subreddit is required")
	}
	if sort == "" {
		sort = SortHot
	}
	if window == "" {
		window = "day"
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Reddit{
		session:   s,
		subreddit: subreddit,
		sort:      sort,
		window:    window,
		limit:     limit,
		now:       time.Now,
	}, nil
}

func (r *Reddit) Unit() Unit { return RedditUnit(r.subreddit, r.sort) }

func (r *Reddit) Collect(ctx context.Context) ([]Story, error) {
	headers := map[string]string{
		"User-Agent": r.session.auth.UserAgent,
		"Accept":     "application/json",
	}

	base := redditPublicURL
	if r.session.oauth() {
		token, err := r.session.authenticate(ctx)
		if err != nil {
			return nil, fmt.Errorf("reddit auth: %w", err)
		}
		headers["Authorization"] = "Bearer " + token
		base = redditOAuthURL
	}
	if r.session.auth.BaseURL != "" {
		base = r.session.auth.BaseURL
	}

	q := url.Values{}
	q.Set("limit", fmt.Sprint(r.limit))
	q.Set("t", r.window)
	q.Set("raw_json", "1")
	reqURL := fmt.Sprintf("%s/r/%s/%s.json?%s", base, url.PathEscape(r.subreddit), r.sort, q.Encode())

	resp, err := r.session.client.Get(ctx, reqURL, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch r/%s: %w", r.subreddit, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("reddit r/%s status %d", r.subreddit, resp.StatusCode())
	}

	var listing redditListing
	if err := json.Unmarshal(resp.Body(), &listing); err != nil {
		return nil, fmt.Errorf("decode r/%s: %w", r.subreddit, err)
	}

	return r.storiesFromListing(listing), nil
}

func (r *Reddit) storiesFromListing(listing redditListing) []Story {
	collectedAt := r.now().UTC()
	source := "r/" + r.subreddit

	var stories []Story
	for _, child := range listing.Data.Children {
		if len(stories) >= r.limit {
			break
		}
		post := child.Data
		if post.Stickied {
			continue
		}

		title := strings.TrimSpace(post.Title)
		if title == "" {
			continue
		}

		upvotes := post.Score
		if upvotes < 0 {
			upvotes = 0
		}

		stories = append(stories, Story{
			Title:       title,
			URL:         redditLinkBase + post.Permalink,
			Source:      source,
			Type:        TypeReddit,
			Upvotes:     IntPtr(upvotes),
			Sort:        r.sort,
			CollectedAt: collectedAt,
		})
	}
	return stories
}

// authenticate returns a cached application-only OAuth token, refreshing it when expired.
func (s *RedditSession) authenticate(ctx context.Context) (string, error) {
	s.tok.mu.Lock()
	defer s.tok.mu.Unlock()

	if s.tok.token != "" && time.Now().Before(s.tok.expiry) {
		return s.tok.token, nil
	}

	tokenURL := redditPublicURL + "/api/v1/access_token"
	if s.auth.BaseURL != "" {
		tokenURL = s.auth.BaseURL + "/api/v1/access_token"
	}
	creds := base64.StdEncoding.EncodeToString([]byte(s.auth.ClientID + ":" + s.auth.ClientSecret))

	resp, err := s.client.PostForm(ctx, tokenURL,
		map[string]string{"grant_type": "client_credentials"},
		map[string]string{
			"Authorization": "Basic " + creds,
			"User-Agent":    s.auth.UserAgent,
		})
	if err != nil {
		return "", fmt.Errorf("reddit token request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("reddit auth status %d", resp.StatusCode())
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body(), &tokenResp); err != nil {
		return "", fmt.Errorf("decode reddit token: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", errors.New("reddit token response has no access_token")
	}

	s.tok.token = tokenResp.AccessToken
	s.tok.expiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)
	return s.tok.token, nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Permalink string `json:"permalink"`
	Score     int    `json:"score"`
	Stickied  bool   `json:"stickied"`
}
