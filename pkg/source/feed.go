package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/elonfeng/dailyscope/pkg/httpclient"
)

// Feed collects a news site's stories from its RSS/Atom feed. The feed order
// stands in for the most-read order.
type Feed struct {
	client httpclient.Client
	parser *gofeed.Parser
	id     string
	url    string
	limit  int
	now    func() time.Time
}

// NewFeed creates a feed collector for the site with the given id.
func NewFeed(client httpclient.Client, id, feedURL string, limit int) (*Feed, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return nil, errors.New("feed: site id is required")
	}
	if strings.TrimSpace(feedURL) == "" {
		return nil, fmt.Errorf("feed %s: feed_url is required", id)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if client == nil {
		client = httpclient.NewRestyClient(30 * time.Second)
	}
	return &Feed{
		client: client,
		parser: gofeed.NewParser(),
		id:     id,
		url:    feedURL,
		limit:  limit,
		now:    time.Now,
	}, nil
}

func (f *Feed) Unit() Unit { return NewsUnit(f.id) }

func (f *Feed) Collect(ctx context.Context) ([]Story, error) {
	resp, err := f.client.Get(ctx, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", f.id, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("feed %s status %d", f.id, resp.StatusCode())
	}

	parsed, err := f.parser.Parse(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.id, err)
	}

	collectedAt := f.now().UTC()
	source := strings.ToUpper(f.id)

	var stories []Story
	for i, entry := range parsed.Items {
		if i >= f.limit {
			break
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}

		title := strings.TrimSpace(entry.Title)
		link = strings.TrimSpace(link)
		if title == "" || link == "" {
			continue
		}

		stories = append(stories, Story{
			Title:       collapseSpace(title),
			URL:         link,
			Source:      source,
			Type:        TypeNews,
			Position:    IntPtr(i + 1),
			CollectedAt: collectedAt,
		})
	}

	return stories, nil
}
