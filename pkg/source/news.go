package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/elonfeng/dailyscope/pkg/httpclient"
)

// Site describes where a news site lists its most-read stories.
type Site struct {
	URL           string `mapstructure:"url" yaml:"url" json:"url"`
	FeedURL       string `mapstructure:"feed_url" yaml:"feed_url,omitempty" json:"feed_url,omitempty"`
	ItemSelector  string `mapstructure:"item_selector" yaml:"item_selector,omitempty" json:"item_selector,omitempty"`
	TitleSelector string `mapstructure:"title_selector" yaml:"title_selector,omitempty" json:"title_selector,omitempty"`
	LinkSelector  string `mapstructure:"link_selector" yaml:"link_selector,omitempty" json:"link_selector,omitempty"`
}

// DefaultSites are the news sites known out of the box, keyed by site id.
func DefaultSites() map[string]Site {
	return map[string]Site{
		"bbc": {
			URL:           "https://www.bbc.com/news",
			ItemSelector:  ".most-read__list-items li",
			TitleSelector: "h3",
			LinkSelector:  "a",
		},
		"reuters": {
			URL:           "https://www.reuters.com",
			ItemSelector:  ".story-box-collection li, .story-list li",
			TitleSelector: "h3, a",
			LinkSelector:  "a",
		},
		"apnews": {
			URL:           "https://apnews.com/hub/ap-top-25",
			ItemSelector:  ".PageList-Items li, .headline",
			TitleSelector: "h3, a",
			LinkSelector:  "a",
		},
		"vox": {
			URL:           "https://www.vox.com",
			ItemSelector:  ".crop-21-9 li, .most-ember-widget li",
			TitleSelector: "h3, a",
			LinkSelector:  "a",
		},
		"buzzfeed": {
			URL:           "https://www.buzzfeednews.com",
			ItemSelector:  ".news-article, .story-card",
			TitleSelector: "h2, h3",
			LinkSelector:  "a",
		},
	}
}

const maxPageBytes = 4 << 20

// NewsPage scrapes a site's most-read list with CSS selectors.
type NewsPage struct {
	client httpclient.Client
	id     string
	site   Site
	limit  int
	now    func() time.Time
}

// NewNewsPage creates a page collector for the site with the given id.
func NewNewsPage(client httpclient.Client, id string, site Site, limit int) (*NewsPage, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return nil, errors.New("news page: site id is required")
	}
	if strings.TrimSpace(site.URL) == "" {
		return nil, fmt.Errorf("news page %s: url is required", id)
	}
	if strings.TrimSpace(site.ItemSelector) == "" {
		return nil, fmt.Errorf("news page %s: item_selector is required", id)
	}
	if site.TitleSelector == "" {
		site.TitleSelector = "h3, a"
	}
	if site.LinkSelector == "" {
		site.LinkSelector = "a"
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if client == nil {
		client = httpclient.NewRestyClient(30 * time.Second)
	}
	return &NewsPage{client: client, id: id, site: site, limit: limit, now: time.Now}, nil
}

func (p *NewsPage) Unit() Unit { return NewsUnit(p.id) }

func (p *NewsPage) Collect(ctx context.Context) ([]Story, error) {
	resp, err := p.client.Get(ctx, p.site.URL, map[string]string{"Accept": "text/html"})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", p.id, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%s status %d body: %s", p.id, resp.StatusCode(), httpclient.Snippet(resp.Body()))
	}

	body := resp.Body()
	if len(body) > maxPageBytes {
		body = body[:maxPageBytes]
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.id, err)
	}

	base, _ := url.Parse(p.site.URL)
	return p.extract(doc, base), nil
}

// extract walks the first limit list elements. Elements without a title or
// link are skipped but still consume their position.
func (p *NewsPage) extract(doc *goquery.Document, base *url.URL) []Story {
	collectedAt := p.now().UTC()
	source := strings.ToUpper(p.id)

	var stories []Story
	doc.Find(p.site.ItemSelector).EachWithBreak(func(i int, el *goquery.Selection) bool {
		if i >= p.limit {
			return false
		}

		title := strings.TrimSpace(el.Find(p.site.TitleSelector).First().Text())
		href, _ := el.Find(p.site.LinkSelector).First().Attr("href")
		link := resolveURL(strings.TrimSpace(href), base)
		if title == "" || link == "" {
			return true
		}

		stories = append(stories, Story{
			Title:       collapseSpace(title),
			URL:         link,
			Source:      source,
			Type:        TypeNews,
			Position:    IntPtr(i + 1),
			CollectedAt: collectedAt,
		})
		return true
	})
	return stories
}

// resolveURL resolves a possibly relative href against the page URL.
func resolveURL(raw string, base *url.URL) string {
	if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "javascript:") {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.IsAbs() || base == nil {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
