// Package httpclient wraps resty for the collectors and the webhook sinks.
package httpclient

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultUserAgent is sent when a request carries no User-Agent of its own.
const DefaultUserAgent = "dailyscope/1.0"

// Client is the HTTP surface the collectors and sinks depend on.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (*resty.Response, error)
	PostForm(ctx context.Context, url string, form, headers map[string]string) (*resty.Response, error)
	PostJSON(ctx context.Context, url string, body []byte, headers map[string]string) (*resty.Response, error)
}

type restyClient struct {
	rc *resty.Client
}

// NewRestyClient returns a Client with the given request timeout.
func NewRestyClient(timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rc := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", DefaultUserAgent).
		SetHeader("Accept-Language", "en-US,en;q=0.9")
	return &restyClient{rc: rc}
}

// Get performs a GET request. Non-2xx statuses are not errors; callers inspect StatusCode.
func (c *restyClient) Get(ctx context.Context, url string, headers map[string]string) (*resty.Response, error) {
	return c.rc.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(url)
}

// PostForm posts form-encoded data.
func (c *restyClient) PostForm(ctx context.Context, url string, form, headers map[string]string) (*resty.Response, error) {
	return c.rc.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetFormData(form).
		Post(url)
}

// PostJSON posts an already encoded JSON body.
func (c *restyClient) PostJSON(ctx context.Context, url string, body []byte, headers map[string]string) (*resty.Response, error) {
	return c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeaders(headers).
		SetBody(body).
		Post(url)
}

// Snippet returns a trimmed prefix of a response body for error messages.
func Snippet(body []byte) string {
	const maxLen = 512
	s := string(body)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
