package sink

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elonfeng/dailyscope/pkg/httpclient"
)

// Webhook posts the full output to a generic HTTP endpoint.
type Webhook struct {
	name   string
	client httpclient.Client
	url    string
	secret string
}

// NewWebhook creates a new generic webhook sink.
func NewWebhook(name, url, secret string, client httpclient.Client) *Webhook {
	if name == "" {
		name = "webhook"
	}
	if client == nil {
		client = httpclient.NewRestyClient(10 * time.Second)
	}
	return &Webhook{name: name, client: client, url: url, secret: secret}
}

func (w *Webhook) Name() string { return w.name }

func (w *Webhook) Write(ctx context.Context, out Output) error {
	body, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	headers := map[string]string{}
	// HMAC signature for verification.
	if w.secret != "" {
		headers["X-Signature-256"] = "sha256=" + Sign(w.secret, body)
	}

	resp, err := w.client.PostJSON(ctx, w.url, body, headers)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode())
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body keyed with secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
