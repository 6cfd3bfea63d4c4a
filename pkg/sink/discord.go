package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elonfeng/dailyscope/pkg/httpclient"
)

// Discord sends the top stories via Discord webhook.
type Discord struct {
	name       string
	client     httpclient.Client
	webhookURL string
}

// NewDiscord creates a new Discord sink.
func NewDiscord(name, webhookURL string, client httpclient.Client) *Discord {
	if name == "" {
		name = "discord"
	}
	if client == nil {
		client = httpclient.NewRestyClient(10 * time.Second)
	}
	return &Discord{name: name, client: client, webhookURL: webhookURL}
}

func (d *Discord) Name() string { return d.name }

func (d *Discord) Write(ctx context.Context, out Output) error {
	if len(out.Stories) == 0 {
		return nil
	}

	var links []string
	for _, st := range out.Stories[:min(chatTopN, len(out.Stories))] {
		links = append(links, fmt.Sprintf("• **%d** [%s](%s) [%s]", st.ViralityScore, st.Title, st.URL, label(st)))
	}

	generated := out.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	embed := map[string]any{
		"title":       fmt.Sprintf("🔥 Top %d stories", len(links)),
		"description": strings.Join(links, "\n"),
		"color":       0xFF6600,
		"timestamp":   generated.UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(map[string]any{"embeds": []map[string]any{embed}})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	resp, err := d.client.PostJSON(ctx, d.webhookURL, body, nil)
	if err != nil {
		return fmt.Errorf("send discord webhook: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("discord webhook status %d", resp.StatusCode())
	}
	return nil
}
