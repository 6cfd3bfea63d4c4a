package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elonfeng/dailyscope/pkg/httpclient"
)

// chatTopN is how many stories chat sinks include.
const chatTopN = 5

// Slack sends the top stories via Slack incoming webhook.
type Slack struct {
	name       string
	client     httpclient.Client
	webhookURL string
}

// NewSlack creates a new Slack sink.
func NewSlack(name, webhookURL string, client httpclient.Client) *Slack {
	if name == "" {
		name = "slack"
	}
	if client == nil {
		client = httpclient.NewRestyClient(10 * time.Second)
	}
	return &Slack{name: name, client: client, webhookURL: webhookURL}
}

func (s *Slack) Name() string { return s.name }

func (s *Slack) Write(ctx context.Context, out Output) error {
	if len(out.Stories) == 0 {
		return nil
	}

	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": fmt.Sprintf("🔥 Top %d stories", min(chatTopN, len(out.Stories))),
			},
		},
	}

	var lines []string
	for i, st := range out.Stories[:min(chatTopN, len(out.Stories))] {
		lines = append(lines, fmt.Sprintf("%d. *%d* <%s|%s> [%s]", i+1, st.ViralityScore, st.URL, st.Title, label(st)))
	}
	blocks = append(blocks, map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": strings.Join(lines, "\n"),
		},
	})

	if len(out.FailedUnits) > 0 {
		blocks = append(blocks, map[string]any{
			"type": "context",
			"elements": []map[string]any{{
				"type": "mrkdwn",
				"text": "failed: " + strings.Join(out.FailedUnits, ", "),
			}},
		})
	}

	body, err := json.Marshal(map[string]any{"blocks": blocks})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	resp, err := s.client.PostJSON(ctx, s.webhookURL, body, nil)
	if err != nil {
		return fmt.Errorf("send slack webhook: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("slack webhook status %d", resp.StatusCode())
	}
	return nil
}
