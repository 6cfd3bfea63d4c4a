package sink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/elonfeng/dailyscope/pkg/httpclient"
)

type captured struct {
	body    []byte
	headers http.Header
}

func captureServer(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.body, _ = io.ReadAll(r.Body)
		c.headers = r.Header.Clone()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func testClient() httpclient.Client { return httpclient.NewRestyClient(2 * time.Second) }

func TestWebhook_SignsPayload(t *testing.T) {
	srv, got := captureServer(t, http.StatusAccepted)

	w := NewWebhook("hook", srv.URL, "s3cret", testClient())
	if err := w.Write(context.Background(), sampleOutput()); err != nil {
		t.Fatalf("write: %v", err)
	}

	want := "sha256=" + Sign("s3cret", got.body)
	if sig := got.headers.Get("X-Signature-256"); sig != want {
		t.Errorf("signature = %q, want %q", sig, want)
	}

	var out Output
	if err := json.Unmarshal(got.body, &out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if out.RunID != "run-1" || len(out.Stories) != 2 {
		t.Errorf("payload = %+v", out)
	}
}

func TestWebhook_NoSecretNoSignature(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK)

	if err := NewWebhook("", srv.URL, "", testClient()).Write(context.Background(), sampleOutput()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got.headers.Get("X-Signature-256") != "" {
		t.Error("unexpected signature header")
	}
}

func TestWebhook_StatusError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusInternalServerError)
	if err := NewWebhook("", srv.URL, "", testClient()).Write(context.Background(), sampleOutput()); err == nil {
		t.Fatal("expected error for 500")
	}
}

func TestSlack(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK)

	if err := NewSlack("", srv.URL, testClient()).Write(context.Background(), sampleOutput()); err != nil {
		t.Fatalf("write: %v", err)
	}

	var payload struct {
		Blocks []map[string]any `json:"blocks"`
	}
	if err := json.Unmarshal(got.body, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Blocks) != 3 {
		t.Fatalf("got %d blocks, want header, section and failed context", len(payload.Blocks))
	}
	text := payload.Blocks[1]["text"].(map[string]any)["text"].(string)
	if !strings.Contains(text, "<https://bbc.co.uk/a|A>") {
		t.Errorf("section text = %q", text)
	}
}

func TestSlack_SkipsEmptyOutput(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK)
	if err := NewSlack("", srv.URL, testClient()).Write(context.Background(), Output{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got.body != nil {
		t.Error("empty output should not be posted")
	}
}

func TestDiscord(t *testing.T) {
	srv, got := captureServer(t, http.StatusNoContent)

	if err := NewDiscord("", srv.URL, testClient()).Write(context.Background(), sampleOutput()); err != nil {
		t.Fatalf("write: %v", err)
	}

	var payload struct {
		Embeds []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Timestamp   string `json:"timestamp"`
		} `json:"embeds"`
	}
	if err := json.Unmarshal(got.body, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Embeds) != 1 {
		t.Fatalf("got %d embeds", len(payload.Embeds))
	}
	e := payload.Embeds[0]
	if !strings.Contains(e.Title, "Top 2") || !strings.Contains(e.Description, "[B](https://reddit.com/r/news/b)") {
		t.Errorf("embed = %+v", e)
	}
	if e.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("timestamp = %q", e.Timestamp)
	}
}

func TestDiscord_StatusError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusBadRequest)
	if err := NewDiscord("", srv.URL, testClient()).Write(context.Background(), sampleOutput()); err == nil {
		t.Fatal("expected error for 400")
	}
}
