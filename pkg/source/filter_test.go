package source

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFilter_DropsMalformed(t *testing.T) {
	in := []Story{
		{Title: "ok", URL: "https://a", Type: TypeNews},
		{Title: "", URL: "https://b", Type: TypeNews},
		{Title: "no url", URL: "  ", Type: TypeReddit},
		{Title: "  padded  ", URL: " https://c ", Type: TypeReddit},
	}

	out, dropped := NewFilter(0, nil).Apply(in)
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if len(out) != 2 {
		t.Fatalf("got %d stories, want 2", len(out))
	}
	if out[0].Title != "ok" || out[1].Title != "padded" || out[1].URL != "https://c" {
		t.Errorf("out = %+v", out)
	}
	if in[3].Title != "  padded  " {
		t.Error("input story was mutated")
	}
}

func TestFilter_TruncatesTitle(t *testing.T) {
	long := strings.Repeat("é", 250)
	out, _ := NewFilter(200, nil).Apply([]Story{{Title: long, URL: "https://a"}})
	if n := utf8.RuneCountInString(out[0].Title); n != 200 {
		t.Errorf("title runes = %d, want 200", n)
	}
	if !utf8.ValidString(out[0].Title) {
		t.Error("truncated title is not valid UTF-8")
	}
}

func TestFilter_ExcludeKeywords(t *testing.T) {
	in := []Story{
		{Title: "Sponsored: buy now", URL: "https://a"},
		{Title: "Election results", URL: "https://b"},
	}
	out, dropped := NewFilter(0, []string{"SPONSORED", " "}).Apply(in)
	if dropped != 1 || len(out) != 1 || out[0].Title != "Election results" {
		t.Errorf("out = %+v dropped = %d", out, dropped)
	}
}
