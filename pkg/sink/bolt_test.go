package sink

import (
	"context"
	"path/filepath"
	"testing"
)

func TestBolt(t *testing.T) {
	b, err := OpenBolt("", filepath.Join(t.TempDir(), "out.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close()

	if _, err := b.Latest(); err == nil {
		t.Error("expected error before anything was written")
	}

	first := sampleOutput()
	second := sampleOutput()
	second.RunID = "run-2"
	second.Stories = second.Stories[:1]

	for _, out := range []Output{first, second} {
		if err := b.Write(context.Background(), out); err != nil {
			t.Fatalf("write %s: %v", out.RunID, err)
		}
	}

	latest, err := b.Latest()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.RunID != "run-2" || len(latest.Stories) != 1 {
		t.Errorf("latest = %s with %d stories", latest.RunID, len(latest.Stories))
	}

	old, err := b.Run("run-1")
	if err != nil {
		t.Fatalf("run-1: %v", err)
	}
	if len(old.Stories) != 2 || old.Stories[1].UpvotesOr(0) != 6000 {
		t.Errorf("run-1 = %+v", old)
	}
}
