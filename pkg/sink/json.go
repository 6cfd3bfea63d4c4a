package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/elonfeng/dailyscope/pkg/virality"
)

// JSON writes the output as indented JSON, either to a writer or to a file
// that is replaced on every run.
type JSON struct {
	name string
	w    io.Writer
	path string
}

// NewJSONWriter creates a JSON sink that writes to w.
func NewJSONWriter(name string, w io.Writer) *JSON {
	if name == "" {
		name = "json"
	}
	return &JSON{name: name, w: w}
}

// NewJSONFile creates a JSON sink that writes to the file at path.
func NewJSONFile(name, path string) *JSON {
	if name == "" {
		name = "json"
	}
	return &JSON{name: name, path: path}
}

func (j *JSON) Name() string { return j.name }

func (j *JSON) Write(_ context.Context, out Output) error {
	if j.w != nil {
		return encodeJSON(j.w, out)
	}

	if dir := filepath.Dir(j.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	tmp := j.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := encodeJSON(f, out); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return fmt.Errorf("replace %s: %w", j.path, err)
	}
	return nil
}

func encodeJSON(w io.Writer, out Output) error {
	if out.Stories == nil {
		out.Stories = []virality.ScoredStory{}
	}
	if out.FailedUnits == nil {
		out.FailedUnits = []string{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
