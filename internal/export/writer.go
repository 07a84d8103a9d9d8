package export

import (
	"fmt"
	"os"
	"path/filepath"
)

// Writer persists rendered documents under .scopedesk/exports/.
type Writer struct {
	dir string
}

// NewWriter creates the exports directory if needed.
func NewWriter(exportsDir string) (*Writer, error) {
	if err := os.MkdirAll(exportsDir, 0o755); err != nil {
		return nil, fmt.Errorf("export: ensure exports dir: %w", err)
	}
	return &Writer{dir: exportsDir}, nil
}

// WriteAll renders every format, verifies each public variant against the
// internal brief, and writes the files. It returns the written paths. A
// consistency failure aborts before anything is written: a contradictory
// public document must never reach disk.
func (w *Writer) WriteAll(in Input) ([]string, error) {
	internal := InternalBrief(in)
	docs := []struct {
		name    string
		content string
		public  bool
	}{
		{"internal_brief.md", internal, false},
		{"executive_brief.md", ExecutiveBrief(in), true},
		{"email_draft.md", EmailDraft(in), true},
		{"slide_outline.md", SlideOutline(in), true},
	}

	for _, d := range docs {
		if !d.public {
			continue
		}
		if err := VerifyConsistency(internal, d.content); err != nil {
			return nil, fmt.Errorf("export: %s: %w", d.name, err)
		}
	}

	var paths []string
	for _, d := range docs {
		path := filepath.Join(w.dir, d.name)
		if err := os.WriteFile(path, []byte(d.content), 0o644); err != nil {
			return paths, fmt.Errorf("export: write %s: %w", d.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
