// Package promptfile loads prompt template files for jobs and scaffolds the
// default set. The store is an explicit dependency handed to the executor;
// reading a template has no side effects, and defaults are only written by
// the explicit Scaffold step (wired to `clawcron init`).
package promptfile

import (
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

//go:embed templates/defaults/*.md
var defaultTemplates embed.FS

var defaultNames = []string{
	"base.md",
	"example-job.md",
}

// Store reads template files from a single directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the template root.
func (s *Store) Dir() string {
	return s.dir
}

// Load concatenates the named template files with separator headers. A
// missing file is an error; jobs must not run against half a prompt.
func (s *Store) Load(names []string) (string, error) {
	if len(names) == 0 {
		return "", fmt.Errorf("no template files named")
	}

	var b strings.Builder
	for i, name := range names {
		content, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return "", fmt.Errorf("load template %s: %w", name, err)
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "--- %s ---\n", name)
		b.Write(content)
		if !strings.HasSuffix(string(content), "\n") {
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// Scaffold writes the embedded default templates into the store directory.
// Existing files are left untouched so user edits survive re-runs of init.
func (s *Store) Scaffold() ([]string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("create template dir: %w", err)
	}

	var written []string
	for _, name := range defaultNames {
		dst := filepath.Join(s.dir, name)
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		content, err := defaultTemplates.ReadFile(path.Join("templates", "defaults", name))
		if err != nil {
			return written, fmt.Errorf("read embedded template %s: %w", name, err)
		}
		if err := os.WriteFile(dst, content, 0644); err != nil {
			return written, fmt.Errorf("write template %s: %w", name, err)
		}
		written = append(written, name)
	}
	return written, nil
}
