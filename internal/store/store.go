// Package store is the artifact store backing every pipeline stage.
// Artifact existence is the only completion signal the pipeline keeps:
// there is no separate job ledger, so re-running a command resumes from
// whatever files are already present.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type Store interface {
	// Exists reports whether the named artifact is present.
	Exists(name string) bool
	// Path returns an absolute location external tools (yt-dlp, ffmpeg)
	// can write to or read from.
	Path(name string) string
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	Remove(name string) error
	// List returns artifact names matching a filepath.Match pattern,
	// sorted ascending.
	List(pattern string) ([]string, error)
}

// Dir is the filesystem-backed store rooted at a single output directory.
type Dir struct {
	root string
}

func OpenDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	return &Dir{root: abs}, nil
}

func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) Exists(name string) bool {
	info, err := os.Stat(d.Path(name))
	return err == nil && !info.IsDir()
}

func (d *Dir) Path(name string) string {
	return filepath.Join(d.root, name)
}

func (d *Dir) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(d.Path(name))
}

func (d *Dir) WriteFile(name string, data []byte) error {
	return os.WriteFile(d.Path(name), data, 0o644)
}

func (d *Dir) Remove(name string) error {
	return os.Remove(d.Path(name))
}

func (d *Dir) List(pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(d.root, pattern))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", pattern, err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Strings(names)
	return names, nil
}
