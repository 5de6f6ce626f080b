// Package fsio implements stdlib.IO against the local filesystem, the
// concrete capability RunTaskCall gives internal/eval's Evaluator so a
// task's private declarations, command placeholders, and outputs can
// call read_*/write_*/glob/size against files staged under its work
// directory.
package fsio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FS roots every relative path and every write_*-created file under Dir,
// the container-side mount point a task call's staged inputs/work
// directory is bind-mounted at (Activities.MountPoint).
type FS struct {
	Dir string
}

// New constructs an FS rooted at dir.
func New(dir string) *FS {
	return &FS{Dir: dir}
}

func (f *FS) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(f.Dir, path)
}

// ReadFile reads the file at path (absolute, or relative to Dir).
func (f *FS) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(f.resolve(path))
	if err != nil {
		return "", fmt.Errorf("fsio: reading %s: %w", path, err)
	}
	return string(data), nil
}

// WriteFile writes content to a fresh file under Dir/tmp and returns the
// path it was written to, the File value write_lines/write_json/... etc
// return.
func (f *FS) WriteFile(content string) (string, error) {
	dir := filepath.Join(f.Dir, "tmp")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("fsio: creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, uuid.NewString())
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("fsio: writing %s: %w", path, err)
	}
	return path, nil
}

// Glob expands pattern (resolved against Dir when relative) and returns
// matches sorted the way filepath.Glob already guarantees. A match whose
// resolved path (symlinks included) falls outside Dir is rejected rather
// than silently returned, since an absolute pattern or one with ".."
// segments could otherwise reach files outside the task's working
// directory.
func (f *FS) Glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(f.resolve(pattern))
	if err != nil {
		return nil, fmt.Errorf("fsio: glob %s: %w", pattern, err)
	}
	root, err := filepath.EvalSymlinks(f.Dir)
	if err != nil {
		return nil, fmt.Errorf("fsio: resolving work directory %s: %w", f.Dir, err)
	}
	for _, m := range matches {
		real, err := filepath.EvalSymlinks(m)
		if err != nil {
			return nil, fmt.Errorf("fsio: resolving glob match %s: %w", m, err)
		}
		rel, err := filepath.Rel(root, real)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("fsio: glob match %s escapes work directory %s", m, f.Dir)
		}
	}
	return matches, nil
}

// FileSize stats path and returns its size in bytes.
func (f *FS) FileSize(path string) (int64, error) {
	info, err := os.Stat(f.resolve(path))
	if err != nil {
		return 0, fmt.Errorf("fsio: stat %s: %w", path, err)
	}
	return info.Size(), nil
}
