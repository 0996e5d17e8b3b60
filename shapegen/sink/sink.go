// Package sink provides output destinations for generated client code.
package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// OutputSink receives generated files. Implementations must be safe for
// concurrent calls; the generator writes files in parallel.
type OutputSink interface {
	// WriteFile stores content at path, a clean slash-separated relative path.
	WriteFile(ctx context.Context, path string, content []byte) error
}

// FilesystemSink writes files under a root directory.
type FilesystemSink struct {
	Root string

	// Mode is the permission of written files (default 0644).
	Mode os.FileMode

	// Overwrite replaces existing files. When false, writing a path that
	// already exists fails.
	Overwrite bool
}

// NewFilesystemSink returns a sink that writes under root, replacing
// existing files.
func NewFilesystemSink(root string) *FilesystemSink {
	return &FilesystemSink{Root: root, Mode: 0o644, Overwrite: true}
}

// WriteFile writes through a temporary file and renames it into place, so
// readers never see a partial file.
func (s *FilesystemSink) WriteFile(ctx context.Context, path string, content []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	mode := s.Mode
	if mode == 0 {
		mode = 0o644
	}

	tmp, err := os.CreateTemp(dir, ".shapegen-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, werr := tmp.Write(content)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if s.Overwrite {
		if err := os.Rename(tmpPath, full); err != nil {
			_ = os.Remove(tmpPath)
			return fmt.Errorf("rename %s: %w", path, err)
		}
		return nil
	}
	// Link fails if the target exists, without a stat/rename race.
	err = os.Link(tmpPath, full)
	_ = os.Remove(tmpPath)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("file already exists: %q", path)
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return nil
}

func (s *FilesystemSink) resolve(path string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	full := filepath.Join(root, filepath.FromSlash(path))
	if !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes root directory: %q", path)
	}
	return full, nil
}

// MemorySink keeps generated files in memory.
type MemorySink struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

func (s *MemorySink) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := ValidatePath(path); err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = bytes.Clone(content)
	return nil
}

// Files returns a copy of every stored file.
func (s *MemorySink) Files() map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.files))
	for p, c := range s.files {
		out[p] = bytes.Clone(c)
	}
	return out
}

// Paths returns the stored paths in sorted order.
func (s *MemorySink) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Get returns a copy of one file, or nil.
func (s *MemorySink) Get(path string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bytes.Clone(s.files[path])
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = make(map[string][]byte)
}

// DiffSink compares generated files with what is already under Root and
// writes nothing. It backs "is the generated code up to date" checks.
type DiffSink struct {
	Root string

	mu    sync.Mutex
	stale []string
}

func NewDiffSink(root string) *DiffSink {
	return &DiffSink{Root: root}
}

func (s *DiffSink) WriteFile(ctx context.Context, path string, content []byte) error {
	full, err := (&FilesystemSink{Root: s.Root}).resolve(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	existing, err := os.ReadFile(full)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err != nil || !bytes.Equal(existing, content) {
		s.mu.Lock()
		s.stale = append(s.stale, path)
		s.mu.Unlock()
	}
	return nil
}

// Stale returns the paths whose content differs or is missing, sorted.
func (s *DiffSink) Stale() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.stale)
	slices.Sort(out)
	return out
}

// ValidatePath reports whether path is a clean, relative, slash-separated
// path that stays inside the sink root.
func ValidatePath(path string) error {
	switch {
	case path == "":
		return errors.New("path is empty")
	case filepath.IsAbs(path) || strings.HasPrefix(path, "/") || isDrivePath(path):
		return errors.New("absolute paths not allowed")
	case strings.Contains(path, "\\"):
		return errors.New("backslash not allowed")
	}
	for _, elem := range strings.Split(path, "/") {
		if elem == ".." {
			return errors.New("path traversal not allowed")
		}
	}
	if cleaned := filepath.ToSlash(filepath.Clean(path)); cleaned != path {
		return fmt.Errorf("path is not clean (expected %q, got %q)", cleaned, path)
	}
	return nil
}

func isDrivePath(path string) bool {
	if len(path) < 2 || path[1] != ':' {
		return false
	}
	c := path[0] | 0x20
	return c >= 'a' && c <= 'z'
}
