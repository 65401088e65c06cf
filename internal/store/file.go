package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File stores documents as files under a root directory. The token is the
// SHA-256 of the file content, so edits made with a text editor are detected
// as conflicts too. Identity.Ref is ignored.
type File struct {
	root string
	mu   sync.Mutex
}

// NewFile returns a File store rooted at dir.
func NewFile(dir string) *File {
	return &File{root: dir}
}

func (f *File) path(id Identity) (string, error) {
	if id.Path == "" {
		return "", errors.New("empty document path")
	}
	if filepath.IsAbs(id.Path) {
		return filepath.Clean(id.Path), nil
	}
	return filepath.Join(f.root, filepath.Clean(id.Path)), nil
}

// Get implements Store.
func (f *File) Get(ctx context.Context, id Identity) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	path, err := f.path(id)
	if err != nil {
		return Document{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	content := string(data)
	return Document{Content: content, Token: ContentToken(content)}, nil
}

// Put implements Store. The file is written to a temporary sibling and
// renamed into place.
func (f *File) Put(ctx context.Context, id Identity, content, token, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := f.path(id)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := os.ReadFile(path)
	switch {
	case err == nil:
		if ContentToken(string(current)) != token {
			return "", fmt.Errorf("%s: %w", path, ErrConflict)
		}
	case errors.Is(err, fs.ErrNotExist):
		if token != "" {
			return "", fmt.Errorf("%s: %w", path, ErrConflict)
		}
	default:
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", path, err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename temp file: %w", err)
	}
	return ContentToken(content), nil
}
