package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalPrefix is the URL path the router serves Local files under.
const LocalPrefix = "/media/"

// Local stores photos on the filesystem for single-host deployments and
// development.
type Local struct {
	root string
}

// NewLocal returns a store rooted at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Local{root: dir}, nil
}

// Handler serves stored files by key. Directories answer 404 so the
// upload tree cannot be listed.
func (l *Local) Handler() http.Handler {
	return http.FileServer(filesOnly{http.Dir(l.root)})
}

// filesOnly hides directories from http.FileServer.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}

// Root returns the directory files are written to.
func (l *Local) Root() string {
	return l.root
}

func (l *Local) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid media key %q", key)
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

// Put writes data to key, replacing any existing file.
func (l *Local) Put(ctx context.Context, key, contentType string, data []byte) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write media %s: %w", key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write media %s: %w", key, err)
	}
	return nil
}

// Get reads the file stored under key.
func (l *Local) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read media %s: %w", key, err)
	}
	return data, nil
}

// Delete removes key. A missing file is not an error.
func (l *Local) Delete(ctx context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete media %s: %w", key, err)
	}
	return nil
}

// URL returns the app-relative URL of key.
func (l *Local) URL(key string) string {
	return LocalPrefix + strings.TrimPrefix(key, "/")
}

// Resolve is URL; local files never need signing.
func (l *Local) Resolve(ctx context.Context, key string) (string, error) {
	return l.URL(key), nil
}

// Origin is empty: local files are same-origin.
func (l *Local) Origin() string {
	return ""
}
