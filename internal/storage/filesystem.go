package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FilesystemStore is an ObjectStore rooted at a local directory. Object keys
// follow the `{year}/{uuid}_{filename}` layout so listings group by year.
type FilesystemStore struct {
	root    string
	baseURL string // public base for download URLs, e.g. http://localhost:8080
}

// NewFilesystemStore creates the root directory if needed.
func NewFilesystemStore(root, baseURL string) (*FilesystemStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &Error{Op: "init", Err: err}
	}
	return &FilesystemStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FilesystemStore) Put(ctx context.Context, data []byte, suggestedName, contentKind string) (string, string, error) {
	key := fmt.Sprintf("%d/%s_%s", time.Now().Year(), uuid.New().String(), sanitizeName(suggestedName))

	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", "", &Error{Op: "put", Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", &Error{Op: "put", Err: err}
	}

	return key, s.baseURL + "/objects/" + escapeKey(key), nil
}

// escapeKey escapes each key segment separately so the slashes survive as
// path separators in the URL.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

func (s *FilesystemStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	return f, nil
}

func (s *FilesystemStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return &Error{Op: "delete", Err: err}
	}
	return nil
}

// sanitizeName strips path separators and other characters that would break
// the key layout.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
