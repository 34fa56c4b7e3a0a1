// Package docstore defines the key-path text document store the quiz engine
// persists everything through, plus filesystem and in-memory backends.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("docstore: document not found")
	ErrExists      = errors.New("docstore: document already exists")
	ErrInvalidPath = errors.New("docstore: invalid path")
)

// Info describes a stored document.
type Info struct {
	Path    string
	ModTime time.Time
}

// Store is a key-path store of text documents. Every single-document write
// either fully succeeds or leaves the previous content in place.
type Store interface {
	Read(ctx context.Context, p string) (string, error)
	Create(ctx context.Context, p, content string) error
	Modify(ctx context.Context, p, content string) error
	Delete(ctx context.Context, p string) error
	Stat(ctx context.Context, p string) (Info, error)
	// List returns every document under prefix, sorted by path.
	List(ctx context.Context, prefix string) ([]Info, error)
}

// Put modifies the document at p, creating it when it does not exist yet.
func Put(ctx context.Context, s Store, p, content string) error {
	err := s.Modify(ctx, p, content)
	if errors.Is(err, ErrNotFound) {
		return s.Create(ctx, p, content)
	}
	return err
}

// Exists reports whether a document is stored at p.
func Exists(ctx context.Context, s Store, p string) (bool, error) {
	_, err := s.Stat(ctx, p)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// CleanPath normalizes a document path and rejects escapes above the root.
func CleanPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	c := strings.TrimPrefix(path.Clean("/"+p), "/")
	if c == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return c, nil
}

// UnderPrefix reports whether the cleaned path p lies under the directory prefix.
func UnderPrefix(p, prefix string) bool {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" || prefix == "." {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
