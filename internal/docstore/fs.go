package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FS stores documents as files below a root directory.
type FS struct {
	root string
}

// NewFS returns a filesystem store rooted at dir, creating dir if needed.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store root %s: %w", dir, err)
	}
	return &FS{root: dir}, nil
}

func (s *FS) abs(p string) (string, string, error) {
	c, err := CleanPath(p)
	if err != nil {
		return "", "", err
	}
	return c, filepath.Join(s.root, filepath.FromSlash(c)), nil
}

func (s *FS) Read(ctx context.Context, p string) (string, error) {
	c, full, err := s.abs(p)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, c)
		}
		return "", fmt.Errorf("failed to read %s: %w", c, err)
	}
	return string(b), nil
}

func (s *FS) Create(ctx context.Context, p, content string) error {
	c, full, err := s.abs(p)
	if err != nil {
		return err
	}
	if _, err := os.Stat(full); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, c)
	}
	return s.write(c, full, content)
}

func (s *FS) Modify(ctx context.Context, p, content string) error {
	c, full, err := s.abs(p)
	if err != nil {
		return err
	}
	if _, err := os.Stat(full); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, c)
	}
	return s.write(c, full, content)
}

// write replaces the file through a temp file and rename, so readers never
// observe a half-written document.
func (s *FS) write(c, full, content string) error {
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", c, err)
	}
	tmp, err := os.CreateTemp(dir, ".quizbank-*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", c, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", c, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", c, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", c, err)
	}
	return nil
}

func (s *FS) Delete(ctx context.Context, p string) error {
	c, full, err := s.abs(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, c)
		}
		return fmt.Errorf("failed to delete %s: %w", c, err)
	}
	return nil
}

func (s *FS) Stat(ctx context.Context, p string) (Info, error) {
	c, full, err := s.abs(p)
	if err != nil {
		return Info{}, err
	}
	fi, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, fmt.Errorf("%w: %s", ErrNotFound, c)
		}
		return Info{}, fmt.Errorf("failed to stat %s: %w", c, err)
	}
	return Info{Path: c, ModTime: fi.ModTime()}, nil
}

func (s *FS) List(ctx context.Context, prefix string) ([]Info, error) {
	var out []Info
	err := filepath.WalkDir(s.root, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Base(full)[0] == '.' {
			return nil
		}
		rel, err := filepath.Rel(s.root, full)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !UnderPrefix(rel, prefix) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, Info{Path: rel, ModTime: fi.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
