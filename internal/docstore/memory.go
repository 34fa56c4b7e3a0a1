package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memDoc struct {
	content string
	modTime time.Time
}

// Memory is an in-process Store. It is used for tests and for the
// "memory" backend when nothing should touch disk.
type Memory struct {
	mu   sync.Mutex
	docs map[string]memDoc
	now  func() time.Time

	// FailOn, when set, is consulted before every write; a non-nil return
	// aborts the write with that error.
	FailOn func(op, p string) error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]memDoc), now: time.Now}
}

func (m *Memory) fail(op, p string) error {
	if m.FailOn == nil {
		return nil
	}
	return m.FailOn(op, p)
}

func (m *Memory) Read(ctx context.Context, p string) (string, error) {
	c, err := CleanPath(p)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[c]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, c)
	}
	return d.content, nil
}

func (m *Memory) Create(ctx context.Context, p, content string) error {
	c, err := CleanPath(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("create", c); err != nil {
		return err
	}
	if _, ok := m.docs[c]; ok {
		return fmt.Errorf("%w: %s", ErrExists, c)
	}
	m.docs[c] = memDoc{content: content, modTime: m.now()}
	return nil
}

func (m *Memory) Modify(ctx context.Context, p, content string) error {
	c, err := CleanPath(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("modify", c); err != nil {
		return err
	}
	if _, ok := m.docs[c]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, c)
	}
	m.docs[c] = memDoc{content: content, modTime: m.now()}
	return nil
}

func (m *Memory) Delete(ctx context.Context, p string) error {
	c, err := CleanPath(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete", c); err != nil {
		return err
	}
	if _, ok := m.docs[c]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, c)
	}
	delete(m.docs, c)
	return nil
}

func (m *Memory) Stat(ctx context.Context, p string) (Info, error) {
	c, err := CleanPath(p)
	if err != nil {
		return Info{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[c]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, c)
	}
	return Info{Path: c, ModTime: d.modTime}, nil
}

func (m *Memory) List(ctx context.Context, prefix string) ([]Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Info
	for p, d := range m.docs {
		if UnderPrefix(p, prefix) {
			out = append(out, Info{Path: p, ModTime: d.modTime})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
