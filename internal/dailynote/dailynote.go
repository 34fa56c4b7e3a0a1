// Package dailynote gives the session engine optional access to a per-day
// journal document.
package dailynote

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/conorfennell/quizbank/internal/docstore"
)

const dateLayout = "2006-01-02"

// Notes is the capability the engine needs from a daily-notes provider.
type Notes interface {
	HasDailyNote(ctx context.Context, day time.Time) (bool, error)
	GetDailyNote(ctx context.Context, day time.Time) (string, error)
	AppendToDailyNote(ctx context.Context, day time.Time, text string) error
}

// Noop is used when no daily notes are configured.
type Noop struct{}

func (Noop) HasDailyNote(context.Context, time.Time) (bool, error) {
	return false, nil
}

func (Noop) GetDailyNote(context.Context, time.Time) (string, error) {
	return "", docstore.ErrNotFound
}

func (Noop) AppendToDailyNote(context.Context, time.Time, string) error {
	return docstore.ErrNotFound
}

// Folder keeps daily notes as <dir>/YYYY-MM-DD.md documents. It never
// creates a note; it only appends to one that already exists.
type Folder struct {
	store docstore.Store
	dir   string
}

// NewFolder returns daily notes stored under dir.
func NewFolder(store docstore.Store, dir string) *Folder {
	return &Folder{store: store, dir: dir}
}

// Path is the document path of day's note.
func (f *Folder) Path(day time.Time) string {
	return path.Join(f.dir, day.Format(dateLayout)+".md")
}

func (f *Folder) HasDailyNote(ctx context.Context, day time.Time) (bool, error) {
	return docstore.Exists(ctx, f.store, f.Path(day))
}

func (f *Folder) GetDailyNote(ctx context.Context, day time.Time) (string, error) {
	return f.store.Read(ctx, f.Path(day))
}

func (f *Folder) AppendToDailyNote(ctx context.Context, day time.Time, text string) error {
	p := f.Path(day)
	content, err := f.store.Read(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to read daily note %s: %w", p, err)
	}
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if err := f.store.Modify(ctx, p, content+text+"\n"); err != nil {
		return fmt.Errorf("failed to append to daily note %s: %w", p, err)
	}
	return nil
}

// AppendIfPresent appends text to day's note when one exists. It reports
// whether anything was written.
func AppendIfPresent(ctx context.Context, n Notes, day time.Time, text string) (bool, error) {
	if n == nil {
		return false, nil
	}
	ok, err := n.HasDailyNote(ctx, day)
	if err != nil || !ok {
		return false, err
	}
	if err := n.AppendToDailyNote(ctx, day, text); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
