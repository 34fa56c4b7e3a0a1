// Package repository translates between question documents in a docstore
// and validated domain.Question values, and owns id allocation.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/conorfennell/quizbank/internal/docstore"
	"github.com/conorfennell/quizbank/internal/domain"
	"github.com/conorfennell/quizbank/internal/knol"
	"github.com/conorfennell/quizbank/internal/parser"
)

const (
	listingSuffix = " - Question List.md"
	dashboardName = "Dashboard.md"
	fallbackName  = "question"
)

// Config locates the bank inside the document store.
type Config struct {
	QuestionRoot    string
	ResultsRoot     string
	Categories      []string
	DefaultCategory string
}

// StoreError reports a failed document store operation.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Repository loads and saves questions. The loaded set is cached and kept
// current by Save and Delete; id allocation works against that cache.
type Repository struct {
	store docstore.Store
	cfg   Config
	now   func() time.Time

	writeMu sync.Mutex // serializes document writes

	mu     sync.RWMutex
	loaded []domain.Question
	ready  bool
}

// New creates a repository over store.
func New(store docstore.Store, cfg Config) *Repository {
	if cfg.DefaultCategory == "" {
		cfg.DefaultCategory = domain.DefaultCategory
	}
	return &Repository{store: store, cfg: cfg, now: time.Now}
}

// LoadAll reads every question document under the question root. Documents
// that fail to read or parse are logged and skipped.
func (r *Repository) LoadAll(ctx context.Context) ([]domain.Question, error) {
	infos, err := r.store.List(ctx, r.cfg.QuestionRoot)
	if err != nil {
		return nil, &StoreError{Op: "list", Path: r.cfg.QuestionRoot, Err: err}
	}

	var questions []domain.Question
	var skipped int
	for _, info := range infos {
		if !IsQuestionDocument(info.Path) {
			continue
		}
		content, err := r.store.Read(ctx, info.Path)
		if err != nil {
			slog.Warn("Failed to read question document", "path", info.Path, "error", err)
			skipped++
			continue
		}
		q, err := parser.ParseDocument(info.Path, content)
		if err != nil {
			slog.Warn("Skipping invalid question document", "path", info.Path, "error", err)
			skipped++
			continue
		}
		q.ModTime = info.ModTime
		questions = append(questions, q)
	}

	r.mu.Lock()
	r.loaded = cloneAll(questions)
	r.ready = true
	r.mu.Unlock()

	slog.Info("Question bank loaded", "root", r.cfg.QuestionRoot, "questions", len(questions), "skipped", skipped)
	return questions, nil
}

// Loaded returns a copy of the cached question set, loading it first if needed.
func (r *Repository) Loaded(ctx context.Context) ([]domain.Question, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(r.loaded), nil
}

func (r *Repository) ensureLoaded(ctx context.Context) error {
	r.mu.RLock()
	ready := r.ready
	r.mu.RUnlock()
	if ready {
		return nil
	}
	_, err := r.LoadAll(ctx)
	return err
}

// Get reads a single question from its document.
func (r *Repository) Get(ctx context.Context, locator string) (domain.Question, error) {
	content, err := r.store.Read(ctx, locator)
	if err != nil {
		return domain.Question{}, &StoreError{Op: "read", Path: locator, Err: err}
	}
	q, err := parser.ParseDocument(locator, content)
	if err != nil {
		return domain.Question{}, err
	}
	if info, err := r.store.Stat(ctx, locator); err == nil {
		q.ModTime = info.ModTime
	}
	return q, nil
}

// NextAvailableID returns the smallest positive id unused in category.
func (r *Repository) NextAvailableID(ctx context.Context, category string) (int, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return NextAvailableID(r.loaded, category), nil
}

// NextAvailableID collects the integer ids of questions in category and
// returns the smallest positive integer not among them, filling gaps first.
func NextAvailableID(questions []domain.Question, category string) int {
	used := make(map[int]bool)
	for _, q := range questions {
		if q.Category != category {
			continue
		}
		if n, ok := q.Number(); ok {
			used[n] = true
		}
	}
	n := 1
	for used[n] {
		n++
	}
	return n
}

// FindDuplicateID returns another question in category using id, if any.
// Duplicates are reported, never rejected.
func (r *Repository) FindDuplicateID(id, category, excludingLocator string) *domain.Question {
	id = strings.TrimSpace(id)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, q := range r.loaded {
		if q.Category == category && strings.TrimSpace(q.ID) == id && q.SourceLocator != excludingLocator {
			c := q.Clone()
			return &c
		}
	}
	return nil
}

// FindDuplicateContent returns every loaded question with the same
// fingerprint as q, other than q itself.
func (r *Repository) FindDuplicateContent(q domain.Question) []domain.Question {
	fp := knol.Fingerprint(q)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Question
	for _, other := range r.loaded {
		if other.SourceLocator == q.SourceLocator && q.SourceLocator != "" {
			continue
		}
		if knol.Fingerprint(other) == fp {
			out = append(out, other.Clone())
		}
	}
	return out
}

// Categories returns the configured categories followed by any others found in the bank.
func (r *Repository) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range r.cfg.Categories {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	r.mu.RLock()
	var extra []string
	for _, q := range r.loaded {
		if !seen[q.Category] {
			seen[q.Category] = true
			extra = append(extra, q.Category)
		}
	}
	r.mu.RUnlock()
	sort.Strings(extra)
	return append(out, extra...)
}

// DocumentPath is where q is stored: <root>/<category>/<id>_<keyword>.md.
func (r *Repository) DocumentPath(q domain.Question) string {
	name := sanitize(q.Keyword)
	if name == "" {
		name = fallbackName
	}
	return path.Join(r.cfg.QuestionRoot, sanitize(q.Category), fmt.Sprintf("%s_%s.md", sanitize(q.ID), name))
}

// Save writes q to its document, assigning an id when it has none. When the
// document path changes the new document is written before the old one is
// removed. The category listing is regenerated afterwards.
func (r *Repository) Save(ctx context.Context, q *domain.Question, isNew bool) error {
	if strings.TrimSpace(q.Category) == "" {
		q.Category = r.cfg.DefaultCategory
	}
	q.Normalize()
	if strings.TrimSpace(q.ID) == "" {
		n, err := r.NextAvailableID(ctx, q.Category)
		if err != nil {
			return err
		}
		q.ID = fmt.Sprint(n)
	}
	if err := domain.Validate(*q); err != nil {
		return err
	}
	if dup := r.FindDuplicateID(q.ID, q.Category, q.SourceLocator); dup != nil {
		slog.Warn("Duplicate question number", "category", q.Category, "id", q.ID, "other", dup.SourceLocator)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	oldLocator := q.SourceLocator
	oldCategory := r.cachedCategory(oldLocator)
	target := r.DocumentPath(*q)
	content := parser.Serialize(*q)
	if isNumberedVariant(oldLocator, target) {
		target = oldLocator
	}

	if target == oldLocator {
		if err := docstore.Put(ctx, r.store, target, content); err != nil {
			return &StoreError{Op: "write", Path: target, Err: err}
		}
	} else {
		var err error
		target, err = r.createUnique(ctx, target, content)
		if err != nil {
			return err
		}
		if oldLocator != "" {
			if err := r.store.Delete(ctx, oldLocator); err != nil && !errors.Is(err, docstore.ErrNotFound) {
				slog.Warn("Failed to remove previous question document", "path", oldLocator, "error", err)
			}
		}
	}

	q.SourceLocator = target
	q.ModTime = r.now()
	if info, err := r.store.Stat(ctx, target); err == nil {
		q.ModTime = info.ModTime
	}
	r.remember(oldLocator, *q)

	if isNew {
		slog.Info("Question created", "path", target, "category", q.Category, "id", q.ID)
	}

	r.refreshListing(ctx, q.Category)
	if oldCategory != "" && oldCategory != q.Category {
		r.refreshListing(ctx, oldCategory)
	}
	return nil
}

// createUnique creates content at target, appending " (n)" to the file name
// when another document already holds that path.
func (r *Repository) createUnique(ctx context.Context, target, content string) (string, error) {
	base := strings.TrimSuffix(target, ".md")
	candidate := target
	for n := 2; ; n++ {
		err := r.store.Create(ctx, candidate, content)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, docstore.ErrExists) || n > 100 {
			return "", &StoreError{Op: "create", Path: candidate, Err: err}
		}
		candidate = fmt.Sprintf("%s (%d).md", base, n)
	}
}

// Delete removes the backing document of q.
func (r *Repository) Delete(ctx context.Context, q domain.Question) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.store.Delete(ctx, q.SourceLocator); err != nil {
		return &StoreError{Op: "delete", Path: q.SourceLocator, Err: err}
	}
	r.forget(q.SourceLocator)
	slog.Info("Question deleted", "path", q.SourceLocator)
	r.refreshListing(ctx, q.Category)
	return nil
}

func (r *Repository) cachedCategory(locator string) string {
	if locator == "" {
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, q := range r.loaded {
		if q.SourceLocator == locator {
			return q.Category
		}
	}
	return ""
}

func (r *Repository) remember(oldLocator string, q domain.Question) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.loaded {
		if (oldLocator != "" && r.loaded[i].SourceLocator == oldLocator) || r.loaded[i].SourceLocator == q.SourceLocator {
			r.loaded[i] = q.Clone()
			return
		}
	}
	r.loaded = append(r.loaded, q.Clone())
}

func (r *Repository) forget(locator string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = slices.DeleteFunc(r.loaded, func(q domain.Question) bool { return q.SourceLocator == locator })
}

func (r *Repository) questionsIn(category string) []domain.Question {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Question
	for _, q := range r.loaded {
		if q.Category == category {
			out = append(out, q.Clone())
		}
	}
	return out
}

// isNumberedVariant reports whether p is target with a " (n)" suffix added by createUnique.
func isNumberedVariant(p, target string) bool {
	base := strings.TrimSuffix(target, ".md") + " ("
	return strings.HasPrefix(p, base) && strings.HasSuffix(p, ").md")
}

// IsQuestionDocument reports whether p names a question document rather than
// a generated listing or dashboard.
func IsQuestionDocument(p string) bool {
	base := path.Base(p)
	if !strings.HasSuffix(strings.ToLower(base), ".md") {
		return false
	}
	return !strings.HasSuffix(base, listingSuffix) && base != dashboardName
}

var unsafeChars = strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "-", "?", "-", "\"", "-", "<", "-", ">", "-", "|", "-")

func sanitize(s string) string {
	s = strings.TrimSpace(unsafeChars.Replace(s))
	if s == "." || s == ".." {
		return "-"
	}
	return s
}

func cloneAll(qs []domain.Question) []domain.Question {
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		out[i] = q.Clone()
	}
	return out
}
