// Package stats maintains per-question attempt counters and the bank-wide
// StudyStatistics document.
package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/conorfennell/quizbank/internal/docstore"
	"github.com/conorfennell/quizbank/internal/domain"
)

const (
	dateLayout = "2006-01-02"

	// HistoryLimit is the number of day buckets kept in the statistics document.
	HistoryLimit = 365
)

// Questions is the slice of the repository the aggregator writes through.
type Questions interface {
	Get(ctx context.Context, locator string) (domain.Question, error)
	Save(ctx context.Context, q *domain.Question, isNew bool) error
}

// Aggregator records attempts. All methods are safe for concurrent use.
type Aggregator struct {
	questions Questions
	store     docstore.Store
	path      string
	now       func() time.Time

	mu     sync.Mutex
	stats  domain.StudyStatistics
	loaded bool
}

// New creates an aggregator persisting its document at path in store. A nil
// now defaults to time.Now.
func New(questions Questions, store docstore.Store, path string, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{questions: questions, store: store, path: path, now: now}
}

// Load reads the statistics document. A missing document yields zero statistics.
func (a *Aggregator) Load(ctx context.Context) (domain.StudyStatistics, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.loadLocked(ctx); err != nil {
		return domain.StudyStatistics{}, err
	}
	return a.snapshot(), nil
}

func (a *Aggregator) loadLocked(ctx context.Context) error {
	if a.loaded {
		return nil
	}
	content, err := a.store.Read(ctx, a.path)
	if errors.Is(err, docstore.ErrNotFound) {
		a.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read statistics %s: %w", a.path, err)
	}
	var st domain.StudyStatistics
	if err := yaml.Unmarshal([]byte(content), &st); err != nil {
		return fmt.Errorf("failed to decode statistics %s: %w", a.path, err)
	}
	a.stats = st
	a.loaded = true
	return nil
}

func (a *Aggregator) persistLocked(ctx context.Context) error {
	out, err := yaml.Marshal(a.stats)
	if err != nil {
		return fmt.Errorf("failed to encode statistics: %w", err)
	}
	if err := docstore.Put(ctx, a.store, a.path, string(out)); err != nil {
		return fmt.Errorf("failed to write statistics %s: %w", a.path, err)
	}
	return nil
}

func (a *Aggregator) snapshot() domain.StudyStatistics {
	st := a.stats
	st.History = append([]domain.DayRecord(nil), a.stats.History...)
	if a.stats.LastStudyDate != nil {
		t := *a.stats.LastStudyDate
		st.LastStudyDate = &t
	}
	return st
}

// RecordAttempt counts one answer to q. The question document is re-read so
// only the counters change, then written back. q receives the new counters
// even when a write fails; write failures are returned joined together.
func (a *Aggregator) RecordAttempt(ctx context.Context, q *domain.Question, isCorrect bool) error {
	now := a.now()

	fresh := q.Clone()
	if q.SourceLocator != "" {
		if got, err := a.questions.Get(ctx, q.SourceLocator); err == nil {
			fresh = got
		} else {
			slog.Warn("Failed to re-read question before recording attempt", "path", q.SourceLocator, "error", err)
		}
	}
	// counters from an earlier failed write are only in memory
	fresh.CorrectCount = max(fresh.CorrectCount, q.CorrectCount)
	fresh.WrongCount = max(fresh.WrongCount, q.WrongCount)
	if isCorrect {
		fresh.CorrectCount++
	} else {
		fresh.WrongCount++
	}
	fresh.LastAttempt = &now

	var errs []error
	if err := a.questions.Save(ctx, &fresh, false); err != nil {
		errs = append(errs, err)
	} else {
		q.SourceLocator = fresh.SourceLocator
		q.ModTime = fresh.ModTime
	}
	q.CorrectCount = fresh.CorrectCount
	q.WrongCount = fresh.WrongCount
	q.LastAttempt = fresh.LastAttempt

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.loadLocked(ctx); err != nil {
		errs = append(errs, err)
	}
	a.stats.TotalAttempts++
	rec := a.todayLocked(now)
	if isCorrect {
		a.stats.TotalCorrect++
		rec.Correct++
	} else {
		a.stats.TotalWrong++
		rec.Wrong++
	}
	a.stats.LastStudyDate = &now
	if err := a.persistLocked(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ToggleBookmark flips q's bookmark, persists it, and returns the new state.
func (a *Aggregator) ToggleBookmark(ctx context.Context, q *domain.Question) (bool, error) {
	q.Bookmarked = !q.Bookmarked

	var errs []error
	if err := a.questions.Save(ctx, q, false); err != nil {
		errs = append(errs, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.loadLocked(ctx); err != nil {
		errs = append(errs, err)
	}
	if q.Bookmarked {
		a.stats.BookmarkedCount++
	} else if a.stats.BookmarkedCount > 0 {
		a.stats.BookmarkedCount--
	}
	if err := a.persistLocked(ctx); err != nil {
		errs = append(errs, err)
	}
	return q.Bookmarked, errors.Join(errs...)
}

// RecordSession adds a finished session's study time to today's bucket.
func (a *Aggregator) RecordSession(ctx context.Context, elapsed time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.loadLocked(ctx); err != nil {
		return err
	}
	rec := a.todayLocked(a.now())
	rec.StudyDuration += elapsed
	rec.Sessions++
	return a.persistLocked(ctx)
}

// todayLocked finds or creates the bucket for now's calendar date.
func (a *Aggregator) todayLocked(now time.Time) *domain.DayRecord {
	date := now.Format(dateLayout)
	for i := range a.stats.History {
		if a.stats.History[i].Date == date {
			return &a.stats.History[i]
		}
	}
	a.stats.History = append(a.stats.History, domain.DayRecord{Date: date})
	if n := len(a.stats.History); n > HistoryLimit {
		a.stats.History = append([]domain.DayRecord(nil), a.stats.History[n-HistoryLimit:]...)
	}
	return &a.stats.History[len(a.stats.History)-1]
}

// Summary is a read-only view over the statistics.
type Summary struct {
	Accuracy     int
	Total        int
	Correct      int
	Wrong        int
	Bookmarked   int
	Questions    int
	Streak       int
	TodayCorrect int
	TodayWrong   int
	StudyTime    time.Duration
}

// Summary derives the summary. questions is the current bank size.
func (a *Aggregator) Summary(ctx context.Context, questions int) (Summary, error) {
	st, err := a.Load(ctx)
	if err != nil {
		return Summary{}, err
	}
	now := a.now()
	s := Summary{
		Accuracy:   Accuracy(st.TotalCorrect, st.TotalAttempts),
		Total:      st.TotalAttempts,
		Correct:    st.TotalCorrect,
		Wrong:      st.TotalWrong,
		Bookmarked: st.BookmarkedCount,
		Questions:  questions,
		Streak:     Streak(st.History, now),
	}
	today := now.Format(dateLayout)
	for _, rec := range st.History {
		s.StudyTime += rec.StudyDuration
		if rec.Date == today {
			s.TodayCorrect = rec.Correct
			s.TodayWrong = rec.Wrong
		}
	}
	return s, nil
}

// Accuracy is correct/attempts as a rounded percentage, 0 without attempts.
func Accuracy(correct, attempts int) int {
	if attempts == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(attempts) * 100))
}

// RecentHistory returns the buckets of the last days calendar days, oldest first.
func (a *Aggregator) RecentHistory(ctx context.Context, days int) ([]domain.DayRecord, error) {
	st, err := a.Load(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := a.now().AddDate(0, 0, -days+1).Format(dateLayout)
	var out []domain.DayRecord
	for _, rec := range st.History {
		if rec.Date >= cutoff {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Streak counts consecutive days with at least one answer, ending today. A
// day without answers today does not break a streak that ran until yesterday.
func Streak(history []domain.DayRecord, now time.Time) int {
	active := make(map[string]bool, len(history))
	for _, rec := range history {
		if rec.Correct+rec.Wrong > 0 {
			active[rec.Date] = true
		}
	}
	streak := 0
	for i := 0; i < HistoryLimit; i++ {
		date := now.AddDate(0, 0, -i).Format(dateLayout)
		if active[date] {
			streak++
		} else if i > 0 {
			break
		}
	}
	return streak
}
