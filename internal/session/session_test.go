package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/quizbank/internal/dailynote"
	"github.com/conorfennell/quizbank/internal/docstore"
	"github.com/conorfennell/quizbank/internal/domain"
	"github.com/conorfennell/quizbank/internal/repository"
	"github.com/conorfennell/quizbank/internal/stats"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	f     func()
	done  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.pending = append(c.pending, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves time forward by d, firing due callbacks in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.pending {
			if !t.done && !t.at.After(target) && (next == nil || t.at.Before(next.at)) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.done = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

type fakeRecorder struct {
	attempts []bool
	sessions []time.Duration
	err      error
}

func (r *fakeRecorder) RecordAttempt(_ context.Context, q *domain.Question, isCorrect bool) error {
	r.attempts = append(r.attempts, isCorrect)
	if isCorrect {
		q.CorrectCount++
	} else {
		q.WrongCount++
	}
	return r.err
}

func (r *fakeRecorder) ToggleBookmark(_ context.Context, q *domain.Question) (bool, error) {
	q.Bookmarked = !q.Bookmarked
	return q.Bookmarked, r.err
}

func (r *fakeRecorder) RecordSession(_ context.Context, elapsed time.Duration) error {
	r.sessions = append(r.sessions, elapsed)
	return r.err
}

type fakeStore struct {
	results []domain.SessionResult
	err     error
}

func (s *fakeStore) Save(_ context.Context, q *domain.Question, _ bool) error {
	if err := domain.Validate(*q); err != nil {
		return err
	}
	return s.err
}

func (s *fakeStore) SaveSessionResult(_ context.Context, res domain.SessionResult) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.results = append(s.results, res)
	return "Results/" + res.ID + ".md", nil
}

func abc(n int) domain.Question {
	return domain.Question{
		ID:            fmt.Sprint(n),
		Category:      domain.DefaultCategory,
		Prompt:        fmt.Sprintf("question %d", n),
		Options:       []string{"A", "B", "C"},
		CorrectIndex:  1,
		Hint:          "think B",
		SourceLocator: fmt.Sprintf("Questions/Basic/%d_question.md", n),
	}
}

func bank(n int) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = abc(i + 1)
	}
	return qs
}

type harness struct {
	s        *Session
	clock    *fakeClock
	recorder *fakeRecorder
	store    *fakeStore
	ticks    []int
	timeouts []Feedback
	advances []*Completion
}

func start(t *testing.T, qs []domain.Question, cfg Config) *harness {
	t.Helper()
	h := &harness{clock: newFakeClock(), recorder: &fakeRecorder{}, store: &fakeStore{}}
	s, err := New(qs, cfg, Deps{
		Stats: h.recorder,
		Store: h.store,
		Clock: h.clock,
		Rand:  rand.New(rand.NewPCG(1, 2)),
		Hooks: Hooks{
			OnTick:    func(r int) { h.ticks = append(h.ticks, r) },
			OnTimeout: func(fb Feedback) { h.timeouts = append(h.timeouts, fb) },
			OnAdvance: func(done *Completion) { h.advances = append(h.advances, done) },
		},
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	h.s = s
	return h
}

func TestArrangeMovesCorrectIndex(t *testing.T) {
	q := domain.Question{Options: []string{"A", "B", "C"}, CorrectIndex: 1}
	sq := Arrange(q, []int{2, 0, 1})

	assert.Equal(t, []string{"C", "A", "B"}, sq.ShuffledOptions)
	assert.Equal(t, 2, sq.ShuffledCorrectIndex)

	unshuffled := Arrange(q, nil)
	assert.Equal(t, q.Options, unshuffled.ShuffledOptions)
	assert.Equal(t, 1, unshuffled.ShuffledCorrectIndex)
}

func TestShuffleKeepsCorrectOption(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	q := domain.Question{
		Options:      []string{"one", "two", "three", "four", "five"},
		OptionImages: []string{"1.png", "2.png", "3.png", "4.png", "5.png"},
	}
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		q.CorrectIndex = i % len(q.Options)
		sq := Arrange(q, permutation(r, len(q.Options)))
		require.Equal(t, q.Options[q.CorrectIndex], sq.ShuffledOptions[sq.ShuffledCorrectIndex])
		for k, opt := range sq.ShuffledOptions {
			require.True(t, strings.HasPrefix(sq.ShuffledImages[k], string(rune('0'+indexOf(q.Options, opt)+1))))
		}
		seen[strings.Join(sq.ShuffledOptions, ",")] = true
	}
	assert.Greater(t, len(seen), 60, "expected many distinct orderings")
}

func indexOf(xs []string, x string) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return -1
}

func TestSubmitAnswerScenario(t *testing.T) {
	h := start(t, bank(1), Config{ShowHintAfterWrong: true})

	fb, err := h.s.SubmitAnswer(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, fb.Correct)
	assert.Equal(t, "B", fb.CorrectText)
	assert.Equal(t, "A", fb.Result.SelectedText)
	assert.Equal(t, "think B", fb.Hint)
	assert.Equal(t, []bool{false}, h.recorder.attempts)

	require.NoError(t, h.s.Retry())
	fb, err = h.s.SubmitAnswer(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, fb.Correct)
	assert.Empty(t, fb.Hint)
	assert.True(t, fb.Result.Retry)
}

func TestSubmitAnswerOutOfRange(t *testing.T) {
	h := start(t, bank(1), Config{})
	_, err := h.s.SubmitAnswer(context.Background(), 3)
	assert.ErrorIs(t, err, ErrOptionOutOfRange)
	_, err = h.s.SubmitAnswer(context.Background(), -1)
	assert.ErrorIs(t, err, ErrOptionOutOfRange)
	assert.Equal(t, Presenting, h.s.Current().State)
}

func TestAllCorrectSessionCompletes(t *testing.T) {
	ctx := context.Background()
	h := start(t, bank(5), Config{ShuffleOptions: true})

	var done *Completion
	for i := 0; i < 5; i++ {
		v := h.s.Current()
		assert.Equal(t, i, v.Index)
		assert.Equal(t, fmt.Sprintf("question %d", i+1), v.Question.Base.Prompt)
		_, err := h.s.SubmitAnswer(ctx, v.Question.ShuffledCorrectIndex)
		require.NoError(t, err)
		h.clock.Advance(2 * time.Second)
		done, err = h.s.Advance(ctx)
		require.NoError(t, err)
	}

	require.NotNil(t, done)
	assert.Equal(t, 5, done.Result.Correct)
	assert.Equal(t, 5, done.Result.Total)
	assert.Equal(t, 100, done.Result.Percentage)
	assert.Equal(t, 10*time.Second, done.Result.Elapsed)
	assert.False(t, done.Result.Partial)
	assert.Len(t, done.Result.Details, 5)
	assert.Empty(t, done.Warnings)
	require.Len(t, h.store.results, 1)
	assert.Equal(t, "Results/"+h.s.ID()+".md", done.ResultPath)
	assert.Equal(t, []time.Duration{10 * time.Second}, h.recorder.sessions)
	assert.Equal(t, Completed, h.s.Current().State)
}

func TestTimerExpiryRecordsWrongAnswer(t *testing.T) {
	h := start(t, bank(2), Config{TimerSeconds: 3})

	h.clock.Advance(2 * time.Second)
	assert.Equal(t, 1, h.s.Current().Remaining)
	assert.Empty(t, h.timeouts)

	h.clock.Advance(time.Second)
	require.Len(t, h.timeouts, 1)
	fb := h.timeouts[0]
	assert.False(t, fb.Correct)
	assert.True(t, fb.Result.TimedOut)
	assert.Equal(t, domain.TimeoutAnswer, fb.Result.SelectedText)
	assert.Equal(t, []int{2, 1, 0}, h.ticks)
	assert.Equal(t, Answered, h.s.Current().State)
	assert.Equal(t, []bool{false}, h.recorder.attempts)

	h.clock.Advance(time.Minute)
	assert.Len(t, h.timeouts, 1)
}

func TestAnswerStopsTimer(t *testing.T) {
	h := start(t, bank(2), Config{TimerSeconds: 3})
	h.clock.Advance(time.Second)

	_, err := h.s.SubmitAnswer(context.Background(), 1)
	require.NoError(t, err)
	h.clock.Advance(time.Minute)

	assert.Empty(t, h.timeouts)
	assert.Len(t, h.s.Results(), 1)
}

func TestPauseKeepsRemainingTime(t *testing.T) {
	h := start(t, bank(1), Config{TimerSeconds: 5})

	h.clock.Advance(2 * time.Second)
	require.NoError(t, h.s.Pause())
	h.clock.Advance(time.Minute)
	v := h.s.Current()
	assert.Equal(t, Paused, v.State)
	assert.Equal(t, 3, v.Remaining)
	assert.Empty(t, h.timeouts)

	_, err := h.s.SubmitAnswer(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, h.s.Resume())
	h.clock.Advance(2 * time.Second)
	assert.Empty(t, h.timeouts)
	h.clock.Advance(time.Second)
	assert.Len(t, h.timeouts, 1)
}

func TestRetryRestartsTimerWithoutReshuffle(t *testing.T) {
	h := start(t, bank(1), Config{TimerSeconds: 4, ShuffleOptions: true})
	before := h.s.Current().Question.ShuffledOptions

	h.clock.Advance(4 * time.Second)
	require.Len(t, h.timeouts, 1)
	require.NoError(t, h.s.Retry())

	v := h.s.Current()
	assert.Equal(t, before, v.Question.ShuffledOptions)
	assert.Equal(t, 4, v.Remaining)
	assert.Equal(t, 0, v.Index)
}

func TestRetryCountsOnlyFirstAnswer(t *testing.T) {
	ctx := context.Background()
	h := start(t, bank(1), Config{})

	_, err := h.s.SubmitAnswer(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, h.s.Retry())
	_, err = h.s.SubmitAnswer(ctx, 1)
	require.NoError(t, err)

	done, err := h.s.Advance(ctx)
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.Equal(t, 0, done.Result.Correct)
	assert.Equal(t, 0, done.Result.Percentage)
	assert.Len(t, done.Result.Details, 2)
	assert.Equal(t, []bool{false, true}, h.recorder.attempts)
}

func TestPrevious(t *testing.T) {
	ctx := context.Background()
	h := start(t, bank(3), Config{})

	assert.ErrorIs(t, h.s.Previous(), ErrNoPrevious)

	_, err := h.s.SubmitAnswer(ctx, 1)
	require.NoError(t, err)
	_, err = h.s.Advance(ctx)
	require.NoError(t, err)

	require.NoError(t, h.s.Previous())
	v := h.s.Current()
	assert.Equal(t, 0, v.Index)
	assert.Equal(t, Presenting, v.State)
	assert.Len(t, h.s.Results(), 1)

	_, err = h.s.SubmitAnswer(ctx, 1)
	require.NoError(t, err)
	assert.ErrorIs(t, h.s.Previous(), ErrNoPrevious)
	results := h.s.Results()
	require.Len(t, results, 2)
	assert.False(t, results[0].Retry)
	assert.True(t, results[1].Retry)
	assert.Equal(t, 1, h.s.Current().Score)
}

func TestRetryAllStartsOverWithOriginalList(t *testing.T) {
	ctx := context.Background()
	h := start(t, bank(4), Config{ShuffleQuestions: true, ShuffleOptions: true})

	for i := 0; i < 4; i++ {
		_, err := h.s.SubmitAnswer(ctx, 0)
		require.NoError(t, err)
		_, err = h.s.Advance(ctx)
		require.NoError(t, err)
	}
	require.Equal(t, Completed, h.s.Current().State)

	require.NoError(t, h.s.RetryAll())
	v := h.s.Current()
	assert.Equal(t, Presenting, v.State)
	assert.Equal(t, 0, v.Index)
	assert.Equal(t, 0, v.Score)
	assert.Equal(t, 4, v.Total)
	assert.Empty(t, h.s.Results())

	var prompts []string
	for i := 0; i < 4; i++ {
		v := h.s.Current()
		prompts = append(prompts, v.Question.Base.Prompt)
		assert.Equal(t, 1, v.Question.Base.WrongCount+v.Question.Base.CorrectCount)
		_, err := h.s.SubmitAnswer(ctx, v.Question.ShuffledCorrectIndex)
		require.NoError(t, err)
		_, err = h.s.Advance(ctx)
		require.NoError(t, err)
	}
	sort.Strings(prompts)
	assert.Equal(t, []string{"question 1", "question 2", "question 3", "question 4"}, prompts)
	assert.Len(t, h.store.results, 2)
	assert.Equal(t, 100, h.store.results[1].Percentage)
}

func TestExit(t *testing.T) {
	ctx := context.Background()
	h := start(t, bank(3), Config{TimerSeconds: 10})

	_, err := h.s.SubmitAnswer(ctx, 1)
	require.NoError(t, err)
	_, err = h.s.Advance(ctx)
	require.NoError(t, err)
	h.clock.Advance(4 * time.Second)

	require.NoError(t, h.s.Exit())
	h.clock.Advance(time.Minute)
	assert.Empty(t, h.timeouts)

	require.NoError(t, h.s.CancelExit())
	v := h.s.Current()
	assert.Equal(t, Presenting, v.State)
	assert.Equal(t, 6, v.Remaining)

	require.NoError(t, h.s.Exit())
	done, err := h.s.ConfirmExit(ctx, true)
	require.NoError(t, err)
	assert.True(t, done.Result.Partial)
	assert.Equal(t, 1, done.Result.Correct)
	assert.Equal(t, 3, done.Result.Total)
	assert.Equal(t, 33, done.Result.Percentage)
	require.Len(t, h.store.results, 1)

	_, err = h.s.SubmitAnswer(ctx, 0)
	assert.ErrorIs(t, err, ErrExited)
	assert.ErrorIs(t, h.s.RetryAll(), ErrExited)
	assert.Equal(t, []bool{true}, h.recorder.attempts)
}

func TestExitWithoutRecording(t *testing.T) {
	h := start(t, bank(2), Config{})
	require.NoError(t, h.s.Exit())
	done, err := h.s.ConfirmExit(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, done.ResultPath)
	assert.Empty(t, h.store.results)
	assert.Empty(t, h.recorder.sessions)
}

func TestPersistenceFailuresBecomeWarnings(t *testing.T) {
	ctx := context.Background()
	h := start(t, bank(1), Config{})
	h.recorder.err = errors.New("disk full")
	h.store.err = errors.New("disk full")

	fb, err := h.s.SubmitAnswer(ctx, 1)
	require.NoError(t, err)
	assert.True(t, fb.Correct)
	require.Len(t, fb.Warnings, 1)
	assert.Contains(t, fb.Warnings[0], "disk full")

	done, err := h.s.Advance(ctx)
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.Equal(t, 100, done.Result.Percentage)
	assert.Len(t, done.Warnings, 2)
}

type blockingRecorder struct {
	fakeRecorder
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRecorder) RecordAttempt(ctx context.Context, q *domain.Question, isCorrect bool) error {
	r.entered <- struct{}{}
	<-r.release
	return r.fakeRecorder.RecordAttempt(ctx, q, isCorrect)
}

func TestExitIsNotBlockedByPendingStatisticsWrite(t *testing.T) {
	ctx := context.Background()
	rec := &blockingRecorder{entered: make(chan struct{}, 1), release: make(chan struct{})}
	s, err := New(bank(2), Config{TimerSeconds: 10}, Deps{Stats: rec, Clock: newFakeClock()})
	require.NoError(t, err)
	require.NoError(t, s.Start(ctx))

	answered := make(chan Feedback, 1)
	go func() {
		fb, err := s.SubmitAnswer(ctx, 1)
		assert.NoError(t, err)
		answered <- fb
	}()
	<-rec.entered

	exited := make(chan error, 1)
	go func() { exited <- s.Exit() }()
	select {
	case err := <-exited:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		close(rec.release)
		t.Fatal("Exit waited for the statistics write")
	}
	assert.Equal(t, Exiting, s.Current().State)

	close(rec.release)
	fb := <-answered
	assert.True(t, fb.Correct)
	assert.Equal(t, 1, s.Current().Question.Base.CorrectCount)

	done, err := s.ConfirmExit(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, done.Result.Correct)
	assert.Equal(t, 50, done.Result.Percentage)
}

func TestAttemptCountersReachRetryAll(t *testing.T) {
	ctx := context.Background()
	h := start(t, bank(1), Config{})
	_, err := h.s.SubmitAnswer(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, h.s.RetryAll())
	assert.Equal(t, 1, h.s.Current().Question.Base.WrongCount)
}

func TestAutoAdvanceAfterFeedbackDelay(t *testing.T) {
	ctx := context.Background()
	h := start(t, bank(2), Config{AutoAdvanceSeconds: 2})

	_, err := h.s.SubmitAnswer(ctx, 1)
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	assert.Equal(t, Answered, h.s.Current().State)
	h.clock.Advance(time.Second)
	v := h.s.Current()
	assert.Equal(t, Presenting, v.State)
	assert.Equal(t, 1, v.Index)
	require.Len(t, h.advances, 1)
	assert.Nil(t, h.advances[0])

	_, err = h.s.SubmitAnswer(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, h.s.Retry())
	h.clock.Advance(5 * time.Second)
	assert.Equal(t, Presenting, h.s.Current().State)
	assert.Len(t, h.advances, 1)

	_, err = h.s.SubmitAnswer(ctx, 1)
	require.NoError(t, err)
	h.clock.Advance(2 * time.Second)
	assert.Equal(t, Completed, h.s.Current().State)
	require.Len(t, h.advances, 2)
	require.NotNil(t, h.advances[1])
	assert.Equal(t, 50, h.advances[1].Result.Percentage)
	assert.Len(t, h.store.results, 1)
}

func TestAutoAdvanceWaitsWhileExiting(t *testing.T) {
	ctx := context.Background()
	h := start(t, bank(2), Config{AutoAdvanceSeconds: 2})
	_, err := h.s.SubmitAnswer(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, h.s.Exit())
	h.clock.Advance(5 * time.Second)
	assert.Equal(t, Exiting, h.s.Current().State)

	require.NoError(t, h.s.CancelExit())
	h.clock.Advance(2 * time.Second)
	assert.Equal(t, 1, h.s.Current().Index)
}

func TestCloseStopsTimerWithoutPersisting(t *testing.T) {
	h := start(t, bank(2), Config{TimerSeconds: 5})
	h.s.Close()
	h.clock.Advance(10 * time.Second)
	assert.Empty(t, h.recorder.attempts)
	assert.Empty(t, h.store.results)
	_, err := h.s.SubmitAnswer(context.Background(), 0)
	assert.ErrorIs(t, err, ErrExited)
}

func TestToggleBookmarkAndEdit(t *testing.T) {
	ctx := context.Background()
	h := start(t, bank(2), Config{TimerSeconds: 10, ShuffleOptions: true})
	h.clock.Advance(3 * time.Second)
	before := h.s.Current()

	on, warnings, err := h.s.ToggleBookmark(ctx)
	require.NoError(t, err)
	assert.True(t, on)
	assert.Empty(t, warnings)
	assert.True(t, h.s.Current().Question.Base.Bookmarked)

	warnings, err = h.s.EditCurrent(ctx, func(q *domain.Question) {
		q.Prompt = "edited"
		q.Options[q.CorrectIndex] = "Bee"
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	v := h.s.Current()
	assert.Equal(t, "edited", v.Question.Base.Prompt)
	assert.Equal(t, "Bee", v.Question.ShuffledOptions[v.Question.ShuffledCorrectIndex])
	assert.Equal(t, before.Question.ShuffledCorrectIndex, v.Question.ShuffledCorrectIndex)
	assert.Equal(t, 7, v.Remaining)
	assert.Equal(t, Presenting, v.State)

	_, err = h.s.EditCurrent(ctx, func(q *domain.Question) { q.Prompt = "" })
	assert.ErrorIs(t, err, domain.ErrInvalidQuestion)
	assert.Equal(t, "edited", h.s.Current().Question.Base.Prompt)
}

func TestNewRejectsEmptySet(t *testing.T) {
	_, err := New(nil, Config{}, Deps{})
	assert.ErrorIs(t, err, ErrEmptySession)
}

func TestCommandsBeforeStart(t *testing.T) {
	s, err := New(bank(1), Config{}, Deps{Clock: newFakeClock()})
	require.NoError(t, err)
	_, err = s.SubmitAnswer(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, Ready, s.Current().State)
}

func TestSessionWithRepositoryAndDailyNote(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	repo := repository.New(store, repository.Config{QuestionRoot: "Quiz/Questions", ResultsRoot: "Quiz/Results"})
	clock := newFakeClock()
	agg := stats.New(repo, store, "Quiz/stats.yaml", clock.Now)
	notes := dailynote.NewFolder(store, "Daily")
	require.NoError(t, store.Create(ctx, notes.Path(clock.Now()), "# Today\n"))

	for i := 0; i < 3; i++ {
		q := domain.Question{Prompt: fmt.Sprintf("q%d", i), Options: []string{"x", "y"}, CorrectIndex: 1}
		require.NoError(t, repo.Save(ctx, &q, true))
	}
	qs, err := repo.LoadAll(ctx)
	require.NoError(t, err)

	s, err := New(qs, Config{ShuffleOptions: true}, Deps{
		Stats: agg,
		Store: repo,
		Notes: notes,
		Clock: clock,
		Rand:  rand.New(rand.NewPCG(3, 4)),
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(ctx))

	var done *Completion
	for i := 0; i < 3; i++ {
		v := s.Current()
		choice := v.Question.ShuffledCorrectIndex
		if i == 2 {
			choice = 1 - choice
		}
		_, err := s.SubmitAnswer(ctx, choice)
		require.NoError(t, err)
		done, err = s.Advance(ctx)
		require.NoError(t, err)
	}
	require.NotNil(t, done)
	assert.Empty(t, done.Warnings)
	assert.Equal(t, 67, done.Result.Percentage)

	summary, err := agg.Summary(ctx, len(qs))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Correct)

	reloaded, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	attempts := 0
	for _, q := range reloaded {
		attempts += q.CorrectCount + q.WrongCount
	}
	assert.Equal(t, 3, attempts)

	resultDoc, err := store.Read(ctx, done.ResultPath)
	require.NoError(t, err)
	assert.Contains(t, resultDoc, "- Percentage: 67%")

	note, err := notes.GetDailyNote(ctx, clock.Now())
	require.NoError(t, err)
	assert.Contains(t, note, "- Quiz 10:00: 2/3 (67%)")
}
