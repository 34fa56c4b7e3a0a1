// Package session runs a single quiz over a chosen set of questions. A
// Session is a state machine driven by explicit commands; timer expiry is the
// only event it raises on its own, delivered through Hooks.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/quizbank/internal/dailynote"
	"github.com/conorfennell/quizbank/internal/domain"
)

var (
	ErrEmptySession     = errors.New("session has no questions")
	ErrInvalidState     = errors.New("command not allowed in current state")
	ErrOptionOutOfRange = errors.New("option index out of range")
	ErrNoPrevious       = errors.New("no previous question")
	ErrExited           = errors.New("session was exited")
)

// State is the phase of the current question.
type State int

const (
	Ready State = iota
	Presenting
	Paused
	Answered
	Exiting
	Completed
)

var stateNames = [...]string{"ready", "presenting", "paused", "answered", "exiting", "completed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Config holds the per-session quiz settings.
type Config struct {
	ShuffleQuestions   bool
	ShuffleOptions     bool
	TimerSeconds       int // 0 disables the timer
	ShowHintAfterWrong bool
	AutoAdvanceSeconds int // seconds feedback stays up before advancing; 0 waits for Advance
}

// Recorder persists attempt statistics.
type Recorder interface {
	RecordAttempt(ctx context.Context, q *domain.Question, isCorrect bool) error
	ToggleBookmark(ctx context.Context, q *domain.Question) (bool, error)
	RecordSession(ctx context.Context, elapsed time.Duration) error
}

// Store persists edited questions and session results.
type Store interface {
	Save(ctx context.Context, q *domain.Question, isNew bool) error
	SaveSessionResult(ctx context.Context, res domain.SessionResult) (string, error)
}

// Hooks receive timer-driven events. They run without the session lock
// held and may call back into the session.
type Hooks struct {
	OnTick    func(remaining int)
	OnTimeout func(fb Feedback)
	OnAdvance func(done *Completion) // done is set when the advance completed the session
}

// Deps are the collaborators of a session. Every field is optional.
type Deps struct {
	Stats  Recorder
	Store  Store
	Notes  dailynote.Notes
	Clock  Clock
	Rand   *rand.Rand // nil with shuffling enabled uses a time-seeded source
	Hooks  Hooks
	Logger *slog.Logger
}

// Feedback describes the outcome of one answer.
type Feedback struct {
	Result      domain.AnswerResult
	Correct     bool
	CorrectText string
	Hint        string
	Warnings    []string
}

// Completion is returned when a session ends.
type Completion struct {
	Result     domain.SessionResult
	ResultPath string
	Warnings   []string
}

// View is a snapshot of the session for presentation.
type View struct {
	ID           string
	State        State
	Index        int
	Total        int
	Question     domain.SessionQuestion
	Remaining    int
	TimerEnabled bool
	Score        int
	Answered     bool
	Feedback     *Feedback
}

// Session is one run through a question set. Its methods are safe for
// concurrent use.
type Session struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	mu         sync.Mutex
	baseCtx    context.Context
	id         string
	original   []domain.Question
	questions  []domain.SessionQuestion
	perms      [][]int
	answered   []bool
	index      int
	score      int
	results    []domain.AnswerResult
	feedback   *Feedback
	state      State
	beforeExit State
	exited     bool
	startedAt  time.Time
	remaining  int
	timer      Timer
	generation uint64
	epoch      uint64 // bumped whenever the question list is rebuilt
}

// New builds a session over questions. The list is copied; it becomes the
// set that RetryAll starts over from.
func New(questions []domain.Question, cfg Config, deps Deps) (*Session, error) {
	if len(questions) == 0 {
		return nil, ErrEmptySession
	}
	if cfg.TimerSeconds < 0 {
		cfg.TimerSeconds = 0
	}
	if cfg.AutoAdvanceSeconds < 0 {
		cfg.AutoAdvanceSeconds = 0
	}
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Rand == nil && (cfg.ShuffleQuestions || cfg.ShuffleOptions) {
		seed := uint64(time.Now().UnixNano())
		deps.Rand = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	if deps.Notes == nil {
		deps.Notes = dailynote.Noop{}
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Session{
		cfg:      cfg,
		deps:     deps,
		log:      log,
		baseCtx:  context.Background(),
		id:       uuid.NewString(),
		original: make([]domain.Question, len(questions)),
	}
	for i, q := range questions {
		s.original[i] = q.Clone()
	}
	s.build()
	return s, nil
}

// build derives the session questions from the original list with fresh
// shuffles.
func (s *Session) build() {
	order := identity(len(s.original))
	if s.cfg.ShuffleQuestions {
		order = permutation(s.deps.Rand, len(s.original))
	}
	s.questions = make([]domain.SessionQuestion, len(order))
	s.perms = make([][]int, len(order))
	s.answered = make([]bool, len(order))
	for k, i := range order {
		q := s.original[i].Clone()
		perm := identity(len(q.Options))
		if s.cfg.ShuffleOptions {
			perm = permutation(s.deps.Rand, len(q.Options))
		}
		s.perms[k] = perm
		s.questions[k] = Arrange(q, perm)
	}
	s.epoch++
	s.index = 0
	s.score = 0
	s.results = nil
	s.feedback = nil
}

// ID identifies the session and its result document.
func (s *Session) ID() string { return s.id }

// Start presents the first question. ctx is kept for writes triggered by
// timer expiry.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready {
		return ErrInvalidState
	}
	s.baseCtx = context.WithoutCancel(ctx)
	s.startedAt = s.deps.Clock.Now()
	s.presentLocked()
	s.log.Info("Quiz session started", "session", s.id, "questions", len(s.questions))
	return nil
}

// Current returns a snapshot of the session.
func (s *Session) Current() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:           s.id,
		State:        s.state,
		Index:        s.index,
		Total:        len(s.questions),
		Remaining:    s.remaining,
		TimerEnabled: s.cfg.TimerSeconds > 0,
		Score:        s.score,
	}
	if s.index < len(s.questions) {
		sq := s.questions[s.index]
		sq.Base = sq.Base.Clone()
		sq.ShuffledOptions = append([]string(nil), sq.ShuffledOptions...)
		sq.ShuffledImages = append([]string(nil), sq.ShuffledImages...)
		v.Question = sq
		v.Answered = s.answered[s.index]
	}
	if s.feedback != nil && s.state == Answered {
		fb := *s.feedback
		v.Feedback = &fb
	}
	return v
}

// Results returns the answers recorded so far.
func (s *Session) Results() []domain.AnswerResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AnswerResult(nil), s.results...)
}

func (s *Session) checkLocked(allowed ...State) error {
	if s.exited {
		return ErrExited
	}
	for _, st := range allowed {
		if s.state == st {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidState, s.state)
}

func (s *Session) presentLocked() {
	s.state = Presenting
	s.feedback = nil
	s.remaining = s.cfg.TimerSeconds
	s.startTimerLocked()
}

func (s *Session) startTimerLocked() {
	s.stopTimerLocked()
	if s.cfg.TimerSeconds <= 0 {
		return
	}
	gen := s.generation
	s.timer = s.deps.Clock.AfterFunc(time.Second, func() { s.tick(gen) })
}

// stopTimerLocked cancels the pending tick. The generation bump makes a
// tick that already fired a no-op.
func (s *Session) stopTimerLocked() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) tick(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.state != Presenting {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.remaining--
	if s.remaining > 0 {
		remaining := s.remaining
		gen := s.generation
		s.timer = s.deps.Clock.AfterFunc(time.Second, func() { s.tick(gen) })
		s.mu.Unlock()
		if s.deps.Hooks.OnTick != nil {
			s.deps.Hooks.OnTick(remaining)
		}
		return
	}
	a := s.answerLocked(-1)
	ctx := s.baseCtx
	s.mu.Unlock()
	fb := s.record(ctx, a)
	if s.deps.Hooks.OnTick != nil {
		s.deps.Hooks.OnTick(0)
	}
	if s.deps.Hooks.OnTimeout != nil {
		s.deps.Hooks.OnTimeout(fb)
	}
}

// SubmitAnswer selects option i of the current question, in shown order.
// Statistics are written after the session lock is released, so Exit and
// Pause never wait on them.
func (s *Session) SubmitAnswer(ctx context.Context, i int) (Feedback, error) {
	s.mu.Lock()
	if err := s.checkLocked(Presenting); err != nil {
		s.mu.Unlock()
		return Feedback{}, err
	}
	sq := s.questions[s.index]
	if i < 0 || i >= len(sq.ShuffledOptions) {
		s.mu.Unlock()
		return Feedback{}, fmt.Errorf("%w: %d", ErrOptionOutOfRange, i)
	}
	a := s.answerLocked(i)
	s.mu.Unlock()
	return s.record(ctx, a), nil
}

// attempt is an answer whose statistics are still to be written.
type attempt struct {
	q        domain.Question
	correct  bool
	index    int
	epoch    uint64
	feedback *Feedback
}

// answerLocked records selection i, where -1 means the timer expired.
func (s *Session) answerLocked(i int) attempt {
	s.stopTimerLocked()
	sq := &s.questions[s.index]
	correct := i >= 0 && i == sq.ShuffledCorrectIndex
	selected := domain.TimeoutAnswer
	if i >= 0 {
		selected = sq.ShuffledOptions[i]
	}
	retry := s.answered[s.index]

	res := domain.AnswerResult{
		QuestionRef:  sq.Base.SourceLocator,
		Keyword:      sq.Base.Keyword,
		Prompt:       sq.Base.Prompt,
		IsCorrect:    correct,
		SelectedText: selected,
		CorrectText:  sq.Base.CorrectText(),
		TimedOut:     i < 0,
		Retry:        retry,
	}
	s.results = append(s.results, res)
	if !retry {
		s.answered[s.index] = true
		if correct {
			s.score++
		}
	}

	fb := &Feedback{Result: res, Correct: correct, CorrectText: res.CorrectText}
	if !correct && s.cfg.ShowHintAfterWrong {
		fb.Hint = sq.Base.Hint
	}
	s.state = Answered
	s.feedback = fb
	s.startAutoAdvanceLocked()
	return attempt{q: sq.Base.Clone(), correct: correct, index: s.index, epoch: s.epoch, feedback: fb}
}

// record writes the statistics of a and folds the updated counters back
// into the session. It must be called without the lock held.
func (s *Session) record(ctx context.Context, a attempt) Feedback {
	var err error
	locator := a.q.SourceLocator
	if s.deps.Stats != nil {
		err = s.deps.Stats.RecordAttempt(ctx, &a.q, a.correct)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.Warn("Failed to record attempt", "session", s.id, "path", locator, "error", err)
		a.feedback.Warnings = append(a.feedback.Warnings, fmt.Sprintf("statistics not saved: %v", err))
	}
	if s.deps.Stats != nil {
		s.eachCopyLocked(locator, a.index, a.epoch, func(q *domain.Question) {
			mergeCounters(q, a.q)
		})
	}
	fb := *a.feedback
	fb.Warnings = append([]string(nil), a.feedback.Warnings...)
	return fb
}

// eachCopyLocked calls f on every live copy of the question that was at
// index during epoch: session questions and the list RetryAll starts from.
// Questions without a backing document are matched by position only.
func (s *Session) eachCopyLocked(locator string, index int, epoch uint64, f func(q *domain.Question)) {
	for k := range s.questions {
		same := s.questions[k].Base.SourceLocator == locator
		if locator == "" {
			same = epoch == s.epoch && k == index
		}
		if same {
			f(&s.questions[k].Base)
		}
	}
	if locator == "" {
		return
	}
	for i := range s.original {
		if s.original[i].SourceLocator == locator {
			f(&s.original[i])
		}
	}
}

// mergeCounters copies the recorded statistics of src into dst without ever
// moving a counter backwards.
func mergeCounters(dst *domain.Question, src domain.Question) {
	dst.CorrectCount = max(dst.CorrectCount, src.CorrectCount)
	dst.WrongCount = max(dst.WrongCount, src.WrongCount)
	if src.LastAttempt != nil && (dst.LastAttempt == nil || src.LastAttempt.After(*dst.LastAttempt)) {
		t := *src.LastAttempt
		dst.LastAttempt = &t
	}
	if src.SourceLocator != "" {
		dst.SourceLocator = src.SourceLocator
	}
}

// Pause suspends the countdown, keeping the remaining time.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(Presenting); err != nil {
		return err
	}
	s.stopTimerLocked()
	s.state = Paused
	return nil
}

// Resume continues the countdown from where Pause left it.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(Paused); err != nil {
		return err
	}
	s.state = Presenting
	if s.remaining > 0 {
		s.startTimerLocked()
	}
	return nil
}

// Retry presents the answered question again without reshuffling it.
func (s *Session) Retry() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(Answered); err != nil {
		return err
	}
	s.presentLocked()
	return nil
}

// Advance moves to the next question. Past the last question the session
// completes and the completion is returned.
func (s *Session) Advance(ctx context.Context) (*Completion, error) {
	s.mu.Lock()
	if err := s.checkLocked(Answered); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	res := s.advanceLocked()
	s.mu.Unlock()
	if res == nil {
		return nil, nil
	}
	c := s.persist(ctx, *res)
	return &c, nil
}

// advanceLocked presents the next question, or finishes the session and
// returns its result when there is none.
func (s *Session) advanceLocked() *domain.SessionResult {
	s.index++
	if s.index < len(s.questions) {
		s.presentLocked()
		return nil
	}
	s.index = len(s.questions) - 1
	res := s.finishLocked(false)
	return &res
}

func (s *Session) startAutoAdvanceLocked() {
	if s.cfg.AutoAdvanceSeconds <= 0 {
		return
	}
	s.stopTimerLocked()
	gen := s.generation
	s.timer = s.deps.Clock.AfterFunc(time.Duration(s.cfg.AutoAdvanceSeconds)*time.Second, func() { s.autoAdvance(gen) })
}

func (s *Session) autoAdvance(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.state != Answered || s.exited {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	res := s.advanceLocked()
	ctx := s.baseCtx
	s.mu.Unlock()

	var done *Completion
	if res != nil {
		c := s.persist(ctx, *res)
		done = &c
	}
	if s.deps.Hooks.OnAdvance != nil {
		s.deps.Hooks.OnAdvance(done)
	}
}

// Previous goes back one question. It is only allowed before the current
// question has been answered.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exited {
		return ErrExited
	}
	if (s.state != Presenting && s.state != Paused) || s.index == 0 || s.answered[s.index] {
		return ErrNoPrevious
	}
	s.stopTimerLocked()
	s.index--
	s.presentLocked()
	return nil
}

// Exit asks to leave the session. The timer stops until CancelExit.
func (s *Session) Exit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exited {
		return ErrExited
	}
	switch s.state {
	case Exiting:
		return nil
	case Completed:
		return fmt.Errorf("%w: %s", ErrInvalidState, s.state)
	}
	s.stopTimerLocked()
	s.beforeExit = s.state
	s.state = Exiting
	return nil
}

// CancelExit returns to where Exit was called.
func (s *Session) CancelExit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(Exiting); err != nil {
		return err
	}
	s.state = s.beforeExit
	switch {
	case s.state == Presenting && s.remaining > 0:
		s.startTimerLocked()
	case s.state == Answered:
		s.startAutoAdvanceLocked()
	}
	return nil
}

// ConfirmExit ends the session. With recordPartial the progress so far is
// persisted as a partial result. Statistics already written are kept.
func (s *Session) ConfirmExit(ctx context.Context, recordPartial bool) (*Completion, error) {
	s.mu.Lock()
	if err := s.checkLocked(Exiting); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	res := s.finishLocked(true)
	s.exited = true
	s.mu.Unlock()
	s.log.Info("Quiz session exited", "session", s.id, "answered", len(res.Details), "recorded", recordPartial)

	c := Completion{Result: res}
	if recordPartial {
		c = s.persist(ctx, res)
	}
	return &c, nil
}

// finishLocked stops the session and computes its result.
func (s *Session) finishLocked(partial bool) domain.SessionResult {
	s.stopTimerLocked()
	s.state = Completed
	now := s.deps.Clock.Now()
	total := len(s.questions)
	return domain.SessionResult{
		ID:         s.id,
		Correct:    s.score,
		Total:      total,
		Percentage: int(math.Round(float64(s.score) / float64(total) * 100)),
		Elapsed:    now.Sub(s.startedAt),
		Partial:    partial,
		FinishedAt: now,
		Details:    append([]domain.AnswerResult(nil), s.results...),
	}
}

// persist writes the result document, the study time and the daily note
// line. It runs without the lock held; failures become warnings.
func (s *Session) persist(ctx context.Context, res domain.SessionResult) Completion {
	c := Completion{Result: res}
	warn := func(msg string, err error) {
		s.log.Warn(msg, "session", s.id, "error", err)
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s: %v", msg, err))
	}
	if s.deps.Store != nil {
		p, err := s.deps.Store.SaveSessionResult(ctx, res)
		if err != nil {
			warn("Failed to save session result", err)
		}
		c.ResultPath = p
	}
	if s.deps.Stats != nil {
		if err := s.deps.Stats.RecordSession(ctx, res.Elapsed); err != nil {
			warn("Failed to record study time", err)
		}
	}
	line := fmt.Sprintf("- Quiz %s: %d/%d (%d%%)", res.FinishedAt.Format("15:04"), res.Correct, res.Total, res.Percentage)
	if c.ResultPath != "" {
		line += " [[" + c.ResultPath + "]]"
	}
	if _, err := dailynote.AppendIfPresent(ctx, s.deps.Notes, res.FinishedAt, line); err != nil {
		warn("Failed to update daily note", err)
	}
	s.log.Info("Quiz session completed", "session", s.id, "correct", res.Correct, "total", res.Total, "partial", res.Partial)
	return c
}

// Close abandons the session without persisting anything. The timer stops
// and later commands fail with ErrExited.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.exited = true
}

// RetryAll starts over with the original question list, shuffled afresh.
func (s *Session) RetryAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exited {
		return ErrExited
	}
	if s.state == Ready {
		return fmt.Errorf("%w: %s", ErrInvalidState, s.state)
	}
	s.stopTimerLocked()
	s.build()
	s.startedAt = s.deps.Clock.Now()
	s.presentLocked()
	return nil
}

// ToggleBookmark flips the bookmark of the current question. Persistence
// failures are returned as warnings; the flag changes regardless.
func (s *Session) ToggleBookmark(ctx context.Context) (bool, []string, error) {
	s.mu.Lock()
	if err := s.checkLocked(Presenting, Paused, Answered, Exiting); err != nil {
		s.mu.Unlock()
		return false, nil, err
	}
	q := s.questions[s.index].Base.Clone()
	index, epoch := s.index, s.epoch
	s.mu.Unlock()

	locator := q.SourceLocator
	var warnings []string
	if s.deps.Stats != nil {
		if _, err := s.deps.Stats.ToggleBookmark(ctx, &q); err != nil {
			s.log.Warn("Failed to save bookmark", "session", s.id, "path", locator, "error", err)
			warnings = append(warnings, fmt.Sprintf("bookmark not saved: %v", err))
		}
	} else {
		q.Bookmarked = !q.Bookmarked
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.eachCopyLocked(locator, index, epoch, func(c *domain.Question) {
		c.Bookmarked = q.Bookmarked
	})
	return q.Bookmarked, warnings, nil
}

// EditCurrent applies edit to a copy of the current question and saves it.
// The timer and progress are untouched. An edit that leaves the question
// invalid is rejected; a failed write is returned as a warning.
func (s *Session) EditCurrent(ctx context.Context, edit func(q *domain.Question)) ([]string, error) {
	s.mu.Lock()
	if err := s.checkLocked(Presenting, Paused, Answered, Exiting); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	q := s.questions[s.index].Base.Clone()
	index, epoch := s.index, s.epoch
	s.mu.Unlock()

	locator := q.SourceLocator
	edit(&q)
	var warnings []string
	if s.deps.Store != nil {
		if err := s.deps.Store.Save(ctx, &q, false); err != nil {
			if errors.Is(err, domain.ErrInvalidQuestion) {
				return nil, err
			}
			s.log.Warn("Failed to save edited question", "session", s.id, "path", q.SourceLocator, "error", err)
			warnings = append(warnings, fmt.Sprintf("edit not saved: %v", err))
		}
	} else {
		q.Normalize()
		if err := domain.Validate(q); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.questions {
		same := s.questions[k].Base.SourceLocator == locator
		if locator == "" {
			same = epoch == s.epoch && k == index
		}
		if !same {
			continue
		}
		if len(s.perms[k]) != len(q.Options) {
			s.perms[k] = identity(len(q.Options))
		}
		s.questions[k] = Arrange(q.Clone(), s.perms[k])
	}
	if locator != "" {
		for i := range s.original {
			if s.original[i].SourceLocator == locator {
				s.original[i] = q.Clone()
			}
		}
	}
	return warnings, nil
}
