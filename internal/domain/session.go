package domain

import "time"

// TimeoutAnswer is recorded as the selected text when the timer expires.
const TimeoutAnswer = "(time out)"

// SessionQuestion wraps a question with the option order shown in one session.
type SessionQuestion struct {
	Base                 Question
	ShuffledOptions      []string
	ShuffledImages       []string
	ShuffledCorrectIndex int
}

// AnswerResult records one answer given during a session.
type AnswerResult struct {
	QuestionRef  string // source locator of the question
	Keyword      string
	Prompt       string
	IsCorrect    bool
	SelectedText string
	CorrectText  string
	TimedOut     bool
	Retry        bool
}

// SessionResult is the persisted summary of a finished or abandoned session.
type SessionResult struct {
	ID         string
	Correct    int
	Total      int
	Percentage int
	Elapsed    time.Duration
	Partial    bool
	FinishedAt time.Time
	Details    []AnswerResult
}

// Wrong is the number of questions not answered correctly.
func (r SessionResult) Wrong() int {
	return r.Total - r.Correct
}
