package web

import (
	"time"

	"github.com/conorfennell/quizbank/internal/domain"
	"github.com/conorfennell/quizbank/internal/schedule"
	"github.com/conorfennell/quizbank/internal/session"
	"github.com/conorfennell/quizbank/internal/stats"
)

type questionJSON struct {
	Locator      string     `json:"locator,omitempty"`
	ID           string     `json:"id"`
	Category     string     `json:"category"`
	Keyword      string     `json:"keyword,omitempty"`
	Prompt       string     `json:"prompt"`
	Options      []string   `json:"options"`
	CorrectIndex int        `json:"correctIndex"`
	OptionImages []string   `json:"optionImages,omitempty"`
	Image        string     `json:"image,omitempty"`
	Hint         string     `json:"hint,omitempty"`
	HintImage    string     `json:"hintImage,omitempty"`
	Note         string     `json:"note,omitempty"`
	NoteImage    string     `json:"noteImage,omitempty"`
	Difficulty   string     `json:"difficulty,omitempty"`
	Bookmarked   bool       `json:"bookmarked"`
	CorrectCount int        `json:"correctCount"`
	WrongCount   int        `json:"wrongCount"`
	LastAttempt  *time.Time `json:"lastAttempt,omitempty"`
	NextReview   *time.Time `json:"nextReview,omitempty"`
	Priority     float64    `json:"priority"`
}

func toQuestionJSON(q domain.Question, now time.Time) questionJSON {
	next := schedule.NextReviewDate(q, now)
	return questionJSON{
		Locator:      q.SourceLocator,
		ID:           q.ID,
		Category:     q.Category,
		Keyword:      q.Keyword,
		Prompt:       q.Prompt,
		Options:      q.Options,
		CorrectIndex: q.CorrectIndex,
		OptionImages: q.OptionImages,
		Image:        q.Image,
		Hint:         q.Hint,
		HintImage:    q.HintImage,
		Note:         q.Note,
		NoteImage:    q.NoteImage,
		Difficulty:   q.Difficulty.String(),
		Bookmarked:   q.Bookmarked,
		CorrectCount: q.CorrectCount,
		WrongCount:   q.WrongCount,
		LastAttempt:  q.LastAttempt,
		NextReview:   &next,
		Priority:     schedule.PriorityScore(q, now),
	}
}

func (in questionJSON) toDomain() (domain.Question, error) {
	q := domain.Question{
		SourceLocator: in.Locator,
		ID:            in.ID,
		Category:      in.Category,
		Keyword:       in.Keyword,
		Prompt:        in.Prompt,
		Options:       in.Options,
		CorrectIndex:  in.CorrectIndex,
		OptionImages:  in.OptionImages,
		Image:         in.Image,
		Hint:          in.Hint,
		HintImage:     in.HintImage,
		Note:          in.Note,
		NoteImage:     in.NoteImage,
		Bookmarked:    in.Bookmarked,
	}
	if in.Difficulty != "" {
		g, err := domain.ParseDifficulty(in.Difficulty)
		if err != nil {
			return domain.Question{}, err
		}
		q.Difficulty = g
	}
	return q, nil
}

type selectionJSON struct {
	Category       string `json:"category"`
	Difficulty     string `json:"difficulty"`
	BookmarkedOnly bool   `json:"bookmarkedOnly"`
	WrongOnly      bool   `json:"wrongOnly"`
	DueOnly        bool   `json:"dueOnly"`
	WeakestFirst   bool   `json:"weakestFirst"`
	Limit          int    `json:"limit"`
}

func (in selectionJSON) toSelection() (schedule.Selection, error) {
	sel := schedule.Selection{
		Category:       in.Category,
		BookmarkedOnly: in.BookmarkedOnly,
		WrongOnly:      in.WrongOnly,
		DueOnly:        in.DueOnly,
		WeakestFirst:   in.WeakestFirst,
		Limit:          in.Limit,
	}
	if in.Difficulty != "" {
		g, err := domain.ParseDifficulty(in.Difficulty)
		if err != nil {
			return sel, err
		}
		sel.Difficulty = g
	}
	return sel, nil
}

type viewJSON struct {
	ID           string        `json:"id"`
	State        string        `json:"state"`
	Index        int           `json:"index"`
	Total        int           `json:"total"`
	Score        int           `json:"score"`
	Remaining    int           `json:"remaining"`
	TimerEnabled bool          `json:"timerEnabled"`
	Answered     bool          `json:"answered"`
	Question     viewQuestion  `json:"question"`
	Feedback     *feedbackJSON `json:"feedback,omitempty"`
}

// viewQuestion hides the answer until feedback is shown.
type viewQuestion struct {
	Locator      string   `json:"locator"`
	Keyword      string   `json:"keyword,omitempty"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	OptionImages []string `json:"optionImages,omitempty"`
	Image        string   `json:"image,omitempty"`
	Difficulty   string   `json:"difficulty"`
	Bookmarked   bool     `json:"bookmarked"`
}

func toViewJSON(v session.View) viewJSON {
	out := viewJSON{
		ID:           v.ID,
		State:        v.State.String(),
		Index:        v.Index,
		Total:        v.Total,
		Score:        v.Score,
		Remaining:    v.Remaining,
		TimerEnabled: v.TimerEnabled,
		Answered:     v.Answered,
		Question: viewQuestion{
			Locator:      v.Question.Base.SourceLocator,
			Keyword:      v.Question.Base.Keyword,
			Prompt:       v.Question.Base.Prompt,
			Options:      v.Question.ShuffledOptions,
			OptionImages: v.Question.ShuffledImages,
			Image:        v.Question.Base.Image,
			Difficulty:   v.Question.Base.Difficulty.String(),
			Bookmarked:   v.Question.Base.Bookmarked,
		},
	}
	if v.Feedback != nil {
		fb := toFeedbackJSON(*v.Feedback)
		out.Feedback = &fb
	}
	return out
}

type answerJSON struct {
	Locator  string `json:"locator"`
	Prompt   string `json:"prompt"`
	Correct  bool   `json:"correct"`
	Selected string `json:"selected"`
	Answer   string `json:"answer"`
	TimedOut bool   `json:"timedOut,omitempty"`
	Retry    bool   `json:"retry,omitempty"`
}

func toAnswerJSON(a domain.AnswerResult) answerJSON {
	return answerJSON{
		Locator:  a.QuestionRef,
		Prompt:   a.Prompt,
		Correct:  a.IsCorrect,
		Selected: a.SelectedText,
		Answer:   a.CorrectText,
		TimedOut: a.TimedOut,
		Retry:    a.Retry,
	}
}

type feedbackJSON struct {
	Correct     bool       `json:"correct"`
	CorrectText string     `json:"correctText"`
	Hint        string     `json:"hint,omitempty"`
	Result      answerJSON `json:"result"`
	Warnings    []string   `json:"warnings,omitempty"`
}

func toFeedbackJSON(fb session.Feedback) feedbackJSON {
	return feedbackJSON{
		Correct:     fb.Correct,
		CorrectText: fb.CorrectText,
		Hint:        fb.Hint,
		Result:      toAnswerJSON(fb.Result),
		Warnings:    fb.Warnings,
	}
}

type completionJSON struct {
	Correct    int          `json:"correct"`
	Total      int          `json:"total"`
	Percentage int          `json:"percentage"`
	Elapsed    string       `json:"elapsed"`
	Partial    bool         `json:"partial,omitempty"`
	ResultPath string       `json:"resultPath,omitempty"`
	Details    []answerJSON `json:"details"`
	Warnings   []string     `json:"warnings,omitempty"`
}

func toCompletionJSON(c session.Completion) completionJSON {
	out := completionJSON{
		Correct:    c.Result.Correct,
		Total:      c.Result.Total,
		Percentage: c.Result.Percentage,
		Elapsed:    c.Result.Elapsed.Round(time.Second).String(),
		Partial:    c.Result.Partial,
		ResultPath: c.ResultPath,
		Details:    []answerJSON{},
		Warnings:   c.Warnings,
	}
	for _, d := range c.Result.Details {
		out.Details = append(out.Details, toAnswerJSON(d))
	}
	return out
}

type statsJSON struct {
	Accuracy     int                `json:"accuracy"`
	Total        int                `json:"total"`
	Correct      int                `json:"correct"`
	Wrong        int                `json:"wrong"`
	Bookmarked   int                `json:"bookmarked"`
	Questions    int                `json:"questions"`
	Due          int                `json:"due"`
	Streak       int                `json:"streak"`
	TodayCorrect int                `json:"todayCorrect"`
	TodayWrong   int                `json:"todayWrong"`
	StudyTime    string             `json:"studyTime"`
	Achievements []string           `json:"achievements"`
	Week         []domain.DayRecord `json:"week"`
}

func toStatsJSON(s stats.Summary, achievements []stats.Achievement, week []domain.DayRecord, due int) statsJSON {
	out := statsJSON{
		Accuracy:     s.Accuracy,
		Total:        s.Total,
		Correct:      s.Correct,
		Wrong:        s.Wrong,
		Bookmarked:   s.Bookmarked,
		Questions:    s.Questions,
		Due:          due,
		Streak:       s.Streak,
		TodayCorrect: s.TodayCorrect,
		TodayWrong:   s.TodayWrong,
		StudyTime:    s.StudyTime.String(),
		Achievements: []string{},
		Week:         week,
	}
	for _, a := range achievements {
		out.Achievements = append(out.Achievements, a.Name)
	}
	if out.Week == nil {
		out.Week = []domain.DayRecord{}
	}
	return out
}
