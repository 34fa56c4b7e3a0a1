// Package schedule ranks questions for review. Every function is pure: the
// caller passes the current time.
package schedule

import (
	"math"
	"sort"
	"time"

	"github.com/conorfennell/quizbank/internal/domain"
)

// Intervals are the review gaps in days, indexed by mastery level.
var Intervals = [...]int{1, 3, 7, 14, 30, 60, 90}

// NeverAttemptedDays is the age used for questions without a last attempt.
const NeverAttemptedDays = 999

const day = 24 * time.Hour

// Level is the mastery level of q: correct minus wrong answers, clamped to
// the range of Intervals.
func Level(q domain.Question) int {
	level := q.CorrectCount - q.WrongCount
	if level < 0 {
		return 0
	}
	if level > len(Intervals)-1 {
		return len(Intervals) - 1
	}
	return level
}

// NextReviewDate is when q should next be reviewed. Questions never answered
// correctly are due immediately.
func NextReviewDate(q domain.Question, now time.Time) time.Time {
	if q.CorrectCount == 0 {
		return now
	}
	last := now
	if q.LastAttempt != nil {
		last = *q.LastAttempt
	}
	return last.AddDate(0, 0, Intervals[Level(q)])
}

// IsDue reports whether q's next review date has passed.
func IsDue(q domain.Question, now time.Time) bool {
	return !NextReviewDate(q, now).After(now)
}

// DaysSince returns whole days elapsed since the last attempt.
func DaysSince(q domain.Question, now time.Time) int {
	if q.LastAttempt == nil {
		return NeverAttemptedDays
	}
	d := now.Sub(*q.LastAttempt)
	if d < 0 {
		return 0
	}
	return int(math.Floor(float64(d) / float64(day)))
}

// PriorityScore ranks review urgency: many wrong answers and long absence
// raise it, correct answers lower it.
func PriorityScore(q domain.Question, now time.Time) float64 {
	return float64(q.WrongCount)*10 + float64(DaysSince(q, now))*0.5 - float64(q.CorrectCount)*2
}

// SortByPriority returns a copy of qs ordered by descending priority score.
// Equal scores keep their original relative order.
func SortByPriority(qs []domain.Question, now time.Time) []domain.Question {
	type scored struct {
		q     domain.Question
		score float64
	}
	ranked := make([]scored, len(qs))
	for i, q := range qs {
		ranked[i] = scored{q: q, score: PriorityScore(q, now)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	out := make([]domain.Question, len(ranked))
	for i, r := range ranked {
		out[i] = r.q
	}
	return out
}

// DueQuestions keeps the questions due at now, preserving order.
func DueQuestions(qs []domain.Question, now time.Time) []domain.Question {
	var out []domain.Question
	for _, q := range qs {
		if IsDue(q, now) {
			out = append(out, q)
		}
	}
	return out
}
