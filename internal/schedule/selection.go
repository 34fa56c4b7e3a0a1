package schedule

import (
	"time"

	"github.com/conorfennell/quizbank/internal/domain"
)

// Selection describes which questions go into a session. Zero values select
// everything in the original order.
type Selection struct {
	Category       string
	Difficulty     domain.DifficultyGrade
	BookmarkedOnly bool
	WrongOnly      bool // questions answered wrong at least once
	DueOnly        bool
	WeakestFirst   bool // order by descending priority score
	Limit          int
}

// Select applies s to qs at time now.
func (s Selection) Select(qs []domain.Question, now time.Time) []domain.Question {
	var out []domain.Question
	for _, q := range qs {
		if s.Category != "" && q.Category != s.Category {
			continue
		}
		if s.Difficulty.Valid() && q.Difficulty != s.Difficulty {
			continue
		}
		if s.BookmarkedOnly && !q.Bookmarked {
			continue
		}
		if s.WrongOnly && q.WrongCount == 0 {
			continue
		}
		if s.DueOnly && !IsDue(q, now) {
			continue
		}
		out = append(out, q)
	}
	if s.WeakestFirst {
		out = SortByPriority(out, now)
	}
	if s.Limit > 0 && len(out) > s.Limit {
		out = out[:s.Limit]
	}
	return out
}
