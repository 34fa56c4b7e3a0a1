package repository

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/conorfennell/quizbank/internal/domain"
)

// SaveSessionResult writes the human-readable result document of a session
// and returns its path.
func (r *Repository) SaveSessionResult(ctx context.Context, res domain.SessionResult) (string, error) {
	finished := res.FinishedAt
	if finished.IsZero() {
		finished = r.now()
	}
	name := "Quiz Result " + finished.Format("20060102-150405")
	if res.ID != "" {
		id := res.ID
		if len(id) > 8 {
			id = id[:8]
		}
		name += "-" + id
	}
	p := path.Join(r.cfg.ResultsRoot, name+".md")

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	target, err := r.createUnique(ctx, p, RenderSessionResult(res, finished))
	if err != nil {
		return "", err
	}
	return target, nil
}

// RenderSessionResult formats a session result document.
func RenderSessionResult(res domain.SessionResult, finished time.Time) string {
	var b strings.Builder
	b.WriteString("# Quiz Result\n\n")
	b.WriteString("## Score\n")
	fmt.Fprintf(&b, "- Correct: %d\n", res.Correct)
	fmt.Fprintf(&b, "- Wrong: %d\n", res.Wrong())
	fmt.Fprintf(&b, "- Total: %d\n", res.Total)
	fmt.Fprintf(&b, "- Percentage: %d%%\n", res.Percentage)
	fmt.Fprintf(&b, "- Elapsed: %s\n", res.Elapsed.Round(time.Second))
	if res.Partial {
		b.WriteString("- Partial: yes\n")
	}

	b.WriteString("\n## Details\n")
	if len(res.Details) == 0 {
		b.WriteString("None\n")
	}
	for i, d := range res.Details {
		mark := "❌"
		if d.IsCorrect {
			mark = "✅"
		}
		label := d.Keyword
		if label == "" {
			label = d.Prompt
		}
		retry := ""
		if d.Retry {
			retry = " (retry)"
		}
		fmt.Fprintf(&b, "%d. %s - %s %s | selected: %s | answer: %s%s\n",
			i+1, label, mark, d.Prompt, d.SelectedText, d.CorrectText, retry)
	}

	b.WriteString("\n## Needs Review\n")
	seen := make(map[string]bool)
	var review []string
	for _, d := range res.Details {
		if d.IsCorrect || seen[d.QuestionRef] {
			continue
		}
		seen[d.QuestionRef] = true
		label := d.Keyword
		if label == "" {
			label = d.Prompt
		}
		review = append(review, "- "+label)
	}
	if len(review) == 0 {
		b.WriteString("None\n")
	} else {
		b.WriteString(strings.Join(review, "\n") + "\n")
	}

	fmt.Fprintf(&b, "\n---\nDate: %s\n", finished.Format("2006-01-02 15:04:05"))
	return b.String()
}
