package repository

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/conorfennell/quizbank/internal/docstore"
	"github.com/conorfennell/quizbank/internal/domain"
	"github.com/conorfennell/quizbank/internal/parser"
)

// ListingPath is the derived listing document of a category.
func (r *Repository) ListingPath(category string) string {
	c := sanitize(category)
	return path.Join(r.cfg.QuestionRoot, c, c+listingSuffix)
}

// RegenerateListing rewrites the listing document of category from the
// loaded questions. The listing is never read back.
func (r *Repository) RegenerateListing(ctx context.Context, category string) error {
	if err := r.ensureLoaded(ctx); err != nil {
		return err
	}
	p := r.ListingPath(category)
	if err := docstore.Put(ctx, r.store, p, renderListing(category, r.questionsIn(category))); err != nil {
		return &StoreError{Op: "write", Path: p, Err: err}
	}
	return nil
}

func (r *Repository) refreshListing(ctx context.Context, category string) {
	if err := r.RegenerateListing(ctx, category); err != nil {
		slog.Warn("Failed to regenerate question listing", "category", category, "error", err)
	}
}

func renderListing(category string, questions []domain.Question) string {
	sort.SliceStable(questions, func(i, j int) bool {
		ni, iok := questions[i].Number()
		nj, jok := questions[j].Number()
		if iok && jok && ni != nj {
			return ni < nj
		}
		if iok != jok {
			return iok
		}
		return questions[i].ID < questions[j].ID
	})

	var b strings.Builder
	fmt.Fprintf(&b, "# %s - Question List\n\n", category)
	b.WriteString("_Generated automatically. Edits to this document are overwritten._\n\n")
	fmt.Fprintf(&b, "Total: %d\n\n", len(questions))
	b.WriteString("| No. | Keyword | Question | Difficulty | Wrong | Correct | Bookmark |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, q := range questions {
		mark := ""
		if q.Bookmarked {
			mark = "⭐"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %d | %s |\n",
			cell(q.ID), cell(q.Keyword), cell(parser.Title(domain.Question{Prompt: q.Prompt})),
			q.Difficulty, q.WrongCount, q.CorrectCount, mark)
	}
	return b.String()
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
