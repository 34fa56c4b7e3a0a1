// Package sync imports question documents from local directories and git
// repositories into the bank.
package sync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/quizbank/internal/domain"
	"github.com/conorfennell/quizbank/internal/gitsource"
	"github.com/conorfennell/quizbank/internal/parser"
	"github.com/conorfennell/quizbank/internal/repository"
)

// Bank is the part of the repository an import writes to.
type Bank interface {
	Loaded(ctx context.Context) ([]domain.Question, error)
	FindDuplicateContent(q domain.Question) []domain.Question
	Save(ctx context.Context, q *domain.Question, isNew bool) error
}

// Report counts what an import did.
type Report struct {
	Parsed     int `json:"parsed"`
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

func (r *Report) add(o Report) {
	r.Parsed += o.Parsed
	r.Imported += o.Imported
	r.Duplicates += o.Duplicates
	r.Errors += o.Errors
}

// Import reads every source into bank. Git sources are cloned or pulled
// under reposDir first. A failing source is logged and counted; the others
// are still imported.
func Import(ctx context.Context, bank Bank, sources []string, reposDir string) (Report, error) {
	var total Report
	if len(sources) == 0 {
		slog.Info("No sources configured. Add one with --source <path/or/url.git>")
		return total, nil
	}
	if _, err := bank.Loaded(ctx); err != nil {
		return total, fmt.Errorf("failed to load question bank: %w", err)
	}

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		dir := source
		if gitsource.IsGitURL(source) {
			local, err := gitsource.LocalPath(reposDir, source)
			if err != nil {
				slog.Error("Error determining local path for git repo", "url", source, "error", err)
				total.Errors++
				continue
			}
			if err := os.MkdirAll(reposDir, 0o755); err != nil {
				return total, fmt.Errorf("failed to create repos directory: %w", err)
			}
			if err := gitsource.Sync(ctx, source, local, nil); err != nil {
				slog.Error("Error syncing git repo", "url", source, "error", err)
				total.Errors++
				continue
			}
			dir = local
		}

		report, err := ImportDir(ctx, bank, dir)
		total.add(report)
		if err != nil {
			slog.Error("Error walking directory", "path", dir, "error", err)
			total.Errors++
		}
	}

	slog.Info("Import complete",
		"sources", len(sources),
		"parsed", total.Parsed,
		"imported", total.Imported,
		"duplicates", total.Duplicates,
		"errors", total.Errors,
	)
	return total, nil
}

// ImportDir imports every question document below dir. Questions whose
// content is already in the bank are skipped; the rest get fresh ids in
// their own category.
func ImportDir(ctx context.Context, bank Bank, dir string) (Report, error) {
	var report Report
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !repository.IsQuestionDocument(p) {
			return nil
		}

		content, err := os.ReadFile(p)
		if err != nil {
			slog.Warn("Failed to read question document", "path", p, "error", err)
			report.Errors++
			return nil
		}
		q, err := parser.ParseDocument(p, string(content))
		if err != nil {
			slog.Warn("Skipping invalid question document", "path", p, "error", err)
			report.Errors++
			return nil
		}
		report.Parsed++

		if dups := bank.FindDuplicateContent(q); len(dups) > 0 {
			slog.Info("Question already in bank, skipping", "path", p, "existing", dups[0].SourceLocator)
			report.Duplicates++
			return nil
		}

		q.ID = ""
		q.SourceLocator = ""
		if err := bank.Save(ctx, &q, true); err != nil {
			slog.Warn("Failed to import question", "path", p, "error", err)
			report.Errors++
			return nil
		}
		report.Imported++
		return nil
	})
	return report, walkErr
}
