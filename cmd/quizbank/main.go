package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/quizbank/internal/config"
	"github.com/conorfennell/quizbank/internal/dailynote"
	"github.com/conorfennell/quizbank/internal/docstore"
	"github.com/conorfennell/quizbank/internal/repository"
	"github.com/conorfennell/quizbank/internal/schedule"
	"github.com/conorfennell/quizbank/internal/stats"
	"github.com/conorfennell/quizbank/internal/storage"
	"github.com/conorfennell/quizbank/internal/sync"
	"github.com/conorfennell/quizbank/internal/web"
)

const usage = `Usage: quizbank [flags] <command>

Commands:
  serve    Start the HTTP server
  import   Import questions from the configured sources
  due      List questions due for review, most urgent first
  stats    Print study statistics

Flags:
`

func main() {
	// 1. Parse flags and load configuration
	fs := config.Flags()
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("Failed to parse flags: %v", err)
	}
	command := fs.Arg(0)
	if command == "" {
		fs.Usage()
		os.Exit(2)
	}
	configPath, _ := fs.GetString("config")
	cfg, err := config.Load(configPath, fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Open the document store
	store, closeStore, err := openStore(cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}
	defer closeStore()
	slog.Info("Document store opened", "backend", cfg.Store.Backend)

	// 3. Wire the bank
	repo := repository.New(store, repository.Config{
		QuestionRoot:    cfg.QuestionRoot,
		ResultsRoot:     cfg.ResultsRoot,
		Categories:      cfg.Categories,
		DefaultCategory: cfg.DefaultCategory,
	})
	agg := stats.New(repo, store, cfg.StatsPath, time.Now)
	var notes dailynote.Notes = dailynote.Noop{}
	if cfg.DailyNotesDir != "" {
		notes = dailynote.NewFolder(store, cfg.DailyNotesDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Run the command
	switch command {
	case "serve":
		err = serve(ctx, cfg, web.Deps{
			Repo:     repo,
			Stats:    agg,
			Notes:    notes,
			Quiz:     cfg.Quiz.Session(),
			Sources:  cfg.Sources,
			ReposDir: cfg.ReposDir,

			IdleTimeout: cfg.Server.SessionIdleTimeout,
		})
	case "import":
		var report sync.Report
		report, err = sync.Import(ctx, repo, cfg.Sources, cfg.ReposDir)
		if err == nil {
			fmt.Printf("Parsed %d, imported %d, skipped %d duplicates, %d errors.\n",
				report.Parsed, report.Imported, report.Duplicates, report.Errors)
		}
	case "due":
		err = printDue(ctx, repo)
	case "stats":
		err = printStats(ctx, repo, agg)
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func openStore(cfg config.Store) (docstore.Store, func(), error) {
	switch cfg.Backend {
	case "sqlite":
		db, err := storage.Open(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	case "memory":
		return docstore.NewMemory(), func() {}, nil
	default:
		s, err := docstore.NewFS(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}

func serve(ctx context.Context, cfg config.Config, deps web.Deps) error {
	if _, err := deps.Repo.LoadAll(ctx); err != nil {
		return err
	}
	handler := web.NewServer(deps)
	go handler.Run(ctx, time.Minute)
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Server shutdown failed", "error", err)
		}
	}()
	slog.Info("Starting server", "addr", cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func printDue(ctx context.Context, repo *repository.Repository) error {
	qs, err := repo.Loaded(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	due := schedule.SortByPriority(schedule.DueQuestions(qs, now), now)
	if len(due) == 0 {
		fmt.Println("Nothing due for review.")
		return nil
	}
	fmt.Printf("%d questions due:\n", len(due))
	for _, q := range due {
		fmt.Printf("%6.1f  %s/%s  %s\n", schedule.PriorityScore(q, now), q.Category, q.ID, firstLine(q.Prompt))
	}
	return nil
}

func printStats(ctx context.Context, repo *repository.Repository, agg *stats.Aggregator) error {
	qs, err := repo.Loaded(ctx)
	if err != nil {
		return err
	}
	s, err := agg.Summary(ctx, len(qs))
	if err != nil {
		return err
	}
	fmt.Printf("Questions:  %d (%d bookmarked)\n", s.Questions, s.Bookmarked)
	fmt.Printf("Attempts:   %d (%d correct, %d wrong)\n", s.Total, s.Correct, s.Wrong)
	fmt.Printf("Accuracy:   %d%%\n", s.Accuracy)
	fmt.Printf("Today:      %d correct, %d wrong\n", s.TodayCorrect, s.TodayWrong)
	fmt.Printf("Streak:     %d days\n", s.Streak)
	fmt.Printf("Study time: %s\n", s.StudyTime.Round(time.Second))
	if achievements := stats.Achievements(s); len(achievements) > 0 {
		fmt.Println("\nAchievements:")
		for _, a := range achievements {
			fmt.Printf("- %s\n", a.Name)
		}
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
