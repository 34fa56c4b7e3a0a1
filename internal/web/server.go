package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/conorfennell/quizbank/internal/dailynote"
	"github.com/conorfennell/quizbank/internal/docstore"
	"github.com/conorfennell/quizbank/internal/domain"
	"github.com/conorfennell/quizbank/internal/repository"
	"github.com/conorfennell/quizbank/internal/schedule"
	"github.com/conorfennell/quizbank/internal/session"
	"github.com/conorfennell/quizbank/internal/stats"
	quizsync "github.com/conorfennell/quizbank/internal/sync"
)

// Deps holds what the server works on.
type Deps struct {
	Repo     *repository.Repository
	Stats    *stats.Aggregator
	Notes    dailynote.Notes
	Quiz     session.Config
	Sources  []string
	ReposDir string
	Clock    session.Clock
	Now      func() time.Time

	// IdleTimeout is how long a session may go without requests before
	// Sweep discards it.
	IdleTimeout time.Duration
}

const defaultIdleTimeout = 30 * time.Minute

// Server holds the dependencies for the HTTP server.
type Server struct {
	deps   Deps
	router *http.ServeMux

	mu       sync.Mutex
	sessions map[string]*liveSession
}

type liveSession struct {
	sess    *session.Session
	touched time.Time
}

// NewServer creates and configures a new server.
func NewServer(deps Deps) *Server {
	if deps.Clock == nil {
		deps.Clock = session.RealClock()
	}
	if deps.Now == nil {
		deps.Now = deps.Clock.Now
	}
	if deps.IdleTimeout <= 0 {
		deps.IdleTimeout = defaultIdleTimeout
	}
	s := &Server{
		deps:     deps,
		router:   http.NewServeMux(),
		sessions: make(map[string]*liveSession),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Sweep discards sessions idle for longer than the idle timeout. Their
// timers are stopped and nothing further is recorded for them.
func (s *Server) Sweep() {
	now := s.deps.Now()
	var idle []*session.Session
	s.mu.Lock()
	for id, e := range s.sessions {
		if now.Sub(e.touched) > s.deps.IdleTimeout {
			delete(s.sessions, id)
			idle = append(idle, e.sess)
		}
	}
	s.mu.Unlock()
	for _, sess := range idle {
		sess.Close()
		slog.Info("Discarded idle quiz session", "session", sess.ID())
	}
}

// Run sweeps idle sessions every interval until ctx is done.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /questions", s.handleListQuestions())
	s.router.HandleFunc("POST /questions", s.handleSaveQuestion())
	s.router.HandleFunc("DELETE /questions", s.handleDeleteQuestion())
	s.router.HandleFunc("GET /review/due", s.handleDue())

	s.router.HandleFunc("POST /sessions", s.handleStartSession())
	s.router.HandleFunc("GET /sessions/{id}", s.handleGetSession())
	s.router.HandleFunc("POST /sessions/{id}/answer", s.handleAnswer())
	s.router.HandleFunc("POST /sessions/{id}/advance", s.handleAdvance())
	s.router.HandleFunc("POST /sessions/{id}/confirm-exit", s.handleConfirmExit())
	s.router.HandleFunc("POST /sessions/{id}/bookmark", s.handleBookmark())
	s.router.HandleFunc("POST /sessions/{id}/{action}", s.handleCommand())

	s.router.HandleFunc("GET /stats", s.handleStats())
	s.router.HandleFunc("POST /sync", s.handlePostSync())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidQuestion),
		errors.Is(err, domain.ErrUnknownDifficulty),
		errors.Is(err, session.ErrOptionOutOfRange),
		errors.Is(err, session.ErrEmptySession),
		errors.Is(err, docstore.ErrInvalidPath):
		status = http.StatusBadRequest
	case errors.Is(err, docstore.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrInvalidState),
		errors.Is(err, session.ErrNoPrevious):
		status = http.StatusConflict
	case errors.Is(err, session.ErrExited):
		status = http.StatusGone
	}
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &badRequest{err}
	}
	return nil
}

type badRequest struct{ err error }

func (e *badRequest) Error() string { return "invalid request body: " + e.err.Error() }

func writeDecodeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// handleListQuestions lists the bank, optionally for one category.
func (s *Server) handleListQuestions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := s.deps.Repo.Loaded(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		sel := schedule.Selection{Category: r.URL.Query().Get("category")}
		out := []questionJSON{}
		for _, q := range sel.Select(qs, s.deps.Now()) {
			out = append(out, toQuestionJSON(q, s.deps.Now()))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleSaveQuestion creates a question, or updates it when a locator is given.
func (s *Server) handleSaveQuestion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in questionJSON
		if err := decode(r, &in); err != nil {
			writeDecodeError(w, err)
			return
		}
		q, err := in.toDomain()
		if err != nil {
			writeError(w, err)
			return
		}
		isNew := q.SourceLocator == ""
		if !isNew {
			current, err := s.deps.Repo.Get(r.Context(), q.SourceLocator)
			if err != nil {
				writeError(w, err)
				return
			}
			q.CorrectCount, q.WrongCount, q.LastAttempt = current.CorrectCount, current.WrongCount, current.LastAttempt
		}
		if err := s.deps.Repo.Save(r.Context(), &q, isNew); err != nil {
			writeError(w, err)
			return
		}
		status := http.StatusOK
		if isNew {
			status = http.StatusCreated
		}
		writeJSON(w, status, toQuestionJSON(q, s.deps.Now()))
	}
}

func (s *Server) handleDeleteQuestion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locator := r.URL.Query().Get("locator")
		if locator == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "locator is required"})
			return
		}
		q, err := s.deps.Repo.Get(r.Context(), locator)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := s.deps.Repo.Delete(r.Context(), q); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleDue lists due questions, most urgent first.
func (s *Server) handleDue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := s.deps.Repo.Loaded(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		sel := schedule.Selection{
			Category:     r.URL.Query().Get("category"),
			DueOnly:      true,
			WeakestFirst: true,
			Limit:        limit,
		}
		now := s.deps.Now()
		out := []questionJSON{}
		for _, q := range sel.Select(qs, now) {
			out = append(out, toQuestionJSON(q, now))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleStartSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in selectionJSON
		if r.ContentLength != 0 {
			if err := decode(r, &in); err != nil {
				writeDecodeError(w, err)
				return
			}
		}
		sel, err := in.toSelection()
		if err != nil {
			writeError(w, err)
			return
		}
		qs, err := s.deps.Repo.Loaded(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		sess, err := session.New(sel.Select(qs, s.deps.Now()), s.deps.Quiz, session.Deps{
			Stats: s.deps.Stats,
			Store: s.deps.Repo,
			Notes: s.deps.Notes,
			Clock: s.deps.Clock,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		if err := sess.Start(context.WithoutCancel(r.Context())); err != nil {
			writeError(w, err)
			return
		}
		s.mu.Lock()
		s.sessions[sess.ID()] = &liveSession{sess: sess, touched: s.deps.Now()}
		s.mu.Unlock()
		writeJSON(w, http.StatusCreated, toViewJSON(sess.Current()))
	}
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *session.Session {
	s.mu.Lock()
	e, ok := s.sessions[r.PathValue("id")]
	if ok {
		e.touched = s.deps.Now()
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return nil
	}
	return e.sess
}

func (s *Server) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sess := s.lookup(w, r); sess != nil {
			writeJSON(w, http.StatusOK, toViewJSON(sess.Current()))
		}
	}
}

func (s *Server) handleAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.lookup(w, r)
		if sess == nil {
			return
		}
		var in struct {
			Option *int `json:"option"`
		}
		if err := decode(r, &in); err != nil {
			writeDecodeError(w, err)
			return
		}
		if in.Option == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "option is required"})
			return
		}
		fb, err := sess.SubmitAnswer(r.Context(), *in.Option)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toFeedbackJSON(fb))
	}
}

func (s *Server) handleAdvance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.lookup(w, r)
		if sess == nil {
			return
		}
		done, err := sess.Advance(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if done != nil {
			s.forget(sess.ID())
			writeJSON(w, http.StatusOK, map[string]any{"completion": toCompletionJSON(*done)})
			return
		}
		writeJSON(w, http.StatusOK, toViewJSON(sess.Current()))
	}
}

func (s *Server) handleConfirmExit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.lookup(w, r)
		if sess == nil {
			return
		}
		record := r.URL.Query().Get("record") == "true"
		done, err := sess.ConfirmExit(r.Context(), record)
		if err != nil {
			writeError(w, err)
			return
		}
		s.forget(sess.ID())
		writeJSON(w, http.StatusOK, map[string]any{"completion": toCompletionJSON(*done)})
	}
}

func (s *Server) handleBookmark() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.lookup(w, r)
		if sess == nil {
			return
		}
		on, warnings, err := sess.ToggleBookmark(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookmarked": on, "warnings": warnings})
	}
}

// handleCommand runs the commands that take no input and return the view.
func (s *Server) handleCommand() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.lookup(w, r)
		if sess == nil {
			return
		}
		var cmd func() error
		switch r.PathValue("action") {
		case "pause":
			cmd = sess.Pause
		case "resume":
			cmd = sess.Resume
		case "previous":
			cmd = sess.Previous
		case "retry":
			cmd = sess.Retry
		case "retry-all":
			cmd = sess.RetryAll
		case "exit":
			cmd = sess.Exit
		case "cancel-exit":
			cmd = sess.CancelExit
		default:
			http.NotFound(w, r)
			return
		}
		if err := cmd(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toViewJSON(sess.Current()))
	}
}

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := s.deps.Repo.Loaded(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		summary, err := s.deps.Stats.Summary(r.Context(), len(qs))
		if err != nil {
			writeError(w, err)
			return
		}
		history, err := s.deps.Stats.RecentHistory(r.Context(), 7)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toStatsJSON(summary, stats.Achievements(summary), history,
			len(schedule.DueQuestions(qs, s.deps.Now()))))
	}
}

// handlePostSync imports all configured sources in the foreground.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := quizsync.Import(r.Context(), s.deps.Repo, s.deps.Sources, s.deps.ReposDir)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
