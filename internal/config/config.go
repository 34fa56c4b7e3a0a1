// Package config loads quizbank settings. Sources are layered: compiled
// defaults, then an optional YAML file, then QUIZBANK_ environment variables,
// then command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/quizbank/internal/domain"
	"github.com/conorfennell/quizbank/internal/session"
)

const (
	EnvPrefix = "QUIZBANK_"

	DefaultTimerSeconds         = 30
	DefaultFeedbackDelaySeconds = 2
	DefaultSessionIdleTimeout   = 30 * time.Minute
)

// ErrInvalidConfig is returned when loaded settings fail validation.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New(validator.WithRequiredStructEnabled())

type Config struct {
	Store           Store    `koanf:"store"`
	QuestionRoot    string   `koanf:"question_root" validate:"required"`
	ResultsRoot     string   `koanf:"results_root" validate:"required"`
	StatsPath       string   `koanf:"stats_path" validate:"required"`
	DailyNotesDir   string   `koanf:"daily_notes_dir"`
	Categories      []string `koanf:"categories" validate:"dive,required"`
	DefaultCategory string   `koanf:"default_category" validate:"required"`
	Quiz            Quiz     `koanf:"quiz"`
	Server          Server   `koanf:"server"`
	Sources         []string `koanf:"sources" validate:"dive,required"`
	ReposDir        string   `koanf:"repos_dir" validate:"required"`
}

// Store selects the document store backend.
type Store struct {
	Backend string `koanf:"backend" validate:"oneof=fs sqlite memory"`
	Dir     string `koanf:"dir" validate:"required_if=Backend fs"`
	DSN     string `koanf:"dsn" validate:"required_if=Backend sqlite"`
}

// Quiz holds the session settings.
type Quiz struct {
	TimerSeconds         int  `koanf:"timer_seconds"`
	TimerEnabled         bool `koanf:"timer_enabled"`
	ShuffleQuestions     bool `koanf:"shuffle_questions"`
	ShuffleOptions       bool `koanf:"shuffle_options"`
	ShowHintAfterWrong   bool `koanf:"show_hint_after_wrong"`
	AutoAdvance          bool `koanf:"auto_advance"`
	FeedbackDelaySeconds int  `koanf:"feedback_delay_seconds"`
}

type Server struct {
	Addr               string        `koanf:"addr" validate:"required"`
	SessionIdleTimeout time.Duration `koanf:"session_idle_timeout"`
}

// Default returns the compiled defaults.
func Default() Config {
	return Config{
		Store:           Store{Backend: "fs", Dir: ".", DSN: "quizbank.db"},
		QuestionRoot:    "QuizBank/Questions",
		ResultsRoot:     "QuizBank/Results",
		StatsPath:       "QuizBank/stats.yaml",
		Categories:      []string{domain.DefaultCategory},
		DefaultCategory: domain.DefaultCategory,
		Quiz: Quiz{
			TimerSeconds:         DefaultTimerSeconds,
			TimerEnabled:         true,
			ShuffleQuestions:     true,
			ShuffleOptions:       true,
			ShowHintAfterWrong:   true,
			FeedbackDelaySeconds: DefaultFeedbackDelaySeconds,
		},
		Server:   Server{Addr: ":8080", SessionIdleTimeout: DefaultSessionIdleTimeout},
		ReposDir: "repos",
	}
}

// Session converts the quiz settings for the session engine.
func (q Quiz) Session() session.Config {
	c := session.Config{
		ShuffleQuestions:   q.ShuffleQuestions,
		ShuffleOptions:     q.ShuffleOptions,
		ShowHintAfterWrong: q.ShowHintAfterWrong,
	}
	if q.AutoAdvance {
		c.AutoAdvanceSeconds = q.FeedbackDelaySeconds
	}
	if q.TimerEnabled {
		c.TimerSeconds = q.TimerSeconds
	}
	return c
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"store":             "store.backend",
	"dir":               "store.dir",
	"db":                "store.dsn",
	"question-root":     "question_root",
	"results-root":      "results_root",
	"stats-path":        "stats_path",
	"daily-notes-dir":   "daily_notes_dir",
	"categories":        "categories",
	"timer-seconds":     "quiz.timer_seconds",
	"timer":             "quiz.timer_enabled",
	"shuffle-questions": "quiz.shuffle_questions",
	"shuffle-options":   "quiz.shuffle_options",
	"auto-advance":      "quiz.auto_advance",
	"feedback-delay":    "quiz.feedback_delay_seconds",
	"session-idle":      "server.session_idle_timeout",
	"addr":              "server.addr",
	"source":            "sources",
	"repos-dir":         "repos_dir",
}

// Flags returns the command-line flags understood by Load.
func Flags() *pflag.FlagSet {
	d := Default()
	fs := pflag.NewFlagSet("quizbank", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "Path to a YAML configuration file")
	fs.String("store", d.Store.Backend, "Document store backend: fs, sqlite or memory")
	fs.String("dir", d.Store.Dir, "Vault directory for the fs backend")
	fs.String("db", d.Store.DSN, "SQLite database file for the sqlite backend")
	fs.String("question-root", d.QuestionRoot, "Folder holding question documents")
	fs.String("results-root", d.ResultsRoot, "Folder for session result documents")
	fs.String("stats-path", d.StatsPath, "Path of the statistics document")
	fs.String("daily-notes-dir", d.DailyNotesDir, "Folder of daily notes to append session summaries to")
	fs.StringSlice("categories", d.Categories, "Ordered list of categories")
	fs.Int("timer-seconds", d.Quiz.TimerSeconds, "Seconds allowed per question")
	fs.Bool("timer", d.Quiz.TimerEnabled, "Enable the per-question timer")
	fs.Bool("shuffle-questions", d.Quiz.ShuffleQuestions, "Shuffle question order")
	fs.Bool("shuffle-options", d.Quiz.ShuffleOptions, "Shuffle option order")
	fs.Bool("auto-advance", d.Quiz.AutoAdvance, "Advance automatically once feedback has been shown")
	fs.Int("feedback-delay", d.Quiz.FeedbackDelaySeconds, "Seconds feedback is shown before auto-advance")
	fs.String("addr", d.Server.Addr, "Listen address for serve")
	fs.Duration("session-idle", d.Server.SessionIdleTimeout, "Idle time after which an unfinished web session is discarded")
	fs.StringSlice("source", nil, "Local directory or git URL to import from (repeatable)")
	fs.String("repos-dir", d.ReposDir, "Directory for cloned git sources")
	return fs
}

// Load builds the configuration. path may be empty; fs may be nil.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			key = strings.ReplaceAll(key, "__", ".")
			if key == "categories" || key == "sources" {
				return key, strings.Split(value, ",")
			}
			return key, value
		},
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	if fs != nil {
		err := k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		}), nil)
		if err != nil {
			return Config{}, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.coerce()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// coerce replaces out-of-range numbers with their defaults.
func (c *Config) coerce() {
	if c.Quiz.TimerSeconds <= 0 {
		slog.Warn("Invalid timer setting, using default", "timer_seconds", c.Quiz.TimerSeconds, "default", DefaultTimerSeconds)
		c.Quiz.TimerSeconds = DefaultTimerSeconds
	}
	if c.Quiz.FeedbackDelaySeconds < 0 {
		slog.Warn("Invalid feedback delay, using default", "feedback_delay_seconds", c.Quiz.FeedbackDelaySeconds, "default", DefaultFeedbackDelaySeconds)
		c.Quiz.FeedbackDelaySeconds = DefaultFeedbackDelaySeconds
	}
	if c.Server.SessionIdleTimeout <= 0 {
		slog.Warn("Invalid session idle timeout, using default", "session_idle_timeout", c.Server.SessionIdleTimeout, "default", DefaultSessionIdleTimeout)
		c.Server.SessionIdleTimeout = DefaultSessionIdleTimeout
	}
	if c.DefaultCategory == "" {
		c.DefaultCategory = domain.DefaultCategory
	}
}

// Validate checks the settings that cannot be coerced.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
