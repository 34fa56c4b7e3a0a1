package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/quizbank/internal/domain"
)

const (
	titlePrefix        = "# "
	keywordMarker      = "## Keyword"
	numberMarker       = "## Number"
	categoryMarker     = "## Category"
	promptMarker       = "## Question"
	optionsMarker      = "## Options"
	optionImagesMarker = "## Option Images"
	answerMarker       = "## Answer"
	hintMarker         = "## Hint"
	hintImageMarker    = "## Hint Image"
	noteMarker         = "## Note"
	noteImageMarker    = "## Note Image"
	difficultyMarker   = "## Difficulty"
	imageMarker        = "## Image"
	statsMarker        = "## Stats"

	wrongLine       = "Wrong:"
	correctLine     = "Correct:"
	bookmarkedLine  = "Bookmarked:"
	lastAttemptLine = "Last Attempt:"

	bookmarkOn  = "✅"
	bookmarkOff = "❌"
	neverMarker = "none"
	footer      = "---"
	escape      = `\`
)

type section int

const (
	none section = iota
	readingKeyword
	readingNumber
	readingCategory
	readingPrompt
	readingOptions
	readingOptionImages
	readingAnswer
	readingHint
	readingHintImage
	readingNote
	readingNoteImage
	readingDifficulty
	readingImage
	readingStats
)

// markers is ordered so that longer markers sharing a prefix are tried first.
var markers = []struct {
	prefix  string
	section section
}{
	{keywordMarker, readingKeyword},
	{numberMarker, readingNumber},
	{categoryMarker, readingCategory},
	{promptMarker, readingPrompt},
	{optionImagesMarker, readingOptionImages},
	{optionsMarker, readingOptions},
	{answerMarker, readingAnswer},
	{hintImageMarker, readingHintImage},
	{hintMarker, readingHint},
	{noteImageMarker, readingNoteImage},
	{noteMarker, readingNote},
	{difficultyMarker, readingDifficulty},
	{imageMarker, readingImage},
	{statsMarker, readingStats},
}

var (
	optionImageRe = regexp.MustCompile(`^(\d+)\.\s*(.*)$`)
	digitsRe      = regexp.MustCompile(`\d+`)
)

// ErrInvalidQuestion marks documents that do not describe a usable question.
var ErrInvalidQuestion = domain.ErrInvalidQuestion

// ParseError reports a document that could not be turned into a Question.
type ParseError struct {
	Locator string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Locator, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseDocument parses the content of the document at locator. Recoverable
// problems are logged as warnings; the returned question carries the locator.
func ParseDocument(locator, content string) (domain.Question, error) {
	q, warnings, err := Parse(strings.NewReader(content))
	for _, w := range warnings {
		slog.Warn("Question document needs attention", "path", locator, "warning", w)
	}
	if err != nil {
		return domain.Question{}, &ParseError{Locator: locator, Err: err}
	}
	q.SourceLocator = locator
	return q, nil
}

// Parse reads a question document. It returns the question, any warnings
// about defaulted fields, and an error if no valid question was found.
func Parse(r io.Reader) (domain.Question, []string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		q          domain.Question
		warnings   []string
		answerSeen bool
		answerText string
	)
	q.Difficulty = domain.DefaultDifficulty
	currentSection := none

	appendText := func(dst *string, line string) {
		if *dst == "" {
			*dst = line
		} else {
			*dst += " " + line
		}
	}
	setOnce := func(dst *string, line string) {
		if *dst == "" {
			*dst = line
		}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == footer {
			break
		}
		if strings.HasPrefix(line, "#") {
			currentSection = none
			if strings.HasPrefix(line, "## ") {
				for _, m := range markers {
					if strings.HasPrefix(line, m.prefix) {
						currentSection = m.section
						break
					}
				}
			}
			continue
		}
		if line == "" {
			continue
		}
		line = strings.TrimPrefix(line, escape)

		switch currentSection {
		case readingKeyword:
			setOnce(&q.Keyword, line)
		case readingNumber:
			setOnce(&q.ID, line)
		case readingCategory:
			setOnce(&q.Category, line)
		case readingPrompt:
			appendText(&q.Prompt, line)
		case readingOptions:
			if strings.HasPrefix(line, "-") {
				if opt := strings.TrimSpace(line[1:]); opt != "" {
					q.Options = append(q.Options, opt)
				}
			}
		case readingOptionImages:
			m := optionImageRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 {
				continue
			}
			for len(q.OptionImages) < n {
				q.OptionImages = append(q.OptionImages, "")
			}
			q.OptionImages[n-1] = strings.TrimSpace(m[2])
		case readingAnswer:
			if !answerSeen {
				answerSeen = true
				answerText = line
			}
		case readingHint:
			appendText(&q.Hint, line)
		case readingHintImage:
			setOnce(&q.HintImage, line)
		case readingNote:
			appendText(&q.Note, line)
		case readingNoteImage:
			setOnce(&q.NoteImage, line)
		case readingDifficulty:
			g, err := domain.ParseDifficulty(line)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%v, using %s", err, domain.DefaultDifficulty))
				continue
			}
			q.Difficulty = g
		case readingImage:
			appendText(&q.Image, line)
		case readingStats:
			if w := parseStatsLine(&q, strings.TrimSpace(strings.TrimPrefix(line, "-"))); w != "" {
				warnings = append(warnings, w)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return domain.Question{}, nil, err
	}

	if q.Prompt == "" || len(q.Options) == 0 {
		return domain.Question{}, warnings, fmt.Errorf("%w: missing question text or options", ErrInvalidQuestion)
	}

	if !answerSeen {
		warnings = append(warnings, "missing answer, using 0")
	} else if idx, err := strconv.Atoi(answerText); err != nil {
		warnings = append(warnings, fmt.Sprintf("answer %q is not a number, using 0", answerText))
	} else {
		q.CorrectIndex = idx
		if idx < 0 || idx >= len(q.Options) {
			warnings = append(warnings, fmt.Sprintf("answer %d out of range for %d options, using 0", idx, len(q.Options)))
		}
	}
	q.Normalize()

	if err := domain.Validate(q); err != nil {
		return domain.Question{}, warnings, err
	}
	return q, warnings, nil
}

func parseStatsLine(q *domain.Question, line string) string {
	switch {
	case strings.HasPrefix(line, wrongLine):
		q.WrongCount = firstInt(line)
	case strings.HasPrefix(line, correctLine):
		q.CorrectCount = firstInt(line)
	case strings.HasPrefix(line, bookmarkedLine):
		v := strings.TrimSpace(strings.TrimPrefix(line, bookmarkedLine))
		q.Bookmarked = v == bookmarkOn || strings.EqualFold(v, "yes") || strings.EqualFold(v, "true")
	case strings.HasPrefix(line, lastAttemptLine):
		v := strings.TrimSpace(strings.TrimPrefix(line, lastAttemptLine))
		if v == "" || v == neverMarker {
			return ""
		}
		t, err := parseTime(v)
		if err != nil {
			return fmt.Sprintf("unreadable last attempt %q, treating as never", v)
		}
		q.LastAttempt = &t
	}
	return ""
}

func firstInt(s string) int {
	m := digitsRe.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04", "2006-01-02"}

func parseTime(v string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unknown time format")
}
