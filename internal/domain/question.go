package domain

import (
	"strconv"
	"strings"
	"time"
)

// DefaultCategory is used when a question does not name one.
const DefaultCategory = "Basic"

// Question represents a single multiple-choice item in the bank.
type Question struct {
	ID            string // category-scoped number, kept as text
	Category      string `validate:"required"`
	Keyword       string
	Prompt        string   `validate:"required"`
	Options       []string `validate:"min=1,dive,required"`
	CorrectIndex  int      `validate:"gte=0"`
	OptionImages  []string
	Image         string
	Hint          string
	HintImage     string
	Note          string
	NoteImage     string
	Difficulty    DifficultyGrade
	Bookmarked    bool
	CorrectCount  int `validate:"gte=0"`
	WrongCount    int `validate:"gte=0"`
	LastAttempt   *time.Time
	SourceLocator string    // path of the backing document
	ModTime       time.Time // last-modified time of the backing document
}

// Number returns the id as an integer when it parses as a positive one.
func (q Question) Number() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(q.ID))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// CorrectText returns the text of the correct option.
func (q Question) CorrectText() string {
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return ""
	}
	return q.Options[q.CorrectIndex]
}

// Clone returns a deep copy, so callers can mutate slices freely.
func (q Question) Clone() Question {
	c := q
	c.Options = append([]string(nil), q.Options...)
	c.OptionImages = append([]string(nil), q.OptionImages...)
	if q.LastAttempt != nil {
		t := *q.LastAttempt
		c.LastAttempt = &t
	}
	return c
}

// Normalize puts every text field on one trimmed line, clamps the answer
// index, pads option images and fills defaults. It reports whether the
// answer index had to be reset.
func (q *Question) Normalize() (answerReset bool) {
	for _, f := range []*string{
		&q.ID, &q.Category, &q.Keyword, &q.Prompt, &q.Image,
		&q.Hint, &q.HintImage, &q.Note, &q.NoteImage,
	} {
		*f = singleLine(*f)
	}
	for i := range q.Options {
		q.Options[i] = singleLine(q.Options[i])
	}
	for i := range q.OptionImages {
		q.OptionImages[i] = singleLine(q.OptionImages[i])
	}
	if q.Category == "" {
		q.Category = DefaultCategory
	}
	if !q.Difficulty.Valid() {
		q.Difficulty = DefaultDifficulty
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		q.CorrectIndex = 0
		answerReset = true
	}
	for len(q.OptionImages) < len(q.Options) {
		q.OptionImages = append(q.OptionImages, "")
	}
	if len(q.OptionImages) > len(q.Options) {
		q.OptionImages = q.OptionImages[:len(q.Options)]
	}
	return answerReset
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// singleLine joins the lines of s with spaces. Documents hold each text
// field on one line.
func singleLine(s string) string {
	return strings.TrimSpace(lineBreaks.Replace(s))
}
