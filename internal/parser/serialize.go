package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/quizbank/internal/domain"
)

const titleRunes = 40

// Serialize renders a question in the canonical document form read by Parse.
func Serialize(q domain.Question) string {
	var b strings.Builder

	section := func(marker string, body ...string) {
		b.WriteString(marker)
		b.WriteString("\n")
		for _, line := range body {
			b.WriteString(escapeLine(line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(titlePrefix + Title(q) + "\n\n")
	section(keywordMarker, q.Keyword)
	section(numberMarker, q.ID)
	section(categoryMarker, q.Category)
	section(promptMarker, q.Prompt)

	opts := make([]string, len(q.Options))
	imgs := make([]string, len(q.Options))
	for i, opt := range q.Options {
		opts[i] = "- " + opt
		img := ""
		if i < len(q.OptionImages) {
			img = q.OptionImages[i]
		}
		imgs[i] = strings.TrimSpace(fmt.Sprintf("%d. %s", i+1, img))
	}
	section(optionsMarker, opts...)
	section(optionImagesMarker, imgs...)

	section(answerMarker, fmt.Sprint(q.CorrectIndex))
	section(hintMarker, q.Hint)
	section(hintImageMarker, q.HintImage)
	section(noteMarker, q.Note)
	section(noteImageMarker, q.NoteImage)
	difficulty := q.Difficulty
	if !difficulty.Valid() {
		difficulty = domain.DefaultDifficulty
	}
	section(difficultyMarker, difficulty.String())
	section(imageMarker, q.Image)

	bookmark := bookmarkOff
	if q.Bookmarked {
		bookmark = bookmarkOn
	}
	last := neverMarker
	if q.LastAttempt != nil {
		last = q.LastAttempt.Format(time.RFC3339)
	}
	b.WriteString(statsMarker + "\n")
	fmt.Fprintf(&b, "- %s %d\n", wrongLine, q.WrongCount)
	fmt.Fprintf(&b, "- %s %d\n", correctLine, q.CorrectCount)
	fmt.Fprintf(&b, "- %s %s\n", bookmarkedLine, bookmark)
	fmt.Fprintf(&b, "- %s %s\n", lastAttemptLine, last)
	b.WriteString("\n" + footer + "\n")
	return b.String()
}

// escapeLine prefixes a body line that would otherwise read as a heading or
// the footer. A leading backslash is escaped the same way.
func escapeLine(line string) string {
	t := strings.TrimSpace(line)
	if strings.HasPrefix(t, "#") || t == footer || strings.HasPrefix(t, escape) {
		return escape + t
	}
	return line
}

// Title is the heading line of a question document.
func Title(q domain.Question) string {
	if q.Keyword != "" {
		return q.Keyword
	}
	r := []rune(q.Prompt)
	if len(r) > titleRunes {
		return string(r[:titleRunes]) + "…"
	}
	return string(r)
}
