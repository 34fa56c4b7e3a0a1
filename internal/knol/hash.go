package knol

import (
	"crypto/sha256"
	"fmt"
	"slices"
	"strings"

	"github.com/conorfennell/quizbank/internal/domain"
)

// Normalize concatenates the question's content after cleaning each part.
// It trims whitespace, lowercases, and collapses inner whitespace for the
// prompt, every option and the correct option before joining them.
// Option order does not matter: the same question with shuffled options
// normalizes identically.
func Normalize(q domain.Question) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		return strings.Join(strings.Fields(p), " ")
	}

	opts := make([]string, len(q.Options))
	for i, o := range q.Options {
		opts[i] = normalizePart(o)
	}
	slices.Sort(opts)

	// We join with a newline to ensure separation between fields,
	// preventing accidental joining of words.
	parts := append([]string{normalizePart(q.Prompt), normalizePart(q.CorrectText())}, opts...)
	return strings.Join(parts, "\n")
}

// Fingerprint takes a question, normalizes it, and returns its SHA-256 hash as a hex string.
func Fingerprint(q domain.Question) string {
	normalized := Normalize(q)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}
