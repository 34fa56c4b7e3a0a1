package knol

import (
	"testing"

	"github.com/conorfennell/quizbank/internal/domain"
)

func TestNormalize(t *testing.T) {
	q := domain.Question{
		Prompt:       "  What is   HTMX? \r\n",
		Options:      []string{"A library for AJAX.", "A Database"},
		CorrectIndex: 0,
	}
	expected := "what is htmx?\na library for ajax.\na database\na library for ajax."
	normalized := Normalize(q)

	if normalized != expected {
		t.Errorf("Expected normalized string to be '%s', but got '%s'", expected, normalized)
	}
}

func TestFingerprint(t *testing.T) {
	t.Run("fingerprint is deterministic", func(t *testing.T) {
		q1 := domain.Question{Prompt: "Test", Options: []string{"a"}}
		q2 := domain.Question{Prompt: "Test", Options: []string{"a"}}
		if Fingerprint(q1) != Fingerprint(q2) {
			t.Error("Expected fingerprints for identical questions to be the same")
		}
	})

	t.Run("normalization produces same fingerprint", func(t *testing.T) {
		q1 := domain.Question{Prompt: "  what is go? ", Options: []string{"A language", "A game"}, CorrectIndex: 0}
		q2 := domain.Question{Prompt: "What Is Go?", Options: []string{"a game", "a language"}, CorrectIndex: 1}
		if Fingerprint(q1) != Fingerprint(q2) {
			t.Error("Expected fingerprints to be the same after normalization, but they were different.")
		}
	})

	t.Run("metadata does not matter", func(t *testing.T) {
		q1 := domain.Question{ID: "1", Category: "A", Prompt: "Q", Options: []string{"x"}, WrongCount: 3}
		q2 := domain.Question{ID: "9", Category: "B", Prompt: "Q", Options: []string{"x"}, Bookmarked: true}
		if Fingerprint(q1) != Fingerprint(q2) {
			t.Error("Expected ids, categories and stats to be ignored")
		}
	})

	t.Run("different answers have different fingerprints", func(t *testing.T) {
		q1 := domain.Question{Prompt: "Q", Options: []string{"x", "y"}, CorrectIndex: 0}
		q2 := domain.Question{Prompt: "Q", Options: []string{"x", "y"}, CorrectIndex: 1}
		if Fingerprint(q1) == Fingerprint(q2) {
			t.Error("Expected fingerprints for different answers to be different")
		}
	})
}
