package session

import (
	"math/rand/v2"

	"github.com/conorfennell/quizbank/internal/domain"
)

// Arrange presents q's options in the order given by perm, where perm[k] is
// the original index shown at position k. A nil perm keeps the original order.
func Arrange(q domain.Question, perm []int) domain.SessionQuestion {
	if len(perm) != len(q.Options) {
		perm = identity(len(q.Options))
	}
	sq := domain.SessionQuestion{
		Base:                 q,
		ShuffledOptions:      make([]string, len(perm)),
		ShuffledCorrectIndex: q.CorrectIndex,
	}
	hasImages := len(q.OptionImages) == len(q.Options)
	if hasImages {
		sq.ShuffledImages = make([]string, len(perm))
	}
	for k, orig := range perm {
		sq.ShuffledOptions[k] = q.Options[orig]
		if hasImages {
			sq.ShuffledImages[k] = q.OptionImages[orig]
		}
		if orig == q.CorrectIndex {
			sq.ShuffledCorrectIndex = k
		}
	}
	return sq
}

// permutation returns a uniformly random permutation of 0..n-1 by
// Fisher-Yates, or the identity when r is nil.
func permutation(r *rand.Rand, n int) []int {
	p := identity(n)
	if r == nil {
		return p
	}
	for i := n - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	return p
}

func identity(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}
