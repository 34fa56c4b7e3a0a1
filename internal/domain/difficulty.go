package domain

import (
	"errors"
	"fmt"
)

// DifficultyGrade is one of nine ordered grades, easiest first.
type DifficultyGrade int

const (
	VeryEasy DifficultyGrade = iota + 1
	Easy
	FairlyEasy
	SlightlyEasy
	Normal
	SlightlyHard
	FairlyHard
	Hard
	VeryHard
)

// DefaultDifficulty is the mid grade.
const DefaultDifficulty = Normal

var gradeLabels = [...]string{
	VeryEasy:     "Very Easy",
	Easy:         "Easy",
	FairlyEasy:   "Fairly Easy",
	SlightlyEasy: "Slightly Easy",
	Normal:       "Normal",
	SlightlyHard: "Slightly Hard",
	FairlyHard:   "Fairly Hard",
	Hard:         "Hard",
	VeryHard:     "Very Hard",
}

// Grades lists every grade from easiest to hardest.
func Grades() []DifficultyGrade {
	out := make([]DifficultyGrade, 0, len(gradeLabels)-1)
	for g := VeryEasy; g <= VeryHard; g++ {
		out = append(out, g)
	}
	return out
}

func (g DifficultyGrade) Valid() bool {
	return g >= VeryEasy && g <= VeryHard
}

func (g DifficultyGrade) String() string {
	if !g.Valid() {
		return fmt.Sprintf("DifficultyGrade(%d)", int(g))
	}
	return gradeLabels[g]
}

// ErrUnknownDifficulty is returned for labels that name no grade.
var ErrUnknownDifficulty = errors.New("unknown difficulty grade")

// ParseDifficulty maps a document label to its grade.
func ParseDifficulty(label string) (DifficultyGrade, error) {
	for g := VeryEasy; g <= VeryHard; g++ {
		if gradeLabels[g] == label {
			return g, nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownDifficulty, label)
}
