package domain

import "time"

// DayRecord is one calendar-day bucket of the study history.
type DayRecord struct {
	Date          string        `yaml:"date" json:"date"` // YYYY-MM-DD
	Correct       int           `yaml:"correct" json:"correct"`
	Wrong         int           `yaml:"wrong" json:"wrong"`
	StudyDuration time.Duration `yaml:"study_duration,omitempty" json:"studyDuration,omitempty"`
	Sessions      int           `yaml:"sessions,omitempty" json:"sessions,omitempty"`
}

// StudyStatistics is the bank-wide aggregate of all attempts.
type StudyStatistics struct {
	TotalAttempts   int         `yaml:"total_attempts"`
	TotalCorrect    int         `yaml:"total_correct"`
	TotalWrong      int         `yaml:"total_wrong"`
	BookmarkedCount int         `yaml:"bookmarked_count"`
	LastStudyDate   *time.Time  `yaml:"last_study_date,omitempty"`
	History         []DayRecord `yaml:"history"`
}
