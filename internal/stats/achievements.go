package stats

// Achievement is a named study milestone.
type Achievement struct {
	ID   string
	Name string
}

type milestone struct {
	Achievement
	reached func(s Summary) bool
}

var milestones = []milestone{
	{Achievement{"questions_10", "Question Collector"}, func(s Summary) bool { return s.Questions >= 10 }},
	{Achievement{"questions_50", "Question Maker"}, func(s Summary) bool { return s.Questions >= 50 }},
	{Achievement{"questions_100", "Question Master"}, func(s Summary) bool { return s.Questions >= 100 }},
	{Achievement{"correct_50", "Beginner"}, func(s Summary) bool { return s.Correct >= 50 }},
	{Achievement{"correct_200", "Intermediate"}, func(s Summary) bool { return s.Correct >= 200 }},
	{Achievement{"correct_500", "Advanced"}, func(s Summary) bool { return s.Correct >= 500 }},
	{Achievement{"accuracy_80", "Sharpshooter"}, func(s Summary) bool { return s.Total >= 20 && s.Accuracy >= 80 }},
	{Achievement{"accuracy_90", "Perfectionist"}, func(s Summary) bool { return s.Total >= 50 && s.Accuracy >= 90 }},
	{Achievement{"streak_3", "3 Day Streak"}, func(s Summary) bool { return s.Streak >= 3 }},
	{Achievement{"streak_7", "7 Day Streak"}, func(s Summary) bool { return s.Streak >= 7 }},
	{Achievement{"streak_30", "30 Day Streak"}, func(s Summary) bool { return s.Streak >= 30 }},
}

// Achievements lists the milestones s has reached.
func Achievements(s Summary) []Achievement {
	var out []Achievement
	for _, m := range milestones {
		if m.reached(s) {
			out = append(out, m.Achievement)
		}
	}
	return out
}
