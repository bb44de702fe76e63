package models

import (
	"strings"
	"time"
)

// EventKind names an analytics collection
type EventKind string

const (
	EventSignIn     EventKind = "signin"
	EventVisit      EventKind = "visit"
	EventComparison EventKind = "comparison"
)

// SignInEvent records a successful sign-in
type SignInEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}

// VisitEvent records a compass page load
type VisitEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}

// ComparisonEvent records a selection change that left grades selected.
// Grades are in canonical rank order.
type ComparisonEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Grades     []string  `json:"grades"`
	GradeCount int       `json:"grade_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// Combination returns the key identifying the compared grade set
func (e *ComparisonEvent) Combination() string {
	return strings.Join(e.Grades, ",")
}

// ComboCount is how often a grade set was compared
type ComboCount struct {
	Grades []string `json:"grades"`
	Count  int      `json:"count"`
}

// Stats is the admin analytics summary
type Stats struct {
	TotalSignIns     int               `json:"total_sign_ins"`
	UniqueUsers      int               `json:"unique_users"`
	TotalVisits      int               `json:"total_visits"`
	TotalComparisons int               `json:"total_comparisons"`
	TopCombinations  []ComboCount      `json:"top_combinations"`
	Recent           []ComparisonEvent `json:"recent"`
	GeneratedAt      time.Time         `json:"generated_at"`
}

// TopCount returns the count of the most frequent combination, or 0
func (s *Stats) TopCount() int {
	if len(s.TopCombinations) == 0 {
		return 0
	}
	return s.TopCombinations[0].Count
}
