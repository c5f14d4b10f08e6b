package domain

import (
	"math"
	"strings"
	"time"
)

// Millis is an epoch-milliseconds timestamp, the wire format for every instant.
type Millis int64

// MillisOf converts t to epoch milliseconds.
func MillisOf(t time.Time) Millis {
	return Millis(t.UnixMilli())
}

// Time converts m back to a time.Time.
func (m Millis) Time() time.Time {
	return time.UnixMilli(int64(m))
}

// Participant is a registered challenger. It is created once at registration
// and mutated once at submission.
type Participant struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	StudentID   string     `json:"studentId"`
	Section     Section    `json:"section"`
	StartedAt   Millis     `json:"startedAt"`
	CompletedAt Millis     `json:"completedAt,omitempty"`
	Score       int        `json:"score"`
	TotalPoints int        `json:"totalPoints"`
	Answers     []Answer   `json:"answers"`
	Submitted   bool       `json:"submitted"`
	TimeTaken   int        `json:"timeTaken,omitempty"` // seconds, as measured by the client timer
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// Elapsed is the wall time between start and completion, or false when the
// participant has not completed.
func (p Participant) Elapsed() (time.Duration, bool) {
	if p.CompletedAt == 0 {
		return 0, false
	}
	return time.Duration(p.CompletedAt-p.StartedAt) * time.Millisecond, true
}

// Answer is the evaluated response to one question.
type Answer struct {
	QuestionID    string       `json:"questionId"`
	QuestionType  QuestionType `json:"questionType"`
	UserAnswer    string       `json:"userAnswer"`
	IsCorrect     bool         `json:"isCorrect"`
	PointsAwarded int          `json:"pointsAwarded"`
}

// Skipped reports whether the participant left the question blank.
func (a Answer) Skipped() bool {
	return strings.TrimSpace(a.UserAnswer) == ""
}

// Registration carries the details collected before a challenge starts.
type Registration struct {
	Name      string  `json:"name" validate:"required,max=120"`
	StudentID string  `json:"studentId" validate:"required,max=64"`
	Section   Section `json:"section" validate:"required,oneof=C Python Other"`
	StartedAt Millis  `json:"startedAt"`
}

// Participant builds the initial record for the registration.
func (r Registration) Participant() Participant {
	return Participant{
		Name:        strings.TrimSpace(r.Name),
		StudentID:   strings.TrimSpace(r.StudentID),
		Section:     r.Section,
		StartedAt:   r.StartedAt,
		Score:       0,
		TotalPoints: 0,
		Answers:     []Answer{},
		Submitted:   false,
	}
}

// Submission is the single update written when a challenge ends.
type Submission struct {
	Answers     []Answer `json:"answers"`
	Score       int      `json:"score"`
	TotalPoints int      `json:"totalPoints"`
	CompletedAt Millis   `json:"completedAt"`
	TimeTaken   int      `json:"timeTaken"`
	Submitted   bool     `json:"submitted"`
}

// Result is the bundle handed to the results view after submission.
type Result struct {
	Answers     []Answer `json:"answers"`
	Score       int      `json:"score"`
	TotalPoints int      `json:"totalPoints"`
	TimeTaken   int      `json:"timeTaken"`
	Name        string   `json:"name"`
}

// Tally splits answers into correct, wrong and skipped.
func (r Result) Tally() (correct, incorrect, skipped int) {
	for _, a := range r.Answers {
		switch {
		case a.IsCorrect:
			correct++
		case a.Skipped():
			skipped++
		default:
			incorrect++
		}
	}
	return correct, incorrect, skipped
}

// Percentage is the rounded share of available points scored.
func (r Result) Percentage() int {
	if r.TotalPoints <= 0 {
		return 0
	}
	return int(math.Round(float64(r.Score) / float64(r.TotalPoints) * 100))
}
