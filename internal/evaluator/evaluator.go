// Package evaluator scores submitted answers. Everything here is pure: the
// same question and answer always produce the same outcome.
package evaluator

import (
	"strconv"
	"strings"

	"timed-quiz-service/internal/domain"
)

// Outcome is the verdict for a single answer.
type Outcome struct {
	IsCorrect     bool
	PointsAwarded int
	// Skipped marks blank answers. They score like wrong answers but are reported separately.
	Skipped bool
}

// Evaluate checks raw against the question's answer key. There is no partial credit.
func Evaluate(q domain.Question, raw string) Outcome {
	if strings.TrimSpace(raw) == "" {
		return Outcome{Skipped: true}
	}

	var correct bool
	switch body := q.Body.(type) {
	case domain.SyntaxBody:
		correct = normalizeCode(raw) == normalizeCode(body.CorrectCode)
	case domain.MCQBody:
		correct = body.CorrectOptionIndex >= 0 &&
			strings.TrimSpace(raw) == strconv.Itoa(body.CorrectOptionIndex)
	case domain.CaseStudyBody:
		answer := strings.ToLower(strings.TrimSpace(raw))
		for _, accepted := range body.AcceptedAnswers {
			if strings.ToLower(accepted) == answer {
				correct = true
				break
			}
		}
	}

	if !correct {
		return Outcome{}
	}
	return Outcome{IsCorrect: true, PointsAwarded: Points(q)}
}

// Points is the question's value with malformed values coerced to 0.
func Points(q domain.Question) int {
	if q.Points < 0 {
		return 0
	}
	return q.Points
}

// EvaluateAll builds the full answer list for a submission, one entry per
// question in presentation order, and sums awarded and available points.
func EvaluateAll(questions []domain.Question, answers map[string]string) ([]domain.Answer, int, int) {
	evaluated := make([]domain.Answer, 0, len(questions))
	score, total := 0, 0
	for _, q := range questions {
		raw := answers[q.ID]
		outcome := Evaluate(q, raw)
		evaluated = append(evaluated, domain.Answer{
			QuestionID:    q.ID,
			QuestionType:  q.Type(),
			UserAnswer:    raw,
			IsCorrect:     outcome.IsCorrect,
			PointsAwarded: outcome.PointsAwarded,
		})
		score += outcome.PointsAwarded
		total += Points(q)
	}
	return evaluated, score, total
}

// normalizeCode collapses whitespace runs to one space, trims and lowercases.
func normalizeCode(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
