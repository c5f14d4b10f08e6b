// Package catalog bundles the default question set shipped with the binary.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"timed-quiz-service/internal/domain"
)

//go:embed default_questions.json
var defaultQuestionsJSON []byte

// Defaults returns a fresh copy of the bundled question set. It is used when
// the store is empty or unreachable, and by the seed batch action.
func Defaults() []domain.Question {
	questions, err := parse(defaultQuestionsJSON)
	if err != nil {
		panic(fmt.Sprintf("catalog: bundled questions are invalid: %v", err))
	}
	return questions
}

// WithoutIDs strips IDs so the store can assign fresh ones on import.
func WithoutIDs(questions []domain.Question) []domain.Question {
	out := make([]domain.Question, len(questions))
	for i, q := range questions {
		q.ID = ""
		out[i] = q
	}
	return out
}

func parse(raw []byte) ([]domain.Question, error) {
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}
