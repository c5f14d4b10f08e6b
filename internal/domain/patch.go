package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

var questionPatchFields = map[string]struct{}{
	"type": {}, "section": {}, "title": {}, "description": {}, "points": {}, "order": {},
	"language": {}, "buggyCode": {}, "correctCode": {}, "codeSnippet": {}, "options": {},
	"correctOptionIndex": {}, "scenario": {}, "acceptedAnswers": {},
}

var participantPatchFields = map[string]struct{}{
	"name": {}, "studentId": {}, "section": {}, "score": {}, "totalPoints": {},
	"answers": {}, "completedAt": {}, "timeTaken": {}, "submitted": {},
}

// QuestionPatch is a validated partial update of a question.
type QuestionPatch struct {
	fields map[string]json.RawMessage
}

// ParticipantPatch is a validated partial update of a participant.
type ParticipantPatch struct {
	fields map[string]json.RawMessage
}

// ParseQuestionPatch decodes a JSON object and checks every key against the question allow-list.
func ParseQuestionPatch(body []byte) (QuestionPatch, error) {
	fields, err := parsePatch(body, questionPatchFields)
	return QuestionPatch{fields: fields}, err
}

// ParseParticipantPatch decodes a JSON object and checks every key against the participant allow-list.
func ParseParticipantPatch(body []byte) (ParticipantPatch, error) {
	fields, err := parsePatch(body, participantPatchFields)
	return ParticipantPatch{fields: fields}, err
}

// Fields returns the patched keys in sorted order.
func (p QuestionPatch) Fields() []string { return sortedKeys(p.fields) }

// Fields returns the patched keys in sorted order.
func (p ParticipantPatch) Fields() []string { return sortedKeys(p.fields) }

// Has reports whether the patch sets key.
func (p ParticipantPatch) Has(key string) bool {
	_, ok := p.fields[key]
	return ok
}

// Apply overlays the patch on q. The ID is never changed.
func (p QuestionPatch) Apply(q Question) (Question, error) {
	var out Question
	if err := overlay(q, p.fields, &out); err != nil {
		return Question{}, fmt.Errorf("apply question patch: %w", err)
	}
	out.ID = q.ID
	return out, nil
}

// Apply overlays the patch on participant. ID, StartedAt and CreatedAt are never changed.
func (p ParticipantPatch) Apply(participant Participant) (Participant, error) {
	var out Participant
	if err := overlay(participant, p.fields, &out); err != nil {
		return Participant{}, fmt.Errorf("apply participant patch: %w", err)
	}
	out.ID = participant.ID
	out.StartedAt = participant.StartedAt
	out.CreatedAt = participant.CreatedAt
	return out, nil
}

func parsePatch(body []byte, allowed map[string]struct{}) (map[string]json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	if len(fields) == 0 {
		return nil, ErrEmptyUpdate
	}
	for key := range fields {
		if _, ok := allowed[key]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, key)
		}
	}
	return fields, nil
}

func overlay(base any, fields map[string]json.RawMessage, dst any) error {
	raw, err := json.Marshal(base)
	if err != nil {
		return err
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return err
	}
	for key, value := range fields {
		merged[key] = value
	}
	raw, err = json.Marshal(merged)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
