package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestQuestionDecodesVariants(t *testing.T) {
	raw := `[
		{"id":"s1","type":"syntax","section":"Python","title":"t","points":10,"order":2,"language":"python","buggyCode":"x","correctCode":"y"},
		{"id":"m1","type":"mcq","section":"C","points":"5","order":1,"codeSnippet":"__","options":["a","b"],"correctOptionIndex":1},
		{"id":"c1","type":"casestudy","points":"lots","scenario":"s","acceptedAnswers":["tcp"]}
	]`
	var qs []Question
	if err := json.Unmarshal([]byte(raw), &qs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	syntax, ok := qs[0].Body.(SyntaxBody)
	if !ok || syntax.CorrectCode != "y" || qs[0].Points != 10 || qs[0].Order != 2 {
		t.Fatalf("unexpected syntax question %+v", qs[0])
	}
	mcq, ok := qs[1].Body.(MCQBody)
	if !ok || mcq.CorrectOptionIndex != 1 || len(mcq.Options) != 2 || qs[1].Points != 5 {
		t.Fatalf("unexpected mcq question %+v", qs[1])
	}
	cs, ok := qs[2].Body.(CaseStudyBody)
	if !ok || cs.AcceptedAnswers[0] != "tcp" {
		t.Fatalf("unexpected casestudy question %+v", qs[2])
	}
	if qs[2].Points != 0 {
		t.Fatalf("expected malformed points to coerce to 0, got %d", qs[2].Points)
	}
	if qs[2].Section != SectionOther {
		t.Fatalf("expected missing section to default to Other, got %q", qs[2].Section)
	}
}

func TestQuestionRejectsUnknownType(t *testing.T) {
	var q Question
	err := json.Unmarshal([]byte(`{"id":"x","type":"essay"}`), &q)
	if !errors.Is(err, ErrUnknownQuestionType) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
	err = json.Unmarshal([]byte(`{"id":"x","type":"mcq","section":"Rust"}`), &q)
	if !errors.Is(err, ErrInvalidSection) {
		t.Fatalf("expected invalid section error, got %v", err)
	}
}

func TestMCQWithoutKeyIsMarkedMissing(t *testing.T) {
	var q Question
	if err := json.Unmarshal([]byte(`{"id":"m","type":"mcq","options":["a"]}`), &q); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if q.Body.(MCQBody).CorrectOptionIndex != -1 {
		t.Fatalf("expected -1 for missing key, got %d", q.Body.(MCQBody).CorrectOptionIndex)
	}
}

func TestQuestionRoundTripKeepsFlatWireShape(t *testing.T) {
	q := Question{
		ID:      "m1",
		Section: SectionCommon,
		Title:   "Blank",
		Points:  10,
		Order:   3,
		Body:    MCQBody{Language: "c", CodeSnippet: "____", Options: []string{"a", "b"}, CorrectOptionIndex: 0},
	}
	raw, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var flat map[string]any
	if err := json.Unmarshal(raw, &flat); err != nil {
		t.Fatalf("unmarshal flat: %v", err)
	}
	if flat["type"] != "mcq" || flat["correctOptionIndex"] != float64(0) {
		t.Fatalf("unexpected wire form %s", raw)
	}
	if _, ok := flat["scenario"]; ok {
		t.Fatalf("mcq wire form must not carry casestudy fields: %s", raw)
	}
}

func TestQuestionPatchAllowList(t *testing.T) {
	if _, err := ParseQuestionPatch([]byte(`{}`)); !errors.Is(err, ErrEmptyUpdate) {
		t.Fatalf("expected empty update error, got %v", err)
	}
	if _, err := ParseQuestionPatch([]byte(`{"id":"other"}`)); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected unknown field error, got %v", err)
	}

	patch, err := ParseQuestionPatch([]byte(`{"type":"casestudy","scenario":"why","acceptedAnswers":["because"],"points":20}`))
	if err != nil {
		t.Fatalf("parse patch: %v", err)
	}
	original := Question{ID: "q1", Section: SectionC, Title: "T", Points: 10, Body: SyntaxBody{CorrectCode: "x"}}
	updated, err := patch.Apply(original)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if updated.ID != "q1" || updated.Type() != TypeCaseStudy || updated.Points != 20 || updated.Title != "T" {
		t.Fatalf("unexpected patched question %+v", updated)
	}
}

func TestParticipantPatchKeepsIdentity(t *testing.T) {
	patch, err := ParseParticipantPatch([]byte(`{"score":30,"submitted":true,"completedAt":2000}`))
	if err != nil {
		t.Fatalf("parse patch: %v", err)
	}
	p := Participant{ID: "p1", Name: "Ada", StartedAt: 1000}
	updated, err := patch.Apply(p)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if updated.ID != "p1" || updated.StartedAt != 1000 || updated.Score != 30 || !updated.Submitted {
		t.Fatalf("unexpected patched participant %+v", updated)
	}
	if !patch.Has("submitted") || patch.Has("name") {
		t.Fatalf("unexpected Has results for %v", patch.Fields())
	}
	if _, err := ParseParticipantPatch([]byte(`{"startedAt":5}`)); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("startedAt must not be patchable, got %v", err)
	}
}
