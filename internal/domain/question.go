package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Section is a participant track. Common questions are shown to every track.
type Section string

const (
	SectionC      Section = "C"
	SectionPython Section = "Python"
	SectionOther  Section = "Other"
	SectionCommon Section = "Common"
)

// Sections lists every section a question may belong to.
var Sections = []Section{SectionC, SectionPython, SectionOther, SectionCommon}

// ParseSection validates raw, defaulting an empty value to Other.
func ParseSection(raw string) (Section, error) {
	s := Section(strings.TrimSpace(raw))
	if s == "" {
		return SectionOther, nil
	}
	for _, known := range Sections {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSection, raw)
}

// Selectable reports whether participants may register for the section.
func (s Section) Selectable() bool {
	return s == SectionC || s == SectionPython || s == SectionOther
}

// QuestionType discriminates the question variants.
type QuestionType string

const (
	TypeSyntax    QuestionType = "syntax"
	TypeMCQ       QuestionType = "mcq"
	TypeCaseStudy QuestionType = "casestudy"
)

// QuestionBody is the variant-specific part of a question. The set of
// implementations is closed: SyntaxBody, MCQBody and CaseStudyBody.
type QuestionBody interface {
	Type() QuestionType
	sealed()
}

// SyntaxBody asks the participant to fix BuggyCode; CorrectCode is the key.
type SyntaxBody struct {
	Language    string
	BuggyCode   string
	CorrectCode string
}

// MCQBody asks the participant to pick the option that fills the blank in CodeSnippet.
// A negative CorrectOptionIndex means the key is missing and no answer matches.
type MCQBody struct {
	Language           string
	CodeSnippet        string
	Options            []string
	CorrectOptionIndex int
}

// CaseStudyBody accepts any of AcceptedAnswers, case-insensitively.
type CaseStudyBody struct {
	Scenario        string
	AcceptedAnswers []string
}

func (SyntaxBody) Type() QuestionType    { return TypeSyntax }
func (MCQBody) Type() QuestionType       { return TypeMCQ }
func (CaseStudyBody) Type() QuestionType { return TypeCaseStudy }

func (SyntaxBody) sealed()    {}
func (MCQBody) sealed()       {}
func (CaseStudyBody) sealed() {}

// Question is a single challenge item. Order is a display rank; it is not
// unique and is renumbered per participant when questions are loaded.
type Question struct {
	ID          string
	Section     Section
	Title       string
	Description string
	Points      int
	Order       int
	Body        QuestionBody
}

// Type returns the variant discriminant, or "" when the body is unset.
func (q Question) Type() QuestionType {
	if q.Body == nil {
		return ""
	}
	return q.Body.Type()
}

// questionWire is the flat JSON representation shared with the store and clients.
type questionWire struct {
	ID                 string       `json:"id,omitempty"`
	Type               QuestionType `json:"type"`
	Section            Section      `json:"section"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	Points             lenientInt   `json:"points"`
	Order              lenientInt   `json:"order"`
	Language           string       `json:"language,omitempty"`
	BuggyCode          *string      `json:"buggyCode,omitempty"`
	CorrectCode        *string      `json:"correctCode,omitempty"`
	CodeSnippet        *string      `json:"codeSnippet,omitempty"`
	Options            []string     `json:"options,omitempty"`
	CorrectOptionIndex *lenientInt  `json:"correctOptionIndex,omitempty"`
	Scenario           *string      `json:"scenario,omitempty"`
	AcceptedAnswers    []string     `json:"acceptedAnswers,omitempty"`
}

func (q Question) MarshalJSON() ([]byte, error) {
	w := questionWire{
		ID:          q.ID,
		Section:     q.Section,
		Title:       q.Title,
		Description: q.Description,
		Points:      lenientInt(q.Points),
		Order:       lenientInt(q.Order),
	}
	switch body := q.Body.(type) {
	case SyntaxBody:
		w.Type = TypeSyntax
		w.Language = body.Language
		w.BuggyCode = &body.BuggyCode
		w.CorrectCode = &body.CorrectCode
	case MCQBody:
		w.Type = TypeMCQ
		w.Language = body.Language
		w.CodeSnippet = &body.CodeSnippet
		w.Options = body.Options
		idx := lenientInt(body.CorrectOptionIndex)
		w.CorrectOptionIndex = &idx
	case CaseStudyBody:
		w.Type = TypeCaseStudy
		w.Scenario = &body.Scenario
		w.AcceptedAnswers = body.AcceptedAnswers
	default:
		return nil, fmt.Errorf("marshal question %s: %w", q.ID, ErrUnknownQuestionType)
	}
	return json.Marshal(w)
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var w questionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	section, err := ParseSection(string(w.Section))
	if err != nil {
		return err
	}

	out := Question{
		ID:          w.ID,
		Section:     section,
		Title:       w.Title,
		Description: w.Description,
		Points:      int(w.Points),
		Order:       int(w.Order),
	}
	switch w.Type {
	case TypeSyntax:
		out.Body = SyntaxBody{
			Language:    w.Language,
			BuggyCode:   deref(w.BuggyCode),
			CorrectCode: deref(w.CorrectCode),
		}
	case TypeMCQ:
		idx := -1
		if w.CorrectOptionIndex != nil {
			idx = int(*w.CorrectOptionIndex)
		}
		out.Body = MCQBody{
			Language:           w.Language,
			CodeSnippet:        deref(w.CodeSnippet),
			Options:            w.Options,
			CorrectOptionIndex: idx,
		}
	case TypeCaseStudy:
		out.Body = CaseStudyBody{
			Scenario:        deref(w.Scenario),
			AcceptedAnswers: w.AcceptedAnswers,
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownQuestionType, w.Type)
	}
	*q = out
	return nil
}

// lenientInt decodes numbers, numeric strings and junk alike; junk becomes 0.
type lenientInt int

func (n *lenientInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = clampInt(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*n = clampInt(f)
			return nil
		}
	}
	*n = 0
	return nil
}

func clampInt(f float64) lenientInt {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0
	}
	return lenientInt(int(f))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
