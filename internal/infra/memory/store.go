package memory

import (
	"context"
	"encoding/json"
	"sync"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// Store is an in-memory implementation of app.Store.
type Store struct {
	mu           sync.RWMutex
	questions    map[string]domain.Question
	participants map[string]domain.Participant
	documents    map[app.Collection]map[string]app.Document
}

func NewStore() *Store {
	return &Store{
		questions:    make(map[string]domain.Question),
		participants: make(map[string]domain.Participant),
		documents:    make(map[app.Collection]map[string]app.Document),
	}
}

func (s *Store) ListQuestions(_ context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, q)
	}
	return out, nil
}

func (s *Store) GetQuestion(_ context.Context, id string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *Store) PutQuestions(_ context.Context, questions ...domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		s.questions[q.ID] = q
	}
	return nil
}

func (s *Store) DeleteQuestions(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.questions, id)
	}
	return nil
}

func (s *Store) ListParticipants(_ context.Context) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, cloneParticipant(p))
	}
	return out, nil
}

func (s *Store) GetParticipant(_ context.Context, id string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return cloneParticipant(p), nil
}

func (s *Store) PutParticipant(_ context.Context, participant domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[participant.ID] = cloneParticipant(participant)
	return nil
}

func (s *Store) DeleteAllParticipants(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.participants)
	s.participants = make(map[string]domain.Participant)
	return n, nil
}

func (s *Store) GetDocument(_ context.Context, collection app.Collection, key string) (app.Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[collection][key]
	if !ok {
		return nil, false, nil
	}
	out, err := cloneDocument(doc)
	return out, true, err
}

func (s *Store) PutDocument(_ context.Context, collection app.Collection, key string, doc app.Document) error {
	// round-trip through JSON so reads look like they came off the wire
	stored, err := cloneDocument(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.documents[collection] == nil {
		s.documents[collection] = make(map[string]app.Document)
	}
	s.documents[collection][key] = stored
	return nil
}

func cloneParticipant(p domain.Participant) domain.Participant {
	if p.Answers != nil {
		answers := make([]domain.Answer, len(p.Answers))
		copy(answers, p.Answers)
		p.Answers = answers
	}
	return p
}

func cloneDocument(doc app.Document) (app.Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out app.Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
