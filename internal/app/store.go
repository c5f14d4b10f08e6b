package app

import (
	"context"

	"timed-quiz-service/internal/domain"
)

// Collection names a keyed document collection.
type Collection string

const (
	CollectionSettings Collection = "settings"
	CollectionMetadata Collection = "metadata"
)

// Document is a schemaless settings or metadata object.
type Document map[string]any

// QuestionStore persists question items.
type QuestionStore interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
	// PutQuestions creates or replaces each question by ID.
	PutQuestions(ctx context.Context, questions ...domain.Question) error
	// DeleteQuestions removes the given IDs. Unknown IDs are ignored. Callers keep
	// len(ids) within BatchWriteLimit.
	DeleteQuestions(ctx context.Context, ids []string) error
}

// ParticipantStore persists participant items.
type ParticipantStore interface {
	ListParticipants(ctx context.Context) ([]domain.Participant, error)
	GetParticipant(ctx context.Context, id string) (domain.Participant, error)
	PutParticipant(ctx context.Context, participant domain.Participant) error
	// DeleteAllParticipants removes every participant and reports how many were removed.
	DeleteAllParticipants(ctx context.Context) (int, error)
}

// DocumentStore persists settings and metadata documents.
type DocumentStore interface {
	// GetDocument returns false when no document is stored under key.
	GetDocument(ctx context.Context, collection Collection, key string) (Document, bool, error)
	PutDocument(ctx context.Context, collection Collection, key string, doc Document) error
}

// Store is the persistent store behind the HTTP surface (memory, Redis or Postgres).
type Store interface {
	QuestionStore
	ParticipantStore
	DocumentStore
}

// BatchWriteLimit caps how many items a single store batch write may carry.
const BatchWriteLimit = 25
