package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// Store keeps every item as a JSONB document keyed by id. The schema lives in
// the migrations package.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM questions`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return scanAll[domain.Question](rows)
}

func (s *Store) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	var q domain.Question
	err := s.getOne(ctx, `SELECT data FROM questions WHERE id=$1`, id, &q)
	if errors.Is(err, pgx.ErrNoRows) {
		return q, domain.ErrQuestionNotFound
	}
	return q, err
}

func (s *Store) PutQuestions(ctx context.Context, questions ...domain.Question) error {
	batch := &pgx.Batch{}
	for _, q := range questions {
		raw, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("encode question %s: %w", q.ID, err)
		}
		batch.Queue(`INSERT INTO questions (id, data) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, updated_at=now()`, q.ID, raw)
	}
	if batch.Len() == 0 {
		return nil
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range questions {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("put questions: %w", err)
		}
	}
	return nil
}

func (s *Store) DeleteQuestions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}
	return nil
}

func (s *Store) ListParticipants(ctx context.Context) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM participants ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return scanAll[domain.Participant](rows)
}

func (s *Store) GetParticipant(ctx context.Context, id string) (domain.Participant, error) {
	var p domain.Participant
	err := s.getOne(ctx, `SELECT data FROM participants WHERE id=$1`, id, &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, domain.ErrParticipantNotFound
	}
	return p, err
}

func (s *Store) PutParticipant(ctx context.Context, participant domain.Participant) error {
	raw, err := json.Marshal(participant)
	if err != nil {
		return fmt.Errorf("encode participant %s: %w", participant.ID, err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO participants (id, data) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, participant.ID, raw)
	if err != nil {
		return fmt.Errorf("put participant %s: %w", participant.ID, err)
	}
	return nil
}

func (s *Store) DeleteAllParticipants(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM participants`)
	if err != nil {
		return 0, fmt.Errorf("delete participants: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) GetDocument(ctx context.Context, collection app.Collection, key string) (app.Document, bool, error) {
	table, err := documentTable(collection)
	if err != nil {
		return nil, false, err
	}
	var doc app.Document
	err = s.getOne(ctx, `SELECT data FROM `+table+` WHERE key=$1`, key, &doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *Store) PutDocument(ctx context.Context, collection app.Collection, key string, doc app.Document) error {
	table, err := documentTable(collection)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO `+table+` (key, data) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET data=EXCLUDED.data`, key, raw)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *Store) getOne(ctx context.Context, query, id string, dst any) error {
	var raw []byte
	if err := s.pool.QueryRow(ctx, query, id).Scan(&raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal %s: %w", id, err)
	}
	return nil
}

func documentTable(collection app.Collection) (string, error) {
	switch collection {
	case app.CollectionSettings:
		return "settings", nil
	case app.CollectionMetadata:
		return "metadata", nil
	default:
		return "", fmt.Errorf("unknown collection %q", collection)
	}
}

func scanAll[T any](rows pgx.Rows) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
