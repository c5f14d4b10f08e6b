package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// Store is an app.Store on Redis hashes, one hash per collection:
//
//	HSET quiz:questions    {id}  {question json}
//	HSET quiz:participants {id}  {participant json}
//	HSET quiz:settings     {key} {document json}
//	HSET quiz:metadata     {key} {document json}
type Store struct {
	client *redis.Client
	prefix string
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client, prefix: "quiz:"}
}

func (s *Store) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	raw, err := s.client.HVals(ctx, s.key("questions")).Result()
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return decodeAll[domain.Question](raw)
}

func (s *Store) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	var q domain.Question
	err := s.get(ctx, s.key("questions"), id, &q)
	if errors.Is(err, redis.Nil) {
		return q, domain.ErrQuestionNotFound
	}
	return q, err
}

func (s *Store) PutQuestions(ctx context.Context, questions ...domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	values := make([]any, 0, 2*len(questions))
	for _, q := range questions {
		raw, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("encode question %s: %w", q.ID, err)
		}
		values = append(values, q.ID, raw)
	}
	return s.client.HSet(ctx, s.key("questions"), values...).Err()
}

func (s *Store) DeleteQuestions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.client.HDel(ctx, s.key("questions"), ids...).Err()
}

func (s *Store) ListParticipants(ctx context.Context) ([]domain.Participant, error) {
	raw, err := s.client.HVals(ctx, s.key("participants")).Result()
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return decodeAll[domain.Participant](raw)
}

func (s *Store) GetParticipant(ctx context.Context, id string) (domain.Participant, error) {
	var p domain.Participant
	err := s.get(ctx, s.key("participants"), id, &p)
	if errors.Is(err, redis.Nil) {
		return p, domain.ErrParticipantNotFound
	}
	return p, err
}

func (s *Store) PutParticipant(ctx context.Context, participant domain.Participant) error {
	raw, err := json.Marshal(participant)
	if err != nil {
		return fmt.Errorf("encode participant %s: %w", participant.ID, err)
	}
	return s.client.HSet(ctx, s.key("participants"), participant.ID, raw).Err()
}

// DeleteAllParticipants counts and drops the hash in one MULTI/EXEC.
func (s *Store) DeleteAllParticipants(ctx context.Context) (int, error) {
	var count *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.HLen(ctx, s.key("participants"))
		pipe.Del(ctx, s.key("participants"))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete participants: %w", err)
	}
	return int(count.Val()), nil
}

func (s *Store) GetDocument(ctx context.Context, collection app.Collection, key string) (app.Document, bool, error) {
	var doc app.Document
	err := s.get(ctx, s.key(string(collection)), key, &doc)
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *Store) PutDocument(ctx context.Context, collection app.Collection, key string, doc app.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	return s.client.HSet(ctx, s.key(string(collection)), key, raw).Err()
}

func (s *Store) get(ctx context.Context, hash, field string, dst any) error {
	raw, err := s.client.HGet(ctx, hash, field).Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s %s: %w", hash, field, err)
	}
	return nil
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

func decodeAll[T any](raw []string) ([]T, error) {
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		var v T
		if err := json.Unmarshal([]byte(item), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
