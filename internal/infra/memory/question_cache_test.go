package memory

import (
	"context"
	"testing"
	"time"

	"timed-quiz-service/internal/domain"
)

type countingStore struct {
	*Store
	lists int
}

func (s *countingStore) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	s.lists++
	return s.Store.ListQuestions(ctx)
}

func TestQuestionCacheCaches(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{Store: NewStore()}
	_ = backing.PutQuestions(ctx, domain.Question{ID: "q1", Points: 1, Body: domain.SyntaxBody{}})
	cache := NewQuestionCache(backing, time.Minute)

	for i := 0; i < 3; i++ {
		list, err := cache.ListQuestions(ctx)
		if err != nil {
			t.Fatalf("list questions: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("expected 1 question, got %d", len(list))
		}
	}
	if backing.lists != 1 {
		t.Fatalf("expected store scanned once, got %d", backing.lists)
	}
}

func TestQuestionCacheInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{Store: NewStore()}
	cache := NewQuestionCache(backing, time.Minute)

	if list, _ := cache.ListQuestions(ctx); len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}
	if err := cache.PutQuestions(ctx, domain.Question{ID: "q1", Body: domain.SyntaxBody{}}); err != nil {
		t.Fatalf("put questions: %v", err)
	}
	list, _ := cache.ListQuestions(ctx)
	if len(list) != 1 || backing.lists != 2 {
		t.Fatalf("expected refreshed list after write, got %d questions / %d scans", len(list), backing.lists)
	}

	if err := cache.DeleteQuestions(ctx, []string{"q1"}); err != nil {
		t.Fatalf("delete questions: %v", err)
	}
	if list, _ := cache.ListQuestions(ctx); len(list) != 0 {
		t.Fatalf("expected empty list after delete, got %d", len(list))
	}
}

func TestQuestionCacheExpires(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{Store: NewStore()}
	cache := NewQuestionCache(backing, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	cache.clock = func() time.Time { return now }

	_, _ = cache.ListQuestions(ctx)
	now = now.Add(2 * time.Minute)
	_, _ = cache.ListQuestions(ctx)
	if backing.lists != 2 {
		t.Fatalf("expected reload after expiry, got %d scans", backing.lists)
	}
}
