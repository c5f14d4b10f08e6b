package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// QuestionCache keeps the full question list in process memory with a TTL to
// avoid repeated store scans. Writes through the cache invalidate it.
type QuestionCache struct {
	app.Store
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu        sync.RWMutex
	questions []domain.Question
	expiresAt time.Time
	gen       uint64
}

func NewQuestionCache(store app.Store, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		Store: store,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	if cached, ok := c.cached(c.clock()); ok {
		return cached, nil
	}

	result, err, _ := c.sf.Do("questions", func() (interface{}, error) {
		if cached, ok := c.cached(c.clock()); ok {
			return cached, nil
		}
		c.mu.RLock()
		gen := c.gen
		c.mu.RUnlock()

		questions, err := c.Store.ListQuestions(ctx)
		if err != nil {
			return nil, err
		}
		if questions == nil {
			questions = []domain.Question{}
		}

		c.mu.Lock()
		// a write landed mid-fetch; serve the result but do not cache it
		if c.gen == gen {
			c.questions = questions
			c.expiresAt = c.clock().Add(c.ttlWithJitter())
		}
		c.mu.Unlock()
		return append([]domain.Question(nil), questions...), nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Question(nil), result.([]domain.Question)...), nil
}

func (c *QuestionCache) PutQuestions(ctx context.Context, questions ...domain.Question) error {
	defer c.Invalidate()
	return c.Store.PutQuestions(ctx, questions...)
}

func (c *QuestionCache) DeleteQuestions(ctx context.Context, ids []string) error {
	defer c.Invalidate()
	return c.Store.DeleteQuestions(ctx, ids)
}

// Invalidate drops the cached list.
func (c *QuestionCache) Invalidate() {
	c.mu.Lock()
	c.questions = nil
	c.expiresAt = time.Time{}
	c.gen++
	c.mu.Unlock()
}

func (c *QuestionCache) cached(now time.Time) ([]domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.questions == nil || !c.expiresAt.After(now) {
		return nil, false
	}
	return append([]domain.Question(nil), c.questions...), true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
