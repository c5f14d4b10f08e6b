package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// QuestionCache caches the full question list in Redis in front of a slower
// store. It is shared by every server instance; question writes going
// through it delete the cached list and bump a version key, and a fill only
// lands when the version it started from is still current.
type QuestionCache struct {
	app.Store
	client     *redis.Client
	key        string
	versionKey string
	ttl    time.Duration
	logger *zap.Logger
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(store app.Store, client *redis.Client, ttl time.Duration, logger *zap.Logger) *QuestionCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionCache{
		Store:  store,
		client: client,
		key:        "quiz:questions:list",
		versionKey: "quiz:questions:list:version",
		ttl:        ttl,
		logger:     logger,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	if cached, ok := c.cached(ctx); ok {
		return cached, nil
	}

	result, err, _ := c.sf.Do(c.key, func() (interface{}, error) {
		// Re-check cache in case another instance filled it.
		if cached, ok := c.cached(ctx); ok {
			return cached, nil
		}
		version, err := c.version(ctx)
		if err != nil {
			c.logger.Warn("question list cache version unavailable", zap.Error(err))
		}
		questions, err := c.Store.ListQuestions(ctx)
		if err != nil {
			return nil, err
		}
		if version < 0 {
			return questions, nil
		}
		if err := c.fill(ctx, version, questions); err != nil {
			// serving from the store still works; the next read retries the fill
			c.logger.Warn("question list cache fill failed", zap.Error(err))
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Question(nil), result.([]domain.Question)...), nil
}

func (c *QuestionCache) PutQuestions(ctx context.Context, questions ...domain.Question) error {
	if err := c.Store.PutQuestions(ctx, questions...); err != nil {
		return err
	}
	return c.Invalidate(ctx)
}

func (c *QuestionCache) DeleteQuestions(ctx context.Context, ids []string) error {
	if err := c.Store.DeleteQuestions(ctx, ids); err != nil {
		return err
	}
	return c.Invalidate(ctx)
}

// Invalidate drops the cached list and bumps the version so fills that
// started before the write are discarded.
func (c *QuestionCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.versionKey)
		pipe.Del(ctx, c.key)
		return nil
	})
	return err
}

// version returns the current list version, 0 when unset and -1 on error.
func (c *QuestionCache) version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return -1, err
	}
	return v, nil
}

// fill stores questions unless the list was invalidated after version was read.
func (c *QuestionCache) fill(ctx context.Context, version int64, questions []domain.Question) error {
	raw, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, c.versionKey).Int64()
		if errors.Is(err, redis.Nil) {
			current, err = 0, nil
		}
		if err != nil {
			return err
		}
		if current != version {
			c.logger.Debug("question list changed while loading, skipping cache fill")
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key, raw, c.ttlWithJitter())
			return nil
		})
		return err
	}, c.versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *QuestionCache) cached(ctx context.Context) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
