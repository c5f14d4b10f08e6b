package challenge

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"timed-quiz-service/internal/catalog"
	"timed-quiz-service/internal/domain"
)

// QuestionSource is the remote side of the question cache.
type QuestionSource interface {
	// QuestionsUpdatedAt returns the questions staleness marker, 0 when unset.
	QuestionsUpdatedAt(ctx context.Context) (domain.Millis, error)
	ListQuestions(ctx context.Context) ([]domain.Question, error)
}

// Source tells where a loaded question set came from.
type Source string

const (
	SourceCache            Source = "cache"
	SourceRemote           Source = "remote"
	SourceSnapshotFallback Source = "snapshot-fallback"
	SourceDefaults         Source = "defaults"
)

// LoadResult is the participant-facing question list.
type LoadResult struct {
	// Questions are filtered to the section plus Common and renumbered 1..N.
	Questions []domain.Question
	Source    Source
	// Warning is set when a forced refresh failed and older content was served.
	Warning error
}

// QuestionCache decides between the local snapshot, the remote store and the
// bundled defaults.
type QuestionCache struct {
	source    QuestionSource
	snapshots SnapshotStore
	now       func() time.Time
	logger    *zap.Logger
	sf        singleflight.Group
}

func NewQuestionCache(source QuestionSource, snapshots SnapshotStore, logger *zap.Logger) *QuestionCache {
	if snapshots == nil {
		snapshots = NewMemorySnapshots()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionCache{
		source:    source,
		snapshots: snapshots,
		now:       time.Now,
		logger:    logger,
	}
}

type loaded struct {
	questions []domain.Question
	source    Source
	warning   error
}

// Load returns the questions a participant of section sees. Failures degrade
// to older content and never surface as errors; only a cancelled context does.
func (c *QuestionCache) Load(ctx context.Context, section domain.Section, force bool) (LoadResult, error) {
	if err := ctx.Err(); err != nil {
		return LoadResult{}, err
	}

	key := "cached"
	if force {
		key = "force"
	}
	v, _, _ := c.sf.Do(key, func() (interface{}, error) {
		return c.loadAll(ctx, force), nil
	})
	set := v.(loaded)

	return LoadResult{
		Questions: Renumber(FilterSection(set.questions, section)),
		Source:    set.source,
		Warning:   set.warning,
	}, nil
}

func (c *QuestionCache) loadAll(ctx context.Context, force bool) loaded {
	marker, err := c.source.QuestionsUpdatedAt(ctx)
	if err != nil {
		c.logger.Debug("questions marker unavailable", zap.Error(err))
		marker = 0
	}

	snapshot, haveSnapshot, err := c.snapshots.LoadSnapshot()
	if err != nil {
		c.logger.Warn("question snapshot unreadable", zap.Error(err))
		haveSnapshot = false
	}
	if !force && haveSnapshot && marker <= snapshot.Timestamp {
		if len(snapshot.Data) == 0 {
			return loaded{questions: catalog.Defaults(), source: SourceDefaults}
		}
		return loaded{questions: snapshot.Data, source: SourceCache}
	}

	fetched, err := c.source.ListQuestions(ctx)
	if err != nil {
		var warning error
		if force {
			warning = fmt.Errorf("refresh questions: %w", err)
		}
		c.logger.Warn("question fetch failed", zap.Bool("force", force), zap.Error(err))
		if haveSnapshot && len(snapshot.Data) > 0 {
			return loaded{questions: snapshot.Data, source: SourceSnapshotFallback, warning: warning}
		}
		return loaded{questions: catalog.Defaults(), source: SourceDefaults, warning: warning}
	}

	if err := c.snapshots.SaveSnapshot(domain.Snapshot{Data: fetched, Timestamp: domain.MillisOf(c.now())}); err != nil {
		c.logger.Warn("question snapshot not saved", zap.Error(err))
	}
	if len(fetched) == 0 {
		return loaded{questions: catalog.Defaults(), source: SourceDefaults}
	}
	return loaded{questions: fetched, source: SourceRemote}
}

// FilterSection keeps questions of section and of the shared Common section.
func FilterSection(questions []domain.Question, section domain.Section) []domain.Question {
	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if q.Section == section || q.Section == domain.SectionCommon {
			out = append(out, q)
		}
	}
	return out
}

// Renumber sorts a copy of questions by stored order and rewrites order as 1..N.
func Renumber(questions []domain.Question) []domain.Question {
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	for i := range out {
		out[i].Order = i + 1
	}
	return out
}
