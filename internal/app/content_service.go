package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/evaluator"
)

const (
	// QuestionsMetaKey is the metadata document whose lastUpdated marks question staleness.
	QuestionsMetaKey = "questions"
	// ConfigSettingsKey holds event-wide switches such as isQuizActive.
	ConfigSettingsKey = "config"
	// AdminSecretHeader carries the shared admin secret on mutating admin routes.
	AdminSecretHeader = "X-Admin-Secret"
)

// Options tunes a ContentService.
type Options struct {
	// VerifyScores re-runs the evaluator on submitted answers instead of trusting client scores.
	VerifyScores bool
	Hub          *LeaderboardHub
	Metrics      *Metrics
	Now          func() time.Time
	NewID        func() string
}

// ContentService contains the admin and participant use cases behind the HTTP surface.
type ContentService struct {
	store    Store
	hub      *LeaderboardHub
	metrics  *Metrics
	logger   *zap.Logger
	validate *validator.Validate
	verify   bool
	now      func() time.Time
	newID    func() string
}

func NewContentService(store Store, logger *zap.Logger, opts Options) *ContentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	return &ContentService{
		store:    store,
		hub:      opts.Hub,
		metrics:  opts.Metrics,
		logger:   logger,
		validate: validator.New(),
		verify:   opts.VerifyScores,
		now:      opts.Now,
		newID:    opts.NewID,
	}
}

// GetSettings returns the stored settings object, or an empty one.
func (s *ContentService) GetSettings(ctx context.Context, key string) (Document, error) {
	return s.getDocument(ctx, CollectionSettings, key)
}

// PutSettings replaces the settings object stored under key.
func (s *ContentService) PutSettings(ctx context.Context, key string, doc Document) error {
	return s.putDocument(ctx, CollectionSettings, "configKey", key, doc)
}

// GetMetadata returns the stored metadata object, or an empty one.
func (s *ContentService) GetMetadata(ctx context.Context, key string) (Document, error) {
	return s.getDocument(ctx, CollectionMetadata, key)
}

// PutMetadata replaces the metadata object stored under key.
func (s *ContentService) PutMetadata(ctx context.Context, key string, doc Document) error {
	return s.putDocument(ctx, CollectionMetadata, "metaKey", key, doc)
}

// RegistrationOpen reports config.isQuizActive, which defaults to true.
func (s *ContentService) RegistrationOpen(ctx context.Context) (bool, error) {
	doc, err := s.GetSettings(ctx, ConfigSettingsKey)
	if err != nil {
		return false, err
	}
	active, ok := doc["isQuizActive"].(bool)
	if !ok {
		return true, nil
	}
	return active, nil
}

// SetRegistrationOpen toggles whether the event accepts new participants.
func (s *ContentService) SetRegistrationOpen(ctx context.Context, open bool) error {
	return s.PutSettings(ctx, ConfigSettingsKey, Document{"isQuizActive": open})
}

// ListQuestions returns every stored question, unsorted.
func (s *ContentService) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	return s.store.ListQuestions(ctx)
}

// CreateQuestion stores q under a fresh ID.
func (s *ContentService) CreateQuestion(ctx context.Context, q domain.Question) (string, error) {
	if q.Body == nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidInput, domain.ErrUnknownQuestionType)
	}
	q.ID = s.newID()
	if err := s.store.PutQuestions(ctx, q); err != nil {
		return "", fmt.Errorf("create question: %w", err)
	}
	if err := s.touchQuestions(ctx); err != nil {
		return "", err
	}
	s.logger.Info("question created", zap.String("id", q.ID), zap.String("type", string(q.Type())))
	return q.ID, nil
}

// UpdateQuestion applies an allow-listed partial update.
func (s *ContentService) UpdateQuestion(ctx context.Context, id string, patch domain.QuestionPatch) error {
	current, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return err
	}
	updated, err := patch.Apply(current)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if err := s.store.PutQuestions(ctx, updated); err != nil {
		return fmt.Errorf("update question %s: %w", id, err)
	}
	s.logger.Info("question updated", zap.String("id", id), zap.Strings("fields", patch.Fields()))
	return s.touchQuestions(ctx)
}

// DeleteQuestion removes a single question.
func (s *ContentService) DeleteQuestion(ctx context.Context, id string) error {
	if err := s.store.DeleteQuestions(ctx, []string{id}); err != nil {
		return fmt.Errorf("delete question %s: %w", id, err)
	}
	s.logger.Info("question deleted", zap.String("id", id))
	return s.touchQuestions(ctx)
}

// ListParticipants returns every stored participant.
func (s *ContentService) ListParticipants(ctx context.Context) ([]domain.Participant, error) {
	return s.store.ListParticipants(ctx)
}

// CreateParticipant registers a participant with score 0 and submitted=false.
func (s *ContentService) CreateParticipant(ctx context.Context, reg domain.Registration) (string, error) {
	if err := s.validate.Struct(reg); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	open, err := s.RegistrationOpen(ctx)
	if err != nil {
		return "", err
	}
	if !open {
		return "", domain.ErrRegistrationClosed
	}

	now := s.now()
	participant := reg.Participant()
	participant.ID = s.newID()
	participant.CreatedAt = &now
	if participant.StartedAt == 0 {
		participant.StartedAt = domain.MillisOf(now)
	}
	if err := s.store.PutParticipant(ctx, participant); err != nil {
		return "", fmt.Errorf("create participant: %w", err)
	}
	s.logger.Info("participant registered",
		zap.String("id", participant.ID),
		zap.String("section", string(participant.Section)),
	)
	s.publishLeaderboard(ctx)
	return participant.ID, nil
}

// UpdateParticipant applies an allow-listed partial update. Submitted
// participants are frozen; replaying the stored final submission succeeds
// without writing.
func (s *ContentService) UpdateParticipant(ctx context.Context, id string, patch domain.ParticipantPatch) error {
	current, err := s.store.GetParticipant(ctx, id)
	if err != nil {
		return err
	}
	updated, err := patch.Apply(current)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if current.Submitted {
		if isResubmission(current, updated) {
			s.logger.Info("duplicate submission ignored", zap.String("id", id))
			return nil
		}
		return domain.ErrAlreadySubmitted
	}
	if s.verify && patch.Has("answers") {
		if updated, err = s.rescore(ctx, updated); err != nil {
			return err
		}
	}
	if err := s.store.PutParticipant(ctx, updated); err != nil {
		return fmt.Errorf("update participant %s: %w", id, err)
	}
	if updated.Submitted {
		s.metrics.Submissions.Inc()
		s.logger.Info("participant submitted",
			zap.String("id", id),
			zap.Int("score", updated.Score),
			zap.Int("total_points", updated.TotalPoints),
		)
	}
	s.publishLeaderboard(ctx)
	return nil
}

// DeleteAllParticipants clears the participant collection.
func (s *ContentService) DeleteAllParticipants(ctx context.Context) (int, error) {
	deleted, err := s.store.DeleteAllParticipants(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete participants: %w", err)
	}
	s.logger.Warn("participants cleared", zap.Int("deleted", deleted))
	s.publishLeaderboard(ctx)
	return deleted, nil
}

// Leaderboard ranks every participant.
func (s *ContentService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	participants, err := s.store.ListParticipants(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.RankParticipants(participants, s.now()), nil
}

// SubscribeLeaderboard streams leaderboard snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ContentService) SubscribeLeaderboard(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	if s.hub == nil {
		return nil, nil, errors.New("leaderboard streaming is not enabled")
	}
	lb, err := s.Leaderboard(ctx)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe(lb)
	return ch, cancel, nil
}

// isResubmission reports whether updated replays the final write already
// stored in current, as a client does when the first response was lost.
func isResubmission(current, updated domain.Participant) bool {
	if !updated.Submitted || updated.CompletedAt != current.CompletedAt || len(updated.Answers) != len(current.Answers) {
		return false
	}
	stored := make(map[string]string, len(current.Answers))
	for _, a := range current.Answers {
		stored[a.QuestionID] = a.UserAnswer
	}
	for _, a := range updated.Answers {
		if answer, ok := stored[a.QuestionID]; !ok || answer != a.UserAnswer {
			return false
		}
	}
	return true
}

// rescore replaces client-computed scoring with the server's own evaluation.
func (s *ContentService) rescore(ctx context.Context, p domain.Participant) (domain.Participant, error) {
	questions, err := s.store.ListQuestions(ctx)
	if err != nil {
		return p, fmt.Errorf("load answer keys: %w", err)
	}
	visible := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if q.Section == p.Section || q.Section == domain.SectionCommon {
			visible = append(visible, q)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		if visible[i].Order != visible[j].Order {
			return visible[i].Order < visible[j].Order
		}
		return visible[i].ID < visible[j].ID
	})
	submitted := make(map[string]string, len(p.Answers))
	for _, a := range p.Answers {
		submitted[a.QuestionID] = a.UserAnswer
	}

	answers, score, total := evaluator.EvaluateAll(visible, submitted)
	if score != p.Score {
		s.logger.Warn("client score differs from server evaluation",
			zap.String("id", p.ID),
			zap.Int("client_score", p.Score),
			zap.Int("server_score", score),
		)
	}
	p.Answers, p.Score, p.TotalPoints = answers, score, total
	return p, nil
}

// touchQuestions bumps the staleness marker read by participant caches.
func (s *ContentService) touchQuestions(ctx context.Context) error {
	doc := Document{"metaKey": QuestionsMetaKey, "lastUpdated": int64(domain.MillisOf(s.now()))}
	if err := s.store.PutDocument(ctx, CollectionMetadata, QuestionsMetaKey, doc); err != nil {
		return fmt.Errorf("update questions metadata: %w", err)
	}
	return nil
}

func (s *ContentService) publishLeaderboard(ctx context.Context) {
	if s.hub == nil {
		return
	}
	lb, err := s.Leaderboard(ctx)
	if err != nil {
		s.logger.Warn("leaderboard refresh failed", zap.Error(err))
		return
	}
	s.hub.Publish(lb)
}

func (s *ContentService) getDocument(ctx context.Context, collection Collection, key string) (Document, error) {
	doc, ok, err := s.store.GetDocument(ctx, collection, key)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	if !ok {
		return Document{}, nil
	}
	return doc, nil
}

func (s *ContentService) putDocument(ctx context.Context, collection Collection, keyField, key string, doc Document) error {
	stored := make(Document, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored[keyField] = key
	if err := s.store.PutDocument(ctx, collection, key, stored); err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, key, err)
	}
	return nil
}
