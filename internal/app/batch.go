package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"timed-quiz-service/internal/catalog"
	"timed-quiz-service/internal/domain"
)

// Batch actions accepted by POST /questions/batch.
const (
	BatchSeed           = "seed"
	BatchBulkImport     = "bulkImport"
	BatchDeleteSelected = "deleteSelected"
	BatchRenumber       = "renumber"
	BatchMoveSection    = "moveSection"
)

// OrderUpdate assigns an explicit order to one question.
type OrderUpdate struct {
	ID    string `json:"id" validate:"required"`
	Order int    `json:"order"`
}

// BatchRequest is the envelope for every batch action. Only the fields the
// action reads need to be set.
type BatchRequest struct {
	Action  string            `json:"action"`
	Items   []domain.Question `json:"items,omitempty"`
	IDs     []string          `json:"ids,omitempty" validate:"omitempty,dive,required"`
	Updates []OrderUpdate     `json:"updates,omitempty" validate:"omitempty,dive"`
	Section string            `json:"section,omitempty"`
}

// BatchResult mirrors the wire response: created for seed and import,
// deleted for deleteSelected, success alone otherwise.
type BatchResult struct {
	Success bool `json:"success"`
	Created *int `json:"created,omitempty"`
	Deleted *int `json:"deleted,omitempty"`
}

// Batch runs a multi-item question action and touches the questions marker once.
func (s *ContentService) Batch(ctx context.Context, req BatchRequest) (BatchResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return BatchResult{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	var (
		result BatchResult
		count  int
		err    error
		// wrote is set once any store write was attempted
		wrote bool
	)
	switch req.Action {
	case BatchSeed:
		items := req.Items
		if len(items) == 0 {
			items = catalog.WithoutIDs(catalog.Defaults())
		}
		count, err = s.importQuestions(ctx, items, &wrote)
		result = BatchResult{Success: err == nil, Created: &count}
	case BatchBulkImport:
		count, err = s.importQuestions(ctx, req.Items, &wrote)
		result = BatchResult{Success: err == nil, Created: &count}
	case BatchDeleteSelected:
		count, err = s.deleteQuestions(ctx, req.IDs, &wrote)
		result = BatchResult{Success: err == nil, Deleted: &count}
	case BatchRenumber:
		count, err = s.renumber(ctx, req.Updates, &wrote)
		result = BatchResult{Success: err == nil}
	case BatchMoveSection:
		count, err = s.moveSection(ctx, req.IDs, req.Section, &wrote)
		result = BatchResult{Success: err == nil}
	default:
		return BatchResult{}, fmt.Errorf("%w: %s", domain.ErrUnknownBatchAction, req.Action)
	}
	if err != nil {
		// earlier chunks may have landed; readers must still see a new marker
		if wrote {
			if touchErr := s.touchQuestions(ctx); touchErr != nil {
				s.logger.Error("batch failed and marker update failed", zap.String("action", req.Action), zap.Error(touchErr))
			}
		}
		return BatchResult{}, err
	}

	s.metrics.BatchItems.WithLabelValues(req.Action).Add(float64(count))
	s.logger.Info("batch applied", zap.String("action", req.Action), zap.Int("items", count))
	if err := s.touchQuestions(ctx); err != nil {
		return BatchResult{}, err
	}
	return result, nil
}

func (s *ContentService) importQuestions(ctx context.Context, items []domain.Question, wrote *bool) (int, error) {
	questions := make([]domain.Question, 0, len(items))
	for i, q := range items {
		if q.Body == nil {
			return 0, fmt.Errorf("%w: item %d: %w", domain.ErrInvalidInput, i, domain.ErrUnknownQuestionType)
		}
		q.ID = s.newID()
		questions = append(questions, q)
	}
	if err := s.putChunks(ctx, questions, wrote); err != nil {
		return 0, fmt.Errorf("import questions: %w", err)
	}
	return len(questions), nil
}

// deleteQuestions removes ids in store-sized chunks, concurrently.
func (s *ContentService) deleteQuestions(ctx context.Context, ids []string, wrote *bool) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	for _, chunk := range chunks(ids, BatchWriteLimit) {
		*wrote = true
		g.Go(func() error {
			return s.store.DeleteQuestions(gctx, chunk)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("delete questions: %w", err)
	}
	return len(ids), nil
}

func (s *ContentService) renumber(ctx context.Context, updates []OrderUpdate, wrote *bool) (int, error) {
	questions := make([]domain.Question, 0, len(updates))
	for _, u := range updates {
		q, err := s.store.GetQuestion(ctx, u.ID)
		if err != nil {
			return 0, err
		}
		q.Order = u.Order
		questions = append(questions, q)
	}
	if err := s.putChunks(ctx, questions, wrote); err != nil {
		return 0, fmt.Errorf("renumber questions: %w", err)
	}
	return len(questions), nil
}

func (s *ContentService) moveSection(ctx context.Context, ids []string, raw string, wrote *bool) (int, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: section is required", domain.ErrInvalidInput)
	}
	section, err := domain.ParseSection(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	questions := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		q, err := s.store.GetQuestion(ctx, id)
		if err != nil {
			return 0, err
		}
		q.Section = section
		questions = append(questions, q)
	}
	if err := s.putChunks(ctx, questions, wrote); err != nil {
		return 0, fmt.Errorf("move questions: %w", err)
	}
	return len(questions), nil
}

// putChunks writes questions BatchWriteLimit at a time, in order.
func (s *ContentService) putChunks(ctx context.Context, questions []domain.Question, wrote *bool) error {
	for _, chunk := range chunks(questions, BatchWriteLimit) {
		*wrote = true
		if err := s.store.PutQuestions(ctx, chunk...); err != nil {
			return err
		}
	}
	return nil
}

func chunks[T any](items []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
