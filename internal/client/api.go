package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

type idResponse struct {
	ID string `json:"id"`
}

type deleteResponse struct {
	Success bool `json:"success"`
	Deleted int  `json:"deleted"`
}

// GetSettings returns the settings object stored under key, empty when unset.
func (c *Client) GetSettings(ctx context.Context, key string) (map[string]any, error) {
	var doc map[string]any
	err := c.doJSON(ctx, http.MethodGet, "/settings/"+escape(key), nil, &doc)
	return doc, err
}

func (c *Client) PutSettings(ctx context.Context, key string, doc map[string]any) error {
	return c.doJSON(ctx, http.MethodPut, "/settings/"+escape(key), doc, nil)
}

// RegistrationOpen reads config.isQuizActive, defaulting to true.
func (c *Client) RegistrationOpen(ctx context.Context) (bool, error) {
	doc, err := c.GetSettings(ctx, app.ConfigSettingsKey)
	if err != nil {
		return false, err
	}
	active, ok := doc["isQuizActive"].(bool)
	return !ok || active, nil
}

func (c *Client) GetMetadata(ctx context.Context, key string) (map[string]any, error) {
	var doc map[string]any
	err := c.doJSON(ctx, http.MethodGet, "/metadata/"+escape(key), nil, &doc)
	return doc, err
}

// QuestionsUpdatedAt returns the questions staleness marker, 0 when unset.
func (c *Client) QuestionsUpdatedAt(ctx context.Context) (domain.Millis, error) {
	var doc struct {
		LastUpdated json.Number `json:"lastUpdated"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/metadata/"+app.QuestionsMetaKey, nil, &doc); err != nil {
		return 0, err
	}
	if doc.LastUpdated == "" {
		return 0, nil
	}
	n, err := doc.LastUpdated.Float64()
	if err != nil {
		return 0, fmt.Errorf("questions marker: %w", err)
	}
	return domain.Millis(n), nil
}

func (c *Client) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	var questions []domain.Question
	err := c.doJSON(ctx, http.MethodGet, "/questions", nil, &questions)
	return questions, err
}

func (c *Client) CreateQuestion(ctx context.Context, q domain.Question) (string, error) {
	var resp idResponse
	err := c.doJSON(ctx, http.MethodPost, "/questions", q, &resp)
	return resp.ID, err
}

// UpdateQuestion sends a partial update; fields must use the wire names.
func (c *Client) UpdateQuestion(ctx context.Context, id string, fields map[string]any) error {
	return c.doJSON(ctx, http.MethodPut, "/questions/"+escape(id), fields, nil)
}

func (c *Client) DeleteQuestion(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/questions/"+escape(id), nil, nil)
}

func (c *Client) Batch(ctx context.Context, req app.BatchRequest) (app.BatchResult, error) {
	var result app.BatchResult
	err := c.doJSON(ctx, http.MethodPost, "/questions/batch", req, &result)
	return result, err
}

func (c *Client) ListParticipants(ctx context.Context) ([]domain.Participant, error) {
	var participants []domain.Participant
	err := c.doJSON(ctx, http.MethodGet, "/participants", nil, &participants)
	return participants, err
}

func (c *Client) CreateParticipant(ctx context.Context, reg domain.Registration) (string, error) {
	var resp idResponse
	err := c.doJSON(ctx, http.MethodPost, "/participants", reg, &resp)
	return resp.ID, err
}

// SubmitParticipant writes the single end-of-challenge update.
func (c *Client) SubmitParticipant(ctx context.Context, id string, sub domain.Submission) error {
	return c.doJSON(ctx, http.MethodPut, "/participants/"+escape(id), sub, nil)
}

func (c *Client) DeleteAllParticipants(ctx context.Context) (int, error) {
	var resp deleteResponse
	err := c.doJSON(ctx, http.MethodDelete, "/participants", nil, &resp)
	return resp.Deleted, err
}

func (c *Client) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	var lb domain.Leaderboard
	err := c.doJSON(ctx, http.MethodGet, "/leaderboard", nil, &lb)
	return lb, err
}

// ExportCSV copies the CSV leaderboard export into w.
func (c *Client) ExportCSV(ctx context.Context, w io.Writer) error {
	return c.do(ctx, http.MethodGet, "/leaderboard.csv", nil, func(body io.Reader) error {
		_, err := io.Copy(w, body)
		return err
	})
}
