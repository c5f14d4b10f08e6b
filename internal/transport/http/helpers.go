package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"timed-quiz-service/internal/domain"
)

const maxBodyBytes = 4 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type notFoundResponse struct {
	Error  string `json:"error"`
	Path   string `json:"path"`
	Method string `json:"method"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type idResponse struct {
	ID string `json:"id"`
}

type deleteResponse struct {
	Success bool `json:"success"`
	Deleted int  `json:"deleted"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyUpdate),
		errors.Is(err, domain.ErrUnknownField),
		errors.Is(err, domain.ErrUnknownBatchAction),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidSection),
		errors.Is(err, domain.ErrUnknownQuestionType):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRegistrationClosed):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrParticipantNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadySubmitted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// readBody returns the raw request body, capped at maxBodyBytes.
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrInvalidInput, err)
	}
	return body, nil
}

// decodeJSON decodes a request body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
