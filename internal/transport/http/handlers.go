package http

import (
	"bytes"
	"net/http"

	"go.uber.org/zap"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.GetSettings(r.Context(), r.PathValue("key"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	doc := app.Document{}
	if err := decodeJSON(r, &doc); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.PutSettings(r.Context(), r.PathValue("key"), doc); err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.GetMetadata(r.Context(), r.PathValue("key"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handlePutMetadata(w http.ResponseWriter, r *http.Request) {
	doc := app.Document{}
	if err := decodeJSON(r, &doc); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.PutMetadata(r.Context(), r.PathValue("key"), doc); err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.service.ListQuestions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (s *Server) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if err := decodeJSON(r, &q); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := s.service.CreateQuestion(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	patch, err := domain.ParseQuestionPatch(bytes.TrimSpace(body))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.UpdateQuestion(r.Context(), r.PathValue("id"), patch); err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteQuestion(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req app.BatchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	result, err := s.service.Batch(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := s.service.ListParticipants(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, participants)
}

func (s *Server) handleCreateParticipant(w http.ResponseWriter, r *http.Request) {
	var reg domain.Registration
	if err := decodeJSON(r, &reg); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := s.service.CreateParticipant(r.Context(), reg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) handleUpdateParticipant(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	patch, err := domain.ParseParticipantPatch(bytes.TrimSpace(body))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.UpdateParticipant(r.Context(), r.PathValue("id"), patch); err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) handleDeleteParticipants(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.service.DeleteAllParticipants(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Success: true, Deleted: deleted})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := s.service.Leaderboard(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (s *Server) handleLeaderboardCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.service.ExportCSV(r.Context(), &buf); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="leaderboard.csv"`)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
