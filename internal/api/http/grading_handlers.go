package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/examhall/cbt-portal/internal/exam"
)

// GET /grading/questions/{questionID}/answers
func ListAnswersForQuestionHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionID := strings.TrimSpace(chi.URLParam(r, "questionID"))
		if questionID == "" {
			http.Error(w, "questionID required", http.StatusBadRequest)
			return
		}
		q, err := store.GetSubjectiveQuestion(r.Context(), questionID)
		if errors.Is(err, exam.ErrQuestionNotFound) {
			http.Error(w, "question not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "get question: "+err.Error(), http.StatusInternalServerError)
			return
		}
		answers, err := store.ListAnswersForQuestion(r.Context(), questionID)
		if err != nil {
			http.Error(w, "list answers: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if answers == nil {
			answers = []exam.SubjectiveAnswer{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"question": q,
			"answers":  answers,
		})
	}
}

// POST /grading/answers/{answerID}/auto
func AutoGradeAnswerHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		answerID := strings.TrimSpace(chi.URLParam(r, "answerID"))
		a, err := svc.AutoGradeAnswer(r.Context(), answerID)
		if errors.Is(err, exam.ErrAnswerNotFound) {
			http.Error(w, "answer not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "auto grade: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}

// POST /grading/questions/{questionID}/auto
func BulkAutoGradeHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionID := strings.TrimSpace(chi.URLParam(r, "questionID"))
		n, err := svc.BulkAutoGrade(r.Context(), questionID)
		if errors.Is(err, exam.ErrQuestionNotFound) {
			http.Error(w, "question not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "bulk auto grade: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"graded": n})
	}
}

// POST /grading/answers/{answerID}
// { "score": 7.5, "notes": "..." }
func ManualGradeHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		answerID := strings.TrimSpace(chi.URLParam(r, "answerID"))
		var req struct {
			Score float64 `json:"score"`
			Notes string  `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		a, err := svc.ManualGrade(r.Context(), answerID, req.Score, req.Notes)
		if errors.Is(err, exam.ErrAnswerNotFound) {
			http.Error(w, "answer not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "manual grade: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}

// POST /grading/sessions/{sessionID}/recalculate
func RecalculateHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
		result, err := svc.Recalculate(r.Context(), sessionID)
		if errors.Is(err, exam.ErrResultNotFound) {
			http.Error(w, "result not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "recalculate: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(result)
	}
}
