package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	authmw "github.com/examhall/cbt-portal/internal/auth/middleware"
	"github.com/examhall/cbt-portal/internal/exam"
	"github.com/examhall/cbt-portal/internal/rbac"
)

// GET /courses
func ListCoursesHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := authmw.UserIDFromContext(r.Context())
		courses, err := store.ListActiveCourses(r.Context(), studentID)
		if err != nil {
			http.Error(w, "list courses: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if courses == nil {
			courses = []exam.CourseSummary{}
		}
		_ = json.NewEncoder(w).Encode(courses)
	}
}

// POST /courses/{courseID}/start
func StartExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := strings.TrimSpace(chi.URLParam(r, "courseID"))
		if courseID == "" {
			http.Error(w, "courseID required", http.StatusBadRequest)
			return
		}
		studentID := authmw.UserIDFromContext(r.Context())

		sess, pool, err := svc.StartExam(r.Context(), studentID, courseID)
		switch {
		case errors.Is(err, exam.ErrCourseNotFound):
			http.Error(w, "course not found", http.StatusNotFound)
			return
		case errors.Is(err, exam.ErrAttemptsExhausted):
			http.Error(w, "no attempts left", http.StatusForbidden)
			return
		case errors.Is(err, exam.ErrNoQuestions):
			http.Error(w, "course has no questions", http.StatusConflict)
			return
		case err != nil:
			http.Error(w, "start exam: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"session":   sess,
			"questions": sanitizePool(pool),
		})
	}
}

// POST /sessions/{sessionID}/answers
// { "question_id": "...", "selected_answer": 2 }  or  { "question_id": "...", "answer_text": "..." }
func SaveAnswerHandler(svc *exam.Service, store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
		var req struct {
			QuestionID     string  `json:"question_id"`
			SelectedAnswer *int    `json:"selected_answer,omitempty"`
			AnswerText     *string `json:"answer_text,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, "question_id required", http.StatusBadRequest)
			return
		}

		sess, err := store.GetSession(r.Context(), sessionID)
		if err != nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if !ownsSession(r, sess) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		switch {
		case req.AnswerText != nil:
			err = svc.SaveSubjectiveAnswer(r.Context(), sessionID, req.QuestionID, *req.AnswerText)
		case req.SelectedAnswer != nil:
			q, findErr := findObjectiveQuestion(r, store, sess.CourseID, req.QuestionID)
			if findErr != nil {
				http.Error(w, "question not found", http.StatusNotFound)
				return
			}
			err = svc.SaveObjectiveAnswer(r.Context(), sessionID, q, *req.SelectedAnswer)
		default:
			http.Error(w, "selected_answer or answer_text required", http.StatusBadRequest)
			return
		}

		if errors.Is(err, exam.ErrSessionCompleted) {
			http.Error(w, "session already completed", http.StatusConflict)
			return
		}
		if err != nil {
			http.Error(w, "save answer: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /sessions/{sessionID}/submit
// { "objective": {"qid": 2, ...}, "subjective": {"qid": "text", ...} }
func SubmitExamHandler(svc *exam.Service, store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
		var req struct {
			Objective  map[string]int    `json:"objective"`
			Subjective map[string]string `json:"subjective"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		sess, err := store.GetSession(r.Context(), sessionID)
		if err != nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if !ownsSession(r, sess) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		result, err := svc.Submit(r.Context(), sessionID, req.Objective, req.Subjective)
		if err != nil {
			http.Error(w, "submit failed, contact an administrator: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(result)
	}
}

// GET /sessions/{sessionID}/result
func GetResultHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
		sess, err := store.GetSession(r.Context(), sessionID)
		if err != nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if !ownsSession(r, sess) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		result, err := store.GetResult(r.Context(), sessionID)
		if errors.Is(err, exam.ErrResultNotFound) {
			http.Error(w, "result not ready", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "get result: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": result,
			"passed": result.Passed(),
		})
	}
}

// GET /sessions/{sessionID}
// Used on reload: the client resyncs its countdown against the start time and
// gets the pool back in its original order plus every answer already saved.
func GetSessionHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
		sess, err := store.GetSession(r.Context(), sessionID)
		if err != nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if !ownsSession(r, sess) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		pool, err := exam.NewPoolLoader(store).LoadForSession(r.Context(), sess.CourseID, sess.ID)
		if err != nil {
			http.Error(w, "load questions", http.StatusInternalServerError)
			return
		}
		objAnswers, err := store.ListObjectiveAnswers(r.Context(), sessionID)
		if err != nil {
			http.Error(w, "load answers", http.StatusInternalServerError)
			return
		}
		subjAnswers, err := store.ListSubjectiveAnswers(r.Context(), sessionID)
		if err != nil {
			http.Error(w, "load answers", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"session":            sess,
			"remaining_seconds":  int(sess.Remaining(time.Now()).Seconds()),
			"questions":          sanitizePool(pool),
			"objective_answers":  objAnswers,
			"subjective_answers": subjAnswers,
		})
	}
}

// ownsSession allows the session's student, or any role with result:view-all.
func ownsSession(r *http.Request, sess exam.Session) bool {
	sub := authmw.UserIDFromContext(r.Context())
	if sub == sess.StudentID {
		return true
	}
	role := rbac.RoleFromContext(r.Context())
	return rbac.NewChecker(nil).Has(role, "result:view-all")
}

func findObjectiveQuestion(r *http.Request, store exam.Store, courseID, questionID string) (exam.Question, error) {
	qs, err := store.ListObjectiveQuestions(r.Context(), courseID)
	if err != nil {
		return exam.Question{}, err
	}
	for _, q := range qs {
		if q.ID == questionID {
			return q, nil
		}
	}
	return exam.Question{}, exam.ErrQuestionNotFound
}

// sanitizePool strips the answer key before questions leave the server.
func sanitizePool(pool []exam.Question) []exam.Question {
	out := make([]exam.Question, len(pool))
	for i, q := range pool {
		q.CorrectAnswer = 0
		q.ExpectedAnswer = ""
		q.Keywords = nil
		q.KeywordWeightage = 0
		out[i] = q
	}
	return out
}
