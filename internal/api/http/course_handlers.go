package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/examhall/cbt-portal/internal/csvio"
	"github.com/examhall/cbt-portal/internal/exam"
)

// PUT /courses
func PutCourseHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c exam.Course
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if c.CourseCode == "" || c.CourseTitle == "" {
			http.Error(w, "course_code and course_title required", http.StatusBadRequest)
			return
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.DurationMinutes <= 0 {
			c.DurationMinutes = 60
		}
		if c.MaxAttempts <= 0 {
			c.MaxAttempts = 3
		}
		if err := store.PutCourse(r.Context(), c); err != nil {
			http.Error(w, "put course: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(c)
	}
}

// DELETE /courses/{courseID}
func DeleteCourseHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := strings.TrimSpace(chi.URLParam(r, "courseID"))
		if err := store.DeleteCourse(r.Context(), courseID); err != nil {
			http.Error(w, "delete course: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /courses/{courseID}/questions
// Examiner view: full rows including the answer key.
func ListQuestionsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := strings.TrimSpace(chi.URLParam(r, "courseID"))
		objective, err := store.ListObjectiveQuestions(r.Context(), courseID)
		if err != nil {
			http.Error(w, "list objective: "+err.Error(), http.StatusInternalServerError)
			return
		}
		subjective, err := store.ListSubjectiveQuestions(r.Context(), courseID)
		if err != nil {
			http.Error(w, "list subjective: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if objective == nil {
			objective = []exam.Question{}
		}
		if subjective == nil {
			subjective = []exam.Question{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"objective":  objective,
			"subjective": subjective,
		})
	}
}

// PUT /courses/{courseID}/questions
func PutQuestionHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := strings.TrimSpace(chi.URLParam(r, "courseID"))
		var q exam.Question
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		q.CourseID = courseID
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if q.Text == "" {
			http.Error(w, "question_text required", http.StatusBadRequest)
			return
		}

		var err error
		switch q.Kind {
		case exam.KindObjective:
			if len(q.Options) < 2 {
				http.Error(w, "at least two options required", http.StatusBadRequest)
				return
			}
			if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
				http.Error(w, "correct_answer out of range", http.StatusBadRequest)
				return
			}
			err = store.PutObjectiveQuestion(r.Context(), q)
		case exam.KindSubjective:
			if q.GradingType == "" {
				q.GradingType = exam.GradingManual
			}
			err = store.PutSubjectiveQuestion(r.Context(), q)
		default:
			http.Error(w, "kind must be objective or subjective", http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, "put question: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(q)
	}
}

// DELETE /questions/{questionID}?kind=objective|subjective
func DeleteQuestionHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionID := strings.TrimSpace(chi.URLParam(r, "questionID"))
		var err error
		if r.URL.Query().Get("kind") == string(exam.KindSubjective) {
			err = store.DeleteSubjectiveQuestion(r.Context(), questionID)
		} else {
			err = store.DeleteQuestion(r.Context(), questionID)
		}
		if err != nil {
			http.Error(w, "delete question: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /courses/{courseID}/subjective/import  (multipart file=bank.csv)
func ImportSubjectiveCSVHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := strings.TrimSpace(chi.URLParam(r, "courseID"))
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()

		questions, err := csvio.ParseSubjectiveQuestions(f, courseID)
		if err != nil {
			http.Error(w, "bad csv: "+err.Error(), http.StatusBadRequest)
			return
		}
		imported := 0
		var firstErr error
		for _, q := range questions {
			q.ID = uuid.NewString()
			if err := store.PutSubjectiveQuestion(r.Context(), q); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			imported++
		}
		if imported == 0 && firstErr != nil {
			http.Error(w, "import: "+firstErr.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"imported": imported})
	}
}

// GET /courses/{courseID}/subjective/export
func ExportSubjectiveCSVHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := strings.TrimSpace(chi.URLParam(r, "courseID"))
		questions, err := store.ListSubjectiveQuestions(r.Context(), courseID)
		if err != nil {
			http.Error(w, "list subjective: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="subjective_questions.csv"`)
		if err := csvio.WriteSubjectiveQuestions(w, questions); err != nil {
			http.Error(w, "write csv: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
