package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/examhall/cbt-portal/internal/exam"
)

// POST /auth/student/login  { "matric_number": "..." }
//
// Students authenticate by matric number alone; the roster upload is the
// access control. Unknown numbers are rejected.
func StudentLoginHandler(a *AuthService, store *exam.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			MatricNumber string `json:"matric_number"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		matric := strings.TrimSpace(req.MatricNumber)
		if matric == "" {
			http.Error(w, "matric_number required", http.StatusBadRequest)
			return
		}
		st, err := store.GetStudentByMatric(r.Context(), matric)
		if err != nil {
			http.Error(w, "invalid matric number", http.StatusUnauthorized)
			return
		}
		tok, err := a.IssueJWT(st.ID, "student", st.FullName)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": tok,
			"student":      st,
		})
	}
}

// POST /auth/examiner/login  { "username": "...", "password": "..." }
//
// Examiners carry bcrypt hashes in the examiners table. The env-configured
// admin account works even on an empty database, so first-run setup is
// possible.
func ExaminerLoginHandler(a *AuthService, store *exam.SQLStore, adminUser, adminPassHash string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		if req.Username == adminUser {
			if bcrypt.CompareHashAndPassword([]byte(adminPassHash), []byte(req.Password)) != nil {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			tok, err := a.IssueJWT(adminUser, "admin", adminUser)
			if err != nil {
				http.Error(w, "issue token", http.StatusInternalServerError)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok, "role": "admin"})
			return
		}

		ex, err := store.GetExaminerByUsername(r.Context(), req.Username)
		if err != nil || bcrypt.CompareHashAndPassword([]byte(ex.PasswordHash), []byte(req.Password)) != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		role := ex.Role
		if role == "" {
			role = "examiner"
		}
		tok, err := a.IssueJWT(ex.ID, role, ex.FullName)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok, "role": role})
	}
}
