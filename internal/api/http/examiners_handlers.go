package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/examhall/cbt-portal/internal/exam"
)

// POST /examiners
// { "username": "...", "password": "...", "full_name": "...", "role": "examiner" }
//
// Admin-only. The password is hashed here; plaintext never reaches the store.
func PutExaminerHandler(store *exam.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			FullName string `json:"full_name"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			http.Error(w, "username and password required", http.StatusBadRequest)
			return
		}
		role := req.Role
		if role != "admin" {
			role = "examiner"
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "hash password: "+err.Error(), http.StatusInternalServerError)
			return
		}
		ex := exam.Examiner{
			ID:           uuid.NewString(),
			Username:     req.Username,
			FullName:     req.FullName,
			PasswordHash: string(hash),
			Role:         role,
		}
		if err := store.PutExaminer(r.Context(), ex); err != nil {
			http.Error(w, "put examiner: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(ex)
	}
}
