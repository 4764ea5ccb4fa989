package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/examhall/cbt-portal/internal/csvio"
	"github.com/examhall/cbt-portal/internal/exam"
)

// POST /students/bulk
//
// Accepts either a multipart CSV roster (file=) or a raw JSON array.
func BulkUpsertStudentsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var students []exam.Student

		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, "file required", http.StatusBadRequest)
				return
			}
			defer f.Close()
			students, err = csvio.ParseStudents(f)
			if err != nil {
				http.Error(w, "bad csv: "+err.Error(), http.StatusBadRequest)
				return
			}
		} else {
			if err := json.NewDecoder(r.Body).Decode(&students); err != nil {
				http.Error(w, "expected JSON array or multipart file", http.StatusBadRequest)
				return
			}
			for i := range students {
				if students[i].ID == "" {
					students[i].ID = uuid.NewString()
				}
			}
		}
		if len(students) == 0 {
			_ = json.NewEncoder(w).Encode(map[string]int{"upserted": 0})
			return
		}

		n, err := store.BulkUpsertStudents(r.Context(), students)
		if err != nil {
			http.Error(w, "bulk upsert: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"upserted": n})
	}
}

// POST /students/delete
// { "ids": ["...", ...] }
//
// Deletes run in small batches server side; a partial failure reports how far
// it got.
func DeleteStudentsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs []string `json:"ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if len(req.IDs) == 0 {
			http.Error(w, "ids required", http.StatusBadRequest)
			return
		}
		n, err := store.DeleteStudents(r.Context(), req.IDs)
		if err != nil {
			http.Error(w, "delete students: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"deleted": n})
	}
}
