package http

import (
	"encoding/json"
	"net/http"

	"github.com/examhall/cbt-portal/internal/exam"
)

// GET /results?course_id=...&level=...
func ListResultsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := exam.ResultFilter{
			CourseID: r.URL.Query().Get("course_id"),
			Level:    r.URL.Query().Get("level"),
		}
		results, err := store.ListResults(r.Context(), filter)
		if err != nil {
			http.Error(w, "list results: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if results == nil {
			results = []exam.Result{}
		}

		passed := 0
		for _, res := range results {
			if res.Passed() {
				passed++
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results":   results,
			"total":     len(results),
			"passed":    passed,
			"pass_mark": exam.PassMark,
		})
	}
}
