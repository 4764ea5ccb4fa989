package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/examhall/cbt-portal/internal/exam"
)

type liveSession struct {
	exam.Session
	StudentName      string `json:"student_name,omitempty"`
	MatricNumber     string `json:"matric_number,omitempty"`
	ElapsedSeconds   int    `json:"elapsed_seconds"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// GET /monitor/sessions
//
// The live monitor runs a sweep pass first, so a session that quietly expired
// since the last tick never shows up as active.
func LiveSessionsHandler(store exam.Store, sweeper *exam.Sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := sweeper.SweepOnce(r.Context()); err != nil {
			http.Error(w, "sweep: "+err.Error(), http.StatusInternalServerError)
			return
		}
		sessions, err := store.ListInProgressSessions(r.Context())
		if err != nil {
			http.Error(w, "list sessions: "+err.Error(), http.StatusInternalServerError)
			return
		}

		now := time.Now()
		out := make([]liveSession, 0, len(sessions))
		for _, sess := range sessions {
			ls := liveSession{
				Session:          sess,
				ElapsedSeconds:   int(sess.Elapsed(now).Seconds()),
				RemainingSeconds: int(sess.Remaining(now).Seconds()),
			}
			if st, err := store.GetStudent(r.Context(), sess.StudentID); err == nil {
				ls.StudentName = st.FullName
				ls.MatricNumber = st.MatricNumber
			}
			out = append(out, ls)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
