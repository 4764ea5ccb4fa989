package exam

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/examhall/cbt-portal/internal/db"
)

// newTestStore opens a throwaway sqlite database with the full schema.
func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "exam_test.db")
	conn, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewSQLStore(conn)
}

func seedStudent(t *testing.T, store *SQLStore) Student {
	t.Helper()
	st := Student{
		ID:           uuid.NewString(),
		MatricNumber: "CSC/" + uuid.NewString()[:8],
		FullName:     "Test Student",
		Department:   "Computer Science",
		Level:        "300",
	}
	if _, err := store.BulkUpsertStudents(context.Background(), []Student{st}); err != nil {
		t.Fatalf("seed student: %v", err)
	}
	return st
}

func seedCourse(t *testing.T, store *SQLStore, durationMinutes, maxAttempts int) Course {
	t.Helper()
	c := Course{
		ID:                  uuid.NewString(),
		CourseCode:          "CSC" + uuid.NewString()[:6],
		CourseTitle:         "Test Course",
		DurationMinutes:     durationMinutes,
		MaxAttempts:         maxAttempts,
		ShowPassMark:        true,
		ShowImmediateResult: true,
		IsActive:            true,
	}
	if err := store.PutCourse(context.Background(), c); err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return c
}

func seedObjectiveQuestion(t *testing.T, store *SQLStore, courseID string, correct int) Question {
	t.Helper()
	q := Question{
		ID:       uuid.NewString(),
		CourseID: courseID,
		Kind:     KindObjective,
		Text:     "Pick one",
		Options: []Option{
			{Text: "alpha"}, {Text: "beta"}, {Text: "gamma"}, {Text: "delta"},
		},
		CorrectAnswer: correct,
	}
	if err := store.PutObjectiveQuestion(context.Background(), q); err != nil {
		t.Fatalf("seed objective question: %v", err)
	}
	return q
}

func seedSubjectiveQuestion(t *testing.T, store *SQLStore, q Question) Question {
	t.Helper()
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.Kind = KindSubjective
	if err := store.PutSubjectiveQuestion(context.Background(), q); err != nil {
		t.Fatalf("seed subjective question: %v", err)
	}
	return q
}

func seedSession(t *testing.T, store *SQLStore, studentID, courseID string, start time.Time, durationMinutes int) Session {
	t.Helper()
	sess := Session{
		ID:              uuid.NewString(),
		StudentID:       studentID,
		CourseID:        courseID,
		StartTime:       start,
		DurationMinutes: durationMinutes,
		Status:          StatusInProgress,
	}
	if err := store.InsertSession(context.Background(), sess); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return sess
}

// testClock is a manually advanced time source.
type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 0.01
}
