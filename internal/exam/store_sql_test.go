package exam

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIncrementAttempt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	st := seedStudent(t, store)
	course := seedCourse(t, store, 60, 3)

	a, err := store.GetAttempt(ctx, st.ID, course.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if a.AttemptsUsed != 0 {
		t.Fatalf("fresh attempt count = %d, want 0", a.AttemptsUsed)
	}

	now := time.Unix(1_700_000_000, 0)
	for want := 1; want <= 3; want++ {
		a, err = store.IncrementAttempt(ctx, st.ID, course.ID, now)
		if err != nil {
			t.Fatalf("increment attempt: %v", err)
		}
		if a.AttemptsUsed != want {
			t.Fatalf("attempts used = %d, want %d", a.AttemptsUsed, want)
		}
	}
	if !a.LastAttemptAt.Equal(now) {
		t.Fatalf("last attempt at = %v, want %v", a.LastAttemptAt, now)
	}
}

func TestCompleteSessionIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	st := seedStudent(t, store)
	course := seedCourse(t, store, 60, 3)
	start := time.Unix(1_700_000_000, 0)
	sess := seedSession(t, store, st.ID, course.ID, start, 60)

	first := start.Add(30 * time.Minute)
	if err := store.CompleteSession(ctx, sess.ID, first); err != nil {
		t.Fatalf("complete session: %v", err)
	}
	// Second completion is a no-op that keeps the original end time.
	if err := store.CompleteSession(ctx, sess.ID, start.Add(2*time.Hour)); err != nil {
		t.Fatalf("repeat complete session: %v", err)
	}

	got, err := store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s, want %s", got.Status, StatusCompleted)
	}
	if got.EndTime == nil || !got.EndTime.Equal(first) {
		t.Fatalf("end time = %v, want %v", got.EndTime, first)
	}

	if err := store.CompleteSession(ctx, "no-such-session", first); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("complete missing session: err = %v, want ErrSessionNotFound", err)
	}
}

func TestSaveObjectiveAnswerUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	st := seedStudent(t, store)
	course := seedCourse(t, store, 60, 3)
	sess := seedSession(t, store, st.ID, course.ID, time.Unix(1_700_000_000, 0), 60)
	q := seedObjectiveQuestion(t, store, course.ID, 2)

	save := func(selected int) {
		t.Helper()
		err := store.SaveObjectiveAnswer(ctx, ObjectiveAnswer{
			SessionID:      sess.ID,
			QuestionID:     q.ID,
			SelectedAnswer: selected,
			IsCorrect:      selected == q.CorrectAnswer,
			AnsweredAt:     time.Unix(1_700_000_100, 0),
		})
		if err != nil {
			t.Fatalf("save objective answer: %v", err)
		}
	}

	save(0)
	save(2) // changed their mind

	answers, err := store.ListObjectiveAnswers(ctx, sess.ID)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("answer rows = %d, want 1", len(answers))
	}
	if answers[0].SelectedAnswer != 2 || !answers[0].IsCorrect {
		t.Fatalf("stored answer = %+v, want selected 2, correct", answers[0])
	}
}

func TestSaveSubjectiveAnswerResavePreservesGrade(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	st := seedStudent(t, store)
	course := seedCourse(t, store, 60, 3)
	sess := seedSession(t, store, st.ID, course.ID, time.Unix(1_700_000_000, 0), 60)
	q := seedSubjectiveQuestion(t, store, Question{
		CourseID: course.ID, Text: "Explain", Marks: 10, GradingType: GradingAuto,
	})

	saved, err := store.SaveSubjectiveAnswer(ctx, SubjectiveAnswer{
		ID: "ans-1", SessionID: sess.ID, QuestionID: q.ID,
		AnswerText: "first draft", WordCount: 2, SubmittedAt: time.Unix(1_700_000_100, 0),
	})
	if err != nil {
		t.Fatalf("save answer: %v", err)
	}

	gradedAt := time.Unix(1_700_000_200, 0)
	if err := store.ApplyAutoGrade(ctx, saved.ID, 72.5, 40.0, []string{"osmosis"}, gradedAt); err != nil {
		t.Fatalf("apply auto grade: %v", err)
	}

	// Re-save replaces the text but must not wipe the grade.
	resaved, err := store.SaveSubjectiveAnswer(ctx, SubjectiveAnswer{
		ID: "ans-2", SessionID: sess.ID, QuestionID: q.ID,
		AnswerText: "second draft with more words", WordCount: 5, SubmittedAt: time.Unix(1_700_000_300, 0),
	})
	if err != nil {
		t.Fatalf("re-save answer: %v", err)
	}
	if resaved.ID != saved.ID {
		t.Fatalf("re-save changed row id: %s -> %s", saved.ID, resaved.ID)
	}
	if resaved.AnswerText != "second draft with more words" || resaved.WordCount != 5 {
		t.Fatalf("re-save did not replace text: %+v", resaved)
	}
	if resaved.AutoScore == nil || *resaved.AutoScore != 72.5 {
		t.Fatalf("auto score lost on re-save: %+v", resaved.AutoScore)
	}
	if len(resaved.KeywordsFound) != 1 || resaved.KeywordsFound[0] != "osmosis" {
		t.Fatalf("keywords found lost on re-save: %v", resaved.KeywordsFound)
	}
}

func TestApplyGradeMissingAnswer(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Unix(1_700_000_000, 0)

	if err := store.ApplyAutoGrade(ctx, "nope", 50, 10, nil, at); !errors.Is(err, ErrAnswerNotFound) {
		t.Fatalf("auto grade missing answer: err = %v, want ErrAnswerNotFound", err)
	}
	if err := store.ApplyManualGrade(ctx, "nope", 5, "", at); !errors.Is(err, ErrAnswerNotFound) {
		t.Fatalf("manual grade missing answer: err = %v, want ErrAnswerNotFound", err)
	}
}

func TestUpsertResultOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	st := seedStudent(t, store)
	course := seedCourse(t, store, 60, 3)
	sess := seedSession(t, store, st.ID, course.ID, time.Unix(1_700_000_000, 0), 60)

	r := Result{
		SessionID: sess.ID, StudentID: st.ID, CourseID: course.ID,
		ObjectiveScore: 50, CorrectAnswers: 1, TotalQuestions: 2,
		FinalScore: 50,
	}
	if err := store.UpsertResult(ctx, r); err != nil {
		t.Fatalf("insert result: %v", err)
	}
	r.SubjectiveScore = 80
	r.FinalScore = 60
	if err := store.UpsertResult(ctx, r); err != nil {
		t.Fatalf("update result: %v", err)
	}

	got, err := store.GetResult(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if got.FinalScore != 60 || got.SubjectiveScore != 80 {
		t.Fatalf("result not overwritten: %+v", got)
	}

	if _, err := store.GetResult(ctx, "no-such-session"); !errors.Is(err, ErrResultNotFound) {
		t.Fatalf("get missing result: err = %v, want ErrResultNotFound", err)
	}
}

func TestListResultsFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	courseA := seedCourse(t, store, 60, 3)
	courseB := seedCourse(t, store, 60, 3)

	mk := func(level, courseID string) {
		t.Helper()
		st := Student{ID: "s-" + level + "-" + courseID[:4], MatricNumber: "M" + level + courseID[:4], FullName: "S", Level: level}
		if _, err := store.BulkUpsertStudents(ctx, []Student{st}); err != nil {
			t.Fatalf("seed student: %v", err)
		}
		sess := seedSession(t, store, st.ID, courseID, time.Unix(1_700_000_000, 0), 60)
		if err := store.UpsertResult(ctx, Result{SessionID: sess.ID, StudentID: st.ID, CourseID: courseID}); err != nil {
			t.Fatalf("seed result: %v", err)
		}
	}
	mk("200", courseA.ID)
	mk("300", courseA.ID)
	mk("300", courseB.ID)

	cases := []struct {
		name   string
		filter ResultFilter
		want   int
	}{
		{"all", ResultFilter{}, 3},
		{"by course", ResultFilter{CourseID: courseA.ID}, 2},
		{"by level", ResultFilter{Level: "300"}, 2},
		{"course and level", ResultFilter{CourseID: courseA.ID, Level: "300"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.ListResults(ctx, tc.filter)
			if err != nil {
				t.Fatalf("list results: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("results = %d, want %d", len(got), tc.want)
			}
		})
	}
}

func TestBulkUpsertStudentsConflictOnMatric(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n, err := store.BulkUpsertStudents(ctx, []Student{
		{ID: "s1", MatricNumber: "CSC/001", FullName: "First", Level: "100"},
		{ID: "s2", MatricNumber: "CSC/002", FullName: "Second", Level: "100"},
	})
	if err != nil || n != 2 {
		t.Fatalf("first upsert: n=%d err=%v", n, err)
	}

	// Same matric number updates in place.
	n, err = store.BulkUpsertStudents(ctx, []Student{
		{ID: "s1-new", MatricNumber: "CSC/001", FullName: "Renamed", Level: "200"},
	})
	if err != nil || n != 1 {
		t.Fatalf("second upsert: n=%d err=%v", n, err)
	}
	got, err := store.GetStudentByMatric(ctx, "CSC/001")
	if err != nil {
		t.Fatalf("get by matric: %v", err)
	}
	if got.FullName != "Renamed" || got.Level != "200" || got.ID != "s1" {
		t.Fatalf("upsert result = %+v", got)
	}
}

func TestDeleteStudentsBatched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var students []Student
	var ids []string
	for i := 0; i < 45; i++ { // forces three delete batches
		id := fmt.Sprintf("bulk-%02d", i)
		students = append(students, Student{ID: id, MatricNumber: "B/" + id, FullName: "Bulk"})
		ids = append(ids, id)
	}
	if n, err := store.BulkUpsertStudents(ctx, students); err != nil || n != 45 {
		t.Fatalf("seed: n=%d err=%v", n, err)
	}

	deleted, err := store.DeleteStudents(ctx, ids)
	if err != nil {
		t.Fatalf("delete students: %v", err)
	}
	if deleted != 45 {
		t.Fatalf("deleted = %d, want 45", deleted)
	}
	if _, err := store.GetStudent(ctx, "bulk-00"); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("student survived delete: err = %v", err)
	}
}

func TestListActiveCourses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	st := seedStudent(t, store)

	course := seedCourse(t, store, 45, 2)
	seedObjectiveQuestion(t, store, course.ID, 0)
	seedObjectiveQuestion(t, store, course.ID, 1)
	seedSubjectiveQuestion(t, store, Question{CourseID: course.ID, Text: "Discuss", Marks: 10, GradingType: GradingManual})

	inactive := seedCourse(t, store, 45, 2)
	inactive.IsActive = false
	if err := store.PutCourse(ctx, inactive); err != nil {
		t.Fatalf("deactivate course: %v", err)
	}

	now := time.Unix(1_700_000_000, 0)
	for i := 0; i < 3; i++ { // one more than max, clamp to zero
		if _, err := store.IncrementAttempt(ctx, st.ID, course.ID, now); err != nil {
			t.Fatalf("increment attempt: %v", err)
		}
	}

	list, err := store.ListActiveCourses(ctx, st.ID)
	if err != nil {
		t.Fatalf("list active courses: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("active courses = %d, want 1", len(list))
	}
	cs := list[0]
	if cs.ID != course.ID {
		t.Fatalf("listed course = %s, want %s", cs.ID, course.ID)
	}
	if cs.ObjectiveCount != 2 || cs.SubjectiveCount != 1 {
		t.Fatalf("question counts = %d/%d, want 2/1", cs.ObjectiveCount, cs.SubjectiveCount)
	}
	if cs.AttemptsUsed != 3 || cs.AttemptsLeft != 0 {
		t.Fatalf("attempts = used %d left %d, want used 3 left 0", cs.AttemptsUsed, cs.AttemptsLeft)
	}
}
