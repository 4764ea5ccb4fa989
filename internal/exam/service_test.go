package exam

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

// mixedCourse seeds two objective questions (correct answers 1 and 2) and one
// auto-graded subjective question worth 10 marks, keyword-weighted at 100 so
// the auto score is fully determined by keyword hits.
func mixedCourse(t *testing.T, store *SQLStore) (Course, []Question, Question) {
	t.Helper()
	course := seedCourse(t, store, 60, 3)
	obj := []Question{
		seedObjectiveQuestion(t, store, course.ID, 1),
		seedObjectiveQuestion(t, store, course.ID, 2),
	}
	subj := seedSubjectiveQuestion(t, store, Question{
		CourseID:         course.ID,
		Text:             "Explain photosynthesis",
		Marks:            10,
		GradingType:      GradingAuto,
		Keywords:         []string{"photosynthesis", "chlorophyll"},
		KeywordWeightage: 100,
		MinWordCount:     5,
	})
	return course, obj, subj
}

func newTestService(t *testing.T, store *SQLStore, clock *testClock) *Service {
	t.Helper()
	return NewService(store).
		WithClock(clock.Now).
		WithPool(NewPoolLoaderWithRand(store, rand.New(rand.NewSource(42))))
}

func TestStartExamGatesOnAttempts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	clock := newTestClock()
	svc := newTestService(t, store, clock)
	st := seedStudent(t, store)

	course := seedCourse(t, store, 60, 1)
	seedObjectiveQuestion(t, store, course.ID, 0)

	sess, pool, err := svc.StartExam(ctx, st.ID, course.ID)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	if sess.Status != StatusInProgress || len(pool) != 1 {
		t.Fatalf("session = %+v, pool = %d", sess, len(pool))
	}

	if _, _, err := svc.StartExam(ctx, st.ID, course.ID); !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("second start: err = %v, want ErrAttemptsExhausted", err)
	}
}

func TestStartExamEmptyCourseKeepsAttempt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	clock := newTestClock()
	svc := newTestService(t, store, clock)
	st := seedStudent(t, store)
	course := seedCourse(t, store, 60, 1) // single attempt

	if _, _, err := svc.StartExam(ctx, st.ID, course.ID); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("empty course start: err = %v, want ErrNoQuestions", err)
	}

	// The failed start must not have burned the only attempt.
	seedObjectiveQuestion(t, store, course.ID, 0)
	if _, _, err := svc.StartExam(ctx, st.ID, course.ID); err != nil {
		t.Fatalf("start after seeding questions: %v", err)
	}
}

func TestStartExamInactiveCourse(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	svc := newTestService(t, store, newTestClock())
	st := seedStudent(t, store)

	course := seedCourse(t, store, 60, 3)
	seedObjectiveQuestion(t, store, course.ID, 0)
	course.IsActive = false
	if err := store.PutCourse(ctx, course); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, _, err := svc.StartExam(ctx, st.ID, course.ID); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("inactive course start: err = %v, want ErrCourseNotFound", err)
	}
}

func TestSubmitMixedExam(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	clock := newTestClock()
	svc := newTestService(t, store, clock)
	st := seedStudent(t, store)
	course, obj, subj := mixedCourse(t, store)

	sess, _, err := svc.StartExam(ctx, st.ID, course.ID)
	if err != nil {
		t.Fatalf("start exam: %v", err)
	}
	clock.Advance(25 * time.Minute)

	// One of two objective questions right; the essay hits both keywords and
	// clears the minimum word count.
	objective := map[string]int{
		obj[0].ID: 1, // correct
		obj[1].ID: 0, // wrong
	}
	subjective := map[string]string{
		subj.ID: "Photosynthesis converts light energy using chlorophyll inside leaves",
	}

	result, err := svc.Submit(ctx, sess.ID, objective, subjective)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if result.ObjectiveScore != 50 || result.CorrectAnswers != 1 || result.TotalQuestions != 2 {
		t.Fatalf("objective section = %+v", result)
	}
	if result.SubjectiveScore != 100 || result.SubjectiveQuestionsAnswered != 1 || result.AutoGradedSubjective != 1 {
		t.Fatalf("subjective section = %+v", result)
	}
	if result.TotalSubjectiveMarks != 10 || result.SubjectiveMarksObtained != 10 {
		t.Fatalf("subjective marks = %v/%v", result.SubjectiveMarksObtained, result.TotalSubjectiveMarks)
	}
	if !almostEqual(result.FinalScore, 66.67) {
		t.Fatalf("final score = %v, want 66.67", result.FinalScore)
	}
	if result.TimeTakenMinutes != 25 {
		t.Fatalf("time taken = %d, want 25", result.TimeTakenMinutes)
	}
	if !result.Passed() {
		t.Fatalf("66.67 should pass at pass mark %v", PassMark)
	}

	got, err := store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("session status = %s, want completed", got.Status)
	}
}

func TestSubmitShortEssayScoresZero(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	clock := newTestClock()
	svc := newTestService(t, store, clock)
	st := seedStudent(t, store)
	course, obj, subj := mixedCourse(t, store)

	sess, _, err := svc.StartExam(ctx, st.ID, course.ID)
	if err != nil {
		t.Fatalf("start exam: %v", err)
	}

	// Same objective performance, but the essay is under the word floor:
	// graded zero, still counted as answered.
	result, err := svc.Submit(ctx, sess.ID,
		map[string]int{obj[0].ID: 1, obj[1].ID: 0},
		map[string]string{subj.ID: "Photosynthesis uses chlorophyll"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if result.SubjectiveScore != 0 || result.SubjectiveMarksObtained != 0 {
		t.Fatalf("short essay scored: %+v", result)
	}
	if result.SubjectiveQuestionsAnswered != 1 || result.AutoGradedSubjective != 1 {
		t.Fatalf("short essay counts = %+v", result)
	}
	if !almostEqual(result.FinalScore, 33.33) {
		t.Fatalf("final score = %v, want 33.33", result.FinalScore)
	}
	if result.Passed() {
		t.Fatalf("33.33 should not pass")
	}
}

func TestSubmitTwiceReturnsStoredResult(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	clock := newTestClock()
	svc := newTestService(t, store, clock)
	st := seedStudent(t, store)
	course, obj, subj := mixedCourse(t, store)

	sess, _, err := svc.StartExam(ctx, st.ID, course.ID)
	if err != nil {
		t.Fatalf("start exam: %v", err)
	}
	first, err := svc.Submit(ctx, sess.ID,
		map[string]int{obj[0].ID: 1},
		map[string]string{subj.ID: "Photosynthesis converts light energy using chlorophyll inside leaves"})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// A duplicate submit (double click, retried request) must not rescore.
	second, err := svc.Submit(ctx, sess.ID,
		map[string]int{obj[0].ID: 1, obj[1].ID: 2},
		nil)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.FinalScore != first.FinalScore || second.CorrectAnswers != first.CorrectAnswers {
		t.Fatalf("re-submit changed the result: %+v vs %+v", first, second)
	}

	// Answer writes after completion are rejected.
	err = svc.SaveObjectiveAnswer(ctx, sess.ID, obj[0], 1)
	if !errors.Is(err, ErrSessionCompleted) {
		t.Fatalf("save after completion: err = %v, want ErrSessionCompleted", err)
	}
}

func TestManualGradeRecalculatesResult(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	clock := newTestClock()
	svc := newTestService(t, store, clock)
	st := seedStudent(t, store)
	course, obj, subj := mixedCourse(t, store)

	sess, _, err := svc.StartExam(ctx, st.ID, course.ID)
	if err != nil {
		t.Fatalf("start exam: %v", err)
	}
	if _, err := svc.Submit(ctx, sess.ID,
		map[string]int{obj[0].ID: 1, obj[1].ID: 0},
		map[string]string{subj.ID: "Photosynthesis converts light energy using chlorophyll inside leaves"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	answers, err := store.ListSubjectiveAnswers(ctx, sess.ID)
	if err != nil || len(answers) != 1 {
		t.Fatalf("list answers: n=%d err=%v", len(answers), err)
	}

	// The examiner halves the machine's full marks.
	graded, err := svc.ManualGrade(ctx, answers[0].ID, 5, "missed the light reactions")
	if err != nil {
		t.Fatalf("manual grade: %v", err)
	}
	if graded.FinalScore == nil || *graded.FinalScore != 5 {
		t.Fatalf("final score not stored: %+v", graded)
	}
	if graded.GradingNotes != "missed the light reactions" {
		t.Fatalf("notes = %q", graded.GradingNotes)
	}

	result, err := store.GetResult(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if result.SubjectiveScore != 50 || result.SubjectiveMarksObtained != 5 {
		t.Fatalf("recalculated subjective = %+v", result)
	}
	// 50*(2/3) + 50*(1/3)
	if !almostEqual(result.FinalScore, 50) {
		t.Fatalf("recalculated final = %v, want 50", result.FinalScore)
	}
}

func TestManualGradeRejectsOutOfRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	clock := newTestClock()
	svc := newTestService(t, store, clock)
	st := seedStudent(t, store)
	course, _, subj := mixedCourse(t, store)

	sess, _, err := svc.StartExam(ctx, st.ID, course.ID)
	if err != nil {
		t.Fatalf("start exam: %v", err)
	}
	if err := svc.SaveSubjectiveAnswer(ctx, sess.ID, subj.ID, "some words"); err != nil {
		t.Fatalf("save answer: %v", err)
	}
	answers, err := store.ListSubjectiveAnswers(ctx, sess.ID)
	if err != nil || len(answers) != 1 {
		t.Fatalf("list answers: n=%d err=%v", len(answers), err)
	}

	if _, err := svc.ManualGrade(ctx, answers[0].ID, 11, ""); err == nil {
		t.Fatal("score above question marks accepted")
	}
	if _, err := svc.ManualGrade(ctx, answers[0].ID, -1, ""); err == nil {
		t.Fatal("negative score accepted")
	}
}

func TestBulkAutoGrade(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	clock := newTestClock()
	svc := newTestService(t, store, clock)
	course, _, subj := mixedCourse(t, store)

	// Two students submit ungraded answers directly, as if auto-grading had
	// failed at submit time.
	var sessions []Session
	for i := 0; i < 2; i++ {
		st := seedStudent(t, store)
		sess, _, err := svc.StartExam(ctx, st.ID, course.ID)
		if err != nil {
			t.Fatalf("start exam: %v", err)
		}
		if err := svc.SaveSubjectiveAnswer(ctx, sess.ID,
			subj.ID, "Photosynthesis converts light energy using chlorophyll inside leaves"); err != nil {
			t.Fatalf("save answer: %v", err)
		}
		sessions = append(sessions, sess)
	}

	graded, err := svc.BulkAutoGrade(ctx, subj.ID)
	if err != nil {
		t.Fatalf("bulk auto grade: %v", err)
	}
	if graded != 2 {
		t.Fatalf("graded = %d, want 2", graded)
	}
	for _, sess := range sessions {
		answers, err := store.ListSubjectiveAnswers(ctx, sess.ID)
		if err != nil || len(answers) != 1 {
			t.Fatalf("list answers: n=%d err=%v", len(answers), err)
		}
		if answers[0].AutoScore == nil || *answers[0].AutoScore != 100 {
			t.Fatalf("answer not graded: %+v", answers[0])
		}
	}

	manual := seedSubjectiveQuestion(t, store, Question{
		CourseID: course.ID, Text: "Discuss", Marks: 10, GradingType: GradingManual,
	})
	if _, err := svc.BulkAutoGrade(ctx, manual.ID); err == nil {
		t.Fatal("bulk auto grade accepted a manual-only question")
	}
}
