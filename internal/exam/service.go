package exam

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/examhall/cbt-portal/internal/grading"
)

// Service orchestrates the exam lifecycle: attempt gating, session creation,
// answer persistence, the submit pipeline, and score reconciliation after
// grading events.
type Service struct {
	store Store
	pool  *PoolLoader
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		pool:  NewPoolLoader(store),
		now:   time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithPool swaps the pool loader, e.g. one with a pinned shuffle source.
func (s *Service) WithPool(p *PoolLoader) *Service {
	s.pool = p
	return s
}

// StartExam enforces the attempt limit, loads the shuffled pool, then (and
// only then) consumes an attempt and opens a session. Pool loading happens
// before the attempt increment so an empty course never burns an attempt.
func (s *Service) StartExam(ctx context.Context, studentID, courseID string) (Session, []Question, error) {
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return Session{}, nil, err
	}
	if !course.IsActive {
		return Session{}, nil, ErrCourseNotFound
	}

	attempt, err := s.store.GetAttempt(ctx, studentID, courseID)
	if err != nil {
		return Session{}, nil, err
	}
	if attempt.AttemptsUsed >= course.MaxAttempts {
		return Session{}, nil, ErrAttemptsExhausted
	}

	// The session ID is minted before pool loading so the shuffle can be
	// seeded from it; a later reload of the same session reproduces the order.
	sessionID := uuid.NewString()
	pool, err := s.pool.LoadForSession(ctx, courseID, sessionID)
	if err != nil {
		return Session{}, nil, err
	}

	now := s.now()
	if _, err := s.store.IncrementAttempt(ctx, studentID, courseID, now); err != nil {
		return Session{}, nil, fmt.Errorf("increment attempt: %w", err)
	}

	sess := Session{
		ID:              sessionID,
		StudentID:       studentID,
		CourseID:        courseID,
		StartTime:       now,
		DurationMinutes: course.DurationMinutes,
		Status:          StatusInProgress,
	}
	if err := s.store.InsertSession(ctx, sess); err != nil {
		return Session{}, nil, fmt.Errorf("create session: %w", err)
	}
	return sess, pool, nil
}

// SaveObjectiveAnswer upserts one selection, computing correctness here, not
// in the client. Returns ErrSessionCompleted if the session is closed.
func (s *Service) SaveObjectiveAnswer(ctx context.Context, sessionID string, q Question, selected int) error {
	if q.Kind != KindObjective {
		return fmt.Errorf("question %s is not objective", q.ID)
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status != StatusInProgress {
		return ErrSessionCompleted
	}
	return s.store.SaveObjectiveAnswer(ctx, ObjectiveAnswer{
		SessionID:      sessionID,
		QuestionID:     q.ID,
		SelectedAnswer: selected,
		IsCorrect:      selected == q.CorrectAnswer,
		AnsweredAt:     s.now(),
	})
}

// SaveSubjectiveAnswer stores or replaces the free text plus its derived word
// count. No correctness check happens at write time.
func (s *Service) SaveSubjectiveAnswer(ctx context.Context, sessionID, questionID, text string) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status != StatusInProgress {
		return ErrSessionCompleted
	}
	_, err = s.store.SaveSubjectiveAnswer(ctx, SubjectiveAnswer{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		QuestionID:  questionID,
		AnswerText:  text,
		WordCount:   grading.WordCount(text),
		SubmittedAt: s.now(),
	})
	return err
}

// Submit finalizes a session. Steps run in a stable order (session
// completion, then answer persistence with immediate auto-grading of eligible
// subjective answers, then result insertion) so a partway failure leaves
// diagnosable state. A result-write failure is fatal to the submit; the
// caller tells the student to contact an administrator.
//
// objective maps question ID to selected option index; subjective maps
// question ID to answer text. Both come from the flow's local buffer.
func (s *Service) Submit(ctx context.Context, sessionID string, objective map[string]int, subjective map[string]string) (Result, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if sess.Status == StatusCompleted {
		// Re-submit of a completed session returns the stored result.
		if r, err := s.store.GetResult(ctx, sessionID); err == nil {
			return r, nil
		}
		return Result{}, ErrSessionCompleted
	}

	objQuestions, err := s.store.ListObjectiveQuestions(ctx, sess.CourseID)
	if err != nil {
		return Result{}, fmt.Errorf("load objective questions: %w", err)
	}
	subjQuestions, err := s.store.ListSubjectiveQuestions(ctx, sess.CourseID)
	if err != nil {
		return Result{}, fmt.Errorf("load subjective questions: %w", err)
	}

	now := s.now()
	if err := s.store.CompleteSession(ctx, sessionID, now); err != nil {
		return Result{}, fmt.Errorf("complete session: %w", err)
	}

	// Objective answers: flush the buffer, score as we go. A single failed
	// write is logged and skipped; the score still counts the selection the
	// student made.
	correct := 0
	for _, q := range objQuestions {
		sel, answered := objective[q.ID]
		if !answered {
			continue
		}
		isCorrect := sel == q.CorrectAnswer
		if isCorrect {
			correct++
		}
		err := s.store.SaveObjectiveAnswer(ctx, ObjectiveAnswer{
			SessionID:      sessionID,
			QuestionID:     q.ID,
			SelectedAnswer: sel,
			IsCorrect:      isCorrect,
			AnsweredAt:     now,
		})
		if err != nil {
			log.Printf("submit %s: save objective answer %s: %v", sessionID, q.ID, err)
		}
	}

	// Subjective answers: persist, then auto-grade the eligible ones
	// immediately. Grading failures never abort the submit.
	answered := 0
	autoGraded := 0
	var marksObtained float64
	for _, q := range subjQuestions {
		text, ok := subjective[q.ID]
		if !ok || grading.WordCount(text) == 0 {
			continue
		}
		answered++
		saved, err := s.store.SaveSubjectiveAnswer(ctx, SubjectiveAnswer{
			ID:          uuid.NewString(),
			SessionID:   sessionID,
			QuestionID:  q.ID,
			AnswerText:  text,
			WordCount:   grading.WordCount(text),
			SubmittedAt: now,
		})
		if err != nil {
			log.Printf("submit %s: save subjective answer %s: %v", sessionID, q.ID, err)
			continue
		}

		res := grading.Grade(text, gradingConfig(q))
		if res == nil {
			continue // manual-only
		}
		if err := s.store.ApplyAutoGrade(ctx, saved.ID, res.AutoScore, res.SimilarityScore, res.KeywordsFound, now); err != nil {
			log.Printf("submit %s: auto-grade answer %s: %v", sessionID, saved.ID, err)
			continue
		}
		autoGraded++
		qm := q.Marks
		if qm <= 0 {
			qm = defaultQuestionMarks
		}
		marksObtained += res.AutoScore / 100 * qm
	}

	totalSubjMarks := TotalMarks(subjQuestions)
	objScore := ObjectiveScore(correct, len(objQuestions))
	subjScore := SubjectiveScore(marksObtained, totalSubjMarks)

	result := Result{
		SessionID:                   sessionID,
		StudentID:                   sess.StudentID,
		CourseID:                    sess.CourseID,
		ObjectiveScore:              objScore,
		CorrectAnswers:              correct,
		TotalQuestions:              len(objQuestions),
		SubjectiveQuestionsAnswered: answered,
		TotalSubjectiveQuestions:    len(subjQuestions),
		TotalSubjectiveMarks:        totalSubjMarks,
		SubjectiveMarksObtained:     marksObtained,
		SubjectiveScore:             subjScore,
		AutoGradedSubjective:        autoGraded,
		FinalScore:                  WeightedFinalScore(objScore, subjScore, len(objQuestions), len(subjQuestions)),
		TimeTakenMinutes:            int(now.Sub(sess.StartTime).Minutes()),
	}
	if err := s.store.UpsertResult(ctx, result); err != nil {
		return Result{}, fmt.Errorf("persist result: %w", err)
	}
	return result, nil
}

// Recalculate rebuilds a session's subjective and final scores from scratch
// by re-reading every subjective answer, never by applying a delta, so
// repeated grading events cannot drift the stored result. The question counts
// and total marks captured at submission stay fixed.
func (s *Service) Recalculate(ctx context.Context, sessionID string) (Result, error) {
	result, err := s.store.GetResult(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}

	answers, err := s.store.ListSubjectiveAnswers(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	subjQuestions, err := s.store.ListSubjectiveQuestions(ctx, sess.CourseID)
	if err != nil {
		return Result{}, err
	}
	marksByQuestion := make(map[string]float64, len(subjQuestions))
	for _, q := range subjQuestions {
		marksByQuestion[q.ID] = q.Marks
	}

	tally := TallySubjective(answers, marksByQuestion)
	result.SubjectiveMarksObtained = tally.MarksObtained
	result.SubjectiveScore = SubjectiveScore(tally.MarksObtained, result.TotalSubjectiveMarks)
	result.FinalScore = WeightedFinalScore(result.ObjectiveScore, result.SubjectiveScore,
		result.TotalQuestions, result.TotalSubjectiveQuestions)

	if err := s.store.UpsertResult(ctx, result); err != nil {
		return Result{}, fmt.Errorf("persist recalculated result: %w", err)
	}
	return result, nil
}

// AutoGradeAnswer applies the grading heuristics to one stored answer and
// reconciles the session's result.
func (s *Service) AutoGradeAnswer(ctx context.Context, answerID string) (SubjectiveAnswer, error) {
	a, err := s.store.GetSubjectiveAnswer(ctx, answerID)
	if err != nil {
		return SubjectiveAnswer{}, err
	}
	q, err := s.store.GetSubjectiveQuestion(ctx, a.QuestionID)
	if err != nil {
		return SubjectiveAnswer{}, err
	}
	res := grading.Grade(a.AnswerText, gradingConfig(q))
	if res == nil {
		return SubjectiveAnswer{}, fmt.Errorf("question %s is manual-grading only", q.ID)
	}
	if err := s.store.ApplyAutoGrade(ctx, answerID, res.AutoScore, res.SimilarityScore, res.KeywordsFound, s.now()); err != nil {
		return SubjectiveAnswer{}, err
	}
	if _, err := s.Recalculate(ctx, a.SessionID); err != nil && !errors.Is(err, ErrResultNotFound) {
		log.Printf("auto-grade %s: recalculate session %s: %v", answerID, a.SessionID, err)
	}
	return s.store.GetSubjectiveAnswer(ctx, answerID)
}

// BulkAutoGrade grades every stored answer for a question, sequentially,
// tolerating per-answer failures. Returns the number graded successfully.
func (s *Service) BulkAutoGrade(ctx context.Context, questionID string) (int, error) {
	q, err := s.store.GetSubjectiveQuestion(ctx, questionID)
	if err != nil {
		return 0, err
	}
	if q.GradingType == GradingManual {
		return 0, fmt.Errorf("question %s is manual-grading only", questionID)
	}
	answers, err := s.store.ListAnswersForQuestion(ctx, questionID)
	if err != nil {
		return 0, err
	}

	graded := 0
	for _, a := range answers {
		res := grading.Grade(a.AnswerText, gradingConfig(q))
		if res == nil {
			continue
		}
		if err := s.store.ApplyAutoGrade(ctx, a.ID, res.AutoScore, res.SimilarityScore, res.KeywordsFound, s.now()); err != nil {
			log.Printf("bulk auto-grade %s: answer %s: %v", questionID, a.ID, err)
			continue
		}
		if _, err := s.Recalculate(ctx, a.SessionID); err != nil && !errors.Is(err, ErrResultNotFound) {
			log.Printf("bulk auto-grade %s: recalculate session %s: %v", questionID, a.SessionID, err)
		}
		graded++
	}
	return graded, nil
}

// ManualGrade records a human score (marks scale) with optional notes, then
// reconciles the result. The score must lie within [0, question.marks].
func (s *Service) ManualGrade(ctx context.Context, answerID string, score float64, notes string) (SubjectiveAnswer, error) {
	a, err := s.store.GetSubjectiveAnswer(ctx, answerID)
	if err != nil {
		return SubjectiveAnswer{}, err
	}
	q, err := s.store.GetSubjectiveQuestion(ctx, a.QuestionID)
	if err != nil {
		return SubjectiveAnswer{}, err
	}
	maxMarks := q.Marks
	if maxMarks <= 0 {
		maxMarks = defaultQuestionMarks
	}
	if score < 0 || score > maxMarks {
		return SubjectiveAnswer{}, fmt.Errorf("score must be between 0 and %v", maxMarks)
	}
	if err := s.store.ApplyManualGrade(ctx, answerID, score, notes, s.now()); err != nil {
		return SubjectiveAnswer{}, err
	}
	if _, err := s.Recalculate(ctx, a.SessionID); err != nil && !errors.Is(err, ErrResultNotFound) {
		log.Printf("manual grade %s: recalculate session %s: %v", answerID, a.SessionID, err)
	}
	return s.store.GetSubjectiveAnswer(ctx, answerID)
}

func gradingConfig(q Question) grading.Config {
	return grading.Config{
		GradingType:      string(q.GradingType),
		ExpectedAnswer:   q.ExpectedAnswer,
		Keywords:         q.Keywords,
		KeywordWeightage: q.KeywordWeightage,
		MinWordCount:     q.MinWordCount,
	}
}
