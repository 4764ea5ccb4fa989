package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// SQLStore implements Store over database/sql. The same statements run on
// both sqlite (offline/tests) and postgres (hosted backend); timestamps are
// unix seconds.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

var _ Store = (*SQLStore)(nil)

// ---- attempts ----

func (s *SQLStore) GetAttempt(ctx context.Context, studentID, courseID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT student_id, course_id, attempts_used, last_attempt_at
		 FROM exam_attempts WHERE student_id=$1 AND course_id=$2`, studentID, courseID)
	var a Attempt
	var last int64
	if err := row.Scan(&a.StudentID, &a.CourseID, &a.AttemptsUsed, &last); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No row yet means zero attempts used; not an error.
			return Attempt{StudentID: studentID, CourseID: courseID}, nil
		}
		return Attempt{}, err
	}
	a.LastAttemptAt = time.Unix(last, 0)
	return a, nil
}

func (s *SQLStore) IncrementAttempt(ctx context.Context, studentID, courseID string, at time.Time) (Attempt, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exam_attempts (student_id, course_id, attempts_used, last_attempt_at)
		 VALUES ($1,$2,1,$3)
		 ON CONFLICT (student_id, course_id)
		 DO UPDATE SET attempts_used=exam_attempts.attempts_used+1, last_attempt_at=EXCLUDED.last_attempt_at`,
		studentID, courseID, at.Unix())
	if err != nil {
		return Attempt{}, err
	}
	return s.GetAttempt(ctx, studentID, courseID)
}

// ---- sessions ----

func (s *SQLStore) InsertSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exam_sessions (id, student_id, course_id, start_time, duration_minutes, status)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		sess.ID, sess.StudentID, sess.CourseID, sess.StartTime.Unix(), sess.DurationMinutes, string(sess.Status))
	return err
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, student_id, course_id, start_time, end_time, duration_minutes, status
		 FROM exam_sessions WHERE id=$1`, id)
	return scanSession(row)
}

// CompleteSession is idempotent: completing an already-completed session is a
// no-op, and the original end_time is preserved.
func (s *SQLStore) CompleteSession(ctx context.Context, id string, endTime time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exam_sessions SET status=$1, end_time=$2 WHERE id=$3 AND status=$4`,
		string(StatusCompleted), endTime.Unix(), id, string(StatusInProgress))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Either already completed or missing; distinguish for callers.
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM exam_sessions WHERE id=$1`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

func (s *SQLStore) ListInProgressSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, student_id, course_id, start_time, end_time, duration_minutes, status
		 FROM exam_sessions WHERE status=$1 ORDER BY start_time DESC`, string(StatusInProgress))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	var start int64
	var end sql.NullInt64
	var status string
	if err := row.Scan(&sess.ID, &sess.StudentID, &sess.CourseID, &start, &end, &sess.DurationMinutes, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	sess.StartTime = time.Unix(start, 0)
	if end.Valid {
		t := time.Unix(end.Int64, 0)
		sess.EndTime = &t
	}
	sess.Status = SessionStatus(status)
	return sess, nil
}

// ---- answers ----

// SaveObjectiveAnswer upserts on (session_id, question_id): a later write for
// the same pair updates in place, never duplicates.
func (s *SQLStore) SaveObjectiveAnswer(ctx context.Context, a ObjectiveAnswer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO student_answers (session_id, question_id, selected_answer, is_correct, answered_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (session_id, question_id)
		 DO UPDATE SET selected_answer=EXCLUDED.selected_answer,
		               is_correct=EXCLUDED.is_correct,
		               answered_at=EXCLUDED.answered_at`,
		a.SessionID, a.QuestionID, a.SelectedAnswer, a.IsCorrect, a.AnsweredAt.Unix())
	return err
}

func (s *SQLStore) SaveSubjectiveAnswer(ctx context.Context, a SubjectiveAnswer) (SubjectiveAnswer, error) {
	// Re-saving replaces the text and word count but deliberately leaves any
	// existing grade columns alone; regrading is a separate operation.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subjective_answers (id, session_id, question_id, answer_text, word_count, submitted_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (session_id, question_id)
		 DO UPDATE SET answer_text=EXCLUDED.answer_text,
		               word_count=EXCLUDED.word_count,
		               submitted_at=EXCLUDED.submitted_at`,
		a.ID, a.SessionID, a.QuestionID, a.AnswerText, a.WordCount, a.SubmittedAt.Unix())
	if err != nil {
		return SubjectiveAnswer{}, err
	}
	// The stored row keeps its original id on conflict; read it back.
	row := s.db.QueryRowContext(ctx, subjectiveAnswerSelect+` WHERE session_id=$1 AND question_id=$2`,
		a.SessionID, a.QuestionID)
	return scanSubjectiveAnswer(row)
}

func (s *SQLStore) ListObjectiveAnswers(ctx context.Context, sessionID string) ([]ObjectiveAnswer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, question_id, selected_answer, is_correct, answered_at
		 FROM student_answers WHERE session_id=$1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ObjectiveAnswer
	for rows.Next() {
		var a ObjectiveAnswer
		var at int64
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.SelectedAnswer, &a.IsCorrect, &at); err != nil {
			return nil, err
		}
		a.AnsweredAt = time.Unix(at, 0)
		out = append(out, a)
	}
	return out, rows.Err()
}

const subjectiveAnswerSelect = `SELECT id, session_id, question_id, answer_text, word_count, submitted_at,
	auto_score, keywords_found_json, similarity_score, final_score, graded_at, grading_notes
	FROM subjective_answers`

func (s *SQLStore) ListSubjectiveAnswers(ctx context.Context, sessionID string) ([]SubjectiveAnswer, error) {
	return s.querySubjectiveAnswers(ctx, subjectiveAnswerSelect+` WHERE session_id=$1`, sessionID)
}

func (s *SQLStore) ListAnswersForQuestion(ctx context.Context, questionID string) ([]SubjectiveAnswer, error) {
	return s.querySubjectiveAnswers(ctx, subjectiveAnswerSelect+` WHERE question_id=$1 ORDER BY submitted_at`, questionID)
}

func (s *SQLStore) querySubjectiveAnswers(ctx context.Context, q string, args ...any) ([]SubjectiveAnswer, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SubjectiveAnswer
	for rows.Next() {
		a, err := scanSubjectiveAnswer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetSubjectiveAnswer(ctx context.Context, id string) (SubjectiveAnswer, error) {
	row := s.db.QueryRowContext(ctx, subjectiveAnswerSelect+` WHERE id=$1`, id)
	a, err := scanSubjectiveAnswer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SubjectiveAnswer{}, ErrAnswerNotFound
	}
	return a, err
}

func scanSubjectiveAnswer(row rowScanner) (SubjectiveAnswer, error) {
	var a SubjectiveAnswer
	var submitted int64
	var auto, sim, final sql.NullFloat64
	var graded sql.NullInt64
	var kwJSON string
	err := row.Scan(&a.ID, &a.SessionID, &a.QuestionID, &a.AnswerText, &a.WordCount, &submitted,
		&auto, &kwJSON, &sim, &final, &graded, &a.GradingNotes)
	if err != nil {
		return SubjectiveAnswer{}, err
	}
	a.SubmittedAt = time.Unix(submitted, 0)
	if auto.Valid {
		a.AutoScore = &auto.Float64
	}
	if sim.Valid {
		a.SimilarityScore = &sim.Float64
	}
	if final.Valid {
		a.FinalScore = &final.Float64
	}
	if graded.Valid {
		t := time.Unix(graded.Int64, 0)
		a.GradedAt = &t
	}
	if err := json.Unmarshal([]byte(kwJSON), &a.KeywordsFound); err != nil {
		a.KeywordsFound = nil
	}
	return a, nil
}

func (s *SQLStore) ApplyAutoGrade(ctx context.Context, answerID string, autoScore, similarity float64, keywordsFound []string, at time.Time) error {
	if keywordsFound == nil {
		keywordsFound = []string{}
	}
	kw, err := json.Marshal(keywordsFound)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE subjective_answers
		 SET auto_score=$1, similarity_score=$2, keywords_found_json=$3, graded_at=$4
		 WHERE id=$5`,
		autoScore, similarity, string(kw), at.Unix(), answerID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLStore) ApplyManualGrade(ctx context.Context, answerID string, finalScore float64, notes string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subjective_answers SET final_score=$1, grading_notes=$2, graded_at=$3 WHERE id=$4`,
		finalScore, notes, at.Unix(), answerID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAnswerNotFound
	}
	return nil
}

// ---- results ----

func (s *SQLStore) UpsertResult(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exam_results (session_id, student_id, course_id,
			objective_score, correct_answers, total_questions,
			subjective_questions_answered, total_subjective_questions,
			total_subjective_marks, subjective_marks_obtained, subjective_score,
			auto_graded_subjective, final_score, time_taken)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		 ON CONFLICT (session_id)
		 DO UPDATE SET objective_score=EXCLUDED.objective_score,
		               correct_answers=EXCLUDED.correct_answers,
		               total_questions=EXCLUDED.total_questions,
		               subjective_questions_answered=EXCLUDED.subjective_questions_answered,
		               total_subjective_questions=EXCLUDED.total_subjective_questions,
		               total_subjective_marks=EXCLUDED.total_subjective_marks,
		               subjective_marks_obtained=EXCLUDED.subjective_marks_obtained,
		               subjective_score=EXCLUDED.subjective_score,
		               auto_graded_subjective=EXCLUDED.auto_graded_subjective,
		               final_score=EXCLUDED.final_score,
		               time_taken=EXCLUDED.time_taken`,
		r.SessionID, r.StudentID, r.CourseID,
		r.ObjectiveScore, r.CorrectAnswers, r.TotalQuestions,
		r.SubjectiveQuestionsAnswered, r.TotalSubjectiveQuestions,
		r.TotalSubjectiveMarks, r.SubjectiveMarksObtained, r.SubjectiveScore,
		r.AutoGradedSubjective, r.FinalScore, r.TimeTakenMinutes)
	return err
}

const resultSelect = `SELECT session_id, student_id, course_id,
	objective_score, correct_answers, total_questions,
	subjective_questions_answered, total_subjective_questions,
	total_subjective_marks, subjective_marks_obtained, subjective_score,
	auto_graded_subjective, final_score, time_taken
	FROM exam_results`

func (s *SQLStore) GetResult(ctx context.Context, sessionID string) (Result, error) {
	row := s.db.QueryRowContext(ctx, resultSelect+` WHERE session_id=$1`, sessionID)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrResultNotFound
	}
	return r, err
}

func (s *SQLStore) ListResults(ctx context.Context, f ResultFilter) ([]Result, error) {
	q := resultSelect
	var args []any
	switch {
	case f.CourseID != "" && f.Level != "":
		q += ` WHERE course_id=$1 AND student_id IN (SELECT id FROM students WHERE level=$2)`
		args = []any{f.CourseID, f.Level}
	case f.CourseID != "":
		q += ` WHERE course_id=$1`
		args = []any{f.CourseID}
	case f.Level != "":
		q += ` WHERE student_id IN (SELECT id FROM students WHERE level=$1)`
		args = []any{f.Level}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanResult(row rowScanner) (Result, error) {
	var r Result
	err := row.Scan(&r.SessionID, &r.StudentID, &r.CourseID,
		&r.ObjectiveScore, &r.CorrectAnswers, &r.TotalQuestions,
		&r.SubjectiveQuestionsAnswered, &r.TotalSubjectiveQuestions,
		&r.TotalSubjectiveMarks, &r.SubjectiveMarksObtained, &r.SubjectiveScore,
		&r.AutoGradedSubjective, &r.FinalScore, &r.TimeTakenMinutes)
	return r, err
}
