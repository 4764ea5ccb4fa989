package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// deleteBatchSize keeps bulk deletes under hosted-backend payload and time
// limits. Partial failure reports a partial success count, no rollback.
const deleteBatchSize = 20

// ---- students ----

func (s *SQLStore) GetStudent(ctx context.Context, id string) (Student, error) {
	return s.getStudentWhere(ctx, "id", id)
}

func (s *SQLStore) GetStudentByMatric(ctx context.Context, matric string) (Student, error) {
	return s.getStudentWhere(ctx, "matric_number", matric)
}

func (s *SQLStore) getStudentWhere(ctx context.Context, col, val string) (Student, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, matric_number, full_name, department, level FROM students WHERE `+col+`=$1`, val)
	var st Student
	if err := row.Scan(&st.ID, &st.MatricNumber, &st.FullName, &st.Department, &st.Level); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, ErrStudentNotFound
		}
		return Student{}, err
	}
	return st, nil
}

// BulkUpsertStudents applies each record individually (matric_number is the
// conflict key) and reports how many succeeded. One bad row does not abort
// the batch.
func (s *SQLStore) BulkUpsertStudents(ctx context.Context, students []Student) (int, error) {
	var ok int
	var firstErr error
	for _, st := range students {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO students (id, matric_number, full_name, department, level)
			 VALUES ($1,$2,$3,$4,$5)
			 ON CONFLICT (matric_number)
			 DO UPDATE SET full_name=EXCLUDED.full_name,
			               department=EXCLUDED.department,
			               level=EXCLUDED.level`,
			st.ID, st.MatricNumber, st.FullName, st.Department, st.Level)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		ok++
	}
	if ok == 0 && firstErr != nil {
		return 0, firstErr
	}
	return ok, nil
}

// DeleteStudents removes students in fixed-size batches. Returns the number
// deleted; earlier batches are not rolled back if a later one fails.
func (s *SQLStore) DeleteStudents(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		placeholders := make([]string, len(batch))
		args := make([]any, len(batch))
		for i, id := range batch {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = id
		}
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM students WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
		if err != nil {
			return deleted, err
		}
		if n, err := res.RowsAffected(); err == nil {
			deleted += int(n)
		}
	}
	return deleted, nil
}

// ---- examiners ----

type Examiner struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	FullName     string `json:"full_name"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}

func (s *SQLStore) GetExaminerByUsername(ctx context.Context, username string) (Examiner, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, full_name, password_hash, role FROM examiners WHERE username=$1`, username)
	var e Examiner
	if err := row.Scan(&e.ID, &e.Username, &e.FullName, &e.PasswordHash, &e.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Examiner{}, errors.New("examiner not found")
		}
		return Examiner{}, err
	}
	return e, nil
}

func (s *SQLStore) PutExaminer(ctx context.Context, e Examiner) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO examiners (id, username, full_name, password_hash, role)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (username)
		 DO UPDATE SET full_name=EXCLUDED.full_name,
		               password_hash=EXCLUDED.password_hash,
		               role=EXCLUDED.role`,
		e.ID, e.Username, e.FullName, e.PasswordHash, e.Role)
	return err
}

// ---- courses ----

func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, course_code, course_title, duration_minutes, max_attempts,
		        show_pass_mark, show_immediate_result, is_active
		 FROM courses WHERE id=$1`, id)
	var c Course
	err := row.Scan(&c.ID, &c.CourseCode, &c.CourseTitle, &c.DurationMinutes, &c.MaxAttempts,
		&c.ShowPassMark, &c.ShowImmediateResult, &c.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, ErrCourseNotFound
	}
	return c, err
}

// ListActiveCourses returns every active course with its question counts and
// the viewing student's attempt usage, ordered by course code.
func (s *SQLStore) ListActiveCourses(ctx context.Context, studentID string) ([]CourseSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.course_code, c.course_title, c.duration_minutes, c.max_attempts,
		        c.show_pass_mark, c.show_immediate_result, c.is_active,
		        (SELECT COUNT(*) FROM questions q WHERE q.course_id=c.id),
		        (SELECT COUNT(*) FROM subjective_questions sq WHERE sq.course_id=c.id),
		        COALESCE((SELECT a.attempts_used FROM exam_attempts a
		                  WHERE a.student_id=$1 AND a.course_id=c.id), 0)
		 FROM courses c WHERE c.is_active=$2 ORDER BY c.course_code`, studentID, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CourseSummary
	for rows.Next() {
		var cs CourseSummary
		if err := rows.Scan(&cs.ID, &cs.CourseCode, &cs.CourseTitle, &cs.DurationMinutes, &cs.MaxAttempts,
			&cs.ShowPassMark, &cs.ShowImmediateResult, &cs.IsActive,
			&cs.ObjectiveCount, &cs.SubjectiveCount, &cs.AttemptsUsed); err != nil {
			return nil, err
		}
		cs.AttemptsLeft = cs.MaxAttempts - cs.AttemptsUsed
		if cs.AttemptsLeft < 0 {
			cs.AttemptsLeft = 0
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutCourse(ctx context.Context, c Course) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (id, course_code, course_title, duration_minutes, max_attempts,
		                      show_pass_mark, show_immediate_result, is_active)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (id)
		 DO UPDATE SET course_code=EXCLUDED.course_code,
		               course_title=EXCLUDED.course_title,
		               duration_minutes=EXCLUDED.duration_minutes,
		               max_attempts=EXCLUDED.max_attempts,
		               show_pass_mark=EXCLUDED.show_pass_mark,
		               show_immediate_result=EXCLUDED.show_immediate_result,
		               is_active=EXCLUDED.is_active`,
		c.ID, c.CourseCode, c.CourseTitle, c.DurationMinutes, c.MaxAttempts,
		c.ShowPassMark, c.ShowImmediateResult, c.IsActive)
	return err
}

func (s *SQLStore) DeleteCourse(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM courses WHERE id=$1`, id)
	return err
}

// ---- questions ----

func (s *SQLStore) PutObjectiveQuestion(ctx context.Context, q Question) error {
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO questions (id, course_id, question_text, options_json, correct_answer)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (id)
		 DO UPDATE SET question_text=EXCLUDED.question_text,
		               options_json=EXCLUDED.options_json,
		               correct_answer=EXCLUDED.correct_answer`,
		q.ID, q.CourseID, q.Text, string(opts), q.CorrectAnswer)
	return err
}

func (s *SQLStore) PutSubjectiveQuestion(ctx context.Context, q Question) error {
	kw, err := json.Marshal(q.Keywords)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO subjective_questions (id, course_id, question_text, max_words, marks,
		        grading_type, expected_answer, keywords_json, keyword_weightage, min_word_count)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (id)
		 DO UPDATE SET question_text=EXCLUDED.question_text,
		               max_words=EXCLUDED.max_words,
		               marks=EXCLUDED.marks,
		               grading_type=EXCLUDED.grading_type,
		               expected_answer=EXCLUDED.expected_answer,
		               keywords_json=EXCLUDED.keywords_json,
		               keyword_weightage=EXCLUDED.keyword_weightage,
		               min_word_count=EXCLUDED.min_word_count`,
		q.ID, q.CourseID, q.Text, q.MaxWords, q.Marks,
		string(q.GradingType), q.ExpectedAnswer, string(kw), q.KeywordWeightage, q.MinWordCount)
	return err
}

func (s *SQLStore) ListObjectiveQuestions(ctx context.Context, courseID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, question_text, options_json, correct_answer
		 FROM questions WHERE course_id=$1`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var q Question
		var opts string
		if err := rows.Scan(&q.ID, &q.CourseID, &q.Text, &opts, &q.CorrectAnswer); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return nil, fmt.Errorf("question %s options: %w", q.ID, err)
		}
		q.Kind = KindObjective
		out = append(out, q)
	}
	return out, rows.Err()
}

const subjectiveQuestionSelect = `SELECT id, course_id, question_text, max_words, marks,
	grading_type, expected_answer, keywords_json, keyword_weightage, min_word_count
	FROM subjective_questions`

func (s *SQLStore) ListSubjectiveQuestions(ctx context.Context, courseID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, subjectiveQuestionSelect+` WHERE course_id=$1`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		q, err := scanSubjectiveQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetSubjectiveQuestion(ctx context.Context, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx, subjectiveQuestionSelect+` WHERE id=$1`, id)
	q, err := scanSubjectiveQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, ErrQuestionNotFound
	}
	return q, err
}

func scanSubjectiveQuestion(row rowScanner) (Question, error) {
	var q Question
	var gt, kw string
	err := row.Scan(&q.ID, &q.CourseID, &q.Text, &q.MaxWords, &q.Marks,
		&gt, &q.ExpectedAnswer, &kw, &q.KeywordWeightage, &q.MinWordCount)
	if err != nil {
		return Question{}, err
	}
	q.GradingType = GradingType(gt)
	if err := json.Unmarshal([]byte(kw), &q.Keywords); err != nil {
		q.Keywords = nil
	}
	q.Kind = KindSubjective
	return q, nil
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	return err
}

func (s *SQLStore) DeleteSubjectiveQuestion(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subjective_questions WHERE id=$1`, id)
	return err
}
