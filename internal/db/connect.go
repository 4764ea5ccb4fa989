package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:cbtportal.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/cbtportal?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Both dialects share the same shapes; only the little differences (pragmas,
// BIGINT vs INTEGER timestamps) are duplicated. Timestamps are stored as unix
// seconds throughout.
//
// student_answers and subjective_answers carry UNIQUE(session_id, question_id)
// so answer saves are true upserts. A concurrent select-then-insert can never
// produce duplicate rows for the same question.

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS students (
  id TEXT PRIMARY KEY,
  matric_number TEXT NOT NULL UNIQUE,
  full_name TEXT NOT NULL,
  department TEXT NOT NULL DEFAULT '',
  level TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS examiners (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  full_name TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'examiner'
);

CREATE TABLE IF NOT EXISTS courses (
  id TEXT PRIMARY KEY,
  course_code TEXT NOT NULL UNIQUE,
  course_title TEXT NOT NULL,
  duration_minutes INTEGER NOT NULL DEFAULT 60,
  max_attempts INTEGER NOT NULL DEFAULT 3,
  show_pass_mark INTEGER NOT NULL DEFAULT 1,
  show_immediate_result INTEGER NOT NULL DEFAULT 1,
  is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  question_text TEXT NOT NULL,
  options_json TEXT NOT NULL,
  correct_answer INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS subjective_questions (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  question_text TEXT NOT NULL,
  max_words INTEGER NOT NULL DEFAULT 0,
  marks REAL NOT NULL DEFAULT 10,
  grading_type TEXT NOT NULL DEFAULT 'manual',
  expected_answer TEXT NOT NULL DEFAULT '',
  keywords_json TEXT NOT NULL DEFAULT '[]',
  keyword_weightage INTEGER NOT NULL DEFAULT 60,
  min_word_count INTEGER NOT NULL DEFAULT 50
);

CREATE TABLE IF NOT EXISTS exam_attempts (
  student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  attempts_used INTEGER NOT NULL DEFAULT 0,
  last_attempt_at INTEGER NOT NULL,
  PRIMARY KEY (student_id, course_id)
);

CREATE TABLE IF NOT EXISTS exam_sessions (
  id TEXT PRIMARY KEY,
  student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  start_time INTEGER NOT NULL,
  end_time INTEGER,
  duration_minutes INTEGER NOT NULL,
  status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS student_answers (
  session_id TEXT NOT NULL REFERENCES exam_sessions(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  selected_answer INTEGER NOT NULL,
  is_correct INTEGER NOT NULL,
  answered_at INTEGER NOT NULL,
  UNIQUE (session_id, question_id)
);

CREATE TABLE IF NOT EXISTS subjective_answers (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL REFERENCES exam_sessions(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  answer_text TEXT NOT NULL,
  word_count INTEGER NOT NULL DEFAULT 0,
  submitted_at INTEGER NOT NULL,
  auto_score REAL,
  keywords_found_json TEXT NOT NULL DEFAULT '[]',
  similarity_score REAL,
  final_score REAL,
  graded_at INTEGER,
  grading_notes TEXT NOT NULL DEFAULT '',
  UNIQUE (session_id, question_id)
);

CREATE TABLE IF NOT EXISTS exam_results (
  session_id TEXT PRIMARY KEY REFERENCES exam_sessions(id) ON DELETE CASCADE,
  student_id TEXT NOT NULL,
  course_id TEXT NOT NULL,
  objective_score REAL NOT NULL DEFAULT 0,
  correct_answers INTEGER NOT NULL DEFAULT 0,
  total_questions INTEGER NOT NULL DEFAULT 0,
  subjective_questions_answered INTEGER NOT NULL DEFAULT 0,
  total_subjective_questions INTEGER NOT NULL DEFAULT 0,
  total_subjective_marks REAL NOT NULL DEFAULT 0,
  subjective_marks_obtained REAL NOT NULL DEFAULT 0,
  subjective_score REAL NOT NULL DEFAULT 0,
  auto_graded_subjective INTEGER NOT NULL DEFAULT 0,
  final_score REAL NOT NULL DEFAULT 0,
  time_taken INTEGER NOT NULL DEFAULT 0
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS students (
  id TEXT PRIMARY KEY,
  matric_number TEXT NOT NULL UNIQUE,
  full_name TEXT NOT NULL,
  department TEXT NOT NULL DEFAULT '',
  level TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS examiners (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  full_name TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'examiner'
);

CREATE TABLE IF NOT EXISTS courses (
  id TEXT PRIMARY KEY,
  course_code TEXT NOT NULL UNIQUE,
  course_title TEXT NOT NULL,
  duration_minutes INTEGER NOT NULL DEFAULT 60,
  max_attempts INTEGER NOT NULL DEFAULT 3,
  show_pass_mark BOOLEAN NOT NULL DEFAULT TRUE,
  show_immediate_result BOOLEAN NOT NULL DEFAULT TRUE,
  is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  question_text TEXT NOT NULL,
  options_json TEXT NOT NULL,
  correct_answer INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS subjective_questions (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  question_text TEXT NOT NULL,
  max_words INTEGER NOT NULL DEFAULT 0,
  marks DOUBLE PRECISION NOT NULL DEFAULT 10,
  grading_type TEXT NOT NULL DEFAULT 'manual',
  expected_answer TEXT NOT NULL DEFAULT '',
  keywords_json TEXT NOT NULL DEFAULT '[]',
  keyword_weightage INTEGER NOT NULL DEFAULT 60,
  min_word_count INTEGER NOT NULL DEFAULT 50
);

CREATE TABLE IF NOT EXISTS exam_attempts (
  student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  attempts_used INTEGER NOT NULL DEFAULT 0,
  last_attempt_at BIGINT NOT NULL,
  PRIMARY KEY (student_id, course_id)
);

CREATE TABLE IF NOT EXISTS exam_sessions (
  id TEXT PRIMARY KEY,
  student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  start_time BIGINT NOT NULL,
  end_time BIGINT,
  duration_minutes INTEGER NOT NULL,
  status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS student_answers (
  session_id TEXT NOT NULL REFERENCES exam_sessions(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  selected_answer INTEGER NOT NULL,
  is_correct BOOLEAN NOT NULL,
  answered_at BIGINT NOT NULL,
  UNIQUE (session_id, question_id)
);

CREATE TABLE IF NOT EXISTS subjective_answers (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL REFERENCES exam_sessions(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  answer_text TEXT NOT NULL,
  word_count INTEGER NOT NULL DEFAULT 0,
  submitted_at BIGINT NOT NULL,
  auto_score DOUBLE PRECISION,
  keywords_found_json TEXT NOT NULL DEFAULT '[]',
  similarity_score DOUBLE PRECISION,
  final_score DOUBLE PRECISION,
  graded_at BIGINT,
  grading_notes TEXT NOT NULL DEFAULT '',
  UNIQUE (session_id, question_id)
);

CREATE TABLE IF NOT EXISTS exam_results (
  session_id TEXT PRIMARY KEY REFERENCES exam_sessions(id) ON DELETE CASCADE,
  student_id TEXT NOT NULL,
  course_id TEXT NOT NULL,
  objective_score DOUBLE PRECISION NOT NULL DEFAULT 0,
  correct_answers INTEGER NOT NULL DEFAULT 0,
  total_questions INTEGER NOT NULL DEFAULT 0,
  subjective_questions_answered INTEGER NOT NULL DEFAULT 0,
  total_subjective_questions INTEGER NOT NULL DEFAULT 0,
  total_subjective_marks DOUBLE PRECISION NOT NULL DEFAULT 0,
  subjective_marks_obtained DOUBLE PRECISION NOT NULL DEFAULT 0,
  subjective_score DOUBLE PRECISION NOT NULL DEFAULT 0,
  auto_graded_subjective INTEGER NOT NULL DEFAULT 0,
  final_score DOUBLE PRECISION NOT NULL DEFAULT 0,
  time_taken INTEGER NOT NULL DEFAULT 0
);
`
