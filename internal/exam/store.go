package exam

import (
	"context"
	"time"
)

// ResultFilter narrows result listings for reporting screens.
type ResultFilter struct {
	CourseID string
	Level    string
}

// Store is the persistence collaborator for the exam core. Any backing store
// implementing these query shapes suffices; the SQL implementation lives in
// store_sql.go.
type Store interface {
	// Catalog
	GetStudent(ctx context.Context, id string) (Student, error)
	GetStudentByMatric(ctx context.Context, matric string) (Student, error)
	BulkUpsertStudents(ctx context.Context, students []Student) (int, error)
	DeleteStudents(ctx context.Context, ids []string) (int, error)

	GetCourse(ctx context.Context, id string) (Course, error)
	ListActiveCourses(ctx context.Context, studentID string) ([]CourseSummary, error)
	PutCourse(ctx context.Context, c Course) error
	DeleteCourse(ctx context.Context, id string) error

	PutObjectiveQuestion(ctx context.Context, q Question) error
	PutSubjectiveQuestion(ctx context.Context, q Question) error
	ListObjectiveQuestions(ctx context.Context, courseID string) ([]Question, error)
	ListSubjectiveQuestions(ctx context.Context, courseID string) ([]Question, error)
	GetSubjectiveQuestion(ctx context.Context, id string) (Question, error)
	DeleteQuestion(ctx context.Context, id string) error
	DeleteSubjectiveQuestion(ctx context.Context, id string) error

	// Attempts & sessions
	GetAttempt(ctx context.Context, studentID, courseID string) (Attempt, error)
	IncrementAttempt(ctx context.Context, studentID, courseID string, at time.Time) (Attempt, error)
	InsertSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	CompleteSession(ctx context.Context, id string, endTime time.Time) error
	ListInProgressSessions(ctx context.Context) ([]Session, error)

	// Answers
	SaveObjectiveAnswer(ctx context.Context, a ObjectiveAnswer) error
	SaveSubjectiveAnswer(ctx context.Context, a SubjectiveAnswer) (SubjectiveAnswer, error)
	ListObjectiveAnswers(ctx context.Context, sessionID string) ([]ObjectiveAnswer, error)
	ListSubjectiveAnswers(ctx context.Context, sessionID string) ([]SubjectiveAnswer, error)
	ListAnswersForQuestion(ctx context.Context, questionID string) ([]SubjectiveAnswer, error)
	GetSubjectiveAnswer(ctx context.Context, id string) (SubjectiveAnswer, error)
	ApplyAutoGrade(ctx context.Context, answerID string, autoScore, similarity float64, keywordsFound []string, at time.Time) error
	ApplyManualGrade(ctx context.Context, answerID string, finalScore float64, notes string, at time.Time) error

	// Results
	UpsertResult(ctx context.Context, r Result) error
	GetResult(ctx context.Context, sessionID string) (Result, error)
	ListResults(ctx context.Context, f ResultFilter) ([]Result, error)
}
