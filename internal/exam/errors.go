package exam

import "errors"

var (
	// ErrNoQuestions means the combined objective+subjective pool for a course
	// is empty. No session may be created.
	ErrNoQuestions = errors.New("no questions available for this course")

	// ErrAttemptsExhausted means the student has used every permitted attempt.
	// Not retryable without examiner intervention.
	ErrAttemptsExhausted = errors.New("maximum attempts used for this course")

	ErrCourseNotFound   = errors.New("course not found")
	ErrStudentNotFound  = errors.New("student not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrAnswerNotFound   = errors.New("answer not found")
	ErrResultNotFound   = errors.New("result not found")

	// ErrSessionCompleted guards answer writes against a session that has
	// already been submitted or reclaimed by the sweeper.
	ErrSessionCompleted = errors.New("session already completed")
)
