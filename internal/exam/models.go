package exam

import "time"

// QuestionKind discriminates objective and subjective questions. The kind is
// decided once, when the pool loader tags each row, so downstream code never
// has to sniff for the presence of options.
type QuestionKind string

const (
	KindObjective  QuestionKind = "objective"
	KindSubjective QuestionKind = "subjective"
)

// GradingType controls how a subjective answer is scored.
type GradingType string

const (
	GradingManual GradingType = "manual"
	GradingAuto   GradingType = "auto"
	GradingMixed  GradingType = "mixed"
)

type Option struct {
	Text string `json:"text"`
}

// Question is a tagged union over both question shapes. Objective fields are
// populated only when Kind==KindObjective, subjective fields only when
// Kind==KindSubjective.
type Question struct {
	ID       string       `json:"id"`
	CourseID string       `json:"course_id"`
	Kind     QuestionKind `json:"kind"`
	Text     string       `json:"question_text"`

	// Objective
	Options       []Option `json:"options,omitempty"`
	CorrectAnswer int      `json:"correct_answer,omitempty"`

	// Subjective
	MaxWords         int         `json:"max_words,omitempty"`
	Marks            float64     `json:"marks,omitempty"`
	GradingType      GradingType `json:"grading_type,omitempty"`
	ExpectedAnswer   string      `json:"expected_answer,omitempty"`
	Keywords         []string    `json:"keywords,omitempty"`
	KeywordWeightage int         `json:"keyword_weightage,omitempty"`
	MinWordCount     int         `json:"min_word_count,omitempty"`
}

type Student struct {
	ID           string `json:"id"`
	MatricNumber string `json:"matric_number"`
	FullName     string `json:"full_name"`
	Department   string `json:"department"`
	Level        string `json:"level"`
}

type Course struct {
	ID                  string `json:"id"`
	CourseCode          string `json:"course_code"`
	CourseTitle         string `json:"course_title"`
	DurationMinutes     int    `json:"duration_minutes"`
	MaxAttempts         int    `json:"max_attempts"`
	ShowPassMark        bool   `json:"show_pass_mark"`
	ShowImmediateResult bool   `json:"show_immediate_result"`
	IsActive            bool   `json:"is_active"`
}

// CourseSummary is a Course joined with its question counts and the viewing
// student's attempt usage, for the course-selection screen.
type CourseSummary struct {
	Course
	ObjectiveCount  int `json:"objective_count"`
	SubjectiveCount int `json:"subjective_count"`
	AttemptsUsed    int `json:"attempts_used"`
	AttemptsLeft    int `json:"attempts_left"`
}

type Attempt struct {
	StudentID     string    `json:"student_id"`
	CourseID      string    `json:"course_id"`
	AttemptsUsed  int       `json:"attempts_used"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
}

type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
)

type Session struct {
	ID              string        `json:"id"`
	StudentID       string        `json:"student_id"`
	CourseID        string        `json:"course_id"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          SessionStatus `json:"status"`
}

// Elapsed reports how long the session has been running at the given instant.
func (s Session) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.StartTime)
}

// Remaining derives the authoritative time left from start_time rather than a
// client-held countdown, so the value survives reloads.
func (s Session) Remaining(now time.Time) time.Duration {
	rem := time.Duration(s.DurationMinutes)*time.Minute - s.Elapsed(now)
	if rem < 0 {
		return 0
	}
	return rem
}

// ObjectiveAnswer is one student's selection for one objective question.
// Unique per (session, question); writes are upserts.
type ObjectiveAnswer struct {
	SessionID      string    `json:"session_id"`
	QuestionID     string    `json:"question_id"`
	SelectedAnswer int       `json:"selected_answer"`
	IsCorrect      bool      `json:"is_correct"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// SubjectiveAnswer holds the free-text answer plus whatever grading has been
// applied so far. FinalScore is on the question's marks scale and, when set,
// takes priority over AutoScore (a percentage).
type SubjectiveAnswer struct {
	ID              string     `json:"id"`
	SessionID       string     `json:"session_id"`
	QuestionID      string     `json:"question_id"`
	AnswerText      string     `json:"answer_text"`
	WordCount       int        `json:"word_count"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	AutoScore       *float64   `json:"auto_score,omitempty"`
	KeywordsFound   []string   `json:"keywords_found,omitempty"`
	SimilarityScore *float64   `json:"similarity_score,omitempty"`
	FinalScore      *float64   `json:"final_score,omitempty"`
	GradedAt        *time.Time `json:"graded_at,omitempty"`
	GradingNotes    string     `json:"grading_notes,omitempty"`
}

// Result is the per-session scoreboard, written at submit time and rewritten
// whenever a subjective grade changes. Question counts are captured at
// submission and never resynced against the live question bank.
type Result struct {
	SessionID string `json:"session_id"`
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`

	ObjectiveScore float64 `json:"objective_score"`
	CorrectAnswers int     `json:"correct_answers"`
	TotalQuestions int     `json:"total_questions"` // objective count

	SubjectiveQuestionsAnswered int     `json:"subjective_questions_answered"`
	TotalSubjectiveQuestions    int     `json:"total_subjective_questions"`
	TotalSubjectiveMarks        float64 `json:"total_subjective_marks"`
	SubjectiveMarksObtained     float64 `json:"subjective_marks_obtained"`
	SubjectiveScore             float64 `json:"subjective_score"`
	AutoGradedSubjective        int     `json:"auto_graded_subjective"`

	FinalScore       float64 `json:"final_score"`
	TimeTakenMinutes int     `json:"time_taken"`
}

// PassMark is applied to FinalScore for display only; it is never stored.
const PassMark = 50.0

func (r Result) Passed() bool { return r.FinalScore >= PassMark }
