package exam

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/examhall/cbt-portal/internal/grading"
)

// FlowState is the explicit state of one student's exam-taking flow.
type FlowState string

const (
	StateCourseSelection FlowState = "course_selection"
	StateInstructions    FlowState = "instructions"
	StateInProgress      FlowState = "in_progress"
	StateSubmitted       FlowState = "submitted"
	// Terminal states. Which one a submit lands in depends solely on the
	// course's show_immediate_result policy.
	StateResultDisplayed FlowState = "result_displayed"
	StateResultPending   FlowState = "result_pending_confirmation"
)

var ErrBadTransition = errors.New("transition not allowed in current state")

// Flow drives a single student's exam session as a finite state machine,
// fully decoupled from any render layer. It owns the one countdown timer for
// the session: the timer is started only on entry to InProgress and cancelled
// on every exit (submit, abandon, logout), so at most one ticker can ever be
// live per flow.
//
// Answers are buffered locally (the buffer is the source of truth for
// answered-state) and flushed to the store on each change. A flush failure
// is logged and swallowed; a flaky network must never block exam progression.
type Flow struct {
	svc     *Service
	student Student

	mu      sync.Mutex
	state   FlowState
	course  CourseSummary
	session Session
	pool    []Question
	current int

	objective  map[string]int    // question ID -> selected option
	subjective map[string]string // question ID -> answer text

	timeLeft   time.Duration // checkpoint, updated each tick
	timerStop  chan struct{} // non-nil while the countdown runs
	lastResult Result

	// OnTick is called with the remaining time after every tick.
	// OnExpired is called after the countdown triggers an auto-submit.
	// Both may be nil.
	OnTick    func(remaining time.Duration)
	OnExpired func()

	now  func() time.Time
	tick time.Duration
}

func NewFlow(svc *Service, student Student) *Flow {
	return &Flow{
		svc:        svc,
		student:    student,
		state:      StateCourseSelection,
		objective:  map[string]int{},
		subjective: map[string]string{},
		now:        time.Now,
		tick:       time.Second,
	}
}

// WithClock overrides the flow's time source and tick period. Tests only.
func (f *Flow) WithClock(now func() time.Time, tick time.Duration) *Flow {
	f.now = now
	f.tick = tick
	return f
}

func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) Session() Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *Flow) Result() Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastResult
}

// SelectCourse moves CourseSelection -> Instructions for an active course
// with attempts remaining.
func (f *Flow) SelectCourse(c CourseSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateCourseSelection {
		return fmt.Errorf("%w: select course from %s", ErrBadTransition, f.state)
	}
	if !c.IsActive {
		return ErrCourseNotFound
	}
	if c.AttemptsLeft <= 0 {
		return ErrAttemptsExhausted
	}
	f.course = c
	f.state = StateInstructions
	return nil
}

// BackToCourses abandons the instructions screen.
func (f *Flow) BackToCourses() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateInstructions {
		return fmt.Errorf("%w: back to courses from %s", ErrBadTransition, f.state)
	}
	f.course = CourseSummary{}
	f.state = StateCourseSelection
	return nil
}

// StartExam moves Instructions -> InProgress: consumes an attempt, loads the
// shuffled pool, seeds the countdown from the course duration and starts the
// single session timer.
func (f *Flow) StartExam(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateInstructions {
		return fmt.Errorf("%w: start exam from %s", ErrBadTransition, f.state)
	}

	sess, pool, err := f.svc.StartExam(ctx, f.student.ID, f.course.ID)
	if err != nil {
		return err
	}
	f.session = sess
	f.pool = pool
	f.current = 0
	f.objective = map[string]int{}
	f.subjective = map[string]string{}
	f.timeLeft = time.Duration(f.course.DurationMinutes) * time.Minute
	f.state = StateInProgress
	f.startTimerLocked()
	return nil
}

// Resume re-enters InProgress after a reload. The pool comes back in the
// same per-session order, and the answer buffers are rehydrated from the
// store so everything flushed before the interruption counts at submit. The
// authoritative remaining time is derived from the session's start_time; the
// locally checkpointed timeLeft only wins when it is tighter (the clock may
// have been paused in a background tab, never stretched).
func (f *Flow) Resume(ctx context.Context, sessionID string, checkpoint time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateCourseSelection && f.state != StateInstructions {
		return fmt.Errorf("%w: resume from %s", ErrBadTransition, f.state)
	}

	sess, err := f.svc.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status != StatusInProgress {
		return ErrSessionCompleted
	}
	pool, err := f.svc.pool.LoadForSession(ctx, sess.CourseID, sess.ID)
	if err != nil {
		return err
	}
	course, err := f.svc.store.GetCourse(ctx, sess.CourseID)
	if err != nil {
		return err
	}

	objAnswers, err := f.svc.store.ListObjectiveAnswers(ctx, sessionID)
	if err != nil {
		return err
	}
	subjAnswers, err := f.svc.store.ListSubjectiveAnswers(ctx, sessionID)
	if err != nil {
		return err
	}
	objective := make(map[string]int, len(objAnswers))
	for _, a := range objAnswers {
		objective[a.QuestionID] = a.SelectedAnswer
	}
	subjective := make(map[string]string, len(subjAnswers))
	for _, a := range subjAnswers {
		subjective[a.QuestionID] = a.AnswerText
	}

	remaining := sess.Remaining(f.now())
	if checkpoint > 0 && checkpoint < remaining {
		remaining = checkpoint
	}

	f.course = CourseSummary{Course: course}
	f.session = sess
	f.pool = pool
	f.current = 0
	f.objective = objective
	f.subjective = subjective
	f.timeLeft = remaining
	f.state = StateInProgress
	f.startTimerLocked()
	return nil
}

// Questions returns the shuffled pool for rendering.
func (f *Flow) Questions() []Question {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pool
}

// Navigate jumps to any question, in any order. A self-loop on InProgress.
func (f *Flow) Navigate(index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateInProgress {
		return fmt.Errorf("%w: navigate from %s", ErrBadTransition, f.state)
	}
	if index < 0 || index >= len(f.pool) {
		return fmt.Errorf("question index %d out of range", index)
	}
	f.current = index
	return nil
}

func (f *Flow) Current() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// AnswerObjective records a selection in the local buffer and flushes it to
// the store best-effort.
func (f *Flow) AnswerObjective(ctx context.Context, index, selected int) error {
	f.mu.Lock()
	if f.state != StateInProgress {
		f.mu.Unlock()
		return fmt.Errorf("%w: answer from %s", ErrBadTransition, f.state)
	}
	if index < 0 || index >= len(f.pool) {
		f.mu.Unlock()
		return fmt.Errorf("question index %d out of range", index)
	}
	q := f.pool[index]
	if q.Kind != KindObjective {
		f.mu.Unlock()
		return fmt.Errorf("question %d is not objective", index)
	}
	if selected < 0 || selected >= len(q.Options) {
		f.mu.Unlock()
		return fmt.Errorf("option %d out of range", selected)
	}
	f.objective[q.ID] = selected
	sessionID := f.session.ID
	f.mu.Unlock()

	if err := f.svc.SaveObjectiveAnswer(ctx, sessionID, q, selected); err != nil {
		log.Printf("flow %s: save objective answer %s: %v", sessionID, q.ID, err)
	}
	return nil
}

// AnswerSubjective records free text in the local buffer and flushes it
// best-effort.
func (f *Flow) AnswerSubjective(ctx context.Context, index int, text string) error {
	f.mu.Lock()
	if f.state != StateInProgress {
		f.mu.Unlock()
		return fmt.Errorf("%w: answer from %s", ErrBadTransition, f.state)
	}
	if index < 0 || index >= len(f.pool) {
		f.mu.Unlock()
		return fmt.Errorf("question index %d out of range", index)
	}
	q := f.pool[index]
	if q.Kind != KindSubjective {
		f.mu.Unlock()
		return fmt.Errorf("question %d is not subjective", index)
	}
	f.subjective[q.ID] = text
	sessionID := f.session.ID
	f.mu.Unlock()

	if err := f.svc.SaveSubjectiveAnswer(ctx, sessionID, q.ID, text); err != nil {
		log.Printf("flow %s: save subjective answer %s: %v", sessionID, q.ID, err)
	}
	return nil
}

// IsAnswered consults the local buffer, which is the source of truth for the
// navigator's answered markers.
func (f *Flow) IsAnswered(index int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 0 || index >= len(f.pool) {
		return false
	}
	q := f.pool[index]
	if q.Kind == KindObjective {
		_, ok := f.objective[q.ID]
		return ok
	}
	return grading.WordCount(f.subjective[q.ID]) > 0
}

// AnsweredCounts reports answered-vs-total, shown before a manual submit.
func (f *Flow) AnsweredCounts() (answered, total int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.pool {
		if q.Kind == KindObjective {
			if _, ok := f.objective[q.ID]; ok {
				answered++
			}
		} else if grading.WordCount(f.subjective[q.ID]) > 0 {
			answered++
		}
	}
	return answered, len(f.pool)
}

// Remaining reports the current countdown checkpoint.
func (f *Flow) Remaining() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timeLeft
}

// Submit finalizes the exam: stops the timer, runs the submit pipeline with
// the buffered answers, then settles into the terminal state the course's
// result policy dictates. Errors here are fatal to the submit and must be
// surfaced with a contact-an-administrator message; the flow stays InProgress
// so the student can retry.
func (f *Flow) Submit(ctx context.Context) (Result, error) {
	f.mu.Lock()
	if f.state != StateInProgress {
		f.mu.Unlock()
		return Result{}, fmt.Errorf("%w: submit from %s", ErrBadTransition, f.state)
	}
	f.stopTimerLocked()
	sessionID := f.session.ID
	objective := copyIntMap(f.objective)
	subjective := copyStringMap(f.subjective)
	f.mu.Unlock()

	result, err := f.svc.Submit(ctx, sessionID, objective, subjective)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		// Timer stays stopped: the exam is over either way, the student
		// just needs the submit to land.
		return Result{}, err
	}
	f.lastResult = result
	f.state = StateSubmitted
	if f.course.ShowImmediateResult {
		f.state = StateResultDisplayed
	} else {
		f.state = StateResultPending
	}
	return result, nil
}

// Abandon leaves InProgress without submitting: the timer is cancelled and
// the session stays in_progress until the sweeper reclaims it. Used for
// navigation away and logout.
func (f *Flow) Abandon() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopTimerLocked()
	f.state = StateCourseSelection
	f.course = CourseSummary{}
	f.pool = nil
	f.objective = map[string]int{}
	f.subjective = map[string]string{}
}

// ---- timer ----

// startTimerLocked launches the countdown goroutine. Any previous timer is
// cancelled first, preserving the at-most-one-timer invariant even if a
// caller re-enters InProgress without a clean exit.
func (f *Flow) startTimerLocked() {
	f.stopTimerLocked()
	stop := make(chan struct{})
	f.timerStop = stop

	go func() {
		t := time.NewTicker(f.tick)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if f.onTick(stop) {
					return
				}
			}
		}
	}()
}

// onTick decrements the checkpoint and fires the auto-submit at zero.
// Reports whether the countdown finished.
func (f *Flow) onTick(stop chan struct{}) bool {
	f.mu.Lock()
	if f.timerStop != stop {
		// A newer timer has taken over.
		f.mu.Unlock()
		return true
	}
	f.timeLeft -= time.Second
	if f.timeLeft < 0 {
		f.timeLeft = 0
	}
	remaining := f.timeLeft
	cb := f.OnTick
	f.mu.Unlock()

	if cb != nil {
		cb(remaining)
	}
	if remaining > 0 {
		return false
	}

	// Time is up: auto-submit, no confirmation.
	if _, err := f.Submit(context.Background()); err != nil {
		log.Printf("flow: auto-submit session %s: %v", f.Session().ID, err)
	}
	if f.OnExpired != nil {
		f.OnExpired()
	}
	return true
}

func (f *Flow) stopTimerLocked() {
	if f.timerStop != nil {
		close(f.timerStop)
		f.timerStop = nil
	}
}

// TimerRunning reports whether a countdown goroutine is live.
func (f *Flow) TimerRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timerStop != nil
}

func copyIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
