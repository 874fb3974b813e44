package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"training-quiz-service/internal/domain"
)

// State is the attempt lifecycle position.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInProgress    State = "in_progress"
	StateSubmitting    State = "submitting"
	StateFinalized     State = "finalized"
)

// Snapshot is the observable view a presentation layer renders. Answers is a
// copy; mutating it does not affect the controller.
type Snapshot struct {
	State                State             `json:"state"`
	CurrentQuestionIndex int               `json:"currentQuestionIndex"`
	Answers              map[string]string `json:"answers"`
	RemainingSeconds     int               `json:"remainingSeconds"` // -1 when untimed
	UnsavedChanges       bool              `json:"unsavedChanges"`
	Finalized            *domain.Attempt   `json:"finalized,omitempty"`
}

// AttemptController drives one attempt for one learner: answer capture,
// navigation, timer wiring, and the single finalizing submit.
type AttemptController struct {
	store     AttemptStore
	progress  ProgressTracker
	log       *zap.Logger
	quiz      domain.Quiz
	questions []domain.Question // sorted by OrderIndex
	userID    string
	attemptID string
	startedAt time.Time
	now       func() time.Time

	// submitMu serializes finalizing writes so a user submit racing timer
	// expiry issues at most one.
	submitMu sync.Mutex

	mu           sync.Mutex
	state        State
	current      int
	answers      map[string]string
	remaining    int // seconds; -1 when untimed
	finalized    *domain.Attempt
	finalization *domain.Finalization
	timer        *Countdown
	writer       *answerWriter
	subscribers  map[chan Snapshot]struct{}
}

// AttemptID identifies the underlying attempt record.
func (c *AttemptController) AttemptID() string { return c.attemptID }

// Quiz returns the quiz under attempt.
func (c *AttemptController) Quiz() domain.Quiz { return c.quiz }

// Questions returns the presentation-ordered question set.
func (c *AttemptController) Questions() []domain.Question { return c.questions }

// RecordAnswer upserts the learner's answer for a question and queues the
// updated map for persistence. The in-memory map is authoritative; a failed
// write surfaces only as the UnsavedChanges snapshot flag. Valid only while
// InProgress.
func (c *AttemptController) RecordAnswer(questionID, value string) error {
	c.mu.Lock()
	if c.state != StateInProgress {
		c.mu.Unlock()
		return fmt.Errorf("record answer: %w", domain.ErrNotInProgress)
	}
	c.answers[questionID] = value
	snapshot := copyAnswers(c.answers)
	writer := c.writer
	c.broadcastLocked()
	c.mu.Unlock()

	writer.Enqueue(snapshot)
	return nil
}

// GoTo clamps index to [0, N-1] and moves the cursor there.
func (c *AttemptController) GoTo(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if max := len(c.questions) - 1; index > max {
		index = max
	}
	if index < 0 {
		index = 0
	}
	if index != c.current {
		c.current = index
		c.broadcastLocked()
	}
}

// Next advances one question; no-op at the last index.
func (c *AttemptController) Next() {
	c.mu.Lock()
	index := c.current + 1
	c.mu.Unlock()
	c.GoTo(index)
}

// Previous steps back one question; no-op at index zero.
func (c *AttemptController) Previous() {
	c.mu.Lock()
	index := c.current - 1
	c.mu.Unlock()
	c.GoTo(index)
}

// Submit finalizes the attempt: scores the answers, issues the one terminal
// write, stops the timer, and notifies the progress tracker on a pass.
// Idempotent: once Finalized it returns the finalized attempt without
// re-scoring. On a finalize failure the attempt stays Submitting and the
// same payload is re-issued on retry.
func (c *AttemptController) Submit(ctx context.Context) (domain.Attempt, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	c.mu.Lock()
	switch c.state {
	case StateFinalized:
		att := *c.finalized
		c.mu.Unlock()
		return att, nil
	case StateInProgress, StateSubmitting:
		c.state = StateSubmitting
	default:
		c.mu.Unlock()
		return domain.Attempt{}, fmt.Errorf("submit: %w", domain.ErrNotInProgress)
	}
	// The payload is computed once so a retried finalize re-issues the
	// identical write.
	if c.finalization == nil {
		now := c.now()
		c.finalization = &domain.Finalization{
			Answers:          copyAnswers(c.answers),
			Score:            Score(c.questions, c.answers),
			CompletedAt:      now,
			TimeTakenSeconds: int(now.Sub(c.startedAt) / time.Second),
		}
	}
	fin := *c.finalization
	c.mu.Unlock()

	attempt, err := c.store.Finalize(ctx, c.attemptID, fin)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("finalize attempt %s: %w", c.attemptID, err)
	}

	c.mu.Lock()
	c.state = StateFinalized
	c.finalized = &attempt
	timer := c.timer
	c.timer = nil
	c.broadcastLocked()
	c.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	c.writer.Close()

	if Passed(fin.Score, c.quiz.PassingScore) {
		go c.notifyPassed()
	}
	return attempt, nil
}

// notifyPassed is best effort; a tracker failure never alters the finalized
// attempt.
func (c *AttemptController) notifyPassed() {
	if c.progress == nil {
		return
	}
	if err := c.progress.MarkCourseComplete(context.Background(), c.userID, c.quiz.CourseID); err != nil {
		c.log.Error("progress tracker notification failed",
			zap.String("userId", c.userID),
			zap.String("courseId", c.quiz.CourseID),
			zap.Error(err))
	}
}

// Snapshot returns the current observable state.
func (c *AttemptController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every state change
// and timer tick, starting with the current one. The caller must invoke the
// returned cancel function to avoid leaks.
func (c *AttemptController) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	initial := c.snapshotLocked()
	c.mu.Unlock()

	ch <- initial

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// Flush blocks until queued answer writes have been applied or have hit a
// failure (which leaves the UnsavedChanges flag set).
func (c *AttemptController) Flush() {
	c.writer.Flush()
}

// Teardown releases the timer and writer when the learner navigates away
// without finalizing. The attempt record stays InProgress in the store.
func (c *AttemptController) Teardown() {
	c.mu.Lock()
	timer := c.timer
	c.timer = nil
	c.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	c.writer.Close()
}

func (c *AttemptController) onTick(remaining int) {
	c.mu.Lock()
	c.remaining = remaining
	c.broadcastLocked()
	c.mu.Unlock()
}

func (c *AttemptController) onExpire() {
	if _, err := c.Submit(context.Background()); err != nil {
		c.log.Error("auto-submit on timer expiry failed",
			zap.String("attemptId", c.attemptID),
			zap.Error(err))
	}
}

func (c *AttemptController) snapshotLocked() Snapshot {
	return Snapshot{
		State:                c.state,
		CurrentQuestionIndex: c.current,
		Answers:              copyAnswers(c.answers),
		RemainingSeconds:     c.remaining,
		UnsavedChanges:       c.writer.Unsaved(),
		Finalized:            c.finalized,
	}
}

func (c *AttemptController) broadcastLocked() {
	snap := c.snapshotLocked()
	for ch := range c.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the oldest pending snapshot so slow consumers never
			// block the attempt.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func copyAnswers(answers map[string]string) map[string]string {
	out := make(map[string]string, len(answers))
	for k, v := range answers {
		out[k] = v
	}
	return out
}
