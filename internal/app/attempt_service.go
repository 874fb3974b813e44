package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"training-quiz-service/internal/domain"
)

// AttemptStore persists attempt records (in-memory, Postgres, etc).
type AttemptStore interface {
	// Create inserts a fresh in-progress attempt and returns its id.
	Create(ctx context.Context, userID, quizID string, startedAt time.Time) (string, error)
	// UpdateAnswers replaces the stored answers map. Last write wins;
	// ordering is the caller's responsibility.
	UpdateAnswers(ctx context.Context, attemptID string, answers map[string]string) error
	// Finalize applies the terminal write. It must be safe to retry: a
	// second call for an already-completed attempt returns the stored row
	// unchanged.
	Finalize(ctx context.Context, attemptID string, fin domain.Finalization) (domain.Attempt, error)
	// PriorAttempts lists the user's attempts for a quiz, oldest first.
	PriorAttempts(ctx context.Context, userID, quizID string) ([]domain.Attempt, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ProgressTracker receives the best-effort pass notification.
type ProgressTracker interface {
	MarkCourseComplete(ctx context.Context, userID, courseID string) error
}

// ControllerRegistry tracks live attempt controllers so a transport can
// reattach to an in-progress attempt.
type ControllerRegistry interface {
	Put(attemptID string, c *AttemptController)
	Get(attemptID string) (*AttemptController, bool)
	Remove(attemptID string)
}

// AttemptService wires the quiz catalog, attempt persistence, and progress
// tracking into the attempt lifecycle use cases.
type AttemptService struct {
	quizzes     QuizRepository
	store       AttemptStore
	progress    ProgressTracker
	controllers ControllerRegistry
	log         *zap.Logger
	now         func() time.Time
	answerRetry time.Duration
	tick        time.Duration
}

// Option customizes an AttemptService.
type Option func(*AttemptService)

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *AttemptService) { s.now = now }
}

// WithAnswerRetry overrides the delay between retries of failed answer writes.
func WithAnswerRetry(d time.Duration) Option {
	return func(s *AttemptService) { s.answerRetry = d }
}

// WithTick is test-only; countdowns tick at d instead of one second.
func WithTick(d time.Duration) Option {
	return func(s *AttemptService) { s.tick = d }
}

func NewAttemptService(quizzes QuizRepository, store AttemptStore, progress ProgressTracker, controllers ControllerRegistry, log *zap.Logger, opts ...Option) *AttemptService {
	s := &AttemptService{
		quizzes:     quizzes,
		store:       store,
		progress:    progress,
		controllers: controllers,
		log:         log,
		now:         time.Now,
		answerRetry: 2 * time.Second,
		tick:        time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a new attempt for the learner. It refuses unpublished quizzes,
// enforces the quiz's maxAttempts against completed prior attempts, creates
// the attempt record, and starts the countdown when the quiz is timed.
func (s *AttemptService) Start(ctx context.Context, quizID, userID string) (*AttemptController, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.IsPublished {
		return nil, fmt.Errorf("quiz %s: %w", quizID, domain.ErrNotPublished)
	}

	prior, err := s.store.PriorAttempts(ctx, userID, quizID)
	if err != nil {
		return nil, fmt.Errorf("prior attempts for quiz %s: %w", quizID, err)
	}
	completed := 0
	for _, attempt := range prior {
		if attempt.Completed() {
			completed++
		}
	}
	if completed >= quiz.MaxAttempts {
		return nil, fmt.Errorf("quiz %s: %w", quizID, domain.ErrAttemptLimitExceeded)
	}

	startedAt := s.now()
	attemptID, err := s.store.Create(ctx, userID, quizID, startedAt)
	if err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	c := &AttemptController{
		store:       s.store,
		progress:    s.progress,
		log:         s.log,
		quiz:        quiz,
		questions:   quiz.QuestionsInOrder(),
		userID:      userID,
		attemptID:   attemptID,
		startedAt:   startedAt,
		now:         s.now,
		state:       StateInProgress,
		answers:     make(map[string]string),
		remaining:   -1,
		subscribers: make(map[chan Snapshot]struct{}),
	}
	c.writer = newAnswerWriter(s.store, attemptID, s.answerRetry, s.log)

	if quiz.TimeLimitMinutes > 0 {
		c.remaining = quiz.TimeLimitMinutes * 60
		c.timer = NewCountdownWithInterval(c.remaining, s.tick, c.onTick, c.onExpire)
		c.timer.Start()
	}

	if s.controllers != nil {
		s.controllers.Put(attemptID, c)
	}
	return c, nil
}

// Get returns the live controller for an attempt, if this process owns one.
func (s *AttemptService) Get(attemptID string) (*AttemptController, bool) {
	if s.controllers == nil {
		return nil, false
	}
	return s.controllers.Get(attemptID)
}

// Release drops a finalized or abandoned controller from the registry and
// tears it down.
func (s *AttemptService) Release(attemptID string) {
	c, ok := s.Get(attemptID)
	if !ok {
		return
	}
	c.Teardown()
	s.controllers.Remove(attemptID)
}

// LatestCompleted returns the learner's most recent finalized attempt, used
// to short-circuit straight to the results view when no retry is allowed.
func (s *AttemptService) LatestCompleted(ctx context.Context, userID, quizID string) (domain.Attempt, bool, error) {
	prior, err := s.store.PriorAttempts(ctx, userID, quizID)
	if err != nil {
		return domain.Attempt{}, false, fmt.Errorf("prior attempts for quiz %s: %w", quizID, err)
	}
	var latest domain.Attempt
	found := false
	for _, attempt := range prior {
		if !attempt.Completed() {
			continue
		}
		if !found || attempt.CompletedAt.After(*latest.CompletedAt) {
			latest = attempt
			found = true
		}
	}
	return latest, found, nil
}

// Quiz exposes catalog lookups to transports that need quiz metadata
// without starting an attempt.
func (s *AttemptService) Quiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

// History lists all of the learner's attempts at a quiz, oldest first.
func (s *AttemptService) History(ctx context.Context, userID, quizID string) ([]domain.Attempt, error) {
	return s.store.PriorAttempts(ctx, userID, quizID)
}
