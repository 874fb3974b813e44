package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrNotPublished is returned when starting an attempt on an unpublished quiz.
	ErrNotPublished = errors.New("quiz is not published")
	// ErrAttemptLimitExceeded is returned when the learner has exhausted maxAttempts.
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	// ErrAttemptNotFound is returned when an attempt id is unknown to the store.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrNotInProgress is returned for mutations outside the InProgress state.
	ErrNotInProgress = errors.New("attempt is not in progress")
	// ErrInvalidQuiz wraps authoring-time validation failures.
	ErrInvalidQuiz = errors.New("invalid quiz")
)
