package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"training-quiz-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore, used in
// tests and when no Postgres is configured.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]*domain.Attempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[string]*domain.Attempt)}
}

func (s *AttemptStore) Create(_ context.Context, userID, quizID string, startedAt time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.attempts[id] = &domain.Attempt{
		ID:        id,
		QuizID:    quizID,
		UserID:    userID,
		Answers:   make(map[string]string),
		StartedAt: startedAt,
	}
	return id, nil
}

func (s *AttemptStore) UpdateAnswers(_ context.Context, attemptID string, answers map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if attempt.Completed() {
		// A write that raced finalization is dropped; the finalizing write
		// already carried the full map.
		return nil
	}
	attempt.Answers = copyAnswers(answers)
	return nil
}

func (s *AttemptStore) Finalize(_ context.Context, attemptID string, fin domain.Finalization) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if attempt.Completed() {
		return cloneAttempt(attempt), nil
	}
	completedAt := fin.CompletedAt
	score := fin.Score
	taken := fin.TimeTakenSeconds
	attempt.Answers = copyAnswers(fin.Answers)
	attempt.CompletedAt = &completedAt
	attempt.Score = &score
	attempt.TimeTakenSeconds = &taken
	return cloneAttempt(attempt), nil
}

func (s *AttemptStore) PriorAttempts(_ context.Context, userID, quizID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Attempt
	for _, attempt := range s.attempts {
		if attempt.UserID == userID && attempt.QuizID == quizID {
			out = append(out, cloneAttempt(attempt))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

func cloneAttempt(a *domain.Attempt) domain.Attempt {
	out := *a
	out.Answers = copyAnswers(a.Answers)
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		out.CompletedAt = &t
	}
	if a.Score != nil {
		v := *a.Score
		out.Score = &v
	}
	if a.TimeTakenSeconds != nil {
		v := *a.TimeTakenSeconds
		out.TimeTakenSeconds = &v
	}
	return out
}

func copyAnswers(answers map[string]string) map[string]string {
	out := make(map[string]string, len(answers))
	for k, v := range answers {
		out[k] = v
	}
	return out
}
