package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"training-quiz-service/internal/domain"
)

func TestAttemptStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()

	started := time.Now().Truncate(time.Second)
	id, err := store.Create(ctx, "u1", "quiz-1", started)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.UpdateAnswers(ctx, id, map[string]string{"q1": "a"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	completedAt := started.Add(30 * time.Second)
	attempt, err := store.Finalize(ctx, id, domain.Finalization{
		Answers:          map[string]string{"q1": "a", "q2": "b"},
		Score:            50,
		CompletedAt:      completedAt,
		TimeTakenSeconds: 30,
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if attempt.Score == nil || *attempt.Score != 50 {
		t.Fatalf("expected score 50, got %v", attempt.Score)
	}
	if !attempt.CompletedAt.Equal(completedAt) {
		t.Fatalf("expected completedAt %v, got %v", completedAt, attempt.CompletedAt)
	}
	if attempt.Answers["q2"] != "b" {
		t.Fatalf("finalize must persist the finalizing answers map")
	}
}

func TestAttemptStoreFinalizeIsRetrySafe(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()

	id, _ := store.Create(ctx, "u1", "quiz-1", time.Now())
	fin := domain.Finalization{Answers: map[string]string{}, Score: 80, CompletedAt: time.Now(), TimeTakenSeconds: 10}

	first, err := store.Finalize(ctx, id, fin)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	// A retried finalize with a different payload must not overwrite.
	fin.Score = 10
	second, err := store.Finalize(ctx, id, fin)
	if err != nil {
		t.Fatalf("retry finalize: %v", err)
	}
	if *second.Score != *first.Score {
		t.Fatalf("retried finalize mutated the attempt: %d -> %d", *first.Score, *second.Score)
	}
}

func TestAttemptStoreIgnoresLateAnswerWrites(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()

	id, _ := store.Create(ctx, "u1", "quiz-1", time.Now())
	if _, err := store.Finalize(ctx, id, domain.Finalization{Answers: map[string]string{"q1": "final"}, CompletedAt: time.Now()}); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := store.UpdateAnswers(ctx, id, map[string]string{"q1": "late"}); err != nil {
		t.Fatalf("late write should be dropped silently: %v", err)
	}

	attempts, err := store.PriorAttempts(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("prior: %v", err)
	}
	if attempts[0].Answers["q1"] != "final" {
		t.Fatalf("late write mutated a finalized attempt: %v", attempts[0].Answers)
	}
}

func TestAttemptStoreUnknownAttempt(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()

	if err := store.UpdateAnswers(ctx, "missing", nil); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
	if _, err := store.Finalize(ctx, "missing", domain.Finalization{}); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
}

func TestPriorAttemptsFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()

	base := time.Now()
	second, _ := store.Create(ctx, "u1", "quiz-1", base.Add(time.Minute))
	first, _ := store.Create(ctx, "u1", "quiz-1", base)
	_, _ = store.Create(ctx, "u2", "quiz-1", base)
	_, _ = store.Create(ctx, "u1", "quiz-2", base)

	attempts, err := store.PriorAttempts(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("prior: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts for u1/quiz-1, got %d", len(attempts))
	}
	if attempts[0].ID != first || attempts[1].ID != second {
		t.Fatalf("expected oldest-first ordering")
	}
}
