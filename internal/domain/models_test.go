package domain

import (
	"errors"
	"testing"
	"time"
)

func TestQuizValidate(t *testing.T) {
	quiz := validQuiz()
	if err := quiz.Validate(); err != nil {
		t.Fatalf("valid quiz rejected: %v", err)
	}

	bad := validQuiz()
	bad.PassingScore = 101
	if err := bad.Validate(); !errors.Is(err, ErrInvalidQuiz) {
		t.Fatalf("expected invalid passing score to fail, got %v", err)
	}

	bad = validQuiz()
	bad.MaxAttempts = 0
	if err := bad.Validate(); !errors.Is(err, ErrInvalidQuiz) {
		t.Fatalf("expected zero max attempts to fail, got %v", err)
	}

	bad = validQuiz()
	bad.Questions[1].OrderIndex = 0 // duplicate
	if err := bad.Validate(); !errors.Is(err, ErrInvalidQuiz) {
		t.Fatalf("expected duplicate orderIndex to fail, got %v", err)
	}

	bad = validQuiz()
	bad.Questions[1].OrderIndex = 5 // gap
	if err := bad.Validate(); !errors.Is(err, ErrInvalidQuiz) {
		t.Fatalf("expected non-contiguous orderIndex to fail, got %v", err)
	}
}

func TestQuestionValidate(t *testing.T) {
	q := Question{ID: "q", Type: MultipleChoice, Options: []string{"a", "b"}, CorrectAnswer: "b", Points: 1}
	if err := q.Validate(); err != nil {
		t.Fatalf("valid question rejected: %v", err)
	}

	q.Points = 0
	if err := q.Validate(); !errors.Is(err, ErrInvalidQuiz) {
		t.Fatalf("expected zero points to fail, got %v", err)
	}

	q.Points = 1
	q.CorrectAnswer = "c"
	if err := q.Validate(); !errors.Is(err, ErrInvalidQuiz) {
		t.Fatalf("expected answer outside options to fail, got %v", err)
	}

	tf := Question{ID: "q", Type: TrueFalse, CorrectAnswer: "yes", Points: 1}
	if err := tf.Validate(); !errors.Is(err, ErrInvalidQuiz) {
		t.Fatalf("expected non True/False answer to fail, got %v", err)
	}

	unknown := Question{ID: "q", Type: "essay", CorrectAnswer: "x", Points: 1}
	if err := unknown.Validate(); !errors.Is(err, ErrInvalidQuiz) {
		t.Fatalf("expected unknown type to fail, got %v", err)
	}
}

func TestQuestionsInOrder(t *testing.T) {
	quiz := Quiz{Questions: []Question{
		{ID: "b", OrderIndex: 1},
		{ID: "c", OrderIndex: 2},
		{ID: "a", OrderIndex: 0},
	}}
	ordered := quiz.QuestionsInOrder()
	if ordered[0].ID != "a" || ordered[1].ID != "b" || ordered[2].ID != "c" {
		t.Fatalf("expected order a,b,c got %s,%s,%s", ordered[0].ID, ordered[1].ID, ordered[2].ID)
	}
	// The quiz's own slice is untouched.
	if quiz.Questions[0].ID != "b" {
		t.Fatalf("QuestionsInOrder must not mutate the quiz")
	}
}

func TestAttemptCompleted(t *testing.T) {
	attempt := Attempt{}
	if attempt.Completed() {
		t.Fatalf("attempt without completedAt must not be completed")
	}
	now := time.Now()
	attempt.CompletedAt = &now
	if !attempt.Completed() {
		t.Fatalf("attempt with completedAt must be completed")
	}
}

func validQuiz() Quiz {
	return Quiz{
		ID:           "quiz-1",
		PassingScore: 70,
		MaxAttempts:  2,
		Questions: []Question{
			{ID: "q1", Type: MultipleChoice, Options: []string{"a", "b"}, CorrectAnswer: "a", Points: 1, OrderIndex: 0},
			{ID: "q2", Type: FillInBlank, CorrectAnswer: "word", Points: 2, OrderIndex: 1},
		},
	}
}
