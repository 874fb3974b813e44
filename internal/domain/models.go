package domain

import (
	"fmt"
	"sort"
	"time"
)

// QuestionType tags the closed set of question kinds the scorer understands.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	FillInBlank    QuestionType = "fill_in_blank"
)

// TrueFalseOptions is the fixed option pair for true_false questions; it is
// not stored per question.
var TrueFalseOptions = []string{"True", "False"}

// Question is the static description of a single quiz question.
type Question struct {
	ID            string       `json:"id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"` // multiple_choice only
	CorrectAnswer string       `json:"correctAnswer"`
	Points        int          `json:"points"`
	OrderIndex    int          `json:"orderIndex"`
	Explanation   string       `json:"explanation,omitempty"`
	ImageURL      string       `json:"imageUrl,omitempty"`
}

// Quiz owns an ordered question set plus the policy knobs the attempt
// lifecycle needs.
type Quiz struct {
	ID               string     `json:"id"`
	CourseID         string     `json:"courseId"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	PassingScore     int        `json:"passingScore"`     // 0..100 inclusive
	TimeLimitMinutes int        `json:"timeLimitMinutes"` // 0 means untimed
	MaxAttempts      int        `json:"maxAttempts"`
	IsPublished      bool       `json:"isPublished"`
	Questions        []Question `json:"questions"`
}

// QuestionsInOrder returns the questions sorted by OrderIndex. The attempt
// controller navigates by slice index, so callers rely on this ordering.
func (q Quiz) QuestionsInOrder() []Question {
	ordered := make([]Question, len(q.Questions))
	copy(ordered, q.Questions)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].OrderIndex < ordered[j].OrderIndex
	})
	return ordered
}

// Validate checks authoring-time invariants: positive points, a contiguous
// orderIndex permutation of 0..N-1, a sane passing score, and correct
// answers that exist in the option set.
func (q Quiz) Validate() error {
	if q.PassingScore < 0 || q.PassingScore > 100 {
		return fmt.Errorf("quiz %s: passing score %d out of range: %w", q.ID, q.PassingScore, ErrInvalidQuiz)
	}
	if q.MaxAttempts <= 0 {
		return fmt.Errorf("quiz %s: max attempts must be positive: %w", q.ID, ErrInvalidQuiz)
	}
	seen := make(map[int]bool, len(q.Questions))
	for _, question := range q.Questions {
		if err := question.Validate(); err != nil {
			return err
		}
		if question.OrderIndex < 0 || question.OrderIndex >= len(q.Questions) || seen[question.OrderIndex] {
			return fmt.Errorf("quiz %s: question %s orderIndex %d breaks the 0..N-1 sequence: %w",
				q.ID, question.ID, question.OrderIndex, ErrInvalidQuiz)
		}
		seen[question.OrderIndex] = true
	}
	return nil
}

// Validate checks a single question's authoring invariants.
func (q Question) Validate() error {
	if q.Points <= 0 {
		return fmt.Errorf("question %s: points must be positive: %w", q.ID, ErrInvalidQuiz)
	}
	switch q.Type {
	case MultipleChoice:
		if len(q.Options) == 0 {
			return fmt.Errorf("question %s: multiple_choice requires options: %w", q.ID, ErrInvalidQuiz)
		}
		for _, opt := range q.Options {
			if opt == q.CorrectAnswer {
				return nil
			}
		}
		return fmt.Errorf("question %s: correct answer not among options: %w", q.ID, ErrInvalidQuiz)
	case TrueFalse:
		if q.CorrectAnswer != TrueFalseOptions[0] && q.CorrectAnswer != TrueFalseOptions[1] {
			return fmt.Errorf("question %s: true_false answer must be True or False: %w", q.ID, ErrInvalidQuiz)
		}
	case FillInBlank:
		if q.CorrectAnswer == "" {
			return fmt.Errorf("question %s: fill_in_blank requires a correct answer: %w", q.ID, ErrInvalidQuiz)
		}
	default:
		return fmt.Errorf("question %s: unknown type %q: %w", q.ID, q.Type, ErrInvalidQuiz)
	}
	return nil
}

// Attempt is one learner's pass at a quiz, from start to finalization.
// Answers maps question id to the submitted answer string; keys exist only
// for questions the learner has touched.
type Attempt struct {
	ID               string            `json:"id"`
	QuizID           string            `json:"quizId"`
	UserID           string            `json:"userId"`
	Answers          map[string]string `json:"answers"`
	StartedAt        time.Time         `json:"startedAt"`
	CompletedAt      *time.Time        `json:"completedAt,omitempty"`
	Score            *int              `json:"score,omitempty"`
	TimeTakenSeconds *int              `json:"timeTakenSeconds,omitempty"`
}

// Completed reports whether the attempt has been finalized. CompletedAt is
// the sole finished signal.
func (a Attempt) Completed() bool {
	return a.CompletedAt != nil
}

// Finalization is the single terminal write applied to an attempt.
type Finalization struct {
	Answers          map[string]string
	Score            int
	CompletedAt      time.Time
	TimeTakenSeconds int
}
