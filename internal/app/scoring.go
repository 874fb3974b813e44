package app

import (
	"math"
	"strings"

	"training-quiz-service/internal/domain"
)

// Score compares the submitted answers against the question keys and returns
// a percentage in [0,100], rounded to the nearest integer. Questions absent
// from answers contribute zero. A quiz with zero total points scores zero.
// Pure function: no I/O, deterministic.
func Score(questions []domain.Question, answers map[string]string) int {
	total := 0
	earned := 0
	for _, q := range questions {
		points := q.Points
		total += points
		answer, ok := answers[q.ID]
		if ok && Matches(q, answer) {
			earned += points
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(earned) / float64(total) * 100))
}

// Matches reports whether answer is correct for q. Multiple-choice and
// true/false answers are fixed displayed strings and compare verbatim;
// fill-in-the-blank compares after lowercasing and trimming both sides.
func Matches(q domain.Question, answer string) bool {
	if q.Type == domain.FillInBlank {
		return normalize(answer) == normalize(q.CorrectAnswer)
	}
	return answer == q.CorrectAnswer
}

// Passed applies the inclusive passing threshold.
func Passed(score, passingScore int) bool {
	return score >= passingScore
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
